package vm

// Stack identifiers, used as the first PUSH/POP argument (spec.md §4.4).
const (
	pstackID = iota + 1
	lstackID
	vstackID
	istackID
	astackID

	// special V stack values, used as the second PUSH argument when
	// stackID == vstackID.
	vValNil    uint16 = 0
	vValFailed uint16 = 1
	vValEmpty  uint16 = 2
)

var stackNames = []string{
	pstackID: "P", lstackID: "L", vstackID: "V", istackID: "I", astackID: "A",
}

// sentinel distinguishes the "match failed" marker from any real value
// an action could legitimately produce.
type sentinel int

const matchFailed sentinel = -1

var vSpecialValues = []interface{}{nil, matchFailed, []interface{}(nil)}

// pstack stores input save points.
type pstack struct {
	ar []svpt
	sp int
}

func (p *pstack) push(pt svpt) {
	if p.sp >= len(p.ar) {
		p.ar = append(p.ar, pt)
	} else {
		p.ar[p.sp] = pt
	}
	p.sp++
}

func (p *pstack) pop() svpt { p.sp--; return p.ar[p.sp] }
func (p *pstack) len() int  { return p.sp }

func newPstack(cap int) *pstack { return &pstack{ar: make([]svpt, cap)} }

// istack stores instruction indices (call return addresses).
type istack struct {
	ar []uint16
	sp int
}

func (i *istack) push(v uint16) {
	if i.sp >= len(i.ar) {
		i.ar = append(i.ar, v)
	} else {
		i.ar[i.sp] = v
	}
	i.sp++
}

func (i *istack) pop() uint16 { i.sp--; return i.ar[i.sp] }
func (i *istack) len() int    { return i.sp }

func newIstack(cap int) *istack { return &istack{ar: make([]uint16, cap)} }

// vstack stores match results and intermediate values.
type vstack struct {
	ar []interface{}
	sp int
}

func (v *vstack) push(val interface{}) {
	if v.sp >= len(v.ar) {
		v.ar = append(v.ar, val)
	} else {
		v.ar[v.sp] = val
	}
	v.sp++
}

func (v *vstack) pop() interface{}  { v.sp--; return v.ar[v.sp] }
func (v *vstack) peek() interface{} { return v.ar[v.sp-1] }
func (v *vstack) len() int          { return v.sp }

func newVstack(cap int) *vstack { return &vstack{ar: make([]interface{}, cap)} }

// lstack stores the remaining-element lists of in-progress bounded
// repetitions and sequences.
type lstack struct {
	ar [][]uint16
	sp int
}

func (l *lstack) push(a []uint16) {
	if l.sp >= len(l.ar) {
		l.ar = append(l.ar, a)
	} else {
		l.ar[l.sp] = a
	}
	l.sp++
}

func (l *lstack) pop() []uint16 { l.sp--; return l.ar[l.sp] }

// take removes and returns the first element of the slice on top of
// the stack, or -1 if it is empty. The slice itself stays on the stack.
func (l *lstack) take() int {
	a := l.ar[l.sp-1]
	if len(a) == 0 {
		return -1
	}
	v := int(a[0])
	l.ar[l.sp-1] = a[1:]
	return v
}

func (l *lstack) len() int { return l.sp }

func newLstack(cap int) *lstack { return &lstack{ar: make([][]uint16, cap)} }

// argsSet holds the named values visible to an action or predicate.
type argsSet map[string]interface{}

// astack is a stack of argsSet, one per enclosing sequence/action scope.
type astack struct {
	ar []argsSet
	sp int
}

func (a *astack) push() {
	if a.sp >= len(a.ar) {
		a.ar = append(a.ar, nil)
	} else {
		a.ar[a.sp] = nil
	}
	a.sp++
}

func (a *astack) pop() { a.sp-- }

func (a *astack) peek() argsSet {
	as := a.ar[a.sp-1]
	if as == nil {
		as = make(argsSet)
		a.ar[a.sp-1] = as
	}
	return as
}

func (a *astack) len() int { return a.sp }

func newAstack(cap int) *astack { return &astack{ar: make([]argsSet, cap)} }
