// Package vm implements the stack-machine runtime every compiled
// grammar executes on (spec.md §4.4). A Program is a flat instruction
// slice plus the matcher, action, predicate and string tables the
// instructions index into; Run drives a Program against an input byte
// slice and returns the top-level rule's result.
package vm

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// defaultMemoCacheSize bounds the match-memoization cache so a pathological
// input can't grow it without limit; an evicted entry just costs a
// recomputation, never a wrong answer.
const defaultMemoCacheSize = 4096

// ActionFunc runs an action code block against the current match and
// the labeled values visible at that point, returning the value that
// replaces the wrapped expression's result.
type ActionFunc func(*VM) (interface{}, error)

// PredicateFunc runs a semantic predicate, returning whether it holds.
type PredicateFunc func(*VM) (bool, error)

// Program is the compiled form of a grammar: compiler.Generate builds
// one of these, and either hands it straight to Run (spec.md §6
// "parser" in-memory output) or the emit package renders an equivalent
// one as literal Go source.
type Program struct {
	Instrs []instr
	Ms     []matcher
	As     []ActionFunc
	Bs     []PredicateFunc
	Ss     []string // interned strings: rule names and label names

	// InstrToRule holds, for each instruction index, the index into Ss
	// of the rule that instruction belongs to, or -1 outside any rule.
	InstrToRule []int
}

func (pg *Program) ruleNameAt(ix int) string {
	if ix < 0 || ix >= len(pg.Ss) {
		return ""
	}
	return pg.Ss[ix]
}

func (pg *Program) ruleOfInstr(pc int) string {
	if pc < 0 || pc >= len(pg.InstrToRule) {
		return ""
	}
	return pg.ruleNameAt(pg.InstrToRule[pc])
}

func (pg *Program) String() string {
	s := ""
	for i, in := range pg.Instrs {
		s += fmt.Sprintf("[%3d]: %s\n", i, pg.instrToString(i, in))
	}
	return s
}

func (pg *Program) instrToString(pc int, in instr) string {
	rule := pg.ruleOfInstr(pc)
	if rule == "" {
		rule = "<bootstrap>"
	}
	s := fmt.Sprintf("%s.%s %v", rule, in.op, in.args)
	switch in.op {
	case opPush, opPop:
		s += " " + stackNames[in.args[0]]
	case opMatch:
		s += fmt.Sprintf(" %s", pg.Ms[in.args[0]])
	case opStoreIfT:
		s += " " + pg.Ss[in.args[0]]
	}
	return s
}

// Tracer observes VM execution one instruction at a time. The default
// tracer used when Debug(true) is set without WithTracer logs through
// logrus, matching the rest of the module's logging stack.
type Tracer interface {
	TraceStep(pc int, in fmt.Stringer)
}

// logrusTracer is the default Tracer: one Debug-level entry per step,
// with the program counter and rule name as structured fields.
type logrusTracer struct {
	log *logrus.Logger
	pg  *Program
}

func (t *logrusTracer) TraceStep(pc int, in fmt.Stringer) {
	t.log.WithFields(logrus.Fields{
		"pc":   pc,
		"rule": t.pg.ruleOfInstr(pc),
	}).Debug(in.String())
}

// memoKey identifies a memoized match attempt: one instruction run at
// one input offset.
type memoKey struct {
	ix     uint16
	offset int
}

// memoizedResult holds a cached match outcome, keyed by instruction
// index and input offset.
type memoizedResult struct {
	v  interface{}
	pt svpt
}

// ffp tracks the farthest failure position seen so far, used to build
// the "expected X but found Y" error when nothing at all matches.
type ffp struct {
	pos  position
	rule string
	rn   rune
	want string
}

func (f ffp) err() error {
	if f.pos.offset < 0 {
		return nil
	}
	return f
}

func (f ffp) Error() string {
	return fmt.Sprintf("expected %q, got %#U", f.want, f.rn)
}

// Option configures a VM run. Each Option returns the previous value so
// callers can restore it, mirroring flag.Var-style functional options.
type Option func(*VM) Option

// Debug turns on instruction tracing (default false).
func Debug(b bool) Option {
	return func(v *VM) Option {
		old := v.debug
		v.debug = b
		return Debug(old)
	}
}

// Memoize turns on match memoization, trading memory for a linear-time
// guarantee even on pathological grammars (default false).
func Memoize(b bool) Option {
	return func(v *VM) Option {
		old := v.memoize
		v.memoize = b
		return Memoize(old)
	}
}

// MemoCacheSize overrides the number of (instruction, offset) entries the
// memoization cache retains before evicting the least-recently-used one
// (default defaultMemoCacheSize). Only meaningful with Memoize(true).
func MemoCacheSize(n int) Option {
	return func(v *VM) Option {
		old := v.memoCacheSize
		v.memoCacheSize = n
		return MemoCacheSize(old)
	}
}

// Recover turns on panic recovery, converting a panic during execution
// into a returned error instead of crashing the caller (default true).
func Recover(b bool) Option {
	return func(v *VM) Option {
		old := v.recover
		v.recover = b
		return Recover(old)
	}
}

// WithTracer installs a custom Tracer, used only when Debug(true) is
// also set.
func WithTracer(t Tracer) Option {
	return func(v *VM) Option {
		old := v.tracer
		v.tracer = t
		return WithTracer(old)
	}
}

// VM executes one Program against one input; Run constructs and drives
// one to completion in a single call.
type VM struct {
	filename string
	in       cursor
	pg       *Program

	debug         bool
	memoize       bool
	memoCacheSize int
	recover       bool
	tracer        Tracer

	pc  uint16
	cur current
	p   *pstack
	l   *lstack
	v   *vstack
	i   *istack
	a   *astack
	ffp ffp

	memo *lru.Cache[memoKey, memoizedResult]

	matchCnt    int
	callCnt     int
	actionCnt   int
	codePredCnt int

	errs errList
}

// Run parses b against pg and returns the start rule's result, or a
// non-nil error — either an errList of diagnostics recorded along the
// way or the ffp-derived "furthest failure" when nothing else was
// reported.
func Run(filename string, b []byte, pg *Program, opts ...Option) (interface{}, error) {
	v := &VM{
		filename: filename,
		in:       cursor{data: b, pt: svpt{position: position{line: 1}}},
		recover:  true,
	}
	for _, o := range opts {
		o(v)
	}
	if v.debug && v.tracer == nil {
		v.tracer = &logrusTracer{log: logrus.StandardLogger(), pg: pg}
	}
	if v.memoize {
		size := v.memoCacheSize
		if size <= 0 {
			size = defaultMemoCacheSize
		}
		v.memo, _ = lru.New[memoKey, memoizedResult](size)
	}
	return v.run(pg)
}

func (v *VM) fromMemo(ix uint16, pt svpt) (interface{}, bool) {
	if v.memo == nil {
		return nil, false
	}
	r, ok := v.memo.Get(memoKey{ix, pt.offset})
	if !ok {
		return nil, false
	}
	v.in.pt = r.pt
	return r.v, true
}

func (v *VM) memoizeMatch(ix uint16, pt svpt, matched bool) {
	if v.memo == nil {
		return
	}
	key := memoKey{ix, pt.offset}
	if matched {
		v.memo.Add(key, memoizedResult{v.in.sliceFrom(pt), v.in.pt})
		return
	}
	v.memo.Add(key, memoizedResult{matchFailed, pt})
}

func (v *VM) addErr(err error) {
	v.addErrAt(err, "", v.in.pt.position)
}

func (v *VM) addErrAt(err error, rule string, pos position) {
	prefix := ""
	if v.filename != "" {
		prefix = v.filename
	}
	if prefix != "" {
		prefix += ":"
	}
	prefix += pos.String()
	if rule != "" {
		prefix += ": rule " + rule
	}
	v.errs.add(&parserError{Inner: err, prefix: prefix})
}

func (v *VM) run(pg *Program) (interface{}, error) {
	v.pg = pg
	v.a = newAstack(128)
	v.i = newIstack(128)
	v.v = newVstack(128)
	v.l = newLstack(128)
	v.p = newPstack(128)
	v.ffp.pos.offset = -1

	ret := v.dispatch()
	if ret == matchFailed {
		ret = nil
		if len(v.errs) == 0 {
			if err := v.ffp.err(); err != nil {
				v.addErrAt(err, v.ffp.rule, v.ffp.pos)
			} else {
				v.addErr(errNoMatch)
			}
		}
	}
	return ret, v.errs.err()
}

func (v *VM) dispatch() interface{} {
	if v.recover {
		defer func() {
			if e := recover(); e != nil {
				rule := ""
				if v.pc > 0 {
					rule = v.pg.ruleOfInstr(int(v.pc) - 1)
				}
				if err, ok := e.(error); ok {
					v.addErrAt(err, rule, v.in.pt.position)
				} else {
					v.addErrAt(fmt.Errorf("%v", e), rule, v.in.pt.position)
				}
			}
		}()
	}

	v.in.read()
	for {
		in := v.pg.Instrs[v.pc]
		pc := v.pc
		v.pc++

		if v.debug && v.tracer != nil {
			v.tracer.TraceStep(int(pc), in)
		}

		switch in.op {
		case opCall:
			ix := v.i.pop()
			v.i.push(v.pc)
			v.pc = ix
			v.callCnt++

		case opCallA:
			v.v.pop()
			start := v.p.pop()
			v.cur.pos = start.position
			v.cur.text = v.in.sliceFrom(start)
			if int(in.args[0]) >= len(v.pg.As) {
				panic(fmt.Sprintf("invalid %s argument: %d", in.op, in.args[0]))
			}
			val, err := v.pg.As[in.args[0]](v)
			if err != nil {
				v.addErrAt(err, v.pg.ruleOfInstr(int(pc)), start.position)
			}
			v.v.push(val)
			v.actionCnt++

		case opCallB:
			v.cur.pos = v.in.pt.position
			v.cur.text = nil
			if int(in.args[0]) >= len(v.pg.Bs) {
				panic(fmt.Sprintf("invalid %s argument: %d", in.op, in.args[0]))
			}
			ok, err := v.pg.Bs[in.args[0]](v)
			if err != nil {
				v.addErrAt(err, v.pg.ruleOfInstr(int(pc)), v.in.pt.position)
			}
			v.codePredCnt++
			if !ok {
				v.v.push(matchFailed)
				break
			}
			v.v.push(nil)

		case opCumulOrF:
			va, vb := v.v.pop(), v.v.pop()
			if va == matchFailed {
				v.v.push(matchFailed)
				break
			}
			switch vb := vb.(type) {
			case []interface{}:
				v.v.push(append(vb, va))
			case sentinel:
				v.v.push([]interface{}{va})
			default:
				panic(fmt.Sprintf("invalid %s value type on the V stack: %T", in.op, vb))
			}

		case opExit:
			return v.v.pop()

		case opJump:
			v.pc = in.args[0]

		case opJumpIfF:
			if v.v.peek() == matchFailed {
				v.pc = in.args[0]
			}

		case opJumpIfT:
			if v.v.peek() != matchFailed {
				v.pc = in.args[0]
			}

		case opMatch:
			start := v.in.pt
			if v.memoize {
				if cached, ok := v.fromMemo(pc, start); ok {
					v.v.push(cached)
					break
				}
			}
			if int(in.args[0]) >= len(v.pg.Ms) {
				panic(fmt.Sprintf("invalid %s argument: %d", in.op, in.args[0]))
			}
			m := v.pg.Ms[in.args[0]]
			ok := m.match(&v.in)
			if v.memoize {
				v.memoizeMatch(pc, start, ok)
			}
			v.matchCnt++
			if ok {
				v.v.push(v.in.sliceFrom(start))
				break
			}
			if start.offset > v.ffp.pos.offset {
				v.ffp.pos = start.position
				v.ffp.rn = start.rn
				v.ffp.rule = v.pg.ruleOfInstr(int(pc))
				v.ffp.want = fmt.Sprintf("%s", m)
			}
			v.v.push(matchFailed)
			v.in.pt = start

		case opNilIfF:
			if v.v.pop() == matchFailed {
				v.v.push(nil)
				break
			}
			v.v.push(matchFailed)

		case opNilIfT:
			if v.v.pop() != matchFailed {
				v.v.push(nil)
				break
			}
			v.v.push(matchFailed)

		case opPop:
			switch in.args[0] {
			case lstackID:
				v.l.pop()
			case pstackID:
				v.p.pop()
			case astackID:
				v.a.pop()
			case vstackID:
				v.v.pop()
			default:
				panic(fmt.Sprintf("invalid %s argument: %d", in.op, in.args[0]))
			}

		case opPopVJumpIfF:
			if v.v.peek() == matchFailed {
				v.v.pop()
				v.pc = in.args[0]
			}

		case opPush:
			switch in.args[0] {
			case pstackID:
				v.p.push(v.in.pt)
			case istackID:
				v.i.push(in.args[1])
			case vstackID:
				if int(in.args[1]) >= len(vSpecialValues) {
					panic(fmt.Sprintf("invalid %s V stack argument: %d", in.op, in.args[1]))
				}
				v.v.push(vSpecialValues[in.args[1]])
			case astackID:
				v.a.push()
			case lstackID:
				v.l.push(in.args[1:])
			default:
				panic(fmt.Sprintf("invalid %s argument: %d", in.op, in.args[0]))
			}

		case opRestore:
			v.in.pt = v.p.pop()

		case opRestoreIfF:
			pt := v.p.pop()
			if v.v.peek() == matchFailed {
				v.in.pt = pt
			}

		case opReturn:
			v.pc = v.i.pop()

		case opStoreIfT:
			if v.v.peek() != matchFailed {
				if int(in.args[0]) >= len(v.pg.Ss) {
					panic(fmt.Sprintf("invalid %s argument: %d", in.op, in.args[0]))
				}
				v.a.peek()[v.pg.Ss[in.args[0]]] = v.v.peek()
			}

		case opTakeLOrJump:
			ix := v.l.take()
			if ix < 0 {
				v.pc = in.args[0]
				break
			}
			v.i.push(uint16(ix))

		default:
			panic(fmt.Sprintf("unknown opcode %s", in.op))
		}
	}
}

