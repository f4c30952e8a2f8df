package compiler

import "github.com/peggylang/peggy/vm"

// builder accumulates a flat instruction stream plus the side tables a
// vm.Program needs, and resolves forward references (rule calls to
// rules not yet compiled) once every rule has been emitted.
type builder struct {
	instrs      []instrRec
	ms          []vm.Matcher
	msSpec      []MatcherSpec // parallel to ms; what addMatcher built it from
	as          []vm.ActionFunc
	asInfo      []ThunkInfo // parallel to as
	bs          []vm.PredicateFunc
	bsInfo      []ThunkInfo // parallel to bs
	strs        []string
	strIx       map[string]int
	ruleStart   map[string]int
	ruleOfInstr []int // parallel to instrs, filled in as we go
	curRule     int   // index into strs of the rule currently being compiled, -1 outside any rule

	fixups []fixup
}

// instrRec mirrors vm's unexported instr shape; compiler builds its own
// copy so it never needs package vm to export its bytecode internals.
type instrRec struct {
	op   vm.Op
	args []int
}

type fixup struct {
	instrIx int
	argIx   int
	rule    string
}

func newBuilder() *builder {
	return &builder{
		strIx:     make(map[string]int),
		ruleStart: make(map[string]int),
		curRule:   -1,
	}
}

func (b *builder) intern(s string) int {
	if ix, ok := b.strIx[s]; ok {
		return ix
	}
	ix := len(b.strs)
	b.strs = append(b.strs, s)
	b.strIx[s] = ix
	return ix
}

// emit appends one instruction and returns its index.
func (b *builder) emit(op vm.Op, args ...int) int {
	ix := len(b.instrs)
	b.instrs = append(b.instrs, instrRec{op: op, args: args})
	b.ruleOfInstr = append(b.ruleOfInstr, b.curRule)
	return ix
}

// here returns the index the next emitted instruction will occupy.
func (b *builder) here() int { return len(b.instrs) }

// patch overwrites the argIx'th argument of the instruction at instrIx.
func (b *builder) patch(instrIx, argIx, value int) {
	b.instrs[instrIx].args[argIx] = value
}

// patchJumpTo points the jump instruction at instrIx at the current end
// of the stream (its first argument is always the jump target).
func (b *builder) patchJumpTo(instrIx int) {
	b.patch(instrIx, 0, b.here())
}

// addMatcher registers a terminal matcher and returns its index. spec
// records what m was built from, for emit's benefit: emit never runs a
// vm.Matcher, it renders one as literal Go source, so it needs the
// description, not the opaque value.
func (b *builder) addMatcher(m vm.Matcher, spec MatcherSpec) int {
	b.ms = append(b.ms, m)
	b.msSpec = append(b.msSpec, spec)
	return len(b.ms) - 1
}

// addAction registers a native action thunk and returns its index. info
// is the ThunkInfo the resolver was given to produce fn; emit renders
// info.Code directly instead of calling fn.
func (b *builder) addAction(fn vm.ActionFunc, info ThunkInfo) int {
	b.as = append(b.as, fn)
	b.asInfo = append(b.asInfo, info)
	return len(b.as) - 1
}

// addPredicate is addAction's counterpart for semantic predicates.
func (b *builder) addPredicate(fn vm.PredicateFunc, info ThunkInfo) int {
	b.bs = append(b.bs, fn)
	b.bsInfo = append(b.bsInfo, info)
	return len(b.bs) - 1
}

// callRule emits the push+call pair for invoking the named rule,
// recording a fixup if the rule hasn't been compiled yet.
func (b *builder) callRule(name string) {
	pushIx := b.emit(vm.OpPush, int(vm.IstackID), 0)
	if start, ok := b.ruleStart[name]; ok {
		b.patch(pushIx, 1, start)
	} else {
		b.fixups = append(b.fixups, fixup{instrIx: pushIx, argIx: 1, rule: name})
	}
	b.emit(vm.OpCall)
}

// resolveFixups patches every forward rule reference now that all
// rules have been compiled. It returns an error naming the first
// still-undefined rule, if any.
func (b *builder) resolveFixups() error {
	for _, f := range b.fixups {
		start, ok := b.ruleStart[f.rule]
		if !ok {
			return &UndefinedRuleError{Rule: f.rule}
		}
		b.patch(f.instrIx, f.argIx, start)
	}
	return nil
}

// program assembles the final vm.Program from the builder's state.
func (b *builder) program() *vm.Program {
	instrs := make([]vm.Instr, len(b.instrs))
	for i, r := range b.instrs {
		instrs[i] = vm.NewInstr(r.op, r.args...)
	}
	return &vm.Program{
		Instrs:      instrs,
		Ms:          b.ms,
		As:          b.as,
		Bs:          b.bs,
		Ss:          b.strs,
		InstrToRule: b.ruleOfInstr,
	}
}

// UndefinedRuleError is returned when a rule_ref has no corresponding
// rule after the whole grammar has been compiled; analysis's undefined
// rule pass should normally catch this first.
type UndefinedRuleError struct{ Rule string }

func (e *UndefinedRuleError) Error() string { return "undefined rule: " + e.Rule }
