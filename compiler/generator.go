// Package compiler lowers a grammar AST (package ast, as produced by
// dslparser and mutated by the analysis passes) into a vm.Program: the
// flat bytecode stack machine in package vm executes directly, and
// package emit renders as literal Go source (spec.md §4.4).
//
// The lowering here is correctness-first, not size- or speed-optimized:
// every expression wraps itself in a save/restore around its own body
// rather than threading position state through its caller, so a rule
// invoked through a call gets an extra, harmless save/restore on top of
// its own. Real generators fold these away; this one doesn't bother,
// since nothing here depends on exact instruction counts.
package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/peggylang/peggy/ast"
	"github.com/peggylang/peggy/vm"
)

// Generate compiles every rule of g, plus the library rules they
// reference, into a vm.Program whose entry point is startRule (or the
// grammar's first rule, if startRule is empty).
// library_ref expressions are resolved against imports, supplied
// through WithImports; a reference to an alias not present there is a
// compile error.
func Generate(g *ast.Grammar, startRule string, opts ...Option) (*vm.Program, error) {
	b, err := compileToBuilder(g, startRule, opts)
	if err != nil {
		return nil, err
	}
	return b.program(), nil
}

// compileToBuilder runs the whole lowering pipeline and hands back the
// builder itself, so Generate can discard the literal-source metadata
// and Compile can keep it.
func compileToBuilder(g *ast.Grammar, startRule string, opts []Option) (*builder, error) {
	if len(g.Rules) == 0 {
		return nil, fmt.Errorf("compiler: grammar has no rules")
	}
	cfg := newConfig(opts)
	b := newBuilder()
	gen := &genState{b: b, cfg: cfg, pickNames: map[*ast.LabeledExpr]string{}}

	queued := map[string]bool{}
	var queue []workItem
	enqueue := func(qualified, alias string, gram *ast.Grammar, rule *ast.Rule) string {
		if !queued[qualified] {
			queued[qualified] = true
			queue = append(queue, workItem{qualified, alias, gram, rule})
		}
		return qualified
	}
	gen.enqueueLibraryRule = func(alias string, gram *ast.Grammar, rule *ast.Rule) string {
		return enqueue(alias+"."+rule.Name, alias, gram, rule)
	}
	for _, r := range g.Rules {
		enqueue(r.Name, "", g, r)
	}

	start := startRule
	if start == "" {
		start = g.Rules[0].Name
	}
	if !queued[start] {
		return nil, fmt.Errorf("compiler: unknown start rule %q", start)
	}

	bootPush := b.emit(vm.OpPush, vm.IstackID, 0)
	b.fixups = append(b.fixups, fixup{instrIx: bootPush, argIx: 1, rule: start})
	b.emit(vm.OpCall)
	b.emit(vm.OpExit)

	for i := 0; i < len(queue); i++ {
		item := queue[i]
		gen.compileRule(item)
		if gen.err != nil {
			return nil, gen.err
		}
	}

	if err := b.resolveFixups(); err != nil {
		return nil, err
	}
	return b, nil
}

type workItem struct {
	qualified string
	alias     string
	grammar   *ast.Grammar
	rule      *ast.Rule
}

// genState is the mutable context threaded through one Generate call.
type genState struct {
	b   *builder
	cfg *Config
	err error

	curGrammar   *ast.Grammar
	libraryAlias string
	curRuleName  string
	scope        []string // labels bound so far in the rule being compiled

	pickNames map[*ast.LabeledExpr]string
	pickSeq   int
	boundSeq  int

	enqueueLibraryRule func(alias string, gram *ast.Grammar, rule *ast.Rule) string
}

func (g *genState) internalPickName() string {
	g.pickSeq++
	return fmt.Sprintf("$pick%d", g.pickSeq)
}

func (g *genState) internalBoundName() string {
	g.boundSeq++
	return fmt.Sprintf("$bound%d", g.boundSeq)
}

func (g *genState) compileRule(item workItem) {
	g.curGrammar = item.grammar
	g.libraryAlias = item.alias
	g.curRuleName = item.qualified
	g.scope = g.scope[:0]

	g.b.curRule = g.b.intern(item.qualified)
	g.b.ruleStart[item.qualified] = g.b.here()

	g.b.emit(vm.OpPush, vm.AstackID)
	g.compileExpr(item.rule.Expr)
	g.b.emit(vm.OpPop, vm.AstackID)
	g.b.emit(vm.OpReturn)

	g.b.curRule = -1
}

// wrap emits the standard save/restore-on-failure shell around body,
// which must leave exactly one value on the V stack.
func (g *genState) wrap(body func()) {
	g.b.emit(vm.OpPush, vm.PstackID)
	body()
	g.b.emit(vm.OpRestoreIfF)
}

func (g *genState) compileExpr(e ast.Expr) {
	if g.err != nil {
		return
	}
	switch e := e.(type) {
	case *ast.LiteralExpr:
		g.wrap(func() { g.compileLiteral(e) })
	case *ast.ClassExpr:
		g.wrap(func() { g.compileClass(e) })
	case *ast.AnyExpr:
		g.wrap(func() {
			mIx := g.b.addMatcher(vm.NewAnyMatcher(), MatcherSpec{Kind: MatcherAny})
			g.b.emit(vm.OpMatch, mIx)
		})
	case *ast.RuleRefExpr:
		g.wrap(func() { g.compileRuleRef(e) })
	case *ast.LibraryRefExpr:
		g.compileLibraryRef(e)
	case *ast.SeqExpr:
		g.wrap(func() { g.compileSeq(e) })
	case *ast.ChoiceExpr:
		g.wrap(func() { g.compileChoice(e) })
	case *ast.OptionalExpr:
		g.wrap(func() { g.compileOptional(e) })
	case *ast.ZeroOrMoreExpr:
		g.wrap(func() { g.compileZeroOrMore(e) })
	case *ast.OneOrMoreExpr:
		g.wrap(func() { g.compileRepeatLoop(e.Expr, nil) })
	case *ast.RepeatedExpr:
		g.wrap(func() { g.compileRepeated(e) })
	case *ast.GroupExpr:
		g.compileExpr(e.Expr)
	case *ast.LabeledExpr:
		g.compileLabeled(e)
	case *ast.TextExpr:
		g.compileActionLike(e.Expr, func(v *vm.VM) (interface{}, error) {
			return v.Text(), nil
		}, ThunkInfo{Rule: g.curRuleName, Labels: append([]string(nil), g.scope...), Native: "text"})
	case *ast.SimpleAndExpr:
		g.compileLookahead(e.Expr, true)
	case *ast.SimpleNotExpr:
		g.compileLookahead(e.Expr, false)
	case *ast.SemanticAndExpr:
		g.compileSemantic(e.Code, true)
	case *ast.SemanticNotExpr:
		g.compileSemantic(e.Code, false)
	case *ast.ActionExpr:
		g.compileAction(e)
	case *ast.NamedExpr:
		g.compileNamed(e)
	default:
		g.err = fmt.Errorf("compiler: unhandled expression type %T", e)
	}
}

func (g *genState) compileLiteral(e *ast.LiteralExpr) {
	val := e.Value
	if e.IgnoreCase {
		val = strings.ToLower(val)
	}
	mIx := g.b.addMatcher(vm.NewStringMatcher(val, e.IgnoreCase), MatcherSpec{Kind: MatcherLiteral, Value: val, IgnoreCase: e.IgnoreCase})
	g.b.emit(vm.OpMatch, mIx)
}

func (g *genState) classSpec(e *ast.ClassExpr) vm.CharClassSpec {
	spec := vm.CharClassSpec{IgnoreCase: e.IgnoreCase, Inverted: e.Inverted}
	for _, p := range e.Parts {
		switch {
		case p.IsClass:
			spec.Classes = append(spec.Classes, p.ClassName)
			spec.ClassNegated = append(spec.ClassNegated, p.Negated)
		case p.IsRange:
			lo, hi := p.Lo, p.Hi
			if e.IgnoreCase {
				lo, hi = unicode.ToLower(lo), unicode.ToLower(hi)
			}
			spec.Ranges = append(spec.Ranges, lo, hi)
		default:
			ch := p.Single
			if e.IgnoreCase {
				ch = unicode.ToLower(ch)
			}
			spec.Chars = append(spec.Chars, ch)
		}
	}
	return spec
}

func (g *genState) compileClass(e *ast.ClassExpr) {
	spec := g.classSpec(e)
	mIx := g.b.addMatcher(vm.NewCharClassMatcher(spec), MatcherSpec{Kind: MatcherClass, IgnoreCase: e.IgnoreCase, Class: spec})
	g.b.emit(vm.OpMatch, mIx)
}

// qualify returns how a bare rule name inside the grammar currently
// being compiled (host or imported) should be called.
func (g *genState) qualify(name string) string {
	if g.libraryAlias == "" {
		return name
	}
	return g.libraryAlias + "." + name
}

func (g *genState) compileRuleRef(e *ast.RuleRefExpr) {
	if g.libraryAlias != "" {
		if rule := g.curGrammar.RuleByName(e.Name); rule != nil {
			g.enqueueLibraryRule(g.libraryAlias, g.curGrammar, rule)
		}
	}
	g.b.callRule(g.qualify(e.Name))
}

func (g *genState) compileLibraryRef(e *ast.LibraryRefExpr) {
	gram, ok := g.cfg.Imports[e.Import]
	if !ok {
		g.err = fmt.Errorf("compiler: unresolved import %q (rule reference %q)", e.Import, e.Rule)
		return
	}
	rule := gram.RuleByName(e.Rule)
	if rule == nil {
		g.err = fmt.Errorf("compiler: import %q has no rule %q", e.Import, e.Rule)
		return
	}
	qualified := g.enqueueLibraryRule(e.Import, gram, rule)
	g.wrap(func() { g.b.callRule(qualified) })
}

// seqPickLabel scans a sequence for a pick element (bare "@" or
// "@name:"), assigning an internal storage name to an unlabeled pick so
// its value survives to be re-extracted after accumulation.
func (g *genState) seqPickLabel(e *ast.SeqExpr) string {
	var label string
	for _, sub := range e.Exprs {
		le, ok := sub.(*ast.LabeledExpr)
		if !ok || !le.Pick {
			continue
		}
		name := le.Label
		if !le.HasLabel {
			name = g.internalPickName()
			g.pickNames[le] = name
		}
		label = name
	}
	return label
}

func (g *genState) compileSeq(e *ast.SeqExpr) {
	pick := g.seqPickLabel(e)
	g.b.emit(vm.OpPush, vm.VstackID, vm.VValFailed)
	var shortCircuits []int
	for i, sub := range e.Exprs {
		g.compileExpr(sub)
		g.b.emit(vm.OpCumulOrF)
		if i != len(e.Exprs)-1 {
			shortCircuits = append(shortCircuits, g.b.emit(vm.OpJumpIfF, 0))
		}
	}
	for _, ix := range shortCircuits {
		g.b.patchJumpTo(ix)
	}
	if pick != "" {
		g.emitPick(pick)
	}
}

// emitPick replaces the sequence's accumulated-array result with the
// single labeled value name, once the whole sequence has succeeded.
func (g *genState) emitPick(name string) {
	g.b.emit(vm.OpPush, vm.PstackID)
	failIx := g.b.emit(vm.OpJumpIfF, 0)
	actionIx := g.b.addAction(func(v *vm.VM) (interface{}, error) {
		return v.Arg(name), nil
	}, ThunkInfo{Rule: g.curRuleName, Native: "pick:" + name})
	g.b.emit(vm.OpCallA, actionIx)
	doneIx := g.b.emit(vm.OpJump, 0)
	g.b.patchJumpTo(failIx)
	g.b.emit(vm.OpPop, vm.VstackID)
	g.b.emit(vm.OpPop, vm.PstackID)
	g.b.emit(vm.OpPush, vm.VstackID, vm.VValFailed)
	g.b.patchJumpTo(doneIx)
}

func (g *genState) compileChoice(e *ast.ChoiceExpr) {
	var ends []int
	for i, alt := range e.Alternatives {
		g.compileExpr(alt)
		if i != len(e.Alternatives)-1 {
			ends = append(ends, g.b.emit(vm.OpJumpIfT, 0))
			g.b.emit(vm.OpPop, vm.VstackID)
		}
	}
	for _, ix := range ends {
		g.b.patchJumpTo(ix)
	}
}

func (g *genState) compileOptional(e *ast.OptionalExpr) {
	g.compileExpr(e.Expr)
	g.convertFailureTo(vm.VValNil)
}

func (g *genState) compileZeroOrMore(e *ast.ZeroOrMoreExpr) {
	g.compileRepeatLoop(e.Expr, nil)
	g.convertFailureTo(vm.VValEmpty)
}

// convertFailureTo replaces a matchFailed top with the given special V
// value, leaving a successful result untouched.
func (g *genState) convertFailureTo(specialVal int) {
	ok := g.b.emit(vm.OpJumpIfT, 0)
	g.b.emit(vm.OpPop, vm.VstackID)
	g.b.emit(vm.OpPush, vm.VstackID, specialVal)
	g.b.patchJumpTo(ok)
}

// compileDelimThenElem matches delim then elem, yielding elem's value
// (delim's own match is discarded) or matchFailed if either part fails.
func (g *genState) compileDelimThenElem(delim, elem ast.Expr) {
	g.wrap(func() {
		g.compileExpr(delim)
		failIx := g.b.emit(vm.OpJumpIfF, 0)
		g.b.emit(vm.OpPop, vm.VstackID)
		g.compileExpr(elem)
		g.b.patchJumpTo(failIx)
	})
}

// compileRepeatLoop is the dynamic, unbounded accumulation loop behind
// "+" and "*". It stops greedily at the first failing attempt, keeping
// whatever matched so far, and ends with matchFailed on top only if
// zero iterations matched at all. Bounded repetition ("expr|min,max|")
// goes through compileRepeated instead, which also enforces min/max.
func (g *genState) compileRepeatLoop(elem, delim ast.Expr) {
	g.b.emit(vm.OpPush, vm.VstackID, vm.VValFailed)
	var stops []int

	g.compileExpr(elem)
	stops = append(stops, g.b.emit(vm.OpPopVJumpIfF, 0))
	g.b.emit(vm.OpCumulOrF)

	loopStart := g.b.here()
	if delim != nil {
		g.compileDelimThenElem(delim, elem)
	} else {
		g.compileExpr(elem)
	}
	stops = append(stops, g.b.emit(vm.OpPopVJumpIfF, 0))
	g.b.emit(vm.OpCumulOrF)
	g.b.emit(vm.OpJump, loopStart)

	for _, ix := range stops {
		g.b.patchJumpTo(ix)
	}
}

// resolvedBound is a RepeatedExpr boundary once it's in a form the loop
// compilers below can gate on: either known at compile time (isConst),
// or evaluated once at the start of the repetition into an internal
// label that later gates read back via v.Arg (label). none is only
// meaningful for Max: BoundNone there means no upper bound at all.
type resolvedBound struct {
	none     bool
	isConst  bool
	constVal int
	label    string
}

// resolveBound evaluates e's boundary once, at the point the repeated
// expression starts, mirroring compileSemantic's existing v.Arg(name)
// access for BoundVar and the ActionResolver machinery compileAction
// uses for BoundCode. which names the boundary ("min" or "max") for the
// synthesized thunk's diagnostics only.
func (g *genState) resolveBound(b ast.Bound, which string) resolvedBound {
	switch b.Kind {
	case ast.BoundConst:
		return resolvedBound{isConst: true, constVal: b.Const}
	case ast.BoundVar:
		label := g.internalBoundName()
		g.emitEvalBoundToLabel(label, func(v *vm.VM) (interface{}, error) {
			return v.Arg(b.Var), nil
		}, ThunkInfo{Rule: g.curRuleName, Native: "boundvar:" + b.Var})
		return resolvedBound{label: label}
	case ast.BoundCode:
		label := g.internalBoundName()
		info := ThunkInfo{Rule: g.curRuleName, Code: *b.Code, Labels: append([]string(nil), g.scope...)}
		fn, err := g.cfg.ActionResolver(info)
		if err != nil {
			g.err = err
			return resolvedBound{}
		}
		g.emitEvalBoundToLabel(label, fn, info)
		return resolvedBound{label: label}
	default: // BoundNone
		if which == "max" {
			return resolvedBound{none: true}
		}
		return resolvedBound{isConst: true, constVal: 0}
	}
}

// emitEvalBoundToLabel runs fn once and stores its result under label in
// the rule's current scope, the same way a labeled expression stores
// its value, so a later gate can read it back with v.Arg(label).
func (g *genState) emitEvalBoundToLabel(label string, fn vm.ActionFunc, info ThunkInfo) {
	g.b.emit(vm.OpPush, vm.VstackID, vm.VValNil) // placeholder for OpCallA's pop
	g.b.emit(vm.OpPush, vm.PstackID)
	actionIx := g.b.addAction(fn, info)
	g.b.emit(vm.OpCallA, actionIx)
	ix := g.b.intern(label)
	g.b.emit(vm.OpStoreIfT, ix)
	g.b.emit(vm.OpPop, vm.VstackID)
}

// boundValueToInt coerces a label's bound runtime value (an int from a
// user action, or raw matched text) to the integer a bound expects.
func boundValueToInt(val interface{}) (int, bool) {
	switch t := val.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case []byte:
		n, err := strconv.Atoi(string(t))
		return n, err == nil
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil
	default:
		return 0, false
	}
}

// compileRepeated handles "expr|min..max, delim|". A constant Max is
// unrolled at compile time; anything else (a label reference or a code
// block) is compiled as a dynamic loop that stops once the runtime
// bound is reached. Either way min is enforced, constant or not.
func (g *genState) compileRepeated(e *ast.RepeatedExpr) {
	if e.Max.Kind == ast.BoundConst {
		g.compileRepeatedUnrolled(e)
		return
	}
	g.compileRepeatedBounded(e)
}

func (g *genState) compileRepeatedUnrolled(e *ast.RepeatedExpr) {
	max := e.Max.Const
	min := g.resolveBound(e.Min, "min")
	if g.err != nil {
		return
	}
	g.b.emit(vm.OpPush, vm.VstackID, vm.VValFailed)
	var stops []int
	for i := 0; i < max; i++ {
		if i > 0 && e.Delim != nil {
			g.compileDelimThenElem(e.Delim, e.Expr)
		} else {
			g.compileExpr(e.Expr)
		}
		stops = append(stops, g.b.emit(vm.OpPopVJumpIfF, 0))
		g.b.emit(vm.OpCumulOrF)
	}
	for _, ix := range stops {
		g.b.patchJumpTo(ix)
	}
	g.emitMinBoundCheck(min)
}

// compileRepeatedBounded handles a RepeatedExpr whose Max is a label
// reference or code block, so the upper bound isn't known until the
// repetition starts running: min and max are each evaluated once, and a
// gate in front of every iteration attempt stops the loop as soon as
// the accumulated count reaches max, the same way compileRepeatLoop
// stops on the first failing match.
func (g *genState) compileRepeatedBounded(e *ast.RepeatedExpr) {
	min := g.resolveBound(e.Min, "min")
	max := g.resolveBound(e.Max, "max")
	if g.err != nil {
		return
	}

	g.b.emit(vm.OpPush, vm.VstackID, vm.VValFailed)
	var stops []int

	g.emitMaxGate(max, &stops)
	g.compileExpr(e.Expr)
	stops = append(stops, g.b.emit(vm.OpPopVJumpIfF, 0))
	g.b.emit(vm.OpCumulOrF)

	loopStart := g.b.here()
	g.emitMaxGate(max, &stops)
	if e.Delim != nil {
		g.compileDelimThenElem(e.Delim, e.Expr)
	} else {
		g.compileExpr(e.Expr)
	}
	stops = append(stops, g.b.emit(vm.OpPopVJumpIfF, 0))
	g.b.emit(vm.OpCumulOrF)
	g.b.emit(vm.OpJump, loopStart)

	for _, ix := range stops {
		g.b.patchJumpTo(ix)
	}
	g.emitMinBoundCheck(min)
}

// emitMaxGate stops the repetition loop (jumping to a stop target
// appended to stops) once the accumulator already holds max elements,
// read back from max.label if max isn't a compile-time constant. A
// BoundNone max (no upper bound) emits nothing.
func (g *genState) emitMaxGate(max resolvedBound, stops *[]int) {
	if max.none {
		return
	}
	label := max.label
	predIx := g.b.addPredicate(func(v *vm.VM) (bool, error) {
		arr, _ := v.Peek().([]interface{})
		want, ok := boundValueToInt(v.Arg(label))
		if !ok {
			return true, nil
		}
		return len(arr) < want, nil
	}, ThunkInfo{Rule: g.curRuleName, Native: "maxgate:" + label})
	g.b.emit(vm.OpCallB, predIx)
	*stops = append(*stops, g.b.emit(vm.OpPopVJumpIfF, 0))
	g.b.emit(vm.OpPop, vm.VstackID) // discard the gate's nil, keep acc
}

// emitMinBoundCheck fails the repetition (or, for a zero-allowing min,
// turns a clean zero-iteration matchFailed into a successful empty
// match) once the loop above it has finished accumulating.
func (g *genState) emitMinBoundCheck(min resolvedBound) {
	if min.isConst {
		if min.constVal <= 0 {
			g.convertFailureTo(vm.VValEmpty)
			return
		}
		if min.constVal > 1 {
			g.emitMinLengthCheck(min.constVal)
		}
		return
	}

	label := min.label
	// A zero-iteration matchFailed is only a real failure if min turns
	// out to require at least one match; convertFailureTo itself leaves
	// an already-successful match untouched.
	zeroOkIx := g.b.addPredicate(func(v *vm.VM) (bool, error) {
		mv, ok := boundValueToInt(v.Arg(label))
		return ok && mv <= 0, nil
	}, ThunkInfo{Rule: g.curRuleName, Native: "minbound-zero:" + label})
	g.b.emit(vm.OpCallB, zeroOkIx)
	skipConvert := g.b.emit(vm.OpJumpIfF, 0)
	g.b.emit(vm.OpPop, vm.VstackID)
	g.convertFailureTo(vm.VValEmpty)
	convertDone := g.b.emit(vm.OpJump, 0)
	g.b.patchJumpTo(skipConvert)
	g.b.emit(vm.OpPop, vm.VstackID)
	g.b.patchJumpTo(convertDone)

	g.emitLengthGate(func(v *vm.VM) (bool, error) {
		arr, _ := v.Peek().([]interface{})
		mv, ok := boundValueToInt(v.Arg(label))
		if !ok {
			return true, nil
		}
		return len(arr) >= mv, nil
	}, ThunkInfo{Rule: g.curRuleName, Native: "minbound-len:" + label})
}

// emitMinLengthCheck fails the match if the accumulated slice on top of
// V has fewer than min elements.
func (g *genState) emitMinLengthCheck(min int) {
	g.emitLengthGate(func(v *vm.VM) (bool, error) {
		arr, _ := v.Peek().([]interface{})
		return len(arr) >= min, nil
	}, ThunkInfo{Rule: g.curRuleName, Native: fmt.Sprintf("minlen:%d", min)})
}

// emitLengthGate runs pred (which inspects the accumulator via v.Peek,
// the same way a CALLB predicate never consuming its operand lets
// emitMaxGate do) and forces the accumulator to matchFailed when it
// returns false.
func (g *genState) emitLengthGate(pred vm.PredicateFunc, info ThunkInfo) {
	predIx := g.b.addPredicate(pred, info)
	g.b.emit(vm.OpCallB, predIx)
	failIx := g.b.emit(vm.OpJumpIfF, 0)
	g.b.emit(vm.OpPop, vm.VstackID) // discard the gate's nil, keep acc
	doneIx := g.b.emit(vm.OpJump, 0)
	g.b.patchJumpTo(failIx)
	g.b.emit(vm.OpPop, vm.VstackID) // gate's matchFailed
	g.b.emit(vm.OpPop, vm.VstackID) // acc
	g.b.emit(vm.OpPush, vm.VstackID, vm.VValFailed)
	g.b.patchJumpTo(doneIx)
}

func (g *genState) compileLabeled(e *ast.LabeledExpr) {
	g.compileExpr(e.Expr)
	name := e.Label
	if !e.HasLabel {
		n, ok := g.pickNames[e]
		if !ok {
			return
		}
		name = n
	}
	ix := g.b.intern(name)
	g.b.emit(vm.OpStoreIfT, ix)
	g.scope = append(g.scope, name)
}

// compileActionLike wraps inner the same way a user action does: run
// inner, and on success replace its value with fn's, discarding inner's
// own result (fn never receives it directly, matching how user action
// code only ever sees labeled arguments, per compileAction).
func (g *genState) compileActionLike(inner ast.Expr, fn vm.ActionFunc, info ThunkInfo) {
	g.b.emit(vm.OpPush, vm.PstackID)
	g.compileExpr(inner)
	failIx := g.b.emit(vm.OpJumpIfF, 0)
	actionIx := g.b.addAction(fn, info)
	g.b.emit(vm.OpCallA, actionIx)
	doneIx := g.b.emit(vm.OpJump, 0)
	g.b.patchJumpTo(failIx)
	g.b.emit(vm.OpPop, vm.VstackID)
	g.b.emit(vm.OpPop, vm.PstackID)
	g.b.emit(vm.OpPush, vm.VstackID, vm.VValFailed)
	g.b.patchJumpTo(doneIx)
}

// compileAction emits the same shape as compileActionLike, but resolves
// the action only after its expression is compiled, so ThunkInfo.Labels
// includes the labels that expression binds.
func (g *genState) compileAction(e *ast.ActionExpr) {
	g.b.emit(vm.OpPush, vm.PstackID)
	g.compileExpr(e.Expr)
	info := ThunkInfo{Rule: g.curRuleName, Code: e.Code, Labels: append([]string(nil), g.scope...)}
	fn, err := g.cfg.ActionResolver(info)
	if err != nil {
		g.err = err
		return
	}
	failIx := g.b.emit(vm.OpJumpIfF, 0)
	g.b.emit(vm.OpCallA, g.b.addAction(fn, info))
	doneIx := g.b.emit(vm.OpJump, 0)
	g.b.patchJumpTo(failIx)
	g.b.emit(vm.OpPop, vm.VstackID)
	g.b.emit(vm.OpPop, vm.PstackID)
	g.b.emit(vm.OpPush, vm.VstackID, vm.VValFailed)
	g.b.patchJumpTo(doneIx)
}

func (g *genState) compileLookahead(inner ast.Expr, positive bool) {
	g.b.emit(vm.OpPush, vm.PstackID)
	g.compileExpr(inner)
	if positive {
		g.b.emit(vm.OpNilIfT)
	} else {
		g.b.emit(vm.OpNilIfF)
	}
	g.b.emit(vm.OpRestore)
}

func (g *genState) compileSemantic(code ast.CodeBlock, positive bool) {
	info := ThunkInfo{Rule: g.curRuleName, Code: code, Labels: append([]string(nil), g.scope...)}
	fn, err := g.cfg.PredicateResolver(info)
	if err != nil {
		g.err = err
		return
	}
	ix := g.b.addPredicate(fn, info)
	g.b.emit(vm.OpCallB, ix)
	if !positive {
		g.b.emit(vm.OpNilIfF)
	}
}

// compileNamed gives a terminal's failure a caller-chosen description;
// a named non-terminal just compiles through (spec.md §3 "named" error
// message overriding isn't implemented past the terminal level — see
// DESIGN.md).
func (g *genState) compileNamed(e *ast.NamedExpr) {
	switch inner := e.Expr.(type) {
	case *ast.LiteralExpr:
		g.wrap(func() {
			val := inner.Value
			if inner.IgnoreCase {
				val = strings.ToLower(val)
			}
			base := vm.NewStringMatcher(val, inner.IgnoreCase)
			baseSpec := MatcherSpec{Kind: MatcherLiteral, Value: val, IgnoreCase: inner.IgnoreCase}
			mIx := g.b.addMatcher(vm.NewNamedMatcher(base, e.Name), MatcherSpec{Kind: MatcherNamed, Name: e.Name, Inner: &baseSpec})
			g.b.emit(vm.OpMatch, mIx)
		})
	case *ast.ClassExpr:
		g.wrap(func() {
			classSpec := g.classSpec(inner)
			base := vm.NewCharClassMatcher(classSpec)
			baseSpec := MatcherSpec{Kind: MatcherClass, IgnoreCase: inner.IgnoreCase, Class: classSpec}
			mIx := g.b.addMatcher(vm.NewNamedMatcher(base, e.Name), MatcherSpec{Kind: MatcherNamed, Name: e.Name, Inner: &baseSpec})
			g.b.emit(vm.OpMatch, mIx)
		})
	case *ast.AnyExpr:
		g.wrap(func() {
			anySpec := MatcherSpec{Kind: MatcherAny}
			mIx := g.b.addMatcher(vm.NewNamedMatcher(vm.NewAnyMatcher(), e.Name), MatcherSpec{Kind: MatcherNamed, Name: e.Name, Inner: &anySpec})
			g.b.emit(vm.OpMatch, mIx)
		})
	default:
		g.compileExpr(e.Expr)
	}
}
