package vm

// This file is the exported surface package compiler (and, in principle,
// any other in-process bytecode producer) builds a Program through. The
// runtime's own opcode and matcher types stay unexported so nothing
// outside this package can hand dispatch an instruction it didn't
// validate through encodeInstr.

// Op is the exported name for an opcode value.
type Op = op

const (
	OpExit        = opExit
	OpCall        = opCall
	OpCallA       = opCallA
	OpCallB       = opCallB
	OpCumulOrF    = opCumulOrF
	OpJump        = opJump
	OpJumpIfF     = opJumpIfF
	OpJumpIfT     = opJumpIfT
	OpMatch       = opMatch
	OpNilIfF      = opNilIfF
	OpNilIfT      = opNilIfT
	OpPop         = opPop
	OpPopVJumpIfF = opPopVJumpIfF
	OpPush        = opPush
	OpRestore     = opRestore
	OpRestoreIfF  = opRestoreIfF
	OpReturn      = opReturn
	OpStoreIfT    = opStoreIfT
	OpTakeLOrJump = opTakeLOrJump
)

// Stack identifiers and special V stack values, for use as PUSH/POP
// arguments.
const (
	PstackID = pstackID
	LstackID = lstackID
	VstackID = vstackID
	IstackID = istackID
	AstackID = astackID

	VValNil    = int(vValNil)
	VValFailed = int(vValFailed)
	VValEmpty  = int(vValEmpty)
)

// Instr is the exported name for a decoded instruction.
type Instr = instr

// NewInstr builds an Instr. It panics on an invalid opcode or an
// argument that doesn't fit a uint16 — both indicate a bug in the
// bytecode producer, not a malformed grammar.
func NewInstr(o Op, args ...int) Instr {
	in, err := encodeInstr(o, args...)
	if err != nil {
		panic(err)
	}
	return in
}

// Matcher is the exported name for a terminal matcher.
type Matcher = matcher

// NewAnyMatcher returns the matcher for the "." expression.
func NewAnyMatcher() Matcher { return anyMatcher{} }

// NewStringMatcher returns the matcher for a literal expression. value
// must already be lowercased by the caller when ignoreCase is set.
func NewStringMatcher(value string, ignoreCase bool) Matcher {
	return stringMatcher{value: value, ignoreCase: ignoreCase}
}

// CharClassSpec mirrors ast.ClassExpr's parts so compiler doesn't need
// its own copy of Unicode range-table lookup.
type CharClassSpec struct {
	Chars      []rune
	Ranges     []rune // lo,hi pairs
	Classes    []string
	// ClassNegated parallels Classes: ClassNegated[i] is true when
	// Classes[i] came from a \P{...} escape rather than \p{...}.
	ClassNegated []bool
	IgnoreCase   bool
	Inverted     bool
}

// NewCharClassMatcher returns the matcher for a "[...]" expression.
func NewCharClassMatcher(spec CharClassSpec) Matcher {
	entries := make([]classEntry, len(spec.Classes))
	for i, c := range spec.Classes {
		negated := i < len(spec.ClassNegated) && spec.ClassNegated[i]
		entries[i] = classEntry{table: rangeTable(c), negated: negated}
	}
	return charClassMatcher{
		chars:      spec.Chars,
		ranges:     spec.Ranges,
		classes:    entries,
		ignoreCase: spec.IgnoreCase,
		inverted:   spec.Inverted,
	}
}

// namedMatcher overrides a wrapped matcher's expected-value text, for a
// "named" expression wrapping a single terminal (spec.md §3 "named").
type namedMatcher struct {
	inner matcher
	name  string
}

func (n namedMatcher) match(pr peekReader) bool { return n.inner.match(pr) }
func (n namedMatcher) String() string           { return n.name }

// NewNamedMatcher wraps inner so failure reports name instead of
// inner's own expected-value text.
func NewNamedMatcher(inner Matcher, name string) Matcher {
	return namedMatcher{inner: inner, name: name}
}
