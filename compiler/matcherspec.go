package compiler

import "github.com/peggylang/peggy/vm"

// MatcherKind tags which concrete vm.Matcher constructor a MatcherSpec
// describes.
type MatcherKind int

const (
	MatcherLiteral MatcherKind = iota
	MatcherClass
	MatcherAny
	MatcherNamed
)

// MatcherSpec is the literal-source-renderable description behind a
// vm.Matcher value. Generate itself never looks inside one; it exists
// so package emit can turn b.msSpec back into Go source without being
// handed the opaque vm.Matcher interface value, which only means
// anything to the vm package's own Run loop.
type MatcherSpec struct {
	Kind       MatcherKind
	Value      string // MatcherLiteral
	IgnoreCase bool   // MatcherLiteral, MatcherClass
	Class      vm.CharClassSpec
	Name       string       // MatcherNamed
	Inner      *MatcherSpec // MatcherNamed
}
