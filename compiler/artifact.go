package compiler

import (
	"github.com/peggylang/peggy/ast"
	"github.com/peggylang/peggy/vm"
)

// Artifact is Generate's output plus the literal-source metadata Generate
// itself has no use for. vm.Program is enough to run a grammar in
// process (vm.Run walks Ms/As/Bs directly); package emit additionally
// needs MatcherSpecs/Actions/Predicates to render a Program as
// dependency-free Go source, since a compiled action is a closure and a
// matcher is an opaque interface value, neither of which has a source
// form of its own.
type Artifact struct {
	Program *vm.Program

	MatcherSpecs []MatcherSpec // parallel to Program.Ms
	Actions      []ThunkInfo   // parallel to Program.As
	Predicates   []ThunkInfo   // parallel to Program.Bs
}

// Compile is Generate's counterpart for callers that need to render the
// result as source (package emit) rather than just run it (vm.Run).
// It shares every code path with Generate, differing only in what it
// returns at the end.
func Compile(g *ast.Grammar, startRule string, opts ...Option) (*Artifact, error) {
	b, err := compileToBuilder(g, startRule, opts)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Program:      b.program(),
		MatcherSpecs: b.msSpec,
		Actions:      b.asInfo,
		Predicates:   b.bsInfo,
	}, nil
}
