package analysis

import (
	"fmt"

	"github.com/peggylang/peggy/ast"
	"github.com/peggylang/peggy/dslparser"
)

// reservedWordsPass is spec.md §4.3 pass 10. dslparser.Parse already
// rejects a reserved rule or label name as it builds the tree, so this
// normally only fires against a Grammar assembled some other way (a
// merged import, a hand-built test fixture, a future alternate
// loader) — and against import bindings/aliases, which the parser
// never reserved-checks at all.
type reservedWordsPass struct{}

func (reservedWordsPass) Name() string { return "reserved-words" }

func (reservedWordsPass) Run(g *ast.Grammar, opts Options) []Problem {
	var probs []Problem

	for _, r := range g.Rules {
		if dslparser.IsReserved(r.Name) {
			probs = append(probs, reservedProblem("rule", r.Name, r.NameLoc))
		}
		ast.Walk(ast.VisitorFunc(func(e ast.Expr) ast.Visitor {
			if le, ok := e.(*ast.LabeledExpr); ok && le.HasLabel && dslparser.IsReserved(le.Label) {
				probs = append(probs, reservedProblem("label", le.Label, le.LabelLoc))
			}
			return visitAll
		}), r.Expr)
	}

	for _, im := range g.Imports {
		for _, b := range im.Bindings {
			name := b.Alias
			if name == "" {
				name = b.Name
			}
			if dslparser.IsReserved(name) {
				probs = append(probs, reservedProblem("import binding", name, b.Location))
			}
		}
	}

	return probs
}

func reservedProblem(kind, name string, loc ast.Location) Problem {
	return Problem{
		Severity: SeverityError,
		Message:  fmt.Sprintf("%s name %q is a reserved word", kind, name),
		Location: loc,
	}
}
