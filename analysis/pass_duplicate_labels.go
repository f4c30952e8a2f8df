package analysis

import (
	"fmt"

	"github.com/peggylang/peggy/ast"
)

// duplicateLabelsPass is spec.md §4.3 pass 6: within one sequence or
// action's scope, every label must be unique. WalkScoped calls back
// before it records the current node's own label, so at that moment
// scope.Labels still reflects only what came before it in the same
// scope.
type duplicateLabelsPass struct{}

func (duplicateLabelsPass) Name() string { return "duplicate-labels" }

func (duplicateLabelsPass) Run(g *ast.Grammar, opts Options) []Problem {
	var probs []Problem
	for _, r := range g.Rules {
		ast.WalkScoped(r.Expr, ast.NewScope(nil), func(e ast.Expr, scope *ast.ScopeEnv) {
			le, ok := e.(*ast.LabeledExpr)
			if !ok || !le.HasLabel {
				return
			}
			if _, dup := scope.Labels[le.Label]; dup {
				probs = append(probs, Problem{
					Severity: SeverityError,
					Message:  fmt.Sprintf("label %q already bound in this scope", le.Label),
					Location: le.LabelLoc,
				})
			}
		})
	}
	return probs
}
