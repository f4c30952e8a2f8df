package analysis

import "github.com/peggylang/peggy/ast"

// infiniteLoopPass is spec.md §4.3 pass 3. "*" and "+" never advance
// the current position if their body can match empty, so they'd spin
// forever; a "repeated" over an empty-capable body is flagged unless it
// has both a constant minimum above zero and a constant maximum.
type infiniteLoopPass struct{}

func (infiniteLoopPass) Name() string { return "infinite-loops" }

func (infiniteLoopPass) Run(g *ast.Grammar, opts Options) []Problem {
	empty := computeEmptiness(g)
	var probs []Problem

	for _, r := range g.Rules {
		ast.Walk(ast.VisitorFunc(func(e ast.Expr) ast.Visitor {
			switch e := e.(type) {
			case *ast.ZeroOrMoreExpr:
				if exprEmpty(e.Expr, empty) {
					probs = append(probs, loopProblem(e.Loc()))
				}
			case *ast.OneOrMoreExpr:
				if exprEmpty(e.Expr, empty) {
					probs = append(probs, loopProblem(e.Loc()))
				}
			case *ast.RepeatedExpr:
				if !exprEmpty(e.Expr, empty) {
					return visitAll
				}
				noLowerBound := e.Min.Kind != ast.BoundConst || e.Min.Const == 0
				unboundedUpper := e.Max.Kind != ast.BoundConst
				if noLowerBound || unboundedUpper {
					probs = append(probs, loopProblem(e.Loc()))
				}
			}
			return visitAll
		}), r.Expr)
	}
	return probs
}

func loopProblem(loc ast.Location) Problem {
	return Problem{
		Severity: SeverityError,
		Message:  "repetition body can match the empty string without a bound that rules out looping forever",
		Location: loc,
	}
}
