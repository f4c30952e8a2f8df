package analysis

import (
	"fmt"

	"github.com/peggylang/peggy/ast"
)

// repetitionBoundsPass is spec.md §4.3 pass 11. Only constant bounds
// are checked here: a Var or Code bound's value isn't known until the
// parse runs, so the runtime contract (not this pass) is responsible
// for rejecting a bad value it computes at that point.
type repetitionBoundsPass struct{}

func (repetitionBoundsPass) Name() string { return "repetition-boundaries" }

func (repetitionBoundsPass) Run(g *ast.Grammar, opts Options) []Problem {
	var probs []Problem
	for _, r := range g.Rules {
		ast.Walk(ast.VisitorFunc(func(e ast.Expr) ast.Visitor {
			if re, ok := e.(*ast.RepeatedExpr); ok {
				probs = append(probs, checkRepeatBounds(re)...)
			}
			return visitAll
		}), r.Expr)
	}
	return probs
}

func checkRepeatBounds(re *ast.RepeatedExpr) []Problem {
	var probs []Problem

	if re.Min.Kind == ast.BoundConst && re.Min.Const < 0 {
		probs = append(probs, Problem{
			Severity: SeverityError,
			Message:  "repetition minimum must not be negative",
			Location: re.Min.Location,
		})
	}

	if re.Max.Kind == ast.BoundConst {
		switch {
		case re.Max.Const < 0:
			probs = append(probs, Problem{
				Severity: SeverityError,
				Message:  "repetition maximum must not be negative",
				Location: re.Max.Location,
			})
		case re.Max.Const == 0:
			probs = append(probs, Problem{
				Severity: SeverityError,
				Message:  "repetition maximum must not be zero",
				Location: re.Max.Location,
			})
		}
	}

	if re.Min.Kind == ast.BoundConst && re.Max.Kind == ast.BoundConst && re.Max.Const < re.Min.Const {
		probs = append(probs, Problem{
			Severity: SeverityError,
			Message:  fmt.Sprintf("repetition maximum (%d) is less than minimum (%d)", re.Max.Const, re.Min.Const),
			Location: re.Loc(),
		})
	}

	return probs
}
