package analysis

import "github.com/peggylang/peggy/ast"

// computeEmptiness decides, for every rule, whether it can match the
// empty string, as a fixed point over mutually recursive rules
// (spec.md §4.3 pass 3). Passes 3 and 4 both need this.
func computeEmptiness(g *ast.Grammar) map[string]bool {
	empty := make(map[string]bool, len(g.Rules))
	for changed := true; changed; {
		changed = false
		for _, r := range g.Rules {
			was := empty[r.Name]
			now := exprEmpty(r.Expr, empty)
			if now != was {
				empty[r.Name] = now
				changed = true
			}
		}
	}
	return empty
}

// exprEmpty reports whether e can match without consuming any input,
// given the current (possibly still-converging) rule emptiness table.
func exprEmpty(e ast.Expr, empty map[string]bool) bool {
	switch e := e.(type) {
	case *ast.LiteralExpr:
		return e.Value == ""
	case *ast.ClassExpr, *ast.AnyExpr:
		return false
	case *ast.RuleRefExpr:
		return empty[e.Name]
	case *ast.LibraryRefExpr:
		// An imported grammar's rules aren't part of this fixed point;
		// treating the reference as non-empty is conservative for loop
		// safety (it can only under-report, never mask, a real hazard
		// that lives in the referenced grammar's own analysis).
		return false
	case *ast.SeqExpr:
		for _, s := range e.Exprs {
			if !exprEmpty(s, empty) {
				return false
			}
		}
		return true
	case *ast.ChoiceExpr:
		for _, a := range e.Alternatives {
			if exprEmpty(a, empty) {
				return true
			}
		}
		return false
	case *ast.OptionalExpr, *ast.ZeroOrMoreExpr:
		return true
	case *ast.OneOrMoreExpr:
		return exprEmpty(e.Expr, empty)
	case *ast.RepeatedExpr:
		if e.Min.Kind != ast.BoundConst || e.Min.Const == 0 {
			return true
		}
		return exprEmpty(e.Expr, empty)
	case *ast.GroupExpr:
		return exprEmpty(e.Expr, empty)
	case *ast.LabeledExpr:
		return exprEmpty(e.Expr, empty)
	case *ast.TextExpr:
		return exprEmpty(e.Expr, empty)
	case *ast.SimpleAndExpr, *ast.SimpleNotExpr, *ast.SemanticAndExpr, *ast.SemanticNotExpr:
		return true
	case *ast.ActionExpr:
		return exprEmpty(e.Expr, empty)
	case *ast.NamedExpr:
		return exprEmpty(e.Expr, empty)
	default:
		return false
	}
}
