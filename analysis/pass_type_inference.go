package analysis

import (
	"fmt"

	"github.com/peggylang/peggy/ast"
)

// typeInferencePass is spec.md §4.3 pass 9: an optional, advisory pass
// that guesses a rule's result shape and reports the guess as a
// diagnostic; the emitter does not read it. It never blocks generation — every Problem it raises is a Warning — and it
// gives up to "interface{}" rather than guess wrong.
type typeInferencePass struct{}

func (typeInferencePass) Name() string { return "type-inference" }

func (typeInferencePass) Run(g *ast.Grammar, opts Options) []Problem {
	memo := map[string]string{}
	visiting := map[string]bool{}

	var infer func(e ast.Expr) string
	var inferRule func(name string) string

	inferRule = func(name string) string {
		if t, ok := memo[name]; ok {
			return t
		}
		if visiting[name] {
			return "interface{}" // cycle: give up rather than spin
		}
		rule := g.RuleByName(name)
		if rule == nil {
			return "interface{}"
		}
		visiting[name] = true
		t := infer(rule.Expr)
		visiting[name] = false
		memo[name] = t
		return t
	}

	infer = func(e ast.Expr) string {
		switch e := e.(type) {
		case *ast.LiteralExpr, *ast.ClassExpr, *ast.AnyExpr:
			return "[]byte"
		case *ast.TextExpr:
			return "string"
		case *ast.RuleRefExpr:
			return inferRule(e.Name)
		case *ast.LibraryRefExpr:
			return "interface{}"
		case *ast.SeqExpr:
			return "[]interface{}"
		case *ast.ChoiceExpr:
			if len(e.Alternatives) == 0 {
				return "interface{}"
			}
			first := infer(e.Alternatives[0])
			for _, a := range e.Alternatives[1:] {
				if infer(a) != first {
					return "interface{}"
				}
			}
			return first
		case *ast.OptionalExpr:
			return infer(e.Expr) // nil-capable; same tag, advisory only
		case *ast.ZeroOrMoreExpr, *ast.OneOrMoreExpr, *ast.RepeatedExpr:
			return "[]interface{}"
		case *ast.GroupExpr:
			return infer(e.Expr)
		case *ast.LabeledExpr:
			return infer(e.Expr)
		case *ast.SimpleAndExpr, *ast.SimpleNotExpr:
			return "nil"
		case *ast.SemanticAndExpr, *ast.SemanticNotExpr:
			return "nil"
		case *ast.ActionExpr, *ast.NamedExpr:
			return "interface{}"
		default:
			return "interface{}"
		}
	}

	var probs []Problem
	for _, r := range g.Rules {
		t := inferRule(r.Name)
		probs = append(probs, Problem{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("rule %q advisory result type: %s", r.Name, t),
			Location: r.NameLoc,
			Notes:    []string{"advisory only; the runtime contract still carries interface{}"},
		})
	}
	return probs
}
