package analysis

import (
	"fmt"

	"github.com/peggylang/peggy/ast"
)

// unusedRulesPass is spec.md §4.3 pass 7: a rule not reachable from any
// allowed start rule, directly or through a chain of rule_refs, is
// dead weight. library_ref targets live in a different grammar and are
// never counted unreachable here.
type unusedRulesPass struct{}

func (unusedRulesPass) Name() string { return "unused-rules" }

func (unusedRulesPass) Run(g *ast.Grammar, opts Options) []Problem {
	starts := expandStartRules(g, opts.AllowedStartRules)
	reachable := map[string]bool{}

	var visit func(name string)
	visit = func(name string) {
		if reachable[name] {
			return
		}
		reachable[name] = true
		rule := g.RuleByName(name)
		if rule == nil {
			return
		}
		ast.Walk(ast.VisitorFunc(func(e ast.Expr) ast.Visitor {
			if ref, ok := e.(*ast.RuleRefExpr); ok {
				visit(ref.Name)
			}
			return visitAll
		}), rule.Expr)
	}
	for _, s := range starts {
		visit(s)
	}

	var probs []Problem
	for _, r := range g.Rules {
		if !reachable[r.Name] {
			probs = append(probs, Problem{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("rule %q is unreachable from the allowed start rules", r.Name),
				Location: r.NameLoc,
			})
		}
	}
	return probs
}
