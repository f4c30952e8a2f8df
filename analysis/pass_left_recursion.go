package analysis

import (
	"fmt"
	"strings"

	"github.com/peggylang/peggy/ast"
)

// leftRecursionPass is spec.md §4.3 pass 4: a rule that can reach
// itself through a chain of leftmost positions (sequence elements that
// don't require consuming input first) recurses without ever
// advancing, which would overflow the call stack on any input.
type leftRecursionPass struct{}

func (leftRecursionPass) Name() string { return "infinite-recursion" }

func (leftRecursionPass) Run(g *ast.Grammar, opts Options) []Problem {
	empty := computeEmptiness(g)

	var probs []Problem
	onStack := map[string]bool{}
	done := map[string]bool{}
	var path []string

	var visit func(name string)
	visit = func(name string) {
		if done[name] {
			return
		}
		if onStack[name] {
			cycle := append(append([]string(nil), path...), name)
			probs = append(probs, Problem{
				Severity: SeverityError,
				Message:  fmt.Sprintf("left-recursive cycle: %s", strings.Join(cycle, " -> ")),
				Location: g.RuleByName(name).Loc(),
			})
			return
		}
		rule := g.RuleByName(name)
		if rule == nil {
			return
		}
		onStack[name] = true
		path = append(path, name)
		for _, ref := range leftmostRuleRefs(rule.Expr, empty) {
			visit(ref)
		}
		path = path[:len(path)-1]
		onStack[name] = false
		done[name] = true
	}

	for _, r := range g.Rules {
		visit(r.Name)
	}
	return probs
}

// leftmostRuleRefs returns every rule that e could invoke before
// consuming any input: the first sequence element plus any that follow
// it while every preceding element is empty-matching, every choice
// alternative, and straight through wrappers that don't themselves
// consume (lookahead included, since it can still recurse without
// advancing the position).
func leftmostRuleRefs(e ast.Expr, empty map[string]bool) []string {
	switch e := e.(type) {
	case *ast.RuleRefExpr:
		return []string{e.Name}
	case *ast.SeqExpr:
		var out []string
		for _, s := range e.Exprs {
			out = append(out, leftmostRuleRefs(s, empty)...)
			if !exprEmpty(s, empty) {
				break
			}
		}
		return out
	case *ast.ChoiceExpr:
		var out []string
		for _, a := range e.Alternatives {
			out = append(out, leftmostRuleRefs(a, empty)...)
		}
		return out
	case *ast.OptionalExpr:
		return leftmostRuleRefs(e.Expr, empty)
	case *ast.ZeroOrMoreExpr:
		return leftmostRuleRefs(e.Expr, empty)
	case *ast.OneOrMoreExpr:
		return leftmostRuleRefs(e.Expr, empty)
	case *ast.RepeatedExpr:
		return leftmostRuleRefs(e.Expr, empty)
	case *ast.GroupExpr:
		return leftmostRuleRefs(e.Expr, empty)
	case *ast.LabeledExpr:
		return leftmostRuleRefs(e.Expr, empty)
	case *ast.TextExpr:
		return leftmostRuleRefs(e.Expr, empty)
	case *ast.ActionExpr:
		return leftmostRuleRefs(e.Expr, empty)
	case *ast.NamedExpr:
		return leftmostRuleRefs(e.Expr, empty)
	case *ast.SimpleAndExpr:
		return leftmostRuleRefs(e.Expr, empty)
	case *ast.SimpleNotExpr:
		return leftmostRuleRefs(e.Expr, empty)
	default:
		return nil
	}
}
