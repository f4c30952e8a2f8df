package analysis

import (
	"fmt"

	"github.com/agnivade/levenshtein"
	"golang.org/x/exp/slices"

	"github.com/peggylang/peggy/ast"
)

// undefinedRulesPass is spec.md §4.3 pass 1: every rule_ref must
// resolve within the grammar, and every library_ref must name a bound
// import.
type undefinedRulesPass struct{}

func (undefinedRulesPass) Name() string { return "undefined-rules" }

func (undefinedRulesPass) Run(g *ast.Grammar, opts Options) []Problem {
	bound := importAliases(g)

	var probs []Problem
	for _, r := range g.Rules {
		ast.Walk(ast.VisitorFunc(func(e ast.Expr) ast.Visitor {
			switch e := e.(type) {
			case *ast.RuleRefExpr:
				if g.RuleByName(e.Name) == nil {
					probs = append(probs, Problem{
						Severity: SeverityError,
						Message:  fmt.Sprintf("undefined rule %q", e.Name),
						Location: e.Loc(),
						Notes:    didYouMean(e.Name, g.Rules),
					})
				}
			case *ast.LibraryRefExpr:
				if !bound[e.Import] {
					probs = append(probs, Problem{
						Severity: SeverityError,
						Message:  fmt.Sprintf("%q is not a bound import (referenced as %s.%s)", e.Import, e.Import, e.Rule),
						Location: e.Loc(),
					})
				}
			}
			return visitAll
		}), r.Expr)
	}
	return probs
}

// didYouMean returns a single remediation note naming the closest rule
// names to a misspelled reference, or nil if nothing is close enough to
// be worth suggesting.
func didYouMean(name string, rules []*ast.Rule) []string {
	const maxDistance = 3

	best := maxDistance + 1
	var closest []string
	for _, r := range rules {
		d := levenshtein.ComputeDistance(name, r.Name)
		switch {
		case d > maxDistance:
			continue
		case d < best:
			best = d
			closest = []string{r.Name}
		case d == best:
			closest = append(closest, r.Name)
		}
	}
	if len(closest) == 0 {
		return nil
	}
	slices.Sort(closest)
	return []string{fmt.Sprintf("did you mean %s?", joinOr(closest))}
}

func joinOr(names []string) string {
	switch len(names) {
	case 1:
		return fmt.Sprintf("%q", names[0])
	case 2:
		return fmt.Sprintf("%q or %q", names[0], names[1])
	default:
		s := ""
		for _, n := range names[:len(names)-1] {
			s += fmt.Sprintf("%q, ", n)
		}
		return s + fmt.Sprintf("or %q", names[len(names)-1])
	}
}

// importAliases returns the set of names a library_ref's import
// segment may use: an alias when one was given, the bare module-local
// name otherwise.
func importAliases(g *ast.Grammar) map[string]bool {
	names := map[string]bool{}
	for _, im := range g.Imports {
		for _, b := range im.Bindings {
			name := b.Alias
			if name == "" {
				name = b.Name
			}
			names[name] = true
		}
	}
	return names
}
