package analysis

import (
	"fmt"

	"github.com/peggylang/peggy/ast"
)

// allowedStartRulesPass is spec.md §4.3 pass 8: every name a caller
// listed as an allowed start rule has to actually exist; "*" always
// does, since it stands for the whole rule set.
type allowedStartRulesPass struct{}

func (allowedStartRulesPass) Name() string { return "allowed-start-rules" }

func (allowedStartRulesPass) Run(g *ast.Grammar, opts Options) []Problem {
	var probs []Problem
	for _, name := range opts.AllowedStartRules {
		if name == "*" {
			continue
		}
		if g.RuleByName(name) == nil {
			probs = append(probs, Problem{
				Severity: SeverityError,
				Message:  fmt.Sprintf("allowed start rule %q does not exist", name),
				Location: g.Location,
			})
		}
	}
	return probs
}
