package analysis

import (
	"fmt"

	"github.com/peggylang/peggy/ast"
)

// duplicatesPass is spec.md §4.3 pass 2's rule- and import-name half;
// duplicate labels get their own scope-aware pass (duplicateLabelsPass,
// pass 6), since "duplicate label" only ever makes sense relative to a
// scope and pass 6 already has to walk scopes for other reasons.
type duplicatesPass struct{}

func (duplicatesPass) Name() string { return "duplicates" }

func (duplicatesPass) Run(g *ast.Grammar, opts Options) []Problem {
	var probs []Problem

	seenRules := map[string]ast.Location{}
	for _, r := range g.Rules {
		if first, ok := seenRules[r.Name]; ok {
			probs = append(probs, Problem{
				Severity: SeverityError,
				Message:  fmt.Sprintf("rule %q already declared at %s", r.Name, first),
				Location: r.NameLoc,
			})
			continue
		}
		seenRules[r.Name] = r.NameLoc
	}

	seenImports := map[string]ast.Location{}
	for _, im := range g.Imports {
		for _, b := range im.Bindings {
			name := b.Alias
			if name == "" {
				name = b.Name
			}
			if first, ok := seenImports[name]; ok {
				probs = append(probs, Problem{
					Severity: SeverityError,
					Message:  fmt.Sprintf("import binding %q already declared at %s", name, first),
					Location: b.Location,
				})
				continue
			}
			seenImports[name] = b.Location
		}
	}

	return probs
}
