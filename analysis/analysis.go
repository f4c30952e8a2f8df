// Package analysis runs the fixed sequence of static checks a grammar
// must pass before compiler.Generate can trust its invariants: every
// rule_ref resolves, no rule loops on empty input forever, labels don't
// collide within a scope, repetition boundaries are sane, and so on
// (spec.md §4.3). Passes only ever read the tree; ast.Rewrite (in
// ast/visitor.go) is for the plugins that mutate it.
package analysis

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/peggylang/peggy/ast"
)

// Severity is how a Problem should be treated: Warning problems are
// informational, Error problems fail the grammar outright.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Problem is one diagnostic raised by a pass. It implements error so a
// Manager can hand Error-severity problems straight to multierr.
type Problem struct {
	Severity Severity
	Message  string
	Location ast.Location
	Notes    []string
	Pass     string
}

func (p Problem) Error() string {
	return fmt.Sprintf("%s: %s: %s", p.Location, p.Severity, p.Message)
}

// Options carries the per-run configuration a pass needs beyond the
// grammar itself.
type Options struct {
	// AllowedStartRules names the rules a caller may start parsing from.
	// A literal "*" element expands to every rule in the grammar. Nil or
	// empty defaults to just the grammar's first rule.
	AllowedStartRules []string
}

// expandStartRules resolves opts.AllowedStartRules to a concrete rule
// name list, applying the "*" and empty-list defaults (spec.md §4.3
// pass 8).
func expandStartRules(g *ast.Grammar, names []string) []string {
	for _, n := range names {
		if n == "*" {
			all := make([]string, len(g.Rules))
			for i, r := range g.Rules {
				all[i] = r.Name
			}
			return all
		}
	}
	if len(names) == 0 {
		if len(g.Rules) == 0 {
			return nil
		}
		return []string{g.Rules[0].Name}
	}
	return names
}

// Pass is one named, independent check over a grammar.
type Pass interface {
	Name() string
	Run(g *ast.Grammar, opts Options) []Problem
}

// Manager runs every Pass in a fixed order and decides what to do with
// the problems they raise (spec.md §4.3, §4.7 "pass manager").
type Manager struct {
	Passes []Pass

	// StopOnError aborts the run as soon as any pass reports an
	// Error-severity problem, the default behavior. When false, every
	// pass still runs and Run returns the full problem set.
	StopOnError bool
}

// NewManager returns a Manager configured with the eleven built-in
// passes, in the fixed order spec.md §4.3 lists them, with
// StopOnError on.
func NewManager() *Manager {
	return &Manager{
		Passes: []Pass{
			undefinedRulesPass{},
			duplicatesPass{},
			infiniteLoopPass{},
			leftRecursionPass{},
			plucksPass{},
			duplicateLabelsPass{},
			unusedRulesPass{},
			allowedStartRulesPass{},
			typeInferencePass{},
			reservedWordsPass{},
			repetitionBoundsPass{},
		},
		StopOnError: true,
	}
}

// Run executes every pass in order against g, returning every problem
// raised. The returned error is nil unless at least one Error-severity
// problem was found; it wraps all of them via multierr so a caller can
// report every failure at once instead of just the first.
func (m *Manager) Run(g *ast.Grammar, opts Options) ([]Problem, error) {
	var all []Problem
	for _, p := range m.Passes {
		probs := p.Run(g, opts)
		for i := range probs {
			if probs[i].Pass == "" {
				probs[i].Pass = p.Name()
			}
		}
		all = append(all, probs...)
		if m.StopOnError && hasError(probs) {
			return all, errorsOf(all)
		}
	}
	return all, errorsOf(all)
}

func hasError(probs []Problem) bool {
	for _, p := range probs {
		if p.Severity == SeverityError {
			return true
		}
	}
	return false
}

func errorsOf(probs []Problem) error {
	var err error
	for _, p := range probs {
		if p.Severity == SeverityError {
			err = multierr.Append(err, p)
		}
	}
	return err
}

// visitAll is an ast.Visitor that always keeps descending; passes that
// need to inspect every node of a rule's tree (rather than stop at the
// first match) combine it with a type switch, e.g.:
//
//	ast.Walk(ast.VisitorFunc(func(e ast.Expr) ast.Visitor {
//	    if _, ok := e.(*ast.RuleRefExpr); ok { ... }
//	    return visitAll
//	}), rule.Expr)
var visitAll ast.VisitorFunc

func init() {
	visitAll = func(ast.Expr) ast.Visitor { return visitAll }
}
