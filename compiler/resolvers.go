package compiler

import (
	"github.com/peggylang/peggy/ast"
	"github.com/peggylang/peggy/vm"
)

// ThunkInfo is what an ActionResolver or PredicateResolver needs to turn
// a grammar's embedded code block into a running Go closure.
type ThunkInfo struct {
	Rule   string
	Code   ast.CodeBlock
	Labels []string // labels visible at this point, in binding order

	// Native names a built-in emit template instead of a grammar-authored
	// code block, for a thunk the generator synthesizes rather than
	// takes from the grammar (text capture, an internal pick, reading a
	// variable repetition bound, and the repetition max/min gates).
	// Empty for every user action and predicate.
	Native string
}

// ActionResolver turns an action's code block into the ActionFunc a
// compiled program calls at that point. Generate's default resolver
// does not evaluate Go source; the emit package is what turns an action
// into real compiled code. The default is good enough to exercise the
// bytecode and run grammars whose actions only need to see Text/Args.
type ActionResolver func(ThunkInfo) (vm.ActionFunc, error)

// PredicateResolver is ActionResolver's counterpart for semantic
// predicates.
type PredicateResolver func(ThunkInfo) (vm.PredicateFunc, error)

// defaultActionResolver returns an ActionFunc that ignores the code
// text and returns the matched substring, which is enough to drive a
// program end to end (and is what Options tests the bytecode against)
// without a Go source evaluator.
func defaultActionResolver(info ThunkInfo) (vm.ActionFunc, error) {
	return func(v *vm.VM) (interface{}, error) {
		return v.Text(), nil
	}, nil
}

// defaultPredicateResolver returns a PredicateFunc that always
// succeeds; a grammar relying on real predicate logic needs a resolver
// supplied through WithActionResolver/WithPredicateResolver.
func defaultPredicateResolver(info ThunkInfo) (vm.PredicateFunc, error) {
	return func(v *vm.VM) (bool, error) {
		return true, nil
	}, nil
}

// Config collects the knobs Generate honors.
type Config struct {
	ActionResolver    ActionResolver
	PredicateResolver PredicateResolver
	// Imports resolves a library_ref's import alias to the grammar the
	// alias was bound to. A compiled program is self-contained: Generate
	// compiles each referenced library rule into it under its
	// alias-qualified name.
	Imports map[string]*ast.Grammar
}

// Option configures Generate.
type Option func(*Config)

func WithActionResolver(r ActionResolver) Option {
	return func(c *Config) { c.ActionResolver = r }
}

func WithPredicateResolver(r PredicateResolver) Option {
	return func(c *Config) { c.PredicateResolver = r }
}

func WithImports(imports map[string]*ast.Grammar) Option {
	return func(c *Config) { c.Imports = imports }
}

func newConfig(opts []Option) *Config {
	c := &Config{
		ActionResolver:    defaultActionResolver,
		PredicateResolver: defaultPredicateResolver,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}
