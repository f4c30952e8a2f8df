// Package peggy is the library entry point: Generate takes one or more
// grammar sources and turns them into a runnable parser, generated Go
// source, or the analyzed grammar AST, depending on the requested
// output mode (spec.md §6). It wires together package dslparser (DSL
// recognition), package analysis (the static checks a grammar must
// pass), package compiler (bytecode lowering) and package emit
// (literal-source rendering) into the one call most callers need.
package peggy

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/peggylang/peggy/analysis"
	"github.com/peggylang/peggy/ast"
	"github.com/peggylang/peggy/compiler"
	"github.com/peggylang/peggy/dslparser"
	"github.com/peggylang/peggy/emit"
	"github.com/peggylang/peggy/vm"
)

// Source is one named chunk of grammar text. Multiple sources
// concatenate into a single grammar, same as dslparser.Fragment; the
// first source's initializers take precedence.
type Source struct {
	Name string
	Text string
}

// OutputMode selects what Generate returns.
type OutputMode int

const (
	// OutputParser builds an in-process, immediately runnable Parser.
	OutputParser OutputMode = iota
	// OutputSource renders a standalone Go source file.
	OutputSource
	// OutputSourceAndMap currently behaves like OutputSource: no source
	// map is produced and Result.SourceMap stays nil.
	OutputSourceAndMap
	// OutputAST returns the grammar's AST after analysis, without compiling it.
	OutputAST
)

// Generator is what a Plugin's Use method receives: a narrow façade
// over the pass list a plugin may extend, and the grammar it will run
// against. Plugins must not retain it past Use.
type Generator struct {
	manager *analysis.Manager
	grammar *ast.Grammar
}

// Grammar returns the grammar Generate parsed, before analysis runs.
func (g *Generator) Grammar() *ast.Grammar { return g.grammar }

// AddPass appends a pass to the fixed eleven-pass pipeline, run after
// every built-in pass.
func (g *Generator) AddPass(p analysis.Pass) { g.manager.Passes = append(g.manager.Passes, p) }

// PrependPass inserts a pass before the built-in pipeline runs.
func (g *Generator) PrependPass(p analysis.Pass) {
	g.manager.Passes = append([]analysis.Pass{p}, g.manager.Passes...)
}

// Plugin extends Generate's pass list or reacts to the options a call
// was given. Plugins run in the order they're listed; the first one to
// return an error aborts the call with a plugin-category error
// (spec.md §4.7, §7).
type Plugin interface {
	Use(g *Generator, cfg *Config) error
}

// Config collects every option Generate honors. Build one with Option
// values rather than directly; the zero Config is not ready to use.
type Config struct {
	Output            OutputMode
	AllowedStartRules []string
	Cache             bool
	Trace             bool
	Tracer            vm.Tracer
	Format            emit.Format
	PackageName       string
	Plugins           []Plugin
	GrammarSource     string

	// Libraries resolves a library_ref's import alias to the grammar it
	// was bound to, for grammars with import declarations.
	Libraries map[string]*ast.Grammar

	ActionResolver    compiler.ActionResolver
	PredicateResolver compiler.PredicateResolver

	// Info and Warning are diagnostic sinks keyed by pass name; either
	// may be nil. Info receives every problem a pass raises, Warning
	// only the ones that don't fail the grammar outright.
	Info    func(pass, message string)
	Warning func(pass, message string)
}

// Option configures a Generate call.
type Option func(*Config)

func WithOutput(m OutputMode) Option { return func(c *Config) { c.Output = m } }

func WithAllowedStartRules(rules ...string) Option {
	return func(c *Config) { c.AllowedStartRules = rules }
}

func WithCache(b bool) Option { return func(c *Config) { c.Cache = b } }

func WithTrace(b bool) Option { return func(c *Config) { c.Trace = b } }

func WithTracer(t vm.Tracer) Option { return func(c *Config) { c.Tracer = t } }

func WithFormat(f emit.Format) Option { return func(c *Config) { c.Format = f } }

func WithPackageName(name string) Option { return func(c *Config) { c.PackageName = name } }

func WithPlugins(plugins ...Plugin) Option { return func(c *Config) { c.Plugins = plugins } }

func WithGrammarSource(tag string) Option { return func(c *Config) { c.GrammarSource = tag } }

func WithLibraries(libs map[string]*ast.Grammar) Option {
	return func(c *Config) { c.Libraries = libs }
}

func WithActionResolver(r compiler.ActionResolver) Option {
	return func(c *Config) { c.ActionResolver = r }
}

func WithPredicateResolver(r compiler.PredicateResolver) Option {
	return func(c *Config) { c.PredicateResolver = r }
}

func WithDiagnosticSinks(info, warning func(pass, message string)) Option {
	return func(c *Config) {
		c.Info = info
		c.Warning = warning
	}
}

func newConfig(opts []Option) *Config {
	c := &Config{Output: OutputParser}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Parser is a compiled, immediately runnable grammar: the "parser"
// output mode of spec.md §6. Cache and Trace (and a custom Tracer)
// are baked in from the Generate call that produced it, but any Parse
// call may override them.
type Parser struct {
	Program *vm.Program

	defaultOpts []vm.Option
}

// Parse runs the parser against input, starting at the compiled entry
// rule. filename is attached to error locations and trace records.
func (p *Parser) Parse(filename string, input []byte, opts ...vm.Option) (interface{}, error) {
	all := make([]vm.Option, 0, len(p.defaultOpts)+len(opts))
	all = append(all, p.defaultOpts...)
	all = append(all, opts...)
	return vm.Run(filename, input, p.Program, all...)
}

// Result holds whatever Generate's requested OutputMode produced; only
// the field matching that mode is populated.
type Result struct {
	Grammar   *ast.Grammar // OutputAST
	Parser    *Parser      // OutputParser
	Source    []byte       // OutputSource, OutputSourceAndMap
	SourceMap []byte       // OutputSourceAndMap only; see DESIGN.md Open Questions

	// Warnings carries every non-fatal problem a pass raised, regardless
	// of output mode.
	Warnings []analysis.Problem

	// BuildID is a random identifier minted once per Generate call, so a
	// caller's logs (the Info/Warning sinks, a custom vm.Tracer) can be
	// grepped for everything one specific run produced.
	BuildID uuid.UUID
}

// Phase categorizes a GenerateError the way spec.md §7 does: syntax
// (the DSL itself didn't parse), semantic (a pass rejected the
// grammar), configuration (bad option, unknown start rule), or plugin
// (a plugin object was invalid or returned an error).
type Phase string

const (
	PhaseSyntax        Phase = "syntax"
	PhaseSemantic      Phase = "semantic"
	PhaseConfiguration Phase = "configuration"
	PhasePlugin        Phase = "plugin"
)

// GenerateError is what Generate returns on failure. Problems is
// populated only for PhaseSemantic; Err always carries the underlying
// cause and is what Error() renders.
type GenerateError struct {
	Phase    Phase
	Problems []analysis.Problem
	Err      error
}

func (e *GenerateError) Error() string {
	return fmt.Sprintf("peggy: %s error: %v", e.Phase, e.Err)
}

func (e *GenerateError) Unwrap() error { return e.Err }

// Generate parses sources into a grammar, runs it through the analysis
// pipeline, and produces whatever cfg.Output asks for.
func Generate(sources []Source, opts ...Option) (*Result, error) {
	cfg := newConfig(opts)
	buildID := uuid.New()

	g, err := parseSources(sources, cfg.GrammarSource)
	if err != nil {
		return nil, &GenerateError{Phase: PhaseSyntax, Err: err}
	}

	gen := &Generator{manager: analysis.NewManager(), grammar: g}
	for _, p := range cfg.Plugins {
		if p == nil {
			return nil, &GenerateError{Phase: PhasePlugin, Err: fmt.Errorf("nil plugin")}
		}
		if err := p.Use(gen, cfg); err != nil {
			return nil, &GenerateError{Phase: PhasePlugin, Err: fmt.Errorf("%T: %w", p, err)}
		}
	}

	problems, err := gen.manager.Run(g, analysis.Options{AllowedStartRules: cfg.AllowedStartRules})
	reportProblems(cfg, problems)
	if err != nil {
		return nil, &GenerateError{Phase: PhaseSemantic, Problems: problems, Err: err}
	}

	if cfg.Output == OutputAST {
		return &Result{Grammar: g, Warnings: problems, BuildID: buildID}, nil
	}

	start := effectiveStartRule(g, cfg.AllowedStartRules)
	if start == "" {
		return nil, &GenerateError{Phase: PhaseConfiguration, Err: fmt.Errorf("grammar has no rules")}
	}

	var copts []compiler.Option
	if cfg.ActionResolver != nil {
		copts = append(copts, compiler.WithActionResolver(cfg.ActionResolver))
	}
	if cfg.PredicateResolver != nil {
		copts = append(copts, compiler.WithPredicateResolver(cfg.PredicateResolver))
	}
	if len(cfg.Libraries) > 0 {
		copts = append(copts, compiler.WithImports(cfg.Libraries))
	}

	switch cfg.Output {
	case OutputParser:
		prog, err := compiler.Generate(g, start, copts...)
		if err != nil {
			return nil, &GenerateError{Phase: PhaseConfiguration, Err: err}
		}
		return &Result{Parser: &Parser{Program: prog, defaultOpts: vmOptions(cfg)}, Warnings: problems, BuildID: buildID}, nil

	case OutputSource, OutputSourceAndMap:
		art, err := compiler.Compile(g, start, copts...)
		if err != nil {
			return nil, &GenerateError{Phase: PhaseConfiguration, Err: err}
		}
		src, err := emit.Render(art, emit.Options{PackageName: cfg.PackageName, Format: cfg.Format})
		if err != nil {
			return nil, &GenerateError{Phase: PhaseConfiguration, Err: err}
		}
		return &Result{Source: src, Warnings: problems, BuildID: buildID}, nil

	default:
		return nil, &GenerateError{Phase: PhaseConfiguration, Err: fmt.Errorf("unknown output mode %d", cfg.Output)}
	}
}

func vmOptions(cfg *Config) []vm.Option {
	var opts []vm.Option
	if cfg.Cache {
		opts = append(opts, vm.Memoize(true))
	}
	if cfg.Trace {
		opts = append(opts, vm.Debug(true))
	}
	if cfg.Tracer != nil {
		opts = append(opts, vm.WithTracer(cfg.Tracer))
	}
	return opts
}

func parseSources(sources []Source, grammarSource string) (*ast.Grammar, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("peggy: no sources given")
	}
	frags := make([]dslparser.Fragment, len(sources))
	for i, s := range sources {
		name := s.Name
		if name == "" {
			name = grammarSource
		}
		frags[i] = dslparser.Fragment{Name: name, Text: s.Text}
	}
	return dslparser.ParseFragments(frags)
}

// effectiveStartRule picks the rule compilation bootstraps into: the
// first non-"*" entry in allowed, or the grammar's first rule. A
// compiled Program has a single fixed entry point (package compiler's
// bytecode has no per-parse-call rule dispatch table), so unlike a
// JavaScript-hosted generator, allowedStartRules here gates which rules
// analysis's unused-rule pass treats as reachable roots rather than
// selecting among several ready-to-run entry points at parse time; see
// DESIGN.md.
func effectiveStartRule(g *ast.Grammar, allowed []string) string {
	for _, n := range allowed {
		if n != "*" {
			return n
		}
	}
	if len(g.Rules) == 0 {
		return ""
	}
	return g.Rules[0].Name
}

func reportProblems(cfg *Config, problems []analysis.Problem) {
	for _, p := range problems {
		if cfg.Info != nil {
			cfg.Info(p.Pass, p.Message)
		}
		if p.Severity == analysis.SeverityWarning && cfg.Warning != nil {
			cfg.Warning(p.Pass, p.Message)
		}
	}
}
