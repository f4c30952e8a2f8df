// Package ast defines the grammar AST produced by dslparser, mutated by
// analysis passes and consumed by compiler. Every node carries a Location
// so that diagnostics and source maps can point back at the grammar text.
package ast

import "fmt"

// Pos is a single point in a grammar source: a 1-based line and column and
// a 0-based byte offset, mirroring the position a generated parser's
// "current" exposes at runtime (vm's position, emit's ϡposition).
type Pos struct {
	Line   int
	Col    int
	Offset int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Less reports whether p occurs strictly before o in the source.
func (p Pos) Less(o Pos) bool { return p.Offset < o.Offset }

// Location is the {source, start, end} triple every node carries (spec.md
// §3 "Locations"). Source is the opaque grammarSource tag for the
// fragment the node came from, or the fragment's name when no override
// was supplied.
type Location struct {
	Source string
	Start  Pos
	End    Pos
}

func (l Location) String() string {
	if l.Source == "" {
		return fmt.Sprintf("%s-%s", l.Start, l.End)
	}
	return fmt.Sprintf("%s:%s-%s", l.Source, l.Start, l.End)
}

// Contains reports whether o's span is wholly inside l's span, an
// invariant every rewrite must preserve (spec.md §8).
func (l Location) Contains(o Location) bool {
	return !o.Start.Less(l.Start) && !l.End.Less(o.End)
}

// Node is implemented by every AST element: Grammar, Rule, Import,
// CodeBlock and every Expr variant.
type Node interface {
	Loc() Location
}

// CodeBlock holds a verbatim, unparsed snippet of host code — an
// initializer, an action body or a predicate body. spec.md §4.1/§9:
// embedded user code survives as opaque text from parse through emit.
type CodeBlock struct {
	Code     string
	Location Location
}

func (c *CodeBlock) Loc() Location { return c.Location }

// Import binds a name (or names) to a module path for library_ref
// expressions of the form "name.ruleName" (spec.md §4.1 "Imports").
// Semantics of resolving Module are delegated to the hosting loader;
// the core only records the binding.
type Import struct {
	Bindings []ImportBinding
	Module   string
	Location Location
}

func (im *Import) Loc() Location { return im.Location }

// ImportBinding is a single "name" (or "name as alias") inside an import
// binding list.
type ImportBinding struct {
	Name  string
	Alias string
	Location Location
}

// Grammar is the root AST node: an ordered rule list plus optional
// initializers and imports (spec.md §3 "Grammar").
type Grammar struct {
	Rules               []*Rule
	Initializer         *CodeBlock // top-level, runs once at module load
	PerParseInitializer *CodeBlock // runs at the start of each parse
	Imports             []*Import
	Location            Location
}

func (g *Grammar) Loc() Location { return g.Location }

// RuleByName returns the rule named nm, or nil if no such rule exists.
func (g *Grammar) RuleByName(nm string) *Rule {
	for _, r := range g.Rules {
		if r.Name == nm {
			return r
		}
	}
	return nil
}

// Rule is a named expression, optionally carrying a display name used in
// place of the rule name in "expected" error messages (spec.md §3 "Rule").
type Rule struct {
	Name        string
	NameLoc     Location
	DisplayName string
	HasDisplayName bool
	Expr        Expr
	Location    Location
}

func (r *Rule) Loc() Location { return r.Location }

// Expr is implemented by every parsing-expression variant in spec.md §3's
// table. It is a closed sum: pattern matching (a type switch) over the
// concrete types below replaces a runtime tag-dispatch object.
type Expr interface {
	Node
	exprNode()
}

// Meta factors out the common Location method; embed it in every
// concrete Expr so only exprNode() need be declared per type.
type Meta struct {
	Location Location
}

func (b Meta) Loc() Location { return b.Location }
func (Meta) exprNode()       {}

// LiteralExpr matches an exact substring (spec.md §3 "literal").
type LiteralExpr struct {
	Meta
	Value      string
	IgnoreCase bool
}

// ClassPart is one element of a character class: a single rune, an
// inclusive range, or (when Unicode is set on the enclosing ClassExpr) a
// named Unicode class from a \p{...}/\P{...} escape. Negated applies
// only to an IsClass part, marking it as having come from \P{...}
// rather than \p{...}: the part contributes code points NOT in
// ClassName instead of ones in it.
type ClassPart struct {
	IsRange   bool
	IsClass   bool
	Negated   bool
	Single    rune
	Lo, Hi    rune
	ClassName string
}

// ClassExpr matches one code point against a class of parts (spec.md §3
// "class").
type ClassExpr struct {
	Meta
	Parts      []ClassPart
	Inverted   bool
	IgnoreCase bool
	Unicode    bool
}

// AnyExpr matches one code unit, or one code point when Unicode is set
// (spec.md §3 "any").
type AnyExpr struct {
	Meta
	Unicode bool
}

// RuleRefExpr invokes a named rule declared in the same grammar (spec.md
// §3 "rule_ref").
type RuleRefExpr struct {
	Meta
	Name string
}

// LibraryRefExpr invokes a rule exposed by an imported binding (spec.md
// §3 "library_ref").
type LibraryRefExpr struct {
	Meta
	Import string
	Rule   string
}

// SeqExpr requires every sub-expression to match in order (spec.md §3
// "sequence").
type SeqExpr struct {
	Meta
	Exprs []Expr
}

// ChoiceExpr tries every alternative in order; the first match commits
// (spec.md §3 "choice").
type ChoiceExpr struct {
	Meta
	Alternatives []Expr
}

// OptionalExpr matches Expr or produces nil without failing (spec.md §3
// "optional").
type OptionalExpr struct {
	Meta
	Expr Expr
}

// ZeroOrMoreExpr is greedy "*" repetition (spec.md §3).
type ZeroOrMoreExpr struct {
	Meta
	Expr Expr
}

// OneOrMoreExpr is greedy "+" repetition (spec.md §3).
type OneOrMoreExpr struct {
	Meta
	Expr Expr
}

// BoundKind tags how a RepeatedExpr's Min/Max was specified (spec.md §3
// "Repetition boundaries").
type BoundKind int

const (
	// BoundNone means the boundary was omitted: Min defaults to 0, Max
	// defaults to unbounded.
	BoundNone BoundKind = iota
	BoundConst
	BoundVar
	BoundCode
)

// Bound is one of a constant integer, a label reference evaluated at
// parse time, or an inline code block evaluated at parse time.
type Bound struct {
	Kind  BoundKind
	Const int
	Var   string
	Code  *CodeBlock
	Location Location
}

// RepeatedExpr is "expr|min..max, delim|" bounded repetition (spec.md §3
// "repeated").
type RepeatedExpr struct {
	Meta
	Expr  Expr
	Min   Bound
	Max   Bound
	Delim Expr // nil if no delimiter was specified
}

// GroupExpr is pure parenthesized scoping (spec.md §3 "group").
type GroupExpr struct {
	Meta
	Expr Expr
}

// LabeledExpr binds a sub-result to a name; if Pick, the enclosing
// sequence's result is this element alone (spec.md §3 "labeled").
type LabeledExpr struct {
	Meta
	Label    string
	LabelLoc Location
	HasLabel bool
	Pick     bool
	Expr     Expr
}

// TextExpr discards the structured result of Expr and yields the matched
// substring instead (spec.md §3 "text").
type TextExpr struct {
	Meta
	Expr Expr
}

// SimpleAndExpr is syntactic lookahead "&expr": matches without
// consuming input (spec.md §3 "simple_and").
type SimpleAndExpr struct {
	Meta
	Expr Expr
}

// SimpleNotExpr is syntactic negative lookahead "!expr" (spec.md §3
// "simple_not").
type SimpleNotExpr struct {
	Meta
	Expr Expr
}

// SemanticAndExpr runs a user predicate; truthiness gates the match
// (spec.md §3 "semantic_and").
type SemanticAndExpr struct {
	Meta
	Code CodeBlock
}

// SemanticNotExpr is the negated counterpart of SemanticAndExpr (spec.md
// §3 "semantic_not").
type SemanticNotExpr struct {
	Meta
	Code CodeBlock
}

// ActionExpr runs user code whose return value becomes the node's result
// (spec.md §3 "action").
type ActionExpr struct {
	Meta
	Expr Expr
	Code CodeBlock
}

// NamedExpr replaces Expr's expected-set contribution with a single
// named description (spec.md §3 "named").
type NamedExpr struct {
	Meta
	Name string
	Expr Expr
}

// Unwrap returns the sub-expression of any single-child variant, or nil
// for expressions with no single child (SeqExpr, ChoiceExpr, terminals).
// It is a convenience used by several analysis passes that recurse
// through "wrapper" expressions.
func Unwrap(e Expr) Expr {
	switch e := e.(type) {
	case *OptionalExpr:
		return e.Expr
	case *ZeroOrMoreExpr:
		return e.Expr
	case *OneOrMoreExpr:
		return e.Expr
	case *RepeatedExpr:
		return e.Expr
	case *GroupExpr:
		return e.Expr
	case *LabeledExpr:
		return e.Expr
	case *TextExpr:
		return e.Expr
	case *SimpleAndExpr:
		return e.Expr
	case *SimpleNotExpr:
		return e.Expr
	case *ActionExpr:
		return e.Expr
	case *NamedExpr:
		return e.Expr
	default:
		return nil
	}
}
