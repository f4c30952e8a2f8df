package ast

// Visitor is the uniform traversal mechanism every analysis pass builds
// on (spec.md §4.2). Visit is called for every Expr node in the tree,
// pre-order; if it returns a non-nil Visitor, Walk recurses into the
// node's children with that (possibly different) visitor, exactly like
// go/ast.Visitor.
type Visitor interface {
	Visit(e Expr) Visitor
}

// VisitorFunc adapts a plain function to the Visitor interface.
type VisitorFunc func(Expr) Visitor

func (f VisitorFunc) Visit(e Expr) Visitor { return f(e) }

// Walk traverses e and its children in depth-first order, calling
// v.Visit for each node. Unknown node tags are a programming error, not
// a parse error, and Walk panics on them — every Expr variant in this
// package is listed below.
func Walk(v Visitor, e Expr) {
	if e == nil || v == nil {
		return
	}
	v = v.Visit(e)
	if v == nil {
		return
	}

	switch e := e.(type) {
	case *LiteralExpr, *ClassExpr, *AnyExpr, *RuleRefExpr, *LibraryRefExpr,
		*SemanticAndExpr, *SemanticNotExpr:
		// terminals: no children to recurse into

	case *SeqExpr:
		for _, s := range e.Exprs {
			Walk(v, s)
		}
	case *ChoiceExpr:
		for _, a := range e.Alternatives {
			Walk(v, a)
		}
	case *OptionalExpr:
		Walk(v, e.Expr)
	case *ZeroOrMoreExpr:
		Walk(v, e.Expr)
	case *OneOrMoreExpr:
		Walk(v, e.Expr)
	case *RepeatedExpr:
		Walk(v, e.Expr)
		if e.Delim != nil {
			Walk(v, e.Delim)
		}
	case *GroupExpr:
		Walk(v, e.Expr)
	case *LabeledExpr:
		Walk(v, e.Expr)
	case *TextExpr:
		Walk(v, e.Expr)
	case *SimpleAndExpr:
		Walk(v, e.Expr)
	case *SimpleNotExpr:
		Walk(v, e.Expr)
	case *ActionExpr:
		Walk(v, e.Expr)
	case *NamedExpr:
		Walk(v, e.Expr)

	default:
		panic("ast.Walk: unknown node type")
	}
}

// WalkGrammar walks every rule's expression tree in g, in declaration
// order.
func WalkGrammar(v Visitor, g *Grammar) {
	for _, r := range g.Rules {
		Walk(v, r.Expr)
	}
}

// Rewriter is called bottom-up (post-order) on every node of a tree by
// Rewrite; returning a different Expr replaces the subtree. Locations
// are preserved by Rewrite when a Rewriter leaves Loc() unchanged; a
// pass that mints a genuinely new span sets it explicitly on the
// returned node.
type Rewriter func(Expr) Expr

// Rewrite rebuilds e bottom-up, calling fn on every node after its
// children have already been rewritten, and returns the (possibly new)
// root. It is the rewriting counterpart of Walk (spec.md §4.2).
func Rewrite(e Expr, fn Rewriter) Expr {
	if e == nil {
		return nil
	}

	switch e := e.(type) {
	case *LiteralExpr, *ClassExpr, *AnyExpr, *RuleRefExpr, *LibraryRefExpr,
		*SemanticAndExpr, *SemanticNotExpr:
		// terminals

	case *SeqExpr:
		for i, s := range e.Exprs {
			e.Exprs[i] = Rewrite(s, fn)
		}
	case *ChoiceExpr:
		for i, a := range e.Alternatives {
			e.Alternatives[i] = Rewrite(a, fn)
		}
	case *OptionalExpr:
		e.Expr = Rewrite(e.Expr, fn)
	case *ZeroOrMoreExpr:
		e.Expr = Rewrite(e.Expr, fn)
	case *OneOrMoreExpr:
		e.Expr = Rewrite(e.Expr, fn)
	case *RepeatedExpr:
		e.Expr = Rewrite(e.Expr, fn)
		if e.Delim != nil {
			e.Delim = Rewrite(e.Delim, fn)
		}
	case *GroupExpr:
		e.Expr = Rewrite(e.Expr, fn)
	case *LabeledExpr:
		e.Expr = Rewrite(e.Expr, fn)
	case *TextExpr:
		e.Expr = Rewrite(e.Expr, fn)
	case *SimpleAndExpr:
		e.Expr = Rewrite(e.Expr, fn)
	case *SimpleNotExpr:
		e.Expr = Rewrite(e.Expr, fn)
	case *ActionExpr:
		e.Expr = Rewrite(e.Expr, fn)
	case *NamedExpr:
		e.Expr = Rewrite(e.Expr, fn)

	default:
		panic("ast.Rewrite: unknown node type")
	}

	return fn(e)
}

// RewriteGrammar applies Rewrite to every rule's expression in place.
func RewriteGrammar(g *Grammar, fn Rewriter) {
	for _, r := range g.Rules {
		r.Expr = Rewrite(r.Expr, fn)
	}
}

// ScopeEnv threads label bindings through a walk, used by passes that
// need to know which labels are in scope at a given node (duplicate
// label detection, repetition boundary Var resolution). It models
// "environment-threaded walks" from spec.md §4.2.
type ScopeEnv struct {
	Labels map[string]Location
	Parent *ScopeEnv
}

// NewScope returns a child scope of parent (parent may be nil).
func NewScope(parent *ScopeEnv) *ScopeEnv {
	return &ScopeEnv{Labels: make(map[string]Location), Parent: parent}
}

// Lookup searches this scope and its ancestors for label nm.
func (s *ScopeEnv) Lookup(nm string) (Location, bool) {
	for e := s; e != nil; e = e.Parent {
		if loc, ok := e.Labels[nm]; ok {
			return loc, true
		}
	}
	return Location{}, false
}

// WalkScoped performs an environment-threaded walk: fn is called with
// the node and the scope active at that node. A sequence or action
// introduces a new scope, matching the "enclosing sequence/action"
// scope rule in spec.md §4.3 pass 6.
func WalkScoped(e Expr, env *ScopeEnv, fn func(Expr, *ScopeEnv)) {
	if e == nil {
		return
	}
	fn(e, env)

	switch e := e.(type) {
	case *SeqExpr:
		child := NewScope(env)
		for _, s := range e.Exprs {
			WalkScoped(s, child, fn)
		}
	case *ActionExpr:
		child := NewScope(env)
		WalkScoped(e.Expr, child, fn)
	case *LabeledExpr:
		if e.HasLabel {
			env.Labels[e.Label] = e.LabelLoc
		}
		WalkScoped(e.Expr, env, fn)
	case *ChoiceExpr:
		for _, a := range e.Alternatives {
			WalkScoped(a, env, fn)
		}
	case *OptionalExpr:
		WalkScoped(e.Expr, env, fn)
	case *ZeroOrMoreExpr:
		WalkScoped(e.Expr, env, fn)
	case *OneOrMoreExpr:
		WalkScoped(e.Expr, env, fn)
	case *RepeatedExpr:
		WalkScoped(e.Expr, env, fn)
		if e.Delim != nil {
			WalkScoped(e.Delim, env, fn)
		}
	case *GroupExpr:
		WalkScoped(e.Expr, env, fn)
	case *TextExpr:
		WalkScoped(e.Expr, env, fn)
	case *SimpleAndExpr:
		WalkScoped(e.Expr, env, fn)
	case *SimpleNotExpr:
		WalkScoped(e.Expr, env, fn)
	case *NamedExpr:
		WalkScoped(e.Expr, env, fn)
	}
}
