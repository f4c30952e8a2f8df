package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationContains(t *testing.T) {
	outer := Location{Start: Pos{Offset: 0}, End: Pos{Offset: 10}}
	inner := Location{Start: Pos{Offset: 2}, End: Pos{Offset: 5}}
	assert.True(t, outer.Contains(inner))
	assert.False(t, inner.Contains(outer))
}

func TestRuleByName(t *testing.T) {
	g := &Grammar{Rules: []*Rule{
		{Name: "A"},
		{Name: "B"},
	}}
	require.NotNil(t, g.RuleByName("B"))
	assert.Nil(t, g.RuleByName("C"))
}

func TestWalkStopsDescendingWhenVisitorReturnsNil(t *testing.T) {
	lit := &LiteralExpr{Value: "a"}
	seq := &SeqExpr{Exprs: []Expr{lit, &AnyExpr{}}}
	choice := &ChoiceExpr{Alternatives: []Expr{seq, &RuleRefExpr{Name: "X"}}}

	var seen int
	Walk(VisitorFunc(func(e Expr) Visitor {
		seen++
		return VisitorFunc(func(e Expr) Visitor { seen++; return nil })
	}), choice)

	// choice, then its children seq and ruleref; the inner visitor
	// returns nil, so seq's children lit and any are never visited.
	assert.Equal(t, 3, seen)
}

func TestRewritePreservesShapeUnlessChanged(t *testing.T) {
	lit := &LiteralExpr{Value: "a"}
	opt := &OptionalExpr{Expr: lit}

	got := Rewrite(opt, func(e Expr) Expr { return e })
	assert.Same(t, opt, got)

	got = Rewrite(opt, func(e Expr) Expr {
		if l, ok := e.(*LiteralExpr); ok {
			return &LiteralExpr{Value: l.Value + "!"}
		}
		return e
	})
	o2, ok := got.(*OptionalExpr)
	require.True(t, ok)
	l2, ok := o2.Expr.(*LiteralExpr)
	require.True(t, ok)
	assert.Equal(t, "a!", l2.Value)
}

func TestScopeLookupChecksAncestors(t *testing.T) {
	parent := NewScope(nil)
	parent.Labels["x"] = Location{}
	child := NewScope(parent)

	_, ok := child.Lookup("x")
	assert.True(t, ok)
	_, ok = child.Lookup("y")
	assert.False(t, ok)
}

func TestWalkScopedTracksSequenceScope(t *testing.T) {
	inner := &LabeledExpr{Label: "b", HasLabel: true, Expr: &LiteralExpr{Value: "b"}}
	seq := &SeqExpr{Exprs: []Expr{
		&LabeledExpr{Label: "a", HasLabel: true, Expr: &LiteralExpr{Value: "a"}},
		inner,
	}}

	var sawAAtB bool
	WalkScoped(seq, NewScope(nil), func(e Expr, env *ScopeEnv) {
		if e == inner {
			_, sawAAtB = env.Lookup("a")
		}
	})
	assert.True(t, sawAAtB)
}

func TestUnwrap(t *testing.T) {
	lit := &LiteralExpr{Value: "x"}
	assert.Equal(t, Expr(lit), Unwrap(&GroupExpr{Expr: lit}))
	assert.Nil(t, Unwrap(&SeqExpr{}))
}
