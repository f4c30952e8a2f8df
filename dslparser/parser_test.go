package dslparser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peggylang/peggy/ast"
)

func TestParseLiteralRule(t *testing.T) {
	g, err := Parse("test", `start = "a"`)
	require.NoError(t, err)
	require.Len(t, g.Rules, 1)

	r := g.Rules[0]
	assert.Equal(t, "start", r.Name)
	lit, ok := r.Expr.(*ast.LiteralExpr)
	require.True(t, ok)
	assert.Equal(t, "a", lit.Value)
	assert.False(t, lit.IgnoreCase)
}

func TestParseIgnoreCaseLiteral(t *testing.T) {
	g, err := Parse("test", `start = "a"i`)
	require.NoError(t, err)
	lit := g.Rules[0].Expr.(*ast.LiteralExpr)
	assert.True(t, lit.IgnoreCase)
}

func TestParseChoiceAndSequence(t *testing.T) {
	g, err := Parse("test", `start = "a" "b" / "c"`)
	require.NoError(t, err)

	choice, ok := g.Rules[0].Expr.(*ast.ChoiceExpr)
	require.True(t, ok)
	require.Len(t, choice.Alternatives, 2)

	seq, ok := choice.Alternatives[0].(*ast.SeqExpr)
	require.True(t, ok)
	require.Len(t, seq.Exprs, 2)

	lit, ok := choice.Alternatives[1].(*ast.LiteralExpr)
	require.True(t, ok)
	assert.Equal(t, "c", lit.Value)
}

func TestParseLabeledAndPick(t *testing.T) {
	g, err := Parse("test", `start = a:"x" @"y"`)
	require.NoError(t, err)

	seq := g.Rules[0].Expr.(*ast.SeqExpr)
	require.Len(t, seq.Exprs, 2)

	labeled, ok := seq.Exprs[0].(*ast.LabeledExpr)
	require.True(t, ok)
	assert.Equal(t, "a", labeled.Label)
	assert.False(t, labeled.Pick)

	picked, ok := seq.Exprs[1].(*ast.LabeledExpr)
	require.True(t, ok)
	assert.True(t, picked.Pick)
	assert.False(t, picked.HasLabel)
}

func TestParseActionExpr(t *testing.T) {
	g, err := Parse("test", `start = a:"x" { return a }`)
	require.NoError(t, err)

	action, ok := g.Rules[0].Expr.(*ast.ActionExpr)
	require.True(t, ok)
	assert.Equal(t, " return a ", action.Code.Code)
}

func TestParsePrefixAndSuffix(t *testing.T) {
	cases := []struct {
		name  string
		src   string
		check func(t *testing.T, e ast.Expr)
	}{
		{
			name: "optional",
			src:  `start = "a"?`,
			check: func(t *testing.T, e ast.Expr) {
				_, ok := e.(*ast.OptionalExpr)
				assert.True(t, ok)
			},
		},
		{
			name: "zero or more",
			src:  `start = "a"*`,
			check: func(t *testing.T, e ast.Expr) {
				_, ok := e.(*ast.ZeroOrMoreExpr)
				assert.True(t, ok)
			},
		},
		{
			name: "one or more",
			src:  `start = "a"+`,
			check: func(t *testing.T, e ast.Expr) {
				_, ok := e.(*ast.OneOrMoreExpr)
				assert.True(t, ok)
			},
		},
		{
			name: "syntactic and",
			src:  `start = &"a"`,
			check: func(t *testing.T, e ast.Expr) {
				_, ok := e.(*ast.SimpleAndExpr)
				assert.True(t, ok)
			},
		},
		{
			name: "syntactic not",
			src:  `start = !"a"`,
			check: func(t *testing.T, e ast.Expr) {
				_, ok := e.(*ast.SimpleNotExpr)
				assert.True(t, ok)
			},
		},
		{
			name: "semantic and",
			src:  `start = &{ true }`,
			check: func(t *testing.T, e ast.Expr) {
				_, ok := e.(*ast.SemanticAndExpr)
				assert.True(t, ok)
			},
		},
		{
			name: "semantic not",
			src:  `start = !{ false }`,
			check: func(t *testing.T, e ast.Expr) {
				_, ok := e.(*ast.SemanticNotExpr)
				assert.True(t, ok)
			},
		},
		{
			name: "text",
			src:  `start = $("a" "b")`,
			check: func(t *testing.T, e ast.Expr) {
				_, ok := e.(*ast.TextExpr)
				assert.True(t, ok)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := Parse("test", tc.src)
			require.NoError(t, err)
			tc.check(t, g.Rules[0].Expr)
		})
	}
}

func TestParseRepeatedBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		wantMin ast.BoundKind
		wantMax ast.BoundKind
	}{
		{"exact count", `start = "a"|2|`, ast.BoundConst, ast.BoundConst},
		{"range", `start = "a"|2..3|`, ast.BoundConst, ast.BoundConst},
		{"open upper", `start = "a"|2..|`, ast.BoundConst, ast.BoundNone},
		{"open lower", `start = "a"|..3|`, ast.BoundNone, ast.BoundConst},
		{"variable bound", `start = n:. "a"|n|`, ast.BoundVar, ast.BoundVar},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := Parse("test", tc.src)
			require.NoError(t, err)

			var rep *ast.RepeatedExpr
			for _, e := range unwrapSeq(g.Rules[0].Expr) {
				if r, ok := e.(*ast.RepeatedExpr); ok {
					rep = r
				}
			}
			require.NotNil(t, rep)
			assert.Equal(t, tc.wantMin, rep.Min.Kind)
			assert.Equal(t, tc.wantMax, rep.Max.Kind)
		})
	}
}

func TestParseRepeatedWithDelimiter(t *testing.T) {
	g, err := Parse("test", `start = "a"|2.., ","|`)
	require.NoError(t, err)
	rep := g.Rules[0].Expr.(*ast.RepeatedExpr)
	require.NotNil(t, rep.Delim)
	lit, ok := rep.Delim.(*ast.LiteralExpr)
	require.True(t, ok)
	assert.Equal(t, ",", lit.Value)
}

func TestParseCharacterClass(t *testing.T) {
	g, err := Parse("test", `start = [a-z0-9_]`)
	require.NoError(t, err)
	cls, ok := g.Rules[0].Expr.(*ast.ClassExpr)
	require.True(t, ok)
	assert.False(t, cls.Inverted)
	require.Len(t, cls.Parts, 3)
	assert.True(t, cls.Parts[0].IsRange)
	assert.Equal(t, 'a', cls.Parts[0].Lo)
	assert.Equal(t, 'z', cls.Parts[0].Hi)
}

func TestParseInvertedClass(t *testing.T) {
	g, err := Parse("test", `start = [^a-z]`)
	require.NoError(t, err)
	cls := g.Rules[0].Expr.(*ast.ClassExpr)
	assert.True(t, cls.Inverted)
}

func TestParseAnyAndRuleRef(t *testing.T) {
	g, err := Parse("test", "start = . / other\nother = \"x\"")
	require.NoError(t, err)
	require.Len(t, g.Rules, 2)
	choice := g.Rules[0].Expr.(*ast.ChoiceExpr)
	_, ok := choice.Alternatives[0].(*ast.AnyExpr)
	assert.True(t, ok)
	ref, ok := choice.Alternatives[1].(*ast.RuleRefExpr)
	require.True(t, ok)
	assert.Equal(t, "other", ref.Name)
}

func TestParseLibraryRef(t *testing.T) {
	g, err := Parse("test", `
import base from "./base.peg";
start = base.number
`)
	require.NoError(t, err)
	require.Len(t, g.Imports, 1)
	assert.Equal(t, "./base.peg", g.Imports[0].Module)
	assert.Equal(t, "base", g.Imports[0].Bindings[0].Name)

	ref, ok := g.Rules[0].Expr.(*ast.LibraryRefExpr)
	require.True(t, ok)
	assert.Equal(t, "base", ref.Import)
	assert.Equal(t, "number", ref.Rule)
}

func TestParseDestructuredImport(t *testing.T) {
	g, err := Parse("test", `
import { number, ws as whitespace } from "./base.peg";
start = number
`)
	require.NoError(t, err)
	require.Len(t, g.Imports[0].Bindings, 2)
	assert.Equal(t, "ws", g.Imports[0].Bindings[1].Name)
	assert.Equal(t, "whitespace", g.Imports[0].Bindings[1].Alias)
}

func TestParseInitializers(t *testing.T) {
	g, err := Parse("test", `
{{{ package header code }}}
{{ per parse code }}
start = "a"
`)
	require.NoError(t, err)
	require.NotNil(t, g.Initializer)
	assert.Contains(t, g.Initializer.Code, "package header code")
	require.NotNil(t, g.PerParseInitializer)
	assert.Contains(t, g.PerParseInitializer.Code, "per parse code")
}

func TestParseDisplayName(t *testing.T) {
	g, err := Parse("test", `start "start rule" = "a"`)
	require.NoError(t, err)
	assert.True(t, g.Rules[0].HasDisplayName)
	assert.Equal(t, "start rule", g.Rules[0].DisplayName)
}

func TestParseRuleOperatorVariants(t *testing.T) {
	for _, op := range []string{"=", "<-", "←", "⟵"} {
		g, err := Parse("test", "start "+op+` "a"`)
		require.NoError(t, err, op)
		require.Len(t, g.Rules, 1, op)
	}
}

func TestParseRejectsReservedRuleName(t *testing.T) {
	_, err := Parse("test", `for = "a"`)
	require.Error(t, err)
	assert.IsType(t, &SyntaxError{}, err)
}

func TestParseEmptyGrammarFails(t *testing.T) {
	_, err := Parse("test", ``)
	require.Error(t, err)
}

func TestParseReportsPositionOfFailure(t *testing.T) {
	_, err := Parse("test", `start = "a" +++`)
	require.Error(t, err)
	se, ok := err.(*SyntaxError)
	require.True(t, ok)
	assert.Equal(t, "test", se.Source)
	assert.Contains(t, se.Error(), "test:")
}

func TestParseFragmentsConcatenatesRules(t *testing.T) {
	g, err := ParseFragments([]Fragment{
		{Name: "a.peg", Text: `start = "a"`},
		{Name: "b.peg", Text: `other = "b"`},
	})
	require.NoError(t, err)
	require.Len(t, g.Rules, 2)
	assert.Equal(t, "start", g.Rules[0].Name)
	assert.Equal(t, "other", g.Rules[1].Name)
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved("func"))
	assert.True(t, IsReserved("range"))
	assert.False(t, IsReserved("start"))
}

func unwrapSeq(e ast.Expr) []ast.Expr {
	if seq, ok := e.(*ast.SeqExpr); ok {
		return seq.Exprs
	}
	return []ast.Expr{e}
}

// shapeOf renders a rule's expression tree down to its node kinds and
// literal/rule-name payloads, skipping Location entirely so it can be
// diffed across two independently-parsed sources without false
// mismatches from byte-offset noise.
func shapeOf(g *ast.Grammar) string {
	var b strings.Builder
	for _, r := range g.Rules {
		fmt.Fprintf(&b, "%s: %s\n", r.Name, shapeOfExpr(r.Expr))
	}
	return b.String()
}

func shapeOfExpr(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.LiteralExpr:
		return fmt.Sprintf("lit(%q)", e.Value)
	case *ast.RuleRefExpr:
		return fmt.Sprintf("ref(%s)", e.Name)
	case *ast.SeqExpr:
		parts := make([]string, len(e.Exprs))
		for i, sub := range e.Exprs {
			parts[i] = shapeOfExpr(sub)
		}
		return "seq(" + strings.Join(parts, ",") + ")"
	case *ast.ChoiceExpr:
		parts := make([]string, len(e.Alternatives))
		for i, sub := range e.Alternatives {
			parts[i] = shapeOfExpr(sub)
		}
		return "choice(" + strings.Join(parts, ",") + ")"
	default:
		if inner := ast.Unwrap(e); inner != nil {
			return fmt.Sprintf("%T(%s)", e, shapeOfExpr(inner))
		}
		return fmt.Sprintf("%T", e)
	}
}

// Splitting a grammar across fragment boundaries must never change the
// shape of the rules involved, only where they're recorded as coming
// from; cmp.Diff is a clearer failure report here than a hand-rolled
// field-by-field comparison would be, since a mismatch anywhere in the
// tree shows up as a single unified diff instead of one assertion
// failure per node.
func TestParseFragmentsPreservesRuleShape(t *testing.T) {
	whole, err := Parse("t", "start = helper \"!\"\nhelper = \"a\" / \"b\"\n")
	require.NoError(t, err)

	split, err := ParseFragments([]Fragment{
		{Name: "a.peg", Text: `start = helper "!"`},
		{Name: "b.peg", Text: `helper = "a" / "b"`},
	})
	require.NoError(t, err)

	if diff := cmp.Diff(shapeOf(whole), shapeOf(split)); diff != "" {
		t.Errorf("rule shape mismatch after fragment split (-whole +split):\n%s", diff)
	}
}
