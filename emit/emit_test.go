package emit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peggylang/peggy/compiler"
	"github.com/peggylang/peggy/dslparser"
)

func mustCompileArtifact(t *testing.T, src string) *compiler.Artifact {
	t.Helper()
	g, err := dslparser.Parse("t", src)
	require.NoError(t, err)
	art, err := compiler.Compile(g, "")
	require.NoError(t, err)
	return art
}

func TestRenderLiteralGrammarProducesValidGoSource(t *testing.T) {
	art := mustCompileArtifact(t, `start = "abc"`)
	src, err := Render(art, Options{PackageName: "genparser"})
	require.NoError(t, err)

	out := string(src)
	assert.Contains(t, out, "package genparser")
	assert.Contains(t, out, "ϡstringMatcher{value: \"abc\"")
	assert.Contains(t, out, "var ϡtheProgram")
	assert.Contains(t, out, "func Parse(")
	assert.NotContains(t, out, "//+peggy:")
}

func TestRenderActionEmitsOnMethodWithLabelParams(t *testing.T) {
	art := mustCompileArtifact(t, `start = a:"x" b:"y" { return a }`)
	src, err := Render(art, Options{PackageName: "genparser"})
	require.NoError(t, err)

	out := string(src)
	assert.Contains(t, out, "(a interface{}, b interface{})")
	assert.Contains(t, out, "return a")
	assert.True(t, strings.Contains(out, "ϡcallact0"))
}

func TestRenderTextExpressionUsesNativeTemplate(t *testing.T) {
	art := mustCompileArtifact(t, `start = $("a" "b")`)
	src, err := Render(art, Options{PackageName: "genparser"})
	require.NoError(t, err)

	assert.Contains(t, string(src), "return string(v.cur.text), nil")
}

func TestRenderPackageMemberSkipsPackageClause(t *testing.T) {
	art := mustCompileArtifact(t, `start = "x"`)
	src, err := Render(art, Options{Format: FormatPackageMember})
	require.NoError(t, err)

	assert.NotContains(t, string(src), "package ")
}

func TestRenderBoundedRepetitionEmitsMinLengthGate(t *testing.T) {
	art := mustCompileArtifact(t, `start = "a"|2..3|`)
	src, err := Render(art, Options{PackageName: "genparser"})
	require.NoError(t, err)

	assert.Contains(t, string(src), "len(arr) >= 2")
}

func TestRenderNegatedUnicodeClassEmitsNegatedEntry(t *testing.T) {
	art := mustCompileArtifact(t, `start = [\P{Letter}]`)
	src, err := Render(art, Options{PackageName: "genparser"})
	require.NoError(t, err)

	out := string(src)
	assert.Contains(t, out, `{table: ϡrangeTable("Letter"), negated: true}`)
}

func TestRenderPlainUnicodeClassEmitsNonNegatedEntry(t *testing.T) {
	art := mustCompileArtifact(t, `start = [\p{Letter}]`)
	src, err := Render(art, Options{PackageName: "genparser"})
	require.NoError(t, err)

	out := string(src)
	assert.Contains(t, out, `{table: ϡrangeTable("Letter"), negated: false}`)
}
