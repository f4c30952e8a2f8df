package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peggylang/peggy/ast"
	"github.com/peggylang/peggy/dslparser"
)

func mustParse(t *testing.T, src string) *ast.Grammar {
	t.Helper()
	g, err := dslparser.Parse("t", src)
	require.NoError(t, err)
	return g
}

func errorMessages(probs []Problem) []string {
	var out []string
	for _, p := range probs {
		if p.Severity == SeverityError {
			out = append(out, p.Message)
		}
	}
	return out
}

func TestUndefinedRulesPass(t *testing.T) {
	g := mustParse(t, `start = missing`)
	probs := undefinedRulesPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
	assert.Equal(t, SeverityError, probs[0].Severity)
	assert.Contains(t, probs[0].Message, "missing")
}

func TestUndefinedRulesPassOK(t *testing.T) {
	g := mustParse(t, "start = inner\ninner = \"x\"\n")
	probs := undefinedRulesPass{}.Run(g, Options{})
	assert.Empty(t, probs)
}

func TestUndefinedRulesPassUnboundLibraryRef(t *testing.T) {
	g := mustParse(t, `start = nums.digit`)
	probs := undefinedRulesPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
	assert.Contains(t, probs[0].Message, "nums")
}

func TestUndefinedRulesPassSuggestsCloseName(t *testing.T) {
	g := mustParse(t, "start = vaule\nvalue = \"x\"\n")
	probs := undefinedRulesPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
	require.Len(t, probs[0].Notes, 1)
	assert.Contains(t, probs[0].Notes[0], `"value"`)
}

func TestUndefinedRulesPassNoSuggestionWhenNothingClose(t *testing.T) {
	g := mustParse(t, "start = zzzzzzzzzz\nvalue = \"x\"\n")
	probs := undefinedRulesPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
	assert.Empty(t, probs[0].Notes)
}

func TestDuplicatesPassRules(t *testing.T) {
	g := mustParse(t, "start = \"a\"\nstart = \"b\"\n")
	probs := duplicatesPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
	assert.Contains(t, probs[0].Message, "start")
}

func TestInfiniteLoopPassStarOverEmpty(t *testing.T) {
	g := mustParse(t, `start = ""*`)
	probs := infiniteLoopPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
	assert.Equal(t, SeverityError, probs[0].Severity)
}

func TestInfiniteLoopPassStarOverNonEmptyOK(t *testing.T) {
	g := mustParse(t, `start = "a"*`)
	probs := infiniteLoopPass{}.Run(g, Options{})
	assert.Empty(t, probs)
}

func TestInfiniteLoopPassPlusOverEmpty(t *testing.T) {
	g := mustParse(t, `start = ""+`)
	probs := infiniteLoopPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
}

func TestInfiniteLoopPassRepeatedWithFloorOK(t *testing.T) {
	g := mustParse(t, `start = ""|1..3|`)
	probs := infiniteLoopPass{}.Run(g, Options{})
	assert.Empty(t, probs)
}

func TestInfiniteLoopPassRepeatedUnboundedMax(t *testing.T) {
	g := mustParse(t, `start = ""|1..|`)
	probs := infiniteLoopPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
}

func TestLeftRecursionPassDirect(t *testing.T) {
	g := mustParse(t, "start = start \"a\"\n")
	probs := leftRecursionPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
	assert.Contains(t, probs[0].Message, "start")
}

func TestLeftRecursionPassIndirect(t *testing.T) {
	g := mustParse(t, "a = b\nb = a\n")
	probs := leftRecursionPass{}.Run(g, Options{})
	require.NotEmpty(t, probs)
}

func TestLeftRecursionPassAllowedAfterNonEmptyPrefix(t *testing.T) {
	g := mustParse(t, "start = \"x\" start\n")
	probs := leftRecursionPass{}.Run(g, Options{})
	assert.Empty(t, probs)
}

func TestLeftRecursionPassSkipsPastEmptyPrefix(t *testing.T) {
	g := mustParse(t, "start = \"\"? start\n")
	probs := leftRecursionPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
}

func TestPlucksPassOutsideSequence(t *testing.T) {
	g := mustParse(t, `start = @"a"`)
	probs := plucksPass{}.Run(g, Options{})
	assert.Empty(t, probs, "a bare top-level pick is a no-op, not an error")
}

func TestPlucksPassInsideSequenceOK(t *testing.T) {
	g := mustParse(t, `start = "(" @"y" ")"`)
	probs := plucksPass{}.Run(g, Options{})
	assert.Empty(t, probs)
}

func TestPlucksPassOverriddenByAction(t *testing.T) {
	g := mustParse(t, `start = "(" @"y" ")" { return nil }`)
	probs := plucksPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
	assert.Equal(t, SeverityError, probs[0].Severity)
}

func TestPlucksPassBareInAlternativeIsFlagged(t *testing.T) {
	g := mustParse(t, `start = "a" / @"b"`)
	probs := plucksPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
}

func TestDuplicateLabelsPassSameScope(t *testing.T) {
	g := mustParse(t, `start = a:"x" a:"y"`)
	probs := duplicateLabelsPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
	assert.Contains(t, probs[0].Message, `"a"`)
}

func TestDuplicateLabelsPassDifferentRulesOK(t *testing.T) {
	g := mustParse(t, "r1 = a:\"x\"\nr2 = a:\"y\"\n")
	probs := duplicateLabelsPass{}.Run(g, Options{})
	assert.Empty(t, probs)
}

func TestDuplicateLabelsPassNestedActionIntroducesNewScope(t *testing.T) {
	g := mustParse(t, `start = a:"x" (a:"y" { return a })`)
	probs := duplicateLabelsPass{}.Run(g, Options{})
	assert.Empty(t, probs)
}

func TestUnusedRulesPass(t *testing.T) {
	g := mustParse(t, "start = \"a\"\norphan = \"b\"\n")
	probs := unusedRulesPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
	assert.Contains(t, probs[0].Message, "orphan")
	assert.Equal(t, SeverityWarning, probs[0].Severity)
}

func TestUnusedRulesPassReachableThroughChain(t *testing.T) {
	g := mustParse(t, "start = mid\nmid = leaf\nleaf = \"a\"\n")
	probs := unusedRulesPass{}.Run(g, Options{})
	assert.Empty(t, probs)
}

func TestUnusedRulesPassWildcardStartMeansNothingUnused(t *testing.T) {
	g := mustParse(t, "start = \"a\"\nother = \"b\"\n")
	probs := unusedRulesPass{}.Run(g, Options{AllowedStartRules: []string{"*"}})
	assert.Empty(t, probs)
}

func TestAllowedStartRulesPass(t *testing.T) {
	g := mustParse(t, `start = "a"`)
	probs := allowedStartRulesPass{}.Run(g, Options{AllowedStartRules: []string{"nope"}})
	require.Len(t, probs, 1)
}

func TestAllowedStartRulesPassWildcardOK(t *testing.T) {
	g := mustParse(t, `start = "a"`)
	probs := allowedStartRulesPass{}.Run(g, Options{AllowedStartRules: []string{"*"}})
	assert.Empty(t, probs)
}

func TestTypeInferencePassAdvisoryNeverAborts(t *testing.T) {
	g := mustParse(t, `start = "a" "b"`)
	probs := typeInferencePass{}.Run(g, Options{})
	require.Len(t, probs, 1)
	assert.Equal(t, SeverityWarning, probs[0].Severity)
	assert.Contains(t, probs[0].Message, "[]interface{}")
}

func TestTypeInferencePassTextYieldsString(t *testing.T) {
	g := mustParse(t, `start = $("a" "b")`)
	probs := typeInferencePass{}.Run(g, Options{})
	require.Len(t, probs, 1)
	assert.Contains(t, probs[0].Message, "string")
}

func TestReservedWordsPassImportBinding(t *testing.T) {
	g := mustParse(t, "import { range } from \"./x.peggy\"\nstart = \"a\"\n")
	probs := reservedWordsPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
	assert.Contains(t, probs[0].Message, "range")
}

func TestRepetitionBoundsPassMaxZero(t *testing.T) {
	g := mustParse(t, `start = "a"|0|`)
	probs := repetitionBoundsPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
}

func TestRepetitionBoundsPassMaxLessThanMin(t *testing.T) {
	g := mustParse(t, `start = "a"|3..2|`)
	probs := repetitionBoundsPass{}.Run(g, Options{})
	require.Len(t, probs, 1)
	assert.Contains(t, probs[0].Message, "less than")
}

func TestRepetitionBoundsPassOK(t *testing.T) {
	g := mustParse(t, `start = "a"|1..3|`)
	probs := repetitionBoundsPass{}.Run(g, Options{})
	assert.Empty(t, probs)
}

func TestManagerStopsOnFirstError(t *testing.T) {
	g := mustParse(t, `start = missing`)
	m := NewManager()
	probs, err := m.Run(g, Options{})
	require.Error(t, err)
	require.NotEmpty(t, probs)
	// undefined-rules is pass 1, so nothing past it should have run.
	for _, p := range probs {
		assert.Equal(t, "undefined-rules", p.Pass)
	}
}

func TestManagerCleanGrammarProducesNoErrors(t *testing.T) {
	g := mustParse(t, "start = a:\"x\" b:\"y\" { return nil }\n")
	m := NewManager()
	probs, err := m.Run(g, Options{})
	require.NoError(t, err)
	assert.Empty(t, errorMessages(probs))
}

func TestManagerContinuesWhenStopOnErrorDisabled(t *testing.T) {
	g := mustParse(t, "start = missing\norphan = \"a\"\n")
	m := NewManager()
	m.StopOnError = false
	probs, err := m.Run(g, Options{})
	require.Error(t, err)

	var sawUnused bool
	for _, p := range probs {
		if p.Pass == "unused-rules" {
			sawUnused = true
		}
	}
	assert.True(t, sawUnused, "later passes should still run with StopOnError disabled")
}
