package peggy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peggylang/peggy/analysis"
	"github.com/peggylang/peggy/ast"
)

func TestGenerateParserRunsAgainstInput(t *testing.T) {
	res, err := Generate([]Source{{Name: "t", Text: `start = "a"+`}})
	require.NoError(t, err)
	require.NotNil(t, res.Parser)
	assert.NotEqual(t, uuid.Nil, res.BuildID)

	out, err := res.Parser.Parse("t", []byte("aaa"))
	require.NoError(t, err)
	assert.Len(t, out.([]interface{}), 3)

	_, err = res.Parser.Parse("t", []byte("bbb"))
	assert.Error(t, err)
}

func TestGenerateDistinctCallsGetDistinctBuildIDs(t *testing.T) {
	a, err := Generate([]Source{{Name: "t", Text: `start = "a"`}})
	require.NoError(t, err)
	b, err := Generate([]Source{{Name: "t", Text: `start = "a"`}})
	require.NoError(t, err)
	assert.NotEqual(t, a.BuildID, b.BuildID)
}

func TestGenerateSourceModeProducesStandaloneFile(t *testing.T) {
	res, err := Generate(
		[]Source{{Name: "t", Text: `start = "a"+`}},
		WithOutput(OutputSource),
		WithPackageName("genparser"),
	)
	require.NoError(t, err)
	require.NotEmpty(t, res.Source)
	assert.Contains(t, string(res.Source), "package genparser")
	assert.Contains(t, string(res.Source), "func Parse(")
}

func TestGenerateASTModeSkipsCompilation(t *testing.T) {
	res, err := Generate([]Source{{Name: "t", Text: `start = "a"`}}, WithOutput(OutputAST))
	require.NoError(t, err)
	require.NotNil(t, res.Grammar)
	assert.Nil(t, res.Parser)
	assert.Len(t, res.Grammar.Rules, 1)
}

func TestGenerateSyntaxErrorReportsPhase(t *testing.T) {
	_, err := Generate([]Source{{Name: "t", Text: `start = `}})
	require.Error(t, err)
	var genErr *GenerateError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, PhaseSyntax, genErr.Phase)
}

func TestGenerateSemanticErrorReportsProblems(t *testing.T) {
	_, err := Generate([]Source{{Name: "t", Text: `start = missing`}})
	require.Error(t, err)
	var genErr *GenerateError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, PhaseSemantic, genErr.Phase)
	require.NotEmpty(t, genErr.Problems)
	assert.Contains(t, genErr.Problems[0].Message, "undefined rule")
}

func TestGenerateUnknownAllowedStartRuleIsSemanticError(t *testing.T) {
	_, err := Generate(
		[]Source{{Name: "t", Text: `start = "a"`}},
		WithAllowedStartRules("nope"),
	)
	require.Error(t, err)
	var genErr *GenerateError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, PhaseSemantic, genErr.Phase)
}

type rejectPlugin struct{}

func (rejectPlugin) Use(g *Generator, cfg *Config) error {
	return assertNever{}
}

type assertNever struct{}

func (assertNever) Error() string { return "plugin refused to run" }

func TestGeneratePluginErrorReportsPhase(t *testing.T) {
	_, err := Generate(
		[]Source{{Name: "t", Text: `start = "a"`}},
		WithPlugins(rejectPlugin{}),
	)
	require.Error(t, err)
	var genErr *GenerateError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, PhasePlugin, genErr.Phase)
}

// ruleCountPass rejects any grammar with more than one rule, to prove a
// plugin-added pass actually runs as part of the pipeline.
type ruleCountPass struct{}

func (ruleCountPass) Name() string { return "rule-count" }

func (ruleCountPass) Run(g *ast.Grammar, opts analysis.Options) []analysis.Problem {
	if len(g.Rules) > 1 {
		return []analysis.Problem{{Severity: analysis.SeverityError, Message: "too many rules", Location: g.Location}}
	}
	return nil
}

type ruleCountPlugin struct{}

func (ruleCountPlugin) Use(g *Generator, cfg *Config) error {
	g.AddPass(ruleCountPass{})
	return nil
}

func TestPluginAddedPassParticipatesInAnalysis(t *testing.T) {
	_, err := Generate(
		[]Source{{Name: "t", Text: "start = helper\nhelper = \"x\""}},
		WithOutput(OutputAST),
		WithPlugins(ruleCountPlugin{}),
	)
	require.Error(t, err)
	var genErr *GenerateError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, PhaseSemantic, genErr.Phase)
	assert.Contains(t, genErr.Err.Error(), "too many rules")
}

func TestMultiSourceConcatenatesRules(t *testing.T) {
	res, err := Generate([]Source{
		{Name: "a", Text: `start = helper`},
		{Name: "b", Text: `helper = "x"`},
	}, WithOutput(OutputAST))
	require.NoError(t, err)
	assert.Len(t, res.Grammar.Rules, 2)
}
