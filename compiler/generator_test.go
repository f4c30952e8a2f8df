package compiler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peggylang/peggy/ast"
	"github.com/peggylang/peggy/dslparser"
	"github.com/peggylang/peggy/vm"
)

func mustCompile(t *testing.T, src string, opts ...Option) *vm.Program {
	t.Helper()
	g, err := dslparser.Parse("t", src)
	require.NoError(t, err)
	prog, err := Generate(g, "", opts...)
	require.NoError(t, err)
	return prog
}

func TestGenerateLiteralMatch(t *testing.T) {
	prog := mustCompile(t, `start = "abc"`)
	res, err := vm.Run("t", []byte("abc"), prog)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), res)
}

func TestGenerateLiteralMismatch(t *testing.T) {
	prog := mustCompile(t, `start = "abc"`)
	_, err := vm.Run("t", []byte("xyz"), prog)
	assert.Error(t, err)
}

func TestGenerateSequenceAndChoice(t *testing.T) {
	prog := mustCompile(t, `start = "a" "b" / "c"`)

	res, err := vm.Run("t", []byte("ab"), prog)
	require.NoError(t, err)
	arr, ok := res.([]interface{})
	require.True(t, ok)
	require.Len(t, arr, 2)
	assert.Equal(t, []byte("a"), arr[0])
	assert.Equal(t, []byte("b"), arr[1])

	res, err = vm.Run("t", []byte("c"), prog)
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), res)

	_, err = vm.Run("t", []byte("x"), prog)
	assert.Error(t, err)
}

func TestGenerateZeroOrMoreAndOptional(t *testing.T) {
	prog := mustCompile(t, `start = "a"* "b"?`)

	res, err := vm.Run("t", []byte("aab"), prog)
	require.NoError(t, err)
	arr := res.([]interface{})
	as := arr[0].([]interface{})
	require.Len(t, as, 2)
	assert.Equal(t, []byte("b"), arr[1])

	res, err = vm.Run("t", []byte(""), prog)
	require.NoError(t, err)
	arr = res.([]interface{})
	as = arr[0].([]interface{})
	assert.Empty(t, as)
	assert.Nil(t, arr[1])
}

func TestGenerateOneOrMore(t *testing.T) {
	prog := mustCompile(t, `start = "a"+`)

	res, err := vm.Run("t", []byte("aaa"), prog)
	require.NoError(t, err)
	assert.Len(t, res.([]interface{}), 3)

	_, err = vm.Run("t", []byte(""), prog)
	assert.Error(t, err)
}

func TestGeneratePick(t *testing.T) {
	prog := mustCompile(t, `start = "(" @"y" ")"`)

	res, err := vm.Run("t", []byte("(y)"), prog)
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), res)
}

func TestGenerateExactRepetition(t *testing.T) {
	prog := mustCompile(t, `start = "a"|2|`)

	res, err := vm.Run("t", []byte("aa"), prog)
	require.NoError(t, err)
	assert.Len(t, res.([]interface{}), 2)

	_, err = vm.Run("t", []byte("a"), prog)
	assert.Error(t, err)
}

func TestGenerateBoundedRangeRepetition(t *testing.T) {
	prog := mustCompile(t, `start = "a"|1..3|`)

	res, err := vm.Run("t", []byte("aa"), prog)
	require.NoError(t, err)
	assert.Len(t, res.([]interface{}), 2)

	_, err = vm.Run("t", []byte(""), prog)
	assert.Error(t, err)
}

func TestGenerateRuleReferenceForwardDeclared(t *testing.T) {
	prog := mustCompile(t, "start = \"(\" inner \")\"\ninner = \"x\"\n")

	res, err := vm.Run("t", []byte("(x)"), prog)
	require.NoError(t, err)
	arr := res.([]interface{})
	require.Len(t, arr, 3)
	assert.Equal(t, []byte("x"), arr[1])
}

func TestGenerateUndefinedRuleFails(t *testing.T) {
	g, err := dslparser.Parse("t", `start = missing`)
	require.NoError(t, err)
	_, err = Generate(g, "")
	require.Error(t, err)
	var ure *UndefinedRuleError
	assert.ErrorAs(t, err, &ure)
}

func TestGenerateLookaheadDoesNotConsume(t *testing.T) {
	prog := mustCompile(t, `start = &"a" "a"`)

	res, err := vm.Run("t", []byte("a"), prog)
	require.NoError(t, err)
	arr := res.([]interface{})
	assert.Nil(t, arr[0])
	assert.Equal(t, []byte("a"), arr[1])
}

func TestGenerateNegativeLookahead(t *testing.T) {
	prog := mustCompile(t, `start = !"a" "b"`)

	res, err := vm.Run("t", []byte("b"), prog)
	require.NoError(t, err)
	arr := res.([]interface{})
	assert.Nil(t, arr[0])
	assert.Equal(t, []byte("b"), arr[1])

	_, err = vm.Run("t", []byte("a"), prog)
	assert.Error(t, err)
}

func TestGenerateSemanticPredicate(t *testing.T) {
	allow := func(ThunkInfo) (vm.PredicateFunc, error) {
		return func(*vm.VM) (bool, error) { return true, nil }, nil
	}
	deny := func(ThunkInfo) (vm.PredicateFunc, error) {
		return func(*vm.VM) (bool, error) { return false, nil }, nil
	}

	prog := mustCompile(t, `start = "a" &{ ok }`, WithPredicateResolver(allow))
	res, err := vm.Run("t", []byte("a"), prog)
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), res.([]interface{})[0])

	prog = mustCompile(t, `start = "a" &{ ok }`, WithPredicateResolver(deny))
	_, err = vm.Run("t", []byte("a"), prog)
	assert.Error(t, err)
}

func TestGenerateTextExpr(t *testing.T) {
	prog := mustCompile(t, `start = $("a" "b")`)

	res, err := vm.Run("t", []byte("ab"), prog)
	require.NoError(t, err)
	assert.Equal(t, "ab", res)
}

func TestGenerateActionSeesLabeledValues(t *testing.T) {
	joinAB := func(info ThunkInfo) (vm.ActionFunc, error) {
		return func(v *vm.VM) (interface{}, error) {
			return fmt.Sprintf("%s+%s", v.Arg("a"), v.Arg("b")), nil
		}, nil
	}
	prog := mustCompile(t, `start = a:"1" b:"2" { join }`, WithActionResolver(joinAB))

	res, err := vm.Run("t", []byte("12"), prog)
	require.NoError(t, err)
	assert.Equal(t, "1+2", res)
}

func TestGenerateLibraryRef(t *testing.T) {
	libGrammar, err := dslparser.Parse("lib", `digit = [0-9]`)
	require.NoError(t, err)

	g, err := dslparser.Parse("t", `start = nums.digit`)
	require.NoError(t, err)

	prog, err := Generate(g, "", WithImports(map[string]*ast.Grammar{"nums": libGrammar}))
	require.NoError(t, err)

	res, err := vm.Run("t", []byte("7"), prog)
	require.NoError(t, err)
	assert.Equal(t, []byte("7"), res)
}
