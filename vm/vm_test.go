package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peggylang/peggy/compiler"
	"github.com/peggylang/peggy/dslparser"
	"github.com/peggylang/peggy/vm"
)

func mustProgram(t *testing.T, src string) *vm.Program {
	t.Helper()
	g, err := dslparser.Parse("t", src)
	require.NoError(t, err)
	prog, err := compiler.Generate(g, "")
	require.NoError(t, err)
	return prog
}

func TestRunWithMemoizeMatchesUnmemoized(t *testing.T) {
	prog := mustProgram(t, `start = ("a" "b")*`)

	want, err := vm.Run("t", []byte("abababab"), prog)
	require.NoError(t, err)

	got, err := vm.Run("t", []byte("abababab"), prog, vm.Memoize(true))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRunWithSmallMemoCacheSizeStillCorrect(t *testing.T) {
	prog := mustProgram(t, `start = ("a" "b")*`)

	// A cache far smaller than the number of distinct (instruction,
	// offset) pairs this input visits forces evictions; eviction must
	// only cost a recompute, never change the result.
	got, err := vm.Run("t", []byte("abababababab"), prog, vm.Memoize(true), vm.MemoCacheSize(2))
	require.NoError(t, err)
	arr, ok := got.([]interface{})
	require.True(t, ok)
	assert.Len(t, arr, 6)
}

func TestRunMemoizeOnFailingMatch(t *testing.T) {
	prog := mustProgram(t, `start = "a"+`)
	_, err := vm.Run("t", []byte(""), prog, vm.Memoize(true))
	assert.Error(t, err)
}
