package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peggylang/peggy/vm"
)

func TestRunNegatedUnicodeClassMatchesNonLetters(t *testing.T) {
	prog := mustProgram(t, `start = [\P{Letter}]`)

	_, err := vm.Run("t", []byte("a"), prog)
	assert.Error(t, err, "\\P{Letter} should reject a letter")

	got, err := vm.Run("t", []byte("1"), prog)
	require.NoError(t, err, "\\P{Letter} should accept a non-letter")
	assert.Equal(t, []byte("1"), got)
}

func TestRunPlainUnicodeClassMatchesLetters(t *testing.T) {
	prog := mustProgram(t, `start = [\p{Letter}]`)

	got, err := vm.Run("t", []byte("a"), prog)
	require.NoError(t, err, "\\p{Letter} should accept a letter")
	assert.Equal(t, []byte("a"), got)

	_, err = vm.Run("t", []byte("1"), prog)
	assert.Error(t, err, "\\p{Letter} should reject a non-letter")
}
