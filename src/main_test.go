package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tigerc/src/util"
)

// helperCompile writes src to a temporary .tig file and runs the whole
// driver on it, returning the output path and the compile verdict.
func helperCompile(t *testing.T, src string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "program.tig")
	require.NoError(t, os.WriteFile(source, []byte(src), 0644))

	out := filepath.Join(dir, "program.s")
	opt := util.Options{Src: source, Out: out, Threads: 1}
	return out, compile(opt)
}

// TestDriverSuccess verifies that a valid program produces an assembly
// file.
func TestDriverSuccess(t *testing.T) {
	out, err := helperCompile(t, `let var a := 1+2 in a end`)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tigermain:")
}

// TestDriverSyntaxError verifies that a syntactic failure reports the
// offending token and leaves no output file behind.
func TestDriverSyntaxError(t *testing.T) {
	out, err := helperCompile(t, `let var := 1 in 0 end`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Syntax error in input!")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "failed compilations must not emit assembly")
}

// TestDriverSemanticError verifies the same for type errors.
func TestDriverSemanticError(t *testing.T) {
	out, err := helperCompile(t, `let type a = b type b = a in 0 end`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cyclic type definition found involving type a")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

// TestDriverMissingSource verifies the I/O failure path.
func TestDriverMissingSource(t *testing.T) {
	opt := util.Options{Src: filepath.Join(t.TempDir(), "nope.tig"), Out: filepath.Join(t.TempDir(), "nope.s"), Threads: 1}
	err := compile(opt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not read source code")
}
