package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSymbolTableShadowing verifies that inner bindings shadow outer ones
// and that ending a scope restores them.
func TestSymbolTableShadowing(t *testing.T) {
	table := NewSymbolTable[int]()
	table.Add("a", 1)
	table.Add("b", 2)

	table.BeginScope(false)
	table.Add("a", 10)
	value, ok := table.Find("a")
	require.True(t, ok)
	assert.Equal(t, 10, value)
	value, ok = table.Find("b")
	require.True(t, ok)
	assert.Equal(t, 2, value)

	table.EndScope()
	value, ok = table.Find("a")
	require.True(t, ok)
	assert.Equal(t, 1, value)
}

// TestSymbolTableScopeRemoval verifies that every binding made since the
// scope began disappears when it ends, including repeated bindings of one
// name.
func TestSymbolTableScopeRemoval(t *testing.T) {
	table := NewSymbolTable[string]()
	table.BeginScope(false)
	table.Add("x", "first")
	table.Add("x", "second")
	value, ok := table.Find("x")
	require.True(t, ok)
	assert.Equal(t, "second", value)

	table.EndScope()
	_, ok = table.Find("x")
	assert.False(t, ok)
}

// TestSymbolTableLoopScopes verifies the loop flag used for break
// legality: only the closest open scope counts.
func TestSymbolTableLoopScopes(t *testing.T) {
	table := NewSymbolTable[int]()
	assert.False(t, table.InLoopScope())

	table.BeginScope(true)
	assert.True(t, table.InLoopScope())

	table.BeginScope(false)
	assert.False(t, table.InLoopScope())

	table.EndScope()
	assert.True(t, table.InLoopScope())

	table.EndScope()
	assert.False(t, table.InLoopScope())
}

// TestTypeEquality verifies basic type equality by kind, reference types by
// identity and nil compatibility with records.
func TestTypeEquality(t *testing.T) {
	record1 := &RecordType{Fields: []Field{{Name: "x", Type: &IntType{}}}}
	record2 := &RecordType{Fields: []Field{{Name: "x", Type: &IntType{}}}}
	array1 := &ArrayType{Type: &IntType{}}
	array2 := &ArrayType{Type: &IntType{}}

	assert.True(t, Equal(&IntType{}, &IntType{}))
	assert.True(t, Equal(&StringType{}, &StringType{}))
	assert.False(t, Equal(&IntType{}, &StringType{}))
	assert.True(t, Equal(record1, record1))
	assert.False(t, Equal(record1, record2))
	assert.True(t, Equal(array1, array1))
	assert.False(t, Equal(array1, array2))
	assert.True(t, Equal(&NilType{}, record1))
	assert.True(t, Equal(record1, &NilType{}))
	assert.False(t, Equal(&NilType{}, array1))
	assert.False(t, Equal(&NilType{}, &IntType{}))
}
