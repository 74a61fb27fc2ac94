package semantics

import (
	"tigerc/src/temp"
	"tigerc/src/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// EnvironmentEntry is a value environment binding: a variable or a function.
type EnvironmentEntry interface {
	anEnvironmentEntry()
}

// VariableEntry binds a variable to its storage and type. Assignable is
// false for for-loop variables.
type VariableEntry struct {
	Access     Access
	Type       types.Type
	Assignable bool
}

// FunctionEntry binds a function to its level, assembly label and
// signature. Standard library functions have a nil Level; calls to them go
// straight to the runtime with no static link.
type FunctionEntry struct {
	Level   *RealLevel
	Label   temp.Label
	Formals []types.Type
	Result  types.Type
}

func (*VariableEntry) anEnvironmentEntry() {}
func (*FunctionEntry) anEnvironmentEntry() {}

// -------------------
// ----- Globals -----
// -------------------

// intType, stringType and friends are shared across every environment; base
// type equality is by kind, so sharing is safe.
var (
	intType    = &types.IntType{}
	stringType = &types.StringType{}
	voidType   = &types.VoidType{}
	nilType    = &types.NilType{}
)

// ---------------------
// ----- Functions -----
// ---------------------

// baseTypeEnvironment returns the predefined types.
func baseTypeEnvironment() *types.SymbolTable[types.Type] {
	environment := types.NewSymbolTable[types.Type]()
	environment.Add("int", intType)
	environment.Add("string", stringType)
	return environment
}

// baseValueEnvironment returns the standard library bindings. Each entry's
// label is the runtime symbol the call compiles to.
func baseValueEnvironment() *types.SymbolTable[EnvironmentEntry] {
	environment := types.NewSymbolTable[EnvironmentEntry]()
	add := func(name, symbol string, formals []types.Type, result types.Type) {
		environment.Add(name, &FunctionEntry{
			Label:   temp.Label(symbol),
			Formals: formals,
			Result:  result,
		})
	}
	add("print", "print_string", []types.Type{stringType}, voidType)
	add("printi", "print_num", []types.Type{intType}, voidType)
	add("flush", "flush", nil, voidType)
	add("getchar", "read_char", nil, stringType)
	add("ord", "char_to_num", []types.Type{stringType}, intType)
	add("chr", "num_to_char", []types.Type{intType}, stringType)
	add("size", "string_length", []types.Type{stringType}, intType)
	add("substring", "string_substring", []types.Type{stringType, intType, intType}, stringType)
	add("concat", "string_concat", []types.Type{stringType, stringType}, stringType)
	add("not", "not", []types.Type{intType}, intType)
	add("exit", "exit_program", []types.Type{intType}, voidType)
	return environment
}
