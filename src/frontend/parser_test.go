package frontend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tigerc/src/ast"
)

// TestParseAccepts verifies that canonical Tiger programs parse.
func TestParseAccepts(t *testing.T) {
	tests := []string{
		`let var a := 1+2 in a end`,
		`if "abc" < "bcd" then 1 else 0`,
		`let type intArray = array of int var row := intArray [ 8 ] of 0 in row[0] end`,
		`let type rec = {x: int, y: int} var r := rec {x = 1, y = 2} in r.x end`,
		`for i := 1 to 10 do print("x")`,
		`while 1 do break`,
		`let function add(a: int, b: int) : int = a + b in add(1, 2) end`,
		`let function nop() = () in nop() end`,
		`(1; 2; 3)`,
		`()`,
		`let var s := "x" in print(concat(s, s)) end`,
		`let type a = b type b = int in 0 end`,
		`-5 * 3 = 0 | 1 < 2 & 3 >= 2`,
	}
	for _, src := range tests {
		_, err := Parse(src)
		assert.NoError(t, err, src)
	}
}

// TestParseRejects verifies that malformed programs are rejected with a
// syntax error naming the offending token.
func TestParseRejects(t *testing.T) {
	tests := []string{
		`let var a := in a end`,
		`if then 1`,
		`1 +`,
		`let var a := 1`,
		`a[1] of 2 of 3`,
		`function f() = 1`,
		`let type = int in 0 end`,
		`1 2`,
		`(1; )`,
	}
	for _, src := range tests {
		_, err := Parse(src)
		require.Error(t, err, src)
		assert.IsType(t, &SyntaxError{}, err, src)
	}
}

// TestParseLowering verifies the desugaring done while the tree is built:
// & and | become if expressions and unary minus a subtraction from zero.
func TestParseLowering(t *testing.T) {
	e, err := Parse(`1 & 2`)
	require.NoError(t, err)
	ifExp, ok := e.(*ast.IfExp)
	require.True(t, ok)
	elseInt, ok := ifExp.Else.(*ast.IntExp)
	require.True(t, ok)
	assert.Equal(t, int64(0), elseInt.Value)

	e, err = Parse(`1 | 2`)
	require.NoError(t, err)
	ifExp, ok = e.(*ast.IfExp)
	require.True(t, ok)
	thenInt, ok := ifExp.Then.(*ast.IntExp)
	require.True(t, ok)
	assert.Equal(t, int64(1), thenInt.Value)

	e, err = Parse(`-7`)
	require.NoError(t, err)
	op, ok := e.(*ast.OpExp)
	require.True(t, ok)
	assert.Equal(t, ast.Minus, op.Op)
	leftInt, ok := op.Left.(*ast.IntExp)
	require.True(t, ok)
	assert.Equal(t, int64(0), leftInt.Value)
}

// TestParseAssignment verifies that an assignment whose right-hand side is an
// arithmetic expression parses as a single AssignExp.
func TestParseAssignment(t *testing.T) {
	e, err := Parse(`let var a := 0 in a := a + 1 end`)
	require.NoError(t, err)
	let, ok := e.(*ast.LetExp)
	require.True(t, ok)
	seq, ok := let.Body.(*ast.SeqExp)
	require.True(t, ok)
	require.Len(t, seq.Seq, 1)
	_, ok = seq.Seq[0].(*ast.AssignExp)
	assert.True(t, ok)
}

// TestParseDeclarationBlocks verifies that consecutive type and function
// declarations group into one block each, so mutual recursion is scoped.
func TestParseDeclarationBlocks(t *testing.T) {
	e, err := Parse(`
let
  type a = b
  type b = int
  var x := 1
  function f() : int = g()
  function g() : int = 2
in x end`)
	require.NoError(t, err)
	let := e.(*ast.LetExp)
	require.Len(t, let.Decs, 3)

	typeBlock, ok := let.Decs[0].(*ast.TypeDecBlock)
	require.True(t, ok)
	assert.Len(t, typeBlock.Decs, 2)

	_, ok = let.Decs[1].(*ast.VarDec)
	require.True(t, ok)

	funcBlock, ok := let.Decs[2].(*ast.FuncDecBlock)
	require.True(t, ok)
	assert.Len(t, funcBlock.Decs, 2)
}
