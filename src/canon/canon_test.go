// Verifies the canonical form invariants over translated programs: after
// linearization no Seq or ESeq remains and calls sit in restricted
// positions; after block construction every block is label-headed and
// jump-terminated; after trace scheduling every conditional jump falls
// through to its false label.

package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tigerc/src/frame"
	"tigerc/src/frontend"
	"tigerc/src/ir"
	"tigerc/src/semantics"
	"tigerc/src/temp"
)

// corpus is a set of programs covering the translator's statement shapes.
var corpus = []string{
	`let var a := 1+2 in a end`,
	`if "abc" < "bcd" then 1 else 0`,
	`let function double(x: int) : int = x * 2 in double(double(4)) end`,
	`let
	  type intArray = array of int
	  var row := intArray [ 8 ] of 0
	  function fill(n: int) = (for i := 0 to n - 1 do row[i] := i * i)
	 in fill(8); row[3] end`,
	`let
	  type rec = {x: int, s: string}
	  var r := rec {x = 1, s = "one"}
	 in if r.x > 0 then print(r.s) else print("none") end`,
	`let
	  var n := 0
	 in
	  while 1 do (n := n + 1; if n > 10 then break);
	  n
	 end`,
	`let
	  function fib(n: int) : int =
	    if n < 2 then n else fib(n - 1) + fib(n - 2)
	 in printi(fib(10)) end`,
	`let
	  var line := ""
	  function readLine() : string = (line := concat(line, getchar()); line)
	 in print(readLine()) end`,
}

// translate runs the front half of the pipeline and returns the procedure
// fragments plus the temp manager needed to keep canonicalizing.
func translate(t *testing.T, src string) (*temp.Manager, []*semantics.ProcFragment) {
	t.Helper()
	program, err := frontend.Parse(src)
	require.NoError(t, err)

	temps := temp.NewManager()
	tmap := frame.NewTempMap(temps)
	fragments := semantics.NewFragmentManager()
	require.NoError(t, semantics.TranslateProgram(temps, tmap, fragments, program))

	var procedures []*semantics.ProcFragment
	for _, e1 := range fragments.Fragments() {
		if p, ok := e1.(*semantics.ProcFragment); ok {
			procedures = append(procedures, p)
		}
	}
	require.NotEmpty(t, procedures)
	return temps, procedures
}

// assertCanonicalExpression fails on ESeq nodes and on calls outside the
// two permitted parents.
func assertCanonicalExpression(t *testing.T, expression ir.Expression, callAllowed bool) {
	switch e := expression.(type) {
	case *ir.ESeq:
		t.Error("ESeq survived linearization")
	case *ir.Call:
		if !callAllowed {
			t.Error("call in operand position survived linearization")
		}
		for _, e1 := range e.Args {
			assertCanonicalExpression(t, e1, false)
		}
	case *ir.BinOpExp:
		assertCanonicalExpression(t, e.Left, false)
		assertCanonicalExpression(t, e.Right, false)
	case *ir.Mem:
		assertCanonicalExpression(t, e.Exp, false)
	}
}

// assertCanonicalStatement fails on Seq nodes and checks call positions.
func assertCanonicalStatement(t *testing.T, statement ir.Statement) {
	switch s := statement.(type) {
	case *ir.Seq:
		t.Error("Seq survived linearization")
	case *ir.Move:
		_, dstIsTemp := s.Dst.(*ir.TempExp)
		assertCanonicalExpression(t, s.Dst, false)
		assertCanonicalExpression(t, s.Src, dstIsTemp)
	case *ir.SExp:
		assertCanonicalExpression(t, s.Exp, true)
	case *ir.Jump:
		assertCanonicalExpression(t, s.Exp, false)
	case *ir.CondJump:
		assertCanonicalExpression(t, s.Left, false)
		assertCanonicalExpression(t, s.Right, false)
	}
}

// TestLinearizeInvariants checks linearization output over the corpus.
func TestLinearizeInvariants(t *testing.T) {
	for _, src := range corpus {
		temps, procedures := translate(t, src)
		for _, procedure := range procedures {
			for _, statement := range Linearize(temps, procedure.Body) {
				assertCanonicalStatement(t, statement)
			}
		}
	}
}

// TestBasicBlockInvariants checks that every block starts with its label,
// ends with a jump and has neither in its interior.
func TestBasicBlockInvariants(t *testing.T) {
	for _, src := range corpus {
		temps, procedures := translate(t, src)
		for _, procedure := range procedures {
			blocks := BuildBasicBlocks(temps, Linearize(temps, procedure.Body))
			require.NotEmpty(t, blocks.Blocks)
			for _, block := range blocks.Blocks {
				require.NotEmpty(t, block)
				_, ok := block[0].(*ir.Label)
				assert.True(t, ok, "block must start with a label")
				switch block[len(block)-1].(type) {
				case *ir.Jump, *ir.CondJump:
				default:
					t.Error("block must end with a jump")
				}
				for _, statement := range block[1 : len(block)-1] {
					switch statement.(type) {
					case *ir.Label, *ir.Jump, *ir.CondJump:
						t.Error("label or jump in block interior")
					}
				}
			}
		}
	}
}

// TestTraceInvariant checks that every conditional jump is immediately
// followed by the label of its false branch.
func TestTraceInvariant(t *testing.T) {
	for _, src := range corpus {
		temps, procedures := translate(t, src)
		for _, procedure := range procedures {
			statements := Canonize(temps, procedure.Body)
			for i1, statement := range statements {
				jump, ok := statement.(*ir.CondJump)
				if !ok {
					continue
				}
				require.Less(t, i1+1, len(statements), "conditional jump cannot end the procedure")
				label, ok := statements[i1+1].(*ir.Label)
				require.True(t, ok, "conditional jump must be followed by a label")
				assert.Equal(t, jump.False, label.Label)
			}
		}
	}
}

// TestCommute pins the commutation rule: no-ops, names and constants
// commute, nothing else does.
func TestCommute(t *testing.T) {
	effect := &ir.Move{Dst: &ir.TempExp{Temp: 1}, Src: &ir.Const{Value: 5}}
	assert.True(t, commute(noop(), &ir.TempExp{Temp: 2}))
	assert.True(t, commute(effect, &ir.Const{Value: 1}))
	assert.True(t, commute(effect, &ir.NameExp{Label: "lab_1"}))
	assert.False(t, commute(effect, &ir.TempExp{Temp: 2}))
	assert.False(t, commute(effect, &ir.Mem{Exp: &ir.Const{Value: 8}}))
}
