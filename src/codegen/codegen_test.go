package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tigerc/src/asm"
	"tigerc/src/frame"
	"tigerc/src/ir"
	"tigerc/src/temp"
)

// newTestContext builds a manager and register map for munching.
func newTestContext() (*temp.Manager, *frame.TempMap) {
	temps := temp.NewManager()
	return temps, frame.NewTempMap(temps)
}

// format renders instructions with unallocated temporary names.
func format(instructions []asm.Instruction, tmap *frame.TempMap) string {
	sb := strings.Builder{}
	for _, e1 := range instructions {
		sb.WriteString(e1.Format(tmap.TempToString))
	}
	return sb.String()
}

// TestMunchConstMove verifies the constant load tile.
func TestMunchConstMove(t *testing.T) {
	temps, tmap := newTestContext()
	target := temps.NewTemp()

	instructions := SelectInstructions(temps, tmap, []ir.Statement{
		&ir.Move{Dst: &ir.TempExp{Temp: target}, Src: &ir.Const{Value: 42}},
	})
	require.Len(t, instructions, 2)
	assert.Contains(t, format(instructions, tmap), "movq $42, ")

	last, ok := instructions[1].(*asm.Move)
	require.True(t, ok)
	assert.Equal(t, []temp.Temp{target}, last.Destination)
}

// TestMunchCondJump verifies operand order and jump list of comparisons:
// cmpq must subtract the right operand from the left so the condition code
// tests left against right.
func TestMunchCondJump(t *testing.T) {
	temps, tmap := newTestContext()
	trueLabel, falseLabel := temps.NewLabel(), temps.NewLabel()

	instructions := SelectInstructions(temps, tmap, []ir.Statement{
		&ir.CondJump{
			Op:    ir.Lt,
			Left:  &ir.Const{Value: 1},
			Right: &ir.Const{Value: 2},
			True:  trueLabel,
			False: falseLabel,
		},
	})
	require.Len(t, instructions, 4)

	compare, ok := instructions[2].(*asm.Operation)
	require.True(t, ok)
	require.Len(t, compare.Source, 2)
	left, right := compare.Source[0], compare.Source[1]
	rendered := compare.Format(tmap.TempToString)
	assert.Equal(t, "cmpq %"+tmap.TempToString(right)+", %"+tmap.TempToString(left)+"\n", rendered)

	jump, ok := instructions[3].(*asm.Operation)
	require.True(t, ok)
	assert.Equal(t, "jl 'j0\n", jump.Line)
	assert.Equal(t, []temp.Label{trueLabel, falseLabel}, jump.Jump)
}

// TestMunchDivision verifies that signed division sign-extends through rdx
// and claims both result registers.
func TestMunchDivision(t *testing.T) {
	temps, tmap := newTestContext()
	target := temps.NewTemp()

	instructions := SelectInstructions(temps, tmap, []ir.Statement{
		&ir.Move{
			Dst: &ir.TempExp{Temp: target},
			Src: &ir.BinOpExp{Op: ir.Div, Left: &ir.Const{Value: 7}, Right: &ir.Const{Value: 2}},
		},
	})
	out := format(instructions, tmap)
	assert.Contains(t, out, "cqto\n")
	assert.Contains(t, out, "idivq %")

	var divide *asm.Operation
	for _, e1 := range instructions {
		if operation, ok := e1.(*asm.Operation); ok && strings.HasPrefix(operation.Line, "idivq") {
			divide = operation
		}
	}
	require.NotNil(t, divide)
	rax := tmap.RegisterToTemp["rax"]
	rdx := tmap.RegisterToTemp["rdx"]
	assert.Equal(t, []temp.Temp{rax, rdx}, divide.Destination)
}

// TestMunchShift verifies the shift tiles: the right operand is the
// shifted destination and the left operand supplies the count.
func TestMunchShift(t *testing.T) {
	temps, tmap := newTestContext()
	count := temps.NewTemp()
	value := temps.NewTemp()

	tests := []struct {
		op       ir.BinOp
		mnemonic string
	}{
		{ir.LShift, "salq"},
		{ir.RShift, "sarq"},
		{ir.ARShift, "shrq"},
	}
	for _, tt := range tests {
		instructions := SelectInstructions(temps, tmap, []ir.Statement{
			&ir.SExp{Exp: &ir.BinOpExp{
				Op:    tt.op,
				Left:  &ir.TempExp{Temp: count},
				Right: &ir.TempExp{Temp: value},
			}},
		})
		require.Len(t, instructions, 1, tt.mnemonic)

		shift, ok := instructions[0].(*asm.Operation)
		require.True(t, ok)
		assert.Equal(t, []temp.Temp{count, value}, shift.Source, tt.mnemonic)
		assert.Equal(t, []temp.Temp{value}, shift.Destination, tt.mnemonic)
		assert.Equal(t,
			tt.mnemonic+" %"+count.String()+", %"+value.String()+"\n",
			shift.Format(tmap.TempToString), tt.mnemonic)
	}
}

// TestMunchCall verifies argument placement and the trashed register set.
func TestMunchCall(t *testing.T) {
	temps, tmap := newTestContext()

	arguments := make([]ir.Expression, 7)
	for i1 := range arguments {
		arguments[i1] = &ir.Const{Value: int64(i1)}
	}
	instructions := SelectInstructions(temps, tmap, []ir.Statement{
		&ir.SExp{Exp: &ir.Call{Fn: &ir.NameExp{Label: "init_array"}, Args: arguments}},
	})

	out := format(instructions, tmap)
	assert.Contains(t, out, "call init_array\n")
	// Six register arguments and one stack argument.
	for _, register := range frame.ArgumentRegisters {
		assert.Contains(t, out, ", %"+register+"\n")
	}
	assert.Contains(t, out, "pushq %")

	var call *asm.Operation
	for _, e1 := range instructions {
		if operation, ok := e1.(*asm.Operation); ok && strings.HasPrefix(operation.Line, "call") {
			call = operation
		}
	}
	require.NotNil(t, call)
	assert.Contains(t, call.Destination, tmap.RegisterToTemp["rax"])
	assert.Contains(t, call.Destination, tmap.RegisterToTemp["r10"])
	assert.Contains(t, call.Destination, tmap.RegisterToTemp["rdi"])
	assert.NotContains(t, call.Destination, tmap.RegisterToTemp["rbx"])
}

// TestMunchMemoryAccess verifies load and store tiles.
func TestMunchMemoryAccess(t *testing.T) {
	temps, tmap := newTestContext()
	address := temps.NewTemp()
	value := temps.NewTemp()

	load := SelectInstructions(temps, tmap, []ir.Statement{
		&ir.Move{
			Dst: &ir.TempExp{Temp: value},
			Src: &ir.Mem{Exp: &ir.TempExp{Temp: address}},
		},
	})
	assert.Contains(t, format(load, tmap), "movq (%"+address.String()+"), ")

	store := SelectInstructions(temps, tmap, []ir.Statement{
		&ir.Move{
			Dst: &ir.Mem{Exp: &ir.TempExp{Temp: address}},
			Src: &ir.TempExp{Temp: value},
		},
	})
	require.Len(t, store, 1)
	assert.Equal(t,
		"movq %"+value.String()+", (%"+address.String()+")\n",
		store[0].Format(tmap.TempToString))
}

// TestMunchLabelAndName verifies label emission and rip-relative address
// formation.
func TestMunchLabelAndName(t *testing.T) {
	temps, tmap := newTestContext()

	instructions := SelectInstructions(temps, tmap, []ir.Statement{
		&ir.Label{Label: "lab_9"},
		&ir.Move{Dst: &ir.TempExp{Temp: temps.NewTemp()}, Src: &ir.NameExp{Label: "lab_9"}},
	})
	out := format(instructions, tmap)
	assert.Contains(t, out, "lab_9:\n")
	assert.Contains(t, out, "leaq lab_9(%rip), ")
}

// TestMunchRejectsResidualNodes verifies the post-canonicalization panics.
func TestMunchRejectsResidualNodes(t *testing.T) {
	temps, tmap := newTestContext()

	assert.Panics(t, func() {
		SelectInstructions(temps, tmap, []ir.Statement{&ir.Seq{}})
	})
	assert.Panics(t, func() {
		SelectInstructions(temps, tmap, []ir.Statement{
			&ir.SExp{Exp: &ir.ESeq{Stm: &ir.Label{Label: "l"}, Exp: &ir.Const{Value: 0}}},
		})
	})
	assert.Panics(t, func() {
		SelectInstructions(temps, tmap, []ir.Statement{
			&ir.SExp{Exp: &ir.Call{Fn: &ir.Const{Value: 0}}},
		})
	})
}
