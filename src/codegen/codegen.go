// Package codegen selects x86-64 instructions for canonical IR by maximal
// munch: every statement and expression pattern maps onto a short AT&T
// instruction sequence over abstract temporaries, leaving register choice to
// the allocator.
//
// Addressing reminder for mov src, dst operands:
//
//	$val   constant
//	%R     register
//	(%R)   memory at %R
//	D(%R)  memory at %R+D
package codegen

import (
	"fmt"

	"tigerc/src/asm"
	"tigerc/src/frame"
	"tigerc/src/ir"
	"tigerc/src/temp"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// generator emits instructions for one procedure body.
type generator struct {
	temps        *temp.Manager
	tmap         *frame.TempMap
	instructions []asm.Instruction
}

// -------------------
// ----- Globals -----
// -------------------

// relationalJumps maps each relational operator onto the conditional jump
// taken when left op right holds after cmpq.
var relationalJumps = map[ir.RelOp]string{
	ir.Eq:  "je",
	ir.Ne:  "jne",
	ir.Lt:  "jl",
	ir.Gt:  "jg",
	ir.Le:  "jle",
	ir.Ge:  "jge",
	ir.ULt: "jb",
	ir.ULe: "jbe",
	ir.UGt: "ja",
	ir.UGe: "jae",
}

// binaryOperators maps binary operators onto their mnemonics. Signed
// multiply and divide are used.
var binaryOperators = map[ir.BinOp]string{
	ir.Plus:    "addq",
	ir.Minus:   "subq",
	ir.Mul:     "imulq",
	ir.Div:     "idivq",
	ir.And:     "andq",
	ir.Or:      "orq",
	ir.LShift:  "salq",
	ir.RShift:  "sarq",
	ir.ARShift: "shrq",
	ir.Xor:     "xorq",
}

// ---------------------
// ----- Functions -----
// ---------------------

// SelectInstructions munches one procedure's canonical statement list into
// abstract assembly.
func SelectInstructions(temps *temp.Manager, tmap *frame.TempMap, statements []ir.Statement) []asm.Instruction {
	g := &generator{temps: temps, tmap: tmap}
	for _, e1 := range statements {
		g.munchStatement(e1)
	}
	return g.instructions
}

// emit appends one selected instruction.
func (g *generator) emit(instruction asm.Instruction) {
	g.instructions = append(g.instructions, instruction)
}

func (g *generator) munchStatement(statement ir.Statement) {
	switch s := statement.(type) {
	case *ir.Label:
		g.emit(&asm.Label{Line: fmt.Sprintf("%s:\n", s.Label), Label: s.Label})

	case *ir.Jump:
		g.emit(&asm.Operation{
			Line:   "jmp 'j0\n",
			Source: []temp.Temp{},
			Jump:   s.Labels,
		})

	case *ir.CondJump:
		// cmpq subtracts its first operand from its second, so the right
		// operand goes first for left-op-right to pick the jump.
		g.emit(&asm.Operation{
			Line:   "cmpq %'s1, %'s0\n",
			Source: []temp.Temp{g.munchExpression(s.Left), g.munchExpression(s.Right)},
		})
		g.emit(&asm.Operation{
			Line: fmt.Sprintf("%s 'j0\n", relationalJumps[s.Op]),
			Jump: []temp.Label{s.True, s.False},
		})

	case *ir.Move:
		switch dst := s.Dst.(type) {
		case *ir.TempExp:
			g.emit(&asm.Move{
				Line:        "movq %'s0, %'d0\n",
				Source:      []temp.Temp{g.munchExpression(s.Src)},
				Destination: []temp.Temp{dst.Temp},
			})
		case *ir.Mem:
			g.emit(&asm.Move{
				Line: "movq %'s0, (%'s1)\n",
				Source: []temp.Temp{
					g.munchExpression(s.Src),
					g.munchExpression(dst.Exp),
				},
			})
		default:
			panic("codegen: munching an invalid move destination")
		}

	case *ir.SExp:
		g.munchExpression(s.Exp)

	case *ir.Seq:
		panic("codegen: found a Seq node while munching")

	default:
		panic("codegen: no match for IR node while munching a statement")
	}
}

// munchArguments places the first six arguments in the argument-passing
// registers and pushes the rest on the stack, returning the register
// temporaries used.
func (g *generator) munchArguments(arguments []ir.Expression) []temp.Temp {
	var used []temp.Temp
	for i1, argument := range arguments {
		if i1 >= len(frame.ArgumentRegisters) {
			break
		}
		register := g.tmap.RegisterToTemp[frame.ArgumentRegisters[i1]]
		g.emit(&asm.Operation{
			Line:        "movq %'s0, %'d0\n",
			Source:      []temp.Temp{g.munchExpression(argument)},
			Destination: []temp.Temp{register},
		})
		used = append(used, register)
	}
	// Evaluate the stack-resident extras left to right, then push them in
	// reverse so the seventh argument ends up at 16(%rbp) in the callee.
	var extras []temp.Temp
	for i1 := len(frame.ArgumentRegisters); i1 < len(arguments); i1++ {
		extras = append(extras, g.munchExpression(arguments[i1]))
	}
	for i1 := len(extras) - 1; i1 >= 0; i1-- {
		g.emit(&asm.Operation{
			Line:   "pushq %'s0\n",
			Source: []temp.Temp{extras[i1]},
		})
	}
	return used
}

func (g *generator) munchExpression(expression ir.Expression) temp.Temp {
	switch e := expression.(type) {
	case *ir.BinOpExp:
		return g.munchBinOp(e)

	case *ir.Mem:
		t := g.temps.NewTemp()
		g.emit(&asm.Operation{
			Line:        "movq (%'s0), %'d0\n",
			Source:      []temp.Temp{g.munchExpression(e.Exp)},
			Destination: []temp.Temp{t},
		})
		return t

	case *ir.TempExp:
		return e.Temp

	case *ir.NameExp:
		t := g.temps.NewTemp()
		g.emit(&asm.Operation{
			Line:        fmt.Sprintf("leaq %s(%%'s0), %%'d0\n", e.Label),
			Source:      []temp.Temp{g.tmap.RegisterToTemp["rip"]},
			Destination: []temp.Temp{t},
		})
		return t

	case *ir.Const:
		t := g.temps.NewTemp()
		g.emit(&asm.Move{
			Line:        fmt.Sprintf("movq $%d, %%'d0\n", e.Value),
			Destination: []temp.Temp{t},
		})
		return t

	case *ir.Call:
		return g.munchCall(e)

	case *ir.ESeq:
		panic("codegen: found an ESeq node while munching")
	}
	panic("codegen: no match for IR node while munching an expression")
}

func (g *generator) munchBinOp(e *ir.BinOpExp) temp.Temp {
	switch e.Op {
	case ir.Plus, ir.Minus, ir.And, ir.Or, ir.Xor:
		// op src, dst over a fresh copy of the left operand.
		t := g.temps.NewTemp()
		g.emit(&asm.Move{
			Line:        "movq %'s0, %'d0\n",
			Source:      []temp.Temp{g.munchExpression(e.Left)},
			Destination: []temp.Temp{t},
		})
		g.emit(&asm.Operation{
			Line:        fmt.Sprintf("%s %%'s1, %%'d0\n", binaryOperators[e.Op]),
			Source:      []temp.Temp{t, g.munchExpression(e.Right)},
			Destination: []temp.Temp{t},
		})
		return t

	case ir.Mul, ir.Div:
		// imulq S:  RDX:RAX <- S * RAX.
		// idivq S:  RAX <- RDX:RAX / S, RDX <- RDX:RAX mod S.
		// The left operand is placed in RAX and sign extended through RDX
		// with cqto; both result registers are destinations so the
		// allocator knows they are trashed.
		t := g.temps.NewTemp()
		rax := g.tmap.RegisterToTemp["rax"]
		rdx := g.tmap.RegisterToTemp["rdx"]

		g.emit(&asm.Move{
			Line:        "movq %'s0, %'d0\n",
			Source:      []temp.Temp{g.munchExpression(e.Left)},
			Destination: []temp.Temp{rax},
		})
		g.emit(&asm.Operation{
			Line:        "cqto\n",
			Source:      []temp.Temp{rax},
			Destination: []temp.Temp{rdx},
		})
		g.emit(&asm.Operation{
			Line:        fmt.Sprintf("%s %%'s2\n", binaryOperators[e.Op]),
			Source:      []temp.Temp{rax, rdx, g.munchExpression(e.Right)},
			Destination: []temp.Temp{rax, rdx},
		})
		g.emit(&asm.Move{
			Line:        "movq %'s0, %'d0\n",
			Source:      []temp.Temp{rax},
			Destination: []temp.Temp{t},
		})
		return t

	case ir.LShift, ir.RShift, ir.ARShift:
		// sal/sar/shr count, dst: the right operand is shifted in place by
		// the left operand's count.
		t := g.munchExpression(e.Right)
		g.emit(&asm.Operation{
			Line:        fmt.Sprintf("%s %%'s0, %%'d0\n", binaryOperators[e.Op]),
			Source:      []temp.Temp{g.munchExpression(e.Left), t},
			Destination: []temp.Temp{t},
		})
		return t
	}
	panic("codegen: munching a binary operation with an invalid operator")
}

func (g *generator) munchCall(e *ir.Call) temp.Temp {
	// A call trashes the caller-saved registers, the argument registers and
	// the return value register; listing them as destinations tells the
	// later phases something happens to them here.
	name, ok := e.Fn.(*ir.NameExp)
	if !ok {
		panic("codegen: found a Call whose function is not a Name")
	}

	var trashed []temp.Temp
	for _, register := range frame.CallerSavedRegisters {
		trashed = append(trashed, g.tmap.RegisterToTemp[register])
	}
	for _, register := range frame.ArgumentRegisters {
		trashed = append(trashed, g.tmap.RegisterToTemp[register])
	}
	trashed = append(trashed, g.tmap.RegisterToTemp["rax"])

	g.emit(&asm.Operation{
		Line:        fmt.Sprintf("call %s\n", name.Label),
		Source:      g.munchArguments(e.Args),
		Destination: trashed,
	})
	return g.tmap.RegisterToTemp["rax"]
}
