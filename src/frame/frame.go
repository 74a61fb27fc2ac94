// Package frame implements x86-64 System V activation records: register
// roles, stack frame layout, the view shift, callee-save preservation and
// the procedure prologue and epilogue. Everything target specific about the
// ABI is encapsulated here.
package frame

import (
	"fmt"

	"tigerc/src/asm"
	"tigerc/src/ir"
	"tigerc/src/temp"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Access describes where a formal or local lives as seen from the callee:
// either a frame slot at a fixed offset from the frame pointer or an
// abstract register.
type Access interface {
	anAccess()
}

// InFrame is a memory location at Offset bytes from the frame pointer.
type InFrame struct {
	Offset int64
}

// InReg is storage in the abstract register Temp.
type InReg struct {
	Temp temp.Temp
}

func (InFrame) anAccess() {}
func (InReg) anAccess()   {}

// Frame is one function's activation record. It tracks the locations of the
// formals, the locals allocated so far and the label at which the function's
// machine code begins.
type Frame struct {
	Name    temp.Label
	Offset  int64 // Bottom of allocated frame space, in bytes below %rbp.
	Formals []Access
	Locals  []Access

	temps *temp.Manager
}

// ---------------------
// ----- Constants -----
// ---------------------

// WordSize is the machine word size in bytes.
const WordSize = 8

// stackAlign is the stack alignment required at a call boundary.
const stackAlign = 16

// -------------------
// ----- Globals -----
// -------------------

// The register lists must not overlap. Assignment of the ambiguous ones
// (such as rbp) follows the Stanford CS107 x86-64 reference.

// SpecialRegisters are implementation registers that take no part in
// allocation decisions beyond being precolored.
var SpecialRegisters = []string{"rip", "rsp", "rax"}

// ArgumentRegisters pass outgoing arguments left to right, the static link
// included.
var ArgumentRegisters = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

// CalleeSavedRegisters must be preserved unchanged across a call.
var CalleeSavedRegisters = []string{"rbx", "rbp", "r12", "r13", "r14", "r15"}

// CallerSavedRegisters may be trashed by the callee.
var CallerSavedRegisters = []string{"r10", "r11"}

// AllRegisters lists every machine register the allocator may color with.
var AllRegisters = allRegisters()

// ---------------------
// ----- Functions -----
// ---------------------

func allRegisters() []string {
	res := make([]string, 0, 16)
	res = append(res, SpecialRegisters...)
	res = append(res, ArgumentRegisters...)
	res = append(res, CalleeSavedRegisters...)
	res = append(res, CallerSavedRegisters...)
	return res
}

// NewFrame creates a frame for function name whose formals escape per
// formalEscapes. The first six formals arrive in argument registers and are
// homed per their escape flag; the remaining formals already live in the
// caller's frame at +16, +24, and so on.
func NewFrame(temps *temp.Manager, name temp.Label, formalEscapes []bool) *Frame {
	f := &Frame{
		Name:  name,
		temps: temps,
	}

	// Formals passed by register.
	n := len(formalEscapes)
	if n > len(ArgumentRegisters) {
		n = len(ArgumentRegisters)
	}
	for _, escape := range formalEscapes[:n] {
		f.Formals = append(f.Formals, f.allocSingle(escape))
	}

	// Extra formals stored in the previous frame, above the return address
	// and the saved %rbp.
	extraOffset := int64(2 * WordSize)
	for range formalEscapes[n:] {
		f.Formals = append(f.Formals, InFrame{Offset: extraOffset})
		extraOffset += WordSize
	}
	return f
}

// AllocLocal allocates a new local variable in the frame. Escaped locals get
// a fresh 8-byte slot below everything allocated so far; the rest live in a
// fresh temporary.
func (f *Frame) AllocLocal(escape bool) Access {
	a := f.allocSingle(escape)
	f.Locals = append(f.Locals, a)
	return a
}

func (f *Frame) allocSingle(escape bool) Access {
	if escape {
		f.Offset -= WordSize
		return InFrame{Offset: f.Offset}
	}
	return InReg{Temp: f.temps.NewTemp()}
}

// AccessToExp turns an Access into the IR expression that reads it. The fp
// argument is the address of the frame the access lives in; it is discarded
// for register accesses.
func AccessToExp(access Access, fp ir.Expression) ir.Expression {
	switch a := access.(type) {
	case InFrame:
		return &ir.Mem{Exp: &ir.BinOpExp{
			Op:    ir.Plus,
			Left:  fp,
			Right: &ir.Const{Value: a.Offset},
		}}
	case InReg:
		return &ir.TempExp{Temp: a.Temp}
	}
	panic("frame: unknown access variant")
}

// ExternalCall builds a call to a runtime function written in C or assembly.
// Runtime functions take no static link.
func ExternalCall(temps *temp.Manager, name string, args []ir.Expression) ir.Expression {
	return &ir.Call{Fn: &ir.NameExp{Label: temps.NamedLabel(name)}, Args: args}
}

// ShiftView prepends the view shift to body: one move per register-passed
// formal, copying the incoming argument register into the place the formal
// is seen from within the function. Stack-resident extras need no move.
func ShiftView(f *Frame, tmap *TempMap, body ir.Statement) ir.Statement {
	statements := make([]ir.Statement, 0, len(f.Formals)+1)
	for i1, access := range f.Formals {
		if i1 >= len(ArgumentRegisters) {
			break
		}
		argTemp := tmap.RegisterToTemp[ArgumentRegisters[i1]]
		switch a := access.(type) {
		case InFrame:
			statements = append(statements, &ir.Move{
				Dst: &ir.Mem{Exp: &ir.BinOpExp{
					Op:    ir.Plus,
					Left:  &ir.TempExp{Temp: tmap.FramePointer()},
					Right: &ir.Const{Value: a.Offset},
				}},
				Src: &ir.TempExp{Temp: argTemp},
			})
		case InReg:
			statements = append(statements, &ir.Move{
				Dst: &ir.TempExp{Temp: a.Temp},
				Src: &ir.TempExp{Temp: argTemp},
			})
		}
	}
	return &ir.Seq{Statements: append(statements, body)}
}

// PreserveCalleeRegisters wraps body with moves saving every callee-saved
// register into a fresh temporary on entry and restoring it on exit. The
// temporaries coalesce away when the register is never clobbered.
func PreserveCalleeRegisters(f *Frame, tmap *TempMap, body ir.Statement) ir.Statement {
	save := make([]ir.Statement, 0, len(CalleeSavedRegisters))
	restore := make([]ir.Statement, 0, len(CalleeSavedRegisters))
	for _, register := range CalleeSavedRegisters {
		t := f.temps.NewTemp()
		save = append(save, &ir.Move{
			Dst: &ir.TempExp{Temp: t},
			Src: &ir.TempExp{Temp: tmap.RegisterToTemp[register]},
		})
		restore = append(restore, &ir.Move{
			Dst: &ir.TempExp{Temp: tmap.RegisterToTemp[register]},
			Src: &ir.TempExp{Temp: t},
		})
	}
	statements := append(save, body)
	statements = append(statements, restore...)
	return &ir.Seq{Statements: statements}
}

// Sink appends the sink instruction telling the register allocator which
// registers are live at procedure exit.
func Sink(tmap *TempMap, body []asm.Instruction) []asm.Instruction {
	registers := append([]string{}, CalleeSavedRegisters...)
	registers = append(registers, "rsp", "rip")
	sinkTemps := make([]temp.Temp, len(registers))
	for i1, e1 := range registers {
		sinkTemps[i1] = tmap.RegisterToTemp[e1]
	}
	return append(body, &asm.Operation{
		Line:        "",
		Source:      sinkTemps,
		Destination: []temp.Temp{},
	})
}

// AssemblyProcedure wraps the selected body in the function's prologue and
// epilogue. The prologue saves the caller's %rbp and reserves the frame's
// escaped-variable space, rounded up to the 16-byte stack alignment; space
// for outgoing stack arguments is pushed by the call sequence itself.
func AssemblyProcedure(f *Frame, body []asm.Instruction) *asm.Procedure {
	stackSize := -f.Offset - (f.Offset % -stackAlign)

	prologue := fmt.Sprintf("# PROCEDURE %s\n", f.Name)
	prologue += fmt.Sprintf("%s:\n", f.Name)
	prologue += "\tpushq %rbp\n"
	prologue += "\tmovq %rsp, %rbp\n"
	prologue += fmt.Sprintf("\tsubq $%d, %%rsp\n", stackSize)

	epilogue := "\tmovq %rbp, %rsp\n"
	epilogue += "\tpopq %rbp\n"
	epilogue += "\tret\n"
	epilogue += fmt.Sprintf("# END %s\n", f.Name)

	return &asm.Procedure{Prologue: prologue, Body: body, Epilogue: epilogue}
}

// StringLiteral formats one read-only string literal definition.
func StringLiteral(label temp.Label, literal string) string {
	return fmt.Sprintf("%s:\n\t.asciz \"%s\"\n", label, escapeString(literal))
}

// escapeString escapes a Tiger string for the assembler's .asciz directive.
func escapeString(s string) string {
	res := make([]byte, 0, len(s))
	for i1 := 0; i1 < len(s); i1++ {
		c := s[i1]
		switch {
		case c == '\n':
			res = append(res, '\\', 'n')
		case c == '\t':
			res = append(res, '\\', 't')
		case c == '"':
			res = append(res, '\\', '"')
		case c == '\\':
			res = append(res, '\\', '\\')
		case c < 32 || c > 126:
			res = append(res, []byte(fmt.Sprintf("\\%03o", c))...)
		default:
			res = append(res, c)
		}
	}
	return string(res)
}
