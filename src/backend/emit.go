package backend

import (
	"tigerc/src/asm"
	"tigerc/src/frame"
	"tigerc/src/semantics"
	"tigerc/src/util"
)

// ---------------------
// ----- Functions -----
// ---------------------

// writeDataHeader opens the read-only data section.
func writeDataHeader(wr *util.Writer) {
	wr.WriteString(".section .rodata\n")
}

// writeCodeHeader opens the text section and exports the program entry
// point.
func writeCodeHeader(wr *util.Writer) {
	wr.WriteString("\n.text\n")
	wr.WriteString(".global tigermain\n")
	wr.WriteString(".type tigermain, @function\n\n")
}

// writeStringFragment emits one string literal definition.
func writeStringFragment(wr *util.Writer, fragment *semantics.StringFragment) {
	wr.WriteString(frame.StringLiteral(fragment.Label, fragment.Literal))
}

// writeProcedure formats one allocated procedure: prologue, every body
// instruction with its temporaries substituted by their registers, and the
// epilogue.
func writeProcedure(wr *util.Writer, procedure *asm.Procedure, tmap *frame.TempMap) {
	wr.WriteString(procedure.Prologue)
	for _, instruction := range procedure.Body {
		line := instruction.Format(tmap.TempToString)
		if len(line) == 0 {
			continue
		}
		if _, isLabel := instruction.(*asm.Label); isLabel {
			wr.WriteString(line)
		} else {
			wr.WriteString("\t" + line)
		}
	}
	wr.WriteString(procedure.Epilogue)
	wr.Flush()
}

// removeRedundantMoves drops every move whose source and destination were
// colored with the same machine register.
func removeRedundantMoves(instructions []asm.Instruction, tmap *frame.TempMap) []asm.Instruction {
	result := make([]asm.Instruction, 0, len(instructions))
	for _, instruction := range instructions {
		if !isRedundantMove(instruction, tmap) {
			result = append(result, instruction)
		}
	}
	return result
}

// isRedundantMove reports whether an instruction is a register-to-register
// move between two temporaries mapping to the same register.
func isRedundantMove(instruction asm.Instruction, tmap *frame.TempMap) bool {
	move, ok := instruction.(*asm.Move)
	if !ok || len(move.Source) != 1 || len(move.Destination) != 1 {
		return false
	}
	return tmap.TempToString(move.Source[0]) == tmap.TempToString(move.Destination[0])
}
