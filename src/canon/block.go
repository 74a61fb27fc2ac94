package canon

import (
	"tigerc/src/ir"
	"tigerc/src/temp"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// BasicBlocks is the result of splitting a linearized statement list: every
// block starts with a label and ends with a jump, and Done is the label the
// final block transfers to.
type BasicBlocks struct {
	Done   temp.Label
	Blocks [][]ir.Statement
}

// ---------------------
// ----- Functions -----
// ---------------------

// BuildBasicBlocks splits a linearized statement list into basic blocks.
// Blocks missing a leading label get a fresh one, fall-through blocks are
// closed with an explicit jump to their successor, and the whole procedure
// is terminated by a jump to the done label.
func BuildBasicBlocks(temps *temp.Manager, statements []ir.Statement) BasicBlocks {
	done := temps.NewLabel()
	var blocks [][]ir.Statement

	blockStart := 0
	for index, statement := range statements {
		switch statement.(type) {
		case *ir.Label:
			// A label already sitting at a block boundary starts the new
			// block; otherwise it also ends the running one.
			if blockStart < index {
				blocks = append(blocks, statements[blockStart:index])
				blockStart = index
			}
		case *ir.Jump, *ir.CondJump:
			blocks = append(blocks, statements[blockStart:index+1])
			blockStart = index + 1
		}
	}
	last := append([]ir.Statement{}, statements[blockStart:]...)
	last = append(last, &ir.Jump{Exp: &ir.NameExp{Label: done}, Labels: []temp.Label{done}})
	blocks = append(blocks, last)

	// Synthesize missing leading labels.
	for index, block := range blocks {
		if _, ok := block[0].(*ir.Label); !ok {
			blocks[index] = append([]ir.Statement{&ir.Label{Label: temps.NewLabel()}}, block...)
		}
	}

	// Close fall-through blocks with an explicit jump to their successor.
	for index := 0; index < len(blocks)-1; index++ {
		block := blocks[index]
		switch block[len(block)-1].(type) {
		case *ir.Jump, *ir.CondJump:
		default:
			next := blocks[index+1][0].(*ir.Label).Label
			blocks[index] = append(block, &ir.Jump{
				Exp:    &ir.NameExp{Label: next},
				Labels: []temp.Label{next},
			})
		}
	}

	return BasicBlocks{Done: done, Blocks: blocks}
}
