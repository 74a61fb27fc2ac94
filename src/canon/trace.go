package canon

import (
	"tigerc/src/ir"
	"tigerc/src/temp"
)

// ---------------------
// ----- Functions -----
// ---------------------

// blockLabel returns the label a block starts with.
func blockLabel(statements []ir.Statement) temp.Label {
	return statements[0].(*ir.Label).Label
}

// addNewFalseLabel rewires a conditional jump whose false branch cannot
// fall through: a synthetic false label is spliced in, followed by a jump to
// the original false target.
func addNewFalseLabel(temps *temp.Manager, statements []ir.Statement) []ir.Statement {
	jump := statements[len(statements)-1].(*ir.CondJump)
	newFalse := temps.NewLabel()
	oldFalse := jump.False
	jump.False = newFalse
	statements = append(statements, &ir.Label{Label: newFalse})
	return append(statements, &ir.Jump{
		Exp:    &ir.NameExp{Label: oldFalse},
		Labels: []temp.Label{oldFalse},
	})
}

// reorderBlocks builds traces greedily: pick an unmarked block, then keep
// following its final jump to unmarked successors, preferring the false
// branch of conditional jumps so they can fall through.
func reorderBlocks(blocks [][]ir.Statement) [][]ir.Statement {
	unmarked := make(map[temp.Label][]ir.Statement, len(blocks))
	for _, e1 := range blocks {
		unmarked[blockLabel(e1)] = e1
	}

	var result [][]ir.Statement
	for _, block := range blocks {
		current := block
		for {
			label := blockLabel(current)
			if _, ok := unmarked[label]; !ok {
				break
			}
			delete(unmarked, label)
			result = append(result, current)

			switch last := current[len(current)-1].(type) {
			case *ir.Jump:
				if next, ok := unmarked[last.Labels[0]]; ok {
					current = next
				}
			case *ir.CondJump:
				if next, ok := unmarked[last.False]; ok {
					current = next
				} else if next, ok := unmarked[last.True]; ok {
					current = next
				}
			}
		}
	}
	return result
}

// fixJumps cleans up after tracing: jumps to the next block are dropped,
// conditional jumps falling into their true branch are negated and swapped,
// and conditional jumps falling into neither branch get a synthetic false
// block.
func fixJumps(temps *temp.Manager, blocks [][]ir.Statement) [][]ir.Statement {
	for index := 0; index < len(blocks)-1; index++ {
		statements := blocks[index]
		next := blockLabel(blocks[index+1])

		switch last := statements[len(statements)-1].(type) {
		case *ir.Jump:
			if last.Labels[0] == next {
				blocks[index] = statements[:len(statements)-1]
			}
		case *ir.CondJump:
			switch next {
			case last.False:
			case last.True:
				last.True, last.False = last.False, last.True
				last.Op = ir.NegateRelOp(last.Op)
			default:
				blocks[index] = addNewFalseLabel(temps, statements)
			}
		}
	}

	last := blocks[len(blocks)-1]
	if _, ok := last[len(last)-1].(*ir.CondJump); ok {
		blocks[len(blocks)-1] = addNewFalseLabel(temps, last)
	}
	return blocks
}

// TraceSchedule reorders basic blocks into traces and flattens them back
// into a statement list. Afterwards every conditional jump is immediately
// followed by the label of its false branch.
func TraceSchedule(temps *temp.Manager, blocks BasicBlocks) []ir.Statement {
	reordered := reorderBlocks(blocks.Blocks)
	reordered = append(reordered, []ir.Statement{&ir.Label{Label: blocks.Done}})
	reordered = fixJumps(temps, reordered)

	var result []ir.Statement
	for _, block := range reordered {
		result = append(result, block...)
	}
	return result
}

// Canonize is the whole canonicalization pipeline for one procedure body.
func Canonize(temps *temp.Manager, statement ir.Statement) []ir.Statement {
	return TraceSchedule(temps, BuildBasicBlocks(temps, Linearize(temps, statement)))
}
