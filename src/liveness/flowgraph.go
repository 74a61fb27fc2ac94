package liveness

import (
	"tigerc/src/asm"
	"tigerc/src/temp"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Info is the dataflow state of one instruction: its def and use sets and
// the live-in and live-out sets the fixed point converges on.
type Info struct {
	Instruction asm.Instruction
	Definitions map[temp.Temp]struct{}
	Uses        map[temp.Temp]struct{}
	LiveIn      map[temp.Temp]struct{}
	LiveOut     map[temp.Temp]struct{}
}

// FlowGraphResult bundles the solved flow graph with the per-temporary
// instruction indices the allocator's spill rewriter needs.
type FlowGraphResult struct {
	Graph           *Graph[*Info]
	TempUses        map[temp.Temp][]asm.Instruction
	TempDefinitions map[temp.Temp][]asm.Instruction
}

// ---------------------
// ----- Functions -----
// ---------------------

// newInfo captures an instruction's def and use sets.
func newInfo(instruction asm.Instruction) *Info {
	info := &Info{
		Instruction: instruction,
		Definitions: map[temp.Temp]struct{}{},
		Uses:        map[temp.Temp]struct{}{},
		LiveIn:      map[temp.Temp]struct{}{},
		LiveOut:     map[temp.Temp]struct{}{},
	}
	for _, e1 := range asm.Defs(instruction) {
		info.Definitions[e1] = struct{}{}
	}
	for _, e1 := range asm.Uses(instruction) {
		info.Uses[e1] = struct{}{}
	}
	return info
}

// IsMove reports whether the instruction is a coalescable register copy.
func (info *Info) IsMove() bool {
	_, ok := info.Instruction.(*asm.Move)
	return ok
}

// jumpTargets returns the labels a jumping instruction may transfer to, or
// nil for straight-line instructions.
func jumpTargets(instruction asm.Instruction) []temp.Label {
	if operation, ok := instruction.(*asm.Operation); ok {
		return operation.Jump
	}
	return nil
}

// setLiveIn recomputes live-in from the dataflow equation
// in = use ∪ (out \ def).
func (info *Info) setLiveIn() {
	liveIn := make(map[temp.Temp]struct{}, len(info.Uses)+len(info.LiveOut))
	for e1 := range info.Uses {
		liveIn[e1] = struct{}{}
	}
	for e1 := range info.LiveOut {
		if _, defined := info.Definitions[e1]; !defined {
			liveIn[e1] = struct{}{}
		}
	}
	info.LiveIn = liveIn
}

// setLiveOut recomputes live-out as the union of the successors' live-in.
func (info *Info) setLiveOut(successors []*Node[*Info]) {
	liveOut := map[temp.Temp]struct{}{}
	for _, e1 := range successors {
		for e2 := range e1.Info.LiveIn {
			liveOut[e2] = struct{}{}
		}
	}
	info.LiveOut = liveOut
}

// sameSet reports set equality.
func sameSet(a, b map[temp.Temp]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for e1 := range a {
		if _, ok := b[e1]; !ok {
			return false
		}
	}
	return true
}

// BuildFlowGraph constructs the control flow graph of an instruction list
// and iterates the liveness equations to their fixed point. Edges run from
// every straight-line instruction to its successor and from every jump to
// each label in its jump list.
func BuildFlowGraph(instructions []asm.Instruction) FlowGraphResult {
	graph := NewGraph[*Info]()
	tempUses := map[temp.Temp][]asm.Instruction{}
	tempDefinitions := map[temp.Temp][]asm.Instruction{}
	labelNodes := map[temp.Label]*Node[*Info]{}

	// Node creation.
	for _, instruction := range instructions {
		node := graph.AddNode(newInfo(instruction))
		if label, ok := instruction.(*asm.Label); ok {
			labelNodes[label.Label] = node
		}
		for e1 := range node.Info.Uses {
			tempUses[e1] = append(tempUses[e1], instruction)
		}
		for e1 := range node.Info.Definitions {
			tempDefinitions[e1] = append(tempDefinitions[e1], instruction)
		}
	}

	// Edge creation.
	nodes := graph.Nodes()
	for index, node := range nodes {
		targets := jumpTargets(node.Info.Instruction)
		if targets != nil {
			for _, e1 := range targets {
				if target, ok := labelNodes[e1]; ok {
					graph.AddEdge(node, target)
				}
			}
		} else if index+1 < len(nodes) {
			graph.AddEdge(node, nodes[index+1])
		}
	}

	// Liveness iteration.
	for changed := true; changed; {
		changed = false
		for i1 := len(nodes) - 1; i1 >= 0; i1-- {
			node := nodes[i1]
			backupLiveIn := node.Info.LiveIn
			backupLiveOut := node.Info.LiveOut

			node.Info.setLiveOut(graph.Successors(node))
			node.Info.setLiveIn()

			if !sameSet(node.Info.LiveIn, backupLiveIn) || !sameSet(node.Info.LiveOut, backupLiveOut) {
				changed = true
			}
		}
	}

	return FlowGraphResult{Graph: graph, TempUses: tempUses, TempDefinitions: tempDefinitions}
}
