package liveness

import (
	"tigerc/src/asm"
	"tigerc/src/temp"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// InterferenceResult is the allocator's input: the interference graph over
// temporaries, every coalescable move, and the moves each temporary takes
// part in.
type InterferenceResult struct {
	Graph    *Graph[temp.Temp]
	Moves    []*asm.Move
	MoveList map[temp.Temp][]*asm.Move
}

// ---------------------
// ----- Functions -----
// ---------------------

// BuildInterference derives the interference graph from a solved flow
// graph. A defined temporary interferes with everything live out of its
// instruction; for a register-to-register move the source is exempted so
// the pair stays coalescable, and the move is recorded instead.
func BuildInterference(flow *Graph[*Info]) InterferenceResult {
	graph := NewGraph[temp.Temp]()
	result := InterferenceResult{
		Graph:    graph,
		MoveList: map[temp.Temp][]*asm.Move{},
	}

	// One interference node per temporary mentioned anywhere.
	tempNodes := map[temp.Temp]*Node[temp.Temp]{}
	addTemp := func(t temp.Temp) {
		if _, ok := tempNodes[t]; !ok {
			tempNodes[t] = graph.AddNode(t)
		}
	}
	for _, flowNode := range flow.Nodes() {
		for e1 := range flowNode.Info.Definitions {
			addTemp(e1)
		}
		for e1 := range flowNode.Info.Uses {
			addTemp(e1)
		}
	}

	addInterference := func(a, b temp.Temp) {
		if a == b {
			return
		}
		graph.AddEdge(tempNodes[a], tempNodes[b])
		graph.AddEdge(tempNodes[b], tempNodes[a])
	}

	for _, flowNode := range flow.Nodes() {
		info := flowNode.Info
		move, isMove := info.Instruction.(*asm.Move)
		if isMove && len(move.Destination) == 1 && len(move.Source) == 1 {
			destination := move.Destination[0]
			source := move.Source[0]
			for liveOut := range info.LiveOut {
				if liveOut != source {
					addInterference(destination, liveOut)
				}
			}
			result.Moves = append(result.Moves, move)
			result.MoveList[source] = append(result.MoveList[source], move)
			if destination != source {
				result.MoveList[destination] = append(result.MoveList[destination], move)
			}
			continue
		}
		for defined := range info.Definitions {
			for liveOut := range info.LiveOut {
				addInterference(defined, liveOut)
			}
		}
	}
	return result
}
