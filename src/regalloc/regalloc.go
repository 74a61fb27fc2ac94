// Package regalloc implements iterated register coalescing: simplify,
// coalesce, freeze and spill rounds over the interference graph, followed by
// color assignment off the select stack, with a program rewrite and a fresh
// round whenever actual spills remain.
package regalloc

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"tigerc/src/asm"
	"tigerc/src/frame"
	"tigerc/src/liveness"
	"tigerc/src/temp"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Result is a colored instruction list: Allocation maps every temporary of
// the instructions onto a precolored machine register temporary.
type Result struct {
	Instructions []asm.Instruction
	Allocation   map[temp.Temp]temp.Temp
}

// edge is one ordered interference pair.
type edge struct {
	a, b temp.Temp
}

// allocator carries the worklists and graphs of one coloring round. Every
// non-precolored node lives in exactly one of the node worklists and every
// move in exactly one of the move sets.
type allocator struct {
	frame *frame.Frame
	tmap  *frame.TempMap
	temps *temp.Manager

	tempUses        map[temp.Temp][]asm.Instruction
	tempDefinitions map[temp.Temp][]asm.Instruction

	precolored []temp.Temp
	colorCount int
	initial    []temp.Temp

	simplifyWorklist []temp.Temp
	freezeWorklist   []temp.Temp
	spillWorklist    []temp.Temp
	spilledNodes     []temp.Temp
	coalescedNodes   []temp.Temp
	coloredNodes     []temp.Temp
	selectStack      []temp.Temp

	coalescedMoves   []*asm.Move
	constrainedMoves []*asm.Move
	frozenMoves      []*asm.Move
	worklistMoves    []*asm.Move
	activeMoves      []*asm.Move

	adjacencies   map[edge]struct{}
	adjacentNodes map[temp.Temp][]temp.Temp
	nodeDegree    map[temp.Temp]int
	moveList      map[temp.Temp][]*asm.Move
	alias         map[temp.Temp]temp.Temp
	color         map[temp.Temp]temp.Temp
}

// ---------------------
// ----- Constants -----
// ---------------------

// infiniteDegree stands in for the degree of precolored nodes, which must
// never be simplified.
const infiniteDegree = 1 << 30

// maxRewriteRounds bounds the spill-rewrite loop. Each rewrite replaces a
// spilled temporary by short-lived ones, so the loop converges; the bound
// only guards against a coloring bug looping forever.
const maxRewriteRounds = 32

// ---------------------
// ----- Functions -----
// ---------------------

// Allocate colors the temporaries of one procedure body, rewriting the
// program around spills until everything is colored.
func Allocate(f *frame.Frame, tmap *frame.TempMap, temps *temp.Manager, instructions []asm.Instruction) (Result, error) {
	a := &allocator{frame: f, tmap: tmap, temps: temps}

	for round := 0; round < maxRewriteRounds; round++ {
		a.initialize(instructions)

		for len(a.simplifyWorklist) > 0 || len(a.worklistMoves) > 0 ||
			len(a.freezeWorklist) > 0 || len(a.spillWorklist) > 0 {
			switch {
			case len(a.simplifyWorklist) > 0:
				a.simplify()
			case len(a.worklistMoves) > 0:
				a.coalesce()
			case len(a.freezeWorklist) > 0:
				a.freeze()
			case len(a.spillWorklist) > 0:
				a.selectSpill()
			}
		}

		a.assignColors()
		if len(a.spilledNodes) == 0 {
			return Result{Instructions: instructions, Allocation: a.color}, nil
		}
		instructions = a.rewriteProgram(instructions)
	}
	return Result{}, errors.New("register allocation did not converge")
}

// initialize rebuilds liveness, the interference structures and the
// worklists for one coloring round.
func (a *allocator) initialize(instructions []asm.Instruction) {
	flowResult := liveness.BuildFlowGraph(instructions)
	a.tempUses = flowResult.TempUses
	a.tempDefinitions = flowResult.TempDefinitions

	interference := liveness.BuildInterference(flowResult.Graph)

	a.precolored = a.tmap.Precolored()
	a.colorCount = len(a.precolored)
	a.initial = nil
	for _, node := range interference.Graph.Nodes() {
		if !lo.Contains(a.precolored, node.Info) {
			a.initial = append(a.initial, node.Info)
		}
	}

	a.simplifyWorklist = nil
	a.freezeWorklist = nil
	a.spillWorklist = nil
	a.spilledNodes = nil
	a.coalescedNodes = nil
	a.coloredNodes = nil
	a.selectStack = nil

	a.coalescedMoves = nil
	a.constrainedMoves = nil
	a.frozenMoves = nil
	a.worklistMoves = interference.Moves
	a.activeMoves = nil

	a.adjacencies = map[edge]struct{}{}
	a.adjacentNodes = map[temp.Temp][]temp.Temp{}
	a.nodeDegree = map[temp.Temp]int{}
	for _, e1 := range a.initial {
		a.adjacentNodes[e1] = nil
		a.nodeDegree[e1] = 0
	}
	for _, e1 := range a.precolored {
		a.nodeDegree[e1] = infiniteDegree
	}
	for _, node := range interference.Graph.Nodes() {
		for _, neighbor := range interference.Graph.Successors(node) {
			a.addEdge(node.Info, neighbor.Info)
		}
	}

	a.moveList = interference.MoveList
	a.alias = map[temp.Temp]temp.Temp{}
	a.color = map[temp.Temp]temp.Temp{}
	for _, e1 := range a.precolored {
		a.color[e1] = e1
	}

	a.makeWorklist()
}

// addEdge records an interference pair symmetrically and idempotently.
func (a *allocator) addEdge(node1, node2 temp.Temp) {
	if node1 == node2 {
		return
	}
	if _, ok := a.adjacencies[edge{node1, node2}]; ok {
		return
	}
	a.adjacencies[edge{node1, node2}] = struct{}{}
	a.adjacencies[edge{node2, node1}] = struct{}{}
	if !lo.Contains(a.precolored, node1) {
		a.adjacentNodes[node1] = append(a.adjacentNodes[node1], node2)
		a.nodeDegree[node1]++
	}
	if !lo.Contains(a.precolored, node2) {
		a.adjacentNodes[node2] = append(a.adjacentNodes[node2], node1)
		a.nodeDegree[node2]++
	}
}

// makeWorklist splits the initial nodes by degree and move-relatedness.
func (a *allocator) makeWorklist() {
	for _, node := range a.initial {
		switch {
		case a.nodeDegree[node] >= a.colorCount:
			a.spillWorklist = append(a.spillWorklist, node)
		case a.moveRelated(node):
			a.freezeWorklist = append(a.freezeWorklist, node)
		default:
			a.simplifyWorklist = append(a.simplifyWorklist, node)
		}
	}
}

// nodeMoves returns the moves of node that are not yet decided.
func (a *allocator) nodeMoves(node temp.Temp) []*asm.Move {
	return lo.Filter(a.moveList[node], func(move *asm.Move, _ int) bool {
		return lo.Contains(a.activeMoves, move) || lo.Contains(a.worklistMoves, move)
	})
}

func (a *allocator) moveRelated(node temp.Temp) bool {
	return len(a.nodeMoves(node)) > 0
}

// simplify removes low-degree non-move-related nodes from the graph and
// stacks them for coloring.
func (a *allocator) simplify() {
	for len(a.simplifyWorklist) > 0 {
		node := a.simplifyWorklist[0]
		a.simplifyWorklist = a.simplifyWorklist[1:]
		a.selectStack = append(a.selectStack, node)
		for _, e1 := range a.adjacent(node) {
			a.decrementDegree(e1)
		}
	}
}

// adjacent returns the still-present neighbors of node: those neither
// stacked nor coalesced away.
func (a *allocator) adjacent(node temp.Temp) []temp.Temp {
	return lo.Filter(a.adjacentNodes[node], func(neighbor temp.Temp, _ int) bool {
		return !lo.Contains(a.selectStack, neighbor) && !lo.Contains(a.coalescedNodes, neighbor)
	})
}

// decrementDegree lowers a neighbor's degree; dropping below the color
// count re-enables its moves and moves it off the spill worklist.
func (a *allocator) decrementDegree(node temp.Temp) {
	a.nodeDegree[node]--
	if a.nodeDegree[node] == a.colorCount-1 {
		a.enableMoves(append([]temp.Temp{node}, a.adjacent(node)...))
		a.spillWorklist = removeTemp(a.spillWorklist, node)
		if a.moveRelated(node) {
			a.freezeWorklist = append(a.freezeWorklist, node)
		} else {
			a.simplifyWorklist = append(a.simplifyWorklist, node)
		}
	}
}

// enableMoves reactivates the undecided moves of the given nodes.
func (a *allocator) enableMoves(nodes []temp.Temp) {
	for _, node := range nodes {
		for _, move := range a.nodeMoves(node) {
			if lo.Contains(a.activeMoves, move) {
				a.activeMoves = removeMove(a.activeMoves, move)
				a.worklistMoves = append(a.worklistMoves, move)
			}
		}
	}
}

// coalesce runs the George and Briggs tests over the move worklist and
// merges the pairs that pass.
func (a *allocator) coalesce() {
	for len(a.worklistMoves) > 0 {
		move := a.worklistMoves[0]
		a.worklistMoves = a.worklistMoves[1:]
		x := a.getAlias(move.Source[0])
		y := a.getAlias(move.Destination[0])

		var u, v temp.Temp
		if lo.Contains(a.precolored, y) {
			u, v = y, x
		} else {
			u, v = x, y
		}

		switch {
		case u == v:
			a.coalescedMoves = append(a.coalescedMoves, move)
			a.addWorkList(u)

		case lo.Contains(a.precolored, v) || a.interferes(u, v):
			a.constrainedMoves = append(a.constrainedMoves, move)
			a.addWorkList(u)
			a.addWorkList(v)

		case a.coalesceable(u, v):
			a.coalescedMoves = append(a.coalescedMoves, move)
			a.combine(u, v)
			a.addWorkList(u)

		default:
			a.activeMoves = append(a.activeMoves, move)
		}
	}
}

func (a *allocator) interferes(node1, node2 temp.Temp) bool {
	_, ok := a.adjacencies[edge{node1, node2}]
	return ok
}

// coalesceable applies the George test when u is precolored and the Briggs
// test otherwise.
func (a *allocator) coalesceable(u, v temp.Temp) bool {
	if lo.Contains(a.precolored, u) {
		for _, t := range a.adjacent(v) {
			if !a.precoloredCoalesceable(t, u) {
				return false
			}
		}
		return true
	}
	neighborhood := lo.Uniq(append(a.adjacent(u), a.adjacent(v)...))
	return a.conservativeCoalesceable(neighborhood)
}

// precoloredCoalesceable is the George criterion for one neighbor t of the
// non-precolored side: insignificant degree, precolored, or already
// interfering with u.
func (a *allocator) precoloredCoalesceable(t, precoloredNode temp.Temp) bool {
	return a.nodeDegree[t] < a.colorCount ||
		lo.Contains(a.precolored, t) ||
		a.interferes(t, precoloredNode)
}

// conservativeCoalesceable is the Briggs criterion: fewer than K combined
// neighbors of significant degree.
func (a *allocator) conservativeCoalesceable(nodes []temp.Temp) bool {
	significant := 0
	for _, node := range nodes {
		if a.nodeDegree[node] >= a.colorCount {
			significant++
		}
	}
	return significant < a.colorCount
}

// getAlias chases coalescing aliases to the canonical representative.
func (a *allocator) getAlias(node temp.Temp) temp.Temp {
	if lo.Contains(a.coalescedNodes, node) {
		return a.getAlias(a.alias[node])
	}
	return node
}

// addWorkList moves a node that is no longer move related and of low
// degree from the freeze to the simplify worklist.
func (a *allocator) addWorkList(node temp.Temp) {
	if !lo.Contains(a.precolored, node) && !a.moveRelated(node) && a.nodeDegree[node] < a.colorCount {
		a.freezeWorklist = removeTemp(a.freezeWorklist, node)
		a.simplifyWorklist = append(a.simplifyWorklist, node)
	}
}

// combine merges v into u.
func (a *allocator) combine(u, v temp.Temp) {
	if lo.Contains(a.freezeWorklist, v) {
		a.freezeWorklist = removeTemp(a.freezeWorklist, v)
	} else {
		a.spillWorklist = removeTemp(a.spillWorklist, v)
	}
	a.coalescedNodes = append(a.coalescedNodes, v)
	a.alias[v] = u
	a.moveList[u] = append(a.moveList[u], a.moveList[v]...)
	for _, e1 := range a.adjacent(v) {
		a.addEdge(e1, u)
		a.decrementDegree(e1)
	}
	if a.nodeDegree[u] >= a.colorCount && lo.Contains(a.freezeWorklist, u) {
		a.freezeWorklist = removeTemp(a.freezeWorklist, u)
		a.spillWorklist = append(a.spillWorklist, u)
	}
}

// freeze gives up on coalescing the moves of low-degree move-related nodes
// so they become simplifiable.
func (a *allocator) freeze() {
	for len(a.freezeWorklist) > 0 {
		node := a.freezeWorklist[0]
		a.freezeWorklist = a.freezeWorklist[1:]
		a.simplifyWorklist = append(a.simplifyWorklist, node)
		a.freezeMoves(node)
	}
}

// freezeMoves abandons every undecided move of node.
func (a *allocator) freezeMoves(node temp.Temp) {
	for _, move := range a.nodeMoves(node) {
		x := a.getAlias(move.Source[0])
		y := a.getAlias(move.Destination[0])

		var v temp.Temp
		if y == a.getAlias(node) {
			v = x
		} else {
			v = y
		}

		a.activeMoves = removeMove(a.activeMoves, move)
		a.frozenMoves = append(a.frozenMoves, move)
		if len(a.nodeMoves(v)) == 0 && a.nodeDegree[v] < a.colorCount {
			a.freezeWorklist = removeTemp(a.freezeWorklist, v)
			a.simplifyWorklist = append(a.simplifyWorklist, v)
		}
	}
}

// selectSpill picks the spill candidate minimizing use density and treats
// it as simplifiable; the decision to actually spill falls out of
// assignColors.
func (a *allocator) selectSpill() {
	spillable := lo.Filter(a.spillWorklist, func(node temp.Temp, _ int) bool {
		return !lo.Contains(a.precolored, node)
	})
	spilled := lo.MinBy(spillable, func(node, minimum temp.Temp) bool {
		return a.spillHeuristic(node) < a.spillHeuristic(minimum)
	})
	a.spillWorklist = removeTemp(a.spillWorklist, spilled)
	a.simplifyWorklist = append(a.simplifyWorklist, spilled)
	a.freezeMoves(spilled)
}

// spillHeuristic scores a node by uses and definitions per degree; cheap,
// long-lived temporaries spill first.
func (a *allocator) spillHeuristic(node temp.Temp) float64 {
	return float64(len(a.tempUses[node])+len(a.tempDefinitions[node])) / float64(a.nodeDegree[node])
}

// assignColors pops the select stack, giving every node a color not taken
// by its colored or precolored neighbors, and propagates colors onto
// coalesced nodes. Nodes with no free color become actual spills.
func (a *allocator) assignColors() {
	for len(a.selectStack) > 0 {
		node := a.selectStack[len(a.selectStack)-1]
		a.selectStack = a.selectStack[:len(a.selectStack)-1]

		possibleColors := append([]temp.Temp{}, a.precolored...)
		for _, neighbor := range a.adjacentNodes[node] {
			aliased := a.getAlias(neighbor)
			if lo.Contains(a.coloredNodes, aliased) || lo.Contains(a.precolored, aliased) {
				possibleColors = removeTemp(possibleColors, a.color[aliased])
			}
		}

		if len(possibleColors) == 0 {
			a.spilledNodes = append(a.spilledNodes, node)
		} else {
			a.coloredNodes = append(a.coloredNodes, node)
			a.color[node] = possibleColors[0]
		}
	}
	for _, node := range a.coalescedNodes {
		a.color[node] = a.color[a.getAlias(node)]
	}
}

// rewriteProgram allocates a frame slot for every spilled temporary and
// rewrites its uses and definitions through short-lived fresh temporaries:
// a fetch before every use, a store after every definition.
func (a *allocator) rewriteProgram(instructions []asm.Instruction) []asm.Instruction {
	framePointer := a.tmap.FramePointer()
	for _, node := range a.spilledNodes {
		slot := a.frame.AllocLocal(true).(frame.InFrame)

		for _, useInstruction := range a.tempUses[node] {
			newTemporary := a.temps.NewTemp()
			replaceTemp(asm.Uses(useInstruction), node, newTemporary)
			fetch := &asm.Operation{
				Line:        fmt.Sprintf("movq %d(%%'s0), %%'d0\n", slot.Offset),
				Source:      []temp.Temp{framePointer},
				Destination: []temp.Temp{newTemporary},
			}
			index := indexOf(instructions, useInstruction)
			instructions = insertAt(instructions, index, fetch)
		}

		for _, definitionInstruction := range a.tempDefinitions[node] {
			newTemporary := a.temps.NewTemp()
			replaceTemp(asm.Defs(definitionInstruction), node, newTemporary)
			store := &asm.Operation{
				Line:   fmt.Sprintf("movq %%'s0, %d(%%'s1)\n", slot.Offset),
				Source: []temp.Temp{newTemporary, framePointer},
			}
			index := indexOf(instructions, definitionInstruction)
			instructions = insertAt(instructions, index+1, store)
		}
	}
	return instructions
}

// ----------------------------
// ----- Slice utilities ------
// ----------------------------

// removeTemp deletes the first occurrence of t, preserving order.
func removeTemp(slice []temp.Temp, t temp.Temp) []temp.Temp {
	for i1, e1 := range slice {
		if e1 == t {
			return append(append([]temp.Temp{}, slice[:i1]...), slice[i1+1:]...)
		}
	}
	return slice
}

// removeMove deletes the first occurrence of move, preserving order.
func removeMove(slice []*asm.Move, move *asm.Move) []*asm.Move {
	for i1, e1 := range slice {
		if e1 == move {
			return append(append([]*asm.Move{}, slice[:i1]...), slice[i1+1:]...)
		}
	}
	return slice
}

// replaceTemp substitutes to for from in place.
func replaceTemp(slice []temp.Temp, from, to temp.Temp) {
	for i1, e1 := range slice {
		if e1 == from {
			slice[i1] = to
		}
	}
}

// indexOf finds an instruction by identity.
func indexOf(instructions []asm.Instruction, target asm.Instruction) int {
	for i1, e1 := range instructions {
		if e1 == target {
			return i1
		}
	}
	panic("regalloc: rewriting an instruction that is not in the program")
}

// insertAt splices instruction in front of index.
func insertAt(instructions []asm.Instruction, index int, instruction asm.Instruction) []asm.Instruction {
	instructions = append(instructions, nil)
	copy(instructions[index+1:], instructions[index:])
	instructions[index] = instruction
	return instructions
}
