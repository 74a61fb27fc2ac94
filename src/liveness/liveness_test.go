package liveness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tigerc/src/asm"
	"tigerc/src/temp"
)

// TestGraphOperations exercises the directed graph primitives.
func TestGraphOperations(t *testing.T) {
	g := NewGraph[string]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")

	g.AddEdge(a, b)
	g.AddEdge(b, c)
	g.AddEdge(c, a)

	assert.Len(t, g.Nodes(), 3)
	assert.True(t, g.GoesTo(a, b))
	assert.False(t, g.GoesTo(b, a))
	assert.Equal(t, 2, g.Degree(a))

	successors := g.Successors(a)
	require.Len(t, successors, 1)
	assert.Equal(t, "b", successors[0].Info)

	predecessors := g.Predecessors(a)
	require.Len(t, predecessors, 1)
	assert.Equal(t, "c", predecessors[0].Info)

	// Adding an edge twice must not double the degree.
	g.AddEdge(a, b)
	assert.Equal(t, 2, g.Degree(a))

	g.RemoveEdge(a, b)
	assert.False(t, g.GoesTo(a, b))
	assert.Equal(t, 1, g.Degree(a))

	assert.Len(t, g.Adjacent(b), 1)
}

// TestFlowGraphLiveness solves liveness over a diamond:
//
//	t1 <- 1
//	t2 <- 2
//	cmp, branches to thenL or elseL
//	thenL: t3 <- t1
//	jmp join
//	elseL: t3 <- t2
//	join:  use t3
//
// t1 must be live into the branch but dead after thenL's copy; t2 likewise
// on the other arm.
func TestFlowGraphLiveness(t *testing.T) {
	t1, t2, t3 := temp.Temp(101), temp.Temp(102), temp.Temp(103)
	thenL, elseL, join := temp.Label("then"), temp.Label("else"), temp.Label("join")

	def1 := &asm.Move{Line: "movq $1, %'d0\n", Destination: []temp.Temp{t1}}
	def2 := &asm.Move{Line: "movq $2, %'d0\n", Destination: []temp.Temp{t2}}
	branch := &asm.Operation{Line: "jne 'j0\n", Jump: []temp.Label{thenL, elseL}}
	thenLabel := &asm.Label{Line: "then:\n", Label: thenL}
	thenCopy := &asm.Move{Line: "movq %'s0, %'d0\n", Source: []temp.Temp{t1}, Destination: []temp.Temp{t3}}
	jumpJoin := &asm.Operation{Line: "jmp 'j0\n", Jump: []temp.Label{join}}
	elseLabel := &asm.Label{Line: "else:\n", Label: elseL}
	elseCopy := &asm.Move{Line: "movq %'s0, %'d0\n", Source: []temp.Temp{t2}, Destination: []temp.Temp{t3}}
	joinLabel := &asm.Label{Line: "join:\n", Label: join}
	use := &asm.Operation{Line: "pushq %'s0\n", Source: []temp.Temp{t3}}

	result := BuildFlowGraph([]asm.Instruction{
		def1, def2, branch, thenLabel, thenCopy, jumpJoin, elseLabel, elseCopy, joinLabel, use,
	})

	infoOf := func(instruction asm.Instruction) *Info {
		for _, node := range result.Graph.Nodes() {
			if node.Info.Instruction == instruction {
				return node.Info
			}
		}
		t.Fatal("instruction not in flow graph")
		return nil
	}

	assert.Contains(t, infoOf(branch).LiveIn, t1)
	assert.Contains(t, infoOf(branch).LiveIn, t2)
	assert.NotContains(t, infoOf(jumpJoin).LiveIn, t1)
	assert.NotContains(t, infoOf(jumpJoin).LiveIn, t2)
	assert.Contains(t, infoOf(jumpJoin).LiveIn, t3)
	assert.Contains(t, infoOf(elseCopy).LiveIn, t2)
	assert.Contains(t, infoOf(use).LiveIn, t3)
	assert.Empty(t, infoOf(use).LiveOut)

	assert.Len(t, result.TempUses[t3], 1)
	assert.Len(t, result.TempDefinitions[t3], 2)
	assert.Len(t, result.TempDefinitions[t1], 1)
}

// TestInterferenceMoveExemption verifies that a move's source does not
// interfere with its destination, while a third live temporary does.
func TestInterferenceMoveExemption(t *testing.T) {
	t1, t2, t3 := temp.Temp(201), temp.Temp(202), temp.Temp(203)

	defA := &asm.Move{Line: "movq $1, %'d0\n", Destination: []temp.Temp{t1}}
	defB := &asm.Move{Line: "movq $2, %'d0\n", Destination: []temp.Temp{t3}}
	copyMove := &asm.Move{Line: "movq %'s0, %'d0\n", Source: []temp.Temp{t1}, Destination: []temp.Temp{t2}}
	useBoth := &asm.Operation{Line: "addq %'s1, %'d0\n", Source: []temp.Temp{t2, t3}, Destination: []temp.Temp{t2}}
	sink := &asm.Operation{Line: "", Source: []temp.Temp{t2}}

	flow := BuildFlowGraph([]asm.Instruction{defA, defB, copyMove, useBoth, sink})
	result := BuildInterference(flow.Graph)

	nodeOf := map[temp.Temp]*Node[temp.Temp]{}
	for _, node := range result.Graph.Nodes() {
		nodeOf[node.Info] = node
	}

	// t1 and t2 stay coalescable, t2 and t3 interfere.
	assert.False(t, result.Graph.GoesTo(nodeOf[t2], nodeOf[t1]))
	assert.True(t, result.Graph.GoesTo(nodeOf[t2], nodeOf[t3]) || result.Graph.GoesTo(nodeOf[t3], nodeOf[t2]))

	require.Len(t, result.Moves, 1)
	assert.Equal(t, copyMove, result.Moves[0])
	assert.Contains(t, result.MoveList[t1], copyMove)
	assert.Contains(t, result.MoveList[t2], copyMove)
}
