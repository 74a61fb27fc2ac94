package regalloc

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samber/lo"

	"tigerc/src/asm"
	"tigerc/src/frame"
	"tigerc/src/liveness"
	"tigerc/src/temp"
)

// assertValidColoring rebuilds liveness over the allocated instructions and
// checks that every temporary is mapped and that no interfering pair shares
// a machine register.
func assertValidColoring(t *testing.T, tmap *frame.TempMap, result Result) {
	t.Helper()
	precolored := tmap.Precolored()
	resolve := func(x temp.Temp) temp.Temp {
		if lo.Contains(precolored, x) {
			return x
		}
		color, ok := result.Allocation[x]
		require.True(t, ok, "temporary %s left unmapped", x)
		return color
	}

	flow := liveness.BuildFlowGraph(result.Instructions)
	interference := liveness.BuildInterference(flow.Graph)
	for _, node := range interference.Graph.Nodes() {
		resolve(node.Info)
		for _, neighbor := range interference.Graph.Successors(node) {
			if node.Info == neighbor.Info {
				continue
			}
			assert.NotEqual(t, resolve(node.Info), resolve(neighbor.Info),
				"interfering temporaries %s and %s share a register", node.Info, neighbor.Info)
		}
	}
}

// TestAllocateStraightLine colors a short arithmetic body.
func TestAllocateStraightLine(t *testing.T) {
	temps := temp.NewManager()
	tmap := frame.NewTempMap(temps)
	f := frame.NewFrame(temps, "f", nil)

	t1, t2, t3 := temps.NewTemp(), temps.NewTemp(), temps.NewTemp()
	rax := tmap.ReturnValue()

	instructions := frame.Sink(tmap, []asm.Instruction{
		&asm.Move{Line: "movq $1, %'d0\n", Destination: []temp.Temp{t1}},
		&asm.Move{Line: "movq $2, %'d0\n", Destination: []temp.Temp{t2}},
		&asm.Move{Line: "movq %'s0, %'d0\n", Source: []temp.Temp{t1}, Destination: []temp.Temp{t3}},
		&asm.Operation{Line: "addq %'s1, %'d0\n", Source: []temp.Temp{t3, t2}, Destination: []temp.Temp{t3}},
		&asm.Move{Line: "movq %'s0, %'d0\n", Source: []temp.Temp{t3}, Destination: []temp.Temp{rax}},
	})

	result, err := Allocate(f, tmap, temps, instructions)
	require.NoError(t, err)
	assertValidColoring(t, tmap, result)

	for _, e1 := range []temp.Temp{t1, t2, t3} {
		color, ok := result.Allocation[e1]
		require.True(t, ok)
		assert.Contains(t, tmap.Precolored(), color)
	}
	// No spills were needed, so nothing was inserted.
	assert.Len(t, result.Instructions, len(instructions))
}

// TestAllocateSpills forces more simultaneously live temporaries than there
// are registers and checks that rewriting converges to a valid coloring.
func TestAllocateSpills(t *testing.T) {
	temps := temp.NewManager()
	tmap := frame.NewTempMap(temps)
	f := frame.NewFrame(temps, "f", nil)

	const pressure = 24
	var body []asm.Instruction
	live := make([]temp.Temp, pressure)
	for i1 := 0; i1 < pressure; i1++ {
		live[i1] = temps.NewTemp()
		body = append(body, &asm.Move{
			Line:        fmt.Sprintf("movq $%d, %%'d0\n", i1),
			Destination: []temp.Temp{live[i1]},
		})
	}
	for i1 := 0; i1 < pressure; i1++ {
		body = append(body, &asm.Operation{
			Line:   "pushq %'s0\n",
			Source: []temp.Temp{live[i1]},
		})
	}

	instructions := frame.Sink(tmap, body)
	before := len(instructions)

	result, err := Allocate(f, tmap, temps, instructions)
	require.NoError(t, err)
	assertValidColoring(t, tmap, result)

	// Spilling inserts fetches and stores, never deletes.
	assert.Greater(t, len(result.Instructions), before)
	// The frame gained spill slots.
	assert.Negative(t, f.Offset)
}

// TestAllocateCoalescesMoveChain verifies that a chain of copies between
// non-interfering temporaries collapses onto one register.
func TestAllocateCoalescesMoveChain(t *testing.T) {
	temps := temp.NewManager()
	tmap := frame.NewTempMap(temps)
	f := frame.NewFrame(temps, "f", nil)

	t1, t2, t3 := temps.NewTemp(), temps.NewTemp(), temps.NewTemp()
	rax := tmap.ReturnValue()

	instructions := frame.Sink(tmap, []asm.Instruction{
		&asm.Move{Line: "movq $1, %'d0\n", Destination: []temp.Temp{t1}},
		&asm.Move{Line: "movq %'s0, %'d0\n", Source: []temp.Temp{t1}, Destination: []temp.Temp{t2}},
		&asm.Move{Line: "movq %'s0, %'d0\n", Source: []temp.Temp{t2}, Destination: []temp.Temp{t3}},
		&asm.Move{Line: "movq %'s0, %'d0\n", Source: []temp.Temp{t3}, Destination: []temp.Temp{rax}},
	})

	result, err := Allocate(f, tmap, temps, instructions)
	require.NoError(t, err)
	assertValidColoring(t, tmap, result)

	assert.Equal(t, result.Allocation[t1], result.Allocation[t2])
	assert.Equal(t, result.Allocation[t2], result.Allocation[t3])
}
