package frame

import (
	"sync"

	"tigerc/src/temp"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// TempMap is the bidirectional mapping between machine registers and the
// temporaries that stand for them. One TempMap exists per compilation; the
// register allocator composes its per-procedure colorings into the
// temp-to-register direction.
type TempMap struct {
	RegisterToTemp map[string]temp.Temp
	TempToRegister map[temp.Temp]string
	mx             sync.Mutex
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewTempMap creates one fresh temporary per machine register and records
// both mapping directions.
func NewTempMap(temps *temp.Manager) *TempMap {
	tmap := &TempMap{
		RegisterToTemp: make(map[string]temp.Temp, len(AllRegisters)),
		TempToRegister: make(map[temp.Temp]string, len(AllRegisters)),
	}
	for _, register := range AllRegisters {
		t := temps.NewTemp()
		tmap.RegisterToTemp[register] = t
		tmap.TempToRegister[t] = register
	}
	return tmap
}

// FramePointer returns the temporary standing for %rbp.
func (tmap *TempMap) FramePointer() temp.Temp {
	return tmap.RegisterToTemp["rbp"]
}

// ReturnValue returns the temporary standing for %rax.
func (tmap *TempMap) ReturnValue() temp.Temp {
	return tmap.RegisterToTemp["rax"]
}

// UpdateRegisterMapping composes an allocation into the temp-to-register
// map: every allocated temporary is mapped to the register of the precolored
// temporary it was colored with.
func (tmap *TempMap) UpdateRegisterMapping(allocation map[temp.Temp]temp.Temp) {
	tmap.mx.Lock()
	defer tmap.mx.Unlock()
	for t, color := range allocation {
		tmap.TempToRegister[t] = tmap.TempToRegister[color]
	}
}

// TempToString resolves a temporary to its register name after allocation,
// or its t<n> form when no register backs it.
func (tmap *TempMap) TempToString(t temp.Temp) string {
	tmap.mx.Lock()
	defer tmap.mx.Unlock()
	if register, ok := tmap.TempToRegister[t]; ok {
		return register
	}
	return t.String()
}

// Precolored returns the temporaries of every machine register, in register
// list order.
func (tmap *TempMap) Precolored() []temp.Temp {
	res := make([]temp.Temp, len(AllRegisters))
	for i1, register := range AllRegisters {
		res[i1] = tmap.RegisterToTemp[register]
	}
	return res
}
