// Package semantics performs type checking and translation of the abstract
// syntax tree into intermediate representation trees. The output of the
// package is a list of fragments: string literals for the read-only data
// section and one procedure body per Tiger function.
package semantics

import (
	"sync"

	"tigerc/src/frame"
	"tigerc/src/ir"
	"tigerc/src/temp"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Fragment is one unit of translation output.
type Fragment interface {
	aFragment()
}

// StringFragment is a string literal bound to its data section label.
type StringFragment struct {
	Label   temp.Label
	Literal string
}

// ProcFragment is one translated procedure body bound to its frame.
type ProcFragment struct {
	Body  ir.Statement
	Frame *frame.Frame
}

func (*StringFragment) aFragment() {}
func (*ProcFragment) aFragment()   {}

// FragmentManager collects fragments during translation, append only. The
// backend drains it once translation has finished.
type FragmentManager struct {
	fragments []Fragment
	mx        sync.Mutex
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewFragmentManager returns an empty fragment list.
func NewFragmentManager() *FragmentManager {
	return &FragmentManager{}
}

// Add appends a fragment.
func (fm *FragmentManager) Add(fragment Fragment) {
	fm.mx.Lock()
	defer fm.mx.Unlock()
	fm.fragments = append(fm.fragments, fragment)
}

// Fragments returns every fragment added so far, in order.
func (fm *FragmentManager) Fragments() []Fragment {
	fm.mx.Lock()
	defer fm.mx.Unlock()
	return fm.fragments
}
