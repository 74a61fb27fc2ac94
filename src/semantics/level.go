package semantics

import (
	"tigerc/src/frame"
	"tigerc/src/temp"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Level identifies one nesting level of Tiger functions. The outermost
// level has no frame; every real level owns the frame of one function and
// remembers its parent so static links can be chased.
type Level interface {
	aLevel()
}

// OutermostLevel is the level enclosing the whole program.
type OutermostLevel struct{}

// RealLevel is the level of one declared function.
type RealLevel struct {
	Parent Level
	Name   temp.Label
	Frame  *frame.Frame
}

func (*OutermostLevel) aLevel() {}
func (*RealLevel) aLevel()      {}

// Access is the location of one variable together with the level it was
// declared at.
type Access struct {
	Level  *RealLevel
	Access frame.Access
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewRealLevel creates the level and frame for a function with the given
// formal escapes. The static link is prepended as an always escaping
// zero-th formal.
func NewRealLevel(temps *temp.Manager, parent Level, name temp.Label, formalEscapes []bool) *RealLevel {
	escapes := append([]bool{true}, formalEscapes...)
	return &RealLevel{
		Parent: parent,
		Name:   name,
		Frame:  frame.NewFrame(temps, name, escapes),
	}
}

// Formals returns the access of every formal, the static link included.
func (l *RealLevel) Formals() []Access {
	res := make([]Access, len(l.Frame.Formals))
	for i1, e1 := range l.Frame.Formals {
		res[i1] = Access{Level: l, Access: e1}
	}
	return res
}

// AllocLocal allocates a local variable in the level's frame.
func (l *RealLevel) AllocLocal(escape bool) Access {
	return Access{Level: l, Access: l.Frame.AllocLocal(escape)}
}
