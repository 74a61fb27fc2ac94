package semantics

import (
	"tigerc/src/ir"
	"tigerc/src/temp"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// TranslatedExpression is the translator's internal three-form
// representation of a translated AST node: an expression producing a value,
// a statement producing none, or a conditional producing a boolean through
// back-patched jumps.
type TranslatedExpression interface {
	aTranslatedExpression()
}

// Ex wraps an expression that produces a value.
type Ex struct {
	Exp ir.Expression
}

// Nx wraps a statement that produces no value.
type Nx struct {
	Stm ir.Statement
}

// Cx wraps a condition whose true and false jump labels are patched at the
// use site.
type Cx struct {
	Cond ir.Condition
}

func (Ex) aTranslatedExpression() {}
func (Nx) aTranslatedExpression() {}
func (Cx) aTranslatedExpression() {}

// ---------------------
// ----- Functions -----
// ---------------------

// patchTrueLabels sets the true branch of every collected conditional jump.
func patchTrueLabels(jumps []*ir.CondJump, label temp.Label) {
	for _, e1 := range jumps {
		e1.True = label
	}
}

// patchFalseLabels sets the false branch of every collected conditional
// jump.
func patchFalseLabels(jumps []*ir.CondJump, label temp.Label) {
	for _, e1 := range jumps {
		e1.False = label
	}
}

// toExpression converts any translated form into a value-producing
// expression. A conditional materializes 1 or 0 in a fresh temporary.
func toExpression(temps *temp.Manager, te TranslatedExpression) ir.Expression {
	switch v := te.(type) {
	case Ex:
		return v.Exp
	case Nx:
		return &ir.ESeq{Stm: v.Stm, Exp: &ir.Const{Value: 0}}
	case Cx:
		result := temps.NewTemp()
		trueLabel := temps.NewLabel()
		falseLabel := temps.NewLabel()
		patchTrueLabels(v.Cond.Trues, trueLabel)
		patchFalseLabels(v.Cond.Falses, falseLabel)
		return &ir.ESeq{
			Stm: &ir.Move{Dst: &ir.TempExp{Temp: result}, Src: &ir.Const{Value: 1}},
			Exp: &ir.ESeq{
				Stm: v.Cond.Stm,
				Exp: &ir.ESeq{
					Stm: &ir.Label{Label: falseLabel},
					Exp: &ir.ESeq{
						Stm: &ir.Move{Dst: &ir.TempExp{Temp: result}, Src: &ir.Const{Value: 0}},
						Exp: &ir.ESeq{
							Stm: &ir.Label{Label: trueLabel},
							Exp: &ir.TempExp{Temp: result},
						},
					},
				},
			},
		}
	}
	panic("semantics: unknown translated expression variant")
}

// toStatement converts any translated form into a statement evaluated only
// for effect.
func toStatement(temps *temp.Manager, te TranslatedExpression) ir.Statement {
	switch v := te.(type) {
	case Ex:
		return &ir.SExp{Exp: v.Exp}
	case Nx:
		return v.Stm
	case Cx:
		trueLabel := temps.NewLabel()
		falseLabel := temps.NewLabel()
		patchTrueLabels(v.Cond.Trues, trueLabel)
		patchFalseLabels(v.Cond.Falses, falseLabel)
		return &ir.Seq{Statements: []ir.Statement{
			v.Cond.Stm,
			&ir.Label{Label: trueLabel},
			&ir.Label{Label: falseLabel},
		}}
	}
	panic("semantics: unknown translated expression variant")
}

// toCondition converts any translated form into a back-patchable condition.
// A plain expression is compared against zero.
func toCondition(te TranslatedExpression) ir.Condition {
	switch v := te.(type) {
	case Ex:
		jump := &ir.CondJump{Op: ir.Ne, Left: v.Exp, Right: &ir.Const{Value: 0}}
		return ir.Condition{Stm: jump, Trues: []*ir.CondJump{jump}, Falses: []*ir.CondJump{jump}}
	case Nx:
		panic("semantics: cannot use a statement as a condition")
	case Cx:
		return v.Cond
	}
	panic("semantics: unknown translated expression variant")
}
