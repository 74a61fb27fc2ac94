// Package canon rewrites translated IR into canonical form: linearization
// removes ESeq nodes and restricts calls to statement positions, basic block
// construction splits the statement list at labels and jumps, and trace
// scheduling orders the blocks so conditional jumps fall through to their
// false branches.
package canon

import (
	"tigerc/src/ir"
	"tigerc/src/temp"
)

// ---------------------
// ----- Functions -----
// ---------------------

// isNoop reports whether a statement is the canonical no-op, an evaluated
// constant.
func isNoop(statement ir.Statement) bool {
	se, ok := statement.(*ir.SExp)
	if !ok {
		return false
	}
	_, ok = se.Exp.(*ir.Const)
	return ok
}

// commute reports whether statement and expression can be evaluated in
// either order: the statement does nothing, or the expression is a constant
// or a label address.
func commute(statement ir.Statement, expression ir.Expression) bool {
	if isNoop(statement) {
		return true
	}
	switch expression.(type) {
	case *ir.NameExp, *ir.Const:
		return true
	}
	return false
}

// noop returns a statement with no effect.
func noop() ir.Statement {
	return &ir.SExp{Exp: &ir.Const{Value: 0}}
}

// simplifiedSequence sequences two statements, dropping no-ops.
func simplifiedSequence(first, second ir.Statement) ir.Statement {
	if isNoop(first) {
		return second
	}
	if isNoop(second) {
		return first
	}
	return &ir.Seq{Statements: []ir.Statement{first, second}}
}

// doExpression pulls the side effects of an expression out in front of it,
// returning an equivalent statement plus side-effect-free expression pair.
func doExpression(temps *temp.Manager, expression ir.Expression) (ir.Statement, ir.Expression) {
	switch e := expression.(type) {
	case *ir.BinOpExp:
		statement, operands := reorder(temps, []ir.Expression{e.Left, e.Right})
		return statement, &ir.BinOpExp{Op: e.Op, Left: operands[0], Right: operands[1]}

	case *ir.Mem:
		statement, operands := reorder(temps, []ir.Expression{e.Exp})
		return statement, &ir.Mem{Exp: operands[0]}

	case *ir.ESeq:
		substatement, subexpression := doExpression(temps, e.Exp)
		return simplifiedSequence(doStatement(temps, e.Stm), substatement), subexpression

	case *ir.Call:
		statement, operands := reorder(temps, append([]ir.Expression{e.Fn}, e.Args...))
		return statement, &ir.Call{Fn: operands[0], Args: operands[1:]}
	}
	return noop(), expression
}

// doStatement recursively linearizes one statement.
func doStatement(temps *temp.Manager, statement ir.Statement) ir.Statement {
	switch s := statement.(type) {
	case *ir.Seq:
		var substatements []ir.Statement
		for _, e1 := range s.Statements {
			substatement := doStatement(temps, e1)
			if !isNoop(substatement) {
				substatements = append(substatements, substatement)
			}
		}
		if len(substatements) == 0 {
			return noop()
		}
		return &ir.Seq{Statements: substatements}

	case *ir.Jump:
		newStatement, operands := reorder(temps, []ir.Expression{s.Exp})
		return simplifiedSequence(newStatement, &ir.Jump{Exp: operands[0], Labels: s.Labels})

	case *ir.CondJump:
		newStatement, operands := reorder(temps, []ir.Expression{s.Left, s.Right})
		return simplifiedSequence(newStatement, &ir.CondJump{
			Op:    s.Op,
			Left:  operands[0],
			Right: operands[1],
			True:  s.True,
			False: s.False,
		})

	case *ir.Move:
		switch dst := s.Dst.(type) {
		case *ir.TempExp:
			if call, ok := s.Src.(*ir.Call); ok {
				newStatement, operands := reorder(temps, append([]ir.Expression{call.Fn}, call.Args...))
				return simplifiedSequence(newStatement, &ir.Move{
					Dst: dst,
					Src: &ir.Call{Fn: operands[0], Args: operands[1:]},
				})
			}
			newStatement, operands := reorder(temps, []ir.Expression{s.Src})
			return simplifiedSequence(newStatement, &ir.Move{Dst: dst, Src: operands[0]})

		case *ir.Mem:
			newStatement, operands := reorder(temps, []ir.Expression{dst.Exp, s.Src})
			return simplifiedSequence(newStatement, &ir.Move{
				Dst: &ir.Mem{Exp: operands[0]},
				Src: operands[1],
			})

		case *ir.ESeq:
			return doStatement(temps, &ir.Seq{Statements: []ir.Statement{
				dst.Stm,
				&ir.Move{Dst: dst.Exp, Src: s.Src},
			}})
		}
		panic("canon: invalid move destination")

	case *ir.SExp:
		if call, ok := s.Exp.(*ir.Call); ok {
			newStatement, operands := reorder(temps, append([]ir.Expression{call.Fn}, call.Args...))
			return simplifiedSequence(newStatement, &ir.SExp{
				Exp: &ir.Call{Fn: operands[0], Args: operands[1:]},
			})
		}
		newStatement, operands := reorder(temps, []ir.Expression{s.Exp})
		return simplifiedSequence(newStatement, &ir.SExp{Exp: operands[0]})
	}
	return statement
}

// reorder linearizes an expression list left to right. A call in operand
// position is first rewritten to store its result in a fresh temporary.
// When an expression cannot be moved past the side effects of its
// successors it is bound to a fresh temporary in front of them.
func reorder(temps *temp.Manager, expressions []ir.Expression) (ir.Statement, []ir.Expression) {
	if len(expressions) == 0 {
		return noop(), nil
	}

	if call, ok := expressions[0].(*ir.Call); ok {
		t := temps.NewTemp()
		expressions[0] = &ir.ESeq{
			Stm: &ir.Move{Dst: &ir.TempExp{Temp: t}, Src: call},
			Exp: &ir.TempExp{Temp: t},
		}
		return reorder(temps, expressions)
	}

	headStatement, headExpression := doExpression(temps, expressions[0])
	tailStatement, tailExpressions := reorder(temps, expressions[1:])
	if commute(tailStatement, headExpression) {
		return simplifiedSequence(headStatement, tailStatement),
			append([]ir.Expression{headExpression}, tailExpressions...)
	}

	t := temps.NewTemp()
	return simplifiedSequence(
			simplifiedSequence(headStatement, &ir.Move{Dst: &ir.TempExp{Temp: t}, Src: headExpression}),
			tailStatement,
		),
		append([]ir.Expression{&ir.TempExp{Temp: t}}, tailExpressions...)
}

// linear flattens nested sequences into a statement list.
func linear(statement ir.Statement, list []ir.Statement) []ir.Statement {
	if s, ok := statement.(*ir.Seq); ok {
		var flat []ir.Statement
		for _, e1 := range s.Statements {
			flat = append(flat, linear(e1, nil)...)
		}
		return append(flat, list...)
	}
	return append([]ir.Statement{statement}, list...)
}

// Linearize removes every ESeq from a statement and hoists calls so each
// appears as the direct child of a Move to a temporary or of an SExp. The
// result is a flat statement list with no Seq nodes.
func Linearize(temps *temp.Manager, statement ir.Statement) []ir.Statement {
	return linear(doStatement(temps, statement), nil)
}
