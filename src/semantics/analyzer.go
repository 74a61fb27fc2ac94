// analyzer.go holds the type-checking translator: one walk over the syntax
// tree that both enforces Tiger's typing rules and builds the IR trees. The
// walk appends one ProcFragment per function and one StringFragment per
// string literal to the fragment manager.

package semantics

import (
	"fmt"

	"tigerc/src/ast"
	"tigerc/src/frame"
	"tigerc/src/ir"
	"tigerc/src/temp"
	"tigerc/src/types"
	"tigerc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Error is a semantic error with the source line that triggered it.
type Error struct {
	Message string
	Line    int
}

// typedExpression pairs a translated expression with its Tiger type.
type typedExpression struct {
	exp TranslatedExpression
	typ types.Type
}

// translator carries the state of one program translation.
type translator struct {
	temps       *temp.Manager
	tmap        *frame.TempMap
	fragments   *FragmentManager
	venv        *types.SymbolTable[EnvironmentEntry]
	tenv        *types.SymbolTable[types.Type]
	breakLabels *util.Stack[temp.Label]
}

// ---------------------
// ----- Functions -----
// ---------------------

// Error formats the semantic error for the driver.
func (e *Error) Error() string {
	return fmt.Sprintf("Compilation error! %s in line %d", e.Message, e.Line)
}

// fail aborts translation with a semantic error.
func fail(line int, format string, args ...interface{}) {
	panic(&Error{Message: fmt.Sprintf(format, args...), Line: line})
}

// TranslateProgram type checks the program and translates it into
// fragments. The program body becomes the tigermain procedure.
func TranslateProgram(temps *temp.Manager, tmap *frame.TempMap, fragments *FragmentManager, program ast.Expression) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if se, ok := r.(*Error); ok {
				err = se
				return
			}
			panic(r)
		}
	}()

	FindEscapes(program)

	tr := &translator{
		temps:       temps,
		tmap:        tmap,
		fragments:   fragments,
		venv:        baseValueEnvironment(),
		tenv:        baseTypeEnvironment(),
		breakLabels: &util.Stack[temp.Label]{},
	}
	mainLevel := NewRealLevel(temps, &OutermostLevel{}, temps.NamedLabel("tigermain"), nil)
	body := tr.translateExpression(mainLevel, program)
	tr.procEntryExit(mainLevel, body.exp)
	return nil
}

// procEntryExit completes one procedure: the body value moves to the return
// value register, the callee-saved registers are preserved around it, the
// view shift homes the incoming formals, and the result is recorded as a
// fragment bound to the procedure's frame.
func (tr *translator) procEntryExit(level *RealLevel, body TranslatedExpression) {
	stm := ir.Statement(&ir.Move{
		Dst: &ir.TempExp{Temp: tr.tmap.ReturnValue()},
		Src: toExpression(tr.temps, body),
	})
	stm = frame.ShiftView(level.Frame, tr.tmap, stm)
	stm = frame.PreserveCalleeRegisters(level.Frame, tr.tmap, stm)
	tr.fragments.Add(&ProcFragment{Body: stm, Frame: level.Frame})
}

// -------------------------
// ----- Expressions -------
// -------------------------

func (tr *translator) translateExpression(level *RealLevel, expression ast.Expression) typedExpression {
	switch e := expression.(type) {
	case *ast.VarExp:
		return tr.translateVariable(level, e.Var)

	case *ast.NilExp:
		return typedExpression{Ex{Exp: &ir.Const{Value: 0}}, nilType}

	case *ast.IntExp:
		return typedExpression{Ex{Exp: &ir.Const{Value: e.Value}}, intType}

	case *ast.StringExp:
		label := tr.temps.NewLabel()
		tr.fragments.Add(&StringFragment{Label: label, Literal: e.Value})
		return typedExpression{Ex{Exp: &ir.NameExp{Label: label}}, stringType}

	case *ast.CallExp:
		return tr.translateCall(level, e)

	case *ast.OpExp:
		return tr.translateOp(level, e)

	case *ast.RecordExp:
		return tr.translateRecord(level, e)

	case *ast.SeqExp:
		return tr.translateSeq(level, e)

	case *ast.AssignExp:
		return tr.translateAssign(level, e)

	case *ast.IfExp:
		return tr.translateIf(level, e)

	case *ast.WhileExp:
		return tr.translateWhile(level, e)

	case *ast.BreakExp:
		label, ok := tr.breakLabels.Peek()
		if !tr.venv.InLoopScope() || !ok {
			fail(e.Line, "Break expression must be inside a For or While loop")
		}
		return typedExpression{
			Nx{Stm: &ir.Jump{Exp: &ir.NameExp{Label: label}, Labels: []temp.Label{label}}},
			voidType,
		}

	case *ast.ForExp:
		return tr.translateFor(level, e)

	case *ast.LetExp:
		return tr.translateLet(level, e)

	case *ast.ArrayExp:
		return tr.translateArray(level, e)

	case *ast.EmptyExp:
		return typedExpression{Nx{Stm: &ir.SExp{Exp: &ir.Const{Value: 0}}}, voidType}
	}
	fail(expression.Pos(), "Unknown expression kind")
	return typedExpression{}
}

// translateCall checks a call's arity and argument types and builds the
// call expression. Standard library calls go straight to the runtime; calls
// to declared functions receive a static link pointing at the activation
// record of the callee's lexical parent.
func (tr *translator) translateCall(level *RealLevel, e *ast.CallExp) typedExpression {
	entry, ok := tr.venv.Find(e.Func)
	if !ok {
		fail(e.Line, "Undefined function %s", e.Func)
	}
	fn, ok := entry.(*FunctionEntry)
	if !ok {
		fail(e.Line, "Non-function value %s is not callable", e.Func)
	}
	if len(e.Args) != len(fn.Formals) {
		fail(e.Line, "Wrong number of arguments in function call to %s, %d expected, but %d given",
			e.Func, len(fn.Formals), len(e.Args))
	}

	arguments := make([]ir.Expression, len(e.Args))
	for i1, e1 := range e.Args {
		argument := tr.translateExpression(level, e1)
		if !types.Equal(fn.Formals[i1], argument.typ) {
			fail(e.Line, "Wrong type for argument in position %d in call to %s", i1, e.Func)
		}
		arguments[i1] = toExpression(tr.temps, argument.exp)
	}

	if fn.Level == nil {
		// Standard library: no static link.
		return typedExpression{
			Ex{Exp: frame.ExternalCall(tr.temps, string(fn.Label), arguments)},
			fn.Result,
		}
	}

	// Chase static links from the caller's frame up to the activation
	// record of the callee's lexical parent.
	staticLink := ir.Expression(&ir.TempExp{Temp: tr.tmap.FramePointer()})
	current := Level(level)
	for current != fn.Level.Parent {
		real := current.(*RealLevel)
		staticLink = frame.AccessToExp(real.Formals()[0].Access, staticLink)
		current = real.Parent
	}
	return typedExpression{
		Ex{Exp: &ir.Call{
			Fn:   &ir.NameExp{Label: fn.Label},
			Args: append([]ir.Expression{staticLink}, arguments...),
		}},
		fn.Result,
	}
}

// arithmeticOperators maps AST operators onto IR binary operators.
var arithmeticOperators = map[ast.Oper]ir.BinOp{
	ast.Plus:   ir.Plus,
	ast.Minus:  ir.Minus,
	ast.Times:  ir.Mul,
	ast.Divide: ir.Div,
}

// relationalOperators maps AST operators onto IR relational operators.
var relationalOperators = map[ast.Oper]ir.RelOp{
	ast.Eq:  ir.Eq,
	ast.Neq: ir.Ne,
	ast.Lt:  ir.Lt,
	ast.Le:  ir.Le,
	ast.Gt:  ir.Gt,
	ast.Ge:  ir.Ge,
}

func (tr *translator) translateOp(level *RealLevel, e *ast.OpExp) typedExpression {
	left := tr.translateExpression(level, e.Left)
	right := tr.translateExpression(level, e.Right)

	if op, ok := arithmeticOperators[e.Op]; ok {
		if _, ok := left.typ.(*types.IntType); !ok {
			fail(e.Left.Pos(), "Left arithmetic operand must be an Integer")
		}
		if _, ok := right.typ.(*types.IntType); !ok {
			fail(e.Right.Pos(), "Right arithmetic operand must be an Integer")
		}
		return typedExpression{
			Ex{Exp: &ir.BinOpExp{
				Op:    op,
				Left:  toExpression(tr.temps, left.exp),
				Right: toExpression(tr.temps, right.exp),
			}},
			intType,
		}
	}

	if !types.Equal(left.typ, right.typ) {
		fail(e.Line, "Values must be of the same type to test for equality or order")
	}
	if e.Op == ast.Lt || e.Op == ast.Le || e.Op == ast.Gt || e.Op == ast.Ge {
		_, isInt := left.typ.(*types.IntType)
		_, isString := left.typ.(*types.StringType)
		if !isInt && !isString {
			fail(e.Line, "Values must be Integers or Strings to compare their order")
		}
	}

	op := relationalOperators[e.Op]
	if _, isString := left.typ.(*types.StringType); isString {
		// String comparison: compare the runtime's verdict against zero.
		jump := &ir.CondJump{
			Op: op,
			Left: frame.ExternalCall(tr.temps, "string_compare", []ir.Expression{
				toExpression(tr.temps, left.exp),
				toExpression(tr.temps, right.exp),
			}),
			Right: &ir.Const{Value: 0},
		}
		return typedExpression{
			Cx{Cond: ir.Condition{Stm: jump, Trues: []*ir.CondJump{jump}, Falses: []*ir.CondJump{jump}}},
			intType,
		}
	}

	jump := &ir.CondJump{
		Op:    op,
		Left:  toExpression(tr.temps, left.exp),
		Right: toExpression(tr.temps, right.exp),
	}
	return typedExpression{
		Cx{Cond: ir.Condition{Stm: jump, Trues: []*ir.CondJump{jump}, Falses: []*ir.CondJump{jump}}},
		intType,
	}
}

func (tr *translator) translateRecord(level *RealLevel, e *ast.RecordExp) typedExpression {
	found, ok := tr.tenv.Find(e.Type)
	if !ok {
		fail(e.Line, "Undefined record type %s", e.Type)
	}
	record, ok := found.(*types.RecordType)
	if !ok {
		fail(e.Line, "Trying to create a record of type %s, which is not a record type", e.Type)
	}

	result := tr.temps.NewTemp()
	creation := []ir.Statement{
		&ir.Move{
			Dst: &ir.TempExp{Temp: result},
			Src: frame.ExternalCall(tr.temps, "init_record", []ir.Expression{
				&ir.Const{Value: int64(len(record.Fields) * frame.WordSize)},
			}),
		},
	}

	checked := map[string]bool{}
	for _, expField := range e.Fields {
		if checked[expField.Name] {
			fail(expField.Line, "Repeated field assignment for field %s in record creation", expField.Name)
		}
		fieldIndex := -1
		for i1, typeField := range record.Fields {
			if typeField.Name == expField.Name {
				fieldIndex = i1
				break
			}
		}
		if fieldIndex < 0 {
			fail(expField.Line, "Unknown field %s in record creation", expField.Name)
		}
		checked[expField.Name] = true

		value := tr.translateExpression(level, expField.Exp)
		if !types.Equal(record.Fields[fieldIndex].Type, value.typ) {
			fail(expField.Exp.Pos(), "Assigning value of a wrong type to field %s in record creation", expField.Name)
		}
		creation = append(creation, &ir.Move{
			Dst: &ir.Mem{Exp: &ir.BinOpExp{
				Op:    ir.Plus,
				Left:  &ir.TempExp{Temp: result},
				Right: &ir.Const{Value: int64(fieldIndex * frame.WordSize)},
			}},
			Src: toExpression(tr.temps, value.exp),
		})
	}
	if len(checked) < len(record.Fields) {
		fail(e.Line, "Missing field assignment in record creation")
	}

	return typedExpression{
		Ex{Exp: &ir.ESeq{Stm: &ir.Seq{Statements: creation}, Exp: &ir.TempExp{Temp: result}}},
		record,
	}
}

func (tr *translator) translateSeq(level *RealLevel, e *ast.SeqExp) typedExpression {
	if len(e.Seq) == 0 {
		return typedExpression{Nx{Stm: &ir.SExp{Exp: &ir.Const{Value: 0}}}, voidType}
	}
	first := tr.translateExpression(level, e.Seq[0])
	result := toExpression(tr.temps, first.exp)
	resultType := first.typ
	for _, e1 := range e.Seq[1:] {
		next := tr.translateExpression(level, e1)
		result = &ir.ESeq{Stm: &ir.SExp{Exp: result}, Exp: toExpression(tr.temps, next.exp)}
		resultType = next.typ
	}
	return typedExpression{Ex{Exp: result}, resultType}
}

func (tr *translator) translateAssign(level *RealLevel, e *ast.AssignExp) typedExpression {
	if simple, ok := e.Var.(*ast.SimpleVar); ok {
		entry, ok := tr.venv.Find(simple.Sym)
		if !ok {
			fail(simple.Line, "Trying to assign a value to undefined variable %s", simple.Sym)
		}
		if variable, ok := entry.(*VariableEntry); ok && !variable.Assignable {
			fail(simple.Line, "For loop variable %s is not assignable", simple.Sym)
		}
	}
	variable := tr.translateVariable(level, e.Var)
	value := tr.translateExpression(level, e.Exp)
	if !types.Equal(variable.typ, value.typ) {
		fail(e.Line, "Trying to assign a value to a variable of a different type")
	}
	return typedExpression{
		Nx{Stm: &ir.Move{
			Dst: toExpression(tr.temps, variable.exp),
			Src: toExpression(tr.temps, value.exp),
		}},
		voidType,
	}
}

func (tr *translator) translateIf(level *RealLevel, e *ast.IfExp) typedExpression {
	test := tr.translateExpression(level, e.Test)
	if _, ok := test.typ.(*types.IntType); !ok {
		fail(e.Test.Pos(), "The condition of an If expression must be an Integer")
	}
	then := tr.translateExpression(level, e.Then)

	var resultType types.Type
	var elseExpression ir.Expression
	if e.Else == nil {
		if _, ok := then.typ.(*types.VoidType); !ok {
			fail(e.Then.Pos(), "Then branch of an If expression must produce no value when there is no Else branch")
		}
		resultType = voidType
		elseExpression = &ir.Const{Value: 0}
	} else {
		elseDo := tr.translateExpression(level, e.Else)
		if !types.Equal(then.typ, elseDo.typ) {
			fail(e.Line, "Then and Else branches of an If expression must return values of the same type")
		}
		// Prefer the record type when one branch is nil.
		if _, ok := then.typ.(*types.NilType); ok {
			resultType = elseDo.typ
		} else {
			resultType = then.typ
		}
		elseExpression = toExpression(tr.temps, elseDo.exp)
	}

	condition := toCondition(test.exp)
	trueLabel := tr.temps.NewLabel()
	falseLabel := tr.temps.NewLabel()
	joinLabel := tr.temps.NewLabel()
	result := tr.temps.NewTemp()

	patchTrueLabels(condition.Trues, trueLabel)
	patchFalseLabels(condition.Falses, falseLabel)

	sequence := &ir.Seq{Statements: []ir.Statement{
		condition.Stm,
		&ir.Label{Label: trueLabel},
		&ir.Move{Dst: &ir.TempExp{Temp: result}, Src: toExpression(tr.temps, then.exp)},
		&ir.Jump{Exp: &ir.NameExp{Label: joinLabel}, Labels: []temp.Label{joinLabel}},
		&ir.Label{Label: falseLabel},
		&ir.Move{Dst: &ir.TempExp{Temp: result}, Src: elseExpression},
		&ir.Label{Label: joinLabel},
	}}

	return typedExpression{
		Ex{Exp: &ir.ESeq{Stm: sequence, Exp: &ir.TempExp{Temp: result}}},
		resultType,
	}
}

func (tr *translator) translateWhile(level *RealLevel, e *ast.WhileExp) typedExpression {
	test := tr.translateExpression(level, e.Test)
	if _, ok := test.typ.(*types.IntType); !ok {
		fail(e.Line, "The condition of a While expression must be an Integer")
	}

	breakLabel := tr.temps.NewLabel()
	tr.venv.BeginScope(true)
	tr.tenv.BeginScope(true)
	tr.breakLabels.Push(breakLabel)
	body := tr.translateExpression(level, e.Body)
	tr.breakLabels.Pop()
	tr.tenv.EndScope()
	tr.venv.EndScope()
	if _, ok := body.typ.(*types.VoidType); !ok {
		fail(e.Body.Pos(), "While body must produce no value")
	}

	testLabel := tr.temps.NewLabel()
	bodyLabel := tr.temps.NewLabel()
	sequence := &ir.Seq{Statements: []ir.Statement{
		&ir.Label{Label: testLabel},
		&ir.CondJump{
			Op:    ir.Ne,
			Left:  toExpression(tr.temps, test.exp),
			Right: &ir.Const{Value: 0},
			True:  bodyLabel,
			False: breakLabel,
		},
		&ir.Label{Label: bodyLabel},
		toStatement(tr.temps, body.exp),
		&ir.Jump{Exp: &ir.NameExp{Label: testLabel}, Labels: []temp.Label{testLabel}},
		&ir.Label{Label: breakLabel},
	}}
	return typedExpression{Nx{Stm: sequence}, voidType}
}

func (tr *translator) translateFor(level *RealLevel, e *ast.ForExp) typedExpression {
	lo := tr.translateExpression(level, e.Lo)
	if _, ok := lo.typ.(*types.IntType); !ok {
		fail(e.Lo.Pos(), "Starting value for loop variable in a For expression must be an Integer")
	}
	hi := tr.translateExpression(level, e.Hi)
	if _, ok := hi.typ.(*types.IntType); !ok {
		fail(e.Hi.Pos(), "Ending value for loop variable in a For expression must be an Integer")
	}

	breakLabel := tr.temps.NewLabel()
	tr.venv.BeginScope(true)
	tr.tenv.BeginScope(true)
	access := level.AllocLocal(e.Escape)
	tr.venv.Add(e.Var, &VariableEntry{Access: access, Type: intType, Assignable: false})
	tr.breakLabels.Push(breakLabel)
	body := tr.translateExpression(level, e.Body)
	tr.breakLabels.Pop()
	tr.tenv.EndScope()
	tr.venv.EndScope()
	if _, ok := body.typ.(*types.VoidType); !ok {
		fail(e.Body.Pos(), "For body must produce no value")
	}

	variable := frame.AccessToExp(access.Access, &ir.TempExp{Temp: tr.tmap.FramePointer()})
	limit := tr.temps.NewTemp()
	testLabel := tr.temps.NewLabel()
	bodyLabel := tr.temps.NewLabel()

	sequence := &ir.Seq{Statements: []ir.Statement{
		&ir.Move{Dst: variable, Src: toExpression(tr.temps, lo.exp)},
		&ir.Move{Dst: &ir.TempExp{Temp: limit}, Src: toExpression(tr.temps, hi.exp)},
		&ir.Label{Label: testLabel},
		&ir.CondJump{
			Op:    ir.Le,
			Left:  variable,
			Right: &ir.TempExp{Temp: limit},
			True:  bodyLabel,
			False: breakLabel,
		},
		&ir.Label{Label: bodyLabel},
		toStatement(tr.temps, body.exp),
		&ir.Move{
			Dst: variable,
			Src: &ir.BinOpExp{Op: ir.Plus, Left: variable, Right: &ir.Const{Value: 1}},
		},
		&ir.Jump{Exp: &ir.NameExp{Label: testLabel}, Labels: []temp.Label{testLabel}},
		&ir.Label{Label: breakLabel},
	}}
	return typedExpression{Nx{Stm: sequence}, voidType}
}

func (tr *translator) translateLet(level *RealLevel, e *ast.LetExp) typedExpression {
	tr.venv.BeginScope(false)
	tr.tenv.BeginScope(false)
	var statements []ir.Statement
	for _, declaration := range e.Decs {
		statements = append(statements, tr.translateDeclaration(level, declaration)...)
	}
	body := tr.translateExpression(level, e.Body)
	tr.tenv.EndScope()
	tr.venv.EndScope()

	if len(statements) == 0 {
		return typedExpression{Ex{Exp: toExpression(tr.temps, body.exp)}, body.typ}
	}
	return typedExpression{
		Ex{Exp: &ir.ESeq{
			Stm: &ir.Seq{Statements: statements},
			Exp: toExpression(tr.temps, body.exp),
		}},
		body.typ,
	}
}

func (tr *translator) translateArray(level *RealLevel, e *ast.ArrayExp) typedExpression {
	found, ok := tr.tenv.Find(e.Type)
	if !ok {
		fail(e.Line, "Undefined array type %s", e.Type)
	}
	array, ok := found.(*types.ArrayType)
	if !ok {
		fail(e.Line, "Trying to create an array of type %s, which is not an array type", e.Type)
	}
	size := tr.translateExpression(level, e.Size)
	if _, ok := size.typ.(*types.IntType); !ok {
		fail(e.Size.Pos(), "Array size must be an Integer")
	}
	initial := tr.translateExpression(level, e.Init)
	if !types.Equal(array.Type, initial.typ) {
		fail(e.Init.Pos(), "Array initial value must be of its declared type")
	}
	return typedExpression{
		Ex{Exp: frame.ExternalCall(tr.temps, "init_array", []ir.Expression{
			toExpression(tr.temps, size.exp),
			toExpression(tr.temps, initial.exp),
		})},
		array,
	}
}

// -------------------------
// ----- Variables ---------
// -------------------------

func (tr *translator) translateVariable(level *RealLevel, variable ast.Variable) typedExpression {
	switch v := variable.(type) {
	case *ast.SimpleVar:
		entry, ok := tr.venv.Find(v.Sym)
		if !ok {
			fail(v.Line, "Undefined variable %s", v.Sym)
		}
		value, ok := entry.(*VariableEntry)
		if !ok {
			fail(v.Line, "Undefined variable %s", v.Sym)
		}
		return typedExpression{tr.simpleVariable(value.Access, level), value.Type}

	case *ast.FieldVar:
		base := tr.translateVariable(level, v.Var)
		record, ok := base.typ.(*types.RecordType)
		if !ok {
			fail(v.Var.Pos(), "Trying to access the %s field of a variable that is not a record", v.Sym)
		}
		for i1, field := range record.Fields {
			if field.Name == v.Sym {
				return typedExpression{
					Ex{Exp: &ir.Mem{Exp: &ir.BinOpExp{
						Op:   ir.Plus,
						Left: toExpression(tr.temps, base.exp),
						Right: &ir.BinOpExp{
							Op:    ir.Mul,
							Left:  &ir.Const{Value: int64(i1)},
							Right: &ir.Const{Value: frame.WordSize},
						},
					}}},
					field.Type,
				}
			}
		}
		fail(v.Var.Pos(), "Unknown record field name %s for variable", v.Sym)

	case *ast.SubscriptVar:
		base := tr.translateVariable(level, v.Var)
		array, ok := base.typ.(*types.ArrayType)
		if !ok {
			fail(v.Var.Pos(), "Trying to access a subscript of a variable that is not an array")
		}
		subscript := tr.translateExpression(level, v.Exp)
		if _, ok := subscript.typ.(*types.IntType); !ok {
			fail(v.Exp.Pos(), "Array subscript must be an Integer")
		}
		return typedExpression{
			Ex{Exp: &ir.Mem{Exp: &ir.BinOpExp{
				Op:   ir.Plus,
				Left: toExpression(tr.temps, base.exp),
				Right: &ir.BinOpExp{
					Op:    ir.Mul,
					Left:  toExpression(tr.temps, subscript.exp),
					Right: &ir.Const{Value: frame.WordSize},
				},
			}}},
			array.Type,
		}
	}
	fail(variable.Pos(), "Unknown variable kind")
	return typedExpression{}
}

// simpleVariable resolves a variable by walking static links from the use
// level up to the level that declared it.
func (tr *translator) simpleVariable(access Access, level *RealLevel) TranslatedExpression {
	result := ir.Expression(&ir.TempExp{Temp: tr.tmap.FramePointer()})
	current := level
	for current != access.Level {
		staticLink := current.Formals()[0]
		result = frame.AccessToExp(staticLink.Access, result)
		current = current.Parent.(*RealLevel)
	}
	return Ex{Exp: frame.AccessToExp(access.Access, result)}
}

// -------------------------
// ----- Declarations ------
// -------------------------

// translateDeclaration processes one declaration, extending the
// environments, and returns the initialization statements it contributes to
// the enclosing let.
func (tr *translator) translateDeclaration(level *RealLevel, declaration ast.Declaration) []ir.Statement {
	switch d := declaration.(type) {
	case *ast.VarDec:
		return []ir.Statement{tr.translateVarDec(level, d)}
	case *ast.TypeDecBlock:
		tr.translateTypeDecBlock(d)
		return nil
	case *ast.FuncDecBlock:
		tr.translateFuncDecBlock(level, d)
		return nil
	}
	fail(declaration.Pos(), "Unknown declaration kind")
	return nil
}

func (tr *translator) translateVarDec(level *RealLevel, d *ast.VarDec) ir.Statement {
	initial := tr.translateExpression(level, d.Init)
	_, initialIsNil := initial.typ.(*types.NilType)

	variableType := initial.typ
	if d.Type == "" {
		if initialIsNil {
			fail(d.Line, "Must declare the type of variable %s when initializing it to nil", d.Name)
		}
	} else {
		declared, ok := tr.tenv.Find(d.Type)
		if !ok {
			fail(d.Line, "Undefined type %s in variable declaration for %s", d.Type, d.Name)
		}
		if initialIsNil {
			if _, ok := declared.(*types.RecordType); !ok {
				fail(d.Line, "Variable %s must be of a record type when initialized to nil", d.Name)
			}
		}
		if !types.Equal(declared, initial.typ) {
			fail(d.Line, "Initial value for variable %s is not of its declared type %s", d.Name, d.Type)
		}
		variableType = declared
	}

	access := level.AllocLocal(d.Escape)
	tr.venv.Add(d.Name, &VariableEntry{Access: access, Type: variableType, Assignable: true})
	return &ir.Move{
		Dst: frame.AccessToExp(access.Access, &ir.TempExp{Temp: tr.tmap.FramePointer()}),
		Src: toExpression(tr.temps, initial.exp),
	}
}

func (tr *translator) translateFuncDecBlock(level *RealLevel, d *ast.FuncDecBlock) {
	if !functionNamesUnique(d.Decs) {
		fail(d.Line, "All names in the function declaration block must be unique")
	}

	// First pass: declare every header so the block can be mutually
	// recursive.
	entries := make([]*FunctionEntry, len(d.Decs))
	for i1, dec := range d.Decs {
		formals := make([]types.Type, len(dec.Params))
		escapes := make([]bool, len(dec.Params))
		for i2, param := range dec.Params {
			paramType, ok := tr.tenv.Find(param.Type)
			if !ok {
				fail(param.Line, "Undefined argument type %s for parameter %s in function %s",
					param.Type, param.Name, dec.Name)
			}
			formals[i2] = paramType
			escapes[i2] = param.Escape
		}
		result := types.Type(voidType)
		if dec.Result != "" {
			declared, ok := tr.tenv.Find(dec.Result)
			if !ok {
				fail(dec.Line, "Undefined return type %s for function %s", dec.Result, dec.Name)
			}
			result = declared
		}
		label := tr.temps.NamedLabel(dec.Name)
		entries[i1] = &FunctionEntry{
			Level:   NewRealLevel(tr.temps, level, label, escapes),
			Label:   label,
			Formals: formals,
			Result:  result,
		}
		tr.venv.Add(dec.Name, entries[i1])
	}

	// Second pass: translate every body in its own level.
	for i1, dec := range d.Decs {
		entry := entries[i1]
		tr.venv.BeginScope(false)
		formalAccesses := entry.Level.Formals()[1:] // Skip the static link.
		for i2, param := range dec.Params {
			tr.venv.Add(param.Name, &VariableEntry{
				Access:     formalAccesses[i2],
				Type:       entry.Formals[i2],
				Assignable: true,
			})
		}
		savedBreaks := tr.breakLabels
		tr.breakLabels = &util.Stack[temp.Label]{}
		body := tr.translateExpression(entry.Level, dec.Body)
		tr.breakLabels = savedBreaks
		if !types.Equal(body.typ, entry.Result) {
			fail(dec.Line, "Function %s returns a value of a type different than its declared type", dec.Name)
		}
		tr.procEntryExit(entry.Level, body.exp)
		tr.venv.EndScope()
	}
}

// translateTypeDecBlock resolves one block of mutually recursive type
// declarations: dummy name references first, then the translated right-hand
// sides, then alias chain compression with cycle detection, and finally the
// removal of any name references left inside records and arrays.
func (tr *translator) translateTypeDecBlock(d *ast.TypeDecBlock) {
	if !typeNamesUnique(d.Decs) {
		fail(d.Line, "All names in the type declaration block must be unique")
	}
	for _, dec := range d.Decs {
		tr.tenv.Add(dec.Name, &types.NameType{Symbol: dec.Name})
	}
	for _, dec := range d.Decs {
		tr.tenv.Add(dec.Name, tr.translateType(dec.Ty))
	}
	for _, dec := range d.Decs {
		if tr.simplifyTypeAliases(dec.Name, map[string]bool{}) == nil {
			fail(dec.Line, "Cyclic type definition found involving type %s", dec.Name)
		}
	}
	for _, dec := range d.Decs {
		if definition, ok := tr.tenv.Find(dec.Name); ok {
			tr.eliminateNameTypes(definition)
		}
	}
}

// simplifyTypeAliases walks a chain of type aliases and rebinds each one to
// the record or array definition at its end. A chain that revisits a name
// is a cycle; nil is returned so the caller can report it.
func (tr *translator) simplifyTypeAliases(name string, seen map[string]bool) types.Type {
	if seen[name] {
		return nil
	}
	definition, ok := tr.tenv.Find(name)
	if !ok {
		return nil
	}
	if nameType, isName := definition.(*types.NameType); isName {
		seen[name] = true
		alias := tr.simplifyTypeAliases(nameType.Symbol, seen)
		if alias != nil {
			tr.tenv.Add(name, alias)
		}
		return alias
	}
	return definition
}

// maybeLookupNameType resolves a name reference to its referent.
func (tr *translator) maybeLookupNameType(definition types.Type) types.Type {
	if nameType, ok := definition.(*types.NameType); ok {
		if resolved, found := tr.tenv.Find(nameType.Symbol); found {
			return resolved
		}
	}
	return definition
}

// eliminateNameTypes removes name references from inside an array or record
// definition.
func (tr *translator) eliminateNameTypes(definition types.Type) {
	switch t := definition.(type) {
	case *types.ArrayType:
		t.Type = tr.maybeLookupNameType(t.Type)
	case *types.RecordType:
		for i1, field := range t.Fields {
			t.Fields[i1].Type = tr.maybeLookupNameType(field.Type)
		}
	}
}

func (tr *translator) translateType(ty ast.Ty) types.Type {
	switch t := ty.(type) {
	case *ast.NameTy:
		value, ok := tr.tenv.Find(t.Name)
		if !ok {
			fail(t.Line, "Undefined type name %s", t.Name)
		}
		return value
	case *ast.RecordTy:
		fields := make([]types.Field, len(t.Fields))
		for i1, field := range t.Fields {
			value, ok := tr.tenv.Find(field.Type)
			if !ok {
				fail(field.Line, "Undefined record field type %s", field.Type)
			}
			fields[i1] = types.Field{Name: field.Name, Type: value}
		}
		return &types.RecordType{Fields: fields}
	case *ast.ArrayTy:
		value, ok := tr.tenv.Find(t.Element)
		if !ok {
			fail(t.Line, "Undefined array element type %s", t.Element)
		}
		return &types.ArrayType{Type: value}
	}
	fail(ty.Pos(), "Unknown type kind")
	return nil
}

func functionNamesUnique(declarations []*ast.FuncDec) bool {
	seen := map[string]bool{}
	for _, e1 := range declarations {
		if seen[e1.Name] {
			return false
		}
		seen[e1.Name] = true
	}
	return true
}

func typeNamesUnique(declarations []*ast.TypeDec) bool {
	seen := map[string]bool{}
	for _, e1 := range declarations {
		if seen[e1.Name] {
			return false
		}
		seen[e1.Name] = true
	}
	return true
}
