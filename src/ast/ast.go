// Package ast defines the abstract syntax tree the parser produces and the
// semantic analyzer consumes. Expressions, variables, declarations and type
// specifiers are closed variant sets; every node records the source line it
// came from for diagnostics.
package ast

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Oper enumerates the binary operators of OpExp.
type Oper int

// Binary operators. The parser lowers & and | to if expressions before the
// AST is built, so they do not appear here.
const (
	Plus Oper = iota
	Minus
	Times
	Divide
	Eq
	Neq
	Lt
	Le
	Gt
	Ge
)

// Expression is any Tiger expression.
type Expression interface {
	Pos() int
	anExpression()
}

// Variable is an l-value: a simple name, a record field or an array
// subscript.
type Variable interface {
	Pos() int
	aVariable()
}

// Declaration is one entry of a let declaration list. Consecutive type and
// function declarations are grouped into blocks so mutual recursion is
// scoped per block.
type Declaration interface {
	Pos() int
	aDeclaration()
}

// Ty is a type specifier on the right-hand side of a type declaration.
type Ty interface {
	Pos() int
	aTy()
}

// VarExp reads a variable.
type VarExp struct {
	Var  Variable
	Line int
}

// NilExp is the nil record constant.
type NilExp struct {
	Line int
}

// IntExp is an integer literal.
type IntExp struct {
	Value int64
	Line  int
}

// StringExp is a string literal, stored with its escapes resolved.
type StringExp struct {
	Value string
	Line  int
}

// CallExp applies the function named Func to Args.
type CallExp struct {
	Func string
	Args []Expression
	Line int
}

// OpExp applies a binary operator.
type OpExp struct {
	Op          Oper
	Left, Right Expression
	Line        int
}

// ExpField is one field initializer of a record expression.
type ExpField struct {
	Name string
	Exp  Expression
	Line int
}

// RecordExp creates a record of the named type.
type RecordExp struct {
	Type   string
	Fields []ExpField
	Line   int
}

// SeqExp evaluates its expressions in order and yields the last value.
type SeqExp struct {
	Seq  []Expression
	Line int
}

// AssignExp stores Exp into Var and yields no value.
type AssignExp struct {
	Var  Variable
	Exp  Expression
	Line int
}

// IfExp is if-then or if-then-else; Else is nil when absent.
type IfExp struct {
	Test Expression
	Then Expression
	Else Expression
	Line int
}

// WhileExp loops Body while Test is nonzero.
type WhileExp struct {
	Test Expression
	Body Expression
	Line int
}

// BreakExp jumps out of the nearest enclosing loop.
type BreakExp struct {
	Line int
}

// ForExp iterates Var from Lo to Hi inclusive. Escape is set by escape
// analysis when the loop variable is captured by a nested function.
type ForExp struct {
	Var    string
	Escape bool
	Lo     Expression
	Hi     Expression
	Body   Expression
	Line   int
}

// LetExp introduces declarations scoped over Body.
type LetExp struct {
	Decs []Declaration
	Body Expression
	Line int
}

// ArrayExp creates an array of the named type with Size elements, each
// initialized to Init.
type ArrayExp struct {
	Type string
	Size Expression
	Init Expression
	Line int
}

// EmptyExp is the valueless expression ().
type EmptyExp struct {
	Line int
}

// SimpleVar is a plain variable name.
type SimpleVar struct {
	Sym  string
	Line int
}

// FieldVar selects a record field.
type FieldVar struct {
	Var  Variable
	Sym  string
	Line int
}

// SubscriptVar indexes an array.
type SubscriptVar struct {
	Var  Variable
	Exp  Expression
	Line int
}

// Field is a formal parameter or record field declaration. Escape is set by
// escape analysis for formals.
type Field struct {
	Name   string
	Type   string
	Escape bool
	Line   int
}

// TypeDec binds one type name.
type TypeDec struct {
	Name string
	Ty   Ty
	Line int
}

// TypeDecBlock groups consecutive, mutually recursive type declarations.
type TypeDecBlock struct {
	Decs []*TypeDec
	Line int
}

// VarDec declares a variable. Type is empty when no type annotation was
// given. Escape is set by escape analysis.
type VarDec struct {
	Name   string
	Type   string
	Escape bool
	Init   Expression
	Line   int
}

// FuncDec declares one function. Result is empty for procedures.
type FuncDec struct {
	Name   string
	Params []*Field
	Result string
	Body   Expression
	Line   int
}

// FuncDecBlock groups consecutive, mutually recursive function declarations.
type FuncDecBlock struct {
	Decs []*FuncDec
	Line int
}

// NameTy names an existing type.
type NameTy struct {
	Name string
	Line int
}

// RecordTy declares a record type.
type RecordTy struct {
	Fields []*Field
	Line   int
}

// ArrayTy declares an array type over the named element type.
type ArrayTy struct {
	Element string
	Line    int
}

// ---------------------
// ----- Functions -----
// ---------------------

func (e *VarExp) Pos() int       { return e.Line }
func (e *NilExp) Pos() int       { return e.Line }
func (e *IntExp) Pos() int       { return e.Line }
func (e *StringExp) Pos() int    { return e.Line }
func (e *CallExp) Pos() int      { return e.Line }
func (e *OpExp) Pos() int        { return e.Line }
func (e *RecordExp) Pos() int    { return e.Line }
func (e *SeqExp) Pos() int       { return e.Line }
func (e *AssignExp) Pos() int    { return e.Line }
func (e *IfExp) Pos() int        { return e.Line }
func (e *WhileExp) Pos() int     { return e.Line }
func (e *BreakExp) Pos() int     { return e.Line }
func (e *ForExp) Pos() int       { return e.Line }
func (e *LetExp) Pos() int       { return e.Line }
func (e *ArrayExp) Pos() int     { return e.Line }
func (e *EmptyExp) Pos() int     { return e.Line }
func (v *SimpleVar) Pos() int    { return v.Line }
func (v *FieldVar) Pos() int     { return v.Line }
func (v *SubscriptVar) Pos() int { return v.Line }
func (d *TypeDecBlock) Pos() int { return d.Line }
func (d *VarDec) Pos() int       { return d.Line }
func (d *FuncDecBlock) Pos() int { return d.Line }
func (t *NameTy) Pos() int       { return t.Line }
func (t *RecordTy) Pos() int     { return t.Line }
func (t *ArrayTy) Pos() int      { return t.Line }

func (*VarExp) anExpression()    {}
func (*NilExp) anExpression()    {}
func (*IntExp) anExpression()    {}
func (*StringExp) anExpression() {}
func (*CallExp) anExpression()   {}
func (*OpExp) anExpression()     {}
func (*RecordExp) anExpression() {}
func (*SeqExp) anExpression()    {}
func (*AssignExp) anExpression() {}
func (*IfExp) anExpression()     {}
func (*WhileExp) anExpression()  {}
func (*BreakExp) anExpression()  {}
func (*ForExp) anExpression()    {}
func (*LetExp) anExpression()    {}
func (*ArrayExp) anExpression()  {}
func (*EmptyExp) anExpression()  {}

func (*SimpleVar) aVariable()    {}
func (*FieldVar) aVariable()     {}
func (*SubscriptVar) aVariable() {}

func (*TypeDecBlock) aDeclaration() {}
func (*VarDec) aDeclaration()       {}
func (*FuncDecBlock) aDeclaration() {}

func (*NameTy) aTy()   {}
func (*RecordTy) aTy() {}
func (*ArrayTy) aTy()  {}
