// parser.go builds the abstract syntax tree from the token stream emitted by
// the concurrent lexer. The parser is a plain recursive descent over the
// Tiger grammar; & and | are lowered to if expressions and unary minus to a
// subtraction from zero while the tree is built.

package frontend

import (
	"fmt"
	"strconv"

	"tigerc/src/ast"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// SyntaxError reports an unexpected token and the line it appeared on.
type SyntaxError struct {
	Value string
	Line  int
}

// parser holds the token stream and one token of lookahead.
type parser struct {
	lex *lexer
	tok item
}

// ---------------------
// ----- Functions -----
// ---------------------

// Error formats the syntax error for the driver.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("Syntax error in input! Unexpected value %s in line %d", e.Value, e.Line)
}

// Parse parses a whole Tiger program: a single expression followed by the
// end of the input.
func Parse(src string) (expression ast.Expression, err error) {
	l := newLexer(src)
	go l.run()

	p := &parser{lex: l}
	p.next()

	defer func() {
		if r := recover(); r != nil {
			if se, ok := r.(*SyntaxError); ok {
				err = se
				return
			}
			panic(r)
		}
	}()

	expression = p.parseExpression()
	if p.tok.typ != itemEOF {
		p.fail()
	}
	return expression, nil
}

// next advances the lookahead token. Lexer errors surface as syntax errors.
func (p *parser) next() {
	p.tok = p.lex.nextItem()
	if p.tok.typ == itemError {
		panic(&SyntaxError{Value: p.tok.val, Line: p.tok.line})
	}
}

// fail aborts parsing at the current token.
func (p *parser) fail() {
	value := p.tok.val
	if p.tok.typ == itemEOF {
		value = "EOF"
	}
	panic(&SyntaxError{Value: value, Line: p.tok.line})
}

// expect consumes a token of type typ and returns it, or fails.
func (p *parser) expect(typ itemType) item {
	if p.tok.typ != typ {
		p.fail()
	}
	tok := p.tok
	p.next()
	return tok
}

// accept consumes the next token if it has type typ.
func (p *parser) accept(typ itemType) bool {
	if p.tok.typ == typ {
		p.next()
		return true
	}
	return false
}

// ------------------------
// ----- Expressions ------
// ------------------------

// parseExpression parses a full expression, including assignments, which
// bind loosest of all.
func (p *parser) parseExpression() ast.Expression {
	e := p.parseOr()
	if v, ok := e.(*ast.VarExp); ok && p.tok.typ == itemAssign {
		line := p.tok.line
		p.next()
		return &ast.AssignExp{Var: v.Var, Exp: p.parseExpression(), Line: line}
	}
	return e
}

// parseOr parses |, lowered to if-then-else with a constant 1 then branch.
func (p *parser) parseOr() ast.Expression {
	e := p.parseAnd()
	for p.tok.typ == itemOr {
		line := p.tok.line
		p.next()
		e = &ast.IfExp{
			Test: e,
			Then: &ast.IntExp{Value: 1, Line: line},
			Else: p.parseAnd(),
			Line: line,
		}
	}
	return e
}

// parseAnd parses &, lowered to if-then-else with a constant 0 else branch.
func (p *parser) parseAnd() ast.Expression {
	e := p.parseComparison()
	for p.tok.typ == itemAnd {
		line := p.tok.line
		p.next()
		e = &ast.IfExp{
			Test: e,
			Then: p.parseComparison(),
			Else: &ast.IntExp{Value: 0, Line: line},
			Line: line,
		}
	}
	return e
}

// parseComparison parses the non-associative relational operators.
func (p *parser) parseComparison() ast.Expression {
	e := p.parseAdditive()
	var op ast.Oper
	switch p.tok.typ {
	case itemEq:
		op = ast.Eq
	case itemNeq:
		op = ast.Neq
	case itemLt:
		op = ast.Lt
	case itemLe:
		op = ast.Le
	case itemGt:
		op = ast.Gt
	case itemGe:
		op = ast.Ge
	default:
		return e
	}
	line := p.tok.line
	p.next()
	return &ast.OpExp{Op: op, Left: e, Right: p.parseAdditive(), Line: line}
}

// parseAdditive parses + and -, left associative.
func (p *parser) parseAdditive() ast.Expression {
	e := p.parseTerm()
	for p.tok.typ == itemPlus || p.tok.typ == itemMinus {
		op := ast.Plus
		if p.tok.typ == itemMinus {
			op = ast.Minus
		}
		line := p.tok.line
		p.next()
		e = &ast.OpExp{Op: op, Left: e, Right: p.parseTerm(), Line: line}
	}
	return e
}

// parseTerm parses * and /, left associative.
func (p *parser) parseTerm() ast.Expression {
	e := p.parseUnary()
	for p.tok.typ == itemTimes || p.tok.typ == itemDivide {
		op := ast.Times
		if p.tok.typ == itemDivide {
			op = ast.Divide
		}
		line := p.tok.line
		p.next()
		e = &ast.OpExp{Op: op, Left: e, Right: p.parseUnary(), Line: line}
	}
	return e
}

// parseUnary parses unary minus, lowered to 0 - e.
func (p *parser) parseUnary() ast.Expression {
	if p.tok.typ == itemMinus {
		line := p.tok.line
		p.next()
		return &ast.OpExp{
			Op:    ast.Minus,
			Left:  &ast.IntExp{Value: 0, Line: line},
			Right: p.parseUnary(),
			Line:  line,
		}
	}
	return p.parsePrimary()
}

// parsePrimary parses atoms and the keyword-introduced expression forms.
func (p *parser) parsePrimary() ast.Expression {
	line := p.tok.line
	switch p.tok.typ {
	case itemInt:
		value, err := strconv.ParseInt(p.tok.val, 10, 64)
		if err != nil {
			p.fail()
		}
		p.next()
		return &ast.IntExp{Value: value, Line: line}
	case itemString:
		value := p.tok.val
		p.next()
		return &ast.StringExp{Value: value, Line: line}
	case itemNil:
		p.next()
		return &ast.NilExp{Line: line}
	case itemBreak:
		p.next()
		return &ast.BreakExp{Line: line}
	case itemIf:
		return p.parseIf()
	case itemWhile:
		return p.parseWhile()
	case itemFor:
		return p.parseFor()
	case itemLet:
		return p.parseLet()
	case itemLParen:
		return p.parseParen()
	case itemIdent:
		return p.parseIdentExpression()
	}
	p.fail()
	return nil
}

func (p *parser) parseIf() ast.Expression {
	line := p.expect(itemIf).line
	test := p.parseExpression()
	p.expect(itemThen)
	then := p.parseExpression()
	var elseDo ast.Expression
	if p.accept(itemElse) {
		elseDo = p.parseExpression()
	}
	return &ast.IfExp{Test: test, Then: then, Else: elseDo, Line: line}
}

func (p *parser) parseWhile() ast.Expression {
	line := p.expect(itemWhile).line
	test := p.parseExpression()
	p.expect(itemDo)
	return &ast.WhileExp{Test: test, Body: p.parseExpression(), Line: line}
}

func (p *parser) parseFor() ast.Expression {
	line := p.expect(itemFor).line
	name := p.expect(itemIdent).val
	p.expect(itemAssign)
	lo := p.parseExpression()
	p.expect(itemTo)
	hi := p.parseExpression()
	p.expect(itemDo)
	return &ast.ForExp{Var: name, Lo: lo, Hi: hi, Body: p.parseExpression(), Line: line}
}

func (p *parser) parseLet() ast.Expression {
	line := p.expect(itemLet).line
	decs := p.parseDeclarations()
	p.expect(itemIn)

	bodyLine := p.tok.line
	var seq []ast.Expression
	if p.tok.typ != itemEnd {
		seq = append(seq, p.parseExpression())
		for p.accept(itemSemicolon) {
			seq = append(seq, p.parseExpression())
		}
	}
	p.expect(itemEnd)
	return &ast.LetExp{
		Decs: decs,
		Body: &ast.SeqExp{Seq: seq, Line: bodyLine},
		Line: line,
	}
}

// parseParen parses (), a parenthesized expression, or a sequence.
func (p *parser) parseParen() ast.Expression {
	line := p.expect(itemLParen).line
	if p.accept(itemRParen) {
		return &ast.EmptyExp{Line: line}
	}
	first := p.parseExpression()
	if p.tok.typ != itemSemicolon {
		p.expect(itemRParen)
		return first
	}
	seq := []ast.Expression{first}
	for p.accept(itemSemicolon) {
		seq = append(seq, p.parseExpression())
	}
	p.expect(itemRParen)
	return &ast.SeqExp{Seq: seq, Line: line}
}

// parseIdentExpression parses the expression forms introduced by an
// identifier: calls, record and array creation, and l-values.
func (p *parser) parseIdentExpression() ast.Expression {
	name := p.tok
	p.next()

	switch p.tok.typ {
	case itemLParen:
		// Function call.
		p.next()
		var args []ast.Expression
		if p.tok.typ != itemRParen {
			args = append(args, p.parseExpression())
			for p.accept(itemComma) {
				args = append(args, p.parseExpression())
			}
		}
		p.expect(itemRParen)
		return &ast.CallExp{Func: name.val, Args: args, Line: name.line}

	case itemLBrace:
		// Record creation.
		p.next()
		var fields []ast.ExpField
		if p.tok.typ != itemRBrace {
			fields = append(fields, p.parseExpField())
			for p.accept(itemComma) {
				fields = append(fields, p.parseExpField())
			}
		}
		p.expect(itemRBrace)
		return &ast.RecordExp{Type: name.val, Fields: fields, Line: name.line}

	case itemLBrack:
		// Array creation or a subscripted l-value; decided by the token
		// following the closing bracket.
		p.next()
		index := p.parseExpression()
		p.expect(itemRBrack)
		if p.accept(itemOf) {
			return &ast.ArrayExp{
				Type: name.val,
				Size: index,
				Init: p.parseExpression(),
				Line: name.line,
			}
		}
		v := p.parseVariableSuffix(&ast.SubscriptVar{
			Var:  &ast.SimpleVar{Sym: name.val, Line: name.line},
			Exp:  index,
			Line: name.line,
		})
		return &ast.VarExp{Var: v, Line: name.line}
	}

	v := p.parseVariableSuffix(&ast.SimpleVar{Sym: name.val, Line: name.line})
	return &ast.VarExp{Var: v, Line: name.line}
}

func (p *parser) parseExpField() ast.ExpField {
	name := p.expect(itemIdent)
	p.expect(itemEq)
	return ast.ExpField{Name: name.val, Exp: p.parseExpression(), Line: name.line}
}

// parseVariableSuffix extends an l-value with field selections and
// subscripts.
func (p *parser) parseVariableSuffix(v ast.Variable) ast.Variable {
	for {
		switch p.tok.typ {
		case itemDot:
			line := p.tok.line
			p.next()
			sym := p.expect(itemIdent).val
			v = &ast.FieldVar{Var: v, Sym: sym, Line: line}
		case itemLBrack:
			line := p.tok.line
			p.next()
			index := p.parseExpression()
			p.expect(itemRBrack)
			v = &ast.SubscriptVar{Var: v, Exp: index, Line: line}
		default:
			return v
		}
	}
}

// -------------------------
// ----- Declarations ------
// -------------------------

// parseDeclarations parses a let declaration list, grouping consecutive
// type declarations and consecutive function declarations into blocks so
// mutual recursion stays scoped per block.
func (p *parser) parseDeclarations() []ast.Declaration {
	var decs []ast.Declaration
	for {
		switch p.tok.typ {
		case itemType:
			block := &ast.TypeDecBlock{Line: p.tok.line}
			for p.tok.typ == itemType {
				block.Decs = append(block.Decs, p.parseTypeDec())
			}
			decs = append(decs, block)
		case itemFunction:
			block := &ast.FuncDecBlock{Line: p.tok.line}
			for p.tok.typ == itemFunction {
				block.Decs = append(block.Decs, p.parseFuncDec())
			}
			decs = append(decs, block)
		case itemVar:
			decs = append(decs, p.parseVarDec())
		default:
			return decs
		}
	}
}

func (p *parser) parseTypeDec() *ast.TypeDec {
	line := p.expect(itemType).line
	name := p.expect(itemIdent).val
	p.expect(itemEq)
	return &ast.TypeDec{Name: name, Ty: p.parseTy(), Line: line}
}

func (p *parser) parseTy() ast.Ty {
	line := p.tok.line
	switch p.tok.typ {
	case itemIdent:
		name := p.tok.val
		p.next()
		return &ast.NameTy{Name: name, Line: line}
	case itemLBrace:
		p.next()
		var fields []*ast.Field
		if p.tok.typ != itemRBrace {
			fields = append(fields, p.parseField())
			for p.accept(itemComma) {
				fields = append(fields, p.parseField())
			}
		}
		p.expect(itemRBrace)
		return &ast.RecordTy{Fields: fields, Line: line}
	case itemArray:
		p.next()
		p.expect(itemOf)
		return &ast.ArrayTy{Element: p.expect(itemIdent).val, Line: line}
	}
	p.fail()
	return nil
}

func (p *parser) parseField() *ast.Field {
	name := p.expect(itemIdent)
	p.expect(itemColon)
	return &ast.Field{Name: name.val, Type: p.expect(itemIdent).val, Line: name.line}
}

func (p *parser) parseVarDec() ast.Declaration {
	line := p.expect(itemVar).line
	name := p.expect(itemIdent).val
	typeName := ""
	if p.accept(itemColon) {
		typeName = p.expect(itemIdent).val
	}
	p.expect(itemAssign)
	return &ast.VarDec{Name: name, Type: typeName, Init: p.parseExpression(), Line: line}
}

func (p *parser) parseFuncDec() *ast.FuncDec {
	line := p.expect(itemFunction).line
	name := p.expect(itemIdent).val
	p.expect(itemLParen)
	var params []*ast.Field
	if p.tok.typ != itemRParen {
		params = append(params, p.parseField())
		for p.accept(itemComma) {
			params = append(params, p.parseField())
		}
	}
	p.expect(itemRParen)
	result := ""
	if p.accept(itemColon) {
		result = p.expect(itemIdent).val
	}
	p.expect(itemEq)
	return &ast.FuncDec{
		Name:   name,
		Params: params,
		Result: result,
		Body:   p.parseExpression(),
		Line:   line,
	}
}
