package semantics

import (
	"tigerc/src/ast"
	"tigerc/src/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// escapeEntry records the function nesting depth a variable was declared at
// and where to record its escape.
type escapeEntry struct {
	depth  int
	escape *bool
}

// ---------------------
// ----- Functions -----
// ---------------------

// FindEscapes walks the syntax tree before translation and marks every
// variable that is referenced from a deeper function nesting level than the
// one it was declared at. Escaped variables get frame slots instead of
// registers so nested functions can reach them through the static link.
func FindEscapes(expression ast.Expression) {
	escapeExpression(types.NewSymbolTable[*escapeEntry](), 0, expression)
}

func escapeExpression(env *types.SymbolTable[*escapeEntry], depth int, expression ast.Expression) {
	switch e := expression.(type) {
	case *ast.NilExp, *ast.IntExp, *ast.StringExp, *ast.BreakExp, *ast.EmptyExp:
		return
	case *ast.VarExp:
		escapeVariable(env, depth, e.Var)
	case *ast.CallExp:
		for _, e1 := range e.Args {
			escapeExpression(env, depth, e1)
		}
	case *ast.OpExp:
		escapeExpression(env, depth, e.Left)
		escapeExpression(env, depth, e.Right)
	case *ast.RecordExp:
		for _, e1 := range e.Fields {
			escapeExpression(env, depth, e1.Exp)
		}
	case *ast.SeqExp:
		for _, e1 := range e.Seq {
			escapeExpression(env, depth, e1)
		}
	case *ast.AssignExp:
		escapeVariable(env, depth, e.Var)
		escapeExpression(env, depth, e.Exp)
	case *ast.IfExp:
		escapeExpression(env, depth, e.Test)
		escapeExpression(env, depth, e.Then)
		if e.Else != nil {
			escapeExpression(env, depth, e.Else)
		}
	case *ast.WhileExp:
		escapeExpression(env, depth, e.Test)
		escapeExpression(env, depth, e.Body)
	case *ast.ForExp:
		escapeExpression(env, depth, e.Lo)
		escapeExpression(env, depth, e.Hi)
		env.BeginScope(false)
		env.Add(e.Var, &escapeEntry{depth: depth, escape: &e.Escape})
		escapeExpression(env, depth, e.Body)
		env.EndScope()
	case *ast.LetExp:
		env.BeginScope(false)
		for _, e1 := range e.Decs {
			escapeDeclaration(env, depth, e1)
		}
		escapeExpression(env, depth, e.Body)
		env.EndScope()
	case *ast.ArrayExp:
		escapeExpression(env, depth, e.Size)
		escapeExpression(env, depth, e.Init)
	}
}

func escapeDeclaration(env *types.SymbolTable[*escapeEntry], depth int, declaration ast.Declaration) {
	switch d := declaration.(type) {
	case *ast.TypeDecBlock:
		return
	case *ast.VarDec:
		escapeExpression(env, depth, d.Init)
		env.Add(d.Name, &escapeEntry{depth: depth, escape: &d.Escape})
	case *ast.FuncDecBlock:
		for _, e1 := range d.Decs {
			env.BeginScope(false)
			for _, param := range e1.Params {
				env.Add(param.Name, &escapeEntry{depth: depth + 1, escape: &param.Escape})
			}
			escapeExpression(env, depth+1, e1.Body)
			env.EndScope()
		}
	}
}

func escapeVariable(env *types.SymbolTable[*escapeEntry], depth int, variable ast.Variable) {
	switch v := variable.(type) {
	case *ast.SimpleVar:
		if entry, ok := env.Find(v.Sym); ok && entry.depth < depth {
			*entry.escape = true
		}
	case *ast.FieldVar:
		escapeVariable(env, depth, v.Var)
	case *ast.SubscriptVar:
		escapeVariable(env, depth, v.Var)
		escapeExpression(env, depth, v.Exp)
	}
}
