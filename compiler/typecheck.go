package compiler

import (
	"strings"

	"github.com/chazu/lslc/pkg/ir"
	"github.com/chazu/lslc/pkg/lsl"
)

// ---------------------------------------------------------------------------
// Type pass: bottom-up inference and compatibility checks
// ---------------------------------------------------------------------------

// typeChecker annotates every expression with its type. Running it again over
// an annotated tree produces the same annotations.
type typeChecker struct {
	ctx    *CompilationContext
	result lsl.Type // return type of the enclosing function
}

// CheckTypes runs the type pass over script.
func CheckTypes(ctx *CompilationContext, script *Script) {
	if ctx.Failed() {
		return
	}
	tc := &typeChecker{ctx: ctx}
	for _, g := range script.Globals {
		if ctx.Failed() {
			return
		}
		switch g := g.(type) {
		case *GlobalVar:
			tc.globalVar(g)
		case *Function:
			tc.result = g.Return
			tc.block(g.Body)
		}
	}
	for _, st := range script.States {
		for _, e := range st.Events {
			if ctx.Failed() {
				return
			}
			tc.result = lsl.Void
			tc.block(e.Body)
		}
	}
}

func (tc *typeChecker) globalVar(g *GlobalVar) {
	if g.Init == nil {
		z := ir.Zero(g.Type)
		g.Entry.Const = &z
		return
	}
	t := tc.expr(g.Init)
	if tc.ctx.Failed() {
		return
	}
	if !lsl.Coercible(g.Type, t) {
		tc.ctx.errorAt(g, TypeMismatch, "%s %s = %s", g.Type, g.Name, t)
		return
	}
	v, ok := fold(g.Init)
	if !ok {
		tc.ctx.errorAt(g.Init, NonConstantGlobalInitializer, "%s", g.Name)
		return
	}
	if v, ok = convert(v, g.Type); !ok {
		tc.ctx.errorAt(g, TypeMismatch, "%s %s = %s", g.Type, g.Name, t)
		return
	}
	g.Entry.Const = &v
}

func (tc *typeChecker) block(b *Block) {
	for _, s := range b.Stmts {
		if tc.ctx.Failed() {
			return
		}
		tc.stmt(s)
	}
}

func (tc *typeChecker) stmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		tc.block(s)
	case *ExprStmt:
		tc.expr(s.X)
	case *DeclStmt:
		if s.Init == nil {
			return
		}
		t := tc.expr(s.Init)
		if !lsl.Coercible(s.Type, t) {
			tc.ctx.errorAt(s, TypeMismatch, "%s %s = %s", s.Type, s.Name, t)
		}
	case *IfStmt:
		tc.condition(s.Cond)
		tc.stmt(s.Then)
		if s.Else != nil {
			tc.stmt(s.Else)
		}
	case *WhileStmt:
		tc.condition(s.Cond)
		tc.stmt(s.Body)
	case *DoWhileStmt:
		tc.stmt(s.Body)
		tc.condition(s.Cond)
	case *ForStmt:
		for _, e := range s.Init {
			tc.expr(e)
		}
		if s.Cond != nil {
			tc.condition(s.Cond)
		}
		for _, e := range s.Step {
			tc.expr(e)
		}
		tc.stmt(s.Body)
	case *ReturnStmt:
		if s.Value == nil {
			return
		}
		t := tc.expr(s.Value)
		// Void functions returning a value are reported by the prune pass.
		if tc.result != lsl.Void && !lsl.Assignable(tc.result, t) {
			tc.ctx.errorAt(s, TypeMismatch, "returning %s from %s function", t, tc.result)
		}
	}
}

func (tc *typeChecker) condition(e Expr) {
	if t := tc.expr(e); t == lsl.Void && !tc.ctx.Failed() {
		tc.ctx.errorAt(e, TypeMismatch, "void condition")
	}
}

// expr infers and records the type of e.
func (tc *typeChecker) expr(e Expr) lsl.Type {
	switch e := e.(type) {
	case *IntLiteral:
		e.Typ = lsl.Integer
	case *FloatLiteral:
		e.Typ = lsl.Float
	case *StringLiteral:
		e.Typ = lsl.String
	case *VectorLiteral:
		tc.components(e.Components())
		e.Typ = lsl.Vector
	case *QuaternionLiteral:
		tc.components(e.Components())
		e.Typ = lsl.Quaternion
	case *ListLiteral:
		for _, el := range e.Elements {
			switch tc.expr(el) {
			case lsl.List:
				tc.ctx.errorAt(el, ListNestingViolation, "")
			case lsl.Void:
				tc.ctx.errorAt(el, TypeMismatch, "void list element")
			}
		}
		e.Typ = lsl.List
	case *Identifier:
		e.Typ = tc.identifier(e)
	case *UnaryExpr:
		t := tc.expr(e.Operand)
		res, ok := lsl.UnaryResult(e.Op, t)
		if !ok {
			tc.ctx.errorAt(e, TypeMismatch, "%s%s", e.Op, t)
		}
		e.Typ = res
	case *BinaryExpr:
		l := tc.expr(e.Left)
		r := tc.expr(e.Right)
		res, ok := lsl.BinaryResult(e.Op, l, r)
		if !ok {
			tc.ctx.errorAt(e, TypeMismatch, "%s %s %s", l, e.Op, r)
		}
		e.LeftAs, e.RightAs = lsl.Promote(e.Op, l, r)
		e.Typ = res
	case *AssignExpr:
		e.Typ = tc.assign(e)
	case *IncDecExpr:
		t := tc.identifier(e.Target)
		if t != lsl.Integer && t != lsl.Float {
			tc.ctx.errorAt(e, TypeMismatch, "%s on %s", incDecSymbol(e), t)
		}
		e.Target.Typ = t
		e.Typ = t
	case *CastExpr:
		t := tc.expr(e.Operand)
		if !lsl.Castable(t, e.To) {
			tc.ctx.errorAt(e, TypeMismatch, "(%s)%s", e.To, t)
		}
		e.Typ = e.To
	case *CallExpr:
		e.Typ = tc.call(e)
	case *ParenExpr:
		e.Typ = tc.expr(e.Inner)
	case *PrintExpr:
		if tc.expr(e.Value) == lsl.Void {
			tc.ctx.errorAt(e, TypeMismatch, "print of void")
		}
		e.Typ = lsl.Void
	}
	return e.ResultType()
}

// components checks vector and rotation literal components, each of which must
// be usable as a float.
func (tc *typeChecker) components(comps []Expr) {
	for _, c := range comps {
		if t := tc.expr(c); !lsl.Assignable(lsl.Float, t) {
			tc.ctx.errorAt(c, TypeMismatch, "%s vector component", t)
		}
	}
}

// identifier returns the type of a variable or of its selected component.
func (tc *typeChecker) identifier(id *Identifier) lsl.Type {
	t := id.Entry.Type
	if id.Member != "" {
		switch {
		case id.Member == "s" && t == lsl.Quaternion:
		case id.Member != "s" && (t == lsl.Vector || t == lsl.Quaternion):
			if _, ok := ir.MemberOffset(id.Member); !ok {
				tc.ctx.errorAt(id, TypeMismatch, "%s has no member %s", t, id.Member)
			}
		default:
			tc.ctx.errorAt(id, TypeMismatch, "%s has no member %s", t, id.Member)
		}
		t = lsl.Float
	}
	id.Typ = t
	return t
}

func (tc *typeChecker) assign(e *AssignExpr) lsl.Type {
	dst := tc.identifier(e.Target)
	src := tc.expr(e.Value)
	if e.Op == lsl.OpNone {
		if !lsl.Assignable(dst, src) {
			tc.ctx.errorAt(e, TypeMismatch, "%s = %s", dst, src)
		}
		e.LeftAs, e.RightAs = dst, dst
		return dst
	}
	res, ok := lsl.BinaryResult(e.Op, dst, src)
	if !ok || !lsl.Assignable(dst, res) {
		tc.ctx.errorAt(e, TypeMismatch, "%s %s= %s", dst, e.Op, src)
	}
	e.LeftAs, e.RightAs = lsl.Promote(e.Op, dst, src)
	return dst
}

// call checks arguments against the callee's parameter list. At most one
// FunctionArgumentMismatch is reported per call.
func (tc *typeChecker) call(e *CallExpr) lsl.Type {
	args := make([]lsl.Type, len(e.Args))
	for i, a := range e.Args {
		args[i] = tc.expr(a)
	}
	params := e.Entry.Params
	ok := len(args) == len(params)
	for i := 0; ok && i < len(args); i++ {
		ok = lsl.Coercible(params[i], args[i])
	}
	if !ok {
		tc.ctx.errorAt(e, FunctionArgumentMismatch, "%s(%s) called with (%s)",
			e.Name, typeList(params), typeList(args))
	}
	return e.Entry.Type
}

func incDecSymbol(e *IncDecExpr) string {
	if e.Decrement {
		return "--"
	}
	return "++"
}

func typeList(types []lsl.Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}
