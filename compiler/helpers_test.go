package compiler

import (
	"testing"

	"github.com/chazu/lslc/pkg/library"
	"github.com/chazu/lslc/pkg/lsl"
)

// Tree construction helpers. Lines are optional; most tests leave them zero.

func line(n int) Span { return Span{Start: Position{Line: n, Column: 1}} }

func ival(v int32) *IntLiteral      { return &IntLiteral{Value: v} }
func fval(v float32) *FloatLiteral  { return &FloatLiteral{Value: v} }
func sval(v string) *StringLiteral  { return &StringLiteral{Value: v} }
func ident(name string) *Identifier { return &Identifier{Name: name} }

func member(name, m string) *Identifier { return &Identifier{Name: name, Member: m} }

func bin(op lsl.Operator, l, r Expr) *BinaryExpr {
	return &BinaryExpr{Op: op, Left: l, Right: r}
}

func assign(name string, v Expr) *AssignExpr {
	return &AssignExpr{Target: ident(name), Value: v}
}

func call(name string, args ...Expr) *CallExpr {
	return &CallExpr{Name: name, Args: args}
}

func vec(x, y, z Expr) *VectorLiteral { return &VectorLiteral{X: x, Y: y, Z: z} }

func list(els ...Expr) *ListLiteral { return &ListLiteral{Elements: els} }

func block(stmts ...Stmt) *Block { return &Block{Stmts: stmts} }

func do(e Expr) *ExprStmt { return &ExprStmt{X: e} }

func decl(t lsl.Type, name string, init Expr) *DeclStmt {
	return &DeclStmt{Name: name, Type: t, Init: init}
}

func ret(v Expr) *ReturnStmt { return &ReturnStmt{Value: v} }

func param(t lsl.Type, name string) *Param { return &Param{Name: name, Type: t} }

func fn(result lsl.Type, name string, params []*Param, body ...Stmt) *Function {
	return &Function{Name: name, Return: result, Params: params, Body: block(body...)}
}

func global(t lsl.Type, name string, init Expr) *GlobalVar {
	return &GlobalVar{Name: name, Type: t, Init: init}
}

func event(name string, params []*Param, body ...Stmt) *Event {
	return &Event{Name: name, Params: params, Body: block(body...)}
}

func stateEntry(body ...Stmt) *Event { return event("state_entry", nil, body...) }

func state(name string, events ...*Event) *State {
	return &State{Name: name, Events: events}
}

// script builds a script whose default state has an empty state_entry unless
// states are given.
func script(globals []Global, states ...*State) *Script {
	if len(states) == 0 {
		states = []*State{state("default", stateEntry())}
	}
	return &Script{Globals: globals, States: states}
}

func newContext() *CompilationContext {
	return NewContext(library.Default(), false, nil)
}

// analyze runs every analysis pass with the default library.
func analyze(t *testing.T, s *Script) *CompilationContext {
	t.Helper()
	ctx := newContext()
	Analyze(ctx, s)
	return ctx
}

// errorKinds lists reported errors, warnings excluded.
func errorKinds(ctx *CompilationContext) []ErrorKind {
	var kinds []ErrorKind
	for _, d := range ctx.Diagnostics() {
		if d.Severity == SeverityError {
			kinds = append(kinds, d.Kind)
		}
	}
	return kinds
}

func warningKinds(ctx *CompilationContext) []ErrorKind {
	var kinds []ErrorKind
	for _, d := range ctx.Diagnostics() {
		if d.Severity == SeverityWarning {
			kinds = append(kinds, d.Kind)
		}
	}
	return kinds
}
