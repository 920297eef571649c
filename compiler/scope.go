package compiler

import (
	"errors"

	"github.com/chazu/lslc/pkg/lsl"
)

// ---------------------------------------------------------------------------
// Scope passes: declare names, then resolve forward references
// ---------------------------------------------------------------------------

// declarer runs the first scope pass. It builds the scope tree, declares every
// variable, function, label, state and event, and resolves variable references,
// which must be declared before use.
type declarer struct {
	ctx   *CompilationContext
	scope *Scope
}

// DeclareNames runs the first scope pass over script.
func DeclareNames(ctx *CompilationContext, script *Script) {
	if ctx.Failed() {
		return
	}
	d := &declarer{ctx: ctx}
	d.script(script)
}

func (d *declarer) script(s *Script) {
	s.Scope = NewScope(nil)
	d.scope = s.Scope

	for _, f := range d.ctx.Library.Visible(d.ctx.Privileged) {
		sym, err := d.scope.Declare(d.ctx.Intern(f.Name), SymLibrary, f.Return)
		if err != nil {
			continue
		}
		sym.Params = f.Params
		sym.Index = f.Index
	}

	for _, g := range s.Globals {
		switch g := g.(type) {
		case *GlobalVar:
			d.globalVar(g)
		case *Function:
			d.function(g)
		default:
			d.ctx.errorAt(s, MalformedTree, "unexpected global %T", g)
		}
	}

	if len(s.States) == 0 || s.States[0] == nil || s.States[0].Name != "default" {
		d.ctx.errorAt(s, MalformedTree, "first state must be default")
	}
	for _, st := range s.States {
		if st == nil {
			d.ctx.errorAt(s, MalformedTree, "nil state")
			continue
		}
		d.state(st)
	}
}

func (d *declarer) declare(n Node, name string, kind SymbolKind, t lsl.Type) *Symbol {
	sym, err := d.scope.Declare(d.ctx.Intern(name), kind, t)
	if errors.Is(err, ErrDuplicateName) {
		d.ctx.errorAt(n, DuplicateName, "%s", name)
		return nil
	}
	sym.Declared = n.Span().Start
	return sym
}

func (d *declarer) globalVar(g *GlobalVar) {
	if g.Init != nil {
		d.expr(g.Init)
	}
	g.Entry = d.declare(g, g.Name, SymGlobal, g.Type)
}

func (d *declarer) function(f *Function) {
	f.Entry = d.declare(f, f.Name, SymFunction, f.Return)
	if f.Entry != nil {
		f.Entry.Params = paramTypes(f.Params)
	}
	if f.Body == nil {
		d.ctx.errorAt(f, MalformedTree, "function %s has no body", f.Name)
		return
	}

	outer := d.scope
	f.Scope = NewScope(outer)
	d.scope = f.Scope
	d.params(f.Params)
	d.blockIn(f.Body, f.Scope)
	d.scope = outer
}

func (d *declarer) params(params []*Param) {
	for _, p := range params {
		p.Entry = d.declare(p, p.Name, SymLocal, p.Type)
	}
}

func paramTypes(params []*Param) []lsl.Type {
	types := make([]lsl.Type, len(params))
	for i, p := range params {
		types[i] = p.Type
	}
	return types
}

func (d *declarer) state(s *State) {
	s.Entry = d.declare(s, s.Name, SymState, lsl.Void)

	outer := d.scope
	s.Scope = NewScope(outer)
	d.scope = s.Scope
	for _, e := range s.Events {
		if e == nil {
			d.ctx.errorAt(s, MalformedTree, "nil event in state %s", s.Name)
			continue
		}
		d.event(e)
	}
	d.scope = outer
}

func (d *declarer) event(e *Event) {
	kind, ok := lsl.EventByName(e.Name)
	if !ok {
		d.ctx.errorAt(e, UnknownEvent, "%s", e.Name)
		return
	}
	e.Kind = kind
	if !sameTypes(paramTypes(e.Params), kind.Params()) {
		d.ctx.errorAt(e, EventSignatureMismatch, "%s expects (%s)", e.Name, lsl.FormatTypes(kind.Params()))
	}
	e.Entry = d.declare(e, e.Name, SymEvent, lsl.Void)
	if e.Entry != nil {
		e.Entry.Params = paramTypes(e.Params)
		e.Entry.Index = int(kind)
	}
	if e.Body == nil {
		d.ctx.errorAt(e, MalformedTree, "event %s has no body", e.Name)
		return
	}

	outer := d.scope
	e.Scope = NewScope(outer)
	d.scope = e.Scope
	d.params(e.Params)
	d.blockIn(e.Body, e.Scope)
	d.scope = outer
}

func sameTypes(a, b []lsl.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// blockIn declares the statements of b directly into sc.
func (d *declarer) blockIn(b *Block, sc *Scope) {
	outer := d.scope
	b.Scope = sc
	d.scope = sc
	for _, s := range b.Stmts {
		d.stmt(s)
	}
	d.scope = outer
}

func (d *declarer) stmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		d.blockIn(s, NewScope(d.scope))
	case *ExprStmt:
		d.expr(s.X)
	case *DeclStmt:
		if s.Init != nil {
			d.expr(s.Init)
		}
		s.Entry = d.declare(s, s.Name, SymLocal, s.Type)
	case *IfStmt:
		d.expr(s.Cond)
		d.body(s.Then)
		if s.Else != nil {
			d.body(s.Else)
		}
	case *WhileStmt:
		d.expr(s.Cond)
		d.body(s.Body)
	case *DoWhileStmt:
		d.body(s.Body)
		d.expr(s.Cond)
	case *ForStmt:
		for _, e := range s.Init {
			d.expr(e)
		}
		if s.Cond != nil {
			d.expr(s.Cond)
		}
		for _, e := range s.Step {
			d.expr(e)
		}
		d.body(s.Body)
	case *LabelStmt:
		s.Entry = d.declare(s, s.Name, SymLabel, lsl.Void)
	case *ReturnStmt:
		if s.Value != nil {
			d.expr(s.Value)
		}
	case *JumpStmt, *StateStmt, *EmptyStmt:
		// resolved in the second pass
	case nil:
		d.ctx.errorAt(nil, MalformedTree, "nil statement")
	default:
		d.ctx.errorAt(s, MalformedTree, "unexpected statement %T", s)
	}
}

// body handles the single-statement bodies of if, while, do and for. A
// declaration there would be visible to nothing, so it still gets its own scope.
// A bare label stays in the enclosing scope where jumps can reach it.
func (d *declarer) body(s Stmt) {
	if s == nil {
		d.ctx.errorAt(nil, MalformedTree, "missing statement body")
		return
	}
	switch s.(type) {
	case *Block, *LabelStmt:
		d.stmt(s)
		return
	}
	outer := d.scope
	d.scope = NewScope(outer)
	d.stmt(s)
	d.scope = outer
}

func (d *declarer) expr(e Expr) {
	switch e := e.(type) {
	case *IntLiteral, *FloatLiteral, *StringLiteral:
	case *VectorLiteral:
		d.exprs(e.Components())
	case *QuaternionLiteral:
		d.exprs(e.Components())
	case *ListLiteral:
		d.exprs(e.Elements)
	case *Identifier:
		d.variable(e)
	case *UnaryExpr:
		d.expr(e.Operand)
	case *BinaryExpr:
		d.expr(e.Left)
		d.expr(e.Right)
	case *AssignExpr:
		d.expr(e.Value)
		d.target(e, e.Target)
	case *IncDecExpr:
		d.target(e, e.Target)
	case *CastExpr:
		d.expr(e.Operand)
	case *CallExpr:
		d.exprs(e.Args)
	case *ParenExpr:
		d.expr(e.Inner)
	case *PrintExpr:
		d.expr(e.Value)
	case nil:
		d.ctx.errorAt(nil, MalformedTree, "nil expression")
	default:
		d.ctx.errorAt(e, MalformedTree, "unexpected expression %T", e)
	}
}

func (d *declarer) exprs(es []Expr) {
	for _, e := range es {
		d.expr(e)
	}
}

func (d *declarer) target(parent Node, id *Identifier) {
	if id == nil {
		d.ctx.errorAt(parent, MalformedTree, "assignment without target")
		return
	}
	d.variable(id)
}

func (d *declarer) variable(id *Identifier) {
	sym, ok := d.scope.LookupKind(id.Name, SymLocal)
	if !ok {
		d.ctx.errorAt(id, UndefinedName, "%s", id.Name)
		return
	}
	id.Entry = sym
}

// ---------------------------------------------------------------------------
// Second pass
// ---------------------------------------------------------------------------

// resolver runs the second scope pass, binding calls, jumps and state changes,
// which may refer to names declared later in the script.
type resolver struct {
	ctx   *CompilationContext
	scope *Scope
}

// ResolveNames runs the second scope pass over script.
func ResolveNames(ctx *CompilationContext, script *Script) {
	if ctx.Failed() {
		return
	}
	r := &resolver{ctx: ctx, scope: script.Scope}
	for _, g := range script.Globals {
		switch g := g.(type) {
		case *GlobalVar:
			if g.Init != nil {
				r.expr(g.Init)
			}
		case *Function:
			r.block(g.Body)
		}
	}
	for _, st := range script.States {
		for _, e := range st.Events {
			r.block(e.Body)
		}
	}
}

func (r *resolver) block(b *Block) {
	outer := r.scope
	r.scope = b.Scope
	for _, s := range b.Stmts {
		r.stmt(s)
	}
	r.scope = outer
}

func (r *resolver) stmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		r.block(s)
	case *ExprStmt:
		r.expr(s.X)
	case *DeclStmt:
		if s.Init != nil {
			r.expr(s.Init)
		}
	case *IfStmt:
		r.expr(s.Cond)
		r.stmt(s.Then)
		if s.Else != nil {
			r.stmt(s.Else)
		}
	case *WhileStmt:
		r.expr(s.Cond)
		r.stmt(s.Body)
	case *DoWhileStmt:
		r.stmt(s.Body)
		r.expr(s.Cond)
	case *ForStmt:
		r.exprs(s.Init)
		if s.Cond != nil {
			r.expr(s.Cond)
		}
		r.exprs(s.Step)
		r.stmt(s.Body)
	case *ReturnStmt:
		if s.Value != nil {
			r.expr(s.Value)
		}
	case *JumpStmt:
		sym, ok := r.scope.LookupKind(s.Label, SymLabel)
		if !ok {
			r.ctx.errorAt(s, UndefinedName, "label %s", s.Label)
			return
		}
		s.Entry = sym
	case *StateStmt:
		sym, ok := r.scope.LookupKind(s.State, SymState)
		if !ok {
			r.ctx.errorAt(s, UndefinedName, "state %s", s.State)
			return
		}
		s.Entry = sym
	}
}

func (r *resolver) expr(e Expr) {
	switch e := e.(type) {
	case *VectorLiteral:
		r.exprs(e.Components())
	case *QuaternionLiteral:
		r.exprs(e.Components())
	case *ListLiteral:
		r.exprs(e.Elements)
	case *UnaryExpr:
		r.expr(e.Operand)
	case *BinaryExpr:
		r.expr(e.Left)
		r.expr(e.Right)
	case *AssignExpr:
		r.expr(e.Value)
	case *CastExpr:
		r.expr(e.Operand)
	case *ParenExpr:
		r.expr(e.Inner)
	case *PrintExpr:
		r.expr(e.Value)
	case *CallExpr:
		r.exprs(e.Args)
		sym, ok := r.scope.LookupKind(e.Name, SymFunction)
		if !ok {
			r.ctx.errorAt(e, UndefinedName, "function %s", e.Name)
			return
		}
		e.Entry = sym
	}
}

func (r *resolver) exprs(es []Expr) {
	for _, e := range es {
		r.expr(e)
	}
}
