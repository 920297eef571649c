package compiler

import (
	"sort"

	"github.com/chazu/lslc/pkg/ir"
	"github.com/chazu/lslc/pkg/lsl"
)

// ---------------------------------------------------------------------------
// Emit pass: tree to IR
// ---------------------------------------------------------------------------

// emitter lowers one body at a time into IR. Implicit conversions become
// explicit cast instructions right after the converted value is pushed.
type emitter struct {
	ctx    *CompilationContext
	body   *ir.Body
	unwind []lsl.Type // locals then params
}

// Emit runs the emit pass and returns the program, or nil if errors were
// reported by an earlier pass.
func Emit(ctx *CompilationContext, script *Script) *ir.Program {
	if ctx.Failed() {
		return nil
	}
	e := &emitter{ctx: ctx}
	prog := &ir.Program{}

	for _, g := range script.Globals {
		switch g := g.(type) {
		case *GlobalVar:
			v := ir.Zero(g.Type)
			if g.Entry.Const != nil {
				v = *g.Entry.Const
			}
			prog.Globals = append(prog.Globals, ir.Global{
				Name:   ctx.Intern(g.Name),
				Type:   g.Type,
				Offset: g.Entry.Offset,
				Value:  v,
			})
		case *Function:
			fn := &ir.Function{Name: ctx.Intern(g.Name), Index: g.Entry.Index}
			e.begin(&fn.Body, g.Return, g.Params, g.Body, g.Entry)
			prog.Functions = append(prog.Functions, fn)
		}
	}

	for _, st := range script.States {
		state := &ir.State{Name: ctx.Intern(st.Name), Index: st.Entry.Index}
		for _, ev := range st.Events {
			event := &ir.Event{Kind: ev.Kind}
			e.begin(&event.Body, lsl.Void, ev.Params, ev.Body, ev.Entry)
			state.Events = append(state.Events, event)
		}
		sort.SliceStable(state.Events, func(i, j int) bool {
			return state.Events[i].Kind < state.Events[j].Kind
		})
		prog.States = append(prog.States, state)
	}
	return prog
}

// begin emits a complete function or event body.
func (e *emitter) begin(body *ir.Body, ret lsl.Type, params []*Param, block *Block, entry *Symbol) {
	body.Return = ret
	for _, p := range params {
		body.Params = append(body.Params, ir.Slot{Name: e.ctx.Intern(p.Name), Type: p.Type})
	}
	collectLocals(block, &body.Locals)

	e.body = body
	e.unwind = exitPops(entry)

	e.emit(ir.Instr{Op: ir.OpEnterFrame, Index: body.LocalBytes()})
	e.block(block)
	if n := len(body.Code); body.Code[n-1].Op != ir.OpReturn {
		e.exit()
	}
}

// exitPops lists the pops that unwind a frame: locals last-declared first,
// then parameters last-declared first.
func exitPops(entry *Symbol) []lsl.Type {
	out := make([]lsl.Type, 0, len(entry.Locals)+len(entry.Params))
	for i := len(entry.Locals) - 1; i >= 0; i-- {
		out = append(out, entry.Locals[i])
	}
	for i := len(entry.Params) - 1; i >= 0; i-- {
		out = append(out, entry.Params[i])
	}
	return out
}

// collectLocals lists declarations in the order the resource pass placed them.
func collectLocals(s Stmt, out *[]ir.Slot) {
	switch s := s.(type) {
	case *Block:
		for _, st := range s.Stmts {
			collectLocals(st, out)
		}
	case *DeclStmt:
		*out = append(*out, ir.Slot{Name: s.Name, Type: s.Type})
	case *IfStmt:
		collectLocals(s.Then, out)
		if s.Else != nil {
			collectLocals(s.Else, out)
		}
	case *WhileStmt:
		collectLocals(s.Body, out)
	case *DoWhileStmt:
		collectLocals(s.Body, out)
	case *ForStmt:
		collectLocals(s.Body, out)
	}
}

func (e *emitter) emit(in ir.Instr) {
	e.body.Emit(in)
}

func (e *emitter) at(n Node, in ir.Instr) {
	in.Line = n.Span().Start.Line
	e.body.Emit(in)
}

// exit unwinds the frame and returns.
func (e *emitter) exit() {
	e.emit(ir.Instr{Op: ir.OpUnwind, Types: e.unwind})
	e.emit(ir.Instr{Op: ir.OpReturn})
}

// labelOf returns the branch label of a label entry, allocating it on first use.
func (e *emitter) labelOf(sym *Symbol) ir.Label {
	if sym.Label == ir.NoLabel {
		sym.Label = e.ctx.NewLabel()
	}
	return sym.Label
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (e *emitter) block(b *Block) {
	for _, s := range b.Stmts {
		e.stmt(s)
	}
}

func (e *emitter) stmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		e.block(s)

	case *ExprStmt:
		e.discard(s.X)

	case *DeclStmt:
		if s.Init != nil {
			e.expr(s.Init)
			e.coerce(s.Init.ResultType(), s.Type)
		} else {
			e.at(s, ir.Instr{Op: ir.OpPushConst, Const: ir.Zero(s.Type)})
		}
		e.at(s, ir.Instr{Op: ir.OpStore, T: s.Type, Offset: int32(s.Entry.Offset)})

	case *IfStmt:
		skip := e.ctx.NewLabel()
		e.expr(s.Cond)
		e.at(s, ir.Instr{Op: ir.OpJumpNot, T: s.Cond.ResultType(), Label: skip})
		e.stmt(s.Then)
		if s.Else == nil {
			e.emit(ir.Instr{Op: ir.OpLabel, Label: skip})
			return
		}
		end := e.ctx.NewLabel()
		e.emit(ir.Instr{Op: ir.OpJump, Label: end})
		e.emit(ir.Instr{Op: ir.OpLabel, Label: skip})
		e.stmt(s.Else)
		e.emit(ir.Instr{Op: ir.OpLabel, Label: end})

	case *WhileStmt:
		top, end := e.ctx.NewLabel(), e.ctx.NewLabel()
		e.emit(ir.Instr{Op: ir.OpLabel, Label: top})
		e.expr(s.Cond)
		e.at(s, ir.Instr{Op: ir.OpJumpNot, T: s.Cond.ResultType(), Label: end})
		e.stmt(s.Body)
		e.emit(ir.Instr{Op: ir.OpJump, Label: top})
		e.emit(ir.Instr{Op: ir.OpLabel, Label: end})

	case *DoWhileStmt:
		top := e.ctx.NewLabel()
		e.emit(ir.Instr{Op: ir.OpLabel, Label: top})
		e.stmt(s.Body)
		e.expr(s.Cond)
		e.at(s, ir.Instr{Op: ir.OpJumpIf, T: s.Cond.ResultType(), Label: top})

	case *ForStmt:
		for _, x := range s.Init {
			e.discard(x)
		}
		top, end := e.ctx.NewLabel(), e.ctx.NewLabel()
		e.emit(ir.Instr{Op: ir.OpLabel, Label: top})
		if s.Cond != nil {
			e.expr(s.Cond)
			e.at(s, ir.Instr{Op: ir.OpJumpNot, T: s.Cond.ResultType(), Label: end})
		}
		e.stmt(s.Body)
		for _, x := range s.Step {
			e.discard(x)
		}
		e.emit(ir.Instr{Op: ir.OpJump, Label: top})
		e.emit(ir.Instr{Op: ir.OpLabel, Label: end})

	case *JumpStmt:
		e.at(s, ir.Instr{Op: ir.OpJump, Label: e.labelOf(s.Entry)})

	case *LabelStmt:
		e.at(s, ir.Instr{Op: ir.OpLabel, Label: e.labelOf(s.Entry)})

	case *ReturnStmt:
		if s.Value != nil && e.body.Return != lsl.Void {
			e.expr(s.Value)
			e.coerce(s.Value.ResultType(), e.body.Return)
			e.at(s, ir.Instr{Op: ir.OpReturnValue, T: e.body.Return})
		}
		e.exit()

	case *StateStmt:
		e.at(s, ir.Instr{Op: ir.OpUnwind, Types: e.unwind})
		e.at(s, ir.Instr{Op: ir.OpState, Index: s.Entry.Index, Name: s.State})
		e.emit(ir.Instr{Op: ir.OpReturn})
	}
}

// discard evaluates x for its side effects and leaves nothing on the stack.
func (e *emitter) discard(x Expr) {
	switch x := x.(type) {
	case *AssignExpr:
		e.assign(x, false)
	case *IncDecExpr:
		e.incDec(x, false)
	case *ParenExpr:
		e.discard(x.Inner)
	default:
		e.expr(x)
		if t := x.ResultType(); t != lsl.Void {
			e.at(x, ir.Instr{Op: ir.OpPop, T: t})
		}
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// coerce converts the value on top of the stack from one type to another.
func (e *emitter) coerce(from, to lsl.Type) {
	switch {
	case from == to || to == lsl.Void:
	case to == lsl.List:
		e.emit(ir.Instr{Op: ir.OpToList, Index: 1})
	default:
		e.emit(ir.Instr{Op: ir.OpCast, T: from, T2: to})
	}
}

// expr pushes the value of x.
func (e *emitter) expr(x Expr) {
	switch x := x.(type) {
	case *IntLiteral, *FloatLiteral, *StringLiteral:
		v, _ := fold(x)
		e.constant(x, v)

	case *VectorLiteral:
		e.aggregate(x, lsl.Vector, x.Components())

	case *QuaternionLiteral:
		e.aggregate(x, lsl.Quaternion, x.Components())

	case *ListLiteral:
		if v, ok := fold(x); ok {
			e.constant(x, v)
			return
		}
		for _, el := range x.Elements {
			e.expr(el)
		}
		e.at(x, ir.Instr{Op: ir.OpToList, Index: len(x.Elements)})

	case *Identifier:
		e.load(x)

	case *UnaryExpr:
		e.expr(x.Operand)
		e.at(x, ir.Instr{Op: ir.OpUnary, Operator: x.Op, T: x.Operand.ResultType()})

	case *BinaryExpr:
		e.expr(x.Left)
		e.coerce(x.Left.ResultType(), x.LeftAs)
		e.expr(x.Right)
		e.coerce(x.Right.ResultType(), x.RightAs)
		e.at(x, ir.Instr{Op: ir.OpBinary, Operator: x.Op, T: x.LeftAs, T2: x.RightAs})

	case *AssignExpr:
		e.assign(x, true)

	case *IncDecExpr:
		e.incDec(x, true)

	case *CastExpr:
		e.expr(x.Operand)
		if from := x.Operand.ResultType(); from != x.To {
			e.at(x, ir.Instr{Op: ir.OpCast, T: from, T2: x.To})
		}

	case *CallExpr:
		e.call(x)

	case *ParenExpr:
		e.expr(x.Inner)

	case *PrintExpr:
		e.expr(x.Value)
		e.at(x, ir.Instr{Op: ir.OpPrint, T: x.Value.ResultType()})
	}
}

func (e *emitter) constant(n Node, v ir.Value) {
	if v.Type == lsl.String || v.Type == lsl.Key {
		v.Str = e.ctx.Intern(v.Str)
	}
	e.at(n, ir.Instr{Op: ir.OpPushConst, Const: v})
}

// aggregate pushes a vector or rotation literal: folded when every component
// is constant, otherwise built from its components in source order.
func (e *emitter) aggregate(x Expr, t lsl.Type, comps []Expr) {
	if v, ok := fold(x); ok {
		e.constant(x, v)
		return
	}
	for _, c := range comps {
		e.expr(c)
		e.coerce(c.ResultType(), lsl.Float)
	}
	e.at(x, ir.Instr{Op: ir.OpBuild, T: t})
}

// access is the push or store instruction template for a variable.
func access(id *Identifier) ir.Instr {
	return ir.Instr{
		T:      id.ResultType(),
		Offset: int32(id.Entry.Offset),
		Global: id.Entry.Kind == SymGlobal,
		Member: id.Member,
	}
}

func (e *emitter) load(id *Identifier) {
	in := access(id)
	in.Op = ir.OpPushLocal
	if in.Global {
		in.Op = ir.OpPushGlobal
	}
	e.at(id, in)
}

func (e *emitter) store(id *Identifier, keep bool) {
	in := access(id)
	in.Op = ir.OpStore
	in.Keep = keep
	e.at(id, in)
}

func (e *emitter) assign(x *AssignExpr, keep bool) {
	dst := x.Target.ResultType()
	if x.Op == lsl.OpNone {
		e.expr(x.Value)
		e.coerce(x.Value.ResultType(), dst)
		e.store(x.Target, keep)
		return
	}
	res, _ := lsl.BinaryResult(x.Op, dst, x.Value.ResultType())
	e.load(x.Target)
	e.coerce(dst, x.LeftAs)
	e.expr(x.Value)
	e.coerce(x.Value.ResultType(), x.RightAs)
	e.at(x, ir.Instr{Op: ir.OpBinary, Operator: x.Op, T: x.LeftAs, T2: x.RightAs})
	e.coerce(res, dst)
	e.store(x.Target, keep)
}

// incDec emits ++ and --. A postfix form whose value is used pushes the old
// value first and stores the new one without keeping it.
func (e *emitter) incDec(x *IncDecExpr, keep bool) {
	t := x.Target.ResultType()
	op := lsl.OpAdd
	if x.Decrement {
		op = lsl.OpSub
	}
	one := ir.Value{Type: lsl.Integer, Int: 1}
	if t == lsl.Float {
		one = ir.Value{Type: lsl.Float, Float: 1}
	}

	postfix := keep && !x.Prefix
	if postfix {
		e.load(x.Target)
	}
	e.load(x.Target)
	e.at(x, ir.Instr{Op: ir.OpPushConst, Const: one})
	e.at(x, ir.Instr{Op: ir.OpBinary, Operator: op, T: t, T2: t})
	e.store(x.Target, keep && x.Prefix)
}

func (e *emitter) call(x *CallExpr) {
	sym := x.Entry
	e.at(x, ir.Instr{Op: ir.OpCallBegin, T: sym.Type})
	for i, a := range x.Args {
		e.expr(a)
		e.coerce(a.ResultType(), sym.Params[i])
	}
	e.at(x, ir.Instr{
		Op:       ir.OpCall,
		Index:    sym.Index,
		Library:  sym.Kind == SymLibrary,
		ArgBytes: lsl.FrameSize(sym.Params),
		Name:     sym.Name,
		T:        sym.Type,
		Types:    sym.Params,
	})
}
