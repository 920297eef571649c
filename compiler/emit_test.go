package compiler

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/lslc/pkg/ir"
	"github.com/chazu/lslc/pkg/lsl"
)

func emitProgram(t *testing.T, s *Script) *ir.Program {
	t.Helper()
	ctx := analyze(t, s)
	require.Empty(t, errorKinds(ctx))
	prog := Emit(ctx, s)
	require.NotNil(t, prog)
	return prog
}

// entryBody emits a script whose state_entry holds stmts and returns that body.
func entryBody(t *testing.T, globals []Global, stmts ...Stmt) *ir.Body {
	t.Helper()
	prog := emitProgram(t, inEvent(globals, stmts...))
	return &prog.States[0].Events[0].Body
}

func ops(b *ir.Body) []ir.Op {
	out := make([]ir.Op, len(b.Code))
	for i, in := range b.Code {
		out[i] = in.Op
	}
	return out
}

func TestEmitPromotionCastsOnce(t *testing.T) {
	b := entryBody(t, nil, decl(lsl.Float, "x", bin(lsl.OpAdd, ival(1), fval(2.5))))

	assert.Equal(t, []ir.Op{
		ir.OpEnterFrame,
		ir.OpPushConst, ir.OpCast, ir.OpPushConst, ir.OpBinary,
		ir.OpStore,
		ir.OpUnwind, ir.OpReturn,
	}, ops(b), b.Listing())

	cast := b.Code[2]
	assert.Equal(t, lsl.Integer, cast.T)
	assert.Equal(t, lsl.Float, cast.T2)
	sum := b.Code[4]
	assert.Equal(t, lsl.OpAdd, sum.Operator)
	assert.Equal(t, lsl.Float, sum.T)
	assert.Equal(t, lsl.Float, sum.T2)
}

func TestEmitLibraryCall(t *testing.T) {
	b := entryBody(t, nil, do(call("llSay", ival(0), ival(5))))

	assert.Equal(t, []ir.Op{
		ir.OpEnterFrame,
		ir.OpCallBegin, ir.OpPushConst, ir.OpPushConst, ir.OpCast, ir.OpCall,
		ir.OpUnwind, ir.OpReturn,
	}, ops(b), b.Listing())

	c := b.Code[5]
	assert.True(t, c.Library)
	assert.Equal(t, 23, c.Index)
	assert.Equal(t, 8, c.ArgBytes)
	assert.Equal(t, lsl.Void, c.T)
	assert.Equal(t, lsl.String, b.Code[4].T2)
}

func TestEmitUserCallDiscardsResult(t *testing.T) {
	f := fn(lsl.Integer, "f", []*Param{param(lsl.Integer, "a")}, ret(ident("a")))
	prog := emitProgram(t, inEvent([]Global{f}, do(call("f", ival(1)))))
	b := &prog.States[0].Events[0].Body

	assert.Equal(t, []ir.Op{
		ir.OpEnterFrame,
		ir.OpCallBegin, ir.OpPushConst, ir.OpCall, ir.OpPop,
		ir.OpUnwind, ir.OpReturn,
	}, ops(b), b.Listing())
	c := b.Code[3]
	assert.False(t, c.Library)
	assert.Equal(t, 0, c.Index)
	assert.Equal(t, lsl.Integer, b.Code[4].T)

	fb := &prog.Functions[0].Body
	assert.Equal(t, []ir.Op{
		ir.OpEnterFrame,
		ir.OpPushLocal, ir.OpReturnValue,
		ir.OpUnwind, ir.OpReturn,
	}, ops(fb), fb.Listing(), "no second exit after a trailing return")
}

func TestEmitReturnCoercion(t *testing.T) {
	prog := emitProgram(t, script([]Global{fn(lsl.Float, "f", nil, ret(ival(1)))}))
	b := &prog.Functions[0].Body
	require.Equal(t, []ir.Op{
		ir.OpEnterFrame, ir.OpPushConst, ir.OpCast, ir.OpReturnValue, ir.OpUnwind, ir.OpReturn,
	}, ops(b), b.Listing())
	assert.Equal(t, lsl.Float, b.Code[3].T)
	assert.Equal(t, lsl.Float, b.Return)
}

func TestEmitUnwindOrder(t *testing.T) {
	f := fn(lsl.Void, "f",
		[]*Param{param(lsl.Integer, "a"), param(lsl.Vector, "v")},
		decl(lsl.String, "s", nil),
		block(decl(lsl.Float, "q", nil)),
	)
	prog := emitProgram(t, script([]Global{f}))
	b := &prog.Functions[0].Body

	assert.Equal(t, 8, b.Code[0].Index, "locals only")
	last := b.Code[len(b.Code)-2]
	require.Equal(t, ir.OpUnwind, last.Op)
	assert.Equal(t, []lsl.Type{lsl.Float, lsl.String, lsl.Vector, lsl.Integer}, last.Types, "last pushed is popped first")

	assert.Equal(t, []ir.Slot{{Name: "a", Type: lsl.Integer}, {Name: "v", Type: lsl.Vector}}, b.Params)
	assert.Equal(t, []ir.Slot{{Name: "s", Type: lsl.String}, {Name: "q", Type: lsl.Float}}, b.Locals)
}

func TestEmitStateChange(t *testing.T) {
	s := script(nil,
		state("default", stateEntry(&StateStmt{State: "two"})),
		state("two", stateEntry()),
	)
	prog := emitProgram(t, s)
	b := &prog.States[0].Events[0].Body

	assert.Equal(t, []ir.Op{ir.OpEnterFrame, ir.OpUnwind, ir.OpState, ir.OpReturn}, ops(b), b.Listing())
	assert.Equal(t, 1, b.Code[2].Index)
	assert.Equal(t, "two", b.Code[2].Name)
	assert.Equal(t, 1, prog.States[1].Index)
}

func TestEmitIncDec(t *testing.T) {
	t.Run("postfix value", func(t *testing.T) {
		b := entryBody(t, nil,
			decl(lsl.Integer, "i", nil),
			decl(lsl.Integer, "j", &IncDecExpr{Target: ident("i")}),
		)
		assert.Equal(t, []ir.Op{
			ir.OpEnterFrame,
			ir.OpPushConst, ir.OpStore,
			ir.OpPushLocal, ir.OpPushLocal, ir.OpPushConst, ir.OpBinary, ir.OpStore, ir.OpStore,
			ir.OpUnwind, ir.OpReturn,
		}, ops(b), b.Listing())
		assert.False(t, b.Code[7].Keep, "the old value stays on the stack")
		assert.Equal(t, int32(0), b.Code[7].Offset)
		assert.Equal(t, int32(4), b.Code[8].Offset)
	})

	t.Run("prefix value", func(t *testing.T) {
		b := entryBody(t, nil,
			decl(lsl.Float, "f", nil),
			decl(lsl.Float, "g", &IncDecExpr{Target: ident("f"), Prefix: true, Decrement: true}),
		)
		assert.Equal(t, []ir.Op{
			ir.OpEnterFrame,
			ir.OpPushConst, ir.OpStore,
			ir.OpPushLocal, ir.OpPushConst, ir.OpBinary, ir.OpStore, ir.OpStore,
			ir.OpUnwind, ir.OpReturn,
		}, ops(b), b.Listing())
		assert.Equal(t, lsl.OpSub, b.Code[5].Operator)
		assert.Equal(t, lsl.Float, b.Code[4].Const.Type)
		assert.True(t, b.Code[6].Keep)
	})

	t.Run("statement", func(t *testing.T) {
		b := entryBody(t, nil,
			decl(lsl.Integer, "i", nil),
			do(&IncDecExpr{Target: ident("i")}),
		)
		assert.Equal(t, []ir.Op{
			ir.OpEnterFrame,
			ir.OpPushConst, ir.OpStore,
			ir.OpPushLocal, ir.OpPushConst, ir.OpBinary, ir.OpStore,
			ir.OpUnwind, ir.OpReturn,
		}, ops(b), b.Listing())
		assert.False(t, b.Code[6].Keep)
	})
}

func TestEmitLoopLabels(t *testing.T) {
	b := entryBody(t, nil,
		decl(lsl.Integer, "i", nil),
		&WhileStmt{Cond: ident("i"), Body: do(assign("i", ival(0)))},
	)
	assert.Equal(t, []ir.Op{
		ir.OpEnterFrame,
		ir.OpPushConst, ir.OpStore,
		ir.OpLabel, ir.OpPushLocal, ir.OpJumpNot,
		ir.OpPushConst, ir.OpStore,
		ir.OpJump, ir.OpLabel,
		ir.OpUnwind, ir.OpReturn,
	}, ops(b), b.Listing())

	top, end := b.Code[3].Label, b.Code[9].Label
	assert.NotEqual(t, ir.NoLabel, top)
	assert.NotEqual(t, top, end)
	assert.Equal(t, end, b.Code[5].Label)
	assert.Equal(t, top, b.Code[8].Label)
	assert.Equal(t, lsl.Integer, b.Code[5].T)
}

func TestEmitJumpToLabel(t *testing.T) {
	b := entryBody(t, nil,
		&JumpStmt{Label: "out"},
		do(call("llSay", ival(0), sval("skipped"))),
		&LabelStmt{Name: "out"},
	)
	jump := b.Code[1]
	label := b.Code[len(b.Code)-3]
	require.Equal(t, ir.OpJump, jump.Op)
	require.Equal(t, ir.OpLabel, label.Op)
	assert.Equal(t, jump.Label, label.Label)
}

func TestEmitMemberStore(t *testing.T) {
	b := entryBody(t, nil,
		decl(lsl.Vector, "v", nil),
		do(&AssignExpr{Target: member("v", "y"), Value: ival(2)}),
	)
	assert.Equal(t, []ir.Op{
		ir.OpEnterFrame,
		ir.OpPushConst, ir.OpStore,
		ir.OpPushConst, ir.OpCast, ir.OpStore,
		ir.OpUnwind, ir.OpReturn,
	}, ops(b), b.Listing())
	st := b.Code[5]
	assert.Equal(t, "y", st.Member)
	assert.Equal(t, lsl.Float, st.T)
	assert.False(t, st.Global)
}

func TestEmitAggregates(t *testing.T) {
	b := entryBody(t, nil,
		decl(lsl.Float, "f", nil),
		do(vec(ident("f"), ival(1), fval(2))),
		do(list(ident("f"), sval("x"))),
		do(list(ival(1), sval("x"))),
	)
	assert.Equal(t, []ir.Op{
		ir.OpEnterFrame,
		ir.OpPushConst, ir.OpStore,
		ir.OpPushLocal, ir.OpPushConst, ir.OpCast, ir.OpPushConst, ir.OpBuild, ir.OpPop,
		ir.OpPushLocal, ir.OpPushConst, ir.OpToList, ir.OpPop,
		ir.OpPushConst, ir.OpPop,
		ir.OpUnwind, ir.OpReturn,
	}, ops(b), b.Listing())
	assert.Equal(t, lsl.Vector, b.Code[7].T)
	assert.Equal(t, 2, b.Code[11].Index)
	assert.Len(t, b.Code[13].Const.List, 2, "constant lists are folded")
}

func TestEmitGlobalsAndEventOrder(t *testing.T) {
	s := script(
		[]Global{global(lsl.Integer, "count", ival(3)), global(lsl.String, "name", nil)},
		state("default",
			event("touch_start", []*Param{param(lsl.Integer, "n")},
				do(assign("count", ident("n")))),
			stateEntry(),
		),
	)
	prog := emitProgram(t, s)

	require.Len(t, prog.Globals, 2)
	assert.Equal(t, int32(3), prog.Globals[0].Value.Int)
	assert.Equal(t, lsl.String, prog.Globals[1].Value.Type)

	events := prog.States[0].Events
	require.Len(t, events, 2)
	assert.True(t, sort.SliceIsSorted(events, func(i, j int) bool {
		return events[i].Kind < events[j].Kind
	}))
	assert.Equal(t, lsl.EventStateEntry, events[0].Kind)

	touch := &events[1].Body
	store := touch.Code[2]
	assert.Equal(t, ir.OpStore, store.Op)
	assert.True(t, store.Global)
	assert.Equal(t, int32(prog.Globals[0].Offset), store.Offset)
}

func TestEmitSkipsFailedCompilations(t *testing.T) {
	s := script([]Global{fn(lsl.Integer, "f", nil)})
	ctx := analyze(t, s)
	require.True(t, ctx.Failed())
	assert.Nil(t, Emit(ctx, s))
}
