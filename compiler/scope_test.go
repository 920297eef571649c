package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/lslc/pkg/library"
	"github.com/chazu/lslc/pkg/lsl"
)

func TestDeclareShadowingInNestedBlock(t *testing.T) {
	inner := decl(lsl.Float, "x", nil)
	s := script([]Global{
		fn(lsl.Void, "f", nil,
			decl(lsl.Integer, "x", ival(1)),
			block(inner, do(assign("x", fval(2)))),
		),
	})
	ctx := analyze(t, s)
	require.Empty(t, ctx.Diagnostics())

	use := s.Functions()[0].Body.Stmts[1].(*Block).Stmts[1].(*ExprStmt).X.(*AssignExpr)
	assert.Same(t, inner.Entry, use.Target.Entry, "the inner x is found first")
}

func TestDeclareDuplicateInSameScope(t *testing.T) {
	s := script([]Global{
		fn(lsl.Void, "f", nil,
			decl(lsl.Integer, "x", nil),
			decl(lsl.Integer, "x", nil),
		),
	})
	ctx := analyze(t, s)
	assert.Equal(t, []ErrorKind{DuplicateName}, errorKinds(ctx))
}

func TestParamsShareFunctionScope(t *testing.T) {
	s := script([]Global{
		fn(lsl.Void, "f", []*Param{param(lsl.Integer, "a")},
			decl(lsl.Integer, "a", nil),
		),
	})
	ctx := analyze(t, s)
	assert.Equal(t, []ErrorKind{DuplicateName}, errorKinds(ctx))
}

func TestDuplicateGlobals(t *testing.T) {
	s := script([]Global{
		global(lsl.Integer, "g", nil),
		fn(lsl.Void, "g", nil),
	})
	ctx := analyze(t, s)
	assert.Equal(t, []ErrorKind{DuplicateName}, errorKinds(ctx))
}

func TestUndefinedVariable(t *testing.T) {
	s := script([]Global{
		fn(lsl.Void, "f", nil, do(assign("nope", ival(1)))),
	})
	ctx := analyze(t, s)
	assert.Equal(t, []ErrorKind{UndefinedName}, errorKinds(ctx))
}

func TestVariableUsedBeforeDeclaration(t *testing.T) {
	s := script([]Global{
		fn(lsl.Void, "f", nil,
			do(assign("later", ival(1))),
			decl(lsl.Integer, "later", nil),
		),
	})
	ctx := analyze(t, s)
	assert.Equal(t, []ErrorKind{UndefinedName}, errorKinds(ctx))
}

func TestGlobalInitializerSeesOnlyEarlierGlobals(t *testing.T) {
	s := script([]Global{
		global(lsl.Integer, "a", ident("b")),
		global(lsl.Integer, "b", ival(1)),
	})
	ctx := analyze(t, s)
	assert.Equal(t, []ErrorKind{UndefinedName}, errorKinds(ctx))
}

func TestForwardReferencesResolveInSecondPass(t *testing.T) {
	jump := &JumpStmt{Label: "done"}
	change := &StateStmt{State: "later"}
	caller := call("g")
	s := script([]Global{
		fn(lsl.Void, "f", nil, do(caller), jump, &LabelStmt{Name: "done"}),
		fn(lsl.Void, "g", nil),
	},
		state("default", stateEntry(change)),
		state("later", stateEntry()),
	)
	ctx := analyze(t, s)
	require.Empty(t, ctx.Diagnostics())

	assert.Equal(t, SymFunction, caller.Entry.Kind)
	assert.Equal(t, 1, caller.Entry.Index)
	assert.Equal(t, SymLabel, jump.Entry.Kind)
	assert.Equal(t, SymState, change.Entry.Kind)
	assert.Equal(t, 1, change.Entry.Index)
}

func TestLabelAsSingleStatementBody(t *testing.T) {
	label := &LabelStmt{Name: "l"}
	jump := &JumpStmt{Label: "l"}
	s := inEvent(nil, &IfStmt{Cond: ival(1), Then: label}, jump)

	ctx := analyze(t, s)
	require.Empty(t, errorKinds(ctx))
	assert.Same(t, label.Entry, jump.Entry)

	prog := Emit(ctx, s)
	require.NotNil(t, prog)
}

func TestUnresolvedReferences(t *testing.T) {
	tests := []struct {
		name string
		stmt Stmt
	}{
		{"function", do(call("nowhere"))},
		{"label", &JumpStmt{Label: "nowhere"}},
		{"state", &StateStmt{State: "nowhere"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := script(nil, state("default", stateEntry(tt.stmt)))
			ctx := analyze(t, s)
			assert.Equal(t, []ErrorKind{UndefinedName}, errorKinds(ctx))
		})
	}
}

func TestLibraryFunctionsResolve(t *testing.T) {
	say := call("llSay", ival(0), sval("hi"))
	s := script(nil, state("default", stateEntry(do(say))))
	ctx := analyze(t, s)
	require.Empty(t, ctx.Diagnostics())
	assert.Equal(t, SymLibrary, say.Entry.Kind)
	assert.Equal(t, 23, say.Entry.Index)
}

func TestPrivilegedLibraryFunctions(t *testing.T) {
	build := func() *Script {
		return script(nil, state("default", stateEntry(
			do(call("llSetObjectPermMask", ival(0), ival(0))),
		)))
	}

	ctx := NewContext(library.Default(), false, nil)
	Analyze(ctx, build())
	assert.Equal(t, []ErrorKind{UndefinedName}, errorKinds(ctx))

	ctx = NewContext(library.Default(), true, nil)
	Analyze(ctx, build())
	assert.Empty(t, errorKinds(ctx))
}

func TestEventChecks(t *testing.T) {
	t.Run("unknown event", func(t *testing.T) {
		s := script(nil, state("default", event("on_fire", nil)))
		ctx := analyze(t, s)
		assert.Equal(t, []ErrorKind{UnknownEvent}, errorKinds(ctx))
	})

	t.Run("signature mismatch", func(t *testing.T) {
		s := script(nil, state("default", event("touch_start", []*Param{param(lsl.String, "n")})))
		ctx := analyze(t, s)
		assert.Equal(t, []ErrorKind{EventSignatureMismatch}, errorKinds(ctx))
	})

	t.Run("duplicate handler", func(t *testing.T) {
		s := script(nil, state("default", stateEntry(), stateEntry()))
		ctx := analyze(t, s)
		assert.Equal(t, []ErrorKind{DuplicateName}, errorKinds(ctx))
	})

	t.Run("kind recorded", func(t *testing.T) {
		e := event("listen", []*Param{
			param(lsl.Integer, "ch"), param(lsl.String, "name"),
			param(lsl.Key, "id"), param(lsl.String, "msg"),
		})
		s := script(nil, state("default", e))
		ctx := analyze(t, s)
		require.Empty(t, ctx.Diagnostics())
		assert.Equal(t, lsl.EventListen, e.Kind)
	})
}

func TestMalformedTrees(t *testing.T) {
	t.Run("first state must be default", func(t *testing.T) {
		s := script(nil, state("other", stateEntry()))
		ctx := analyze(t, s)
		assert.Contains(t, errorKinds(ctx), MalformedTree)
	})

	t.Run("missing body", func(t *testing.T) {
		s := script([]Global{&Function{Name: "f"}})
		ctx := analyze(t, s)
		assert.Equal(t, []ErrorKind{MalformedTree}, errorKinds(ctx))
	})

	t.Run("nil expression", func(t *testing.T) {
		s := script(nil, state("default", stateEntry(&ExprStmt{})))
		ctx := analyze(t, s)
		assert.Equal(t, []ErrorKind{MalformedTree}, errorKinds(ctx))
	})

	t.Run("nil statement", func(t *testing.T) {
		s := script(nil, state("default", stateEntry(nil)))
		ctx := analyze(t, s)
		assert.Equal(t, []ErrorKind{MalformedTree}, errorKinds(ctx))
	})
}

func TestLaterPassesSkipAfterScopeErrors(t *testing.T) {
	s := script([]Global{
		fn(lsl.Integer, "f", nil, do(assign("nope", sval("x")))),
	})
	ctx := analyze(t, s)
	assert.Equal(t, []ErrorKind{UndefinedName}, errorKinds(ctx),
		"no NoReturn or TypeMismatch once an error is reported")
}
