package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/lslc/pkg/ir"
	"github.com/chazu/lslc/pkg/lsl"
)

// inEvent wraps statements in the default state's state_entry.
func inEvent(globals []Global, stmts ...Stmt) *Script {
	return script(globals, state("default", stateEntry(stmts...)))
}

func TestIntegerPlusFloatPromotes(t *testing.T) {
	sum := bin(lsl.OpAdd, ival(1), fval(2.5))
	ctx := analyze(t, inEvent(nil, do(sum)))
	require.Empty(t, ctx.Diagnostics())

	assert.Equal(t, lsl.Float, sum.ResultType())
	assert.Equal(t, lsl.Float, sum.LeftAs)
	assert.Equal(t, lsl.Float, sum.RightAs)
}

func TestBinaryTypeMismatch(t *testing.T) {
	ctx := analyze(t, inEvent(nil, do(bin(lsl.OpSub, sval("a"), ival(1)))))
	assert.Equal(t, []ErrorKind{TypeMismatch}, errorKinds(ctx))
}

func TestUnaryOperands(t *testing.T) {
	neg := &UnaryExpr{Op: lsl.OpNeg, Operand: vec(ival(1), ival(2), ival(3))}
	ctx := analyze(t, inEvent(nil, do(neg)))
	require.Empty(t, ctx.Diagnostics())
	assert.Equal(t, lsl.Vector, neg.ResultType())

	ctx = analyze(t, inEvent(nil, do(&UnaryExpr{Op: lsl.OpBoolNot, Operand: fval(1)})))
	assert.Equal(t, []ErrorKind{TypeMismatch}, errorKinds(ctx))
}

func TestAssignmentCompatibility(t *testing.T) {
	tests := []struct {
		name  string
		dst   lsl.Type
		value Expr
		ok    bool
	}{
		{"integer to float", lsl.Float, ival(1), true},
		{"float to integer", lsl.Integer, fval(1), false},
		{"key to string", lsl.String, &CastExpr{To: lsl.Key, Operand: sval("k")}, true},
		{"string to key", lsl.Key, sval("k"), true},
		{"integer to list", lsl.List, ival(1), true},
		{"integer to string", lsl.String, ival(1), false},
		{"vector to rotation", lsl.Quaternion, vec(ival(0), ival(0), ival(0)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := analyze(t, inEvent(nil,
				decl(tt.dst, "v", nil),
				do(assign("v", tt.value)),
			))
			if tt.ok {
				assert.Empty(t, errorKinds(ctx))
			} else {
				assert.Equal(t, []ErrorKind{TypeMismatch}, errorKinds(ctx))
			}
		})
	}
}

func TestDeclarationStringCoercion(t *testing.T) {
	ctx := analyze(t, inEvent(nil,
		decl(lsl.String, "s", vec(ival(1), ival(2), ival(3))),
	))
	assert.Empty(t, errorKinds(ctx), "declarations coerce any value to string")

	ctx = analyze(t, inEvent(nil, decl(lsl.String, "s", list(ival(1)))))
	assert.Empty(t, errorKinds(ctx), "lists flatten into strings")

	ctx = analyze(t, inEvent(nil, decl(lsl.String, "s", call("llResetTime"))))
	assert.Equal(t, []ErrorKind{TypeMismatch}, errorKinds(ctx))
}

func TestListArgumentToStringParameter(t *testing.T) {
	s := script([]Global{
		fn(lsl.Void, "g", []*Param{param(lsl.String, "a")}),
	}, state("default", stateEntry(do(call("g", list(ival(1)))))))

	ctx := analyze(t, s)
	assert.Empty(t, errorKinds(ctx))
}

func TestCompoundAssignment(t *testing.T) {
	t.Run("float += integer", func(t *testing.T) {
		a := &AssignExpr{Target: ident("f"), Op: lsl.OpAdd, Value: ival(1)}
		ctx := analyze(t, inEvent(nil, decl(lsl.Float, "f", nil), do(a)))
		require.Empty(t, ctx.Diagnostics())
		assert.Equal(t, lsl.Float, a.LeftAs)
		assert.Equal(t, lsl.Float, a.RightAs)
	})

	t.Run("integer *= float", func(t *testing.T) {
		a := &AssignExpr{Target: ident("i"), Op: lsl.OpMul, Value: fval(2)}
		ctx := analyze(t, inEvent(nil, decl(lsl.Integer, "i", nil), do(a)))
		assert.Equal(t, []ErrorKind{TypeMismatch}, errorKinds(ctx))
	})

	t.Run("vector *= rotation", func(t *testing.T) {
		a := &AssignExpr{Target: ident("v"), Op: lsl.OpMul, Value: ident("r")}
		ctx := analyze(t, inEvent(nil,
			decl(lsl.Vector, "v", nil), decl(lsl.Quaternion, "r", nil), do(a)))
		assert.Empty(t, errorKinds(ctx))
	})
}

func TestCallArgumentMismatchReportedOnce(t *testing.T) {
	s := script([]Global{
		fn(lsl.Integer, "f", []*Param{param(lsl.Integer, "a")}, ret(ident("a"))),
	}, state("default", stateEntry(do(call("f", ival(1), ival(2), ival(3))))))

	ctx := analyze(t, s)
	assert.Equal(t, []ErrorKind{FunctionArgumentMismatch}, errorKinds(ctx))
}

func TestCallArguments(t *testing.T) {
	tests := []struct {
		name string
		call *CallExpr
		ok   bool
	}{
		{"exact", call("llSay", ival(0), sval("x")), true},
		{"integer coerced to string", call("llSay", ival(0), ival(5)), true},
		{"float into integer", call("llSay", fval(0), sval("x")), false},
		{"too few", call("llSay", ival(0)), false},
		{"value into list", call("llGetListLength", sval("x")), true},
		{"list into string", call("llSay", ival(0), list()), true},
		{"list into integer", call("llSay", list(), sval("x")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := analyze(t, inEvent(nil, do(tt.call)))
			if tt.ok {
				assert.Empty(t, errorKinds(ctx))
			} else {
				assert.Equal(t, []ErrorKind{FunctionArgumentMismatch}, errorKinds(ctx))
			}
		})
	}
}

func TestListLiterals(t *testing.T) {
	ok := list(ival(1), sval("a"), vec(fval(1), fval(2), fval(3)))
	ctx := analyze(t, inEvent(nil, do(ok)))
	require.Empty(t, ctx.Diagnostics())
	assert.Equal(t, lsl.List, ok.ResultType())

	ctx = analyze(t, inEvent(nil, do(list(ival(1), list()))))
	assert.Equal(t, []ErrorKind{ListNestingViolation}, errorKinds(ctx))
}

func TestVectorComponents(t *testing.T) {
	ctx := analyze(t, inEvent(nil, do(vec(ival(1), fval(2), ival(3)))))
	assert.Empty(t, errorKinds(ctx), "integer components promote to float")

	ctx = analyze(t, inEvent(nil, do(vec(ival(1), sval("2"), ival(3)))))
	assert.Equal(t, []ErrorKind{TypeMismatch}, errorKinds(ctx))
}

func TestMemberAccess(t *testing.T) {
	x := member("v", "x")
	s := member("r", "s")
	ctx := analyze(t, inEvent(nil,
		decl(lsl.Vector, "v", nil),
		decl(lsl.Quaternion, "r", nil),
		do(x), do(s),
	))
	require.Empty(t, ctx.Diagnostics())
	assert.Equal(t, lsl.Float, x.ResultType())
	assert.Equal(t, lsl.Float, s.ResultType())

	for _, bad := range []*Identifier{member("v", "s"), member("i", "x"), member("v", "w")} {
		ctx := analyze(t, inEvent(nil,
			decl(lsl.Vector, "v", nil),
			decl(lsl.Integer, "i", nil),
			do(bad),
		))
		assert.Equal(t, []ErrorKind{TypeMismatch}, errorKinds(ctx), "%s.%s", bad.Name, bad.Member)
	}
}

func TestCasts(t *testing.T) {
	c := &CastExpr{To: lsl.String, Operand: fval(1)}
	ctx := analyze(t, inEvent(nil, do(c)))
	require.Empty(t, ctx.Diagnostics())
	assert.Equal(t, lsl.String, c.ResultType())

	ctx = analyze(t, inEvent(nil, do(&CastExpr{To: lsl.Vector, Operand: ival(1)})))
	assert.Equal(t, []ErrorKind{TypeMismatch}, errorKinds(ctx))
}

func TestIncDecRequiresNumber(t *testing.T) {
	ctx := analyze(t, inEvent(nil,
		decl(lsl.String, "s", nil),
		do(&IncDecExpr{Target: ident("s")}),
	))
	assert.Equal(t, []ErrorKind{TypeMismatch}, errorKinds(ctx))
}

func TestReturnValueType(t *testing.T) {
	s := script([]Global{fn(lsl.Integer, "f", nil, ret(sval("no")))})
	ctx := analyze(t, s)
	assert.Equal(t, []ErrorKind{TypeMismatch}, errorKinds(ctx))
}

func TestVoidCondition(t *testing.T) {
	s := script([]Global{
		fn(lsl.Void, "g", nil),
		fn(lsl.Void, "f", nil, &WhileStmt{Cond: call("g"), Body: &EmptyStmt{}}),
	})
	ctx := analyze(t, s)
	assert.Equal(t, []ErrorKind{TypeMismatch}, errorKinds(ctx))
}

func TestGlobalInitializers(t *testing.T) {
	t.Run("constant folding", func(t *testing.T) {
		a := global(lsl.Float, "a", &UnaryExpr{Op: lsl.OpNeg, Operand: ival(2)})
		b := global(lsl.Vector, "b", vec(ident("a"), ival(1), fval(0.5)))
		c := global(lsl.List, "c", list(ident("b"), sval("x")))
		d := global(lsl.String, "d", ival(42))
		e := global(lsl.Quaternion, "e", nil)
		f := global(lsl.String, "f", list(ival(7), sval("up")))
		ctx := analyze(t, script([]Global{a, b, c, d, e, f}))
		require.Empty(t, ctx.Diagnostics())

		assert.Equal(t, ir.Value{Type: lsl.Float, Float: -2}, *a.Entry.Const)
		assert.Equal(t, [4]float32{-2, 1, 0.5, 0}, b.Entry.Const.Vec)
		require.Len(t, c.Entry.Const.List, 2)
		assert.Equal(t, lsl.Vector, c.Entry.Const.List[0].Type)
		assert.Equal(t, "42", d.Entry.Const.Str)
		assert.Equal(t, float32(1), e.Entry.Const.Vec[3], "rotations default to identity")
		assert.Equal(t, ir.Value{Type: lsl.String, Str: "7up"}, *f.Entry.Const)
	})

	t.Run("non-constant", func(t *testing.T) {
		s := script([]Global{global(lsl.Integer, "a", call("llStringLength", sval("x")))})
		ctx := analyze(t, s)
		assert.Equal(t, []ErrorKind{NonConstantGlobalInitializer}, errorKinds(ctx))
	})

	t.Run("mismatch", func(t *testing.T) {
		s := script([]Global{global(lsl.Integer, "a", sval("x"))})
		ctx := analyze(t, s)
		assert.Equal(t, []ErrorKind{TypeMismatch}, errorKinds(ctx))
	})
}

// annotations collects the type of every expression in a tree, in traversal
// order.
func annotations(s *Script) []lsl.Type {
	var out []lsl.Type
	var visitExpr func(e Expr)
	visitExpr = func(e Expr) {
		if e == nil {
			return
		}
		out = append(out, e.ResultType())
		switch e := e.(type) {
		case *BinaryExpr:
			out = append(out, e.LeftAs, e.RightAs)
			visitExpr(e.Left)
			visitExpr(e.Right)
		case *UnaryExpr:
			visitExpr(e.Operand)
		case *AssignExpr:
			visitExpr(e.Target)
			visitExpr(e.Value)
		case *CallExpr:
			for _, a := range e.Args {
				visitExpr(a)
			}
		case *ListLiteral:
			for _, el := range e.Elements {
				visitExpr(el)
			}
		case *VectorLiteral:
			for _, c := range e.Components() {
				visitExpr(c)
			}
		case *CastExpr:
			visitExpr(e.Operand)
		}
	}
	var visitStmt func(s Stmt)
	visitStmt = func(s Stmt) {
		switch s := s.(type) {
		case *Block:
			for _, st := range s.Stmts {
				visitStmt(st)
			}
		case *ExprStmt:
			visitExpr(s.X)
		case *DeclStmt:
			visitExpr(s.Init)
		case *ReturnStmt:
			visitExpr(s.Value)
		case *IfStmt:
			visitExpr(s.Cond)
			visitStmt(s.Then)
		}
	}
	for _, f := range s.Functions() {
		visitStmt(f.Body)
	}
	for _, st := range s.States {
		for _, e := range st.Events {
			visitStmt(e.Body)
		}
	}
	return out
}

func TestTypeCheckIsIdempotent(t *testing.T) {
	s := script([]Global{
		fn(lsl.Float, "f", []*Param{param(lsl.Integer, "a")},
			decl(lsl.List, "l", list(ident("a"), fval(1))),
			&IfStmt{Cond: ident("a"), Then: ret(bin(lsl.OpMul, ident("a"), fval(2)))},
			ret(&CastExpr{To: lsl.Float, Operand: sval("3")}),
		),
	}, state("default", stateEntry(
		do(call("llSay", ival(0), call("f", ival(1)))),
		do(assign("x", vec(ival(1), ival(2), ival(3)))),
	)))
	s.States[0].Events[0].Body.Stmts = append([]Stmt{decl(lsl.Vector, "x", nil)}, s.States[0].Events[0].Body.Stmts...)

	ctx := analyze(t, s)
	require.Empty(t, ctx.Diagnostics())
	first := annotations(s)
	require.NotEmpty(t, first)

	CheckTypes(ctx, s)
	require.Empty(t, ctx.Diagnostics())
	assert.Equal(t, first, annotations(s))
}
