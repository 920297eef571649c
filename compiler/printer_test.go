package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chazu/lslc/pkg/lsl"
)

func TestExprString(t *testing.T) {
	tests := []struct {
		expr Expr
		want string
	}{
		{ival(-3), "-3"},
		{fval(2), "2.0"},
		{fval(0.5), "0.5"},
		{sval("a \"b\"\n"), `"a \"b\"\n"`},
		{vec(ival(1), fval(2), ident("z")), "<1, 2.0, z>"},
		{&QuaternionLiteral{X: ival(0), Y: ival(0), Z: ival(0), S: ival(1)}, "<0, 0, 0, 1>"},
		{list(ival(1), sval("x")), `[1, "x"]`},
		{member("pos", "x"), "pos.x"},
		{&UnaryExpr{Op: lsl.OpBoolNot, Operand: ident("b")}, "!b"},
		{bin(lsl.OpShl, ival(1), ival(4)), "1 << 4"},
		{&AssignExpr{Target: ident("n"), Op: lsl.OpMul, Value: ival(2)}, "n *= 2"},
		{&IncDecExpr{Target: ident("i"), Prefix: true}, "++i"},
		{&IncDecExpr{Target: ident("i"), Decrement: true}, "i--"},
		{&CastExpr{To: lsl.Quaternion, Operand: sval("r")}, `(rotation)"r"`},
		{call("llSay", ival(0), ident("msg")), "llSay(0, msg)"},
		{&ParenExpr{Inner: bin(lsl.OpAdd, ival(1), ival(2))}, "(1 + 2)"},
		{&PrintExpr{Value: ident("x")}, "print(x)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ExprString(tt.expr))
		})
	}
}

func TestFormatScript(t *testing.T) {
	s := script(
		[]Global{
			global(lsl.Integer, "count", ival(0)),
			global(lsl.String, "name", nil),
			fn(lsl.Integer, "twice", []*Param{param(lsl.Integer, "n")},
				ret(bin(lsl.OpMul, ident("n"), ival(2)))),
			fn(lsl.Void, "reset", nil,
				&IfStmt{Cond: ident("count"), Then: do(assign("count", ival(0))), Else: block()}),
		},
		state("default",
			stateEntry(do(call("llSay", ival(0), sval("hi")))),
			event("touch_start", []*Param{param(lsl.Integer, "n")},
				&ForStmt{
					Init: []Expr{assign("count", ival(0))},
					Cond: bin(lsl.OpLess, ident("count"), ident("n")),
					Step: []Expr{&IncDecExpr{Target: ident("count")}},
					Body: &EmptyStmt{},
				},
				&StateStmt{State: "done"},
			),
		),
		state("done", stateEntry(&JumpStmt{Label: "x"}, &LabelStmt{Name: "x"}, ret(nil))),
	)

	want := `integer count = 0;
string name;

integer twice(integer n)
{
    return n * 2;
}

reset()
{
    if (count)
        count = 0;
    else
    {
    }
}

default
{
    state_entry()
    {
        llSay(0, "hi");
    }

    touch_start(integer n)
    {
        for (count = 0; count < n; count++)
            ;
        state done;
    }
}

state done
{
    state_entry()
    {
        jump x;
        @x;
        return;
    }
}
`
	got := Format(s)
	assert.Equal(t, want, got)
	for i, l := range strings.Split(got, "\n") {
		assert.Equal(t, strings.TrimRight(l, " "), l, "trailing spaces on line %d", i+1)
	}
}
