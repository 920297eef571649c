// Package il renders a compiled program as CIL-flavoured assembly text. It reads
// the same IR as the image assembler; the output is for inspection and for
// feeding an external assembler, not for the script VM.
package il

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/lslc/pkg/ir"
	"github.com/chazu/lslc/pkg/lsl"
)

var log = commonlog.GetLogger("lslc.il")

const (
	runtimeClass = "[LslUserScript]LindenLab.SecondLife.LslUserScript"
	libraryClass = "[LslLibrary]LindenLab.SecondLife.Library"
	scriptClass  = "LSL_Script"
)

var typeNames = map[lsl.Type]string{
	lsl.Void:       "void",
	lsl.Integer:    "int32",
	lsl.Float:      "float32",
	lsl.String:     "string",
	lsl.Key:        "valuetype [ScriptTypes]LindenLab.SecondLife.Key",
	lsl.Vector:     "class [ScriptTypes]LindenLab.SecondLife.Vector",
	lsl.Quaternion: "class [ScriptTypes]LindenLab.SecondLife.Quaternion",
	lsl.List:       "class [mscorlib]System.Collections.ArrayList",
}

// TypeName returns the CIL spelling of t.
func TypeName(t lsl.Type) string {
	return typeNames[t]
}

// Backend emits IL text. It satisfies compiler.Backend.
type Backend struct{}

// Name identifies the backend in configuration.
func (Backend) Name() string { return "il" }

// Emit renders prog.
func (Backend) Emit(prog *ir.Program) ([]byte, error) {
	text, err := Generate(prog)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// Generate renders prog as one class holding globals as static fields, functions
// as static methods and event handlers as instance methods.
func Generate(prog *ir.Program) (string, error) {
	w := &writer{prog: prog}
	w.line(".assembly extern mscorlib {}")
	w.line(".assembly extern LslUserScript {}")
	w.line(".assembly extern LslLibrary {}")
	w.line(".assembly extern ScriptTypes {}")
	w.line(".assembly '%s' {}", scriptClass)
	w.line("")
	w.line(".class public auto ansi beforefieldinit %s extends %s", scriptClass, runtimeClass)
	w.line("{")
	w.indent++

	for _, g := range prog.Globals {
		w.line(".field public static %s '%s'", TypeName(g.Type), g.Name)
	}
	w.constructor()
	for _, f := range prog.Functions {
		name := "g" + f.Name
		if err := w.method("static", name, &f.Body); err != nil {
			return "", fmt.Errorf("function %s: %w", f.Name, err)
		}
	}
	for _, s := range prog.States {
		for _, e := range s.Events {
			name := fmt.Sprintf("e%s%s", s.Name, e.Kind)
			if err := w.method("instance", name, &e.Body); err != nil {
				return "", fmt.Errorf("state %s event %s: %w", s.Name, e.Kind, err)
			}
		}
	}

	w.indent--
	w.line("}")
	log.Debugf("generated IL: %d lines", w.lines)
	return w.sb.String(), nil
}

type writer struct {
	prog   *ir.Program
	sb     strings.Builder
	indent int
	lines  int

	body *ir.Body
}

func (w *writer) line(format string, args ...any) {
	if format != "" {
		w.sb.WriteString(strings.Repeat("    ", w.indent))
		fmt.Fprintf(&w.sb, format, args...)
	}
	w.sb.WriteByte('\n')
	w.lines++
}

// constructor initialises the static fields.
func (w *writer) constructor() {
	w.line(".method private hidebysig specialname rtspecialname static void .cctor() cil managed")
	w.line("{")
	w.indent++
	w.line(".maxstack 500")
	for _, g := range w.prog.Globals {
		v := g.Value
		if v.Type == lsl.Void {
			v = ir.Zero(g.Type)
		}
		w.constant(v)
		if v.Type != g.Type {
			w.cast(v.Type, g.Type)
		}
		w.line("stsfld %s %s::'%s'", TypeName(g.Type), scriptClass, g.Name)
	}
	w.line("ret")
	w.indent--
	w.line("}")
}

func (w *writer) method(kind, name string, b *ir.Body) error {
	params := make([]string, len(b.Params))
	for i, p := range b.Params {
		params[i] = fmt.Sprintf("%s '%s'", TypeName(p.Type), p.Name)
	}
	w.line("")
	w.line(".method public hidebysig %s %s '%s'(%s) cil managed", kind, TypeName(b.Return), name, strings.Join(params, ", "))
	w.line("{")
	w.indent++
	w.line(".maxstack 500")
	if len(b.Locals) > 0 {
		locals := make([]string, len(b.Locals))
		for i, l := range b.Locals {
			locals[i] = fmt.Sprintf("%s '%s'", TypeName(l.Type), l.Name)
		}
		w.line(".locals init (%s)", strings.Join(locals, ", "))
	}
	w.body = b
	for _, in := range b.Code {
		if err := w.instr(kind == "instance", in); err != nil {
			return err
		}
	}
	w.indent--
	w.line("}")
	return nil
}

// slot maps a frame offset to an argument or local index.
func (w *writer) slot(offset int32) (arg bool, index int, typ lsl.Type, err error) {
	off := 0
	for i, p := range w.body.Params {
		if int32(off) == offset {
			return true, i, p.Type, nil
		}
		off += p.Type.Size()
	}
	for i, l := range w.body.Locals {
		if int32(off) == offset {
			return false, i, l.Type, nil
		}
		off += l.Type.Size()
	}
	return false, 0, lsl.Void, fmt.Errorf("no frame slot at offset %d", offset)
}

// variable resolves a push or store operand to its load and store instructions.
func (w *writer) variable(instance bool, in ir.Instr) (load, store string, typ lsl.Type, err error) {
	if in.Global {
		g, err := w.global(in.Offset)
		if err != nil {
			return "", "", lsl.Void, err
		}
		field := fmt.Sprintf("%s %s::'%s'", TypeName(g.Type), scriptClass, g.Name)
		return "ldsfld " + field, "stsfld " + field, g.Type, nil
	}
	arg, idx, typ, err := w.slot(in.Offset)
	if err != nil {
		return "", "", lsl.Void, err
	}
	if arg {
		if instance {
			idx++
		}
		return fmt.Sprintf("ldarg.s %d", idx), fmt.Sprintf("starg.s %d", idx), typ, nil
	}
	return fmt.Sprintf("ldloc.s %d", idx), fmt.Sprintf("stloc.s %d", idx), typ, nil
}

func (w *writer) global(offset int32) (ir.Global, error) {
	for _, g := range w.prog.Globals {
		if int32(g.Offset) == offset {
			return g, nil
		}
	}
	return ir.Global{}, fmt.Errorf("no global at offset %d", offset)
}

func (w *writer) instr(instance bool, in ir.Instr) error {
	switch in.Op {
	case ir.OpNop, ir.OpCallBegin, ir.OpEnterFrame, ir.OpReturnValue, ir.OpUnwind:
		// Frames are managed by the CLR.

	case ir.OpPushConst:
		w.constant(in.Const)

	case ir.OpPushEmpty:
		w.constant(ir.Zero(in.T))

	case ir.OpPushLocal, ir.OpPushGlobal:
		in.Global = in.Op == ir.OpPushGlobal
		load, _, typ, err := w.variable(instance, in)
		if err != nil {
			return err
		}
		w.line("%s", load)
		if in.Member != "" {
			w.line("ldfld float32 %s::'%s'", TypeName(typ), in.Member)
		}

	case ir.OpStore:
		load, store, typ, err := w.variable(instance, in)
		if err != nil {
			return err
		}
		if in.Keep {
			w.line("dup")
		}
		if in.Member != "" {
			idx, _ := ir.MemberOffset(in.Member)
			w.line("%s", load)
			w.line("ldc.i4 %d", idx/4)
			w.line("call %s %s::'WithComponent'(float32, %s, int32)", TypeName(typ), runtimeClass, TypeName(typ))
		}
		w.line("%s", store)

	case ir.OpPop:
		w.line("pop")

	case ir.OpUnary:
		w.unary(in.Operator, in.T)

	case ir.OpBinary:
		w.binary(in.Operator, in.T, in.T2)

	case ir.OpCast:
		w.cast(in.T, in.T2)

	case ir.OpToList:
		w.line("ldc.i4 %d", in.Index)
		w.line("call %s %s::CreateList(int32)", TypeName(lsl.List), runtimeClass)

	case ir.OpBuild:
		if in.T == lsl.Quaternion {
			w.line("call %s %s::CreateQuaternion(float32, float32, float32, float32)", TypeName(in.T), runtimeClass)
		} else {
			w.line("call %s %s::CreateVector(float32, float32, float32)", TypeName(in.T), runtimeClass)
		}

	case ir.OpLabel:
		w.line("LabelTempJump%d:", in.Label)

	case ir.OpJump:
		w.line("br LabelTempJump%d", in.Label)

	case ir.OpJumpIf:
		w.truth(in.T)
		w.line("brtrue LabelTempJump%d", in.Label)

	case ir.OpJumpNot:
		w.truth(in.T)
		w.line("brfalse LabelTempJump%d", in.Label)

	case ir.OpCall:
		params := make([]string, len(in.Types))
		for i, t := range in.Types {
			params[i] = TypeName(t)
		}
		if in.Library {
			w.line("call %s %s::'%s'(%s)", TypeName(in.T), libraryClass, in.Name, strings.Join(params, ", "))
		} else {
			w.line("call %s %s::'g%s'(%s)", TypeName(in.T), scriptClass, in.Name, strings.Join(params, ", "))
		}

	case ir.OpReturn:
		w.line("ret")

	case ir.OpState:
		w.line("ldarg.0")
		w.line("ldstr %q", in.Name)
		w.line("call instance void %s::ChangeState(string)", runtimeClass)

	case ir.OpPrint:
		w.line("call void %s::Print(%s)", runtimeClass, TypeName(in.T))

	default:
		return fmt.Errorf("unknown IR op %s", in.Op)
	}
	return nil
}

func formatFloat(f float32) string {
	s := strconv.FormatFloat(float64(f), 'f', -1, 32)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func (w *writer) constant(v ir.Value) {
	switch v.Type {
	case lsl.Integer:
		w.line("ldc.i4 %d", v.Int)
	case lsl.Float:
		w.line("ldc.r4 %s", formatFloat(v.Float))
	case lsl.String:
		w.line("ldstr %q", v.Str)
	case lsl.Key:
		w.line("ldstr %q", v.Str)
		w.line("call %s %s::CreateKey(string)", TypeName(lsl.Key), runtimeClass)
	case lsl.Vector:
		for _, f := range v.Vec[:3] {
			w.line("ldc.r4 %s", formatFloat(f))
		}
		w.line("call %s %s::CreateVector(float32, float32, float32)", TypeName(lsl.Vector), runtimeClass)
	case lsl.Quaternion:
		for _, f := range v.Vec {
			w.line("ldc.r4 %s", formatFloat(f))
		}
		w.line("call %s %s::CreateQuaternion(float32, float32, float32, float32)", TypeName(lsl.Quaternion), runtimeClass)
	case lsl.List:
		for _, e := range v.List {
			w.constant(e)
		}
		w.line("ldc.i4 %d", len(v.List))
		w.line("call %s %s::CreateList(int32)", TypeName(lsl.List), runtimeClass)
	}
}

// truth converts the value on top of the stack to an int32 condition.
func (w *writer) truth(t lsl.Type) {
	if t != lsl.Integer {
		w.line("call bool %s::IsTrue(%s)", runtimeClass, TypeName(t))
	}
}

var primitiveBinary = map[lsl.Operator][]string{
	lsl.OpAdd:     {"add"},
	lsl.OpSub:     {"sub"},
	lsl.OpMul:     {"mul"},
	lsl.OpDiv:     {"div"},
	lsl.OpMod:     {"rem"},
	lsl.OpBitAnd:  {"and"},
	lsl.OpBitOr:   {"or"},
	lsl.OpBitXor:  {"xor"},
	lsl.OpShl:     {"shl"},
	lsl.OpShr:     {"shr"},
	lsl.OpEq:      {"ceq"},
	lsl.OpNeq:     {"ceq", "ldc.i4.0", "ceq"},
	lsl.OpLess:    {"clt"},
	lsl.OpGreater: {"cgt"},
	lsl.OpLeq:     {"cgt", "ldc.i4.0", "ceq"},
	lsl.OpGeq:     {"clt", "ldc.i4.0", "ceq"},
	lsl.OpBoolAnd: {"and", "ldc.i4.0", "cgt.un"},
	lsl.OpBoolOr:  {"or", "ldc.i4.0", "cgt.un"},
}

var operatorNames = map[lsl.Operator]string{
	lsl.OpAdd:     "Add",
	lsl.OpSub:     "Subtract",
	lsl.OpMul:     "Multiply",
	lsl.OpDiv:     "Divide",
	lsl.OpMod:     "Modulo",
	lsl.OpEq:      "Equals",
	lsl.OpNeq:     "NotEquals",
	lsl.OpLeq:     "LessOrEqual",
	lsl.OpGeq:     "GreaterOrEqual",
	lsl.OpLess:    "Less",
	lsl.OpGreater: "Greater",
	lsl.OpNeg:     "Negate",
	lsl.OpBitNot:  "BitwiseNot",
	lsl.OpBoolNot: "LogicalNot",
}

func (w *writer) binary(op lsl.Operator, l, r lsl.Type) {
	if l.IsNumeric() && l == r {
		if seq, ok := primitiveBinary[op]; ok {
			for _, s := range seq {
				w.line("%s", s)
			}
			return
		}
	}
	res, _ := lsl.BinaryResult(op, l, r)
	w.line("call %s %s::'%s'(%s, %s)", TypeName(res), runtimeClass, operatorNames[op], TypeName(l), TypeName(r))
}

func (w *writer) unary(op lsl.Operator, t lsl.Type) {
	switch {
	case op == lsl.OpNeg && t.IsNumeric():
		w.line("neg")
	case op == lsl.OpBitNot && t == lsl.Integer:
		w.line("not")
	case op == lsl.OpBoolNot && t == lsl.Integer:
		w.line("ldc.i4.0")
		w.line("ceq")
	default:
		w.line("call %s %s::'%s'(%s)", TypeName(t), runtimeClass, operatorNames[op], TypeName(t))
	}
}

func (w *writer) cast(from, to lsl.Type) {
	switch {
	case from == to:
	case from == lsl.Integer && to == lsl.Float:
		w.line("conv.r4")
	case from == lsl.Float && to == lsl.Integer:
		w.line("conv.i4")
	default:
		w.line("call %s %s::'To%s'(%s)", TypeName(to), runtimeClass, capitalize(to.String()), TypeName(from))
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
