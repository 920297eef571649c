package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/lslc/pkg/ir"
	"github.com/chazu/lslc/pkg/lsl"
)

// fold evaluates a constant expression: literals, negated numeric literals,
// earlier globals and vector, rotation and list literals built from those.
// It reports false for anything that needs run-time evaluation.
func fold(e Expr) (ir.Value, bool) {
	switch e := e.(type) {
	case *IntLiteral:
		return ir.Value{Type: lsl.Integer, Int: e.Value}, true
	case *FloatLiteral:
		return ir.Value{Type: lsl.Float, Float: e.Value}, true
	case *StringLiteral:
		return ir.Value{Type: lsl.String, Str: e.Value}, true
	case *ParenExpr:
		return fold(e.Inner)
	case *UnaryExpr:
		if e.Op != lsl.OpNeg {
			return ir.Value{}, false
		}
		v, ok := fold(e.Operand)
		if !ok {
			return ir.Value{}, false
		}
		switch v.Type {
		case lsl.Integer:
			v.Int = -v.Int
		case lsl.Float:
			v.Float = -v.Float
		case lsl.Vector, lsl.Quaternion:
			for i := range v.Vec {
				v.Vec[i] = -v.Vec[i]
			}
		default:
			return ir.Value{}, false
		}
		return v, true
	case *Identifier:
		if e.Entry == nil || e.Entry.Kind != SymGlobal || e.Entry.Const == nil {
			return ir.Value{}, false
		}
		v := *e.Entry.Const
		if e.Member == "" {
			return v, true
		}
		off, ok := ir.MemberOffset(e.Member)
		if !ok || (v.Type != lsl.Vector && v.Type != lsl.Quaternion) {
			return ir.Value{}, false
		}
		return ir.Value{Type: lsl.Float, Float: v.Vec[off/4]}, true
	case *VectorLiteral:
		return foldComponents(lsl.Vector, e.Components())
	case *QuaternionLiteral:
		return foldComponents(lsl.Quaternion, e.Components())
	case *ListLiteral:
		v := ir.Value{Type: lsl.List, List: make([]ir.Value, 0, len(e.Elements))}
		for _, el := range e.Elements {
			ev, ok := fold(el)
			if !ok || ev.Type == lsl.List {
				return ir.Value{}, false
			}
			v.List = append(v.List, ev)
		}
		return v, true
	}
	return ir.Value{}, false
}

func foldComponents(t lsl.Type, comps []Expr) (ir.Value, bool) {
	v := ir.Value{Type: t}
	for i, c := range comps {
		cv, ok := fold(c)
		if !ok {
			return ir.Value{}, false
		}
		switch cv.Type {
		case lsl.Integer:
			v.Vec[i] = float32(cv.Int)
		case lsl.Float:
			v.Vec[i] = cv.Float
		default:
			return ir.Value{}, false
		}
	}
	return v, true
}

// convert applies the implicit conversions of a declaration to a constant.
func convert(v ir.Value, to lsl.Type) (ir.Value, bool) {
	if v.Type == to {
		return v, true
	}
	switch to {
	case lsl.Float:
		if v.Type == lsl.Integer {
			return ir.Value{Type: lsl.Float, Float: float32(v.Int)}, true
		}
	case lsl.Key:
		if v.Type == lsl.String {
			return ir.Value{Type: lsl.Key, Str: v.Str}, true
		}
	case lsl.String:
		if v.Type == lsl.Void {
			return ir.Value{}, false
		}
		return ir.Value{Type: lsl.String, Str: formatConst(v)}, true
	case lsl.List:
		if v.Type != lsl.Void {
			return ir.Value{Type: lsl.List, List: []ir.Value{v}}, true
		}
	}
	return ir.Value{}, false
}

// formatConst renders a constant the way a string cast does.
func formatConst(v ir.Value) string {
	switch v.Type {
	case lsl.Integer:
		return fmt.Sprintf("%d", v.Int)
	case lsl.Float:
		return fmt.Sprintf("%f", v.Float)
	case lsl.String, lsl.Key:
		return v.Str
	case lsl.Vector:
		return fmt.Sprintf("<%.5f, %.5f, %.5f>", v.Vec[0], v.Vec[1], v.Vec[2])
	case lsl.Quaternion:
		return fmt.Sprintf("<%.5f, %.5f, %.5f, %.5f>", v.Vec[0], v.Vec[1], v.Vec[2], v.Vec[3])
	case lsl.List:
		var sb strings.Builder
		for _, el := range v.List {
			sb.WriteString(formatConst(el))
		}
		return sb.String()
	}
	return ""
}
