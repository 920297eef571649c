package compiler

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/lslc/pkg/lsl"
)

// Syntax trees cross process boundaries (parser output, cache keys) as CBOR.
// Each node is a wireNode tagged with its kind; positional children go in Kids
// with null for absent optional children.

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("compiler: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type wireNode struct {
	Kind   string        `cbor:"1,keyasint"`
	Line   int           `cbor:"2,keyasint,omitempty"`
	Column int           `cbor:"3,keyasint,omitempty"`
	Name   string        `cbor:"4,keyasint,omitempty"`
	Type   lsl.Type      `cbor:"5,keyasint,omitempty"`
	Op     lsl.Operator  `cbor:"6,keyasint,omitempty"`
	Int    int32         `cbor:"7,keyasint,omitempty"`
	Float  float32       `cbor:"8,keyasint,omitempty"`
	Str    string        `cbor:"9,keyasint,omitempty"`
	Member string        `cbor:"10,keyasint,omitempty"`
	Flags  uint8         `cbor:"11,keyasint,omitempty"`
	Kids   []*wireNode   `cbor:"12,keyasint,omitempty"`
	Lists  [][]*wireNode `cbor:"13,keyasint,omitempty"`
}

const (
	flagDecrement uint8 = 1 << iota
	flagPrefix
)

// MarshalScript serializes a syntax tree to canonical CBOR. Annotations added
// by the passes are not included.
func MarshalScript(s *Script) ([]byte, error) {
	return cborEncMode.Marshal(toWire(s))
}

// UnmarshalScript deserializes a syntax tree from CBOR.
func UnmarshalScript(data []byte) (*Script, error) {
	var w wireNode
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("compiler: unmarshal script: %w", err)
	}
	s, err := scriptFromWire(&w)
	if err != nil {
		return nil, fmt.Errorf("compiler: unmarshal script: %w", err)
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func wireAt(kind string, n Node) *wireNode {
	pos := n.Span().Start
	return &wireNode{Kind: kind, Line: pos.Line, Column: pos.Column}
}

func toWire(s *Script) *wireNode {
	w := wireAt("script", s)
	globals := make([]*wireNode, len(s.Globals))
	for i, g := range s.Globals {
		switch g := g.(type) {
		case *GlobalVar:
			gw := wireAt("global", g)
			gw.Name, gw.Type = g.Name, g.Type
			gw.Kids = []*wireNode{exprToWire(g.Init)}
			globals[i] = gw
		case *Function:
			fw := wireAt("function", g)
			fw.Name, fw.Type = g.Name, g.Return
			fw.Kids = []*wireNode{stmtToWire(g.Body)}
			fw.Lists = [][]*wireNode{paramsToWire(g.Params)}
			globals[i] = fw
		}
	}
	states := make([]*wireNode, len(s.States))
	for i, st := range s.States {
		sw := wireAt("state", st)
		sw.Name = st.Name
		for _, e := range st.Events {
			ew := wireAt("event", e)
			ew.Name = e.Name
			ew.Kids = []*wireNode{stmtToWire(e.Body)}
			ew.Lists = [][]*wireNode{paramsToWire(e.Params)}
			sw.Kids = append(sw.Kids, ew)
		}
		states[i] = sw
	}
	w.Lists = [][]*wireNode{globals, states}
	return w
}

func paramsToWire(params []*Param) []*wireNode {
	out := make([]*wireNode, len(params))
	for i, p := range params {
		pw := wireAt("param", p)
		pw.Name, pw.Type = p.Name, p.Type
		out[i] = pw
	}
	return out
}

func stmtToWire(s Stmt) *wireNode {
	if s == nil {
		return nil
	}
	var w *wireNode
	switch s := s.(type) {
	case *Block:
		if s == nil {
			return nil
		}
		w = wireAt("block", s)
		for _, st := range s.Stmts {
			w.Kids = append(w.Kids, stmtToWire(st))
		}
	case *ExprStmt:
		w = wireAt("expr", s)
		w.Kids = []*wireNode{exprToWire(s.X)}
	case *DeclStmt:
		w = wireAt("decl", s)
		w.Name, w.Type = s.Name, s.Type
		w.Kids = []*wireNode{exprToWire(s.Init)}
	case *IfStmt:
		w = wireAt("if", s)
		w.Kids = []*wireNode{exprToWire(s.Cond), stmtToWire(s.Then), stmtToWire(s.Else)}
	case *WhileStmt:
		w = wireAt("while", s)
		w.Kids = []*wireNode{exprToWire(s.Cond), stmtToWire(s.Body)}
	case *DoWhileStmt:
		w = wireAt("do", s)
		w.Kids = []*wireNode{stmtToWire(s.Body), exprToWire(s.Cond)}
	case *ForStmt:
		w = wireAt("for", s)
		w.Kids = []*wireNode{exprToWire(s.Cond), stmtToWire(s.Body)}
		w.Lists = [][]*wireNode{exprsToWire(s.Init), exprsToWire(s.Step)}
	case *JumpStmt:
		w = wireAt("jump", s)
		w.Name = s.Label
	case *LabelStmt:
		w = wireAt("label", s)
		w.Name = s.Name
	case *ReturnStmt:
		w = wireAt("return", s)
		w.Kids = []*wireNode{exprToWire(s.Value)}
	case *StateStmt:
		w = wireAt("goto", s)
		w.Name = s.State
	case *EmptyStmt:
		w = wireAt("empty", s)
	}
	return w
}

func exprsToWire(es []Expr) []*wireNode {
	out := make([]*wireNode, len(es))
	for i, e := range es {
		out[i] = exprToWire(e)
	}
	return out
}

func exprToWire(e Expr) *wireNode {
	if e == nil {
		return nil
	}
	var w *wireNode
	switch e := e.(type) {
	case *IntLiteral:
		w = wireAt("int", e)
		w.Int = e.Value
	case *FloatLiteral:
		w = wireAt("float", e)
		w.Float = e.Value
	case *StringLiteral:
		w = wireAt("string", e)
		w.Str = e.Value
	case *VectorLiteral:
		w = wireAt("vector", e)
		w.Kids = exprsToWire(e.Components())
	case *QuaternionLiteral:
		w = wireAt("rotation", e)
		w.Kids = exprsToWire(e.Components())
	case *ListLiteral:
		w = wireAt("list", e)
		w.Kids = exprsToWire(e.Elements)
	case *Identifier:
		if e == nil {
			return nil
		}
		w = wireAt("ident", e)
		w.Name, w.Member = e.Name, e.Member
	case *UnaryExpr:
		w = wireAt("unary", e)
		w.Op = e.Op
		w.Kids = []*wireNode{exprToWire(e.Operand)}
	case *BinaryExpr:
		w = wireAt("binary", e)
		w.Op = e.Op
		w.Kids = []*wireNode{exprToWire(e.Left), exprToWire(e.Right)}
	case *AssignExpr:
		w = wireAt("assign", e)
		w.Op = e.Op
		w.Kids = []*wireNode{exprToWire(e.Target), exprToWire(e.Value)}
	case *IncDecExpr:
		w = wireAt("incdec", e)
		if e.Decrement {
			w.Flags |= flagDecrement
		}
		if e.Prefix {
			w.Flags |= flagPrefix
		}
		w.Kids = []*wireNode{exprToWire(e.Target)}
	case *CastExpr:
		w = wireAt("cast", e)
		w.Type = e.To
		w.Kids = []*wireNode{exprToWire(e.Operand)}
	case *CallExpr:
		w = wireAt("call", e)
		w.Name = e.Name
		w.Kids = exprsToWire(e.Args)
	case *ParenExpr:
		w = wireAt("paren", e)
		w.Kids = []*wireNode{exprToWire(e.Inner)}
	case *PrintExpr:
		w = wireAt("print", e)
		w.Kids = []*wireNode{exprToWire(e.Value)}
	}
	return w
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

func (w *wireNode) span() Span {
	return Span{Start: Position{Line: w.Line, Column: w.Column}}
}

func (w *wireNode) kid(i int) *wireNode {
	if i < len(w.Kids) {
		return w.Kids[i]
	}
	return nil
}

func (w *wireNode) list(i int) []*wireNode {
	if i < len(w.Lists) {
		return w.Lists[i]
	}
	return nil
}

func scriptFromWire(w *wireNode) (*Script, error) {
	if w.Kind != "script" {
		return nil, fmt.Errorf("expected script, got %q", w.Kind)
	}
	s := &Script{SpanVal: w.span()}
	for _, gw := range w.list(0) {
		if gw == nil {
			return nil, fmt.Errorf("null global")
		}
		switch gw.Kind {
		case "global":
			init, err := exprFromWire(gw.kid(0), true)
			if err != nil {
				return nil, err
			}
			s.Globals = append(s.Globals, &GlobalVar{SpanVal: gw.span(), Name: gw.Name, Type: gw.Type, Init: init})
		case "function":
			body, err := blockFromWire(gw.kid(0))
			if err != nil {
				return nil, err
			}
			s.Globals = append(s.Globals, &Function{
				SpanVal: gw.span(),
				Name:    gw.Name,
				Return:  gw.Type,
				Params:  paramsFromWire(gw.list(0)),
				Body:    body,
			})
		default:
			return nil, fmt.Errorf("unexpected global kind %q", gw.Kind)
		}
	}
	for _, sw := range w.list(1) {
		if sw == nil || sw.Kind != "state" {
			return nil, fmt.Errorf("malformed state")
		}
		st := &State{SpanVal: sw.span(), Name: sw.Name}
		for _, ew := range sw.Kids {
			if ew == nil || ew.Kind != "event" {
				return nil, fmt.Errorf("malformed event in state %s", sw.Name)
			}
			body, err := blockFromWire(ew.kid(0))
			if err != nil {
				return nil, err
			}
			st.Events = append(st.Events, &Event{
				SpanVal: ew.span(),
				Name:    ew.Name,
				Params:  paramsFromWire(ew.list(0)),
				Body:    body,
			})
		}
		s.States = append(s.States, st)
	}
	return s, nil
}

func paramsFromWire(ws []*wireNode) []*Param {
	params := make([]*Param, 0, len(ws))
	for _, pw := range ws {
		if pw == nil {
			continue
		}
		params = append(params, &Param{SpanVal: pw.span(), Name: pw.Name, Type: pw.Type})
	}
	return params
}

func blockFromWire(w *wireNode) (*Block, error) {
	s, err := stmtFromWire(w, false)
	if err != nil {
		return nil, err
	}
	b, ok := s.(*Block)
	if !ok {
		return nil, fmt.Errorf("expected block, got %T", s)
	}
	return b, nil
}

func stmtFromWire(w *wireNode, optional bool) (Stmt, error) {
	if w == nil {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("missing statement")
	}
	sp := w.span()
	switch w.Kind {
	case "block":
		b := &Block{SpanVal: sp}
		for _, k := range w.Kids {
			st, err := stmtFromWire(k, false)
			if err != nil {
				return nil, err
			}
			b.Stmts = append(b.Stmts, st)
		}
		return b, nil
	case "expr":
		x, err := exprFromWire(w.kid(0), false)
		if err != nil {
			return nil, err
		}
		return &ExprStmt{SpanVal: sp, X: x}, nil
	case "decl":
		init, err := exprFromWire(w.kid(0), true)
		if err != nil {
			return nil, err
		}
		return &DeclStmt{SpanVal: sp, Name: w.Name, Type: w.Type, Init: init}, nil
	case "if":
		cond, err := exprFromWire(w.kid(0), false)
		if err != nil {
			return nil, err
		}
		then, err := stmtFromWire(w.kid(1), false)
		if err != nil {
			return nil, err
		}
		els, err := stmtFromWire(w.kid(2), true)
		if err != nil {
			return nil, err
		}
		return &IfStmt{SpanVal: sp, Cond: cond, Then: then, Else: els}, nil
	case "while":
		cond, err := exprFromWire(w.kid(0), false)
		if err != nil {
			return nil, err
		}
		body, err := stmtFromWire(w.kid(1), false)
		if err != nil {
			return nil, err
		}
		return &WhileStmt{SpanVal: sp, Cond: cond, Body: body}, nil
	case "do":
		body, err := stmtFromWire(w.kid(0), false)
		if err != nil {
			return nil, err
		}
		cond, err := exprFromWire(w.kid(1), false)
		if err != nil {
			return nil, err
		}
		return &DoWhileStmt{SpanVal: sp, Body: body, Cond: cond}, nil
	case "for":
		cond, err := exprFromWire(w.kid(0), true)
		if err != nil {
			return nil, err
		}
		body, err := stmtFromWire(w.kid(1), false)
		if err != nil {
			return nil, err
		}
		init, err := exprsFromWire(w.list(0))
		if err != nil {
			return nil, err
		}
		step, err := exprsFromWire(w.list(1))
		if err != nil {
			return nil, err
		}
		return &ForStmt{SpanVal: sp, Init: init, Cond: cond, Step: step, Body: body}, nil
	case "jump":
		return &JumpStmt{SpanVal: sp, Label: w.Name}, nil
	case "label":
		return &LabelStmt{SpanVal: sp, Name: w.Name}, nil
	case "return":
		v, err := exprFromWire(w.kid(0), true)
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{SpanVal: sp, Value: v}, nil
	case "goto":
		return &StateStmt{SpanVal: sp, State: w.Name}, nil
	case "empty":
		return &EmptyStmt{SpanVal: sp}, nil
	}
	return nil, fmt.Errorf("unknown statement kind %q", w.Kind)
}

func exprsFromWire(ws []*wireNode) ([]Expr, error) {
	out := make([]Expr, 0, len(ws))
	for _, k := range ws {
		e, err := exprFromWire(k, false)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func identFromWire(w *wireNode) (*Identifier, error) {
	if w == nil || w.Kind != "ident" {
		return nil, fmt.Errorf("expected identifier")
	}
	return &Identifier{SpanVal: w.span(), Name: w.Name, Member: w.Member}, nil
}

func exprFromWire(w *wireNode, optional bool) (Expr, error) {
	if w == nil {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("missing expression")
	}
	sp := w.span()
	switch w.Kind {
	case "int":
		return &IntLiteral{SpanVal: sp, Value: w.Int}, nil
	case "float":
		return &FloatLiteral{SpanVal: sp, Value: w.Float}, nil
	case "string":
		return &StringLiteral{SpanVal: sp, Value: w.Str}, nil
	case "ident":
		return identFromWire(w)
	case "call":
		args, err := exprsFromWire(w.Kids)
		if err != nil {
			return nil, err
		}
		return &CallExpr{SpanVal: sp, Name: w.Name, Args: args}, nil
	case "list":
		els, err := exprsFromWire(w.Kids)
		if err != nil {
			return nil, err
		}
		return &ListLiteral{SpanVal: sp, Elements: els}, nil
	case "vector", "rotation":
		comps, err := exprsFromWire(w.Kids)
		if err != nil {
			return nil, err
		}
		if w.Kind == "vector" && len(comps) == 3 {
			return &VectorLiteral{SpanVal: sp, X: comps[0], Y: comps[1], Z: comps[2]}, nil
		}
		if w.Kind == "rotation" && len(comps) == 4 {
			return &QuaternionLiteral{SpanVal: sp, X: comps[0], Y: comps[1], Z: comps[2], S: comps[3]}, nil
		}
		return nil, fmt.Errorf("%s literal with %d components", w.Kind, len(comps))
	case "assign", "incdec":
		target, err := identFromWire(w.kid(0))
		if err != nil {
			return nil, err
		}
		if w.Kind == "incdec" {
			return &IncDecExpr{
				SpanVal:   sp,
				Target:    target,
				Decrement: w.Flags&flagDecrement != 0,
				Prefix:    w.Flags&flagPrefix != 0,
			}, nil
		}
		v, err := exprFromWire(w.kid(1), false)
		if err != nil {
			return nil, err
		}
		return &AssignExpr{SpanVal: sp, Target: target, Op: w.Op, Value: v}, nil
	}

	// Remaining kinds have one or two expression children.
	a, err := exprFromWire(w.kid(0), false)
	if err != nil {
		return nil, err
	}
	switch w.Kind {
	case "unary":
		return &UnaryExpr{SpanVal: sp, Op: w.Op, Operand: a}, nil
	case "cast":
		return &CastExpr{SpanVal: sp, To: w.Type, Operand: a}, nil
	case "paren":
		return &ParenExpr{SpanVal: sp, Inner: a}, nil
	case "print":
		return &PrintExpr{SpanVal: sp, Value: a}, nil
	case "binary":
		b, err := exprFromWire(w.kid(1), false)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{SpanVal: sp, Op: w.Op, Left: a, Right: b}, nil
	}
	return nil, fmt.Errorf("unknown expression kind %q", w.Kind)
}
