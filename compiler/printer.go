package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/lslc/pkg/lsl"
)

// Printer reconstructs source text from a syntax tree.
type Printer struct {
	sb     strings.Builder
	indent int
}

// Format returns the source reconstruction of script.
func Format(script *Script) string {
	p := &Printer{}
	p.script(script)
	return p.sb.String()
}

// writeLine writes an indented line to the output. Blank lines carry no
// indentation.
func (p *Printer) writeLine(format string, args ...interface{}) {
	if format == "" {
		p.sb.WriteByte('\n')
		return
	}
	p.sb.WriteString(strings.Repeat("    ", p.indent))
	fmt.Fprintf(&p.sb, format, args...)
	p.sb.WriteByte('\n')
}

func (p *Printer) script(s *Script) {
	for _, g := range s.Globals {
		switch g := g.(type) {
		case *GlobalVar:
			if g.Init != nil {
				p.writeLine("%s %s = %s;", g.Type, g.Name, ExprString(g.Init))
			} else {
				p.writeLine("%s %s;", g.Type, g.Name)
			}
		case *Function:
			p.writeLine("")
			if g.Return != lsl.Void {
				p.writeLine("%s %s(%s)", g.Return, g.Name, paramList(g.Params))
			} else {
				p.writeLine("%s(%s)", g.Name, paramList(g.Params))
			}
			p.block(g.Body)
		}
	}
	for _, st := range s.States {
		p.writeLine("")
		if st.Name == "default" {
			p.writeLine("default")
		} else {
			p.writeLine("state %s", st.Name)
		}
		p.writeLine("{")
		p.indent++
		for i, e := range st.Events {
			if i > 0 {
				p.writeLine("")
			}
			p.writeLine("%s(%s)", e.Name, paramList(e.Params))
			p.block(e.Body)
		}
		p.indent--
		p.writeLine("}")
	}
}

func paramList(params []*Param) string {
	parts := make([]string, len(params))
	for i, prm := range params {
		parts[i] = prm.Type.String() + " " + prm.Name
	}
	return strings.Join(parts, ", ")
}

func (p *Printer) block(b *Block) {
	p.writeLine("{")
	p.indent++
	for _, s := range b.Stmts {
		p.stmt(s)
	}
	p.indent--
	p.writeLine("}")
}

// nested prints the body of a control statement.
func (p *Printer) nested(s Stmt) {
	if b, ok := s.(*Block); ok {
		p.block(b)
		return
	}
	p.indent++
	p.stmt(s)
	p.indent--
}

func (p *Printer) stmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		p.block(s)
	case *ExprStmt:
		p.writeLine("%s;", ExprString(s.X))
	case *DeclStmt:
		if s.Init != nil {
			p.writeLine("%s %s = %s;", s.Type, s.Name, ExprString(s.Init))
		} else {
			p.writeLine("%s %s;", s.Type, s.Name)
		}
	case *IfStmt:
		p.writeLine("if (%s)", ExprString(s.Cond))
		p.nested(s.Then)
		if s.Else != nil {
			p.writeLine("else")
			p.nested(s.Else)
		}
	case *WhileStmt:
		p.writeLine("while (%s)", ExprString(s.Cond))
		p.nested(s.Body)
	case *DoWhileStmt:
		p.writeLine("do")
		p.nested(s.Body)
		p.writeLine("while (%s);", ExprString(s.Cond))
	case *ForStmt:
		cond := ""
		if s.Cond != nil {
			cond = ExprString(s.Cond)
		}
		p.writeLine("for (%s; %s; %s)", exprList(s.Init), cond, exprList(s.Step))
		p.nested(s.Body)
	case *JumpStmt:
		p.writeLine("jump %s;", s.Label)
	case *LabelStmt:
		p.writeLine("@%s;", s.Name)
	case *ReturnStmt:
		if s.Value != nil {
			p.writeLine("return %s;", ExprString(s.Value))
		} else {
			p.writeLine("return;")
		}
	case *StateStmt:
		p.writeLine("state %s;", s.State)
	case *EmptyStmt:
		p.writeLine(";")
	}
}

func exprList(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = ExprString(e)
	}
	return strings.Join(parts, ", ")
}

// ExprString renders one expression as source.
func ExprString(e Expr) string {
	switch e := e.(type) {
	case *IntLiteral:
		return strconv.FormatInt(int64(e.Value), 10)
	case *FloatLiteral:
		s := strconv.FormatFloat(float64(e.Value), 'f', -1, 32)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	case *StringLiteral:
		return strconv.Quote(e.Value)
	case *VectorLiteral:
		return "<" + exprList(e.Components()) + ">"
	case *QuaternionLiteral:
		return "<" + exprList(e.Components()) + ">"
	case *ListLiteral:
		return "[" + exprList(e.Elements) + "]"
	case *Identifier:
		if e.Member != "" {
			return e.Name + "." + e.Member
		}
		return e.Name
	case *UnaryExpr:
		return e.Op.String() + ExprString(e.Operand)
	case *BinaryExpr:
		return ExprString(e.Left) + " " + e.Op.String() + " " + ExprString(e.Right)
	case *AssignExpr:
		op := "="
		if e.Op != lsl.OpNone {
			op = e.Op.String() + "="
		}
		return ExprString(e.Target) + " " + op + " " + ExprString(e.Value)
	case *IncDecExpr:
		if e.Prefix {
			return incDecSymbol(e) + ExprString(e.Target)
		}
		return ExprString(e.Target) + incDecSymbol(e)
	case *CastExpr:
		return "(" + e.To.String() + ")" + ExprString(e.Operand)
	case *CallExpr:
		return e.Name + "(" + exprList(e.Args) + ")"
	case *ParenExpr:
		return "(" + ExprString(e.Inner) + ")"
	case *PrintExpr:
		return "print(" + ExprString(e.Value) + ")"
	}
	return fmt.Sprintf("<%T>", e)
}
