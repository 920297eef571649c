package compiler

import "github.com/chazu/lslc/pkg/lsl"

// ---------------------------------------------------------------------------
// AST: syntax tree handed to the compiler by a parser
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes. ResultType is filled in by the
// type pass.
type Expr interface {
	Node
	expr() // marker method
	ResultType() lsl.Type
}

// typed holds the type annotation shared by every expression.
type typed struct {
	Typ lsl.Type
}

func (t *typed) ResultType() lsl.Type { return t.Typ }

// IntLiteral represents an integer constant.
type IntLiteral struct {
	SpanVal Span
	Value   int32
	typed
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

// FloatLiteral represents a float constant.
type FloatLiteral struct {
	SpanVal Span
	Value   float32
	typed
}

func (n *FloatLiteral) Span() Span { return n.SpanVal }
func (n *FloatLiteral) node()      {}
func (n *FloatLiteral) expr()      {}

// StringLiteral represents a string constant.
type StringLiteral struct {
	SpanVal Span
	Value   string
	typed
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// VectorLiteral represents <x, y, z>.
type VectorLiteral struct {
	SpanVal Span
	X, Y, Z Expr
	typed
}

func (n *VectorLiteral) Span() Span { return n.SpanVal }
func (n *VectorLiteral) node()      {}
func (n *VectorLiteral) expr()      {}

// Components returns the component expressions in source order.
func (n *VectorLiteral) Components() []Expr { return []Expr{n.X, n.Y, n.Z} }

// QuaternionLiteral represents <x, y, z, s>.
type QuaternionLiteral struct {
	SpanVal    Span
	X, Y, Z, S Expr
	typed
}

func (n *QuaternionLiteral) Span() Span { return n.SpanVal }
func (n *QuaternionLiteral) node()      {}
func (n *QuaternionLiteral) expr()      {}

// Components returns the component expressions in source order.
func (n *QuaternionLiteral) Components() []Expr { return []Expr{n.X, n.Y, n.Z, n.S} }

// ListLiteral represents [a, b, ...].
type ListLiteral struct {
	SpanVal  Span
	Elements []Expr
	typed
}

func (n *ListLiteral) Span() Span { return n.SpanVal }
func (n *ListLiteral) node()      {}
func (n *ListLiteral) expr()      {}

// Identifier represents a variable reference, optionally selecting a vector or
// rotation component (v.x).
type Identifier struct {
	SpanVal Span
	Name    string
	Member  string
	Entry   *Symbol
	typed
}

func (n *Identifier) Span() Span { return n.SpanVal }
func (n *Identifier) node()      {}
func (n *Identifier) expr()      {}

// UnaryExpr represents -x, ~x and !x.
type UnaryExpr struct {
	SpanVal Span
	Op      lsl.Operator
	Operand Expr
	typed
}

func (n *UnaryExpr) Span() Span { return n.SpanVal }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// BinaryExpr represents left op right. LeftAs and RightAs are the operand types
// after numeric promotion.
type BinaryExpr struct {
	SpanVal Span
	Op      lsl.Operator
	Left    Expr
	Right   Expr
	LeftAs  lsl.Type
	RightAs lsl.Type
	typed
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// AssignExpr represents target = value, or target op= value when Op is set.
type AssignExpr struct {
	SpanVal Span
	Target  *Identifier
	Op      lsl.Operator // lsl.OpNone for plain assignment
	Value   Expr
	LeftAs  lsl.Type
	RightAs lsl.Type
	typed
}

func (n *AssignExpr) Span() Span { return n.SpanVal }
func (n *AssignExpr) node()      {}
func (n *AssignExpr) expr()      {}

// IncDecExpr represents ++x, x++, --x and x--.
type IncDecExpr struct {
	SpanVal   Span
	Target    *Identifier
	Decrement bool
	Prefix    bool
	typed
}

func (n *IncDecExpr) Span() Span { return n.SpanVal }
func (n *IncDecExpr) node()      {}
func (n *IncDecExpr) expr()      {}

// CastExpr represents (type)expr.
type CastExpr struct {
	SpanVal Span
	To      lsl.Type
	Operand Expr
	typed
}

func (n *CastExpr) Span() Span { return n.SpanVal }
func (n *CastExpr) node()      {}
func (n *CastExpr) expr()      {}

// CallExpr represents a call to a user or library function.
type CallExpr struct {
	SpanVal Span
	Name    string
	Args    []Expr
	Entry   *Symbol
	typed
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	SpanVal Span
	Inner   Expr
	typed
}

func (n *ParenExpr) Span() Span { return n.SpanVal }
func (n *ParenExpr) node()      {}
func (n *ParenExpr) expr()      {}

// PrintExpr represents print(expr).
type PrintExpr struct {
	SpanVal Span
	Value   Expr
	typed
}

func (n *PrintExpr) Span() Span { return n.SpanVal }
func (n *PrintExpr) node()      {}
func (n *PrintExpr) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// Block represents { stmts }. Scope is created by the first scope pass.
type Block struct {
	SpanVal Span
	Stmts   []Stmt
	Scope   *Scope
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}
func (n *Block) stmt()      {}

// ExprStmt represents an expression evaluated for its side effects.
type ExprStmt struct {
	SpanVal Span
	X       Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// DeclStmt represents a local variable declaration.
type DeclStmt struct {
	SpanVal Span
	Name    string
	Type    lsl.Type
	Init    Expr // may be nil
	Entry   *Symbol
}

func (n *DeclStmt) Span() Span { return n.SpanVal }
func (n *DeclStmt) node()      {}
func (n *DeclStmt) stmt()      {}

// IfStmt represents if (cond) then [else els].
type IfStmt struct {
	SpanVal Span
	Cond    Expr
	Then    Stmt
	Else    Stmt // may be nil
}

func (n *IfStmt) Span() Span { return n.SpanVal }
func (n *IfStmt) node()      {}
func (n *IfStmt) stmt()      {}

// WhileStmt represents while (cond) body.
type WhileStmt struct {
	SpanVal Span
	Cond    Expr
	Body    Stmt
}

func (n *WhileStmt) Span() Span { return n.SpanVal }
func (n *WhileStmt) node()      {}
func (n *WhileStmt) stmt()      {}

// DoWhileStmt represents do body while (cond);
type DoWhileStmt struct {
	SpanVal Span
	Body    Stmt
	Cond    Expr
}

func (n *DoWhileStmt) Span() Span { return n.SpanVal }
func (n *DoWhileStmt) node()      {}
func (n *DoWhileStmt) stmt()      {}

// ForStmt represents for (init; cond; step) body. Init and Step are
// comma-separated expression lists.
type ForStmt struct {
	SpanVal Span
	Init    []Expr
	Cond    Expr
	Step    []Expr
	Body    Stmt
}

func (n *ForStmt) Span() Span { return n.SpanVal }
func (n *ForStmt) node()      {}
func (n *ForStmt) stmt()      {}

// JumpStmt represents jump label;
type JumpStmt struct {
	SpanVal Span
	Label   string
	Entry   *Symbol
}

func (n *JumpStmt) Span() Span { return n.SpanVal }
func (n *JumpStmt) node()      {}
func (n *JumpStmt) stmt()      {}

// LabelStmt represents @label;
type LabelStmt struct {
	SpanVal Span
	Name    string
	Entry   *Symbol
}

func (n *LabelStmt) Span() Span { return n.SpanVal }
func (n *LabelStmt) node()      {}
func (n *LabelStmt) stmt()      {}

// ReturnStmt represents return [value];
type ReturnStmt struct {
	SpanVal Span
	Value   Expr // may be nil
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// StateStmt represents state name;
type StateStmt struct {
	SpanVal Span
	State   string
	Entry   *Symbol
}

func (n *StateStmt) Span() Span { return n.SpanVal }
func (n *StateStmt) node()      {}
func (n *StateStmt) stmt()      {}

// EmptyStmt represents a lone semicolon.
type EmptyStmt struct {
	SpanVal Span
}

func (n *EmptyStmt) Span() Span { return n.SpanVal }
func (n *EmptyStmt) node()      {}
func (n *EmptyStmt) stmt()      {}

// ---------------------------------------------------------------------------
// Top-level nodes
// ---------------------------------------------------------------------------

// Global is a top-level variable or function declaration.
type Global interface {
	Node
	global() // marker method
}

// GlobalVar represents a global variable declaration.
type GlobalVar struct {
	SpanVal Span
	Name    string
	Type    lsl.Type
	Init    Expr // may be nil
	Entry   *Symbol
}

func (n *GlobalVar) Span() Span { return n.SpanVal }
func (n *GlobalVar) node()      {}
func (n *GlobalVar) global()    {}

// Param is a function or event parameter.
type Param struct {
	SpanVal Span
	Name    string
	Type    lsl.Type
	Entry   *Symbol
}

func (n *Param) Span() Span { return n.SpanVal }
func (n *Param) node()      {}

// Function represents a user-defined global function. Scope holds the
// parameters and is shared with the top level of Body.
type Function struct {
	SpanVal Span
	Name    string
	Return  lsl.Type
	Params  []*Param
	Body    *Block
	Entry   *Symbol
	Scope   *Scope
}

func (n *Function) Span() Span { return n.SpanVal }
func (n *Function) node()      {}
func (n *Function) global()    {}

// Event represents an event handler inside a state.
type Event struct {
	SpanVal Span
	Name    string
	Params  []*Param
	Body    *Block
	Kind    lsl.EventKind
	Entry   *Symbol
	Scope   *Scope
}

func (n *Event) Span() Span { return n.SpanVal }
func (n *Event) node()      {}

// State represents a state block. The first state of a script is "default".
type State struct {
	SpanVal Span
	Name    string
	Events  []*Event
	Entry   *Symbol
	Scope   *Scope
}

func (n *State) Span() Span { return n.SpanVal }
func (n *State) node()      {}

// Script is the root of a compilation unit.
type Script struct {
	SpanVal Span
	Globals []Global
	States  []*State
	Scope   *Scope
}

func (n *Script) Span() Span { return n.SpanVal }
func (n *Script) node()      {}

// Functions returns the function declarations in source order.
func (n *Script) Functions() []*Function {
	var fns []*Function
	for _, g := range n.Globals {
		if f, ok := g.(*Function); ok {
			fns = append(fns, f)
		}
	}
	return fns
}

// Variables returns the global variable declarations in source order.
func (n *Script) Variables() []*GlobalVar {
	var vars []*GlobalVar
	for _, g := range n.Globals {
		if v, ok := g.(*GlobalVar); ok {
			vars = append(vars, v)
		}
	}
	return vars
}
