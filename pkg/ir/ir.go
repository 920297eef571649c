// Package ir is the backend-neutral program produced by the compiler's emit pass.
// Both the bytecode image assembler and the textual IL emitter consume it.
//
// Bodies are flat lists of typed stack instructions. Branch targets are integer
// Label IDs; each backend resolves them against its own output.
package ir

import (
	"fmt"
	"strings"

	"github.com/chazu/lslc/pkg/lsl"
)

// Label names a branch target inside one body.
type Label int

// NoLabel is the zero Label; real labels start at 1.
const NoLabel Label = 0

// Op is an IR instruction kind.
type Op uint8

const (
	OpNop Op = iota

	OpPushConst  // push Const
	OpPushEmpty  // push the zero value of T
	OpPushLocal  // push T from frame offset Offset, or its Member component
	OpPushGlobal // push T from global offset Offset, or its Member component
	OpStore      // store T at Offset (Global selects the section); Keep leaves it on the stack
	OpPop        // discard a T

	OpUnary  // Operator on T
	OpBinary // Operator on T (left) and T2 (right)
	OpCast   // convert top of stack from T to T2
	OpToList // collapse Index stack values into a list
	OpBuild  // assemble a T (vector or rotation) from the floats on the stack

	OpLabel   // define Label
	OpJump    // unconditional branch to Label
	OpJumpIf  // branch when the T on top of stack is true
	OpJumpNot // branch when the T on top of stack is false

	OpCallBegin   // reserve a T return slot and save the frame
	OpCall        // call function (or library when Library) Index with ArgBytes of arguments
	OpEnterFrame  // reserve Index bytes of locals
	OpReturnValue // move T from the stack into the return slot
	OpUnwind      // exit pops for Types, in order
	OpReturn
	OpState // switch to state Index

	OpPrint // print a T
)

var opNames = map[Op]string{
	OpNop:         "nop",
	OpPushConst:   "push.const",
	OpPushEmpty:   "push.empty",
	OpPushLocal:   "push.local",
	OpPushGlobal:  "push.global",
	OpStore:       "store",
	OpPop:         "pop",
	OpUnary:       "unary",
	OpBinary:      "binary",
	OpCast:        "cast",
	OpToList:      "tolist",
	OpBuild:       "build",
	OpLabel:       "label",
	OpJump:        "jump",
	OpJumpIf:      "jumpif",
	OpJumpNot:     "jumpnot",
	OpCallBegin:   "call.begin",
	OpCall:        "call",
	OpEnterFrame:  "enter",
	OpReturnValue: "retval",
	OpUnwind:      "unwind",
	OpReturn:      "return",
	OpState:       "state",
	OpPrint:       "print",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", o)
}

// IsBranch reports whether the instruction refers to a Label.
func (o Op) IsBranch() bool {
	return o == OpJump || o == OpJumpIf || o == OpJumpNot
}

// Value is a compile-time constant.
type Value struct {
	Type  lsl.Type
	Int   int32
	Float float32
	Str   string
	Vec   [4]float32
	List  []Value
}

// Zero returns the default value of t.
func Zero(t lsl.Type) Value {
	v := Value{Type: t}
	if t == lsl.Quaternion {
		v.Vec[3] = 1
	}
	return v
}

// String renders the value the way it would be written in source.
func (v Value) String() string {
	switch v.Type {
	case lsl.Integer:
		return fmt.Sprintf("%d", v.Int)
	case lsl.Float:
		return fmt.Sprintf("%g", v.Float)
	case lsl.String, lsl.Key:
		return fmt.Sprintf("%q", v.Str)
	case lsl.Vector:
		return fmt.Sprintf("<%g, %g, %g>", v.Vec[0], v.Vec[1], v.Vec[2])
	case lsl.Quaternion:
		return fmt.Sprintf("<%g, %g, %g, %g>", v.Vec[0], v.Vec[1], v.Vec[2], v.Vec[3])
	case lsl.List:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "void"
}

// Instr is one IR instruction. Which fields are meaningful depends on Op.
type Instr struct {
	Op       Op
	T        lsl.Type
	T2       lsl.Type
	Operator lsl.Operator
	Offset   int32
	Global   bool
	Keep     bool
	Const    Value
	Label    Label
	Index    int
	Library  bool
	ArgBytes int
	Name     string
	Member   string // "x", "y", "z" or "s" for component access
	Types    []lsl.Type
	Line     int
}

// String formats the instruction for listings and test failure messages.
func (in Instr) String() string {
	switch in.Op {
	case OpPushConst:
		return fmt.Sprintf("%s %s %s", in.Op, in.Const.Type, in.Const)
	case OpPushEmpty, OpPop, OpPrint, OpReturnValue, OpCallBegin, OpBuild:
		return fmt.Sprintf("%s %s", in.Op, in.T)
	case OpPushLocal, OpPushGlobal:
		return fmt.Sprintf("%s %s %d%s", in.Op, in.T, in.Offset, memberSuffix(in.Member))
	case OpStore:
		where := "local"
		if in.Global {
			where = "global"
		}
		keep := ""
		if in.Keep {
			keep = " keep"
		}
		return fmt.Sprintf("%s %s %s %d%s%s", in.Op, where, in.T, in.Offset, memberSuffix(in.Member), keep)
	case OpUnary:
		return fmt.Sprintf("%s %s %s", in.Op, in.Operator, in.T)
	case OpBinary:
		return fmt.Sprintf("%s %s %s,%s", in.Op, in.Operator, in.T, in.T2)
	case OpCast:
		return fmt.Sprintf("%s %s->%s", in.Op, in.T, in.T2)
	case OpToList, OpEnterFrame:
		return fmt.Sprintf("%s %d", in.Op, in.Index)
	case OpLabel, OpJump:
		return fmt.Sprintf("%s L%d", in.Op, in.Label)
	case OpJumpIf, OpJumpNot:
		return fmt.Sprintf("%s %s L%d", in.Op, in.T, in.Label)
	case OpCall:
		kind := "fn"
		if in.Library {
			kind = "lib"
		}
		return fmt.Sprintf("%s %s %d %s args=%d", in.Op, kind, in.Index, in.Name, in.ArgBytes)
	case OpUnwind:
		return fmt.Sprintf("%s %s", in.Op, lsl.FormatTypes(in.Types))
	case OpState:
		return fmt.Sprintf("%s %d %s", in.Op, in.Index, in.Name)
	}
	return in.Op.String()
}

func memberSuffix(m string) string {
	if m == "" {
		return ""
	}
	return "." + m
}

// MemberOffset is the byte offset of a vector or rotation component.
func MemberOffset(member string) (int32, bool) {
	switch member {
	case "x":
		return 0, true
	case "y":
		return 4, true
	case "z":
		return 8, true
	case "s":
		return 12, true
	}
	return 0, false
}

// Slot is a named, typed frame slot.
type Slot struct {
	Name string
	Type lsl.Type
}

// Body is the code of one function or event handler.
type Body struct {
	Return lsl.Type
	Params []Slot
	Locals []Slot
	Code   []Instr
}

// Emit appends an instruction and returns its index.
func (b *Body) Emit(in Instr) int {
	b.Code = append(b.Code, in)
	return len(b.Code) - 1
}

// ParamTypes lists the parameter types in declaration order.
func (b *Body) ParamTypes() []lsl.Type {
	return slotTypes(b.Params)
}

// LocalTypes lists the local variable types in declaration order.
func (b *Body) LocalTypes() []lsl.Type {
	return slotTypes(b.Locals)
}

// ParamBytes is the frame space taken by parameters.
func (b *Body) ParamBytes() int {
	return lsl.FrameSize(b.ParamTypes())
}

// LocalBytes is the frame space taken by locals.
func (b *Body) LocalBytes() int {
	return lsl.FrameSize(b.LocalTypes())
}

func slotTypes(slots []Slot) []lsl.Type {
	types := make([]lsl.Type, len(slots))
	for i, s := range slots {
		types[i] = s.Type
	}
	return types
}

// Listing renders the body one instruction per line.
func (b *Body) Listing() string {
	var sb strings.Builder
	for _, in := range b.Code {
		if in.Op == OpLabel {
			fmt.Fprintf(&sb, "L%d:\n", in.Label)
			continue
		}
		fmt.Fprintf(&sb, "\t%s\n", in)
	}
	return sb.String()
}

// Global is a global variable with its constant initial value.
type Global struct {
	Name   string
	Type   lsl.Type
	Offset int
	Value  Value
}

// Function is a user-defined global function.
type Function struct {
	Name  string
	Index int
	Body
}

// Event is one handler inside a state.
type Event struct {
	Kind lsl.EventKind
	Body
}

// State is a named state and its handlers in ascending event-kind order.
type State struct {
	Name   string
	Index  int
	Events []*Event
}

// EventMask is the declared-event bitfield of the state.
func (s *State) EventMask() uint64 {
	var mask uint64
	for _, e := range s.Events {
		mask |= e.Kind.Mask()
	}
	return mask
}

// Program is a complete compiled script.
type Program struct {
	Globals   []Global
	Functions []*Function
	States    []*State
}

// Listing renders the whole program.
func (p *Program) Listing() string {
	var sb strings.Builder
	for _, g := range p.Globals {
		fmt.Fprintf(&sb, "global %s %s @%d = %s\n", g.Type, g.Name, g.Offset, g.Value)
	}
	for _, f := range p.Functions {
		fmt.Fprintf(&sb, "function %d %s %s(%s)\n", f.Index, f.Return, f.Name, lsl.FormatTypes(f.ParamTypes()))
		sb.WriteString(f.Listing())
	}
	for _, s := range p.States {
		fmt.Fprintf(&sb, "state %d %s\n", s.Index, s.Name)
		for _, e := range s.Events {
			fmt.Fprintf(&sb, " event %s(%s)\n", e.Kind, lsl.FormatTypes(e.ParamTypes()))
			sb.WriteString(e.Listing())
		}
	}
	return sb.String()
}
