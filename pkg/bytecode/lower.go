package bytecode

import (
	"fmt"

	"github.com/chazu/lslc/pkg/ir"
	"github.com/chazu/lslc/pkg/lsl"
)

// frameLinkSize is the saved base pointer sitting between a call's return slot and
// its first argument.
const frameLinkSize = 4

// ReturnSlotOffset is the BP-relative offset of the return slot for a function
// returning t.
func ReturnSlotOffset(t lsl.Type) int32 {
	return -int32(frameLinkSize + t.Size())
}

// Lower translates one IR body into a connected chunk.
func Lower(body *ir.Body) (*Chunk, error) {
	c := NewChunk()
	for i, in := range body.Code {
		if err := lowerInstr(c, in); err != nil {
			return nil, fmt.Errorf("instruction %d (%s): %w", i, in, err)
		}
	}
	if err := c.ConnectJumps(); err != nil {
		return nil, err
	}
	return c, nil
}

func lowerInstr(c *Chunk, in ir.Instr) error {
	switch in.Op {
	case ir.OpNop:
		c.Emit(OpNoop)

	case ir.OpPushConst:
		pushConst(c, in.Const)

	case ir.OpPushEmpty:
		c.Emit(PushEmptyFor(in.T))

	case ir.OpPushLocal:
		off, err := slotOffset(in)
		if err != nil {
			return err
		}
		c.EmitInt(PushLocalFor(in.T), off)

	case ir.OpPushGlobal:
		off, err := slotOffset(in)
		if err != nil {
			return err
		}
		c.EmitInt(PushGlobalFor(in.T), off)

	case ir.OpStore:
		off, err := slotOffset(in)
		if err != nil {
			return err
		}
		c.EmitInt(StoreFor(in.T, in.Global, in.Keep), off)

	case ir.OpPop:
		c.Emit(PopFor(in.T))

	case ir.OpUnary:
		op, ok := OperatorOpcode(in.Operator)
		if !ok || !in.Operator.IsUnary() {
			return fmt.Errorf("no opcode for unary %s", in.Operator)
		}
		c.EmitTyped(op, lsl.TypeByte(in.T, lsl.Void))

	case ir.OpBinary:
		op, ok := OperatorOpcode(in.Operator)
		if !ok || !in.Operator.IsBinary() {
			return fmt.Errorf("no opcode for binary %s", in.Operator)
		}
		c.EmitTyped(op, lsl.TypeByte(in.T, in.T2))

	case ir.OpCast:
		c.EmitTyped(OpCast, lsl.TypeByte(in.T, in.T2))

	case ir.OpToList:
		c.EmitInt(OpStackToL, int32(in.Index))

	case ir.OpBuild:
		// The component floats already sit on the stack in vector layout.

	case ir.OpLabel:
		c.AddLabel(LabelID(in.Label))

	case ir.OpJump:
		c.EmitJump(OpJump, 0, LabelID(in.Label))

	case ir.OpJumpIf:
		c.EmitJump(OpJumpIf, lsl.TypeByte(in.T, lsl.Void), LabelID(in.Label))

	case ir.OpJumpNot:
		c.EmitJump(OpJumpNif, lsl.TypeByte(in.T, lsl.Void), LabelID(in.Label))

	case ir.OpCallBegin:
		if in.T != lsl.Void {
			c.Emit(PushEmptyFor(in.T))
		}
		c.Emit(OpPushBP)

	case ir.OpCall:
		c.Emit(OpPushSP)
		c.EmitInt(OpPushArgI, int32(in.ArgBytes))
		c.EmitTyped(OpAdd, lsl.TypeByte(lsl.Integer, lsl.Integer))
		c.Emit(OpPopBP)
		switch {
		case !in.Library:
			c.EmitInt(OpCall, int32(in.Index))
		case in.Index < 0 || in.Index > 0xFFFF:
			return fmt.Errorf("library index %d out of range", in.Index)
		case in.Index <= 0xFF:
			c.EmitWithOperand(OpCallLib, byte(in.Index))
		default:
			c.Emit(OpCallLibTwoByte)
			c.AddInt16(uint16(in.Index))
		}

	case ir.OpEnterFrame:
		if in.Index > 0 {
			c.EmitInt(OpPushArgE, int32(in.Index))
		}

	case ir.OpReturnValue:
		c.EmitInt(StoreFor(in.T, false, false), ReturnSlotOffset(in.T))

	case ir.OpUnwind:
		for _, t := range in.Types {
			c.Emit(PopFor(t))
		}

	case ir.OpReturn:
		c.Emit(OpReturn)

	case ir.OpState:
		c.EmitInt(OpState, int32(in.Index))

	case ir.OpPrint:
		c.EmitTyped(OpPrint, lsl.TypeByte(in.T, lsl.Void))

	default:
		return fmt.Errorf("unknown IR op %s", in.Op)
	}
	return nil
}

// slotOffset is the operand offset of a variable access, moved to the component
// for member accesses.
func slotOffset(in ir.Instr) (int32, error) {
	if in.Member == "" {
		return in.Offset, nil
	}
	off, ok := ir.MemberOffset(in.Member)
	if !ok {
		return 0, fmt.Errorf("unknown member %q", in.Member)
	}
	return in.Offset + off, nil
}

func pushConst(c *Chunk, v ir.Value) {
	switch v.Type {
	case lsl.Integer:
		c.EmitInt(OpPushArgI, v.Int)
	case lsl.Float:
		c.EmitFloat(OpPushArgF, v.Float)
	case lsl.String:
		c.EmitString(OpPushArgS, v.Str)
	case lsl.Key:
		c.EmitString(OpPushArgS, v.Str)
		c.EmitTyped(OpCast, lsl.TypeByte(lsl.String, lsl.Key))
	case lsl.Vector:
		c.EmitFloats(OpPushArgV, v.Vec[0], v.Vec[1], v.Vec[2])
	case lsl.Quaternion:
		c.EmitFloats(OpPushArgQ, v.Vec[0], v.Vec[1], v.Vec[2], v.Vec[3])
	case lsl.List:
		for _, e := range v.List {
			pushConst(c, e)
		}
		c.EmitInt(OpStackToL, int32(len(v.List)))
	default:
		c.Emit(OpPushE)
	}
}
