package image

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/lslc/pkg/bytecode"
	"github.com/chazu/lslc/pkg/ir"
	"github.com/chazu/lslc/pkg/lsl"
)

func returnOne() *ir.Function {
	f := &ir.Function{Name: "f", Index: 0}
	f.Return = lsl.Integer
	f.Emit(ir.Instr{Op: ir.OpEnterFrame})
	f.Emit(ir.Instr{Op: ir.OpPushConst, Const: ir.Value{Type: lsl.Integer, Int: 1}})
	f.Emit(ir.Instr{Op: ir.OpReturnValue, T: lsl.Integer})
	f.Emit(ir.Instr{Op: ir.OpReturn})
	return f
}

func sampleProgram() *ir.Program {
	entry := &ir.Event{Kind: lsl.EventStateEntry}
	entry.Locals = []ir.Slot{{Name: "v", Type: lsl.Vector}}
	entry.Emit(ir.Instr{Op: ir.OpEnterFrame, Index: 12})
	entry.Emit(ir.Instr{Op: ir.OpLabel, Label: 1})
	entry.Emit(ir.Instr{Op: ir.OpPushGlobal, T: lsl.Integer, Offset: 7})
	entry.Emit(ir.Instr{Op: ir.OpJumpIf, T: lsl.Integer, Label: 1})
	entry.Emit(ir.Instr{Op: ir.OpUnwind, Types: []lsl.Type{lsl.Vector}})
	entry.Emit(ir.Instr{Op: ir.OpReturn})

	touch := &ir.Event{Kind: lsl.EventTouchStart}
	touch.Params = []ir.Slot{{Name: "n", Type: lsl.Integer}}
	touch.Emit(ir.Instr{Op: ir.OpUnwind, Types: []lsl.Type{lsl.Integer}})
	touch.Emit(ir.Instr{Op: ir.OpReturn})

	return &ir.Program{
		Globals: []ir.Global{
			{Name: "x", Type: lsl.Integer, Offset: 7, Value: ir.Value{Type: lsl.Integer, Int: 42}},
			{Name: "s", Type: lsl.String, Offset: 18, Value: ir.Value{Type: lsl.String, Str: "hello"}},
			{Name: "l", Type: lsl.List, Offset: 29, Value: ir.Value{Type: lsl.List, List: []ir.Value{
				{Type: lsl.Integer, Int: 1}, {Type: lsl.String, Str: "a"},
			}}},
		},
		Functions: []*ir.Function{returnOne()},
		States: []*ir.State{
			{Name: "default", Index: 0, Events: []*ir.Event{entry, touch}},
		},
	}
}

func TestAssembleHeader(t *testing.T) {
	data, err := Assemble(sampleProgram(), 4096)
	require.NoError(t, err)
	require.Len(t, data, 4096)

	img, err := Read(data)
	require.NoError(t, err)
	h := img.Header

	assert.Equal(t, int32(Version), h.VN)
	assert.Equal(t, int32(4096), h.TM)
	assert.Equal(t, int32(4096), h.SP)
	assert.Equal(t, int32(4095), h.BP)
	assert.Equal(t, int32(HeaderSize), h.GVR)
	assert.Less(t, h.GVR, h.GFR)
	assert.Less(t, h.GFR, h.SR)
	assert.Less(t, h.SR, h.HR)
	assert.Less(t, h.HR, h.HP)

	mask := lsl.EventStateEntry.Mask() | lsl.EventTouchStart.Mask()
	assert.Equal(t, mask, h.NER)
	assert.Equal(t, int32(uint32(mask)), h.ER)
}

func TestAssembleGlobals(t *testing.T) {
	data, err := Assemble(sampleProgram(), 0)
	require.NoError(t, err)
	assert.Len(t, data, DefaultMemory)

	img, err := Read(data)
	require.NoError(t, err)
	require.Len(t, img.Globals, 3)

	x := img.Globals[0]
	assert.Equal(t, "x", x.Name)
	assert.Equal(t, 7, x.Offset)
	assert.Equal(t, uint32(42), binary.BigEndian.Uint32(x.Data))

	s := img.Globals[1]
	assert.Equal(t, 18, s.Offset)
	str, ok := img.HeapString(int32(binary.BigEndian.Uint32(s.Data)))
	require.True(t, ok)
	assert.Equal(t, "hello", str)

	require.Len(t, img.Heap, 2)
	assert.Equal(t, int32(1), img.Heap[0].Handle, "handles are 1-based")
	assert.Equal(t, lsl.List, img.Heap[1].Type)
	assert.Equal(t, uint16(1), img.Heap[1].Refs)
	// [i32 count] [i 4 bytes] [s "a\0"]
	assert.Equal(t, []byte{0, 0, 0, 2, 1, 0, 0, 0, 1, 3, 'a', 0}, img.Heap[1].Data)
}

func TestAssembleGlobalOffsetMismatch(t *testing.T) {
	prog := sampleProgram()
	prog.Globals[1].Offset = 12
	_, err := Assemble(prog, 0)
	assert.Error(t, err)
}

func TestAssembleFunctionTable(t *testing.T) {
	data, err := Assemble(sampleProgram(), 0)
	require.NoError(t, err)
	img, err := Read(data)
	require.NoError(t, err)

	f, ok := img.Function("f")
	require.True(t, ok)
	assert.Equal(t, lsl.Integer, f.Return)
	assert.Empty(t, f.Params)
	assert.Equal(t, 8, f.Offset, "first entry follows the count and one table word")

	ins, err := bytecode.DecodeAll(f.Code)
	require.NoError(t, err)
	ops := make([]bytecode.Opcode, len(ins))
	for i, in := range ins {
		ops[i] = in.Op
	}
	assert.Equal(t, []bytecode.Opcode{bytecode.OpPushArgI, bytecode.OpLoadP, bytecode.OpReturn}, ops)
	assert.Equal(t, int32(-8), ins[1].Int)
}

func TestAssembleStates(t *testing.T) {
	data, err := Assemble(sampleProgram(), 0)
	require.NoError(t, err)
	img, err := Read(data)
	require.NoError(t, err)

	require.Len(t, img.States, 1)
	s := img.States[0]
	assert.Equal(t, "default", s.Name)
	require.Len(t, s.Handlers, 2)
	assert.Equal(t, lsl.EventStateEntry, s.Handlers[0].Kind)
	assert.Equal(t, 12, s.Handlers[0].LocalBytes)
	assert.Equal(t, lsl.EventTouchStart, s.Handlers[1].Kind)

	// The loop jump in state_entry lands back on its first PUSHG.
	ins, err := bytecode.DecodeAll(s.Handlers[0].Code)
	require.NoError(t, err)
	require.Equal(t, bytecode.OpPushArgE, ins[0].Op)
	require.Equal(t, bytecode.OpJumpIf, ins[2].Op)
	assert.Equal(t, ins[1].Offset, ins[2].Target())
}

func TestAssembleOutOfMemory(t *testing.T) {
	_, err := Assemble(sampleProgram(), 128)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Read(make([]byte, 200))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDump(t *testing.T) {
	data, err := Assemble(sampleProgram(), 0)
	require.NoError(t, err)
	img, err := Read(data)
	require.NoError(t, err)

	out := img.Dump()
	for _, want := range []string{
		"; function integer f()",
		"integer x = 42",
		`string s = "hello"`,
		"; state default",
		"; event touch_start",
		"LOADP",
	} {
		assert.True(t, strings.Contains(out, want), "dump missing %q:\n%s", want, out)
	}
}

func TestBackend(t *testing.T) {
	b := Backend{Memory: 2048}
	assert.Equal(t, "lso", b.Name())
	data, err := b.Emit(sampleProgram())
	require.NoError(t, err)
	assert.Len(t, data, 2048)
}
