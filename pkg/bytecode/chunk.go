package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrUndefinedLabel is returned by ConnectJumps when a jump refers to a label that
// was never defined in the same chunk.
var ErrUndefinedLabel = errors.New("jump to undefined label")

// ErrPendingJumps is returned when merging a chunk whose jumps are not yet connected.
var ErrPendingJumps = errors.New("chunk has unconnected jumps")

// LabelID names a branch target within one chunk.
type LabelID int

// jumpSite records a jump operand waiting for its label. Site is the offset just
// past the 4-byte displacement.
type jumpSite struct {
	Label LabelID
	Site  int
}

// Chunk is an append-only code buffer with its own label relocation table.
// Jumps are recorded by label and patched by ConnectJumps once every label in the
// chunk has been placed.
type Chunk struct {
	Code []byte

	labels map[LabelID]int
	jumps  []jumpSite
}

// NewChunk creates a new empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		Code:   make([]byte, 0, 64),
		labels: make(map[LabelID]int),
	}
}

// Emit appends a single-byte opcode to the code section.
func (c *Chunk) Emit(op Opcode) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	return offset
}

// EmitWithOperand appends an opcode with operand bytes.
func (c *Chunk) EmitWithOperand(op Opcode, operands ...byte) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.Code = append(c.Code, operands...)
	return offset
}

// EmitInt appends an opcode followed by a big-endian int32 operand.
func (c *Chunk) EmitInt(op Opcode, v int32) int {
	offset := c.Emit(op)
	c.AddInt32(v)
	return offset
}

// EmitTyped appends an opcode followed by a typebyte.
func (c *Chunk) EmitTyped(op Opcode, typeByte byte) int {
	return c.EmitWithOperand(op, typeByte)
}

// EmitFloat appends an opcode followed by an IEEE-754 single.
func (c *Chunk) EmitFloat(op Opcode, v float32) int {
	offset := c.Emit(op)
	c.AddFloat32(v)
	return offset
}

// EmitString appends an opcode followed by NUL-terminated bytes.
func (c *Chunk) EmitString(op Opcode, s string) int {
	offset := c.Emit(op)
	c.AddString(s)
	return offset
}

// EmitFloats appends an opcode followed by a run of floats (vectors, rotations).
func (c *Chunk) EmitFloats(op Opcode, vs ...float32) int {
	offset := c.Emit(op)
	for _, v := range vs {
		c.AddFloat32(v)
	}
	return offset
}

// AddByte appends a raw byte.
func (c *Chunk) AddByte(b byte) {
	c.Code = append(c.Code, b)
}

// AddBytes appends raw bytes.
func (c *Chunk) AddBytes(b []byte) {
	c.Code = append(c.Code, b...)
}

// AddInt16 appends a big-endian uint16.
func (c *Chunk) AddInt16(v uint16) {
	c.Code = binary.BigEndian.AppendUint16(c.Code, v)
}

// AddInt32 appends a big-endian int32.
func (c *Chunk) AddInt32(v int32) {
	c.Code = binary.BigEndian.AppendUint32(c.Code, uint32(v))
}

// AddInt64 appends a big-endian uint64.
func (c *Chunk) AddInt64(v uint64) {
	c.Code = binary.BigEndian.AppendUint64(c.Code, v)
}

// AddFloat32 appends a big-endian IEEE-754 single.
func (c *Chunk) AddFloat32(v float32) {
	c.Code = binary.BigEndian.AppendUint32(c.Code, math.Float32bits(v))
}

// AddString appends s followed by a NUL byte.
func (c *Chunk) AddString(s string) {
	c.Code = append(c.Code, s...)
	c.Code = append(c.Code, 0)
}

// PatchInt32 overwrites the four bytes at offset.
func (c *Chunk) PatchInt32(offset int, v int32) {
	binary.BigEndian.PutUint32(c.Code[offset:], uint32(v))
}

// ---------------------------------------------------------------------------
// Relocation
// ---------------------------------------------------------------------------

// AddLabel defines label at the current end of the code.
func (c *Chunk) AddLabel(label LabelID) {
	c.AddLabelAt(label, len(c.Code))
}

// AddLabelAt defines label at offset.
func (c *Chunk) AddLabelAt(label LabelID, offset int) {
	c.labels[label] = offset
}

// LabelOffset returns where label was defined.
func (c *Chunk) LabelOffset(label LabelID) (int, bool) {
	off, ok := c.labels[label]
	return off, ok
}

// AddJump records a jump to label whose 4-byte displacement ends at site.
func (c *Chunk) AddJump(label LabelID, site int) {
	c.jumps = append(c.jumps, jumpSite{Label: label, Site: site})
}

// EmitJump emits a JUMP, JUMPIF or JUMPNIF with a placeholder displacement and
// records it against label. typeByte is ignored for JUMP. Returns the jump site.
func (c *Chunk) EmitJump(op Opcode, typeByte byte, label LabelID) int {
	c.Emit(op)
	if op != OpJump {
		c.AddByte(typeByte)
	}
	c.AddInt32(0)
	site := len(c.Code)
	c.AddJump(label, site)
	return site
}

// ConnectJumps patches every recorded jump with the displacement from its site to
// its label. Connected jumps are removed from the table.
func (c *Chunk) ConnectJumps() error {
	for _, j := range c.jumps {
		target, ok := c.labels[j.Label]
		if !ok {
			return fmt.Errorf("%w: L%d at offset %d", ErrUndefinedLabel, j.Label, j.Site)
		}
		c.PatchInt32(j.Site-4, int32(target-j.Site))
	}
	c.jumps = c.jumps[:0]
	return nil
}

// Pending returns the number of jumps that still await ConnectJumps.
func (c *Chunk) Pending() int {
	return len(c.jumps)
}

// Append merges other into c by copying its bytes. Labels are chunk-local, so
// other must already be connected.
func (c *Chunk) Append(other *Chunk) (int, error) {
	if other.Pending() > 0 {
		return 0, fmt.Errorf("%w: %d pending", ErrPendingJumps, other.Pending())
	}
	offset := len(c.Code)
	c.Code = append(c.Code, other.Code...)
	return offset, nil
}

// CurrentOffset returns the current offset in the code section.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

// CodeLen returns the length of the code section.
func (c *Chunk) CodeLen() int {
	return len(c.Code)
}

// Bytes returns the code section.
func (c *Chunk) Bytes() []byte {
	return c.Code
}
