package image

import (
	"fmt"

	"github.com/chazu/lslc/pkg/bytecode"
	"github.com/chazu/lslc/pkg/ir"
	"github.com/chazu/lslc/pkg/lsl"
)

// Heap bump-allocates reference values into HR-relative blocks.
type Heap struct {
	buf *bytecode.Chunk
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{buf: bytecode.NewChunk()}
}

// Add allocates a block holding v and returns its 1-based handle.
func (h *Heap) Add(v ir.Value) (int32, error) {
	data := bytecode.NewChunk()
	switch v.Type {
	case lsl.String, lsl.Key:
		data.AddString(v.Str)
	case lsl.List:
		data.AddInt32(int32(len(v.List)))
		for i, e := range v.List {
			if e.Type == lsl.List || !e.Type.Valid() || e.Type == lsl.Void {
				return 0, fmt.Errorf("list element %d: cannot store %s in a list", i, e.Type)
			}
			data.AddByte(byte(e.Type))
			writeInline(data, e)
		}
	default:
		return 0, fmt.Errorf("%s is not a heap type", v.Type)
	}

	handle := int32(h.buf.CodeLen() + 1)
	h.buf.AddInt32(int32(data.CodeLen()))
	h.buf.AddByte(byte(v.Type))
	h.buf.AddInt16(1)
	h.buf.AddBytes(data.Bytes())
	return handle, nil
}

// Bytes returns the heap contents followed by the zero sentinel block.
func (h *Heap) Bytes() []byte {
	out := make([]byte, 0, h.buf.CodeLen()+heapBlockHeaderSize)
	out = append(out, h.buf.Bytes()...)
	return append(out, make([]byte, heapBlockHeaderSize)...)
}

// writeInline writes a value in place. Strings and keys are NUL-terminated.
func writeInline(c *bytecode.Chunk, v ir.Value) {
	switch v.Type {
	case lsl.Integer:
		c.AddInt32(v.Int)
	case lsl.Float:
		c.AddFloat32(v.Float)
	case lsl.String, lsl.Key:
		c.AddString(v.Str)
	case lsl.Vector:
		for _, f := range v.Vec[:3] {
			c.AddFloat32(f)
		}
	case lsl.Quaternion:
		for _, f := range v.Vec {
			c.AddFloat32(f)
		}
	}
}
