package image

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/tliron/commonlog"

	"github.com/chazu/lslc/pkg/bytecode"
	"github.com/chazu/lslc/pkg/ir"
	"github.com/chazu/lslc/pkg/lsl"
)

var log = commonlog.GetLogger("lslc.image")

// ---------------------------------------------------------------------------
// ImageWriter: lays out a program into a fixed-size memory image
// ---------------------------------------------------------------------------

// ImageWriter assembles one program. Section offsets are recorded as each
// section is written and back-patched into the header at the end.
type ImageWriter struct {
	prog   *ir.Program
	memory int

	buf  *bytecode.Chunk
	heap *Heap

	// Section offsets (for header back-patching)
	gvr int
	gfr int
	sr  int
	hr  int
	hp  int
}

// NewImageWriter creates a writer for prog with the given memory budget.
// A budget of zero selects DefaultMemory.
func NewImageWriter(prog *ir.Program, memory int) *ImageWriter {
	if memory <= 0 {
		memory = DefaultMemory
	}
	return &ImageWriter{
		prog:   prog,
		memory: memory,
		buf:    bytecode.NewChunk(),
		heap:   NewHeap(),
	}
}

// Assemble lays out prog in an image of memory bytes.
func Assemble(prog *ir.Program, memory int) ([]byte, error) {
	return NewImageWriter(prog, memory).Write()
}

// Write produces the image.
func (w *ImageWriter) Write() ([]byte, error) {
	w.writeHeader()

	if err := w.writeGlobals(); err != nil {
		return nil, fmt.Errorf("globals: %w", err)
	}
	if err := w.writeFunctions(); err != nil {
		return nil, fmt.Errorf("functions: %w", err)
	}
	if err := w.writeStates(); err != nil {
		return nil, fmt.Errorf("states: %w", err)
	}
	w.writeHeap()

	used := w.buf.CodeLen()
	if used > w.memory {
		return nil, fmt.Errorf("%w: sections need %d bytes, budget is %d", ErrOutOfMemory, used, w.memory)
	}
	w.patchHeader()

	img := make([]byte, w.memory)
	copy(img, w.buf.Bytes())
	log.Debugf("assembled image: %d/%d bytes, %d globals, %d functions, %d states",
		used, w.memory, len(w.prog.Globals), len(w.prog.Functions), len(w.prog.States))
	return img, nil
}

// ---------------------------------------------------------------------------
// Header writing
// ---------------------------------------------------------------------------

// writeHeader reserves the register block. Values are filled in by patchHeader.
func (w *ImageWriter) writeHeader() {
	w.buf.AddBytes(make([]byte, HeaderSize))
}

// patchHeader writes the final register values.
func (w *ImageWriter) patchHeader() {
	var events uint64
	if len(w.prog.States) > 0 {
		events = w.prog.States[0].EventMask()
	}

	regs := map[int]int32{
		RegIP:  0,
		RegVN:  Version,
		RegBP:  int32(w.memory - 1),
		RegSP:  int32(w.memory),
		RegHR:  int32(w.hr),
		RegHP:  int32(w.hp),
		RegCS:  0,
		RegNS:  0,
		RegER:  int32(uint32(events)),
		RegGVR: int32(w.gvr),
		RegGFR: int32(w.gfr),
		RegSR:  int32(w.sr),
		RegTM:  int32(w.memory),
	}
	for off, v := range regs {
		w.buf.PatchInt32(off, v)
	}
	patchUint64(w.buf, RegNER, events)
}

func patchUint64(c *bytecode.Chunk, offset int, v uint64) {
	c.PatchInt32(offset, int32(uint32(v>>32)))
	c.PatchInt32(offset+4, int32(uint32(v)))
}

// ---------------------------------------------------------------------------
// Globals
// ---------------------------------------------------------------------------

func (w *ImageWriter) writeGlobals() error {
	w.gvr = w.buf.CodeLen()
	for _, g := range w.prog.Globals {
		dataOff := w.buf.CodeLen() - w.gvr + GlobalHeaderSize(g.Name)
		if g.Offset != dataOff {
			return fmt.Errorf("global %s allocated at %d, lays out at %d", g.Name, g.Offset, dataOff)
		}
		w.buf.AddInt32(int32(GlobalHeaderSize(g.Name)))
		w.buf.AddByte(byte(g.Type))
		w.buf.AddString(g.Name)

		v := g.Value
		switch {
		case v.Type == lsl.Void:
			v = ir.Zero(g.Type)
		case g.Type == lsl.Float && v.Type == lsl.Integer:
			v = ir.Value{Type: lsl.Float, Float: float32(v.Int)}
		case g.Type == lsl.List && v.Type != lsl.List:
			v = ir.Value{Type: lsl.List, List: []ir.Value{v}}
		}
		if g.Type.IsReference() {
			v.Type = g.Type
			handle, err := w.heap.Add(v)
			if err != nil {
				return fmt.Errorf("global %s: %w", g.Name, err)
			}
			w.buf.AddInt32(handle)
			continue
		}
		writeInline(w.buf, v)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

func (w *ImageWriter) writeFunctions() error {
	w.gfr = w.buf.CodeLen()
	n := len(w.prog.Functions)
	w.buf.AddInt32(int32(n))
	table := w.buf.CodeLen()
	w.buf.AddBytes(make([]byte, n*functionTableEntrySize))

	for i, f := range w.prog.Functions {
		code, err := bytecode.Lower(&f.Body)
		if err != nil {
			return fmt.Errorf("function %s: %w", f.Name, err)
		}
		entry := w.buf.CodeLen()
		w.buf.PatchInt32(table+i*functionTableEntrySize, int32(entry-w.gfr))

		params := f.ParamTypes()
		w.buf.AddInt32(int32(functionHeaderSize(f.Name, len(params))))
		w.buf.AddByte(byte(f.Return))
		w.buf.AddString(f.Name)
		for _, t := range params {
			w.buf.AddByte(byte(t))
		}
		w.buf.AddByte(0)
		if _, err := w.buf.Append(code); err != nil {
			return fmt.Errorf("function %s: %w", f.Name, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// States
// ---------------------------------------------------------------------------

func (w *ImageWriter) writeStates() error {
	w.sr = w.buf.CodeLen()
	n := len(w.prog.States)
	w.buf.AddInt32(int32(n))
	table := w.buf.CodeLen()
	w.buf.AddBytes(make([]byte, n*stateTableEntrySize))

	for i, s := range w.prog.States {
		start := w.buf.CodeLen()
		events := eventSet(s)
		w.buf.PatchInt32(table+i*stateTableEntrySize, int32(start-w.sr))
		patchUint64(w.buf, table+i*stateTableEntrySize+4, events.Bytes()[0])

		w.buf.AddString(s.Name)
		eventTable := w.buf.CodeLen()
		w.buf.AddBytes(make([]byte, len(s.Events)*eventTableEntrySize))

		for j, e := range s.Events {
			code, err := bytecode.Lower(&e.Body)
			if err != nil {
				return fmt.Errorf("state %s event %s: %w", s.Name, e.Kind, err)
			}
			entry := eventTable + j*eventTableEntrySize
			w.buf.PatchInt32(entry, int32(w.buf.CodeLen()-start))
			w.buf.PatchInt32(entry+4, int32(e.LocalBytes()))
			if _, err := w.buf.Append(code); err != nil {
				return fmt.Errorf("state %s event %s: %w", s.Name, e.Kind, err)
			}
		}
	}
	return nil
}

// eventSet is the declared-event bitfield of a state.
func eventSet(s *ir.State) *bitset.BitSet {
	bs := bitset.New(64)
	for _, e := range s.Events {
		bs.Set(uint(e.Kind))
	}
	return bs
}

// ---------------------------------------------------------------------------
// Heap
// ---------------------------------------------------------------------------

func (w *ImageWriter) writeHeap() {
	w.hr = w.buf.CodeLen()
	w.buf.AddBytes(w.heap.Bytes())
	w.hp = w.buf.CodeLen()
}

// ---------------------------------------------------------------------------
// Backend
// ---------------------------------------------------------------------------

// Backend emits LSO images. It satisfies compiler.Backend.
type Backend struct {
	Memory int
}

// Name identifies the backend in configuration.
func (b Backend) Name() string { return "lso" }

// Emit assembles prog.
func (b Backend) Emit(prog *ir.Program) ([]byte, error) {
	return Assemble(prog, b.Memory)
}
