package image

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/chazu/lslc/pkg/bytecode"
	"github.com/chazu/lslc/pkg/lsl"
)

// Header holds the decoded register block.
type Header struct {
	IP, VN, BP, SP, HR, HP, CS, NS   int32
	CE, IE, ER, FR, SLR              int32
	GVR, GFR, SR, TM, PR, ESR        int32
	NCE, NIE, NER                    uint64
}

// GlobalEntry is one decoded global.
type GlobalEntry struct {
	Name   string
	Type   lsl.Type
	Offset int // GVR-relative offset of the data
	Data   []byte
}

// FunctionEntry is one decoded function.
type FunctionEntry struct {
	Name      string
	Return    lsl.Type
	Params    []lsl.Type
	Offset    int // GFR-relative offset of the entry
	CodeStart int // absolute offset of the first instruction
	Code      []byte
}

// HandlerEntry is one event handler of a state.
type HandlerEntry struct {
	Kind       lsl.EventKind
	Offset     int // state-relative offset of the code
	LocalBytes int
	CodeStart  int
	Code       []byte
}

// StateEntry is one decoded state.
type StateEntry struct {
	Name     string
	Offset   int // SR-relative
	Events   uint64
	Handlers []HandlerEntry
}

// HeapBlock is one allocated heap block.
type HeapBlock struct {
	Handle int32
	Type   lsl.Type
	Refs   uint16
	Data   []byte
}

// Image is a decoded memory image.
type Image struct {
	Header    Header
	Globals   []GlobalEntry
	Functions []FunctionEntry
	States    []StateEntry
	Heap      []HeapBlock
}

// imageReader walks an image with bounds checks.
type imageReader struct {
	data []byte
}

func (r *imageReader) u32(off int) (int, error) {
	if off < 0 || off+4 > len(r.data) {
		return 0, fmt.Errorf("%w: word at %d out of range", ErrMalformed, off)
	}
	return int(int32(binary.BigEndian.Uint32(r.data[off:]))), nil
}

func (r *imageReader) u64(off int) (uint64, error) {
	if off < 0 || off+8 > len(r.data) {
		return 0, fmt.Errorf("%w: long at %d out of range", ErrMalformed, off)
	}
	return binary.BigEndian.Uint64(r.data[off:]), nil
}

func (r *imageReader) cstring(off int) (string, int, error) {
	for end := off; end < len(r.data); end++ {
		if r.data[end] == 0 {
			return string(r.data[off:end]), end + 1, nil
		}
	}
	return "", 0, fmt.Errorf("%w: unterminated string at %d", ErrMalformed, off)
}

func (r *imageReader) slice(from, to int) ([]byte, error) {
	if from < 0 || to > len(r.data) || from > to {
		return nil, fmt.Errorf("%w: range %d..%d", ErrMalformed, from, to)
	}
	return r.data[from:to], nil
}

// Read decodes an image produced by ImageWriter.
func Read(data []byte) (*Image, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrMalformed, len(data))
	}
	r := &imageReader{data: data}
	img := &Image{}
	if err := r.readHeader(&img.Header); err != nil {
		return nil, err
	}
	h := img.Header
	if h.VN != Version {
		return nil, fmt.Errorf("%w: version 0x%04X", ErrMalformed, h.VN)
	}
	if !(HeaderSize <= h.GVR && h.GVR <= h.GFR && h.GFR <= h.SR && h.SR <= h.HR && h.HR <= h.HP && int(h.HP) <= len(data)) {
		return nil, fmt.Errorf("%w: section registers out of order", ErrMalformed)
	}

	var err error
	if img.Globals, err = r.readGlobals(int(h.GVR), int(h.GFR)); err != nil {
		return nil, err
	}
	if img.Functions, err = r.readFunctions(int(h.GFR), int(h.SR)); err != nil {
		return nil, err
	}
	if img.States, err = r.readStates(int(h.SR), int(h.HR)); err != nil {
		return nil, err
	}
	if img.Heap, err = r.readHeap(int(h.HR), int(h.HP)); err != nil {
		return nil, err
	}
	return img, nil
}

func (r *imageReader) readHeader(h *Header) error {
	words := []struct {
		dst *int32
		off int
	}{
		{&h.IP, RegIP}, {&h.VN, RegVN}, {&h.BP, RegBP}, {&h.SP, RegSP},
		{&h.HR, RegHR}, {&h.HP, RegHP}, {&h.CS, RegCS}, {&h.NS, RegNS},
		{&h.CE, RegCE}, {&h.IE, RegIE}, {&h.ER, RegER}, {&h.FR, RegFR},
		{&h.SLR, RegSLR}, {&h.GVR, RegGVR}, {&h.GFR, RegGFR}, {&h.SR, RegSR},
		{&h.TM, RegTM}, {&h.PR, RegPR}, {&h.ESR, RegESR},
	}
	for _, w := range words {
		v, err := r.u32(w.off)
		if err != nil {
			return err
		}
		*w.dst = int32(v)
	}
	var err error
	if h.NCE, err = r.u64(RegNCE); err != nil {
		return err
	}
	if h.NIE, err = r.u64(RegNIE); err != nil {
		return err
	}
	h.NER, err = r.u64(RegNER)
	return err
}

func (r *imageReader) readGlobals(start, end int) ([]GlobalEntry, error) {
	var out []GlobalEntry
	for pos := start; pos < end; {
		hdr, err := r.u32(pos)
		if err != nil {
			return nil, err
		}
		if pos+4 >= end {
			return nil, fmt.Errorf("%w: global at %d", ErrMalformed, pos)
		}
		typ := lsl.Type(r.data[pos+4])
		name, _, err := r.cstring(pos + 5)
		if err != nil {
			return nil, err
		}
		data := pos + hdr
		size := typ.Size()
		if size == 0 {
			return nil, fmt.Errorf("%w: global %s has type %s", ErrMalformed, name, typ)
		}
		raw, err := r.slice(data, data+size)
		if err != nil {
			return nil, err
		}
		out = append(out, GlobalEntry{Name: name, Type: typ, Offset: data - start, Data: raw})
		pos = data + size
	}
	return out, nil
}

func (r *imageReader) readFunctions(start, end int) ([]FunctionEntry, error) {
	count, err := r.u32(start)
	if err != nil {
		return nil, err
	}
	if count < 0 || start+4+count*functionTableEntrySize > end {
		return nil, fmt.Errorf("%w: function count %d", ErrMalformed, count)
	}
	offsets := make([]int, count+1)
	for i := 0; i < count; i++ {
		if offsets[i], err = r.u32(start + 4 + i*functionTableEntrySize); err != nil {
			return nil, err
		}
	}
	offsets[count] = end - start

	out := make([]FunctionEntry, 0, count)
	for i := 0; i < count; i++ {
		entry := start + offsets[i]
		toCode, err := r.u32(entry)
		if err != nil {
			return nil, err
		}
		if entry+4 >= end {
			return nil, fmt.Errorf("%w: function %d header", ErrMalformed, i)
		}
		f := FunctionEntry{Return: lsl.Type(r.data[entry+4]), Offset: offsets[i]}
		var pos int
		if f.Name, pos, err = r.cstring(entry + 5); err != nil {
			return nil, err
		}
		for ; pos < len(r.data) && r.data[pos] != 0; pos++ {
			f.Params = append(f.Params, lsl.Type(r.data[pos]))
		}
		f.CodeStart = entry + toCode
		if f.Code, err = r.slice(f.CodeStart, start+offsets[i+1]); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (r *imageReader) readStates(start, end int) ([]StateEntry, error) {
	count, err := r.u32(start)
	if err != nil {
		return nil, err
	}
	if count < 0 || start+4+count*stateTableEntrySize > end {
		return nil, fmt.Errorf("%w: state count %d", ErrMalformed, count)
	}

	out := make([]StateEntry, count)
	for i := range out {
		row := start + 4 + i*stateTableEntrySize
		if out[i].Offset, err = r.u32(row); err != nil {
			return nil, err
		}
		if out[i].Events, err = r.u64(row + 4); err != nil {
			return nil, err
		}
	}

	for i := range out {
		s := &out[i]
		base := start + s.Offset
		stateEnd := end
		if i+1 < count {
			stateEnd = start + out[i+1].Offset
		}
		var pos int
		if s.Name, pos, err = r.cstring(base); err != nil {
			return nil, err
		}

		events := bitset.From([]uint64{s.Events})
		for k, ok := events.NextSet(0); ok; k, ok = events.NextSet(k + 1) {
			hOff, err := r.u32(pos)
			if err != nil {
				return nil, err
			}
			locals, err := r.u32(pos + 4)
			if err != nil {
				return nil, err
			}
			s.Handlers = append(s.Handlers, HandlerEntry{
				Kind:       lsl.EventKind(k),
				Offset:     hOff,
				LocalBytes: locals,
				CodeStart:  base + hOff,
			})
			pos += eventTableEntrySize
		}
		for j := range s.Handlers {
			to := stateEnd
			if j+1 < len(s.Handlers) {
				to = s.Handlers[j+1].CodeStart
			}
			if s.Handlers[j].Code, err = r.slice(s.Handlers[j].CodeStart, to); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (r *imageReader) readHeap(start, end int) ([]HeapBlock, error) {
	var out []HeapBlock
	for pos := start; pos < end; {
		size, err := r.u32(pos)
		if err != nil {
			return nil, err
		}
		if pos+heapBlockHeaderSize > end {
			return nil, fmt.Errorf("%w: heap block at %d", ErrMalformed, pos)
		}
		typ := lsl.Type(r.data[pos+4])
		refs := binary.BigEndian.Uint16(r.data[pos+5:])
		if size == 0 && typ == lsl.Void {
			return out, nil
		}
		data, err := r.slice(pos+heapBlockHeaderSize, pos+heapBlockHeaderSize+size)
		if err != nil {
			return nil, err
		}
		out = append(out, HeapBlock{Handle: int32(pos - start + 1), Type: typ, Refs: refs, Data: data})
		pos += heapBlockHeaderSize + size
	}
	return nil, fmt.Errorf("%w: heap has no sentinel", ErrMalformed)
}

// Function returns the function called name.
func (img *Image) Function(name string) (FunctionEntry, bool) {
	for _, f := range img.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return FunctionEntry{}, false
}

// HeapString returns the string stored in the block behind handle.
func (img *Image) HeapString(handle int32) (string, bool) {
	for _, b := range img.Heap {
		if b.Handle == handle && (b.Type == lsl.String || b.Type == lsl.Key) && len(b.Data) > 0 {
			return string(b.Data[:len(b.Data)-1]), true
		}
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Listing
// ---------------------------------------------------------------------------

// Dump renders a decoded image as an assembly listing.
func (img *Image) Dump() string {
	var sb strings.Builder
	h := img.Header
	fmt.Fprintf(&sb, "; image v%04X, %d bytes\n", h.VN, h.TM)
	fmt.Fprintf(&sb, "; GVR %04X  GFR %04X  SR %04X  HR %04X  HP %04X  SP %04X\n",
		h.GVR, h.GFR, h.SR, h.HR, h.HP, h.SP)

	if len(img.Globals) > 0 {
		sb.WriteString("\n; globals\n")
		for _, g := range img.Globals {
			fmt.Fprintf(&sb, "%04X  %s %s = %s\n", int(h.GVR)+g.Offset, g.Type, g.Name, img.formatGlobal(g))
		}
	}
	for _, f := range img.Functions {
		fmt.Fprintf(&sb, "\n; function %s %s(%s)\n", f.Return, f.Name, lsl.FormatTypes(f.Params))
		sb.WriteString(bytecode.DisassembleAt(f.Code, f.CodeStart))
	}
	for _, s := range img.States {
		fmt.Fprintf(&sb, "\n; state %s events=%016X\n", s.Name, s.Events)
		for _, e := range s.Handlers {
			fmt.Fprintf(&sb, "; event %s locals=%d\n", e.Kind, e.LocalBytes)
			sb.WriteString(bytecode.DisassembleAt(e.Code, e.CodeStart))
		}
	}
	if len(img.Heap) > 0 {
		sb.WriteString("\n; heap\n")
		for _, b := range img.Heap {
			fmt.Fprintf(&sb, "#%-4d %s refs=%d size=%d\n", b.Handle, b.Type, b.Refs, len(b.Data))
		}
	}
	return sb.String()
}

func (img *Image) formatGlobal(g GlobalEntry) string {
	word := func(i int) uint32 { return binary.BigEndian.Uint32(g.Data[4*i:]) }
	flt := func(i int) float32 { return math.Float32frombits(word(i)) }
	switch g.Type {
	case lsl.Integer:
		return fmt.Sprintf("%d", int32(word(0)))
	case lsl.Float:
		return fmt.Sprintf("%g", flt(0))
	case lsl.Vector:
		return fmt.Sprintf("<%g, %g, %g>", flt(0), flt(1), flt(2))
	case lsl.Quaternion:
		return fmt.Sprintf("<%g, %g, %g, %g>", flt(0), flt(1), flt(2), flt(3))
	case lsl.String, lsl.Key:
		if s, ok := img.HeapString(int32(word(0))); ok {
			return fmt.Sprintf("%q", s)
		}
	}
	return fmt.Sprintf("#%d", int32(word(0)))
}
