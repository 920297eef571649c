package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/chazu/lslc/pkg/lsl"
)

// ErrTruncated is returned when an instruction runs past the end of the code.
var ErrTruncated = errors.New("truncated instruction")

// Instruction is one decoded instruction.
type Instruction struct {
	Offset   int
	Op       Opcode
	TypeByte byte
	Int      int32 // int operand, jump displacement, or u8/u16 index
	Float    float32
	Str      string
	Floats   []float32
	Len      int
}

// Target returns the absolute offset a jump instruction branches to.
func (in Instruction) Target() int {
	return in.Offset + in.Len + int(in.Int)
}

// Decode reads the instruction at offset.
func Decode(code []byte, offset int) (Instruction, error) {
	if offset >= len(code) {
		return Instruction{}, fmt.Errorf("%w at %04X", ErrTruncated, offset)
	}
	in := Instruction{Offset: offset, Op: Opcode(code[offset])}
	info := GetOpcodeInfo(in.Op)
	pos := offset + 1

	need := func(n int) error {
		if pos+n > len(code) {
			return fmt.Errorf("%w: %s at %04X", ErrTruncated, info.Name, offset)
		}
		return nil
	}
	readFloat := func() float32 {
		v := math.Float32frombits(binary.BigEndian.Uint32(code[pos:]))
		pos += 4
		return v
	}

	switch info.Operand {
	case OperandInt:
		if err := need(4); err != nil {
			return in, err
		}
		in.Int = int32(binary.BigEndian.Uint32(code[pos:]))
		pos += 4
	case OperandFloat:
		if err := need(4); err != nil {
			return in, err
		}
		in.Float = readFloat()
	case OperandString:
		end := pos
		for end < len(code) && code[end] != 0 {
			end++
		}
		if end >= len(code) {
			return in, fmt.Errorf("%w: unterminated string at %04X", ErrTruncated, offset)
		}
		in.Str = string(code[pos:end])
		pos = end + 1
	case OperandVector, OperandQuat:
		n := 3
		if info.Operand == OperandQuat {
			n = 4
		}
		if err := need(4 * n); err != nil {
			return in, err
		}
		for i := 0; i < n; i++ {
			in.Floats = append(in.Floats, readFloat())
		}
	case OperandType:
		if err := need(1); err != nil {
			return in, err
		}
		in.TypeByte = code[pos]
		pos++
	case OperandTypeJump:
		if err := need(5); err != nil {
			return in, err
		}
		in.TypeByte = code[pos]
		in.Int = int32(binary.BigEndian.Uint32(code[pos+1:]))
		pos += 5
	case OperandByte:
		if err := need(1); err != nil {
			return in, err
		}
		in.Int = int32(code[pos])
		pos++
	case OperandShort:
		if err := need(2); err != nil {
			return in, err
		}
		in.Int = int32(binary.BigEndian.Uint16(code[pos:]))
		pos += 2
	}
	in.Len = pos - offset
	return in, nil
}

// DecodeAll decodes every instruction in code.
func DecodeAll(code []byte) ([]Instruction, error) {
	var out []Instruction
	for offset := 0; offset < len(code); {
		in, err := Decode(code, offset)
		if err != nil {
			return out, err
		}
		out = append(out, in)
		offset += in.Len
	}
	return out, nil
}

// String formats the instruction operands after its mnemonic.
func (in Instruction) String() string {
	info := GetOpcodeInfo(in.Op)
	switch info.Operand {
	case OperandInt:
		if in.Op == OpJump {
			return fmt.Sprintf("%-16s %+d -> %04X", info.Name, in.Int, in.Target())
		}
		return fmt.Sprintf("%-16s %d", info.Name, in.Int)
	case OperandFloat:
		return fmt.Sprintf("%-16s %g", info.Name, in.Float)
	case OperandString:
		return fmt.Sprintf("%-16s %q", info.Name, in.Str)
	case OperandVector, OperandQuat:
		parts := make([]string, len(in.Floats))
		for i, f := range in.Floats {
			parts[i] = fmt.Sprintf("%g", f)
		}
		return fmt.Sprintf("%-16s <%s>", info.Name, strings.Join(parts, ", "))
	case OperandType:
		return fmt.Sprintf("%-16s %s", info.Name, formatTypeByte(in.Op, in.TypeByte))
	case OperandTypeJump:
		l, _ := lsl.SplitTypeByte(in.TypeByte)
		return fmt.Sprintf("%-16s %s %+d -> %04X", info.Name, l, in.Int, in.Target())
	case OperandByte, OperandShort:
		return fmt.Sprintf("%-16s %d", info.Name, in.Int)
	}
	return info.Name
}

func formatTypeByte(op Opcode, b byte) string {
	l, r := lsl.SplitTypeByte(b)
	switch {
	case op == OpCast:
		return fmt.Sprintf("%s->%s", l, r)
	case r == lsl.Void:
		return l.String()
	}
	return fmt.Sprintf("%s,%s", l, r)
}

// Disassemble returns a human-readable listing of code, one instruction per line.
func Disassemble(code []byte) string {
	return DisassembleAt(code, 0)
}

// DisassembleAt is Disassemble with line offsets shifted by base, for listing code
// embedded in a larger image.
func DisassembleAt(code []byte, base int) string {
	var sb strings.Builder
	for offset := 0; offset < len(code); {
		in, err := Decode(code, offset)
		if err != nil {
			sb.WriteString(fmt.Sprintf("%04X  <%v>\n", base+offset, err))
			break
		}
		sb.WriteString(fmt.Sprintf("%04X  %s\n", base+offset, in))
		offset += in.Len
	}
	return sb.String()
}

// Disassemble returns a human-readable bytecode listing for the chunk.
func (c *Chunk) Disassemble() string {
	return c.DisassembleWithName("")
}

// DisassembleWithName returns a listing with a name header.
func (c *Chunk) DisassembleWithName(name string) string {
	var sb strings.Builder
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	if n := c.Pending(); n > 0 {
		sb.WriteString(fmt.Sprintf("; %d unconnected jumps\n", n))
	}
	sb.WriteString(Disassemble(c.Code))
	return sb.String()
}
