package bytecode

import (
	"fmt"

	"github.com/chazu/lslc/pkg/lsl"
)

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Pops (0x00-0x0F)
	// ========================================================================

	OpNoop   Opcode = 0x00
	OpPop    Opcode = 0x01 // Pop a 4-byte integer or float
	OpPopS   Opcode = 0x02 // Pop a string or key handle
	OpPopL   Opcode = 0x03 // Pop a list handle
	OpPopV   Opcode = 0x04 // Pop a vector
	OpPopQ   Opcode = 0x05 // Pop a rotation
	OpPopArg Opcode = 0x06 // Discard <size:i32> bytes
	OpPopIP  Opcode = 0x07
	OpPopBP  Opcode = 0x08 // Pop into the base pointer
	OpPopSP  Opcode = 0x09
	OpPopSLR Opcode = 0x0A

	// ========================================================================
	// Duplicates (0x20-0x2F)
	// ========================================================================

	OpDup  Opcode = 0x20
	OpDupS Opcode = 0x21
	OpDupL Opcode = 0x22
	OpDupV Opcode = 0x23
	OpDupQ Opcode = 0x24

	// ========================================================================
	// Stores (0x30-0x4F). STORE keeps the value, LOADP stores and pops.
	// ========================================================================

	OpStore    Opcode = 0x30 // STORE <offset:i32>, BP relative
	OpStoreS   Opcode = 0x31
	OpStoreL   Opcode = 0x32
	OpStoreV   Opcode = 0x33
	OpStoreQ   Opcode = 0x34
	OpStoreG   Opcode = 0x35 // STOREG <offset:i32>, GVR relative
	OpStoreGS  Opcode = 0x36
	OpStoreGL  Opcode = 0x37
	OpStoreGV  Opcode = 0x38
	OpStoreGQ  Opcode = 0x39
	OpLoadP    Opcode = 0x3A
	OpLoadSP   Opcode = 0x3B
	OpLoadLP   Opcode = 0x3C
	OpLoadVP   Opcode = 0x3D
	OpLoadQP   Opcode = 0x3E
	OpLoadGP   Opcode = 0x3F
	OpLoadGSP  Opcode = 0x40
	OpLoadGLP  Opcode = 0x41
	OpLoadGVP  Opcode = 0x42
	OpLoadGQP  Opcode = 0x43

	// ========================================================================
	// Pushes (0x50-0x6F)
	// ========================================================================

	OpPush     Opcode = 0x50 // PUSH <offset:i32>, BP relative
	OpPushS    Opcode = 0x51
	OpPushL    Opcode = 0x52
	OpPushV    Opcode = 0x53
	OpPushQ    Opcode = 0x54
	OpPushG    Opcode = 0x55 // PUSHG <offset:i32>, GVR relative
	OpPushGS   Opcode = 0x56
	OpPushGL   Opcode = 0x57
	OpPushGV   Opcode = 0x58
	OpPushGQ   Opcode = 0x59
	OpPushIP   Opcode = 0x5A
	OpPushBP   Opcode = 0x5B
	OpPushSP   Opcode = 0x5C
	OpPushArgB Opcode = 0x5D // PUSHARGB <value:u8>
	OpPushArgI Opcode = 0x5E // PUSHARGI <value:i32>
	OpPushArgF Opcode = 0x5F // PUSHARGF <value:f32>
	OpPushArgS Opcode = 0x60 // PUSHARGS <bytes...> 0x00
	OpPushArgV Opcode = 0x61 // PUSHARGV <x:f32> <y:f32> <z:f32>
	OpPushArgQ Opcode = 0x62 // PUSHARGQ <x:f32> <y:f32> <z:f32> <s:f32>
	OpPushE    Opcode = 0x63 // Push 4 zero bytes
	OpPushEV   Opcode = 0x64 // Push a zero vector
	OpPushEQ   Opcode = 0x65 // Push a zero rotation
	OpPushArgE Opcode = 0x66 // PUSHARGE <size:i32>, push size zero bytes

	// ========================================================================
	// Arithmetic and logic (0x70-0x8F), all followed by a typebyte
	// ========================================================================

	OpAdd     Opcode = 0x70
	OpSub     Opcode = 0x71
	OpMul     Opcode = 0x72
	OpDiv     Opcode = 0x73
	OpMod     Opcode = 0x74
	OpEq      Opcode = 0x75
	OpNeq     Opcode = 0x76
	OpLeq     Opcode = 0x77
	OpGeq     Opcode = 0x78
	OpLess    Opcode = 0x79
	OpGreater Opcode = 0x7A
	OpBitAnd  Opcode = 0x7B
	OpBitOr   Opcode = 0x7C
	OpBitXor  Opcode = 0x7D
	OpBoolAnd Opcode = 0x7E
	OpBoolOr  Opcode = 0x7F
	OpNeg     Opcode = 0x80
	OpBitNot  Opcode = 0x81
	OpBoolNot Opcode = 0x82

	// ========================================================================
	// Control flow (0x90-0x9F)
	// ========================================================================

	OpJump   Opcode = 0x90 // JUMP <offset:i32>
	OpJumpIf  Opcode = 0x91 // JUMPIF <typebyte> <offset:i32>
	OpJumpNif Opcode = 0x92 // JUMPNIF <typebyte> <offset:i32>
	OpState   Opcode = 0x93 // STATE <state:i32>
	OpCall    Opcode = 0x94 // CALL <function:i32>
	OpReturn  Opcode = 0x95

	// ========================================================================
	// Conversions (0xA0-0xBF)
	// ========================================================================

	OpCast     Opcode = 0xA0 // CAST <from<<4|to>
	OpStackToS Opcode = 0xB0
	OpStackToL Opcode = 0xB1 // STACKTOL <count:i32>

	// ========================================================================
	// Misc (0xC0-0xEF)
	// ========================================================================

	OpPrint         Opcode = 0xC0 // PRINT <typebyte>
	OpCallLib       Opcode = 0xD0 // CALLLIB <index:u8>
	OpCallLibTwoByte Opcode = 0xD1 // CALLLIB_TWO_BYTE <index:u16>
	OpShl           Opcode = 0xE0
	OpShr           Opcode = 0xE1
)

// OperandKind describes the bytes following an opcode.
type OperandKind uint8

const (
	OperandNone     OperandKind = iota
	OperandInt                  // 4-byte big-endian signed integer
	OperandFloat                // 4-byte IEEE-754 float
	OperandString               // NUL-terminated bytes
	OperandVector               // three floats
	OperandQuat                 // four floats
	OperandType                 // one typebyte
	OperandTypeJump             // typebyte then a 4-byte displacement
	OperandByte                 // one unsigned byte
	OperandShort                // two-byte big-endian unsigned
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name    string
	Operand OperandKind
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNoop:   {"NOOP", OperandNone},
	OpPop:    {"POP", OperandNone},
	OpPopS:   {"POPS", OperandNone},
	OpPopL:   {"POPL", OperandNone},
	OpPopV:   {"POPV", OperandNone},
	OpPopQ:   {"POPQ", OperandNone},
	OpPopArg: {"POPARG", OperandInt},
	OpPopIP:  {"POPIP", OperandNone},
	OpPopBP:  {"POPBP", OperandNone},
	OpPopSP:  {"POPSP", OperandNone},
	OpPopSLR: {"POPSLR", OperandNone},

	OpDup:  {"DUP", OperandNone},
	OpDupS: {"DUPS", OperandNone},
	OpDupL: {"DUPL", OperandNone},
	OpDupV: {"DUPV", OperandNone},
	OpDupQ: {"DUPQ", OperandNone},

	OpStore:   {"STORE", OperandInt},
	OpStoreS:  {"STORES", OperandInt},
	OpStoreL:  {"STOREL", OperandInt},
	OpStoreV:  {"STOREV", OperandInt},
	OpStoreQ:  {"STOREQ", OperandInt},
	OpStoreG:  {"STOREG", OperandInt},
	OpStoreGS: {"STOREGS", OperandInt},
	OpStoreGL: {"STOREGL", OperandInt},
	OpStoreGV: {"STOREGV", OperandInt},
	OpStoreGQ: {"STOREGQ", OperandInt},
	OpLoadP:   {"LOADP", OperandInt},
	OpLoadSP:  {"LOADSP", OperandInt},
	OpLoadLP:  {"LOADLP", OperandInt},
	OpLoadVP:  {"LOADVP", OperandInt},
	OpLoadQP:  {"LOADQP", OperandInt},
	OpLoadGP:  {"LOADGP", OperandInt},
	OpLoadGSP: {"LOADGSP", OperandInt},
	OpLoadGLP: {"LOADGLP", OperandInt},
	OpLoadGVP: {"LOADGVP", OperandInt},
	OpLoadGQP: {"LOADGQP", OperandInt},

	OpPush:     {"PUSH", OperandInt},
	OpPushS:    {"PUSHS", OperandInt},
	OpPushL:    {"PUSHL", OperandInt},
	OpPushV:    {"PUSHV", OperandInt},
	OpPushQ:    {"PUSHQ", OperandInt},
	OpPushG:    {"PUSHG", OperandInt},
	OpPushGS:   {"PUSHGS", OperandInt},
	OpPushGL:   {"PUSHGL", OperandInt},
	OpPushGV:   {"PUSHGV", OperandInt},
	OpPushGQ:   {"PUSHGQ", OperandInt},
	OpPushIP:   {"PUSHIP", OperandNone},
	OpPushBP:   {"PUSHBP", OperandNone},
	OpPushSP:   {"PUSHSP", OperandNone},
	OpPushArgB: {"PUSHARGB", OperandByte},
	OpPushArgI: {"PUSHARGI", OperandInt},
	OpPushArgF: {"PUSHARGF", OperandFloat},
	OpPushArgS: {"PUSHARGS", OperandString},
	OpPushArgV: {"PUSHARGV", OperandVector},
	OpPushArgQ: {"PUSHARGQ", OperandQuat},
	OpPushE:    {"PUSHE", OperandNone},
	OpPushEV:   {"PUSHEV", OperandNone},
	OpPushEQ:   {"PUSHEQ", OperandNone},
	OpPushArgE: {"PUSHARGE", OperandInt},

	OpAdd:     {"ADD", OperandType},
	OpSub:     {"SUB", OperandType},
	OpMul:     {"MUL", OperandType},
	OpDiv:     {"DIV", OperandType},
	OpMod:     {"MOD", OperandType},
	OpEq:      {"EQ", OperandType},
	OpNeq:     {"NEQ", OperandType},
	OpLeq:     {"LEQ", OperandType},
	OpGeq:     {"GEQ", OperandType},
	OpLess:    {"LESS", OperandType},
	OpGreater: {"GREATER", OperandType},
	OpBitAnd:  {"BITAND", OperandType},
	OpBitOr:   {"BITOR", OperandType},
	OpBitXor:  {"BITXOR", OperandType},
	OpBoolAnd: {"BOOLAND", OperandType},
	OpBoolOr:  {"BOOLOR", OperandType},
	OpNeg:     {"NEG", OperandType},
	OpBitNot:  {"BITNOT", OperandType},
	OpBoolNot: {"BOOLNOT", OperandType},

	OpJump:    {"JUMP", OperandInt},
	OpJumpIf:  {"JUMPIF", OperandTypeJump},
	OpJumpNif: {"JUMPNIF", OperandTypeJump},
	OpState:   {"STATE", OperandInt},
	OpCall:    {"CALL", OperandInt},
	OpReturn:  {"RETURN", OperandNone},

	OpCast:     {"CAST", OperandType},
	OpStackToS: {"STACKTOS", OperandInt},
	OpStackToL: {"STACKTOL", OperandInt},

	OpPrint:          {"PRINT", OperandType},
	OpCallLib:        {"CALLLIB", OperandByte},
	OpCallLibTwoByte: {"CALLLIB_TWO_BYTE", OperandShort},
	OpShl:            {"SHL", OperandType},
	OpShr:            {"SHR", OperandType},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsJump returns true if this opcode carries a relative displacement.
func (op Opcode) IsJump() bool {
	return op >= OpJump && op <= OpJumpNif
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// ---------------------------------------------------------------------------
// Typed opcode selection
// ---------------------------------------------------------------------------

// typed picks the variant of a five-opcode family (int/float, string/key, list,
// vector, rotation) for t.
func typed(base Opcode, t lsl.Type) Opcode {
	switch t {
	case lsl.String, lsl.Key:
		return base + 1
	case lsl.List:
		return base + 2
	case lsl.Vector:
		return base + 3
	case lsl.Quaternion:
		return base + 4
	}
	return base
}

// PopFor returns the pop opcode matching t.
func PopFor(t lsl.Type) Opcode { return typed(OpPop, t) }

// PushLocalFor returns the BP-relative push opcode matching t.
func PushLocalFor(t lsl.Type) Opcode { return typed(OpPush, t) }

// PushGlobalFor returns the GVR-relative push opcode matching t.
func PushGlobalFor(t lsl.Type) Opcode { return typed(OpPushG, t) }

// StoreFor returns the store opcode for t. keep selects STORE (value stays on the
// stack) over LOADP (value is popped).
func StoreFor(t lsl.Type, global, keep bool) Opcode {
	switch {
	case global && keep:
		return typed(OpStoreG, t)
	case global:
		return typed(OpLoadGP, t)
	case keep:
		return typed(OpStore, t)
	}
	return typed(OpLoadP, t)
}

// PushEmptyFor returns the zero-value push for t.
func PushEmptyFor(t lsl.Type) Opcode {
	switch t {
	case lsl.Vector:
		return OpPushEV
	case lsl.Quaternion:
		return OpPushEQ
	}
	return OpPushE
}

var operatorOpcodes = map[lsl.Operator]Opcode{
	lsl.OpAdd:     OpAdd,
	lsl.OpSub:     OpSub,
	lsl.OpMul:     OpMul,
	lsl.OpDiv:     OpDiv,
	lsl.OpMod:     OpMod,
	lsl.OpEq:      OpEq,
	lsl.OpNeq:     OpNeq,
	lsl.OpLeq:     OpLeq,
	lsl.OpGeq:     OpGeq,
	lsl.OpLess:    OpLess,
	lsl.OpGreater: OpGreater,
	lsl.OpBitAnd:  OpBitAnd,
	lsl.OpBitOr:   OpBitOr,
	lsl.OpBitXor:  OpBitXor,
	lsl.OpBoolAnd: OpBoolAnd,
	lsl.OpBoolOr:  OpBoolOr,
	lsl.OpShl:     OpShl,
	lsl.OpShr:     OpShr,
	lsl.OpNeg:     OpNeg,
	lsl.OpBitNot:  OpBitNot,
	lsl.OpBoolNot: OpBoolNot,
}

// OperatorOpcode maps an operator to its typebyte-dispatched opcode.
func OperatorOpcode(op lsl.Operator) (Opcode, bool) {
	code, ok := operatorOpcodes[op]
	return code, ok
}
