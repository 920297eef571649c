// Package bytecode holds the instruction set of the script virtual machine and the
// tools to produce and inspect it.
//
// # Instruction format
//
// Every instruction is a one-byte opcode followed by a fixed operand layout given
// by its OperandKind:
//
//   - offsets, sizes, counts, function and state indices: 4-byte big-endian int32
//   - typed arithmetic, NEG/BITNOT/BOOLNOT, CAST and PRINT: one typebyte
//     (left or result type in the high nibble, right type in the low nibble)
//   - JUMPIF/JUMPNIF: typebyte then a 4-byte displacement
//   - PUSHARGS: NUL-terminated bytes
//   - PUSHARGV/PUSHARGQ: three or four IEEE-754 singles
//   - CALLLIB: u8 library index; CALLLIB_TWO_BYTE: u16 library index
//
// # Relocation
//
// A Chunk owns its labels. EmitJump writes a zero displacement and records the
// jump site, which is the offset just past the 4-byte operand. ConnectJumps
// rewrites each operand with label offset minus site offset, so at run time
// the target is the address of the next instruction plus the displacement.
// A chunk with unconnected jumps refuses to be merged into another.
//
// # Lowering
//
// Lower turns one ir.Body into a connected Chunk. It expands the IR call, return
// and unwind instructions into the frame sequences the VM expects:
//
//	call:    [PUSHE*] PUSHBP <args> PUSHSP PUSHARGI n ADD int,int POPBP CALL i
//	prologue: PUSHARGE <local bytes>
//	return:  LOADP -(4+size) <exit pops> RETURN
//	state:   <exit pops> STATE i RETURN
package bytecode
