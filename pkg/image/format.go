// Package image assembles compiled programs into the fixed-layout memory image
// the script VM boots from, and reads such images back for listings and tests.
//
// Layout, in address order:
//
//	header     register block, HeaderSize bytes
//	GVR        globals:   [u32 off-to-data][u8 type][name\0][data] ...
//	GFR        functions: [u32 count][count x u32 offset] then per function
//	           [u32 off-to-code][u8 ret][name\0][param types][0x00][code]
//	SR         states:    [u32 count][count x (u32 offset, u64 events)] then per state
//	           [name\0][per event: u32 handler offset, u32 local bytes][handler code]
//	HR         heap:      [i32 size][u8 type][u16 refs][data] ... zero sentinel
//	           free space, then the stack growing down from TM
//
// All multi-byte values are big-endian.
package image

import (
	"errors"
)

// Version is written to the VN register.
const Version = 0x0200

// HeaderSize is the size of the register block.
const HeaderSize = 100

// DefaultMemory is the image size used when the caller does not give one.
const DefaultMemory = 16384

// Register byte offsets inside the header.
const (
	RegIP  = 0  // instruction pointer
	RegVN  = 4  // version
	RegBP  = 8  // base pointer
	RegSP  = 12 // stack pointer
	RegHR  = 16 // heap register
	RegHP  = 20 // heap pointer
	RegCS  = 24 // current state
	RegNS  = 28 // next state
	RegCE  = 32 // current events
	RegIE  = 36 // in event
	RegER  = 40 // event register
	RegFR  = 44 // fault register
	RegSLR = 48 // sleep register
	RegGVR = 52 // global variable register
	RegGFR = 56 // global function register
	RegSR  = 60 // state register
	RegTM  = 64 // top of memory
	RegPR  = 68 // parameter register
	RegESR = 72 // energy supply register
	RegNCE = 76 // 64-bit current events
	RegNIE = 84 // 64-bit in event
	RegNER = 92 // 64-bit event register
)

// heapBlockHeaderSize is [i32 size][u8 type][u16 refcount].
const heapBlockHeaderSize = 7

// functionTableEntrySize is one u32 offset.
const functionTableEntrySize = 4

// stateTableEntrySize is a u32 offset and a u64 event mask.
const stateTableEntrySize = 12

// eventTableEntrySize is a u32 handler offset and u32 local byte count.
const eventTableEntrySize = 8

var (
	// ErrOutOfMemory is returned when the assembled sections do not fit the
	// memory budget.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrMalformed is returned by the reader for images that do not parse.
	ErrMalformed = errors.New("malformed image")
)

// GlobalHeaderSize is the number of bytes written before a global's data:
// offset word, type byte, NUL-terminated name.
func GlobalHeaderSize(name string) int {
	return 4 + 1 + len(name) + 1
}

// functionHeaderSize is the bytes before a function's code.
func functionHeaderSize(name string, params int) int {
	return 4 + 1 + len(name) + 1 + params + 1
}
