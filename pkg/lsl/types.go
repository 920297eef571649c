// Package lsl holds the value types, operator tables and event catalogue shared by
// the compiler passes, the IR and both backends.
package lsl

import "fmt"

// Type is an LSL value type. The numeric values double as the 4-bit type tags
// written into typebytes and image headers.
type Type uint8

const (
	Void       Type = 0
	Integer    Type = 1
	Float      Type = 2
	String     Type = 3
	Key        Type = 4
	Vector     Type = 5
	Quaternion Type = 6
	List       Type = 7
)

// NumTypes is the number of defined type tags, Void included.
const NumTypes = 8

var typeNames = [NumTypes]string{
	Void:       "void",
	Integer:    "integer",
	Float:      "float",
	String:     "string",
	Key:        "key",
	Vector:     "vector",
	Quaternion: "rotation",
	List:       "list",
}

var typeSizes = [NumTypes]int{
	Void:       0,
	Integer:    4,
	Float:      4,
	String:     4,
	Key:        4,
	Vector:     12,
	Quaternion: 16,
	List:       4,
}

var typeChars = [NumTypes]byte{
	Void:       0,
	Integer:    'i',
	Float:      'f',
	String:     's',
	Key:        'k',
	Vector:     'v',
	Quaternion: 'q',
	List:       'l',
}

// String returns the source-level spelling of the type.
func (t Type) String() string {
	if int(t) < NumTypes {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", t)
}

// Size returns the number of bytes a value of this type occupies in a frame or in
// the global section. String, Key and List are heap handles.
func (t Type) Size() int {
	if int(t) < NumTypes {
		return typeSizes[t]
	}
	return 0
}

// IsReference reports whether values of the type live in the heap.
func (t Type) IsReference() bool {
	return t == String || t == Key || t == List
}

// IsNumeric reports whether the type is Integer or Float.
func (t Type) IsNumeric() bool {
	return t == Integer || t == Float
}

// Valid reports whether t is one of the defined tags.
func (t Type) Valid() bool {
	return int(t) < NumTypes
}

// Char returns the one-letter code used in library parameter strings.
func (t Type) Char() byte {
	if int(t) < NumTypes {
		return typeChars[t]
	}
	return 0
}

// TypeFromChar maps a parameter-string letter back to its type.
func TypeFromChar(c byte) (Type, bool) {
	for t, ch := range typeChars {
		if ch != 0 && ch == c {
			return Type(t), true
		}
	}
	return Void, false
}

// ParseTypes decodes a parameter-type string such as "isv".
func ParseTypes(s string) ([]Type, error) {
	types := make([]Type, 0, len(s))
	for i := 0; i < len(s); i++ {
		t, ok := TypeFromChar(s[i])
		if !ok {
			return nil, fmt.Errorf("invalid type character %q at position %d", s[i], i)
		}
		types = append(types, t)
	}
	return types, nil
}

// FormatTypes is the inverse of ParseTypes.
func FormatTypes(types []Type) string {
	buf := make([]byte, 0, len(types))
	for _, t := range types {
		buf = append(buf, t.Char())
	}
	return string(buf)
}

// TypeByName resolves a source-level type keyword. "quaternion" is accepted as an
// alias for "rotation".
func TypeByName(name string) (Type, bool) {
	if name == "quaternion" {
		return Quaternion, true
	}
	for t, n := range typeNames {
		if n == name {
			return Type(t), true
		}
	}
	return Void, false
}

// TypeByte packs two type tags into one byte: left (or result) in the high nibble,
// right in the low nibble.
func TypeByte(left, right Type) byte {
	return byte(left&0x0F)<<4 | byte(right&0x0F)
}

// SplitTypeByte unpacks a typebyte.
func SplitTypeByte(b byte) (left, right Type) {
	return Type(b >> 4), Type(b & 0x0F)
}

// FrameSize returns the summed sizes of types.
func FrameSize(types []Type) int {
	n := 0
	for _, t := range types {
		n += t.Size()
	}
	return n
}
