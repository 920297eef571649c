package hash

import (
	"encoding/binary"

	"github.com/chazu/lslc/pkg/library"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of compile inputs.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (int64=8B)
//   - Strings and byte blobs: uint32 big-endian length + bytes
//   - Booleans: single byte (0/1)
// ---------------------------------------------------------------------------

type serializer struct {
	buf []byte
}

func newSerializer() *serializer {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	return s
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeInt(v int) {
	s.writeInt64(int64(v))
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeBytes(v []byte) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

// writeFunction serializes one library entry. Entries arrive in index order.
func (s *serializer) writeFunction(f library.Function) {
	s.writeByte(TagFunction)
	s.writeString(f.Name)
	s.writeByte(byte(f.Return))
	s.writeUint32(uint32(len(f.Params)))
	for _, p := range f.Params {
		s.writeByte(byte(p))
	}
	s.writeBool(f.Privileged)
	s.writeInt(f.Index)
}
