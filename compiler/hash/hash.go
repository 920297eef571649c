// Package hash computes content hashes of compile inputs. Two compiles with
// the same hash produce the same output and diagnostics.
package hash

import (
	"crypto/sha256"
	"fmt"

	"github.com/chazu/lslc/compiler"
	"github.com/chazu/lslc/pkg/library"
)

// Inputs is everything a compile's result depends on.
type Inputs struct {
	Script     *compiler.Script
	Library    *library.Table
	Privileged bool
	Backend    string
	Memory     int
}

// HashCompile computes the SHA-256 content hash of a compile.
//
// The script contributes its canonical CBOR encoding, so source positions are
// part of the hash (they appear in diagnostics) while annotations from earlier
// compiles are not. The library contributes every entry, privileged or not.
func HashCompile(in Inputs) ([32]byte, error) {
	if in.Script == nil {
		return [32]byte{}, fmt.Errorf("hash: nil script")
	}
	tree, err := compiler.MarshalScript(in.Script)
	if err != nil {
		return [32]byte{}, fmt.Errorf("hash: %w", err)
	}
	lib := in.Library
	if lib == nil {
		lib = library.Default()
	}
	libHash := HashLibrary(lib)

	s := newSerializer()
	s.writeByte(TagScript)
	s.writeBytes(tree)
	s.writeByte(TagLibrary)
	s.writeBytes(libHash[:])
	s.writeByte(TagPrivileged)
	s.writeBool(in.Privileged)
	s.writeByte(TagBackend)
	s.writeString(in.Backend)
	s.writeByte(TagMemory)
	s.writeInt(in.Memory)
	return sha256.Sum256(s.buf), nil
}

// HashLibrary computes the SHA-256 content hash of a library table.
func HashLibrary(t *library.Table) [32]byte {
	s := newSerializer()
	all := t.All()
	s.writeUint32(uint32(len(all)))
	for _, f := range all {
		s.writeFunction(f)
	}
	return sha256.Sum256(s.buf)
}
