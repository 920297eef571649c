package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the fingerprint stream.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones invalidates
// every cached compile.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix of the fingerprint stream.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// Section tags. Each tag introduces one compile input.
const (
	TagReservedZero byte = 0x00

	TagScript     byte = 0x01 // canonical CBOR of the syntax tree
	TagLibrary    byte = 0x02 // library fingerprint
	TagFunction   byte = 0x03 // one library entry
	TagPrivileged byte = 0x04
	TagBackend    byte = 0x05
	TagMemory     byte = 0x06
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagScript, TagLibrary, TagFunction,
	TagPrivileged, TagBackend, TagMemory,
}
