// Package loader defines the contract the disassembly engine uses to reach
// a loaded binary image. Concrete loaders (file-format parsers, segment
// discovery, entry-point location) are external collaborators; the engine
// depends only on this interface.
package loader

import "reverse/internal/buffer"

// SegmentKind is a bitmask of the roles a segment can play.
type SegmentKind uint32

const (
	KindCode SegmentKind = 1 << iota
	KindData
	KindBss
	KindImport
	KindExport
)

// Has reports whether k includes every bit set in other.
func (k SegmentKind) Has(other SegmentKind) bool { return k&other == other }

// Segment is a named, contiguous, immutable-once-published address range.
type Segment struct {
	Name   string
	Start  uint64
	Size   uint64
	Offset uint64
	Kind   SegmentKind
}

// End returns the address one past the last byte of the segment.
func (s Segment) End() uint64 { return s.Start + s.Size }

// Contains reports whether address falls inside [Start, Start+Size).
func (s Segment) Contains(address uint64) bool {
	return address >= s.Start && address < s.End()
}

// Seed is an address the loader wants the engine to start decoding from,
// beyond the single entry point — e.g. exported functions or known
// callbacks discovered while parsing the image.
type Seed struct {
	Address uint64
	Name    string
	Kind    uint32 // mirrors symtab.SymbolKind, kept as uint32 to avoid an import cycle
}

// Loader maps addresses to byte offsets, enumerates segments, reports the
// entry point, and supplies byte views over a loaded image. It never
// mutates engine state directly; the engine only ever reads from it.
type Loader interface {
	// View returns a BufferView anchored at address. An address outside
	// every mapped segment yields an empty view (View.EOB() is true).
	View(address uint64) buffer.View

	// Offset translates address to a file offset. ok is false when the
	// address is unmapped.
	Offset(address uint64) (offset uint64, ok bool)

	// Segments enumerates every published segment.
	Segments() []Segment

	// EntryPoint reports the program's entry address.
	EntryPoint() uint64

	// AssemblerID identifies which architecture plug-in to bind, e.g.
	// "x86", "x86-64", "arm64".
	AssemblerID() string

	// Seeds reports additional addresses the engine should schedule for
	// decoding, beyond the entry point (e.g. exported symbols).
	Seeds() []Seed
}

// SegmentContaining returns the first segment in segs containing address,
// and whether one was found. A small helper shared by loaders and the
// engine alike.
func SegmentContaining(segs []Segment, address uint64) (Segment, bool) {
	for _, s := range segs {
		if s.Contains(address) {
			return s, true
		}
	}
	return Segment{}, false
}
