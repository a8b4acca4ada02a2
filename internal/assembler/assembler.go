// Package assembler defines the capability interface architecture plug-ins
// implement: single-instruction decode, endianness, and a post-decode hook.
// The engine depends only on this interface; it never introspects a
// concrete architecture's internals.
package assembler

import (
	"encoding/binary"

	"reverse/internal/buffer"
	"reverse/internal/disasm"
)

// Flag is a bitmask of architecture capabilities.
type Flag uint32

const (
	// CanEmulate is reserved for a future emulation extension point; the
	// core never exercises it.
	CanEmulate Flag = 1 << iota
)

// Assembler decodes one instruction at a time from a BufferView. It never
// mutates the listing document or the engine's work queue directly — it
// communicates only through the Instruction it fills in.
type Assembler interface {
	// Decode fills inst from the bytes in view, which is anchored at
	// inst's intended address. It returns false when the bytes at the
	// front of view do not decode to a valid instruction; on true,
	// inst.Size must be greater than zero.
	Decode(view buffer.View, inst *disasm.Instruction) bool

	// OnDecoded is called once after a successful Decode, letting the
	// architecture annotate operands or refine control-flow
	// classification before the engine's operand walker runs.
	OnDecoded(inst *disasm.Instruction)

	// Flags reports architecture capabilities.
	Flags() Flag

	// Endianness reports the byte order instructions and operands should
	// be read with.
	Endianness() binary.ByteOrder

	// Bits reports the architecture's natural word width (16, 32, 64).
	Bits() int

	// ID names the plug-in, matching loader.Loader.AssemblerID.
	ID() string
}
