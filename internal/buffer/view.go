// Package buffer provides an immutable, random-access byte window over a
// loaded binary image, with bounded slicing and endianness-aware scalar
// reads. It is the lowest-level component of the disassembly engine: every
// other component reaches the raw image only through a View.
package buffer

import (
	"encoding/binary"
	"errors"
)

// ErrOutOfBounds is returned when a read or slice would reach past the end
// of the view.
var ErrOutOfBounds = errors.New("buffer: out of bounds")

// View is a bounded, non-owning window over a backing byte slice, anchored
// at a virtual address. It never copies the backing slice.
type View struct {
	base  uint64
	data  []byte
	order binary.ByteOrder
}

// New creates a View anchored at base over data, reading multi-byte scalars
// with the given byte order. A nil order defaults to little-endian, the
// common case for the architectures this engine targets.
func New(base uint64, data []byte, order binary.ByteOrder) View {
	if order == nil {
		order = binary.LittleEndian
	}
	return View{base: base, data: data, order: order}
}

// Empty returns a zero-length view anchored at base, used by loaders to
// signal an address outside the mapped image.
func Empty(base uint64) View {
	return View{base: base, data: nil, order: binary.LittleEndian}
}

// Base returns the virtual address the view is anchored at.
func (v View) Base() uint64 { return v.base }

// Size returns the number of bytes visible through the view.
func (v View) Size() int { return len(v.data) }

// EOB reports whether the view has no bytes left to read.
func (v View) EOB() bool { return len(v.data) == 0 }

// Bytes returns the raw bytes backing the view. Callers must not mutate the
// returned slice.
func (v View) Bytes() []byte { return v.data }

// At returns the byte at the given offset from the view's base.
func (v View) At(offset int) (byte, error) {
	if offset < 0 || offset >= len(v.data) {
		return 0, ErrOutOfBounds
	}
	return v.data[offset], nil
}

// Subview returns a narrower view starting at offset, of the given length,
// re-based so its own offset 0 still corresponds to base+offset.
func (v View) Subview(offset, length int) (View, error) {
	if offset < 0 || length < 0 || offset+length > len(v.data) {
		return View{}, ErrOutOfBounds
	}
	return View{base: v.base + uint64(offset), data: v.data[offset : offset+length], order: v.order}, nil
}

// Uint8 reads a single byte at offset.
func (v View) Uint8(offset int) (uint8, error) {
	b, err := v.At(offset)
	return b, err
}

// Uint16 reads a 16-bit scalar at offset using the view's byte order.
func (v View) Uint16(offset int) (uint16, error) {
	if offset < 0 || offset+2 > len(v.data) {
		return 0, ErrOutOfBounds
	}
	return v.order.Uint16(v.data[offset:]), nil
}

// Uint32 reads a 32-bit scalar at offset using the view's byte order.
func (v View) Uint32(offset int) (uint32, error) {
	if offset < 0 || offset+4 > len(v.data) {
		return 0, ErrOutOfBounds
	}
	return v.order.Uint32(v.data[offset:]), nil
}

// Uint64 reads a 64-bit scalar at offset using the view's byte order.
func (v View) Uint64(offset int) (uint64, error) {
	if offset < 0 || offset+8 > len(v.data) {
		return 0, ErrOutOfBounds
	}
	return v.order.Uint64(v.data[offset:]), nil
}
