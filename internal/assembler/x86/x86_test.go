package x86

import (
	"testing"

	"reverse/internal/buffer"
	"reverse/internal/disasm"
)

func TestDecodeNop(t *testing.T) {
	a := New64()
	view := buffer.New(0x1000, []byte{0x90}, nil)
	var inst disasm.Instruction

	if !a.Decode(view, &inst) {
		t.Fatalf("Decode(nop) = false, want true")
	}
	a.OnDecoded(&inst)
	if inst.Type != disasm.Nop {
		t.Fatalf("Type = %v, want Nop", inst.Type)
	}
	if inst.Size != 1 {
		t.Fatalf("Size = %d, want 1", inst.Size)
	}
}

func TestDecodeRet(t *testing.T) {
	a := New64()
	view := buffer.New(0x1000, []byte{0xc3}, nil)
	var inst disasm.Instruction

	if !a.Decode(view, &inst) {
		t.Fatalf("Decode(ret) = false, want true")
	}
	if inst.Type != disasm.Ret {
		t.Fatalf("Type = %v, want Ret", inst.Type)
	}
	if !inst.Type.Terminates() {
		t.Fatalf("Ret should terminate fallthrough")
	}
}

func TestDecodeShortJumpResolvesTarget(t *testing.T) {
	a := New64()
	// eb 05: jmp short +5, relative to the address after this 2-byte instruction.
	view := buffer.New(0x1000, []byte{0xeb, 0x05}, nil)
	var inst disasm.Instruction

	if !a.Decode(view, &inst) {
		t.Fatalf("Decode(jmp short) = false, want true")
	}
	if inst.Type != disasm.Jump {
		t.Fatalf("Type = %v, want Jump", inst.Type)
	}
	if inst.Size != 2 {
		t.Fatalf("Size = %d, want 2", inst.Size)
	}
	want := uint64(0x1000 + 2 + 5)
	if len(inst.MetaTargets) != 1 || inst.MetaTargets[0] != want {
		t.Fatalf("MetaTargets = %v, want [%#x]", inst.MetaTargets, want)
	}
}

func TestDecodeCallRel32ResolvesTarget(t *testing.T) {
	a := New64()
	// e8 00 00 00 00: call +0, relative to the address after this 5-byte instruction.
	view := buffer.New(0x2000, []byte{0xe8, 0x00, 0x00, 0x00, 0x00}, nil)
	var inst disasm.Instruction

	if !a.Decode(view, &inst) {
		t.Fatalf("Decode(call) = false, want true")
	}
	if inst.Type != disasm.Call {
		t.Fatalf("Type = %v, want Call", inst.Type)
	}
	want := uint64(0x2000 + 5)
	if len(inst.MetaTargets) != 1 || inst.MetaTargets[0] != want {
		t.Fatalf("MetaTargets = %v, want [%#x]", inst.MetaTargets, want)
	}
}

func TestDecodeEmptyViewFails(t *testing.T) {
	a := New64()
	view := buffer.New(0x1000, nil, nil)
	var inst disasm.Instruction

	if a.Decode(view, &inst) {
		t.Fatalf("Decode(empty view) = true, want false")
	}
}

func TestAssemblerIdentity(t *testing.T) {
	a64 := New64()
	if a64.ID() != "x86-64" {
		t.Errorf("New64().ID() = %q, want x86-64", a64.ID())
	}
	if a64.Bits() != 64 {
		t.Errorf("New64().Bits() = %d, want 64", a64.Bits())
	}

	a32 := New32()
	if a32.ID() != "x86" {
		t.Errorf("New32().ID() = %q, want x86", a32.ID())
	}
	if a32.Bits() != 32 {
		t.Errorf("New32().Bits() = %d, want 32", a32.Bits())
	}
}
