package elfx

import (
	"bytes"
	"debug/elf"
	"testing"
)

func TestVA2OffTranslatesWithinLoadSegment(t *testing.T) {
	im := &Image{Loads: []Seg{{Vaddr: 0x1000, Off: 0x100, Filesz: 0x200}}}

	off, ok := im.VA2Off(0x1050)
	if !ok || off != 0x150 {
		t.Fatalf("VA2Off(0x1050) = (%#x, %v), want (0x150, true)", off, ok)
	}
	if _, ok := im.VA2Off(0x1200); ok {
		t.Fatalf("VA2Off(0x1200) should be unmapped (past Filesz)")
	}
	if _, ok := im.VA2Off(0xfff); ok {
		t.Fatalf("VA2Off(0xfff) should be unmapped (before Vaddr)")
	}
}

func TestSliceVA(t *testing.T) {
	all := make([]byte, 0x300)
	copy(all[0x100:], []byte{1, 2, 3, 4})
	im := &Image{Loads: []Seg{{Vaddr: 0x1000, Off: 0x100, Filesz: 0x200}}, All: all}

	got, ok := im.SliceVA(0x1000, 4)
	if !ok || !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("SliceVA = (%v, %v), want ([1 2 3 4], true)", got, ok)
	}
	if _, ok := im.SliceVA(0x1000, 0x1000); ok {
		t.Fatalf("SliceVA should fail when the range runs past len(All)")
	}
	if got, ok := im.SliceVA(0x1000, 0); !ok || len(got) != 0 {
		t.Fatalf("SliceVA(size=0) = (%v, %v), want (empty slice, true)", got, ok)
	}
	if _, ok := im.SliceVA(0x5000, 1); ok {
		t.Fatalf("SliceVA on an unmapped address should fail")
	}
}

func TestReadBytesVA(t *testing.T) {
	all := make([]byte, 0x300)
	copy(all[0x100:], []byte{0xde, 0xad})
	im := &Image{Loads: []Seg{{Vaddr: 0x1000, Off: 0x100, Filesz: 0x200}}, All: all}

	got, ok := im.ReadBytesVA(0x1000, 2)
	if !ok || !bytes.Equal(got, []byte{0xde, 0xad}) {
		t.Fatalf("ReadBytesVA = (%v, %v), want ([de ad], true)", got, ok)
	}
	if got, ok := im.ReadBytesVA(0x1000, 0); !ok || len(got) != 0 {
		t.Fatalf("ReadBytesVA(size=0) = (%v, %v), want (empty, true)", got, ok)
	}
}

func TestInRegionHelpers(t *testing.T) {
	im := &Image{
		Rodata:    Section{Name: ".rodata", VA: 0x2000, Size: 0x100},
		Data:      Section{Name: ".data", VA: 0x3000, Size: 0x100},
		DataRelRo: Section{Name: ".data.rel.ro", VA: 0x4000, Size: 0x100},
	}

	cases := []struct {
		name string
		addr uint64
		want bool
		fn   func(uint64) bool
	}{
		{"rodata hit", 0x2050, true, im.InRodata},
		{"rodata miss", 0x2200, false, im.InRodata},
		{"data hit", 0x3050, true, im.InData},
		{"datarelro hit", 0x4050, true, im.InDataRelRo},
		{"dataorrodata from rodata", 0x2050, true, im.InDataOrRodata},
		{"dataorrodata from datarelro", 0x4050, true, im.InDataOrRodata},
		{"dataorrodata miss", 0x9000, false, im.InDataOrRodata},
	}
	for _, c := range cases {
		if got := c.fn(c.addr); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestInRegionEmptySectionNeverMatches(t *testing.T) {
	im := &Image{}
	if im.InRodata(0) {
		t.Fatalf("InRodata should be false when Rodata.Size is zero, even at address 0")
	}
}

func TestIsPLTEntry(t *testing.T) {
	im := &Image{PLT: Section{VA: 0x3000, Size: 0x30}}
	if !im.IsPLTEntry(0x3010) {
		t.Fatalf("IsPLTEntry(0x3010) = false, want true")
	}
	if im.IsPLTEntry(0x3030) {
		t.Fatalf("IsPLTEntry(0x3030) = true, want false (one past the end)")
	}
	if (&Image{}).IsPLTEntry(0x3010) {
		t.Fatalf("IsPLTEntry on an image with no PLT should always be false")
	}
}

func TestFindFunctionByName(t *testing.T) {
	im := &Image{
		Dynsyms: []DynSym{{Name: "puts@plt", Addr: 0x3010, IsPLT: true}, {Name: "main", Addr: 0x1200}},
		Syms:    []DynSym{{Name: "helper", Addr: 0x1300}},
	}
	if addr, ok := im.FindFunctionByName("main"); !ok || addr != 0x1200 {
		t.Fatalf("FindFunctionByName(main) = (%#x, %v), want (0x1200, true)", addr, ok)
	}
	if addr, ok := im.FindFunctionByName("helper"); !ok || addr != 0x1300 {
		t.Fatalf("FindFunctionByName(helper) = (%#x, %v), want (0x1300, true)", addr, ok)
	}
	if _, ok := im.FindFunctionByName("puts"); ok {
		t.Fatalf("FindFunctionByName(puts) should not match the @plt dynamic symbol")
	}
	if _, ok := im.FindFunctionByName("missing"); ok {
		t.Fatalf("FindFunctionByName(missing) = ok, want not found")
	}
}

func TestIsValidFunctionAddress(t *testing.T) {
	im := &Image{
		Loads: []Seg{
			{Vaddr: 0x1000, Off: 0, Filesz: 0x1000, Flags: 0x1 /* PF_X */},
		},
		PLT:     Section{VA: 0x1500, Size: 0x20},
		Dynsyms: []DynSym{{Name: "memcpy", Addr: 0x1900}},
	}

	if !im.isValidFunctionAddress(0x1100) {
		t.Fatalf("address inside an executable segment should be valid")
	}
	if im.isValidFunctionAddress(0x1510) {
		t.Fatalf("address inside the PLT section should never be valid")
	}
	if im.isValidFunctionAddress(0x9000) {
		t.Fatalf("unmapped address should not be valid")
	}
}

func TestIsValidFunctionAddressRejectsRodata(t *testing.T) {
	im := &Image{
		Loads:  []Seg{{Vaddr: 0x1000, Off: 0, Filesz: 0x1000, Flags: elf.PF_X}},
		Rodata: Section{VA: 0x1000, Size: 0x100},
	}
	if im.isValidFunctionAddress(0x1050) {
		t.Fatalf("an address inside rodata should never be a valid function address, even in an executable segment")
	}
	if !im.isValidFunctionAddress(0x1200) {
		t.Fatalf("an address outside rodata but inside the executable segment should still be valid")
	}
}

// arm64PLTStubBytes builds a 16-byte ARM64 PLT stub encoding
// "adrp x16, <pltAddr page>" + "ldr x17, [x16, #0]" followed by
// two don't-care trailer instructions, so parsePLTStub resolves the
// GOT address to the start of that same page.
func arm64PLTStubBytes() []byte {
	adrp := []byte{0x10, 0x00, 0x00, 0x90} // adrp x16, #0 (relative to its own page)
	ldr := []byte{0x11, 0x02, 0x40, 0xf9}  // ldr x17, [x16, #0]
	trailer := []byte{0x10, 0x02, 0x00, 0x91, 0x20, 0x02, 0x1f, 0xd6}
	return append(append(adrp, ldr...), trailer...)
}

func TestParsePLTStubResolvesGOTAddress(t *testing.T) {
	stubAddr := uint64(0x2010)
	pageBase := stubAddr &^ 0xfff

	all := make([]byte, 0x3000)
	copy(all[stubAddr:], arm64PLTStubBytes())
	im := &Image{Loads: []Seg{{Vaddr: 0, Off: 0, Filesz: 0x3000}}, All: all}

	got, ok := im.parsePLTStub(stubAddr)
	if !ok {
		t.Fatalf("parsePLTStub() = false, want true for a well-formed stub")
	}
	if got != pageBase {
		t.Fatalf("parsePLTStub() = %#x, want %#x", got, pageBase)
	}
}

func TestParsePLTStubRejectsGarbage(t *testing.T) {
	all := make([]byte, 0x20)
	im := &Image{Loads: []Seg{{Vaddr: 0, Off: 0, Filesz: 0x20}}, All: all}
	if _, ok := im.parsePLTStub(0); ok {
		t.Fatalf("parsePLTStub() on all-zero bytes should fail the adrp pattern match")
	}
}

func TestParsePLTStubsSkipsResolverStub(t *testing.T) {
	pltVA := uint64(0x4000)
	all := make([]byte, 0x5000)
	copy(all[pltVA+16:], arm64PLTStubBytes()) // stub at PLT index 1

	im := &Image{
		Loads: []Seg{{Vaddr: 0, Off: 0, Filesz: 0x5000}},
		PLT:   Section{VA: pltVA, Off: pltVA, Size: 32},
		All:   all,
	}
	im.parsePLTStubs()

	if len(im.PLTStubs) != 1 {
		t.Fatalf("parsePLTStubs() found %d stubs, want 1 (PLT[0] resolver skipped)", len(im.PLTStubs))
	}
	if im.PLTStubs[0].Addr != pltVA+16 {
		t.Fatalf("PLTStubs[0].Addr = %#x, want %#x", im.PLTStubs[0].Addr, pltVA+16)
	}
}

func TestParsePLTStubDispatchesToX86ForX86Machines(t *testing.T) {
	pltAddr := uint64(0x2010)
	disp := uint32(0x100)
	stub := []byte{0xff, 0x25, byte(disp), byte(disp >> 8), byte(disp >> 16), byte(disp >> 24)}
	stub = append(stub, make([]byte, 16-len(stub))...)

	all := make([]byte, 0x3000)
	copy(all[pltAddr:], stub)
	f := &elf.File{}
	f.Machine = elf.EM_X86_64
	im := &Image{File: f, Loads: []Seg{{Vaddr: 0, Off: 0, Filesz: 0x3000}}, All: all}

	got, ok := im.parsePLTStub(pltAddr)
	want := pltAddr + 6 + uint64(disp)
	if !ok || got != want {
		t.Fatalf("parsePLTStub() on an x86-64 image = (%#x, %v), want (%#x, true)", got, ok, want)
	}
}

func TestParsePLTStubSkipsEndbr64Prologue(t *testing.T) {
	pltAddr := uint64(0x3000)
	disp := uint32(0x20)
	stub := []byte{0xf3, 0x0f, 0x1e, 0xfa, 0xff, 0x25, byte(disp), byte(disp >> 8), byte(disp >> 16), byte(disp >> 24)}
	stub = append(stub, make([]byte, 16-len(stub))...)

	all := make([]byte, 0x4000)
	copy(all[pltAddr:], stub)
	f := &elf.File{}
	f.Machine = elf.EM_X86_64
	im := &Image{File: f, Loads: []Seg{{Vaddr: 0, Off: 0, Filesz: 0x4000}}, All: all}

	got, ok := im.parsePLTStub(pltAddr)
	want := pltAddr + 4 + 6 + uint64(disp)
	if !ok || got != want {
		t.Fatalf("parsePLTStub() with an endbr64 prologue = (%#x, %v), want (%#x, true)", got, ok, want)
	}
}

func TestParsePLTStubRejectsGarbageOnX86(t *testing.T) {
	all := make([]byte, 0x20)
	f := &elf.File{}
	f.Machine = elf.EM_X86_64
	im := &Image{File: f, Loads: []Seg{{Vaddr: 0, Off: 0, Filesz: 0x20}}, All: all}
	if _, ok := im.parsePLTStub(0); ok {
		t.Fatalf("parsePLTStub() on all-zero bytes should fail the jmp *disp32 pattern match")
	}
}

func TestPLTStubNameTrimsSuffix(t *testing.T) {
	im := &Image{Dynsyms: []DynSym{{Name: "puts@plt", Addr: 0x3010, IsPLT: true}}}
	if got := im.pltStubName(0x3010); got != "puts" {
		t.Fatalf("pltStubName(0x3010) = %q, want %q", got, "puts")
	}
	if got := im.pltStubName(0x4000); got != "" {
		t.Fatalf("pltStubName on an unknown address = %q, want empty", got)
	}
}

func TestReadGOTEntry(t *testing.T) {
	all := make([]byte, 0x100)
	copy(all[0x20:], []byte{0x34, 0x12, 0, 0, 0, 0, 0, 0})
	im := &Image{Loads: []Seg{{Vaddr: 0, Off: 0, Filesz: 0x100}}, All: all}

	got, ok := im.readGOTEntry(0x20)
	if !ok || got != 0x1234 {
		t.Fatalf("readGOTEntry() = (%#x, %v), want (0x1234, true)", got, ok)
	}
	if _, ok := im.readGOTEntry(0x200); ok {
		t.Fatalf("readGOTEntry() on an unmapped address should fail")
	}
}

func TestResolvePLTTargetFromRelocations(t *testing.T) {
	im := &Image{
		Loads:   []Seg{{Vaddr: 0, Off: 0, Filesz: 0x1000, Flags: 0x1}},
		Dynsyms: []DynSym{{Name: "memcpy", Addr: 0x500}},
		PLTRels: []PLTRel{{Offset: 0x900, SymIndex: 1, SymName: "memcpy", PLTAddr: 0x100}},
	}
	got, ok := im.ResolvePLTTarget(0x100)
	if !ok || got != 0x500 {
		t.Fatalf("ResolvePLTTarget() = (%#x, %v), want (0x500, true)", got, ok)
	}
}

func TestResolvePLTTargetUnresolved(t *testing.T) {
	im := &Image{}
	got, ok := im.ResolvePLTTarget(0x100)
	if ok || got != 0x100 {
		t.Fatalf("ResolvePLTTarget() with no collaborators = (%#x, %v), want (0x100, false)", got, ok)
	}
}
