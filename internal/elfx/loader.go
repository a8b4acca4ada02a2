package elfx

import (
	"debug/elf"

	"reverse/internal/buffer"
	"reverse/internal/loader"
	"reverse/internal/symtab"
)

// ImageLoader adapts an Image to the engine's loader.Loader interface: it
// never mutates the image, only translates addresses and enumerates the
// segments and seeds the engine should start decoding from.
type ImageLoader struct {
	im *Image
}

// NewImageLoader wraps im for consumption by the disassembly engine.
func NewImageLoader(im *Image) *ImageLoader { return &ImageLoader{im: im} }

// View returns a byte view anchored at address, or an empty view if
// address is unmapped.
func (l *ImageLoader) View(address uint64) buffer.View {
	off, ok := l.im.VA2Off(address)
	if !ok {
		return buffer.Empty(address)
	}
	return buffer.New(address, l.im.All[off:], nil)
}

// Offset translates address to a file offset.
func (l *ImageLoader) Offset(address uint64) (uint64, bool) { return l.im.VA2Off(address) }

// Segments reports one segment per PT_LOAD program header, classified by
// its ELF flags, plus a PLT import segment when present.
func (l *ImageLoader) Segments() []loader.Segment {
	segs := make([]loader.Segment, 0, len(l.im.Loads)+1)
	for i, p := range l.im.Loads {
		segs = append(segs, loader.Segment{
			Name:   segmentName(i, p.Flags),
			Start:  p.Vaddr,
			Size:   p.Filesz,
			Offset: p.Off,
			Kind:   segmentKind(p.Flags),
		})
	}
	if l.im.PLT.Size != 0 {
		segs = append(segs, loader.Segment{
			Name:   l.im.PLT.Name,
			Start:  l.im.PLT.VA,
			Size:   l.im.PLT.Size,
			Offset: l.im.PLT.Off,
			Kind:   loader.KindCode | loader.KindImport,
		})
	}
	return segs
}

func segmentName(index int, flags elf.ProgFlag) string {
	switch {
	case flags&elf.PF_X != 0:
		return "LOAD(exec)"
	case flags&elf.PF_W != 0:
		return "LOAD(data)"
	default:
		return "LOAD(ro)"
	}
}

func segmentKind(flags elf.ProgFlag) loader.SegmentKind {
	switch {
	case flags&elf.PF_X != 0:
		return loader.KindCode
	case flags&elf.PF_W != 0:
		return loader.KindData
	default:
		return loader.KindData
	}
}

// EntryPoint reports the ELF header's entry address.
func (l *ImageLoader) EntryPoint() uint64 {
	if l.im.File == nil {
		return 0
	}
	return l.im.File.Entry
}

// AssemblerID maps the ELF machine field to the engine's plug-in id.
func (l *ImageLoader) AssemblerID() string {
	if l.im.File == nil {
		return ""
	}
	switch l.im.File.Machine {
	case elf.EM_AARCH64:
		return "arm64"
	case elf.EM_X86_64:
		return "x86-64"
	case elf.EM_386:
		return "x86"
	default:
		return ""
	}
}

// Seeds reports every non-PLT dynamic and static symbol with a nonzero
// address as an additional decode starting point tagged Function, plus one
// seed per parsed PLT stub: tagged Function at the resolved address when
// the stub resolves to a function inside this binary, tagged Import at the
// stub address otherwise. An address already seeded is not seeded again.
func (l *ImageLoader) Seeds() []loader.Seed {
	var seeds []loader.Seed
	seen := make(map[uint64]bool)
	add := func(name string, addr uint64, kind uint32) {
		if addr == 0 || seen[addr] {
			return
		}
		seen[addr] = true
		seeds = append(seeds, loader.Seed{Address: addr, Name: name, Kind: kind})
	}
	for _, s := range l.im.Dynsyms {
		if s.IsPLT {
			continue
		}
		add(s.Name, s.Addr, uint32(symtab.KindFunction))
	}
	for _, s := range l.im.Syms {
		if s.IsPLT {
			continue
		}
		add(s.Name, s.Addr, uint32(symtab.KindFunction))
	}
	for _, stub := range l.im.PLTStubs {
		name := l.im.pltStubName(stub.Addr)
		if resolved, ok := l.im.ResolvePLTTarget(stub.Addr); ok && resolved != stub.Addr && !l.im.IsPLTEntry(resolved) {
			// The PLT entry resolves to a function already defined in this
			// binary (static linking, or an already-bound ifunc) rather
			// than an external import, so seed the real address instead
			// of the trampoline.
			add(name, resolved, uint32(symtab.KindFunction))
			continue
		}
		add(name, stub.Addr, uint32(symtab.KindImport))
	}
	return seeds
}

// ResolveSymbol looks up a function's address by name across the dynamic
// and static symbol tables, for callers that want to seed or jump to a
// specific named function rather than the entry point.
func (l *ImageLoader) ResolveSymbol(name string) (uint64, bool) {
	return l.im.FindFunctionByName(name)
}
