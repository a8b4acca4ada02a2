// Package engine implements the disassembly algorithm (state registrations
// over the generic scheduler) and the facade that owns the listing
// document, symbol/reference tables, instruction cache, and state
// machine for one disassembly session.
package engine

import (
	"context"

	"reverse/internal/analyzer"
	"reverse/internal/assembler"
	"reverse/internal/disasm"
	"reverse/internal/listing"
	"reverse/internal/loader"
	"reverse/internal/statemachine"
	"reverse/internal/symtab"
)

// States registered by the disassembly algorithm, per SPEC_FULL.md §4.9.
const (
	Decode statemachine.State = iota
	Jump
	Call
	Branch
	BranchMemory
	AddressTable
	Memory
	Pointer
	Immediate
)

// DecodeFailedHook is invoked once per address where the assembler
// returned false, after the Invalid placeholder has been inserted.
type DecodeFailedHook func(address uint64)

// ProblemHook receives human-readable problem reports: unresolved jump,
// call, branch-memory and address-table targets, jump/call targets outside
// any code segment, and undecodable bytes. Declared functions that are
// never reached are not reported.
type ProblemHook func(text string)

// EmulatorHook is the optional per-instruction emulation extension point
// named in SPEC_FULL.md §4.9's Decode step; the core never exercises it
// itself.
type EmulatorHook func(inst *disasm.Instruction)

// Engine is the disassembler facade (C10): it seeds the state machine
// from a Loader, drives it to quiescence, and runs the analyzer chain
// once the queue drains.
type Engine struct {
	loader     loader.Loader
	assembler  assembler.Assembler
	doc        *listing.Document
	sm         *statemachine.Machine
	analyzers  *analyzer.Chain
	addressTableStride int

	OnDecodeFailed DecodeFailedHook
	OnProblem      ProblemHook
	OnEmulate      EmulatorHook

	problems []string

	busy        bool
	busyChanged func(bool)
	ranOnce     bool
	analyzed    bool
	positioned  bool
}

// Problems returns every problem report accumulated so far (the reports
// ProblemHook receives), in the order they were reported, so callers can inspect them without
// re-parsing log output. The returned slice is a copy; callers may not
// mutate Engine state through it.
func (e *Engine) Problems() []string {
	return append([]string(nil), e.problems...)
}

// New builds an Engine bound to ld and asm, with a fresh listing document
// whose instruction cache uses the given eviction watermark (0 for the
// cache package's default).
func New(ld loader.Loader, asm assembler.Assembler, analyzers *analyzer.Chain, cacheWatermark int) *Engine {
	e := &Engine{
		loader:             ld,
		assembler:          asm,
		doc:                listing.New(cacheWatermark),
		sm:                 statemachine.New(),
		analyzers:          analyzers,
		addressTableStride: 8,
	}
	e.registerStates()
	return e
}

// Document returns the read-only-by-convention listing document; all
// mutation goes through the document's own API, never reassigned here.
func (e *Engine) Document() *listing.Document { return e.doc }

// Busy reports whether the state machine still holds unprocessed work.
func (e *Engine) Busy() bool { return e.sm.Busy() }

// OnBusyChanged registers a callback fired whenever Busy transitions,
// matching SPEC_FULL.md §5's busy_changed signal.
func (e *Engine) OnBusyChanged(f func(bool)) { e.busyChanged = f }

func (e *Engine) setBusy(v bool) {
	if e.busy == v {
		return
	}
	e.busy = v
	if e.busyChanged != nil {
		e.busyChanged(v)
	}
}

// PushTarget records a cross-reference from→target and enqueues a Decode
// at target if it lies within a code segment.
func (e *Engine) PushTarget(target, from uint64) {
	e.doc.References().Push(from, target, symtab.Jump)
	if e.inCodeSegment(target) {
		e.sm.Enqueue(Decode, target)
	}
}

func (e *Engine) inCodeSegment(address uint64) bool {
	seg, ok := e.doc.SegmentAt(address)
	if !ok {
		seg, ok = loader.SegmentContaining(e.loader.Segments(), address)
		if !ok {
			return false
		}
	}
	return seg.Kind.Has(loader.KindCode)
}

// Disassemble seeds the state machine from the loader's entry point and
// seeds (first call only), then drives next() to quiescence, runs the
// post-quiescence analyzer pass, and positions the cursor at the entry
// point. It is idempotent: a second call with no intervening mutation
// re-drains an already-empty queue and re-runs a Fast analyzer pass.
func (e *Engine) Disassemble(ctx context.Context) {
	if !e.ranOnce {
		e.seed()
		e.ranOnce = true
	}

	e.setBusy(e.sm.Busy())
	for e.sm.Busy() {
		select {
		case <-ctx.Done():
			e.sm.Cancel()
			e.setBusy(false)
			return
		default:
		}
		e.sm.Next()
		e.setBusy(e.sm.Busy())
	}

	pass := analyzer.Full
	if e.analyzed {
		pass = analyzer.Fast
	}
	if e.analyzers != nil {
		e.analyzers.Analyze(e.doc, pass)
	}
	e.analyzed = true

	if !e.positioned {
		e.doc.MoveTo(e.loader.EntryPoint())
		e.positioned = true
	}
}

func (e *Engine) seed() {
	entry := e.loader.EntryPoint()
	e.doc.Entry(entry, 0)
	e.sm.Enqueue(Decode, entry)
	for _, seed := range e.loader.Seeds() {
		if seed.Name != "" {
			e.doc.Function(seed.Address, seed.Name, seed.Kind)
		}
		e.sm.Enqueue(Decode, seed.Address)
	}
	for _, seg := range e.loader.Segments() {
		e.doc.Segment(seg.Name, seg.Offset, seg.Start, seg.Size, seg.Kind)
	}
}

// ComputeBasicBlocks re-derives block boundaries from the current listing
// and reference state: a new block starts at every Function item and at
// every address that is the target of a Jump or Branch reference.
func (e *Engine) ComputeBasicBlocks() []BasicBlock {
	items := e.doc.Items()
	boundary := make(map[uint64]bool)
	for _, it := range items {
		if it.Type == listing.ItemFunction {
			boundary[it.Address] = true
		}
	}
	for _, it := range items {
		if it.Type != listing.ItemInstruction {
			continue
		}
		for _, ref := range e.doc.References().Forward(it.Address) {
			if ref.Kind == symtab.Jump {
				boundary[ref.To] = true
			}
		}
	}

	var blocks []BasicBlock
	var cur *BasicBlock
	for _, it := range items {
		if it.Type != listing.ItemInstruction {
			continue
		}
		if cur == nil || boundary[it.Address] {
			if cur != nil {
				blocks = append(blocks, *cur)
			}
			cur = &BasicBlock{Start: it.Address}
		}
		cur.End = it.Address + uint64(it.Size)
		if it.InstType.Terminates() {
			blocks = append(blocks, *cur)
			cur = nil
		}
	}
	if cur != nil {
		blocks = append(blocks, *cur)
	}
	return blocks
}

// BasicBlock is a contiguous run of instructions bounded by a function
// start, a jump/branch target, or a terminating instruction.
type BasicBlock struct {
	Start, End uint64
}
