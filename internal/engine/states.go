package engine

import (
	"fmt"

	"reverse/internal/disasm"
	"reverse/internal/statemachine"
	"reverse/internal/symtab"
)

func (e *Engine) registerStates() {
	e.sm.RegisterValidator(Decode, e.validateDecode)
	e.sm.RegisterState(Decode, e.handleDecode)
	e.sm.RegisterState(Jump, e.handleJumpArrival)
	e.sm.RegisterState(Branch, e.handleJumpArrival)
	e.sm.RegisterState(Call, e.handleCallArrival)
	e.sm.RegisterState(BranchMemory, e.handleBranchMemory)
	e.sm.RegisterState(AddressTable, e.handleAddressTable)
	e.sm.RegisterState(Memory, e.handleMemoryArrival)
	e.sm.RegisterState(Pointer, e.handlePointer)
	e.sm.RegisterState(Immediate, e.handleImmediate)
}

func (e *Engine) reportProblem(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	e.problems = append(e.problems, text)
	if e.OnProblem != nil {
		e.OnProblem(text)
	}
}

func (e *Engine) validateDecode(item statemachine.Item) bool {
	return e.inCodeSegment(item.Address)
}

// handleDecode is the Decode step of SPEC_FULL.md §4.9. The state machine
// has already marked (Decode, address) done before this runs.
func (e *Engine) handleDecode(item statemachine.Item) {
	address := item.Address

	if sym, ok := e.doc.Symbols().LookupByAddress(address); ok {
		if !sym.Kind.Has(symtab.KindCode) && !sym.Kind.Has(symtab.KindFunction) {
			_ = e.doc.EraseSymbol(address)
		}
	}

	view := e.loader.View(address)
	handle := e.doc.Cache().Allocate(address)
	ok := e.assembler.Decode(view, handle.Instruction())
	if !ok {
		raw := byte(0)
		if b, err := view.At(0); err == nil {
			raw = b
		}
		*handle.Instruction() = disasm.InvalidAt(address, raw)
		e.doc.AttachHandle(handle)
		e.reportProblem("failed to decode instruction at %#x", address)
		if e.OnDecodeFailed != nil {
			e.OnDecodeFailed(address)
		}
		return
	}

	e.assembler.OnDecoded(handle.Instruction())
	e.doc.AttachHandle(handle)
	e.dispatchOperands(handle.Instruction())
}

// dispatchOperands is the operand walker invoked from on_decoded: it
// pushes reference edges it has full (from, to) context for and enqueues
// the follow-up states that need to resolve further from the target
// side.
func (e *Engine) dispatchOperands(inst *disasm.Instruction) {
	switch inst.Type {
	case disasm.Jump, disasm.ConditionalJump:
		if len(inst.MetaTargets) == 0 {
			e.reportProblem("unresolved jump target at %#x", inst.Address)
		}
		for _, t := range inst.MetaTargets {
			e.sm.Enqueue(Jump, t)
		}
	case disasm.Call, disasm.ConditionalCall:
		if len(inst.MetaTargets) == 0 {
			e.reportProblem("unresolved call target at %#x", inst.Address)
		}
		for _, t := range inst.MetaTargets {
			e.sm.Enqueue(Call, t)
		}
	case disasm.Branch:
		for _, t := range inst.MetaTargets {
			e.sm.Enqueue(Branch, t)
		}
	case disasm.BranchMemory:
		// MetaTargets are discovered later, by handleBranchMemory resolving
		// the operand (walkAddressTable enqueues AddressTable itself once it
		// has entries), not known yet at decode time.
		e.sm.Enqueue(BranchMemory, inst.Address)
	}

	for _, op := range inst.Operands {
		if !op.HasTarget() {
			continue
		}
		switch op.Kind {
		case disasm.OperandMemory, disasm.OperandDisplacement:
			if inst.Type == disasm.BranchMemory {
				continue // handled by the BranchMemory state
			}
			kind := symtab.Read
			if op.Flags&disasm.FlagWrite != 0 {
				kind = symtab.Write
			}
			e.doc.References().Push(inst.Address, op.Value, kind)
			e.sm.Enqueue(Memory, op.Value)
		case disasm.OperandImmediate:
			e.sm.Enqueue(Immediate, op.Value)
		}
	}

	if !inst.Type.Terminates() {
		e.sm.Enqueue(Decode, inst.Address+uint64(inst.Size))
	}
	if e.OnEmulate != nil {
		e.OnEmulate(inst)
	}
}

// handleJumpArrival is the Jump and Branch state: arrival-side bookkeeping
// for a resolved control-flow target whose edge has already been pushed
// by the operand walker.
func (e *Engine) handleJumpArrival(item statemachine.Item) {
	target := item.Address
	if !e.inCodeSegment(target) {
		e.reportProblem("jump target %#x lies outside any code segment", target)
		return
	}
	if _, ok := e.doc.Symbols().LookupByAddress(target); !ok {
		e.doc.Symbol(target, "", symtab.KindCode, 0)
	}
	e.sm.Enqueue(Decode, target)
}

func (e *Engine) handleCallArrival(item statemachine.Item) {
	target := item.Address
	e.doc.Function(target, "", 0)
	if e.inCodeSegment(target) {
		e.sm.Enqueue(Decode, target)
	} else {
		e.reportProblem("call target %#x lies outside any code segment", target)
	}
}

func (e *Engine) handleBranchMemory(item statemachine.Item) {
	inst, ok := e.doc.InstructionAt(item.Address)
	if !ok {
		return
	}
	for _, op := range inst.Operands {
		if op.Kind != disasm.OperandMemory || !op.HasTarget() {
			continue
		}
		if op.Index != nil {
			// A scaled index with no base register is a computed-dispatch
			// table: op.Value is the table's base address, not a single
			// pointer slot.
			e.walkAddressTable(inst, op)
			continue
		}
		resolved, ok := e.resolvePointer(op.Value)
		if !ok {
			e.reportProblem("unresolved branch-memory target at %#x", inst.Address)
			continue
		}
		if e.inCodeSegment(resolved) {
			e.doc.References().Push(inst.Address, resolved, symtab.Jump)
			e.sm.Enqueue(Jump, resolved)
		} else {
			e.doc.References().Push(inst.Address, resolved, symtab.Read)
			e.sm.Enqueue(Memory, resolved)
		}
	}
}

// maxAddressTableEntries bounds table enumeration against corrupted or
// adversarial input where a table never terminates in valid code targets.
const maxAddressTableEntries = 1024

// walkAddressTable enumerates a computed-dispatch table starting at op's
// base address, reading one architecture-width pointer every
// addressTableStride bytes until an entry fails to resolve or lands
// outside any code segment. Discovered entries become MetaTargets, and
// the AddressTable state takes over to symbolize them and schedule
// their decode.
func (e *Engine) walkAddressTable(inst *disasm.Instruction, op disasm.Operand) {
	stride := uint64(e.addressTableStride)
	if stride == 0 {
		stride = 8
	}
	for i := uint64(0); i < maxAddressTableEntries; i++ {
		target, ok := e.resolvePointer(op.Value + i*stride)
		if !ok || !e.inCodeSegment(target) {
			break
		}
		inst.AddMetaTarget(target)
	}
	if len(inst.MetaTargets) == 0 {
		e.reportProblem("unresolved address-table base at %#x", inst.Address)
		return
	}
	e.sm.Enqueue(AddressTable, inst.Address)
}

func (e *Engine) handleAddressTable(item statemachine.Item) {
	inst, ok := e.doc.InstructionAt(item.Address)
	if !ok {
		return
	}
	e.doc.Symbol(inst.Address, "", symtab.KindTable, 0)
	for i, t := range inst.MetaTargets {
		// Tagged Code as well, since each entry is a jump target: the
		// Decode step keeps code symbols instead of erasing them.
		e.doc.Symbol(t, fmt.Sprintf("table_%x_%d", inst.Address, i), symtab.KindCode|symtab.KindTableItem, 0)
		e.doc.References().Push(inst.Address, t, symtab.Jump)
		if e.inCodeSegment(t) {
			e.sm.Enqueue(Decode, t)
		}
	}
}

func (e *Engine) handleMemoryArrival(item statemachine.Item) {
	if _, ok := e.doc.Symbols().LookupByAddress(item.Address); !ok {
		e.doc.Symbol(item.Address, "", symtab.KindData, 0)
	}
}

func (e *Engine) handlePointer(item statemachine.Item) {
	resolved, ok := e.resolvePointer(item.Address)
	if !ok {
		return
	}
	if e.inCodeSegment(resolved) {
		e.sm.Enqueue(Jump, resolved)
	} else {
		e.sm.Enqueue(Memory, resolved)
	}
}

func (e *Engine) handleImmediate(item statemachine.Item) {
	if _, ok := e.doc.SegmentAt(item.Address); ok {
		e.sm.Enqueue(Memory, item.Address)
	}
}

// resolvePointer reads one architecture-width pointer value at address.
func (e *Engine) resolvePointer(address uint64) (uint64, bool) {
	view := e.loader.View(address)
	bits := e.assembler.Bits()
	switch {
	case bits >= 64:
		v, err := view.Uint64(0)
		return v, err == nil
	case bits == 32:
		v, err := view.Uint32(0)
		return uint64(v), err == nil
	default:
		v, err := view.Uint16(0)
		return uint64(v), err == nil
	}
}
