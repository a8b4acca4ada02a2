// Package x86 implements the engine's assembler.Assembler contract over
// golang.org/x/arch/x86/x86asm, the same x/arch module the donor codebase
// already depended on for its ARM64 plug-in. It is the concrete decoder
// exercised by the engine's test scenarios, all expressed in x86 encodings.
package x86

import (
	"encoding/binary"

	"golang.org/x/arch/x86/x86asm"

	"reverse/internal/assembler"
	"reverse/internal/buffer"
	"reverse/internal/disasm"
)

// Assembler decodes 32- or 64-bit x86 instructions.
type Assembler struct {
	mode int // 16, 32, or 64
}

// New32 returns an Assembler for 32-bit (protected mode) x86 code.
func New32() *Assembler { return &Assembler{mode: 32} }

// New64 returns an Assembler for x86-64 code.
func New64() *Assembler { return &Assembler{mode: 64} }

func (a *Assembler) ID() string {
	if a.mode == 64 {
		return "x86-64"
	}
	return "x86"
}

func (a *Assembler) Flags() assembler.Flag        { return 0 }
func (a *Assembler) Endianness() binary.ByteOrder { return binary.LittleEndian }
func (a *Assembler) Bits() int {
	if a.mode == 64 {
		return 64
	}
	return 32
}

// Decode implements assembler.Assembler.
func (a *Assembler) Decode(view buffer.View, inst *disasm.Instruction) bool {
	raw := view.Bytes()
	if len(raw) == 0 {
		return false
	}

	xi, err := x86asm.Decode(raw, a.mode)
	if err != nil || xi.Len <= 0 {
		return false
	}

	inst.Address = view.Base()
	inst.Size = xi.Len
	inst.ID = uint32(xi.Op)
	inst.Mnemonic = mnemonic(xi.Op)
	inst.Bytes = append([]byte(nil), raw[:xi.Len]...)
	inst.Type = classify(xi.Op)
	inst.Operands = operandsOf(xi)

	resolveTargets(inst, xi)
	return true
}

// OnDecoded implements assembler.Assembler. Decode already resolves
// PC-relative targets, so this hook only has to cope with
// the edge cases x86asm's generic classification misses.
func (a *Assembler) OnDecoded(inst *disasm.Instruction) {
	if inst.Mnemonic == "nop" {
		inst.Type = disasm.Nop
	}
}

func mnemonic(op x86asm.Op) string {
	if op == 0 {
		return "db"
	}
	s := op.String()
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func classify(op x86asm.Op) disasm.Type {
	switch op {
	case x86asm.NOP:
		return disasm.Nop
	case x86asm.HLT, x86asm.UD2:
		return disasm.Stop
	case x86asm.RET, x86asm.LRET:
		return disasm.Ret
	case x86asm.JMP:
		return disasm.Jump
	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JE, x86asm.JG,
		x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE, x86asm.JNO, x86asm.JNP,
		x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JS, x86asm.JCXZ, x86asm.JECXZ,
		x86asm.JRCXZ:
		return disasm.ConditionalJump
	case x86asm.CALL:
		return disasm.Call
	case x86asm.CMP:
		return disasm.Compare
	default:
		return disasm.Generic
	}
}

func operandsOf(xi x86asm.Inst) []disasm.Operand {
	var ops []disasm.Operand
	for _, arg := range xi.Args {
		if arg == nil {
			break
		}
		ops = append(ops, operandOf(arg))
	}
	return ops
}

func operandOf(arg x86asm.Arg) disasm.Operand {
	switch v := arg.(type) {
	case x86asm.Reg:
		return disasm.Operand{Kind: disasm.OperandRegister, Reg: v.String()}
	case x86asm.Imm:
		return disasm.Operand{Kind: disasm.OperandImmediate, Value: uint64(int64(v))}
	case x86asm.Rel:
		return disasm.Operand{Kind: disasm.OperandImmediate, Value: uint64(int64(v)), Flags: disasm.FlagTarget}
	case x86asm.Mem:
		op := disasm.Operand{
			Kind:         disasm.OperandMemory,
			Base:         regString(v.Base),
			Displacement: v.Disp,
		}
		if v.Index != 0 {
			op.Index = &disasm.IndexInfo{Reg: v.Index.String(), Scale: v.Scale}
		}
		if v.Base == 0 {
			// No base register: the effective address is already known at
			// decode time, whether a flat pointer slot ("jmp [ptr]") or the
			// base of a scaled jump table ("jmp [table+idx*N]").
			op.Value = uint64(v.Disp)
			op.Flags |= disasm.FlagTarget
		}
		return op
	default:
		return disasm.Operand{Kind: disasm.OperandUnknown}
	}
}

func regString(r x86asm.Reg) string {
	if r == 0 {
		return ""
	}
	return r.String()
}

// resolveTargets fills Instruction.MetaTargets for control-flow
// instructions whose target x86asm could determine statically: direct
// jumps/calls encode a Rel operand, which is an offset from the address of
// the following instruction.
func resolveTargets(inst *disasm.Instruction, xi x86asm.Inst) {
	if len(xi.Args) == 0 || xi.Args[0] == nil {
		return
	}
	rel, ok := xi.Args[0].(x86asm.Rel)
	if !ok {
		switch xi.Args[0].(type) {
		case x86asm.Mem:
			if inst.Type == disasm.Jump {
				inst.Type = disasm.BranchMemory
			}
		case x86asm.Reg:
			// "jmp rax": the target lives in a register, not a memory
			// cell or a static displacement, so it can't be resolved or
			// even pointed at without emulation. Distinct from
			// BranchMemory, which at least has a concrete address to
			// dereference.
			if inst.Type == disasm.Jump {
				inst.Type = disasm.Branch
			}
		}
		return
	}
	target := inst.Address + uint64(inst.Size) + uint64(int64(rel))
	inst.AddMetaTarget(target)
	if len(inst.Operands) > 0 {
		inst.Operands[0].Value = target
		inst.Operands[0].Flags |= disasm.FlagTarget
	}
}
