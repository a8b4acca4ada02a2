// Package arm64 implements the engine's assembler.Assembler contract over
// golang.org/x/arch/arm64/arm64asm, grounded on the donor codebase's ARM64
// usage in internal/analysis. It demonstrates that the Assembler contract
// is not x86-specific; the engine's own test scenarios stay x86 (see
// SPEC_FULL.md §4.3.1), so this plug-in carries its own decode tests.
package arm64

import (
	"encoding/binary"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"reverse/internal/assembler"
	"reverse/internal/buffer"
	"reverse/internal/disasm"
)

// Assembler decodes AArch64 instructions. Every instruction is 4 bytes.
type Assembler struct{}

// New returns an ARM64 Assembler.
func New() *Assembler { return &Assembler{} }

func (a *Assembler) ID() string                   { return "arm64" }
func (a *Assembler) Flags() assembler.Flag        { return 0 }
func (a *Assembler) Endianness() binary.ByteOrder { return binary.LittleEndian }
func (a *Assembler) Bits() int                    { return 64 }

// Decode implements assembler.Assembler.
func (a *Assembler) Decode(view buffer.View, inst *disasm.Instruction) bool {
	raw := view.Bytes()
	if len(raw) < 4 {
		return false
	}

	ai, err := arm64asm.Decode(raw[:4])
	if err != nil {
		return false
	}

	inst.Address = view.Base()
	inst.Size = 4
	inst.ID = uint32(ai.Op)
	inst.Mnemonic = strings.ToLower(ai.Op.String())
	inst.Bytes = append([]byte(nil), raw[:4]...)
	inst.Type = classify(ai)
	inst.Operands = operandsOf(ai)
	resolveTargets(inst, ai)
	return true
}

// OnDecoded implements assembler.Assembler.
func (a *Assembler) OnDecoded(inst *disasm.Instruction) {}

func classify(ai arm64asm.Inst) disasm.Type {
	name := strings.ToUpper(ai.Op.String())
	switch {
	case name == "RET":
		return disasm.Ret
	case name == "NOP":
		return disasm.Nop
	case name == "B" || name == "BR":
		return disasm.Jump
	case name == "BL" || name == "BLR":
		return disasm.Call
	case strings.HasPrefix(name, "B.") || strings.HasPrefix(name, "CBZ") ||
		strings.HasPrefix(name, "CBNZ") || strings.HasPrefix(name, "TBZ") ||
		strings.HasPrefix(name, "TBNZ"):
		return disasm.ConditionalJump
	case strings.HasPrefix(name, "CMP"):
		return disasm.Compare
	default:
		return disasm.Generic
	}
}

func operandsOf(ai arm64asm.Inst) []disasm.Operand {
	var ops []disasm.Operand
	for _, arg := range ai.Args {
		if arg == nil {
			break
		}
		ops = append(ops, disasm.Operand{Kind: disasm.OperandUnknown, Reg: arg.String()})
	}
	return ops
}

// resolveTargets best-effort parses a PC-relative branch target out of the
// decoded instruction's textual operand, since arm64asm exposes relative
// branch offsets as architecture-specific argument types rather than a
// shared numeric interface.
func resolveTargets(inst *disasm.Instruction, ai arm64asm.Inst) {
	if inst.Type != disasm.Jump && inst.Type != disasm.Call && inst.Type != disasm.ConditionalJump {
		return
	}
	if len(ai.Args) == 0 || ai.Args[0] == nil {
		return
	}
	// Most arm64asm branch targets render as a bare hex/decimal literal.
	text := ai.Args[len(ai.Args)-1].String()
	text = strings.TrimPrefix(text, "#")
	var target uint64
	neg := strings.HasPrefix(text, "-")
	if neg {
		text = text[1:]
	}
	if strings.HasPrefix(text, "0x") {
		for _, c := range text[2:] {
			d, ok := hexDigit(byte(c))
			if !ok {
				return
			}
			target = target*16 + uint64(d)
		}
	} else {
		for _, c := range text {
			if c < '0' || c > '9' {
				return
			}
			target = target*10 + uint64(c-'0')
		}
	}
	if neg {
		target = inst.Address - target
	}
	inst.AddMetaTarget(target)
	if len(inst.Operands) > 0 {
		last := len(inst.Operands) - 1
		inst.Operands[last].Value = target
		inst.Operands[last].Flags |= disasm.FlagTarget
	}
}

func hexDigit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}
