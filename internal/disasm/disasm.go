// Package disasm defines the instruction and operand representation shared
// across architecture-specific decoders. It is the currency exchanged
// between an Assembler plug-in and the rest of the engine: nothing
// downstream of decode looks at raw instruction bytes again, except to
// re-derive a view for table or pointer walks.
package disasm

import "fmt"

// OperandKind classifies what an Operand holds.
type OperandKind uint8

const (
	OperandUnknown OperandKind = iota
	OperandRegister
	OperandImmediate
	OperandMemory
	OperandDisplacement
)

// OperandFlag is a bitmask of extra facts about an operand.
type OperandFlag uint32

const (
	FlagNone OperandFlag = 0
	FlagRead OperandFlag = 1 << iota
	FlagWrite
	FlagTarget // operand is a resolved control-flow target
)

// IndexInfo describes the index term of a memory operand: value = base +
// index*scale + displacement.
type IndexInfo struct {
	Reg   string
	Scale uint8
}

// Operand is a single decoded instruction operand.
type Operand struct {
	Kind         OperandKind
	Size         int
	Value        uint64 // resolved numeric value, meaningful for Immediate/Memory/Displacement targets
	Reg          string
	Base         string
	Index        *IndexInfo
	Displacement int64
	Flags        OperandFlag
}

// HasTarget reports whether the operand carries a resolved address target.
func (o Operand) HasTarget() bool { return o.Flags&FlagTarget != 0 }

// String renders the operand the way a listing wants to display it:
// registers by name, resolved targets and immediates as hex, memory
// operands in base+index*scale+disp form.
func (o Operand) String() string {
	switch o.Kind {
	case OperandRegister:
		return o.Reg
	case OperandImmediate:
		if o.HasTarget() {
			return fmt.Sprintf("%#x", o.Value)
		}
		return fmt.Sprintf("%#x", int64(o.Value))
	case OperandMemory, OperandDisplacement:
		return o.memoryString()
	default:
		return "?"
	}
}

func (o Operand) memoryString() string {
	inner := o.Base
	if o.Index != nil {
		if inner != "" {
			inner += "+"
		}
		inner += o.Index.Reg
		if o.Index.Scale > 1 {
			inner += fmt.Sprintf("*%d", o.Index.Scale)
		}
	}
	switch {
	case o.Displacement > 0:
		inner += fmt.Sprintf("+%#x", o.Displacement)
	case o.Displacement < 0:
		inner += fmt.Sprintf("-%#x", -o.Displacement)
	}
	return fmt.Sprintf("[%s]", inner)
}

// Type classifies an instruction's control-flow behavior.
type Type uint8

const (
	Invalid Type = iota
	Generic
	Nop
	Stop // e.g. hlt/ud2: falls through to nothing and isn't a branch
	Jump
	ConditionalJump
	Call
	ConditionalCall
	Ret
	Compare
	Branch       // architecture-classified generic branch (non-terminating fallthrough)
	BranchMemory // branch through a memory operand, target not yet resolved
)

// Terminates reports whether an instruction of this type ends a basic
// block's linear fallthrough (Stop, Jump, Ret per the engine's decode
// rules; conditional jumps and calls do not terminate fallthrough).
func (t Type) Terminates() bool {
	switch t {
	case Stop, Jump, Ret:
		return true
	default:
		return false
	}
}

// Instruction is a typed, architecture-neutral decoded instruction record.
type Instruction struct {
	Address     uint64
	Size        int
	Mnemonic    string
	ID          uint32 // architecture-specific opcode id, for display/debugging only
	Type        Type
	Operands    []Operand
	MetaTargets []uint64 // addresses the decoder already determined are reachable
	Bytes       []byte   // raw encoding, retained for "db" fallback and re-display
}

// AddMetaTarget appends target to MetaTargets if not already present.
func (i *Instruction) AddMetaTarget(target uint64) {
	for _, t := range i.MetaTargets {
		if t == target {
			return
		}
	}
	i.MetaTargets = append(i.MetaTargets, target)
}

// InvalidAt builds the one-byte "db" placeholder instruction the engine
// inserts when an Assembler fails to decode.
func InvalidAt(address uint64, raw byte) Instruction {
	return Instruction{
		Address:  address,
		Size:     1,
		Mnemonic: "db",
		Type:     Invalid,
		Bytes:    []byte{raw},
	}
}
