package colorize

import (
	"fmt"
	"strings"

	"github.com/ianlancetaylor/demangle"

	"reverse/internal/disasm"
	"reverse/internal/listing"
)

// FormatDocument renders every item in doc as one line, address-sorted,
// with instruction lines colorized and comments appended after a
// semicolon, mirroring the donor's annotated-listing text format.
func FormatDocument(doc *listing.Document) string {
	var sb strings.Builder
	for _, it := range doc.Items() {
		sb.WriteString(FormatItem(doc, it))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FormatItem renders a single listing item as one display line.
func FormatItem(doc *listing.Document, it listing.Item) string {
	switch it.Type {
	case listing.ItemSegment:
		return fmt.Sprintf("; ---- segment %s @ %x ----", it.Name, it.Address)
	case listing.ItemEmpty:
		return ""
	case listing.ItemInfo:
		return fmt.Sprintf("; %s", it.Name)
	case listing.ItemFunction:
		return ColorizeInstructionLine(fmt.Sprintf("%x  %s:", it.Address, demangledName(it.Name)))
	case listing.ItemSymbol:
		line := fmt.Sprintf("%x  %s:", it.Address, demangledName(it.Name))
		if c := doc.CommentAt(it.Address, false); c != "" {
			line += " ; " + c
		}
		return ColorizeInstructionLine(line)
	case listing.ItemInstruction:
		return formatInstructionLine(doc, it)
	default:
		return fmt.Sprintf("%x  ?", it.Address)
	}
}

func formatInstructionLine(doc *listing.Document, it listing.Item) string {
	operands := ""
	if inst, ok := doc.InstructionAt(it.Address); ok {
		operands = operandText(inst.Operands)
	}
	line := fmt.Sprintf("%-10x  %-6s %-30s", it.Address, it.Mnemonic, operands)
	if c := doc.CommentAt(it.Address, false); c != "" {
		line += " ; " + c
	}
	return ColorizeInstructionLine(line)
}

// demangledName prettifies name as a C++ or Rust mangled symbol if it
// looks like one, leaving plain names (most imports, all hand-assigned
// ones) untouched.
func demangledName(name string) string {
	if name == "" {
		return name
	}
	return demangle.Filter(name, demangle.NoClones)
}

func operandText(ops []disasm.Operand) string {
	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		parts = append(parts, op.String())
	}
	return strings.Join(parts, ", ")
}
