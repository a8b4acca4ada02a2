// Package listing implements the engine's listing document: an ordered,
// address-sorted heterogeneous sequence of items kept consistent with a
// side-indexed symbol table and reference table.
package listing

import "reverse/internal/disasm"

// ItemType discriminates the kind of a ListingItem. Order matters: items
// at the same address sort by this numeric rank, Segment first,
// Instruction last, matching SPEC_FULL.md §4.7.
type ItemType uint8

const (
	ItemSegment ItemType = iota
	ItemEmpty
	ItemInfo
	ItemFunction
	ItemSymbol
	ItemInstruction
)

func (t ItemType) String() string {
	switch t {
	case ItemSegment:
		return "segment"
	case ItemEmpty:
		return "empty"
	case ItemInfo:
		return "info"
	case ItemFunction:
		return "function"
	case ItemSymbol:
		return "symbol"
	case ItemInstruction:
		return "instruction"
	default:
		return "unknown"
	}
}

// Item is one entry in the listing. Segment/Function/Symbol/Info items
// carry a Name; Instruction items carry a denormalized summary of the
// decoded instruction so the listing can be traversed and rendered without
// round-tripping through the instruction cache.
type Item struct {
	Address  uint64
	Type     ItemType
	Name     string
	Mnemonic string
	Size     int
	InstType disasm.Type
}

// Action classifies a change event.
type Action uint8

const (
	ActionChanged Action = iota
	ActionInserted
	ActionRemoved
)

func (a Action) String() string {
	switch a {
	case ActionChanged:
		return "changed"
	case ActionInserted:
		return "inserted"
	case ActionRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ChangeEvent is fired synchronously whenever the document's item sequence
// changes. It carries only address/type/action, never a pointer into the
// document's internal storage — listeners re-query the document.
type ChangeEvent struct {
	Address uint64
	Type    ItemType
	Action  Action
}

// Listener receives ChangeEvents. It must not call a mutating Document
// method synchronously; the document is not reentrant (SPEC_FULL.md §5,
// §9).
type Listener func(ChangeEvent)
