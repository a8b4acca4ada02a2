// Package symtab implements the engine's symbol table (name/address
// bi-directional index) and reference table (directed, kinded edges
// between addresses). Both are plain in-memory indexes; atomicity across a
// single document-level mutation is the caller's responsibility (the
// engine never interleaves two mutations, per SPEC_FULL.md §5).
package symtab

import (
	"errors"
	"fmt"
)

// ErrLocked is returned by Erase when the symbol resists automatic removal.
var ErrLocked = errors.New("symtab: symbol is locked")

// Kind is a bitmask describing what a symbol denotes.
type Kind uint32

const (
	KindFunction Kind = 1 << iota
	KindCode
	KindData
	KindString
	KindPointer
	KindTable
	KindTableItem
	KindImport
	KindExport
	KindEntryPoint
)

// Has reports whether k includes every bit set in other.
func (k Kind) Has(other Kind) bool { return k&other == other }

// Symbol is a named, kinded anchor at an address.
type Symbol struct {
	Address uint64
	Name    string
	Kind    Kind
	Tag     uint32
	Locked  bool
}

// Table is a bi-directional name/address symbol index with deterministic
// collision resolution.
type Table struct {
	byAddress map[uint64]*Symbol
	byName    map[string]*Symbol
}

// New creates an empty symbol table.
func New() *Table {
	return &Table{
		byAddress: make(map[uint64]*Symbol),
		byName:    make(map[string]*Symbol),
	}
}

// DefaultPrefix returns the conventional unlocked-name prefix for kind,
// matching the original disassembler's sub_/loc_/data_/str_ scheme.
func DefaultPrefix(kind Kind) string {
	switch {
	case kind.Has(KindFunction):
		return "sub"
	case kind.Has(KindString):
		return "str"
	case kind.Has(KindImport):
		return "imp"
	case kind.Has(KindTable) || kind.Has(KindTableItem) || kind.Has(KindPointer) || kind.Has(KindData):
		return "data"
	case kind.Has(KindCode):
		return "loc"
	default:
		return "loc"
	}
}

func defaultName(kind Kind, address uint64) string {
	return fmt.Sprintf("%s_%x", DefaultPrefix(kind), address)
}

// Create inserts or updates a symbol at address. An empty name gets a
// deterministic default name for kind. A name collision with a symbol at
// a different address is resolved by suffixing "_<hex(address)>", then
// "_2", "_3", … until a free name is found — the symbol is never refused.
func (t *Table) Create(address uint64, name string, kind Kind, tag uint32) *Symbol {
	if existing, ok := t.byAddress[address]; ok {
		existing.Kind |= kind
		existing.Tag = tag
		if name != "" && name != existing.Name {
			t.rename(existing, name)
		}
		return existing
	}

	if name == "" {
		name = defaultName(kind, address)
	}
	name = t.resolveCollision(name, address)

	sym := &Symbol{Address: address, Name: name, Kind: kind, Tag: tag}
	t.byAddress[address] = sym
	t.byName[name] = sym
	return sym
}

// resolveCollision returns a name guaranteed unique (or already owned by
// address itself), generating suffixes deterministically on collision.
func (t *Table) resolveCollision(name string, address uint64) string {
	if existing, ok := t.byName[name]; !ok || existing.Address == address {
		return name
	}
	candidate := fmt.Sprintf("%s_%x", name, address)
	if existing, ok := t.byName[candidate]; !ok || existing.Address == address {
		return candidate
	}
	for i := 2; ; i++ {
		suffixed := fmt.Sprintf("%s_%d", candidate, i)
		if existing, ok := t.byName[suffixed]; !ok || existing.Address == address {
			return suffixed
		}
	}
}

// LookupByAddress returns the symbol at address, if any.
func (t *Table) LookupByAddress(address uint64) (*Symbol, bool) {
	s, ok := t.byAddress[address]
	return s, ok
}

// LookupByName returns the symbol named name, if any.
func (t *Table) LookupByName(name string) (*Symbol, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// Rename gives the symbol at address a new name, resolving collisions the
// same way Create does.
func (t *Table) Rename(address uint64, newName string) error {
	sym, ok := t.byAddress[address]
	if !ok {
		return fmt.Errorf("symtab: no symbol at address %#x", address)
	}
	t.rename(sym, newName)
	return nil
}

func (t *Table) rename(sym *Symbol, newName string) {
	resolved := t.resolveCollision(newName, sym.Address)
	delete(t.byName, sym.Name)
	sym.Name = resolved
	t.byName[resolved] = sym
}

// Lock marks the symbol at address as locked, creating it first if absent.
// A locked symbol resists automatic erasure. An explicit name/kind may be
// supplied to set on creation or update.
func (t *Table) Lock(address uint64, kind Kind, name string) *Symbol {
	sym := t.Create(address, name, kind, 0)
	sym.Locked = true
	return sym
}

// Erase removes the symbol at address, unless it is locked, in which case
// the symbol stays in place and ErrLocked is returned (the engine's Decode
// step discards that error, so per SPEC_FULL.md §7 a LockedSymbol is never
// surfaced). Erasing a nonexistent symbol is a silent no-op.
func (t *Table) Erase(address uint64) error {
	sym, ok := t.byAddress[address]
	if !ok {
		return nil
	}
	if sym.Locked {
		return ErrLocked
	}
	delete(t.byAddress, address)
	delete(t.byName, sym.Name)
	return nil
}

// Len reports the number of symbols in the table.
func (t *Table) Len() int { return len(t.byAddress) }

// All returns every symbol, in no particular order.
func (t *Table) All() []*Symbol {
	out := make([]*Symbol, 0, len(t.byAddress))
	for _, s := range t.byAddress {
		out = append(out, s)
	}
	return out
}
