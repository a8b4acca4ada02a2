package listing

import (
	"sort"

	"reverse/internal/cache"
	"reverse/internal/disasm"
	"reverse/internal/loader"
	"reverse/internal/symtab"
)

// Document is the engine's listing document: the address-sorted item
// sequence plus the instruction cache, symbol table, and reference table
// it keeps consistent. All mutation goes through its methods; nothing
// downstream holds a raw pointer into its internal slice.
type Document struct {
	items    []Item
	segments []loader.Segment

	cache       *cache.Cache
	instHandles map[uint64]cache.Handle

	symbols    *symtab.Table
	references *symtab.ReferenceTable

	comments     map[uint64]string
	autoComments map[uint64]map[string]struct{}
	info         map[uint64]string

	documentEntry *symtab.Symbol
	cursor        uint64

	listeners []Listener
	emitting  bool
}

// New creates an empty Document. cacheWatermark configures the
// instruction cache's eviction-candidate watermark (0 uses the default).
func New(cacheWatermark int) *Document {
	return &Document{
		cache:        cache.New(cacheWatermark),
		instHandles:  make(map[uint64]cache.Handle),
		symbols:      symtab.New(),
		references:   symtab.NewReferenceTable(),
		comments:     make(map[uint64]string),
		autoComments: make(map[uint64]map[string]struct{}),
		info:         make(map[uint64]string),
	}
}

// Symbols returns the document's symbol table.
func (d *Document) Symbols() *symtab.Table { return d.symbols }

// References returns the document's reference table.
func (d *Document) References() *symtab.ReferenceTable { return d.references }

// Cache returns the document's instruction cache.
func (d *Document) Cache() *cache.Cache { return d.cache }

// Len returns the number of items in the listing.
func (d *Document) Len() int { return len(d.items) }

// OnChanged registers a listener invoked synchronously on every item
// insertion, removal, or in-place change.
func (d *Document) OnChanged(l Listener) { d.listeners = append(d.listeners, l) }

func (d *Document) fireEvent(it Item, action Action) {
	if len(d.listeners) == 0 {
		return
	}
	ev := ChangeEvent{Address: it.Address, Type: it.Type, Action: action}
	d.emitting = true
	for _, l := range d.listeners {
		l(ev)
	}
	d.emitting = false
}

func (d *Document) checkReentrancy() {
	if d.emitting {
		panic("listing: mutating call from inside a change listener")
	}
}

// insertionPoint returns the index of the first item with a
// (address, type) key >= (address, t) — a lower-bound binary search.
func (d *Document) insertionPoint(address uint64, t ItemType) int {
	return sort.Search(len(d.items), func(i int) bool {
		if d.items[i].Address != address {
			return d.items[i].Address > address
		}
		return d.items[i].Type >= t
	})
}

// floorIndex returns the index of the last item with Address <= address,
// or -1 if none.
func (d *Document) floorIndex(address uint64) int {
	idx := sort.Search(len(d.items), func(i int) bool { return d.items[i].Address > address })
	return idx - 1
}

func (d *Document) indexOf(address uint64, t ItemType) int {
	idx := d.insertionPoint(address, t)
	if idx < len(d.items) && d.items[idx].Address == address && d.items[idx].Type == t {
		return idx
	}
	return -1
}

// insertItem inserts it in sorted order, or overwrites in place if an item
// with the same (address, type) already exists. Returns true if a new
// item was inserted.
func (d *Document) insertItem(it Item) bool {
	d.checkReentrancy()
	idx := d.insertionPoint(it.Address, it.Type)
	if idx < len(d.items) && d.items[idx].Address == it.Address && d.items[idx].Type == it.Type {
		d.items[idx] = it
		d.fireEvent(it, ActionChanged)
		return false
	}
	d.items = append(d.items, Item{})
	copy(d.items[idx+1:], d.items[idx:])
	d.items[idx] = it
	d.fireEvent(it, ActionInserted)
	return true
}

func (d *Document) removeItem(address uint64, t ItemType) bool {
	d.checkReentrancy()
	idx := d.indexOf(address, t)
	if idx < 0 {
		return false
	}
	removed := d.items[idx]
	d.items = append(d.items[:idx], d.items[idx+1:]...)
	d.fireEvent(removed, ActionRemoved)
	return true
}

// Item returns the item at (address, t), if any.
func (d *Document) Item(address uint64, t ItemType) (Item, bool) {
	idx := d.indexOf(address, t)
	if idx < 0 {
		return Item{}, false
	}
	return d.items[idx], true
}

// ItemAt returns the item at listing position i.
func (d *Document) ItemAt(i int) (Item, bool) {
	if i < 0 || i >= len(d.items) {
		return Item{}, false
	}
	return d.items[i], true
}

// IndexOf returns the listing position of (address, t), or -1.
func (d *Document) IndexOf(address uint64, t ItemType) int { return d.indexOf(address, t) }

// Items returns every item, in sorted order. The returned slice must not
// be mutated by the caller.
func (d *Document) Items() []Item { return d.items }

// Segment inserts a segment item, idempotent by (name, address).
func (d *Document) Segment(name string, offset, address, size uint64, kind loader.SegmentKind) {
	for _, s := range d.segments {
		if s.Name == name && s.Start == address {
			return
		}
	}
	d.segments = append(d.segments, loader.Segment{Name: name, Start: address, Size: size, Offset: offset, Kind: kind})
	d.insertItem(Item{Address: address, Type: ItemSegment, Name: name})
}

// Segments returns every published segment.
func (d *Document) Segments() []loader.Segment {
	return append([]loader.Segment(nil), d.segments...)
}

// SegmentAt returns the segment containing address, if any.
func (d *Document) SegmentAt(address uint64) (loader.Segment, bool) {
	return loader.SegmentContaining(d.segments, address)
}

// Function creates or updates a Function symbol at address and inserts a
// Function listing item.
func (d *Document) Function(address uint64, name string, tag uint32) *symtab.Symbol {
	sym := d.symbols.Create(address, name, symtab.KindFunction, tag)
	d.insertItem(Item{Address: address, Type: ItemFunction, Name: sym.Name})
	return sym
}

// LockFunction is Function, but the resulting symbol resists automatic
// erasure.
func (d *Document) LockFunction(address uint64, name string, tag uint32) *symtab.Symbol {
	sym := d.symbols.Lock(address, symtab.KindFunction, name)
	sym.Tag = tag
	d.insertItem(Item{Address: address, Type: ItemFunction, Name: sym.Name})
	return sym
}

// Symbol creates or updates a symbol at address and inserts a Symbol
// listing item.
func (d *Document) Symbol(address uint64, name string, kind symtab.Kind, tag uint32) *symtab.Symbol {
	sym := d.symbols.Create(address, name, kind, tag)
	d.insertItem(Item{Address: address, Type: ItemSymbol, Name: sym.Name})
	return sym
}

// Lock is Symbol, but the resulting symbol resists automatic erasure.
func (d *Document) Lock(address uint64, kind symtab.Kind, name string) *symtab.Symbol {
	sym := d.symbols.Lock(address, kind, name)
	d.insertItem(Item{Address: address, Type: ItemSymbol, Name: sym.Name})
	return sym
}

// Entry marks address as the program's entry point: a locked Function
// symbol tagged EntryPoint.
func (d *Document) Entry(address uint64, tag uint32) *symtab.Symbol {
	sym := d.symbols.Lock(address, symtab.KindFunction|symtab.KindEntryPoint, "")
	sym.Tag = tag
	d.insertItem(Item{Address: address, Type: ItemFunction, Name: sym.Name})
	d.documentEntry = sym
	return sym
}

// DocumentEntry returns the entry-point symbol, if Entry has been called.
func (d *Document) DocumentEntry() (*symtab.Symbol, bool) {
	return d.documentEntry, d.documentEntry != nil
}

// EraseSymbol removes the symbol at address and its listing item, unless
// the symbol is locked (symtab.ErrLocked) or absent (silent no-op).
func (d *Document) EraseSymbol(address uint64) error {
	sym, ok := d.symbols.LookupByAddress(address)
	if !ok {
		return nil
	}
	if sym.Locked {
		return symtab.ErrLocked
	}
	itemType := ItemSymbol
	if sym.Kind.Has(symtab.KindFunction) {
		itemType = ItemFunction
	}
	if err := d.symbols.Erase(address); err != nil {
		return err
	}
	d.removeItem(address, itemType)
	return nil
}

// Comment sets the user comment at address.
func (d *Document) Comment(address uint64, text string) { d.comments[address] = text }

// CommentAt returns the user comment at address, preferring it over any
// auto-comment unless skipAuto forces the auto-comment view.
func (d *Document) CommentAt(address uint64, skipAuto bool) string {
	if c, ok := d.comments[address]; ok && !skipAuto {
		return c
	}
	return d.autoCommentText(address)
}

// AutoComment adds an automatically generated comment at address. Multiple
// auto-comments at the same address accumulate as a set.
func (d *Document) AutoComment(address uint64, text string) {
	set := d.autoComments[address]
	if set == nil {
		set = make(map[string]struct{})
		d.autoComments[address] = set
	}
	set[text] = struct{}{}
}

func (d *Document) autoCommentText(address uint64) string {
	set := d.autoComments[address]
	if len(set) == 0 {
		return ""
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	text := out[0]
	for _, s := range out[1:] {
		text += ", " + s
	}
	return text
}

// Info sets an informational text at address and inserts an Info item.
func (d *Document) Info(address uint64, text string) {
	d.info[address] = text
	d.insertItem(Item{Address: address, Type: ItemInfo, Name: text})
}

// InfoAt returns the informational text at address.
func (d *Document) InfoAt(address uint64) string { return d.info[address] }

// Instruction stores inst into the cache under a document-owned handle,
// inserts an Instruction item, pushes reference edges from its resolved
// control-flow targets, and — if inst terminates a basic block — inserts a
// trailing Empty item.
func (d *Document) Instruction(inst *disasm.Instruction) {
	h := d.cache.Allocate(inst.Address)
	*h.Instruction() = *inst
	d.attach(h)
}

// AttachHandle registers a cache handle the caller already allocated and
// decoded into (the engine's Decode step does this) as the document's
// permanent reference for that address.
func (d *Document) AttachHandle(h cache.Handle) { d.attach(h) }

func (d *Document) attach(h cache.Handle) {
	addr := h.Address()
	if old, ok := d.instHandles[addr]; ok && old != h {
		d.cache.Release(old)
	}
	d.instHandles[addr] = h
	inst := h.Instruction()
	d.insertItem(Item{
		Address:  addr,
		Type:     ItemInstruction,
		Mnemonic: inst.Mnemonic,
		Size:     inst.Size,
		InstType: inst.Type,
	})
	d.applyOperandReferences(inst)
	d.maybeInsertTrailingEmpty(inst)
}

// Update refreshes the cached instruction content at inst.Address without
// touching listing order.
func (d *Document) Update(inst *disasm.Instruction) {
	if h, ok := d.instHandles[inst.Address]; ok {
		*h.Instruction() = *inst
		return
	}
	h := d.cache.Allocate(inst.Address)
	*h.Instruction() = *inst
	d.instHandles[inst.Address] = h
}

// InstructionAt returns the decoded instruction stored at address.
func (d *Document) InstructionAt(address uint64) (*disasm.Instruction, bool) {
	h, ok := d.instHandles[address]
	if !ok {
		return nil, false
	}
	return h.Instruction(), true
}

func referenceKindFor(t disasm.Type) (symtab.ReferenceKind, bool) {
	switch t {
	case disasm.Jump, disasm.ConditionalJump, disasm.Branch:
		return symtab.Jump, true
	case disasm.Call, disasm.ConditionalCall:
		return symtab.Call, true
	default:
		return 0, false
	}
}

func (d *Document) applyOperandReferences(inst *disasm.Instruction) {
	kind, ok := referenceKindFor(inst.Type)
	if !ok {
		return
	}
	for _, target := range inst.MetaTargets {
		d.references.Push(inst.Address, target, kind)
	}
}

func (d *Document) maybeInsertTrailingEmpty(inst *disasm.Instruction) {
	if !inst.Type.Terminates() {
		return
	}
	next := inst.Address + uint64(inst.Size)
	if _, ok := d.Item(next, ItemFunction); ok {
		return
	}
	if _, ok := d.Item(next, ItemSegment); ok {
		return
	}
	if _, ok := d.Item(next, ItemEmpty); ok {
		return
	}
	d.insertItem(Item{Address: next, Type: ItemEmpty})
}

// FunctionStart returns the nearest Function item at or before address.
func (d *Document) FunctionStart(address uint64) (Item, bool) {
	for i := d.floorIndex(address); i >= 0; i-- {
		if d.items[i].Type == ItemFunction {
			return d.items[i], true
		}
	}
	return Item{}, false
}

// Calls returns every Call-kind reference originating from an instruction
// within the function starting at functionAddress, scanning forward to the
// next Function or Segment boundary.
func (d *Document) Calls(functionAddress uint64) []symtab.Reference {
	start := d.indexOf(functionAddress, ItemFunction)
	if start < 0 {
		return nil
	}
	var calls []symtab.Reference
	for i := start + 1; i < len(d.items); i++ {
		it := d.items[i]
		if it.Type == ItemFunction || it.Type == ItemSegment {
			break
		}
		if it.Type != ItemInstruction {
			continue
		}
		for _, ref := range d.references.Forward(it.Address) {
			if ref.Kind == symtab.Call {
				calls = append(calls, ref)
			}
		}
	}
	return calls
}

// Cursor returns the current cursor address.
func (d *Document) Cursor() uint64 { return d.cursor }

// MoveTo repositions the cursor.
func (d *Document) MoveTo(address uint64) { d.cursor = address }
