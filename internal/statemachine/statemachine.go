// Package statemachine implements the engine's generic work scheduler: a
// FIFO queue of (state id, address) work items dispatched to registered
// handlers, with a per-state done set that guarantees each item is
// processed at most once per session.
package statemachine

// State identifies a registered handler.
type State uint8

// Item is one unit of scheduled work.
type Item struct {
	State   State
	Address uint64
}

// Handler processes a single work item. It may enqueue follow-up items,
// including re-enqueuing its own state at a different address.
type Handler func(item Item)

// Validator vetoes processing of an item before its handler runs. A false
// return is a silent skip, not an error.
type Validator func(item Item) bool

// Machine is a single-threaded, cooperative work scheduler. All mutation
// happens inside Next; nothing here is safe for concurrent use.
type Machine struct {
	handlers   map[State]Handler
	validators map[State]Validator
	done       map[State]map[uint64]struct{}
	queue      []Item
	cancelled  bool
}

// New creates an empty Machine.
func New() *Machine {
	return &Machine{
		handlers:   make(map[State]Handler),
		validators: make(map[State]Validator),
		done:       make(map[State]map[uint64]struct{}),
	}
}

// RegisterState binds id to handler. Registering the same id twice
// replaces the previous handler.
func (m *Machine) RegisterState(id State, handler Handler) {
	m.handlers[id] = handler
}

// RegisterValidator binds an optional veto check for id.
func (m *Machine) RegisterValidator(id State, v Validator) {
	m.validators[id] = v
}

// Enqueue appends a work item unless (id, address) is already in the done
// set for id, or the machine has been cancelled.
func (m *Machine) Enqueue(id State, address uint64) {
	if m.cancelled {
		return
	}
	if seen, ok := m.done[id]; ok {
		if _, done := seen[address]; done {
			return
		}
	}
	m.queue = append(m.queue, Item{State: id, Address: address})
}

// Busy reports whether the queue holds unprocessed work.
func (m *Machine) Busy() bool { return len(m.queue) > 0 }

// Next pops and dispatches one item, marking it done before invoking its
// handler so the handler may deliberately re-enqueue itself. Returns false
// when the queue is empty or the machine has been cancelled.
func (m *Machine) Next() bool {
	if m.cancelled || len(m.queue) == 0 {
		return false
	}
	item := m.queue[0]
	m.queue = m.queue[1:]

	seen, ok := m.done[item.State]
	if !ok {
		seen = make(map[uint64]struct{})
		m.done[item.State] = seen
	}
	if _, already := seen[item.Address]; already {
		// Queued more than once before its first dispatch.
		return len(m.queue) > 0
	}
	seen[item.Address] = struct{}{}

	if v, ok := m.validators[item.State]; ok && !v(item) {
		return len(m.queue) > 0
	}
	if h, ok := m.handlers[item.State]; ok {
		h(item)
	}
	return len(m.queue) > 0
}

// Run drives Next to quiescence.
func (m *Machine) Run() {
	for m.Next() {
	}
}

// Done reports whether (id, address) has already been dispatched.
func (m *Machine) Done(id State, address uint64) bool {
	seen, ok := m.done[id]
	if !ok {
		return false
	}
	_, done := seen[address]
	return done
}

// Cancel atomically drops the queue. A subsequent Next returns false.
func (m *Machine) Cancel() {
	m.cancelled = true
	m.queue = nil
}

// Cancelled reports whether Cancel has been called.
func (m *Machine) Cancelled() bool { return m.cancelled }

// Reset clears cancellation, the queue, and every done set, returning the
// machine to its post-New state while keeping registered handlers.
func (m *Machine) Reset() {
	m.cancelled = false
	m.queue = nil
	m.done = make(map[State]map[uint64]struct{})
}
