package resource

import (
	"sync"

	"github.com/wippyai/wasm-canon/errors"
)

// Table maps handles to the values of one resource type within one
// instance. All operations are safe for concurrent use.
type Table struct {
	name    string
	cfg     config
	entries []entry
	free    []uint32
	expired map[Handle]struct{}
	subs    []subscriber
	nextSub Subscription
	live    int
	closed  bool
	mu      sync.Mutex
}

type subscriber struct {
	id  Subscription
	obs Observer
}

type entry struct {
	value   any
	owner   Handle // non-zero for lend entries
	borrows uint32
	lends   uint32
	gen     uint16
	valid   bool
}

// NewTable creates an empty table for the resource called name.
func NewTable(name string, opts ...Option) *Table {
	t := &Table{name: name, entries: make([]entry, 0, 16)}
	for _, opt := range opts {
		opt(&t.cfg)
	}
	if t.cfg.debug {
		t.expired = make(map[Handle]struct{})
	}
	for _, o := range t.cfg.observers {
		t.subscribe(o)
	}
	return t
}

// Name returns the resource name.
func (t *Table) Name() string { return t.name }

// Allocate stores v and returns a handle unique among live handles.
func (t *Table) Allocate(v any) (Handle, error) {
	t.mu.Lock()
	h, err := t.insert(entry{value: v})
	t.mu.Unlock()
	if err != nil {
		return 0, err
	}
	t.notify(Event{Type: EventCreated, Handle: h, Value: v})
	return h, nil
}

func (t *Table) insert(e entry) (Handle, error) {
	if t.closed {
		return 0, t.closedErr()
	}
	e.valid = true

	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
		e.gen = t.entries[idx-1].gen
		t.entries[idx-1] = e
	} else {
		if len(t.entries) >= maxIndex {
			return 0, errors.New(errors.PhaseResource, errors.KindAllocation).
				Resource(t.name).
				Detail("table full").
				Build()
		}
		t.entries = append(t.entries, e)
		idx = uint32(len(t.entries))
	}
	t.live++
	h := makeHandle(idx, e.gen)
	if t.expired != nil {
		delete(t.expired, h)
	}
	return h, nil
}

// lookup returns the live entry for h. Callers hold t.mu.
func (t *Table) lookup(h Handle) (*entry, error) {
	idx := h.index()
	if h == 0 || idx == 0 || int(idx) > len(t.entries) {
		return nil, errors.BadHandle(t.name, uint32(h), "unknown handle")
	}
	e := &t.entries[idx-1]
	if !e.valid || e.gen != h.generation() {
		if _, ok := t.expired[h]; ok {
			return nil, errors.BadHandle(t.name, uint32(h), "borrow used after its call returned")
		}
		return nil, errors.BadHandle(t.name, uint32(h), "stale handle")
	}
	return e, nil
}

// release frees the slot of h and bumps its generation. Callers hold t.mu.
func (t *Table) release(h Handle) {
	e := &t.entries[h.index()-1]
	*e = entry{gen: (e.gen + 1) & genMask}
	t.free = append(t.free, h.index())
	t.live--
}

// Resolve returns the value behind h, following lend handles to their owner.
func (t *Table) Resolve(h Handle) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	return e.value, nil
}

// checkDroppable rejects lend handles and entries with outstanding borrows.
func (t *Table) checkDroppable(h Handle, e *entry) error {
	if e.owner != 0 {
		return errors.BadHandle(t.name, uint32(h), "borrowed handle cannot be dropped")
	}
	if e.borrows > 0 || e.lends > 0 {
		return errors.New(errors.PhaseResource, errors.KindOutstandingBorrow).
			Resource(t.name).
			Value(uint32(h)).
			Detail("%d outstanding borrows", e.borrows+e.lends).
			Build()
	}
	return nil
}

// Drop removes h and runs the destructor exactly once.
func (t *Table) Drop(h Handle) error {
	v, err := t.remove(h)
	if err != nil {
		return err
	}
	t.destroy(v)
	t.notify(Event{Type: EventDropped, Handle: h, Value: v})
	return nil
}

// Take removes h without running the destructor; the caller now owns the
// value.
func (t *Table) Take(h Handle) (any, error) {
	v, err := t.remove(h)
	if err != nil {
		return nil, err
	}
	t.notify(Event{Type: EventTaken, Handle: h, Value: v})
	return v, nil
}

// Discard runs the destructor on v, a value taken out of the table under h
// whose new owner gave it up without dropping it.
func (t *Table) Discard(h Handle, v any) {
	t.destroy(v)
	t.notify(Event{Type: EventDropped, Handle: h, Value: v})
}

func (t *Table) remove(h Handle) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	if err := t.checkDroppable(h, e); err != nil {
		return nil, err
	}
	v := e.value
	t.release(h)
	return v, nil
}

func (t *Table) destroy(v any) {
	if t.cfg.destructor != nil {
		t.cfg.destructor(v)
		return
	}
	if d, ok := v.(Dropper); ok {
		d.Drop()
	}
}

// Borrow marks h as borrowed for the duration of a call and returns its
// value. Every Borrow must be paired with a Release.
func (t *Table) Borrow(h Handle) (any, error) {
	t.mu.Lock()
	e, err := t.lookup(h)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	if e.owner != 0 {
		e = &t.entries[e.owner.index()-1]
	}
	e.borrows++
	v := e.value
	t.mu.Unlock()

	t.notify(Event{Type: EventBorrowed, Handle: h, Value: v})
	return v, nil
}

// Release ends a borrow taken with Borrow.
func (t *Table) Release(h Handle) error {
	t.mu.Lock()
	e, err := t.lookup(h)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if e.owner != 0 {
		e = &t.entries[e.owner.index()-1]
	}
	if e.borrows == 0 {
		t.mu.Unlock()
		return errors.BadHandle(t.name, uint32(h), "release without borrow")
	}
	e.borrows--
	v := e.value
	t.mu.Unlock()

	t.notify(Event{Type: EventReleased, Handle: h, Value: v})
	return nil
}

// Lend issues a call-scoped borrow handle for h. The owner cannot be dropped
// until EndLend is called with the returned handle, after which the lend
// handle is stale.
func (t *Table) Lend(h Handle) (Handle, error) {
	t.mu.Lock()
	e, err := t.lookup(h)
	if err != nil {
		t.mu.Unlock()
		return 0, err
	}
	owner := h
	if e.owner != 0 {
		owner = e.owner
		e = &t.entries[owner.index()-1]
	}
	v := e.value
	e.lends++
	lh, err := t.insert(entry{value: v, owner: owner})
	if err != nil {
		t.entries[owner.index()-1].lends--
		t.mu.Unlock()
		return 0, err
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventLent, Handle: lh, Value: v})
	return lh, nil
}

// EndLend revokes a handle returned by Lend.
func (t *Table) EndLend(lh Handle) error {
	t.mu.Lock()
	e, err := t.lookup(lh)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if e.owner == 0 {
		t.mu.Unlock()
		return errors.BadHandle(t.name, uint32(lh), "not a lend handle")
	}
	owner, v := e.owner, e.value
	if o := &t.entries[owner.index()-1]; o.valid && o.lends > 0 {
		o.lends--
	}
	t.release(lh)
	if t.expired != nil {
		t.expired[lh] = struct{}{}
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventLendEnded, Handle: lh, Value: v})
	return nil
}

// IsLend reports whether h is a live lend handle.
func (t *Table) IsLend(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.lookup(h)
	return err == nil && e.owner != 0
}

// Len returns the number of live owned entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for i := range t.entries {
		if t.entries[i].valid && t.entries[i].owner == 0 {
			n++
		}
	}
	return n
}

// Each calls fn for every live owned entry until fn returns false. fn runs
// on a snapshot and may use the table.
func (t *Table) Each(fn func(Handle, any) bool) {
	type item struct {
		h Handle
		v any
	}
	t.mu.Lock()
	items := make([]item, 0, t.live)
	for i, e := range t.entries {
		if e.valid && e.owner == 0 {
			items = append(items, item{makeHandle(uint32(i+1), e.gen), e.value})
		}
	}
	t.mu.Unlock()

	for _, it := range items {
		if !fn(it.h, it.v) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events. The returned token
// removes it again.
func (t *Table) Subscribe(o Observer) Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.subscribe(o)
}

func (t *Table) subscribe(o Observer) Subscription {
	t.nextSub++
	t.subs = append(t.subs, subscriber{id: t.nextSub, obs: o})
	return t.nextSub
}

// Unsubscribe removes the observer added under s. Unknown tokens are
// ignored.
func (t *Table) Unsubscribe(s Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := make([]subscriber, 0, len(t.subs))
	for _, sub := range t.subs {
		if sub.id != s {
			kept = append(kept, sub)
		}
	}
	t.subs = kept
}

// Close destroys every live owned entry and rejects further allocations.
// Closing twice is a no-op.
func (t *Table) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	var values []any
	for i, e := range t.entries {
		if e.valid && e.owner == 0 {
			values = append(values, e.value)
		}
		t.entries[i] = entry{}
	}
	t.entries, t.free, t.live = nil, nil, 0
	t.mu.Unlock()

	for _, v := range values {
		t.destroy(v)
	}
	return nil
}

func (t *Table) closedErr() error {
	return errors.New(errors.PhaseResource, errors.KindClosed).
		Resource(t.name).
		Detail("table closed").
		Build()
}

func (t *Table) notify(e Event) {
	t.mu.Lock()
	subs := t.subs
	t.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	e.Resource = t.name
	for _, sub := range subs {
		sub.obs.OnResourceEvent(e)
	}
}
