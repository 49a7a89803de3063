// Package optimistic keeps a local copy of records, applies user edits
// to it immediately and reconciles with the backing write when it
// finishes.
//
// Every local write to a record bumps that record's revision. A failed
// commit rolls the record back to its last confirmed value (the last
// successful commit or Replace) only if the record's revision is still
// the one the commit was started at; otherwise a newer local edit owns
// the record and the rollback is dropped.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrUnknownRecord = errors.New("optimistic: unknown record")
	ErrClosed        = errors.New("optimistic: controller closed")
)

// Committed is implemented by errors that arrive after the record was
// already written, such as a failed audit append. They are reported
// but never rolled back.
type Committed interface {
	RecordCommitted() bool
}

type Level int

const (
	LevelError Level = iota
	LevelWarning
)

func (l Level) String() string {
	if l == LevelWarning {
		return "warning"
	}
	return "error"
}

// Notice is a user-facing message about a commit result.
type Notice struct {
	Level       Level
	RecordID    string
	Title       string
	Description string
	Err         error
}

type EventKind int

const (
	Applied EventKind = iota
	RolledBack
	Replaced
)

// Event tells observers a record's local value changed.
type Event[V any] struct {
	Kind  EventKind
	ID    string
	Value V
}

// CommitFunc performs the backing write for next.
type CommitFunc[V any] func(ctx context.Context, next V) error

type Option func(*options)

type options struct {
	describe func(error) (title, description string)
}

// WithDescriber sets how commit errors are worded in notices.
func WithDescriber(f func(error) (title, description string)) Option {
	return func(o *options) { o.describe = f }
}

func defaultDescribe(err error) (string, string) {
	return "Update failed", err.Error()
}

type Controller[V any] struct {
	mu      sync.Mutex
	records map[string]V
	revs    map[string]uint64
	// base is the last value the backend confirmed for each record.
	// replaced and restored hold the revisions of the last Replace and
	// of the last rollback to base.
	base      map[string]V
	replaced  map[string]uint64
	restored  map[string]uint64
	observers map[int]func(Event[V])
	noticers  map[int]func(Notice)
	nextSub   int
	closed    bool
	describe  func(error) (string, string)
}

func New[V any](opts ...Option) *Controller[V] {
	o := options{describe: defaultDescribe}
	for _, opt := range opts {
		opt(&o)
	}
	return &Controller[V]{
		records:   make(map[string]V),
		revs:      make(map[string]uint64),
		base:      make(map[string]V),
		replaced:  make(map[string]uint64),
		restored:  make(map[string]uint64),
		observers: make(map[int]func(Event[V])),
		noticers:  make(map[int]func(Notice)),
		describe:  o.describe,
	}
}

// Replace installs authoritative values, e.g. from a fresh load. Any
// pending rollback for these records becomes stale.
func (c *Controller[V]) Replace(records map[string]V) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	events := make([]Event[V], 0, len(records))
	for id, v := range records {
		c.records[id] = v
		c.base[id] = v
		c.revs[id]++
		c.replaced[id] = c.revs[id]
		events = append(events, Event[V]{Kind: Replaced, ID: id, Value: v})
	}
	obs := c.observerList()
	c.mu.Unlock()

	for _, ev := range events {
		for _, fn := range obs {
			fn(ev)
		}
	}
}

// Forget drops a record from the local view.
func (c *Controller[V]) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, id)
	delete(c.base, id)
	c.revs[id]++
}

func (c *Controller[V]) Get(id string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.records[id]
	return v, ok
}

// Snapshot returns a copy of all local records.
func (c *Controller[V]) Snapshot() map[string]V {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]V, len(c.records))
	for id, v := range c.records {
		out[id] = v
	}
	return out
}

// Subscribe registers fn for local value changes. fn may be called from
// any goroutine. The returned func unsubscribes.
func (c *Controller[V]) Subscribe(fn func(Event[V])) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.observers[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// OnNotice registers fn for commit notices.
func (c *Controller[V]) OnNotice(fn func(Notice)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.noticers[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.noticers, id)
		c.mu.Unlock()
	}
}

// Close detaches every observer. Commits already in flight still run
// to completion but their results are no longer applied or reported.
func (c *Controller[V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.observers = map[int]func(Event[V]){}
	c.noticers = map[int]func(Notice){}
}

func (c *Controller[V]) observerList() []func(Event[V]) {
	out := make([]func(Event[V]), 0, len(c.observers))
	for _, fn := range c.observers {
		out = append(out, fn)
	}
	return out
}

func (c *Controller[V]) noticeList() []func(Notice) {
	out := make([]func(Notice), 0, len(c.noticers))
	for _, fn := range c.noticers {
		out = append(out, fn)
	}
	return out
}

// Apply sets record id to mutate(current) and tells observers before
// returning. commit then runs in the background with a context that is
// never cancelled. mutate must not modify its argument in place.
func (c *Controller[V]) Apply(ctx context.Context, id string, mutate func(V) V, commit CommitFunc[V]) (*Pending, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	prev, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownRecord, id)
	}
	next := mutate(prev)
	c.records[id] = next
	c.revs[id]++
	rev := c.revs[id]
	obs := c.observerList()
	c.mu.Unlock()

	ev := Event[V]{Kind: Applied, ID: id, Value: next}
	for _, fn := range obs {
		fn(ev)
	}

	p := newPending()
	go func() {
		err := commit(context.WithoutCancel(ctx), next)
		c.settle(id, rev, next, err)
		p.finish(err)
	}()
	return p, nil
}

func (c *Controller[V]) settle(id string, rev uint64, next V, err error) {
	var committed Committed
	if err == nil || errors.As(err, &committed) && committed.RecordCommitted() {
		c.confirm(id, rev, next)
		if err == nil {
			return
		}
		c.mu.Lock()
		closed := c.closed
		ns := c.noticeList()
		c.mu.Unlock()
		if closed {
			return
		}
		n := Notice{Level: LevelWarning, RecordID: id, Title: "Saved with warnings", Description: err.Error(), Err: err}
		for _, fn := range ns {
			fn(n)
		}
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	var obs []func(Event[V])
	base, known := c.base[id]
	if known && c.revs[id] == rev {
		c.records[id] = base
		c.restored[id] = rev
		obs = c.observerList()
	}
	ns := c.noticeList()
	c.mu.Unlock()

	ev := Event[V]{Kind: RolledBack, ID: id, Value: base}
	for _, fn := range obs {
		fn(ev)
	}
	title, desc := c.describe(err)
	n := Notice{Level: LevelError, RecordID: id, Title: title, Description: desc, Err: err}
	for _, fn := range ns {
		fn(n)
	}
}

// confirm records next as the backend's value unless a Replace came
// after the commit started. When the local record shows a rollback
// with no edit since, next replaces it.
func (c *Controller[V]) confirm(id string, rev uint64, next V) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if _, ok := c.base[id]; !ok || rev < c.replaced[id] {
		c.mu.Unlock()
		return
	}
	c.base[id] = next
	var obs []func(Event[V])
	if r, ok := c.restored[id]; ok && r == c.revs[id] {
		c.records[id] = next
		delete(c.restored, id)
		obs = c.observerList()
	}
	c.mu.Unlock()

	ev := Event[V]{Kind: Replaced, ID: id, Value: next}
	for _, fn := range obs {
		fn(ev)
	}
}
