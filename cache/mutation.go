package cache

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/kyptronix/spectrum-admin/observe"
)

// ConflictPolicy decides what happens when a mutation targets an instance
// that already has a mutation pending.
type ConflictPolicy int

const (
	// ConflictReject fails the second mutation with a conflict error.
	ConflictReject ConflictPolicy = iota
	// ConflictQueue runs mutations on the same target one at a time in
	// arrival order.
	ConflictQueue
)

func (p ConflictPolicy) String() string {
	if p == ConflictQueue {
		return "queue"
	}
	return "reject"
}

// ParseConflictPolicy maps "reject" or "queue" to a policy.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch s {
	case "", "reject":
		return ConflictReject, nil
	case "queue":
		return ConflictQueue, nil
	default:
		return 0, ValidationError("config", "unknown conflict policy "+s)
	}
}

// Mutation is one write against the API.
type Mutation struct {
	// Kind selects the invalidation rule, e.g. "users.block".
	Kind string
	// Target is the instance the mutation acts on. A zero Target (or one
	// with an empty ID) takes part in no conflict lane.
	Target Tag
	// Exec performs the write.
	Exec func(ctx context.Context) (any, error)
}

// Invalidation is the rule for one mutation kind. Tags are invalidated as
// given. Each Targeted type expands to Instance(type, Target.ID) and
// List(type).
type Invalidation struct {
	Tags     []Tag
	Targeted []string
}

// InvalidationTable maps mutation kinds to their rules. It is plain data.
type InvalidationTable map[string]Invalidation

// TagsFor returns the tags a successful m invalidates.
func (t InvalidationTable) TagsFor(m Mutation) ([]Tag, error) {
	rule, ok := t[m.Kind]
	if !ok {
		return nil, ValidationError(m.Kind, "unknown mutation kind")
	}
	tags := slices.Clone(rule.Tags)
	if len(rule.Targeted) > 0 {
		if m.Target.ID == "" {
			return nil, ValidationError(m.Kind, "mutation requires a target id")
		}
		for _, typ := range rule.Targeted {
			tags = append(tags, Instance(typ, m.Target.ID), List(typ))
		}
	}
	return tags, nil
}

// Kinds returns the mutation kinds in the table, sorted.
func (t InvalidationTable) Kinds() []string {
	kinds := make([]string, 0, len(t))
	for k := range t {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Dispatcher executes mutations and invalidates the cache after each
// success. Nothing in the store changes when a mutation fails.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Conflicts: a Dispatcher applies one ConflictPolicy to every mutation.
// - Context: a queued mutation stops waiting when ctx ends.
type Dispatcher struct {
	store  *Store
	table  InvalidationTable
	policy ConflictPolicy
	mw     *observe.Middleware
	logger observe.Logger

	mu    sync.Mutex
	lanes map[Tag]*lane
}

// lane serialises mutations on one target. busy stays true while ownership
// passes from one waiter to the next.
type lane struct {
	busy    bool
	waiters []chan struct{}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithConflictPolicy sets the conflict policy. Default: ConflictReject.
func WithConflictPolicy(p ConflictPolicy) DispatcherOption {
	return func(d *Dispatcher) { d.policy = p }
}

// WithDispatcherInstruments sets tracing, metrics and logging.
func WithDispatcherInstruments(in observe.Instruments) DispatcherOption {
	return func(d *Dispatcher) {
		d.mw = observe.MiddlewareFrom(in)
		if in.Logger != nil {
			d.logger = in.Logger
		}
	}
}

// NewDispatcher creates a Dispatcher that invalidates store using table.
func NewDispatcher(store *Store, table InvalidationTable, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		table:  table,
		policy: ConflictReject,
		logger: observe.NopLogger(),
		lanes:  make(map[Tag]*lane),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.mw == nil {
		d.mw = observe.NewMiddleware(nil, nil, d.logger)
	}
	return d
}

// Policy returns the conflict policy in effect.
func (d *Dispatcher) Policy() ConflictPolicy { return d.policy }

// Mutate executes m. On success it invalidates the tags from the table and
// returns Exec's result. Unknown kinds fail with a validation error before
// Exec runs.
func (d *Dispatcher) Mutate(ctx context.Context, m Mutation) (any, error) {
	if m.Exec == nil {
		return nil, ValidationError(m.Kind, "mutation has no exec function")
	}
	tags, err := d.table.TagsFor(m)
	if err != nil {
		return nil, err
	}

	if m.Target.ID != "" {
		if err := d.acquire(ctx, m); err != nil {
			return nil, err
		}
		defer d.release(m.Target)
	}

	meta := observe.OpMeta{
		Kind:     observe.OpMutation,
		Endpoint: m.Kind,
		Target:   m.Target.String(),
		Tags:     TagStrings(tags),
	}
	result, err := d.mw.Wrap(func(ctx context.Context, _ observe.OpMeta) (any, error) {
		return m.Exec(ctx)
	})(ctx, meta)
	if err != nil {
		return nil, classify(m.Kind, err)
	}

	if d.store != nil {
		d.store.Invalidate(ctx, tags...)
	}
	return result, nil
}

// Pending returns the targets that currently have a mutation running,
// sorted by their string form.
func (d *Dispatcher) Pending() []Tag {
	d.mu.Lock()
	out := make([]Tag, 0, len(d.lanes))
	for t, l := range d.lanes {
		if l.busy {
			out = append(out, t)
		}
	}
	d.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (d *Dispatcher) acquire(ctx context.Context, m Mutation) error {
	d.mu.Lock()
	l, ok := d.lanes[m.Target]
	if !ok {
		l = &lane{}
		d.lanes[m.Target] = l
	}
	if !l.busy {
		l.busy = true
		d.mu.Unlock()
		return nil
	}
	if d.policy == ConflictReject {
		d.mu.Unlock()
		return ConflictError(m.Kind, m.Target.String())
	}
	ch := make(chan struct{})
	l.waiters = append(l.waiters, ch)
	d.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		d.mu.Lock()
		if i := slices.Index(l.waiters, ch); i >= 0 {
			l.waiters = slices.Delete(l.waiters, i, i+1)
			d.mu.Unlock()
			return NetworkError(m.Kind, ctx.Err())
		}
		d.mu.Unlock()
		// Ownership was handed over while ctx ended; pass it on.
		d.release(m.Target)
		return NetworkError(m.Kind, ctx.Err())
	}
}

func (d *Dispatcher) release(target Tag) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.lanes[target]
	if !ok {
		return
	}
	if len(l.waiters) > 0 {
		next := l.waiters[0]
		l.waiters = l.waiters[1:]
		close(next)
		return
	}
	delete(d.lanes, target)
}
