package live

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/anonto42/career-hub/backend/internal/store"
)

// Decoder turns a raw document into a typed record. A document that fails to
// decode is left out of the view.
type Decoder[T any] func(store.Document) (T, error)

var (
	// ErrNotReady is reported by Check before the first push arrives.
	ErrNotReady = errors.New("live view has no snapshot yet")
	// ErrViewClosed is reported by Check after Close.
	ErrViewClosed = errors.New("live view is closed")
)

// newBackOff paces the reopen attempts of a kept view.
var newBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// View owns the latest decoded result set of one live query. Each push
// replaces the whole set. Once closed, the view ignores every later push.
type View[T any] struct {
	decode Decoder[T]
	less   func(a, b T) bool
	log    zerolog.Logger

	mu          sync.RWMutex
	items       []T
	version     uint64
	provisional bool
	closed      bool
	failed      error
	listeners   map[int]func([]T)
	nextID      int
	sub         *Subscription

	ready     chan struct{}
	readyOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
	doneOnce  sync.Once
	err       error
}

func newView[T any](s *Subscriber, q store.Query, decode Decoder[T], less func(a, b T) bool) *View[T] {
	return &View[T]{
		decode:    decode,
		less:      less,
		log:       s.log.With().Str("collection", q.Collection).Logger(),
		items:     []T{},
		listeners: make(map[int]func([]T)),
		ready:     make(chan struct{}),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Watch subscribes to q and keeps a View of its decoded documents. When less
// is set, each pushed set is re-sorted with it after decoding; otherwise
// the server order is kept. The view ends with its subscription.
func Watch[T any](ctx context.Context, s *Subscriber, q store.Query, decode Decoder[T], less func(a, b T) bool) (*View[T], error) {
	v := newView(s, q, decode, less)

	sub, err := s.Subscribe(ctx, q, v.apply)
	if err != nil {
		return nil, err
	}
	if !v.attach(sub) {
		sub.Unsubscribe()
	}
	go func() { v.finish(v.await(sub)) }()

	return v, nil
}

// Keep is Watch for views that live as long as the process. When the
// stream fails, the view keeps its last items, reports the failure through
// Check and reopens the query with exponential backoff until a new push
// arrives. It ends only when ctx ends or the view is closed.
func Keep[T any](ctx context.Context, s *Subscriber, q store.Query, decode Decoder[T], less func(a, b T) bool) *View[T] {
	v := newView(s, q, decode, less)
	go v.keep(ctx, s, q, newBackOff())
	return v
}

func (v *View[T]) keep(ctx context.Context, s *Subscriber, q store.Query, b backoff.BackOff) {
	for {
		seen := v.Version()
		sub, err := s.Subscribe(ctx, q, v.apply)
		if err == nil {
			if !v.attach(sub) {
				sub.Unsubscribe()
				v.finish(nil)
				return
			}
			if err = v.await(sub); err == nil {
				v.finish(nil)
				return
			}
			if v.Version() > seen {
				b.Reset()
			}
		} else {
			v.setFailed(err)
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			v.finish(err)
			return
		}
		v.log.Warn().Err(err).Dur("retry_in", wait).Msg("live query lost, reopening")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			v.finish(nil)
			return
		case <-v.stop:
			timer.Stop()
			v.finish(nil)
			return
		}
	}
}

// attach makes sub the subscription Close releases. It reports false when
// the view is already closed.
func (v *View[T]) attach(sub *Subscription) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return false
	}
	v.sub = sub
	return true
}

// await blocks until sub ends and records a stream failure.
func (v *View[T]) await(sub *Subscription) error {
	<-sub.Done()
	err := sub.Err()
	if err != nil {
		v.setFailed(err)
	}
	return err
}

func (v *View[T]) setFailed(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.failed = err
}

func (v *View[T]) finish(err error) {
	v.doneOnce.Do(func() {
		v.err = err
		close(v.done)
	})
}

func (v *View[T]) apply(snap store.Snapshot) {
	items := make([]T, 0, len(snap.Documents))
	for _, doc := range snap.Documents {
		item, err := v.decode(doc)
		if err != nil {
			v.log.Warn().Err(err).Str("id", doc.ID).Msg("skipping malformed document")
			continue
		}
		items = append(items, item)
	}
	if v.less != nil {
		sort.SliceStable(items, func(i, j int) bool { return v.less(items[i], items[j]) })
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.items = items
	v.version++
	v.provisional = false
	v.failed = nil
	notify := v.listenersLocked()
	v.mu.Unlock()

	for _, fn := range notify {
		fn(clone(items))
	}
	// Listeners have seen the first push by the time Ready returns.
	v.readyOnce.Do(func() { close(v.ready) })
}

// Patch applies a provisional local change. The next push from the server
// replaces it. Patch reports false on a closed view.
func (v *View[T]) Patch(fn func(items []T) []T) bool {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return false
	}
	v.items = fn(clone(v.items))
	v.provisional = true
	items := clone(v.items)
	notify := v.listenersLocked()
	v.mu.Unlock()

	for _, fn := range notify {
		fn(clone(items))
	}
	return true
}

// PatchIf applies fn like Patch, but only while version is still the latest
// push. It reports whether the patch was applied.
func (v *View[T]) PatchIf(version uint64, fn func(items []T) []T) bool {
	v.mu.Lock()
	if v.closed || v.version != version {
		v.mu.Unlock()
		return false
	}
	v.items = fn(clone(v.items))
	v.provisional = true
	items := clone(v.items)
	notify := v.listenersLocked()
	v.mu.Unlock()

	for _, fn := range notify {
		fn(clone(items))
	}
	return true
}

// Items returns a copy of the current result set.
func (v *View[T]) Items() []T {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return clone(v.items)
}

// Version counts the server pushes applied so far.
func (v *View[T]) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.version
}

// Provisional reports whether a local patch is showing.
func (v *View[T]) Provisional() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.provisional
}

// Ready blocks until the first push has been applied.
func (v *View[T]) Ready(ctx context.Context) error {
	select {
	case <-v.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Check reports whether Items can be served: ErrNotReady before the first
// push, the stream failure while the query is down, ErrViewClosed after
// Close, nil otherwise.
func (v *View[T]) Check() error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	switch {
	case v.closed:
		return ErrViewClosed
	case v.failed != nil:
		return v.failed
	}
	select {
	case <-v.ready:
		return nil
	default:
		return ErrNotReady
	}
}

// Done is closed when the view stops following its query for good.
func (v *View[T]) Done() <-chan struct{} {
	return v.done
}

// Err reports why the view ended, if a stream failure ended it. It is only
// meaningful after Done is closed.
func (v *View[T]) Err() error {
	select {
	case <-v.done:
		return v.err
	default:
		return nil
	}
}

// OnChange registers fn to receive every new result set. The returned func
// removes it.
func (v *View[T]) OnChange(fn func(items []T)) (cancel func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++
	v.listeners[id] = fn

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.listeners, id)
	}
}

// Close releases the subscription and freezes the view. It is idempotent.
func (v *View[T]) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.listeners = map[int]func([]T){}
	sub := v.sub
	close(v.stop)
	v.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func (v *View[T]) listenersLocked() []func([]T) {
	out := make([]func([]T), 0, len(v.listeners))
	for _, fn := range v.listeners {
		out = append(out, fn)
	}
	return out
}

func clone[T any](items []T) []T {
	return append(make([]T, 0, len(items)), items...)
}
