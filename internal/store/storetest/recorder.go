// Package storetest provides helpers for tests that need to observe or
// steer calls into a store.DocumentStore.
package storetest

import (
	"context"
	"errors"
	"sync"

	"github.com/anonto42/career-hub/backend/internal/store"
)

// Operation names used as keys by Recorder.
const (
	OpSubscribe   = "subscribe"
	OpGet         = "get"
	OpAdd         = "add"
	OpSet         = "set"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpIncrement   = "increment"
	OpArrayAppend = "array_append"
)

var errNoAtomic = errors.New("storetest: wrapped store has no atomic updates")

// Recorder wraps a store, counts every call per operation, can fail chosen
// operations and runs AfterGet between a read and whatever the caller does
// next.
type Recorder struct {
	Inner store.DocumentStore

	// AfterGet, when set, runs after every successful Get.
	AfterGet func(path string)

	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
	brk   *breaker
}

// breaker fails the streams opened while it was current.
type breaker struct {
	tripped chan struct{}
	err     error
}

// NewRecorder wraps inner.
func NewRecorder(inner store.DocumentStore) *Recorder {
	return &Recorder{
		Inner: inner,
		calls: make(map[string]int),
		fail:  make(map[string]error),
		brk:   &breaker{tripped: make(chan struct{})},
	}
}

// BreakStreams makes every stream opened so far fail with err, including
// reads already blocked in Next. Streams opened afterwards are healthy.
func (r *Recorder) BreakStreams(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.brk.err = err
	close(r.brk.tripped)
	r.brk = &breaker{tripped: make(chan struct{})}
}

// Fail makes every later call of op return err. A nil err clears it.
func (r *Recorder) Fail(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err == nil {
		delete(r.fail, op)
		return
	}
	r.fail[op] = err
}

// Calls returns how many times op was invoked.
func (r *Recorder) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls[op]
}

// Total returns the number of calls across all operations.
func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func (r *Recorder) enter(op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls[op]++
	return r.fail[op]
}

func (r *Recorder) Subscribe(ctx context.Context, q store.Query) (store.Stream, error) {
	if err := r.enter(OpSubscribe); err != nil {
		return nil, err
	}
	inner, err := r.Inner.Subscribe(ctx, q)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	brk := r.brk
	r.mu.Unlock()
	return &breakableStream{inner: inner, brk: brk}, nil
}

type breakableStream struct {
	inner store.Stream
	brk   *breaker
}

func (s *breakableStream) broken() error {
	select {
	case <-s.brk.tripped:
		return s.brk.err
	default:
		return nil
	}
}

func (s *breakableStream) Next(ctx context.Context) (store.Snapshot, error) {
	if err := s.broken(); err != nil {
		return store.Snapshot{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.brk.tripped:
			cancel()
		case <-ctx.Done():
		}
	}()

	snap, err := s.inner.Next(ctx)
	if berr := s.broken(); berr != nil {
		return store.Snapshot{}, berr
	}
	return snap, err
}

func (s *breakableStream) Stop() {
	s.inner.Stop()
}

func (r *Recorder) Get(ctx context.Context, path string) (store.Document, error) {
	if err := r.enter(OpGet); err != nil {
		return store.Document{}, err
	}
	doc, err := r.Inner.Get(ctx, path)
	if err == nil && r.AfterGet != nil {
		r.AfterGet(path)
	}
	return doc, err
}

func (r *Recorder) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := r.enter(OpAdd); err != nil {
		return "", err
	}
	return r.Inner.Add(ctx, collection, data)
}

func (r *Recorder) Set(ctx context.Context, path string, data map[string]any) error {
	if err := r.enter(OpSet); err != nil {
		return err
	}
	return r.Inner.Set(ctx, path, data)
}

func (r *Recorder) Update(ctx context.Context, path string, patch map[string]any) error {
	if err := r.enter(OpUpdate); err != nil {
		return err
	}
	return r.Inner.Update(ctx, path, patch)
}

func (r *Recorder) Delete(ctx context.Context, path string) error {
	if err := r.enter(OpDelete); err != nil {
		return err
	}
	return r.Inner.Delete(ctx, path)
}

// Increment forwards to the inner store when it supports atomic updates.
func (r *Recorder) Increment(ctx context.Context, path, field string, delta int64) error {
	if err := r.enter(OpIncrement); err != nil {
		return err
	}
	a, ok := r.Inner.(store.Atomic)
	if !ok {
		return errNoAtomic
	}
	return a.Increment(ctx, path, field, delta)
}

// ArrayAppend forwards to the inner store when it supports atomic updates.
func (r *Recorder) ArrayAppend(ctx context.Context, path, field string, value any) error {
	if err := r.enter(OpArrayAppend); err != nil {
		return err
	}
	a, ok := r.Inner.(store.Atomic)
	if !ok {
		return errNoAtomic
	}
	return a.ArrayAppend(ctx, path, field, value)
}

// Barrier returns an AfterGet hook that holds each of the first n readers
// until all n have read. It reproduces two clients that both read a
// document before either writes it back.
func Barrier(n int) func(string) {
	var wg sync.WaitGroup
	wg.Add(n)

	var mu sync.Mutex
	left := n

	return func(string) {
		mu.Lock()
		if left == 0 {
			mu.Unlock()
			return
		}
		left--
		mu.Unlock()

		wg.Done()
		wg.Wait()
	}
}
