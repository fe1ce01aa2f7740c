// Package live turns store streams into subscriptions with an explicit
// acquire/release lifecycle and into views that own the latest snapshot.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/anonto42/career-hub/backend/internal/apperr"
	"github.com/anonto42/career-hub/backend/internal/store"
)

// Subscriber opens live queries against a store.
type Subscriber struct {
	store store.DocumentStore
	log   zerolog.Logger
}

// NewSubscriber creates a Subscriber.
func NewSubscriber(st store.DocumentStore, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		store: st,
		log:   log.With().Str("component", "live").Logger(),
	}
}

// Subscription is the handle of one open live query.
type Subscription struct {
	query  store.Query
	stream store.Stream
	cancel context.CancelFunc
	log    zerolog.Logger

	closed   atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
	err      error
}

// Subscribe opens q and calls onSnapshot with every complete result set,
// one call at a time and in the order the server produced them. The
// subscription lasts until Unsubscribe, until ctx ends, or until the stream
// fails.
func (s *Subscriber) Subscribe(ctx context.Context, q store.Query, onSnapshot func(store.Snapshot)) (*Subscription, error) {
	const op = "live/Subscribe"

	lctx, cancel := context.WithCancel(ctx)
	stream, err := s.store.Subscribe(lctx, q)
	if err != nil {
		cancel()
		return nil, apperr.Transient(op, err)
	}

	sub := &Subscription{
		query:  q,
		stream: stream,
		cancel: cancel,
		log:    s.log.With().Str("collection", q.Collection).Logger(),
		done:   make(chan struct{}),
	}
	sub.log.Debug().Msg("subscription opened")

	go sub.run(lctx, onSnapshot)

	return sub, nil
}

func (sub *Subscription) run(ctx context.Context, onSnapshot func(store.Snapshot)) {
	for {
		snap, err := sub.stream.Next(ctx)
		if err != nil {
			if sub.closed.Load() || ctx.Err() != nil || errors.Is(err, store.ErrStreamClosed) {
				sub.finish(nil)
				return
			}
			sub.log.Error().Err(err).Msg("live query failed")
			sub.finish(apperr.Transient("live/Subscription", err))
			return
		}

		// A snapshot read after Unsubscribe is dropped.
		if sub.closed.Load() {
			sub.finish(nil)
			return
		}
		onSnapshot(snap)
	}
}

// Unsubscribe stops the subscription. It does not wait for a callback that
// is already running: one snapshot that passed the closed check before the
// call may still be delivered, and nothing after it. Owners that must not
// see it guard their state under their own lock, as View does. It is
// idempotent and may be called from inside the callback.
func (sub *Subscription) Unsubscribe() {
	if sub.closed.Swap(true) {
		return
	}
	sub.cancel()
	sub.stream.Stop()
	sub.log.Debug().Msg("subscription closed")
}

// Done is closed when the subscription has ended for any reason.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Err is the stream failure that ended the subscription, or nil. It is only
// meaningful after Done is closed.
func (sub *Subscription) Err() error {
	select {
	case <-sub.done:
		return sub.err
	default:
		return nil
	}
}

func (sub *Subscription) finish(err error) {
	sub.doneOnce.Do(func() {
		sub.err = err
		sub.closed.Store(true)
		sub.cancel()
		sub.stream.Stop()
		close(sub.done)
	})
}

// String names the query for logs.
func (sub *Subscription) String() string {
	return fmt.Sprintf("live(%s)", sub.query.Collection)
}
