// Package firestore adapts a Cloud Firestore client to store.DocumentStore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gfs "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/anonto42/career-hub/backend/internal/store"
)

// Store implements store.DocumentStore and store.Atomic on Firestore.
type Store struct {
	client *gfs.Client
}

// New wraps an initialized Firestore client.
func New(client *gfs.Client) *Store {
	return &Store{client: client}
}

var (
	_ store.DocumentStore = (*Store)(nil)
	_ store.Atomic        = (*Store)(nil)
)

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) doc(path string) (*gfs.DocumentRef, error) {
	ref := s.client.Doc(path)
	if ref == nil {
		return nil, fmt.Errorf("firestore: invalid document path %q", path)
	}
	return ref, nil
}

// Subscribe opens a Firestore snapshot listener on q.
func (s *Store) Subscribe(ctx context.Context, q store.Query) (store.Stream, error) {
	coll := s.client.Collection(q.Collection)
	if coll == nil {
		return nil, fmt.Errorf("firestore: invalid collection path %q", q.Collection)
	}

	query := coll.Query
	for _, f := range q.Filters {
		query = query.Where(f.Field, "==", f.Value)
	}
	if q.OrderBy != "" {
		dir := gfs.Asc
		if q.Direction == store.Desc {
			dir = gfs.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}

	lctx, cancel := context.WithCancel(ctx)
	st := &stream{
		cancel:   cancel,
		out:      make(chan result),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go st.pump(lctx, query.Snapshots(lctx))

	return st, nil
}

// Get reads one document.
func (s *Store) Get(ctx context.Context, path string) (store.Document, error) {
	ref, err := s.doc(path)
	if err != nil {
		return store.Document{}, err
	}

	snap, err := ref.Get(ctx)
	if err != nil {
		return store.Document{}, mapErr(err)
	}
	return store.Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

// Add creates a document with a generated id.
func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	coll := s.client.Collection(collection)
	if coll == nil {
		return "", fmt.Errorf("firestore: invalid collection path %q", collection)
	}

	ref, _, err := coll.Add(ctx, encode(data))
	if err != nil {
		return "", mapErr(err)
	}
	return ref.ID, nil
}

// Set overwrites the whole document.
func (s *Store) Set(ctx context.Context, path string, data map[string]any) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}

	_, err = ref.Set(ctx, encode(data))
	return mapErr(err)
}

// Update writes the given top-level fields of an existing document.
func (s *Store) Update(ctx context.Context, path string, patch map[string]any) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}

	updates := make([]gfs.Update, 0, len(patch))
	for k, v := range encode(patch) {
		updates = append(updates, gfs.Update{Path: k, Value: v})
	}
	_, err = ref.Update(ctx, updates)
	return mapErr(err)
}

// Delete removes an existing document.
func (s *Store) Delete(ctx context.Context, path string) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}

	_, err = ref.Delete(ctx, gfs.Exists)
	return mapErr(err)
}

// Increment applies a server-side numeric increment.
func (s *Store) Increment(ctx context.Context, path, field string, delta int64) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}

	_, err = ref.Update(ctx, []gfs.Update{{Path: field, Value: gfs.Increment(delta)}})
	return mapErr(err)
}

// ArrayAppend uses ArrayUnion, which skips an element equal to one already
// present. Replies carry their own timestamp so duplicates are not expected.
func (s *Store) ArrayAppend(ctx context.Context, path, field string, value any) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}

	_, err = ref.Update(ctx, []gfs.Update{{Path: field, Value: gfs.ArrayUnion(value)}})
	return mapErr(err)
}

func encode(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if v == store.ServerTimestamp {
			out[k] = gfs.ServerTimestamp
			continue
		}
		out[k] = v
	}
	return out
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	return err
}

type result struct {
	snap store.Snapshot
	err  error
}

type stream struct {
	cancel   context.CancelFunc
	out      chan result
	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

// pump owns the iterator; Stop on it is only called from here.
func (st *stream) pump(ctx context.Context, it *gfs.QuerySnapshotIterator) {
	defer close(st.finished)
	defer it.Stop()

	for {
		qs, err := it.Next()
		var r result
		switch {
		case err == nil:
			r.snap, r.err = convert(qs)
		case errors.Is(err, iterator.Done), status.Code(err) == codes.Canceled, ctx.Err() != nil:
			return
		default:
			r.err = err
		}

		select {
		case st.out <- r:
		case <-ctx.Done():
			return
		}
		if r.err != nil {
			return
		}
	}
}

func convert(qs *gfs.QuerySnapshot) (store.Snapshot, error) {
	snaps, err := qs.Documents.GetAll()
	if err != nil {
		return store.Snapshot{}, err
	}

	docs := make([]store.Document, 0, len(snaps))
	for _, ds := range snaps {
		docs = append(docs, store.Document{ID: ds.Ref.ID, Data: ds.Data()})
	}
	return store.Snapshot{Documents: docs, ReadTime: qs.ReadTime}, nil
}

func (st *stream) Next(ctx context.Context) (store.Snapshot, error) {
	select {
	case r := <-st.out:
		return r.snap, r.err
	case <-st.done:
		return store.Snapshot{}, store.ErrStreamClosed
	case <-st.finished:
		return store.Snapshot{}, store.ErrStreamClosed
	case <-ctx.Done():
		return store.Snapshot{}, ctx.Err()
	}
}

func (st *stream) Stop() {
	st.stopOnce.Do(func() {
		close(st.done)
		st.cancel()
	})
}
