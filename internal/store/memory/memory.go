// Package memory is an in-process DocumentStore with live push. It backs
// local development (STORE_BACKEND=memory) and the test suites.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anonto42/career-hub/backend/internal/store"
)

type record struct {
	seq  uint64
	data map[string]any
}

// Store keeps collections in maps keyed by collection path. Document paths
// may nest, e.g. users/{uid}/enrollments/{courseId}.
type Store struct {
	mu          sync.Mutex
	seq         uint64
	collections map[string]map[string]*record
	streams     map[string]map[*stream]struct{}
	now         func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]*record),
		streams:     make(map[string]map[*stream]struct{}),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

var (
	_ store.DocumentStore = (*Store)(nil)
	_ store.Atomic        = (*Store)(nil)
)

// Subscribe opens a stream that immediately holds the current result set
// and receives a new snapshot whenever that result set changes.
func (s *Store) Subscribe(_ context.Context, q store.Query) (store.Stream, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("memory/Subscribe: empty collection")
	}

	st := &stream{
		owner:  s,
		query:  q,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streams[q.Collection] == nil {
		s.streams[q.Collection] = make(map[*stream]struct{})
	}
	s.streams[q.Collection][st] = struct{}{}
	st.offer(s.runLocked(q), s.now())

	return st, nil
}

// Get returns a copy of the document at path.
func (s *Store) Get(_ context.Context, path string) (store.Document, error) {
	coll, id := store.Split(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.collections[coll][id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return store.Document{ID: id, Data: cloneMap(rec.data)}, nil
}

// Add stores data under a fresh id.
func (s *Store) Add(_ context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.putLocked(collection, id, s.resolve(data))
	s.notifyLocked(collection)
	return id, nil
}

// Set overwrites (or creates) the document at path.
func (s *Store) Set(_ context.Context, path string, data map[string]any) error {
	coll, id := store.Split(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.putLocked(coll, id, s.resolve(data))
	s.notifyLocked(coll)
	return nil
}

// Update merges patch into an existing document.
func (s *Store) Update(_ context.Context, path string, patch map[string]any) error {
	coll, id := store.Split(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.collections[coll][id]
	if !ok {
		return store.ErrNotFound
	}
	for k, v := range s.resolve(patch) {
		rec.data[k] = v
	}
	s.notifyLocked(coll)
	return nil
}

// Delete removes the document at path.
func (s *Store) Delete(_ context.Context, path string) error {
	coll, id := store.Split(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[coll][id]; !ok {
		return store.ErrNotFound
	}
	delete(s.collections[coll], id)
	s.notifyLocked(coll)
	return nil
}

// Increment adds delta to a numeric field under the store lock.
func (s *Store) Increment(_ context.Context, path, field string, delta int64) error {
	coll, id := store.Split(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.collections[coll][id]
	if !ok {
		return store.ErrNotFound
	}
	cur, _ := toInt64(rec.data[field])
	rec.data[field] = cur + delta
	s.notifyLocked(coll)
	return nil
}

// ArrayAppend appends value to an array field under the store lock.
func (s *Store) ArrayAppend(_ context.Context, path, field string, value any) error {
	coll, id := store.Split(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.collections[coll][id]
	if !ok {
		return store.ErrNotFound
	}
	arr, _ := rec.data[field].([]any)
	rec.data[field] = append(append([]any(nil), arr...), cloneValue(value))
	s.notifyLocked(coll)
	return nil
}

func (s *Store) putLocked(coll, id string, data map[string]any) {
	if s.collections[coll] == nil {
		s.collections[coll] = make(map[string]*record)
	}
	if rec, ok := s.collections[coll][id]; ok {
		rec.data = data
		return
	}
	s.seq++
	s.collections[coll][id] = &record{seq: s.seq, data: data}
}

// resolve deep-copies data and replaces ServerTimestamp sentinels.
func (s *Store) resolve(data map[string]any) map[string]any {
	out := cloneMap(data)
	for k, v := range out {
		if v == store.ServerTimestamp {
			out[k] = s.now()
		}
	}
	return out
}

func (s *Store) notifyLocked(coll string) {
	now := s.now()
	for st := range s.streams[coll] {
		st.offer(s.runLocked(st.query), now)
	}
}

func (s *Store) detach(st *stream) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.streams[st.query.Collection], st)
}

// runLocked evaluates q against the current state. Like Firestore, an
// ordered query leaves out documents that lack the order field.
func (s *Store) runLocked(q store.Query) []store.Document {
	recs := make([]*record, 0, len(s.collections[q.Collection]))
	ids := make(map[*record]string, len(s.collections[q.Collection]))

	for id, rec := range s.collections[q.Collection] {
		if !matches(rec.data, q.Filters) {
			continue
		}
		if q.OrderBy != "" {
			if _, ok := rec.data[q.OrderBy]; !ok {
				continue
			}
		}
		recs = append(recs, rec)
		ids[rec] = id
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compare(recs[i].data[q.OrderBy], recs[j].data[q.OrderBy])
			if c != 0 {
				if q.Direction == store.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return recs[i].seq < recs[j].seq
	})

	docs := make([]store.Document, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, store.Document{ID: ids[rec], Data: cloneMap(rec.data)})
	}
	return docs
}

func matches(data map[string]any, filters []store.Filter) bool {
	for _, f := range filters {
		v, ok := data[f.Field]
		if !ok || compare(v, f.Value) != 0 {
			return false
		}
	}
	return true
}

// compare orders values of the same kind; mismatched kinds order by kind
// name so the result is at least deterministic.
func compare(a, b any) int {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}

	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}

	if reflect.DeepEqual(a, b) {
		return 0
	}
	if ta, tb := fmt.Sprintf("%T", a), fmt.Sprintf("%T", b); ta != tb {
		return strings.Compare(ta, tb)
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	f, ok := toFloat(v)
	return int64(f), ok
}

func cloneDocs(docs []store.Document) []store.Document {
	out := make([]store.Document, len(docs))
	for i, d := range docs {
		out[i] = store.Document{ID: d.ID, Data: cloneMap(d.Data)}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneMap(x[i])
		}
		return out
	}
	return v
}

type stream struct {
	owner *Store
	query store.Query

	mu      sync.Mutex
	queue   []store.Snapshot
	last    []store.Document
	primed  bool
	stopped bool

	notify   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// offer queues docs unless they equal the last queued result set.
func (st *stream) offer(docs []store.Document, at time.Time) {
	st.mu.Lock()
	if st.stopped || (st.primed && reflect.DeepEqual(st.last, docs)) {
		st.mu.Unlock()
		return
	}
	st.primed = true
	st.last = docs
	st.queue = append(st.queue, store.Snapshot{Documents: cloneDocs(docs), ReadTime: at})
	st.mu.Unlock()

	select {
	case st.notify <- struct{}{}:
	default:
	}
}

func (st *stream) Next(ctx context.Context) (store.Snapshot, error) {
	for {
		select {
		case <-st.done:
			return store.Snapshot{}, store.ErrStreamClosed
		default:
		}

		st.mu.Lock()
		if len(st.queue) > 0 {
			snap := st.queue[0]
			st.queue = st.queue[1:]
			st.mu.Unlock()
			return snap, nil
		}
		st.mu.Unlock()

		select {
		case <-st.notify:
		case <-st.done:
			return store.Snapshot{}, store.ErrStreamClosed
		case <-ctx.Done():
			return store.Snapshot{}, ctx.Err()
		}
	}
}

func (st *stream) Stop() {
	st.stopOnce.Do(func() {
		st.mu.Lock()
		st.stopped = true
		st.queue = nil
		st.mu.Unlock()

		close(st.done)
		st.owner.detach(st)
	})
}
