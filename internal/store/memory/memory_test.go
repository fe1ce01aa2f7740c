package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anonto42/career-hub/backend/internal/store"
)

func nextSnapshot(t *testing.T, st store.Stream) store.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	snap, err := st.Next(ctx)
	require.NoError(t, err)
	return snap
}

func ids(snap store.Snapshot) []string {
	out := make([]string, 0, len(snap.Documents))
	for _, d := range snap.Documents {
		out = append(out, d.ID)
	}
	return out
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Add(ctx, "blogs", map[string]any{"title": "a"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := s.Get(ctx, store.Doc("blogs", id))
	require.NoError(t, err)
	require.Equal(t, "a", doc.Data["title"])

	require.NoError(t, s.Update(ctx, store.Doc("blogs", id), map[string]any{"title": "b"}))
	doc, err = s.Get(ctx, store.Doc("blogs", id))
	require.NoError(t, err)
	require.Equal(t, "b", doc.Data["title"])

	require.NoError(t, s.Delete(ctx, store.Doc("blogs", id)))
	_, err = s.Get(ctx, store.Doc("blogs", id))
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, s.Update(ctx, "blogs/missing", map[string]any{"x": 1}), store.ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, "blogs/missing"), store.ErrNotFound)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "comments/c1", map[string]any{"replies": []any{}}))

	doc, err := s.Get(ctx, "comments/c1")
	require.NoError(t, err)
	doc.Data["replies"] = append(doc.Data["replies"].([]any), "leak")

	again, err := s.Get(ctx, "comments/c1")
	require.NoError(t, err)
	require.Empty(t, again.Data["replies"])
}

func TestStore_ServerTimestamp(t *testing.T) {
	ctx := context.Background()
	s := New()
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	id, err := s.Add(ctx, "blogs", map[string]any{"timestamp": store.ServerTimestamp})
	require.NoError(t, err)

	doc, err := s.Get(ctx, store.Doc("blogs", id))
	require.NoError(t, err)
	require.Equal(t, fixed, doc.Data["timestamp"])
}

func TestStore_SubscribeOrderedAndFiltered(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Set(ctx, "comments/a", map[string]any{"serviceId": "s1", "ts": 1}))
	require.NoError(t, s.Set(ctx, "comments/b", map[string]any{"serviceId": "s2", "ts": 2}))
	require.NoError(t, s.Set(ctx, "comments/c", map[string]any{"serviceId": "s1", "ts": 3}))

	q := store.Query{Collection: "comments", OrderBy: "ts", Direction: store.Desc}.Where("serviceId", "s1")
	st, err := s.Subscribe(ctx, q)
	require.NoError(t, err)
	defer st.Stop()

	require.Equal(t, []string{"c", "a"}, ids(nextSnapshot(t, st)))

	require.NoError(t, s.Set(ctx, "comments/d", map[string]any{"serviceId": "s1", "ts": int64(2)}))
	require.Equal(t, []string{"c", "d", "a"}, ids(nextSnapshot(t, st)))

	require.NoError(t, s.Delete(ctx, "comments/c"))
	require.Equal(t, []string{"d", "a"}, ids(nextSnapshot(t, st)))
}

func TestStore_SubscribeSkipsUnrelatedChanges(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "comments/a", map[string]any{"serviceId": "s1"}))

	st, err := s.Subscribe(ctx, store.Query{Collection: "comments"}.Where("serviceId", "s1"))
	require.NoError(t, err)
	defer st.Stop()
	nextSnapshot(t, st)

	// Not part of the result set: no push.
	require.NoError(t, s.Set(ctx, "comments/b", map[string]any{"serviceId": "s2"}))

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = st.Next(short)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_OrderedQueryOmitsDocsWithoutOrderField(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "blogs/a", map[string]any{"timestamp": 1}))
	require.NoError(t, s.Set(ctx, "blogs/b", map[string]any{"title": "draft"}))

	st, err := s.Subscribe(ctx, store.Query{Collection: "blogs", OrderBy: "timestamp", Direction: store.Desc})
	require.NoError(t, err)
	defer st.Stop()

	require.Equal(t, []string{"a"}, ids(nextSnapshot(t, st)))
}

func TestStore_StopEndsStream(t *testing.T) {
	ctx := context.Background()
	s := New()

	st, err := s.Subscribe(ctx, store.Query{Collection: "blogs"})
	require.NoError(t, err)
	st.Stop()
	st.Stop()

	_, err = st.Next(ctx)
	require.ErrorIs(t, err, store.ErrStreamClosed)

	// Writes after Stop must not panic or block.
	_, err = s.Add(ctx, "blogs", map[string]any{"title": "late"})
	require.NoError(t, err)
}

func TestStore_AtomicUpdates(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "comments/c1", map[string]any{"likes": 0, "replies": []any{}}))

	require.NoError(t, s.Increment(ctx, "comments/c1", "likes", 1))
	require.NoError(t, s.Increment(ctx, "comments/c1", "likes", 1))
	require.NoError(t, s.ArrayAppend(ctx, "comments/c1", "replies", map[string]any{"text": "hi"}))

	doc, err := s.Get(ctx, "comments/c1")
	require.NoError(t, err)
	require.EqualValues(t, 2, doc.Data["likes"])
	require.Len(t, doc.Data["replies"], 1)

	require.ErrorIs(t, s.Increment(ctx, "comments/none", "likes", 1), store.ErrNotFound)
}
