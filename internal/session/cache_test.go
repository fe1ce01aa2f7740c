package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/career-hub/backend/internal/models"
)

type fakeSource struct {
	mu    sync.Mutex
	roles map[string]models.Role
	errs  map[string]error
	gates map[string]chan struct{}
	calls map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		roles: map[string]models.Role{},
		errs:  map[string]error{},
		gates: map[string]chan struct{}{},
		calls: map[string]int{},
	}
}

func (f *fakeSource) FetchRole(ctx context.Context, uid string) (models.Role, bool, error) {
	f.mu.Lock()
	f.calls[uid]++
	gate := f.gates[uid]
	role, found := f.roles[uid]
	err := f.errs[uid]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.RoleNone, false, ctx.Err()
		}
	}
	return role, found, err
}

func (f *fakeSource) callsFor(uid string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[uid]
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestResolveRole_MissingRecordIsUser(t *testing.T) {
	src := newFakeSource()
	c := NewCache(src, zerolog.Nop())

	role := c.ResolveRole(testCtx(t), "u1")

	require.Equal(t, models.RoleUser, role)
	require.Equal(t, models.SessionRole{UserID: "u1", Role: models.RoleUser, Resolved: true}, c.Current())
	require.False(t, c.IsPrivileged())
}

func TestResolveRole_Admin(t *testing.T) {
	src := newFakeSource()
	src.roles["boss"] = models.RoleAdmin
	c := NewCache(src, zerolog.Nop())

	require.Equal(t, models.RoleAdmin, c.ResolveRole(testCtx(t), "boss"))
	require.True(t, c.IsPrivileged())
}

func TestResolveRole_ReadFailureFailsClosed(t *testing.T) {
	src := newFakeSource()
	src.roles["boss"] = models.RoleAdmin
	src.errs["boss"] = errors.New("unavailable")
	c := NewCache(src, zerolog.Nop())

	require.Equal(t, models.RoleUser, c.ResolveRole(testCtx(t), "boss"))
	require.False(t, c.IsPrivileged())
}

func TestResolveRole_GuestNeedsNoRead(t *testing.T) {
	src := newFakeSource()
	c := NewCache(src, zerolog.Nop())

	require.Equal(t, models.RoleNone, c.ResolveRole(testCtx(t), ""))
	require.Equal(t, 0, src.callsFor(""))
	require.False(t, c.IsPrivileged())
}

func TestResolveRole_MemoizedPerIdentity(t *testing.T) {
	src := newFakeSource()
	src.roles["boss"] = models.RoleAdmin
	c := NewCache(src, zerolog.Nop())
	ctx := testCtx(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, models.RoleAdmin, c.ResolveRole(ctx, "boss"))
		}()
	}
	wg.Wait()
	c.ResolveRole(ctx, "boss")

	require.Equal(t, 1, src.callsFor("boss"))
}

func TestSetIdentity_InvalidatesImmediately(t *testing.T) {
	src := newFakeSource()
	src.roles["boss"] = models.RoleAdmin
	src.gates["other"] = make(chan struct{})
	c := NewCache(src, zerolog.Nop())
	ctx := testCtx(t)

	require.Equal(t, models.RoleAdmin, c.ResolveRole(ctx, "boss"))

	c.SetIdentity("other")
	cur := c.Current()
	require.Equal(t, "other", cur.UserID)
	require.False(t, cur.Resolved)
	require.False(t, c.IsPrivileged())

	close(src.gates["other"])
	got, err := c.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, models.SessionRole{UserID: "other", Role: models.RoleUser, Resolved: true}, got)
}

func TestSetIdentity_StaleFetchIsDiscarded(t *testing.T) {
	src := newFakeSource()
	src.roles["slow-admin"] = models.RoleAdmin
	src.gates["slow-admin"] = make(chan struct{})
	c := NewCache(src, zerolog.Nop())
	ctx := testCtx(t)

	c.SetIdentity("slow-admin")
	c.SetIdentity("fast-user")
	_, err := c.Wait(ctx)
	require.NoError(t, err)

	close(src.gates["slow-admin"])
	// Give the stale fetch time to land.
	require.Eventually(t, func() bool { return src.callsFor("slow-admin") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	require.Equal(t, models.SessionRole{UserID: "fast-user", Role: models.RoleUser, Resolved: true}, c.Current())
	require.False(t, c.IsPrivileged())
}

func TestSignOut(t *testing.T) {
	src := newFakeSource()
	src.roles["boss"] = models.RoleAdmin
	c := NewCache(src, zerolog.Nop())
	ctx := testCtx(t)
	c.ResolveRole(ctx, "boss")

	c.SignOut()

	require.Equal(t, models.SessionRole{Resolved: true}, c.Current())
	require.False(t, c.IsPrivileged())

	// Signing back in reads the record again.
	require.Equal(t, models.RoleAdmin, c.ResolveRole(ctx, "boss"))
	require.Equal(t, 2, src.callsFor("boss"))
}

func TestResolveRole_ContextEndsFirst(t *testing.T) {
	src := newFakeSource()
	src.roles["boss"] = models.RoleAdmin
	src.gates["boss"] = make(chan struct{})
	defer close(src.gates["boss"])
	c := NewCache(src, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Equal(t, models.RoleNone, c.ResolveRole(ctx, "boss"))
	require.False(t, c.IsPrivileged())
}

func TestRefresh_RefetchesCurrentIdentity(t *testing.T) {
	src := newFakeSource()
	src.roles["boss"] = models.RoleAdmin
	c := NewCache(src, zerolog.Nop())
	ctx := testCtx(t)

	require.Equal(t, models.RoleAdmin, c.ResolveRole(ctx, "boss"))

	src.mu.Lock()
	src.roles["boss"] = models.RoleUser
	gate := make(chan struct{})
	src.gates["boss"] = gate
	src.mu.Unlock()

	c.Refresh()
	assert.Equal(t, models.SessionRole{UserID: "boss"}, c.Current())
	assert.False(t, c.IsPrivileged())

	close(gate)
	got, err := c.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SessionRole{UserID: "boss", Role: models.RoleUser, Resolved: true}, got)
	assert.Equal(t, 2, src.callsFor("boss"))
}

func TestRefresh_SignedOutIsNoop(t *testing.T) {
	src := newFakeSource()
	c := NewCache(src, zerolog.Nop())

	c.Refresh()

	assert.Equal(t, models.SessionRole{Resolved: true}, c.Current())
	assert.Empty(t, src.calls)
}
