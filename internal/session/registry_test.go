package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/career-hub/backend/internal/models"
	"github.com/anonto42/career-hub/backend/internal/store"
	"github.com/anonto42/career-hub/backend/internal/store/memory"
)

func TestRegistry_OneSessionPerIdentity(t *testing.T) {
	src := newFakeSource()
	src.roles["boss"] = models.RoleAdmin
	r := NewRegistry(src, 0, zerolog.Nop())
	ctx := testCtx(t)

	a := r.For("boss")
	b := r.For("boss")
	require.Same(t, a, b)

	got, err := a.Wait(ctx)
	require.NoError(t, err)
	require.True(t, got.Privileged())
	require.Equal(t, 1, src.callsFor("boss"))

	r.Drop("boss")
	require.Equal(t, 0, r.Len())
	require.False(t, a.IsPrivileged())

	c := r.For("boss")
	require.NotSame(t, a, c)
	_, err = c.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, src.callsFor("boss"))
}

func TestRegistry_GuestIsNotStored(t *testing.T) {
	r := NewRegistry(newFakeSource(), 0, zerolog.Nop())

	g := r.For("")
	require.False(t, g.IsPrivileged())
	require.Equal(t, 0, r.Len())
}

func (f *fakeSource) setRole(uid string, role models.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.roles[uid] = role
}

func TestRegistry_SignInRefetchesRole(t *testing.T) {
	src := newFakeSource()
	src.roles["boss"] = models.RoleAdmin
	r := NewRegistry(src, 0, zerolog.Nop())
	ctx := testCtx(t)

	first := r.SignIn(&models.Identity{UID: "boss"})
	got, err := first.Wait(ctx)
	require.NoError(t, err)
	require.True(t, got.Privileged())

	src.setRole("boss", models.RoleUser)

	again := r.SignIn(&models.Identity{UID: "boss"})
	require.Same(t, first, again)
	got, err = again.Wait(ctx)
	require.NoError(t, err)
	require.False(t, got.Privileged())
	require.Equal(t, models.RoleUser, got.Role)
	require.Equal(t, 2, src.callsFor("boss"))
	require.Equal(t, 1, r.Len())
}

func TestRegistry_NewerCredentialRefetchesRole(t *testing.T) {
	src := newFakeSource()
	src.roles["boss"] = models.RoleAdmin
	r := NewRegistry(src, 0, zerolog.Nop())
	ctx := testCtx(t)
	signedIn := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

	c := r.Session(&models.Identity{UID: "boss", SignedInAt: signedIn})
	_, err := c.Wait(ctx)
	require.NoError(t, err)

	// Same credential again: served from the cache.
	r.Session(&models.Identity{UID: "boss", SignedInAt: signedIn})
	require.Equal(t, 1, src.callsFor("boss"))

	src.setRole("boss", models.RoleUser)

	c = r.Session(&models.Identity{UID: "boss", SignedInAt: signedIn.Add(time.Minute)})
	got, err := c.Wait(ctx)
	require.NoError(t, err)
	require.False(t, got.Privileged())
	require.Equal(t, 2, src.callsFor("boss"))

	// An older credential never triggers a refetch.
	r.Session(&models.Identity{UID: "boss", SignedInAt: signedIn})
	require.Equal(t, 2, src.callsFor("boss"))
}

func TestRegistry_SweepDropsIdleAndExpired(t *testing.T) {
	src := newFakeSource()
	r := NewRegistry(src, 30*time.Minute, zerolog.Nop())
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	active := r.Session(&models.Identity{UID: "active"})
	short := r.Session(&models.Identity{UID: "short", ExpiresAt: now.Add(5 * time.Minute)})
	require.Equal(t, 2, r.Len())
	require.Zero(t, r.Sweep())

	now = now.Add(6 * time.Minute)
	r.Session(&models.Identity{UID: "active"})

	require.Equal(t, 1, r.Sweep())
	require.Equal(t, 1, r.Len())
	require.Empty(t, short.Current().UserID)
	require.Equal(t, "active", active.Current().UserID)

	now = now.Add(31 * time.Minute)
	require.Equal(t, 1, r.Sweep())
	require.Zero(t, r.Len())
	require.Empty(t, active.Current().UserID)

	// A dropped identity starts over on its next request.
	again := r.Session(&models.Identity{UID: "active"})
	require.NotSame(t, active, again)
	require.Equal(t, 1, r.Len())
}

func TestRegistry_RunSweepsUntilCancelled(t *testing.T) {
	r := NewRegistry(newFakeSource(), time.Millisecond, zerolog.Nop())
	r.For("idle")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStoreRoleSource(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.Set(ctx, store.Doc(models.UsersCollection, "boss"), map[string]any{"role": "admin"}))
	require.NoError(t, st.Set(ctx, store.Doc(models.UsersCollection, "plain"), map[string]any{"name": "x"}))
	require.NoError(t, st.Set(ctx, store.Doc(models.UsersCollection, "broken"), map[string]any{"role": 7}))
	src := NewStoreRoleSource(st)

	role, found, err := src.FetchRole(ctx, "boss")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, models.RoleAdmin, role)

	role, found, err = src.FetchRole(ctx, "plain")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, models.RoleUser, role)

	_, found, err = src.FetchRole(ctx, "nobody")
	require.NoError(t, err)
	require.False(t, found)

	_, _, err = src.FetchRole(ctx, "broken")
	require.Error(t, err)

	// Through the cache a broken record still fails closed.
	c := NewCache(src, zerolog.Nop())
	require.Equal(t, models.RoleUser, c.ResolveRole(ctx, "broken"))
}
