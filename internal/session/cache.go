// Package session keeps the role of the signed-in identity. Roles are read
// once per identity change and never block callers on failure: anything
// that goes wrong resolves to the plain user role.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/anonto42/career-hub/backend/internal/models"
)

// DefaultFetchTimeout bounds a single role read.
const DefaultFetchTimeout = 5 * time.Second

// RoleSource reads the role record of a user. found is false when the user
// has no record at all.
type RoleSource interface {
	FetchRole(ctx context.Context, uid string) (role models.Role, found bool, err error)
}

// RoleReader exposes the current cached role without blocking.
type RoleReader interface {
	Current() models.SessionRole
}

// resolution is the role lookup of one identity.
type resolution struct {
	uid  string
	once sync.Once
	done chan struct{}
	role models.Role
}

// Cache memoizes the role of the current identity until it changes.
type Cache struct {
	source  RoleSource
	log     zerolog.Logger
	timeout time.Duration

	mu      sync.RWMutex
	current models.SessionRole
	res     *resolution
}

// NewCache creates a cache for a session that starts signed out.
func NewCache(source RoleSource, log zerolog.Logger) *Cache {
	c := &Cache{
		source:  source,
		log:     log.With().Str("component", "role_cache").Logger(),
		timeout: DefaultFetchTimeout,
	}
	c.res = guest()
	c.current = models.SessionRole{Resolved: true}
	return c
}

func guest() *resolution {
	r := &resolution{done: make(chan struct{}), role: models.RoleNone}
	r.once.Do(func() { close(r.done) })
	return r
}

// SetIdentity handles an auth-state change. The cached role is dropped at
// once and the new identity's role is fetched in the background. Repeating
// the current identity is a no-op.
func (c *Cache) SetIdentity(uid string) {
	res := c.switchTo(uid)
	c.start(res)
}

// Refresh drops the cached role of the current identity and fetches it
// again. It does nothing for a signed-out session.
func (c *Cache) Refresh() {
	c.mu.Lock()
	uid := c.res.uid
	if uid == "" {
		c.mu.Unlock()
		return
	}
	res := &resolution{uid: uid, done: make(chan struct{})}
	c.res = res
	c.current = models.SessionRole{UserID: uid}
	c.mu.Unlock()

	c.start(res)
}

// SignOut tears the session role down.
func (c *Cache) SignOut() {
	c.switchTo("")
}

// ResolveRole returns the role of uid, switching identity first if uid is
// not the current one. It only returns early, with the null role, when ctx
// ends before the fetch does.
func (c *Cache) ResolveRole(ctx context.Context, uid string) models.Role {
	res := c.switchTo(uid)
	c.start(res)

	select {
	case <-res.done:
		return res.role
	case <-ctx.Done():
		c.log.Debug().Str("uid", uid).Err(ctx.Err()).Msg("role resolution abandoned")
		return models.RoleNone
	}
}

// Wait blocks until the current identity's role is resolved.
func (c *Cache) Wait(ctx context.Context) (models.SessionRole, error) {
	c.mu.RLock()
	res := c.res
	c.mu.RUnlock()

	select {
	case <-res.done:
		return c.Current(), nil
	case <-ctx.Done():
		return c.Current(), ctx.Err()
	}
}

// Current returns the session role as of now.
func (c *Cache) Current() models.SessionRole {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.current
}

// IsPrivileged is false for guests and for roles still being fetched.
func (c *Cache) IsPrivileged() bool {
	return c.Current().Privileged()
}

func (c *Cache) switchTo(uid string) *resolution {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.res.uid == uid {
		return c.res
	}

	if uid == "" {
		c.res = guest()
		c.current = models.SessionRole{Resolved: true}
		return c.res
	}

	c.res = &resolution{uid: uid, done: make(chan struct{})}
	c.current = models.SessionRole{UserID: uid}
	return c.res
}

func (c *Cache) start(res *resolution) {
	res.once.Do(func() {
		go c.resolve(res)
	})
}

func (c *Cache) resolve(res *resolution) {
	role := c.fetch(res.uid)

	c.mu.Lock()
	res.role = role
	if c.res == res {
		c.current = models.SessionRole{UserID: res.uid, Role: role, Resolved: true}
	} else {
		c.log.Debug().Str("uid", res.uid).Msg("discarding role of a previous identity")
	}
	c.mu.Unlock()

	close(res.done)
}

func (c *Cache) fetch(uid string) models.Role {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	role, found, err := c.source.FetchRole(ctx, uid)
	switch {
	case err != nil:
		c.log.Warn().Err(err).Str("uid", uid).Msg("failed to fetch user role, using default")
		return models.RoleUser
	case !found, role == models.RoleNone:
		return models.RoleUser
	}
	return role
}
