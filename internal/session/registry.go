package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/anonto42/career-hub/backend/internal/models"
)

// DefaultIdleTTL is how long a session survives without requests.
const DefaultIdleTTL = 30 * time.Minute

type member struct {
	cache    *Cache
	signedIn time.Time
	lastSeen time.Time
	expires  time.Time
}

// Registry holds one Cache per authenticated identity seen by the server.
// A new sign-in refetches the role; sessions that go idle or outlive their
// credential are dropped by Sweep.
type Registry struct {
	source RoleSource
	log    zerolog.Logger
	idle   time.Duration
	now    func() time.Time

	mu      sync.Mutex
	members map[string]*member
}

// NewRegistry creates an empty registry. A non-positive idle uses
// DefaultIdleTTL.
func NewRegistry(source RoleSource, idle time.Duration, log zerolog.Logger) *Registry {
	if idle <= 0 {
		idle = DefaultIdleTTL
	}
	return &Registry{
		source:  source,
		log:     log,
		idle:    idle,
		now:     time.Now,
		members: make(map[string]*member),
	}
}

// For returns the session of uid, creating it and starting its role fetch
// on first use. The empty uid gets a fresh guest session.
func (r *Registry) For(uid string) *Cache {
	return r.Session(&models.Identity{UID: uid})
}

// Session returns the session of id. When id carries a sign-in time later
// than the one the session last saw, the cached role is refetched.
func (r *Registry) Session(id *models.Identity) *Cache {
	if !id.Authenticated() {
		return NewCache(r.source, r.log)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[id.UID]
	switch {
	case !ok:
		m = r.join(id.UID, id.SignedInAt)
	case id.SignedInAt.After(m.signedIn):
		r.log.Debug().Str("uid", id.UID).Msg("newer sign-in, refetching role")
		m.signedIn = id.SignedInAt
		m.cache.Refresh()
	}
	r.touch(m, id)
	return m.cache
}

// SignIn records a fresh sign-in of id. An existing session keeps its
// identity but its role is fetched again.
func (r *Registry) SignIn(id *models.Identity) *Cache {
	if !id.Authenticated() {
		return NewCache(r.source, r.log)
	}

	at := r.now()
	if id.SignedInAt.After(at) {
		at = id.SignedInAt
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[id.UID]
	if ok {
		m.signedIn = at
		m.cache.Refresh()
	} else {
		m = r.join(id.UID, at)
	}
	r.touch(m, id)
	return m.cache
}

func (r *Registry) join(uid string, signedIn time.Time) *member {
	c := NewCache(r.source, r.log)
	c.SetIdentity(uid)
	m := &member{cache: c, signedIn: signedIn}
	r.members[uid] = m
	return m
}

func (r *Registry) touch(m *member, id *models.Identity) {
	m.lastSeen = r.now()
	if id.ExpiresAt.After(m.expires) {
		m.expires = id.ExpiresAt
	}
}

// Drop signs uid out. The next For starts over with a fresh fetch.
func (r *Registry) Drop(uid string) {
	r.mu.Lock()
	m, ok := r.members[uid]
	delete(r.members, uid)
	r.mu.Unlock()

	if ok {
		m.cache.SignOut()
	}
}

// Sweep signs out every session idle for longer than the idle TTL or whose
// newest credential has expired. It returns how many were dropped.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	var gone []*Cache
	for uid, m := range r.members {
		idle := now.Sub(m.lastSeen) > r.idle
		expired := !m.expires.IsZero() && now.After(m.expires)
		if idle || expired {
			delete(r.members, uid)
			gone = append(gone, m.cache)
		}
	}
	r.mu.Unlock()

	for _, c := range gone {
		c.SignOut()
	}
	return len(gone)
}

// Run sweeps every interval until ctx ends.
func (r *Registry) Run(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Debug().Int("dropped", n).Int("remaining", r.Len()).Msg("swept sessions")
			}
		}
	}
}

// Len reports how many identities currently hold a session.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.members)
}
