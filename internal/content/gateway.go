// Package content gates blog and course mutations behind the caller's
// cached role, and records course enrollments.
//
// The role check here only spares a round trip; the store's own security
// rules still have to reject the same writes.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/anonto42/career-hub/backend/internal/apperr"
	"github.com/anonto42/career-hub/backend/internal/session"
	"github.com/anonto42/career-hub/backend/internal/store"
	"github.com/anonto42/career-hub/backend/internal/validators"
)

// Gateway performs privileged writes.
type Gateway struct {
	store    store.DocumentStore
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

// New creates a Gateway over st.
func New(st store.DocumentStore, log zerolog.Logger) *Gateway {
	return &Gateway{
		store:    st,
		validate: validators.New(),
		log:      log.With().Str("component", "content").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// authorize reads the role the session holds right now.
func authorize(op string, who session.RoleReader) error {
	if who == nil {
		return fmt.Errorf("%s: %w", op, apperr.ErrAuthRequired)
	}
	role := who.Current()
	if role.UserID == "" {
		return fmt.Errorf("%s: %w", op, apperr.ErrAuthRequired)
	}
	if !role.Privileged() {
		return fmt.Errorf("%s: %w", op, apperr.ErrUnauthorized)
	}
	return nil
}

// Create adds record to collection and returns the new id.
func (g *Gateway) Create(ctx context.Context, who session.RoleReader, collection string, record map[string]any) (string, error) {
	const op = "content/Create"

	if err := authorize(op, who); err != nil {
		return "", err
	}
	return g.create(ctx, op, collection, record)
}

// Update applies patch to collection/id.
func (g *Gateway) Update(ctx context.Context, who session.RoleReader, collection, id string, patch map[string]any) error {
	const op = "content/Update"

	if err := authorize(op, who); err != nil {
		return err
	}
	return g.update(ctx, op, collection, id, patch)
}

// Delete removes collection/id.
func (g *Gateway) Delete(ctx context.Context, who session.RoleReader, collection, id string) error {
	const op = "content/Delete"

	if err := authorize(op, who); err != nil {
		return err
	}
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("%s: %w", op, apperr.Required("collection"))
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s: %w", op, apperr.Required("id"))
	}

	if err := g.store.Delete(ctx, store.Doc(collection, id)); err != nil {
		return g.fail(op, collection, id, err)
	}
	g.log.Info().Str("collection", collection).Str("id", id).Msg("document deleted")
	return nil
}

func (g *Gateway) create(ctx context.Context, op, collection string, record map[string]any) (string, error) {
	if strings.TrimSpace(collection) == "" {
		return "", fmt.Errorf("%s: %w", op, apperr.Required("collection"))
	}
	if len(record) == 0 {
		return "", fmt.Errorf("%s: %w", op, apperr.Required("record"))
	}

	id, err := g.store.Add(ctx, collection, record)
	if err != nil {
		return "", g.fail(op, collection, "", err)
	}
	g.log.Info().Str("collection", collection).Str("id", id).Msg("document created")
	return id, nil
}

func (g *Gateway) update(ctx context.Context, op, collection, id string, patch map[string]any) error {
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("%s: %w", op, apperr.Required("collection"))
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s: %w", op, apperr.Required("id"))
	}
	if len(patch) == 0 {
		return fmt.Errorf("%s: %w", op, apperr.Required("patch"))
	}

	if err := g.store.Update(ctx, store.Doc(collection, id), patch); err != nil {
		return g.fail(op, collection, id, err)
	}
	g.log.Info().Str("collection", collection).Str("id", id).Msg("document updated")
	return nil
}

func (g *Gateway) fail(op, collection, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %s/%s: %w", op, collection, id, apperr.ErrNotFound)
	}
	g.log.Error().Err(err).Str("collection", collection).Str("id", id).Str("op", op).Msg("content write failed")
	return apperr.Transient(op, err)
}

func (g *Gateway) check(op string, req any) error {
	if err := validators.Translate(g.validate.Struct(req)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
