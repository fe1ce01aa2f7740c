// Package engagement writes comments, likes and replies on service pages.
//
// By default every like and reply is a read of the whole comment followed by
// a write of the recomputed field. Two clients that both read before either
// writes lose one of the updates; the store keeps whichever write lands
// last. With atomic counters enabled, stores that implement store.Atomic
// apply the change server side instead and nothing is lost.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/anonto42/career-hub/backend/internal/apperr"
	"github.com/anonto42/career-hub/backend/internal/models"
	"github.com/anonto42/career-hub/backend/internal/store"
)

// AnonymousName is shown for authors without a display name.
const AnonymousName = "Anonymous"

// Aggregator applies engagement mutations to the comments collection.
type Aggregator struct {
	store  store.DocumentStore
	atomic store.Atomic
	log    zerolog.Logger
	now    func() time.Time
}

// New creates an Aggregator. atomicCounters only takes effect when st
// implements store.Atomic.
func New(st store.DocumentStore, log zerolog.Logger, atomicCounters bool) *Aggregator {
	a := &Aggregator{
		store: st,
		log:   log.With().Str("component", "engagement").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	if atomicCounters {
		if at, ok := st.(store.Atomic); ok {
			a.atomic = at
		} else {
			a.log.Warn().Msg("store has no atomic updates, falling back to read-modify-write")
		}
	}
	return a
}

// AtomicCounters reports whether likes and replies use server-side updates.
func (a *Aggregator) AtomicCounters() bool {
	return a.atomic != nil
}

// AddComment stores a new comment on serviceID with no likes and no replies.
func (a *Aggregator) AddComment(ctx context.Context, serviceID, text string, author *models.Identity) (models.Comment, error) {
	const op = "engagement/AddComment"

	text = strings.TrimSpace(text)
	if text == "" {
		return models.Comment{}, fmt.Errorf("%s: %w", op, apperr.Required("text"))
	}
	if !author.Authenticated() {
		return models.Comment{}, fmt.Errorf("%s: %w", op, apperr.ErrAuthRequired)
	}
	if strings.TrimSpace(serviceID) == "" {
		return models.Comment{}, fmt.Errorf("%s: %w", op, apperr.Required("serviceId"))
	}

	c := models.Comment{
		ServiceID:  serviceID,
		Text:       text,
		AuthorID:   author.UID,
		AuthorName: displayName(author),
		CreatedAt:  a.now().Truncate(time.Millisecond),
		Likes:      0,
		Replies:    []models.Reply{},
	}

	id, err := a.store.Add(ctx, models.CommentsCollection, c.Fields())
	if err != nil {
		a.log.Error().Err(err).Str("service_id", serviceID).Msg("failed to add comment")
		return models.Comment{}, apperr.Transient(op, err)
	}
	c.ID = id

	a.log.Info().Str("comment_id", id).Str("service_id", serviceID).Msg("comment added")
	return c, nil
}

// ToggleLike adds one like to the comment.
func (a *Aggregator) ToggleLike(ctx context.Context, commentID string) error {
	const op = "engagement/ToggleLike"

	if strings.TrimSpace(commentID) == "" {
		return fmt.Errorf("%s: %w", op, apperr.Required("commentId"))
	}
	path := store.Doc(models.CommentsCollection, commentID)

	if a.atomic != nil {
		if err := a.atomic.Increment(ctx, path, "likes", 1); err != nil {
			return a.fail(op, commentID, err)
		}
		return nil
	}

	c, _, err := a.load(ctx, op, commentID)
	if err != nil {
		return err
	}
	if err := a.store.Update(ctx, path, map[string]any{"likes": c.Likes + 1}); err != nil {
		return a.fail(op, commentID, err)
	}
	return nil
}

// AddReply appends a reply to the comment's replies.
func (a *Aggregator) AddReply(ctx context.Context, commentID, text string, author *models.Identity) (models.Reply, error) {
	const op = "engagement/AddReply"

	text = strings.TrimSpace(text)
	if text == "" {
		return models.Reply{}, fmt.Errorf("%s: %w", op, apperr.Required("text"))
	}
	if !author.Authenticated() {
		return models.Reply{}, fmt.Errorf("%s: %w", op, apperr.ErrAuthRequired)
	}
	if strings.TrimSpace(commentID) == "" {
		return models.Reply{}, fmt.Errorf("%s: %w", op, apperr.Required("commentId"))
	}

	reply := models.Reply{
		Text:       text,
		AuthorID:   author.UID,
		AuthorName: displayName(author),
		CreatedAt:  a.now().Truncate(time.Millisecond),
	}
	path := store.Doc(models.CommentsCollection, commentID)

	if a.atomic != nil {
		if err := a.atomic.ArrayAppend(ctx, path, "replies", reply.Fields()); err != nil {
			return models.Reply{}, a.fail(op, commentID, err)
		}
		return reply, nil
	}

	// The stored entries go back exactly as read, so fields this server
	// does not model survive the rewrite.
	_, doc, err := a.load(ctx, op, commentID)
	if err != nil {
		return models.Reply{}, err
	}
	stored, _ := doc.Data["replies"].([]any)
	replies := make([]any, 0, len(stored)+1)
	replies = append(replies, stored...)
	replies = append(replies, reply.Fields())
	if err := a.store.Update(ctx, path, map[string]any{"replies": replies}); err != nil {
		return models.Reply{}, a.fail(op, commentID, err)
	}
	return reply, nil
}

// load reads a comment and validates it. The raw document is returned
// alongside the decoded one.
func (a *Aggregator) load(ctx context.Context, op, commentID string) (models.Comment, store.Document, error) {
	doc, err := a.store.Get(ctx, store.Doc(models.CommentsCollection, commentID))
	if err != nil {
		return models.Comment{}, store.Document{}, a.fail(op, commentID, err)
	}
	c, err := models.DecodeComment(doc)
	if err != nil {
		return models.Comment{}, store.Document{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, doc, nil
}

func (a *Aggregator) fail(op, commentID string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: comment %s: %w", op, commentID, apperr.ErrNotFound)
	}
	a.log.Error().Err(err).Str("comment_id", commentID).Str("op", op).Msg("engagement write failed")
	return apperr.Transient(op, err)
}

func displayName(id *models.Identity) string {
	if name := strings.TrimSpace(id.DisplayName); name != "" {
		return name
	}
	return AnonymousName
}

// SortComments orders comments newest first for display.
func SortComments(comments []models.Comment) []models.Comment {
	out := append([]models.Comment(nil), comments...)
	models.SortComments(out)
	return out
}
