package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/anonto42/career-hub/backend/internal/apperr"
	"github.com/anonto42/career-hub/backend/internal/catalog"
	"github.com/anonto42/career-hub/backend/internal/engagement"
	"github.com/anonto42/career-hub/backend/internal/live"
	"github.com/anonto42/career-hub/backend/internal/middleware"
	"github.com/anonto42/career-hub/backend/internal/models"
	"github.com/anonto42/career-hub/backend/internal/pagination"
	"github.com/anonto42/career-hub/backend/internal/store"
)

// firstSnapshotTimeout bounds how long a read waits for the first push.
const firstSnapshotTimeout = 5 * time.Second

// CommentHandler serves service comments, likes and replies.
type CommentHandler struct {
	aggregator *engagement.Aggregator
	subscriber *live.Subscriber
	catalog    *catalog.Catalog
	pageSize   int
	log        zerolog.Logger
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(agg *engagement.Aggregator, sub *live.Subscriber, cat *catalog.Catalog, pageSize int, log zerolog.Logger) *CommentHandler {
	return &CommentHandler{
		aggregator: agg,
		subscriber: sub,
		catalog:    cat,
		pageSize:   pageSize,
		log:        log,
	}
}

// RegisterCommentRoutes registers the public comment reads.
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.GET("/services/:id/comments", h.GetComments)
	g.GET("/services/:id/comments/stream", h.StreamComments)
}

// RegisterEngagementRoutes registers the writes; g must require auth.
func (h *CommentHandler) RegisterEngagementRoutes(g *echo.Group) {
	g.POST("/services/:id/comments", h.CreateComment)
	g.POST("/comments/:id/likes", h.LikeComment)
	g.POST("/comments/:id/replies", h.CreateReply)
}

func commentsQuery(serviceID string) store.Query {
	return store.Query{Collection: models.CommentsCollection}.Where("serviceId", serviceID)
}

func newestFirst(a, b models.Comment) bool {
	return a.CreatedAt.After(b.CreatedAt)
}

func (h *CommentHandler) watch(ctx context.Context, serviceID string) (*live.View[models.Comment], error) {
	if _, err := h.catalog.FindByID(serviceID); err != nil {
		return nil, err
	}
	return live.Watch(ctx, h.subscriber, commentsQuery(serviceID), models.DecodeComment, newestFirst)
}

// GetComments returns one page of a service's comments, newest first.
func (h *CommentHandler) GetComments(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), firstSnapshotTimeout)
	defer cancel()

	view, err := h.watch(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	defer view.Close()

	if err := view.Ready(ctx); err != nil {
		return httpError(apperr.Transient("handlers/GetComments", err))
	}

	return c.JSON(http.StatusOK, pagination.Paginate(view.Items(), h.pageSize, pageParam(c)))
}

// StreamComments pushes the requested page of comments as server-sent
// events every time the list changes, until the client goes away. The page
// is pulled back into range when the list shrinks under it.
func (h *CommentHandler) StreamComments(c echo.Context) error {
	ctx := c.Request().Context()
	serviceID := c.Param("id")

	view, err := h.watch(ctx, serviceID)
	if err != nil {
		return httpError(err)
	}
	defer view.Close()

	updates := make(chan []models.Comment, 1)
	stop := view.OnChange(func(items []models.Comment) {
		for {
			select {
			case updates <- items:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer stop()

	readyCtx, cancel := context.WithTimeout(ctx, firstSnapshotTimeout)
	err = view.Ready(readyCtx)
	cancel()
	if err != nil {
		return httpError(apperr.Transient("handlers/StreamComments", err))
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	window := pagination.NewWindow(h.pageSize)
	send := func(items []models.Comment) error {
		window.Resize(len(items))
		data, err := json.Marshal(pagination.Paginate(items, window.PageSize, window.CurrentPage))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: comments\ndata: %s\n\n", data); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	// Items is at least as new as anything queued so far.
	select {
	case <-updates:
	default:
	}
	first := view.Items()
	window.Resize(len(first))
	window.SetPage(pageParam(c))
	if err := send(first); err != nil {
		return nil
	}
	h.log.Debug().Str("service_id", serviceID).Msg("comment stream opened")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-view.Done():
			if err := view.Err(); err != nil {
				h.log.Warn().Err(err).Str("service_id", serviceID).Msg("comment stream ended")
				fmt.Fprint(w, "event: error\ndata: {\"message\":\"stream interrupted\"}\n\n")
				w.Flush()
			}
			return nil
		case items := <-updates:
			if err := send(items); err != nil {
				return nil
			}
		}
	}
}

// CreateComment adds a comment to a service.
func (h *CommentHandler) CreateComment(c echo.Context) error {
	serviceID := c.Param("id")
	if _, err := h.catalog.FindByID(serviceID); err != nil {
		return httpError(err)
	}

	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return httpError(err)
	}

	comment, err := h.aggregator.AddComment(c.Request().Context(), serviceID, req.Text, middleware.IdentityFrom(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, comment)
}

// LikeComment adds one like.
func (h *CommentHandler) LikeComment(c echo.Context) error {
	if err := h.aggregator.ToggleLike(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateReply appends a reply to a comment.
func (h *CommentHandler) CreateReply(c echo.Context) error {
	var req models.CreateReplyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return httpError(err)
	}

	reply, err := h.aggregator.AddReply(c.Request().Context(), c.Param("id"), req.Text, middleware.IdentityFrom(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, reply)
}
