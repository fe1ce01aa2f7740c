package content

import (
	"context"
	"strings"

	"github.com/anonto42/career-hub/backend/internal/models"
	"github.com/anonto42/career-hub/backend/internal/session"
	"github.com/anonto42/career-hub/backend/internal/store"
)

const anonymous = "Anonymous"

// CreateBlog publishes a post signed by author and stamped by the store.
func (g *Gateway) CreateBlog(ctx context.Context, who session.RoleReader, author *models.Identity, req models.BlogRequest) (string, error) {
	const op = "content/CreateBlog"

	if err := authorize(op, who); err != nil {
		return "", err
	}
	req = trimBlog(req)
	if err := g.check(op, req); err != nil {
		return "", err
	}

	name, uid := anonymous, ""
	if author != nil {
		uid = author.UID
		if n := strings.TrimSpace(author.DisplayName); n != "" {
			name = n
		}
	}

	return g.create(ctx, op, models.BlogsCollection, map[string]any{
		"title":     req.Title,
		"content":   req.Content,
		"author":    name,
		"uid":       uid,
		"timestamp": store.ServerTimestamp,
	})
}

// UpdateBlog rewrites a post's title and content.
func (g *Gateway) UpdateBlog(ctx context.Context, who session.RoleReader, id string, req models.BlogRequest) error {
	const op = "content/UpdateBlog"

	if err := authorize(op, who); err != nil {
		return err
	}
	req = trimBlog(req)
	if err := g.check(op, req); err != nil {
		return err
	}

	return g.update(ctx, op, models.BlogsCollection, id, map[string]any{
		"title":   req.Title,
		"content": req.Content,
	})
}

// DeleteBlog removes a post.
func (g *Gateway) DeleteBlog(ctx context.Context, who session.RoleReader, id string) error {
	return g.Delete(ctx, who, models.BlogsCollection, id)
}

func trimBlog(req models.BlogRequest) models.BlogRequest {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	return req
}
