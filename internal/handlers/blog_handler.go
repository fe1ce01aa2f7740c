package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/career-hub/backend/internal/content"
	"github.com/anonto42/career-hub/backend/internal/live"
	"github.com/anonto42/career-hub/backend/internal/middleware"
	"github.com/anonto42/career-hub/backend/internal/models"
	"github.com/anonto42/career-hub/backend/internal/pagination"
	"github.com/anonto42/career-hub/backend/internal/session"
)

// BlogHandler serves blog posts from a shared live view.
type BlogHandler struct {
	gateway  *content.Gateway
	blogs    *live.View[models.Blog]
	sessions *session.Registry
	pageSize int
}

// NewBlogHandler creates a new BlogHandler
func NewBlogHandler(gw *content.Gateway, blogs *live.View[models.Blog], sessions *session.Registry, pageSize int) *BlogHandler {
	return &BlogHandler{
		gateway:  gw,
		blogs:    blogs,
		sessions: sessions,
		pageSize: pageSize,
	}
}

// RegisterBlogRoutes registers the public blog reads.
func (h *BlogHandler) RegisterBlogRoutes(g *echo.Group) {
	g.GET("/blogs", h.GetBlogs)
}

// RegisterBlogAdminRoutes registers the writes; g must require auth.
func (h *BlogHandler) RegisterBlogAdminRoutes(g *echo.Group) {
	g.POST("/blogs", h.CreateBlog)
	g.PUT("/blogs/:id", h.UpdateBlog)
	g.DELETE("/blogs/:id", h.DeleteBlog)
}

// GetBlogs returns one page of posts, newest first.
func (h *BlogHandler) GetBlogs(c echo.Context) error {
	if err := serving(c, "handlers/GetBlogs", h.blogs); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.Paginate(h.blogs.Items(), h.pageSize, pageParam(c)))
}

// CreateBlog publishes a post.
func (h *BlogHandler) CreateBlog(c echo.Context) error {
	var req models.BlogRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	id := middleware.IdentityFrom(c)
	blogID, err := h.gateway.CreateBlog(c.Request().Context(), roleOf(h.sessions, id), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": blogID})
}

// UpdateBlog edits a post.
func (h *BlogHandler) UpdateBlog(c echo.Context) error {
	var req models.BlogRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	who := roleOf(h.sessions, middleware.IdentityFrom(c))
	if err := h.gateway.UpdateBlog(c.Request().Context(), who, c.Param("id"), req); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteBlog removes a post.
func (h *BlogHandler) DeleteBlog(c echo.Context) error {
	who := roleOf(h.sessions, middleware.IdentityFrom(c))
	if err := h.gateway.DeleteBlog(c.Request().Context(), who, c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
