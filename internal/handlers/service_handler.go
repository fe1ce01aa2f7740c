package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/career-hub/backend/internal/catalog"
)

// ServiceHandler serves the static service catalog.
type ServiceHandler struct {
	catalog *catalog.Catalog
}

// NewServiceHandler creates a new ServiceHandler
func NewServiceHandler(cat *catalog.Catalog) *ServiceHandler {
	return &ServiceHandler{catalog: cat}
}

// RegisterServiceRoutes registers catalog routes
func (h *ServiceHandler) RegisterServiceRoutes(g *echo.Group) {
	g.GET("/services", h.GetServices)
	g.GET("/services/:id", h.GetService)
}

// GetServices lists every service.
func (h *ServiceHandler) GetServices(c echo.Context) error {
	return c.JSON(http.StatusOK, h.catalog.All())
}

// GetService returns one service.
func (h *ServiceHandler) GetService(c echo.Context) error {
	service, err := h.catalog.FindByID(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, service)
}
