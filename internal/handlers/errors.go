package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/career-hub/backend/internal/apperr"
)

// sharedView is the health surface of a process-wide live view.
type sharedView interface {
	Ready(ctx context.Context) error
	Check() error
}

// serving waits briefly for v's first push and reports, as a 503, a view
// whose query is down. Stale items are never served as current.
func serving(c echo.Context, op string, v sharedView) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), firstSnapshotTimeout)
	defer cancel()

	if err := v.Ready(ctx); err != nil {
		return httpError(apperr.Transient(op, err))
	}
	if err := v.Check(); err != nil {
		return httpError(apperr.Transient(op, err))
	}
	return nil
}

// httpError maps the apperr taxonomy onto status codes.
func httpError(err error) error {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	case errors.Is(err, apperr.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrAuthRequired):
		return echo.NewHTTPError(http.StatusUnauthorized, "Please log in first")
	case errors.Is(err, apperr.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to do this")
	case errors.Is(err, apperr.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	case errors.Is(err, apperr.ErrAlreadyEnrolled):
		return echo.NewHTTPError(http.StatusConflict, "You are already enrolled in this course")
	case errors.Is(err, apperr.ErrTransientStore):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Storage is unavailable, please try again")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func pageParam(c echo.Context) int {
	var page int
	if err := echo.QueryParamsBinder(c).Int("page", &page).BindError(); err != nil || page < 1 {
		return 1
	}
	return page
}
