package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/anonto42/career-hub/backend/internal/apperr"
	"github.com/anonto42/career-hub/backend/internal/content"
	"github.com/anonto42/career-hub/backend/internal/live"
	"github.com/anonto42/career-hub/backend/internal/middleware"
	"github.com/anonto42/career-hub/backend/internal/models"
	"github.com/anonto42/career-hub/backend/internal/pagination"
	"github.com/anonto42/career-hub/backend/internal/session"
)

// CourseHandler serves the course catalog from a shared live view.
type CourseHandler struct {
	gateway  *content.Gateway
	courses  *live.View[models.Course]
	sessions *session.Registry
	pageSize int
	log      zerolog.Logger
}

// NewCourseHandler creates a new CourseHandler
func NewCourseHandler(gw *content.Gateway, courses *live.View[models.Course], sessions *session.Registry, pageSize int, log zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		gateway:  gw,
		courses:  courses,
		sessions: sessions,
		pageSize: pageSize,
		log:      log,
	}
}

// RegisterCourseRoutes registers the public course reads.
func (h *CourseHandler) RegisterCourseRoutes(g *echo.Group) {
	g.GET("/courses", h.GetCourses)
}

// RegisterCourseMemberRoutes registers the writes; g must require auth.
func (h *CourseHandler) RegisterCourseMemberRoutes(g *echo.Group) {
	g.POST("/courses", h.CreateCourse)
	g.PUT("/courses/:id", h.UpdateCourse)
	g.DELETE("/courses/:id", h.DeleteCourse)
	g.POST("/courses/:id/enroll", h.Enroll)
}

type coursePage struct {
	pagination.Page[models.Course]
	Mentors []string `json:"mentors"`
	Mentor  string   `json:"mentor"`
}

// GetCourses returns one page of courses, optionally of one mentor.
func (h *CourseHandler) GetCourses(c echo.Context) error {
	if err := serving(c, "handlers/GetCourses", h.courses); err != nil {
		return err
	}
	all := h.courses.Items()

	mentor := c.QueryParam("mentor")
	if mentor == "" {
		mentor = models.MentorAll
	}
	filtered := models.FilterByMentor(all, mentor)

	return c.JSON(http.StatusOK, coursePage{
		Page:    pagination.Paginate(filtered, h.pageSize, pageParam(c)),
		Mentors: models.Mentors(all),
		Mentor:  mentor,
	})
}

// CreateCourse adds a course.
func (h *CourseHandler) CreateCourse(c echo.Context) error {
	var req models.CourseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	who := roleOf(h.sessions, middleware.IdentityFrom(c))
	courseID, err := h.gateway.CreateCourse(c.Request().Context(), who, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": courseID})
}

// UpdateCourse edits a course.
func (h *CourseHandler) UpdateCourse(c echo.Context) error {
	var req models.CourseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	who := roleOf(h.sessions, middleware.IdentityFrom(c))
	if err := h.gateway.UpdateCourse(c.Request().Context(), who, c.Param("id"), req); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteCourse removes a course.
func (h *CourseHandler) DeleteCourse(c echo.Context) error {
	who := roleOf(h.sessions, middleware.IdentityFrom(c))
	if err := h.gateway.DeleteCourse(c.Request().Context(), who, c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Enroll signs the caller up for a course and answers with the stored
// enrollment count. The shared view shows that count only while no newer
// push has landed; the push for the count itself follows.
func (h *CourseHandler) Enroll(c echo.Context) error {
	const op = "handlers/Enroll"
	courseID := c.Param("id")

	if err := serving(c, op, h.courses); err != nil {
		return err
	}
	seen := h.courses.Version()
	course, ok := h.find(courseID)
	if !ok {
		return httpError(fmt.Errorf("%s: course %s: %w", op, courseID, apperr.ErrNotFound))
	}

	enrollment, count, err := h.gateway.Enroll(c.Request().Context(), middleware.IdentityFrom(c), course)
	if err != nil {
		return httpError(err)
	}

	patched := h.courses.PatchIf(seen, func(items []models.Course) []models.Course {
		for i := range items {
			if items[i].ID == courseID {
				items[i].EnrollmentCount = count
			}
		}
		return items
	})
	h.log.Debug().Str("course_id", courseID).Int("enrollment_count", count).Bool("patched", patched).Msg("enrollment recorded")

	return c.JSON(http.StatusCreated, echo.Map{
		"enrollment":      enrollment,
		"enrollmentCount": count,
	})
}

func (h *CourseHandler) find(id string) (models.Course, bool) {
	for _, course := range h.courses.Items() {
		if course.ID == id {
			return course, true
		}
	}
	return models.Course{}, false
}
