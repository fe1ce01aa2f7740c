package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anonto42/career-hub/backend/internal/apperr"
	"github.com/anonto42/career-hub/backend/internal/models"
	"github.com/anonto42/career-hub/backend/internal/session"
	"github.com/anonto42/career-hub/backend/internal/store"
)

// CreateCourse adds a course with no enrollments.
func (g *Gateway) CreateCourse(ctx context.Context, who session.RoleReader, req models.CourseRequest) (string, error) {
	const op = "content/CreateCourse"

	if err := authorize(op, who); err != nil {
		return "", err
	}
	req = trimCourse(req)
	if err := g.check(op, req); err != nil {
		return "", err
	}

	now := models.FormatDate(g.now())
	fields := req.Fields()
	fields["enrollmentCount"] = 0
	fields["createdAt"] = now
	fields["updatedAt"] = now

	return g.create(ctx, op, models.CoursesCollection, fields)
}

// UpdateCourse rewrites a course's editable fields.
func (g *Gateway) UpdateCourse(ctx context.Context, who session.RoleReader, id string, req models.CourseRequest) error {
	const op = "content/UpdateCourse"

	if err := authorize(op, who); err != nil {
		return err
	}
	req = trimCourse(req)
	if err := g.check(op, req); err != nil {
		return err
	}

	fields := req.Fields()
	fields["updatedAt"] = models.FormatDate(g.now())
	return g.update(ctx, op, models.CoursesCollection, id, fields)
}

// DeleteCourse removes a course.
func (g *Gateway) DeleteCourse(ctx context.Context, who session.RoleReader, id string) error {
	return g.Delete(ctx, who, models.CoursesCollection, id)
}

// Enroll records that user joined course and adds one to the course's
// stored enrollment count. It returns the enrollment and the count as
// stored afterwards. A user can enroll at most once per course. When the
// count cannot be bumped the enrollment still stands and the count passed
// in comes back unchanged.
func (g *Gateway) Enroll(ctx context.Context, user *models.Identity, course models.Course) (models.Enrollment, int, error) {
	const op = "content/Enroll"

	if !user.Authenticated() {
		return models.Enrollment{}, 0, fmt.Errorf("%s: %w", op, apperr.ErrAuthRequired)
	}
	if strings.TrimSpace(course.ID) == "" {
		return models.Enrollment{}, 0, fmt.Errorf("%s: %w", op, apperr.Required("courseId"))
	}

	path := store.Doc(models.EnrollmentsPath(user.UID), course.ID)
	_, err := g.store.Get(ctx, path)
	switch {
	case err == nil:
		return models.Enrollment{}, 0, fmt.Errorf("%s: course %s: %w", op, course.ID, apperr.ErrAlreadyEnrolled)
	case !errors.Is(err, store.ErrNotFound):
		return models.Enrollment{}, 0, g.fail(op, models.EnrollmentsPath(user.UID), course.ID, err)
	}

	e := models.Enrollment{
		CourseID:   course.ID,
		Title:      course.Title,
		EnrolledAt: g.now().Truncate(time.Millisecond),
		IsFree:     course.Free(),
	}
	if err := g.store.Set(ctx, path, e.Fields()); err != nil {
		return models.Enrollment{}, 0, g.fail(op, models.EnrollmentsPath(user.UID), course.ID, err)
	}

	count, err := g.countEnrollment(ctx, course.ID)
	if err != nil {
		g.log.Warn().Err(err).Str("course_id", course.ID).Msg("enrollment count not updated")
		count = course.EnrollmentCount
	}

	g.log.Info().Str("uid", user.UID).Str("course_id", course.ID).Bool("free", e.IsFree).Int("enrollment_count", count).Msg("enrolled")
	return e, count, nil
}

// countEnrollment adds one to the stored enrollmentCount of a course and
// reads the result back. Stores without atomic updates fall back to a read
// followed by a write, which can lose a concurrent bump.
func (g *Gateway) countEnrollment(ctx context.Context, courseID string) (int, error) {
	path := store.Doc(models.CoursesCollection, courseID)

	if at, ok := g.store.(store.Atomic); ok {
		if err := at.Increment(ctx, path, "enrollmentCount", 1); err != nil {
			return 0, err
		}
	} else {
		doc, err := g.store.Get(ctx, path)
		if err != nil {
			return 0, err
		}
		course, err := models.DecodeCourse(doc)
		if err != nil {
			return 0, err
		}
		if err := g.store.Update(ctx, path, map[string]any{"enrollmentCount": course.EnrollmentCount + 1}); err != nil {
			return 0, err
		}
	}

	doc, err := g.store.Get(ctx, path)
	if err != nil {
		return 0, err
	}
	course, err := models.DecodeCourse(doc)
	if err != nil {
		return 0, err
	}
	return course.EnrollmentCount, nil
}

func trimCourse(req models.CourseRequest) models.CourseRequest {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Mentor = strings.TrimSpace(req.Mentor)
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	return req
}
