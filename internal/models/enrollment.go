package models

import (
	"time"

	"github.com/anonto42/career-hub/backend/internal/store"
)

// EnrollmentsPath is the collection of a user's enrollments.
func EnrollmentsPath(uid string) string {
	return store.Doc(UsersCollection, uid) + "/enrollments"
}

// Enrollment records that a user joined a course.
type Enrollment struct {
	CourseID   string    `json:"courseId"`
	Title      string    `json:"title"`
	EnrolledAt time.Time `json:"enrolledAt"`
	IsFree     bool      `json:"isFree"`
}

// Fields renders the enrollment as stored.
func (e Enrollment) Fields() map[string]any {
	return map[string]any{
		"courseId":   e.CourseID,
		"title":      e.Title,
		"enrolledAt": FormatDate(e.EnrolledAt),
		"isFree":     e.IsFree,
	}
}
