package models

import (
	"strings"
	"time"

	"github.com/anonto42/career-hub/backend/internal/store"
)

// CoursesCollection holds the course catalog.
const CoursesCollection = "courses"

// Course is a counselling course.
type Course struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Mentor          string    `json:"mentor"`
	ImageURL        string    `json:"imageUrl"`
	Level           string    `json:"level"`
	Duration        string    `json:"duration"`
	Price           string    `json:"price"`
	Status          string    `json:"status"`
	EnrollmentCount int       `json:"enrollmentCount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// CourseRequest is the body of POST and PUT /courses.
type CourseRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Mentor      string `json:"mentor" validate:"required"`
	ImageURL    string `json:"imageUrl" validate:"required,url"`
	Level       string `json:"level" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
	Duration    string `json:"duration"`
	Price       string `json:"price"`
	Status      string `json:"status" validate:"omitempty,oneof=Open Closed"`
}

// Fields renders the editable part of a course as stored.
func (r CourseRequest) Fields() map[string]any {
	return map[string]any{
		"title":       r.Title,
		"description": r.Description,
		"mentor":      r.Mentor,
		"imageUrl":    r.ImageURL,
		"level":       r.Level,
		"duration":    r.Duration,
		"price":       r.Price,
		"status":      r.Status,
	}
}

// Free reports whether the course costs nothing.
func (c Course) Free() bool {
	return strings.EqualFold(strings.TrimSpace(c.Price), "free")
}

// DecodeCourse validates a courses document.
func DecodeCourse(doc store.Document) (Course, error) {
	r := newReader(CoursesCollection, doc)

	c := Course{
		ID:              doc.ID,
		Title:           r.str("title", true),
		Description:     r.str("description", false),
		Mentor:          r.str("mentor", false),
		ImageURL:        r.str("imageUrl", false),
		Level:           r.str("level", false),
		Duration:        r.str("duration", false),
		Price:           r.str("price", false),
		Status:          r.str("status", false),
		EnrollmentCount: r.integer("enrollmentCount"),
		CreatedAt:       r.time("createdAt"),
		UpdatedAt:       r.time("updatedAt"),
	}
	if r.err != nil {
		return Course{}, r.err
	}
	return c, nil
}

// Mentors lists distinct mentors in first-seen order, led by "All".
func Mentors(courses []Course) []string {
	out := []string{MentorAll}
	seen := make(map[string]struct{}, len(courses))
	for _, c := range courses {
		if _, ok := seen[c.Mentor]; ok {
			continue
		}
		seen[c.Mentor] = struct{}{}
		out = append(out, c.Mentor)
	}
	return out
}

// MentorAll disables the mentor filter.
const MentorAll = "All"

// FilterByMentor keeps the courses of one mentor; "" and "All" keep all.
func FilterByMentor(courses []Course, mentor string) []Course {
	if mentor == "" || mentor == MentorAll {
		return courses
	}
	out := make([]Course, 0, len(courses))
	for _, c := range courses {
		if c.Mentor == mentor {
			out = append(out, c)
		}
	}
	return out
}
