package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/career-hub/backend/internal/apperr"
	"github.com/anonto42/career-hub/backend/internal/models"
	"github.com/anonto42/career-hub/backend/internal/session"
	"github.com/anonto42/career-hub/backend/internal/store"
	"github.com/anonto42/career-hub/backend/internal/store/memory"
	"github.com/anonto42/career-hub/backend/internal/store/storetest"
)

type fixedRole models.SessionRole

func (f fixedRole) Current() models.SessionRole { return models.SessionRole(f) }

var (
	admin   = fixedRole{UserID: "u-admin", Role: models.RoleAdmin, Resolved: true}
	member  = fixedRole{UserID: "u-member", Role: models.RoleUser, Resolved: true}
	pending = fixedRole{UserID: "u-admin", Role: models.RoleNone, Resolved: false}
	guest   = fixedRole{}
)

var fixedNow = time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

func newGateway() (*Gateway, *storetest.Recorder) {
	rec := storetest.NewRecorder(memory.New())
	g := New(rec, zerolog.Nop())
	g.now = func() time.Time { return fixedNow }
	return g, rec
}

func validCourse() models.CourseRequest {
	return models.CourseRequest{
		Title:       "Career Planning 101",
		Description: "Find your path",
		Mentor:      "Dr. Rahman",
		ImageURL:    "https://img.test/course.png",
		Level:       "Beginner",
		Price:       "Free",
		Status:      "Open",
	}
}

func TestCreate_NonPrivilegedMakesNoCall(t *testing.T) {
	tests := []struct {
		name    string
		who     session.RoleReader
		wantErr error
	}{
		{name: "plain user", who: member, wantErr: apperr.ErrUnauthorized},
		{name: "role not resolved", who: pending, wantErr: apperr.ErrUnauthorized},
		{name: "guest", who: guest, wantErr: apperr.ErrAuthRequired},
		{name: "no session", who: nil, wantErr: apperr.ErrAuthRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, rec := newGateway()

			_, err := g.Create(context.Background(), tt.who, models.CoursesCollection, validCourse().Fields())
			require.ErrorIs(t, err, tt.wantErr)

			require.ErrorIs(t, g.Update(context.Background(), tt.who, models.CoursesCollection, "c1", map[string]any{"title": "x"}), tt.wantErr)
			require.ErrorIs(t, g.Delete(context.Background(), tt.who, models.CoursesCollection, "c1"), tt.wantErr)

			_, err = g.CreateCourse(context.Background(), tt.who, validCourse())
			require.ErrorIs(t, err, tt.wantErr)
			_, err = g.CreateBlog(context.Background(), tt.who, nil, models.BlogRequest{Title: "t", Content: "c"})
			require.ErrorIs(t, err, tt.wantErr)

			assert.Zero(t, rec.Total())
		})
	}
}

func TestCreate_ReadsRoleAtCallTime(t *testing.T) {
	st := memory.New()
	require.NoError(t, st.Set(context.Background(), store.Doc(models.UsersCollection, "u1"), map[string]any{"role": "admin"}))
	require.NoError(t, st.Set(context.Background(), store.Doc(models.UsersCollection, "u2"), map[string]any{"role": "user"}))

	cache := session.NewCache(session.NewStoreRoleSource(st), zerolog.Nop())
	g := New(st, zerolog.Nop())
	ctx := context.Background()

	cache.SetIdentity("u1")
	_, err := cache.Wait(ctx)
	require.NoError(t, err)
	_, err = g.Create(ctx, cache, models.CoursesCollection, validCourse().Fields())
	require.NoError(t, err)

	cache.SetIdentity("u2")
	_, err = g.Create(ctx, cache, models.CoursesCollection, validCourse().Fields())
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestCreate_Validation(t *testing.T) {
	g, rec := newGateway()

	_, err := g.Create(context.Background(), admin, "", map[string]any{"a": 1})
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = g.Create(context.Background(), admin, models.CoursesCollection, nil)
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.ErrorIs(t, g.Update(context.Background(), admin, models.CoursesCollection, "", map[string]any{"a": 1}), apperr.ErrValidation)

	assert.Zero(t, rec.Total())
}

func TestCRUD_StoreOutcomes(t *testing.T) {
	g, rec := newGateway()
	ctx := context.Background()

	id, err := g.Create(ctx, admin, models.CoursesCollection, validCourse().Fields())
	require.NoError(t, err)

	require.NoError(t, g.Update(ctx, admin, models.CoursesCollection, id, map[string]any{"status": "Closed"}))
	require.ErrorIs(t, g.Update(ctx, admin, models.CoursesCollection, "missing", map[string]any{"status": "Closed"}), apperr.ErrNotFound)

	rec.Fail(storetest.OpDelete, errors.New("network down"))
	require.ErrorIs(t, g.Delete(ctx, admin, models.CoursesCollection, id), apperr.ErrTransientStore)

	rec.Fail(storetest.OpDelete, nil)
	require.NoError(t, g.Delete(ctx, admin, models.CoursesCollection, id))
	require.ErrorIs(t, g.Delete(ctx, admin, models.CoursesCollection, id), apperr.ErrNotFound)
}

func TestCreateBlog(t *testing.T) {
	g, rec := newGateway()
	author := &models.Identity{UID: "u-admin", DisplayName: "Nadia"}

	id, err := g.CreateBlog(context.Background(), admin, author, models.BlogRequest{Title: "  Hello ", Content: "# Body"})
	require.NoError(t, err)

	doc, err := rec.Get(context.Background(), store.Doc(models.BlogsCollection, id))
	require.NoError(t, err)
	blog, err := models.DecodeBlog(doc)
	require.NoError(t, err)

	assert.Equal(t, "Hello", blog.Title)
	assert.Equal(t, "# Body", blog.Content)
	assert.Equal(t, "Nadia", blog.Author)
	assert.Equal(t, "u-admin", blog.AuthorID)
	assert.False(t, blog.Timestamp.IsZero())
}

func TestCreateBlog_RequiresTitleAndContent(t *testing.T) {
	g, rec := newGateway()

	_, err := g.CreateBlog(context.Background(), admin, nil, models.BlogRequest{Title: " ", Content: "c"})
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "title", ve.Field)

	err = g.UpdateBlog(context.Background(), admin, "b1", models.BlogRequest{Title: "t"})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "content", ve.Field)

	assert.Zero(t, rec.Total())
}

func TestUpdateBlog(t *testing.T) {
	g, rec := newGateway()
	id, err := g.CreateBlog(context.Background(), admin, nil, models.BlogRequest{Title: "t", Content: "c"})
	require.NoError(t, err)

	require.NoError(t, g.UpdateBlog(context.Background(), admin, id, models.BlogRequest{Title: "t2", Content: "c2"}))

	doc, err := rec.Get(context.Background(), store.Doc(models.BlogsCollection, id))
	require.NoError(t, err)
	blog, err := models.DecodeBlog(doc)
	require.NoError(t, err)
	assert.Equal(t, "t2", blog.Title)
	assert.Equal(t, anonymous, blog.Author)

	require.NoError(t, g.DeleteBlog(context.Background(), admin, id))
}

func TestCreateCourse(t *testing.T) {
	g, rec := newGateway()

	id, err := g.CreateCourse(context.Background(), admin, validCourse())
	require.NoError(t, err)

	doc, err := rec.Get(context.Background(), store.Doc(models.CoursesCollection, id))
	require.NoError(t, err)
	course, err := models.DecodeCourse(doc)
	require.NoError(t, err)

	assert.Equal(t, "Career Planning 101", course.Title)
	assert.Equal(t, 0, course.EnrollmentCount)
	assert.Equal(t, fixedNow, course.CreatedAt)
	assert.Equal(t, fixedNow, course.UpdatedAt)

	later := fixedNow.Add(time.Hour)
	g.now = func() time.Time { return later }
	req := validCourse()
	req.Status = "Closed"
	require.NoError(t, g.UpdateCourse(context.Background(), admin, id, req))

	doc, err = rec.Get(context.Background(), store.Doc(models.CoursesCollection, id))
	require.NoError(t, err)
	course, err = models.DecodeCourse(doc)
	require.NoError(t, err)
	assert.Equal(t, "Closed", course.Status)
	assert.Equal(t, fixedNow, course.CreatedAt)
	assert.Equal(t, later, course.UpdatedAt)

	require.NoError(t, g.DeleteCourse(context.Background(), admin, id))
}

func TestCreateCourse_RequiredFields(t *testing.T) {
	g, rec := newGateway()

	for _, field := range []string{"title", "description", "mentor", "imageUrl"} {
		req := validCourse()
		switch field {
		case "title":
			req.Title = ""
		case "description":
			req.Description = "  "
		case "mentor":
			req.Mentor = ""
		case "imageUrl":
			req.ImageURL = ""
		}

		_, err := g.CreateCourse(context.Background(), admin, req)
		var ve *apperr.ValidationError
		require.True(t, errors.As(err, &ve), field)
		assert.Equal(t, field, ve.Field)
	}
	assert.Zero(t, rec.Total())
}

func seedCourse(t *testing.T, st store.DocumentStore, id string, enrolled int) models.Course {
	t.Helper()
	path := store.Doc(models.CoursesCollection, id)
	require.NoError(t, st.Set(context.Background(), path, map[string]any{
		"title":           "Career Planning 101",
		"price":           "FREE",
		"enrollmentCount": enrolled,
	}))
	doc, err := st.Get(context.Background(), path)
	require.NoError(t, err)
	course, err := models.DecodeCourse(doc)
	require.NoError(t, err)
	return course
}

func storedCount(t *testing.T, st store.DocumentStore, id string) int {
	t.Helper()
	doc, err := st.Get(context.Background(), store.Doc(models.CoursesCollection, id))
	require.NoError(t, err)
	course, err := models.DecodeCourse(doc)
	require.NoError(t, err)
	return course.EnrollmentCount
}

func TestEnroll(t *testing.T) {
	g, rec := newGateway()
	user := &models.Identity{UID: "u-member"}
	course := seedCourse(t, rec.Inner, "c1", 0)

	e, count, err := g.Enroll(context.Background(), user, course)
	require.NoError(t, err)
	assert.Equal(t, "c1", e.CourseID)
	assert.True(t, e.IsFree)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, storedCount(t, rec.Inner, "c1"))
	assert.Equal(t, 1, rec.Calls(storetest.OpIncrement))

	doc, err := rec.Get(context.Background(), store.Doc(models.EnrollmentsPath("u-member"), "c1"))
	require.NoError(t, err)
	assert.Equal(t, "Career Planning 101", doc.Data["title"])
	assert.Equal(t, "2024-03-02T10:00:00.000Z", doc.Data["enrolledAt"])

	_, _, err = g.Enroll(context.Background(), user, course)
	require.ErrorIs(t, err, apperr.ErrAlreadyEnrolled)
	assert.Equal(t, 1, storedCount(t, rec.Inner, "c1"))

	// The caller's copy of the course is stale; the count comes from the store.
	_, count, err = g.Enroll(context.Background(), &models.Identity{UID: "u-other"}, course)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, storedCount(t, rec.Inner, "c1"))
}

type plainStore struct {
	store.DocumentStore
}

func TestEnroll_CountWithoutAtomicUpdates(t *testing.T) {
	mem := memory.New()
	g := New(plainStore{mem}, zerolog.Nop())
	course := seedCourse(t, mem, "c1", 4)

	_, count, err := g.Enroll(context.Background(), &models.Identity{UID: "u1"}, course)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.Equal(t, 5, storedCount(t, mem, "c1"))
}

func TestEnroll_CountFailureKeepsEnrollment(t *testing.T) {
	g, rec := newGateway()
	course := seedCourse(t, rec.Inner, "c1", 3)
	rec.Fail(storetest.OpIncrement, errors.New("offline"))

	e, count, err := g.Enroll(context.Background(), &models.Identity{UID: "u1"}, course)
	require.NoError(t, err)
	assert.Equal(t, "c1", e.CourseID)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, storedCount(t, rec.Inner, "c1"))

	_, err = rec.Get(context.Background(), store.Doc(models.EnrollmentsPath("u1"), "c1"))
	require.NoError(t, err)
}

func TestEnroll_Failures(t *testing.T) {
	g, rec := newGateway()
	course := models.Course{ID: "c1", Title: "t"}

	_, _, err := g.Enroll(context.Background(), nil, course)
	require.ErrorIs(t, err, apperr.ErrAuthRequired)
	assert.Zero(t, rec.Total())

	rec.Fail(storetest.OpGet, errors.New("offline"))
	_, _, err = g.Enroll(context.Background(), &models.Identity{UID: "u1"}, course)
	require.ErrorIs(t, err, apperr.ErrTransientStore)
	assert.Zero(t, rec.Calls(storetest.OpSet))
}
