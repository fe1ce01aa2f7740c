package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/career-hub/backend/internal/store"
)

func TestDecodeComment(t *testing.T) {
	when := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		data    map[string]any
		want    Comment
		wantErr string
	}{
		{
			name: "iso date and replies",
			data: map[string]any{
				"serviceId": "1",
				"text":      "great",
				"userName":  "Ann",
				"date":      "2024-03-02T10:00:00.000Z",
				"likes":     int64(3),
				"replies": []any{
					map[string]any{"text": "thanks", "userName": "Bob", "date": "2024-03-02T10:00:00.000Z"},
				},
			},
			want: Comment{
				ID: "c1", ServiceID: "1", Text: "great", AuthorName: "Ann", CreatedAt: when, Likes: 3,
				Replies: []Reply{{Text: "thanks", AuthorName: "Bob", CreatedAt: when}},
			},
		},
		{
			name: "native timestamp, missing engagement fields",
			data: map[string]any{"serviceId": "1", "text": "hi", "date": when},
			want: Comment{ID: "c1", ServiceID: "1", Text: "hi", CreatedAt: when, Replies: []Reply{}},
		},
		{
			name: "negative likes read as zero",
			data: map[string]any{"serviceId": "1", "text": "hi", "likes": float64(-2)},
			want: Comment{ID: "c1", ServiceID: "1", Text: "hi", Replies: []Reply{}},
		},
		{
			name:    "missing text",
			data:    map[string]any{"serviceId": "1"},
			wantErr: `field "text" is missing`,
		},
		{
			name:    "likes not a number",
			data:    map[string]any{"serviceId": "1", "text": "hi", "likes": "many"},
			wantErr: `field "likes" is not a number`,
		},
		{
			name:    "replies not an array",
			data:    map[string]any{"serviceId": "1", "text": "hi", "replies": "none"},
			wantErr: `field "replies" is not an array`,
		},
		{
			name:    "bad date",
			data:    map[string]any{"serviceId": "1", "text": "hi", "date": "yesterday"},
			wantErr: `field "date" is not an ISO-8601 date`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeComment(store.Document{ID: "c1", Data: tc.data})
			if tc.wantErr != "" {
				var se *SchemaError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, CommentsCollection, se.Collection)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCommentFieldsRoundTrip(t *testing.T) {
	c := Comment{
		ServiceID:  "2",
		Text:       "hello",
		AuthorID:   "u1",
		AuthorName: "Ann",
		CreatedAt:  time.Date(2024, 1, 5, 8, 30, 0, 123e6, time.UTC),
		Likes:      4,
		Replies:    []Reply{{Text: "hey", AuthorID: "u2", AuthorName: "Bob", CreatedAt: time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)}},
	}

	got, err := DecodeComment(store.Document{ID: "x", Data: c.Fields()})
	require.NoError(t, err)

	c.ID = "x"
	assert.Equal(t, c, got)
	assert.Equal(t, "2024-01-05T08:30:00.123Z", c.Fields()["date"])
}

func TestSortComments(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	comments := []Comment{
		{ID: "old", CreatedAt: base},
		{ID: "new", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "mid", CreatedAt: base.Add(time.Hour)},
	}

	SortComments(comments)

	assert.Equal(t, "new", comments[0].ID)
	assert.Equal(t, "mid", comments[1].ID)
	assert.Equal(t, "old", comments[2].ID)
}

func TestDecodeBlog(t *testing.T) {
	b, err := DecodeBlog(store.Document{ID: "b1", Data: map[string]any{
		"title":     "Hello",
		"content":   "# md",
		"author":    "Admin",
		"uid":       "u1",
		"timestamp": time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}})
	require.NoError(t, err)
	assert.Equal(t, "Admin", b.Author)
	assert.Equal(t, "u1", b.AuthorID)

	_, err = DecodeBlog(store.Document{ID: "b2", Data: map[string]any{"title": "   "}})
	assert.ErrorContains(t, err, `field "title" is empty`)
}

func TestCourses(t *testing.T) {
	c, err := DecodeCourse(store.Document{ID: "c1", Data: map[string]any{
		"title":           "Resume 101",
		"mentor":          "Rahman",
		"price":           " FREE ",
		"enrollmentCount": float64(7),
	}})
	require.NoError(t, err)
	assert.Equal(t, 7, c.EnrollmentCount)
	assert.True(t, c.Free())
	assert.False(t, Course{Price: "$20"}.Free())

	courses := []Course{{ID: "1", Mentor: "A"}, {ID: "2", Mentor: "B"}, {ID: "3", Mentor: "A"}}
	assert.Equal(t, []string{MentorAll, "A", "B"}, Mentors(courses))
	assert.Len(t, FilterByMentor(courses, "A"), 2)
	assert.Len(t, FilterByMentor(courses, MentorAll), 3)
	assert.Len(t, FilterByMentor(courses, ""), 3)
	assert.Empty(t, FilterByMentor(courses, "C"))
}

func TestRoles(t *testing.T) {
	role, err := DecodeRoleRecord(store.Document{ID: "u1", Data: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, RoleUser, role)

	role, err = DecodeRoleRecord(store.Document{ID: "u1", Data: map[string]any{"role": "admin"}})
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = DecodeRoleRecord(store.Document{ID: "u1", Data: map[string]any{"role": 7}})
	assert.Error(t, err)

	assert.False(t, SessionRole{UserID: "u1", Role: RoleAdmin}.Privileged())
	assert.False(t, SessionRole{Role: RoleAdmin, Resolved: true}.Privileged())
	assert.True(t, SessionRole{UserID: "u1", Role: RoleAdmin, Resolved: true}.Privileged())
	assert.False(t, SessionRole{UserID: "u1", Role: RoleUser, Resolved: true}.Privileged())
}
