package models

import (
	"sort"
	"time"

	"github.com/anonto42/career-hub/backend/internal/store"
)

// CommentsCollection holds service comments.
const CommentsCollection = "comments"

// Reply lives only inside its comment's replies array.
type Reply struct {
	Text       string    `json:"text"`
	AuthorID   string    `json:"userId"`
	AuthorName string    `json:"userName"`
	CreatedAt  time.Time `json:"date"`
}

// Comment is a service comment with its embedded engagement data.
type Comment struct {
	ID         string    `json:"id"`
	ServiceID  string    `json:"serviceId"`
	Text       string    `json:"text"`
	AuthorID   string    `json:"userId"`
	AuthorName string    `json:"userName"`
	CreatedAt  time.Time `json:"date"`
	Likes      int       `json:"likes"`
	Replies    []Reply   `json:"replies"`
}

// CreateCommentRequest is the body of POST /services/:id/comments.
type CreateCommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// CreateReplyRequest is the body of POST /comments/:id/replies.
type CreateReplyRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// Fields renders the reply as stored.
func (r Reply) Fields() map[string]any {
	return map[string]any{
		"text":     r.Text,
		"userName": r.AuthorName,
		"userId":   r.AuthorID,
		"date":     FormatDate(r.CreatedAt),
	}
}

// Fields renders the comment as stored, without its id.
func (c Comment) Fields() map[string]any {
	return map[string]any{
		"serviceId": c.ServiceID,
		"text":      c.Text,
		"date":      FormatDate(c.CreatedAt),
		"userId":    c.AuthorID,
		"userName":  c.AuthorName,
		"likes":     c.Likes,
		"replies":   ReplyFields(c.Replies),
	}
}

// ReplyFields renders replies as the stored array.
func ReplyFields(replies []Reply) []any {
	out := make([]any, 0, len(replies))
	for _, r := range replies {
		out = append(out, r.Fields())
	}
	return out
}

// DecodeComment validates a comments document. Missing likes and replies
// read as zero and empty, and a negative like count reads as zero.
func DecodeComment(doc store.Document) (Comment, error) {
	r := newReader(CommentsCollection, doc)

	c := Comment{
		ID:         doc.ID,
		ServiceID:  r.str("serviceId", true),
		Text:       r.str("text", true),
		AuthorID:   r.str("userId", false),
		AuthorName: r.str("userName", false),
		CreatedAt:  r.time("date"),
		Likes:      r.integer("likes"),
		Replies:    []Reply{},
	}
	if c.Likes < 0 {
		c.Likes = 0
	}

	switch raw := doc.Data["replies"].(type) {
	case nil:
	case []any:
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				r.fail("replies", "holds a non-object element")
				break
			}
			c.Replies = append(c.Replies, Reply{
				Text:       readString(r, m, "text", false),
				AuthorID:   readString(r, m, "userId", false),
				AuthorName: readString(r, m, "userName", false),
				CreatedAt:  readTime(r, m, "date"),
			})
		}
	default:
		r.fail("replies", "is not an array")
	}

	if r.err != nil {
		return Comment{}, r.err
	}
	return c, nil
}

// SortComments orders newest first. Replies keep their stored order.
func SortComments(comments []Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
}
