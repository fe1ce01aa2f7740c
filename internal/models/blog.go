package models

import (
	"time"

	"github.com/anonto42/career-hub/backend/internal/store"
)

// BlogsCollection holds blog posts, listed by timestamp descending.
const BlogsCollection = "blogs"

// Blog is a markdown blog post.
type Blog struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	AuthorID  string    `json:"uid"`
	Timestamp time.Time `json:"timestamp"`
}

// BlogRequest is the body of POST and PUT /blogs.
type BlogRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required"`
}

// DecodeBlog validates a blogs document.
func DecodeBlog(doc store.Document) (Blog, error) {
	r := newReader(BlogsCollection, doc)

	b := Blog{
		ID:        doc.ID,
		Title:     r.str("title", true),
		Content:   r.str("content", false),
		Author:    r.str("author", false),
		AuthorID:  r.str("uid", false),
		Timestamp: r.time("timestamp"),
	}
	if r.err != nil {
		return Blog{}, r.err
	}
	return b, nil
}
