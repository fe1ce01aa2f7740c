// Package store describes the hosted document database the sync subsystem
// talks to. Backends live in the subpackages.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Get, Update and Delete for a missing document.
	ErrNotFound = errors.New("document not found")
	// ErrStreamClosed is returned by Stream.Next after Stop.
	ErrStreamClosed = errors.New("stream closed")
)

// Direction of a query's sort key.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter is an equality predicate on a single top-level field.
type Filter struct {
	Field string
	Value any
}

// Query selects an ordered view over one collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Direction  Direction
}

// Where returns a copy of q with an extra equality filter.
func (q Query) Where(field string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: value})
	return q
}

// Document is a raw record as the store hands it out.
type Document struct {
	ID   string
	Data map[string]any
}

// Snapshot is the complete ordered result set of a query at one point in
// the server's history.
type Snapshot struct {
	Documents []Document
	ReadTime  time.Time
}

// Stream delivers snapshots of one query in server-causal order.
type Stream interface {
	// Next blocks until the next snapshot is available, ctx is done or the
	// stream is stopped.
	Next(ctx context.Context) (Snapshot, error)
	// Stop releases the stream. It is safe to call more than once.
	Stop()
}

// DocumentStore is the subset of the hosted database used by this module.
type DocumentStore interface {
	Subscribe(ctx context.Context, q Query) (Stream, error)
	Get(ctx context.Context, path string) (Document, error)
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	Set(ctx context.Context, path string, data map[string]any) error
	Update(ctx context.Context, path string, patch map[string]any) error
	Delete(ctx context.Context, path string) error
}

// Atomic is implemented by stores that offer field-level atomic updates.
type Atomic interface {
	Increment(ctx context.Context, path, field string, delta int64) error
	ArrayAppend(ctx context.Context, path, field string, value any) error
}

type sentinel int

// ServerTimestamp may be used as a field value in Add, Set and Update; the
// backend replaces it with its own write time.
const ServerTimestamp sentinel = 1

// Doc joins a collection path and a document id.
func Doc(collection, id string) string {
	return collection + "/" + id
}

// Split breaks a document path into its parent collection and id.
func Split(path string) (collection, id string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
