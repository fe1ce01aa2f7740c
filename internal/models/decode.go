package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/anonto42/career-hub/backend/internal/store"
)

// isoMillis is the layout JavaScript's toISOString produces. Dates written
// by this module use it so records stay interchangeable with web clients.
const isoMillis = "2006-01-02T15:04:05.000Z"

// FormatDate renders t the way the date fields are stored.
func FormatDate(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// SchemaError reports a stored document whose shape does not match its
// collection schema.
type SchemaError struct {
	Collection string
	ID         string
	Field      string
	Reason     string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid %s/%s: field %q %s", e.Collection, e.ID, e.Field, e.Reason)
}

type reader struct {
	coll string
	doc  store.Document
	err  error
}

func newReader(coll string, doc store.Document) *reader {
	return &reader{coll: coll, doc: doc}
}

func (r *reader) fail(field, reason string) {
	if r.err == nil {
		r.err = &SchemaError{Collection: r.coll, ID: r.doc.ID, Field: field, Reason: reason}
	}
}

func (r *reader) str(field string, required bool) string {
	return readString(r, r.doc.Data, field, required)
}

func (r *reader) integer(field string) int {
	return readInt(r, r.doc.Data, field)
}

func (r *reader) time(field string) time.Time {
	return readTime(r, r.doc.Data, field)
}

func readString(r *reader, m map[string]any, field string, required bool) string {
	v, ok := m[field]
	if !ok || v == nil {
		if required {
			r.fail(field, "is missing")
		}
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(field, "is not a string")
		return ""
	}
	if required && strings.TrimSpace(s) == "" {
		r.fail(field, "is empty")
	}
	return s
}

func readInt(r *reader, m map[string]any, field string) int {
	v, ok := m[field]
	if !ok || v == nil {
		return 0
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) {
		r.fail(field, "is not a number")
		return 0
	}
	return int(f)
}

// readTime accepts native timestamps and ISO-8601 strings; a missing value
// is the zero time.
func readTime(r *reader, m map[string]any, field string) time.Time {
	v, ok := m[field]
	if !ok || v == nil {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		if t == "" {
			return time.Time{}
		}
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			r.fail(field, "is not an ISO-8601 date")
			return time.Time{}
		}
		return parsed.UTC()
	}
	r.fail(field, "is not a date")
	return time.Time{}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
