// Package pagination slices a fully materialized ordered list into pages.
package pagination

// Default page sizes of the listing endpoints.
const (
	BlogPageSize    = 5
	CoursePageSize  = 6
	CommentPageSize = 10
)

// Page is one slice of a list together with the clamped window it came from.
type Page[T any] struct {
	Items       []T `json:"items"`
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	PageSize    int `json:"pageSize"`
	Total       int `json:"total"`
}

// TotalPages is ceil(n/size), never less than 1. A size below 1 counts as 1.
func TotalPages(n, size int) int {
	if size < 1 {
		size = 1
	}
	if n <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

// Clamp moves page into [1, totalPages].
func Clamp(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	switch {
	case page < 1:
		return 1
	case page > totalPages:
		return totalPages
	}
	return page
}

// Paginate returns the requested page of items. Out of range pages are
// clamped, never rejected. The result shares no memory with items.
func Paginate[T any](items []T, pageSize, currentPage int) Page[T] {
	if pageSize < 1 {
		pageSize = 1
	}
	total := TotalPages(len(items), pageSize)
	page := Clamp(currentPage, total)

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}

	out := make([]T, 0, end-start)
	if start < end {
		out = append(out, items[start:end]...)
	}
	return Page[T]{
		Items:       out,
		CurrentPage: page,
		TotalPages:  total,
		PageSize:    pageSize,
		Total:       len(items),
	}
}

// Window tracks the page a reader is on while the list under it changes.
type Window struct {
	PageSize    int
	CurrentPage int
	TotalPages  int
}

// NewWindow starts on page 1 of an empty list.
func NewWindow(pageSize int) Window {
	if pageSize < 1 {
		pageSize = 1
	}
	return Window{PageSize: pageSize, CurrentPage: 1, TotalPages: 1}
}

// Resize recomputes the window for a list of n items, pulling the current
// page back into range when the list shrank.
func (w *Window) Resize(n int) {
	if w.PageSize < 1 {
		w.PageSize = 1
	}
	w.TotalPages = TotalPages(n, w.PageSize)
	w.CurrentPage = Clamp(w.CurrentPage, w.TotalPages)
}

// SetPage moves to page, clamped.
func (w *Window) SetPage(page int) {
	w.CurrentPage = Clamp(page, w.TotalPages)
}
