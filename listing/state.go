package listing

// Pagination is the window onto a server-side list.
type Pagination struct {
	// Total is the server's count of matching items, across all pages.
	Total int
	// PageIndex is the zero-based page number.
	PageIndex int
	// PageSize is the number of items per page, always > 0.
	PageSize int
}

// First returns the index of the first item on the page.
func (p Pagination) First() int {
	return p.PageIndex * p.PageSize
}

// Max returns the end index of the page, exclusive. The server takes
// this value directly, not a page size.
func (p Pagination) Max() int {
	return (p.PageIndex + 1) * p.PageSize
}

// State is a snapshot of a list screen. While Loading is true the
// Items and Total still show the previous successful load; stale data
// is never cleared eagerly.
type State[T any] struct {
	Items      []T
	Loading    bool
	Error      string
	Filter     string
	Pagination Pagination
}

// Page is one fetch result.
type Page[T any] struct {
	Items []T
	Total int
}
