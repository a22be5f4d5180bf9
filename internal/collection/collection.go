// Package collection implements the list state shared by every console tab:
// a full dataset, a case-insensitive search filter over it and fixed-size
// paging over the filter result. The three layers stay consistent through
// every mutation so renderers can read them without further checks.
package collection

import (
	"fmt"
	"strings"
)

// DefaultPageSize is used when a Config does not set a positive Size.
const DefaultPageSize = 10

// Config describes one list kind.
type Config[T any] struct {
	// Size is the number of rows per page.
	Size int

	// Match reports whether an item matches a search term. The term
	// arrives trimmed and lowercased; implementations lowercase the
	// fields they compare. A nil Match disables filtering.
	Match func(item T, term string) bool

	// Prepare normalizes a freshly installed dataset, for example to pin
	// a well-known row to the front. It runs on a private copy and must
	// return the slice to store.
	Prepare func(rows []T) []T
}

// Collection holds the dataset, the active filter and the pager position
// for one list. It is not safe for concurrent use; the console drives it
// from a single event loop.
type Collection[T any] struct {
	cfg      Config[T]
	data     []T
	filtered []T
	term     string
	page     int
}

// New returns an empty collection on its first page.
func New[T any](cfg Config[T]) *Collection[T] {
	if cfg.Size < 1 {
		cfg.Size = DefaultPageSize
	}
	return &Collection[T]{cfg: cfg, page: 1}
}

// Reset installs a fresh dataset and restarts the view: the search term is
// cleared and the pager returns to the first page. Tabs call this when
// they are entered.
func (c *Collection[T]) Reset(rows []T) {
	c.data = c.prepare(rows)
	c.term = ""
	c.filtered = c.data
	c.page = 1
}

// Replace installs a fresh dataset while keeping the current search term.
// The filter is re-applied against the new rows and the page is clamped
// into the new range. Mutations use this so a reload does not throw away
// the operator's position.
func (c *Collection[T]) Replace(rows []T) {
	c.data = c.prepare(rows)
	c.refilter()
	if total := c.totalPages(); c.page > total {
		c.page = total
	}
	if c.page < 1 {
		c.page = 1
	}
}

// Search filters the dataset and returns to the first page. The term is
// trimmed and lowercased before matching; a blank term restores the full
// dataset.
func (c *Collection[T]) Search(term string) {
	c.term = strings.ToLower(strings.TrimSpace(term))
	c.refilter()
	c.page = 1
}

// ChangePage moves the pager by delta pages. Moves that would leave the
// valid range are ignored.
func (c *Collection[T]) ChangePage(delta int) {
	next := c.page + delta
	if next < 1 || next > c.totalPages() {
		return
	}
	c.page = next
}

// VisiblePage returns the filtered rows on the current page.
func (c *Collection[T]) VisiblePage() []T {
	start := (c.page - 1) * c.cfg.Size
	if start >= len(c.filtered) {
		return nil
	}
	end := start + c.cfg.Size
	if end > len(c.filtered) {
		end = len(c.filtered)
	}
	return c.filtered[start:end]
}

// Data returns the full dataset in stored order.
func (c *Collection[T]) Data() []T { return c.data }

// Filtered returns the rows matching the active search term.
func (c *Collection[T]) Filtered() []T { return c.filtered }

// Term returns the active search term as it is matched, trimmed and
// lowercased.
func (c *Collection[T]) Term() string { return c.term }

// Page returns the current page number, counted from one.
func (c *Collection[T]) Page() int { return c.page }

func (c *Collection[T]) prepare(rows []T) []T {
	copied := make([]T, len(rows))
	copy(copied, rows)
	if c.cfg.Prepare != nil {
		copied = c.cfg.Prepare(copied)
	}
	return copied
}

func (c *Collection[T]) refilter() {
	if c.term == "" || c.cfg.Match == nil {
		c.filtered = c.data
		return
	}
	out := make([]T, 0, len(c.data))
	for _, item := range c.data {
		if c.cfg.Match(item, c.term) {
			out = append(out, item)
		}
	}
	c.filtered = out
}

func (c *Collection[T]) totalPages() int {
	pages := (len(c.filtered) + c.cfg.Size - 1) / c.cfg.Size
	if pages < 1 {
		pages = 1
	}
	return pages
}

// Pager is the rendered state of the page controls.
type Pager struct {
	Visible     bool
	Page        int
	TotalPages  int
	PrevEnabled bool
	NextEnabled bool
	Label       string
}

// Pager reports the page control state for the current filter result. The
// controls hide when everything fits on a single page.
func (c *Collection[T]) Pager() Pager {
	total := c.totalPages()
	return Pager{
		Visible:     len(c.filtered) > c.cfg.Size,
		Page:        c.page,
		TotalPages:  total,
		PrevEnabled: c.page > 1,
		NextEnabled: c.page < total,
		Label:       fmt.Sprintf("Page %d / %d", c.page, total),
	}
}
