// Package projection derives the book views clients display: filtered and
// sorted lists, recomputed whenever the owner's collection changes.
package projection

import (
	"cmp"
	"slices"
	"strings"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	"github.com/pagetrail/pagetrail-server/internal/normalize"
)

// All is the sentinel that disables a category or status filter.
const All = "All"

// Query selects a subset of books. Empty fields match everything.
type Query struct {
	Search   string
	Category string
	Status   string
}

// Order names a list ordering.
type Order string

const (
	OrderUpdatedDesc Order = "updated_desc"
	OrderTitleAsc    Order = "title_asc"
)

// ParseOrder maps a query value to an Order, defaulting to updated_desc.
func ParseOrder(raw string) Order {
	if Order(strings.ToLower(strings.TrimSpace(raw))) == OrderTitleAsc {
		return OrderTitleAsc
	}
	return OrderUpdatedDesc
}

func bypass(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || normalize.EqualFold(v, All)
}

// Filter returns the books matching q, preserving input order. Search is a
// case-insensitive substring match on title or author; category and status
// must match exactly (status also accepts display spellings).
func Filter(books []domain.Book, q Query) []domain.Book {
	search := strings.TrimSpace(q.Search)
	category := strings.TrimSpace(q.Category)

	var status domain.BookStatus
	if !bypass(q.Status) {
		parsed, err := domain.ParseStatus(q.Status)
		if err != nil {
			return []domain.Book{}
		}
		status = parsed
	}

	out := make([]domain.Book, 0, len(books))
	for _, b := range books {
		if search != "" && !normalize.ContainsFold(b.Title, search) && !normalize.ContainsFold(b.Author, search) {
			continue
		}
		if !bypass(category) && b.Category != category {
			continue
		}
		if status != "" && b.Status != status {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Sort orders books in place.
func Sort(books []domain.Book, order Order) {
	byUpdated := func(a, b domain.Book) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}

	switch order {
	case OrderTitleAsc:
		slices.SortStableFunc(books, func(a, b domain.Book) int {
			if c := cmp.Compare(normalize.Fold(a.Title), normalize.Fold(b.Title)); c != 0 {
				return c
			}
			return byUpdated(a, b)
		})
	default:
		slices.SortStableFunc(books, byUpdated)
	}
}

// Categories returns the distinct non-empty categories, sorted.
func Categories(books []domain.Book) []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range books {
		if b.Category == "" || seen[b.Category] {
			continue
		}
		seen[b.Category] = true
		out = append(out, b.Category)
	}
	slices.SortFunc(out, func(a, b string) int {
		return cmp.Compare(normalize.Fold(a), normalize.Fold(b))
	})
	if out == nil {
		out = []string{}
	}
	return out
}

// Apply filters and sorts a copy of books.
func Apply(books []domain.Book, q Query, order Order) []domain.Book {
	out := Filter(books, q)
	Sort(out, order)
	return out
}
