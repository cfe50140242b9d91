// Package progress turns reading-session submissions into consistent book
// progress: validation, reconciliation and the atomic commit of both.
//
// Validate and Reconcile are pure. Commit is the only step that touches the
// store, and it writes the session and the book update in one transaction.
package progress

import (
	"time"

	"github.com/pagetrail/pagetrail-server/internal/domain"
)

// Snapshot is the slice of a book the pipeline reads.
type Snapshot struct {
	BookID     string
	OwnerID    string
	Status     domain.BookStatus
	TotalPages *int
	PagesRead  int
	Revision   int64
}

// SnapshotOf captures the progress fields of book.
func SnapshotOf(book *domain.Book) Snapshot {
	snap := Snapshot{
		BookID:    book.ID,
		OwnerID:   book.UserID,
		Status:    book.Status,
		PagesRead: book.PagesRead,
		Revision:  book.Revision,
	}
	if book.TotalPages != nil {
		total := *book.TotalPages
		snap.TotalPages = &total
	}
	return snap
}

// Finished reports whether the snapshot is at or past its declared length.
func (s Snapshot) Finished() bool {
	return s.TotalPages != nil && s.PagesRead >= *s.TotalPages
}

// SessionInput is a raw session submission. Nil pages count as missing.
type SessionInput struct {
	StartPage *int
	EndPage   *int
	Takeaway  string
	// Date is optional; the commit time is used when nil.
	Date *time.Time
}

// ValidatedSession is a submission that passed every rule in Validate.
type ValidatedSession struct {
	StartPage    int
	EndPage      int
	SessionPages int
	Takeaway     string
	Date         *time.Time
}
