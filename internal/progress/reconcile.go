package progress

import (
	"strconv"
	"time"

	"github.com/pagetrail/pagetrail-server/internal/domain"
)

// BookFields is the progress projection written back to the book.
type BookFields struct {
	PagesRead int
	Status    domain.BookStatus
	UpdatedAt time.Time
}

// Reconciliation is the outcome of applying one session to a snapshot.
type Reconciliation struct {
	Fields  BookFields
	Session domain.ReadingSession
}

// Reconcile applies a validated session to the snapshot. The cumulative
// total is clamped to TotalPages, and the session records the clamped value
// as its ResultingPagesRead. Reconcile never fails.
func Reconcile(snap Snapshot, v ValidatedSession, now time.Time) Reconciliation {
	final := snap.PagesRead + v.SessionPages
	if snap.TotalPages != nil && final > *snap.TotalPages {
		final = *snap.TotalPages
	}

	date := now
	if v.Date != nil {
		date = *v.Date
	}

	return Reconciliation{
		Fields: BookFields{
			PagesRead: final,
			Status:    DeriveStatus(final, snap.TotalPages, snap.Status),
			UpdatedAt: now,
		},
		Session: domain.ReadingSession{
			BookID:               snap.BookID,
			UserID:               snap.OwnerID,
			StartPage:            v.StartPage,
			EndPage:              v.EndPage,
			PagesReadThisSession: v.SessionPages,
			Takeaway:             v.Takeaway,
			Date:                 date,
			ResultingPagesRead:   final,
			CreatedAt:            now,
		},
	}
}

// DeriveStatus computes the status after a session. Finished is terminal for
// session-driven changes, and zero progress keeps the current status.
func DeriveStatus(pagesRead int, totalPages *int, current domain.BookStatus) domain.BookStatus {
	switch {
	case current == domain.StatusFinished:
		return domain.StatusFinished
	case totalPages != nil && pagesRead >= *totalPages:
		return domain.StatusFinished
	case pagesRead > 0:
		return domain.StatusReading
	default:
		return current
	}
}

// NormalizeStatus reconciles a status the user picked while editing with
// the book's actual progress. A complete book is always finished and a
// started one cannot go back to want-to-read.
func NormalizeStatus(requested domain.BookStatus, pagesRead int, totalPages *int) domain.BookStatus {
	switch {
	case totalPages != nil && pagesRead >= *totalPages && *totalPages > 0:
		return domain.StatusFinished
	case requested == domain.StatusFinished:
		return domain.StatusFinished
	case pagesRead > 0:
		return domain.StatusReading
	case requested == "":
		return domain.StatusWantToRead
	default:
		return requested
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
