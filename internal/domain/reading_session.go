package domain

import "time"

// ReadingSession is an append-only ledger entry recording one interval of
// pages read. It is written in the same transaction as the book update it
// produced and never changes afterwards.
type ReadingSession struct {
	ID     string `json:"id"`
	BookID string `json:"book_id"`
	UserID string `json:"user_id"`

	StartPage            int    `json:"start_page"`
	EndPage              int    `json:"end_page"`
	PagesReadThisSession int    `json:"pages_read_this_session"`
	Takeaway             string `json:"takeaway,omitempty"`

	// Date is chosen by the user and may be backdated. Ledger order is
	// CreatedAt, not Date.
	Date time.Time `json:"date"`

	// ResultingPagesRead is the book's cumulative pages right after this
	// session was applied. It is a snapshot and is never recomputed.
	ResultingPagesRead int `json:"resulting_pages_read"`

	CreatedAt time.Time `json:"created_at"`
}
