package domain

// Book is one tracked title owned by exactly one user.
//
// When TotalPages is set, 0 <= PagesRead <= *TotalPages holds, a book with
// PagesRead == *TotalPages is finished, and a book with PagesRead > 0 that is
// not finished is reading. Every session-driven change goes through the
// progress package, which preserves this.
type Book struct {
	Syncable

	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Category    string `json:"category"`
	ISBN        string `json:"isbn,omitempty"`
	Description string `json:"description,omitempty"`

	// CoverURL is never empty once the book has been persisted.
	CoverURL      string `json:"cover_url"`
	CoverBlurHash string `json:"cover_blur_hash,omitempty"`

	Status     BookStatus `json:"status"`
	TotalPages *int       `json:"total_pages,omitempty"`
	PagesRead  int        `json:"pages_read"`
}

// HasTotal reports whether the book declares a page count.
func (b *Book) HasTotal() bool {
	return b.TotalPages != nil
}

// Total returns the declared page count, or 0 when unknown.
func (b *Book) Total() int {
	if b.TotalPages == nil {
		return 0
	}
	return *b.TotalPages
}

// IsFinished reports whether the book is marked finished.
func (b *Book) IsFinished() bool {
	return b.Status == StatusFinished
}

// Percent returns progress as a whole percentage, or -1 when the length is unknown.
func (b *Book) Percent() int {
	if b.TotalPages == nil || *b.TotalPages == 0 {
		return -1
	}
	return b.PagesRead * 100 / *b.TotalPages
}

// Clone returns a deep copy so callers can mutate without aliasing TotalPages.
func (b *Book) Clone() *Book {
	c := *b
	if b.TotalPages != nil {
		total := *b.TotalPages
		c.TotalPages = &total
	}
	return &c
}

// IntPtr is a small helper for optional page counts.
func IntPtr(v int) *int {
	return &v
}
