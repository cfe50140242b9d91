package domain

import (
	"fmt"
	"strings"
)

// BookStatus is the reading lifecycle state of a book.
type BookStatus string

const (
	StatusWantToRead BookStatus = "want_to_read"
	StatusReading    BookStatus = "reading"
	StatusFinished   BookStatus = "finished"
)

// Statuses lists every valid status in lifecycle order.
func Statuses() []BookStatus {
	return []BookStatus{StatusWantToRead, StatusReading, StatusFinished}
}

// Valid reports whether s is a known status.
func (s BookStatus) Valid() bool {
	switch s {
	case StatusWantToRead, StatusReading, StatusFinished:
		return true
	default:
		return false
	}
}

// ParseStatus accepts the wire form plus the display spellings
// ("Want to Read", "WantToRead", "reading", ...).
func ParseStatus(raw string) (BookStatus, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
	switch key {
	case "wanttoread":
		return StatusWantToRead, nil
	case "reading":
		return StatusReading, nil
	case "finished":
		return StatusFinished, nil
	}
	return "", fmt.Errorf("unknown book status %q", raw)
}
