package domain

import "time"

// Syncable holds the identity and bookkeeping fields shared by every mutable
// record that clients watch through the live feed.
type Syncable struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// Revision increases by one on every persisted write. Commits carry the
	// revision they read so a stale snapshot is detected instead of applied.
	Revision int64 `json:"revision"`
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
func (s *Syncable) InitTimestamps(now time.Time) {
	s.CreatedAt = now
	s.UpdatedAt = now
}

// Touch records a mutation at the given time and bumps the revision.
func (s *Syncable) Touch(now time.Time) {
	s.UpdatedAt = now
	s.Revision++
}
