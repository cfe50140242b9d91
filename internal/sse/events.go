// Package sse implements Server-Sent Events for pushing per-user library
// changes to connected clients.
package sse

import (
	"time"

	"github.com/pagetrail/pagetrail-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventBookCreated is emitted after a book is added.
	EventBookCreated EventType = "book.created"
	// EventBookUpdated is emitted after book metadata, cover or progress changes.
	EventBookUpdated EventType = "book.updated"
	// EventBookDeleted is emitted after a book and its sessions are removed.
	EventBookDeleted EventType = "book.deleted"

	// EventSessionCreated is emitted after a reading session commit.
	EventSessionCreated EventType = "session.created"

	// EventBooksSnapshot carries the full, filtered book collection.
	EventBooksSnapshot EventType = "books.snapshot"

	// EventConnected is the first frame on every stream.
	EventConnected EventType = "connected"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// UserID scopes delivery to one tenant. Empty means every client.
	UserID string `json:"-"`
}

// IsBookChange reports whether the event alters an owner's book collection.
func (e Event) IsBookChange() bool {
	switch e.Type {
	case EventBookCreated, EventBookUpdated, EventBookDeleted, EventSessionCreated:
		return true
	default:
		return false
	}
}

// BookEventData is the data payload for book create/update events.
type BookEventData struct {
	Book *domain.Book `json:"book"`
}

// BookDeletedEventData is the data payload for book delete events.
type BookDeletedEventData struct {
	DeletedAt time.Time `json:"deleted_at"`
	BookID    string    `json:"book_id"`
}

// SessionEventData is the data payload for session events.
type SessionEventData struct {
	Session *domain.ReadingSession `json:"session"`
}

// BooksSnapshotData is the full projection pushed to feed subscribers.
type BooksSnapshotData struct {
	Books []domain.Book `json:"books"`
	Total int           `json:"total"`
}

// ConnectedEventData is sent once when a stream opens.
type ConnectedEventData struct {
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewBookCreatedEvent creates a book.created event scoped to the owner.
func NewBookCreatedEvent(book *domain.Book) Event {
	return Event{
		Type:      EventBookCreated,
		Data:      BookEventData{Book: book},
		Timestamp: time.Now(),
		UserID:    book.UserID,
	}
}

// NewBookUpdatedEvent creates a book.updated event scoped to the owner.
func NewBookUpdatedEvent(book *domain.Book) Event {
	return Event{
		Type:      EventBookUpdated,
		Data:      BookEventData{Book: book},
		Timestamp: time.Now(),
		UserID:    book.UserID,
	}
}

// NewBookDeletedEvent creates a book.deleted event scoped to the owner.
func NewBookDeletedEvent(ownerID, bookID string) Event {
	now := time.Now()
	return Event{
		Type: EventBookDeleted,
		Data: BookDeletedEventData{
			BookID:    bookID,
			DeletedAt: now,
		},
		Timestamp: now,
		UserID:    ownerID,
	}
}

// NewSessionCreatedEvent creates a session.created event scoped to the owner.
func NewSessionCreatedEvent(session *domain.ReadingSession) Event {
	return Event{
		Type:      EventSessionCreated,
		Data:      SessionEventData{Session: session},
		Timestamp: time.Now(),
		UserID:    session.UserID,
	}
}

// NewBooksSnapshotEvent wraps a projected collection for streaming.
func NewBooksSnapshotEvent(ownerID string, books []domain.Book, total int) Event {
	if books == nil {
		books = []domain.Book{}
	}
	return Event{
		Type:      EventBooksSnapshot,
		Data:      BooksSnapshotData{Books: books, Total: total},
		Timestamp: time.Now(),
		UserID:    ownerID,
	}
}

// NewConnectedEvent creates the stream greeting.
func NewConnectedEvent(clientID string) Event {
	return Event{
		Type: EventConnected,
		Data: ConnectedEventData{
			ClientID: clientID,
			Message:  "SSE connection established",
		},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}
