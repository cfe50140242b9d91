// Package store defines the persistence contract for PageTrail.
//
// Two implementations exist: badgerdb (the default embedded key-value store)
// and sqlite. Both scope every book and session to its owning user and both
// apply multi-record writes through RunInTx so they commit or roll back as
// a unit.
package store

import (
	"context"
	"time"

	"github.com/pagetrail/pagetrail-server/internal/domain"
)

// EventEmitter is the interface for emitting change events.
// Stores use it to broadcast changes without depending on the SSE implementation.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}

// Tx is the view of the store available inside a transaction. Every call is
// scoped to the owner the transaction was opened for.
type Tx interface {
	// OwnerID returns the tenant this transaction is scoped to.
	OwnerID() string
	// GetBook reads a book. It returns ErrNotFound when the book does not
	// exist and ErrForbidden when it belongs to another user.
	GetBook(bookID string) (*domain.Book, error)
	// PutBook replaces an existing book.
	PutBook(book *domain.Book) error
	// InsertSession appends a reading session to its book's ledger.
	InsertSession(session *domain.ReadingSession) error
}

// TxRunner opens owner-scoped transactions.
type TxRunner interface {
	// RunInTx calls fn inside a transaction. If fn returns an error nothing
	// it wrote becomes visible. Change events are emitted only after the
	// transaction commits.
	RunInTx(ctx context.Context, ownerID string, fn func(Tx) error) error
}

// BookMutator edits a book in place inside a transaction.
type BookMutator func(book *domain.Book) error

// Store defines every persistence operation used by the services.
type Store interface {
	TxRunner

	Close() error

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error

	// Auth sessions
	CreateAuthSession(ctx context.Context, session *domain.AuthSession) error
	GetAuthSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.AuthSession, error)
	DeleteAuthSession(ctx context.Context, id string) error
	DeleteExpiredAuthSessions(ctx context.Context, now time.Time) (int, error)

	// Books
	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, ownerID, bookID string) (*domain.Book, error)
	ListBooks(ctx context.Context, ownerID string) ([]*domain.Book, error)
	// UpdateBook reads the current book, applies mutate and writes the
	// result in one transaction, so concurrent progress commits are never
	// overwritten by a stale copy.
	UpdateBook(ctx context.Context, ownerID, bookID string, mutate BookMutator) (*domain.Book, error)
	// DeleteBook removes a book and its sessions and returns what was deleted.
	DeleteBook(ctx context.Context, ownerID, bookID string) (*domain.Book, error)

	// Reading sessions, in commit order.
	ListSessions(ctx context.Context, ownerID, bookID string) ([]*domain.ReadingSession, error)
	ListUserSessions(ctx context.Context, ownerID string) ([]*domain.ReadingSession, error)
}
