package projection

import (
	"context"
	"log/slog"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	"github.com/pagetrail/pagetrail-server/internal/sse"
)

// BookLister loads an owner's whole collection.
type BookLister interface {
	ListBooks(ctx context.Context, ownerID string) ([]*domain.Book, error)
}

// Hub delivers store change events to per-user subscribers.
type Hub interface {
	Connect(userID string) (*sse.Client, error)
	Disconnect(clientID string)
}

// Feed pushes an owner's full book collection on subscribe and again after
// every change to it.
type Feed struct {
	books  BookLister
	hub    Hub
	logger *slog.Logger
}

// NewFeed creates a Feed.
func NewFeed(books BookLister, hub Hub, logger *slog.Logger) *Feed {
	return &Feed{books: books, hub: hub, logger: logger}
}

// Subscribe returns a channel carrying the owner's collection. The first
// value is the current state. A slow reader only ever sees the latest
// collection. The channel closes when ctx ends or the hub shuts down.
func (f *Feed) Subscribe(ctx context.Context, ownerID string) (<-chan []domain.Book, error) {
	// Connect before the first load so no change slips between them.
	client, err := f.hub.Connect(ownerID)
	if err != nil {
		return nil, err
	}

	initial, err := f.load(ctx, ownerID)
	if err != nil {
		f.hub.Disconnect(client.ID)
		return nil, err
	}

	out := make(chan []domain.Book, 1)
	out <- initial

	go f.run(ctx, ownerID, client, out)
	return out, nil
}

func (f *Feed) run(ctx context.Context, ownerID string, client *sse.Client, out chan []domain.Book) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			f.hub.Disconnect(client.ID)
			return

		case event, ok := <-client.EventChan:
			if !ok {
				return
			}
			if !event.IsBookChange() {
				continue
			}

			books, err := f.load(ctx, ownerID)
			if err != nil {
				if ctx.Err() == nil {
					f.logger.Warn("failed to reload book feed",
						"user_id", ownerID,
						"error", err)
				}
				continue
			}
			publishLatest(out, books)
		}
	}
}

// publishLatest replaces any unread snapshot with books. Only run() sends,
// so the second send cannot block.
func publishLatest(out chan []domain.Book, books []domain.Book) {
	select {
	case out <- books:
	default:
		select {
		case <-out:
		default:
		}
		out <- books
	}
}

func (f *Feed) load(ctx context.Context, ownerID string) ([]domain.Book, error) {
	ptrs, err := f.books.ListBooks(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	books := make([]domain.Book, 0, len(ptrs))
	for _, b := range ptrs {
		books = append(books, *b.Clone())
	}
	return books, nil
}

// Snapshots adapts Subscribe into stream events: each collection is
// filtered and sorted by q and order before being wrapped as a
// books.snapshot event.
func (f *Feed) Snapshots(ctx context.Context, ownerID string, q Query, order Order) (<-chan sse.Event, error) {
	collections, err := f.Subscribe(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	events := make(chan sse.Event, 1)
	go func() {
		defer close(events)
		for books := range collections {
			view := Apply(books, q, order)
			select {
			case events <- sse.NewBooksSnapshotEvent(ownerID, view, len(books)):
			case <-ctx.Done():
				// Drain so run() can observe ctx and exit.
				for range collections {
				}
				return
			}
		}
	}()
	return events, nil
}
