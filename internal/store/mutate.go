package store

import (
	"context"
	"time"

	"github.com/pagetrail/pagetrail-server/internal/domain"
)

// MutateBook implements Store.UpdateBook on top of any TxRunner: read, apply,
// touch, write, all inside one transaction. Owner and ID are restored after
// mutate so they stay immutable.
func MutateBook(ctx context.Context, r TxRunner, ownerID, bookID string, now time.Time, mutate BookMutator) (*domain.Book, error) {
	var updated *domain.Book
	err := r.RunInTx(ctx, ownerID, func(tx Tx) error {
		book, err := tx.GetBook(bookID)
		if err != nil {
			return err
		}
		if err := mutate(book); err != nil {
			return err
		}
		book.ID = bookID
		book.UserID = ownerID
		book.Touch(now)
		if err := tx.PutBook(book); err != nil {
			return err
		}
		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
