package badgerdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/pagetrail/pagetrail-server/internal/store"
)

// Key layout. Books and sessions live under their owner's tenant prefix so
// every read is a prefix scan inside one user's subtree:
//
//	t:{uid}:book:{bookID}                  -> Book
//	t:{uid}:sess:{bookID}:{seq}:{sessID}   -> ReadingSession
//	owner:book:{bookID}                    -> uid
//
// seq is the zero-padded commit time, so a prefix scan returns sessions in
// commit order.
const (
	ownerBookPrefix = "owner:book:"
	userPrefix      = "user:"
	authPrefix      = "authsession:"
)

func tenantPrefix(ownerID string) string {
	return "t:" + ownerID + ":"
}

func bookKey(ownerID, bookID string) []byte {
	return []byte(tenantPrefix(ownerID) + "book:" + bookID)
}

func booksPrefix(ownerID string) []byte {
	return []byte(tenantPrefix(ownerID) + "book:")
}

func ownerKey(bookID string) []byte {
	return []byte(ownerBookPrefix + bookID)
}

func sessionsPrefix(ownerID, bookID string) []byte {
	return []byte(tenantPrefix(ownerID) + "sess:" + bookID + ":")
}

func userSessionsPrefix(ownerID string) []byte {
	return []byte(tenantPrefix(ownerID) + "sess:")
}

func sessionKey(ownerID, bookID string, committedAt time.Time, sessionID string) []byte {
	return fmt.Appendf(sessionsPrefix(ownerID, bookID), "%020d:%s", committedAt.UnixNano(), sessionID)
}

func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("check key: %w", err)
}

// getJSON decodes the value at key into dst, mapping a missing key to store.ErrNotFound.
func getJSON(txn *badger.Txn, key []byte, dst any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get key: %w", err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, dst); err != nil {
			return fmt.Errorf("unmarshal value: %w", err)
		}
		return nil
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("set key: %w", err)
	}
	return nil
}

// scanJSON decodes every value under prefix, in key order.
func scanJSON[T any](txn *badger.Txn, prefix []byte) ([]*T, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*T
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var v T
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		}); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", it.Item().Key(), err)
		}
		out = append(out, &v)
	}
	return out, nil
}

// scanKeys collects (copies of) every key under prefix.
func scanKeys(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}
