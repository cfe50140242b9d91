package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/pagetrail/pagetrail-server/internal/store"
)

// Entity provides generic CRUD for tenant-independent records (users, auth
// sessions) with optional unique secondary indexes.
type Entity[T any] struct {
	db      *badger.DB
	prefix  string
	indexes []Index[T]
}

// Index defines a unique secondary index on an entity.
type Index[T any] struct {
	name            string
	keyGen          func(*T) []string
	lookupTransform func(string) string
}

// NewEntity creates a new Entity for type T stored under prefix.
func NewEntity[T any](db *badger.DB, prefix string) *Entity[T] {
	return &Entity[T]{db: db, prefix: prefix}
}

// WithIndex adds a unique secondary index.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen})
	return e
}

// WithIndexTransform adds a unique secondary index whose lookups are
// normalised first (e.g. lowercased email).
func (e *Entity[T]) WithIndexTransform(name string, keyGen func(*T) []string, lookupTransform func(string) string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen, lookupTransform: lookupTransform})
	return e
}

func (e *Entity[T]) key(id string) []byte {
	return []byte(e.prefix + id)
}

func (e *Entity[T]) indexKey(name, value string) []byte {
	return []byte(e.prefix + "idx:" + name + ":" + value)
}

// Create stores a new entity. Returns store.ErrAlreadyExists if the ID or any
// unique index value is taken.
func (e *Entity[T]) Create(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}

	return e.db.Update(func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, e.key(id)); err != nil {
			return err
		} else if exists {
			return store.ErrAlreadyExists
		}

		for _, idx := range e.indexes {
			for _, v := range idx.keyGen(entity) {
				exists, err := keyExists(txn, e.indexKey(idx.name, v))
				if err != nil {
					return err
				}
				if exists {
					return fmt.Errorf("index %s conflict on %s: %w", idx.name, v, store.ErrAlreadyExists)
				}
			}
		}

		if err := txn.Set(e.key(id), data); err != nil {
			return fmt.Errorf("set key: %w", err)
		}
		return e.setIndexes(txn, id, entity)
	})
}

// Get retrieves an entity by ID. Returns store.ErrNotFound if absent.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entity T
	err := e.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, e.key(id), &entity)
	})
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// GetByIndex retrieves an entity through a secondary index.
func (e *Entity[T]) GetByIndex(ctx context.Context, indexName, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, idx := range e.indexes {
		if idx.name == indexName && idx.lookupTransform != nil {
			value = idx.lookupTransform(value)
			break
		}
	}

	var entity T
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(e.indexKey(indexName, value))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, e.key(string(id)), &entity)
	})
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// Update replaces an existing entity and rewrites its index entries.
// Returns store.ErrNotFound if absent.
func (e *Entity[T]) Update(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}

	return e.db.Update(func(txn *badger.Txn) error {
		var old T
		if err := getJSON(txn, e.key(id), &old); err != nil {
			return err
		}

		for _, idx := range e.indexes {
			previous := make(map[string]bool)
			for _, v := range idx.keyGen(&old) {
				previous[v] = true
				if err := txn.Delete(e.indexKey(idx.name, v)); err != nil {
					return fmt.Errorf("delete old index key: %w", err)
				}
			}
			for _, v := range idx.keyGen(entity) {
				if previous[v] {
					continue
				}
				exists, err := keyExists(txn, e.indexKey(idx.name, v))
				if err != nil {
					return err
				}
				if exists {
					return fmt.Errorf("index %s conflict on %s: %w", idx.name, v, store.ErrAlreadyExists)
				}
			}
		}

		if err := txn.Set(e.key(id), data); err != nil {
			return fmt.Errorf("set key: %w", err)
		}
		return e.setIndexes(txn, id, entity)
	})
}

// Delete removes an entity and its index entries. Deleting a missing entity is not an error.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return e.db.Update(func(txn *badger.Txn) error {
		var entity T
		err := getJSON(txn, e.key(id), &entity)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		for _, idx := range e.indexes {
			for _, v := range idx.keyGen(&entity) {
				if err := txn.Delete(e.indexKey(idx.name, v)); err != nil {
					return fmt.Errorf("delete index key: %w", err)
				}
			}
		}
		return txn.Delete(e.key(id))
	})
}

// List returns an iterator over all entities, skipping index keys.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = e.db.View(func(txn *badger.Txn) error {
			prefix := []byte(e.prefix)
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return err
				}

				if strings.HasPrefix(string(it.Item().Key()[len(prefix):]), "idx:") {
					continue
				}

				var entity T
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				}); err != nil {
					yield(nil, err)
					return err
				}

				if !yield(&entity, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

func (e *Entity[T]) setIndexes(txn *badger.Txn, id string, entity *T) error {
	for _, idx := range e.indexes {
		for _, v := range idx.keyGen(entity) {
			if err := txn.Set(e.indexKey(idx.name, v), []byte(id)); err != nil {
				return fmt.Errorf("set index key: %w", err)
			}
		}
	}
	return nil
}
