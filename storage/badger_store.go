package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// BadgerStore is the default persistence hook behind persist_to_db side
// effects: an embedded key-value store with entity-prefixed keys and JSON
// values. Persistence here is an audit trail, not authoritative state; the
// room registry never reads it back.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(path string, inMemory bool) (*BadgerStore, error) {
	options := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)

	if inMemory {
		options = badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.WARNING)
	}

	db, err := badger.Open(options)

	if err != nil {
		return nil, fmt.Errorf("could not open badger store: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

// Persist writes one entity record under a fresh key. It honors the room's
// cancellation so teardown aborts writes still in flight.
func (store *BadgerStore) Persist(ctx context.Context, entity string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(data)

	if err != nil {
		return fmt.Errorf("could not marshal %s entity: %w", entity, err)
	}

	key := fmt.Sprintf("%s/%s", entity, bson.NewObjectID().Hex())

	return store.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// CountByEntity reports how many records exist for an entity prefix.
func (store *BadgerStore) CountByEntity(entity string) (int, error) {
	count := 0

	err := store.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false

		iterator := txn.NewIterator(options)
		defer iterator.Close()

		prefix := []byte(entity + "/")

		for iterator.Seek(prefix); iterator.ValidForPrefix(prefix); iterator.Next() {
			count++
		}

		return nil
	})

	return count, err
}

func (store *BadgerStore) Close() error {
	return store.db.Close()
}
