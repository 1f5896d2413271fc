package feedback

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"newsrec/internal/config"
	"newsrec/internal/domain"
)

// badgerKeyPrefix namespaces feedback keys. UUIDv7 suffixes keep keys in insertion order.
const badgerKeyPrefix = "feedback:"

// BadgerStore keeps feedback documents in an embedded BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the database at cfg.Path.
func NewBadgerStore(cfg config.BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", cfg.Path, err)
	}
	return &BadgerStore{db: db}, nil
}

// Name returns the identifier of this store implementation.
func (s *BadgerStore) Name() string { return "badger" }

// Insert stores record under a fresh time-ordered key.
func (s *BadgerStore) Insert(ctx context.Context, record domain.FeedbackRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	key := []byte(badgerKeyPrefix + id.String())
	val := append([]byte(nil), record...)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

// Close closes the database.
func (s *BadgerStore) Close(context.Context) error {
	return s.db.Close()
}
