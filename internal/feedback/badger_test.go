package feedback

import (
	"context"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsrec/internal/config"
	"newsrec/internal/domain"
)

func readBadgerRecords(t *testing.T, s *BadgerStore) []string {
	t.Helper()
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(badgerKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, string(val))
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestBadgerStore_InsertsInOrder(t *testing.T) {
	ctx := context.Background()
	store, err := NewBadgerStore(config.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	defer store.Close(ctx)

	records := []string{
		`{"user_id":"u1","article_id":1,"event_type":"like"}`,
		`{"user_id":"u1","article_id":5,"event_type":"like"}`,
		`{"user_id":"u2","article_id":1,"event_type":"like"}`,
	}
	for _, r := range records {
		require.NoError(t, store.Insert(ctx, domain.FeedbackRecord(r)))
	}

	assert.Equal(t, records, readBadgerRecords(t, store))
}

func TestBadgerStore_KeysArePrefixed(t *testing.T) {
	ctx := context.Background()
	store, err := NewBadgerStore(config.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	defer store.Close(ctx)

	require.NoError(t, store.Insert(ctx, domain.FeedbackRecord(`{"a":1}`)))

	err = store.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		n := 0
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			assert.True(t, strings.HasPrefix(key, badgerKeyPrefix), key)
			n++
		}
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)
}

func TestBadgerStore_CancelledContext(t *testing.T) {
	store, err := NewBadgerStore(config.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	defer store.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Insert(ctx, domain.FeedbackRecord(`{"a":1}`)), context.Canceled)
	assert.Empty(t, readBadgerRecords(t, store))
}
