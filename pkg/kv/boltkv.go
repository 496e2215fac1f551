package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/fiscobcos/tx-scheduler/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// entryDTO is the on-disk representation of an Entry, grounded on the
// teacher's encoding/json-per-row pattern in pkg/storage/boltdb.go.
type entryDTO struct {
	Deleted bool              `json:"deleted,omitempty"`
	Fields  map[string][]byte `json:"fields,omitempty"`
}

func encodeEntry(e types.Entry) ([]byte, error) {
	dto := entryDTO{Deleted: e.IsDeleted(), Fields: e.Fields}
	return json.Marshal(dto)
}

func decodeEntry(data []byte) (types.Entry, error) {
	var dto entryDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return types.Entry{}, err
	}
	if dto.Deleted {
		return types.DeletedEntry(), nil
	}
	return types.NewPresentEntry(dto.Fields), nil
}

// BoltBackend is a durable KV backend using go.etcd.io/bbolt, one bucket
// per table. It is the production Backend implementation.
type BoltBackend struct {
	db *bolt.DB
}

// NewBoltBackend opens (creating if absent) a bbolt database under
// dataDir for use as a KV backend.
func NewBoltBackend(dataDir string) (*BoltBackend, error) {
	dbPath := filepath.Join(dataDir, "state.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}

func bucketName(table string) []byte {
	return []byte("table:" + table)
}

const bucketPrefix = "table:"

// allRows enumerates every row in every table bucket, for mergeFSM's
// Raft snapshot. Order doesn't matter here: Restore replays the whole
// set through WriteSome in one batch.
func (b *BoltBackend) allRows(_ context.Context) ([]snapshotRow, error) {
	var rows []snapshotRow
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, bucket *bolt.Bucket) error {
			table := string(name)[len(bucketPrefix):]
			return bucket.ForEach(func(k, v []byte) error {
				entry, err := decodeEntry(v)
				if err != nil {
					return fmt.Errorf("failed to decode entry for table %q: %w", table, err)
				}
				key := types.StateKey{Table: table, RowKey: append([]byte(nil), k...)}
				rows = append(rows, snapshotRow{Key: key, Entry: entry})
				return nil
			})
		})
	})
	return rows, err
}

func (b *BoltBackend) ReadOne(_ context.Context, key types.StateKey) (OptEntry, error) {
	var out OptEntry
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName(key.Table))
		if bucket == nil {
			return nil
		}
		data := bucket.Get(key.RowKey)
		if data == nil {
			return nil
		}
		entry, err := decodeEntry(data)
		if err != nil {
			return fmt.Errorf("failed to decode entry for %s: %w", key, err)
		}
		out = OptEntry{Entry: entry, Found: true}
		return nil
	})
	return out, err
}

func (b *BoltBackend) ReadSome(ctx context.Context, keys []types.StateKey) ([]OptEntry, error) {
	out := make([]OptEntry, len(keys))
	err := b.db.View(func(tx *bolt.Tx) error {
		for i, key := range keys {
			bucket := tx.Bucket(bucketName(key.Table))
			if bucket == nil {
				continue
			}
			data := bucket.Get(key.RowKey)
			if data == nil {
				continue
			}
			entry, err := decodeEntry(data)
			if err != nil {
				return fmt.Errorf("failed to decode entry for %s: %w", key, err)
			}
			out[i] = OptEntry{Entry: entry, Found: true}
		}
		return nil
	})
	return out, err
}

func (b *BoltBackend) WriteSome(_ context.Context, keys []types.StateKey, entries []types.Entry) error {
	if len(keys) != len(entries) {
		return fmt.Errorf("kv: %d keys but %d entries", len(keys), len(entries))
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		for i, key := range keys {
			bucket, err := tx.CreateBucketIfNotExists(bucketName(key.Table))
			if err != nil {
				return fmt.Errorf("failed to open table %q: %w", key.Table, err)
			}
			data, err := encodeEntry(entries[i])
			if err != nil {
				return fmt.Errorf("failed to encode entry for %s: %w", key, err)
			}
			if err := bucket.Put(key.RowKey, data); err != nil {
				return fmt.Errorf("failed to write %s: %w", key, err)
			}
		}
		return nil
	})
}

func (b *BoltBackend) RemoveSome(_ context.Context, keys []types.StateKey) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		for _, key := range keys {
			bucket := tx.Bucket(bucketName(key.Table))
			if bucket == nil {
				continue
			}
			if err := bucket.Delete(key.RowKey); err != nil {
				return fmt.Errorf("failed to remove %s: %w", key, err)
			}
		}
		return nil
	})
}

func (b *BoltBackend) Seek(_ context.Context, start types.StateKey) (Cursor, error) {
	tx, err := b.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("failed to start seek transaction: %w", err)
	}
	bucket := tx.Bucket(bucketName(start.Table))
	if bucket == nil {
		_ = tx.Rollback()
		return &boltCursor{}, nil
	}
	cursor := &boltCursor{tx: tx, table: start.Table, cursor: bucket.Cursor()}
	cursor.key, cursor.value = cursor.cursor.Seek(start.RowKey)
	return cursor, nil
}

type boltCursor struct {
	tx     *bolt.Tx
	table  string
	cursor *bolt.Cursor
	key    []byte
	value  []byte
}

// Next returns the item the cursor currently points at, then advances to
// the following key so the next call returns a fresh item.
func (c *boltCursor) Next(_ context.Context) (types.StateKey, types.Entry, bool, error) {
	if c.cursor == nil || c.key == nil {
		return types.StateKey{}, types.Entry{}, false, nil
	}
	entry, err := decodeEntry(c.value)
	if err != nil {
		return types.StateKey{}, types.Entry{}, false, fmt.Errorf("failed to decode cursor entry: %w", err)
	}
	key := types.StateKey{Table: c.table, RowKey: append([]byte(nil), c.key...)}
	c.key, c.value = c.cursor.Next()
	return key, entry, true, nil
}

func (c *boltCursor) Close() error {
	if c.tx != nil {
		return c.tx.Rollback()
	}
	return nil
}
