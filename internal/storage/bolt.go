package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kalambet/seedlink/internal/kvstore"
)

const boltBucketRecords = "records" // key: record key -> kind byte + text

// BoltStore keeps settings records in a single bbolt file. The job queue
// always lives in SQLite.
type BoltStore struct {
	db *bbolt.DB
}

var _ kvstore.Store = (*BoltStore)(nil)

// OpenBolt opens (or creates) seedlink.bolt in dataDir.
func OpenBolt(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	path := filepath.Join(dataDir, "seedlink.bolt")

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucketRecords))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating records bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}

func encodeBoltValue(v kvstore.Value) []byte {
	text := v.Text()
	out := make([]byte, 0, len(text)+1)
	out = append(out, byte(v.Kind))
	return append(out, text...)
}

func decodeBoltValue(key string, data []byte) (kvstore.Value, error) {
	if len(data) == 0 {
		return kvstore.Value{}, fmt.Errorf("decoding %s: empty record", key)
	}
	v, err := kvstore.Parse(kvstore.Kind(data[0]), string(data[1:]))
	if err != nil {
		return kvstore.Value{}, fmt.Errorf("decoding %s: %w", key, err)
	}
	return v, nil
}

func (b *BoltStore) Get(key string) (kvstore.Value, bool, error) {
	var (
		v     kvstore.Value
		found bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(boltBucketRecords)).Get([]byte(key))
		if data == nil {
			return nil
		}
		var err error
		v, err = decodeBoltValue(key, data)
		found = err == nil
		return err
	})
	return v, found, err
}

func (b *BoltStore) Set(key string, v kvstore.Value) error {
	return b.Commit(kvstore.NewBatch().Set(key, v))
}

func (b *BoltStore) Remove(key string) error {
	return b.Commit(kvstore.NewBatch().Remove(key))
}

func (b *BoltStore) Keys() ([]string, error) {
	var keys []string
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketRecords)).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	// bbolt iterates in byte order already; sort anyway to match the interface contract.
	sort.Strings(keys)
	return keys, err
}

func (b *BoltStore) ScanPrefix(prefix string) (map[string]kvstore.Value, error) {
	out := make(map[string]kvstore.Value)
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(boltBucketRecords)).Cursor()
		p := []byte(prefix)
		for k, data := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, data = c.Next() {
			v, err := decodeBoltValue(string(k), data)
			if err != nil {
				return err
			}
			out[string(k)] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Commit applies the batch inside one bbolt read-write transaction.
func (b *BoltStore) Commit(batch *kvstore.Batch) error {
	if batch.Empty() {
		return nil
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		if batch.Clears() {
			if err := tx.DeleteBucket([]byte(boltBucketRecords)); err != nil {
				return fmt.Errorf("clearing records: %w", err)
			}
			if _, err := tx.CreateBucket([]byte(boltBucketRecords)); err != nil {
				return fmt.Errorf("recreating records bucket: %w", err)
			}
		}
		records := tx.Bucket([]byte(boltBucketRecords))
		for _, op := range batch.Ops() {
			if op.Delete {
				if err := records.Delete([]byte(op.Key)); err != nil {
					return fmt.Errorf("removing %s: %w", op.Key, err)
				}
				continue
			}
			if err := records.Put([]byte(op.Key), encodeBoltValue(op.Value)); err != nil {
				return fmt.Errorf("writing %s: %w", op.Key, err)
			}
		}
		return nil
	})
}
