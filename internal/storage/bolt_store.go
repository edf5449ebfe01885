package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adda-Baaj/course-grader/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const (
	gradeBucket      = "grades"
	expiryValueBytes = 8
)

// boltStore implements a Store backed by BoltDB. Values are an 8-byte
// big-endian expiry (unix seconds) followed by the JSON record.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	recordTTL       time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(gradeBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		recordTTL:       opts.RecordTTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Lookup returns the unexpired record stored under key.
func (b *boltStore) Lookup(key string) (domain.GradeRecord, bool, error) {
	var rec domain.GradeRecord
	if b == nil || b.db == nil {
		return rec, false, nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return rec, false, err
	}

	var (
		found   bool
		expired bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(gradeBucket))
		if bucket == nil {
			return fmt.Errorf("grade bucket missing")
		}

		value := bucket.Get([]byte(key))
		if value == nil {
			return nil
		}

		expiry, payload, ok := decodeValue(value)
		if !ok || !expiry.After(now) {
			expired = true
			return nil
		}
		if err := json.Unmarshal(payload, &rec); err != nil {
			return fmt.Errorf("decode grade record %q: %w", key, err)
		}
		found = true
		return nil
	})
	if err != nil || !expired {
		return rec, found, err
	}
	return rec, false, b.deleteExpired(key, now)
}

// deleteExpired removes key if it is still expired when the write lock is held.
func (b *boltStore) deleteExpired(key string, now time.Time) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(gradeBucket))
		if bucket == nil {
			return fmt.Errorf("grade bucket missing")
		}
		k := []byte(key)
		value := bucket.Get(k)
		if value == nil {
			return nil
		}
		if expiry, _, ok := decodeValue(value); ok && expiry.After(now) {
			return nil
		}
		return bucket.Delete(k)
	})
}

// Record stores rec under its submission key, replacing any earlier record.
func (b *boltStore) Record(rec domain.GradeRecord) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode grade record: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(gradeBucket))
		if bucket == nil {
			return fmt.Errorf("grade bucket missing")
		}
		return bucket.Put([]byte(rec.Submission.Key()), encodeValue(now.Add(b.recordTTL), payload))
	})
}

// List returns every unexpired record in key order.
func (b *boltStore) List() ([]domain.GradeRecord, error) {
	if b == nil || b.db == nil {
		return nil, nil
	}

	now := b.now()
	var out []domain.GradeRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(gradeBucket))
		if bucket == nil {
			return fmt.Errorf("grade bucket missing")
		}
		return bucket.ForEach(func(k, v []byte) error {
			expiry, payload, ok := decodeValue(v)
			if !ok || !expiry.After(now) {
				return nil
			}
			var rec domain.GradeRecord
			if err := json.Unmarshal(payload, &rec); err != nil {
				return fmt.Errorf("decode grade record %q: %w", k, err)
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// maybeCleanupExpired removes expired records on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(gradeBucket))
		if bucket == nil {
			return fmt.Errorf("grade bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; {
			expiry, _, ok := decodeValue(v)
			if !ok || !expiry.After(now) {
				seek := append([]byte(nil), k...)
				if err := cursor.Delete(); err != nil {
					return err
				}
				// Delete leaves the cursor position undefined; re-seek past the removed key.
				k, v = cursor.Seek(seek)
				continue
			}
			k, v = cursor.Next()
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func encodeValue(expiry time.Time, payload []byte) []byte {
	buf := make([]byte, expiryValueBytes+len(payload))
	binary.BigEndian.PutUint64(buf, uint64(expiry.Unix()))
	copy(buf[expiryValueBytes:], payload)
	return buf
}

// decodeValue splits a stored value into expiry and JSON payload.
func decodeValue(value []byte) (time.Time, []byte, bool) {
	if len(value) <= expiryValueBytes {
		return time.Time{}, nil, false
	}
	unix := int64(binary.BigEndian.Uint64(value[:expiryValueBytes]))
	if unix <= 0 {
		return time.Time{}, nil, false
	}
	return time.Unix(unix, 0), value[expiryValueBytes:], true
}
