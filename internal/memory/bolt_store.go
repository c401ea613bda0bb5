package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const postsBucket = "posts"

// record is the stored value for one posted dedup key.
type record struct {
	PostedAt  int64  `json:"posted_at"`
	ExpiresAt int64  `json:"expires_at"`
	Text      string `json:"text,omitempty"`
}

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	entryTTL        time.Duration
	cleanupInterval time.Duration
	maxEntries      int
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
		_, err := tx.CreateBucketIfNotExists([]byte(postsBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		entryTTL:        opts.EntryTTL,
		cleanupInterval: opts.CleanupInterval,
		maxEntries:      opts.MaxEntries,
	}
	store.lastCleanup.Store(time.Now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Seen reports whether the dedup key was posted within the retention window.
func (b *boltStore) Seen(key string) (bool, error) {
	if b == nil || b.db == nil {
		return false, nil
	}

	if err := b.maybeCleanupExpired(time.Now()); err != nil {
		return false, err
	}

	var exists bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(postsBucket))
		if bucket == nil {
			return fmt.Errorf("posts bucket missing")
		}

		value := bucket.Get([]byte(key))
		if value == nil {
			exists = false
			return nil
		}

		rec, ok := decodeRecord(value)
		if !ok || !time.Unix(rec.ExpiresAt, 0).After(time.Now()) {
			exists = false
			return bucket.Delete([]byte(key))
		}

		exists = true
		return nil
	})
	return exists, err
}

// MarkPosted records a posted dedup key and its published text.
func (b *boltStore) MarkPosted(key, text string) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	rec := record{
		PostedAt:  now.Unix(),
		ExpiresAt: now.Add(b.entryTTL).Unix(),
		Text:      text,
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode post record: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(postsBucket))
		if bucket == nil {
			return fmt.Errorf("posts bucket missing")
		}
		return bucket.Put([]byte(key), value)
	})
}

// RecentTexts returns the last `limit` posted texts, newest first.
func (b *boltStore) RecentTexts(limit int) ([]string, error) {
	if b == nil || b.db == nil || limit <= 0 {
		return nil, nil
	}

	var recs []record
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(postsBucket))
		if bucket == nil {
			return fmt.Errorf("posts bucket missing")
		}
		return bucket.ForEach(func(_, v []byte) error {
			if rec, ok := decodeRecord(v); ok && rec.Text != "" {
				recs = append(recs, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].PostedAt > recs[j].PostedAt })
	if len(recs) > limit {
		recs = recs[:limit]
	}

	texts := make([]string, 0, len(recs))
	for _, rec := range recs {
		texts = append(texts, rec.Text)
	}
	return texts, nil
}

// maybeCleanupExpired removes expired entries on a fixed cadence and enforces
// the count bound oldest-first, so the store never grows unbounded.
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
		bucket := tx.Bucket([]byte(postsBucket))
		if bucket == nil {
			return fmt.Errorf("posts bucket missing")
		}

		type keyed struct {
			key      []byte
			postedAt int64
		}
		var live []keyed

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			rec, ok := decodeRecord(v)
			if !ok || !time.Unix(rec.ExpiresAt, 0).After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
				continue
			}
			live = append(live, keyed{key: append([]byte(nil), k...), postedAt: rec.PostedAt})
		}

		if len(live) > b.maxEntries {
			sort.Slice(live, func(i, j int) bool { return live[i].postedAt < live[j].postedAt })
			for _, entry := range live[:len(live)-b.maxEntries] {
				if err := bucket.Delete(entry.key); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

// decodeRecord decodes a stored post record.
func decodeRecord(value []byte) (record, bool) {
	var rec record
	if err := json.Unmarshal(value, &rec); err != nil {
		return record{}, false
	}
	if rec.ExpiresAt <= 0 {
		return record{}, false
	}
	return rec, true
}
