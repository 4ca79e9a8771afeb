package cache

import (
	"encoding/json"
	"fmt"
	"hotel-api-go/utils"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

// Entry is a cached value with its storage timestamp. Entries are immutable
// snapshots: Put overwrites wholesale, nothing mutates a stored entry.
type Entry struct {
	Value    string `json:"value"`
	StoredAt int64  `json:"storedAt"` // unix milliseconds
}

// Age returns how long ago the entry was stored.
func (e Entry) Age() time.Duration {
	return time.Duration(time.Now().UnixMilli()-e.StoredAt) * time.Millisecond
}

// TieredCache is a key-value cache with two expiry thresholds. Entries
// younger than the fresh TTL are served directly; entries between the fresh
// and stale TTLs are served only as a fallback when the supplier is
// unavailable. Backed by an in-memory sync.Map with optional BoltDB
// persistence so warm content survives restarts.
type TieredCache struct {
	name               string
	freshTTL           time.Duration
	staleTTL           time.Duration
	memCache           sync.Map
	db                 *bolt.DB // nil when persistence is disabled
	bucket             []byte
	compressionEnabled bool
}

// Options configures a TieredCache instance.
type Options struct {
	Name        string
	FreshTTL    time.Duration
	StaleTTL    time.Duration
	DB          *bolt.DB // optional shared BoltDB handle; nil keeps the cache memory-only
	Compression bool
}

// OpenDB opens (creating if needed) the BoltDB file shared by cache instances.
func OpenDB(dbPath string) (*bolt.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %v", err)
	}

	if info, err := os.Stat(dbPath); err == nil {
		log.Infof("[Cache:Init] Found existing cache database at: %s (size: %d bytes)", dbPath, info.Size())
	} else {
		log.Infof("[Cache:Init] Creating new cache database at: %s", dbPath)
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %v", err)
	}
	return db, nil
}

// New creates a tiered cache. Each instance persists into its own bucket
// named after the cache inside the shared database.
func New(opts Options) (*TieredCache, error) {
	if opts.Name == "" {
		opts.Name = "default"
	}
	if opts.FreshTTL <= 0 {
		return nil, fmt.Errorf("fresh TTL must be positive")
	}
	if opts.StaleTTL < opts.FreshTTL {
		return nil, fmt.Errorf("stale TTL must be >= fresh TTL")
	}

	tc := &TieredCache{
		name:               opts.Name,
		freshTTL:           opts.FreshTTL,
		staleTTL:           opts.StaleTTL,
		db:                 opts.DB,
		bucket:             []byte(opts.Name),
		compressionEnabled: opts.Compression,
	}

	if tc.db != nil {
		err := tc.db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(tc.bucket)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create cache bucket %s: %v", opts.Name, err)
		}

		if err := tc.loadToMemory(); err != nil {
			log.Warnf("[Cache] Failed to preload %s cache to memory: %v", tc.name, err)
		}
	}

	log.Infof("[Cache] Tiered cache %q initialized (fresh: %v, stale: %v, persistent: %v, compression: %v)",
		tc.name, tc.freshTTL, tc.staleTTL, tc.db != nil, tc.compressionEnabled)
	return tc, nil
}

// loadToMemory loads all persisted entries from disk to memory,
// skipping entries already past the stale TTL.
func (tc *TieredCache) loadToMemory() error {
	count, expired := 0, 0
	err := tc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(tc.bucket)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				log.Warnf("[Cache] Failed to unmarshal %s entry for key %s: %v", tc.name, string(k), err)
				return nil // Continue to next entry
			}
			if entry.Age() >= tc.staleTTL {
				expired++
				return nil
			}
			tc.memCache.Store(string(k), entry)
			count++
			return nil
		})
	})
	if err != nil {
		return err
	}

	log.Infof("[Cache] Loaded %d %s entries from disk (%d past stale TTL skipped)", count, tc.name, expired)
	return nil
}

// FreshTTL returns the configured fresh TTL.
func (tc *TieredCache) FreshTTL() time.Duration { return tc.freshTTL }

// StaleTTL returns the configured stale TTL.
func (tc *TieredCache) StaleTTL() time.Duration { return tc.staleTTL }

// IsFresh reports whether an entry of the given age serves directly.
func (tc *TieredCache) IsFresh(age time.Duration) bool {
	return age < tc.freshTTL
}

// IsStale reports whether an entry of the given age serves only as a
// degraded fallback.
func (tc *TieredCache) IsStale(age time.Duration) bool {
	return age >= tc.freshTTL && age < tc.staleTTL
}

// Get retrieves a value regardless of freshness, along with its age.
// Entries past the stale TTL are treated as absent.
func (tc *TieredCache) Get(key string) (string, time.Duration, bool) {
	entry, ok := tc.load(key)
	if !ok {
		return "", 0, false
	}

	age := entry.Age()
	if age >= tc.staleTTL {
		return "", 0, false
	}

	value, err := tc.decode(entry.Value)
	if err != nil {
		log.Errorf("[Cache] Error decoding %s value for key %s: %v", tc.name, key, err)
		return "", 0, false
	}
	return value, age, true
}

// GetFresh retrieves a value only if it is within the fresh TTL.
func (tc *TieredCache) GetFresh(key string) (string, bool) {
	value, age, ok := tc.Get(key)
	if !ok || !tc.IsFresh(age) {
		return "", false
	}
	return value, true
}

// GetStale retrieves a value that is past the fresh TTL but still within
// the stale TTL, for use when the supplier is unavailable.
func (tc *TieredCache) GetStale(key string) (string, time.Duration, bool) {
	value, age, ok := tc.Get(key)
	if !ok || !tc.IsStale(age) {
		return "", 0, false
	}
	return value, age, true
}

// HasFresh reports whether a fresh entry exists without decoding it.
func (tc *TieredCache) HasFresh(key string) bool {
	entry, ok := tc.load(key)
	return ok && tc.IsFresh(entry.Age())
}

// load fetches the raw entry, falling back from memory to disk.
func (tc *TieredCache) load(key string) (Entry, bool) {
	if v, ok := tc.memCache.Load(key); ok {
		return v.(Entry), true
	}

	if tc.db == nil {
		return Entry{}, false
	}

	var entry Entry
	err := tc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(tc.bucket)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("key not found")
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return Entry{}, false
	}

	tc.memCache.Store(key, entry)
	return entry, true
}

// Put stores a value with a fresh timestamp, overwriting any prior entry.
func (tc *TieredCache) Put(key, value string) error {
	encoded, err := tc.encode(value)
	if err != nil {
		log.Errorf("[Cache] Error encoding %s value for key %s: %v", tc.name, key, err)
		return err
	}

	entry := Entry{
		Value:    encoded,
		StoredAt: time.Now().UnixMilli(),
	}

	tc.memCache.Store(key, entry)

	if tc.db == nil {
		return nil
	}

	return tc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(tc.bucket)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// Clear removes all entries from the cache.
func (tc *TieredCache) Clear() error {
	tc.memCache.Range(func(key, value interface{}) bool {
		tc.memCache.Delete(key)
		return true
	})

	if tc.db == nil {
		return nil
	}

	return tc.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(tc.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(tc.bucket)
		return err
	})
}

// Range iterates over all in-memory cache entries.
func (tc *TieredCache) Range(fn func(key string, entry Entry) bool) {
	tc.memCache.Range(func(k, v interface{}) bool {
		return fn(k.(string), v.(Entry))
	})
}

// Stats returns the entry count and approximate size of the cache.
func (tc *TieredCache) Stats() (numKeys int, sizeInKB int) {
	tc.memCache.Range(func(k, v interface{}) bool {
		entry := v.(Entry)
		numKeys++
		sizeInKB += len(k.(string)) + len(entry.Value)
		return true
	})
	sizeInKB = sizeInKB / 1024
	return
}

func (tc *TieredCache) encode(value string) (string, error) {
	if !tc.compressionEnabled {
		return value, nil
	}
	return utils.CompressString(value)
}

func (tc *TieredCache) decode(value string) (string, error) {
	if !tc.compressionEnabled {
		return value, nil
	}
	return utils.DecompressString(value)
}
