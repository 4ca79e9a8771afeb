package content

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const hotelsBucket = "hotels"

// Store is the narrow interface onto the local static-content store. It
// mirrors the one query shape the gateway needs: a batched lookup by HID
// returning raw documents in either naming convention.
type Store interface {
	// FindByHIDs returns the raw documents for the HIDs that exist in the
	// store, keyed by HID. Missing HIDs are simply absent from the map.
	FindByHIDs(ctx context.Context, hids []int64) (map[int64]json.RawMessage, error)
}

// EmptyStore satisfies Store when no local content database is available.
// Every lookup resolves to nothing, so enrichment degrades to cache-only.
type EmptyStore struct{}

func (EmptyStore) FindByHIDs(ctx context.Context, hids []int64) (map[int64]json.RawMessage, error) {
	return map[int64]json.RawMessage{}, nil
}

// BoltStore is a BoltDB-backed content store holding one raw JSON document
// per hotel, keyed by decimal HID.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if needed) a content store at the given path.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %v", err)
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open content database: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(hotelsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create hotels bucket: %v", err)
	}

	log.Infof("[Content] Local content store opened at %s", dbPath)
	return &BoltStore{db: db}, nil
}

// FindByHIDs fetches raw documents for the given HIDs in one read transaction.
func (s *BoltStore) FindByHIDs(ctx context.Context, hids []int64) (map[int64]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := make(map[int64]json.RawMessage, len(hids))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(hotelsBucket))
		if b == nil {
			return fmt.Errorf("hotels bucket not found")
		}
		for _, hid := range hids {
			data := b.Get([]byte(strconv.FormatInt(hid, 10)))
			if data == nil {
				continue
			}
			doc := make(json.RawMessage, len(data))
			copy(doc, data)
			docs[hid] = doc
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Upsert stores or replaces the raw document for a hotel. Used by the
// content ingest path and by tests.
func (s *BoltStore) Upsert(hid int64, doc json.RawMessage) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(hotelsBucket))
		if b == nil {
			return fmt.Errorf("hotels bucket not found")
		}
		return b.Put([]byte(strconv.FormatInt(hid, 10)), doc)
	})
}

// Count returns the number of stored hotel documents.
func (s *BoltStore) Count() (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(hotelsBucket))
		if b == nil {
			return nil
		}
		count = b.Stats().KeyN
		return nil
	})
	return count, err
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
