package ocr

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var cacheBucket = []byte("ocr_text")

// Cache stores extracted text keyed by the sha256 hex of the source
// file, so re-ingesting an identical document skips the OCR binaries.
type Cache struct {
	db *bolt.DB
}

func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache bucket: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Get(hashHex string) (string, bool) {
	var text string
	var ok bool
	_ = c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(cacheBucket).Get([]byte(hashHex)); v != nil {
			text = string(v)
			ok = true
		}
		return nil
	})
	return text, ok
}

func (c *Cache) Put(hashHex, text string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put([]byte(hashHex), []byte(text))
	})
}

func (c *Cache) Close() error {
	return c.db.Close()
}
