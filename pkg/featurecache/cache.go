// Package featurecache stores extracted features, so that re-analyzing
// the same tracks does not require extracting them again.
package featurecache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avsync/pkg/features"
)

// Cache is a badger-backed key-value store of FeatureSet-s.
type Cache struct {
	db *badger.DB
}

// Open opens (or creates) the cache in the directory. An empty directory
// means an in-memory cache.
func Open(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("unable to open the cache in '%s': %w", dir, err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns nil if there is nothing cached for the key.
func (c *Cache) Get(ctx context.Context, key Key) (*features.FeatureSet, error) {
	var fs *features.FeatureSet
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key.bytes())
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			fs = &features.FeatureSet{}
			return gob.NewDecoder(bytes.NewReader(val)).Decode(fs)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("unable to get %s: %w", key, err)
	}
	logger.Tracef(ctx, "cache get %s: found:%t", key, fs != nil)
	return fs, nil
}

func (c *Cache) Put(ctx context.Context, key Key, fs *features.FeatureSet) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(fs); err != nil {
		return fmt.Errorf("unable to encode the features: %w", err)
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key.bytes(), buf.Bytes())
	})
	if err != nil {
		return fmt.Errorf("unable to put %s: %w", key, err)
	}
	logger.Tracef(ctx, "cache put %s: %d bytes", key, buf.Len())
	return nil
}
