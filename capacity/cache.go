//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package capacity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

const (
	// CacheFileName is the name of the cache database in the cache directory.
	CacheFileName = "capacity.db"

	cacheBucket = "fleet_capacity"
)

// TopologyKey identifies the cluster layout a cached capacity belongs to.
// Any change to hosts, engine devices, probe source or margin yields a
// different key.
type TopologyKey struct {
	Hosts   []string
	Engines []EngineDevices
	Source  string
	Margin  float64
}

// Hash returns the cache key for the topology. Host order is irrelevant.
func (tk *TopologyKey) Hash() (string, error) {
	sorted := TopologyKey{
		Hosts:   append([]string{}, tk.Hosts...),
		Engines: tk.Engines,
		Source:  tk.Source,
		Margin:  tk.Margin,
	}
	sort.Strings(sorted.Hosts)

	h, err := hashstructure.Hash(sorted, hashstructure.FormatV2, nil)
	if err != nil {
		return "", errors.Wrap(err, "hashing topology")
	}
	return strconv.FormatUint(h, 16), nil
}

type cacheEntry struct {
	Fleet   *FleetCapacity `json:"fleet"`
	Created time.Time      `json:"created"`
}

// Cache persists fleet capacities in a bbolt database shared by harness
// invocations on the same node.
type Cache struct {
	path string
	db   *bolt.DB
}

// OpenCache opens or creates the cache database in dir.
func OpenCache(dir string) (*Cache, error) {
	path := filepath.Join(dir, CacheFileName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, FaultCacheFailed(path, err)
	}

	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, FaultCacheFailed(path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cacheBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, FaultCacheFailed(path, err)
	}

	return &Cache{path: path, db: db}, nil
}

// Path returns the location of the cache database.
func (c *Cache) Path() string {
	return c.path
}

// Get returns the cached capacity for the key, if present.
func (c *Cache) Get(key string) (*FleetCapacity, time.Time, bool, error) {
	var entry *cacheEntry
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(cacheBucket)).Get([]byte(key))
		if data == nil {
			return nil
		}
		entry = new(cacheEntry)
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, time.Time{}, false, FaultCacheFailed(c.path, err)
	}
	if entry == nil || entry.Fleet == nil {
		return nil, time.Time{}, false, nil
	}
	return entry.Fleet, entry.Created, true, nil
}

// Put stores the capacity under the key.
func (c *Cache) Put(key string, fc *FleetCapacity) error {
	data, err := json.Marshal(&cacheEntry{Fleet: fc, Created: time.Now()})
	if err != nil {
		return err
	}
	if err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(cacheBucket)).Put([]byte(key), data)
	}); err != nil {
		return FaultCacheFailed(c.path, err)
	}
	return nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() (n int, err error) {
	err = c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(cacheBucket)).Stats().KeyN
		return nil
	})
	return
}

// Invalidate drops all cached entries.
func (c *Cache) Invalidate() error {
	if err := c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(cacheBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(cacheBucket))
		return err
	}); err != nil {
		return FaultCacheFailed(c.path, err)
	}
	return nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}
