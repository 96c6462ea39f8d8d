// Package store persists world map bytes in a single BoltDB file. A "meta"
// bucket is created on open, but nothing is written to it. The on-disk
// layout is internal to this package: it
// is not part of the wire protocol and is not the interoperable map
// format the core spec excludes (see SPEC_FULL.md §4.3).
package store

import (
	"fmt"

	"github.com/boltdb/bolt"
	"github.com/rs/zerolog"
)

var (
	blocksBucket = []byte("blocks")
	metaBucket   = []byte("meta")
)

// Store wraps a BoltDB handle with the world-keyed operations World needs.
type Store struct {
	db  *bolt.DB
	log zerolog.Logger
}

// Open creates or opens the BoltDB file at path, creating its buckets if
// necessary. Open requires a real path; cmd/gocraftd always calls it with
// its -store flag, and an empty path fails here.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0666, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(blocksBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init buckets: %w", err)
	}

	// Steady-state ticks should not pay for an fsync on every autosave;
	// World.Tick() already throttles how often SaveAsync runs.
	db.NoSync = true

	return &Store{db: db, log: log}, nil
}

// Close flushes and closes the underlying database file.
func (s *Store) Close() error {
	if err := s.db.Sync(); err != nil {
		return err
	}
	return s.db.Close()
}

// Load returns the persisted block array for world, if one exists.
func (s *Store) Load(world string) ([]byte, bool, error) {
	var blocks []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(blocksBucket).Get([]byte(world))
		if v == nil {
			return nil
		}
		blocks = make([]byte, len(v))
		copy(blocks, v)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return blocks, blocks != nil, nil
}

// Save writes blocks for world synchronously.
func (s *Store) Save(world string, blocks []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blocksBucket).Put([]byte(world), blocks)
	})
}

// SaveAsync writes blocks for world on a background goroutine so a slow
// disk never stalls the server's tick loop. blocks must not be mutated by
// the caller after this call; World.Tick() passes a private snapshot.
func (s *Store) SaveAsync(world string, blocks []byte) {
	go func() {
		if err := s.Save(world, blocks); err != nil {
			s.log.Warn().Err(err).Str("world", world).Msg("autosave failed")
		}
	}()
}
