package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/orbitalworks/starhold/pkg/types"
)

var (
	// Bucket names
	bucketModules    = []byte("modules")
	bucketBuildings  = []byte("buildings")
	bucketSubModules = []byte("submodules")
	bucketRules      = []byte("rules")
)

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the colony database in dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "starhold.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{bucketModules, bucketBuildings, bucketSubModules, bucketRules}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot replaces the stored colony state with snap
func (s *BoltStore) SaveSnapshot(snap *Snapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := replaceBucket(tx, bucketModules, len(snap.Modules), func(i int) (string, any) {
			return snap.Modules[i].ID, snap.Modules[i]
		}); err != nil {
			return err
		}
		if err := replaceBucket(tx, bucketBuildings, len(snap.Buildings), func(i int) (string, any) {
			return snap.Buildings[i].ID, snap.Buildings[i]
		}); err != nil {
			return err
		}
		if err := replaceBucket(tx, bucketSubModules, len(snap.SubModules), func(i int) (string, any) {
			return snap.SubModules[i].ID, snap.SubModules[i]
		}); err != nil {
			return err
		}
		return replaceBucket(tx, bucketRules, len(snap.Rules), func(i int) (string, any) {
			return snap.Rules[i].ID, snap.Rules[i]
		})
	})
}

func replaceBucket(tx *bolt.Tx, name []byte, n int, item func(i int) (string, any)) error {
	if err := tx.DeleteBucket(name); err != nil {
		return fmt.Errorf("failed to clear bucket %s: %w", name, err)
	}
	b, err := tx.CreateBucket(name)
	if err != nil {
		return fmt.Errorf("failed to recreate bucket %s: %w", name, err)
	}
	for i := 0; i < n; i++ {
		key, value := item(i)
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(key), data); err != nil {
			return err
		}
	}
	return nil
}

// LoadSnapshot reads the stored colony state
func (s *BoltStore) LoadSnapshot() (*Snapshot, error) {
	snap := &Snapshot{}
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketModules).ForEach(func(k, v []byte) error {
			var m types.Module
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			snap.Modules = append(snap.Modules, &m)
			return nil
		}); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBuildings).ForEach(func(k, v []byte) error {
			var b types.Building
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			snap.Buildings = append(snap.Buildings, &b)
			return nil
		}); err != nil {
			return err
		}
		if err := tx.Bucket(bucketSubModules).ForEach(func(k, v []byte) error {
			var sm types.SubModule
			if err := json.Unmarshal(v, &sm); err != nil {
				return err
			}
			snap.SubModules = append(snap.SubModules, &sm)
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket(bucketRules).ForEach(func(k, v []byte) error {
			var r types.Rule
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			snap.Rules = append(snap.Rules, &r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
