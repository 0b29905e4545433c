package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Store persists checkpoints grouped by job.
type Store interface {
	Put(job string, cp *Checkpoint) error
	Get(job, seed string) (*Checkpoint, error)
	List(job string) ([]*Checkpoint, error)
	Close() error
}

// BoltStore implements Store using BoltDB, one bucket per job keyed by
// seed URL.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore creates a new BoltDB-backed checkpoint store.
func NewBoltStore(path string) (*BoltStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// Path returns the database file.
func (s *BoltStore) Path() string {
	return s.path
}

// Put saves a checkpoint, replacing any earlier one for the same seed.
func (s *BoltStore) Put(job string, cp *Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(job))
		if err != nil {
			return err
		}
		return b.Put([]byte(cp.Seed), data)
	})
}

// Get loads the checkpoint for seed, or nil when there is none.
func (s *BoltStore) Get(job, seed string) (*Checkpoint, error) {
	var cp *Checkpoint

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(job))
		if b == nil {
			return nil
		}

		data := b.Get([]byte(seed))
		if data == nil {
			return nil // Not found, but not an error
		}

		cp = &Checkpoint{}
		return json.Unmarshal(data, cp)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}

// List returns every checkpoint of job, ordered by seed URL.
func (s *BoltStore) List(job string) ([]*Checkpoint, error) {
	var out []*Checkpoint

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(job))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			cp := &Checkpoint{}
			if err := json.Unmarshal(v, cp); err != nil {
				return err
			}
			out = append(out, cp)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// MemoryStore implements Store using in-memory storage.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]map[string]*Checkpoint
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]map[string]*Checkpoint)}
}

// Put saves a checkpoint in memory.
func (s *MemoryStore) Put(job string, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jobs[job] == nil {
		s.jobs[job] = make(map[string]*Checkpoint)
	}
	s.jobs[job][cp.Seed] = cp
	return nil
}

// Get returns the stored checkpoint, or nil.
func (s *MemoryStore) Get(job, seed string) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[job][seed], nil
}

// List returns the checkpoints of job in no particular order.
func (s *MemoryStore) List(job string) ([]*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Checkpoint, 0, len(s.jobs[job]))
	for _, cp := range s.jobs[job] {
		out = append(out, cp)
	}
	return out, nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}
