// Package store provides persistent storage of labelled training examples
// using BoltDB. Every example added during data collection is recorded here,
// so a training run can be replayed or extended without recomputing
// features.
package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const examplesBucket = "examples"

// Example is one labelled feature vector as recorded at collection time.
type Example struct {
	Label     bool      `json:"label"`
	Values    []float64 `json:"values"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists labelled examples for one or more models sharing a data
// directory. Safe for concurrent use; BoltDB serializes writers.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the example database under dataPath.
func Open(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "svmcascade-examples.db")
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open example database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(examplesBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create examples bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Append records one labelled example under a model label. Keys are
// "<label>_<nanos>_<seq>" so examples replay in insertion order per model.
func (s *Store) Append(label string, ex Example) error {
	if ex.Timestamp.IsZero() {
		ex.Timestamp = time.Now()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(examplesBucket))
		data, err := json.Marshal(ex)
		if err != nil {
			return fmt.Errorf("marshal example: %w", err)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		key := fmt.Sprintf("%s_%d_%012d", label, ex.Timestamp.UnixNano(), seq)
		return b.Put([]byte(key), data)
	})
}

// Replay streams every example stored under a model label, in insertion
// order.
func (s *Store) Replay(label string, fn func(Example) error) error {
	prefix := []byte(label + "_")
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(examplesBucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var ex Example
			if err := json.Unmarshal(v, &ex); err != nil {
				return fmt.Errorf("unmarshal example %s: %w", k, err)
			}
			if err := fn(ex); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of examples stored under a model label.
func (s *Store) Count(label string) (int, error) {
	n := 0
	err := s.Replay(label, func(Example) error {
		n++
		return nil
	})
	return n, err
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
