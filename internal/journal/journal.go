// Package journal keeps an append-only audit trail of reclaim attempts.
// It is never consulted when deciding what to reclaim.
package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketEntries = []byte("entries")
	bucketByPR    = []byte("by_pr")
)

// Outcome of a single reclaim action.
type Outcome string

const (
	OutcomeRemoved Outcome = "removed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Entry is one journaled action.
type Entry struct {
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"time"`
	PR      int       `json:"pr_number"`
	Kind    string    `json:"kind"`
	Name    string    `json:"name"`
	Action  string    `json:"action"`
	Outcome Outcome   `json:"outcome"`
	Error   string    `json:"error,omitempty"`
}

// Query narrows List. Zero fields are not applied.
type Query struct {
	PR    int
	Since time.Time
	Limit int
}

// Journal is a bbolt-backed audit log. It is safe for concurrent use.
type Journal struct {
	db *bbolt.DB
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketEntries, bucketByPR} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal buckets: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append stores e and returns its sequence number.
func (j *Journal) Append(e Entry) (uint64, error) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	err := j.db.Update(func(tx *bbolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		seq, err := entries.NextSequence()
		if err != nil {
			return err
		}
		e.Seq = seq

		value, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if err := entries.Put(u64(seq), value); err != nil {
			return err
		}
		return tx.Bucket(bucketByPR).Put(prKey(e.PR, seq), nil)
	})
	if err != nil {
		return 0, fmt.Errorf("append journal entry: %w", err)
	}
	return e.Seq, nil
}

// List returns matching entries, oldest first.
func (j *Journal) List(q Query) ([]Entry, error) {
	var out []Entry

	err := j.db.View(func(tx *bbolt.Tx) error {
		entries := tx.Bucket(bucketEntries)

		keep := func(value []byte) (bool, error) {
			var e Entry
			if err := json.Unmarshal(value, &e); err != nil {
				return false, err
			}
			if !q.Since.IsZero() && e.Time.Before(q.Since) {
				return true, nil
			}
			out = append(out, e)
			return q.Limit <= 0 || len(out) < q.Limit, nil
		}

		if q.PR > 0 {
			prefix := u64(uint64(q.PR))
			c := tx.Bucket(bucketByPR).Cursor()
			for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
				more, err := keep(entries.Get(k[8:]))
				if err != nil {
					return err
				}
				if !more {
					return nil
				}
			}
			return nil
		}

		c := entries.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			more, err := keep(v)
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	return out, nil
}

func u64(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func prKey(pr int, seq uint64) []byte {
	k := make([]byte, 16)
	binary.BigEndian.PutUint64(k[:8], uint64(pr))
	binary.BigEndian.PutUint64(k[8:], seq)
	return k
}
