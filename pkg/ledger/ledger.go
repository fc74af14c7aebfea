// Package ledger records which items a long-running worker has finished, in
// a bbolt file that survives restarts.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var bucketDone = []byte("done")

// Entry describes a finished item.
type Entry struct {
	Key      string    `json:"key"`
	Records  int       `json:"records"`
	Finished time.Time `json:"finished"`
}

// Ledger is a bbolt-backed set of finished keys.
type Ledger struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens or creates the ledger file at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDone)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create bucket: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

// Close closes the file.
func (l *Ledger) Close() error { return l.db.Close() }

// Done reports whether key has been marked.
func (l *Ledger) Done(key string) (bool, error) {
	var found bool
	err := l.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketDone).Get([]byte(key)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("ledger: view: %w", err)
	}
	return found, nil
}

// Mark records key as finished with the number of records it produced.
func (l *Ledger) Mark(key string, records int) error {
	data, err := json.Marshal(Entry{Key: key, Records: records, Finished: l.now().UTC()})
	if err != nil {
		return fmt.Errorf("ledger: encode: %w", err)
	}
	err = l.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDone).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("ledger: mark %s: %w", key, err)
	}
	return nil
}

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("ledger: not found")

// Get returns the entry for key.
func (l *Ledger) Get(key string) (Entry, error) {
	var e Entry
	err := l.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketDone).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &e)
	})
	return e, err
}

// Forget removes key so the item is processed again.
func (l *Ledger) Forget(key string) error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDone).Delete([]byte(key))
	})
}

// Len returns the number of finished keys.
func (l *Ledger) Len() (int, error) {
	var n int
	err := l.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketDone).Stats().KeyN
		return nil
	})
	return n, err
}
