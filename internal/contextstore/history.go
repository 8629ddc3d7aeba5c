package contextstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Op names the mutation a revision records.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpEvict  Op = "evict"
)

// Revision is a snapshot of an entry taken right after a mutation.
type Revision struct {
	Number  int       `json:"number"`
	Op      Op        `json:"op"`
	At      time.Time `json:"at"`
	Context Context   `json:"context"`
}

// ContextHistory is every recorded revision of one entry, oldest first.
type ContextHistory struct {
	ID        string     `json:"id"`
	Revisions []Revision `json:"revisions"`
}

// Recorder receives a snapshot after each mutation of the store.
type Recorder interface {
	Record(op Op, c Context, at time.Time) error
}

// History keeps revisions in a BadgerDB directory, keyed by context id.
// Badger locks its directory, so only one process per workspace can hold
// the history open at a time.
type History struct {
	db *badger.DB
}

// OpenHistory opens (or creates) the history database in dirPath.
func OpenHistory(dirPath string) (*History, error) {
	opts := badger.DefaultOptions(dirPath).
		WithLoggingLevel(badger.ERROR)
	return openHistory(opts)
}

// OpenMemoryHistory returns a history that lives only for the process.
func OpenMemoryHistory() (*History, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR)
	return openHistory(opts)
}

func openHistory(opts badger.Options) (*History, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return &History{db: db}, nil
}

// Close closes the BadgerDB instance.
func (h *History) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// Record appends a revision for c.
func (h *History) Record(op Op, c Context, at time.Time) error {
	return h.db.Update(func(txn *badger.Txn) error {
		history := &ContextHistory{ID: c.ID, Revisions: []Revision{}}

		item, err := txn.Get([]byte(c.ID))
		if err == nil {
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, history)
			}); err != nil {
				return fmt.Errorf("failed to unmarshal history: %w", err)
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		history.Revisions = append(history.Revisions, Revision{
			Number:  len(history.Revisions) + 1,
			Op:      op,
			At:      at.UTC(),
			Context: c.clone(),
		})

		data, err := json.Marshal(history)
		if err != nil {
			return fmt.Errorf("failed to marshal history: %w", err)
		}
		return txn.Set([]byte(c.ID), data)
	})
}

// Get returns the history of one entry, which may already be deleted.
func (h *History) Get(id string) (*ContextHistory, error) {
	var history *ContextHistory
	err := h.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return &NotFoundError{ID: id}
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			history = &ContextHistory{}
			return json.Unmarshal(val, history)
		})
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

// IDs returns every id with recorded history, in key order.
func (h *History) IDs() ([]string, error) {
	ids := []string{}
	err := h.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return ids, err
}
