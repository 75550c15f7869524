// Package badger implements the data access layer on BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v2"
	"go.uber.org/zap"
)

// Key prefixes. Numeric key parts are zero-padded so lexicographic order
// matches numeric order.
const (
	keyParams  = "params"
	keyCurrent = "current"

	prefixBlock    = "block:"
	prefixFork     = "fork:"
	prefixIdentity = "idty:"
	prefixMS       = "ms:"
	prefixCert     = "cert:"
	prefixLinkTo   = "link_to:"
	prefixLinkFrom = "link_from:"
	prefixSource   = "src:"

	prefixPendingIdentity = "pidty:"
	prefixPendingMS       = "pms:"
	prefixPendingCert     = "pcert:"
	prefixPendingTx       = "ptx:"

	prefixStat = "stat:"
)

type (
	// Metrics observes repository operations.
	Metrics interface {
		Observe(operation string, err error, started time.Time)
	}

	nopMetrics struct{}
)

func (nopMetrics) Observe(string, error, time.Time) {}

// Repository is the BadgerDB-backed DAL.
type Repository struct {
	db      *badgerdb.DB
	metrics Metrics
	logger  *zap.Logger
}

// New opens the database at dir.
func New(dir string, metrics Metrics, logger *zap.Logger) (*Repository, error) {
	if dir == "" {
		return nil, errors.New("badger directory is required")
	}
	options := badgerdb.DefaultOptions(dir).
		WithLogger(nil).
		WithSyncWrites(true)
	return open(options, metrics, logger)
}

// NewInMemory opens a database that lives in memory only, used in tests.
func NewInMemory(metrics Metrics, logger *zap.Logger) (*Repository, error) {
	options := badgerdb.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	return open(options, metrics, logger)
}

func open(options badgerdb.Options, metrics Metrics, logger *zap.Logger) (*Repository, error) {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	db, err := badgerdb.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", options.Dir, err)
	}
	return &Repository{db: db, metrics: metrics, logger: logger.Named("badger")}, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func numKey(prefix string, number int64) []byte {
	return []byte(fmt.Sprintf("%s%012d", prefix, number))
}

func put(txn *badgerdb.Txn, key []byte, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, raw)
}

// get unmarshals the value at key into out. It reports whether the key was
// found.
func get(txn *badgerdb.Txn, key []byte, out any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := item.Value(func(raw []byte) error {
		return json.Unmarshal(raw, out)
	}); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

// scan iterates every value under prefix, decoding into a fresh T for each.
func scan[T any](txn *badgerdb.Txn, prefix string, visit func(key string, value T) error) error {
	options := badgerdb.DefaultIteratorOptions
	options.Prefix = []byte(prefix)
	it := txn.NewIterator(options)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		var value T
		if err := item.Value(func(raw []byte) error {
			return json.Unmarshal(raw, &value)
		}); err != nil {
			return fmt.Errorf("unmarshal %s: %w", item.Key(), err)
		}
		if err := visit(string(item.Key()), value); err != nil {
			return err
		}
	}
	return nil
}

// scanKeys collects the keys under prefix whose decoded value matches keep.
func scanKeys[T any](txn *badgerdb.Txn, prefix string, keep func(T) bool) ([][]byte, error) {
	var keys [][]byte
	err := scan(txn, prefix, func(key string, value T) error {
		if keep(value) {
			keys = append(keys, []byte(key))
		}
		return nil
	})
	return keys, err
}

// deleteMatching removes every key under prefix whose value matches keep.
func deleteMatching[T any](txn *badgerdb.Txn, prefix string, keep func(T) bool) error {
	keys, err := scanKeys(txn, prefix, keep)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) observe(op string, err error, started time.Time) {
	r.metrics.Observe(op, err, started)
}

func (r *Repository) view(ctx context.Context, op string, fn func(txn *badgerdb.Txn) error) error {
	started := time.Now()
	err := ctx.Err()
	if err == nil {
		err = r.db.View(fn)
	}
	r.observe(op, err, started)
	return err
}

func (r *Repository) update(ctx context.Context, op string, fn func(txn *badgerdb.Txn) error) error {
	started := time.Now()
	err := ctx.Err()
	if err == nil {
		err = r.db.Update(fn)
	}
	r.observe(op, err, started)
	return err
}
