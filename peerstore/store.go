// Package peerstore persists one peer's local element set to disk using an
// embedded BadgerDB, and maintains a Merkle commitment over it. It is
// deliberately outside package ibf: the core reconciliation algebra has no
// persistent storage by design (decoding, subtracting and estimating are
// pure, in-memory operations on value types), and durability is exactly the
// kind of concern the design leaves to an external collaborator. This
// package fills that role the way the blockchain service's Store wrapped
// BadgerDB for block storage — same Open/Close/metrics shape, repurposed to
// hold elements instead of blocks.
package peerstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/swarmguard/setrecon/commitment"
	"github.com/swarmguard/setrecon/ibf"
)

// ErrNotFound is returned by operations that require an element already be
// present.
var ErrNotFound = errors.New("peerstore: element not found")

// Store wraps a BadgerDB keyed by an element's canonical 16-byte encoding,
// plus a running Merkle commitment over insertion order and basic metrics.
type Store struct {
	mu   sync.RWMutex
	db   *badger.DB
	tree *commitment.Tree
	size atomic.Int64

	elements metric.Int64Counter
	gauge    metric.Int64Gauge
}

// Open returns a store rooted at path, creating it if necessary.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(filepath.Clean(path)).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	m := otel.Meter("swarmguard-setrecon-peerstore")
	elements, _ := m.Int64Counter("setrecon_peerstore_elements_total")
	gauge, _ := m.Int64Gauge("setrecon_peerstore_size")
	s := &Store{db: db, tree: commitment.New(), elements: elements, gauge: gauge}
	existing, err := s.All(context.Background())
	if err != nil {
		db.Close()
		return nil, err
	}
	s.size.Store(int64(len(existing)))
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func storageKey(e ibf.Element128) []byte { return e.Bytes() }

// Put inserts e idempotently: re-inserting an already-present element is a
// no-op and does not perturb the Merkle commitment.
func (s *Store) Put(ctx context.Context, e ibf.Element128) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := false
	err := s.db.Update(func(txn *badger.Txn) error {
		k := storageKey(e)
		if _, err := txn.Get(k); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(k, nil); err != nil {
			return err
		}
		s.tree.Append(k)
		inserted = true
		return nil
	})
	if err != nil {
		return err
	}
	if inserted {
		n := s.size.Add(1)
		s.elements.Add(ctx, 1)
		s.gauge.Record(ctx, n)
	}
	return nil
}

// Delete removes e if present. Note this does not retroactively change the
// Merkle commitment, which is append-only by design: Root() reflects the
// insertion history since Open, not the live set.
func (s *Store) Delete(ctx context.Context, e ibf.Element128) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		k := storageKey(e)
		if _, err := txn.Get(k); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		removed = true
		return txn.Delete(k)
	})
	if err != nil {
		return err
	}
	if removed {
		n := s.size.Add(-1)
		s.gauge.Record(ctx, n)
	}
	return nil
}

// Has reports whether e is currently stored.
func (s *Store) Has(_ context.Context, e ibf.Element128) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(storageKey(e))
		return err
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

// All returns every currently stored element. Callers use this to build the
// StrataEstimator and IBF for a reconciliation round.
func (s *Store) All(_ context.Context) ([]ibf.Element128, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ibf.Element128
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().KeyCopy(nil)
			if len(k) != 16 {
				continue
			}
			var b [16]byte
			copy(b[:], k)
			out = append(out, ibf.ElementFromBytes(b))
		}
		return nil
	})
	return out, err
}

// Count returns the number of currently stored elements.
func (s *Store) Count() int64 { return s.size.Load() }

// Root returns the current Merkle commitment over insertion order, a cheap
// tamper-evidence anchor a peer can publish alongside a reconciliation
// sketch. The commitment is held in memory only: it covers the insertions
// made through this Store since Open, not elements already on disk when the
// store was opened.
func (s *Store) Root() commitment.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Root()
}
