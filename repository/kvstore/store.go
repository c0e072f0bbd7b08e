// Package kvstore implements the embedded indexed backend of spec §4.2's
// repository contract, over btcwallet's walletdb (bbolt via the bdb
// driver), mirroring the way the teacher's WalletAnchor opens a walletdb.DB
// keyed by a file path (lightweight-wallet/wallet/btcwallet/wallet.go).
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb" // bdb (bbolt) driver
	"golang.org/x/exp/slices"

	"github.com/arkade-os/go-swap-engine/repository"
	"github.com/arkade-os/go-swap-engine/types"
)

const dbDriver = "bdb"

var (
	recordsBucket = []byte("swap-records")
	statusIndex   = []byte("status-index")
	kindIndex     = []byte("kind-index")
)

// Store is the walletdb-backed Repository implementation. It is safe for
// concurrent use; walletdb serializes transactions internally.
type Store struct {
	db     walletdb.DB
	closed bool
}

// Open opens (creating if absent) a bdb-backed store at dbPath, lazily
// creating its top-level buckets on first write.
func Open(dbPath string) (*Store, error) {
	db, err := walletdb.Create(dbDriver, dbPath, true, 0)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) ensureBuckets(tx walletdb.ReadWriteTx) error {
	for _, name := range [][]byte{recordsBucket, statusIndex, kindIndex} {
		if _, err := tx.CreateTopLevelBucket(name); err != nil {
			return err
		}
	}
	return nil
}

// Save implements repository.Repository.
func (s *Store) Save(_ context.Context, record *types.SwapRecord) error {
	if s.closed {
		return repository.ErrClosed
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("kvstore: marshal record %s: %w", record.ID, err)
	}

	return s.db.Update(func(tx walletdb.ReadWriteTx) error {
		if err := s.ensureBuckets(tx); err != nil {
			return err
		}

		records := tx.ReadWriteBucket(recordsBucket)
		key := []byte(record.ID)

		// Remove any stale secondary-index entries before re-adding,
		// since Save is an upsert and the status/kind may have changed.
		if existing := records.Get(key); existing != nil {
			var prev types.SwapRecord
			if err := json.Unmarshal(existing, &prev); err == nil {
				removeFromIndex(tx.ReadWriteBucket(statusIndex), string(prev.Status), record.ID)
				removeFromIndex(tx.ReadWriteBucket(kindIndex), string(prev.Kind), record.ID)
			}
		}

		if err := records.Put(key, data); err != nil {
			return err
		}

		addToIndex(tx.ReadWriteBucket(statusIndex), string(record.Status), record.ID)
		addToIndex(tx.ReadWriteBucket(kindIndex), string(record.Kind), record.ID)
		return nil
	}, func() {})
}

// Delete implements repository.Repository.
func (s *Store) Delete(_ context.Context, id types.SwapId) error {
	if s.closed {
		return repository.ErrClosed
	}

	return s.db.Update(func(tx walletdb.ReadWriteTx) error {
		if err := s.ensureBuckets(tx); err != nil {
			return err
		}
		records := tx.ReadWriteBucket(recordsBucket)
		key := []byte(id)

		existing := records.Get(key)
		if existing == nil {
			return nil
		}
		var prev types.SwapRecord
		if err := json.Unmarshal(existing, &prev); err == nil {
			removeFromIndex(tx.ReadWriteBucket(statusIndex), string(prev.Status), id)
			removeFromIndex(tx.ReadWriteBucket(kindIndex), string(prev.Kind), id)
		}
		return records.Delete(key)
	}, func() {})
}

// Get implements repository.Repository.
func (s *Store) Get(_ context.Context, id types.SwapId) (*types.SwapRecord, error) {
	if s.closed {
		return nil, repository.ErrClosed
	}

	var record *types.SwapRecord
	err := s.db.View(func(tx walletdb.ReadTx) error {
		records := tx.ReadBucket(recordsBucket)
		if records == nil {
			return repository.ErrNotFound
		}
		data := records.Get([]byte(id))
		if data == nil {
			return repository.ErrNotFound
		}
		record = &types.SwapRecord{}
		return json.Unmarshal(data, record)
	}, func() {})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetAll implements repository.Repository. It favors the status secondary
// index when filter.Statuses narrows the search, else scans all records.
func (s *Store) GetAll(_ context.Context, filter *repository.Filter) ([]*types.SwapRecord, error) {
	if s.closed {
		return nil, repository.ErrClosed
	}

	var out []*types.SwapRecord
	err := s.db.View(func(tx walletdb.ReadTx) error {
		records := tx.ReadBucket(recordsBucket)
		if records == nil {
			return nil
		}

		if filter != nil && filter.Statuses != nil && len(filter.Statuses) > 0 {
			ids := map[types.SwapId]struct{}{}
			idx := tx.ReadBucket(statusIndex)
			for _, status := range filter.Statuses {
				for _, id := range readIndex(idx, string(status)) {
					ids[id] = struct{}{}
				}
			}
			for id := range ids {
				data := records.Get([]byte(id))
				if data == nil {
					continue
				}
				var r types.SwapRecord
				if err := json.Unmarshal(data, &r); err != nil {
					return err
				}
				if repository.Matches(&r, filter) {
					out = append(out, &r)
				}
			}
			return nil
		}

		return records.ForEach(func(_, data []byte) error {
			var r types.SwapRecord
			if err := json.Unmarshal(data, &r); err != nil {
				return err
			}
			if repository.Matches(&r, filter) {
				out = append(out, &r)
			}
			return nil
		})
	}, func() {})
	if err != nil {
		return nil, err
	}

	repository.SortRecords(out, filter)
	return out, nil
}

// Clear implements repository.Repository.
func (s *Store) Clear(_ context.Context) error {
	if s.closed {
		return repository.ErrClosed
	}
	return s.db.Update(func(tx walletdb.ReadWriteTx) error {
		for _, name := range [][]byte{recordsBucket, statusIndex, kindIndex} {
			if err := tx.DeleteTopLevelBucket(name); err != nil && err != walletdb.ErrBucketNotFound {
				return err
			}
		}
		return s.ensureBuckets(tx)
	}, func() {})
}

// Close implements repository.Repository.
func (s *Store) Close() error {
	s.closed = true
	return s.db.Close()
}

func addToIndex(bucket walletdb.ReadWriteBucket, key string, id types.SwapId) {
	ids := readIndexFromBucket(bucket, key)
	if slices.Contains(ids, id) {
		return
	}
	ids = append(ids, id)
	writeIndex(bucket, key, ids)
}

func removeFromIndex(bucket walletdb.ReadWriteBucket, key string, id types.SwapId) {
	ids := readIndexFromBucket(bucket, key)
	idx := slices.Index(ids, id)
	if idx < 0 {
		return
	}
	ids = slices.Delete(ids, idx, idx+1)
	writeIndex(bucket, key, ids)
}

func writeIndex(bucket walletdb.ReadWriteBucket, key string, ids []types.SwapId) {
	data, _ := json.Marshal(ids)
	_ = bucket.Put([]byte(key), data)
}

func readIndexFromBucket(bucket walletdb.ReadWriteBucket, key string) []types.SwapId {
	data := bucket.Get([]byte(key))
	if data == nil {
		return nil
	}
	var ids []types.SwapId
	_ = json.Unmarshal(data, &ids)
	return ids
}

func readIndex(bucket walletdb.ReadBucket, key string) []types.SwapId {
	if bucket == nil {
		return nil
	}
	data := bucket.Get([]byte(key))
	if data == nil {
		return nil
	}
	var ids []types.SwapId
	_ = json.Unmarshal(data, &ids)
	return ids
}
