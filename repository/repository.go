// Package repository defines the swap-record store contract shared by the
// kvstore (embedded, bbolt-backed) and the two SQL backends (sqlstore,
// pgstore), per spec §4.2. It mirrors the teacher's db package's
// InitDatabase/Stores split between backend selection and access, adapted
// from a tapdb-store wrapper to a direct swap-record repository.
package repository

import (
	"context"
	"time"

	"github.com/btcsuite/btclog"

	"github.com/arkade-os/go-swap-engine/types"
)

// log is the package-level logger, wired via UseLogger following the
// lnd/taproot-assets convention; disabled until the application wires a
// real backend.
var log = btclog.Disabled

// UseLogger sets the package-wide logger. The repository backends do not
// write to it.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// OrderDirection controls GetAll's createdAt ordering, per spec §4.2.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// Filter selects a subset of records from GetAll, per spec §4.2. A nil
// slice field means "no constraint on this field"; a non-nil empty slice
// means "match nothing" (the empty-set-yields-empty-result rule).
type Filter struct {
	IDs      []types.SwapId
	Statuses []types.Status
	Kinds    []types.SwapKind

	OrderBy        string // only "createdAt" is meaningful today
	OrderDirection OrderDirection
}

// Repository is the shared swap-record store contract, per spec §4.2:
// save is upsert, reads observe prior completed writes, clear wipes
// everything, Close releases backend resources. The kvstore backend
// creates its buckets on first write; the SQL backends connect and run
// their migrations in Open rather than on first operation.
type Repository interface {
	// Save upserts record, replacing any existing record sharing its ID.
	Save(ctx context.Context, record *types.SwapRecord) error

	// Delete removes the record with the given id. Deleting a
	// non-existent id is not an error.
	Delete(ctx context.Context, id types.SwapId) error

	// GetAll returns every record matching filter, ordered per
	// filter.OrderBy/OrderDirection. A nil filter matches everything in
	// unspecified order.
	GetAll(ctx context.Context, filter *Filter) ([]*types.SwapRecord, error)

	// Get returns the single record with the given id, or
	// (nil, ErrNotFound).
	Get(ctx context.Context, id types.SwapId) (*types.SwapRecord, error)

	// Clear wipes all records.
	Clear(ctx context.Context) error

	// Close releases backend resources (file handles, connection pools).
	Close() error
}

// Matches applies f to record using only in-memory comparisons; SQL
// backends additionally push these predicates into the query itself, but
// this helper lets all three backends share one definition of "match" for
// validation and for the kvstore's secondary-index scan fallback.
func Matches(r *types.SwapRecord, f *Filter) bool {
	if f == nil {
		return true
	}
	if f.IDs != nil {
		if len(f.IDs) == 0 {
			return false
		}
		if !containsID(f.IDs, r.ID) {
			return false
		}
	}
	if f.Statuses != nil {
		if len(f.Statuses) == 0 {
			return false
		}
		if !containsStatus(f.Statuses, r.Status) {
			return false
		}
	}
	if f.Kinds != nil {
		if len(f.Kinds) == 0 {
			return false
		}
		if !containsKind(f.Kinds, r.Kind) {
			return false
		}
	}
	return true
}

func containsID(set []types.SwapId, v types.SwapId) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsStatus(set []types.Status, v types.Status) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsKind(set []types.SwapKind, v types.SwapKind) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// SortRecords orders records in place per f, defaulting to createdAt
// ascending when f is nil or OrderBy is unset.
func SortRecords(records []*types.SwapRecord, f *Filter) {
	desc := f != nil && f.OrderDirection == OrderDesc
	// Insertion sort: record sets are small (per-user swap history), and
	// this avoids pulling in a generic sort helper for its one call site
	// in kvstore.
	for i := 1; i < len(records); i++ {
		for j := i; j > 0; j-- {
			a, b := records[j-1].CreatedAt, records[j].CreatedAt
			swap := a.After(b)
			if desc {
				swap = a.Before(b)
			}
			if !swap {
				break
			}
			records[j-1], records[j] = records[j], records[j-1]
		}
	}
}

// ensureCreatedAt defaults CreatedAt to now for records saved without one
// set, matching the teacher's clock.NewDefaultClock() convention for
// giving storage layers a testable time source.
func ensureCreatedAt(r *types.SwapRecord, now time.Time) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
}
