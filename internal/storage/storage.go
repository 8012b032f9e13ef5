// Package storage provides warehouse access for the query engine. The
// core treats the warehouse as an opaque boundary: planners emit a
// structured StorageQuery and adapters translate it to whatever backend
// they wrap.
package storage

import (
	"context"
	"errors"

	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/query/filter"
	"github.com/ion-oset/Electorate-Vanadium-Backend/pkg/types"
)

// Common errors for warehouse operations. The query service surfaces
// any adapter failure as a single BACKEND_ERROR without retrying.
var (
	ErrUnavailable = errors.New("warehouse unavailable")
	ErrTimeout     = errors.New("warehouse timeout")
)

// StorageQuery is a bounded, storage-agnostic query request. The
// predicate includes the keyset seek condition when a cursor is present,
// and Limit is always pageSize+1 so the caller can determine has_more
// without a count query.
type StorageQuery struct {
	// Entity is the logical entity name, for diagnostics.
	Entity string

	// Table is the warehouse table or view to read.
	Table string

	// Columns is the projection: output-visible fields plus any sort
	// fields needed to build the next cursor.
	Columns []string

	// Predicate is the compiled filter tree, nil to match all rows.
	Predicate filter.Expr

	// Sort is the effective sort spec including the tiebreaker.
	Sort types.SortSpec

	// Limit bounds the number of rows returned.
	Limit int
}

// Warehouse executes bounded queries against the backing store.
// Implementations must honor context cancellation: a cancelled request
// returns an error, never partial results.
type Warehouse interface {
	Execute(ctx context.Context, q *StorageQuery) ([]types.Row, error)
	Close() error
}
