// Package query orchestrates one voter-warehouse query: schema
// validation, filter compilation, cursor resolution, planning, storage
// execution, result shaping, and next-cursor emission.
package query

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/errors"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/observability"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/query/cursor"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/query/filter"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/query/planner"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/query/shaper"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/schema"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/storage"
	"github.com/ion-oset/Electorate-Vanadium-Backend/pkg/types"
)

// State names the steps of one request's lifecycle, used in logs.
// Every failure is terminal; no step is retried.
type State string

const (
	StateReceived       State = "received"
	StateValidated      State = "validated"
	StateFilterCompiled State = "filter_compiled"
	StateCursorResolved State = "cursor_resolved"
	StateStoragePending State = "storage_pending"
	StateShaping        State = "shaping"
	StateComplete       State = "complete"
	StateFailed         State = "failed"
)

// Request is one query call against an entity.
type Request struct {
	Entity   string            `json:"entity"`
	Filter   *filter.RawNode   `json:"filter,omitempty"`
	Sort     []types.SortField `json:"sort,omitempty"`
	PageSize int               `json:"page_size,omitempty"`
	Cursor   string            `json:"cursor,omitempty"`
}

// Service is the query orchestrator. It is stateless per request; the
// only shared state is the read-only schema registry snapshot and the
// predicate stats tracker.
type Service struct {
	registry  *schema.Registry
	warehouse storage.Warehouse
	planner   *planner.Planner
	compiler  *filter.Compiler
	stats     *observability.PredicateStats
	timeout   time.Duration
}

// Config holds query service tunables.
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
	MaxFilterDepth  int

	// Timeout bounds one query end to end, storage execution included.
	// Zero disables the deadline.
	Timeout time.Duration
}

// NewService creates a query service. stats may be nil to disable
// predicate tracking.
func NewService(registry *schema.Registry, warehouse storage.Warehouse, cfg Config, stats *observability.PredicateStats) *Service {
	return &Service{
		registry:  registry,
		warehouse: warehouse,
		planner:   &planner.Planner{DefaultPageSize: cfg.DefaultPageSize, MaxPageSize: cfg.MaxPageSize},
		compiler:  &filter.Compiler{MaxDepth: cfg.MaxFilterDepth},
		stats:     stats,
		timeout:   cfg.Timeout,
	}
}

// Query executes one request and returns a shaped page. Any failure
// aborts the request immediately; partial results are never returned.
func (s *Service) Query(ctx context.Context, req Request) (*types.Page, error) {
	started := time.Now()
	state := StateReceived

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	page, err := s.run(ctx, req, &state)
	entry := log.WithFields(log.Fields{
		"entity":      req.Entity,
		"state":       state,
		"duration_ms": time.Since(started).Milliseconds(),
	})
	if err != nil {
		entry.WithFields(log.Fields{
			"error_code": errors.GetCode(err),
		}).Debug("query failed")
		return nil, err
	}
	entry.WithField("records", len(page.Records)).Debug("query complete")
	return page, nil
}

func (s *Service) run(ctx context.Context, req Request, state *State) (*types.Page, error) {
	fail := func(err error) (*types.Page, error) {
		*state = StateFailed
		return nil, err
	}

	sch, err := s.registry.Lookup(req.Entity)
	if err != nil {
		return fail(err)
	}
	*state = StateValidated

	expr, err := s.compiler.Compile(sch, req.Filter)
	if err != nil {
		return fail(err)
	}
	sortSpec, err := planner.EffectiveSort(sch, req.Sort)
	if err != nil {
		return fail(err)
	}
	fingerprint := filter.Fingerprint(sch.Name, expr, sortSpec)
	*state = StateFilterCompiled

	s.recordPredicates(sch.Name, expr)

	var lastKey []any
	if req.Cursor != "" {
		lastKey, err = cursor.Decode(req.Cursor, sch.Name, fingerprint, len(sortSpec))
		if err != nil {
			return fail(err)
		}
	}
	*state = StateCursorResolved

	pageSize := s.planner.ClampPageSize(req.PageSize)
	sq, err := s.planner.Plan(sch, expr, sortSpec, lastKey, pageSize)
	if err != nil {
		return fail(err)
	}

	*state = StateStoragePending
	rows, err := s.warehouse.Execute(ctx, sq)
	if err != nil {
		// A cancelled request yields no response, not a truncated one.
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		return fail(errors.NewBackendError("warehouse query failed", err))
	}

	*state = StateShaping
	res := shaper.Shape(sch, rows, pageSize)

	page := &types.Page{
		Records: res.Records,
		HasMore: res.HasMore,
	}
	if page.Records == nil {
		page.Records = []types.Record{}
	}
	if res.HasMore {
		key := make([]any, len(sortSpec))
		for i, sf := range sortSpec {
			key[i] = res.LastRow[sf.Field]
		}
		token, err := cursor.Encode(sch.Name, fingerprint, key)
		if err != nil {
			return fail(err)
		}
		page.NextCursor = token
	}

	*state = StateComplete
	return page, nil
}

// recordPredicates walks the compiled tree and records every leaf.
func (s *Service) recordPredicates(entity string, expr filter.Expr) {
	if s.stats == nil {
		return
	}
	var walk func(filter.Expr)
	walk = func(e filter.Expr) {
		switch n := e.(type) {
		case *filter.Leaf:
			s.stats.Record(entity, n.Field, string(n.Op))
		case *filter.Combinator:
			for _, ch := range n.Children {
				walk(ch)
			}
		}
	}
	if expr != nil {
		walk(expr)
	}
}
