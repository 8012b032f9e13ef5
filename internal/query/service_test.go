package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	verrors "github.com/ion-oset/Electorate-Vanadium-Backend/internal/errors"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/observability"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/schema"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/storage"
	"github.com/ion-oset/Electorate-Vanadium-Backend/pkg/types"
)

func voterSchema() *schema.EntitySchema {
	return &schema.EntitySchema{
		Name:       "voter",
		Table:      "voters",
		Tiebreaker: "id",
		Fields: []schema.FieldSpec{
			{Name: "id", Type: types.FieldString, Sortable: true, Output: true},
			{Name: "county", Type: types.FieldString, Filterable: true, Output: true},
			{Name: "registered_date", Type: types.FieldDate, Filterable: true, Sortable: true, Output: true},
			{Name: "status", Type: types.FieldEnum, Filterable: true, Output: true, Values: []string{"active", "inactive", "pending"}},
			{Name: "ssn", Type: types.FieldString, Output: false},
		},
	}
}

func voterRows() []types.Row {
	return []types.Row{
		{"id": "v1", "county": "Travis", "registered_date": "2020-01-15", "status": "active", "ssn": "111"},
		{"id": "v2", "county": "Travis", "registered_date": "2020-03-02", "status": "active", "ssn": "222"},
		{"id": "v3", "county": "Travis", "registered_date": "2020-03-02", "status": "pending", "ssn": "333"},
		{"id": "v4", "county": "Dallas", "registered_date": "2019-11-30", "status": "active", "ssn": "444"},
		{"id": "v5", "county": "Travis", "registered_date": "2021-06-10", "status": "inactive", "ssn": "555"},
	}
}

func newTestService(t *testing.T, rows []types.Row) (*Service, *storage.MemoryWarehouse) {
	t.Helper()
	reg, err := schema.NewRegistry(voterSchema())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	wh := storage.NewMemoryWarehouse()
	wh.Load("voters", rows)
	svc := NewService(reg, wh, Config{DefaultPageSize: 50, MaxPageSize: 500, MaxFilterDepth: 10}, nil)
	return svc, wh
}

func travisRequest(pageSize int, cursor string) Request {
	var node Request
	_ = json.Unmarshal([]byte(`{
		"entity": "voter",
		"filter": {"field": "county", "op": "eq", "value": "Travis"},
		"sort": [{"field": "registered_date", "direction": "asc"}]
	}`), &node)
	node.PageSize = pageSize
	node.Cursor = cursor
	return node
}

func recordIDs(page *types.Page) []string {
	ids := make([]string, 0, len(page.Records))
	for _, r := range page.Records {
		ids = append(ids, r["id"].(string))
	}
	return ids
}

func TestService_PagingChain(t *testing.T) {
	svc, _ := newTestService(t, voterRows())
	ctx := context.Background()

	// Travis voters sorted by registered_date asc, tiebreaker id asc:
	// v1, v2, v3, v5.
	page1, err := svc.Query(ctx, travisRequest(2, ""))
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if got := recordIDs(page1); len(got) != 2 || got[0] != "v1" || got[1] != "v2" {
		t.Fatalf("page 1 ids = %v, want [v1 v2]", got)
	}
	if !page1.HasMore || page1.NextCursor == "" {
		t.Fatal("page 1 should have a next cursor")
	}

	page2, err := svc.Query(ctx, travisRequest(2, page1.NextCursor))
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if got := recordIDs(page2); len(got) != 2 || got[0] != "v3" || got[1] != "v5" {
		t.Fatalf("page 2 ids = %v, want [v3 v5]", got)
	}
	// Exactly 4 matches: the lookahead fetch on page 2 comes back short,
	// so the chain ends without an empty trailing page.
	if page2.HasMore || page2.NextCursor != "" {
		t.Errorf("page 2 hasMore=%v cursor=%q, want exhausted", page2.HasMore, page2.NextCursor)
	}
}

func TestService_TiebreakerOrdersEqualKeys(t *testing.T) {
	svc, _ := newTestService(t, voterRows())

	// v2 and v3 share registered_date 2020-03-02; id breaks the tie.
	page, err := svc.Query(context.Background(), travisRequest(10, ""))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	got := recordIDs(page)
	want := []string{"v1", "v2", "v3", "v5"}
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
	if page.HasMore || page.NextCursor != "" {
		t.Error("exhausted result set should not carry a cursor")
	}
}

func TestService_CursorMismatchOnChangedFilter(t *testing.T) {
	svc, _ := newTestService(t, voterRows())
	ctx := context.Background()

	page1, err := svc.Query(ctx, travisRequest(2, ""))
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if page1.NextCursor == "" {
		t.Fatal("page 1 should have a next cursor")
	}

	var dallas Request
	if err := json.Unmarshal([]byte(`{
		"entity": "voter",
		"filter": {"field": "county", "op": "eq", "value": "Dallas"},
		"sort": [{"field": "registered_date", "direction": "asc"}]
	}`), &dallas); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	dallas.PageSize = 2
	dallas.Cursor = page1.NextCursor

	_, err = svc.Query(ctx, dallas)
	if verrors.GetCode(err) != verrors.CodeCursorMismatch {
		t.Fatalf("got %v, want CURSOR_MISMATCH", err)
	}
}

// recordingWarehouse fails the test if storage is reached at all.
type recordingWarehouse struct {
	calls int
}

func (r *recordingWarehouse) Execute(ctx context.Context, q *storage.StorageQuery) ([]types.Row, error) {
	r.calls++
	return nil, nil
}

func (r *recordingWarehouse) Close() error { return nil }

func TestService_RejectsBeforeStorage(t *testing.T) {
	reg, err := schema.NewRegistry(voterSchema())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	wh := &recordingWarehouse{}
	svc := NewService(reg, wh, Config{DefaultPageSize: 50, MaxPageSize: 500, MaxFilterDepth: 10}, nil)

	req := Request{Entity: "voter"}
	if err := json.Unmarshal([]byte(`{
		"filter": {"field": "ssn", "op": "eq", "value": "111"}
	}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	_, err = svc.Query(context.Background(), req)
	if verrors.GetCode(err) != verrors.CodeInvalidFilterField {
		t.Fatalf("got %v, want INVALID_FILTER_FIELD", err)
	}
	if wh.calls != 0 {
		t.Errorf("warehouse called %d times before validation failed", wh.calls)
	}
}

func TestService_UnknownEntity(t *testing.T) {
	svc, _ := newTestService(t, voterRows())

	_, err := svc.Query(context.Background(), Request{Entity: "ballot"})
	if verrors.GetCode(err) != verrors.CodeUnknownEntity {
		t.Fatalf("got %v, want UNKNOWN_ENTITY", err)
	}
}

func TestService_ClampsPageSize(t *testing.T) {
	rows := make([]types.Row, 0, 600)
	for i := 0; i < 600; i++ {
		rows = append(rows, types.Row{
			"id":              fmt.Sprintf("v%04d", i),
			"county":          "Travis",
			"registered_date": "2020-01-01",
			"status":          "active",
		})
	}
	svc, _ := newTestService(t, rows)

	page, err := svc.Query(context.Background(), Request{Entity: "voter", PageSize: 10000})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page.Records) != 500 {
		t.Errorf("records = %d, want 500 (max page size)", len(page.Records))
	}
	if !page.HasMore {
		t.Error("600 rows at page size 500 should report more")
	}
}

func TestService_DefaultPageSize(t *testing.T) {
	rows := make([]types.Row, 0, 60)
	for i := 0; i < 60; i++ {
		rows = append(rows, types.Row{
			"id":              fmt.Sprintf("v%03d", i),
			"county":          "Travis",
			"registered_date": "2020-01-01",
			"status":          "active",
		})
	}
	svc, _ := newTestService(t, rows)

	page, err := svc.Query(context.Background(), Request{Entity: "voter"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page.Records) != 50 {
		t.Errorf("records = %d, want 50 (default page size)", len(page.Records))
	}
}

func TestService_OutputProjection(t *testing.T) {
	svc, _ := newTestService(t, voterRows())

	page, err := svc.Query(context.Background(), Request{Entity: "voter", PageSize: 1})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(page.Records))
	}
	if _, leaked := page.Records[0]["ssn"]; leaked {
		t.Error("non-output field ssn leaked into the record")
	}
	for _, field := range []string{"id", "county", "registered_date", "status"} {
		if _, ok := page.Records[0][field]; !ok {
			t.Errorf("output field %s missing from record", field)
		}
	}
}

// Full traversal visits every matching row exactly once, for any page
// size, and terminates.
func TestService_TraversalExactlyOnce(t *testing.T) {
	rows := make([]types.Row, 0, 37)
	for i := 0; i < 37; i++ {
		rows = append(rows, types.Row{
			"id":              fmt.Sprintf("v%03d", i),
			"county":          "Travis",
			"registered_date": fmt.Sprintf("2020-01-%02d", i%28+1),
			"status":          "active",
		})
	}
	svc, _ := newTestService(t, rows)

	for _, pageSize := range []int{1, 2, 5, 7, 37, 100} {
		seen := map[string]int{}
		cursorToken := ""
		for pages := 0; ; pages++ {
			if pages > 100 {
				t.Fatalf("pageSize %d: traversal did not terminate", pageSize)
			}
			page, err := svc.Query(context.Background(), travisRequest(pageSize, cursorToken))
			if err != nil {
				t.Fatalf("pageSize %d: %v", pageSize, err)
			}
			for _, id := range recordIDs(page) {
				seen[id]++
			}
			if !page.HasMore {
				break
			}
			cursorToken = page.NextCursor
		}
		if len(seen) != 37 {
			t.Errorf("pageSize %d: saw %d distinct rows, want 37", pageSize, len(seen))
		}
		for id, n := range seen {
			if n != 1 {
				t.Errorf("pageSize %d: row %s visited %d times", pageSize, id, n)
			}
		}
	}
}

func TestService_BackendErrorWrapped(t *testing.T) {
	reg, err := schema.NewRegistry(voterSchema())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	svc := NewService(reg, failingWarehouse{}, Config{DefaultPageSize: 50, MaxPageSize: 500, MaxFilterDepth: 10}, nil)

	_, err = svc.Query(context.Background(), Request{Entity: "voter"})
	if verrors.GetCode(err) != verrors.CodeBackendError {
		t.Fatalf("got %v, want BACKEND_ERROR", err)
	}
	if !verrors.IsRetryable(err) {
		t.Error("backend errors should be retryable")
	}
}

type failingWarehouse struct{}

func (failingWarehouse) Execute(ctx context.Context, q *storage.StorageQuery) ([]types.Row, error) {
	return nil, storage.ErrUnavailable
}

func (failingWarehouse) Close() error { return nil }

// blockingWarehouse parks until the request context expires.
type blockingWarehouse struct{}

func (blockingWarehouse) Execute(ctx context.Context, q *storage.StorageQuery) ([]types.Row, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingWarehouse) Close() error { return nil }

func TestService_TimeoutBoundsStorageExecution(t *testing.T) {
	reg, err := schema.NewRegistry(voterSchema())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	svc := NewService(reg, blockingWarehouse{}, Config{
		DefaultPageSize: 50,
		MaxPageSize:     500,
		MaxFilterDepth:  10,
		Timeout:         10 * time.Millisecond,
	}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Query(context.Background(), Request{Entity: "voter"})
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("got %v, want context.DeadlineExceeded", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("query did not honor the configured timeout")
	}
}

func TestService_RecordsPredicateStats(t *testing.T) {
	reg, err := schema.NewRegistry(voterSchema())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	wh := storage.NewMemoryWarehouse()
	wh.Load("voters", voterRows())
	stats := observability.NewPredicateStats(time.Hour)
	svc := NewService(reg, wh, Config{DefaultPageSize: 50, MaxPageSize: 500, MaxFilterDepth: 10}, stats)

	if _, err := svc.Query(context.Background(), travisRequest(10, "")); err != nil {
		t.Fatalf("Query: %v", err)
	}

	top := stats.Top(10)
	if len(top) != 1 {
		t.Fatalf("stats entries = %d, want 1", len(top))
	}
	if top[0].Field != "county" || top[0].Frequency != 1 {
		t.Errorf("stats = %+v, want county with frequency 1", top[0])
	}
}
