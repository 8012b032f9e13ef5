package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/query"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/schema"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/storage"
	"github.com/ion-oset/Electorate-Vanadium-Backend/pkg/types"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry(&schema.EntitySchema{
		Name:       "voter",
		Table:      "voters",
		Tiebreaker: "id",
		Fields: []schema.FieldSpec{
			{Name: "id", Type: types.FieldString, Sortable: true, Output: true},
			{Name: "county", Type: types.FieldString, Filterable: true, Output: true},
			{Name: "status", Type: types.FieldEnum, Filterable: true, Output: true, Values: []string{"active", "inactive"}},
			{Name: "ssn", Type: types.FieldString},
		},
	})
	require.NoError(t, err)
	return reg
}

func testQueryHandler(t *testing.T) http.Handler {
	t.Helper()
	wh := storage.NewMemoryWarehouse()
	wh.Load("voters", []types.Row{
		{"id": "v1", "county": "Travis", "status": "active", "ssn": "111"},
		{"id": "v2", "county": "Dallas", "status": "active", "ssn": "222"},
		{"id": "v3", "county": "Travis", "status": "inactive", "ssn": "333"},
	})
	svc := query.NewService(testRegistry(t), wh, query.Config{DefaultPageSize: 50, MaxPageSize: 500, MaxFilterDepth: 10}, nil)
	return DefaultMiddleware()(NewQueryHandler(svc))
}

func postQuery(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestQueryHandler_Success(t *testing.T) {
	handler := testQueryHandler(t)

	rec := postQuery(t, handler, `{
		"entity": "voter",
		"filter": {"field": "county", "op": "eq", "value": "Travis"}
	}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Records, 2)
	assert.False(t, resp.HasMore)
	assert.NotEmpty(t, resp.RequestID)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	for _, r := range resp.Records {
		assert.NotContains(t, r, "ssn")
	}
}

func TestQueryHandler_StatusMapping(t *testing.T) {
	handler := testQueryHandler(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{
			name:     "unknown entity",
			body:     `{"entity": "ballot"}`,
			wantCode: http.StatusNotFound,
			wantErr:  "UNKNOWN_ENTITY",
		},
		{
			name:     "non-filterable field",
			body:     `{"entity": "voter", "filter": {"field": "ssn", "op": "eq", "value": "111"}}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "INVALID_FILTER_FIELD",
		},
		{
			name:     "type mismatch",
			body:     `{"entity": "voter", "filter": {"field": "status", "op": "eq", "value": "retired"}}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "FILTER_TYPE_MISMATCH",
		},
		{
			name:     "unknown sort field",
			body:     `{"entity": "voter", "sort": [{"field": "ssn", "direction": "asc"}]}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "UNKNOWN_FIELD",
		},
		{
			name:     "malformed cursor",
			body:     `{"entity": "voter", "cursor": "!!not-base64!!"}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "INVALID_CURSOR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postQuery(t, handler, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantErr, resp.Code)
		})
	}
}

func TestQueryHandler_CursorMismatchConflict(t *testing.T) {
	handler := testQueryHandler(t)

	rec := postQuery(t, handler, `{
		"entity": "voter",
		"filter": {"field": "county", "op": "eq", "value": "Travis"},
		"page_size": 1
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.NotEmpty(t, first.NextCursor)

	rec = postQuery(t, handler, `{
		"entity": "voter",
		"filter": {"field": "county", "op": "eq", "value": "Dallas"},
		"page_size": 1,
		"cursor": "`+first.NextCursor+`"
	}`)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CURSOR_MISMATCH", resp.Code)
}

func TestQueryHandler_BadRequests(t *testing.T) {
	handler := testQueryHandler(t)

	rec := postQuery(t, handler, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postQuery(t, handler, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/query", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
