package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/query"
	"github.com/ion-oset/Electorate-Vanadium-Backend/pkg/types"
)

// QueryResponse represents the query response.
type QueryResponse struct {
	Records    []types.Record `json:"records"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
	RequestID  string         `json:"request_id"`
}

// QueryHandler handles POST /v1/query requests.
type QueryHandler struct {
	service *query.Service
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(service *query.Service) *QueryHandler {
	return &QueryHandler{
		service: service,
	}
}

// ServeHTTP handles the query HTTP request.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "", requestID)
		return
	}

	var req query.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), "", requestID)
		return
	}

	if req.Entity == "" {
		writeError(w, http.StatusBadRequest, "entity is required", "", requestID)
		return
	}

	page, err := h.service.Query(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, requestID)
		return
	}

	resp := QueryResponse{
		Records:    page.Records,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
		RequestID:  requestID,
	}
	if resp.Records == nil {
		resp.Records = []types.Record{}
	}

	writeJSON(w, http.StatusOK, resp)
}
