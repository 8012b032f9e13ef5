package http

import (
	"net/http"
	"strconv"

	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/observability"
)

// StatsResponse lists the hottest filter predicates.
type StatsResponse struct {
	Predicates []observability.FieldStats `json:"predicates"`
	RequestID  string                     `json:"request_id"`
}

// StatsHandler handles GET /v1/stats/predicates requests.
type StatsHandler struct {
	stats *observability.PredicateStats
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(stats *observability.PredicateStats) *StatsHandler {
	return &StatsHandler{stats: stats}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "", requestID)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", "", requestID)
			return
		}
		limit = n
	}

	top := h.stats.Top(limit)
	if top == nil {
		top = []observability.FieldStats{}
	}
	writeJSON(w, http.StatusOK, StatsResponse{Predicates: top, RequestID: requestID})
}
