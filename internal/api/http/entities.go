package http

import (
	"net/http"
	"strings"

	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/schema"
)

// EntityField describes one field of an entity in the API response.
type EntityField struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Filterable bool     `json:"filterable"`
	Sortable   bool     `json:"sortable"`
	Nullable   bool     `json:"nullable"`
	Values     []string `json:"values,omitempty"`
}

// EntityDescription describes one queryable entity.
type EntityDescription struct {
	Name       string        `json:"name"`
	Tiebreaker string        `json:"tiebreaker"`
	Fields     []EntityField `json:"fields"`
}

// EntitiesResponse lists the queryable entities.
type EntitiesResponse struct {
	Entities  []string `json:"entities"`
	RequestID string   `json:"request_id"`
}

// EntitiesHandler handles GET /v1/entities and GET /v1/entities/{name}.
type EntitiesHandler struct {
	registry *schema.Registry
}

// NewEntitiesHandler creates a new entities handler.
func NewEntitiesHandler(registry *schema.Registry) *EntitiesHandler {
	return &EntitiesHandler{registry: registry}
}

func (h *EntitiesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "", requestID)
		return
	}

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/entities"), "/")
	if name == "" {
		schemas := h.registry.Entities()
		names := make([]string, 0, len(schemas))
		for _, sch := range schemas {
			names = append(names, sch.Name)
		}
		writeJSON(w, http.StatusOK, EntitiesResponse{
			Entities:  names,
			RequestID: requestID,
		})
		return
	}

	sch, err := h.registry.Lookup(name)
	if err != nil {
		writeServiceError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, describeEntity(sch))
}

// describeEntity projects the schema for API consumers. Non-output
// fields that are neither filterable nor sortable stay hidden.
func describeEntity(sch *schema.EntitySchema) EntityDescription {
	desc := EntityDescription{
		Name:       sch.Name,
		Tiebreaker: sch.Tiebreaker,
	}
	for _, f := range sch.Fields {
		if !f.Output && !f.Filterable && !f.Sortable {
			continue
		}
		desc.Fields = append(desc.Fields, EntityField{
			Name:       f.Name,
			Type:       string(f.Type),
			Filterable: f.Filterable,
			Sortable:   f.Sortable,
			Nullable:   f.Nullable,
			Values:     f.Values,
		})
	}
	return desc
}
