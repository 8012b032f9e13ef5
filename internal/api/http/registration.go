package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/registration"
)

// RegistrationSuccess is returned when a stored registration is found.
type RegistrationSuccess struct {
	TransactionID string          `json:"transaction_id"`
	Action        []string        `json:"action,omitempty"`
	Form          json.RawMessage `json:"form,omitempty"`
	RequestID     string          `json:"request_id"`
}

// RegistrationRejection is returned when a registration request fails.
type RegistrationRejection struct {
	Error             string   `json:"error"`
	AdditionalDetails []string `json:"additional_details,omitempty"`
	RequestID         string   `json:"request_id"`
}

const errIdentityLookupFailed = "identity-lookup-failed"

// RegistrationHandler handles the /v1/voter/registration endpoints:
// POST creates, GET /{txn} fetches, PUT /{txn} replaces, DELETE /{txn}
// cancels.
type RegistrationHandler struct {
	store *registration.Store
}

// NewRegistrationHandler creates a new registration handler.
func NewRegistrationHandler(store *registration.Store) *RegistrationHandler {
	return &RegistrationHandler{store: store}
}

func (h *RegistrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	txn := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/voter/registration"), "/")

	switch {
	case r.Method == http.MethodPost && txn == "":
		h.create(w, r, requestID)
	case r.Method == http.MethodGet && txn != "":
		h.fetch(w, r, txn, requestID)
	case r.Method == http.MethodPut && txn != "":
		h.update(w, r, txn, requestID)
	case r.Method == http.MethodDelete && txn != "":
		h.cancel(w, r, txn, requestID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "", requestID)
	}
}

func (h *RegistrationHandler) create(w http.ResponseWriter, r *http.Request, requestID string) {
	req, ok := decodeRegistration(w, r, requestID)
	if !ok {
		return
	}

	stored, err := h.store.Insert(r.Context(), req)
	if errors.Is(err, registration.ErrAlreadyExists) {
		writeJSON(w, http.StatusBadRequest, RegistrationRejection{
			Error:             errIdentityLookupFailed,
			AdditionalDetails: []string{"transaction already exists"},
			RequestID:         requestID,
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store registration: %v", err), "", requestID)
		return
	}

	writeJSON(w, http.StatusCreated, RegistrationSuccess{
		TransactionID: stored.TransactionID,
		Action:        []string{"registration-created"},
		RequestID:     requestID,
	})
}

func (h *RegistrationHandler) fetch(w http.ResponseWriter, r *http.Request, txn, requestID string) {
	stored, err := h.store.Lookup(r.Context(), txn)
	if errors.Is(err, registration.ErrNotFound) {
		writeRegistrationNotFound(w, requestID)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load registration: %v", err), "", requestID)
		return
	}

	writeJSON(w, http.StatusOK, RegistrationSuccess{
		TransactionID: stored.TransactionID,
		Form:          stored.Form,
		RequestID:     requestID,
	})
}

func (h *RegistrationHandler) update(w http.ResponseWriter, r *http.Request, txn, requestID string) {
	req, ok := decodeRegistration(w, r, requestID)
	if !ok {
		return
	}
	req.TransactionID = txn

	err := h.store.Update(r.Context(), req)
	if errors.Is(err, registration.ErrNotFound) {
		writeRegistrationNotFound(w, requestID)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to update registration: %v", err), "", requestID)
		return
	}

	writeJSON(w, http.StatusOK, RegistrationSuccess{
		TransactionID: txn,
		Action:        []string{"registration-updated"},
		RequestID:     requestID,
	})
}

func (h *RegistrationHandler) cancel(w http.ResponseWriter, r *http.Request, txn, requestID string) {
	err := h.store.Remove(r.Context(), txn)
	if errors.Is(err, registration.ErrNotFound) {
		writeRegistrationNotFound(w, requestID)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to cancel registration: %v", err), "", requestID)
		return
	}

	writeJSON(w, http.StatusOK, RegistrationSuccess{
		TransactionID: txn,
		Action:        []string{"registration-cancelled"},
		RequestID:     requestID,
	})
}

func decodeRegistration(w http.ResponseWriter, r *http.Request, requestID string) (registration.Request, bool) {
	var req registration.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), "", requestID)
		return registration.Request{}, false
	}
	if len(req.Form) == 0 {
		writeError(w, http.StatusBadRequest, "form is required", "", requestID)
		return registration.Request{}, false
	}
	return req, true
}

func writeRegistrationNotFound(w http.ResponseWriter, requestID string) {
	writeJSON(w, http.StatusNotFound, RegistrationRejection{
		Error:     errIdentityLookupFailed,
		RequestID: requestID,
	})
}
