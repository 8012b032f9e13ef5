// Package registration persists voter registration requests submitted
// through the write surface, keyed by transaction id.
package registration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound      = errors.New("registration not found")
	ErrAlreadyExists = errors.New("registration already exists")
)

// Request is a voter registration request. The Form carries the
// submitted registration payload verbatim.
type Request struct {
	TransactionID string          `json:"transaction_id"`
	Type          string          `json:"type,omitempty"`
	GeneratedDate string          `json:"generated_date,omitempty"`
	Form          json.RawMessage `json:"form"`
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS registration_requests (
    transaction_id TEXT PRIMARY KEY,
    payload        BLOB NOT NULL,
    created_at     TEXT NOT NULL,
    updated_at     TEXT NOT NULL
);
`

// Store keeps registration requests in a local sqlite database.
// Payloads are snappy-compressed JSON.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the registration database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open registration db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize registration db: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromDB wraps an existing database handle. The schema must
// already exist or be creatable.
func NewStoreFromDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize registration db: %w", err)
	}
	return &Store{db: db}, nil
}

// Insert stores a new registration request. A request without a
// transaction id is assigned a fresh one; the stored request is
// returned either way.
func (s *Store) Insert(ctx context.Context, req Request) (Request, error) {
	if req.TransactionID == "" {
		req.TransactionID = uuid.New().String()
	}
	payload, err := encodePayload(req)
	if err != nil {
		return Request{}, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO registration_requests (transaction_id, payload, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		req.TransactionID, payload, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return Request{}, ErrAlreadyExists
		}
		return Request{}, fmt.Errorf("failed to insert registration: %w", err)
	}
	return req, nil
}

// Lookup returns the stored request for a transaction id.
func (s *Store) Lookup(ctx context.Context, transactionID string) (Request, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM registration_requests WHERE transaction_id = ?`,
		transactionID).Scan(&payload)
	if err == sql.ErrNoRows {
		return Request{}, ErrNotFound
	}
	if err != nil {
		return Request{}, fmt.Errorf("failed to look up registration: %w", err)
	}
	return decodePayload(payload)
}

// Update replaces the stored request for an existing transaction id.
func (s *Store) Update(ctx context.Context, req Request) error {
	if req.TransactionID == "" {
		return ErrNotFound
	}
	payload, err := encodePayload(req)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE registration_requests SET payload = ?, updated_at = ? WHERE transaction_id = ?`,
		payload, now, req.TransactionID)
	if err != nil {
		return fmt.Errorf("failed to update registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update registration: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove deletes the stored request for a transaction id.
func (s *Store) Remove(ctx context.Context, transactionID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM registration_requests WHERE transaction_id = ?`,
		transactionID)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func encodePayload(req Request) ([]byte, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode registration: %w", err)
	}
	return snappy.Encode(nil, raw), nil
}

func decodePayload(payload []byte) (Request, error) {
	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return Request{}, fmt.Errorf("failed to decompress registration: %w", err)
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, fmt.Errorf("failed to decode registration: %w", err)
	}
	return req, nil
}

// sqlite reports primary key conflicts as constraint errors; matching
// the message avoids a hard dependency on driver error codes.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint violation")
}
