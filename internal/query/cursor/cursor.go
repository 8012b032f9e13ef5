// Package cursor implements the opaque pagination token codec. A cursor
// binds the last-seen sort key tuple to the fingerprint of the compiled
// filter and sort spec it was issued under; replaying it against a
// different query fails decode instead of silently returning wrong rows.
//
// The token is integrity-checked, not encrypted: a CRC-32 checksum over
// the payload detects tampering and truncation.
package cursor

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"strconv"

	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/errors"
)

// DirectionForward is the only traversal direction currently issued.
const DirectionForward = "fwd"

// value kind tags used in key parts.
const (
	kindString = "s"
	kindInt    = "i"
	kindBool   = "b"
	kindNull   = "n"
)

// keyPart is one typed component of the sort key tuple. Values are
// carried as strings with an explicit kind tag so that decoding restores
// the exact Go value that was encoded.
type keyPart struct {
	Kind  string `json:"t"`
	Value string `json:"v"`
}

// payload is the serialized cursor content.
type payload struct {
	Entity      string    `json:"e"`
	Fingerprint uint64    `json:"f"`
	Key         []keyPart `json:"k"`
	Direction   string    `json:"d"`
}

// Encode builds an opaque cursor token from the last row's sort key
// tuple. The key values must be ordered to match the sort spec.
func Encode(entity string, fingerprint uint64, key []any) (string, error) {
	p := payload{
		Entity:      entity,
		Fingerprint: fingerprint,
		Direction:   DirectionForward,
		Key:         make([]keyPart, len(key)),
	}
	for i, v := range key {
		part, err := encodePart(v)
		if err != nil {
			return "", err
		}
		p.Key[i] = part
	}

	body, err := json.Marshal(p)
	if err != nil {
		return "", errors.NewInternalError("failed to serialize cursor", err)
	}

	sum := crc32.ChecksumIEEE(body)
	token := make([]byte, len(body)+4)
	copy(token, body)
	binary.BigEndian.PutUint32(token[len(body):], sum)
	return base64.RawURLEncoding.EncodeToString(token), nil
}

// Decode validates a cursor token against the current request's entity
// and fingerprint and returns the sort key tuple it carries.
//
// A malformed or tampered token fails with INVALID_CURSOR; a structurally
// valid token issued under a different filter/sort fails with
// CURSOR_MISMATCH.
func Decode(token, entity string, fingerprint uint64, sortLen int) ([]any, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, errors.New(errors.ErrCategoryCursor, errors.CodeInvalidCursor,
			"cursor token is not valid base64")
	}
	if len(raw) < 5 {
		return nil, errors.New(errors.ErrCategoryCursor, errors.CodeInvalidCursor,
			"cursor token is truncated")
	}

	body := raw[:len(raw)-4]
	sum := binary.BigEndian.Uint32(raw[len(raw)-4:])
	if crc32.ChecksumIEEE(body) != sum {
		return nil, errors.New(errors.ErrCategoryCursor, errors.CodeInvalidCursor,
			"cursor checksum mismatch")
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, errors.New(errors.ErrCategoryCursor, errors.CodeInvalidCursor,
			"cursor payload is malformed")
	}
	if p.Direction != DirectionForward {
		return nil, errors.Newf(errors.ErrCategoryCursor, errors.CodeInvalidCursor,
			"unsupported cursor direction %q", p.Direction)
	}

	if p.Entity != entity {
		return nil, errors.Newf(errors.ErrCategoryCursor, errors.CodeCursorMismatch,
			"cursor was issued for entity %q", p.Entity)
	}
	if p.Fingerprint != fingerprint {
		return nil, errors.New(errors.ErrCategoryCursor, errors.CodeCursorMismatch,
			"cursor was issued under a different filter or sort")
	}
	if len(p.Key) != sortLen {
		return nil, errors.New(errors.ErrCategoryCursor, errors.CodeCursorMismatch,
			"cursor key does not match the sort spec")
	}

	key := make([]any, len(p.Key))
	for i, part := range p.Key {
		v, err := decodePart(part)
		if err != nil {
			return nil, err
		}
		key[i] = v
	}
	return key, nil
}

func encodePart(v any) (keyPart, error) {
	switch val := v.(type) {
	case nil:
		return keyPart{Kind: kindNull}, nil
	case string:
		return keyPart{Kind: kindString, Value: val}, nil
	case int64:
		return keyPart{Kind: kindInt, Value: strconv.FormatInt(val, 10)}, nil
	case bool:
		return keyPart{Kind: kindBool, Value: strconv.FormatBool(val)}, nil
	default:
		return keyPart{}, errors.Newf(errors.ErrCategoryInternal, errors.CodeUnexpected,
			"unsupported sort key value type %T", v)
	}
}

func decodePart(p keyPart) (any, error) {
	switch p.Kind {
	case kindNull:
		return nil, nil
	case kindString:
		return p.Value, nil
	case kindInt:
		i, err := strconv.ParseInt(p.Value, 10, 64)
		if err != nil {
			return nil, errors.New(errors.ErrCategoryCursor, errors.CodeInvalidCursor,
				"cursor key carries a malformed integer")
		}
		return i, nil
	case kindBool:
		b, err := strconv.ParseBool(p.Value)
		if err != nil {
			return nil, errors.New(errors.ErrCategoryCursor, errors.CodeInvalidCursor,
				"cursor key carries a malformed boolean")
		}
		return b, nil
	default:
		return nil, errors.Newf(errors.ErrCategoryCursor, errors.CodeInvalidCursor,
			"cursor key carries unknown kind %q", p.Kind)
	}
}
