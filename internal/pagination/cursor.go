// Package pagination implements keyset (cursor based) pagination over gorm queries.
//
// Every feed is ordered by a (order key, id) pair, both descending. A page is fetched
// with limit+1 rows; the extra row only signals that another page exists and is never
// returned. The cursor handed back to the client is the position of the last returned
// row, so subsequent pages are selected with a strict "after" comparison rather than
// an offset.
package pagination

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// MinLimit is the smallest page size a caller may request.
	MinLimit = 1
	// MaxLimit is the largest page size a caller may request.
	MaxLimit = 100
	// DefaultLimit is used by transports when the client omits a page size.
	DefaultLimit = 20

	maxCursorIDLength = 190
)

var (
	// ErrInvalidLimit indicates a page size outside [MinLimit, MaxLimit].
	ErrInvalidLimit = errors.New("pagination: limit out of range")
	// ErrInvalidCursor indicates a cursor token that cannot be decoded.
	ErrInvalidCursor = errors.New("pagination: invalid cursor")
)

// Cursor is the keyset position of the last row a client has seen.
type Cursor struct {
	OrderKey int64  `json:"k"`
	ID       string `json:"id"`
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	payload, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(payload)
}

// DecodeCursor parses a token produced by Encode. An empty token yields a nil cursor.
func DecodeCursor(token string) (*Cursor, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, nil
	}

	payload, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	var cursor Cursor
	if err := decoder.Decode(&cursor); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if err := cursor.validate(); err != nil {
		return nil, err
	}
	return &cursor, nil
}

func (c Cursor) validate() error {
	if c.ID == "" || len(c.ID) > maxCursorIDLength {
		return fmt.Errorf("%w: id must be between 1 and %d characters", ErrInvalidCursor, maxCursorIDLength)
	}
	if c.OrderKey < 0 {
		return fmt.Errorf("%w: negative order key", ErrInvalidCursor)
	}
	return nil
}

// Request carries the client supplied continuation state for one page.
type Request struct {
	Cursor *Cursor
	Limit  int
}

// NewRequest validates the page size and returns a Request.
func NewRequest(cursor *Cursor, limit int) (Request, error) {
	request := Request{Cursor: cursor, Limit: limit}
	if err := request.Validate(); err != nil {
		return Request{}, err
	}
	return request, nil
}

// ParseRequest decodes an opaque cursor token and validates the page size.
func ParseRequest(token string, limit int) (Request, error) {
	cursor, err := DecodeCursor(token)
	if err != nil {
		return Request{}, err
	}
	return NewRequest(cursor, limit)
}

// Validate reports whether the request can be executed.
func (r Request) Validate() error {
	if r.Limit < MinLimit || r.Limit > MaxLimit {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidLimit, r.Limit, MinLimit, MaxLimit)
	}
	if r.Cursor != nil {
		return r.Cursor.validate()
	}
	return nil
}
