// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"example.com/tracker/internal/domain"
)

// Activity listings page by the (CreatedAt, ID) keyset in descending order;
// the cursor token carries the pair for the last row of a page. Tokens are
// opaque to clients: base64 over "RFC3339Nano|activity_id".

// EncodeCursor serialises a cursor to its opaque token. A nil cursor encodes
// to the empty string, meaning the first page.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. Empty or blank input
// yields a nil cursor.
func DecodeCursor(token string) (*domain.Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	stamp, id, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, fmt.Errorf("invalid cursor format")
	}
	ts, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return nil, err
	}
	return &domain.Cursor{CreatedAt: ts, ID: id}, nil
}
