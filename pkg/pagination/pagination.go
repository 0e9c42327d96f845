// Package pagination implements keyset paging over (timestamp, id) pairs.
// Cursors are opaque to clients.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the key of the last row a client has seen.
type Cursor struct {
	At time.Time
	ID uuid.UUID
}

type wireCursor struct {
	At time.Time `json:"t"`
	ID uuid.UUID `json:"i"`
}

// Page carries one slice of rows. NextCursor is empty on the last page.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// Order is the direction a keyset walks.
type Order int

const (
	Ascending Order = iota
	Descending
)

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// LimitWithBuffer asks for one extra row so BuildPage can tell whether a
// next page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// BuildPage trims rows fetched with LimitWithBuffer and keys the next cursor
// on the last row kept.
func BuildPage[T any](rows []T, limit int, cursorOf func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	if rows == nil {
		rows = []T{}
	}
	if len(rows) <= limit {
		return Page[T]{Items: rows}
	}
	rows = rows[:limit]
	return Page[T]{Items: rows, NextCursor: EncodeCursor(cursorOf(rows[limit-1]))}
}

func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(wireCursor{At: c.At.UTC(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor returns nil for a blank value.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var wc wireCursor
	if err := json.Unmarshal(raw, &wc); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	if wc.At.IsZero() || wc.ID == uuid.Nil {
		return nil, errors.New("cursor is missing its position")
	}
	return &Cursor{At: wc.At, ID: wc.ID}, nil
}

// Seek is a gorm scope that orders by (column, id) and, when cur is set,
// resumes strictly after it.
func Seek(column string, cur *Cursor, order Order) func(*gorm.DB) *gorm.DB {
	cmp, dir := ">", "ASC"
	if order == Descending {
		cmp, dir = "<", "DESC"
	}
	return func(q *gorm.DB) *gorm.DB {
		if cur != nil {
			q = q.Where(
				fmt.Sprintf("((%[1]s %[2]s ?) OR (%[1]s = ? AND id %[2]s ?))", column, cmp),
				cur.At, cur.At, cur.ID,
			)
		}
		return q.Order(fmt.Sprintf("%[1]s %[2]s, id %[2]s", column, dir))
	}
}
