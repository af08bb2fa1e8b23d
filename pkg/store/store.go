// Package store persists to-do records.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Record is one to-do item. ID and timestamps are assigned by the store.
type Record struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the persistence contract used by the tool registry.
// Each call is atomic on its own; there are no multi-call transactions.
type Store interface {
	// SelectAll returns every record ordered by id.
	SelectAll(ctx context.Context) ([]Record, error)
	// Insert stores text and returns the new id.
	Insert(ctx context.Context, text string) (int64, error)
	// SelectWhere returns records whose text contains pattern,
	// case-insensitive, as a literal substring.
	SelectWhere(ctx context.Context, pattern string) ([]Record, error)
	// DeleteWhere removes the record with id. A missing id is not an error.
	DeleteWhere(ctx context.Context, id int64) error
	Close() error
}

// Open builds a store for driver. dsn is ignored by the memory driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		return NewSQLiteStore(ctx, dsn)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}
