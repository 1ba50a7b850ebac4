// Package review stores the audit log of admin review decisions on submissions.
package review

import (
	"context"
	"io"
	"time"

	"github.com/health-screening-server/internal/domain"
)

// Store defines the interface for review log storage operations.
type Store interface {
	domain.ReviewLog

	// List returns all entries, newest first, with pagination.
	List(ctx context.Context, limit, offset int) ([]*domain.ReviewEntry, error)

	// Count returns the total number of entries.
	Count(ctx context.Context) (int64, error)

	// ExportJSON writes the whole log to writer and returns the number of entries written.
	ExportJSON(ctx context.Context, writer io.Writer) (int, error)

	// ImportJSON loads entries from reader. Entries already present are skipped.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string                `json:"version"`
	ExportedAt time.Time             `json:"exported_at"`
	Count      int                   `json:"count"`
	Entries    []*domain.ReviewEntry `json:"entries"`
}

const exportVersion = "1.0"

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000
