package review

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/health-screening-server/internal/domain"
)

type lister interface {
	List(ctx context.Context, limit, offset int) ([]*domain.ReviewEntry, error)
}

// insertIgnorer inserts an entry unless an identical one exists, reporting whether it was written
type insertIgnorer interface {
	insertIfAbsent(ctx context.Context, entry *domain.ReviewEntry) (bool, error)
}

func exportJSON(ctx context.Context, store lister, writer io.Writer) (int, error) {
	all, err := store.List(ctx, maxExportLimit, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list review log: %w", err)
	}
	if all == nil {
		all = []*domain.ReviewEntry{}
	}

	export := &Export{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Entries:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return 0, fmt.Errorf("failed to write review export: %w", err)
	}
	return export.Count, nil
}

func importJSON(ctx context.Context, store insertIgnorer, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, entry := range export.Entries {
		if !entry.Status.IsReviewOutcome() {
			skipped++
			continue
		}

		written, err := store.insertIfAbsent(ctx, entry)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to import entry: %w", err)
		}
		if written {
			imported++
		} else {
			skipped++
		}
	}

	return imported, skipped, nil
}
