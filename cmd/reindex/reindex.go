package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-listing-sync/internal/events"
	"github.com/imrishuroy/go-listing-sync/internal/search"
)

type options struct {
	BatchSize int
	DryRun    bool
}

type source interface {
	EachPublished(ctx context.Context, batchSize int, fn func(batch []events.Row) error) error
}

type indexer interface {
	EnsureIndex(ctx context.Context) error
	BulkUpsert(ctx context.Context, rows []events.Row) search.BulkReport
}

// run streams every published listing into the index. The error is non-nil
// only when the index cannot be ensured or the source fails; row failures are
// in the report.
func run(ctx context.Context, src source, idx indexer, defaultCurrency string, opts options, log zerolog.Logger) (search.BulkReport, error) {
	var total search.BulkReport

	if !opts.DryRun {
		if err := idx.EnsureIndex(ctx); err != nil {
			return total, fmt.Errorf("ensure index: %w", err)
		}
	}

	batches := 0
	err := src.EachPublished(ctx, opts.BatchSize, func(batch []events.Row) error {
		batches++
		var report search.BulkReport
		if opts.DryRun {
			report = mapOnly(batch, defaultCurrency)
		} else {
			report = idx.BulkUpsert(ctx, batch)
		}
		log.Debug().Int("batch", batches).Int("rows", len(batch)).Int("failed", report.Failed).Msg("batch done")
		total.Merge(report)
		return ctx.Err()
	})
	if err != nil {
		return total, fmt.Errorf("read listings: %w", err)
	}
	return total, nil
}

// mapOnly reports which rows would fail document mapping.
func mapOnly(rows []events.Row, defaultCurrency string) search.BulkReport {
	var report search.BulkReport
	for i, row := range rows {
		o := search.RowOutcome{Index: i, ID: row.ID()}
		if _, err := search.BuildDocument(row, defaultCurrency); err != nil {
			o.Err = err
			report.Failed++
		} else {
			report.Succeeded++
		}
		report.Outcomes = append(report.Outcomes, o)
	}
	return report
}
