package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-listing-sync/internal/events"
	"github.com/imrishuroy/go-listing-sync/internal/revalidate"
)

// DefaultTimeout bounds each downstream call when none is configured.
const DefaultTimeout = 10 * time.Second

const statusPublished = "published"

// Dispatcher routes normalized events to the downstream systems. Within one
// event the search call always runs before the invalidation call, and a failure
// of either never prevents the other.
type Dispatcher struct {
	caps    Capabilities
	timeout time.Duration
	log     zerolog.Logger
}

// New returns a Dispatcher. timeout bounds each downstream call separately.
func New(caps Capabilities, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if caps.Search.Indexer == nil {
		caps.Search.Enabled = false
	}
	if caps.Revalidate.Invalidator == nil {
		caps.Revalidate.Enabled = false
	}
	return &Dispatcher{
		caps:    caps,
		timeout: timeout,
		log:     log.With().Str("component", "dispatch").Logger(),
	}
}

// Capabilities returns the capabilities resolved at construction.
func (d *Dispatcher) Capabilities() Capabilities { return d.caps }

// Dispatch runs every downstream call the event requires and reports what happened.
func (d *Dispatcher) Dispatch(ctx context.Context, ev events.ChangeEvent) Outcome {
	out := Outcome{
		Table:        ev.Table,
		Operation:    ev.Operation,
		Fingerprint:  ev.Fingerprint,
		Search:       SubResult{Target: TargetSearch, Action: ActionNone},
		Invalidation: SubResult{Target: TargetInvalidation, Action: ActionNone},
	}

	switch ev.Table {
	case events.TableListings:
		out.Search = d.syncListing(ctx, ev)
		out.Invalidation = d.invalidate(ctx, revalidate.Request{
			Paths:  ListingPaths(ev),
			Reason: fmt.Sprintf("%s %s", ev.Table, ev.Operation),
		})
	case events.TableTaxonomyTerms:
		out.Invalidation = d.invalidate(ctx, revalidate.Request{
			Paths:  CategoryPaths(ev),
			Reason: fmt.Sprintf("%s %s", ev.Table, ev.Operation),
		})
	default:
		d.log.Debug().Str("table", ev.Table).Msg("no route for table, ignoring")
	}
	return out
}

// syncListing upserts published rows and deletes everything else, so an
// unpublished listing disappears from search.
func (d *Dispatcher) syncListing(ctx context.Context, ev events.ChangeEvent) SubResult {
	res := SubResult{Target: TargetSearch}

	var call func(ctx context.Context) error
	switch ev.Operation {
	case events.Insert, events.Update:
		status, _ := ev.NewRow.Text("status")
		if status == statusPublished {
			res.Action = ActionUpsert
			res.DocID = ev.NewRow.ID()
			call = func(ctx context.Context) error { return d.caps.Search.Indexer.Upsert(ctx, ev.NewRow) }
		} else {
			res.Action = ActionDelete
			res.DocID = ev.NewRow.ID()
			if res.DocID == "" {
				res.DocID = ev.OldRow.ID()
			}
			version := ev.NewRow.Version()
			if version == 0 {
				version = ev.OldRow.Version()
			}
			call = func(ctx context.Context) error { return d.caps.Search.Indexer.Remove(ctx, res.DocID, version) }
		}
	case events.Delete:
		res.Action = ActionDelete
		res.DocID = ev.OldRow.ID()
		version := ev.OldRow.Version()
		call = func(ctx context.Context) error { return d.caps.Search.Indexer.Remove(ctx, res.DocID, version) }
	default:
		res.Action = ActionNone
		return res
	}

	if !d.caps.Search.Enabled {
		res.Action = ActionSkipped
		return res
	}
	res.Duration, res.Err = d.run(ctx, call)
	return res
}

func (d *Dispatcher) invalidate(ctx context.Context, req revalidate.Request) SubResult {
	res := SubResult{Target: TargetInvalidation, Action: ActionInvalidate, Paths: req.Paths}
	if !d.caps.Revalidate.Enabled {
		res.Action = ActionSkipped
		return res
	}
	res.Duration, res.Err = d.run(ctx, func(ctx context.Context) error {
		return d.caps.Revalidate.Invalidator.Invalidate(ctx, req)
	})
	return res
}

// run executes one downstream call under the per-call timeout. A panic in the
// adapter is turned into an error so the next call still runs.
func (d *Dispatcher) run(ctx context.Context, call func(ctx context.Context) error) (took time.Duration, err error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("downstream call panicked: %v", r)
		}
		took = time.Since(start)
	}()
	return 0, call(ctx)
}
