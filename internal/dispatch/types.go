package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-listing-sync/internal/events"
	"github.com/imrishuroy/go-listing-sync/internal/revalidate"
)

// Indexer is the search side of the sync. Remove only applies when version is
// at least the indexed one; zero removes unconditionally.
type Indexer interface {
	Upsert(ctx context.Context, row events.Row) error
	Remove(ctx context.Context, id string, version int64) error
}

// Invalidator is the page cache side of the sync.
type Invalidator interface {
	Invalidate(ctx context.Context, req revalidate.Request) error
}

// SearchCapability is resolved once at startup. A disabled capability turns
// every search call into a skipped no-op.
type SearchCapability struct {
	Enabled bool
	Indexer Indexer
}

// RevalidateCapability is resolved once at startup.
type RevalidateCapability struct {
	Enabled     bool
	Invalidator Invalidator
}

// Capabilities are the downstream systems the Dispatcher may call.
type Capabilities struct {
	Search     SearchCapability
	Revalidate RevalidateCapability
}

// Observer receives every outcome, e.g. to count failures.
type Observer interface {
	ObserveOutcome(ctx context.Context, outcome Outcome)
}

// Action is what a sub-call did.
type Action string

const (
	ActionNone       Action = "none"    // the table needs no call of this kind
	ActionSkipped    Action = "skipped" // the capability is disabled
	ActionUpsert     Action = "upsert"
	ActionDelete     Action = "delete"
	ActionInvalidate Action = "invalidate"
)

// Sub-call targets.
const (
	TargetSearch       = "search"
	TargetInvalidation = "invalidation"
)

// State is the terminal dispatch state of one event.
type State string

const (
	Acknowledged    State = "acknowledged"
	PartiallyFailed State = "partially_failed"
	Failed          State = "failed"
)

// SubResult is the result of one downstream call.
type SubResult struct {
	Target   string
	Action   Action
	DocID    string   // search only
	Paths    []string // invalidation only
	Err      error
	Duration time.Duration
}

// Attempted reports whether a downstream call was made.
func (r SubResult) Attempted() bool {
	return r.Action != ActionNone && r.Action != ActionSkipped
}

// Failed reports whether the call was made and failed.
func (r SubResult) Failed() bool { return r.Err != nil }

func (r SubResult) MarshalZerologObject(e *zerolog.Event) {
	e.Str("action", string(r.Action)).Dur("took", r.Duration)
	if r.DocID != "" {
		e.Str("doc_id", r.DocID)
	}
	if len(r.Paths) > 0 {
		e.Strs("paths", r.Paths)
	}
	if r.Err != nil {
		e.AnErr("error", r.Err)
	}
}

// Outcome aggregates both sub-calls for one event. Downstream failures are
// recorded here and never returned as errors.
type Outcome struct {
	Table        string
	Operation    events.Operation
	Fingerprint  events.Fingerprint
	Search       SubResult
	Invalidation SubResult
}

// State derives the terminal state from the sub-results.
func (o Outcome) State() State {
	attempted, failed := 0, 0
	for _, r := range []SubResult{o.Search, o.Invalidation} {
		if r.Attempted() {
			attempted++
		}
		if r.Failed() {
			failed++
		}
	}
	switch {
	case failed == 0:
		return Acknowledged
	case failed < attempted:
		return PartiallyFailed
	default:
		return Failed
	}
}

// FailedTargets lists the targets whose call failed, search first.
func (o Outcome) FailedTargets() []string {
	var out []string
	if o.Search.Failed() {
		out = append(out, TargetSearch)
	}
	if o.Invalidation.Failed() {
		out = append(out, TargetInvalidation)
	}
	return out
}

func (o Outcome) MarshalZerologObject(e *zerolog.Event) {
	e.Str("table", o.Table).
		Str("op", string(o.Operation)).
		Str("fingerprint", string(o.Fingerprint)).
		Str("state", string(o.State())).
		Object("search", o.Search).
		Object("invalidation", o.Invalidation)
	if failed := o.FailedTargets(); len(failed) > 0 {
		e.Str("failed", strings.Join(failed, ","))
	}
}
