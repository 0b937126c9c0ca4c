package main

import (
	"context"
	"fmt"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-listing-sync/internal/aws"
	"github.com/imrishuroy/go-listing-sync/internal/dispatch"
	"github.com/imrishuroy/go-listing-sync/internal/events"
)

// Processor replays change events from the sync failure queue. Messages come
// from our own publisher, so there is no signature or ledger check.
type Processor struct {
	dispatcher *dispatch.Dispatcher
	observers  []dispatch.Observer
	log        zerolog.Logger
}

// NewProcessor creates a worker processor around a dispatcher.
func NewProcessor(d *dispatch.Dispatcher, observers []dispatch.Observer, log zerolog.Logger) *Processor {
	return &Processor{
		dispatcher: d,
		observers:  observers,
		log:        log.With().Str("component", "worker").Logger(),
	}
}

// Handle replays every message in the batch and reports the ones that still
// fail as batch item failures. Only those are redelivered, and SQS eventually
// moves them to the DLQ; the event source mapping must enable
// ReportBatchItemFailures.
func (p *Processor) Handle(ctx context.Context, ev lambdaevents.SQSEvent) (lambdaevents.SQSEventResponse, error) {
	p.log.Debug().Int("messages", len(ev.Records)).Msg("received batch")

	var resp lambdaevents.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.log.Warn().Err(err).Str("message_id", rec.MessageId).Msg("replay failed")
			resp.BatchItemFailures = append(resp.BatchItemFailures, lambdaevents.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	if n := len(resp.BatchItemFailures); n > 0 {
		p.log.Warn().Int("failed", n).Int("messages", len(ev.Records)).Msg("batch partially failed")
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec lambdaevents.SQSMessage) error {
	log := p.log.With().
		Str("message_id", rec.MessageId).
		Str("failed", attr(rec, aws.AttrFailed)).
		Logger()

	ev, err := events.Normalize([]byte(rec.Body))
	if err != nil {
		// redelivering a body that can never parse would loop until the DLQ
		log.Error().Err(err).Msg("dropping malformed message")
		return nil
	}

	outcome := p.dispatcher.Dispatch(ctx, ev)
	for _, o := range p.observers {
		o.ObserveOutcome(ctx, outcome)
	}

	if failed := outcome.FailedTargets(); len(failed) > 0 {
		log.Warn().Object("outcome", outcome).Msg("replay incomplete")
		return fmt.Errorf("replay %s: %v failed", ev, failed)
	}
	log.Info().Object("outcome", outcome).Msg("replayed")
	return nil
}

func attr(rec lambdaevents.SQSMessage, name string) string {
	if v, ok := rec.MessageAttributes[name]; ok && v.StringValue != nil {
		return *v.StringValue
	}
	return ""
}
