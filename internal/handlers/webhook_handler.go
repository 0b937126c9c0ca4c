package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-listing-sync/internal/dispatch"
	"github.com/imrishuroy/go-listing-sync/internal/events"
	"github.com/imrishuroy/go-listing-sync/internal/idempotency"
	"github.com/imrishuroy/go-listing-sync/internal/logging"
	"github.com/imrishuroy/go-listing-sync/internal/metrics"
	"github.com/imrishuroy/go-listing-sync/internal/signature"
)

// WebhookPath receives the database change notifications.
const WebhookPath = "/webhooks/listings"

// DefaultMaxBodyBytes caps the size of a change notification.
const DefaultMaxBodyBytes = 1 << 20

const failurePublishTimeout = 5 * time.Second

// FailureSink receives events whose dispatch had a failed sub-call.
type FailureSink interface {
	PublishFailure(ctx context.Context, outcome dispatch.Outcome, body []byte) error
}

// RequestObserver counts webhook deliveries by result.
type RequestObserver interface {
	ObserveRequest(result string)
}

// WebhookConfig groups dependencies for the webhook handler. Verifier, Ledger
// and Dispatcher are required.
type WebhookConfig struct {
	Verifier     *signature.Verifier
	Ledger       idempotency.Ledger
	Dispatcher   *dispatch.Dispatcher
	Observers    []dispatch.Observer
	FailureSink  FailureSink     // optional
	Requests     RequestObserver // optional
	MaxBodyBytes int64
	Log          zerolog.Logger
}

// RegisterWebhookRoutes registers the change notification endpoint.
func RegisterWebhookRoutes(r gin.IRouter, cfg WebhookConfig) {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	h := &webhookHandler{cfg: cfg, log: cfg.Log.With().Str("component", "webhook").Logger()}
	r.POST(WebhookPath, h.handle)
}

type webhookHandler struct {
	cfg WebhookConfig
	log zerolog.Logger
}

func (h *webhookHandler) handle(c *gin.Context) {
	log := h.log.With().Str("request_id", logging.RequestID(c)).Logger()

	// the signature covers the exact bytes, so read before any decoding
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn().Int64("limit", tooLarge.Limit).Msg("body over size limit")
			h.observe(metrics.ResultTooLarge)
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload_too_large"})
			return
		}
		log.Warn().Err(err).Msg("read body failed")
		h.observe(metrics.ResultMalformed)
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed_payload", "msg": "unreadable body"})
		return
	}

	if h.cfg.Verifier.Verify(body, c.GetHeader(signature.HeaderName)) != signature.Authentic {
		log.Warn().Err(signature.ErrInauthentic).Msg("rejecting webhook")
		h.observe(metrics.ResultUnauthorized)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
		return
	}

	ev, err := events.Normalize(body)
	if err != nil {
		log.Warn().Err(err).Msg("malformed change event")
		h.observe(metrics.ResultMalformed)
		c.JSON(http.StatusBadRequest, malformedBody(err))
		return
	}
	log = log.With().Str("event", ev.String()).Logger()

	// the rest of the pipeline must not stop when the sender hangs up
	ctx := context.WithoutCancel(c.Request.Context())

	// claiming before dispatch keeps concurrent redeliveries from both syncing
	claimed, err := h.cfg.Ledger.Claim(ctx, ev.Fingerprint)
	if err != nil {
		log.Warn().Err(err).Msg("ledger claim failed, processing anyway")
		claimed = true
	}
	if !claimed {
		log.Info().Msg("duplicate event short-circuited")
		h.observe(metrics.ResultDuplicate)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "event already processed"})
		return
	}

	outcome := h.cfg.Dispatcher.Dispatch(ctx, ev)

	if err := h.cfg.Ledger.MarkProcessed(ctx, ev.Fingerprint); err != nil {
		log.Warn().Err(err).Msg("ledger commit failed")
	}

	h.report(ctx, log, outcome, body)
	h.observe(metrics.ResultAccepted)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// report logs the outcome, notifies observers and enqueues failed events.
// Nothing here can change the response.
func (h *webhookHandler) report(ctx context.Context, log zerolog.Logger, outcome dispatch.Outcome, body []byte) {
	entry := log.Info()
	if outcome.State() != dispatch.Acknowledged {
		entry = log.Warn()
	}
	entry.Object("outcome", outcome).Msg("event dispatched")

	for _, o := range h.cfg.Observers {
		o.ObserveOutcome(ctx, outcome)
	}

	if h.cfg.FailureSink == nil || len(outcome.FailedTargets()) == 0 {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, failurePublishTimeout)
	defer cancel()
	if err := h.cfg.FailureSink.PublishFailure(pctx, outcome, body); err != nil {
		log.Error().Err(err).Msg("publish to failure queue failed")
	}
}

func (h *webhookHandler) observe(result string) {
	if h.cfg.Requests != nil {
		h.cfg.Requests.ObserveRequest(result)
	}
}

func malformedBody(err error) gin.H {
	resp := gin.H{"error": "malformed_payload", "msg": err.Error()}
	var me *events.MalformedError
	if errors.As(err, &me) && len(me.Fields) > 0 {
		resp["fields"] = me.Fields
	}
	return resp
}
