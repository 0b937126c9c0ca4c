package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-listing-sync/internal/logging"
	"github.com/imrishuroy/go-listing-sync/internal/metrics"
)

// HealthStatus is reported by GET /health.
type HealthStatus struct {
	Search          bool `json:"search"`
	Revalidate      bool `json:"revalidate"`
	ReducedSecurity bool `json:"reduced_security"`
}

// RouterConfig groups everything the HTTP surface serves.
type RouterConfig struct {
	Webhook WebhookConfig
	Health  HealthStatus
	Metrics http.Handler // optional, mounted on /metrics
	Log     zerolog.Logger
}

// NewRouter builds the gin engine with request logging, panic recovery,
// health, metrics and the webhook route.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(logging.Middleware(cfg.Log))
	r.Use(recovery(cfg.Log, cfg.Webhook.Requests))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":           "ok",
			"search":           cfg.Health.Search,
			"revalidate":       cfg.Health.Revalidate,
			"reduced_security": cfg.Health.ReducedSecurity,
		})
	})
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	RegisterWebhookRoutes(r, cfg.Webhook)
	return r
}

// recovery answers any panic with the generic processing failure body.
func recovery(log zerolog.Logger, requests RequestObserver) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error().
			Interface("panic", recovered).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("request_id", logging.RequestID(c)).
			Msg("panic recovered in http handler")
		if requests != nil {
			requests.ObserveRequest(metrics.ResultError)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "webhook_processing_failed"})
	})
}
