package app

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-listing-sync/internal/aws"
	"github.com/imrishuroy/go-listing-sync/internal/config"
	"github.com/imrishuroy/go-listing-sync/internal/dispatch"
	"github.com/imrishuroy/go-listing-sync/internal/handlers"
	"github.com/imrishuroy/go-listing-sync/internal/idempotency"
	"github.com/imrishuroy/go-listing-sync/internal/metrics"
	"github.com/imrishuroy/go-listing-sync/internal/revalidate"
	"github.com/imrishuroy/go-listing-sync/internal/search"
	"github.com/imrishuroy/go-listing-sync/internal/signature"
)

// AWSLoader builds the AWS clients. It is only called when some component
// needs AWS.
type AWSLoader func(ctx context.Context) (*aws.AWSClients, error)

// Deps is the assembled pipeline shared by the api and the worker.
type Deps struct {
	Config       *config.Config
	Capabilities config.Capabilities
	Verifier     *signature.Verifier
	Ledger       idempotency.Ledger
	Dispatcher   *dispatch.Dispatcher
	Metrics      *metrics.Recorder
	Observers    []dispatch.Observer
	FailureSink  handlers.FailureSink // nil without a failure queue
}

// Build resolves capabilities once and constructs every adapter from them.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger, loadAWS AWSLoader) (*Deps, error) {
	if loadAWS == nil {
		loadAWS = aws.NewAWSClients
	}
	caps := cfg.Capabilities()
	d := &Deps{
		Config:       cfg,
		Capabilities: caps,
		Verifier:     signature.NewVerifier(cfg.WebhookSecret),
		Metrics:      metrics.NewRecorder(),
	}
	d.Observers = append(d.Observers, d.Metrics)

	if caps.ReducedSecurity {
		log.Warn().Msg("WEBHOOK_SECRET is not set, webhook signatures are NOT verified")
	}

	var awsClients *aws.AWSClients
	needAWS := func() (*aws.AWSClients, error) {
		if awsClients != nil {
			return awsClients, nil
		}
		c, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("init aws clients: %w", err)
		}
		awsClients = c
		return c, nil
	}

	dispatchCaps := dispatch.Capabilities{}
	if caps.Search {
		client, err := search.NewClient(search.Config{
			Host:            cfg.SearchHost,
			APIKey:          cfg.SearchAPIKey,
			Index:           cfg.SearchIndex,
			DefaultCurrency: cfg.DefaultCurrency,
			Timeout:         cfg.DownstreamTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		dispatchCaps.Search = dispatch.SearchCapability{Enabled: true, Indexer: client}
	} else {
		log.Info().Msg("search sync disabled")
	}
	if caps.Revalidate {
		client := revalidate.NewClient(cfg.RevalidateURL, cfg.RevalidateSecret, cfg.DownstreamTimeout, nil, log)
		dispatchCaps.Revalidate = dispatch.RevalidateCapability{Enabled: true, Invalidator: client}
	} else {
		log.Info().Msg("cache invalidation disabled")
	}
	d.Dispatcher = dispatch.New(dispatchCaps, cfg.DownstreamTimeout, log)

	ledgerOpts := idempotency.Options{
		Backend: cfg.LedgerBackend,
		Redis:   idempotency.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Table:   cfg.LedgerTable,
	}
	if cfg.LedgerBackend == idempotency.BackendDynamoDB {
		c, err := needAWS()
		if err != nil {
			return nil, err
		}
		ledgerOpts.Dynamo = c.DynamoDB
	}
	ledger, err := idempotency.Open(ctx, ledgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	d.Ledger = ledger

	if cfg.FailureQueueURL != "" {
		c, err := needAWS()
		if err != nil {
			d.Close()
			return nil, err
		}
		d.FailureSink = aws.NewPublisher(c.SQS, cfg.FailureQueueURL)
	}
	if cfg.CloudWatchNamespace != "" {
		c, err := needAWS()
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Observers = append(d.Observers, aws.NewCloudWatchObserver(c.CloudWatch, cfg.CloudWatchNamespace, log))
	}

	log.Info().
		Bool("search", caps.Search).
		Bool("revalidate", caps.Revalidate).
		Str("ledger", cfg.LedgerBackend).
		Bool("failure_queue", d.FailureSink != nil).
		Dur("downstream_timeout", cfg.DownstreamTimeout).
		Msg("pipeline ready")
	return d, nil
}

// RouterConfig describes the HTTP surface for these dependencies.
func (d *Deps) RouterConfig(log zerolog.Logger) handlers.RouterConfig {
	return handlers.RouterConfig{
		Webhook: handlers.WebhookConfig{
			Verifier:    d.Verifier,
			Ledger:      d.Ledger,
			Dispatcher:  d.Dispatcher,
			Observers:   d.Observers,
			FailureSink: d.FailureSink,
			Requests:    d.Metrics,
			Log:         log,
		},
		Health: handlers.HealthStatus{
			Search:          d.Capabilities.Search,
			Revalidate:      d.Capabilities.Revalidate,
			ReducedSecurity: d.Capabilities.ReducedSecurity,
		},
		Metrics: d.Metrics.Handler(),
		Log:     log,
	}
}

// Close releases the ledger connection, if it holds one.
func (d *Deps) Close() error {
	if c, ok := d.Ledger.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
