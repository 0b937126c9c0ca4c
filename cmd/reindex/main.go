package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/imrishuroy/go-listing-sync/internal/config"
	"github.com/imrishuroy/go-listing-sync/internal/listings"
	"github.com/imrishuroy/go-listing-sync/internal/logging"
	"github.com/imrishuroy/go-listing-sync/internal/search"
)

const (
	FlagDatabaseURL = "database-url"
	FlagBatchSize   = "batch-size"
	FlagDryRun      = "dry-run"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Command().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "reindex:", err)
		os.Exit(1)
	}
}

func Command() *cli.Command {
	return &cli.Command{
		Name:  "reindex",
		Usage: "Rebuild the listings search index from published rows in Postgres",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     FlagDatabaseURL,
				Usage:    "Postgres connection `DSN`",
				Sources:  cli.EnvVars("DATABASE_URL"),
				Required: true,
			},
			&cli.IntFlag{
				Name:  FlagBatchSize,
				Usage: "rows per query and per _bulk request",
				Value: listings.DefaultBatchSize,
			},
			&cli.BoolFlag{
				Name:  FlagDryRun,
				Usage: "map rows to documents without writing to the index",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel, cfg.AppEnv)

			opts := options{BatchSize: cmd.Int(FlagBatchSize), DryRun: cmd.Bool(FlagDryRun)}

			var idx indexer
			if !opts.DryRun {
				if !cfg.Capabilities().Search {
					return fmt.Errorf("SEARCH_HOST and SEARCH_API_KEY are required unless --%s is set", FlagDryRun)
				}
				client, err := search.NewClient(search.Config{
					Host:            cfg.SearchHost,
					APIKey:          cfg.SearchAPIKey,
					Index:           cfg.SearchIndex,
					DefaultCurrency: cfg.DefaultCurrency,
					Timeout:         cfg.DownstreamTimeout,
				}, log)
				if err != nil {
					return err
				}
				idx = client
			}

			pool, err := listings.Connect(ctx, cmd.String(FlagDatabaseURL))
			if err != nil {
				return err
			}
			defer pool.Close()

			report, err := run(ctx, listings.NewStore(pool), idx, cfg.DefaultCurrency, opts, log)
			log.Info().
				Int("succeeded", report.Succeeded).
				Int("failed", report.Failed).
				Bool("dry_run", opts.DryRun).
				Msg("reindex finished")
			for _, o := range report.Outcomes {
				if o.Err != nil {
					log.Warn().Str("id", o.ID).Err(o.Err).Msg("row not indexed")
				}
			}
			return err
		},
	}
}
