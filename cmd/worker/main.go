package main

import (
	"context"
	"os"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-listing-sync/internal/app"
	"github.com/imrishuroy/go-listing-sync/internal/config"
	"github.com/imrishuroy/go-listing-sync/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("info", "")
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New(cfg.LogLevel, cfg.AppEnv)

	// replays must not feed the failure queue they are reading from
	cfg.FailureQueueURL = ""

	deps, err := app.Build(context.Background(), cfg, log, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build pipeline")
	}
	defer deps.Close()

	p := NewProcessor(deps.Dispatcher, deps.Observers, log)

	// RUN_LOCAL=true replays a single body from LOCAL_SQS_BODY
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"type":"UPDATE","table":"listings","schema":"public","record":{"id":"local-1","status":"published","slug":"local-listing"}}`
		}
		event := lambdaevents.SQSEvent{
			Records: []lambdaevents.SQSMessage{{MessageId: "local", Body: body}},
		}
		resp, err := p.Handle(context.Background(), event)
		if err != nil || len(resp.BatchItemFailures) > 0 {
			log.Error().Err(err).Int("failed", len(resp.BatchItemFailures)).Msg("local replay failed")
			os.Exit(1)
		}
		return
	}

	lambda.Start(p.Handle)
}
