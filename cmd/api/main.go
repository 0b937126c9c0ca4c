package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-listing-sync/internal/app"
	"github.com/imrishuroy/go-listing-sync/internal/config"
	"github.com/imrishuroy/go-listing-sync/internal/handlers"
	"github.com/imrishuroy/go-listing-sync/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("info", "")
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New(cfg.LogLevel, cfg.AppEnv)

	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r, deps, err := setupRouter(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build pipeline")
	}
	defer deps.Close()

	// RUN_LOCAL=true runs a plain HTTP server for development
	if cfg.RunLocal {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("running local server")
		if err := r.Run(cfg.HTTPAddr); err != nil {
			log.Error().Err(err).Msg("local server stopped")
			os.Exit(1)
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

func setupRouter(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gin.Engine, *app.Deps, error) {
	deps, err := app.Build(ctx, cfg, log, nil)
	if err != nil {
		return nil, nil, err
	}
	return handlers.NewRouter(deps.RouterConfig(log)), deps, nil
}
