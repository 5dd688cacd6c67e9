package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"scalp_bot/internal/modules/config"
	"scalp_bot/internal/modules/health"
	"scalp_bot/internal/modules/postgres"
	"scalp_bot/internal/runner"
	"scalp_bot/pkg/logger"
)

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			logger.New,
		),
		config.Module(),
		postgres.Module(),
		health.Module(),
		runner.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}
