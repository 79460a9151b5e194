package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"referral-settlement/internal/config"
	"referral-settlement/internal/logger"
	"referral-settlement/internal/server"
	"referral-settlement/pkg/db"
	"referral-settlement/services/bootstrap"
	"referral-settlement/services/invitecode"
	"referral-settlement/services/rebate"
	"referral-settlement/services/referral"
	"referral-settlement/services/settings"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		fx.Provide(provideSnowflakeNode),
		fx.Invoke(db.Otel),
		bootstrap.Module,
		settings.Module,
		invitecode.Module,
		referral.Module,
		rebate.Module,
		server.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
