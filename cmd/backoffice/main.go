package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/marketlane/backoffice/internal/audit"
	"github.com/marketlane/backoffice/internal/clock"
	"github.com/marketlane/backoffice/internal/config"
	"github.com/marketlane/backoffice/internal/logger"
	"github.com/marketlane/backoffice/internal/metrics"
	"github.com/marketlane/backoffice/internal/migration"
	"github.com/marketlane/backoffice/internal/rule"
	"github.com/marketlane/backoffice/internal/server"
	"github.com/marketlane/backoffice/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		migration.Module,

		// Functional domains
		audit.Module,
		rule.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
