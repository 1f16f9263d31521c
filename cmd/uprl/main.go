package main

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/uprl/internal/clock"
	"github.com/smallbiznis/uprl/internal/config"
	"github.com/smallbiznis/uprl/internal/dlq"
	"github.com/smallbiznis/uprl/internal/factstore"
	"github.com/smallbiznis/uprl/internal/ingest"
	"github.com/smallbiznis/uprl/internal/migration"
	"github.com/smallbiznis/uprl/internal/observability"
	"github.com/smallbiznis/uprl/internal/projection"
	"github.com/smallbiznis/uprl/internal/scopelock"
	"github.com/smallbiznis/uprl/internal/server"
	"github.com/smallbiznis/uprl/internal/version"
	"github.com/smallbiznis/uprl/pkg/db"
)

func main() {
	app := fx.New(
		fx.Provide(config.Load),
		observability.Module,
		db.Module,
		migration.Module,
		clock.Module,

		factstore.Module,
		version.Module,
		scopelock.Module,
		dlq.Module,
		ingest.Module,
		projection.Module,

		server.Module,
	)
	app.Run()
}
