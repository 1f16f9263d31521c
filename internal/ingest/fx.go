package ingest

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/uprl/internal/ingest/service"
)

var Module = fx.Module("ingest",
	fx.Provide(service.NewService),
)
