package dlq

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/uprl/internal/dlq/service"
)

var Module = fx.Module("dlq",
	fx.Provide(service.NewService),
)
