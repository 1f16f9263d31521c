package projection

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/uprl/internal/projection/service"
)

var Module = fx.Module("projection",
	fx.Provide(service.NewService),
)
