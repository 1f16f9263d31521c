package factstore

import (
	"go.uber.org/fx"
)

var Module = fx.Module("factstore",
	fx.Provide(New),
)
