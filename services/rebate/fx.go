package rebate

import "go.uber.org/fx"

var Module = fx.Module("rebate.service",
	fx.Provide(NewService),
)
