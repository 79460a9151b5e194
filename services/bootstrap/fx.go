package bootstrap

import "go.uber.org/fx"

var Module = fx.Module("bootstrap",
	fx.Provide(NewService),
	fx.Invoke(func(s *Service) error {
		return s.Migrate()
	}),
)
