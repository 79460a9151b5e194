package bootstrap

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"referral-settlement/pkg/repository"
	"referral-settlement/services/account"
	"referral-settlement/services/rebate"
	"referral-settlement/services/referral"
	"referral-settlement/services/settings"
)

type Service struct {
	db       *gorm.DB
	settings repository.Repository[settings.Setting]
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		settings: repository.ProvideStore[settings.Setting](p.DB),
	}
}

// Migrate creates the settlement schema and seeds the rebate configuration
// keys when they are absent. Seeded defaults keep rebates disabled until an
// administrator sets a rate.
func (s *Service) Migrate() error {
	ctx := context.Background()

	if err := s.db.AutoMigrate(
		&account.User{},
		&referral.Relation{},
		&rebate.Transaction{},
		&settings.Setting{},
	); err != nil {
		zap.L().Error("[bootstrap] migration failed", zap.Error(err))
		return err
	}

	defaults := map[string]string{
		settings.KeyRebateRate: "0",
		settings.KeyRebateMode: settings.ModeEveryOrder,
	}
	for name, value := range defaults {
		exist, err := s.settings.FindOne(ctx, &settings.Setting{Name: name})
		if err != nil {
			zap.L().Error("[bootstrap] error checking setting", zap.String("name", name), zap.Error(err))
			return err
		}
		if exist != nil {
			continue
		}
		if err := s.settings.Create(ctx, &settings.Setting{Name: name, Value: value}); err != nil {
			return err
		}
		zap.L().Info("[bootstrap] seeded setting", zap.String("name", name), zap.String("value", value))
	}

	return nil
}
