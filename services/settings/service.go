package settings

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"referral-settlement/pkg/repository"
)

type Service struct {
	db       *gorm.DB
	settings repository.Repository[Setting]
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		settings: repository.ProvideStore[Setting](p.DB),
	}
}

// Get returns the raw value for a key, empty string when the key is absent.
func (s *Service) Get(ctx context.Context, name string) (string, error) {
	setting, err := s.settings.FindOne(ctx, &Setting{Name: name})
	if err != nil {
		return "", err
	}
	if setting == nil {
		return "", nil
	}
	return setting.Value, nil
}

// Set upserts a key. The engine never calls this; it exists for the admin
// collaborators that own the configuration.
func (s *Service) Set(ctx context.Context, name, value string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": value, "updated_at": time.Now()}),
	}).Create(&Setting{Name: name, Value: value, UpdatedAt: time.Now()}).Error
}

// Rebate reads the rebate configuration fresh from storage. Absent or
// unparsable values fall back to rate=0 (rebates disabled) and
// mode=every_order; a configuration change is visible on the next call.
func (s *Service) Rebate(ctx context.Context) (RebateSettings, error) {
	out := RebateSettings{Rate: 0, Mode: ModeEveryOrder}

	raw, err := s.Get(ctx, KeyRebateRate)
	if err != nil {
		return out, err
	}
	if raw != "" {
		rate, perr := strconv.ParseFloat(raw, 64)
		switch {
		case perr != nil:
			zap.L().Warn("settings: unparsable rebate_rate, rebates disabled", zap.String("value", raw))
		case rate < 0:
			out.Rate = 0
		case rate > 1:
			out.Rate = 1
		default:
			out.Rate = rate
		}
	}

	mode, err := s.Get(ctx, KeyRebateMode)
	if err != nil {
		return out, err
	}
	if mode == ModeFirstOrder {
		out.Mode = ModeFirstOrder
	}

	return out, nil
}
