package rebate

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"referral-settlement/pkg/errutil"
	"referral-settlement/pkg/repository"
	"referral-settlement/services/account"
	"referral-settlement/services/invitecode"
	"referral-settlement/services/referral"
	"referral-settlement/services/settings"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	ledger repository.Repository[Transaction]
	users  repository.Repository[account.User]

	referrals *referral.Service
	settings  *settings.Service
	codes     *invitecode.Service
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node

	Referrals *referral.Service
	Settings  *settings.Service
	Codes     *invitecode.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		ledger: repository.ProvideStore[Transaction](p.DB),
		users:  repository.ProvideStore[account.User](p.DB),

		referrals: p.Referrals,
		settings:  p.Settings,
		codes:     p.Codes,
	}
}

// AwardRebate settles one payment event. It returns (false, nil) for every
// ordinary ineligibility and (false, err) only for storage failures, so the
// payment collaborator can retry failures without double-crediting: the
// ledger's uniqueness gate makes replays of an applied event no-ops.
func (s *Service) AwardRebate(ctx context.Context, p AwardParams) (bool, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.Int64("invitee_id", p.InviteeID),
		zap.String("source_type", p.SourceType),
	}

	if p.InviteeID == 0 || p.Amount <= 0 {
		return false, nil
	}

	// Settings are read fresh on every call; a rate/mode change takes effect
	// on the next event with no propagation delay.
	st, err := s.settings.Rebate(ctx)
	if err != nil {
		return false, errutil.Internal("failed to read rebate settings", err)
	}
	if st.Rate <= 0 {
		return false, nil
	}

	invitee, err := s.users.FindOne(ctx, &account.User{ID: p.InviteeID})
	if err != nil {
		return false, errutil.Internal("failed to load invitee", err)
	}
	if invitee == nil || invitee.InvitedBy <= 0 || invitee.InvitedBy == invitee.ID {
		return false, nil
	}

	// Eligibility is re-read at award time, never cached.
	inviter, err := s.users.FindOne(ctx, &account.User{ID: invitee.InvitedBy})
	if err != nil {
		return false, errutil.Internal("failed to load inviter", err)
	}
	if inviter == nil || !inviter.Eligible(time.Now()) {
		return false, nil
	}

	if p.SourceID != nil {
		applied, err := s.alreadyApplied(ctx, p.SourceType, *p.SourceID)
		if err != nil {
			return false, errutil.Internal("failed idempotency lookup", err)
		}
		if applied {
			zap.L().With(opts...).Info("rebate: event already settled", zap.Int64p("source_id", p.SourceID))
			return false, nil
		}
	}

	rel, err := s.ensureRelation(ctx, inviter, invitee)
	if err != nil {
		return false, err
	}

	if st.Mode == settings.ModeFirstOrder && rel.FirstPaymentID != nil {
		return false, nil
	}

	amount := Round2(p.Amount * st.Rate)
	if amount <= 0 {
		return false, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meta, _ := json.Marshal(map[string]interface{}{
			"mode": st.Mode,
			"rate": st.Rate,
		})
		entry := &Transaction{
			ID:         s.node.Generate().String(),
			InviterID:  inviter.ID,
			ReferralID: &rel.ID,
			InviteeID:  &invitee.ID,
			SourceType: p.SourceType,
			SourceID:   p.SourceID,
			TradeNo:    nullable(p.TradeNo),
			EventType:  p.EventType,
			Amount:     amount,
			Status:     StatusConfirmed,
			Remark:     "invitee payment rebate",
			Metadata:   datatypes.JSON(meta),
			CreatedAt:  time.Now(),
		}
		if err := s.ledger.WithTrx(tx).Create(ctx, entry); err != nil {
			return err
		}

		if err := tx.Model(&account.User{}).
			Where("id = ?", inviter.ID).
			Updates(map[string]interface{}{
				"rebate_available": gorm.Expr("rebate_available + ?", amount),
				"rebate_total":     gorm.Expr("rebate_total + ?", amount),
				"updated_at":       time.Now(),
			}).Error; err != nil {
			return err
		}

		return s.advanceRelation(ctx, tx, rel, p)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent settlement of the same event won the insert.
			zap.L().With(opts...).Info("rebate: duplicate event insert, treated as settled")
			return false, nil
		}
		zap.L().With(opts...).Error("rebate: settlement failed", zap.Error(err))
		return false, errutil.Internal("failed to apply rebate", err)
	}

	zap.L().With(opts...).Info("rebate: applied",
		zap.Int64("inviter_id", inviter.ID), zap.Float64("amount", amount))
	return true, nil
}

// InsertUserTransaction credits (or, with a negative amount, debits) a
// user's rebate balance outside any referral, e.g. a manual adjustment. The
// ledger row keeps referral_id null. No-op when the rounded amount is zero
// or the user id is zero.
func (s *Service) InsertUserTransaction(ctx context.Context, userID int64, amount float64, sourceType, remark string) error {
	rounded := Round2(amount)
	if userID == 0 || rounded == 0 {
		return nil
	}
	if sourceType == "" {
		sourceType = SourceManual
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := &Transaction{
			ID:         s.node.Generate().String(),
			InviterID:  userID,
			SourceType: sourceType,
			Amount:     rounded,
			Status:     StatusConfirmed,
			Remark:     remark,
			CreatedAt:  time.Now(),
		}
		if err := s.ledger.WithTrx(tx).Create(ctx, entry); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"rebate_available": gorm.Expr("rebate_available + ?", rounded),
			"updated_at":       time.Now(),
		}
		// rebate_total only ever grows; debits reduce the available balance.
		if rounded > 0 {
			updates["rebate_total"] = gorm.Expr("rebate_total + ?", rounded)
		}
		return tx.Model(&account.User{}).Where("id = ?", userID).Updates(updates).Error
	})
}

func (s *Service) alreadyApplied(ctx context.Context, sourceType string, sourceID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Transaction{}).
		Where("source_type = ? AND source_id = ? AND amount > 0", sourceType, sourceID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) ensureRelation(ctx context.Context, inviter, invitee *account.User) (*referral.Relation, error) {
	rel, err := s.referrals.GetRelation(ctx, invitee.ID)
	if err != nil {
		return nil, errutil.Internal("failed to load relation", err)
	}
	if rel != nil {
		return rel, nil
	}

	code, err := s.codes.EnsureInviteCode(ctx, inviter.ID, invitecode.DefaultLength)
	if err != nil {
		return nil, errutil.Internal("failed to ensure inviter code", err)
	}
	if err := s.referrals.SaveRelation(ctx, inviter.ID, invitee.ID, code, ""); err != nil {
		return nil, errutil.Internal("failed to save relation", err)
	}

	rel, err = s.referrals.GetRelation(ctx, invitee.ID)
	if err != nil {
		return nil, errutil.Internal("failed to reload relation", err)
	}
	if rel == nil {
		return nil, errutil.Internal("relation missing after save", nil)
	}
	return rel, nil
}

// advanceRelation records the first qualifying payment exactly once and
// moves the relation to active. Status only ever advances pending->active.
func (s *Service) advanceRelation(ctx context.Context, tx *gorm.DB, rel *referral.Relation, p AwardParams) error {
	if rel.FirstPaymentID == nil && p.SourceID != nil {
		res := tx.WithContext(ctx).Model(&referral.Relation{}).
			Where("id = ? AND first_payment_id IS NULL", rel.ID).
			Updates(map[string]interface{}{
				"first_payment_type": p.SourceType,
				"first_payment_id":   *p.SourceID,
				"first_paid_at":      time.Now(),
				"status":             referral.StatusActive,
				"updated_at":         time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		// Another settlement set the first payment in between; fall through
		// and make sure the status still reaches active.
	}

	return tx.WithContext(ctx).Model(&referral.Relation{}).
		Where("id = ? AND status <> ?", rel.ID, referral.StatusActive).
		Updates(map[string]interface{}{
			"status":     referral.StatusActive,
			"updated_at": time.Now(),
		}).Error
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
