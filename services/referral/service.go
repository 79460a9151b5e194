package referral

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"referral-settlement/pkg/db/option"
	"referral-settlement/pkg/repository"
	"referral-settlement/services/account"
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	relations repository.Repository[Relation]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		relations: repository.ProvideStore[Relation](p.DB),
	}
}

// SaveRelation records who invited whom. It is a silent no-op when either
// id is zero or the edge would be a self-referral. An existing relation for
// the invitee keeps its status and first-payment fields; only the inviter
// and code snapshot are refreshed, and the IP is first-seen-wins.
func (s *Service) SaveRelation(ctx context.Context, inviterID, inviteeID int64, code, ip string) error {
	if inviterID == 0 || inviteeID == 0 || inviterID == inviteeID {
		return nil
	}
	code = strings.ToLower(strings.TrimSpace(code))

	existing, err := s.relations.FindOne(ctx, &Relation{InviteeID: inviteeID})
	if err != nil {
		return err
	}

	if existing == nil {
		rel := &Relation{
			ID:         s.node.Generate().String(),
			InviterID:  inviterID,
			InviteeID:  inviteeID,
			InviteCode: code,
			InviteIP:   ip,
			Status:     StatusPending,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
		}
		err := s.relations.Create(ctx, rel)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		// Concurrent insert for the same invitee won; fall through to update.
		zap.L().Debug("referral: relation already created concurrently", zap.Int64("invitee_id", inviteeID))
	}

	if err := s.db.WithContext(ctx).Model(&Relation{}).
		Where("invitee_id = ?", inviteeID).
		Updates(map[string]interface{}{
			"inviter_id":  inviterID,
			"invite_code": code,
			"updated_at":  time.Now(),
		}).Error; err != nil {
		return err
	}

	if ip == "" {
		return nil
	}
	return s.db.WithContext(ctx).Model(&Relation{}).
		Where("invitee_id = ? AND (invite_ip IS NULL OR invite_ip = '')", inviteeID).
		Update("invite_ip", ip).Error
}

// GetRelation returns the invitee's relation, (nil, nil) when none exists.
func (s *Service) GetRelation(ctx context.Context, inviteeID int64) (*Relation, error) {
	if inviteeID == 0 {
		return nil, nil
	}
	return s.relations.FindOne(ctx, &Relation{InviteeID: inviteeID})
}

// ListByInviter returns an inviter's relations, newest first, for admin
// display.
func (s *Service) ListByInviter(ctx context.Context, inviterID int64, limit int) ([]*Relation, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.relations.Find(ctx, &Relation{InviterID: inviterID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
		option.WithLimit(limit),
	)
}

// IncrementInviteUsage bumps the inviter's used-invite counter by one with
// a single conditional update, clamping at a positive limit even under
// concurrent increments.
func (s *Service) IncrementInviteUsage(ctx context.Context, inviterID int64) error {
	if inviterID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&account.User{}).
		Where("id = ? AND (invite_limit <= 0 OR invite_used < invite_limit)", inviterID).
		Updates(map[string]interface{}{
			"invite_used": gorm.Expr("invite_used + 1"),
			"updated_at":  time.Now(),
		}).Error
}
