package rebate

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Reporting reads for admin surfaces. These never mutate ledger rows.

// ListByInviter returns an inviter's ledger entries, newest first, within
// the optional [from, to) window, plus the total row count for paging.
func (s *Service) ListByInviter(ctx context.Context, inviterID int64, from, to time.Time, limit, offset int) ([]*Transaction, int64, error) {
	var total int64
	if err := s.inWindow(ctx, from, to).
		Where("inviter_id = ?", inviterID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var entries []*Transaction
	if err := s.inWindow(ctx, from, to).
		Where("inviter_id = ?", inviterID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// SummarizeBySource aggregates signed settlement amounts per source type
// within the optional [from, to) window.
func (s *Service) SummarizeBySource(ctx context.Context, from, to time.Time) ([]SourceSummary, error) {
	var out []SourceSummary
	if err := s.inWindow(ctx, from, to).
		Select("source_type, COUNT(*) AS entries, COALESCE(SUM(amount), 0) AS total").
		Group("source_type").
		Order("source_type ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) inWindow(ctx context.Context, from, to time.Time) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&Transaction{})
	if !from.IsZero() {
		query = query.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("created_at < ?", to)
	}
	return query
}
