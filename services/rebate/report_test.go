package rebate

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
)

func seedLedger(t *testing.T, f *fixture) {
	t.Helper()

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rows := []*Transaction{
		{InviterID: 1, SourceType: SourcePurchase, SourceID: ptr(int64(1)), Amount: 10, CreatedAt: base},
		{InviterID: 1, SourceType: SourcePurchase, SourceID: ptr(int64(2)), Amount: 15, CreatedAt: base.Add(24 * time.Hour)},
		{InviterID: 1, SourceType: SourceRecharge, SourceID: ptr(int64(3)), Amount: 5, CreatedAt: base.Add(48 * time.Hour)},
		{InviterID: 2, SourceType: SourcePurchase, SourceID: ptr(int64(4)), Amount: 99, CreatedAt: base},
		{InviterID: 1, SourceType: SourceManual, Amount: -3, CreatedAt: base.Add(72 * time.Hour)},
	}
	for _, row := range rows {
		row.ID = node.Generate().String()
		row.Status = StatusConfirmed
		require.NoError(t, f.db.Create(row).Error)
	}
}

func TestListByInviter(t *testing.T) {
	f := newFixture(t)
	seedLedger(t, f)

	entries, total, err := f.svc.ListByInviter(context.Background(), 1, time.Time{}, time.Time{}, 50, 0)
	require.NoError(t, err)
	require.Equal(t, int64(4), total)
	require.Len(t, entries, 4)
	for i := 1; i < len(entries); i++ {
		require.False(t, entries[i].CreatedAt.After(entries[i-1].CreatedAt), "entries ordered newest first")
	}
}

func TestListByInviterWindowAndPaging(t *testing.T) {
	f := newFixture(t)
	seedLedger(t, f)

	from := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)

	entries, total, err := f.svc.ListByInviter(context.Background(), 1, from, to, 50, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, entries, 2)

	page, total, err := f.svc.ListByInviter(context.Background(), 1, from, to, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, page, 1)
}

func TestSummarizeBySource(t *testing.T) {
	f := newFixture(t)
	seedLedger(t, f)

	summary, err := f.svc.SummarizeBySource(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, summary, 3)

	bySource := map[string]SourceSummary{}
	for _, s := range summary {
		bySource[s.SourceType] = s
	}

	require.Equal(t, int64(3), bySource[SourcePurchase].Entries)
	require.Equal(t, 124.0, bySource[SourcePurchase].Total)
	require.Equal(t, int64(1), bySource[SourceRecharge].Entries)
	require.Equal(t, 5.0, bySource[SourceRecharge].Total)
	require.Equal(t, -3.0, bySource[SourceManual].Total)
}
