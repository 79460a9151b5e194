package referral

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"referral-settlement/services/account"
	"referral-settlement/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &account.User{}, &Relation{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node}), db
}

func loadRelation(t *testing.T, db *gorm.DB, inviteeID int64) *Relation {
	t.Helper()
	var rel Relation
	require.NoError(t, db.First(&rel, "invitee_id = ?", inviteeID).Error)
	return &rel
}

func TestSaveRelationIgnoresInvalidEdges(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveRelation(ctx, 0, 2, "code", "10.0.0.1"))
	require.NoError(t, svc.SaveRelation(ctx, 1, 0, "code", "10.0.0.1"))
	require.NoError(t, svc.SaveRelation(ctx, 3, 3, "code", "10.0.0.1"))

	var count int64
	require.NoError(t, db.Model(&Relation{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSaveRelationInsertsPending(t *testing.T) {
	svc, db := newService(t)

	require.NoError(t, svc.SaveRelation(context.Background(), 1, 2, "ABCD23", "10.0.0.1"))

	rel := loadRelation(t, db, 2)
	require.Equal(t, int64(1), rel.InviterID)
	require.Equal(t, StatusPending, rel.Status)
	require.Equal(t, "abcd23", rel.InviteCode)
	require.Equal(t, "10.0.0.1", rel.InviteIP)
	require.Nil(t, rel.FirstPaymentID)
}

func TestSaveRelationUpdateKeepsFirstSeenState(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveRelation(ctx, 1, 2, "first1", "10.0.0.1"))

	// Simulate a settled relation before the second save.
	require.NoError(t, db.Model(&Relation{}).
		Where("invitee_id = ?", 2).
		Updates(map[string]interface{}{"status": StatusActive, "first_payment_id": 500}).Error)

	require.NoError(t, svc.SaveRelation(ctx, 9, 2, "second", "192.168.1.1"))

	rel := loadRelation(t, db, 2)
	require.Equal(t, int64(9), rel.InviterID)
	require.Equal(t, "second", rel.InviteCode)
	require.Equal(t, "10.0.0.1", rel.InviteIP, "invite_ip is first-seen-wins")
	require.Equal(t, StatusActive, rel.Status, "status untouched by re-registration")
	require.Equal(t, int64(500), *rel.FirstPaymentID)
}

func TestSaveRelationBackfillsEmptyIP(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveRelation(ctx, 1, 2, "code23", ""))
	require.NoError(t, svc.SaveRelation(ctx, 1, 2, "code23", "10.0.0.9"))

	rel := loadRelation(t, db, 2)
	require.Equal(t, "10.0.0.9", rel.InviteIP)
}

func TestGetRelation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	rel, err := svc.GetRelation(ctx, 2)
	require.NoError(t, err)
	require.Nil(t, rel)

	require.NoError(t, svc.SaveRelation(ctx, 1, 2, "code23", ""))

	rel, err = svc.GetRelation(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, rel)
	require.Equal(t, int64(2), rel.InviteeID)
}

func TestListByInviter(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for invitee := int64(2); invitee <= 4; invitee++ {
		require.NoError(t, svc.SaveRelation(ctx, 1, invitee, "code23", ""))
	}
	require.NoError(t, svc.SaveRelation(ctx, 9, 10, "other2", ""))

	relations, err := svc.ListByInviter(ctx, 1, 50)
	require.NoError(t, err)
	require.Len(t, relations, 3)
	for _, rel := range relations {
		require.Equal(t, int64(1), rel.InviterID)
	}

	limited, err := svc.ListByInviter(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestIncrementInviteUsageClampsAtLimit(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&account.User{ID: 1, InviteLimit: 2}).Error)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.IncrementInviteUsage(ctx, 1))
	}

	var u account.User
	require.NoError(t, db.First(&u, "id = ?", 1).Error)
	require.Equal(t, 2, u.InviteUsed, "usage never exceeds a positive limit")
}

func TestIncrementInviteUsageUnlimitedWhenNoLimit(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&account.User{ID: 1, InviteLimit: 0}).Error)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.IncrementInviteUsage(ctx, 1))
	}

	var u account.User
	require.NoError(t, db.First(&u, "id = ?", 1).Error)
	require.Equal(t, 3, u.InviteUsed)
}
