package invitecode

import (
	"context"
	"strings"
	"testing"

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
	db := testutil.NewTestDB(t, &account.User{})
	return NewService(ServiceParams{DB: db}), db
}

func codeOf(t *testing.T, db *gorm.DB, userID int64) string {
	t.Helper()
	var u account.User
	require.NoError(t, db.First(&u, "id = ?", userID).Error)
	return u.Code()
}

func TestEnsureInviteCodeGenerates(t *testing.T) {
	svc, db := newService(t)
	require.NoError(t, db.Create(&account.User{ID: 1}).Error)

	code, err := svc.EnsureInviteCode(context.Background(), 1, 8)
	require.NoError(t, err)
	require.Len(t, code, 8)
	for _, r := range code {
		require.Contains(t, alphabet, string(r), "code drawn from the unambiguous alphabet")
	}
	require.Equal(t, code, codeOf(t, db, 1))
}

func TestEnsureInviteCodeIsIdempotent(t *testing.T) {
	svc, db := newService(t)
	existing := "KeepMe23"
	require.NoError(t, db.Create(&account.User{ID: 1, InviteCode: &existing}).Error)

	code, err := svc.EnsureInviteCode(context.Background(), 1, 8)
	require.NoError(t, err)
	require.Equal(t, "keepme23", code, "existing code returned in canonical lower case")
	require.Equal(t, existing, codeOf(t, db, 1), "stored code left untouched")

	again, err := svc.EnsureInviteCode(context.Background(), 1, 8)
	require.NoError(t, err)
	require.Equal(t, code, again)
}

func TestEnsureInviteCodeDistinctUsers(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for id := int64(1); id <= 5; id++ {
		require.NoError(t, db.Create(&account.User{ID: id}).Error)
		code, err := svc.EnsureInviteCode(ctx, id, 8)
		require.NoError(t, err)
		require.False(t, seen[code], "codes must be unique across users")
		seen[code] = true
	}
}

func TestEnsureInviteCodeUnknownUser(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.EnsureInviteCode(context.Background(), 99, 8)
	require.Error(t, err)

	_, err = svc.EnsureInviteCode(context.Background(), 0, 8)
	require.Error(t, err)
}

func TestRegenerateInviteCodeResetsUsage(t *testing.T) {
	svc, db := newService(t)
	old := "oldcode2"
	require.NoError(t, db.Create(&account.User{ID: 1, InviteCode: &old, InviteUsed: 7}).Error)

	code, err := svc.RegenerateInviteCode(context.Background(), 1, 8)
	require.NoError(t, err)
	require.NotEqual(t, old, code)
	require.Len(t, code, 8)

	var u account.User
	require.NoError(t, db.First(&u, "id = ?", 1).Error)
	require.Equal(t, code, u.Code())
	require.Zero(t, u.InviteUsed, "regeneration invalidates prior invite-count progress")
}

func TestFindInviterByCode(t *testing.T) {
	svc, db := newService(t)
	code := "abcd2345"
	require.NoError(t, db.Create(&account.User{ID: 1, InviteCode: &code, InviteLimit: 10, InviteUsed: 3}).Error)

	info, err := svc.FindInviterByCode(context.Background(), "  ABCD2345 ")
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, int64(1), info.UserID)
	require.Equal(t, 10, info.InviteLimit)
	require.Equal(t, 3, info.InviteUsed)

	info, err = svc.FindInviterByCode(context.Background(), "missing9")
	require.NoError(t, err)
	require.Nil(t, info)

	info, err = svc.FindInviterByCode(context.Background(), "   ")
	require.NoError(t, err)
	require.Nil(t, info)
}

func TestFallbackCodeShape(t *testing.T) {
	code, err := fallbackCode(8)
	require.NoError(t, err)
	require.Len(t, code, 8)
	require.Equal(t, strings.ToLower(code), code)
}
