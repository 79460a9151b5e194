package invitecode

import (
	"context"
	"crypto/rand"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"referral-settlement/pkg/errutil"
	"referral-settlement/pkg/repository"
	"referral-settlement/services/account"
)

// Alphabet excludes visually confusable characters (0, 1, i, l, o).
// Codes are stored and matched in lower case.
const alphabet = "abcdefghjkmnpqrstuvwxyz23456789"

const (
	DefaultLength = 8
	maxAttempts   = 10
)

// InviterInfo is the registration flow's view of a code owner.
type InviterInfo struct {
	UserID      int64 `json:"user_id"`
	InviteLimit int   `json:"invite_limit"`
	InviteUsed  int   `json:"invite_used"`
}

type Service struct {
	db    *gorm.DB
	users repository.Repository[account.User]
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		users: repository.ProvideStore[account.User](p.DB),
	}
}

// EnsureInviteCode returns the user's invite code, generating one if the
// user has none yet. Idempotent: an existing non-empty code is returned
// unchanged in its canonical lower-case form.
func (s *Service) EnsureInviteCode(ctx context.Context, userID int64, length int) (string, error) {
	if userID == 0 {
		return "", errutil.BadRequest("user id is required", nil)
	}
	if length <= 0 {
		length = DefaultLength
	}

	user, err := s.users.FindOne(ctx, &account.User{ID: userID})
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", errutil.NotFound("user not found", nil)
	}

	if code := normalize(user.Code()); code != "" {
		return code, nil
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := randomCode(length)
		if err != nil {
			return "", err
		}

		taken, err := s.users.Count(ctx, &account.User{InviteCode: &code})
		if err != nil {
			return "", err
		}
		if taken > 0 {
			continue
		}

		assigned, err := s.assignIfEmpty(ctx, userID, code)
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return "", err
		}
		if !assigned {
			// Lost a race with a concurrent ensure; the winner's code stands.
			return s.EnsureInviteCode(ctx, userID, length)
		}
		return code, nil
	}

	// Best-effort escape valve after repeated collisions: the timestamp base
	// makes a clash practically require two exhausted generators in the same
	// millisecond. Uniqueness is not re-checked here.
	code, err := fallbackCode(length)
	if err != nil {
		return "", err
	}
	zap.L().Warn("invitecode: collision limit reached, using timestamp fallback",
		zap.Int64("user_id", userID), zap.String("code", code))

	if _, err := s.assignIfEmpty(ctx, userID, code); err != nil {
		return "", err
	}
	return code, nil
}

// RegenerateInviteCode always issues a fresh code and resets the usage
// counter, invalidating prior invite-count progress.
func (s *Service) RegenerateInviteCode(ctx context.Context, userID int64, length int) (string, error) {
	if userID == 0 {
		return "", errutil.BadRequest("user id is required", nil)
	}
	if length <= 0 {
		length = DefaultLength
	}

	user, err := s.users.FindOne(ctx, &account.User{ID: userID})
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", errutil.NotFound("user not found", nil)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := randomCode(length)
		if err != nil {
			return "", err
		}

		taken, err := s.users.Count(ctx, &account.User{InviteCode: &code})
		if err != nil {
			return "", err
		}
		if taken > 0 {
			continue
		}

		if err := s.assign(ctx, userID, code); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return "", err
		}
		return code, nil
	}

	code, err := fallbackCode(length)
	if err != nil {
		return "", err
	}
	zap.L().Warn("invitecode: collision limit reached, using timestamp fallback",
		zap.Int64("user_id", userID), zap.String("code", code))

	if err := s.assign(ctx, userID, code); err != nil {
		return "", err
	}
	return code, nil
}

// FindInviterByCode resolves a code to its owner. Matching is
// case-insensitive; an input that normalizes to empty yields (nil, nil).
func (s *Service) FindInviterByCode(ctx context.Context, code string) (*InviterInfo, error) {
	code = normalize(code)
	if code == "" {
		return nil, nil
	}

	user, err := s.users.FindOne(ctx, &account.User{InviteCode: &code})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	return &InviterInfo{
		UserID:      user.ID,
		InviteLimit: user.InviteLimit,
		InviteUsed:  user.InviteUsed,
	}, nil
}

// assignIfEmpty writes the code only when the user still has none, so a
// concurrent ensure cannot overwrite an already-assigned code.
func (s *Service) assignIfEmpty(ctx context.Context, userID int64, code string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&account.User{}).
		Where("id = ? AND (invite_code IS NULL OR invite_code = '')", userID).
		Updates(map[string]interface{}{"invite_code": code, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) assign(ctx context.Context, userID int64, code string) error {
	return s.db.WithContext(ctx).Model(&account.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"invite_code": code,
			"invite_used": 0,
			"updated_at":  time.Now(),
		}).Error
}

func normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

func fallbackCode(length int) (string, error) {
	suffix, err := randomCode(4)
	if err != nil {
		return "", err
	}
	code := strconv.FormatInt(time.Now().UnixMilli(), 36) + suffix
	if len(code) > length {
		code = code[:length]
	}
	return code, nil
}
