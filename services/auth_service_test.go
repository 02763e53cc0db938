package services

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yp-firedoor/firedoor-oa/authz"
	"github.com/yp-firedoor/firedoor-oa/errs"
	"github.com/yp-firedoor/firedoor-oa/models"
	"github.com/yp-firedoor/firedoor-oa/testutil"
)

var testTokenSettings = TokenSettings{
	Secret:     []byte("test-secret-test-secret-test-secret"),
	Issuer:     "firedoor-oa",
	Audience:   "firedoor-oa-api",
	AccessTTL:  time.Hour,
	RefreshTTL: 7 * 24 * time.Hour,
}

func newAuthFixture(t *testing.T) (*AuthService, *gorm.DB, testutil.Staff) {
	t.Helper()
	db := testutil.NewTestDB(t)
	matrix, err := authz.NewMatrix()
	require.NoError(t, err)
	svc := NewAuthService(db, testTokenSettings, matrix, NewAuditLogger(db, zap.NewNop()))
	return svc, db, testutil.CreateStaff(t, db)
}

func TestLogin(t *testing.T) {
	svc, db, staff := newAuthFixture(t)
	ctx := WithClientIP(context.Background(), "10.0.0.8")

	result, err := svc.Login(ctx, " reviewer ", testutil.DefaultPassword)
	require.NoError(t, err)

	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, int64(3600), result.ExpiresIn)
	assert.Equal(t, staff.Reviewer.ID, result.User.ID)
	assert.Equal(t, models.RoleReviewer.Label(), result.RoleDisplay)
	assert.True(t, result.Permissions.CanReviewOrder)
	assert.False(t, result.Permissions.CanCreateOrder)
	assert.Contains(t, result.AllowedActions, string(authz.OrderReview))

	claims, err := svc.ParseToken(result.Access)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.Equal(t, strconv.FormatUint(uint64(staff.Reviewer.ID), 10), claims.Subject)
	assert.Equal(t, "reviewer", claims.Role)

	var user models.User
	require.NoError(t, db.First(&user, staff.Reviewer.ID).Error)
	require.NotNil(t, user.LastLoginAt)
	assert.Equal(t, "10.0.0.8", user.LastLoginIP)

	var logs []models.SystemLog
	require.NoError(t, db.Where("module = ?", models.ModuleAuth).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "10.0.0.8", logs[0].IPAddress)
}

func TestLoginFailures(t *testing.T) {
	svc, db, staff := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "reviewer", "wrong-password")
	appErr, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_CREDENTIALS", appErr.Code)

	_, err = svc.Login(ctx, "nobody", testutil.DefaultPassword)
	appErr, ok = errs.As(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_CREDENTIALS", appErr.Code, "unknown users look like bad passwords")

	_, err = svc.Login(ctx, "", "")
	assert.True(t, errs.Is(err, errs.KindValidation))

	require.NoError(t, db.Model(staff.Clerk).Update("is_active", false).Error)
	_, err = svc.Login(ctx, "clerk", testutil.DefaultPassword)
	appErr, ok = errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUnauthenticated, appErr.Kind)
	assert.Equal(t, "ACCOUNT_DISABLED", appErr.Code)
}

func TestParseTokenRejects(t *testing.T) {
	svc, _, staff := newAuthFixture(t)
	pair, err := svc.IssueTokens(staff.Clerk)
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := *svc
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.ParseToken(pair.Access)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := *svc
		other.settings.Secret = []byte("another-secret")
		_, err := other.ParseToken(pair.Access)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("wrong audience", func(t *testing.T) {
		other := *svc
		other.settings.Audience = "someone-else"
		_, err := other.ParseToken(pair.Access)
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ParseToken("not-a-token")
		assert.Error(t, err)
	})
}

func TestRefresh(t *testing.T) {
	svc, db, staff := newAuthFixture(t)
	ctx := context.Background()

	pair, err := svc.IssueTokens(staff.Tech)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	claims, err := svc.ParseToken(refreshed.Access)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)

	_, err = svc.Refresh(ctx, pair.Access)
	appErr, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_TOKEN", appErr.Code, "access tokens cannot be used to refresh")

	require.NoError(t, db.Model(staff.Tech).Update("is_active", false).Error)
	_, err = svc.Refresh(ctx, pair.Refresh)
	appErr, ok = errs.As(err)
	require.True(t, ok)
	assert.Equal(t, "ACCOUNT_DISABLED", appErr.Code)

	_, err = svc.Refresh(ctx, "")
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.True(t, CheckPassword(hash, "secret1"))
	assert.False(t, CheckPassword(hash, "secret2"))
}
