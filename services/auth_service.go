package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yp-firedoor/firedoor-oa/authz"
	appConfig "github.com/yp-firedoor/firedoor-oa/config"
	"github.com/yp-firedoor/firedoor-oa/errs"
	"github.com/yp-firedoor/firedoor-oa/models"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// BcryptCost is lowered in tests
var BcryptCost = bcrypt.DefaultCost

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// TokenSettings configures token issuance and verification
type TokenSettings struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenSettingsFromConfig reads the JWT_* settings
func TokenSettingsFromConfig(cfg *appConfig.Config) TokenSettings {
	return TokenSettings{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}
}

// TokenClaims are the claims carried by both token types.
// Role is informational; authorization always reads the role from the database.
type TokenClaims struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is returned by login and refresh
type TokenPair struct {
	Access    string `json:"access"`
	Refresh   string `json:"refresh"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// LoginResult is the login response payload
type LoginResult struct {
	TokenPair
	User           *models.User      `json:"user"`
	RoleDisplay    string            `json:"role_display"`
	Permissions    authz.Permissions `json:"permissions"`
	AllowedActions []string          `json:"allowed_actions"`
}

// AuthService authenticates users and issues tokens
type AuthService struct {
	db       *gorm.DB
	settings TokenSettings
	matrix   *authz.Matrix
	audit    *AuditLogger
	now      func() time.Time
}

func NewAuthService(db *gorm.DB, settings TokenSettings, matrix *authz.Matrix, audit *AuditLogger) *AuthService {
	return &AuthService{
		db:       db,
		settings: settings,
		matrix:   matrix,
		audit:    audit,
		now:      time.Now,
	}
}

func invalidCredentials() error {
	return errs.Unauthenticated("INVALID_CREDENTIALS", "username or password is incorrect")
}

// Login checks credentials, records the login and issues a token pair
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errs.ValidationFields(map[string]string{
			"username": "username and password are required",
		})
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.audit.Record(ctx, models.LogWarning, models.ModuleAuth, nil, "登录失败：用户 %s 不存在", username)
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, errs.Internal("failed to load user", err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		s.audit.Record(ctx, models.LogWarning, models.ModuleAuth, &user.ID, "登录失败：用户 %s 密码错误", username)
		return nil, invalidCredentials()
	}
	if !user.IsActive {
		return nil, errs.Unauthenticated("ACCOUNT_DISABLED", "this account has been disabled")
	}

	now := s.now()
	ip := ClientIP(ctx)
	if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"last_login_at": now,
		"last_login_ip": ip,
	}).Error; err != nil {
		return nil, errs.Internal("failed to record login", err)
	}
	user.LastLoginAt = &now
	user.LastLoginIP = ip

	pair, err := s.IssueTokens(&user)
	if err != nil {
		return nil, errs.Internal("failed to issue tokens", err)
	}

	s.audit.Record(ctx, models.LogInfo, models.ModuleAuth, &user.ID, "用户 %s 登录", user.Username)

	return &LoginResult{
		TokenPair:      *pair,
		User:           &user,
		RoleDisplay:    user.Role.Label(),
		Permissions:    s.matrix.Summary(user.Role),
		AllowedActions: s.matrix.ActionsFor(user.Role),
	}, nil
}

// IssueTokens signs a new access/refresh pair for user
func (s *AuthService) IssueTokens(user *models.User) (*TokenPair, error) {
	now := s.now()

	access, err := s.sign(user, TokenTypeAccess, now, s.settings.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(user, TokenTypeRefresh, now, s.settings.RefreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		Access:    access,
		Refresh:   refresh,
		TokenType: "Bearer",
		ExpiresIn: int64(s.settings.AccessTTL.Seconds()),
	}, nil
}

func (s *AuthService) sign(user *models.User, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := TokenClaims{
		Username:  user.Username,
		Role:      string(user.Role),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    s.settings.Issuer,
			Audience:  jwt.ClaimStrings{s.settings.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.settings.Secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// ParseToken verifies signature, issuer, audience and expiry
func (s *AuthService) ParseToken(raw string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return s.settings.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.settings.Issuer),
		jwt.WithAudience(s.settings.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a new pair. The user is reloaded so
// a disabled account cannot keep refreshing.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errs.Validation("refresh", "refresh token is required")
	}

	claims, err := s.ParseToken(raw)
	if err != nil {
		return nil, errs.Unauthenticated("INVALID_TOKEN", "refresh token is invalid or expired")
	}
	if claims.TokenType != TokenTypeRefresh {
		return nil, errs.Unauthenticated("INVALID_TOKEN", "token is not a refresh token")
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, errs.Unauthenticated("INVALID_TOKEN", "token subject is invalid")
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Unauthenticated("USER_NOT_FOUND", "account no longer exists")
		}
		return nil, errs.Internal("failed to load user", err)
	}
	if !user.IsActive {
		return nil, errs.Unauthenticated("ACCOUNT_DISABLED", "this account has been disabled")
	}

	pair, err := s.IssueTokens(&user)
	if err != nil {
		return nil, errs.Internal("failed to issue tokens", err)
	}
	return pair, nil
}
