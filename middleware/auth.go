package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yp-firedoor/firedoor-oa/authz"
	"github.com/yp-firedoor/firedoor-oa/config"
	"github.com/yp-firedoor/firedoor-oa/errs"
	"github.com/yp-firedoor/firedoor-oa/models"
)

const (
	userIDKey          = "user_id"
	validatedClaimsKey = "validated_claims"
	currentUserKey     = "current_user"
)

// CustomClaims contains the application claims carried by our tokens.
type CustomClaims struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
}

// Validate rejects refresh tokens presented as access tokens.
func (c CustomClaims) Validate(ctx context.Context) error {
	if c.TokenType != "access" {
		return fmt.Errorf("token_type %q cannot be used for API access", c.TokenType)
	}
	return nil
}

// EnsureValidToken is a middleware that will check the validity of our JWT.
// Tokens are read from the Authorization header, or from the token query
// parameter for plain download links.
func EnsureValidToken(cfg *config.Config) (gin.HandlerFunc, error) {
	secret := []byte(cfg.JWTSecret)
	keyFunc := func(ctx context.Context) (interface{}, error) {
		return secret, nil
	}

	jwtValidator, err := validator.New(
		keyFunc,
		validator.HS256,
		cfg.JWTIssuer,
		[]string{cfg.JWTAudience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		code, message := "INVALID_TOKEN", "Failed to validate JWT."
		if errors.Is(err, jwtmiddleware.ErrJWTMissing) {
			code, message = "UNAUTHORIZED", "Authentication credentials were not provided."
		} else {
			zap.L().Debug("Encountered error while validating JWT", zap.Error(err))
		}

		body, _ := json.Marshal(gin.H{
			"success": false,
			"error":   gin.H{"code": code, "message": message},
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		if _, writeErr := w.Write(body); writeErr != nil {
			zap.L().Warn("Failed to write error response", zap.Error(writeErr))
		}
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
		jwtmiddleware.WithTokenExtractor(jwtmiddleware.MultiTokenExtractor(
			jwtmiddleware.AuthHeaderTokenExtractor,
			jwtmiddleware.ParameterTokenExtractor("token"),
		)),
	)

	return func(c *gin.Context) {
		passed := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
			if !ok {
				return
			}
			userID, err := strconv.ParseUint(claims.RegisteredClaims.Subject, 10, 64)
			if err != nil {
				return
			}

			passed = true
			c.Request = r
			c.Set(userIDKey, uint(userID))
			c.Set(validatedClaimsKey, claims)
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !passed {
			if !c.Writer.Written() {
				RespondError(c, errs.Unauthenticated("INVALID_TOKEN", "Failed to validate JWT."))
			}
			c.Abort()
			return
		}
		c.Next()
	}, nil
}

// GetUserID extracts the authenticated user ID from the Gin context
func GetUserID(c *gin.Context) (uint, error) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return 0, &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}

	id, ok := userID.(uint)
	if !ok {
		return 0, &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not a number"}
	}

	return id, nil
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get(validatedClaimsKey)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// LoadCurrentUser reloads the token's user on every request so role changes
// and deactivation take effect immediately.
func LoadCurrentUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			AbortWithError(c, errs.Unauthenticated("UNAUTHORIZED", "Authentication credentials were not provided."))
			return
		}

		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				AbortWithError(c, errs.Unauthenticated("USER_NOT_FOUND", "The account for this token no longer exists."))
				return
			}
			AbortWithError(c, errs.Internal("failed to load current user", err))
			return
		}
		if !user.IsActive {
			AbortWithError(c, errs.Unauthenticated("ACCOUNT_DISABLED", "This account has been disabled."))
			return
		}

		c.Set(currentUserKey, &user)
		c.Next()
	}
}

// CurrentUser returns the user loaded by LoadCurrentUser
func CurrentUser(c *gin.Context) (*models.User, error) {
	value, exists := c.Get(currentUserKey)
	if !exists {
		return nil, &AuthError{Code: "MISSING_USER", Message: "Current user not found in context"}
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil, &AuthError{Code: "INVALID_USER", Message: "Current user is not in the expected format"}
	}
	return user, nil
}

// RequirePermission is a middleware that checks the current user's role against the matrix
func RequirePermission(matrix *authz.Matrix, action authz.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := CurrentUser(c)
		if err != nil {
			AbortWithError(c, errs.Unauthenticated("UNAUTHORIZED", "Authentication credentials were not provided."))
			return
		}
		if err := matrix.Authorize(user.Role, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
