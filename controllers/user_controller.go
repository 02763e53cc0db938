package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yp-firedoor/firedoor-oa/authz"
	"github.com/yp-firedoor/firedoor-oa/errs"
	"github.com/yp-firedoor/firedoor-oa/middleware"
	"github.com/yp-firedoor/firedoor-oa/models"
	"github.com/yp-firedoor/firedoor-oa/services"
	"github.com/yp-firedoor/firedoor-oa/utils"
)

// UserController serves login, the caller's own account and admin user management
type UserController struct {
	auth   *services.AuthService
	users  *services.UserService
	matrix *authz.Matrix
}

func NewUserController(auth *services.AuthService, users *services.UserService, matrix *authz.Matrix) *UserController {
	return &UserController{auth: auth, users: users, matrix: matrix}
}

// LoginRequest represents the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest represents the request body for refreshing tokens
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// ChangePasswordRequest represents the request body for changing one's own password
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ResetPasswordRequest represents the request body for an admin password reset
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required"`
}

// CreateUserRequest represents the request body for creating an account
type CreateUserRequest struct {
	Username        string      `json:"username" binding:"required,max=150"`
	Password        string      `json:"password" binding:"required"`
	ConfirmPassword string      `json:"confirm_password" binding:"required"`
	Role            models.Role `json:"role" binding:"required"`
	FullName        string      `json:"full_name" binding:"omitempty,max=100"`
	Email           string      `json:"email" binding:"omitempty,email"`
	Phone           string      `json:"phone" binding:"omitempty,max=32"`
	Department      string      `json:"department" binding:"omitempty,max=100"`
	IsActive        *bool       `json:"is_active"`
}

// UpdateUserRequest represents the request body for updating an account.
// Only the fields present are changed.
type UpdateUserRequest struct {
	Role       *models.Role `json:"role"`
	FullName   *string      `json:"full_name" binding:"omitempty,max=100"`
	Email      *string      `json:"email" binding:"omitempty,email"`
	Phone      *string      `json:"phone" binding:"omitempty,max=32"`
	Department *string      `json:"department" binding:"omitempty,max=100"`
	IsActive   *bool        `json:"is_active"`
}

// UserProfile is a user with their role label and capabilities
type UserProfile struct {
	*models.User
	RoleDisplay    string            `json:"role_display"`
	Permissions    authz.Permissions `json:"permissions"`
	AllowedActions []string          `json:"allowed_actions"`
}

func userIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		middleware.RespondError(c, errs.BadRequest("INVALID_USER_ID", "User ID must be a positive integer").
			WithDetail("id", c.Param("id")))
		return 0, false
	}
	return uint(id), true
}

// Login handles POST /api/v1/users/login
func (uc *UserController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, bindingError(err))
		return
	}

	result, err := uc.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

// RefreshToken handles POST /api/v1/users/token/refresh
func (uc *UserController) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, bindingError(err))
		return
	}

	pair, err := uc.auth.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	respondData(c, http.StatusOK, pair)
}

// GetMe handles GET /api/v1/users/me
func (uc *UserController) GetMe(c *gin.Context) {
	user, _, ok := currentActor(c)
	if !ok {
		return
	}

	respondData(c, http.StatusOK, UserProfile{
		User:           user,
		RoleDisplay:    user.Role.Label(),
		Permissions:    uc.matrix.Summary(user.Role),
		AllowedActions: uc.matrix.ActionsFor(user.Role),
	})
}

// ChangePassword handles POST /api/v1/users/change-password
func (uc *UserController) ChangePassword(c *gin.Context) {
	user, _, ok := currentActor(c)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, bindingError(err))
		return
	}

	if err := uc.users.ChangePassword(c.Request.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		middleware.RespondError(c, err)
		return
	}
	respondMessage(c, "Password changed")
}

// ListUsers handles GET /api/v1/users/admin/users (admin).
// Optional query parameters: role, is_active, search.
func (uc *UserController) ListUsers(c *gin.Context) {
	filter := services.UserFilter{
		Role:   models.Role(c.Query("role")),
		Search: c.Query("search"),
	}
	if filter.Role != "" && !filter.Role.Valid() {
		middleware.RespondError(c, errs.Validation("role", "unknown role: "+string(filter.Role)))
		return
	}
	if raw := c.Query("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			middleware.RespondError(c, errs.Validation("is_active", "is_active must be true or false"))
			return
		}
		filter.IsActive = &active
	}

	page := utils.ParsePagination(c)
	users, total, err := uc.users.List(c.Request.Context(), filter, page)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	respondPage(c, users, page, total)
}

// CreateUser handles POST /api/v1/users/admin/users (admin)
func (uc *UserController) CreateUser(c *gin.Context) {
	admin, _, ok := currentActor(c)
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, bindingError(err))
		return
	}

	user, err := uc.users.Create(c.Request.Context(), admin.ID, services.CreateUserInput{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            req.Role,
		FullName:        req.FullName,
		Email:           req.Email,
		Phone:           req.Phone,
		Department:      req.Department,
		IsActive:        req.IsActive,
	})
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, user)
}

// GetUser handles GET /api/v1/users/admin/users/:id (admin)
func (uc *UserController) GetUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	user, err := uc.users.Get(c.Request.Context(), id)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	respondData(c, http.StatusOK, user)
}

// UpdateUser handles PUT /api/v1/users/admin/users/:id (admin)
func (uc *UserController) UpdateUser(c *gin.Context) {
	admin, _, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, bindingError(err))
		return
	}

	user, err := uc.users.Update(c.Request.Context(), admin.ID, id, services.UpdateUserInput{
		Role:       req.Role,
		FullName:   req.FullName,
		Email:      req.Email,
		Phone:      req.Phone,
		Department: req.Department,
		IsActive:   req.IsActive,
	})
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	respondData(c, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/v1/users/admin/users/:id (admin)
func (uc *UserController) DeleteUser(c *gin.Context) {
	admin, _, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	if err := uc.users.Delete(c.Request.Context(), admin.ID, id); err != nil {
		middleware.RespondError(c, err)
		return
	}
	respondMessage(c, "User deleted")
}

// ResetPassword handles POST /api/v1/users/admin/users/:id/reset-password (admin)
func (uc *UserController) ResetPassword(c *gin.Context) {
	admin, _, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, bindingError(err))
		return
	}

	if err := uc.users.ResetPassword(c.Request.Context(), admin.ID, id, req.NewPassword); err != nil {
		middleware.RespondError(c, err)
		return
	}
	respondMessage(c, "Password reset")
}

// UserStats handles GET /api/v1/users/admin/stats (admin)
func (uc *UserController) UserStats(c *gin.Context) {
	stats, err := uc.users.Stats(c.Request.Context())
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	respondData(c, http.StatusOK, stats)
}
