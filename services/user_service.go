package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yp-firedoor/firedoor-oa/errs"
	"github.com/yp-firedoor/firedoor-oa/models"
	"github.com/yp-firedoor/firedoor-oa/utils"
)

const (
	minPasswordLength = 6
	// bcrypt ignores input beyond this many bytes and the Go implementation rejects it.
	maxPasswordBytes = 72
)

// UserService manages back-office accounts
type UserService struct {
	db     *gorm.DB
	audit  *AuditLogger
	logger *zap.Logger
}

func NewUserService(db *gorm.DB, audit *AuditLogger, logger *zap.Logger) *UserService {
	return &UserService{db: db, audit: audit, logger: logger}
}

// CreateUserInput is the admin form for a new account
type CreateUserInput struct {
	Username        string
	Password        string
	ConfirmPassword string
	Role            models.Role
	FullName        string
	Email           string
	Phone           string
	Department      string
	IsActive        *bool
}

// UpdateUserInput changes only the fields that are set
type UpdateUserInput struct {
	Role       *models.Role
	FullName   *string
	Email      *string
	Phone      *string
	Department *string
	IsActive   *bool
}

// UserFilter narrows a user listing
type UserFilter struct {
	Role     models.Role
	IsActive *bool
	Search   string
}

// UserStats is the admin dashboard summary
type UserStats struct {
	TotalUsers  int64            `json:"total_users"`
	ActiveUsers int64            `json:"active_users"`
	ByRole      map[string]int64 `json:"by_role"`
}

func validatePassword(field, password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return errs.Validation(field, fmt.Sprintf("%s must be at least %d characters", field, minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return errs.Validation(field, fmt.Sprintf("%s must be at most %d bytes", field, maxPasswordBytes))
	}
	return nil
}

func (s *UserService) load(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("USER_NOT_FOUND", "user not found")
		}
		return nil, errs.Internal("failed to load user", err)
	}
	return &user, nil
}

// Get returns one user
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	return s.load(ctx, id)
}

// List returns one page of users ordered by creation time
func (s *UserService) List(ctx context.Context, filter UserFilter, page utils.Pagination) ([]models.User, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Role != "" {
			db = db.Where("role = ?", filter.Role)
		}
		if filter.IsActive != nil {
			db = db.Where("is_active = ?", *filter.IsActive)
		}
		if search := strings.TrimSpace(filter.Search); search != "" {
			like := "%" + search + "%"
			db = db.Where("username LIKE ? OR full_name LIKE ? OR department LIKE ?", like, like, like)
		}
		return db
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, errs.Internal("failed to count users", err)
	}

	users := []models.User{}
	if err := s.db.WithContext(ctx).Scopes(scope).
		Order("created_at DESC").Order("id DESC").
		Offset(page.Offset()).Limit(page.PageSize).
		Find(&users).Error; err != nil {
		return nil, 0, errs.Internal("failed to list users", err)
	}
	return users, total, nil
}

// Create adds an account. Admin accounts cannot be created here.
func (s *UserService) Create(ctx context.Context, actorID uint, in CreateUserInput) (*models.User, error) {
	fields := map[string]string{}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		fields["username"] = "username is required"
	}
	switch {
	case !in.Role.Valid():
		fields["role"] = "role is invalid"
	case in.Role == models.RoleAdmin:
		fields["role"] = "admin accounts cannot be created"
	}
	if err := validatePassword("password", in.Password); err != nil {
		fields["password"] = err.(*errs.Error).Message
	} else if in.Password != in.ConfirmPassword {
		fields["confirm_password"] = "passwords do not match"
	}
	if len(fields) > 0 {
		return nil, errs.ValidationFields(fields)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, errs.Internal("failed to hash password", err)
	}

	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}
	creator := actorID
	user := models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         in.Role,
		FullName:     strings.TrimSpace(in.FullName),
		Email:        strings.TrimSpace(in.Email),
		Phone:        strings.TrimSpace(in.Phone),
		Department:   strings.TrimSpace(in.Department),
		IsActive:     isActive,
		CreatedByID:  &creator,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errs.Conflict("USERNAME_TAKEN", "a user with this username already exists")
		}
		return nil, errs.Internal("failed to create user", err)
	}

	s.audit.Record(ctx, models.LogInfo, models.ModuleUsers, &actorID,
		"创建用户 %s（%s）", user.Username, user.Role.Label())
	return &user, nil
}

// Update changes profile fields, role or active flag. An admin's role is fixed
// and no account can be promoted to admin.
func (s *UserService) Update(ctx context.Context, actorID, id uint, in UpdateUserInput) (*models.User, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Role != nil && *in.Role != user.Role {
		switch {
		case !in.Role.Valid():
			return nil, errs.Validation("role", "role is invalid")
		case user.Role == models.RoleAdmin:
			return nil, errs.BadRequest("ADMIN_ROLE_LOCKED", "the role of an admin account cannot be changed")
		case *in.Role == models.RoleAdmin:
			return nil, errs.BadRequest("ADMIN_ROLE_LOCKED", "accounts cannot be promoted to admin")
		}
		updates["role"] = *in.Role
	}
	if in.IsActive != nil && *in.IsActive != user.IsActive {
		if !*in.IsActive && user.ID == actorID {
			return nil, errs.BadRequest("CANNOT_DISABLE_SELF", "you cannot disable your own account")
		}
		updates["is_active"] = *in.IsActive
	}
	if in.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*in.FullName)
	}
	if in.Email != nil {
		updates["email"] = strings.TrimSpace(*in.Email)
	}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Department != nil {
		updates["department"] = strings.TrimSpace(*in.Department)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, errs.Internal("failed to update user", err)
		}
		s.audit.Record(ctx, models.LogInfo, models.ModuleUsers, &actorID, "更新用户 %s", user.Username)
	}
	return s.load(ctx, id)
}

// Delete removes an account that owns no orders. Actor references on
// orders the user handled are cleared.
func (s *UserService) Delete(ctx context.Context, actorID, id uint) error {
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == models.RoleAdmin {
		return errs.BadRequest("CANNOT_DELETE_ADMIN", "admin accounts cannot be deleted")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned int64
		if err := tx.Model(&models.Order{}).Where("user_id = ?", id).Count(&owned).Error; err != nil {
			return err
		}
		if owned > 0 {
			return errs.Conflict("USER_HAS_ORDERS",
				fmt.Sprintf("user created %d orders; disable the account instead", owned))
		}

		for _, column := range []string{"reviewed_by_id", "production_started_by_id", "inbound_by_id", "outbound_by_id"} {
			if err := tx.Model(&models.Order{}).Where(column+" = ?", id).Update(column, nil).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.SystemLog{}).Where("user_id = ?", id).Update("user_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("created_by_id = ?", id).Update("created_by_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, id).Error
	})
	if err != nil {
		if _, ok := errs.As(err); ok {
			return err
		}
		return errs.Internal("failed to delete user", err)
	}

	s.audit.Record(ctx, models.LogWarning, models.ModuleUsers, &actorID, "删除用户 %s", user.Username)
	return nil
}

// ResetPassword sets a new password chosen by an admin
func (s *UserService) ResetPassword(ctx context.Context, actorID, id uint, newPassword string) error {
	if err := validatePassword("new_password", newPassword); err != nil {
		return err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}

	s.audit.Record(ctx, models.LogInfo, models.ModuleUsers, &actorID, "重置用户 %s 的密码", user.Username)
	return nil
}

// ChangePassword lets a user replace their own password
func (s *UserService) ChangePassword(ctx context.Context, id uint, oldPassword, newPassword string) error {
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !CheckPassword(user.PasswordHash, oldPassword) {
		return errs.Validation("old_password", "old password is incorrect")
	}
	if err := validatePassword("new_password", newPassword); err != nil {
		return err
	}
	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}

	s.audit.Record(ctx, models.LogInfo, models.ModuleAuth, &user.ID, "用户 %s 修改密码", user.Username)
	return nil
}

func (s *UserService) setPassword(ctx context.Context, user *models.User, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return errs.Internal("failed to hash password", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error; err != nil {
		return errs.Internal("failed to save password", err)
	}
	return nil
}

// Stats counts users per role
func (s *UserService) Stats(ctx context.Context) (*UserStats, error) {
	type roleCount struct {
		Role  models.Role
		Count int64
	}
	var rows []roleCount
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error; err != nil {
		return nil, errs.Internal("failed to count users", err)
	}

	stats := &UserStats{ByRole: make(map[string]int64, len(models.AllRoles))}
	for _, role := range models.AllRoles {
		stats.ByRole[string(role)] = 0
	}
	for _, row := range rows {
		stats.ByRole[string(row.Role)] = row.Count
		stats.TotalUsers += row.Count
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("is_active = ?", true).
		Count(&stats.ActiveUsers).Error; err != nil {
		return nil, errs.Internal("failed to count active users", err)
	}
	return stats, nil
}

// EnsureAdmin creates the bootstrap admin when no admin account exists yet
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}

	var admins int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error; err != nil {
		return false, fmt.Errorf("failed to count admins: %w", err)
	}
	if admins > 0 {
		return false, nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	admin := models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		FullName:     "系统管理员",
		IsActive:     true,
		IsStaff:      true,
	}
	if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return false, fmt.Errorf("failed to create admin: %w", err)
	}

	s.logger.Info("bootstrap admin created", zap.String("username", username))
	s.audit.Record(ctx, models.LogInfo, models.ModuleSystem, nil, "初始化管理员账号 %s", username)
	return true, nil
}
