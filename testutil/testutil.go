// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yp-firedoor/firedoor-oa/models"
)

// DefaultPassword is the password of every user made by CreateUser
const DefaultPassword = "password123"

// RequireTestEnvironment ensures that tests are running in the test environment.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	if env := os.Getenv("GO_ENV"); env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test. Current GO_ENV=%q.", env)
	}
}

// NewTestDB opens a migrated in-memory sqlite database.
// A single connection keeps every query on the same in-memory database;
// never use the outer handle inside a Transaction callback.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "Failed to connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.AutoMigrate(db), "Failed to migrate test database")

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// CreateUser inserts an active user whose password is DefaultPassword
func CreateUser(t *testing.T, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		FullName:     username,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// Staff is one user per role
type Staff struct {
	Admin     *models.User
	Clerk     *models.User
	Reviewer  *models.User
	Tech      *models.User
	Warehouse *models.User
	Tracker   *models.User
}

// CreateStaff inserts one user for every role
func CreateStaff(t *testing.T, db *gorm.DB) Staff {
	t.Helper()
	return Staff{
		Admin:     CreateUser(t, db, "admin", models.RoleAdmin),
		Clerk:     CreateUser(t, db, "clerk", models.RoleOrderClerk),
		Reviewer:  CreateUser(t, db, "reviewer", models.RoleReviewer),
		Tech:      CreateUser(t, db, "tech", models.RoleTechnician),
		Warehouse: CreateUser(t, db, "warehouse", models.RoleWarehouseClerk),
		Tracker:   CreateUser(t, db, "tracker", models.RoleWorkshopTracker),
	}
}

// ByRole returns the staff member holding role
func (s Staff) ByRole(role models.Role) *models.User {
	switch role {
	case models.RoleAdmin:
		return s.Admin
	case models.RoleOrderClerk:
		return s.Clerk
	case models.RoleReviewer:
		return s.Reviewer
	case models.RoleTechnician:
		return s.Tech
	case models.RoleWarehouseClerk:
		return s.Warehouse
	case models.RoleWorkshopTracker:
		return s.Tracker
	}
	return nil
}
