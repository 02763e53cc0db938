package models

import (
	"time"
)

// User is a back-office account.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:150;not null" json:"username"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Role         Role       `gorm:"size:32;not null;index" json:"role"`
	FullName     string     `gorm:"size:100" json:"full_name"`
	Email        string     `gorm:"size:254" json:"email"`
	Phone        string     `gorm:"size:32" json:"phone"`
	Department   string     `gorm:"size:100" json:"department"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	IsStaff      bool       `gorm:"not null" json:"is_staff"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	LastLoginIP  string     `gorm:"size:64" json:"last_login_ip,omitempty"`
	CreatedByID  *uint      `gorm:"index" json:"created_by_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
