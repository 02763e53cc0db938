package models

import "time"

type LogType string

const (
	LogInfo     LogType = "info"
	LogWarning  LogType = "warning"
	LogError    LogType = "error"
	LogCritical LogType = "critical"
)

type LogModule string

const (
	ModuleOrders LogModule = "orders"
	ModuleUsers  LogModule = "users"
	ModuleSystem LogModule = "system"
	ModuleAuth   LogModule = "auth"
)

// SystemLog is an append-only audit entry.
type SystemLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      LogType   `gorm:"size:16;not null;index" json:"type"`
	Module    LogModule `gorm:"size:16;not null;index" json:"module"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	UserID    *uint     `gorm:"index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	IPAddress string    `gorm:"size:64" json:"ip_address"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for the SystemLog model
func (SystemLog) TableName() string {
	return "system_logs"
}
