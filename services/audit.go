package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yp-firedoor/firedoor-oa/models"
	"github.com/yp-firedoor/firedoor-oa/utils"
)

type clientIPKey struct{}

// WithClientIP attaches the caller's address to ctx for audit entries
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the address set by WithClientIP
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// AuditLogger appends SystemLog rows and mirrors them to the process log
type AuditLogger struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewAuditLogger(db *gorm.DB, logger *zap.Logger) *AuditLogger {
	return &AuditLogger{db: db, logger: logger.Named("audit")}
}

// Record writes one audit entry. A failed write is logged, never returned:
// the action it describes has already been committed.
func (a *AuditLogger) Record(ctx context.Context, typ models.LogType, module models.LogModule, userID *uint, format string, args ...any) {
	entry := models.SystemLog{
		Type:      typ,
		Module:    module,
		Message:   fmt.Sprintf(format, args...),
		UserID:    userID,
		IPAddress: ClientIP(ctx),
	}

	fields := []zap.Field{
		zap.String("module", string(module)),
		zap.String("ip", entry.IPAddress),
	}
	if userID != nil {
		fields = append(fields, zap.Uint("user_id", *userID))
	}

	switch typ {
	case models.LogWarning:
		a.logger.Warn(entry.Message, fields...)
	case models.LogError, models.LogCritical:
		a.logger.Error(entry.Message, fields...)
	default:
		a.logger.Info(entry.Message, fields...)
	}

	if err := a.db.WithContext(ctx).Create(&entry).Error; err != nil {
		a.logger.Error("failed to write system log", append(fields, zap.Error(err))...)
	}
}

// LogFilter narrows a log listing
type LogFilter struct {
	Type   models.LogType
	Module models.LogModule
}

// List returns log entries newest first
func (a *AuditLogger) List(ctx context.Context, filter LogFilter, page utils.Pagination) ([]models.SystemLog, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Type != "" {
			db = db.Where("type = ?", filter.Type)
		}
		if filter.Module != "" {
			db = db.Where("module = ?", filter.Module)
		}
		return db
	}

	var total int64
	if err := a.db.WithContext(ctx).Model(&models.SystemLog{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count system logs: %w", err)
	}

	logs := []models.SystemLog{}
	if err := a.db.WithContext(ctx).Scopes(scope).Preload("User").
		Order("created_at DESC").Order("id DESC").
		Offset(page.Offset()).Limit(page.PageSize).
		Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list system logs: %w", err)
	}
	return logs, total, nil
}
