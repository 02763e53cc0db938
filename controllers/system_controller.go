package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yp-firedoor/firedoor-oa/errs"
	"github.com/yp-firedoor/firedoor-oa/middleware"
	"github.com/yp-firedoor/firedoor-oa/models"
	"github.com/yp-firedoor/firedoor-oa/services"
	"github.com/yp-firedoor/firedoor-oa/utils"
)

// SystemController serves health, database status and the audit log
type SystemController struct {
	db    *gorm.DB
	audit *services.AuditLogger
}

func NewSystemController(db *gorm.DB, audit *services.AuditLogger) *SystemController {
	return &SystemController{db: db, audit: audit}
}

// HealthCheck handles GET /api/v1/health
func (sc *SystemController) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Fire door OA API is running",
	})
}

// DatabaseStatus checks database connectivity and returns table information
func (sc *SystemController) DatabaseStatus(c *gin.Context) {
	sqlDB, err := sc.db.DB()
	if err != nil {
		middleware.RespondError(c, errs.Internal("Failed to get database instance", err))
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	tables, err := sc.db.WithContext(c.Request.Context()).Migrator().GetTables()
	if err != nil {
		middleware.RespondError(c, errs.Internal("Failed to query tables", err))
		return
	}

	stats := sqlDB.Stats()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"data": gin.H{
			"dialect":          sc.db.Dialector.Name(),
			"tables":           tables,
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
		},
	})
}

// ListLogs handles GET /api/v1/system/logs (admin). Optional filters: type, module.
func (sc *SystemController) ListLogs(c *gin.Context) {
	filter := services.LogFilter{
		Type:   models.LogType(c.Query("type")),
		Module: models.LogModule(c.Query("module")),
	}

	page := utils.ParsePagination(c)
	logs, total, err := sc.audit.List(c.Request.Context(), filter, page)
	if err != nil {
		middleware.RespondError(c, errs.Internal("Failed to list system logs", err))
		return
	}
	respondPage(c, logs, page, total)
}
