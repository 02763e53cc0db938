package controllers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yp-firedoor/firedoor-oa/authz"
	"github.com/yp-firedoor/firedoor-oa/config"
	"github.com/yp-firedoor/firedoor-oa/middleware"
	"github.com/yp-firedoor/firedoor-oa/models"
	"github.com/yp-firedoor/firedoor-oa/services"
)

// Dependencies are the services the HTTP layer is built on
type Dependencies struct {
	Config *config.Config
	DB     *gorm.DB
	Matrix *authz.Matrix
	Auth   *services.AuthService
	Users  *services.UserService
	Orders *services.OrderService
	Stats  *services.StatsService
	Audit  *services.AuditLogger
}

// RegisterRoutes mounts the /api/v1 API on router
func RegisterRoutes(router *gin.Engine, deps Dependencies) error {
	ensureValidToken, err := middleware.EnsureValidToken(deps.Config)
	if err != nil {
		return err
	}

	orderController := NewOrderController(deps.Orders, deps.Stats)
	fileController := NewFileController(deps.Orders)
	userController := NewUserController(deps.Auth, deps.Users, deps.Matrix)
	systemController := NewSystemController(deps.DB, deps.Audit)

	can := func(action authz.Action) gin.HandlerFunc {
		return middleware.RequirePermission(deps.Matrix, action)
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", systemController.HealthCheck)
		v1.POST("/users/login", userController.Login)
		v1.POST("/users/token/refresh", userController.RefreshToken)
	}

	protected := v1.Group("", ensureValidToken, middleware.LoadCurrentUser(deps.DB))
	{
		protected.GET("/database/status", systemController.DatabaseStatus)
		protected.GET("/system/logs", can(authz.SystemLogs), systemController.ListLogs)
	}

	users := protected.Group("/users")
	{
		users.GET("/me", userController.GetMe)
		users.POST("/change-password", userController.ChangePassword)

		admin := users.Group("/admin", can(authz.UserManage))
		admin.GET("/users", userController.ListUsers)
		admin.POST("/users", userController.CreateUser)
		admin.GET("/users/:id", userController.GetUser)
		admin.PUT("/users/:id", userController.UpdateUser)
		admin.DELETE("/users/:id", userController.DeleteUser)
		admin.POST("/users/:id/reset-password", userController.ResetPassword)

		users.GET("/admin/stats", can(authz.UserStats), userController.UserStats)
	}

	orders := protected.Group("/orders")
	{
		orders.POST("/new", can(authz.OrderCreate), orderController.CreateOrder)
		orders.GET("/my", can(authz.OrderList), orderController.ListOrders)
		orders.GET("/paginated", can(authz.OrderList), orderController.ListOrders)
		orders.GET("/stats", can(authz.OrderStats), orderController.OrderStats)

		orders.GET("/pending", can(authz.OrderListPending),
			orderController.listByStatus("created_at", models.StatusPending))
		orders.GET("/approved", can(authz.OrderListApproved),
			orderController.listByStatus("review_date", models.StatusApproved))
		orders.GET("/ready-for-production", can(authz.OrderListReady),
			orderController.listByStatus("production_started_at", models.StatusReadyForProduction))
		orders.GET("/in-production", can(authz.OrderListInProduction),
			orderController.listByStatus("inbound_at", models.StatusInProduction))
		orders.GET("/warehouse-orders", can(authz.OrderListWarehouse),
			orderController.listByStatus("updated_at", models.WarehouseStatuses...))

		orders.GET("/:id", can(authz.OrderView), orderController.GetOrder)
		orders.DELETE("/:id", can(authz.OrderDelete), orderController.DeleteOrder)
		orders.PUT("/:id/resubmit", can(authz.OrderResubmit), orderController.ResubmitOrder)
		orders.PUT("/:id/review", can(authz.OrderReview), orderController.ReviewOrder)
		orders.PUT("/:id/upload-production-sheet", can(authz.OrderUploadProductionSheet), orderController.UploadProductionSheet)
		orders.POST("/:id/start-production", can(authz.OrderStartProduction), orderController.StartProduction)
		orders.POST("/:id/inbound", can(authz.OrderInbound), orderController.InboundOrder)
		orders.POST("/:id/outbound", can(authz.OrderOutbound), orderController.OutboundOrder)
		orders.POST("/:id/complete", can(authz.OrderComplete), orderController.CompleteOrder)

		orders.GET("/:id/download/:file_type", can(authz.OrderDownload), fileController.DownloadFile)
		orders.GET("/:id/preview/:file_type", can(authz.OrderPreview), fileController.PreviewFile)
	}

	return nil
}
