package controllers

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yp-firedoor/firedoor-oa/middleware"
	"github.com/yp-firedoor/firedoor-oa/models"
	"github.com/yp-firedoor/firedoor-oa/services"
)

// FileController streams order attachments
type FileController struct {
	orders *services.OrderService
}

func NewFileController(orders *services.OrderService) *FileController {
	return &FileController{orders: orders}
}

// contentDisposition keeps the stored filename intact, including non-ASCII names
func contentDisposition(filename string) string {
	if value := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); value != "" {
		return value
	}
	return "attachment"
}

// DownloadFile handles GET /api/v1/orders/:id/download/:file_type
func (fc *FileController) DownloadFile(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	file, err := fc.orders.OpenFile(c.Request.Context(), id, models.FileSlot(c.Param("file_type")))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	defer func() {
		if err := file.Body.Close(); err != nil {
			zap.L().Warn("failed to close stored file", zap.Error(err))
		}
	}()

	c.Header("Cache-Control", "private, no-store")
	c.DataFromReader(http.StatusOK, file.Size, file.ContentType, file.Body, map[string]string{
		"Content-Disposition": contentDisposition(file.Filename),
	})
}

// PreviewFile handles GET /api/v1/orders/:id/preview/:file_type - renders a spreadsheet as rows
func (fc *FileController) PreviewFile(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	preview, err := fc.orders.Preview(c.Request.Context(), id, models.FileSlot(c.Param("file_type")))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	respondData(c, http.StatusOK, preview)
}
