package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yp-firedoor/firedoor-oa/errs"
	"github.com/yp-firedoor/firedoor-oa/middleware"
	"github.com/yp-firedoor/firedoor-oa/models"
	"github.com/yp-firedoor/firedoor-oa/utils"
	"github.com/yp-firedoor/firedoor-oa/workflow"
)

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondPage(c *gin.Context, data any, page utils.Pagination, total int64) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       data,
		"pagination": page.Meta(total),
	})
}

func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
	})
}

// bindingError wraps a gin binding failure in the validation envelope
func bindingError(err error) error {
	return errs.BadRequest("VALIDATION_ERROR", "Invalid request data").WithDetail("request", err.Error())
}

func currentActor(c *gin.Context) (*models.User, workflow.Actor, bool) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		middleware.RespondError(c, errs.Unauthenticated("UNAUTHORIZED", "Could not extract user information"))
		return nil, workflow.Actor{}, false
	}
	return user, workflow.Actor{ID: user.ID, Role: user.Role}, true
}

func orderIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.RespondError(c, errs.BadRequest("INVALID_ORDER_ID", "Order ID must be a UUID").
			WithDetail("id", c.Param("id")))
		return uuid.Nil, false
	}
	return id, true
}
