package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yp-firedoor/firedoor-oa/errs"
	"github.com/yp-firedoor/firedoor-oa/middleware"
	"github.com/yp-firedoor/firedoor-oa/models"
	"github.com/yp-firedoor/firedoor-oa/services"
	"github.com/yp-firedoor/firedoor-oa/utils"
	"github.com/yp-firedoor/firedoor-oa/workflow"
)

// OrderController serves the /orders endpoints
type OrderController struct {
	orders *services.OrderService
	stats  *services.StatsService
}

func NewOrderController(orders *services.OrderService, stats *services.StatsService) *OrderController {
	return &OrderController{orders: orders, stats: stats}
}

// ReviewOrderRequest represents the request body for reviewing an order
type ReviewOrderRequest struct {
	Status      string `json:"status" binding:"required"`
	ReviewNotes string `json:"review_notes"`
}

// formFile returns the uploaded file for field, or nil when none was sent
func formFile(c *gin.Context, field string) (*multipart.FileHeader, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, bindingError(err)
	}
	return fh, nil
}

// optionalForm returns a pointer to the form value when the field was sent
func optionalForm(c *gin.Context, field string) *string {
	if value, ok := c.GetPostForm(field); ok {
		return &value
	}
	return nil
}

func parseStatusFilter(raw string) ([]models.OrderStatus, error) {
	if raw == "" {
		return nil, nil
	}
	var statuses []models.OrderStatus
	for _, part := range strings.Split(raw, ",") {
		status := models.OrderStatus(strings.TrimSpace(part))
		if !status.Valid() {
			return nil, errs.Validation("status", "unknown status: "+string(status))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// CreateOrder handles POST /api/v1/orders/new - creates a pending order (order clerks)
func (oc *OrderController) CreateOrder(c *gin.Context) {
	_, actor, ok := currentActor(c)
	if !ok {
		return
	}

	file, err := formFile(c, string(models.SlotOrderFile))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	order, err := oc.orders.Create(c.Request.Context(), actor, services.CreateOrderInput{
		ProjectName: c.PostForm("project_name"),
		OrderedBy:   c.PostForm("ordered_by"),
		File:        file,
	})
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	respondData(c, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/orders/my and /orders/paginated - lists all orders.
// Optional query parameters: status (comma separated), search, order_by.
func (oc *OrderController) ListOrders(c *gin.Context) {
	statuses, err := parseStatusFilter(c.Query("status"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	oc.list(c, services.ListFilter{
		Statuses: statuses,
		Search:   c.Query("search"),
		OrderBy:  c.Query("order_by"),
	})
}

// listByStatus serves the fixed work queues of each role
func (oc *OrderController) listByStatus(orderBy string, statuses ...models.OrderStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		oc.list(c, services.ListFilter{
			Statuses: statuses,
			Search:   c.Query("search"),
			OrderBy:  orderBy,
		})
	}
}

func (oc *OrderController) list(c *gin.Context, filter services.ListFilter) {
	page := utils.ParsePagination(c)
	orders, total, err := oc.orders.List(c.Request.Context(), filter, page)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	respondPage(c, orders, page, total)
}

// GetOrder handles GET /api/v1/orders/:id
func (oc *OrderController) GetOrder(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := oc.orders.Get(c.Request.Context(), id)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

// DeleteOrder handles DELETE /api/v1/orders/:id (admin)
func (oc *OrderController) DeleteOrder(c *gin.Context) {
	_, actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	if err := oc.orders.Delete(c.Request.Context(), id, actor); err != nil {
		middleware.RespondError(c, err)
		return
	}
	respondMessage(c, "Order deleted")
}

// transition runs action on the order named in the path and returns the updated order
func (oc *OrderController) transition(c *gin.Context, action workflow.Action, in services.TransitionInput) {
	_, actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := oc.orders.Transition(c.Request.Context(), id, action, actor, in)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

// ResubmitOrder handles PUT /api/v1/orders/:id/resubmit - owner resubmits a rejected order.
// order_file, project_name and ordered_by are optional replacements.
func (oc *OrderController) ResubmitOrder(c *gin.Context) {
	file, err := formFile(c, string(models.SlotOrderFile))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	oc.transition(c, workflow.Resubmit, services.TransitionInput{
		ProjectName: optionalForm(c, "project_name"),
		OrderedBy:   optionalForm(c, "ordered_by"),
		File:        file,
	})
}

// ReviewOrder handles PUT /api/v1/orders/:id/review - approves or rejects a pending order
func (oc *OrderController) ReviewOrder(c *gin.Context) {
	var req ReviewOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, bindingError(err))
		return
	}

	var action workflow.Action
	switch models.OrderStatus(req.Status) {
	case models.StatusApproved:
		action = workflow.Approve
	case models.StatusRejected:
		action = workflow.Reject
	default:
		middleware.RespondError(c, errs.Validation("status", "status must be approved or rejected"))
		return
	}

	oc.transition(c, action, services.TransitionInput{ReviewNotes: req.ReviewNotes})
}

// UploadProductionSheet handles PUT /api/v1/orders/:id/upload-production-sheet
func (oc *OrderController) UploadProductionSheet(c *gin.Context) {
	file, err := formFile(c, string(models.SlotProductionSheet))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	oc.transition(c, workflow.UploadProductionSheet, services.TransitionInput{
		ProductionNotes: c.PostForm("production_notes"),
		File:            file,
	})
}

// StartProduction handles POST /api/v1/orders/:id/start-production
func (oc *OrderController) StartProduction(c *gin.Context) {
	oc.transition(c, workflow.StartProduction, services.TransitionInput{})
}

// InboundOrder handles POST /api/v1/orders/:id/inbound
func (oc *OrderController) InboundOrder(c *gin.Context) {
	oc.transition(c, workflow.Inbound, services.TransitionInput{})
}

// OutboundOrder handles POST /api/v1/orders/:id/outbound
func (oc *OrderController) OutboundOrder(c *gin.Context) {
	file, err := formFile(c, string(models.SlotOutboundFile))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	oc.transition(c, workflow.Outbound, services.TransitionInput{
		OutboundNotes: c.PostForm("outbound_notes"),
		File:          file,
	})
}

// CompleteOrder handles POST /api/v1/orders/:id/complete (admin)
func (oc *OrderController) CompleteOrder(c *gin.Context) {
	oc.transition(c, workflow.Complete, services.TransitionInput{})
}

// OrderStats handles GET /api/v1/orders/stats
func (oc *OrderController) OrderStats(c *gin.Context) {
	stats, err := oc.stats.OrderStats(c.Request.Context())
	if err != nil {
		middleware.RespondError(c, errs.Internal("Failed to compute order statistics", err))
		return
	}
	respondData(c, http.StatusOK, stats)
}
