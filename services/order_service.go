package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yp-firedoor/firedoor-oa/errs"
	"github.com/yp-firedoor/firedoor-oa/models"
	"github.com/yp-firedoor/firedoor-oa/utils"
	"github.com/yp-firedoor/firedoor-oa/workflow"
)

// createAttempts bounds retries of a creation that lost an order-number race.
const createAttempts = 3

// userPreloads are the actor relations returned with every order.
var userPreloads = []string{"User", "ReviewedBy", "ProductionStartedBy", "InboundBy", "OutboundBy"}

// OrderService implements order creation, listing and lifecycle transitions
type OrderService struct {
	db      *gorm.DB
	storage FileStorage
	stats   *StatsService
	audit   *AuditLogger
	loc     *time.Location
	logger  *zap.Logger
	now     func() time.Time
}

func NewOrderService(db *gorm.DB, storage FileStorage, stats *StatsService, audit *AuditLogger, loc *time.Location, logger *zap.Logger) *OrderService {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderService{
		db:      db,
		storage: storage,
		stats:   stats,
		audit:   audit,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateOrderInput is the order form
type CreateOrderInput struct {
	ProjectName string
	OrderedBy   string
	File        *multipart.FileHeader
}

// TransitionInput carries the optional form data of a lifecycle action
type TransitionInput struct {
	ReviewNotes     string
	ProductionNotes string
	OutboundNotes   string
	ProjectName     *string
	OrderedBy       *string
	File            *multipart.FileHeader
}

// ListFilter narrows an order listing
type ListFilter struct {
	Statuses []models.OrderStatus
	// OrderBy is a column name; results are always descending.
	OrderBy string
	Search  string
}

func validateCreate(in CreateOrderInput) error {
	fields := map[string]string{}

	projectName := strings.TrimSpace(in.ProjectName)
	switch {
	case projectName == "":
		fields["project_name"] = "project_name is required"
	case utf8.RuneCountInString(projectName) > 200:
		fields["project_name"] = "project_name must be at most 200 characters"
	}

	orderedBy := strings.TrimSpace(in.OrderedBy)
	switch {
	case orderedBy == "":
		fields["ordered_by"] = "ordered_by is required"
	case utf8.RuneCountInString(orderedBy) > 100:
		fields["ordered_by"] = "ordered_by must be at most 100 characters"
	}

	if err := utils.ValidateAttachment(string(models.SlotOrderFile), in.File); err != nil {
		fields[string(models.SlotOrderFile)] = err.Error()
	}

	if len(fields) > 0 {
		return errs.ValidationFields(fields)
	}
	return nil
}

// Create stores the order file and inserts a pending order with a fresh order number
func (s *OrderService) Create(ctx context.Context, actor workflow.Actor, in CreateOrderInput) (*models.Order, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	order := models.Order{
		ID:          uuid.New(),
		UserID:      actor.ID,
		ProjectName: strings.TrimSpace(in.ProjectName),
		OrderedBy:   strings.TrimSpace(in.OrderedBy),
		Status:      models.StatusPending,
	}
	key := ObjectKey(order.ID, models.SlotOrderFile, in.File.Filename)
	if err := saveMultipart(ctx, s.storage, key, in.File); err != nil {
		return nil, errs.Internal("failed to store order file", err)
	}
	order.OrderFile = key

	var err error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := NextOrderNumber(tx, s.now().In(s.loc))
			if err != nil {
				return err
			}
			order.OrderNumber = number
			return tx.Create(&order).Error
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		s.logger.Warn("order number collision, retrying", zap.Int("attempt", attempt))
	}
	if err != nil {
		s.discard(ctx, key)
		if _, ok := errs.As(err); ok {
			return nil, err
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errs.Conflict("ORDER_NUMBER_CONFLICT", "could not allocate an order number, please retry")
		}
		return nil, errs.Internal("failed to create order", err)
	}

	s.audit.Record(ctx, models.LogInfo, models.ModuleOrders, &actor.ID,
		"创建订单 %s（%s）", order.OrderNumber, order.ProjectName)
	s.stats.Invalidate(ctx)

	return s.Get(ctx, order.ID)
}

// Get loads one order with its actors
func (s *OrderService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	query := s.db.WithContext(ctx)
	for _, rel := range userPreloads {
		query = query.Preload(rel)
	}

	var order models.Order
	if err := query.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("ORDER_NOT_FOUND", "order not found")
		}
		return nil, errs.Internal("failed to load order", err)
	}
	return &order, nil
}

var listOrderColumns = map[string]bool{
	"created_at":            true,
	"updated_at":            true,
	"review_date":           true,
	"production_started_at": true,
	"inbound_at":            true,
	"outbound_at":           true,
}

// List returns one page of orders matching filter, newest first by default
func (s *OrderService) List(ctx context.Context, filter ListFilter, page utils.Pagination) ([]models.Order, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if len(filter.Statuses) > 0 {
			db = db.Where("status IN ?", filter.Statuses)
		}
		if search := strings.TrimSpace(filter.Search); search != "" {
			like := "%" + search + "%"
			db = db.Where("order_number LIKE ? OR project_name LIKE ? OR ordered_by LIKE ?", like, like, like)
		}
		return db
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, errs.Internal("failed to count orders", err)
	}

	orderBy := "created_at"
	if listOrderColumns[filter.OrderBy] {
		orderBy = filter.OrderBy
	}

	query := s.db.WithContext(ctx).Scopes(scope)
	for _, rel := range userPreloads {
		query = query.Preload(rel)
	}

	orders := []models.Order{}
	if err := query.
		Order(clause.OrderByColumn{Column: clause.Column{Name: orderBy}, Desc: true}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "order_number"}, Desc: true}).
		Offset(page.Offset()).Limit(page.PageSize).
		Find(&orders).Error; err != nil {
		return nil, 0, errs.Internal("failed to list orders", err)
	}
	return orders, total, nil
}

// Transition applies a lifecycle action. The status change is a
// compare-and-set on the locked row, so two concurrent requests cannot
// both move the same order out of the same status.
func (s *OrderService) Transition(ctx context.Context, id uuid.UUID, action workflow.Action, actor workflow.Actor, in TransitionInput) (*models.Order, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Fail fast before touching storage.
	t, err := workflow.Check(current, action, actor)
	if err != nil {
		return nil, err
	}

	var key string
	if in.File != nil && t.FileSlot != "" {
		if err := utils.ValidateAttachment(string(t.FileSlot), in.File); err != nil {
			return nil, errs.Validation(string(t.FileSlot), err.Error())
		}
		key = ObjectKey(current.ID, t.FileSlot, in.File.Filename)
	}

	wfIn := workflow.Input{
		ReviewNotes:     in.ReviewNotes,
		ProductionNotes: in.ProductionNotes,
		OutboundNotes:   in.OutboundNotes,
		ProjectName:     in.ProjectName,
		OrderedBy:       in.OrderedBy,
		FileKey:         key,
	}
	if err := workflow.Validate(t, wfIn); err != nil {
		return nil, err
	}

	if key != "" {
		if err := saveMultipart(ctx, s.storage, key, in.File); err != nil {
			return nil, errs.Internal("failed to store "+string(t.FileSlot), err)
		}
	}

	var replaced string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("ORDER_NOT_FOUND", "order not found")
			}
			return err
		}
		if key != "" {
			replaced = locked.FileKey(t.FileSlot)
		}

		t, err := workflow.Apply(&locked, action, actor, wfIn, s.now())
		if err != nil {
			return err
		}

		result := tx.Model(&locked).
			Where("status = ?", t.From).
			Select(t.Columns).
			Updates(&locked)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var statuses []string
			if err := tx.Model(&models.Order{}).Where("id = ?", id).Pluck("status", &statuses).Error; err != nil {
				return err
			}
			if len(statuses) == 0 {
				return errs.NotFound("ORDER_NOT_FOUND", "order not found")
			}
			return errs.InvalidState(statuses[0], string(t.From))
		}
		return nil
	})
	if err != nil {
		if key != "" {
			s.discard(ctx, key)
		}
		if _, ok := errs.As(err); ok {
			return nil, err
		}
		return nil, errs.Internal("failed to update order", err)
	}

	if replaced != "" {
		s.discard(ctx, replaced)
	}

	s.audit.Record(ctx, models.LogInfo, models.ModuleOrders, &actor.ID,
		"订单 %s：%s → %s", current.OrderNumber, t.From.Label(), t.To.Label())
	s.stats.Invalidate(ctx)

	return s.Get(ctx, id)
}

// Delete hard-deletes an order and its attachments
func (s *OrderService) Delete(ctx context.Context, id uuid.UUID, actor workflow.Actor) error {
	order, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.Order{}, "id = ?", id).Error; err != nil {
		return errs.Internal("failed to delete order", err)
	}

	for _, slot := range models.FileSlots {
		if key := order.FileKey(slot); key != "" {
			s.discard(ctx, key)
		}
	}

	s.audit.Record(ctx, models.LogWarning, models.ModuleOrders, &actor.ID,
		"删除订单 %s（%s）", order.OrderNumber, order.ProjectName)
	s.stats.Invalidate(ctx)
	return nil
}

// StoredFile is an opened attachment
type StoredFile struct {
	Body        io.ReadCloser
	Size        int64
	Filename    string
	ContentType string
}

// OpenFile opens the attachment in slot. A slot that was never filled and a
// filled slot whose object is gone are reported with different codes.
func (s *OrderService) OpenFile(ctx context.Context, id uuid.UUID, slot models.FileSlot) (*StoredFile, error) {
	if !slot.Valid() {
		return nil, errs.BadRequest("INVALID_FILE_TYPE", "file_type must be order_file, production_sheet or outbound_file").
			WithDetail("file_type", string(slot))
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	key := order.FileKey(slot)
	if key == "" {
		return nil, errs.NotFound("FILE_NOT_SET", fmt.Sprintf("%s has not been uploaded for this order", slot))
	}

	body, size, err := s.storage.Open(ctx, key)
	if errors.Is(err, ErrFileMissing) {
		s.logger.Error("attachment referenced by order is missing from storage",
			zap.String("order_number", order.OrderNumber),
			zap.String("slot", string(slot)),
			zap.String("key", key))
		return nil, errs.NotFound("FILE_MISSING", fmt.Sprintf("%s is recorded but missing from storage", slot))
	}
	if err != nil {
		return nil, errs.Internal("failed to open file", err)
	}

	filename := OriginalFilename(key)
	return &StoredFile{
		Body:        body,
		Size:        size,
		Filename:    filename,
		ContentType: ContentTypeFor(filename),
	}, nil
}

// Preview renders a spreadsheet attachment as rows
func (s *OrderService) Preview(ctx context.Context, id uuid.UUID, slot models.FileSlot) (*SpreadsheetPreview, error) {
	file, err := s.OpenFile(ctx, id, slot)
	if err != nil {
		return nil, err
	}
	defer file.Body.Close()

	if !utils.IsSpreadsheet(file.Filename) {
		return nil, errs.BadRequest("PREVIEW_UNSUPPORTED", "only .xlsx and .xlsm files can be previewed")
	}

	preview, err := PreviewSpreadsheet(file.Body, DefaultPreviewRows)
	if err != nil {
		return nil, errs.BadRequest("PREVIEW_FAILED", "the spreadsheet could not be read")
	}
	preview.Filename = file.Filename
	return preview, nil
}

func (s *OrderService) discard(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete stored file", zap.String("key", key), zap.Error(err))
	}
}
