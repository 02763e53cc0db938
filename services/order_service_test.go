package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yp-firedoor/firedoor-oa/errs"
	"github.com/yp-firedoor/firedoor-oa/models"
	"github.com/yp-firedoor/firedoor-oa/testutil"
	"github.com/yp-firedoor/firedoor-oa/utils"
	"github.com/yp-firedoor/firedoor-oa/workflow"
)

func TestCreateOrder(t *testing.T) {
	f := newOrderFixture(t)

	order := f.createOrder(t, "  Door A  ")

	assert.Regexp(t, orderNumberPattern, order.OrderNumber)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, "Door A", order.ProjectName)
	assert.Equal(t, f.staff.Clerk.ID, order.UserID)
	require.NotNil(t, order.User)
	assert.Equal(t, "clerk", order.User.Username)

	assert.True(t, strings.HasPrefix(order.OrderFile, "orders/"+order.ID.String()+"/order_file/"), order.OrderFile)
	assert.Equal(t, "订单.pdf", OriginalFilename(order.OrderFile))
	assert.True(t, f.storage.FileExists(order.OrderFile))

	var logs []models.SystemLog
	require.NoError(t, f.db.Where("module = ?", models.ModuleOrders).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, order.OrderNumber)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newOrderFixture(t)
	file := testutil.FileHeader(t, "order_file", "a.pdf", []byte("pdf"))

	tests := []struct {
		name   string
		input  CreateOrderInput
		fields []string
	}{
		{
			name:   "blank project name",
			input:  CreateOrderInput{ProjectName: "   ", OrderedBy: "Zhang", File: file},
			fields: []string{"project_name"},
		},
		{
			name:   "missing ordered by",
			input:  CreateOrderInput{ProjectName: "Door A", File: file},
			fields: []string{"ordered_by"},
		},
		{
			name:   "missing file",
			input:  CreateOrderInput{ProjectName: "Door A", OrderedBy: "Zhang"},
			fields: []string{"order_file"},
		},
		{
			name:   "bad extension",
			input:  CreateOrderInput{ProjectName: "Door A", OrderedBy: "Zhang", File: testutil.FileHeader(t, "order_file", "x.exe", []byte("MZ"))},
			fields: []string{"order_file"},
		},
		{
			name:   "everything missing",
			input:  CreateOrderInput{},
			fields: []string{"project_name", "ordered_by", "order_file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), actorOf(f.staff.Clerk), tt.input)
			appErr, ok := errs.As(err)
			require.True(t, ok)
			assert.Equal(t, errs.KindValidation, appErr.Kind)
			for _, field := range tt.fields {
				assert.Contains(t, appErr.Details, field)
			}
		})
	}

	var count int64
	f.db.Model(&models.Order{}).Count(&count)
	assert.Zero(t, count)
	assert.Empty(t, f.storage.Files())
}

func TestCreateOrderStorageFailure(t *testing.T) {
	f := newOrderFixture(t)
	f.storage.SaveErr = ErrMockSave

	_, err := f.svc.Create(context.Background(), actorOf(f.staff.Clerk), CreateOrderInput{
		ProjectName: "Door A",
		OrderedBy:   "Zhang",
		File:        testutil.FileHeader(t, "order_file", "a.pdf", []byte("pdf")),
	})
	assert.True(t, errs.Is(err, errs.KindInternal))
	assert.ErrorIs(t, err, ErrMockSave)

	var count int64
	f.db.Model(&models.Order{}).Count(&count)
	assert.Zero(t, count)
}

func TestReviewOnlyFromPending(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.advance(t, f.createOrder(t, "Door A"), workflow.Approve)

	before, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)

	for _, action := range []workflow.Action{workflow.Approve, workflow.Reject} {
		_, err := f.svc.Transition(ctx, order.ID, action, actorOf(f.staff.Reviewer), TransitionInput{ReviewNotes: "again"})
		appErr, ok := errs.As(err)
		require.True(t, ok)
		assert.Equal(t, errs.KindInvalidState, appErr.Kind)
		assert.Equal(t, "approved", appErr.Details["current_status"])
		assert.Equal(t, "pending", appErr.Details["required_status"])
	}

	after, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.ReviewNotes, after.ReviewNotes)
	assert.Equal(t, before.ReviewDate.Unix(), after.ReviewDate.Unix())
	assert.Equal(t, before.UpdatedAt.Unix(), after.UpdatedAt.Unix())
}

func TestRejectRequiresNotes(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, "Door A")

	_, err := f.svc.Transition(ctx, order.ID, workflow.Reject, actorOf(f.staff.Reviewer), TransitionInput{})
	assert.True(t, errs.Is(err, errs.KindValidation))

	approved, err := f.svc.Transition(ctx, order.ID, workflow.Approve, actorOf(f.staff.Reviewer), TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, "reviewer", approved.ReviewedBy.Username)
}

func TestResubmit(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.advance(t, f.createOrder(t, "Door A"), workflow.Reject)
	oldKey := order.OrderFile

	t.Run("only the owner", func(t *testing.T) {
		other := testutil.CreateUser(t, f.db, "clerk2", models.RoleOrderClerk)
		for _, actor := range []workflow.Actor{actorOf(other), actorOf(f.staff.Admin)} {
			_, err := f.svc.Transition(ctx, order.ID, workflow.Resubmit, actor, TransitionInput{})
			assert.True(t, errs.Is(err, errs.KindForbidden))
		}
	})

	t.Run("owner with new file", func(t *testing.T) {
		name := "Door A (rev 2)"
		next, err := f.svc.Transition(ctx, order.ID, workflow.Resubmit, actorOf(f.staff.Clerk), TransitionInput{
			ProjectName: &name,
			File:        testutil.FileHeader(t, "order_file", "修订.pdf", []byte("v2")),
		})
		require.NoError(t, err)

		assert.Equal(t, models.StatusPending, next.Status)
		assert.Nil(t, next.ReviewedByID)
		assert.Nil(t, next.ReviewDate)
		assert.Empty(t, next.ReviewNotes)
		assert.Equal(t, name, next.ProjectName)
		assert.Equal(t, order.OrderNumber, next.OrderNumber, "order number never changes")

		assert.NotEqual(t, oldKey, next.OrderFile)
		assert.True(t, f.storage.FileExists(next.OrderFile))
		assert.False(t, f.storage.FileExists(oldKey), "replaced file is removed")
	})

	t.Run("not from pending", func(t *testing.T) {
		_, err := f.svc.Transition(ctx, order.ID, workflow.Resubmit, actorOf(f.staff.Clerk), TransitionInput{})
		assert.True(t, errs.Is(err, errs.KindInvalidState))
	})
}

func TestResubmitSameFilename(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.advance(t, f.createOrder(t, "Door A"), workflow.Reject)
	original := order.OrderFile

	next, err := f.svc.Transition(ctx, order.ID, workflow.Resubmit, actorOf(f.staff.Clerk), TransitionInput{
		File: testutil.FileHeader(t, "order_file", "订单.pdf", []byte("%PDF-1.4 v2")),
	})
	require.NoError(t, err)

	assert.NotEqual(t, original, next.OrderFile)
	assert.Equal(t, "订单.pdf", OriginalFilename(next.OrderFile))
	assert.False(t, f.storage.FileExists(original), "replaced file is removed")
	assert.Equal(t, []byte("%PDF-1.4 v2"), f.storage.Files()[next.OrderFile])
}

func TestLostTransitionKeepsStoredFile(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.advance(t, f.createOrder(t, "Door A"), workflow.Reject)
	original := order.OrderFile

	// Another request resubmits the order between the row lock and the status update.
	raced := false
	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:concurrent_resubmit", func(db *gorm.DB) {
		if raced || db.Statement.Table != "orders" {
			return
		}
		raced = true
		db.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE orders SET status = ? WHERE id = ?", models.StatusPending, order.ID)
	}))

	_, err := f.svc.Transition(ctx, order.ID, workflow.Resubmit, actorOf(f.staff.Clerk), TransitionInput{
		File: testutil.FileHeader(t, "order_file", "订单.pdf", []byte("%PDF-1.4 unaccepted")),
	})
	require.True(t, raced)
	appErr, ok := errs.As(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, errs.KindInvalidState, appErr.Kind)

	stored, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, original, stored.OrderFile)
	assert.Equal(t, map[string][]byte{original: []byte("%PDF-1.4 order")}, f.storage.Files(),
		"the referenced content is untouched and the rejected upload is discarded")
}

func TestUploadProductionSheet(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	t.Run("wrong status stores nothing", func(t *testing.T) {
		order := f.createOrder(t, "Door A")
		_, err := f.svc.Transition(ctx, order.ID, workflow.UploadProductionSheet, actorOf(f.staff.Tech), TransitionInput{
			File: testutil.FileHeader(t, "production_sheet", "sheet.xlsx", []byte("sheet")),
		})
		assert.True(t, errs.Is(err, errs.KindInvalidState))
		for key := range f.storage.Files() {
			assert.NotContains(t, key, "/production_sheet/")
		}
	})

	t.Run("requires a file", func(t *testing.T) {
		order := f.advance(t, f.createOrder(t, "Door B"), workflow.Approve)
		_, err := f.svc.Transition(ctx, order.ID, workflow.UploadProductionSheet, actorOf(f.staff.Tech), TransitionInput{})
		appErr, ok := errs.As(err)
		require.True(t, ok)
		assert.Equal(t, errs.KindValidation, appErr.Kind)
		assert.Contains(t, appErr.Details, "production_sheet")
	})

	t.Run("success", func(t *testing.T) {
		order := f.advance(t, f.createOrder(t, "Door C"), workflow.Approve)
		next, err := f.svc.Transition(ctx, order.ID, workflow.UploadProductionSheet, actorOf(f.staff.Tech), TransitionInput{
			ProductionNotes: "加急",
			File:            testutil.FileHeader(t, "production_sheet", "sheet.xlsx", []byte("sheet")),
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusReadyForProduction, next.Status)
		require.NotNil(t, next.ProductionStartedAt)
		require.NotNil(t, next.ProductionStartedBy)
		assert.Equal(t, "tech", next.ProductionStartedBy.Username)
		assert.Equal(t, "加急", next.ProductionNotes)
		assert.True(t, f.storage.FileExists(next.ProductionSheet))
	})
}

func TestOutboundRequiresFile(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.advance(t, f.createOrder(t, "Door A"),
		workflow.Approve, workflow.UploadProductionSheet, workflow.StartProduction, workflow.Inbound)
	assert.Equal(t, models.StatusInWarehouse, order.Status)

	_, err := f.svc.Transition(ctx, order.ID, workflow.Outbound, actorOf(f.staff.Warehouse), TransitionInput{OutboundNotes: "x"})
	assert.True(t, errs.Is(err, errs.KindValidation))

	next, err := f.svc.Transition(ctx, order.ID, workflow.Outbound, actorOf(f.staff.Warehouse), TransitionInput{
		OutboundNotes: "发往工地",
		File:          testutil.FileHeader(t, "outbound_file", "出库单.pdf", []byte("out")),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOutWarehouse, next.Status)
	assert.Equal(t, "发往工地", next.OutboundNotes)
	require.NotNil(t, next.OutboundBy)
	assert.Equal(t, "warehouse", next.OutboundBy.Username)

	done := f.advance(t, next, workflow.Complete)
	assert.Equal(t, models.StatusCompleted, done.Status)
}

func TestTransitionUnknownOrder(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.svc.Transition(context.Background(), uuid.New(), workflow.Approve, actorOf(f.staff.Reviewer), TransitionInput{})
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestDeleteOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.advance(t, f.createOrder(t, "Door A"), workflow.Approve, workflow.UploadProductionSheet)

	require.NoError(t, f.svc.Delete(ctx, order.ID, actorOf(f.staff.Admin)))

	_, err := f.svc.Get(ctx, order.ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))
	assert.Empty(t, f.storage.Files(), "attachments are removed with the order")

	var logs []models.SystemLog
	require.NoError(t, f.db.Where("type = ?", models.LogWarning).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, order.OrderNumber)

	assert.True(t, errs.Is(f.svc.Delete(ctx, order.ID, actorOf(f.staff.Admin)), errs.KindNotFound))
}

func TestOpenFile(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, "Door A")

	t.Run("stored file", func(t *testing.T) {
		file, err := f.svc.OpenFile(ctx, order.ID, models.SlotOrderFile)
		require.NoError(t, err)
		assert.Equal(t, "订单.pdf", file.Filename)
		assert.Equal(t, "application/pdf", file.ContentType)
		assert.Equal(t, []byte("%PDF-1.4 order"), testutil.ReadAll(t, file.Body))
	})

	t.Run("slot never set", func(t *testing.T) {
		_, err := f.svc.OpenFile(ctx, order.ID, models.SlotProductionSheet)
		appErr, ok := errs.As(err)
		require.True(t, ok)
		assert.Equal(t, errs.KindNotFound, appErr.Kind)
		assert.Equal(t, "FILE_NOT_SET", appErr.Code)
	})

	t.Run("set but missing from storage", func(t *testing.T) {
		f.storage.Clear()
		_, err := f.svc.OpenFile(ctx, order.ID, models.SlotOrderFile)
		appErr, ok := errs.As(err)
		require.True(t, ok)
		assert.Equal(t, errs.KindNotFound, appErr.Kind)
		assert.Equal(t, "FILE_MISSING", appErr.Code)
	})

	t.Run("unknown slot", func(t *testing.T) {
		_, err := f.svc.OpenFile(ctx, order.ID, models.FileSlot("photo"))
		appErr, ok := errs.As(err)
		require.True(t, ok)
		assert.Equal(t, "INVALID_FILE_TYPE", appErr.Code)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := f.svc.OpenFile(ctx, uuid.New(), models.SlotOrderFile)
		assert.True(t, errs.Is(err, errs.KindNotFound))
	})
}

func TestListOrders(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	a := f.createOrder(t, "Door A")
	b := f.advance(t, f.createOrder(t, "Door B"), workflow.Approve)
	c := f.advance(t, f.createOrder(t, "Window C"), workflow.Approve, workflow.UploadProductionSheet)

	all, total, err := f.svc.List(ctx, ListFilter{}, utils.Pagination{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, c.ID, all[0].ID, "newest first")
	assert.Equal(t, a.ID, all[2].ID)
	require.NotNil(t, all[0].User)

	approved, total, err := f.svc.List(ctx, ListFilter{Statuses: []models.OrderStatus{models.StatusApproved}}, utils.Pagination{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, b.ID, approved[0].ID)

	page2, total, err := f.svc.List(ctx, ListFilter{}, utils.Pagination{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page2, 1)
	assert.Equal(t, a.ID, page2[0].ID)

	found, total, err := f.svc.List(ctx, ListFilter{Search: "Window"}, utils.Pagination{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, c.ID, found[0].ID)

	empty, total, err := f.svc.List(ctx, ListFilter{Statuses: []models.OrderStatus{models.StatusCompleted}}, utils.Pagination{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, empty)
}

func TestMutationsInvalidateStats(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	stats, err := f.stats.OrderStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalOrders)

	order := f.createOrder(t, "Door A")
	stats, err = f.stats.OrderStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PendingOrders)

	f.advance(t, order, workflow.Approve)
	stats, err = f.stats.OrderStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.PendingOrders)
	assert.Equal(t, int64(1), stats.ApprovedOrders)
}

func TestPreviewRejectsNonSpreadsheets(t *testing.T) {
	f := newOrderFixture(t)
	order := f.createOrder(t, "Door A")

	_, err := f.svc.Preview(context.Background(), order.ID, models.SlotOrderFile)
	appErr, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, "PREVIEW_UNSUPPORTED", appErr.Code)
}

func TestTransitionKeepsErrorKinds(t *testing.T) {
	f := newOrderFixture(t)
	order := f.createOrder(t, "Door A")

	_, err := f.svc.Transition(context.Background(), order.ID, workflow.Action("ship"), actorOf(f.staff.Admin), TransitionInput{})
	var appErr *errs.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "UNKNOWN_ACTION", appErr.Code)
}
