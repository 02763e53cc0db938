package errs_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yp-firedoor/firedoor-oa/errs"
)

func TestKindHTTPStatus(t *testing.T) {
	tests := []struct {
		kind errs.Kind
		want int
	}{
		{errs.KindUnauthenticated, http.StatusUnauthorized},
		{errs.KindForbidden, http.StatusForbidden},
		{errs.KindInvalidState, http.StatusBadRequest},
		{errs.KindValidation, http.StatusBadRequest},
		{errs.KindNotFound, http.StatusNotFound},
		{errs.KindConflict, http.StatusConflict},
		{errs.KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.HTTPStatus())
		})
	}
}

func TestForbiddenNamesRoles(t *testing.T) {
	err := errs.Forbidden("technician", []string{"admin", "reviewer"})

	assert.Equal(t, errs.KindForbidden, err.Kind)
	assert.Equal(t, "FORBIDDEN", err.Code)
	assert.Equal(t, "technician", err.Details["role"])
	assert.Equal(t, []string{"admin", "reviewer"}, err.Details["required_roles"])
}

func TestInvalidStateNamesStatuses(t *testing.T) {
	err := errs.InvalidState("approved", "pending")

	assert.Equal(t, "approved", err.Details["current_status"])
	assert.Equal(t, "pending", err.Details["required_status"])
	assert.Contains(t, err.Message, "approved")
	assert.Contains(t, err.Message, "pending")
}

func TestWrappedErrorsKeepKind(t *testing.T) {
	base := errs.NotFound("ORDER_NOT_FOUND", "order not found")
	wrapped := fmt.Errorf("loading order: %w", base)

	assert.True(t, errs.Is(wrapped, errs.KindNotFound))
	assert.False(t, errs.Is(wrapped, errs.KindConflict))

	appErr, ok := errs.As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "ORDER_NOT_FOUND", appErr.Code)
}

func TestForeignErrorsAreInternal(t *testing.T) {
	assert.Equal(t, errs.KindInternal, errs.KindOf(errors.New("boom")))
	assert.False(t, errs.Is(nil, errs.KindInternal))
}

func TestInternalUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := errs.Internal("failed to save order", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "INTERNAL_ERROR: failed to save order (cause: connection reset)", err.Error())
}

func TestValidationFields(t *testing.T) {
	err := errs.ValidationFields(map[string]string{
		"project_name": "project_name is required",
		"order_file":   "order_file is required",
	})

	assert.Equal(t, errs.KindValidation, err.Kind)
	assert.Len(t, err.Details, 2)
	assert.Equal(t, "order_file is required", err.Details["order_file"])
}

func TestWithDetail(t *testing.T) {
	err := errs.BadRequest("INVALID_FILE_TYPE", "unknown file slot").WithDetail("file_type", "photo")
	assert.Equal(t, "photo", err.Details["file_type"])
}
