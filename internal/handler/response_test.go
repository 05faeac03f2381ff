package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fbrgate/internal/domain"
	"fbrgate/internal/handler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func respond(t *testing.T, err error) (*httptest.ResponseRecorder, handler.APIResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	handler.HandleError(c, err)

	var body handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.NotNil(t, body.Error)
	return w, body
}

func TestHandleError_SentinelMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"business not found", domain.ErrBusinessNotFound, http.StatusNotFound, "BUSINESS_NOT_FOUND"},
		{"invoice not found", domain.ErrInvoiceNotFound, http.StatusNotFound, "INVOICE_NOT_FOUND"},
		{"inactive business", domain.ErrBusinessInactive, http.StatusForbidden, "BUSINESS_INACTIVE"},
		{"sandbox gate", domain.ErrSandboxNotValidated, http.StatusConflict, "SANDBOX_NOT_VALIDATED"},
		{"duplicate code", domain.ErrDuplicateCode, http.StatusConflict, "DUPLICATE_CODE"},
		{"oversized upload", domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"unsupported file", domain.ErrUnsupportedFileType, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE"},
		{"batch not retryable", domain.ErrBatchNotRetryable, http.StatusConflict, "BATCH_NOT_RETRYABLE"},
		{"submission lease held", domain.ErrSubmissionLocked, http.StatusConflict, "SUBMISSION_IN_FLIGHT"},
		{"unknown error", assert.AnError, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := respond(t, tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestHandleError_StateConflict(t *testing.T) {
	err := &domain.StateConflictError{
		Entity: "invoice",
		From:   string(domain.InvoiceStatusValidated),
		To:     string(domain.InvoiceStatusCancelled),
	}
	w, body := respond(t, err)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "STATE_CONFLICT", body.Error.Code)
	assert.Contains(t, body.Error.Message, "validated")
}

func TestHandleError_ValidationFailedCarriesFields(t *testing.T) {
	err := &domain.ValidationFailedError{
		Fields: []domain.FieldError{
			{Field: "total_amount", Message: "does not match subtotal + tax - discount"},
		},
	}
	w, body := respond(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	require.Len(t, body.Error.Fields, 1)
	assert.Equal(t, "total_amount", body.Error.Fields[0].Field)
}

func TestHandleError_FBRKinds(t *testing.T) {
	tests := []struct {
		name       string
		kind       domain.FBRErrorKind
		wantStatus int
		wantCode   string
	}{
		{"rejection", domain.FBRErrValidation, http.StatusUnprocessableEntity, "FBR_REJECTED"},
		{"auth failure", domain.FBRErrAuth, http.StatusConflict, "FBR_AUTH_FAILED"},
		{"outage", domain.FBRErrTransient, http.StatusBadGateway, "FBR_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := respond(t, &domain.FBRError{Kind: tt.kind, Code: "E", Message: "m"})
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestHandleError_SequenceUnavailable(t *testing.T) {
	err := &domain.SequenceError{Err: assert.AnError}
	w, body := respond(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "SEQUENCE_UNAVAILABLE", body.Error.Code)
}
