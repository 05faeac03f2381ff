package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fbrgate/internal/domain"
	"fbrgate/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// APIError holds error details in the response. Fields carries per-field
// validation errors when the failure is a validation one.
type APIError struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrBusinessNotFound):
		return http.StatusNotFound, "BUSINESS_NOT_FOUND", "business not found"
	case errors.Is(err, domain.ErrInvoiceNotFound):
		return http.StatusNotFound, "INVOICE_NOT_FOUND", "invoice not found"
	case errors.Is(err, domain.ErrBatchNotFound):
		return http.StatusNotFound, "BATCH_NOT_FOUND", "batch not found"
	case errors.Is(err, domain.ErrRowNotFound):
		return http.StatusNotFound, "ROW_NOT_FOUND", "batch row not found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "forbidden"
	case errors.Is(err, domain.ErrBusinessInactive):
		return http.StatusForbidden, "BUSINESS_INACTIVE", "business is inactive"
	case errors.Is(err, domain.ErrSandboxNotValidated):
		return http.StatusConflict, "SANDBOX_NOT_VALIDATED", "a validated sandbox submission is required before enabling production"
	case errors.Is(err, domain.ErrInvalidIntegrationMode):
		return http.StatusBadRequest, "INVALID_INTEGRATION_MODE", "integration mode must be local, sandbox, or production"
	case errors.Is(err, domain.ErrDuplicateCode):
		return http.StatusConflict, "DUPLICATE_CODE", "code already exists for this business"
	case errors.Is(err, domain.ErrDuplicateLocalID):
		return http.StatusConflict, "DUPLICATE_LOCAL_ID", "local id already exists in this batch"
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type; allowed: csv, xlsx"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size"
	case errors.Is(err, domain.ErrBatchNotCancellable):
		return http.StatusConflict, "BATCH_NOT_CANCELLABLE", "batch is not in a cancellable state"
	case errors.Is(err, domain.ErrBatchNotRetryable):
		return http.StatusConflict, "BATCH_NOT_RETRYABLE", "batch has no retryable rows"
	case errors.Is(err, domain.ErrSubmissionLocked):
		return http.StatusConflict, "SUBMISSION_IN_FLIGHT", "another submission for this invoice is in flight"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps an error to the response envelope. Typed state and
// validation errors get dedicated shapes; everything else goes through the
// sentinel table.
func HandleError(c *gin.Context, err error) {
	var conflict *domain.StateConflictError
	if errors.As(err, &conflict) {
		RespondError(c, http.StatusConflict, "STATE_CONFLICT", conflict.Error())
		return
	}

	var vf *domain.ValidationFailedError
	if errors.As(err, &vf) {
		c.JSON(http.StatusUnprocessableEntity, APIResponse{
			Success: false,
			Error: &APIError{
				Code:    "VALIDATION_FAILED",
				Message: "invoice validation failed",
				Fields:  vf.Fields,
			},
		})
		return
	}

	var fe *domain.FBRError
	if errors.As(err, &fe) {
		status, code := fbrErrorStatus(fe)
		c.JSON(status, APIResponse{
			Success: false,
			Error: &APIError{
				Code:    code,
				Message: fe.Message,
				Fields:  fe.Fields,
			},
		})
		return
	}

	var seqErr *domain.SequenceError
	if errors.As(err, &seqErr) {
		RespondError(c, http.StatusServiceUnavailable, "SEQUENCE_UNAVAILABLE", "invoice numbering is temporarily unavailable; retry later")
		return
	}

	status, code, msg := MapDomainError(err)
	if status >= 500 {
		requestID, _ := c.Get("request_id")
		log.Printf("[%s] internal error: %v", requestID, err)
	}
	RespondError(c, status, code, msg)
}

func fbrErrorStatus(fe *domain.FBRError) (int, string) {
	switch fe.Kind {
	case domain.FBRErrValidation:
		return http.StatusUnprocessableEntity, "FBR_REJECTED"
	case domain.FBRErrAuth:
		return http.StatusConflict, "FBR_AUTH_FAILED"
	default:
		return http.StatusBadGateway, "FBR_UNAVAILABLE"
	}
}

// businessScope parses the business ID from the path and enforces the
// caller's token scope. Returns false with the response already written when
// access is denied.
func businessScope(c *gin.Context) (uuid.UUID, bool) {
	businessID, err := uuid.Parse(c.Param("businessID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid business ID")
		return uuid.Nil, false
	}
	if !middleware.CanAccessBusiness(c, businessID) {
		RespondError(c, http.StatusForbidden, "FORBIDDEN", "no access to this business")
		return uuid.Nil, false
	}
	return businessID, true
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}

func pagination(c *gin.Context) (offset, limit int) {
	offset = intQuery(c, "offset", 0)
	limit = intQuery(c, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}
