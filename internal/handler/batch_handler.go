package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fbrgate/internal/middleware"
	"fbrgate/internal/service"
)

// BatchHandler handles bulk invoice batch endpoints.
type BatchHandler struct {
	batchService service.BatchService
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(batchService service.BatchService) *BatchHandler {
	return &BatchHandler{batchService: batchService}
}

// Upload handles POST /api/v1/businesses/:businessID/batches
//
// Multipart upload with a single "file" part (csv or xlsx). The response
// returns immediately after validation; submission continues in the
// background and is observed through GetStatus.
func (h *BatchHandler) Upload(c *gin.Context) {
	businessID, ok := businessScope(c)
	if !ok {
		return
	}
	userID, err := middleware.GetUserID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user context")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "multipart field 'file' is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "UNREADABLE_FILE", "could not read uploaded file")
		return
	}
	defer file.Close()

	batch, err := h.batchService.Upload(c.Request.Context(), &service.UploadBatchInput{
		BusinessID: businessID,
		UploadedBy: userID,
		FileName:   fileHeader.Filename,
		FileSize:   fileHeader.Size,
		File:       file,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, batch)
}

// GetStatus handles GET /api/v1/businesses/:businessID/batches/:id
func (h *BatchHandler) GetStatus(c *gin.Context) {
	businessID, batchID, ok := batchScope(c)
	if !ok {
		return
	}

	summary, err := h.batchService.GetStatus(c.Request.Context(), businessID, batchID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, summary)
}

// List handles GET /api/v1/businesses/:businessID/batches
func (h *BatchHandler) List(c *gin.Context) {
	businessID, ok := businessScope(c)
	if !ok {
		return
	}
	offset, limit := pagination(c)

	batches, total, err := h.batchService.List(c.Request.Context(), businessID, offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, batches, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// Retry handles POST /api/v1/businesses/:businessID/batches/:id/retry
func (h *BatchHandler) Retry(c *gin.Context) {
	businessID, batchID, ok := batchScope(c)
	if !ok {
		return
	}

	batch, err := h.batchService.RetryFailedRows(c.Request.Context(), businessID, batchID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, batch)
}

// Cancel handles POST /api/v1/businesses/:businessID/batches/:id/cancel
func (h *BatchHandler) Cancel(c *gin.Context) {
	businessID, batchID, ok := batchScope(c)
	if !ok {
		return
	}

	batch, err := h.batchService.Cancel(c.Request.Context(), businessID, batchID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, batch)
}

func batchScope(c *gin.Context) (businessID, batchID uuid.UUID, ok bool) {
	businessID, ok = businessScope(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	batchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid batch ID")
		return uuid.Nil, uuid.Nil, false
	}
	return businessID, batchID, true
}
