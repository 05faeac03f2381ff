package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fbrgate/internal/service"
)

// BusinessHandler handles business management endpoints.
type BusinessHandler struct {
	businessService service.BusinessService
}

// NewBusinessHandler creates a new BusinessHandler.
func NewBusinessHandler(businessService service.BusinessService) *BusinessHandler {
	return &BusinessHandler{businessService: businessService}
}

// Create handles POST /api/v1/businesses
func (h *BusinessHandler) Create(c *gin.Context) {
	var input service.CreateBusinessInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	business, err := h.businessService.Create(c.Request.Context(), &input)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, business)
}

// List handles GET /api/v1/businesses
func (h *BusinessHandler) List(c *gin.Context) {
	offset, limit := pagination(c)

	businesses, total, err := h.businessService.List(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, businesses, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/businesses/:businessID
func (h *BusinessHandler) GetByID(c *gin.Context) {
	businessID, ok := businessScope(c)
	if !ok {
		return
	}

	business, err := h.businessService.GetByID(c.Request.Context(), businessID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, business)
}

// UpdateIntegration handles PUT /api/v1/businesses/:businessID/integration
func (h *BusinessHandler) UpdateIntegration(c *gin.Context) {
	businessID, err := uuid.Parse(c.Param("businessID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid business ID")
		return
	}

	var input service.UpdateIntegrationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	business, err := h.businessService.UpdateIntegration(c.Request.Context(), businessID, &input)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, business)
}
