package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fbrgate/internal/service"
)

// CatalogHandler handles customer and product registry endpoints. Batch rows
// reference these by code during validation.
type CatalogHandler struct {
	catalogService service.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogService service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// CreateCustomer handles POST /api/v1/businesses/:businessID/customers
func (h *CatalogHandler) CreateCustomer(c *gin.Context) {
	businessID, ok := businessScope(c)
	if !ok {
		return
	}

	var input service.CreateCustomerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	customer, err := h.catalogService.CreateCustomer(c.Request.Context(), businessID, &input)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, customer)
}

// ListCustomers handles GET /api/v1/businesses/:businessID/customers
func (h *CatalogHandler) ListCustomers(c *gin.Context) {
	businessID, ok := businessScope(c)
	if !ok {
		return
	}
	offset, limit := pagination(c)

	customers, total, err := h.catalogService.ListCustomers(c.Request.Context(), businessID, offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, customers, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// CreateProduct handles POST /api/v1/businesses/:businessID/products
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	businessID, ok := businessScope(c)
	if !ok {
		return
	}

	var input service.CreateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	product, err := h.catalogService.CreateProduct(c.Request.Context(), businessID, &input)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, product)
}

// ListProducts handles GET /api/v1/businesses/:businessID/products
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	businessID, ok := businessScope(c)
	if !ok {
		return
	}
	offset, limit := pagination(c)

	products, total, err := h.catalogService.ListProducts(c.Request.Context(), businessID, offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, products, PagMeta{Total: total, Offset: offset, Limit: limit})
}
