package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fbrgate/internal/service"
)

// InvoiceHandler handles single-invoice endpoints.
type InvoiceHandler struct {
	invoiceService service.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// CreateInvoiceRequest is the JSON body for creating a draft invoice.
// Monetary amounts are integer paisa.
type CreateInvoiceRequest struct {
	CustomerCode string                     `json:"customer_code"`
	InvoiceDate  time.Time                  `json:"invoice_date" binding:"required"`
	Items        []CreateInvoiceItemRequest `json:"items" binding:"required,min=1"`
	Subtotal     int64                      `json:"subtotal"`
	TaxAmount    int64                      `json:"tax_amount"`
	Discount     int64                      `json:"discount"`
	TotalAmount  int64                      `json:"total_amount"`
}

// CreateInvoiceItemRequest is one line of a create request.
type CreateInvoiceItemRequest struct {
	Description string  `json:"description" binding:"required"`
	HSCode      string  `json:"hs_code"`
	Quantity    int64   `json:"quantity" binding:"required"`
	UnitPrice   int64   `json:"unit_price"`
	TaxRate     float64 `json:"tax_rate"`
	TaxAmount   int64   `json:"tax_amount"`
	TotalValue  int64   `json:"total_value"`
}

// Create handles POST /api/v1/businesses/:businessID/invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	businessID, ok := businessScope(c)
	if !ok {
		return
	}

	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	input := &service.CreateInvoiceInput{
		BusinessID:   businessID,
		CustomerCode: req.CustomerCode,
		InvoiceDate:  req.InvoiceDate,
		Subtotal:     req.Subtotal,
		TaxAmount:    req.TaxAmount,
		Discount:     req.Discount,
		TotalAmount:  req.TotalAmount,
	}
	for _, it := range req.Items {
		input.Items = append(input.Items, service.InvoiceItemInput{
			Description: it.Description,
			HSCode:      it.HSCode,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
			TaxAmount:   it.TaxAmount,
			TotalValue:  it.TotalValue,
		})
	}

	invoice, err := h.invoiceService.Create(c.Request.Context(), input)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, invoice)
}

// GetByID handles GET /api/v1/businesses/:businessID/invoices/:id
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	businessID, invoiceID, ok := invoiceScope(c)
	if !ok {
		return
	}

	invoice, err := h.invoiceService.GetByID(c.Request.Context(), businessID, invoiceID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, invoice)
}

// List handles GET /api/v1/businesses/:businessID/invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	businessID, ok := businessScope(c)
	if !ok {
		return
	}
	offset, limit := pagination(c)

	invoices, total, err := h.invoiceService.ListByBusiness(c.Request.Context(), businessID, offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, invoices, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// Submit handles POST /api/v1/businesses/:businessID/invoices/:id/submit
//
// The response always carries the invoice's final state; a rejected or failed
// submission surfaces through the error envelope with the invoice re-readable
// via GetByID.
func (h *InvoiceHandler) Submit(c *gin.Context) {
	businessID, invoiceID, ok := invoiceScope(c)
	if !ok {
		return
	}

	invoice, err := h.invoiceService.Submit(c.Request.Context(), businessID, invoiceID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, invoice)
}

// Cancel handles POST /api/v1/businesses/:businessID/invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	businessID, invoiceID, ok := invoiceScope(c)
	if !ok {
		return
	}

	invoice, err := h.invoiceService.Cancel(c.Request.Context(), businessID, invoiceID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, invoice)
}

func invoiceScope(c *gin.Context) (businessID, invoiceID uuid.UUID, ok bool) {
	businessID, ok = businessScope(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid invoice ID")
		return uuid.Nil, uuid.Nil, false
	}
	return businessID, invoiceID, true
}
