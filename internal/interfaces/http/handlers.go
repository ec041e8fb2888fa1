package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/application/service"
	"github.com/garyjia/faktura/internal/domain/workflow"
	"github.com/garyjia/faktura/internal/format"
	"github.com/garyjia/faktura/internal/invoice"
	"github.com/garyjia/faktura/internal/ksef"
	"github.com/garyjia/faktura/internal/models"
	"github.com/garyjia/faktura/internal/registry"
	"github.com/garyjia/faktura/internal/repository"
	"github.com/garyjia/faktura/pkg/utils"
)

// Version is reported by the health check
const Version = "1.0.0"

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	xmlContentType  = "application/xml; charset=utf-8"
	registerFile    = "rejestr_faktur.xlsx"
	tokenMask       = "****"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Dependencies
	logger *zap.Logger
	now    func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger *zap.Logger) *Handlers {
	return &Handlers{deps: deps, logger: logger, now: time.Now}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// TotalsResponse carries the derived amounts of one invoice
type TotalsResponse struct {
	invoice.Totals
	AmountInWords string `json:"amountInWords,omitempty"`
}

// ImportResponse reports how many invoices an import brought in
type ImportResponse struct {
	Imported int `json:"imported"`
}

// KSeFConfigResponse is the stored gateway configuration with the token masked
type KSeFConfigResponse struct {
	Environment models.KSeFEnvironment `json:"environment,omitempty"`
	Token       string                 `json:"token,omitempty"`
	Configured  bool                   `json:"configured"`
}

// ValidateRequest names the values to check; absent fields are skipped
type ValidateRequest struct {
	NIP         *string `json:"nip"`
	BankAccount *string `json:"bankAccount"`
	PostalCode  *string `json:"postalCode"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Version:   Version,
	}

	if h.deps.Ready != nil && !h.deps.Ready.Ready() {
		response.Status = "starting"
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: response, Error: "service not ready"})
		return
	}

	ok(c, response)
}

// GetSeller handles GET /api/seller
func (h *Handlers) GetSeller(c *gin.Context) {
	seller, err := h.deps.Seller.Get(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to get seller", err)
		return
	}
	ok(c, seller)
}

// SaveSeller handles PUT /api/seller
func (h *Handlers) SaveSeller(c *gin.Context) {
	var seller models.SellerData
	if !bindJSON(c, &seller) {
		return
	}

	saved, err := h.deps.Seller.Save(c.Request.Context(), seller)
	if err != nil {
		h.fail(c, "Failed to save seller", err)
		return
	}
	ok(c, saved)
}

// ListBuyers handles GET /api/buyers; ?q= searches by name or NIP
func (h *Handlers) ListBuyers(c *gin.Context) {
	var (
		buyers []models.Buyer
		err    error
	)
	if query := c.Query("q"); query != "" {
		buyers, err = h.deps.Buyer.Search(c.Request.Context(), query)
	} else {
		buyers, err = h.deps.Buyer.List(c.Request.Context())
	}
	if err != nil {
		h.fail(c, "Failed to list buyers", err)
		return
	}
	ok(c, buyers)
}

// CreateBuyer handles POST /api/buyers
func (h *Handlers) CreateBuyer(c *gin.Context) {
	var buyer models.Buyer
	if !bindJSON(c, &buyer) {
		return
	}

	created, err := h.deps.Buyer.Add(c.Request.Context(), buyer)
	if err != nil {
		h.fail(c, "Failed to create buyer", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: created})
}

// UpdateBuyer handles PUT /api/buyers/:id
func (h *Handlers) UpdateBuyer(c *gin.Context) {
	var patch models.BuyerPatch
	if !bindJSON(c, &patch) {
		return
	}

	updated, err := h.deps.Buyer.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.fail(c, "Failed to update buyer", err)
		return
	}
	ok(c, updated)
}

// DeleteBuyer handles DELETE /api/buyers/:id
func (h *Handlers) DeleteBuyer(c *gin.Context) {
	if err := h.deps.Buyer.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "Failed to delete buyer", err)
		return
	}
	ok(c, nil)
}

// ListInvoices handles GET /api/invoices?type=all|vat|proforma
func (h *Handlers) ListInvoices(c *gin.Context) {
	invoices, err := h.deps.Invoice.List(c.Request.Context(), service.Filter(c.Query("type")))
	if err != nil {
		h.fail(c, "Failed to list invoices", err)
		return
	}
	ok(c, invoices)
}

// SaveInvoice handles POST /api/invoices
func (h *Handlers) SaveInvoice(c *gin.Context) {
	var inv models.Invoice
	if !bindJSON(c, &inv) {
		return
	}

	saved, err := h.deps.Invoice.Save(c.Request.Context(), inv)
	if err != nil {
		h.fail(c, "Failed to save invoice", err)
		return
	}

	h.logger.Info("Invoice saved",
		zap.String("invoice_id", saved.ID),
		zap.String("invoice_number", saved.InvoiceNumber))
	c.JSON(http.StatusCreated, Response{Success: true, Data: saved})
}

// NewDraft handles GET /api/invoices/draft?type=vat|proforma
func (h *Handlers) NewDraft(c *gin.Context) {
	draft, err := h.deps.Invoice.NewDraft(c.Request.Context(), documentType(c))
	if err != nil {
		h.fail(c, "Failed to create draft", err)
		return
	}
	ok(c, draft)
}

// NextNumber handles GET /api/invoices/next-number?type=vat|proforma
func (h *Handlers) NextNumber(c *gin.Context) {
	number, err := h.deps.Invoice.NextNumber(c.Request.Context(), documentType(c))
	if err != nil {
		h.fail(c, "Failed to compute next number", err)
		return
	}
	ok(c, gin.H{"invoiceNumber": number})
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	inv, err := h.deps.Invoice.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get invoice", err)
		return
	}
	ok(c, inv)
}

// UpdateInvoice handles PATCH /api/invoices/:id
func (h *Handlers) UpdateInvoice(c *gin.Context) {
	var patch models.InvoicePatch
	if !bindJSON(c, &patch) {
		return
	}

	updated, err := h.deps.Invoice.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.fail(c, "Failed to update invoice", err)
		return
	}
	ok(c, updated)
}

// DeleteInvoice handles DELETE /api/invoices/:id
func (h *Handlers) DeleteInvoice(c *gin.Context) {
	if err := h.deps.Invoice.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "Failed to delete invoice", err)
		return
	}
	ok(c, nil)
}

// ConvertInvoice handles POST /api/invoices/:id/convert
func (h *Handlers) ConvertInvoice(c *gin.Context) {
	converted, err := h.deps.Invoice.ConvertToVAT(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to convert proforma", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: converted})
}

// InvoiceTotals handles GET /api/invoices/:id/totals. Amounts outside the spelled range
// come back without words.
func (h *Handlers) InvoiceTotals(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	totals, err := h.deps.Invoice.Totals(ctx, id)
	if err != nil {
		h.fail(c, "Failed to compute totals", err)
		return
	}
	words, err := h.deps.Invoice.AmountInWords(ctx, id)
	if errors.Is(err, format.ErrAmountOutOfRange) {
		h.logger.Debug("Amount not spelled", zap.String("invoice_id", id), zap.Error(err))
		words, err = "", nil
	}
	if err != nil {
		h.fail(c, "Failed to spell amount", err)
		return
	}
	ok(c, TotalsResponse{Totals: totals, AmountInWords: words})
}

// InvoiceXML handles GET /api/invoices/:id/xml
func (h *Handlers) InvoiceXML(c *gin.Context) {
	doc, err := h.deps.Invoice.ExportXML(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to export invoice XML", err)
		return
	}
	attachment(c, doc.FileName, xmlContentType, doc.Content)
}

// ExportInvoices handles GET /api/invoices/export
func (h *Handlers) ExportInvoices(c *gin.Context) {
	data, err := h.deps.Invoice.ExportJSON(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to export invoices", err)
		return
	}
	attachment(c, fmt.Sprintf("dokumenty_%d.json", h.now().UnixMilli()), "application/json", data)
}

// ImportInvoices handles POST /api/invoices/import; the body replaces the stored history
func (h *Handlers) ImportInvoices(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		writeError(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	n, err := h.deps.Invoice.ImportJSON(c.Request.Context(), data)
	if err != nil {
		h.fail(c, "Failed to import invoices", err)
		return
	}
	ok(c, ImportResponse{Imported: n})
}

// ExportRegister handles GET /api/invoices/register.xlsx
func (h *Handlers) ExportRegister(c *gin.Context) {
	invoices, err := h.deps.Invoice.List(c.Request.Context(), service.Filter(c.Query("type")))
	if err != nil {
		h.fail(c, "Failed to list invoices", err)
		return
	}

	var buf bytes.Buffer
	if err := h.deps.Register.Write(&buf, invoices); err != nil {
		h.fail(c, "Failed to write invoice register", err)
		return
	}
	attachment(c, registerFile, xlsxContentType, buf.Bytes())
}

// SendToKSeF handles POST /api/invoices/:id/ksef/send. Gateway failures are recorded on
// the invoice and still answer 200.
func (h *Handlers) SendToKSeF(c *gin.Context) {
	inv, err := h.deps.KSeF.Send(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to send invoice to KSeF", err)
		return
	}
	ok(c, inv)
}

// CheckKSeFStatus handles POST /api/invoices/:id/ksef/status
func (h *Handlers) CheckKSeFStatus(c *gin.Context) {
	inv, err := h.deps.KSeF.CheckStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to check KSeF status", err)
		return
	}
	ok(c, inv)
}

// KSeFActions handles GET /api/invoices/:id/ksef/actions
func (h *Handlers) KSeFActions(c *gin.Context) {
	actions, err := h.deps.KSeF.Actions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to list KSeF actions", err)
		return
	}
	ok(c, actions)
}

// DownloadUPO handles GET /api/invoices/:id/ksef/upo
func (h *Handlers) DownloadUPO(c *gin.Context) {
	id := c.Param("id")
	upo, err := h.deps.KSeF.DownloadUPO(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to download UPO", err)
		return
	}
	attachment(c, "UPO_"+id+".xml", xmlContentType, []byte(upo))
}

// GetKSeFConfig handles GET /api/ksef/config
func (h *Handlers) GetKSeFConfig(c *gin.Context) {
	cfg, err := h.deps.KSeF.Config(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to get KSeF config", err)
		return
	}
	ok(c, maskConfig(cfg))
}

// SaveKSeFConfig handles PUT /api/ksef/config
func (h *Handlers) SaveKSeFConfig(c *gin.Context) {
	var cfg models.KSeFConfig
	if !bindJSON(c, &cfg) {
		return
	}

	if err := h.deps.KSeF.Configure(c.Request.Context(), cfg); err != nil {
		h.fail(c, "Failed to save KSeF config", err)
		return
	}
	ok(c, maskConfig(&cfg))
}

// LookupKRS handles GET /api/registry/krs/:krs
func (h *Handlers) LookupKRS(c *gin.Context) {
	company, err := h.deps.Registry.GetDetails(c.Request.Context(), c.Param("krs"))
	if err != nil {
		h.fail(c, "KRS lookup failed", err)
		return
	}
	ok(c, company)
}

// Validate handles POST /api/validate
func (h *Handlers) Validate(c *gin.Context) {
	var req ValidateRequest
	if !bindJSON(c, &req) {
		return
	}

	result := make(map[string]bool, 3)
	if req.NIP != nil {
		result["nip"] = utils.ValidateNIP(*req.NIP)
	}
	if req.BankAccount != nil {
		result["bankAccount"] = utils.ValidateBankAccount(*req.BankAccount)
	}
	if req.PostalCode != nil {
		result["postalCode"] = utils.ValidatePostalCode(*req.PostalCode)
	}
	ok(c, result)
}

// fail maps err onto a status code, logging server-side failures
func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))
		writeError(c, status, "internal server error")
		return
	}

	h.logger.Debug(msg, zap.Int("status", status), zap.Error(err))

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(status, Response{Success: false, Data: verr, Error: verr.Message})
		return
	}
	writeError(c, status, err.Error())
}

func statusFor(err error) int {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, repository.ErrInvalidImport),
		errors.Is(err, registry.ErrInvalidKRSNumber),
		errors.Is(err, service.ErrNotSubmitted),
		errors.Is(err, ksef.ErrNotConfigured):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvoiceNotFound),
		errors.Is(err, service.ErrBuyerNotFound),
		errors.Is(err, registry.ErrCompanyNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrVersionConflict),
		errors.Is(err, workflow.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ksef.ErrProformaNotAllowed),
		errors.Is(err, format.ErrAmountOutOfRange):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func maskConfig(cfg *models.KSeFConfig) KSeFConfigResponse {
	if cfg == nil {
		return KSeFConfigResponse{}
	}
	return KSeFConfigResponse{
		Environment: cfg.Environment,
		Token:       maskToken(cfg.Token),
		Configured:  cfg.Token != "",
	}
}

// maskToken keeps only the last four characters
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	runes := []rune(token)
	if len(runes) <= 4 {
		return tokenMask
	}
	return tokenMask + string(runes[len(runes)-4:])
}

func documentType(c *gin.Context) models.DocumentType {
	return models.DocumentType(c.DefaultQuery("type", string(models.DocumentTypeVAT)))
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func attachment(c *gin.Context, fileName, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, contentType, data)
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Error: msg})
}
