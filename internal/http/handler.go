package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dbritez/consultora-billing/internal/http/middleware"
	"github.com/dbritez/consultora-billing/internal/invoice"
	"github.com/dbritez/consultora-billing/internal/ledger"
	"github.com/dbritez/consultora-billing/internal/model"
)

type ScheduleExporter interface {
	Generate(projectID uuid.UUID, stages []model.PaymentStage, totals model.StageTotals) ([]byte, error)
}

type InvoiceRenderer interface {
	Generate(inv model.Invoice) ([]byte, error)
}

type Handler struct {
	ledger *ledger.Service
	excel  ScheduleExporter
	pdf    InvoiceRenderer
	log    zerolog.Logger
}

func NewHandler(svc *ledger.Service, excel ScheduleExporter, pdf InvoiceRenderer, log zerolog.Logger) *Handler {
	return &Handler{ledger: svc, excel: excel, pdf: pdf, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	api := router.Group("/api")
	api.Use(authMiddleware)

	api.POST("/projects/:id/stages", h.createStages)
	api.POST("/projects/:id/progress", h.projectProgress)
	api.GET("/projects/:id/stages", h.listStages)
	api.GET("/projects/:id/stages/export", h.exportStages)
	api.POST("/stages/:id/proof", h.submitProof)
	api.POST("/stages/:id/approve", h.approveStage)
	api.POST("/stages/:id/reject", h.rejectStage)
	api.GET("/invoices/:id", h.getInvoice)
	api.GET("/invoices/:id/pdf", h.invoicePDF)
}

type stageDefinitionRequest struct {
	Name             string `json:"name" binding:"required"`
	Percentage       int    `json:"percentage" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
	Currency         string `json:"currency"`
	RequiredProgress int    `json:"required_progress"`
}

type createStagesRequest struct {
	CompanyID string                   `json:"company_id" binding:"required"`
	Stages    []stageDefinitionRequest `json:"stages" binding:"required"`
}

func (h *Handler) createStages(c *gin.Context) {
	projectID, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	var req createStagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	companyID, err := uuid.Parse(strings.TrimSpace(req.CompanyID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company_id"})
		return
	}

	defs := make([]model.StageDefinition, 0, len(req.Stages))
	for _, item := range req.Stages {
		amount, err := decimal.NewFromString(strings.TrimSpace(item.Amount))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount: " + item.Amount})
			return
		}
		defs = append(defs, model.StageDefinition{
			Name:             item.Name,
			Percentage:       item.Percentage,
			Amount:           amount,
			Currency:         strings.ToUpper(strings.TrimSpace(item.Currency)),
			RequiredProgress: item.RequiredProgress,
		})
	}

	stages, err := h.ledger.CreateStages(c.Request.Context(), projectID, companyID, defs)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"stages": stageResponses(stages)})
}

type progressRequest struct {
	Progress *int `json:"progress" binding:"required"`
}

func (h *Handler) projectProgress(c *gin.Context) {
	projectID, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.ledger.OnProjectProgressChanged(c.Request.Context(), projectID, *req.Progress); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listStages(c *gin.Context) {
	projectID, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	stages, totals, err := h.ledger.StagesByProject(c.Request.Context(), projectID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stages": stageResponses(stages),
		"totals": gin.H{
			"total_amount":    totals.TotalAmount.String(),
			"paid_amount":     totals.PaidAmount.String(),
			"paid_percentage": totals.PaidPercentage,
			"currency":        totals.Currency,
		},
	})
}

func (h *Handler) exportStages(c *gin.Context) {
	projectID, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	stages, totals, err := h.ledger.StagesByProject(c.Request.Context(), projectID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	content, err := h.excel.Generate(projectID, stages, totals)
	if err != nil {
		h.handleError(c, err)
		return
	}

	fileName := "payment-schedule-" + projectID.String() + ".xlsx"
	c.Header("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content)
}

type proofRequest struct {
	Method   string `json:"method" binding:"required"`
	Evidence string `json:"evidence"`
	FileRef  string `json:"file_ref"`
}

func (h *Handler) submitProof(c *gin.Context) {
	stageID, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	var req proofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stage, err := h.ledger.SubmitProof(c.Request.Context(), stageID, req.Method, req.Evidence, req.FileRef)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stageResponse(stage))
}

func (h *Handler) approveStage(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	stageID, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	stage, err := h.ledger.Approve(c.Request.Context(), stageID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stageResponse(stage))
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) rejectStage(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	stageID, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stage, err := h.ledger.Reject(c.Request.Context(), stageID, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stageResponse(stage))
}

func (h *Handler) getInvoice(c *gin.Context) {
	invoiceID, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	inv, err := h.ledger.InvoiceByID(c.Request.Context(), invoiceID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoiceResponse(inv))
}

func (h *Handler) invoicePDF(c *gin.Context) {
	invoiceID, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	inv, err := h.ledger.InvoiceByID(c.Request.Context(), invoiceID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	content, err := h.pdf.Generate(*inv)
	if err != nil {
		h.handleError(c, err)
		return
	}

	fileName := "invoice-" + strings.ReplaceAll(inv.Number, "-", "") + ".pdf"
	c.Header("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	c.Data(http.StatusOK, "application/pdf", content)
}

func (h *Handler) requireAdmin(c *gin.Context) bool {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return false
	}
	if !principal.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return false
	}
	return true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrStaleState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retry": true})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, invoice.ErrUnsupportedTaxRate):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseID(c *gin.Context, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

type stageDTO struct {
	ID               string     `json:"id"`
	ProjectID        string     `json:"project_id"`
	Ordinal          int        `json:"ordinal"`
	Name             string     `json:"name"`
	Percentage       int        `json:"percentage"`
	Amount           string     `json:"amount"`
	Currency         string     `json:"currency"`
	RequiredProgress int        `json:"required_progress"`
	Status           string     `json:"status"`
	PaymentMethod    *string    `json:"payment_method,omitempty"`
	EvidenceNote     *string    `json:"evidence_note,omitempty"`
	ProofFileRef     *string    `json:"proof_file_ref,omitempty"`
	RejectionReason  *string    `json:"rejection_reason,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	ExchangeRate     *string    `json:"exchange_rate,omitempty"`
	ExchangeSource   *string    `json:"exchange_rate_source,omitempty"`
}

func stageResponse(stage *model.PaymentStage) stageDTO {
	dto := stageDTO{
		ID:               stage.ID.String(),
		ProjectID:        stage.ProjectID.String(),
		Ordinal:          stage.Ordinal,
		Name:             stage.Name,
		Percentage:       stage.Percentage,
		Amount:           stage.Amount.String(),
		Currency:         stage.Currency,
		RequiredProgress: stage.RequiredProgress,
		Status:           string(stage.Status),
		PaymentMethod:    stage.PaymentMethod,
		EvidenceNote:     stage.EvidenceNote,
		ProofFileRef:     stage.ProofFileRef,
		RejectionReason:  stage.RejectionReason,
		PaidAt:           stage.PaidAt,
		ExchangeSource:   stage.ExchangeRateSource,
	}
	if stage.ExchangeRate != nil {
		rate := stage.ExchangeRate.String()
		dto.ExchangeRate = &rate
	}
	return dto
}

func stageResponses(stages []model.PaymentStage) []stageDTO {
	result := make([]stageDTO, 0, len(stages))
	for i := range stages {
		result = append(result, stageResponse(&stages[i]))
	}
	return result
}

type invoiceDTO struct {
	ID              string    `json:"id"`
	StageID         *string   `json:"stage_id,omitempty"`
	ProjectID       string    `json:"project_id"`
	Number          string    `json:"number"`
	AmountSource    string    `json:"amount_source"`
	SourceCurrency  string    `json:"source_currency"`
	ExchangeRate    string    `json:"exchange_rate"`
	AmountLocal     int64     `json:"amount_local"`
	TaxRate         int       `json:"tax_rate"`
	TaxBase         int64     `json:"tax_base"`
	TaxAmount       int64     `json:"tax_amount"`
	Status          string    `json:"status"`
	CDC             *string   `json:"cdc,omitempty"`
	ProtocolID      *string   `json:"protocol_id,omitempty"`
	VerificationURL *string   `json:"verification_url,omitempty"`
	RejectionCode   *string   `json:"rejection_code,omitempty"`
	RejectionReason *string   `json:"rejection_reason,omitempty"`
	ClientName      string    `json:"client_name"`
	ClientRUC       string    `json:"client_ruc"`
	IssuedAt        time.Time `json:"issued_at"`
}

func invoiceResponse(inv *model.Invoice) invoiceDTO {
	dto := invoiceDTO{
		ID:              inv.ID.String(),
		ProjectID:       inv.ProjectID.String(),
		Number:          inv.Number,
		AmountSource:    inv.AmountSource.String(),
		SourceCurrency:  inv.SourceCurrency,
		ExchangeRate:    inv.ExchangeRate.String(),
		AmountLocal:     inv.AmountLocal,
		TaxRate:         inv.TaxRate,
		TaxBase:         inv.TaxBase,
		TaxAmount:       inv.TaxAmount,
		Status:          string(inv.Status),
		CDC:             inv.CDC,
		ProtocolID:      inv.ProtocolID,
		VerificationURL: inv.VerificationURL,
		RejectionCode:   inv.RejectionCode,
		RejectionReason: inv.RejectionReason,
		ClientName:      inv.ClientName,
		ClientRUC:       inv.ClientRUC,
		IssuedAt:        inv.IssuedAt,
	}
	if inv.StageID != nil {
		id := inv.StageID.String()
		dto.StageID = &id
	}
	return dto
}
