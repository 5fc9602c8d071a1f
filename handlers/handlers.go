package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"audit-dashboard/client"
	"audit-dashboard/database"
	"audit-dashboard/models"
	"audit-dashboard/services"
)

// AuditHandler handles HTTP requests for the audit dashboard endpoints.
type AuditHandler struct {
	session *services.Session
	api     *client.Client
	db      *database.Database
}

// NewAuditHandler creates a new audit handler. db may be nil when history
// persistence is disabled.
func NewAuditHandler(session *services.Session, api *client.Client, db *database.Database) *AuditHandler {
	return &AuditHandler{
		session: session,
		api:     api,
		db:      db,
	}
}

// HealthHandler handles health check requests.
func (h *AuditHandler) HealthHandler(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "healthy",
		"message": "Audit dashboard service is running",
		"service": "audit-dashboard",
		"view":    h.session.CurrentView(),
	})
}

// CompaniesGroupedHandler proxies the grouped company catalog used by the
// selection screen.
func (h *AuditHandler) CompaniesGroupedHandler(c *gin.Context) {
	groups, err := h.api.CompaniesGrouped(c.Request.Context())
	if err != nil {
		log.Errorf("failed to fetch grouped companies: %v", err)
		respondUpstreamError(c, err)
		return
	}
	c.JSON(200, groups)
}

type dayAuditRequest struct {
	Day   int `json:"day" binding:"required"`
	Month int `json:"month" binding:"required"`
	Year  int `json:"year" binding:"required"`
}

// RunDayAuditHandler starts a batch audit for one payment day.
func (h *AuditHandler) RunDayAuditHandler(c *gin.Context) {
	var req dayAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "day, month and year are required"})
		return
	}
	if req.Day < 1 || req.Day > 31 || req.Month < 1 || req.Month > 12 {
		c.JSON(400, gin.H{"error": "invalid period"})
		return
	}

	if err := h.session.RunDayAudit(c.Request.Context(), req.Day, req.Month, req.Year); err != nil {
		log.Errorf("day audit failed: %v", err)
		respondUpstreamError(c, err)
		return
	}

	c.JSON(200, gin.H{
		"view":      h.session.CurrentView(),
		"summaries": h.session.Summaries(),
		"records":   h.session.RecordCount(),
	})
}

// SummaryHandler returns the current summaries together with the session
// view, transient messages and the last known queue status.
func (h *AuditHandler) SummaryHandler(c *gin.Context) {
	loading, loadingMsg, errMsg, successMsg := h.session.Messages()
	day, month, year := h.session.Period()

	c.JSON(200, gin.H{
		"view":            h.session.CurrentView(),
		"day":             day,
		"month":           month,
		"year":            year,
		"summaries":       h.session.Summaries(),
		"selected":        h.session.SelectedCompany(),
		"pending_imports": h.session.PendingImports(),
		"queue":           h.session.Poller().Status(),
		"loading":         loading,
		"loading_message": loadingMsg,
		"error":           errMsg,
		"success":         successMsg,
	})
}

// CompanyDetailHandler selects a company and returns its filtered rows.
func (h *AuditHandler) CompanyDetailHandler(c *gin.Context) {
	code := c.Param("code")
	filter := models.ClassFilter(c.DefaultQuery("filter", string(models.FilterAll)))
	search := c.Query("search")

	if h.session.CurrentView() == services.ViewSummary {
		if err := h.session.SelectCompany(code); err != nil {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
	}

	var (
		rows    []models.AuditRecord
		metrics services.CompanyMetrics
		err     error
	)
	if compliance := c.Query("compliance"); compliance != "" {
		rows, metrics, err = h.session.CompanyCompliance(code, models.ComplianceFilter(compliance), search)
	} else {
		rows, metrics, err = h.session.CompanyDetail(code, filter, search)
	}
	if err != nil {
		c.JSON(404, gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, gin.H{
		"view":    h.session.CurrentView(),
		"company": h.session.CompanyName(code),
		"code":    code,
		"rows":    rows,
		"count":   len(rows),
		"metrics": metrics,
	})
}

// ToggleApprovalHandler flips the manual approval flag for a company.
func (h *AuditHandler) ToggleApprovalHandler(c *gin.Context) {
	code := c.Param("code")
	if h.session.CompanyName(code) == "" {
		c.JSON(404, gin.H{"error": fmt.Sprintf("empresa %q não encontrada na auditoria atual", code)})
		return
	}

	approved := h.session.ToggleApproval(code)
	c.JSON(200, gin.H{"code": code, "is_approved": approved})
}

// ExportCompanyHandler streams one company's audit rows as an XLSX file.
func (h *AuditHandler) ExportCompanyHandler(c *gin.Context) {
	code := c.Param("code")
	filter := models.ClassFilter(c.DefaultQuery("filter", string(models.FilterAll)))
	search := c.Query("search")

	rows, _, err := h.session.CompanyDetail(code, filter, search)
	if err != nil {
		c.JSON(404, gin.H{"error": err.Error()})
		return
	}

	data, err := services.ExportCompanyDetail(h.session.CompanyName(code), rows)
	if err != nil {
		log.Errorf("failed to export company %s: %v", code, err)
		c.JSON(500, gin.H{"error": "Internal server error"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=auditoria_%s.xlsx", code))
	c.Data(200, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// ExportSummaryHandler streams the per-company summary table as an XLSX
// file.
func (h *AuditHandler) ExportSummaryHandler(c *gin.Context) {
	summaries := h.session.Summaries()
	if len(summaries) == 0 {
		c.JSON(409, gin.H{"error": "nenhuma auditoria carregada"})
		return
	}

	data, err := services.ExportSummary(summaries)
	if err != nil {
		log.Errorf("failed to export summary: %v", err)
		c.JSON(500, gin.H{"error": "Internal server error"})
		return
	}

	c.Header("Content-Disposition", "attachment; filename=auditoria_resumo.xlsx")
	c.Data(200, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

type importRequest struct {
	CompanyCodes []string `json:"company_codes"`
}

// ImportConsignmentsHandler enqueues consignment import jobs. A null or
// absent company_codes list means all pending companies.
func (h *AuditHandler) ImportConsignmentsHandler(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.session.ImportConsignments(c.Request.Context(), req.CompanyCodes); err != nil {
		log.Errorf("consignment import failed: %v", err)
		respondUpstreamError(c, err)
		return
	}

	_, _, _, successMsg := h.session.Messages()
	c.JSON(200, gin.H{"status": "queued", "message": successMsg})
}

// QueueStatusHandler returns the last known RPA queue status.
func (h *AuditHandler) QueueStatusHandler(c *gin.Context) {
	c.JSON(200, gin.H{
		"watching": h.session.Poller().Watching(),
		"queue":    h.session.Poller().Status(),
	})
}

// DismissQueueErrorsHandler clears the accumulated queue error list.
func (h *AuditHandler) DismissQueueErrorsHandler(c *gin.Context) {
	h.session.Poller().DismissErrors()
	c.JSON(200, gin.H{"status": "ok"})
}

// GenerateReportsHandler triggers report generation for the current records.
func (h *AuditHandler) GenerateReportsHandler(c *gin.Context) {
	if err := h.session.GenerateReports(c.Request.Context()); err != nil {
		log.Errorf("report generation failed: %v", err)
		respondUpstreamError(c, err)
		return
	}

	_, _, _, successMsg := h.session.Messages()
	c.JSON(200, gin.H{"status": "success", "message": successMsg})
}

type correctionsRequest struct {
	EmpresaCodigo int      `json:"empresa_codigo" binding:"required"`
	Matriculas    []string `json:"matriculas" binding:"required"`
	Confirm       bool     `json:"confirm"`
}

// ApplyCorrectionsHandler writes manual corrections upstream. The confirm
// flag must be set; unconfirmed requests are rejected locally.
func (h *AuditHandler) ApplyCorrectionsHandler(c *gin.Context) {
	var req correctionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "empresa_codigo and matriculas are required"})
		return
	}

	err := h.session.ApplyCorrections(c.Request.Context(), req.EmpresaCodigo, req.Matriculas, req.Confirm)
	if err != nil {
		if errors.Is(err, services.ErrConfirmationRequired) {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("corrections failed for company %d: %v", req.EmpresaCodigo, err)
		respondUpstreamError(c, err)
		return
	}

	_, _, _, successMsg := h.session.Messages()
	c.JSON(200, gin.H{"status": "success", "message": successMsg})
}

// FopagAuditHandler runs the monthly payroll audit for one company and
// annotates the upstream report with tallies.
func (h *AuditHandler) FopagAuditHandler(c *gin.Context) {
	var req models.FopagAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.EmpresaID == "" {
		c.JSON(400, gin.H{"error": "empresa_id, month and year are required"})
		return
	}

	report, err := h.api.RunFopagAudit(c.Request.Context(), req)
	if err != nil {
		log.Errorf("fopag audit failed for company %s: %v", req.EmpresaID, err)
		respondUpstreamError(c, err)
		return
	}

	withIssues := 0
	for _, emp := range report.Divergencias {
		if emp.TemDivergencia {
			withIssues++
		}
	}

	c.JSON(200, gin.H{
		"report":               report,
		"employees_with_issue": withIssues,
	})
}

// ResetSessionHandler returns the session to the selection screen.
func (h *AuditHandler) ResetSessionHandler(c *gin.Context) {
	h.session.ResetFlow()
	c.JSON(200, gin.H{"view": h.session.CurrentView()})
}

// BackHandler returns from the detail or generation view to the summary.
func (h *AuditHandler) BackHandler(c *gin.Context) {
	h.session.Back()
	c.JSON(200, gin.H{"view": h.session.CurrentView()})
}

// EnterGenerationHandler branches from the summary to the generation view.
func (h *AuditHandler) EnterGenerationHandler(c *gin.Context) {
	if err := h.session.EnterGeneration(); err != nil {
		c.JSON(409, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"view": h.session.CurrentView()})
}

// ClearErrorHandler dismisses the persistent error message.
func (h *AuditHandler) ClearErrorHandler(c *gin.Context) {
	h.session.ClearError()
	c.JSON(200, gin.H{"status": "ok"})
}

// RunHistoryHandler lists persisted audit runs, newest first.
func (h *AuditHandler) RunHistoryHandler(c *gin.Context) {
	if h.db == nil {
		c.JSON(200, gin.H{"runs": []models.AuditRun{}, "persistence": false})
		return
	}

	runs, err := h.db.ListRuns(c.Request.Context(), 50)
	if err != nil {
		log.Errorf("failed to list audit runs: %v", err)
		c.JSON(500, gin.H{"error": "Internal server error"})
		return
	}
	if runs == nil {
		runs = []models.AuditRun{}
	}
	c.JSON(200, gin.H{"runs": runs, "persistence": true})
}

// respondUpstreamError maps a client error to the HTTP response: upstream
// API errors keep their status and detail, everything else is a 502.
func respondUpstreamError(c *gin.Context, err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": apiErr.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "Falha na comunicação com a API."})
}
