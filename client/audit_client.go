package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"audit-dashboard/models"
)

// APIError is a non-2xx response from the upstream audit/RPA API. The
// upstream reports business errors in a JSON body with "detail" and/or
// "message"; detail takes precedence when both are present.
type APIError struct {
	StatusCode int
	Detail     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("audit api returned status %d", e.StatusCode)
}

// Client is the JSON client for the upstream payroll-audit and RPA API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates an audit API client. baseURL is the upstream root, with or
// without a trailing slash.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type dayAuditRequest struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

// RunDayAudit runs the batch advance audit for a payment day across all
// companies and returns the flat record collection.
func (c *Client) RunDayAudit(ctx context.Context, day, month, year int) ([]models.AuditRecord, error) {
	var records []models.AuditRecord
	err := c.post(ctx, "/audit/day", dayAuditRequest{Day: day, Month: month, Year: year}, &records)
	if err != nil {
		return nil, err
	}
	return records, nil
}

type importRequest struct {
	Year         int       `json:"year"`
	Month        int       `json:"month"`
	CompanyCodes *[]string `json:"company_codes"`
}

// ImportConsignments enqueues consigned-loan import jobs. codes nil means
// "all pending companies"; the upstream distinguishes null from an empty
// list, so nil is serialized as JSON null.
func (c *Client) ImportConsignments(ctx context.Context, year, month int, codes []string) (*models.OpResult, error) {
	req := importRequest{Year: year, Month: month}
	if codes != nil {
		req.CompanyCodes = &codes
	}
	var result models.OpResult
	if err := c.post(ctx, "/rpa/import-consignments", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// QueueStatus polls the RPA job queue.
func (c *Client) QueueStatus(ctx context.Context) (*models.RpaQueueStatus, error) {
	var status models.RpaQueueStatus
	if err := c.get(ctx, "/rpa/status", &status); err != nil {
		return nil, err
	}
	if status.Errors == nil {
		status.Errors = []models.RpaQueueError{}
	}
	return &status, nil
}

type reportGenerationRequest struct {
	Month int                `json:"month"`
	Year  int                `json:"year"`
	Data  []models.ReportRow `json:"data"`
}

// GenerateReports triggers report generation for the given rows.
func (c *Client) GenerateReports(ctx context.Context, month, year int, rows []models.ReportRow) (*models.OpResult, error) {
	var result models.OpResult
	err := c.post(ctx, "/reports/generate", reportGenerationRequest{Month: month, Year: year, Data: rows}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type correctionsRequest struct {
	EmpresaCodigo      int      `json:"empresaCodigo"`
	Month              int      `json:"month"`
	Year               int      `json:"year"`
	SelectedMatriculas []string `json:"selectedMatriculas"`
	AutoRecalc         bool     `json:"auto_recalc"`
}

// ApplyCorrections posts manual corrections for the selected employees and
// asks the payroll system to recalculate. This writes to the external
// payroll database; the session layer gates it behind user confirmation.
func (c *Client) ApplyCorrections(ctx context.Context, empresaCodigo, month, year int, matriculas []string) (*models.CorrectionsResult, error) {
	req := correctionsRequest{
		EmpresaCodigo:      empresaCodigo,
		Month:              month,
		Year:               year,
		SelectedMatriculas: matriculas,
		AutoRecalc:         true,
	}
	var result models.CorrectionsResult
	if err := c.post(ctx, "/corrections/apply", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunFopagAudit runs the monthly payroll audit for one company.
func (c *Client) RunFopagAudit(ctx context.Context, req models.FopagAuditRequest) (*models.FopagReport, error) {
	var report models.FopagReport
	if err := c.post(ctx, "/audit/fopag/audit/database", req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// CompaniesGrouped fetches the company catalog grouped by payment day.
func (c *Client) CompaniesGrouped(ctx context.Context) (map[string][]models.Company, error) {
	var grouped map[string][]models.Company
	if err := c.get(ctx, "/companies/grouped", &grouped); err != nil {
		return nil, err
	}
	return grouped, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("audit api request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var body struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Detail = body.Detail
		apiErr.Message = body.Message
	}
	return apiErr
}
