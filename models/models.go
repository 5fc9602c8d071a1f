package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuditRecord is one employee's audit result for a period, as returned by
// the upstream audit API. Records are immutable once received and are
// replaced wholesale by the next audit run.
type AuditRecord struct {
	Matricula   string `json:"matricula"`
	Nome        string `json:"nome"`
	Cargo       string `json:"cargo,omitempty"`
	Analise     string `json:"analise"`
	Status      string `json:"status,omitempty"`
	Observacoes string `json:"observacoes,omitempty"`

	ValorBruto         decimal.Decimal `json:"valorBruto"`
	ValorBrutoAuditado decimal.Decimal `json:"valorBrutoAuditado"`
	ValorFinal         decimal.Decimal `json:"valorFinal"`
	Desconto           decimal.Decimal `json:"desconto"`
	// Actual payroll-system value; the upstream serializes this one with a
	// capitalized key.
	ValorRealFortes decimal.Decimal `json:"ValorRealFortes"`

	EmpresaCode   string `json:"empresaCode"`
	EmpresaCodigo int    `json:"empresaCodigo"`
	EmpresaNome   string `json:"empresaNome"`

	ConsignadoImportado bool    `json:"consignadoImportado"`
	UltimaImportacao    *string `json:"ultimaImportacao"`

	// Computed at ingestion from Analise, not serialized.
	Class ClassSet `json:"-"`
}

// CompanySummary is the per-company aggregate derived from an AuditRecord
// set. It is recomputed in full whenever the record collection changes.
// Classification counters are non-exclusive, so they need not sum to Total.
type CompanySummary struct {
	Nome  string `json:"nome"`
	Code  string `json:"code"`
	Total int    `json:"total"`

	Divergencia int `json:"divergencia"`
	Removido    int `json:"removido"`
	Grave       int `json:"grave"`
	Corrigido   int `json:"corrigido"`

	// Compliance counters; suppressed for manually approved companies.
	Pending int `json:"pending"`
	Warning int `json:"warning"`

	TotalReal  decimal.Decimal `json:"totalReal"`
	TotalAudit decimal.Decimal `json:"totalAudit"`
	TotalDesc  decimal.Decimal `json:"totalDesc"`

	IsApproved bool    `json:"isApproved"`
	IsImported bool    `json:"isImported"`
	LastImport *string `json:"lastImport"`
}

// RpaQueueError is one failed job entry in the RPA queue.
type RpaQueueError struct {
	ID            int     `json:"id"`
	EmpresaCodigo string  `json:"empresa_codigo"`
	Competencia   string  `json:"competencia"`
	ErrorMessage  string  `json:"error_message"`
	UpdatedAt     *string `json:"updated_at"`
}

// RpaQueueStatus is the snapshot polled from the external job queue. Each
// fetch fully replaces the previous snapshot; there is no merging.
type RpaQueueStatus struct {
	Pending    int             `json:"pending"`
	Processing int             `json:"processing"`
	Completed  int             `json:"completed"`
	Errors     []RpaQueueError `json:"errors"`
}

// IsProcessing reports whether the queue still has work in flight.
func (s RpaQueueStatus) IsProcessing() bool {
	return s.Pending > 0 || s.Processing > 0
}

// Company is one entry of the company lookup used by the selection view.
type Company struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// OpResult is the generic status/message envelope returned by the RPA
// trigger endpoints.
type OpResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CorrectionsResult is returned by the corrections endpoint.
type CorrectionsResult struct {
	CorrecoesAplicadas int    `json:"correcoes_aplicadas"`
	Message            string `json:"message"`
}

// ReportRow carries the identity fields posted for report generation.
type ReportRow struct {
	Matricula     string `json:"matricula"`
	Nome          string `json:"nome"`
	EmpresaCodigo int    `json:"empresaCodigo"`
	EmpresaNome   string `json:"empresaNome"`
}

// FopagItem is one audited payroll event in the monthly (FOPAG) audit.
type FopagItem struct {
	Evento    string          `json:"evento"`
	Base      decimal.Decimal `json:"base"`
	Esperado  decimal.Decimal `json:"esperado"`
	Real      decimal.Decimal `json:"real"`
	Status    string          `json:"status"`
	Diferenca decimal.Decimal `json:"diferenca"`
	Formula   string          `json:"formula,omitempty"`
}

// EmployeeDivergenceReport is one employee's event-by-event FOPAG result.
type EmployeeDivergenceReport struct {
	Matricula      string      `json:"matricula"`
	Nome           string      `json:"nome"`
	TemDivergencia bool        `json:"tem_divergencia"`
	Itens          []FopagItem `json:"itens"`
}

// FopagMetadata summarizes a FOPAG audit run.
type FopagMetadata struct {
	TotalFuncionarios int `json:"total_funcionarios"`
	TotalDivergencias int `json:"total_divergencias"`
}

// FopagReport is the full response of the monthly payroll audit.
type FopagReport struct {
	Metadata     FopagMetadata              `json:"metadata"`
	Divergencias []EmployeeDivergenceReport `json:"divergencias"`
}

// FopagAuditRequest selects one company and period for the monthly audit.
type FopagAuditRequest struct {
	EmpresaID   string `json:"empresa_id"`
	Month       int    `json:"month"`
	Year        int    `json:"year"`
	PensionRule string `json:"pension_rule"`
}

// AuditRun is one persisted entry of the audit run history.
type AuditRun struct {
	ID          int       `json:"id"`
	Day         int       `json:"day"`
	Month       int       `json:"month"`
	Year        int       `json:"year"`
	Records     int       `json:"records"`
	Companies   int       `json:"companies"`
	Divergences int       `json:"divergences"`
	CreatedAt   time.Time `json:"created_at"`
}

// BroadcastEvent is the envelope pushed to websocket subscribers.
type BroadcastEvent struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
