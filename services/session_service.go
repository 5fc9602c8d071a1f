package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"audit-dashboard/client"
	"audit-dashboard/models"
)

// View identifies the session's current screen.
type View string

const (
	ViewSelection  View = "SELECTION"
	ViewSummary    View = "SUMMARY"
	ViewDetail     View = "DETAIL"
	ViewGeneration View = "GENERATION"
)

// AuditAPI is the upstream surface the session depends on, implemented by
// client.Client.
type AuditAPI interface {
	RunDayAudit(ctx context.Context, day, month, year int) ([]models.AuditRecord, error)
	ImportConsignments(ctx context.Context, year, month int, codes []string) (*models.OpResult, error)
	QueueStatus(ctx context.Context) (*models.RpaQueueStatus, error)
	GenerateReports(ctx context.Context, month, year int, rows []models.ReportRow) (*models.OpResult, error)
	ApplyCorrections(ctx context.Context, empresaCodigo, month, year int, matriculas []string) (*models.CorrectionsResult, error)
}

// RunRecorder persists completed audit runs. Nil disables recording.
type RunRecorder interface {
	RecordRun(ctx context.Context, day, month, year, records, companies, divergences int) error
}

// Broadcaster pushes session events to connected clients. Nil disables it.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

// ErrConfirmationRequired is returned when a correction request arrives
// without the explicit user acknowledgment. The request is never sent
// upstream in that case.
var ErrConfirmationRequired = fmt.Errorf("aplicação de correções exige confirmação explícita")

const (
	msgConnectionFailure = "Falha na comunicação com a API."
	msgQueueFetchFailure = "Erro de rede ao buscar status do RPA."
	msgQueueDrained      = "Processamento da fila concluído! Atualizando auditoria..."
)

// Session owns one audit flow: the record collection, the derived
// summaries, the manual approvals, the transient messages and the RPA queue
// poller. All other components receive read-only views and return derived
// values; only the session mutates this state.
type Session struct {
	api       AuditAPI
	history   RunRecorder
	hub       Broadcaster
	dismissIn time.Duration

	poller *Poller

	mu              sync.Mutex
	id              uuid.UUID
	view            View
	records         []models.AuditRecord
	summaries       *SummarySet
	approvals       map[string]bool
	selectedCompany string
	day             int
	month           int
	year            int
	loading         bool
	loadingMessage  string
	errorMessage    string
	successMessage  string
	runSeq          uint64
	successGen      uint64
}

// NewSession creates a session in the SELECTION state. pollInterval is the
// RPA queue poll period; history and hub may be nil.
func NewSession(api AuditAPI, pollInterval time.Duration, history RunRecorder, hub Broadcaster, successDismissAfter time.Duration) *Session {
	s := &Session{
		api:       api,
		history:   history,
		hub:       hub,
		dismissIn: successDismissAfter,
		id:        uuid.New(),
		view:      ViewSelection,
		summaries: NewSummarySet(),
		approvals: make(map[string]bool),
	}

	s.poller = NewPoller(pollInterval, api.QueueStatus, PollerCallbacks{
		OnStatus: func(status models.RpaQueueStatus) {
			s.broadcast("rpa_status", status)
		},
		OnProcessingFinished: s.onQueueDrained,
		OnError: func(err error) {
			s.mu.Lock()
			s.errorMessage = msgQueueFetchFailure
			s.mu.Unlock()
		},
	})

	return s
}

// Poller exposes the queue poller handle.
func (s *Session) Poller() *Poller { return s.poller }

// RunDayAudit issues the batch audit for one payment day and, on success,
// replaces the record collection wholesale and moves to the SUMMARY view.
// This is also the refresh primitive the poller calls when the queue
// drains. Responses belonging to a superseded run or a reset session are
// discarded without touching state.
func (s *Session) RunDayAudit(ctx context.Context, day, month, year int) error {
	return s.runAudit(ctx, day, month, year, true)
}

// runAudit is the shared run primitive. startPoller is false when the call
// originates from the poller's own goroutine, where the poller is already
// running and restarting it would race a concurrent Stop.
func (s *Session) runAudit(ctx context.Context, day, month, year int, startPoller bool) error {
	s.mu.Lock()
	s.runSeq++
	token := s.runSeq
	sessionID := s.id
	s.loading = true
	s.loadingMessage = "Auditando todas as empresas..."
	s.errorMessage = ""
	s.mu.Unlock()

	records, err := s.api.RunDayAudit(ctx, day, month, year)

	s.mu.Lock()
	if s.id != sessionID || s.runSeq != token {
		// A newer run or a reset superseded this response.
		s.mu.Unlock()
		log.Warnf("discarding stale audit response (day=%d %02d/%d)", day, month, year)
		return nil
	}

	s.loading = false
	s.loadingMessage = ""
	if err != nil {
		s.errorMessage = userMessage(err)
		s.mu.Unlock()
		return err
	}

	for i := range records {
		records[i].Class = models.Classify(records[i].Analise)
	}
	s.records = records
	s.summaries = Aggregate(records, s.approvals)
	s.day, s.month, s.year = day, month, year
	s.view = ViewSummary
	summaryCount := s.summaries.Len()
	divergences := 0
	for _, c := range s.summaries.Companies() {
		divergences += c.Divergencia
	}
	s.mu.Unlock()

	log.Infof("audit run complete: day=%d period=%02d/%d records=%d companies=%d",
		day, month, year, len(records), summaryCount)

	if startPoller {
		s.poller.Start()
	}
	s.broadcast("audit_refreshed", map[string]int{"records": len(records), "companies": summaryCount})

	if s.history != nil {
		if herr := s.history.RecordRun(ctx, day, month, year, len(records), summaryCount, divergences); herr != nil {
			log.Warnf("failed to record audit run: %v", herr)
		}
	}

	return nil
}

// ImportConsignments enqueues consigned-loan import jobs for the given
// company codes, or for all pending companies when codes is nil. It does
// not refresh data itself: the poller detects completion and triggers the
// refresh.
func (s *Session) ImportConsignments(ctx context.Context, codes []string) error {
	s.mu.Lock()
	year, month := s.year, s.month
	s.errorMessage = ""
	s.successMessage = ""
	s.mu.Unlock()

	result, err := s.api.ImportConsignments(ctx, year, month, codes)
	if err != nil {
		s.setError(userMessage(err))
		return err
	}
	if result.Status != "success" && result.Status != "queued" {
		msg := result.Message
		if msg == "" {
			msg = "Falha ao enfileirar jobs."
		}
		s.setError(msg)
		return fmt.Errorf("import rejected: %s", result.Status)
	}

	msg := result.Message
	if msg == "" {
		msg = "Jobs de importação enfileirados!"
	}
	s.setSuccess(msg)
	s.poller.MarkQueued(len(codes))
	return nil
}

// GenerateReports posts the identity fields of the current records for the
// selected period. Local state is unchanged besides the outcome message.
func (s *Session) GenerateReports(ctx context.Context) error {
	s.mu.Lock()
	year, month := s.year, s.month
	rows := make([]models.ReportRow, 0, len(s.records))
	for _, rec := range s.records {
		rows = append(rows, models.ReportRow{
			Matricula:     rec.Matricula,
			Nome:          rec.Nome,
			EmpresaCodigo: rec.EmpresaCodigo,
			EmpresaNome:   rec.EmpresaNome,
		})
	}
	s.loading = true
	s.loadingMessage = "Acionando RPA para gerar relatórios..."
	s.errorMessage = ""
	s.successMessage = ""
	s.mu.Unlock()

	result, err := s.api.GenerateReports(ctx, month, year, rows)

	s.mu.Lock()
	s.loading = false
	s.loadingMessage = ""
	s.mu.Unlock()

	if err != nil {
		s.setError(userMessage(err))
		return err
	}
	if result.Status != "success" {
		msg := result.Message
		if msg == "" {
			msg = "Falha ao acionar RPA de geração."
		}
		s.setError(msg)
		return fmt.Errorf("report generation rejected: %s", result.Status)
	}

	msg := result.Message
	if msg == "" {
		msg = "Geração de relatórios iniciada."
	}
	s.setSuccess(msg)
	return nil
}

// ApplyCorrections writes manual corrections to the external payroll
// system. The write is irreversible, so it is gated on explicit user
// confirmation: unconfirmed calls are rejected before any request is sent.
// A successful application triggers a fresh audit run.
func (s *Session) ApplyCorrections(ctx context.Context, empresaCodigo int, matriculas []string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if len(matriculas) == 0 {
		return fmt.Errorf("nenhuma matrícula selecionada")
	}

	s.mu.Lock()
	day, month, year := s.day, s.month, s.year
	s.mu.Unlock()

	result, err := s.api.ApplyCorrections(ctx, empresaCodigo, month, year, matriculas)
	if err != nil {
		s.setError(userMessage(err))
		return err
	}

	s.setSuccess(fmt.Sprintf("%d correção(ões) aplicada(s). %s", result.CorrecoesAplicadas, result.Message))
	return s.RunDayAudit(ctx, day, month, year)
}

// SelectCompany moves to the DETAIL view for one company. Polling stops
// while the summary view is not active.
func (s *Session) SelectCompany(code string) error {
	s.mu.Lock()
	if s.view != ViewSummary {
		s.mu.Unlock()
		return fmt.Errorf("company selection requires the summary view")
	}
	if s.summaries.Get(code) == nil {
		s.mu.Unlock()
		return fmt.Errorf("empresa %q não encontrada na auditoria atual", code)
	}
	s.selectedCompany = code
	s.view = ViewDetail
	s.mu.Unlock()

	s.poller.Stop()
	return nil
}

// EnterGeneration branches from SUMMARY to the report generation view.
func (s *Session) EnterGeneration() error {
	s.mu.Lock()
	if s.view != ViewSummary {
		s.mu.Unlock()
		return fmt.Errorf("report generation requires the summary view")
	}
	s.view = ViewGeneration
	s.mu.Unlock()

	s.poller.Stop()
	return nil
}

// Back returns from DETAIL or GENERATION to SUMMARY and resumes polling.
func (s *Session) Back() {
	s.mu.Lock()
	if s.view != ViewDetail && s.view != ViewGeneration {
		s.mu.Unlock()
		return
	}
	s.view = ViewSummary
	s.selectedCompany = ""
	s.mu.Unlock()

	s.poller.Start()
}

// ResetFlow returns to SELECTION from any state, clearing the record
// collection, selections, approvals and messages. The session identity
// rotates so responses still in flight for the old session are discarded.
func (s *Session) ResetFlow() {
	s.mu.Lock()
	s.id = uuid.New()
	s.view = ViewSelection
	s.records = nil
	s.summaries = NewSummarySet()
	s.approvals = make(map[string]bool)
	s.selectedCompany = ""
	s.loading = false
	s.loadingMessage = ""
	s.errorMessage = ""
	s.successMessage = ""
	s.mu.Unlock()

	s.poller.Stop()
	log.Info("session reset to selection")
}

// ToggleApproval flips the manual "approved" override for a company and
// recomputes the summaries. Overrides are session-local and lost on reset.
func (s *Session) ToggleApproval(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.approvals[code] = !s.approvals[code]
	approved := s.approvals[code]
	s.summaries = Aggregate(s.records, s.approvals)
	return approved
}

// CurrentView returns the session's view state.
func (s *Session) CurrentView() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SelectedCompany returns the code of the company open in the detail view,
// or the empty string.
func (s *Session) SelectedCompany() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedCompany
}

// Period returns the audited period (day, month, year).
func (s *Session) Period() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day, s.month, s.year
}

// Summaries returns the current per-company aggregates in stable order.
func (s *Session) Summaries() []*models.CompanySummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaries.Companies()
}

// PendingImports counts companies whose consignment import is outstanding.
func (s *Session) PendingImports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaries.PendingImports()
}

// CompanyDetail returns one company's filtered rows together with its
// local metrics. The metrics cover the whole company, not the filtered
// subset, matching the detail view's stat cards.
func (s *Session) CompanyDetail(code string, filter models.ClassFilter, search string) ([]models.AuditRecord, CompanyMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.summaries.Get(code) == nil {
		return nil, CompanyMetrics{}, fmt.Errorf("empresa %q não encontrada na auditoria atual", code)
	}
	companyRecords := RecordsForCompany(s.records, code)
	return FilterRecords(companyRecords, filter, search), CompanyDetailMetrics(companyRecords), nil
}

// CompanyCompliance returns one company's rows selected by compliance
// bucket instead of classification filter.
func (s *Session) CompanyCompliance(code string, filter models.ComplianceFilter, search string) ([]models.AuditRecord, CompanyMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.summaries.Get(code) == nil {
		return nil, CompanyMetrics{}, fmt.Errorf("empresa %q não encontrada na auditoria atual", code)
	}
	companyRecords := RecordsForCompany(s.records, code)
	return FilterByCompliance(companyRecords, filter, search), CompanyDetailMetrics(companyRecords), nil
}

// CompanyName resolves a company code to its display name.
func (s *Session) CompanyName(code string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.summaries.Get(code); c != nil {
		return c.Nome
	}
	return ""
}

// Messages returns the transient UI state: loading flag and message, the
// persistent error and the auto-dismissing success message.
func (s *Session) Messages() (bool, string, string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading, s.loadingMessage, s.errorMessage, s.successMessage
}

// ClearError dismisses the error message. Errors never auto-dismiss; the
// operator has to acknowledge them.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.errorMessage = ""
	s.mu.Unlock()
}

// RecordCount returns the size of the current record collection.
func (s *Session) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Session) onQueueDrained() {
	s.mu.Lock()
	day, month, year := s.day, s.month, s.year
	s.mu.Unlock()

	s.setSuccess(msgQueueDrained)
	s.broadcast("rpa_finished", nil)

	if err := s.runAudit(context.Background(), day, month, year, false); err != nil {
		log.Errorf("audit refresh after queue drain failed: %v", err)
	}
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	s.errorMessage = msg
	s.loading = false
	s.loadingMessage = ""
	s.mu.Unlock()
}

// setSuccess stores a success toast and schedules its auto-dismissal. A
// newer toast supersedes the pending timer.
func (s *Session) setSuccess(msg string) {
	s.mu.Lock()
	s.successMessage = msg
	s.successGen++
	gen := s.successGen
	s.mu.Unlock()

	if s.dismissIn <= 0 {
		return
	}
	time.AfterFunc(s.dismissIn, func() {
		s.mu.Lock()
		if s.successGen == gen {
			s.successMessage = ""
		}
		s.mu.Unlock()
	})
}

func (s *Session) broadcast(event string, payload interface{}) {
	if s.hub != nil {
		s.hub.Broadcast(event, payload)
	}
}

// userMessage maps an error to the operator-facing text: server-reported
// detail wins over the generic connectivity message.
func userMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return msgConnectionFailure
}
