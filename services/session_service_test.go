package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audit-dashboard/models"
)

// fakeAuditAPI is an in-memory upstream for session tests.
type fakeAuditAPI struct {
	mu sync.Mutex

	records []models.AuditRecord
	runErr  error
	// runGate, when non-nil, blocks RunDayAudit until closed.
	runGate  chan struct{}
	runCalls int

	importResult *models.OpResult
	importErr    error

	generateResult *models.OpResult

	corrections      *models.CorrectionsResult
	correctionsCalls int

	queue      models.RpaQueueStatus
	queueCalls int
}

func (f *fakeAuditAPI) RunDayAudit(ctx context.Context, day, month, year int) ([]models.AuditRecord, error) {
	f.mu.Lock()
	f.runCalls++
	gate := f.runGate
	records := f.records
	err := f.runErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	out := make([]models.AuditRecord, len(records))
	copy(out, records)
	return out, nil
}

func (f *fakeAuditAPI) ImportConsignments(ctx context.Context, year, month int, codes []string) (*models.OpResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.importErr != nil {
		return nil, f.importErr
	}
	if f.importResult != nil {
		return f.importResult, nil
	}
	return &models.OpResult{Status: "queued", Message: "Jobs enfileirados"}, nil
}

func (f *fakeAuditAPI) QueueStatus(ctx context.Context) (*models.RpaQueueStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queueCalls++
	status := f.queue
	return &status, nil
}

func (f *fakeAuditAPI) GenerateReports(ctx context.Context, month, year int, rows []models.ReportRow) (*models.OpResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generateResult != nil {
		return f.generateResult, nil
	}
	return &models.OpResult{Status: "success", Message: "Geração iniciada"}, nil
}

func (f *fakeAuditAPI) ApplyCorrections(ctx context.Context, empresaCodigo, month, year int, matriculas []string) (*models.CorrectionsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.correctionsCalls++
	if f.corrections != nil {
		return f.corrections, nil
	}
	return &models.CorrectionsResult{CorrecoesAplicadas: len(matriculas), Message: "ok"}, nil
}

func sessionFixtureRecords() []models.AuditRecord {
	return []models.AuditRecord{
		makeRecord("001", "Alfa SA", "100", "Maria Silva", "OK", "10.00", "10.00", "0"),
		makeRecord("001", "Alfa SA", "101", "João Souza", "Divergência de valores", "20.00", "18.00", "2.00"),
		makeRecord("002", "Beta Ltda", "200", "Carlos Nunes", "Removido pelas regras", "0", "0", "0"),
	}
}

func newTestSession(api *fakeAuditAPI) *Session {
	return NewSession(api, time.Hour, nil, nil, 0)
}

func TestSession_RunDayAuditMovesToSummary(t *testing.T) {
	api := &fakeAuditAPI{records: sessionFixtureRecords()}
	s := newTestSession(api)
	defer s.Poller().Stop()

	assert.Equal(t, ViewSelection, s.CurrentView())

	err := s.RunDayAudit(context.Background(), 15, 3, 2025)
	require.NoError(t, err)

	assert.Equal(t, ViewSummary, s.CurrentView())
	assert.True(t, s.Poller().Watching())

	day, month, year := s.Period()
	assert.Equal(t, 15, day)
	assert.Equal(t, 3, month)
	assert.Equal(t, 2025, year)

	summaries := s.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, "001", summaries[0].Code)
	assert.Equal(t, 2, summaries[0].Total)
	assert.Equal(t, 1, summaries[0].Divergencia)
	assert.Equal(t, "002", summaries[1].Code)
	assert.Equal(t, 1, summaries[1].Removido)
}

func TestSession_RunDayAuditFailureKeepsView(t *testing.T) {
	api := &fakeAuditAPI{runErr: fmt.Errorf("connection refused")}
	s := newTestSession(api)

	err := s.RunDayAudit(context.Background(), 15, 3, 2025)
	require.Error(t, err)

	assert.Equal(t, ViewSelection, s.CurrentView())
	assert.False(t, s.Poller().Watching())

	loading, _, errMsg, _ := s.Messages()
	assert.False(t, loading)
	assert.Equal(t, "Falha na comunicação com a API.", errMsg)
}

func TestSession_ResetDiscardsInFlightResponse(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeAuditAPI{records: sessionFixtureRecords(), runGate: gate}
	s := newTestSession(api)

	done := make(chan error, 1)
	go func() {
		done <- s.RunDayAudit(context.Background(), 15, 3, 2025)
	}()

	// Wait until the request is in flight, then reset the session.
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.runCalls == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.ResetFlow()
	close(gate)
	require.NoError(t, <-done)

	// The stale response must not resurrect the summary view.
	assert.Equal(t, ViewSelection, s.CurrentView())
	assert.Empty(t, s.Summaries())
	assert.False(t, s.Poller().Watching())
}

func TestSession_DetailNavigation(t *testing.T) {
	api := &fakeAuditAPI{records: sessionFixtureRecords()}
	s := newTestSession(api)
	defer s.Poller().Stop()

	require.NoError(t, s.RunDayAudit(context.Background(), 15, 3, 2025))

	// Unknown company is rejected.
	assert.Error(t, s.SelectCompany("999"))

	require.NoError(t, s.SelectCompany("001"))
	assert.Equal(t, ViewDetail, s.CurrentView())
	assert.False(t, s.Poller().Watching(), "polling pauses outside the summary view")

	rows, metrics, err := s.CompanyDetail("001", models.FilterAll, "")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 2, metrics.TotalFunc)
	assert.Equal(t, 1, metrics.Pending)

	s.Back()
	assert.Equal(t, ViewSummary, s.CurrentView())
	assert.True(t, s.Poller().Watching())
}

func TestSession_SelectCompanyRequiresSummaryView(t *testing.T) {
	api := &fakeAuditAPI{}
	s := newTestSession(api)

	assert.Error(t, s.SelectCompany("001"))
	assert.Equal(t, ViewSelection, s.CurrentView())
}

func TestSession_GenerationBranch(t *testing.T) {
	api := &fakeAuditAPI{records: sessionFixtureRecords()}
	s := newTestSession(api)
	defer s.Poller().Stop()

	assert.Error(t, s.EnterGeneration(), "generation requires the summary view")

	require.NoError(t, s.RunDayAudit(context.Background(), 15, 3, 2025))
	require.NoError(t, s.EnterGeneration())
	assert.Equal(t, ViewGeneration, s.CurrentView())
	assert.False(t, s.Poller().Watching())

	require.NoError(t, s.GenerateReports(context.Background()))
	_, _, _, successMsg := s.Messages()
	assert.Equal(t, "Geração iniciada", successMsg)

	s.Back()
	assert.Equal(t, ViewSummary, s.CurrentView())
}

func TestSession_ResetClearsEverything(t *testing.T) {
	api := &fakeAuditAPI{records: sessionFixtureRecords()}
	s := newTestSession(api)

	require.NoError(t, s.RunDayAudit(context.Background(), 15, 3, 2025))
	s.ToggleApproval("001")
	require.NoError(t, s.SelectCompany("001"))

	s.ResetFlow()

	assert.Equal(t, ViewSelection, s.CurrentView())
	assert.Empty(t, s.Summaries())
	assert.Equal(t, 0, s.RecordCount())
	assert.False(t, s.Poller().Watching())

	loading, _, errMsg, successMsg := s.Messages()
	assert.False(t, loading)
	assert.Empty(t, errMsg)
	assert.Empty(t, successMsg)

	// Approvals are session-local and do not survive a reset.
	require.NoError(t, s.RunDayAudit(context.Background(), 15, 3, 2025))
	defer s.Poller().Stop()
	assert.False(t, s.Summaries()[0].IsApproved)
}

func TestSession_ApplyCorrectionsRequiresConfirmation(t *testing.T) {
	api := &fakeAuditAPI{records: sessionFixtureRecords()}
	s := newTestSession(api)

	err := s.ApplyCorrections(context.Background(), 1, []string{"101"}, false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)

	api.mu.Lock()
	calls := api.correctionsCalls
	api.mu.Unlock()
	assert.Equal(t, 0, calls, "unconfirmed corrections must never reach the API")
}

func TestSession_ApplyCorrectionsRefreshesAudit(t *testing.T) {
	api := &fakeAuditAPI{records: sessionFixtureRecords()}
	s := newTestSession(api)
	defer s.Poller().Stop()

	require.NoError(t, s.RunDayAudit(context.Background(), 15, 3, 2025))

	api.mu.Lock()
	callsBefore := api.runCalls
	api.mu.Unlock()

	require.NoError(t, s.ApplyCorrections(context.Background(), 1, []string{"101"}, true))

	api.mu.Lock()
	assert.Equal(t, 1, api.correctionsCalls)
	assert.Equal(t, callsBefore+1, api.runCalls, "a successful correction triggers a fresh run")
	api.mu.Unlock()
}

func TestSession_ImportConsignmentsOverlaysQueue(t *testing.T) {
	api := &fakeAuditAPI{records: sessionFixtureRecords()}
	s := newTestSession(api)
	defer s.Poller().Stop()

	require.NoError(t, s.RunDayAudit(context.Background(), 15, 3, 2025))

	// Let the poller's initial snapshot settle so it cannot clear the
	// optimistic overlay afterwards.
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.queueCalls >= 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, s.ImportConsignments(context.Background(), []string{"001", "002"}))

	_, _, _, successMsg := s.Messages()
	assert.Equal(t, "Jobs enfileirados", successMsg)
	assert.GreaterOrEqual(t, s.Poller().Status().Pending, 2)
}

func TestSession_ImportFailureSetsError(t *testing.T) {
	api := &fakeAuditAPI{importErr: fmt.Errorf("boom")}
	s := newTestSession(api)

	err := s.ImportConsignments(context.Background(), nil)
	require.Error(t, err)

	_, _, errMsg, _ := s.Messages()
	assert.Equal(t, "Falha na comunicação com a API.", errMsg)
}

func TestSession_SuccessMessageAutoDismisses(t *testing.T) {
	api := &fakeAuditAPI{records: sessionFixtureRecords()}
	s := NewSession(api, time.Hour, nil, nil, 20*time.Millisecond)
	defer s.Poller().Stop()

	require.NoError(t, s.RunDayAudit(context.Background(), 15, 3, 2025))
	require.NoError(t, s.ImportConsignments(context.Background(), []string{"001"}))

	_, _, _, successMsg := s.Messages()
	assert.NotEmpty(t, successMsg)

	assert.Eventually(t, func() bool {
		_, _, _, msg := s.Messages()
		return msg == ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSession_ErrorPersistsUntilCleared(t *testing.T) {
	api := &fakeAuditAPI{runErr: fmt.Errorf("down")}
	s := NewSession(api, time.Hour, nil, nil, 20*time.Millisecond)

	require.Error(t, s.RunDayAudit(context.Background(), 15, 3, 2025))

	time.Sleep(60 * time.Millisecond)
	_, _, errMsg, _ := s.Messages()
	assert.NotEmpty(t, errMsg, "errors never auto-dismiss")

	s.ClearError()
	_, _, errMsg, _ = s.Messages()
	assert.Empty(t, errMsg)
}

func TestSession_ToggleApprovalRecomputesSummaries(t *testing.T) {
	api := &fakeAuditAPI{records: sessionFixtureRecords()}
	s := newTestSession(api)
	defer s.Poller().Stop()

	require.NoError(t, s.RunDayAudit(context.Background(), 15, 3, 2025))

	alfa := s.Summaries()[0]
	assert.Equal(t, 1, alfa.Pending)

	assert.True(t, s.ToggleApproval("001"))
	alfa = s.Summaries()[0]
	assert.True(t, alfa.IsApproved)
	assert.Equal(t, 0, alfa.Pending)

	assert.False(t, s.ToggleApproval("001"))
	alfa = s.Summaries()[0]
	assert.False(t, alfa.IsApproved)
	assert.Equal(t, 1, alfa.Pending)
}

func TestSession_SummaryTotalsMatchDetailRows(t *testing.T) {
	api := &fakeAuditAPI{records: sessionFixtureRecords()}
	s := newTestSession(api)
	defer s.Poller().Stop()

	require.NoError(t, s.RunDayAudit(context.Background(), 15, 3, 2025))

	for _, summary := range s.Summaries() {
		rows, metrics, err := s.CompanyDetail(summary.Code, models.FilterAll, "")
		require.NoError(t, err)
		assert.Equal(t, summary.Total, len(rows))
		assert.Equal(t, summary.Total, metrics.TotalFunc)
		assert.True(t, summary.TotalReal.Equal(metrics.TotalReal))
	}
}
