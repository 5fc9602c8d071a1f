package services

import (
	"github.com/shopspring/decimal"

	"audit-dashboard/models"
)

// SummarySet holds the per-company aggregates of one audit run. Companies
// iterate in the order they first appeared in the input, which keeps the
// summary view stable between recomputations.
type SummarySet struct {
	byCode map[string]*models.CompanySummary
	order  []string
}

// NewSummarySet returns an empty summary set.
func NewSummarySet() *SummarySet {
	return &SummarySet{byCode: make(map[string]*models.CompanySummary)}
}

// Get returns the summary for a company code, or nil.
func (s *SummarySet) Get(code string) *models.CompanySummary {
	return s.byCode[code]
}

// Companies returns the summaries in first-occurrence order.
func (s *SummarySet) Companies() []*models.CompanySummary {
	out := make([]*models.CompanySummary, 0, len(s.order))
	for _, code := range s.order {
		out = append(out, s.byCode[code])
	}
	return out
}

// Len returns the number of companies in the set.
func (s *SummarySet) Len() int {
	return len(s.order)
}

// PendingImports counts companies whose consigned-loan import has not
// completed yet.
func (s *SummarySet) PendingImports() int {
	n := 0
	for _, code := range s.order {
		if !s.byCode[code].IsImported {
			n++
		}
	}
	return n
}

// Aggregate groups a flat audit record collection into per-company
// summaries in a single pass. Classification counters are non-exclusive: a
// record whose analysis carries several markers increments every matching
// counter. Only Total is authoritative as a record count. approvals holds
// the client-local manual overrides by company code; approved companies
// keep their classification counters but report zero pending/warning.
func Aggregate(records []models.AuditRecord, approvals map[string]bool) *SummarySet {
	set := NewSummarySet()

	for _, rec := range records {
		summary, ok := set.byCode[rec.EmpresaCode]
		if !ok {
			summary = &models.CompanySummary{
				Nome:       rec.EmpresaNome,
				Code:       rec.EmpresaCode,
				IsApproved: approvals[rec.EmpresaCode],
				IsImported: rec.ConsignadoImportado,
				LastImport: rec.UltimaImportacao,
				TotalReal:  decimal.Zero,
				TotalAudit: decimal.Zero,
				TotalDesc:  decimal.Zero,
			}
			set.byCode[rec.EmpresaCode] = summary
			set.order = append(set.order, rec.EmpresaCode)
		}

		summary.Total++
		summary.TotalReal = summary.TotalReal.Add(rec.ValorRealFortes)
		summary.TotalAudit = summary.TotalAudit.Add(rec.ValorFinal)
		summary.TotalDesc = summary.TotalDesc.Add(rec.Desconto)

		cs := rec.Class
		if cs.Divergencia {
			summary.Divergencia++
		}
		if cs.Removido {
			summary.Removido++
		}
		if cs.Grave {
			summary.Grave++
		}
		if cs.Corrigido {
			summary.Corrigido++
		}
		if !summary.IsApproved {
			if cs.IsPending() {
				summary.Pending++
			} else if cs.IsWarning() {
				summary.Warning++
			}
		}
	}

	return set
}

// CompanyMetrics are the detail view's local aggregates for one company.
type CompanyMetrics struct {
	TotalFunc  int             `json:"totalFunc"`
	Ok         int             `json:"ok"`
	Pending    int             `json:"pending"`
	Warning    int             `json:"warning"`
	TotalBruto decimal.Decimal `json:"totalBruto"`
	TotalReal  decimal.Decimal `json:"totalReal"`
	TotalAudit decimal.Decimal `json:"totalAudit"`
	TotalDesc  decimal.Decimal `json:"totalDesc"`
}

// CompanyDetailMetrics derives the single-company metrics shown on the
// detail view. Input records are expected to be pre-filtered to one
// company; the function does not check.
func CompanyDetailMetrics(records []models.AuditRecord) CompanyMetrics {
	m := CompanyMetrics{
		TotalBruto: decimal.Zero,
		TotalReal:  decimal.Zero,
		TotalAudit: decimal.Zero,
		TotalDesc:  decimal.Zero,
	}

	for _, rec := range records {
		m.TotalFunc++
		m.TotalBruto = m.TotalBruto.Add(rec.ValorBruto)
		m.TotalReal = m.TotalReal.Add(rec.ValorRealFortes)
		m.TotalAudit = m.TotalAudit.Add(rec.ValorFinal)
		m.TotalDesc = m.TotalDesc.Add(rec.Desconto)

		switch {
		case rec.Class.IsPending():
			m.Pending++
		case rec.Class.IsWarning():
			m.Warning++
		default:
			m.Ok++
		}
	}

	return m
}
