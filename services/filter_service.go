package services

import (
	"strings"

	"audit-dashboard/models"
)

// FilterRecords derives the displayed subset of records from a
// classification filter and a free-text search term. The classification
// stage matches on a lower-cased copy of the analysis text
// (models.MatchesFilter); the search term matches when empty, when the
// employee name contains it case-insensitively, or when the matrícula
// contains it as a literal substring (IDs are typically numeric, so no case
// folding there). Both predicates are ANDed. The function is pure: input
// order is preserved and the input slice is never mutated, so re-filtering
// an already filtered slice with the same arguments is a no-op.
func FilterRecords(records []models.AuditRecord, filter models.ClassFilter, searchTerm string) []models.AuditRecord {
	out := make([]models.AuditRecord, 0, len(records))
	searchLower := strings.ToLower(searchTerm)

	for _, rec := range records {
		if !models.MatchesFilter(rec.Analise, filter) {
			continue
		}
		if !matchesSearch(rec, searchTerm, searchLower) {
			continue
		}
		out = append(out, rec)
	}

	return out
}

// FilterByCompliance is the advance-audit variant: it selects by the
// pending/warning/ok compliance buckets computed at ingestion instead of
// re-scanning the analysis text.
func FilterByCompliance(records []models.AuditRecord, filter models.ComplianceFilter, searchTerm string) []models.AuditRecord {
	out := make([]models.AuditRecord, 0, len(records))
	searchLower := strings.ToLower(searchTerm)

	for _, rec := range records {
		if !rec.Class.MatchesCompliance(filter) {
			continue
		}
		if !matchesSearch(rec, searchTerm, searchLower) {
			continue
		}
		out = append(out, rec)
	}

	return out
}

// RecordsForCompany selects the records of one company by code equality,
// preserving order. This is the selection-to-detail transition.
func RecordsForCompany(records []models.AuditRecord, code string) []models.AuditRecord {
	out := make([]models.AuditRecord, 0)
	for _, rec := range records {
		if rec.EmpresaCode == code {
			out = append(out, rec)
		}
	}
	return out
}

func matchesSearch(rec models.AuditRecord, term, termLower string) bool {
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(rec.Nome), termLower) {
		return true
	}
	return strings.Contains(rec.Matricula, term)
}
