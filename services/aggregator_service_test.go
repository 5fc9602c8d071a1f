package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"audit-dashboard/models"
)

func makeRecord(code, nome, matricula, name, analise string, real, final, desc string) models.AuditRecord {
	return models.AuditRecord{
		Matricula:       matricula,
		Nome:            name,
		Analise:         analise,
		ValorRealFortes: decimal.RequireFromString(real),
		ValorFinal:      decimal.RequireFromString(final),
		Desconto:        decimal.RequireFromString(desc),
		EmpresaCode:     code,
		EmpresaNome:     nome,
		Class:           models.Classify(analise),
	}
}

func TestAggregate_GroupsByCompanyInFirstOccurrenceOrder(t *testing.T) {
	records := []models.AuditRecord{
		makeRecord("002", "Beta Ltda", "100", "Ana", "OK", "10.00", "10.00", "0"),
		makeRecord("001", "Alfa SA", "200", "Bruno", "Divergência de valores", "20.00", "18.00", "2.00"),
		makeRecord("002", "Beta Ltda", "101", "Carla", "OK", "15.00", "15.00", "0"),
	}

	set := Aggregate(records, nil)

	assert.Equal(t, 2, set.Len())
	companies := set.Companies()
	assert.Equal(t, "002", companies[0].Code)
	assert.Equal(t, "001", companies[1].Code)

	beta := set.Get("002")
	assert.Equal(t, "Beta Ltda", beta.Nome)
	assert.Equal(t, 2, beta.Total)
	assert.True(t, beta.TotalReal.Equal(decimal.RequireFromString("25.00")))

	alfa := set.Get("001")
	assert.Equal(t, 1, alfa.Total)
	assert.Equal(t, 1, alfa.Divergencia)
	assert.True(t, alfa.TotalDesc.Equal(decimal.RequireFromString("2.00")))
}

func TestAggregate_CountersAreNotExclusive(t *testing.T) {
	records := []models.AuditRecord{
		makeRecord("001", "Alfa SA", "100", "Ana", "Divergência e Removido pelas regras", "10", "10", "0"),
	}

	set := Aggregate(records, nil)
	alfa := set.Get("001")

	assert.Equal(t, 1, alfa.Total)
	assert.Equal(t, 1, alfa.Divergencia)
	assert.Equal(t, 1, alfa.Removido)

	total := 0
	for _, c := range set.Companies() {
		total += c.Total
	}
	assert.Equal(t, len(records), total, "sum of Total must equal the record count")
}

func TestAggregate_GraveMarkers(t *testing.T) {
	records := []models.AuditRecord{
		makeRecord("001", "Alfa SA", "100", "Ana", "INCONSISTÊNCIA GRAVE no contrato", "10", "10", "0"),
		makeRecord("001", "Alfa SA", "101", "Bruno", "Rescisão detectada", "10", "10", "0"),
		makeRecord("001", "Alfa SA", "102", "Carla", "OK", "10", "10", "0"),
	}

	set := Aggregate(records, nil)

	assert.Equal(t, 2, set.Get("001").Grave)
	assert.Equal(t, 2, set.Get("001").Warning)
}

func TestAggregate_ApprovalSuppressesComplianceCounters(t *testing.T) {
	records := []models.AuditRecord{
		makeRecord("001", "Alfa SA", "100", "Ana", "Divergência de valores", "10", "10", "0"),
		makeRecord("001", "Alfa SA", "101", "Bruno", "Removido pelas regras", "10", "10", "0"),
	}

	unapproved := Aggregate(records, nil).Get("001")
	assert.Equal(t, 1, unapproved.Pending)
	assert.Equal(t, 1, unapproved.Warning)

	approved := Aggregate(records, map[string]bool{"001": true}).Get("001")
	assert.True(t, approved.IsApproved)
	assert.Equal(t, 0, approved.Pending)
	assert.Equal(t, 0, approved.Warning)
	// Classification counters are untouched by approval.
	assert.Equal(t, 1, approved.Divergencia)
	assert.Equal(t, 1, approved.Removido)
}

func TestAggregate_DecimalSumsAreExact(t *testing.T) {
	records := []models.AuditRecord{
		makeRecord("001", "Alfa SA", "100", "Ana", "OK", "0.10", "0.10", "0.10"),
		makeRecord("001", "Alfa SA", "101", "Bruno", "OK", "0.20", "0.20", "0.20"),
	}

	alfa := Aggregate(records, nil).Get("001")

	assert.True(t, alfa.TotalReal.Equal(decimal.RequireFromString("0.30")))
	assert.True(t, alfa.TotalAudit.Equal(decimal.RequireFromString("0.30")))
	assert.True(t, alfa.TotalDesc.Equal(decimal.RequireFromString("0.30")))
}

func TestSummarySet_PendingImports(t *testing.T) {
	imported := makeRecord("001", "Alfa SA", "100", "Ana", "OK", "10", "10", "0")
	imported.ConsignadoImportado = true
	pending := makeRecord("002", "Beta Ltda", "200", "Bruno", "OK", "10", "10", "0")

	set := Aggregate([]models.AuditRecord{imported, pending}, nil)

	assert.Equal(t, 1, set.PendingImports())
	assert.True(t, set.Get("001").IsImported)
	assert.False(t, set.Get("002").IsImported)
}

func TestCompanyDetailMetrics(t *testing.T) {
	records := []models.AuditRecord{
		makeRecord("001", "Alfa SA", "100", "Ana", "OK", "10.00", "10.00", "0"),
		makeRecord("001", "Alfa SA", "101", "Bruno", "Divergência de valores", "20.00", "18.00", "2.00"),
		makeRecord("001", "Alfa SA", "102", "Carla", "Removido pelas regras", "0", "0", "0"),
	}

	m := CompanyDetailMetrics(records)

	assert.Equal(t, 3, m.TotalFunc)
	assert.Equal(t, 1, m.Ok)
	assert.Equal(t, 1, m.Pending)
	assert.Equal(t, 1, m.Warning)
	assert.True(t, m.TotalReal.Equal(decimal.RequireFromString("30.00")))
	assert.True(t, m.TotalAudit.Equal(decimal.RequireFromString("28.00")))
}
