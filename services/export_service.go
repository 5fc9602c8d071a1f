package services

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"audit-dashboard/models"
)

const exportSheet = "Auditoria"

// ExportCompanyDetail renders one company's audit rows as an XLSX
// workbook and returns its bytes. Rows arrive already filtered; the
// export preserves their order.
func ExportCompanyDetail(companyName string, records []models.AuditRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	f.SetCellValue(exportSheet, "A1", fmt.Sprintf("Auditoria de Consignados - %s", companyName))

	headers := []string{
		"Matrícula", "Nome", "Cargo", "Análise",
		"Valor Bruto", "Valor Auditado", "Valor Final", "Desconto", "Valor Real",
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 3)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(exportSheet, cell, h)
	}

	for i, rec := range records {
		row := i + 4
		values := []interface{}{
			rec.Matricula,
			rec.Nome,
			rec.Cargo,
			rec.Analise,
			rec.ValorBruto.InexactFloat64(),
			rec.ValorBrutoAuditado.InexactFloat64(),
			rec.ValorFinal.InexactFloat64(),
			rec.Desconto.InexactFloat64(),
			rec.ValorRealFortes.InexactFloat64(),
		}
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, row)
			if err != nil {
				return nil, err
			}
			f.SetCellValue(exportSheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportSummary renders the per-company summary table as an XLSX workbook.
func ExportSummary(summaries []*models.CompanySummary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Código", "Empresa", "Funcionários", "Divergências", "Removidos",
		"Graves", "Corrigidos", "Valor Real", "Valor Auditado", "Descontos", "Aprovada",
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(exportSheet, cell, h)
	}

	for i, c := range summaries {
		row := i + 2
		approved := "Não"
		if c.IsApproved {
			approved = "Sim"
		}
		values := []interface{}{
			c.Code,
			c.Nome,
			c.Total,
			c.Divergencia,
			c.Removido,
			c.Grave,
			c.Corrigido,
			c.TotalReal.InexactFloat64(),
			c.TotalAudit.InexactFloat64(),
			c.TotalDesc.InexactFloat64(),
			approved,
		}
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, row)
			if err != nil {
				return nil, err
			}
			f.SetCellValue(exportSheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
