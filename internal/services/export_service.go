package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"github.com/batisuivi/situations-api/internal/metrics"
	"github.com/batisuivi/situations-api/internal/models"
	"github.com/batisuivi/situations-api/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Export formats
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

type ExportService struct {
	statements repository.StatementRepository
	sites      repository.SiteRepository
}

func NewExportService(repos *repository.Repositories) *ExportService {
	return &ExportService{statements: repos.Statement, sites: repos.Site}
}

// Export renders a statement with its snapshots. It returns the file content,
// a file name and the content type.
func (s *ExportService) Export(ctx context.Context, statementID uint, format string) ([]byte, string, string, error) {
	start := time.Now()

	stmt, site, err := s.load(ctx, statementID)
	if err != nil {
		metrics.ObserveExport(format, err, time.Since(start))
		return nil, "", "", err
	}

	var (
		content     []byte
		contentType string
	)
	switch format {
	case FormatXLSX, "":
		format = FormatXLSX
		content, err = s.statementXLSX(stmt, site)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		content, err = s.statementCSV(stmt, site)
		contentType = "text/csv"
	default:
		err = fmt.Errorf("%w: unknown export format %q", ErrInvalidInput, format)
	}
	metrics.ObserveExport(format, err, time.Since(start))
	if err != nil {
		return nil, "", "", err
	}

	filename := fmt.Sprintf("situation_%d_%04d-%02d.%s", stmt.StatementNumber, stmt.Year, stmt.Month, format)
	return content, filename, contentType, nil
}

func (s *ExportService) load(ctx context.Context, statementID uint) (*models.Statement, *models.Site, error) {
	stmt, err := s.statements.FindByID(ctx, statementID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: statement %d", ErrNotFound, statementID)
		}
		return nil, nil, err
	}
	if !stmt.IsComplete() {
		return nil, nil, fmt.Errorf("%w: statement %d is %s, reconcile it first", ErrInvalidState, stmt.ID, stmt.Status)
	}
	site, err := s.sites.FindByID(ctx, stmt.SiteID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: site %d: %w", ErrMissingCollaboratorData, stmt.SiteID, err)
	}
	return stmt, site, nil
}

// totalRows is the recap block shared by both formats
func totalRows(stmt *models.Statement) [][2]string {
	rows := [][2]string{
		{"Cumul HT", money(stmt.CumulativeAmount)},
		{"Montant HT du mois", money(stmt.GrossAmountForMonth)},
		{fmt.Sprintf("Retenue de garantie %s%%", stmt.GuaranteeRate.String()), "-" + money(stmt.GuaranteeRetention)},
		{fmt.Sprintf("Compte prorata %s%%", stmt.ProrataRate.String()), "-" + money(stmt.ProrataAmount)},
		{"Retenue CIE", "-" + money(stmt.ThirdPartyRetention)},
	}
	for _, l := range stmt.SupplementaryLines {
		sign := "-"
		if l.Kind == models.SupplementaryKindAddition {
			sign = "+"
		}
		rows = append(rows, [2]string{l.Description, sign + money(l.Amount)})
	}
	rows = append(rows,
		[2]string{"Net HT après retenues", money(stmt.NetAmountAfterRetentions)},
		[2]string{fmt.Sprintf("TVA %s%%", stmt.VATRate.String()), money(stmt.VATAmount)},
		[2]string{"Total TTC", money(stmt.TotalInclTax)},
		[2]string{"Avancement", stmt.CompletionPct.StringFixed(2) + "%"},
	)
	return rows
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func (s *ExportService) statementCSV(stmt *models.Statement, site *models.Site) ([]byte, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)
	writer.Comma = ';'

	_ = writer.Write([]string{"Situation n°" + fmt.Sprint(stmt.StatementNumber), fmt.Sprintf("%02d/%d", stmt.Month, stmt.Year)})
	_ = writer.Write([]string{"Chantier", site.Name})
	_ = writer.Write([]string{"Client", site.ClientName})
	_ = writer.Write([]string{""})

	_ = writer.Write([]string{"Lot", "Sous-lot", "Désignation", "Total HT", "% précédent", "% actuel", "Cumul HT", "Montant du mois"})
	for _, li := range stmt.LineItems {
		_ = writer.Write([]string{
			li.PartName, li.SubPartName, li.Description, money(li.TotalExclTax),
			li.PercentPrevious.String(), li.PercentCurrent.String(), money(li.Amount), money(li.PeriodAmount),
		})
	}
	for _, al := range stmt.AmendmentLines {
		_ = writer.Write([]string{
			fmt.Sprintf("TS %d", al.AmendmentNumber), "", al.Description, money(al.AmountExclTax),
			al.PercentPrevious.String(), al.PercentCurrent.String(), money(al.Amount), money(al.PeriodAmount),
		})
	}
	_ = writer.Write([]string{""})

	for _, row := range totalRows(stmt) {
		_ = writer.Write([]string{row[0], row[1]})
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ExportService) statementXLSX(stmt *models.Statement, site *models.Site) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Situation"
	_ = f.SetSheetName("Sheet1", sheet)

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	moneyFmt := "#,##0.00"
	moneyStyle, _ := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})

	_ = f.SetCellValue(sheet, "A1", fmt.Sprintf("Situation n°%d - %02d/%d", stmt.StatementNumber, stmt.Month, stmt.Year))
	_ = f.SetCellStyle(sheet, "A1", "A1", titleStyle)
	_ = f.SetCellValue(sheet, "A2", "Chantier")
	_ = f.SetCellValue(sheet, "B2", site.Name)
	_ = f.SetCellValue(sheet, "A3", "Client")
	_ = f.SetCellValue(sheet, "B3", site.ClientName)

	headers := []string{"Lot", "Sous-lot", "Désignation", "Total HT", "% précédent", "% actuel", "Cumul HT", "Montant du mois"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 5)
		_ = f.SetCellValue(sheet, cell, h)
	}
	_ = f.SetCellStyle(sheet, "A5", "H5", headerStyle)

	row := 6
	writeLine := func(values ...interface{}) {
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		from, _ := excelize.CoordinatesToCellName(4, row)
		to, _ := excelize.CoordinatesToCellName(8, row)
		_ = f.SetCellStyle(sheet, from, to, moneyStyle)
		row++
	}
	for _, li := range stmt.LineItems {
		writeLine(li.PartName, li.SubPartName, li.Description, li.TotalExclTax.InexactFloat64(),
			li.PercentPrevious.InexactFloat64(), li.PercentCurrent.InexactFloat64(),
			li.Amount.InexactFloat64(), li.PeriodAmount.InexactFloat64())
	}
	for _, al := range stmt.AmendmentLines {
		writeLine(fmt.Sprintf("TS %d", al.AmendmentNumber), "", al.Description, al.AmountExclTax.InexactFloat64(),
			al.PercentPrevious.InexactFloat64(), al.PercentCurrent.InexactFloat64(),
			al.Amount.InexactFloat64(), al.PeriodAmount.InexactFloat64())
	}

	row++
	for _, total := range totalRows(stmt) {
		label, _ := excelize.CoordinatesToCellName(7, row)
		value, _ := excelize.CoordinatesToCellName(8, row)
		_ = f.SetCellValue(sheet, label, total[0])
		_ = f.SetCellValue(sheet, value, total[1])
		row++
	}

	_ = f.SetColWidth(sheet, "A", "B", 20)
	_ = f.SetColWidth(sheet, "C", "C", 45)
	_ = f.SetColWidth(sheet, "D", "H", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
