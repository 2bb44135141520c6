// Package export writes comparison and monitor tables to XLSX workbooks.
package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/holdings-cli/internal/reconcile"
)

// Sheet names used in exported workbooks.
const (
	ComparisonSheet = "Comparison"
	MonitorSheet    = "Monitor"
)

// ComparisonHeaders is the header row of the comparison sheet.
var ComparisonHeaders = []string{
	"Company Name",
	"Value (USD)",
	"Shares",
	"Previous Shares",
	"Change",
	"Change %",
	"Status",
	"New Company",
	"Accession Number",
}

// Workbook accumulates holdings tables before writing them out.
type Workbook struct {
	file *xlsx.File
}

// NewWorkbook returns an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{file: xlsx.NewFile()}
}

// AddComparison adds the latest-vs-previous table as its own sheet.
func (wb *Workbook) AddComparison(rows []reconcile.ComparisonRow) error {
	sheet, err := wb.file.AddSheet(ComparisonSheet)
	if err != nil {
		return eris.Wrap(err, "export: add comparison sheet")
	}
	addStrings(sheet.AddRow(), ComparisonHeaders)

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.CompanyName)
		row.AddCell().SetInt64(r.ValueUSD)
		row.AddCell().SetInt64(r.ShareAmount)
		row.AddCell().SetInt64(r.PreviousShareAmount)
		row.AddCell().SetInt64(r.ChangeAmount)
		row.AddCell().SetFloat(r.ChangePercentage)
		row.AddCell().SetString(string(r.ChangeStatus))
		row.AddCell().SetBool(r.NewCompany)
		row.AddCell().SetString(r.AccessionNumber)
	}
	return nil
}

// AddMonitor adds the N-period share matrix as its own sheet. headers must
// start with reconcile.CompanyColumn.
func (wb *Workbook) AddMonitor(rows []reconcile.MonitorRow, headers []string) error {
	sheet, err := wb.file.AddSheet(MonitorSheet)
	if err != nil {
		return eris.Wrap(err, "export: add monitor sheet")
	}
	addStrings(sheet.AddRow(), headers)

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.CompanyName)
		for _, n := range r.Shares {
			row.AddCell().SetInt64(n)
		}
	}
	return nil
}

// Write serializes the workbook.
func (wb *Workbook) Write(w io.Writer) error {
	if len(wb.file.Sheets) == 0 {
		return eris.New("export: workbook has no sheets")
	}
	if err := wb.file.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

// Save writes the workbook to path.
func (wb *Workbook) Save(path string) error {
	if len(wb.file.Sheets) == 0 {
		return eris.New("export: workbook has no sheets")
	}
	if err := wb.file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addStrings(row *xlsx.Row, values []string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
