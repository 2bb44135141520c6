package export

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/holdings-cli/internal/reconcile"
)

func cellStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.String()
	}
	return out
}

func TestWorkbook_Comparison(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.AddComparison([]reconcile.ComparisonRow{
		{
			CompanyName: "APPLE INC", ValueUSD: 1500, ShareAmount: 150, PreviousShareAmount: 100,
			ChangeAmount: 50, ChangePercentage: 50, ChangeStatus: reconcile.StatusIncreased,
			AccessionNumber: "0000950123-24-000002",
		},
		{
			CompanyName: "CHEVRON CORP", ValueUSD: 400, ShareAmount: 0, PreviousShareAmount: 40,
			ChangeAmount: -40, ChangePercentage: -100, ChangeStatus: reconcile.StatusPositionClosed,
			AccessionNumber: "0000950123-24-000001",
		},
	}))

	var buf bytes.Buffer
	require.NoError(t, wb.Write(&buf))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, ComparisonSheet, sheet.Name)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, ComparisonHeaders, cellStrings(sheet.Rows[0]))
	apple := cellStrings(sheet.Rows[1])
	assert.Equal(t, "APPLE INC", apple[0])
	assert.Equal(t, "150", apple[2])
	assert.Equal(t, "50", apple[4])
	assert.Equal(t, "Increased", apple[6])
	closed := cellStrings(sheet.Rows[2])
	assert.Equal(t, "-40", closed[4])
	assert.Equal(t, "Position Closed", closed[6])
}

func TestWorkbook_Monitor(t *testing.T) {
	headers := []string{reconcile.CompanyColumn, "2023 Q3", "2023 Q4"}
	rows := []reconcile.MonitorRow{
		{CompanyName: "APPLE INC", Shares: []int64{120, 130}},
		{CompanyName: "CHEVRON CORP", Shares: []int64{10, 0}},
	}

	path := filepath.Join(t.TempDir(), "monitor.xlsx")
	wb := NewWorkbook()
	require.NoError(t, wb.AddMonitor(rows, headers))
	require.NoError(t, wb.Save(path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet := f.Sheet[MonitorSheet]
	require.NotNil(t, sheet)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, headers, cellStrings(sheet.Rows[0]))
	assert.Equal(t, []string{"APPLE INC", "120", "130"}, cellStrings(sheet.Rows[1]))
	assert.Equal(t, []string{"CHEVRON CORP", "10", "0"}, cellStrings(sheet.Rows[2]))
}

func TestWorkbook_BothSheets(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.AddComparison(nil))
	require.NoError(t, wb.AddMonitor(nil, []string{reconcile.CompanyColumn}))

	var buf bytes.Buffer
	require.NoError(t, wb.Write(&buf))
	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)
	assert.Equal(t, ComparisonSheet, f.Sheets[0].Name)
	assert.Equal(t, MonitorSheet, f.Sheets[1].Name)
}

func TestWorkbook_DuplicateSheet(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.AddComparison(nil))
	assert.Error(t, wb.AddComparison(nil))
}

func TestWorkbook_Empty(t *testing.T) {
	var buf bytes.Buffer
	err := NewWorkbook().Write(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sheets")
}
