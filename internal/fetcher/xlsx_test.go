package fetcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeXLSX(t *testing.T, dir, name string, sheets ...[][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for i, rows := range sheets {
		sheet, err := f.AddSheet(sheetName(i))
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.Save(path))
	return path
}

func sheetName(i int) string {
	return []string{"Leads", "Extra", "Third"}[i]
}

func TestReadXLSX_Basic(t *testing.T) {
	path := writeXLSX(t, t.TempDir(), "leads.xlsx", [][]string{
		{"Nome", "Cidade", "CEP"},
		{"Pizzaria Bella", "São Paulo", "01310-100"},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Nome", "Cidade", "CEP"}, rows[0])
	assert.Equal(t, []string{"Pizzaria Bella", "São Paulo", "01310-100"}, rows[1])
}

func TestReadXLSX_SheetSelection(t *testing.T) {
	path := writeXLSX(t, t.TempDir(), "leads.xlsx",
		[][]string{{"a", "b"}},
		[][]string{{"x", "y"}, {"1", "2"}},
	)

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Extra"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x", "y"}, {"1", "2"}}, rows)

	rows, err = ReadXLSX(path, XLSXOptions{SheetIndex: 1})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	assert.ErrorContains(t, err, "not found")

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 5})
	assert.ErrorContains(t, err, "out of range")
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	assert.Error(t, err)
}

func TestReadSheet_XLSX(t *testing.T) {
	path := writeXLSX(t, t.TempDir(), "leads.xlsx", [][]string{
		{"", ""},
		{"Nome", "Cidade"},
		{"Bar do Zé", "Santos"},
		{"", ""},
		{"Cantina", "Guarulhos"},
	})

	sheet, err := ReadSheet(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "leads.xlsx", sheet.Source)
	assert.Equal(t, []string{"Nome", "Cidade"}, sheet.Headers)
	assert.Equal(t, [][]string{{"Bar do Zé", "Santos"}, {"Cantina", "Guarulhos"}}, sheet.Rows)
}
