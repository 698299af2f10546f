package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
)

func buildWorkbook(t *testing.T, sheetName string, rows [][]string) []byte {
	t.Helper()

	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, value := range cells {
			row.AddCell().SetString(value)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, file.Write(&buf))
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	data := buildWorkbook(t, "Inventory", [][]string{
		{"Model", "Serial Number", "Site", "Comments"},
		{"Catalyst 9300", "FCW001", "LDN01", "rack 4"},
		{"", "", "", ""},
		{"ThinkPad X1", "5CD005", "FRA03", ""},
	})

	sheets, err := ParseXLSX(data)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, "Inventory", sheets[0].Name)

	rows := sheets[0].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, "Catalyst 9300", rows[0]["Model"])
	assert.Equal(t, "rack 4", rows[0]["Comments"])

	// Empty cells are dropped, not mapped to "".
	_, ok := rows[1]["Comments"]
	assert.False(t, ok)
}

func TestParseXLSXRejectsGarbage(t *testing.T) {
	_, err := ParseXLSX([]byte("definitely not a zip archive"))
	assert.Error(t, err)
}

func TestParseCSV(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader(
		"Model, Serial Number ,Site\n" +
			"Catalyst 9300,FCW001,LDN01\n" +
			",,\n" +
			"ThinkPad X1,5CD005,FRA03\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "FCW001", rows[0]["Serial Number"])
	assert.Equal(t, "FRA03", rows[1]["Site"])
}

func TestParseCSVEmptyFile(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseCSVRaggedRows(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader(
		"Model,Site\n" +
			"Catalyst 9300,LDN01,extra\n" +
			"ThinkPad X1\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "LDN01", rows[0]["Site"])
	assert.Equal(t, "ThinkPad X1", rows[1]["Model"])
}
