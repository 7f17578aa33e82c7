package excel

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/semenkulikov/Online-school/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	cells := map[string]interface{}{
		"D1": "75%",
		"C2": "2 сессия",
		"D2": "Math",
		"C3": "Присутствие",
		"D3": "Контрольная",
		"F3": "Результат",
		"G3": "Свидетельство",
		"B4": "Jane Doe",
		"C4": 1,
		"D4": 85,
		"F4": 85.5,
		"G4": "x",
	}
	for cell, v := range cells {
		require.NoError(t, f.SetCellValue(sheet, cell, v))
	}

	yellow, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFFF00"}, Pattern: 1},
	})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "G4", "G4", yellow))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestOpenReadsValuesAndFills(t *testing.T) {
	grid, err := Open(context.Background(), buildWorkbook(t))
	require.NoError(t, err)

	assert.Equal(t, "2 сессия", grid.Value(2, 3))
	assert.Equal(t, "Jane Doe", grid.Value(4, 2))
	assert.Equal(t, "85", grid.Value(4, 4))
	assert.Equal(t, "85.5", grid.Value(4, 6))
	assert.Equal(t, 4, grid.MaxRow())
	assert.Equal(t, 7, grid.MaxCol())

	key, ok := ResolveColor(grid.Fill(4, 7))
	require.True(t, ok)
	assert.Equal(t, ColorKey("FFFF00"), key)

	_, ok = ResolveColor(grid.Fill(4, 6))
	assert.False(t, ok)

	schema, err := ParseHeader(grid, DefaultLayout(), DefaultHeaderRules())
	require.NoError(t, err)
	require.Len(t, schema.Sessions, 1)
	assert.Equal(t, 7, schema.Sessions[0].Courses[0].CertificateColumn)
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := Open(context.Background(), []byte("definitely not a workbook"))
	require.Error(t, err)
	assert.True(t, errors.IsStructural(err))
	assert.True(t, errors.Is(err, errors.ErrInvalidFileFormat))
}

const themedStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <fills count="4">
    <fill><patternFill patternType="none"/></fill>
    <fill><patternFill patternType="gray125"/></fill>
    <fill><patternFill patternType="solid"><fgColor theme="7" rgb="FFFF0000"/><bgColor indexed="64"/></patternFill></fill>
    <fill><patternFill patternType="solid"><fgColor indexed="5"/></patternFill></fill>
  </fills>
  <cellXfs count="4">
    <xf numFmtId="0" fontId="0" fillId="0" borderId="0"/>
    <xf numFmtId="0" fontId="0" fillId="2" borderId="0" applyFill="1"/>
    <xf numFmtId="0" fontId="0" fillId="3" borderId="0" applyFill="1"/>
    <xf numFmtId="0" fontId="0" fillId="1" borderId="0"/>
  </cellXfs>
</styleSheet>`

func TestReadCellFillsKeepsThemeIndex(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(stylesPart)
	require.NoError(t, err)
	_, err = w.Write([]byte(themedStyles))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	fills, err := readCellFills(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, fills, 4)

	_, ok := ResolveColor(fills[0])
	assert.False(t, ok)

	key, ok := ResolveColor(fills[1])
	require.True(t, ok)
	assert.Equal(t, ThemeKey(7), key)

	key, ok = ResolveColor(fills[2])
	require.True(t, ok)
	assert.Equal(t, ColorKey("FFFF00"), key)

	_, ok = ResolveColor(fills[3])
	assert.False(t, ok)
}
