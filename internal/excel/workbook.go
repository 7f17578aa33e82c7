package excel

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/semenkulikov/Online-school/pkg/errors"

	"github.com/xuri/excelize/v2"
)

const stylesPart = "xl/styles.xml"

// Open reads the active worksheet of a workbook into a Grid. Cell values are
// the cached results of formulas; fills come from the style sheet so that
// theme swatches keep their theme index.
func Open(ctx context.Context, data []byte) (*Grid, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewStructuralError(errors.ErrInvalidFileFormat, fmt.Sprintf("failed to open workbook: %v", err))
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewStructuralError(errors.ErrInvalidFileFormat, "workbook has no sheets")
	}
	sheetName := file.GetSheetName(file.GetActiveSheetIndex())
	if sheetName == "" {
		sheetName = sheets[0]
	}

	rows, err := file.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.NewStructuralError(errors.ErrInvalidFileFormat, fmt.Sprintf("failed to get rows: %v", err))
	}

	fills, err := readCellFills(data)
	if err != nil {
		return nil, errors.NewStructuralError(errors.ErrInvalidFileFormat, fmt.Sprintf("failed to read styles: %v", err))
	}

	grid := NewGrid(sheetName)
	maxCol := 0
	for r, row := range rows {
		if len(row) > maxCol {
			maxCol = len(row)
		}
		for c, value := range row {
			grid.Set(r+1, c+1, value)
		}
	}

	for r := 1; r <= len(rows); r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for c := 1; c <= maxCol; c++ {
			cell, err := excelize.CoordinatesToCellName(c, r)
			if err != nil {
				return nil, err
			}
			styleID, err := file.GetCellStyle(sheetName, cell)
			if err != nil || styleID <= 0 || styleID >= len(fills) {
				continue
			}
			if f := fills[styleID]; f.Pattern != "" {
				grid.SetFill(r, c, f)
			}
		}
	}

	return grid, nil
}

type xmlColor struct {
	Auto    bool    `xml:"auto,attr"`
	RGB     string  `xml:"rgb,attr"`
	Indexed *int    `xml:"indexed,attr"`
	Theme   *int    `xml:"theme,attr"`
	Tint    float64 `xml:"tint,attr"`
}

func (c *xmlColor) color() Color {
	if c == nil {
		return Color{}
	}
	return Color{Theme: c.Theme, Tint: c.Tint, RGB: c.RGB, Indexed: c.Indexed, Auto: c.Auto}
}

type xmlStyleSheet struct {
	Fills []struct {
		PatternFill *struct {
			PatternType string    `xml:"patternType,attr"`
			FgColor     *xmlColor `xml:"fgColor"`
			BgColor     *xmlColor `xml:"bgColor"`
		} `xml:"patternFill"`
	} `xml:"fills>fill"`
	CellXfs []struct {
		FillID int `xml:"fillId,attr"`
	} `xml:"cellXfs>xf"`
}

// readCellFills returns the pattern fill of every cell format (xf) index.
func readCellFills(data []byte) ([]Fill, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == stylesPart {
			part = f
			break
		}
	}
	if part == nil {
		return nil, nil
	}

	rc, err := part.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	var ss xmlStyleSheet
	if err := xml.Unmarshal(raw, &ss); err != nil {
		return nil, err
	}

	fills := make([]Fill, len(ss.CellXfs))
	for i, xf := range ss.CellXfs {
		if xf.FillID < 0 || xf.FillID >= len(ss.Fills) {
			continue
		}
		pf := ss.Fills[xf.FillID].PatternFill
		if pf == nil {
			continue
		}
		fills[i] = Fill{
			Pattern: pf.PatternType,
			Fg:      pf.FgColor.color(),
			Bg:      pf.BgColor.color(),
		}
	}
	return fills, nil
}
