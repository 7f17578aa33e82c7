package excel

import (
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet is a read-only view of one worksheet. Rows and columns are 1-based.
type Sheet interface {
	Name() string
	MaxRow() int
	MaxCol() int
	Value(row, col int) string
	Fill(row, col int) Fill
}

// Grid is an in-memory sheet holding computed values and fill styles side by side.
type Grid struct {
	name   string
	values map[cellRef]string
	fills  map[cellRef]Fill
	maxRow int
	maxCol int
}

type cellRef struct {
	row, col int
}

func NewGrid(name string) *Grid {
	return &Grid{
		name:   name,
		values: make(map[cellRef]string),
		fills:  make(map[cellRef]Fill),
	}
}

func (g *Grid) Name() string { return g.name }
func (g *Grid) MaxRow() int  { return g.maxRow }
func (g *Grid) MaxCol() int  { return g.maxCol }

func (g *Grid) Value(row, col int) string {
	return g.values[cellRef{row, col}]
}

func (g *Grid) Fill(row, col int) Fill {
	return g.fills[cellRef{row, col}]
}

func (g *Grid) Set(row, col int, value string) *Grid {
	value = strings.TrimSpace(value)
	if value == "" {
		delete(g.values, cellRef{row, col})
		return g
	}
	g.values[cellRef{row, col}] = value
	g.grow(row, col)
	return g
}

func (g *Grid) SetFill(row, col int, fill Fill) *Grid {
	g.fills[cellRef{row, col}] = fill
	g.grow(row, col)
	return g
}

// SetCell addresses a cell by its A1 name, e.g. "C2".
func (g *Grid) SetCell(cell string, value string) *Grid {
	col, row, err := excelize.CellNameToCoordinates(cell)
	if err != nil {
		return g
	}
	return g.Set(row, col, value)
}

func (g *Grid) grow(row, col int) {
	if row > g.maxRow {
		g.maxRow = row
	}
	if col > g.maxCol {
		g.maxCol = col
	}
}

// CellName renders 1-based coordinates as an A1 reference for diagnostics.
func CellName(row, col int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "?"
	}
	return name
}
