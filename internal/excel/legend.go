package excel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/semenkulikov/Online-school/internal/model"
)

// StatusTable maps certificate cell colors to certificate statuses. It is a
// fixed table; legend text in the workbook is never parsed into it.
type StatusTable map[ColorKey]model.CertificateStatus

func DefaultStatusTable() StatusTable {
	return StatusTable{
		"FF0000":    model.CertificateStatusUnready,
		ThemeKey(5): model.CertificateStatusUnready,
		"FFFF00":    model.CertificateStatusConditionally,
		ThemeKey(7): model.CertificateStatusConditionally,
		"00B0F0":    model.CertificateStatusControlReceived,
		ThemeKey(8): model.CertificateStatusControlReceived,
		"FFC000":    model.CertificateStatusInProgress,
		ThemeKey(4): model.CertificateStatusInProgress,
		"00B050":    model.CertificateStatusCompleted,
		ThemeKey(9): model.CertificateStatusCompleted,
	}
}

// ParseStatusTable builds a table from config entries such as
// {"FFFF00": "conditionally", "theme:7": "conditionally"}.
func ParseStatusTable(entries map[string]string) (StatusTable, error) {
	table := make(StatusTable, len(entries))
	for rawKey, rawStatus := range entries {
		status := model.CertificateStatus(strings.ToLower(strings.TrimSpace(rawStatus)))
		if !status.Valid() {
			return nil, fmt.Errorf("unknown certificate status %q for color %q", rawStatus, rawKey)
		}

		key := strings.ToLower(strings.TrimSpace(rawKey))
		if strings.HasPrefix(key, themePrefix) {
			table[ColorKey(key)] = status
			continue
		}
		rgb, ok := NormalizeRGB(key)
		if !ok {
			return nil, fmt.Errorf("invalid color key %q", rawKey)
		}
		table[ColorKey(rgb)] = status
	}
	return table, nil
}

func (t StatusTable) Lookup(key ColorKey) (model.CertificateStatus, bool) {
	status, ok := t[key]
	return status, ok
}

// Keys returns the table's color keys in a stable order.
func (t StatusTable) Keys() []ColorKey {
	keys := make([]ColorKey, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// LegendBlock locates the human-readable color legend on the sheet.
type LegendBlock struct {
	Column   int
	FirstRow int
	LastRow  int
}

func (b LegendBlock) Enabled() bool {
	return b.Column > 0 && b.FirstRow > 0 && b.LastRow >= b.FirstRow
}

func (b LegendBlock) Contains(row int) bool {
	return b.Enabled() && row >= b.FirstRow && row <= b.LastRow
}

type LegendEntry struct {
	Row        int
	Text       string
	Color      ColorKey
	HasColor   bool
	Status     model.CertificateStatus
	Recognized bool
}

// ReadLegend reads the legend block for display. The swatch is the colored
// cell itself or, when that cell has no fill, the cell just left of it.
func ReadLegend(sheet Sheet, block LegendBlock, table StatusTable) []LegendEntry {
	if !block.Enabled() {
		return nil
	}

	var entries []LegendEntry
	for row := block.FirstRow; row <= block.LastRow; row++ {
		text := sheet.Value(row, block.Column)
		key, ok := ResolveColor(sheet.Fill(row, block.Column))
		if !ok && block.Column > 1 {
			key, ok = ResolveColor(sheet.Fill(row, block.Column-1))
		}
		if text == "" && !ok {
			continue
		}

		entry := LegendEntry{Row: row, Text: text, Color: key, HasColor: ok}
		if ok {
			entry.Status, entry.Recognized = table.Lookup(key)
		}
		entries = append(entries, entry)
	}
	return entries
}
