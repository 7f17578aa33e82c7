package excel

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/semenkulikov/Online-school/internal/model"
)

const DefaultSuspensionPhrase = "приостановили обучение"

// DefaultNonStudentPatterns match name-column text that is not a student:
// numbers, grading legends, explanatory headers and section boundaries.
var DefaultNonStudentPatterns = []string{
	`^\d+([.,]\d+)?$`,
	`^\d+\s*[-–—]\s*\d+\s*%?\s*=`,
	`^\d+([.,]\d+)?\s*%`,
	`(?i)^ф\.?\s*и\.?\s*о\.?$`,
	`(?i)^(итого|всего|легенда|условные обозначения|примечани)`,
	`(?i)^(выбывшие|отчисленные)`,
}

type RowRules struct {
	NonStudentPatterns []*regexp.Regexp
	SuspensionPhrase   string
}

func DefaultRowRules() RowRules {
	rules, err := CompileRowRules(nil, "")
	if err != nil {
		panic(err)
	}
	return rules
}

// CompileRowRules builds row rules; a nil pattern list or an empty phrase
// falls back to the defaults.
func CompileRowRules(patterns []string, suspensionPhrase string) (RowRules, error) {
	if patterns == nil {
		patterns = DefaultNonStudentPatterns
	}
	if suspensionPhrase == "" {
		suspensionPhrase = DefaultSuspensionPhrase
	}

	rules := RowRules{SuspensionPhrase: strings.ToLower(suspensionPhrase)}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return RowRules{}, fmt.Errorf("invalid non-student pattern %q: %w", p, err)
		}
		rules.NonStudentPatterns = append(rules.NonStudentPatterns, re)
	}
	return rules, nil
}

func (r RowRules) nonStudent(text string) (string, bool) {
	for _, re := range r.NonStudentPatterns {
		if re.MatchString(text) {
			return re.String(), true
		}
	}
	return "", false
}

type StudentRow struct {
	Row      int
	FullName string
	Email    string
	Status   model.StudentStatus
}

type SkippedRow struct {
	Row    int
	Text   string
	Reason string
}

type Classification struct {
	Students      []StudentRow
	Skipped       []SkippedRow
	SuspensionRow int
}

// ClassifyRows walks the name column. Suspension is decided independently of
// the student filter: every student strictly below the marker row is suspended.
func ClassifyRows(sheet Sheet, layout Layout, rules RowRules) Classification {
	var out Classification
	out.SuspensionRow = findSuspensionRow(sheet, layout, rules.SuspensionPhrase)

	for row := layout.FirstStudentRow; row <= sheet.MaxRow(); row++ {
		name := normalizeName(sheet.Value(row, layout.NameColumn))
		if name == "" {
			continue
		}

		switch {
		case row == out.SuspensionRow:
			out.Skipped = append(out.Skipped, SkippedRow{Row: row, Text: name, Reason: "suspension marker"})
			continue
		case layout.Legend.Contains(row):
			out.Skipped = append(out.Skipped, SkippedRow{Row: row, Text: name, Reason: "legend block"})
			continue
		}
		if pattern, ok := rules.nonStudent(name); ok {
			out.Skipped = append(out.Skipped, SkippedRow{Row: row, Text: name, Reason: "matches " + pattern})
			continue
		}

		status := model.StudentStatusActive
		if out.SuspensionRow > 0 && row > out.SuspensionRow {
			status = model.StudentStatusSuspended
		}
		out.Students = append(out.Students, StudentRow{
			Row:      row,
			FullName: name,
			Email:    findEmail(sheet, row, layout.NameColumn),
			Status:   status,
		})
	}
	return out
}

func findSuspensionRow(sheet Sheet, layout Layout, phrase string) int {
	if phrase == "" {
		return 0
	}
	for row := layout.FirstStudentRow; row <= sheet.MaxRow(); row++ {
		if strings.Contains(strings.ToLower(sheet.Value(row, layout.NameColumn)), phrase) {
			return row
		}
	}
	return 0
}

// findEmail scans from the rightmost column leftward for an address.
func findEmail(sheet Sheet, row, nameCol int) string {
	for col := sheet.MaxCol(); col >= 1; col-- {
		if col == nameCol {
			continue
		}
		v := strings.TrimSpace(sheet.Value(row, col))
		if !strings.Contains(v, "@") {
			continue
		}
		v = strings.TrimPrefix(strings.ToLower(v), "mailto:")
		if strings.ContainsAny(v, " \t") {
			continue
		}
		return v
	}
	return ""
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
