package excel

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/semenkulikov/Online-school/pkg/errors"
)

// DefaultProximityWindow is how many columns a role column may sit to the
// right of the course or session header it belongs to.
const DefaultProximityWindow = 8

// Layout fixes where the header rows, the student region and the legend live.
type Layout struct {
	WeightsRow      int
	SessionsRow     int
	RolesRow        int
	FirstStudentRow int
	NameColumn      int
	Legend          LegendBlock
}

func DefaultLayout() Layout {
	return Layout{
		WeightsRow:      1,
		SessionsRow:     2,
		RolesRow:        3,
		FirstStudentRow: 4,
		NameColumn:      2,
	}
}

type StatField string

const (
	StatTotalCourses     StatField = "total_courses"
	StatCertified        StatField = "certified"
	StatUncertified      StatField = "uncertified"
	StatSessionsMissed   StatField = "sessions_missed"
	StatSessionsAttended StatField = "sessions_attended"
	StatSessionsLate     StatField = "sessions_late"
)

var AllStatFields = []StatField{
	StatTotalCourses, StatCertified, StatUncertified,
	StatSessionsMissed, StatSessionsAttended, StatSessionsLate,
}

// StatLabel is a lower-case substring that identifies a statistic column.
type StatLabel struct {
	Field StatField
	Label string
}

type HeaderRules struct {
	SessionPattern    *regexp.Regexp
	PresenceLabels    []string
	ResultLabels      []string
	CertificateLabels []string
	// StatLabels are tried in order; a label that contains another one must
	// come first.
	StatLabels      []StatLabel
	ProximityWindow int
}

func DefaultHeaderRules() HeaderRules {
	return HeaderRules{
		SessionPattern:    regexp.MustCompile(`(?i)^\s*(\d+)\s*(?:-?\s*(?:ая|ья|я|й|st|nd|rd|th))?\s*(?:сессия|session)`),
		PresenceLabels:    []string{"присутств", "presence"},
		ResultLabels:      []string{"результат", "result"},
		CertificateLabels: []string{"свидетельств", "сертификат", "certificate"},
		StatLabels: []StatLabel{
			{StatTotalCourses, "всего предметов"},
			{StatUncertified, "не освидетельствовано"},
			{StatCertified, "освидетельствовано"},
			{StatSessionsMissed, "пропущено сессий"},
			{StatSessionsAttended, "посещено сессий"},
			{StatSessionsLate, "опозданий"},
		},
		ProximityWindow: DefaultProximityWindow,
	}
}

type Schema struct {
	Sessions []SessionBlock
	Stats    StatColumns
	Notices  []string
}

type SessionBlock struct {
	Number         int
	Column         int
	PresenceColumn int
	Courses        []CourseBlock
}

type CourseBlock struct {
	Title             string
	Column            int
	Assessments       []AssessmentColumn
	ResultColumn      int
	CertificateColumn int
}

func (c CourseBlock) empty() bool {
	return len(c.Assessments) == 0 && c.ResultColumn == 0 && c.CertificateColumn == 0
}

type AssessmentColumn struct {
	Name   string
	Column int
	Weight *float64
}

type StatColumns map[StatField]int

// Complete reports whether every statistic column was located.
func (s StatColumns) Complete() bool {
	for _, f := range AllStatFields {
		if s[f] == 0 {
			return false
		}
	}
	return true
}

func (s StatColumns) firstColumn() int {
	first := 0
	for _, col := range s {
		if first == 0 || col < first {
			first = col
		}
	}
	return first
}

func (s StatColumns) has(col int) bool {
	for _, c := range s {
		if c == col {
			return true
		}
	}
	return false
}

type role int

const (
	roleAssessment role = iota
	rolePresence
	roleResult
	roleCertificate
)

func (r HeaderRules) sessionNumber(text string) (int, bool) {
	m := r.SessionPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (r HeaderRules) statField(text string) (StatField, bool) {
	lower := strings.ToLower(text)
	for _, l := range r.StatLabels {
		if strings.Contains(lower, l.Label) {
			return l.Field, true
		}
	}
	return "", false
}

func (r HeaderRules) role(text string) role {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, r.PresenceLabels):
		return rolePresence
	case containsAny(lower, r.ResultLabels):
		return roleResult
	case containsAny(lower, r.CertificateLabels):
		return roleCertificate
	}
	return roleAssessment
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// nearestAnchor returns the index of the greatest anchor <= col that lies no
// more than window columns to the left of col. anchors must be sorted.
func nearestAnchor(anchors []int, col, window int) (int, bool) {
	i := sort.SearchInts(anchors, col+1) - 1
	if i < 0 {
		return 0, false
	}
	if col-anchors[i] > window {
		return 0, false
	}
	return i, true
}

type courseAnchor struct {
	session int
	course  int
}

// ParseHeader infers the session → course → column schema from the header rows.
func ParseHeader(sheet Sheet, layout Layout, rules HeaderRules) (*Schema, error) {
	schema := &Schema{Stats: StatColumns{}}
	maxCol := sheet.MaxCol()

	for _, row := range []int{layout.SessionsRow, layout.RolesRow} {
		for col := 1; col <= maxCol; col++ {
			field, ok := rules.statField(sheet.Value(row, col))
			if ok && schema.Stats[field] == 0 {
				schema.Stats[field] = col
			}
		}
	}
	statsStart := schema.Stats.firstColumn()

	current := -1
	for col := 1; col <= maxCol; col++ {
		if statsStart > 0 && col >= statsStart {
			break
		}
		text := sheet.Value(layout.SessionsRow, col)
		if text == "" {
			continue
		}
		if n, ok := rules.sessionNumber(text); ok {
			schema.Sessions = append(schema.Sessions, SessionBlock{Number: n, Column: col})
			current = len(schema.Sessions) - 1
			continue
		}
		if current < 0 {
			continue
		}
		s := &schema.Sessions[current]
		s.Courses = append(s.Courses, CourseBlock{Title: text, Column: col})
	}

	if len(schema.Sessions) == 0 {
		return nil, errors.NewStructuralError(errors.ErrNoHeader,
			fmt.Sprintf("no session marker in row %d", layout.SessionsRow))
	}

	sessionCols := make([]int, len(schema.Sessions))
	var courseCols []int
	var courseRefs []courseAnchor
	for si, s := range schema.Sessions {
		sessionCols[si] = s.Column
		for ci, c := range s.Courses {
			courseCols = append(courseCols, c.Column)
			courseRefs = append(courseRefs, courseAnchor{session: si, course: ci})
		}
	}

	for col := 1; col <= maxCol; col++ {
		if statsStart > 0 && col >= statsStart {
			break
		}
		text := sheet.Value(layout.RolesRow, col)
		if text == "" || schema.Stats.has(col) {
			continue
		}

		r := rules.role(text)
		if r == rolePresence {
			si, ok := nearestAnchor(sessionCols, col, rules.ProximityWindow)
			if !ok {
				schema.notice("presence column %s has no session header nearby", CellName(layout.RolesRow, col))
				continue
			}
			if schema.Sessions[si].PresenceColumn == 0 {
				schema.Sessions[si].PresenceColumn = col
			}
			continue
		}

		ai, ok := nearestAnchor(courseCols, col, rules.ProximityWindow)
		if !ok {
			continue
		}
		ref := courseRefs[ai]
		if next := ref.session + 1; next < len(sessionCols) && sessionCols[next] <= col {
			// a later session started between the course header and this column
			continue
		}
		course := &schema.Sessions[ref.session].Courses[ref.course]

		switch r {
		case roleResult:
			if course.ResultColumn == 0 {
				course.ResultColumn = col
			}
		case roleCertificate:
			if course.CertificateColumn == 0 {
				course.CertificateColumn = col
			}
		default:
			if course.ResultColumn != 0 {
				schema.notice("column %s %q follows the result of %q and is ignored",
					CellName(layout.RolesRow, col), text, course.Title)
				continue
			}
			ac := AssessmentColumn{Name: text, Column: col}
			if layout.WeightsRow > 0 {
				if w, ok := ParseWeight(sheet.Value(layout.WeightsRow, col)); ok {
					ac.Weight = &w
				}
			}
			course.Assessments = append(course.Assessments, ac)
		}
	}

	for si := range schema.Sessions {
		s := &schema.Sessions[si]
		kept := s.Courses[:0]
		for _, c := range s.Courses {
			if c.empty() {
				schema.notice("header %s %q owns no columns and is ignored",
					CellName(layout.SessionsRow, c.Column), c.Title)
				continue
			}
			kept = append(kept, c)
		}
		s.Courses = kept
	}

	return schema, nil
}

func (s *Schema) notice(format string, args ...interface{}) {
	s.Notices = append(s.Notices, fmt.Sprintf(format, args...))
}

// AssessmentTypes lists the distinct assessment-type names with the last
// declared weight for each, in first-seen order.
func (s *Schema) AssessmentTypes() []AssessmentColumn {
	index := make(map[string]int)
	var out []AssessmentColumn
	for _, sess := range s.Sessions {
		for _, c := range sess.Courses {
			for _, a := range c.Assessments {
				i, seen := index[a.Name]
				if !seen {
					index[a.Name] = len(out)
					out = append(out, AssessmentColumn{Name: a.Name, Weight: a.Weight})
					continue
				}
				if a.Weight != nil {
					out[i].Weight = a.Weight
				}
			}
		}
	}
	return out
}
