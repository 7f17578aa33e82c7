package importer

import (
	"fmt"

	"github.com/semenkulikov/Online-school/internal/db"
	"github.com/semenkulikov/Online-school/internal/model"
	apperrors "github.com/semenkulikov/Online-school/pkg/errors"
)

const (
	entitySessions        = "sessions"
	entityCourses         = "courses"
	entityAssessmentTypes = "assessment_types"
	entityStudents        = "students"
	entityEnrollments     = "enrollments"
	entityAttendances     = "attendances"
	entityAssessments     = "assessments"
	entityCertificates    = "certificates"
	entityStatistics      = "statistics"
)

type reportBuilder struct {
	report model.RunReport
}

func newReportBuilder(dryRun bool) *reportBuilder {
	return &reportBuilder{report: model.RunReport{
		DryRun:   dryRun,
		Entities: make(map[string]model.EntityCounts),
	}}
}

func (b *reportBuilder) count(entity string, outcome db.Outcome) {
	c := b.report.Entities[entity]
	switch outcome {
	case db.Created:
		c.Created++
	case db.Updated:
		c.Updated++
	default:
		c.Unchanged++
	}
	b.report.Entities[entity] = c
}

func (b *reportBuilder) notice(format string, args ...interface{}) {
	b.report.Notices = append(b.report.Notices, fmt.Sprintf(format, args...))
}

func (b *reportBuilder) skipCell(err apperrors.CellError) {
	b.report.SkippedCells++
	b.report.Notices = append(b.report.Notices, err.Error())
}

// build returns a copy so the caller can keep mutating the builder.
func (b *reportBuilder) build() *model.RunReport {
	r := b.report
	r.Entities = make(map[string]model.EntityCounts, len(b.report.Entities))
	for k, v := range b.report.Entities {
		r.Entities[k] = v
	}
	r.Notices = append([]string(nil), b.report.Notices...)
	return &r
}
