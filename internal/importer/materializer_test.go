package importer

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semenkulikov/Online-school/internal/excel"
	"github.com/semenkulikov/Online-school/internal/model"
)

var fixedNow = time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return fixedNow }
	return opts
}

// janeDoeGrid is a one-session ledger: session 2 with Math graded by two
// assessments, a result and a certificate column.
func janeDoeGrid(certFill excel.Fill) *excel.Grid {
	g := excel.NewGrid("Ledger")
	g.SetCell("D1", "75%").SetCell("E1", "25%")
	g.SetCell("C2", "2 сессия").SetCell("D2", "Math")
	g.SetCell("C3", "Присутствие").
		SetCell("D3", "Контрольная").
		SetCell("E3", "Эссе").
		SetCell("F3", "Результат").
		SetCell("G3", "Свидетельство")
	g.SetCell("B4", "Jane Doe").
		SetCell("C4", "1").
		SetCell("D4", "40").
		SetCell("E4", "45").
		SetCell("F4", "85").
		SetCell("G4", "x")
	g.SetFill(4, 7, certFill)
	return g
}

func withStats(g *excel.Grid, labels []string) *excel.Grid {
	values := []string{"3", "1", "2", "0", "2", "1"}
	for i, label := range labels {
		col := 8 + i
		g.Set(2, col, label)
		g.Set(4, col, values[i])
	}
	return g
}

var allStatLabels = []string{
	"Всего предметов", "Освидетельствовано", "Не освидетельствовано",
	"Пропущено сессий", "Посещено сессий", "Опозданий",
}

func runSheet(t *testing.T, store *memStore, sheet excel.Sheet, dryRun bool) (*model.RunReport, error) {
	t.Helper()
	svc := NewService(store, testOptions())
	return svc.importSheet(context.Background(), Request{RunID: "test", DryRun: dryRun}, sheet, zerolog.Nop())
}

func finalGrade(d memData) (model.Assessment, bool) {
	for _, a := range d.assessments {
		if a.IsFinalGrade {
			return a, true
		}
	}
	return model.Assessment{}, false
}

func TestImportJaneDoe(t *testing.T) {
	store := newMemStore()

	report, err := runSheet(t, store, janeDoeGrid(excel.SolidFill("FFFF00")), false)
	require.NoError(t, err)

	d := store.snapshot()

	session, ok := d.sessions[2]
	require.True(t, ok)
	assert.Equal(t, 2, session.SessionNumber)

	course, ok := d.courses[courseKey{title: "Math", session: session.ID}]
	require.True(t, ok)

	jane, ok := store.student("Jane Doe")
	require.True(t, ok)
	assert.Equal(t, model.StudentStatusActive, jane.Status)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), jane.StartDate)

	enrollment, ok := d.enrollments[pairKey{jane.ID, session.ID}]
	require.True(t, ok)
	assert.Equal(t, model.EnrollmentStatusCompleted, enrollment.Status)

	attendance, ok := d.attendances[pairKey{enrollment.ID, session.ID}]
	require.True(t, ok)
	assert.True(t, attendance.Present)

	require.Len(t, d.assessments, 3)
	result, ok := finalGrade(d)
	require.True(t, ok)
	assert.Equal(t, 85.0, result.Score)
	assert.Equal(t, d.types[model.ResultTypeName].ID, result.TypeID)
	assert.False(t, result.CertificateIssued)

	cert, ok := d.certificates[pairKey{jane.ID, course.ID}]
	require.True(t, ok)
	assert.Equal(t, model.CertificateStatusConditionally, cert.Status)
	require.NotNil(t, cert.AssessmentID)
	assert.Equal(t, result.ID, *cert.AssessmentID)

	exam := d.types["Контрольная"]
	require.NotNil(t, exam.Weight)
	assert.InDelta(t, 0.75, *exam.Weight, 1e-9)

	assert.Equal(t, 1, report.Students)
	assert.Equal(t, 1, report.Entities[entityCertificates].Created)
	assert.Equal(t, 3, report.Entities[entityAssessmentTypes].Created)
	assert.False(t, report.StatisticsFound)
	assert.Empty(t, d.statistics)
}

func TestImportUnrecognizedCertificateColor(t *testing.T) {
	for name, fill := range map[string]excel.Fill{
		"unknown rgb": excel.SolidFill("123456"),
		"no fill":     {},
		"white":       excel.SolidFill("FFFFFF"),
	} {
		t.Run(name, func(t *testing.T) {
			store := newMemStore()
			report, err := runSheet(t, store, janeDoeGrid(fill), false)
			require.NoError(t, err)

			d := store.snapshot()
			assert.Empty(t, d.certificates)
			assert.Equal(t, 1, report.SkippedCells)
			require.Len(t, d.assessments, 3)
		})
	}
}

func TestImportCompletedCertificateMarksFinalGrade(t *testing.T) {
	store := newMemStore()
	_, err := runSheet(t, store, janeDoeGrid(excel.ThemeFill(9)), false)
	require.NoError(t, err)

	d := store.snapshot()
	result, ok := finalGrade(d)
	require.True(t, ok)
	assert.True(t, result.CertificateIssued)
	for _, c := range d.certificates {
		assert.Equal(t, model.CertificateStatusCompleted, c.Status)
	}
}

func TestImportSkipsNonStudentRows(t *testing.T) {
	g := janeDoeGrid(excel.SolidFill("FFFF00"))
	g.SetCell("B5", "91-100 = отлично").SetCell("C5", "1").SetCell("F5", "95")
	g.SetCell("B6", "42").SetCell("F6", "70")

	store := newMemStore()
	report, err := runSheet(t, store, g, false)
	require.NoError(t, err)

	d := store.snapshot()
	assert.Len(t, d.students, 1)
	assert.Len(t, d.enrollments, 1)
	assert.Len(t, d.assessments, 3)
	assert.Equal(t, 2, report.SkippedRows)
}

func TestImportIsIdempotent(t *testing.T) {
	g := withStats(janeDoeGrid(excel.SolidFill("FFFF00")), allStatLabels)
	g.SetCell("B5", "John Smith").SetCell("C5", "0").SetCell("D5", "n/a").SetCell("N5", "john@example.com")

	store := newMemStore()
	_, err := runSheet(t, store, g, false)
	require.NoError(t, err)
	first := store.snapshot()

	report, err := runSheet(t, store, g, false)
	require.NoError(t, err)
	second := store.snapshot()

	for entity, counts := range report.Entities {
		assert.Zero(t, counts.Created, entity)
		assert.Zero(t, counts.Updated, entity)
	}
	assert.Equal(t, first, second)
}

func TestImportEnrollmentStatusNeverRegresses(t *testing.T) {
	store := newMemStore()
	_, err := runSheet(t, store, janeDoeGrid(excel.SolidFill("FFFF00")), false)
	require.NoError(t, err)

	g := janeDoeGrid(excel.SolidFill("FFFF00"))
	g.SetCell("C4", "нет")
	report, err := runSheet(t, store, g, false)
	require.NoError(t, err)

	d := store.snapshot()
	require.Len(t, d.enrollments, 1)
	for _, e := range d.enrollments {
		assert.Equal(t, model.EnrollmentStatusCompleted, e.Status)
	}
	for _, a := range d.attendances {
		assert.False(t, a.Present)
	}
	assert.Equal(t, 1, report.Entities[entityAttendances].Updated)
	assert.Equal(t, 1, report.Entities[entityEnrollments].Unchanged)
}

func TestImportStatisticsAllOrNothing(t *testing.T) {
	t.Run("all columns found", func(t *testing.T) {
		store := newMemStore()
		report, err := runSheet(t, store, withStats(janeDoeGrid(excel.SolidFill("FFFF00")), allStatLabels), false)
		require.NoError(t, err)
		assert.True(t, report.StatisticsFound)

		jane, _ := store.student("Jane Doe")
		stat, ok := store.snapshot().statistics[jane.ID]
		require.True(t, ok)
		assert.Equal(t, model.Statistic{
			ID:               stat.ID,
			StudentID:        jane.ID,
			TotalCourses:     3,
			Certified:        1,
			Uncertified:      2,
			SessionsMissed:   0,
			SessionsAttended: 2,
			SessionsLate:     1,
		}, stat)
	})

	t.Run("one column missing", func(t *testing.T) {
		store := newMemStore()
		report, err := runSheet(t, store, withStats(janeDoeGrid(excel.SolidFill("FFFF00")), allStatLabels[:5]), false)
		require.NoError(t, err)
		assert.False(t, report.StatisticsFound)
		assert.Empty(t, store.snapshot().statistics)
	})

	t.Run("unreadable counters are zero", func(t *testing.T) {
		g := withStats(janeDoeGrid(excel.SolidFill("FFFF00")), allStatLabels)
		g.Set(4, 8, "три")
		store := newMemStore()
		_, err := runSheet(t, store, g, false)
		require.NoError(t, err)

		jane, _ := store.student("Jane Doe")
		assert.Zero(t, store.snapshot().statistics[jane.ID].TotalCourses)
	})
}

func TestImportSuspendedStudents(t *testing.T) {
	g := janeDoeGrid(excel.SolidFill("FFFF00"))
	g.SetCell("B6", "Приостановили обучение")
	g.SetCell("B7", "John Smith").SetCell("C7", "0")

	store := newMemStore()
	report, err := runSheet(t, store, g, false)
	require.NoError(t, err)
	assert.Equal(t, 6, report.SuspendedFrom)

	john, ok := store.student("John Smith")
	require.True(t, ok)
	assert.Equal(t, model.StudentStatusSuspended, john.Status)

	jane, _ := store.student("Jane Doe")
	assert.Equal(t, model.StudentStatusActive, jane.Status)
}

func TestImportEmailKeepsStudentIdentity(t *testing.T) {
	g := janeDoeGrid(excel.SolidFill("FFFF00"))
	g.SetCell("B5", "John Smith").SetCell("C5", "1").SetCell("N5", "john@example.com")

	store := newMemStore()
	_, err := runSheet(t, store, g, false)
	require.NoError(t, err)
	john, ok := store.student("John Smith")
	require.True(t, ok)
	assert.Equal(t, model.StudentStatusActive, john.Status)

	// renamed and moved below the suspension marker, same address
	g = janeDoeGrid(excel.SolidFill("FFFF00"))
	g.SetCell("B6", "Приостановили обучение")
	g.SetCell("B7", "John A. Smith").SetCell("C7", "1").SetCell("N7", "john@example.com")

	report, err := runSheet(t, store, g, false)
	require.NoError(t, err)

	d := store.snapshot()
	require.Len(t, d.students, 2)
	renamed, ok := d.students[john.ID]
	require.True(t, ok)
	assert.Equal(t, "John A. Smith", renamed.FullName)
	assert.Equal(t, model.StudentStatusSuspended, renamed.Status)
	require.NotNil(t, renamed.Email)
	assert.Equal(t, "john@example.com", *renamed.Email)
	assert.Equal(t, john.StartDate, renamed.StartDate)

	_, ok = store.student("John Smith")
	assert.False(t, ok)
	assert.Equal(t, 1, report.Entities[entityStudents].Updated)
	assert.Zero(t, report.Entities[entityStudents].Created)
	assert.Len(t, d.enrollments, 2)
}

func TestImportRollsBackOnStoreError(t *testing.T) {
	store := newMemStore()
	store.failAt = 8

	_, err := runSheet(t, store, janeDoeGrid(excel.SolidFill("FFFF00")), false)
	require.ErrorIs(t, err, errInjected)

	d := store.snapshot()
	assert.Empty(t, d.sessions)
	assert.Empty(t, d.students)
	assert.Empty(t, d.assessments)
}

func TestImportDryRunWritesNothing(t *testing.T) {
	store := newMemStore()

	report, err := runSheet(t, store, janeDoeGrid(excel.SolidFill("FFFF00")), true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Entities[entityStudents].Created)

	d := store.snapshot()
	assert.Empty(t, d.students)
	assert.Empty(t, d.certificates)
}

func TestImportNonNumericScoreIsSkipped(t *testing.T) {
	g := janeDoeGrid(excel.SolidFill("FFFF00"))
	g.SetCell("D4", "зачёт").SetCell("E4", "44,5")

	store := newMemStore()
	report, err := runSheet(t, store, g, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkippedCells)

	d := store.snapshot()
	assert.Len(t, d.assessments, 2)
	essay := d.types["Эссе"]
	for _, a := range d.assessments {
		if a.TypeID == essay.ID {
			assert.Equal(t, 44.5, a.Score)
		}
	}
}
