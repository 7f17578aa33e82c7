package importer

import (
	"context"
	"time"

	"github.com/semenkulikov/Online-school/internal/db"
	"github.com/semenkulikov/Online-school/internal/excel"
	"github.com/semenkulikov/Online-school/internal/model"
	apperrors "github.com/semenkulikov/Online-school/pkg/errors"

	"github.com/rs/zerolog"
)

// materializer turns one parsed sheet into ledger upserts. It must only be
// used inside a single transaction.
type materializer struct {
	w      db.LedgerWriter
	sheet  excel.Sheet
	schema *excel.Schema
	colors excel.StatusTable
	today  time.Time
	report *reportBuilder
	log    zerolog.Logger

	sessionIDs   map[int]int64
	courseIDs    map[int]int64 // by header column
	typeIDs      map[string]int64
	resultTypeID int64
}

func newMaterializer(w db.LedgerWriter, sheet excel.Sheet, schema *excel.Schema, opts Options, report *reportBuilder, log zerolog.Logger) *materializer {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	t := now()
	return &materializer{
		w:          w,
		sheet:      sheet,
		schema:     schema,
		colors:     opts.Colors,
		today:      time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
		report:     report,
		log:        log,
		sessionIDs: make(map[int]int64),
		courseIDs:  make(map[int]int64),
		typeIDs:    make(map[string]int64),
	}
}

// prepare upserts the header entities: sessions, courses and assessment types.
func (m *materializer) prepare(ctx context.Context) error {
	needResult := false

	for _, sess := range m.schema.Sessions {
		up, err := m.w.UpsertSession(ctx, sess.Number)
		if err != nil {
			return err
		}
		m.record(entitySessions, up.Outcome).Int("session", sess.Number).Msg("Session")
		m.sessionIDs[sess.Number] = up.ID

		if sess.PresenceColumn == 0 {
			m.report.notice("session %d has no presence column; its students are not enrolled by this run", sess.Number)
		}

		for _, course := range sess.Courses {
			up, err := m.w.UpsertCourse(ctx, m.sessionIDs[sess.Number], course.Title)
			if err != nil {
				return err
			}
			m.record(entityCourses, up.Outcome).Int("session", sess.Number).Str("course", course.Title).Msg("Course")
			m.courseIDs[course.Column] = up.ID
			if course.ResultColumn > 0 {
				needResult = true
			}
		}
	}

	for _, t := range m.schema.AssessmentTypes() {
		up, err := m.w.UpsertAssessmentType(ctx, t.Name, t.Weight)
		if err != nil {
			return err
		}
		m.record(entityAssessmentTypes, up.Outcome).Str("type", t.Name).Msg("Assessment type")
		m.typeIDs[t.Name] = up.ID
	}

	if needResult {
		up, err := m.w.UpsertAssessmentType(ctx, model.ResultTypeName, nil)
		if err != nil {
			return err
		}
		m.record(entityAssessmentTypes, up.Outcome).Str("type", model.ResultTypeName).Msg("Assessment type")
		m.resultTypeID = up.ID
	}

	return nil
}

func (m *materializer) student(ctx context.Context, row excel.StudentRow) error {
	var email *string
	if row.Email != "" {
		e := row.Email
		email = &e
	}

	st, err := m.w.UpsertStudent(ctx, model.Student{
		FullName:  row.FullName,
		Email:     email,
		StartDate: m.today,
		Status:    row.Status,
	})
	if err != nil {
		return err
	}
	m.record(entityStudents, st.Outcome).Int("row", row.Row).Str("student", row.FullName).
		Str("status", string(row.Status)).Msg("Student")

	for _, sess := range m.schema.Sessions {
		if sess.PresenceColumn == 0 {
			continue
		}
		if err := m.session(ctx, row, st.ID, sess); err != nil {
			return err
		}
	}

	if m.schema.Stats.Complete() {
		stat := model.Statistic{
			StudentID:        st.ID,
			TotalCourses:     m.count(row.Row, excel.StatTotalCourses),
			Certified:        m.count(row.Row, excel.StatCertified),
			Uncertified:      m.count(row.Row, excel.StatUncertified),
			SessionsMissed:   m.count(row.Row, excel.StatSessionsMissed),
			SessionsAttended: m.count(row.Row, excel.StatSessionsAttended),
			SessionsLate:     m.count(row.Row, excel.StatSessionsLate),
		}
		up, err := m.w.UpsertStatistic(ctx, stat)
		if err != nil {
			return err
		}
		m.record(entityStatistics, up.Outcome).Int("row", row.Row).Msg("Statistic")
	}

	return nil
}

func (m *materializer) session(ctx context.Context, row excel.StudentRow, studentID int64, sess excel.SessionBlock) error {
	sessionID := m.sessionIDs[sess.Number]
	present := excel.ParsePresence(m.sheet.Value(row.Row, sess.PresenceColumn))

	status := model.EnrollmentStatusPlanned
	if present {
		status = model.EnrollmentStatusCompleted
	}
	en, err := m.w.UpsertEnrollment(ctx, model.Enrollment{
		StudentID:  studentID,
		SessionID:  sessionID,
		EnrolledOn: m.today,
		Status:     status,
	})
	if err != nil {
		return err
	}
	m.record(entityEnrollments, en.Outcome).Int("row", row.Row).Int("session", sess.Number).Msg("Enrollment")

	att, err := m.w.UpsertAttendance(ctx, model.Attendance{
		EnrollmentID: en.ID,
		SessionID:    sessionID,
		Present:      present,
	})
	if err != nil {
		return err
	}
	m.record(entityAttendances, att.Outcome).Int("row", row.Row).Int("session", sess.Number).
		Bool("present", present).Msg("Attendance")

	for _, course := range sess.Courses {
		if err := m.course(ctx, row, studentID, en.ID, course); err != nil {
			return err
		}
	}
	return nil
}

func (m *materializer) course(ctx context.Context, row excel.StudentRow, studentID, enrollmentID int64, course excel.CourseBlock) error {
	courseID := m.courseIDs[course.Column]

	for _, a := range course.Assessments {
		score, ok := m.score(row.Row, a.Column)
		if !ok {
			continue
		}
		up, err := m.w.UpsertAssessment(ctx, model.Assessment{
			EnrollmentID: enrollmentID,
			CourseID:     courseID,
			TypeID:       m.typeIDs[a.Name],
			Score:        score,
			Date:         m.today,
		})
		if err != nil {
			return err
		}
		m.record(entityAssessments, up.Outcome).Int("row", row.Row).Str("course", course.Title).
			Str("type", a.Name).Float64("score", score).Msg("Assessment")
	}

	certStatus, hasCert := m.certificateStatus(row, course)

	var finalID *int64
	if course.ResultColumn > 0 {
		if score, ok := m.score(row.Row, course.ResultColumn); ok {
			up, err := m.w.UpsertAssessment(ctx, model.Assessment{
				EnrollmentID:      enrollmentID,
				CourseID:          courseID,
				TypeID:            m.resultTypeID,
				Score:             score,
				Date:              m.today,
				CertificateIssued: hasCert && certStatus == model.CertificateStatusCompleted,
				IsFinalGrade:      true,
			})
			if err != nil {
				return err
			}
			m.record(entityAssessments, up.Outcome).Int("row", row.Row).Str("course", course.Title).
				Str("type", model.ResultTypeName).Float64("score", score).Msg("Final grade")
			id := up.ID
			finalID = &id
		}
	}

	if !hasCert {
		return nil
	}
	up, err := m.w.UpsertCertificate(ctx, model.Certificate{
		StudentID:    studentID,
		CourseID:     courseID,
		AssessmentID: finalID,
		IssuedOn:     m.today,
		Status:       certStatus,
	})
	if err != nil {
		return err
	}
	m.record(entityCertificates, up.Outcome).Int("row", row.Row).Str("course", course.Title).
		Str("status", string(certStatus)).Msg("Certificate")
	return nil
}

// certificateStatus resolves a certificate cell. Both a value and a fill
// from the status table are required; anything else writes nothing.
func (m *materializer) certificateStatus(row excel.StudentRow, course excel.CourseBlock) (model.CertificateStatus, bool) {
	if course.CertificateColumn == 0 {
		return "", false
	}
	col := course.CertificateColumn
	value := m.sheet.Value(row.Row, col)
	if value == "" {
		return "", false
	}

	key, ok := excel.ResolveColor(m.sheet.Fill(row.Row, col))
	if !ok {
		m.skip(row.Row, col, value, "certificate cell has no fill color")
		return "", false
	}
	status, ok := m.colors.Lookup(key)
	if !ok {
		m.skip(row.Row, col, value, "unrecognized certificate color "+string(key))
		return "", false
	}
	return status, true
}

func (m *materializer) score(row, col int) (float64, bool) {
	raw := m.sheet.Value(row, col)
	if raw == "" {
		return 0, false
	}
	v, ok := excel.ParseNumber(raw)
	if !ok {
		m.skip(row, col, raw, "score is not a number")
		return 0, false
	}
	return v, true
}

func (m *materializer) count(row int, field excel.StatField) int {
	return excel.ParseCount(m.sheet.Value(row, m.schema.Stats[field]))
}

func (m *materializer) skip(row, col int, value string, reason string) {
	cellErr := apperrors.CellError{Row: row, Column: col, Value: value, Reason: reason}
	m.report.skipCell(cellErr)
	m.log.Warn().Int("row", row).Int("column", col).Str("value", value).Msg(reason)
}

func (m *materializer) record(entity string, outcome db.Outcome) *zerolog.Event {
	m.report.count(entity, outcome)
	return m.log.Debug().Str("entity", entity).Str("outcome", outcome.String())
}
