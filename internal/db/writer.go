package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/semenkulikov/Online-school/internal/model"
)

type Outcome int

const (
	Unchanged Outcome = iota
	Created
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	}
	return "unchanged"
}

type Upserted struct {
	ID      int64
	Outcome Outcome
}

// LedgerWriter upserts ledger entities keyed on their natural keys. Every
// call is a lookup-or-create or lookup-and-update, never a blind insert.
type LedgerWriter interface {
	UpsertSession(ctx context.Context, number int) (Upserted, error)
	UpsertCourse(ctx context.Context, sessionID int64, title string) (Upserted, error)
	UpsertAssessmentType(ctx context.Context, name string, weight *float64) (Upserted, error)
	UpsertStudent(ctx context.Context, student model.Student) (Upserted, error)
	// UpsertEnrollment only sets status and enrolled_on when the row is created.
	UpsertEnrollment(ctx context.Context, enrollment model.Enrollment) (Upserted, error)
	UpsertAttendance(ctx context.Context, attendance model.Attendance) (Upserted, error)
	UpsertAssessment(ctx context.Context, assessment model.Assessment) (Upserted, error)
	UpsertCertificate(ctx context.Context, certificate model.Certificate) (Upserted, error)
	UpsertStatistic(ctx context.Context, statistic model.Statistic) (Upserted, error)
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type ledgerWriter struct {
	q querier
}

func newLedgerWriter(q querier) LedgerWriter {
	return &ledgerWriter{q: q}
}

// upsert runs an INSERT ... ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)
// statement; MySQL reports 1 affected row for an insert, 2 for an update and
// 0 when nothing changed.
func (w *ledgerWriter) upsert(ctx context.Context, query string, args ...interface{}) (Upserted, error) {
	res, err := w.q.ExecContext(ctx, query, args...)
	if err != nil {
		return Upserted{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Upserted{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Upserted{}, err
	}

	out := Upserted{ID: id}
	switch n {
	case 1:
		out.Outcome = Created
	case 2:
		out.Outcome = Updated
	}
	return out, nil
}

func (w *ledgerWriter) UpsertSession(ctx context.Context, number int) (Upserted, error) {
	query := `INSERT INTO sessions (session_number) VALUES (?)
			  ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`
	return w.upsert(ctx, query, number)
}

func (w *ledgerWriter) UpsertCourse(ctx context.Context, sessionID int64, title string) (Upserted, error) {
	query := `INSERT INTO courses (title, description, session_id) VALUES (?, '', ?)
			  ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`
	return w.upsert(ctx, query, title, sessionID)
}

func (w *ledgerWriter) UpsertAssessmentType(ctx context.Context, name string, weight *float64) (Upserted, error) {
	query := `INSERT INTO assessment_types (name, weight) VALUES (?, ?)
			  ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id), weight = COALESCE(VALUES(weight), weight)`
	return w.upsert(ctx, query, name, nullFloat(weight))
}

func (w *ledgerWriter) UpsertStudent(ctx context.Context, s model.Student) (Upserted, error) {
	email := ""
	if s.Email != nil {
		email = *s.Email
	}

	var (
		id  int64
		err error
	)
	if email != "" {
		id, err = w.findID(ctx, `SELECT id FROM students WHERE email = ?`, email)
		if err == nil && id == 0 {
			// first import with an address for a student known by name only
			id, err = w.findID(ctx, `SELECT id FROM students WHERE full_name = ? AND email IS NULL ORDER BY id LIMIT 1`, s.FullName)
		}
	} else {
		id, err = w.findID(ctx, `SELECT id FROM students WHERE full_name = ? ORDER BY id LIMIT 1`, s.FullName)
	}
	if err != nil {
		return Upserted{}, err
	}

	if id == 0 {
		query := `INSERT INTO students (full_name, email, start_date, status) VALUES (?, ?, ?, ?)`
		res, err := w.q.ExecContext(ctx, query, s.FullName, nullString(email), s.StartDate, string(s.Status))
		if err != nil {
			return Upserted{}, err
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return Upserted{}, err
		}
		return Upserted{ID: newID, Outcome: Created}, nil
	}

	query := `UPDATE students SET full_name = ?, email = COALESCE(?, email), status = ? WHERE id = ?`
	res, err := w.q.ExecContext(ctx, query, s.FullName, nullString(email), string(s.Status), id)
	if err != nil {
		return Upserted{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Upserted{}, err
	}
	if n == 0 {
		return Upserted{ID: id, Outcome: Unchanged}, nil
	}
	return Upserted{ID: id, Outcome: Updated}, nil
}

func (w *ledgerWriter) UpsertEnrollment(ctx context.Context, e model.Enrollment) (Upserted, error) {
	query := `INSERT INTO enrollments (student_id, session_id, enrolled_on, status) VALUES (?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`
	return w.upsert(ctx, query, e.StudentID, e.SessionID, e.EnrolledOn, string(e.Status))
}

func (w *ledgerWriter) UpsertAttendance(ctx context.Context, a model.Attendance) (Upserted, error) {
	query := `INSERT INTO attendances (enrollment_id, session_id, present) VALUES (?, ?, ?)
			  ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id), present = VALUES(present)`
	return w.upsert(ctx, query, a.EnrollmentID, a.SessionID, a.Present)
}

func (w *ledgerWriter) UpsertAssessment(ctx context.Context, a model.Assessment) (Upserted, error) {
	query := `INSERT INTO assessments (enrollment_id, course_id, type_id, score, date, certificate_issued, is_final_grade)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id), score = VALUES(score),
			  certificate_issued = VALUES(certificate_issued), is_final_grade = VALUES(is_final_grade)`
	return w.upsert(ctx, query, a.EnrollmentID, a.CourseID, a.TypeID, a.Score, a.Date,
		a.CertificateIssued, a.IsFinalGrade)
}

func (w *ledgerWriter) UpsertCertificate(ctx context.Context, c model.Certificate) (Upserted, error) {
	query := `INSERT INTO certificates (student_id, course_id, assessment_id, issued_on, status)
			  VALUES (?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id), status = VALUES(status),
			  assessment_id = COALESCE(VALUES(assessment_id), assessment_id)`
	return w.upsert(ctx, query, c.StudentID, c.CourseID, nullInt64(c.AssessmentID), c.IssuedOn, string(c.Status))
}

func (w *ledgerWriter) UpsertStatistic(ctx context.Context, s model.Statistic) (Upserted, error) {
	query := `INSERT INTO statistics (student_id, total_courses, certified, uncertified,
			  sessions_missed, sessions_attended, sessions_late)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id),
			  total_courses = VALUES(total_courses), certified = VALUES(certified),
			  uncertified = VALUES(uncertified), sessions_missed = VALUES(sessions_missed),
			  sessions_attended = VALUES(sessions_attended), sessions_late = VALUES(sessions_late)`
	return w.upsert(ctx, query, s.StudentID, s.TotalCourses, s.Certified, s.Uncertified,
		s.SessionsMissed, s.SessionsAttended, s.SessionsLate)
}

func (w *ledgerWriter) findID(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var id int64
	err := w.q.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt64(i *int64) interface{} {
	if i == nil {
		return nil
	}
	return *i
}
