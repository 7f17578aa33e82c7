package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/semenkulikov/Online-school/internal/model"
	apperrors "github.com/semenkulikov/Online-school/pkg/errors"
)

type Repository interface {
	// WithinTx runs fn in one transaction; any error from fn rolls back
	// every write made through the LedgerWriter.
	WithinTx(ctx context.Context, fn func(ctx context.Context, w LedgerWriter) error) error

	CreateRun(ctx context.Context, id, source string) error
	StartRun(ctx context.Context, id, source string) error
	FinishRun(ctx context.Context, id string, status model.RunStatus, report *model.RunReport, errorMessage *string) error
	GetRun(ctx context.Context, id string) (*model.ImportRun, error)

	Summary(ctx context.Context) (*model.Summary, error)
	GetStatistic(ctx context.Context, studentID int64) (*model.Statistic, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithinTx(ctx context.Context, fn func(ctx context.Context, w LedgerWriter) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, newLedgerWriter(tx)); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) CreateRun(ctx context.Context, id, source string) error {
	query := `INSERT INTO import_runs (id, source, status) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, id, source, string(model.RunStatusQueued))
	return err
}

// StartRun marks a run RUNNING, creating it when the import did not come
// through the queue.
func (r *repository) StartRun(ctx context.Context, id, source string) error {
	query := `INSERT INTO import_runs (id, source, status) VALUES (?, ?, ?)
			  ON DUPLICATE KEY UPDATE status = VALUES(status), error_message = NULL`
	_, err := r.db.ExecContext(ctx, query, id, source, string(model.RunStatusRunning))
	return err
}

func (r *repository) FinishRun(ctx context.Context, id string, status model.RunStatus, report *model.RunReport, errorMessage *string) error {
	var payload interface{}
	if report != nil {
		data, err := json.Marshal(report)
		if err != nil {
			return err
		}
		payload = string(data)
	}

	query := `UPDATE import_runs SET status = ?, error_message = ?, report = ?, updated_at = NOW() WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, string(status), errorMessage, payload, id)
	return err
}

func (r *repository) GetRun(ctx context.Context, id string) (*model.ImportRun, error) {
	query := `SELECT id, source, status, error_message, report, created_at, updated_at FROM import_runs WHERE id = ?`

	var (
		run          model.ImportRun
		errorMessage sql.NullString
		report       []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Source, &run.Status, &errorMessage,
		&report, &run.CreatedAt, &run.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	if errorMessage.Valid {
		run.ErrorMessage = &errorMessage.String
	}
	if len(report) > 0 {
		var rr model.RunReport
		if err := json.Unmarshal(report, &rr); err != nil {
			return nil, err
		}
		run.Report = &rr
	}

	return &run, nil
}

func (r *repository) Summary(ctx context.Context) (*model.Summary, error) {
	query := `SELECT
		(SELECT COUNT(*) FROM sessions),
		(SELECT COUNT(*) FROM courses),
		(SELECT COUNT(*) FROM students),
		(SELECT COUNT(*) FROM students WHERE status = 'active'),
		(SELECT COUNT(*) FROM enrollments),
		(SELECT COUNT(*) FROM assessments)`

	summary := model.Summary{Certificates: map[model.CertificateStatus]int{}}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&summary.Sessions, &summary.Courses, &summary.Students,
		&summary.ActiveStudents, &summary.Enrollments, &summary.Assessments,
	)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM certificates GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status model.CertificateStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		summary.Certificates[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	summary.GeneratedAt = time.Now().UTC()
	return &summary, nil
}

func (r *repository) GetStatistic(ctx context.Context, studentID int64) (*model.Statistic, error) {
	query := `SELECT id, student_id, total_courses, certified, uncertified,
			  sessions_missed, sessions_attended, sessions_late
			  FROM statistics WHERE student_id = ?`

	var stat model.Statistic
	err := r.db.QueryRowContext(ctx, query, studentID).Scan(
		&stat.ID, &stat.StudentID, &stat.TotalCourses, &stat.Certified, &stat.Uncertified,
		&stat.SessionsMissed, &stat.SessionsAttended, &stat.SessionsLate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrStudentNotFound
	}
	if err != nil {
		return nil, err
	}

	return &stat, nil
}
