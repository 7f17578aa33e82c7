package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/semenkulikov/Online-school/internal/db"
	"github.com/semenkulikov/Online-school/internal/excel"
	"github.com/semenkulikov/Online-school/internal/logger"
	"github.com/semenkulikov/Online-school/internal/model"
	"github.com/semenkulikov/Online-school/internal/monitoring"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store is the part of db.Repository an import needs.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, w db.LedgerWriter) error) error
	StartRun(ctx context.Context, id, source string) error
	FinishRun(ctx context.Context, id string, status model.RunStatus, report *model.RunReport, errorMessage *string) error
}

// Locker serialises imports across processes. The returned func releases
// the lock.
type Locker interface {
	Acquire(ctx context.Context) (func(), error)
}

// Invalidator drops data derived from the ledger after a committed import.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Request struct {
	RunID  string
	Source string
	Data   []byte
	DryRun bool
}

type Service struct {
	store Store
	opts  Options
	lock  Locker
	cache Invalidator
	log   zerolog.Logger
}

var errDryRun = errors.New("dry run")

func NewService(store Store, opts Options) *Service {
	return &Service{
		store: store,
		opts:  opts,
		log:   logger.Get(),
	}
}

func (s *Service) WithLock(l Locker) *Service {
	s.lock = l
	return s
}

func (s *Service) WithCache(c Invalidator) *Service {
	s.cache = c
	return s
}

// Import reads the workbook in req.Data and upserts its contents in one
// transaction. Structural problems abort before anything is written; cell
// problems end up as notices in the returned report.
func (s *Service) Import(ctx context.Context, req Request) (*model.RunReport, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	log := s.log.With().Str("run_id", req.RunID).Str("source", req.Source).Logger()
	started := time.Now()

	if s.lock != nil {
		release, err := s.lock.Acquire(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to acquire import lock")
			return nil, err
		}
		defer release()
	}

	if err := s.store.StartRun(ctx, req.RunID, req.Source); err != nil {
		log.Error().Err(err).Msg("Failed to record import run")
		return nil, err
	}

	grid, err := excel.Open(ctx, req.Data)
	if err != nil {
		s.fail(ctx, log, req.RunID, nil, started, err)
		return nil, err
	}

	report, err := s.importSheet(ctx, req, grid, log)
	if err != nil {
		s.fail(ctx, log, req.RunID, report, started, err)
		return report, err
	}

	if err := s.store.FinishRun(ctx, req.RunID, model.RunStatusImported, report, nil); err != nil {
		log.Error().Err(err).Msg("Failed to update import run status")
	}
	monitoring.ObserveImport(string(model.RunStatusImported), started, report.Students, report.SkippedRows)

	if !req.DryRun && s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate summary cache")
		}
	}

	log.Info().
		Bool("dry_run", req.DryRun).
		Int("students", report.Students).
		Int("skipped_rows", report.SkippedRows).
		Int("skipped_cells", report.SkippedCells).
		Dur("took", time.Since(started)).
		Msg("Import finished successfully")
	return report, nil
}

func (s *Service) importSheet(ctx context.Context, req Request, sheet excel.Sheet, log zerolog.Logger) (*model.RunReport, error) {
	parsed, err := parse(sheet, s.opts)
	if err != nil {
		return nil, err
	}

	rb := newReportBuilder(req.DryRun)
	rb.report.Students = len(parsed.Rows.Students)
	rb.report.SkippedRows = len(parsed.Rows.Skipped)
	rb.report.SuspendedFrom = parsed.Rows.SuspensionRow
	rb.report.StatisticsFound = parsed.Schema.Stats.Complete()
	rb.report.Notices = append(rb.report.Notices, parsed.Schema.Notices...)

	for _, n := range parsed.Schema.Notices {
		log.Info().Msg(n)
	}
	for _, skipped := range parsed.Rows.Skipped {
		log.Info().Int("row", skipped.Row).Str("text", skipped.Text).Str("reason", skipped.Reason).Msg("Skipping row")
	}
	for _, e := range parsed.Legend {
		log.Info().Int("row", e.Row).Str("text", e.Text).Str("color", string(e.Color)).
			Bool("recognized", e.Recognized).Str("status", string(e.Status)).Msg("Legend")
	}
	if !rb.report.StatisticsFound {
		log.Info().Msg("Statistics columns not found; statistics are left untouched")
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, w db.LedgerWriter) error {
		m := newMaterializer(w, sheet, parsed.Schema, s.opts, rb, log)
		if err := m.prepare(ctx); err != nil {
			return fmt.Errorf("failed to upsert header entities: %w", err)
		}
		for _, row := range parsed.Rows.Students {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := m.student(ctx, row); err != nil {
				return fmt.Errorf("row %d (%s): %w", row.Row, row.FullName, err)
			}
		}
		if req.DryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return rb.build(), err
	}

	return rb.build(), nil
}

func (s *Service) fail(ctx context.Context, log zerolog.Logger, runID string, report *model.RunReport, started time.Time, cause error) {
	log.Error().Err(cause).Msg("Import failed")
	errorMsg := cause.Error()
	if err := s.store.FinishRun(ctx, runID, model.RunStatusFailed, report, &errorMsg); err != nil {
		log.Error().Err(err).Msg("Failed to update import run status")
	}
	students, skipped := 0, 0
	if report != nil {
		students, skipped = report.Students, report.SkippedRows
	}
	monitoring.ObserveImport(string(model.RunStatusFailed), started, students, skipped)
}

// Inspection is a parsed sheet without any writes.
type Inspection struct {
	Sheet  string
	Schema *excel.Schema
	Rows   excel.Classification
	Legend []excel.LegendEntry
	Colors excel.StatusTable
}

func parse(sheet excel.Sheet, opts Options) (*Inspection, error) {
	schema, err := excel.ParseHeader(sheet, opts.Layout, opts.Header)
	if err != nil {
		return nil, err
	}
	return &Inspection{
		Sheet:  sheet.Name(),
		Schema: schema,
		Rows:   excel.ClassifyRows(sheet, opts.Layout, opts.Rows),
		Legend: excel.ReadLegend(sheet, opts.Layout.Legend, opts.Colors),
		Colors: opts.Colors,
	}, nil
}

// Inspect parses a workbook the way Import does and returns what it found.
func Inspect(ctx context.Context, data []byte, opts Options) (*Inspection, error) {
	grid, err := excel.Open(ctx, data)
	if err != nil {
		return nil, err
	}
	return parse(grid, opts)
}
