package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/semenkulikov/Online-school/internal/config"
	"github.com/semenkulikov/Online-school/internal/importer"
	"github.com/semenkulikov/Online-school/internal/logger"
	"github.com/semenkulikov/Online-school/internal/model"
	"github.com/semenkulikov/Online-school/internal/queue"
	"github.com/semenkulikov/Online-school/internal/storage"
	apperrors "github.com/semenkulikov/Online-school/pkg/errors"

	"github.com/rs/zerolog"
)

type Importer interface {
	Import(ctx context.Context, req importer.Request) (*model.RunReport, error)
}

// RunFinisher records runs that fail before the importer sees them.
type RunFinisher interface {
	FinishRun(ctx context.Context, id string, status model.RunStatus, report *model.RunReport, errorMessage *string) error
}

// Requeuer puts a job back on the import queue.
type Requeuer interface {
	EnqueueImportJob(ctx context.Context, job model.ImportJob) error
}

type ImportWorker struct {
	cfg      *config.Config
	importer Importer
	runs     RunFinisher
	storage  storage.Storage
	consumer *queue.Consumer
	requeue  Requeuer
	log      zerolog.Logger
}

func NewImportWorker(
	cfg *config.Config,
	imp Importer,
	runs RunFinisher,
	storage storage.Storage,
	redisClient *queue.RedisClient,
) *ImportWorker {
	return &ImportWorker{
		cfg:      cfg,
		importer: imp,
		runs:     runs,
		storage:  storage,
		consumer: queue.NewConsumer(redisClient, cfg),
		requeue:  queue.NewProducer(redisClient, cfg),
		log:      logger.Get(),
	}
}

// Start blocks, importing one queued workbook at a time.
func (w *ImportWorker) Start(ctx context.Context) error {
	w.log.Info().Str("queue", w.cfg.Redis.ImportQueue).Msg("Starting import worker")
	return w.consumer.ConsumeImportQueue(ctx, w.handleMessage)
}

func (w *ImportWorker) Stop() {
	w.log.Info().Msg("Stopping import worker")
}

func (w *ImportWorker) handleMessage(ctx context.Context, data []byte) error {
	var job model.ImportJob
	if err := json.Unmarshal(data, &job); err != nil {
		w.log.Error().Err(err).Msg("Failed to unmarshal import job")
		return err
	}

	w.log.Info().Str("run_id", job.RunID).Str("storage_key", job.StorageKey).Msg("Processing import job")
	return w.processJob(ctx, job)
}

func (w *ImportWorker) processJob(ctx context.Context, job model.ImportJob) error {
	log := w.log.With().Str("run_id", job.RunID).Logger()

	log.Debug().Msg("Downloading workbook")
	reader, err := w.storage.Download(ctx, job.StorageKey)
	if err != nil {
		log.Error().Err(err).Msg("Failed to download workbook")
		w.failRun(ctx, job.RunID, err)
		return err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read workbook")
		w.failRun(ctx, job.RunID, err)
		return err
	}

	report, err := w.importer.Import(ctx, importer.Request{
		RunID:  job.RunID,
		Source: w.storage.URI(job.StorageKey),
		Data:   data,
	})
	if errors.Is(err, apperrors.ErrImportLocked) {
		// the run was never started, so it is still QUEUED
		return w.retryLocked(ctx, log, job, err)
	}
	if err != nil {
		// the importer has already recorded the failure
		return err
	}

	if w.cfg.Storage.ArchiveImports {
		w.archive(ctx, log, job, data)
	}

	log.Info().Int("students", report.Students).Msg("Import job processed successfully")
	return nil
}

// archive moves an imported upload under the archive prefix.
func (w *ImportWorker) archive(ctx context.Context, log zerolog.Logger, job model.ImportJob, data []byte) {
	key := storage.ArchiveKey(w.cfg.Storage.ArchivePrefix, job.RunID, job.StorageKey)
	if err := w.storage.Upload(ctx, key, data); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to archive workbook")
		return
	}
	if err := w.storage.Delete(ctx, job.StorageKey); err != nil {
		log.Warn().Err(err).Str("key", job.StorageKey).Msg("Failed to delete uploaded workbook")
	}
}

// retryLocked puts a job that met a running import back on the queue after
// a delay. Once the retries are used up the run is failed with cause.
func (w *ImportWorker) retryLocked(ctx context.Context, log zerolog.Logger, job model.ImportJob, cause error) error {
	retries := w.cfg.Workers.Import.LockRetries
	if job.Attempts >= retries {
		log.Error().Err(cause).Int("attempts", job.Attempts).Msg("Import lock still held, giving up")
		w.failRun(ctx, job.RunID, cause)
		return cause
	}

	job.Attempts++
	delay := w.cfg.Workers.Import.LockRetryDelay
	log.Warn().Int("attempt", job.Attempts).Int("max_attempts", retries).Dur("delay", delay).
		Msg("Import lock held, requeueing job")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	// a worker that is shutting down still hands the job back
	if err := w.requeue.EnqueueImportJob(context.WithoutCancel(ctx), job); err != nil {
		log.Error().Err(err).Msg("Failed to requeue import job")
		w.failRun(ctx, job.RunID, err)
		return err
	}
	return nil
}

func (w *ImportWorker) failRun(ctx context.Context, runID string, cause error) {
	errorMsg := cause.Error()
	if err := w.runs.FinishRun(ctx, runID, model.RunStatusFailed, nil, &errorMsg); err != nil {
		w.log.Error().Err(err).Str("run_id", runID).Msg("Failed to update import run status")
	}
}
