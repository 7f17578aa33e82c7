package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/semenkulikov/Online-school/internal/config"
	"github.com/semenkulikov/Online-school/internal/logger"
	"github.com/semenkulikov/Online-school/internal/model"
	"github.com/semenkulikov/Online-school/internal/storage"
	apperrors "github.com/semenkulikov/Online-school/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store is the part of db.Repository the API reads and writes.
type Store interface {
	CreateRun(ctx context.Context, id, source string) error
	FinishRun(ctx context.Context, id string, status model.RunStatus, report *model.RunReport, errorMessage *string) error
	GetRun(ctx context.Context, id string) (*model.ImportRun, error)
	Summary(ctx context.Context) (*model.Summary, error)
	GetStatistic(ctx context.Context, studentID int64) (*model.Statistic, error)
}

type Enqueuer interface {
	EnqueueImportJob(ctx context.Context, job model.ImportJob) error
}

type SummaryCache interface {
	Get(ctx context.Context, load func(ctx context.Context) (*model.Summary, error)) (*model.Summary, error)
}

var workbookExtensions = map[string]bool{".xlsx": true, ".xlsm": true}

type Handler struct {
	store    Store
	producer Enqueuer
	storage  storage.Storage
	summary  SummaryCache
	cfg      *config.Config
	log      zerolog.Logger
}

// NewHandler wires the API. summary may be nil, in which case every
// request reads the database.
func NewHandler(
	store Store,
	producer Enqueuer,
	storage storage.Storage,
	summary SummaryCache,
	cfg *config.Config,
) *Handler {
	return &Handler{
		store:    store,
		producer: producer,
		storage:  storage,
		summary:  summary,
		cfg:      cfg,
		log:      logger.Get(),
	}
}

func (h *Handler) UploadImport(c *gin.Context) {
	ctx := c.Request.Context()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Multipart field 'file' is required"})
		return
	}

	if limit := h.cfg.Server.MaxUploadMB << 20; limit > 0 && fileHeader.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":         "Workbook is too large",
			"max_upload_mb": h.cfg.Server.MaxUploadMB,
		})
		return
	}

	if !workbookExtensions[strings.ToLower(filepath.Ext(fileHeader.Filename))] {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperrors.ErrInvalidFileFormat.Error()})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to open uploaded workbook")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read uploaded workbook")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload"})
		return
	}

	runID := uuid.NewString()
	key := storage.UploadKey(h.cfg.Storage.UploadPrefix, runID, fileHeader.Filename)
	log := h.log.With().Str("run_id", runID).Str("storage_key", key).Logger()

	if err := h.storage.Upload(ctx, key, data); err != nil {
		log.Error().Err(err).Msg("Failed to store workbook")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store workbook"})
		return
	}

	if err := h.store.CreateRun(ctx, runID, h.storage.URI(key)); err != nil {
		log.Error().Err(err).Msg("Failed to create import run")
		h.discard(ctx, log, key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	job := model.ImportJob{RunID: runID, StorageKey: key}
	if err := h.producer.EnqueueImportJob(ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue import job")
		errorMsg := "failed to queue import job: " + err.Error()
		if err := h.store.FinishRun(ctx, runID, model.RunStatusFailed, nil, &errorMsg); err != nil {
			log.Error().Err(err).Msg("Failed to update import run status")
		}
		h.discard(ctx, log, key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue import job"})
		return
	}

	log.Info().Str("filename", fileHeader.Filename).Int("bytes", len(data)).Msg("Import job enqueued")

	c.JSON(http.StatusAccepted, model.ImportAccepted{
		RunID:      runID,
		StorageKey: key,
		Status:     model.RunStatusQueued,
		QueuedAt:   time.Now().UTC(),
	})
}

func (h *Handler) discard(ctx context.Context, log zerolog.Logger, key string) {
	if err := h.storage.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Msg("Failed to delete stored workbook")
	}
}

func (h *Handler) GetImportRun(c *gin.Context) {
	runID := c.Param("run_id")
	if _, err := uuid.Parse(runID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return
	}

	run, err := h.store.GetRun(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, apperrors.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Import run not found"})
			return
		}
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get import run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *Handler) GetSummary(c *gin.Context) {
	var (
		summary *model.Summary
		err     error
	)
	if h.summary != nil {
		summary, err = h.summary.Get(c.Request.Context(), h.store.Summary)
	} else {
		summary, err = h.store.Summary(c.Request.Context())
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get summary")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *Handler) GetStudentStatistic(c *gin.Context) {
	studentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || studentID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid student ID"})
		return
	}

	stat, err := h.store.GetStatistic(c.Request.Context(), studentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrStudentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Statistic not found"})
			return
		}
		h.log.Error().Err(err).Int64("student_id", studentID).Msg("Failed to get statistic")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, stat)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}
