package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semenkulikov/Online-school/internal/config"
	"github.com/semenkulikov/Online-school/internal/model"
	"github.com/semenkulikov/Online-school/internal/storage"
	apperrors "github.com/semenkulikov/Online-school/pkg/errors"
)

type fakeStore struct {
	runs    map[string]*model.ImportRun
	stats   map[int64]*model.Statistic
	summary model.Summary
	calls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{runs: map[string]*model.ImportRun{}, stats: map[int64]*model.Statistic{}}
}

func (f *fakeStore) CreateRun(ctx context.Context, id, source string) error {
	f.runs[id] = &model.ImportRun{ID: id, Source: source, Status: model.RunStatusQueued, CreatedAt: time.Now()}
	return nil
}

func (f *fakeStore) FinishRun(ctx context.Context, id string, status model.RunStatus, report *model.RunReport, errorMessage *string) error {
	run := f.runs[id]
	run.Status = status
	run.Report = report
	run.ErrorMessage = errorMessage
	return nil
}

func (f *fakeStore) GetRun(ctx context.Context, id string) (*model.ImportRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, apperrors.ErrRunNotFound
	}
	return run, nil
}

func (f *fakeStore) Summary(ctx context.Context) (*model.Summary, error) {
	f.calls++
	s := f.summary
	return &s, nil
}

func (f *fakeStore) GetStatistic(ctx context.Context, studentID int64) (*model.Statistic, error) {
	stat, ok := f.stats[studentID]
	if !ok {
		return nil, apperrors.ErrStudentNotFound
	}
	return stat, nil
}

type fakeProducer struct {
	jobs []model.ImportJob
	err  error
}

func (f *fakeProducer) EnqueueImportJob(ctx context.Context, job model.ImportJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type testAPI struct {
	router   *gin.Engine
	store    *fakeStore
	producer *fakeProducer
	files    *storage.LocalStorage
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.App.Name = "school-ledger"
	cfg.App.Version = "test"
	cfg.Server.MaxUploadMB = 1
	cfg.Storage.UploadPrefix = "uploads"

	store := newFakeStore()
	producer := &fakeProducer{}
	handler := NewHandler(store, producer, files, nil, cfg)
	return &testAPI{
		router:   NewRouter(handler, nil),
		store:    store,
		producer: producer,
		files:    files,
	}
}

func (a *testAPI) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthCheck(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"school-ledger","version":"test"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUploadImportQueuesJob(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(uploadRequest(t, "march.xlsx", []byte("workbook")))
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted model.ImportAccepted
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.Equal(t, model.RunStatusQueued, accepted.Status)
	assert.Equal(t, "uploads/"+accepted.RunID+"/march.xlsx", accepted.StorageKey)

	require.Len(t, a.producer.jobs, 1)
	assert.Equal(t, accepted.RunID, a.producer.jobs[0].RunID)
	source := a.store.runs[accepted.RunID].Source
	assert.Equal(t, a.files.URI(accepted.StorageKey), source)
	assert.NotContains(t, source, storage.S3Scheme)
	data, err := storage.ReadSource(context.Background(), source, nil)
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(data))

	r, err := a.files.Download(context.Background(), accepted.StorageKey)
	require.NoError(t, err)
	r.Close()
}

func TestUploadImportRejectsBadInput(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(httptest.NewRequest(http.MethodPost, "/api/v1/imports", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(uploadRequest(t, "notes.txt", []byte("text")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(uploadRequest(t, "huge.xlsx", bytes.Repeat([]byte("x"), 2<<20)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	assert.Empty(t, a.producer.jobs)
	assert.Empty(t, a.store.runs)
}

func TestUploadImportQueueFailure(t *testing.T) {
	a := newTestAPI(t)
	a.producer.err = errors.New("redis down")

	w := a.do(uploadRequest(t, "march.xlsx", []byte("workbook")))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	require.Len(t, a.store.runs, 1)
	for _, run := range a.store.runs {
		assert.Equal(t, model.RunStatusFailed, run.Status)
		require.NotNil(t, run.ErrorMessage)
		assert.Contains(t, *run.ErrorMessage, "redis down")

		_, err := os.Stat(run.Source)
		assert.True(t, os.IsNotExist(err))
	}
}

func TestGetImportRun(t *testing.T) {
	a := newTestAPI(t)
	id := "0b6f1f8e-3a34-4b8e-9d7c-2a1d4c5e6f70"
	require.NoError(t, a.store.CreateRun(context.Background(), id, "ledger.xlsx"))

	w := a.do(httptest.NewRequest(http.MethodGet, "/api/v1/imports/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var run model.ImportRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, model.RunStatusQueued, run.Status)

	w = a.do(httptest.NewRequest(http.MethodGet, "/api/v1/imports/9e1f1f8e-3a34-4b8e-9d7c-2a1d4c5e6f70", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(httptest.NewRequest(http.MethodGet, "/api/v1/imports/latest", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSummary(t *testing.T) {
	a := newTestAPI(t)
	a.store.summary = model.Summary{Students: 12, Certificates: map[model.CertificateStatus]int{model.CertificateStatusCompleted: 3}}

	w := a.do(httptest.NewRequest(http.MethodGet, "/api/v1/summary", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var summary model.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 12, summary.Students)
	assert.Equal(t, 3, summary.Certificates[model.CertificateStatusCompleted])
}

func TestGetStudentStatistic(t *testing.T) {
	a := newTestAPI(t)
	a.store.stats[7] = &model.Statistic{ID: 1, StudentID: 7, TotalCourses: 4, Certified: 3}

	w := a.do(httptest.NewRequest(http.MethodGet, "/api/v1/students/7/statistic", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_courses":4`)

	w = a.do(httptest.NewRequest(http.MethodGet, "/api/v1/students/8/statistic", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(httptest.NewRequest(http.MethodGet, "/api/v1/students/abc/statistic", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	a := newTestAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/imports", nil)
	req.Header.Set("Origin", "https://school.example")

	w := a.do(req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RecoveryMiddleware())
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
