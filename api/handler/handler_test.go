package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/rcvscrap/cache"
	"github.com/use-agent/rcvscrap/jobs"
	"github.com/use-agent/rcvscrap/models"
	"github.com/xuri/excelize/v2"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeJobs records Start calls and serves canned state.
type fakeJobs struct {
	mu       sync.Mutex
	started  []jobs.Request
	startErr error
	snap     jobs.Snapshot
	result   *models.ExtractionResult
}

func (f *fakeJobs) Start(req jobs.Request) (jobs.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.snap, f.startErr
	}
	f.started = append(f.started, req)
	f.snap = jobs.Snapshot{ID: "job-1", Status: jobs.StatusRunning, Message: "extraction started", Period: req.Period}
	return f.snap, nil
}

func (f *fakeJobs) Status() jobs.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeJobs) Result() (*models.ExtractionResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.result != nil
}

func sampleResult() *models.ExtractionResult {
	r := models.NewExtractionResult(time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC), &models.Period{Month: 3, Year: 2025})
	r.Categories = []string{"33"}
	r.Records = []*models.Record{
		models.RecordOf("Folio", "1", "Monto", "1000", "Razon Social Emisor", "ACME SpA"),
		models.RecordOf("Folio", "2", "Monto", "2500"),
	}
	return r
}

var fixedNow = func() time.Time { return time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) }

func perform(h gin.HandlerFunc, method, path, route, body string) *httptest.ResponseRecorder {
	r := gin.New()
	r.Handle(method, route, h)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *models.ErrorDetail {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestStartExtraction_EmptyBodyUsesDefaultPeriod(t *testing.T) {
	j := &fakeJobs{}
	w := perform(StartExtraction(j, fixedNow), http.MethodPost, "/extract", "/extract", "")

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, j.started, 1)
	assert.Nil(t, j.started[0].Period)
	assert.Nil(t, j.started[0].Categories)

	var snap jobs.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "job-1", snap.ID)
	assert.Equal(t, jobs.StatusRunning, snap.Status)
}

func TestStartExtraction_PeriodAndCategories(t *testing.T) {
	j := &fakeJobs{}
	w := perform(StartExtraction(j, fixedNow), http.MethodPost, "/extract", "/extract",
		`{"month": 3, "categories": ["61", " 33 ", "33"]}`)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, j.started, 1)
	assert.Equal(t, &models.Period{Month: 3, Year: 2025}, j.started[0].Period)
	assert.Equal(t, []string{"33", "61"}, j.started[0].Categories)
}

func TestStartExtraction_InvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"month":`},
		{"month out of range", `{"month": 13, "year": 2025}`},
		{"year out of range", `{"month": 1, "year": 1999}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &fakeJobs{}
			w := perform(StartExtraction(j, fixedNow), http.MethodPost, "/extract", "/extract", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, models.ErrCodeInvalidInput, decodeError(t, w).Code)
			assert.Empty(t, j.started)
		})
	}
}

func TestStartExtraction_AlreadyRunning(t *testing.T) {
	j := &fakeJobs{
		startErr: models.NewExtractError(models.ErrCodeAlreadyRunning, "an extraction is already running", nil),
	}
	w := perform(StartExtraction(j, fixedNow), http.MethodPost, "/extract", "/extract", "")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, models.ErrCodeAlreadyRunning, decodeError(t, w).Code)
}

func TestStatus(t *testing.T) {
	j := &fakeJobs{snap: jobs.Snapshot{Status: jobs.StatusIdle, Message: "no extraction has run yet"}}
	w := perform(Status(j), http.MethodGet, "/status", "/status", "")

	require.Equal(t, http.StatusOK, w.Code)
	var snap jobs.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, jobs.StatusIdle, snap.Status)
}

func TestRecords(t *testing.T) {
	t.Run("no result yet", func(t *testing.T) {
		w := perform(Records(&fakeJobs{}), http.MethodGet, "/records", "/records", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, models.ErrCodeNotFound, decodeError(t, w).Code)
	})

	t.Run("last result", func(t *testing.T) {
		w := perform(Records(&fakeJobs{result: sampleResult()}), http.MethodGet, "/records", "/records", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool `json:"success"`
			Total   int  `json:"total"`
			Result  struct {
				Records []map[string]string `json:"records"`
			} `json:"result"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, 2, resp.Total)
		require.Len(t, resp.Result.Records, 2)
		assert.Equal(t, "ACME SpA", resp.Result.Records[0]["Razon Social Emisor"])
	})
}

func TestDownloadJSON(t *testing.T) {
	w := perform(DownloadJSON(&fakeJobs{result: sampleResult()}, "out/datos_rcv.json"),
		http.MethodGet, "/download/json", "/download/json", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="datos_rcv.json"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/json"))

	var decoded models.ExtractionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	assert.Len(t, decoded.Records, 2)
}

func TestDownloadExcel(t *testing.T) {
	t.Run("workbook", func(t *testing.T) {
		w := perform(DownloadExcel(&fakeJobs{result: sampleResult()}, "datos_rcv.xlsx"),
			http.MethodGet, "/download/excel", "/download/excel", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))

		f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows(f.GetSheetName(0))
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"Folio", "Monto", "Razon Social Emisor"}, rows[0])
	})

	t.Run("no records", func(t *testing.T) {
		empty := models.NewExtractionResult(fixedNow(), nil)
		w := perform(DownloadExcel(&fakeJobs{result: empty}, "datos_rcv.xlsx"),
			http.MethodGet, "/download/excel", "/download/excel", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("no result", func(t *testing.T) {
		w := perform(DownloadExcel(&fakeJobs{}, "datos_rcv.xlsx"),
			http.MethodGet, "/download/excel", "/download/excel", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHistory(t *testing.T) {
	cc := cache.New(4, time.Hour)
	defer cc.Close()
	result := sampleResult()
	cc.Set(cache.Key(result.Period), result)

	tests := []struct {
		name   string
		period string
		status int
	}{
		{"cached period", "2025-03", http.StatusOK},
		{"not cached", "2025-04", http.StatusNotFound},
		{"default not cached", "default", http.StatusNotFound},
		{"malformed", "march", http.StatusBadRequest},
		{"month out of range", "2025-13", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(History(cc), http.MethodGet, "/history/"+tt.period, "/history/:period", "")
			assert.Equal(t, tt.status, w.Code)
		})
	}

	t.Run("index", func(t *testing.T) {
		w := perform(HistoryIndex(cc), http.MethodGet, "/history", "/history", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"periods":["2025-03"]}`, w.Body.String())
	})
}

func TestHealth(t *testing.T) {
	j := &fakeJobs{snap: jobs.Snapshot{Status: jobs.StatusRunning}}
	w := perform(Health(j, time.Now(), "1.0.0"), http.MethodGet, "/health", "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "busy", resp.Status)
	assert.True(t, resp.Running)
	assert.Equal(t, "1.0.0", resp.Version)
}

func TestInfo_ListsCategories(t *testing.T) {
	w := perform(Info("1.0.0"), http.MethodGet, "/", "/", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.InfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rcvscrap", resp.Name)
	assert.NotEmpty(t, resp.Categories)
	assert.Contains(t, resp.Endpoints, "POST /api/v1/extract")
}

func TestMapErrorToStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{models.ErrCodeAuthFailed, http.StatusUnauthorized},
		{models.ErrCodeTimeout, http.StatusGatewayTimeout},
		{models.ErrCodeNavigation, http.StatusBadGateway},
		{models.ErrCodeElementNotFound, http.StatusBadGateway},
		{models.ErrCodeInvalidInput, http.StatusBadRequest},
		{models.ErrCodeNotFound, http.StatusNotFound},
		{models.ErrCodeAlreadyRunning, http.StatusConflict},
		{models.ErrCodeRateLimited, http.StatusTooManyRequests},
		{models.ErrCodeBrowserCrash, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, mapErrorToStatus(models.NewExtractError(tt.code, "x", nil)))
		})
	}
}
