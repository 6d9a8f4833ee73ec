package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/AngelCh415/adforecast/internal/ingest"
	"github.com/AngelCh415/adforecast/internal/metrics"
	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/predictor"
	"github.com/AngelCh415/adforecast/internal/service"
	"github.com/AngelCh415/adforecast/internal/store"
	"github.com/AngelCh415/adforecast/internal/synth"
	"github.com/AngelCh415/adforecast/internal/telemetry"
	"github.com/AngelCh415/adforecast/internal/utils"
)

type testServer struct {
	srv   *httptest.Server
	store *store.MemoryStore
}

func newTestServer(t *testing.T, historyURL string, limiter *rate.Limiter) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	tm := telemetry.NewMetrics(reg)
	st := store.NewMemoryStore()

	cfg := predictor.DefaultTrainConfig()
	cfg.Forest.NumTrees = 10
	svc := service.New(service.Options{Train: cfg, History: st, Metrics: tm, Placeholder: true, Logger: log})
	etl := ingest.NewHistoryETL(ingest.NewHTTPClient(time.Second), st, log, historyURL, utils.NewBackoff(time.Millisecond, 1))

	h := NewRouter(log, Deps{
		Forecast:     svc,
		ETL:          etl,
		History:      metrics.NewService(st),
		Telemetry:    tm,
		Gatherer:     reg,
		TrainLimiter: limiter,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, store: st}
}

func (ts *testServer) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(ts.srv.URL+path, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(ts.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func TestHealthAndStatsBeforeTraining(t *testing.T) {
	ts := newTestServer(t, "", nil)

	resp, body := ts.get(t, "/api/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"model_loaded": false`)

	resp, body = ts.get(t, "/api/model-stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"is_placeholder": true`)

	resp, _ = ts.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestPredictUntrainedIsConflict(t *testing.T) {
	ts := newTestServer(t, "", nil)
	resp, out := ts.post(t, "/api/predict", map[string]any{"historical_data": synth.Generate(5, 1)})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.NotEmpty(t, out["error"])
}

func TestTrainPredictRecommend(t *testing.T) {
	ts := newTestServer(t, "", nil)
	hist := synth.Generate(50, 42)

	resp, out := ts.post(t, "/api/train", map[string]any{"historical_data": hist})
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Equal(t, "success", out["status"])
	assert.EqualValues(t, 50, out["data_points"])

	resp, out = ts.post(t, "/api/predict", map[string]any{"historical_data": hist})
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.EqualValues(t, 7, out["days_ahead"])
	assert.Len(t, out["predictions"], 7)

	resp, out = ts.post(t, "/api/recommendations", map[string]any{"historical_data": hist, "days_ahead": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.EqualValues(t, 3, out["days_ahead"])
	assert.NotEmpty(t, out["recommendations"])

	resp, body := ts.get(t, "/api/model-stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"is_placeholder": false`)
	assert.Contains(t, string(body), `"spend_mae"`)

	resp, body = ts.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `adforecast_train_total{outcome="ok"} 1`)
}

func TestRequestValidation(t *testing.T) {
	ts := newTestServer(t, "", nil)

	cases := []struct {
		path string
		body any
	}{
		{"/api/train", `{not json`},
		{"/api/train", map[string]any{}},
		{"/api/train", map[string]any{"historical_data": []any{}}},
		{"/api/predict", map[string]any{"historical_data": []any{}}},
		{"/api/predict", map[string]any{"historical_data": synth.Generate(3, 1), "days_ahead": 0}},
		{"/api/recommendations", map[string]any{"days_ahead": 3}},
	}
	for _, c := range cases {
		resp, out := ts.post(t, c.path, c.body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%s %v -> %v", c.path, c.body, out)
	}
}

func TestTrainFromStoreWithoutHistory(t *testing.T) {
	ts := newTestServer(t, "", nil)
	resp, _ := ts.post(t, "/api/train", map[string]any{"use_store": true})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestTrainRateLimit(t *testing.T) {
	ts := newTestServer(t, "", rate.NewLimiter(rate.Every(time.Hour), 1))
	hist := synth.Generate(30, 1)

	resp, _ := ts.post(t, "/api/train", map[string]any{"historical_data": hist})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = ts.post(t, "/api/train", map[string]any{"historical_data": hist})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestIngestThenHistory(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(synth.Generate(40, 9))
	}))
	defer src.Close()
	ts := newTestServer(t, src.URL, nil)

	resp, out := ts.post(t, "/ingest/run?since=2023-01-11", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.EqualValues(t, 30, out["days"])

	resp, body := ts.get(t, "/history/daily?from=2023-01-11&limit=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rows []models.DailyMetrics
	require.NoError(t, json.Unmarshal(body, &rows))
	require.Len(t, rows, 5)
	assert.Equal(t, "2023-01-11", rows[0].Date)

	resp, out = ts.post(t, "/api/train", map[string]any{"use_store": true})
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.EqualValues(t, 30, out["data_points"])

	resp, out = ts.post(t, "/history/extend?days=3", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.EqualValues(t, 3, out["appended"])
	assert.Equal(t, 33, ts.store.Len())
}

func TestIngestErrors(t *testing.T) {
	ts := newTestServer(t, "", nil)
	resp, _ := ts.post(t, "/ingest/run", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = ts.post(t, "/ingest/run?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := ts.get(t, "/history/daily?from=nope")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "bad from date"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(predictor.ErrShapeMismatch))
	assert.Equal(t, http.StatusInternalServerError, statusFor(predictor.ErrPersistence))
	assert.Equal(t, http.StatusBadGateway, statusFor(&ingest.StatusError{Code: 500}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(context.DeadlineExceeded))
}
