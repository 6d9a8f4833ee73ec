package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/store"
	"github.com/AngelCh415/adforecast/internal/utils"
)

// helper: performs the request and returns the status code or a transport error
func fetchURL(c HTTPClient, url string) (int, error) {
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func TestHTTPClientHandles500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(2 * time.Second)
	code, err := fetchURL(client, srv.URL)
	if err != nil {
		t.Fatalf("unexpected network error: %v", err)
	}
	if code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", code)
	}
}

func TestHTTPClientHandlesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(1500 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewHTTPClient(200 * time.Millisecond)
	if _, err := fetchURL(client, srv.URL); err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestRetryRecoversFrom5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[1,2,3]`))
	}))
	defer srv.Close()

	var got []int
	err := GetJSONWithRetry(context.Background(), NewHTTPClient(time.Second), srv.URL, &got, utils.NewBackoff(time.Millisecond, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || calls.Load() != 3 {
		t.Fatalf("got %v after %d calls", got, calls.Load())
	}
}

func TestRetryGivesUpOn404(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	var got []int
	err := GetJSONWithRetry(context.Background(), NewHTTPClient(time.Second), srv.URL, &got, utils.NewBackoff(time.Millisecond, 3))
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestHistoryETLFoldsCampaignsPerDay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"date":"2025-08-01","campaign_id":"C-1","spend":100,"impressions":1000,"clicks":10,"conversions":1,"revenue":300},
			{"date":"2025-08-01","campaign_id":"C-2","spend":"50","impressions":500,"clicks":5,"conversions":0,"revenue":0},
			{"date":"2025-08-01","campaign_id":"C-2","spend":50,"impressions":500,"clicks":5,"conversions":0,"revenue":0},
			{"date":"2025-08-02","campaign_id":"C-1","spend":-5,"impressions":null,"clicks":3,"conversions":0,"revenue":0},
			{"date":"2025-07-30","campaign_id":"C-1","spend":1,"impressions":1,"clicks":1,"conversions":0,"revenue":0},
			{"date":"not a date","campaign_id":"C-9","spend":1}
		]`))
	}))
	defer srv.Close()

	st := store.NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	etl := NewHistoryETL(NewHTTPClient(time.Second), st, log, srv.URL, utils.NewBackoff(time.Millisecond, 1))

	since, _ := time.Parse(models.DateLayout, "2025-08-01")
	n, err := etl.Run(context.Background(), &since)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 days, got %d", n)
	}

	days, _ := st.Range(context.Background(), time.Time{}, time.Time{})
	if len(days) != 2 {
		t.Fatalf("expected 2 stored days, got %d", len(days))
	}
	first := days[0]
	if first.Spend != 150 || first.Impressions != 1500 || first.Clicks != 15 || first.Revenue != 300 {
		t.Fatalf("unexpected fold: %+v", first)
	}
	if days[1].Spend != 0 || days[1].Impressions != 0 || days[1].Clicks != 3 {
		t.Fatalf("negative and missing values should count as zero: %+v", days[1])
	}
}
