package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/store"
	"github.com/AngelCh415/adforecast/internal/utils"
)

var ErrNoSource = errors.New("history source not configured")

// HistoryETL fetches per-campaign daily rows, folds them into one record per
// day and writes the days to the store.
type HistoryETL struct {
	c       HTTPClient
	st      store.HistoryStore
	log     *slog.Logger
	url     string
	backoff utils.Backoff
}

func NewHistoryETL(c HTTPClient, st store.HistoryStore, log *slog.Logger, url string, b utils.Backoff) *HistoryETL {
	return &HistoryETL{c: c, st: st, log: log, url: url, backoff: b}
}

type historyResp []struct {
	Date        string     `json:"date"`
	CampaignID  string     `json:"campaign_id"`
	Spend       models.Num `json:"spend"`
	Impressions models.Num `json:"impressions"`
	Clicks      models.Num `json:"clicks"`
	Conversions models.Num `json:"conversions"`
	Revenue     models.Num `json:"revenue"`
}

// Run ingests rows dated on or after since (all rows when since is nil) and
// returns the number of days written.
func (e *HistoryETL) Run(ctx context.Context, since *time.Time) (int, error) {
	if e.url == "" {
		return 0, ErrNoSource
	}
	var resp historyResp
	if err := GetJSONWithRetry(ctx, e.c, e.url, &resp, e.backoff); err != nil {
		return 0, fmt.Errorf("fetch history: %w", err)
	}

	days := map[time.Time]*models.RawRecord{}
	seen := map[string]struct{}{}
	skipped := 0
	for _, r := range resp {
		d, err := models.ParseDate(r.Date)
		if err != nil {
			skipped++
			continue
		}
		if since != nil && d.Before(models.Day(*since)) {
			continue
		}
		// a repeated (date, campaign) row is counted once
		key := d.Format(models.DateLayout) + "|" + strings.TrimSpace(r.CampaignID)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		agg, ok := days[d]
		if !ok {
			agg = &models.RawRecord{Date: d}
			days[d] = agg
		}
		agg.Spend += maxf(float64(r.Spend))
		agg.Impressions += maxf(float64(r.Impressions))
		agg.Clicks += maxf(float64(r.Clicks))
		agg.Conversions += maxf(float64(r.Conversions))
		agg.Revenue += maxf(float64(r.Revenue))
	}

	recs := make([]models.RawRecord, 0, len(days))
	for _, r := range days {
		recs = append(recs, *r)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) })
	if err := e.st.WriteRecords(ctx, recs); err != nil {
		return 0, fmt.Errorf("store history: %w", err)
	}

	e.log.Info("ingest complete", slog.Int("rows", len(resp)), slog.Int("days", len(recs)), slog.Int("skipped", skipped))
	return len(recs), nil
}

// missing and negative values contribute nothing
func maxf(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	return f
}
