// Package metrics serves stored history with its derived daily ratios.
package metrics

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/store"
)

type Service struct{ st store.HistoryStore }

func NewService(st store.HistoryStore) *Service { return &Service{st: st} }

// Daily answers GET /history/daily. from and to are optional YYYY-MM-DD
// bounds; limit defaults to 100 and is capped at 1000.
func (s *Service) Daily(ctx context.Context, v url.Values) ([]models.DailyMetrics, error) {
	from, err := dateParam(v, "from")
	if err != nil {
		return nil, err
	}
	to, err := dateParam(v, "to")
	if err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("to %s is before from %s", v.Get("to"), v.Get("from"))
	}
	limit := atoiDef(v.Get("limit"), 100)
	offset := atoiDef(v.Get("offset"), 0)

	recs, err := s.st.Range(ctx, from, to)
	if err != nil {
		return nil, err
	}
	rows := toDailyMetrics(recs)
	limit, offset = clampLimitOffset(limit, offset, len(rows))
	return paginate(rows, limit, offset), nil
}

func dateParam(v url.Values, key string) (time.Time, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad %s date %q (want YYYY-MM-DD)", key, s)
	}
	return t, nil
}

func toDailyMetrics(recs []models.RawRecord) []models.DailyMetrics {
	rows := make([]models.DailyMetrics, 0, len(recs))
	for _, r := range recs {
		spend, imp, clicks, conv, rev := orZero(r.Spend), orZero(r.Impressions), orZero(r.Clicks), orZero(r.Conversions), orZero(r.Revenue)
		rows = append(rows, models.DailyMetrics{
			Date:        r.Date.Format(models.DateLayout),
			Spend:       round2(spend),
			Impressions: int(imp),
			Clicks:      int(clicks),
			Conversions: int(conv),
			Revenue:     round2(rev),
			CTR:         round3(safeDivF(clicks, imp)),
			CR:          round3(safeDivF(conv, clicks)),
			CPC:         round3(safeDivF(spend, clicks)),
			ROAS:        round2(safeDivF(rev, spend)),
		})
	}
	return rows
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func atoiDef(s string, d int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}
func clampLimitOffset(limit, offset, n int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = n
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset > n {
		offset = n
	}
	return limit, offset
}
func safeDivF(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
func orZero(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return f
}
func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round3(f float64) float64 { return math.Round(f*1000) / 1000 }
