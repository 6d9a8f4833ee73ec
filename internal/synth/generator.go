// Package synth produces deterministic synthetic ad-account history for demos
// and tests.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AngelCh415/adforecast/internal/features"
	"github.com/AngelCh415/adforecast/internal/models"
)

// BaseDate is the first generated day.
var BaseDate = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

type walk struct {
	start, trend, sigma, lo, hi float64
}

var (
	ctrWalk   = walk{start: 0.025, trend: 0.00002, sigma: 0.0005, lo: 0.005, hi: 0.08}
	crWalk    = walk{start: 0.018, trend: 0.00001, sigma: 0.0002, lo: 0.005, hi: 0.05}
	cpcWalk   = walk{start: 15.0, trend: 0.005, sigma: 0.5, lo: 5, hi: 50}
	spendWalk = walk{start: 25000, trend: 100, sigma: 2000, lo: 5000, hi: 100000}
)

const seasonalAmplitude = 0.1

// Generate returns days consecutive records starting at BaseDate. The same
// seed always yields the same series.
func Generate(days int, seed int64) []models.RawRecord {
	if days <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))
	ctr, cr, cpc, spend := ctrWalk.start, crWalk.start, cpcWalk.start, spendWalk.start

	out := make([]models.RawRecord, 0, days)
	for i := 0; i < days; i++ {
		date := BaseDate.AddDate(0, 0, i)

		nextCTR := ctr + ctrWalk.trend + rng.NormFloat64()*ctrWalk.sigma
		nextCR := cr + crWalk.trend + rng.NormFloat64()*crWalk.sigma
		nextCPC := cpc + cpcWalk.trend + rng.NormFloat64()*cpcWalk.sigma
		nextSpend := spend + spendWalk.trend + rng.NormFloat64()*spendWalk.sigma

		season := 1 + seasonalAmplitude*math.Sin(2*math.Pi*float64(features.Weekday(date))/7)
		nextCTR *= season
		nextSpend *= season

		ctr = clip(nextCTR, ctrWalk)
		cr = clip(nextCR, crWalk)
		cpc = clip(nextCPC, cpcWalk)
		spend = clip(nextSpend, spendWalk)

		impressions := spend / cpc
		clicks := impressions * ctr
		conversions := clicks * cr
		revenue := conversions * (1000 + rng.Float64()*2000)

		out = append(out, models.RawRecord{
			Date:        date,
			Spend:       money(spend),
			Impressions: math.Trunc(impressions),
			Clicks:      math.Trunc(clicks),
			Conversions: math.Trunc(conversions),
			Revenue:     money(revenue),
		})
	}
	return out
}

func clip(v float64, w walk) float64 {
	return math.Min(math.Max(v, w.lo), w.hi)
}

func money(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Sink persists a generated series.
type Sink interface {
	WriteRecords(ctx context.Context, recs []models.RawRecord) error
}

// FileSink writes records as an indented JSON array.
type FileSink struct {
	Path string
}

func (s FileSink) WriteRecords(_ context.Context, recs []models.RawRecord) error {
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := os.WriteFile(s.Path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	return nil
}

// ReadFile loads a JSON array of records written by FileSink or any client
// using the same record shape.
func ReadFile(path string) ([]models.RawRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var recs []models.RawRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return recs, nil
}
