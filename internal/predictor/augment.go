package predictor

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/AngelCh415/adforecast/internal/models"
)

const augmentWindow = 30

// fallbacks used when recent history has no signal for a ratio
const (
	defaultCTR            = 0.025
	defaultCR             = 0.018
	defaultCPC            = 15.0
	defaultRevenuePerConv = 2000.0
)

// AugmentHistory turns forecasts back into raw records and appends them to
// history. Counters are derived from the predicted rates; revenue uses the
// average revenue per conversion of the last 30 days.
func AugmentHistory(history []models.RawRecord, forecasts []models.ForecastRecord) ([]models.RawRecord, error) {
	sorted := make([]models.RawRecord, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	recent := sorted[max(0, len(sorted)-augmentWindow):]
	var ctrs, crs, cpcs, rpc []float64
	for _, r := range recent {
		if r.Impressions > 0 && !math.IsNaN(r.Clicks) {
			ctrs = append(ctrs, r.Clicks/r.Impressions)
		}
		if r.Clicks > 0 && !math.IsNaN(r.Conversions) {
			crs = append(crs, r.Conversions/r.Clicks)
		}
		if r.Clicks > 0 && !math.IsNaN(r.Spend) {
			cpcs = append(cpcs, r.Spend/r.Clicks)
		}
		if r.Conversions > 0 && !math.IsNaN(r.Revenue) {
			rpc = append(rpc, r.Revenue/r.Conversions)
		}
	}
	avgCTR := meanOr(ctrs, defaultCTR)
	avgCR := meanOr(crs, defaultCR)
	avgCPC := meanOr(cpcs, defaultCPC)
	avgRPC := meanOr(rpc, defaultRevenuePerConv)

	out := sorted
	for _, f := range forecasts {
		d, err := models.ParseDate(f.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: forecast date: %v", ErrInput, err)
		}
		cpc := positiveOr(f.CPC, avgCPC)
		ctr := positiveOr(f.CTR, avgCTR)
		cr := f.CR
		if cr < 0 || math.IsNaN(cr) {
			cr = avgCR
		}
		clicks := math.Max(1, math.Trunc(f.Spend/cpc))
		impressions := math.Max(1, math.Trunc(clicks/ctr))
		conversions := math.Max(0, math.Trunc(clicks*cr))
		out = append(out, models.RawRecord{
			Date:        d,
			Spend:       round(f.Spend, 2),
			Impressions: impressions,
			Clicks:      clicks,
			Conversions: conversions,
			Revenue:     round(conversions*avgRPC, 2),
		})
	}
	return out, nil
}

func meanOr(xs []float64, def float64) float64 {
	if len(xs) == 0 {
		return def
	}
	return stat.Mean(xs, nil)
}

func positiveOr(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}
