// Package advisor turns recent account history into short budget
// recommendations.
package advisor

import (
	"fmt"
	"math"

	"github.com/AngelCh415/adforecast/internal/features"
	"github.com/AngelCh415/adforecast/internal/models"
)

const (
	window     = 14
	ctrLift    = 1.1
	spendSurge = 1.5
	cpcCeiling = 25.0
)

type Recommendation struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// Advise inspects the last day of history against the average of the latest
// 14 days and appends the standing advice for a forecast of days.
func Advise(history []models.RawRecord, days int) []Recommendation {
	var out []Recommendation
	if tbl, err := features.Derive(history); err == nil && len(tbl) > 0 {
		recent := tbl[max(0, len(tbl)-window):]
		last := recent[len(recent)-1]
		avgCTR := mean(recent, func(r features.Row) float64 { return r.CTR })
		avgSpend := mean(recent, func(r features.Row) float64 { return r.Spend })

		if orZero(last.CTR) > avgCTR*ctrLift {
			out = append(out, Recommendation{
				Type:     "positive",
				Message:  "CTR has been high recently. Consider raising the budget to scale the campaigns that work.",
				Priority: "high",
			})
		}
		if orZero(last.Spend) > avgSpend*spendSurge {
			out = append(out, Recommendation{
				Type:     "warning",
				Message:  "Spend grew sharply. Check how the new campaigns perform.",
				Priority: "medium",
			})
		}
		if orZero(last.CPC) > cpcCeiling {
			out = append(out, Recommendation{
				Type:     "negative",
				Message:  "Cost per click is high. Consider tightening targeting or refreshing creatives.",
				Priority: "high",
			})
		}
	}
	return append(out,
		Recommendation{
			Type:     "info",
			Message:  fmt.Sprintf("Forecast for %d days is ready. Keep an eye on the predicted trends.", days),
			Priority: "low",
		},
		Recommendation{
			Type:     "info",
			Message:  "Retrain the model regularly to keep forecasts accurate.",
			Priority: "medium",
		},
	)
}

// missing values count as zero
func mean(rows []features.Row, f func(features.Row) float64) float64 {
	var sum float64
	for _, r := range rows {
		sum += orZero(f(r))
	}
	return sum / float64(len(rows))
}

func orZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
