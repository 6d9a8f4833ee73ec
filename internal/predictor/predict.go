package predictor

import (
	"fmt"
	"math"
	"slices"

	"github.com/AngelCh415/adforecast/internal/features"
	"github.com/AngelCh415/adforecast/internal/models"
)

// Confidence bounds are fixed multiplicative offsets, not model intervals.
const (
	rateBand     = 0.10
	spendBandLow = 0.15
	spendBandUp  = 0.15
)

// PredictNextDays forecasts the horizon days that follow the last date in
// history.
//
// The last derived row seeds the rollout and must have every feature column
// set. Each step moves the candidate row
// to the next calendar day, predicts the four targets from the frozen feature
// columns and writes the predictions back into the candidate. Rolling means
// and pct-change columns are not recomputed from predicted days; they stay at
// their last historical values.
func PredictNextDays(state *ModelState, history []models.RawRecord, horizon int) ([]models.ForecastRecord, error) {
	if !state.Trained() {
		return nil, ErrUntrained
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: historical data must not be empty", ErrInput)
	}
	if horizon < 1 {
		return nil, fmt.Errorf("%w: horizon must be at least 1, got %d", ErrInput, horizon)
	}
	if err := checkShape(state); err != nil {
		return nil, err
	}

	tbl, err := features.Derive(history)
	if err != nil {
		return nil, inputErr(err)
	}
	if len(tbl) == 0 {
		return nil, fmt.Errorf("%w: no feature rows derived", ErrInput)
	}

	seed := tbl[len(tbl)-1]
	if !seed.Complete(state.FeatureColumns) {
		return nil, fmt.Errorf("%w: latest row %s has missing features", ErrInput, seed.Date.Format(models.DateLayout))
	}
	base := seed.Date
	candidate := seed
	out := make([]models.ForecastRecord, 0, horizon)
	for i := 1; i <= horizon; i++ {
		next := base.AddDate(0, 0, i)
		features.SetCalendar(&candidate, next)

		x, err := candidate.Vector(state.FeatureColumns)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
		}
		p := make(map[string]float64, len(features.Targets))
		for _, t := range features.Targets {
			v, err := state.Regressors[t].Predict(x)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrShapeMismatch, t, err)
			}
			p[t] = v
		}
		out = append(out, withBounds(models.ForecastRecord{
			Date:  next.Format(models.DateLayout),
			CTR:   p["ctr"],
			CR:    p["cr"],
			CPC:   p["cpc"],
			Spend: p["spend"],
		}))

		candidate.CTR = p["ctr"]
		candidate.CR = p["cr"]
		candidate.CPC = p["cpc"]
		candidate.Spend = p["spend"]
	}
	return out, nil
}

func withBounds(f models.ForecastRecord) models.ForecastRecord {
	f.CTRLower = math.Max(0, f.CTR*(1-rateBand))
	f.CTRUpper = f.CTR * (1 + rateBand)
	f.SpendLower = math.Max(0, f.Spend*(1-spendBandLow))
	f.SpendUpper = f.Spend * (1 + spendBandUp)
	return f
}

// checkShape rejects a state whose frozen columns are not the columns the
// deriver produces, or whose regressors expect a different width.
func checkShape(state *ModelState) error {
	want := features.FeatureColumns()
	if !slices.Equal(state.FeatureColumns, want) {
		return fmt.Errorf("%w: model expects %v, input provides %v", ErrShapeMismatch, state.FeatureColumns, want)
	}
	for _, t := range features.Targets {
		if n := state.Regressors[t].NumFeatures; n != len(want) {
			return fmt.Errorf("%w: %s regressor expects %d features, input provides %d", ErrShapeMismatch, t, n, len(want))
		}
	}
	return nil
}
