// Package predictor trains the per-metric regressors and rolls them forward
// into multi-day forecasts.
//
// A ModelState is passed explicitly to every call. The package holds no
// locks; callers must not run Train concurrently with PredictNextDays on the
// same state.
package predictor

import (
	"math/rand"
	"time"

	"github.com/AngelCh415/adforecast/internal/features"
	"github.com/AngelCh415/adforecast/internal/forest"
)

const statsTimeLayout = "2006-01-02 15:04:05"

type TrainingStats struct {
	DataPoints int                `json:"data_points"`
	TrainRows  int                `json:"train_rows"`
	TestRows   int                `json:"test_rows"`
	TrainedAt  time.Time          `json:"train_date"`
	MAE        map[string]float64 `json:"accuracy"`
}

// ModelState is the trained unit: one regressor per target, the frozen
// feature columns and training statistics.
type ModelState struct {
	Regressors     map[string]*forest.Regressor
	FeatureColumns []string
	Stats          *TrainingStats
}

// NewModelState returns an empty, untrained state.
func NewModelState() *ModelState { return &ModelState{} }

func (s *ModelState) Trained() bool {
	if s == nil || len(s.FeatureColumns) == 0 || s.Stats == nil {
		return false
	}
	for _, t := range features.Targets {
		if s.Regressors[t] == nil {
			return false
		}
	}
	return true
}

// Snapshot is the statistics view of a model state. IsPlaceholder marks
// simulated values that did not come from a training run.
type Snapshot struct {
	ModelTrained      bool               `json:"model_trained"`
	LastTrained       string             `json:"last_trained,omitempty"`
	DataPoints        int                `json:"data_points"`
	Accuracy          map[string]float64 `json:"accuracy,omitempty"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
	IsPlaceholder     bool               `json:"is_placeholder"`
}

func (s *ModelState) Snapshot() Snapshot {
	if !s.Trained() {
		return Snapshot{}
	}
	acc := make(map[string]float64, len(s.Stats.MAE))
	for t, v := range s.Stats.MAE {
		acc[t+"_mae"] = v
	}
	imp := make(map[string]float64, len(s.FeatureColumns))
	for _, t := range features.Targets {
		r := s.Regressors[t]
		for i, col := range s.FeatureColumns {
			if i < len(r.Importance) {
				imp[col] += r.Importance[i] / float64(len(features.Targets))
			}
		}
	}
	return Snapshot{
		ModelTrained:      true,
		LastTrained:       s.Stats.TrainedAt.Format(statsTimeLayout),
		DataPoints:        s.Stats.DataPoints,
		Accuracy:          acc,
		FeatureImportance: imp,
	}
}

// PlaceholderSnapshot returns simulated statistics for demos of an untrained
// service. The values are random and always flagged as placeholders.
func PlaceholderSnapshot(seed int64) Snapshot {
	rng := rand.New(rand.NewSource(seed))
	u := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }
	return Snapshot{
		Accuracy: map[string]float64{
			"ctr_mae":   round(u(0.001, 0.01), 4),
			"cr_mae":    round(u(0.0005, 0.005), 4),
			"cpc_mae":   round(u(0.5, 3.0), 2),
			"spend_mae": round(u(1000, 5000), 2),
		},
		FeatureImportance: map[string]float64{
			"day_of_week": round(u(0.15, 0.3), 2),
			"ctr_ma_7":    round(u(0.15, 0.3), 2),
			"month":       round(u(0.1, 0.25), 2),
			"spend_ma_7":  round(u(0.15, 0.3), 2),
			"cr_ma_7":     round(u(0.1, 0.2), 2),
		},
		IsPlaceholder: true,
	}
}
