package predictor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/AngelCh415/adforecast/internal/features"
	"github.com/AngelCh415/adforecast/internal/forest"
	"github.com/AngelCh415/adforecast/internal/models"
)

type TrainConfig struct {
	Forest       forest.Config
	TestFraction float64
	SplitSeed    int64
	Now          func() time.Time
	Logger       *slog.Logger
}

func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Forest:       forest.DefaultConfig(),
		TestFraction: 0.2,
		SplitSeed:    42,
		Now:          time.Now,
	}
}

// Train fits one regressor per target on records and replaces *state with
// the result. On any error state is left untouched.
func Train(state *ModelState, records []models.RawRecord, cfg TrainConfig) (TrainingStats, error) {
	if state == nil {
		return TrainingStats{}, fmt.Errorf("%w: nil model state", ErrInput)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = 0.2
	}

	tbl, err := features.Derive(records)
	if err != nil {
		return TrainingStats{}, inputErr(err)
	}
	cols := features.FeatureColumns()
	if len(cols) == 0 {
		return TrainingStats{}, fmt.Errorf("%w: no feature columns", ErrInput)
	}

	var x [][]float64
	y := make(map[string][]float64, len(features.Targets))
	for i := range tbl {
		r := &tbl[i]
		if !r.Complete(cols) || !r.Complete(features.Targets) {
			continue
		}
		v, err := r.Vector(cols)
		if err != nil {
			return TrainingStats{}, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
		}
		x = append(x, v)
		for _, t := range features.Targets {
			tv, _ := r.Get(t)
			y[t] = append(y[t], tv)
		}
	}
	n := len(x)
	if n < 2 {
		return TrainingStats{}, fmt.Errorf("%w: %d usable rows after cleaning, need at least 2", ErrInput, n)
	}

	nTest := int(math.Ceil(cfg.TestFraction * float64(n)))
	nTest = min(max(nTest, 1), n-1)
	perm := rand.New(rand.NewSource(cfg.SplitSeed)).Perm(n)
	testIdx, trainIdx := perm[:nTest], perm[nTest:]

	log.Info("training started",
		slog.Int("records", len(records)),
		slog.Int("train_rows", len(trainIdx)),
		slog.Int("test_rows", len(testIdx)))

	fresh := &ModelState{
		Regressors:     make(map[string]*forest.Regressor, len(features.Targets)),
		FeatureColumns: cols,
	}
	mae := make(map[string]float64, len(features.Targets))
	xTrain, xTest := pick(x, trainIdx), pick(x, testIdx)
	for _, t := range features.Targets {
		reg, err := forest.Fit(xTrain, pickf(y[t], trainIdx), cfg.Forest)
		if err != nil {
			return TrainingStats{}, fmt.Errorf("%w: fit %s: %v", ErrInput, t, err)
		}
		pred := make([]float64, len(xTest))
		for i, row := range xTest {
			if pred[i], err = reg.Predict(row); err != nil {
				return TrainingStats{}, fmt.Errorf("%w: evaluate %s: %v", ErrShapeMismatch, t, err)
			}
		}
		actual := pickf(y[t], testIdx)
		mae[t] = floats.Distance(pred, actual, 1) / float64(len(actual))
		fresh.Regressors[t] = reg
		log.Debug("target fitted", slog.String("target", t), slog.Float64("mae", mae[t]))
	}

	stats := TrainingStats{
		DataPoints: len(records),
		TrainRows:  len(trainIdx),
		TestRows:   len(testIdx),
		TrainedAt:  cfg.Now(),
		MAE:        mae,
	}
	fresh.Stats = &stats
	*state = *fresh

	log.Info("training complete", slog.Any("mae", mae))
	return stats, nil
}

func inputErr(err error) error {
	if errors.Is(err, features.ErrEmpty) {
		return fmt.Errorf("%w: %v", ErrInput, err)
	}
	return fmt.Errorf("%w: derive features: %v", ErrInput, err)
}

func pick(x [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

func pickf(x []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

func round(f float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(f*p) / p
}
