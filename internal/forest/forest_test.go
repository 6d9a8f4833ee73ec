package forest

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepData() ([][]float64, []float64) {
	var x [][]float64
	var y []float64
	for i := 0; i < 60; i++ {
		v := float64(i)
		x = append(x, []float64{v, float64(i % 3)})
		if i < 30 {
			y = append(y, 10)
		} else {
			y = append(y, 20)
		}
	}
	return x, y
}

func TestFitLearnsStep(t *testing.T) {
	x, y := stepData()
	f, err := Fit(x, y, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, f.Trees, 100)

	lo, err := f.Predict([]float64{5, 2})
	require.NoError(t, err)
	hi, err := f.Predict([]float64{55, 1})
	require.NoError(t, err)
	assert.InDelta(t, 10, lo, 1)
	assert.InDelta(t, 20, hi, 1)

	// the step lives entirely in feature 0
	assert.Greater(t, f.Importance[0], f.Importance[1])
	assert.InDelta(t, 1.0, f.Importance[0]+f.Importance[1], 1e-9)
}

func TestPredictionsStayInTargetRange(t *testing.T) {
	x, y := stepData()
	f, err := Fit(x, y, Config{NumTrees: 10, Seed: 7})
	require.NoError(t, err)
	for _, probe := range [][]float64{{-100, 0}, {1e6, 5}, {29.5, 1}} {
		p, err := f.Predict(probe)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p, 10.0)
		assert.LessOrEqual(t, p, 20.0)
	}
}

func TestFitDeterministic(t *testing.T) {
	x, y := stepData()
	a, err := Fit(x, y, Config{NumTrees: 5, Seed: 42})
	require.NoError(t, err)
	b, err := Fit(x, y, Config{NumTrees: 5, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFitSingleSample(t *testing.T) {
	f, err := Fit([][]float64{{1, 2}}, []float64{3}, DefaultConfig())
	require.NoError(t, err)
	p, err := f.Predict([]float64{9, 9})
	require.NoError(t, err)
	assert.Equal(t, 3.0, p)
}

func TestFitErrors(t *testing.T) {
	_, err := Fit(nil, nil, DefaultConfig())
	require.ErrorIs(t, err, ErrNoSamples)

	_, err = Fit([][]float64{{1, 2}, {1}}, []float64{1, 2}, DefaultConfig())
	require.ErrorIs(t, err, ErrFeatureCount)
}

func TestPredictFeatureCount(t *testing.T) {
	x, y := stepData()
	f, err := Fit(x, y, Config{NumTrees: 3})
	require.NoError(t, err)
	_, err = f.Predict([]float64{1})
	require.ErrorIs(t, err, ErrFeatureCount)
}

func TestJSONRoundTripPredictsIdentically(t *testing.T) {
	x, y := stepData()
	for i := range y {
		y[i] += math.Sin(float64(i)) / 3
	}
	f, err := Fit(x, y, Config{NumTrees: 20, Seed: 1})
	require.NoError(t, err)

	b, err := json.Marshal(f)
	require.NoError(t, err)
	var back Regressor
	require.NoError(t, json.Unmarshal(b, &back))
	require.NoError(t, back.Validate())

	for _, row := range x {
		want, _ := f.Predict(row)
		got, _ := back.Predict(row)
		assert.Equal(t, want, got)
	}
}

func TestValidateRejectsBrokenTree(t *testing.T) {
	f := &Regressor{NumFeatures: 1, Trees: []Tree{{Nodes: []Node{{Feature: 0, Left: 0, Right: 5}}}}}
	require.ErrorIs(t, f.Validate(), ErrInvalidForest)
	require.ErrorIs(t, (&Regressor{}).Validate(), ErrInvalidForest)
}
