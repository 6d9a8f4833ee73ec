package predictor

import (
	"encoding/json"
	"fmt"

	"github.com/AngelCh415/adforecast/internal/features"
	"github.com/AngelCh415/adforecast/internal/forest"
)

const blobVersion = 1

type stateBlob struct {
	Version        int                          `json:"version"`
	Regressors     map[string]*forest.Regressor `json:"models"`
	FeatureColumns []string                     `json:"feature_columns"`
	Stats          *TrainingStats               `json:"training_stats"`
}

// MarshalState encodes a trained state into an opaque blob.
func MarshalState(state *ModelState) ([]byte, error) {
	if !state.Trained() {
		return nil, fmt.Errorf("%w: cannot export an untrained model", ErrUntrained)
	}
	return json.Marshal(stateBlob{
		Version:        blobVersion,
		Regressors:     state.Regressors,
		FeatureColumns: state.FeatureColumns,
		Stats:          state.Stats,
	})
}

// UnmarshalState restores a state produced by MarshalState. Any missing or
// inconsistent part is reported as ErrPersistence.
func UnmarshalState(blob []byte) (*ModelState, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty blob", ErrPersistence)
	}
	var b stateBlob
	if err := json.Unmarshal(blob, &b); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrPersistence, err)
	}
	if b.Version != blobVersion {
		return nil, fmt.Errorf("%w: unsupported blob version %d", ErrPersistence, b.Version)
	}
	if len(b.FeatureColumns) == 0 {
		return nil, fmt.Errorf("%w: missing feature columns", ErrPersistence)
	}
	if b.Stats == nil {
		return nil, fmt.Errorf("%w: missing training statistics", ErrPersistence)
	}
	for _, t := range features.Targets {
		r := b.Regressors[t]
		if r == nil {
			return nil, fmt.Errorf("%w: missing %s regressor", ErrPersistence, t)
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s regressor: %v", ErrPersistence, t, err)
		}
		if r.NumFeatures != len(b.FeatureColumns) {
			return nil, fmt.Errorf("%w: %s regressor has %d inputs for %d columns", ErrPersistence, t, r.NumFeatures, len(b.FeatureColumns))
		}
	}
	return &ModelState{
		Regressors:     b.Regressors,
		FeatureColumns: b.FeatureColumns,
		Stats:          b.Stats,
	}, nil
}
