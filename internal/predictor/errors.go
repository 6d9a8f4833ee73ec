package predictor

import "errors"

// Every error returned by this package wraps exactly one of these kinds.
var (
	// ErrInput: empty or unusable record sequence, bad horizon.
	ErrInput = errors.New("invalid input")
	// ErrUntrained: prediction or export against a model state that was never trained.
	ErrUntrained = errors.New("model is not trained")
	// ErrPersistence: a model blob is absent, unreadable or structurally incompatible.
	ErrPersistence = errors.New("model blob unusable")
	// ErrShapeMismatch: the frozen feature columns do not fit the derived input.
	ErrShapeMismatch = errors.New("feature shape mismatch")
)
