// Package forest implements a bagged regression-tree ensemble (random forest)
// for scalar targets.
package forest

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrNoSamples     = errors.New("forest: no training samples")
	ErrFeatureCount  = errors.New("forest: feature count mismatch")
	ErrInvalidForest = errors.New("forest: invalid model")
)

type Config struct {
	NumTrees        int   `json:"num_trees" yaml:"num_trees"`
	MaxDepth        int   `json:"max_depth" yaml:"max_depth"` // 0 = unlimited
	MinSamplesSplit int   `json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	MaxFeatures     int   `json:"max_features" yaml:"max_features"` // 0 = all
	Seed            int64 `json:"seed" yaml:"seed"`
}

func DefaultConfig() Config {
	return Config{
		NumTrees:        100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            42,
	}
}

// Regressor is a fitted forest. It is plain data so it can be encoded and
// decoded without loss.
type Regressor struct {
	NumFeatures int       `json:"num_features"`
	Trees       []Tree    `json:"trees"`
	Importance  []float64 `json:"importance"`
}

// Fit grows cfg.NumTrees trees, each on a bootstrap sample of the rows.
// The same inputs and seed always produce the same forest.
func Fit(x [][]float64, y []float64, cfg Config) (*Regressor, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, ErrNoSamples
	}
	nf := len(x[0])
	for _, row := range x {
		if len(row) != nf {
			return nil, fmt.Errorf("%w: ragged input", ErrFeatureCount)
		}
	}
	if cfg.NumTrees <= 0 {
		cfg.NumTrees = DefaultConfig().NumTrees
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	f := &Regressor{NumFeatures: nf, Trees: make([]Tree, cfg.NumTrees), Importance: make([]float64, nf)}
	n := len(x)
	for t := range f.Trees {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		b := &treeBuilder{x: x, y: y, cfg: cfg, rng: rng, importance: make([]float64, nf)}
		b.build(sample, 0)
		f.Trees[t] = Tree{Nodes: b.nodes}

		// per-tree importances are normalized before averaging
		if total := floats.Sum(b.importance); total > 0 {
			floats.Scale(1/total, b.importance)
			floats.Add(f.Importance, b.importance)
		}
	}
	if total := floats.Sum(f.Importance); total > 0 {
		floats.Scale(1/total, f.Importance)
	}
	return f, nil
}

// Predict averages the tree outputs for one feature vector.
func (f *Regressor) Predict(x []float64) (float64, error) {
	if len(x) != f.NumFeatures {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(x), f.NumFeatures)
	}
	if len(f.Trees) == 0 {
		return 0, ErrInvalidForest
	}
	out := make([]float64, len(f.Trees))
	for i := range f.Trees {
		out[i] = f.Trees[i].predict(x)
	}
	return stat.Mean(out, nil), nil
}

// Validate checks that a decoded forest is walkable.
func (f *Regressor) Validate() error {
	if f.NumFeatures <= 0 || len(f.Trees) == 0 {
		return ErrInvalidForest
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d is empty", ErrInvalidForest, ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature < 0 {
				continue
			}
			if n.Feature >= f.NumFeatures ||
				n.Left <= ni || n.Left >= len(t.Nodes) ||
				n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("%w: tree %d node %d", ErrInvalidForest, ti, ni)
			}
		}
	}
	return nil
}
