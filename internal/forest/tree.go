package forest

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Node is one CART node stored in a flat slice. Leaves have Feature == -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeBuilder struct {
	x          [][]float64
	y          []float64
	cfg        Config
	rng        *rand.Rand
	nodes      []Node
	importance []float64
}

// build grows the subtree for idx and returns its node index.
func (b *treeBuilder) build(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Value: b.mean(idx)})

	if len(idx) < b.cfg.MinSamplesSplit || len(idx) < 2*b.cfg.MinSamplesLeaf {
		return id
	}
	if b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth {
		return id
	}
	feat, thr, gain, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.importance[feat] += gain

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id].Feature = feat
	b.nodes[id].Threshold = thr
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

func (b *treeBuilder) mean(idx []int) float64 {
	vals := make([]float64, len(idx))
	for k, i := range idx {
		vals[k] = b.y[i]
	}
	return stat.Mean(vals, nil)
}

// bestSplit searches the candidate features for the threshold with the
// largest reduction in squared error.
func (b *treeBuilder) bestSplit(idx []int) (feat int, thr, gain float64, ok bool) {
	n := len(idx)
	var sum, sumSq float64
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	parent := sumSq - sum*sum/float64(n)
	if parent <= 1e-12 {
		return 0, 0, 0, false
	}

	nf := len(b.x[idx[0]])
	candidates := make([]int, nf)
	for f := range candidates {
		candidates[f] = f
	}
	if b.cfg.MaxFeatures > 0 && b.cfg.MaxFeatures < nf {
		candidates = b.rng.Perm(nf)[:b.cfg.MaxFeatures]
	}

	order := make([]int, n)
	minLeaf := max(1, b.cfg.MinSamplesLeaf)
	for _, f := range candidates {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool { return b.x[order[a]][f] < b.x[order[c]][f] })

		var ls, lsq float64
		for k := 1; k < n; k++ {
			yi := b.y[order[k-1]]
			ls += yi
			lsq += yi * yi
			if k < minLeaf || n-k < minLeaf {
				continue
			}
			lo, hi := b.x[order[k-1]][f], b.x[order[k]][f]
			if lo == hi {
				continue
			}
			nl, nr := float64(k), float64(n-k)
			rs, rsq := sum-ls, sumSq-lsq
			sse := (lsq - ls*ls/nl) + (rsq - rs*rs/nr)
			g := parent - sse
			if g > gain+1e-12 {
				t := lo + (hi-lo)/2
				if t >= hi {
					t = lo
				}
				feat, thr, gain, ok = f, t, g, true
			}
		}
	}
	return feat, thr, gain, ok
}
