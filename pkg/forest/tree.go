package forest

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const leaf = -1

// Tree is a regression tree stored as flat node arrays.
//
// Node 0 is the root. For node i, Feature[i] == -1 means a leaf predicting Value[i].
// Otherwise samples with x[Feature[i]] <= Threshold[i] go to Left[i], and the others go to Right[i].
type Tree struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Value     []float64 `json:"value"`
}

func (t *Tree) Len() int {
	return len(t.Feature)
}

func (t *Tree) predict(x []float64) float64 {
	n := 0
	for t.Feature[n] != leaf {
		if x[t.Feature[n]] <= t.Threshold[n] {
			n = t.Left[n]
		} else {
			n = t.Right[n]
		}
	}
	return t.Value[n]
}

func (t *Tree) add(value float64) int {
	t.Feature = append(t.Feature, leaf)
	t.Threshold = append(t.Threshold, 0)
	t.Left = append(t.Left, leaf)
	t.Right = append(t.Right, leaf)
	t.Value = append(t.Value, value)
	return len(t.Feature) - 1
}

type builder struct {
	x      [][]float64
	y      []float64
	params Params
	rng    *rand.Rand
	tree   *Tree

	// scratch buffers
	vals []float64
	inds []int
}

// fitTree builds a CART regression tree on samples at idx, splitting on variance reduction.
func fitTree(x [][]float64, y []float64, idx []int, p Params, rng *rand.Rand) *Tree {
	b := &builder{
		x: x, y: y, params: p, rng: rng, tree: &Tree{},
		vals: make([]float64, len(idx)),
		inds: make([]int, len(idx)),
	}
	b.grow(idx, 0)
	return b.tree
}

func (b *builder) mean(idx []int) float64 {
	ys := make([]float64, len(idx))
	for i, n := range idx {
		ys[i] = b.y[n]
	}
	return stat.Mean(ys, nil)
}

func (b *builder) grow(idx []int, depth int) int {
	node := b.tree.add(b.mean(idx))

	if len(idx) < b.params.MinSamplesSplit || len(idx) < 2*b.params.MinSamplesLeaf {
		return node
	}
	if 0 < b.params.MaxDepth && b.params.MaxDepth <= depth {
		return node
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return node
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, n := range idx {
		if b.x[n][feature] <= threshold {
			left = append(left, n)
		} else {
			right = append(right, n)
		}
	}

	if len(left) == 0 || len(right) == 0 {
		return node
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.Feature[node] = feature
	b.tree.Threshold[node] = threshold
	b.tree.Left[node] = l
	b.tree.Right[node] = r
	return node
}

func (b *builder) candidates() []int {
	nf := len(b.x[0])
	k := b.params.MaxFeatures
	if k <= 0 || nf <= k {
		all := make([]int, nf)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(nf)[:k]
}

// bestSplit finds the split which minimizes the sum of squared errors of both children.
func (b *builder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	minLeaf := b.params.MinSamplesLeaf
	vals := b.vals[:n]
	inds := b.inds[:n]

	var total, totalSq float64
	for _, s := range idx {
		total += b.y[s]
		totalSq += b.y[s] * b.y[s]
	}
	parentSSE := totalSq - total*total/float64(n)

	bestFeature, bestThreshold := -1, 0.0
	bestSSE := parentSSE
	for _, f := range b.candidates() {
		for i, s := range idx {
			vals[i] = b.x[s][f]
		}
		floats.Argsort(vals, inds)

		var lsum, lsq float64
		for i := 0; i < n-1; i++ {
			yi := b.y[idx[inds[i]]]
			lsum += yi
			lsq += yi * yi

			nl := i + 1
			nr := n - nl
			if nl < minLeaf {
				continue
			}
			if nr < minLeaf {
				break
			}
			if vals[i] == vals[i+1] {
				continue
			}
			rsum := total - lsum
			rsq := totalSq - lsq
			sse := (lsq - lsum*lsum/float64(nl)) + (rsq - rsum*rsum/float64(nr))
			if sse < bestSSE-1e-12 {
				bestSSE = sse
				bestFeature = f
				bestThreshold = vals[i] + (vals[i+1]-vals[i])/2
				if bestThreshold == vals[i+1] {
					bestThreshold = vals[i]
				}
			}
		}
	}
	return bestFeature, bestThreshold, 0 <= bestFeature
}
