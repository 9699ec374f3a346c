// Package forest implements a random forest regressor.
//
// Trees are CART regression trees grown on bootstrap samples, and the forest
// predicts the mean of its trees. Fitting is deterministic for a fixed Params.Seed.
package forest

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"slices"

	"github.com/opst/mlreg/pkg/dataset"
	"golang.org/x/sync/errgroup"
)

var ErrNotFitted = errors.New("forest is not fitted")

// Forest is a fitted random forest regressor.
type Forest struct {
	Params   Params   `json:"params"`
	Features []string `json:"features"`
	Trees    []*Tree  `json:"trees"`
}

// Fit grows a forest on x and y.
//
// Trees are fitted concurrently, at most GOMAXPROCS at once.
// Each tree is given its own seed derived in order from p.Seed,
// so the result does not depend on scheduling.
func Fit(ctx context.Context, x dataset.Frame, y []float64, p Params) (*Forest, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := x.Validate(); err != nil {
		return nil, err
	}
	if x.Len() != len(y) {
		return nil, fmt.Errorf("%w: %d samples for %d labels", dataset.ErrShapeUnmatch, x.Len(), len(y))
	}
	if x.Len() == 0 || len(x.Columns) == 0 {
		return nil, fmt.Errorf("%w: no samples or no features", dataset.ErrShapeUnmatch)
	}

	master := rand.New(rand.NewPCG(p.Seed, 0x6d6c726567))
	seeds := make([]uint64, p.NEstimators)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	trees := make([]*Tree, p.NEstimators)
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(seeds[i], uint64(i)))
			trees[i] = fitTree(x.Rows, y, sample(len(y), p.Bootstrap, rng), p, rng)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return &Forest{Params: p, Features: slices.Clone(x.Columns), Trees: trees}, nil
}

func sample(n int, bootstrap bool, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		if bootstrap {
			idx[i] = rng.IntN(n)
		} else {
			idx[i] = i
		}
	}
	return idx
}

// Predict returns predictions for each row of x.
//
// Columns of x are matched with the features by name; extra columns are ignored.
func (f *Forest) Predict(x dataset.Frame) ([]float64, error) {
	if f == nil || len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}
	x, err := x.Reorder(f.Features)
	if err != nil {
		return nil, err
	}
	if err := x.Validate(); err != nil {
		return nil, err
	}

	pred := make([]float64, x.Len())
	for i, row := range x.Rows {
		sum := 0.0
		for _, t := range f.Trees {
			sum += t.predict(row)
		}
		pred[i] = sum / float64(len(f.Trees))
	}
	return pred, nil
}

// Validate checks that node arrays are consistent, for forests read from files.
func (f *Forest) Validate() error {
	if len(f.Trees) == 0 {
		return ErrNotFitted
	}
	nf := len(f.Features)
	for ti, t := range f.Trees {
		if t == nil {
			return fmt.Errorf("tree #%d: missing", ti)
		}
		n := t.Len()
		if n == 0 || len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n || len(t.Value) != n {
			return fmt.Errorf("tree #%d: broken node arrays", ti)
		}
		for i := range n {
			if t.Feature[i] == leaf {
				continue
			}
			if t.Feature[i] < 0 || nf <= t.Feature[i] {
				return fmt.Errorf("tree #%d: node #%d: feature out of range: %d", ti, i, t.Feature[i])
			}
			// children are always added after their parent.
			if t.Left[i] <= i || n <= t.Left[i] || t.Right[i] <= i || n <= t.Right[i] {
				return fmt.Errorf("tree #%d: node #%d: child out of range", ti, i)
			}
		}
	}
	return nil
}
