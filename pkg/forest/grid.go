package forest

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/opst/mlreg/pkg/dataset"
	"github.com/opst/mlreg/pkg/utils/combination"
	"gonum.org/v1/gonum/stat"
)

// Grid is a hyperparameter search space: candidate values for each parameter name.
type Grid map[string][]string

// Add parses "KEY=V1,V2,..." and adds the candidates.
func (g Grid) Add(s string) error {
	k, v, ok := strings.Cut(s, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return fmt.Errorf("%w: %q: should be KEY=VALUE[,VALUE...]", ErrInvalidParam, s)
	}
	probe := DefaultParams()
	for _, c := range strings.Split(v, ",") {
		c = strings.TrimSpace(c)
		if err := probe.Set(k, c); err != nil {
			return err
		}
		g[k] = append(g[k], c)
	}
	return nil
}

// Candidates applies each combination of the grid on base, in deterministic order.
func (g Grid) Candidates(base Params) ([]Params, error) {
	if len(g) == 0 {
		return []Params{base}, nil
	}
	combos := combination.MapCartesian(map[string][]string(g))
	ret := make([]Params, 0, len(combos))
	for _, combo := range combos {
		p := base
		for k, v := range combo {
			if err := p.Set(k, v); err != nil {
				return nil, err
			}
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		ret = append(ret, p)
	}
	return ret, nil
}

// Score is the cross validation result of one candidate.
type Score struct {
	Params Params
	MSE    float64 // mean over folds
	StdDev float64 // over folds
}

type SearchResult struct {
	Best   Score
	Scores []Score
}

// GridSearch evaluates every candidate in grid by k-fold cross validation
// and picks the one with the least mean squared error.
//
// Folds are shared by all candidates. Ties are won by the earlier candidate.
func GridSearch(ctx context.Context, x dataset.Frame, y []float64, base Params, grid Grid, k int, seed uint64) (SearchResult, error) {
	candidates, err := grid.Candidates(base)
	if err != nil {
		return SearchResult{}, err
	}
	folds, err := dataset.KFold(len(y), k, seed)
	if err != nil {
		return SearchResult{}, err
	}

	result := SearchResult{Best: Score{MSE: math.Inf(1)}}
	for _, p := range candidates {
		mses := make([]float64, len(folds))
		for i, fold := range folds {
			split := dataset.SelectFold(x, y, fold)
			f, err := Fit(ctx, split.XTrain, split.YTrain, p)
			if err != nil {
				return SearchResult{}, err
			}
			pred, err := f.Predict(split.XTest)
			if err != nil {
				return SearchResult{}, err
			}
			if mses[i], err = MSE(split.YTest, pred); err != nil {
				return SearchResult{}, err
			}
		}
		mean, std := stat.MeanStdDev(mses, nil)
		s := Score{Params: p, MSE: mean, StdDev: std}
		result.Scores = append(result.Scores, s)
		if s.MSE < result.Best.MSE {
			result.Best = s
		}
	}
	return result, nil
}
