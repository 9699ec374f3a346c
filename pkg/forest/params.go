package forest

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var ErrInvalidParam = errors.New("invalid parameter")

// Params are hyperparameters of a random forest regressor.
//
// Zero MaxDepth means unbounded, and zero MaxFeatures means all features.
type Params struct {
	NEstimators     int    `json:"n_estimators"`
	MaxDepth        int    `json:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split"`
	MinSamplesLeaf  int    `json:"min_samples_leaf"`
	MaxFeatures     int    `json:"max_features"`
	Bootstrap       bool   `json:"bootstrap"`
	Seed            uint64 `json:"random_state"`
}

func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
	}
}

// Param names, in the form they are logged.
const (
	KeyNEstimators     = "n_estimators"
	KeyMaxDepth        = "max_depth"
	KeyMinSamplesSplit = "min_samples_split"
	KeyMinSamplesLeaf  = "min_samples_leaf"
	KeyMaxFeatures     = "max_features"
	KeyBootstrap       = "bootstrap"
	KeySeed            = "random_state"
)

func (p Params) Validate() error {
	switch {
	case p.NEstimators < 1:
		return fmt.Errorf("%w: %s should be positive: %d", ErrInvalidParam, KeyNEstimators, p.NEstimators)
	case p.MaxDepth < 0:
		return fmt.Errorf("%w: %s should not be negative: %d", ErrInvalidParam, KeyMaxDepth, p.MaxDepth)
	case p.MinSamplesSplit < 2:
		return fmt.Errorf("%w: %s should be 2 or more: %d", ErrInvalidParam, KeyMinSamplesSplit, p.MinSamplesSplit)
	case p.MinSamplesLeaf < 1:
		return fmt.Errorf("%w: %s should be positive: %d", ErrInvalidParam, KeyMinSamplesLeaf, p.MinSamplesLeaf)
	case p.MaxFeatures < 0:
		return fmt.Errorf("%w: %s should not be negative: %d", ErrInvalidParam, KeyMaxFeatures, p.MaxFeatures)
	}
	return nil
}

// Set updates a parameter by its logged name.
func (p *Params) Set(key, value string) error {
	value = strings.TrimSpace(value)
	atoi := func(dst *int) error {
		if strings.EqualFold(value, "none") && key == KeyMaxDepth {
			*dst = 0
			return nil
		}
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: not an integer", ErrInvalidParam, key, value)
		}
		*dst = v
		return nil
	}

	switch key {
	case KeyNEstimators:
		return atoi(&p.NEstimators)
	case KeyMaxDepth:
		return atoi(&p.MaxDepth)
	case KeyMinSamplesSplit:
		return atoi(&p.MinSamplesSplit)
	case KeyMinSamplesLeaf:
		return atoi(&p.MinSamplesLeaf)
	case KeyMaxFeatures:
		return atoi(&p.MaxFeatures)
	case KeyBootstrap:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: not a boolean", ErrInvalidParam, key, value)
		}
		p.Bootstrap = b
		return nil
	case KeySeed:
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: not an unsigned integer", ErrInvalidParam, key, value)
		}
		p.Seed = v
		return nil
	}
	return fmt.Errorf("%w: unknown parameter %q", ErrInvalidParam, key)
}

// AsMap returns parameters as strings keyed by logged names.
//
// Unbounded max_depth is "None".
func (p Params) AsMap() map[string]string {
	depth := "None"
	if 0 < p.MaxDepth {
		depth = strconv.Itoa(p.MaxDepth)
	}
	return map[string]string{
		KeyNEstimators:     strconv.Itoa(p.NEstimators),
		KeyMaxDepth:        depth,
		KeyMinSamplesSplit: strconv.Itoa(p.MinSamplesSplit),
		KeyMinSamplesLeaf:  strconv.Itoa(p.MinSamplesLeaf),
		KeyMaxFeatures:     strconv.Itoa(p.MaxFeatures),
		KeyBootstrap:       strconv.FormatBool(p.Bootstrap),
		KeySeed:            strconv.FormatUint(p.Seed, 10),
	}
}

func (p Params) String() string {
	m := p.AsMap()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, ", ")
}
