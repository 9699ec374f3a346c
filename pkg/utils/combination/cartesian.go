package combination

import (
	"cmp"
	"slices"

	xslices "github.com/opst/mlreg/pkg/utils/slices"
)

// MapCartesian chooses one item for each key of basis and generates the cartesian product.
//
// The order of the result is deterministic: keys are sorted, the first key
// varies slowest and items keep their order in basis.
//
//	MapCartesian(map[string][]int{
//		"max_depth":    {5, 10},
//		"n_estimators": {100, 300},
//	})
//
// generates
//
//	[]map[string]int{
//		{"max_depth": 5, "n_estimators": 100},
//		{"max_depth": 5, "n_estimators": 300},
//		{"max_depth": 10, "n_estimators": 100},
//		{"max_depth": 10, "n_estimators": 300},
//	}
//
// If basis is empty or any key has no items, the result is empty.
func MapCartesian[K cmp.Ordered, V any](basis map[K][]V) []map[K]V {
	if len(basis) == 0 {
		return []map[K]V{}
	}

	keys := make([]K, 0, len(basis))
	for k, items := range basis {
		if len(items) == 0 {
			return []map[K]V{}
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	known := []map[K]V{{}}
	for _, k := range keys {
		next := make([]map[K]V, 0, len(known)*len(basis[k]))
		for _, base := range known {
			next = append(next, xslices.Map(basis[k], func(item V) map[K]V {
				m := mapCopy(base)
				m[k] = item
				return m
			})...)
		}
		known = next
	}
	return known
}

func mapCopy[K comparable, V any](base map[K]V) map[K]V {
	m := make(map[K]V, len(base)+1)
	for k, v := range base {
		m[k] = v
	}
	return m
}
