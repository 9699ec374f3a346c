package slices

// Map applies mapper to each element.
func Map[T, R any](sli []T, mapper func(T) R) []R {
	ret := make([]R, len(sli))
	for i, v := range sli {
		ret[i] = mapper(v)
	}
	return ret
}

// MapUntilError applies mapper to each element and stops at the first error.
func MapUntilError[T, R any](sli []T, mapper func(T) (R, error)) ([]R, error) {
	ret := make([]R, len(sli))
	for i, v := range sli {
		r, err := mapper(v)
		if err != nil {
			return nil, err
		}
		ret[i] = r
	}
	return ret, nil
}

// Filter returns elements satisfying pred, keeping order.
func Filter[T any](sli []T, pred func(T) bool) []T {
	ret := []T{}
	for _, v := range sli {
		if pred(v) {
			ret = append(ret, v)
		}
	}
	return ret
}
