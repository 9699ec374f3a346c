package cmp

// SliceEq reports whether a and b have equal elements in the same order.
func SliceEq[T comparable](a, b []T) bool {
	return SliceEqWith(a, b, func(x, y T) bool { return x == y })
}

func SliceEqWith[T, U any](a []T, b []U, pred func(T, U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !pred(a[i], b[i]) {
			return false
		}
	}
	return true
}

// SliceContentEqWith reports whether a and b have equivalent elements,
// regardless of order. Each element is matched at most once.
func SliceContentEqWith[T, U any](a []T, b []U, pred func(T, U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
OUTER:
	for _, x := range a {
		for j, y := range b {
			if used[j] || !pred(x, y) {
				continue
			}
			used[j] = true
			continue OUTER
		}
		return false
	}
	return true
}

func SliceContentEq[T comparable](a, b []T) bool {
	return SliceContentEqWith(a, b, func(x, y T) bool { return x == y })
}
