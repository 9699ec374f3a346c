package cmp

import "math"

// ApproxEq reports whether |a - b| <= tol.
func ApproxEq(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func SliceApproxEq(a, b []float64, tol float64) bool {
	return SliceEqWith(a, b, func(x, y float64) bool { return ApproxEq(x, y, tol) })
}
