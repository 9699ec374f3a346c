package forest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func checkLen(y, pred []float64) error {
	if len(y) != len(pred) || len(y) == 0 {
		return fmt.Errorf("cannot compare %d labels with %d predictions", len(y), len(pred))
	}
	return nil
}

// MSE is the mean squared error.
func MSE(y, pred []float64) (float64, error) {
	if err := checkLen(y, pred); err != nil {
		return 0, err
	}
	d := floats.Distance(y, pred, 2)
	return d * d / float64(len(y)), nil
}

func RMSE(y, pred []float64) (float64, error) {
	mse, err := MSE(y, pred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE is the mean absolute error.
func MAE(y, pred []float64) (float64, error) {
	if err := checkLen(y, pred); err != nil {
		return 0, err
	}
	return floats.Distance(y, pred, 1) / float64(len(y)), nil
}

// R2 is the coefficient of determination.
//
// It is NaN when y is constant.
func R2(y, pred []float64) (float64, error) {
	if err := checkLen(y, pred); err != nil {
		return 0, err
	}
	return stat.RSquaredFrom(pred, y, nil), nil
}
