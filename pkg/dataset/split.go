package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// DefaultTestSize is the ratio of the test partition when not specified.
const DefaultTestSize = 0.25

type Split struct {
	XTrain, XTest Frame
	YTrain, YTest []float64
}

func permutation(n int, seed uint64) []int {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)).Perm(n)
}

// TrainTestSplit shuffles samples with seed and splits them into train and test partitions.
//
// testSize is the ratio of the test partition in (0, 1); the size is rounded up.
// The same seed gives the same split.
func TrainTestSplit(x Frame, y []float64, testSize float64, seed uint64) (Split, error) {
	if x.Len() != len(y) {
		return Split{}, fmt.Errorf("%w: %d samples for %d labels", ErrShapeUnmatch, x.Len(), len(y))
	}
	if testSize <= 0 || 1 <= testSize {
		return Split{}, fmt.Errorf("test size should be in (0, 1): %v", testSize)
	}
	n := len(y)
	nTest := int(math.Ceil(float64(n) * testSize))
	if nTest < 1 || n <= nTest {
		return Split{}, fmt.Errorf("too few samples (%d) to split with test size %v", n, testSize)
	}

	perm := permutation(n, seed)
	testIdx, trainIdx := perm[:nTest], perm[nTest:]
	return Split{
		XTrain: x.Select(trainIdx),
		XTest:  x.Select(testIdx),
		YTrain: selectFloats(y, trainIdx),
		YTest:  selectFloats(y, testIdx),
	}, nil
}

// Fold is a pair of index sets for one round of cross validation.
type Fold struct {
	Train []int
	Test  []int
}

// KFold shuffles [0, n) with seed and splits it into k folds.
//
// The first n % k folds have one more test sample than the others.
func KFold(n, k int, seed uint64) ([]Fold, error) {
	if k < 2 || n < k {
		return nil, fmt.Errorf("cannot make %d folds from %d samples", k, n)
	}
	perm := permutation(n, seed)

	folds := make([]Fold, k)
	begin := 0
	for i := range k {
		size := n / k
		if i < n%k {
			size += 1
		}
		end := begin + size

		test := append([]int{}, perm[begin:end]...)
		train := make([]int, 0, n-size)
		train = append(train, perm[:begin]...)
		train = append(train, perm[end:]...)
		folds[i] = Fold{Train: train, Test: test}
		begin = end
	}
	return folds, nil
}

// SelectFold gives samples of one fold.
func SelectFold(x Frame, y []float64, f Fold) Split {
	return Split{
		XTrain: x.Select(f.Train),
		XTest:  x.Select(f.Test),
		YTrain: selectFloats(y, f.Train),
		YTest:  selectFloats(y, f.Test),
	}
}
