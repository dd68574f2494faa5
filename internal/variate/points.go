package variate

import "fmt"

// MaxPoints caps n for SortedPoints. The insertion sort is quadratic.
const MaxPoints = 10000

// SortedPoints draws n independent points uniformly on [0, length) and
// returns them in ascending order. The slice is freshly allocated and
// owned by the caller; n == 0 gives an empty, non-nil slice.
func (s *Sampler) SortedPoints(length float64, n int) ([]float64, error) {
	if err := validateNonNegative("length", length); err != nil {
		return nil, err
	}
	if n < 0 || n > MaxPoints {
		return nil, invalid("n", float64(n), fmt.Sprintf("in 0..%d", MaxPoints))
	}
	pts := make([]float64, n)
	for i := range pts {
		pts[i] = length * s.src.Float64()
	}
	insertionSort(pts)
	s.observe("points")
	return pts, nil
}

// insertionSort sorts xs ascending in place. It is stable and fast for
// the handful of branch points a molecule carries.
func insertionSort(xs []float64) {
	for i := 1; i < len(xs); i++ {
		v := xs[i]
		j := i - 1
		for j >= 0 && xs[j] > v {
			xs[j+1] = xs[j]
			j--
		}
		xs[j+1] = v
	}
}
