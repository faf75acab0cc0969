// Package regression fits straight lines by ordinary least squares.
package regression

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrInsufficientData is returned when fewer than two points are fitted.
	ErrInsufficientData = errors.New("insufficient data for regression")

	// ErrLengthMismatch is returned when x and y differ in length.
	ErrLengthMismatch = errors.New("regression inputs differ in length")
)

// Result is the fitted line y = Slope*x + Intercept.
type Result struct {
	Slope     float64
	Intercept float64

	// RSquared is the coefficient of determination. It is 1 when every y is
	// equal and NaN when every x is equal.
	RSquared float64
}

// Apply evaluates the fitted line at x. The product is rounded before the
// addition so results never depend on fused multiply-add.
func (r Result) Apply(x float64) float64 {
	return float64(r.Slope*x) + r.Intercept
}

// Defined reports whether the fit produced finite parameters.
func (r Result) Defined() bool {
	return !math.IsNaN(r.Slope) && !math.IsNaN(r.Intercept) && !math.IsNaN(r.RSquared)
}

// Fit returns the ordinary least-squares line through (x[i], y[i]).
func Fit(x, y []float64) (Result, error) {
	if len(x) != len(y) {
		return Result{}, fmt.Errorf("%w: %d x values, %d y values", ErrLengthMismatch, len(x), len(y))
	}
	if len(x) < 2 {
		return Result{}, fmt.Errorf("%w: need at least 2 points, got %d", ErrInsufficientData, len(x))
	}

	if constant(x) {
		nan := math.NaN()
		return Result{Slope: nan, Intercept: nan, RSquared: nan}, nil
	}

	if constant(y) {
		return Result{Slope: 0, Intercept: y[0], RSquared: 1}, nil
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)
	return Result{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  stat.RSquared(x, y, nil, intercept, slope),
	}, nil
}

func constant(v []float64) bool {
	for _, e := range v[1:] {
		if e != v[0] {
			return false
		}
	}
	return true
}
