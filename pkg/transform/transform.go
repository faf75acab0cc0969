// Package transform applies solved calibration lines to every voxel of a
// volume.
package transform

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"intcal/internal/models"
	"intcal/pkg/calibration"
)

var (
	// ErrShapeMismatch is returned when a volume's grid differs from the grid
	// the parameters were derived on.
	ErrShapeMismatch = errors.New("volume grid does not match calibration grid")

	// ErrInvalidParameters is returned for parameters that cannot be applied.
	ErrInvalidParameters = errors.New("invalid calibration parameters")
)

// ShapeMismatchError reports both grids.
type ShapeMismatchError struct {
	Want models.Geometry
	Got  models.Geometry
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%v: calibrated on %s, got %s", ErrShapeMismatch, e.Want, e.Got)
}

func (e *ShapeMismatchError) Unwrap() error {
	return ErrShapeMismatch
}

// Output holds one calibrated volume per scale.
type Output struct {
	volumes [numScales]*models.VolumeGrid
}

// Of returns the volume on scale s.
func (o *Output) Of(s Scale) *models.VolumeGrid {
	return o.volumes[s]
}

type options struct {
	workers int
}

// Option configures Apply.
type Option func(*options)

// WithWorkers splits the volume across n goroutines (n <= 0 uses every CPU).
// The output does not depend on n.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// Apply maps every voxel of grid through each scale's line,
// value = slope*HU + intercept, into new volumes with grid's geometry.
// Values are not clamped. grid must have the geometry recorded in p.
func Apply(grid *models.VolumeGrid, p *calibration.Parameters, opts ...Option) (*Output, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if p.Geometry.IsZero() {
		return nil, fmt.Errorf("%w: no calibration grid recorded", ErrInvalidParameters)
	}
	if grid.Geometry != p.Geometry {
		return nil, &ShapeMismatchError{Want: p.Geometry, Got: grid.Geometry}
	}

	var slopes, intercepts [numScales]float64
	for _, s := range Scales() {
		line, err := Affine(p, s)
		if err != nil {
			return nil, err
		}
		if !isFinite(line.Slope) || !isFinite(line.Intercept) {
			return nil, fmt.Errorf("%w: %s line %g*HU%+g", ErrInvalidParameters, s, line.Slope, line.Intercept)
		}
		slopes[s], intercepts[s] = line.Slope, line.Intercept
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers <= 0 {
		o.workers = runtime.NumCPU()
	}

	out := &Output{}
	for s := range out.volumes {
		out.volumes[s] = models.NewVolumeGrid(grid.Geometry)
	}

	// Whole z-slices per goroutine.
	sliceLen := grid.Width * grid.Height
	slicesPerWorker := (grid.Depth + o.workers - 1) / o.workers

	var wg sync.WaitGroup
	for z := 0; z < grid.Depth; z += slicesPerWorker {
		start := z * sliceLen
		end := min(z+slicesPerWorker, grid.Depth) * sliceLen

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for s, vol := range out.volumes {
				dst := vol.Data[start:end]
				for i, hu := range grid.Data[start:end] {
					// Same rounding as regression.Result.Apply.
					dst[i] = float64(slopes[s]*hu) + intercepts[s]
				}
			}
		}(start, end)
	}
	wg.Wait()

	return out, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
