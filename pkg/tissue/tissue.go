// Package tissue summarises the reference-tissue regions of a label mask.
package tissue

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"intcal/internal/models"
	"intcal/pkg/attenuation"
	"intcal/pkg/energy"
)

var (
	// ErrGeometryMismatch is returned when image and mask grids differ.
	ErrGeometryMismatch = errors.New("image and mask grids differ")

	// ErrEmptyRegion is returned when a reference tissue has no voxels.
	ErrEmptyRegion = errors.New("empty reference tissue region")
)

// EmptyRegionError names the tissue whose label was not found in the mask.
type EmptyRegionError struct {
	Tissue attenuation.Material
	Label  int
}

func (e *EmptyRegionError) Error() string {
	return fmt.Sprintf("%v: no voxels labelled %d (%s)", ErrEmptyRegion, e.Label, e.Tissue)
}

func (e *EmptyRegionError) Unwrap() error {
	return ErrEmptyRegion
}

// Labels are the mask values marking each reference tissue.
type Labels struct {
	Air            int `yaml:"air"`
	CorticalBone   int `yaml:"corticalBone"`
	SkeletalMuscle int `yaml:"skeletalMuscle"`
}

// DefaultLabels matches the ITK-SNAP label description shipped with the
// segmentation protocol.
func DefaultLabels() Labels {
	return Labels{Air: 2, CorticalBone: 4, SkeletalMuscle: 5}
}

// Of returns the label of a reference tissue.
func (l Labels) Of(tissue attenuation.Material) (int, bool) {
	switch tissue {
	case attenuation.Air:
		return l.Air, true
	case attenuation.CorticalBone:
		return l.CorticalBone, true
	case attenuation.SkeletalMuscle:
		return l.SkeletalMuscle, true
	}
	return 0, false
}

// Validate checks that every tissue has its own non-zero label.
func (l Labels) Validate() error {
	seen := map[int]attenuation.Material{}
	for _, tissue := range attenuation.ReferenceTissues() {
		label, _ := l.Of(tissue)
		if label == 0 {
			return fmt.Errorf("label for %s must be non-zero", tissue)
		}
		if other, ok := seen[label]; ok {
			return fmt.Errorf("label %d used for both %s and %s", label, other, tissue)
		}
		seen[label] = tissue
	}
	return nil
}

// Statistic is one summary statistic of a region.
type Statistic int

const (
	Mean Statistic = iota
	Variance
	Min
	Max
	Count

	// NumStatistics is the number of statistics per region.
	NumStatistics
)

func (s Statistic) String() string {
	switch s {
	case Mean:
		return "mean"
	case Variance:
		return "variance"
	case Min:
		return "min"
	case Max:
		return "max"
	case Count:
		return "count"
	}
	return fmt.Sprintf("Statistic(%d)", int(s))
}

// Stats holds every statistic of one region. Variance is the population
// variance.
type Stats [NumStatistics]float64

// Of returns statistic s.
func (st Stats) Of(s Statistic) float64 {
	return st[s]
}

// Summary holds the statistics of each reference tissue.
type Summary struct {
	stats [3]Stats
}

// Of returns the statistics of a reference tissue.
func (s Summary) Of(tissue attenuation.Material) Stats {
	for i, t := range attenuation.ReferenceTissues() {
		if t == tissue {
			return s.stats[i]
		}
	}
	var nan Stats
	for i := range nan {
		nan[i] = math.NaN()
	}
	return nan
}

// Measurements returns the mean HU of each reference tissue.
func (s Summary) Measurements() energy.Measurements {
	return energy.Measurements{
		Air:            s.stats[0][Mean],
		CorticalBone:   s.stats[1][Mean],
		SkeletalMuscle: s.stats[2][Mean],
	}
}

// Measure collects the image voxels under each tissue's label and summarises
// them. Mask values are rounded to the nearest integer label.
func Measure(image, mask *models.VolumeGrid, labels Labels) (Summary, error) {
	if err := image.Validate(); err != nil {
		return Summary{}, fmt.Errorf("image: %w", err)
	}
	if err := mask.Validate(); err != nil {
		return Summary{}, fmt.Errorf("mask: %w", err)
	}
	if image.Geometry != mask.Geometry {
		return Summary{}, fmt.Errorf("%w: image %s, mask %s", ErrGeometryMismatch, image.Geometry, mask.Geometry)
	}
	if err := labels.Validate(); err != nil {
		return Summary{}, err
	}

	tissues := attenuation.ReferenceTissues()
	index := map[int]int{}
	for i, tissue := range tissues {
		label, _ := labels.Of(tissue)
		index[label] = i
	}

	values := make([][]float64, len(tissues))
	for i, m := range mask.Data {
		if math.IsNaN(m) {
			continue
		}
		if t, ok := index[int(math.Round(m))]; ok {
			values[t] = append(values[t], image.Data[i])
		}
	}

	var s Summary
	for i, tissue := range tissues {
		v := values[i]
		if len(v) == 0 {
			label, _ := labels.Of(tissue)
			return Summary{}, &EmptyRegionError{Tissue: tissue, Label: label}
		}
		mean, variance := stat.PopMeanVariance(v, nil)
		s.stats[i] = Stats{
			Mean:     mean,
			Variance: variance,
			Min:      floats.Min(v),
			Max:      floats.Max(v),
			Count:    float64(len(v)),
		}
	}
	return s, nil
}
