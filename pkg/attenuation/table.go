package attenuation

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidReferenceData is returned when an attenuation table cannot be used.
// It indicates a packaging problem with the reference data, not bad user input.
var ErrInvalidReferenceData = errors.New("invalid reference data")

// InvalidReferenceDataError names the offending material and the reason.
type InvalidReferenceDataError struct {
	Material Material
	Reason   string
}

func (e *InvalidReferenceDataError) Error() string {
	return fmt.Sprintf("%v for %s: %s", ErrInvalidReferenceData, e.Material, e.Reason)
}

func (e *InvalidReferenceDataError) Unwrap() error {
	return ErrInvalidReferenceData
}

// Sample is a single tabulated point.
type Sample struct {
	// EnergyKeV is the photon energy in keV
	EnergyKeV float64

	// MuOverRho is the mass-attenuation coefficient in cm²/g
	MuOverRho float64
}

// Table is the tabulated mass-attenuation curve of one material.
type Table struct {
	Material Material
	Samples  []Sample
}

// Validate checks that the table can be interpolated over the calibration
// energy domain: at least two samples, strictly increasing energies, positive
// finite coefficients and coverage of [MinEnergyKeV, MaxEnergyKeV].
func (t Table) Validate() error {
	fail := func(format string, args ...any) error {
		return &InvalidReferenceDataError{Material: t.Material, Reason: fmt.Sprintf(format, args...)}
	}

	if !t.Material.Valid() {
		return fail("unknown material")
	}
	if len(t.Samples) < 2 {
		return fail("need at least 2 samples, got %d", len(t.Samples))
	}
	for i, s := range t.Samples {
		if math.IsNaN(s.EnergyKeV) || math.IsInf(s.EnergyKeV, 0) {
			return fail("sample %d has non-finite energy", i)
		}
		if math.IsNaN(s.MuOverRho) || math.IsInf(s.MuOverRho, 0) || s.MuOverRho <= 0 {
			return fail("sample %d has invalid coefficient %g", i, s.MuOverRho)
		}
		if i > 0 && s.EnergyKeV <= t.Samples[i-1].EnergyKeV {
			return fail("energies not strictly increasing at sample %d (%g keV after %g keV)",
				i, s.EnergyKeV, t.Samples[i-1].EnergyKeV)
		}
	}
	first, last := t.Samples[0].EnergyKeV, t.Samples[len(t.Samples)-1].EnergyKeV
	if first > MinEnergyKeV || last < MaxEnergyKeV {
		return fail("samples span [%g, %g] keV, need [%d, %d] keV", first, last, MinEnergyKeV, MaxEnergyKeV)
	}
	return nil
}

// Energies returns the sample energies.
func (t Table) Energies() []float64 {
	out := make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		out[i] = s.EnergyKeV
	}
	return out
}

// Coefficients returns the sample mass-attenuation coefficients.
func (t Table) Coefficients() []float64 {
	out := make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		out[i] = s.MuOverRho
	}
	return out
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	samples := make([]Sample, len(t.Samples))
	copy(samples, t.Samples)
	return Table{Material: t.Material, Samples: samples}
}
