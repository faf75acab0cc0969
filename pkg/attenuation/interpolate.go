package attenuation

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/interp"
)

// The calibration energy domain, in whole keV.
const (
	MinEnergyKeV = 1
	MaxEnergyKeV = 200

	// NumEnergies is the number of integer energies in the domain.
	NumEnergies = MaxEnergyKeV - MinEnergyKeV + 1
)

// Method selects the interpolation scheme between table samples.
type Method string

const (
	// Linear interpolates linearly between neighbouring samples.
	Linear Method = "linear"

	// FritschButland is a monotone piecewise cubic.
	FritschButland Method = "fritsch-butland"

	// Akima is the Akima cubic spline.
	Akima Method = "akima"
)

// ParseMethod converts a configuration string into a Method.
// The empty string selects Linear.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", Linear:
		return Linear, nil
	case FritschButland, Akima:
		return Method(s), nil
	}
	return "", fmt.Errorf("unknown interpolation method %q", s)
}

func (m Method) predictor() (interp.FittablePredictor, error) {
	switch m {
	case "", Linear:
		return &interp.PiecewiseLinear{}, nil
	case FritschButland:
		return &interp.FritschButland{}, nil
	case Akima:
		return &interp.AkimaSpline{}, nil
	}
	return nil, fmt.Errorf("unknown interpolation method %q", string(m))
}

// Curve is a table resampled at every integer energy of the calibration domain.
type Curve struct {
	Material Material
	values   [NumEnergies]float64
}

// At returns the mass-attenuation coefficient at energyKeV, or NaN when the
// energy is outside [MinEnergyKeV, MaxEnergyKeV].
func (c *Curve) At(energyKeV int) float64 {
	if energyKeV < MinEnergyKeV || energyKeV > MaxEnergyKeV {
		return math.NaN()
	}
	return c.values[energyKeV-MinEnergyKeV]
}

// Values returns a copy of the curve, index 0 holding MinEnergyKeV.
func (c *Curve) Values() []float64 {
	out := make([]float64, NumEnergies)
	copy(out, c.values[:])
	return out
}

// Interpolate resamples the table at every integer keV in the calibration
// domain. The table is validated first; gonum's fitters panic on the inputs
// Validate rejects.
func Interpolate(t Table, method Method) (*Curve, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	p, err := method.predictor()
	if err != nil {
		return nil, err
	}
	if err := p.Fit(t.Energies(), t.Coefficients()); err != nil {
		return nil, &InvalidReferenceDataError{Material: t.Material, Reason: err.Error()}
	}

	c := &Curve{Material: t.Material}
	for i := range c.values {
		e := MinEnergyKeV + i
		v := p.Predict(float64(e))
		if math.IsNaN(v) || v <= 0 {
			return nil, &InvalidReferenceDataError{
				Material: t.Material,
				Reason:   fmt.Sprintf("%s interpolation gives %g at %d keV", method, v, e),
			}
		}
		c.values[i] = v
	}
	return c, nil
}

// CurveSet holds one interpolated curve per material.
type CurveSet [NumMaterials]*Curve

// At returns the coefficient of material m at energyKeV.
func (s *CurveSet) At(m Material, energyKeV int) float64 {
	return s[m].At(energyKeV)
}

// Coefficients samples every material at energyKeV.
func (s *CurveSet) Coefficients(energyKeV int) Coefficients {
	var c Coefficients
	for m := range s {
		c[m] = s[m].At(energyKeV)
	}
	return c
}

// BuildCurves interpolates one table per material, running up to workers
// interpolations at a time (workers <= 0 uses every CPU). Every material must
// appear exactly once. The result does not depend on workers; when several
// tables are invalid the error of the first material in Materials() order is
// returned.
func BuildCurves(tables []Table, method Method, workers int) (*CurveSet, error) {
	var byMaterial [NumMaterials]*Table
	for i := range tables {
		t := &tables[i]
		if !t.Material.Valid() {
			return nil, &InvalidReferenceDataError{Material: t.Material, Reason: "unknown material"}
		}
		if byMaterial[t.Material] != nil {
			return nil, &InvalidReferenceDataError{Material: t.Material, Reason: "duplicate table"}
		}
		byMaterial[t.Material] = t
	}
	for m, t := range byMaterial {
		if t == nil {
			return nil, &InvalidReferenceDataError{Material: Material(m), Reason: "missing table"}
		}
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var (
		set  CurveSet
		errs [NumMaterials]error
		wg   sync.WaitGroup
		sem  = make(chan struct{}, workers)
	)
	for m := range byMaterial {
		wg.Add(1)
		sem <- struct{}{}
		go func(m int) {
			defer wg.Done()
			defer func() { <-sem }()
			set[m], errs[m] = Interpolate(*byMaterial[m], method)
		}(m)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return &set, nil
}
