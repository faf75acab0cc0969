// Package calibration derives the internal density calibration of a CT scan
// from the mean HU of its reference tissues.
//
// The method follows Michalski et al. (2020) "CT-based internal density
// calibration for opportunistic skeletal assessment using abdominal CT scans",
// Med Eng Phys, https://doi.org/10.1016/j.medengphy.2020.01.009, using air,
// cortical bone and skeletal muscle as reference tissues.
package calibration

import (
	"intcal/pkg/attenuation"
	"intcal/pkg/density"
	"intcal/pkg/energy"
	"intcal/pkg/regression"
)

// Config holds the solver settings.
type Config struct {
	// Method interpolates the attenuation tables between samples.
	Method attenuation.Method

	// Workers bounds the goroutines used for curve construction and the
	// energy search; <= 0 uses every CPU. Results do not depend on it.
	Workers int

	// WaterDensity in g/cm³; zero means density.WaterDensity.
	WaterDensity float64
}

// DefaultConfig returns linear interpolation on every CPU with unit water
// density.
func DefaultConfig() Config {
	return Config{
		Method:       attenuation.Linear,
		WaterDensity: density.WaterDensity,
	}
}

// Solver computes calibration parameters from a fixed set of attenuation
// tables. A Solver is safe for concurrent use.
type Solver struct {
	tables []attenuation.Table
	cfg    Config
}

// NewSolver copies tables (one per material, usually
// attenuation.ReferenceTables()) into a new solver.
func NewSolver(tables []attenuation.Table, cfg Config) *Solver {
	own := make([]attenuation.Table, len(tables))
	for i, t := range tables {
		own[i] = t.Clone()
	}
	if cfg.WaterDensity == 0 {
		cfg.WaterDensity = density.WaterDensity
	}
	return &Solver{tables: own, cfg: cfg}
}

// Solve calibrates one scan. On failure the returned error is a *FailedError
// and no parameters are returned.
func (s *Solver) Solve(m energy.Measurements, prov Provenance) (Parameters, error) {
	fail := func(step string, err error) (Parameters, error) {
		return Parameters{}, &FailedError{Step: step, Err: err}
	}

	curves, err := attenuation.BuildCurves(s.tables, s.cfg.Method, s.cfg.Workers)
	if err != nil {
		return fail("interpolating attenuation tables", err)
	}

	est, err := energy.Estimate(m, curves, energy.WithWorkers(s.cfg.Workers))
	if err != nil {
		return fail("estimating effective energy", err)
	}

	tissues := attenuation.ReferenceTissues()
	hu := m.Values()
	mu := make([]float64, len(tissues))
	for i, tissue := range tissues {
		mu[i] = est.Coefficients.Of(tissue)
	}

	huToMu, err := regression.Fit(hu, mu)
	if err != nil {
		return fail("fitting HU to mass attenuation", err)
	}

	var densities [3]float64
	muWater := est.Coefficients.Of(attenuation.Water)
	for i, tissue := range tissues {
		densities[i], err = density.Density(hu[i], mu[i], muWater, s.cfg.WaterDensity)
		if err != nil {
			return fail("computing "+tissue.String()+" density", err)
		}
	}

	huToRho, err := regression.Fit(hu, densities[:])
	if err != nil {
		return fail("fitting HU to material density", err)
	}

	p := Parameters{
		Provenance:         prov,
		Measurements:       m,
		EffectiveEnergyKeV: est.EffectiveEnergyKeV,
		MaxRSquared:        est.MaxRSquared,
		HUToAttenuation:    huToMu,
		HUToDensity:        huToRho,
		Coefficients:       est.Coefficients,
		Densities:          densities,
	}
	p.RunID = p.runID()
	return p, nil
}
