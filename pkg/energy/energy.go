// Package energy estimates the effective monoenergetic energy of a CT scan from
// the mean HU of its reference tissues.
package energy

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"intcal/pkg/attenuation"
	"intcal/pkg/regression"
)

// ErrNoConvergence is returned when no candidate energy gives a usable fit.
var ErrNoConvergence = errors.New("effective energy search did not converge")

// NoConvergenceError carries the measurements that could not be fitted.
type NoConvergenceError struct {
	Measurements Measurements
}

func (e *NoConvergenceError) Error() string {
	return fmt.Sprintf("%v: no energy in [%d, %d] keV gives a defined fit for mean HU %s",
		ErrNoConvergence, attenuation.MinEnergyKeV, attenuation.MaxEnergyKeV, e.Measurements)
}

func (e *NoConvergenceError) Unwrap() error {
	return ErrNoConvergence
}

// Measurements are the mean HU of the reference tissues.
type Measurements struct {
	Air            float64
	CorticalBone   float64
	SkeletalMuscle float64
}

// Of returns the mean HU of a reference tissue.
func (m Measurements) Of(tissue attenuation.Material) (float64, bool) {
	switch tissue {
	case attenuation.Air:
		return m.Air, true
	case attenuation.CorticalBone:
		return m.CorticalBone, true
	case attenuation.SkeletalMuscle:
		return m.SkeletalMuscle, true
	}
	return math.NaN(), false
}

// Values returns the mean HU in attenuation.ReferenceTissues() order.
func (m Measurements) Values() []float64 {
	return []float64{m.Air, m.CorticalBone, m.SkeletalMuscle}
}

func (m Measurements) String() string {
	return fmt.Sprintf("{Air: %g, Cortical Bone: %g, Skeletal Muscle: %g}", m.Air, m.CorticalBone, m.SkeletalMuscle)
}

// Candidate is the goodness of fit at one energy.
type Candidate struct {
	EnergyKeV int
	Fit       regression.Result

	// Defined is false when the fit at this energy is unusable: R² is NaN or
	// the reference tissues share one attenuation coefficient.
	Defined bool
}

// Result is the outcome of the effective energy search.
type Result struct {
	EffectiveEnergyKeV int
	MaxRSquared        float64

	// Coefficients are every material's mass-attenuation coefficient at
	// EffectiveEnergyKeV.
	Coefficients attenuation.Coefficients
}

type options struct {
	workers int
}

// Option configures the search.
type Option func(*options)

// WithWorkers evaluates candidate energies on n goroutines (n <= 0 uses every
// CPU). The result does not depend on n.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// Evaluate fits mean HU against the reference-tissue coefficients at one energy.
func Evaluate(m Measurements, curves *attenuation.CurveSet, energyKeV int) Candidate {
	tissues := attenuation.ReferenceTissues()
	mu := make([]float64, len(tissues))
	for i, tissue := range tissues {
		mu[i] = curves.At(tissue, energyKeV)
	}

	c := Candidate{EnergyKeV: energyKeV}
	fit, err := regression.Fit(m.Values(), mu)
	if err != nil {
		return c
	}
	c.Fit = fit
	c.Defined = fit.Defined() && !allEqual(mu)
	return c
}

// Scan evaluates every integer energy of the calibration domain. Candidates
// are returned in increasing energy order.
func Scan(m Measurements, curves *attenuation.CurveSet, opts ...Option) []Candidate {
	o := options{workers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers <= 0 {
		o.workers = runtime.NumCPU()
	}

	out := make([]Candidate, attenuation.NumEnergies)
	chunk := (len(out) + o.workers - 1) / o.workers

	var wg sync.WaitGroup
	for start := 0; start < len(out); start += chunk {
		end := min(start+chunk, len(out))
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				out[i] = Evaluate(m, curves, attenuation.MinEnergyKeV+i)
			}
		}(start, end)
	}
	wg.Wait()

	return out
}

// Best folds candidates into the one with the highest R², breaking ties by the
// lowest energy. Undefined candidates never win. The fold is order
// independent. ok is false when no candidate is defined.
func Best(candidates []Candidate) (best Candidate, ok bool) {
	for _, c := range candidates {
		best = better(best, c)
	}
	return best, best.Defined
}

func better(a, b Candidate) Candidate {
	switch {
	case !b.Defined:
		return a
	case !a.Defined:
		return b
	case b.Fit.RSquared > a.Fit.RSquared:
		return b
	case b.Fit.RSquared == a.Fit.RSquared && b.EnergyKeV < a.EnergyKeV:
		return b
	}
	return a
}

// Estimate finds the energy at which the reference tissues' measured HU are
// most linearly related to their mass-attenuation coefficients, and samples
// every material's curve at that energy.
func Estimate(m Measurements, curves *attenuation.CurveSet, opts ...Option) (Result, error) {
	best, ok := Best(Scan(m, curves, opts...))
	if !ok {
		return Result{}, &NoConvergenceError{Measurements: m}
	}
	return Result{
		EffectiveEnergyKeV: best.EnergyKeV,
		MaxRSquared:        best.Fit.RSquared,
		Coefficients:       curves.Coefficients(best.EnergyKeV),
	}, nil
}

func allEqual(v []float64) bool {
	for _, e := range v[1:] {
		if e != v[0] {
			return false
		}
	}
	return true
}
