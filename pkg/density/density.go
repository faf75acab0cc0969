// Package density converts measured HU into physical density using the CT
// linear-attenuation relation
//
//	HU = 1000 * (mu_tissue - mu_water) / mu_water,  mu = rho * (mu/rho).
package density

import (
	"errors"
	"fmt"
	"math"
)

// WaterDensity is the density of water in g/cm³ assumed by the calibration.
const WaterDensity = 1.0

var (
	// ErrInvalidAttenuation is returned for a non-positive mass-attenuation
	// coefficient. It points at corrupted tables or an effective energy outside
	// a table's valid range.
	ErrInvalidAttenuation = errors.New("invalid attenuation coefficient")

	// ErrInvalidWaterDensity is returned for a non-positive water density.
	ErrInvalidWaterDensity = errors.New("invalid water density")

	// ErrNonFiniteHU is returned when the measured HU is NaN or infinite.
	ErrNonFiniteHU = errors.New("non-finite HU")
)

// Density returns the density (g/cm³) of a tissue measured at hu, given its
// mass-attenuation coefficient, that of water, and the density of water:
//
//	rho = rhoWater * muWater * (1 + hu/1000) / muTissue
func Density(hu, muTissue, muWater, rhoWater float64) (float64, error) {
	if math.IsNaN(hu) || math.IsInf(hu, 0) {
		return 0, fmt.Errorf("%w: %g", ErrNonFiniteHU, hu)
	}
	if !(muTissue > 0) || math.IsInf(muTissue, 0) {
		return 0, fmt.Errorf("%w: tissue mu/rho %g", ErrInvalidAttenuation, muTissue)
	}
	if !(muWater > 0) || math.IsInf(muWater, 0) {
		return 0, fmt.Errorf("%w: water mu/rho %g", ErrInvalidAttenuation, muWater)
	}
	if !(rhoWater > 0) || math.IsInf(rhoWater, 0) {
		return 0, fmt.Errorf("%w: %g", ErrInvalidWaterDensity, rhoWater)
	}
	return rhoWater * muWater * (1 + hu/1000) / muTissue, nil
}
