package density

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDensityWaterIdentity(t *testing.T) {
	for _, mu := range []float64{0.2059, 0.1707, 1.0, 4078} {
		rho, err := Density(0, mu, mu, WaterDensity)
		require.NoError(t, err)
		assert.Equal(t, WaterDensity, rho)
	}
}

func TestDensity(t *testing.T) {
	tests := []struct {
		name     string
		hu       float64
		muTissue float64
		muWater  float64
		rhoWater float64
		want     float64
	}{
		{"air", -1000, 0.1541, 0.1707, 1, 0},
		{"same attenuation as water", 1000, 0.2, 0.2, 1, 2},
		{"bone", 1500, 0.1861, 0.1707, 1, 0.1707 * 2.5 / 0.1861},
		{"scaled water density", 50, 0.1691, 0.1707, 0.998, 0.998 * 0.1707 * 1.05 / 0.1691},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rho, err := Density(tt.hu, tt.muTissue, tt.muWater, tt.rhoWater)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, rho, 1e-12)
		})
	}
}

func TestDensityErrors(t *testing.T) {
	tests := []struct {
		name     string
		hu       float64
		muTissue float64
		muWater  float64
		rhoWater float64
		want     error
	}{
		{"zero tissue", 0, 0, 0.2, 1, ErrInvalidAttenuation},
		{"negative water", 0, 0.2, -0.2, 1, ErrInvalidAttenuation},
		{"nan tissue", 0, math.NaN(), 0.2, 1, ErrInvalidAttenuation},
		{"zero water density", 0, 0.2, 0.2, 0, ErrInvalidWaterDensity},
		{"nan hu", math.NaN(), 0.2, 0.2, 1, ErrNonFiniteHU},
		{"infinite hu", math.Inf(1), 0.2, 0.2, 1, ErrNonFiniteHU},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Density(tt.hu, tt.muTissue, tt.muWater, tt.rhoWater)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
