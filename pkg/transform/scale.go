package transform

import (
	"fmt"

	"intcal/pkg/calibration"
	"intcal/pkg/regression"
)

// Scale names a calibrated density scale.
type Scale int

const (
	// K2HPO4Equivalent is the scale written as the K2HPO4-equivalent volume.
	// Under Assignment it carries mass-attenuation coefficients in cm²/g.
	K2HPO4Equivalent Scale = iota

	// Archimedean is physical mass density in g/cm³.
	Archimedean

	numScales
)

// Scales returns every scale in output order.
func Scales() []Scale {
	return []Scale{K2HPO4Equivalent, Archimedean}
}

func (s Scale) String() string {
	switch s {
	case K2HPO4Equivalent:
		return "K2HPO4_EQUIVALENT"
	case Archimedean:
		return "ARCHIMEDEAN"
	}
	return fmt.Sprintf("Scale(%d)", int(s))
}

// Suffix is the file name suffix of volumes on this scale.
func (s Scale) Suffix() string {
	switch s {
	case K2HPO4Equivalent:
		return "_IC_K2HPO4"
	case Archimedean:
		return "_IC_ARCH"
	}
	return fmt.Sprintf("_IC_%d", int(s))
}

// Fit identifies one of the two regressions in calibration.Parameters.
type Fit int

const (
	HUToAttenuation Fit = iota
	HUToDensity
)

// Assignment maps each scale to the regression that produces it. It is a
// constant of the calibration method. The unit of a calibrated volume is the
// unit of its regression's y values:
//
//	K2HPO4Equivalent  HUToAttenuation  mu/rho in cm²/g (about 0.17 for soft tissue near 70 keV)
//	Archimedean       HUToDensity      material density in g/cm³
var Assignment = map[Scale]Fit{
	K2HPO4Equivalent: HUToAttenuation,
	Archimedean:      HUToDensity,
}

// Unit is the unit of the values a regression produces.
func (f Fit) Unit() string {
	switch f {
	case HUToAttenuation:
		return "cm^2/g"
	case HUToDensity:
		return "g/cm^3"
	}
	return ""
}

// Unit is the unit of voxel values on scale s, following Assignment.
func (s Scale) Unit() string {
	return Assignment[s].Unit()
}

// Affine returns the HU-to-scale line for p.
func Affine(p *calibration.Parameters, s Scale) (regression.Result, error) {
	fit, ok := Assignment[s]
	if !ok {
		return regression.Result{}, fmt.Errorf("no regression assigned to %s", s)
	}
	switch fit {
	case HUToAttenuation:
		return p.HUToAttenuation, nil
	case HUToDensity:
		return p.HUToDensity, nil
	}
	return regression.Result{}, fmt.Errorf("unknown regression %d for %s", int(fit), s)
}
