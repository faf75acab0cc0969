// Package attenuation holds the photon mass-attenuation reference data used by
// the internal calibration and the interpolation of that data onto a per-keV
// energy grid.
package attenuation

import "fmt"

// Material identifies one of the reference materials with tabulated
// mass-attenuation coefficients.
type Material int

const (
	Air Material = iota
	CorticalBone
	SkeletalMuscle
	K2HPO4
	Hydroxyapatite
	Triglyceride
	Water

	// NumMaterials is the number of reference materials.
	NumMaterials
)

var materialNames = [NumMaterials]string{
	Air:            "Air",
	CorticalBone:   "Cortical Bone",
	SkeletalMuscle: "Skeletal Muscle",
	K2HPO4:         "K2HPO4",
	Hydroxyapatite: "CHA",
	Triglyceride:   "Triglyceride",
	Water:          "Water",
}

// String returns the material name used in calibration reports.
func (m Material) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Material(%d)", int(m))
	}
	return materialNames[m]
}

// Valid reports whether m is one of the known materials.
func (m Material) Valid() bool {
	return m >= 0 && m < NumMaterials
}

// Materials returns every reference material in report order.
func Materials() []Material {
	out := make([]Material, NumMaterials)
	for i := range out {
		out[i] = Material(i)
	}
	return out
}

// ReferenceTissues returns the three tissues segmented in the scan and used as
// internal calibration standards, in the order their measurements are fitted.
func ReferenceTissues() []Material {
	return []Material{Air, CorticalBone, SkeletalMuscle}
}

// Coefficients holds one mass-attenuation coefficient (cm²/g) per material.
type Coefficients [NumMaterials]float64

// Of returns the coefficient of material m.
func (c Coefficients) Of(m Material) float64 {
	return c[m]
}
