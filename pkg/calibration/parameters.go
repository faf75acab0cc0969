package calibration

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"intcal/internal/models"
	"intcal/pkg/attenuation"
	"intcal/pkg/energy"
	"intcal/pkg/regression"
)

// Separator is the key (and value) of the row dividing provenance from results.
const Separator = "+++++"

// Provenance identifies the scan and files a calibration was derived from.
type Provenance struct {
	ID             string
	OutputFile     string
	Program        string
	Version        string
	DateCreated    string
	ImageDirectory string
	Image          string
	MaskDirectory  string
	Mask           string

	// Geometry is the grid of the image the measurements were taken from.
	Geometry models.Geometry
}

// Parameters is the complete result of one calibration. It holds only values,
// so copies never share state.
type Parameters struct {
	Provenance

	// RunID is a name-based UUID of every other field; identical calibrations
	// share it.
	RunID string

	Measurements       energy.Measurements
	EffectiveEnergyKeV int
	MaxRSquared        float64

	// HUToAttenuation maps HU to mass-attenuation coefficient (cm²/g).
	HUToAttenuation regression.Result

	// HUToDensity maps HU to material density (g/cm³).
	HUToDensity regression.Result

	// Coefficients are every material's mass-attenuation coefficient at
	// EffectiveEnergyKeV.
	Coefficients attenuation.Coefficients

	// Densities are the reference tissue densities in
	// attenuation.ReferenceTissues() order.
	Densities [3]float64
}

// Field is one row of the flat parameter listing.
type Field struct {
	Key   string
	Value string
}

// Fields lists the parameters in report order.
func (p Parameters) Fields() []Field {
	fields := append(p.provenanceFields(), Field{Key: "Run ID", Value: p.RunID})
	return append(fields, p.resultFields()...)
}

func (p Parameters) provenanceFields() []Field {
	return []Field{
		{"ID", p.ID},
		{"Output File", p.OutputFile},
		{"Program", p.Program},
		{"Version", p.Version},
		{"Date Created", p.DateCreated},
		{"Image Directory", p.ImageDirectory},
		{"Image", p.Image},
		{"Mask Directory", p.MaskDirectory},
		{"Mask", p.Mask},
		{"Grid", p.Geometry.String()},
		{"Grid Origin [mm]", joinFloats(p.Geometry.Origin.X, p.Geometry.Origin.Y, p.Geometry.Origin.Z)},
		{"Grid Direction", joinFloats(p.Geometry.Direction[:]...)},
	}
}

func (p Parameters) resultFields() []Field {
	fields := []Field{
		{Separator, Separator},
		{"Effective Energy [keV]", strconv.Itoa(p.EffectiveEnergyKeV)},
		{"Max R^2", formatFloat(p.MaxRSquared)},
		{"HU-u/p Slope", formatFloat(p.HUToAttenuation.Slope)},
		{"HU-u/p Y-Intercept", formatFloat(p.HUToAttenuation.Intercept)},
		{"HU-u/p R^2", formatFloat(p.HUToAttenuation.RSquared)},
		{"HU-Material Density Slope", formatFloat(p.HUToDensity.Slope)},
		{"HU-Material Density Y-Intercept", formatFloat(p.HUToDensity.Intercept)},
		{"HU-Material Density R^2", formatFloat(p.HUToDensity.RSquared)},
	}
	for _, m := range attenuation.Materials() {
		fields = append(fields, Field{m.String() + " u/p", formatFloat(p.Coefficients.Of(m))})
	}
	for i, tissue := range attenuation.ReferenceTissues() {
		hu, _ := p.Measurements.Of(tissue)
		fields = append(fields,
			Field{tissue.String() + " Mean HU", formatFloat(hu)},
			Field{tissue.String() + " Density [g/cm^3]", formatFloat(p.Densities[i])},
		)
	}
	return fields
}

// runID derives the name-based UUID of every field except the run ID itself.
func (p Parameters) runID() string {
	var b strings.Builder
	for _, f := range append(p.provenanceFields(), p.resultFields()...) {
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(f.Value)
		b.WriteByte('\n')
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(b.String())).String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func joinFloats(v ...float64) string {
	s := make([]string, len(v))
	for i, f := range v {
		s[i] = formatFloat(f)
	}
	return strings.Join(s, " ")
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Fields(s)
	if len(parts) != n {
		return nil, fmt.Errorf("want %d values, got %d in %q", n, len(parts), s)
	}
	out := make([]float64, n)
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ParseGeometry rebuilds the calibration grid from the Grid, Grid Origin and
// Grid Direction fields of a parameter listing, such as one read back from a
// report.
func ParseGeometry(fields []Field) (models.Geometry, error) {
	values := map[string]string{}
	for _, f := range fields {
		if _, ok := values[f.Key]; !ok {
			values[f.Key] = f.Value
		}
	}
	fail := func(key string, err error) (models.Geometry, error) {
		return models.Geometry{}, fmt.Errorf("%w: field %q: %v", models.ErrInvalidGeometry, key, err)
	}

	var g models.Geometry
	grid, ok := values["Grid"]
	if !ok {
		return fail("Grid", errors.New("missing"))
	}
	dims, size, ok := strings.Cut(strings.TrimSuffix(grid, " mm"), " @ ")
	if !ok {
		return fail("Grid", fmt.Errorf("malformed %q", grid))
	}
	d := strings.Split(dims, "x")
	if len(d) != 3 {
		return fail("Grid", fmt.Errorf("malformed dimensions %q", dims))
	}
	for i, dst := range []*int{&g.Width, &g.Height, &g.Depth} {
		v, err := strconv.Atoi(d[i])
		if err != nil {
			return fail("Grid", err)
		}
		*dst = v
	}
	vs, err := parseFloats(strings.ReplaceAll(size, "x", " "), 3)
	if err != nil {
		return fail("Grid", err)
	}
	g.VoxelSize = models.Vec3{X: vs[0], Y: vs[1], Z: vs[2]}

	origin, err := parseFloats(values["Grid Origin [mm]"], 3)
	if err != nil {
		return fail("Grid Origin [mm]", err)
	}
	g.Origin = models.Vec3{X: origin[0], Y: origin[1], Z: origin[2]}

	direction, err := parseFloats(values["Grid Direction"], 9)
	if err != nil {
		return fail("Grid Direction", err)
	}
	copy(g.Direction[:], direction)

	if err := g.Validate(); err != nil {
		return models.Geometry{}, err
	}
	return g, nil
}
