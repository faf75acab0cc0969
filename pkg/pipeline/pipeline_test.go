package pipeline

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intcal/internal/models"
	"intcal/pkg/attenuation"
	"intcal/pkg/calibration"
	"intcal/pkg/config"
	"intcal/pkg/energy"
	"intcal/pkg/report"
	"intcal/pkg/tissue"
	"intcal/pkg/transform"
	"intcal/pkg/volume"
)

// writeScan writes a phantom with air, cortical bone and skeletal muscle
// bands along y and returns the image and mask paths.
func writeScan(t *testing.T, dir string, muscleLabel float64) (string, string) {
	t.Helper()
	g := models.NewGeometry(12, 9, 6, models.Vec3{X: 0.8, Y: 0.8, Z: 1.5})
	image := models.NewVolumeGrid(g)
	mask := models.NewVolumeGrid(g)

	for z := 0; z < g.Depth; z++ {
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				i := image.Index(x, y, z)
				switch y / 3 {
				case 0:
					image.Data[i], mask.Data[i] = -1000+float64(x%3-1), 2
				case 1:
					image.Data[i], mask.Data[i] = 1500+float64(x%3-1)*10, 4
				default:
					image.Data[i], mask.Data[i] = 50, muscleLabel
				}
			}
		}
	}
	mask.Data[image.Index(0, g.Height-1, g.Depth-1)] = 0

	imagePath := filepath.Join(dir, "QCTCAL_0001.vol")
	maskPath := filepath.Join(dir, "QCTCAL_0001_labels.vol")
	require.NoError(t, volume.Write(imagePath, image, volume.Zstd))
	require.NoError(t, volume.Write(maskPath, mask, volume.LZ4))
	return imagePath, maskPath
}

func TestProcess(t *testing.T) {
	// Skip this test for regular unit testing, as it runs the full pipeline
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dir := t.TempDir()
	imagePath, maskPath := writeScan(t, dir, 5)

	cfg := config.DefaultConfig()
	cfg.Processing.NumWorkers = 2
	cfg.Output.SavePreviews = true
	cfg.Output.PreviewStep = 2

	var progress bytes.Buffer
	runner := NewRunner(&Params{
		ImagePath:   imagePath,
		MaskPath:    maskPath,
		OutputDir:   filepath.Join(dir, "out"),
		Version:     "1.0",
		DateCreated: "2026-10-18",
		Config:      cfg,
		Progress:    &progress,
	})
	require.NoError(t, runner.Process())
	res := runner.Result()

	assert.Equal(t, "QCTCAL_0001", runner.ID())
	for _, step := range []string{"Step 1", "Step 2", "Step 3", "Step 4", "Step 5", "Step 6", "Step 7"} {
		assert.Contains(t, progress.String(), step)
	}

	// Measurements come from the mask, ignoring the unlabelled voxel.
	m := res.Tissues.Measurements()
	assert.InDelta(t, -1000, m.Air, 1e-9)
	assert.InDelta(t, 1500, m.CorticalBone, 1e-9)
	assert.Equal(t, 50.0, m.SkeletalMuscle)
	assert.Equal(t, 216.0, res.Tissues.Of(attenuation.Air).Of(tissue.Count))
	assert.Equal(t, 215.0, res.Tissues.Of(attenuation.SkeletalMuscle).Of(tissue.Count))

	p := res.Parameters
	assert.Equal(t, "QCTCAL_0001_IC_K2HPO4.vol", p.OutputFile)
	assert.Equal(t, "QCTCAL_0001.vol", p.Image)
	assert.Equal(t, "2026-10-18", p.DateCreated)

	// Report round-trips the solved parameters.
	file, err := os.Open(res.ReportPath)
	require.NoError(t, err)
	defer file.Close()
	fields, err := report.Read(file)
	require.NoError(t, err)
	assert.Equal(t, p.Fields(), fields)
	energyKeV, ok := report.Lookup(fields, "Effective Energy [keV]")
	require.True(t, ok)
	assert.Equal(t, strconv.Itoa(p.EffectiveEnergyKeV), energyKeV)

	// Calibrated volumes keep the geometry and apply each scale's line.
	image, err := volume.Read(imagePath)
	require.NoError(t, err)
	for _, s := range transform.Scales() {
		path := res.VolumePaths[s]
		assert.Equal(t, filepath.Join(dir, "out", "QCTCAL_0001"+s.Suffix()+volume.Ext), path)

		got, err := volume.Read(path)
		require.NoError(t, err)
		assert.Equal(t, image.Geometry, got.Geometry)

		line, err := transform.Affine(&p, s)
		require.NoError(t, err)
		for i := range image.Data {
			require.Equal(t, line.Apply(image.Data[i]), got.Data[i])
		}

		previews, err := os.ReadDir(res.PreviewDirs[s])
		require.NoError(t, err)
		assert.Len(t, previews, 3)
	}
}

func TestProcessMissingTissueWritesNoVolumes(t *testing.T) {
	dir := t.TempDir()
	imagePath, maskPath := writeScan(t, dir, 9)
	out := filepath.Join(dir, "out")

	cfg := config.DefaultConfig()
	cfg.Output.Verbose = false
	runner := NewRunner(&Params{ImagePath: imagePath, MaskPath: maskPath, OutputDir: out, Config: cfg})

	err := runner.Process()
	require.ErrorIs(t, err, tissue.ErrEmptyRegion)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessNoConvergenceWritesNoVolumes(t *testing.T) {
	dir := t.TempDir()
	g := models.NewGeometry(3, 1, 1, models.Vec3{X: 1, Y: 1, Z: 1})
	image := &models.VolumeGrid{Geometry: g, Data: []float64{-1000, 1500, 50}}
	mask := &models.VolumeGrid{Geometry: g, Data: []float64{2, 4, 5}}
	imagePath := filepath.Join(dir, "flat.vol")
	maskPath := filepath.Join(dir, "flat_labels.vol")
	require.NoError(t, volume.Write(imagePath, image, volume.None))
	require.NoError(t, volume.Write(maskPath, mask, volume.None))

	cfg := config.DefaultConfig()
	cfg.Output.Verbose = false
	runner := NewRunner(&Params{
		ImagePath: imagePath,
		MaskPath:  maskPath,
		OutputDir: filepath.Join(dir, "out"),
		Config:    cfg,
		Tables:    flatTables(),
	})

	err := runner.Process()
	require.ErrorIs(t, err, calibration.ErrCalibrationFailed)
	require.ErrorIs(t, err, energy.ErrNoConvergence)

	_, statErr := os.Stat(filepath.Join(dir, "out", "flat_IC_K2HPO4.vol"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(dir, "out", "flat_IntCalibParameters.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcessMismatchedMask(t *testing.T) {
	dir := t.TempDir()
	imagePath, _ := writeScan(t, dir, 5)

	other := models.NewVolumeGrid(models.NewGeometry(12, 9, 5, models.Vec3{X: 0.8, Y: 0.8, Z: 1.5}))
	maskPath := filepath.Join(dir, "other_labels.vol")
	require.NoError(t, volume.Write(maskPath, other, volume.S2))

	cfg := config.DefaultConfig()
	cfg.Output.Verbose = false
	err := NewRunner(&Params{ImagePath: imagePath, MaskPath: maskPath, OutputDir: dir, Config: cfg}).Process()
	assert.ErrorIs(t, err, tissue.ErrGeometryMismatch)
}

func TestProcessMissingInput(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Output.Verbose = false

	err := NewRunner(&Params{
		ImagePath: filepath.Join(dir, "absent.vol"),
		MaskPath:  filepath.Join(dir, "absent_labels.vol"),
		OutputDir: dir,
		Config:    cfg,
	}).Process()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func flatTables() []attenuation.Table {
	tables := make([]attenuation.Table, 0, attenuation.NumMaterials)
	for _, m := range attenuation.Materials() {
		tables = append(tables, attenuation.Table{Material: m, Samples: []attenuation.Sample{
			{EnergyKeV: 1, MuOverRho: 0.2},
			{EnergyKeV: 200, MuOverRho: 0.2},
		}})
	}
	return tables
}

func TestProcessFailedWriteLeavesNoOutputs(t *testing.T) {
	dir := t.TempDir()
	imagePath, maskPath := writeScan(t, dir, 5)
	out := filepath.Join(dir, "out")

	// A directory where the Archimedean volume belongs makes its write fail
	// after the report and the K2HPO4 volume have been produced.
	blocked := filepath.Join(out, "QCTCAL_0001"+transform.Archimedean.Suffix()+volume.Ext)
	require.NoError(t, os.MkdirAll(blocked, 0755))

	cfg := config.DefaultConfig()
	cfg.Output.Verbose = false
	runner := NewRunner(&Params{ImagePath: imagePath, MaskPath: maskPath, OutputDir: out, Config: cfg})
	require.Error(t, runner.Process())

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{filepath.Base(blocked)}, names)
	assert.Empty(t, runner.Result().ReportPath)
	assert.Empty(t, runner.Result().VolumePaths)
}

func TestStageDiscard(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "a.txt")

	var st stage
	require.NoError(t, st.write(dest, func(w io.Writer) error {
		_, err := io.WriteString(w, "partial")
		return err
	}))
	require.NoError(t, st.discard())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStageCommit(t *testing.T) {
	dir := t.TempDir()

	var st stage
	for _, name := range []string{"a.txt", "b.txt"} {
		require.NoError(t, st.write(filepath.Join(dir, name), func(w io.Writer) error {
			_, err := io.WriteString(w, name)
			return err
		}))
	}
	_, err := os.Stat(filepath.Join(dir, "a.txt"))
	require.True(t, os.IsNotExist(err))

	require.NoError(t, st.commit())
	for _, name := range []string{"a.txt", "b.txt"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, name, string(data))
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
