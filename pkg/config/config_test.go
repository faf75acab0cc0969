package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intcal/pkg/attenuation"
	"intcal/pkg/tissue"
	"intcal/pkg/transform"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, runtime.NumCPU(), cfg.Processing.NumWorkers)
	assert.Equal(t, tissue.Labels{Air: 2, CorticalBone: 4, SkeletalMuscle: 5}, cfg.Labels)
	assert.Equal(t, "_IC_K2HPO4", cfg.Suffix(transform.K2HPO4Equivalent))
	assert.Equal(t, "_IC_ARCH", cfg.Suffix(transform.Archimedean))
	assert.Equal(t, "_IntCalibParameters.txt", cfg.Output.ReportSuffix)

	cal, err := cfg.Calibration()
	require.NoError(t, err)
	assert.Equal(t, attenuation.Linear, cal.Method)
	assert.Equal(t, 1.0, cal.WaterDensity)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Processing.NumWorkers = 3
	cfg.Processing.Interpolation = "akima"
	cfg.Labels.SkeletalMuscle = 7
	cfg.Output.Codec = "lz4"
	cfg.Output.SavePreviews = true
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("processing:\n  interpolation: fritsch-butland\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "fritsch-butland", cfg.Processing.Interpolation)
	assert.Equal(t, 1.0, cfg.Processing.WaterDensity)
	assert.Equal(t, "zstd", cfg.Output.Codec)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"method":        "processing:\n  interpolation: cubic\n",
		"water density": "processing:\n  waterDensity: -1\n",
		"workers":       "processing:\n  numWorkers: -2\n",
		"labels":        "labels:\n  air: 4\n",
		"codec":         "output:\n  codec: gzip\n",
		"suffix":        "output:\n  archimedeanSuffix: _IC_K2HPO4\n",
		"preview step":  "output:\n  savePreviews: true\n  previewStep: 0\n",
		"yaml":          "processing: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))

			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "corticalBone: 4")
	assert.Contains(t, string(data), "reportSuffix: _IntCalibParameters.txt")
}
