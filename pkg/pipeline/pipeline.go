// Package pipeline runs a complete internal calibration of one scan: it reads
// the image and its reference-tissue mask, solves the calibration, writes the
// parameter report and the calibrated volumes.
package pipeline

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"intcal/internal/models"
	"intcal/pkg/attenuation"
	"intcal/pkg/calibration"
	"intcal/pkg/config"
	"intcal/pkg/report"
	"intcal/pkg/tissue"
	"intcal/pkg/transform"
	"intcal/pkg/visualization"
	"intcal/pkg/volume"
)

// Program is recorded in the provenance of every report.
const Program = "intcal"

// Params holds the inputs of one run.
type Params struct {
	// ImagePath is the CT volume in HU.
	ImagePath string

	// MaskPath is the label volume marking the reference tissues.
	MaskPath string

	// OutputDir receives the report, the calibrated volumes and the previews.
	OutputDir string

	// ID names the outputs; empty uses the image file name without extension.
	ID string

	// Version is recorded in the report.
	Version string

	// DateCreated is recorded in the report; empty uses today's date.
	DateCreated string

	// Config holds processing and output settings; nil uses the defaults.
	Config *config.Config

	// Tables are the attenuation tables; nil uses the reference tables.
	Tables []attenuation.Table

	// Progress receives the step messages when Config.Output.Verbose is set;
	// nil writes to standard output.
	Progress io.Writer
}

// Result describes the outputs of a successful run.
type Result struct {
	Parameters  calibration.Parameters
	Tissues     tissue.Summary
	ReportPath  string
	VolumePaths map[transform.Scale]string
	PreviewDirs map[transform.Scale]string
}

// Runner performs the calibration steps in order. The report and the
// calibrated volumes appear together or not at all: a failed run leaves none
// of them in the output directory.
type Runner struct {
	params *Params
	cfg    *config.Config

	image  *models.VolumeGrid
	mask   *models.VolumeGrid
	result Result
}

// NewRunner creates a runner for params.
func NewRunner(params *Params) *Runner {
	cfg := params.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Runner{params: params, cfg: cfg}
}

func (r *Runner) logf(format string, args ...any) {
	if !r.cfg.Output.Verbose {
		return
	}
	out := r.params.Progress
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format+"\n", args...)
}

// ID returns the name the outputs are prefixed with.
func (r *Runner) ID() string {
	if r.params.ID != "" {
		return r.params.ID
	}
	base := filepath.Base(r.params.ImagePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Process runs the complete calibration pipeline
func (r *Runner) Process() error {
	if err := r.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	calCfg, err := r.cfg.Calibration()
	if err != nil {
		return err
	}
	codec, err := volume.ParseCodec(r.cfg.Output.Codec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.params.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Step 1: Load image and mask
	r.logf("Step 1: Loading image and mask...")
	if err := r.load(); err != nil {
		return err
	}
	r.logf("  Image: %s (%s)", r.params.ImagePath, r.image.Geometry)

	// Step 2: Measure reference tissues
	r.logf("Step 2: Measuring reference tissues...")
	summary, err := tissue.Measure(r.image, r.mask, r.cfg.Labels)
	if err != nil {
		return fmt.Errorf("failed to measure reference tissues: %w", err)
	}
	r.result.Tissues = summary
	for _, t := range attenuation.ReferenceTissues() {
		st := summary.Of(t)
		r.logf("  %-16s %9.2f HU ± %.2f (%d voxels)", t, st.Of(tissue.Mean),
			math.Sqrt(st.Of(tissue.Variance)), int(st.Of(tissue.Count)))
	}

	// Step 3: Solve the calibration
	r.logf("Step 3: Solving calibration...")
	tables := r.params.Tables
	if tables == nil {
		tables = attenuation.ReferenceTables()
	}
	solver := calibration.NewSolver(tables, calCfg)
	params, err := solver.Solve(summary.Measurements(), r.provenance())
	if err != nil {
		return err
	}
	r.result.Parameters = params
	r.logf("  Effective energy: %d keV (R^2 = %.6f)", params.EffectiveEnergyKeV, params.MaxRSquared)

	// Step 4: Calibrate the image
	r.logf("Step 4: Calibrating image voxels...")
	out, err := transform.Apply(r.image, &params, transform.WithWorkers(calCfg.Workers))
	if err != nil {
		return fmt.Errorf("failed to calibrate image: %w", err)
	}

	// Step 5: Stage the report and the calibrated volumes
	r.logf("Step 5: Writing calibration report and volumes...")
	var st stage
	defer st.discard()

	reportPath := filepath.Join(r.params.OutputDir, r.ID()+r.cfg.Output.ReportSuffix)
	if err := st.write(reportPath, func(w io.Writer) error {
		return report.Write(w, &params)
	}); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	volumePaths := map[transform.Scale]string{}
	for _, s := range transform.Scales() {
		path := filepath.Join(r.params.OutputDir, r.ID()+r.cfg.Suffix(s)+volume.Ext)
		data, err := volume.Marshal(out.Of(s), codec)
		if err != nil {
			return fmt.Errorf("failed to encode %s volume: %w", s, err)
		}
		if err := st.write(path, func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}); err != nil {
			return fmt.Errorf("failed to write %s volume: %w", s, err)
		}
		volumePaths[s] = path
	}

	// Step 6: Move every output into place
	r.logf("Step 6: Committing outputs...")
	if err := st.commit(); err != nil {
		return err
	}
	r.result.ReportPath = reportPath
	r.result.VolumePaths = volumePaths
	r.logf("  Report: %s", reportPath)
	for _, s := range transform.Scales() {
		r.logf("  %s: %s", s, volumePaths[s])
	}

	// Step 7: Save previews
	if r.cfg.Output.SavePreviews {
		r.logf("Step 7: Saving previews...")
		r.result.PreviewDirs = map[transform.Scale]string{}
		for _, s := range transform.Scales() {
			dir := filepath.Join(r.params.OutputDir, r.ID()+r.cfg.Suffix(s)+"_previews")
			if err := r.savePreviews(out.Of(s), dir); err != nil {
				r.logf("Warning: Failed to save %s previews: %v", s, err)
				continue
			}
			r.result.PreviewDirs[s] = dir
		}
	}

	return nil
}

func (r *Runner) load() error {
	image, err := volume.Read(r.params.ImagePath)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	mask, err := volume.Read(r.params.MaskPath)
	if err != nil {
		return fmt.Errorf("failed to load mask: %w", err)
	}
	r.image, r.mask = image, mask
	return nil
}

func (r *Runner) provenance() calibration.Provenance {
	date := r.params.DateCreated
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	return calibration.Provenance{
		ID:             r.ID(),
		OutputFile:     r.ID() + r.cfg.Suffix(transform.K2HPO4Equivalent) + volume.Ext,
		Program:        Program,
		Version:        r.params.Version,
		DateCreated:    date,
		ImageDirectory: filepath.Dir(r.params.ImagePath),
		Image:          filepath.Base(r.params.ImagePath),
		MaskDirectory:  filepath.Dir(r.params.MaskPath),
		Mask:           filepath.Base(r.params.MaskPath),
		Geometry:       r.image.Geometry,
	}
}

func (r *Runner) savePreviews(grid *models.VolumeGrid, dir string) error {
	viewer, err := visualization.NewViewer(grid, visualization.AutoWindow(grid))
	if err != nil {
		return err
	}
	_, err = viewer.SaveSliceSequence("z", dir, r.cfg.Output.PreviewStep)
	return err
}

// Result returns the outputs recorded by Process.
func (r *Runner) Result() *Result {
	return &r.result
}
