package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"intcal/pkg/attenuation"
	"intcal/pkg/config"
	"intcal/pkg/pipeline"
	"intcal/pkg/transform"
)

const version = "1.1"

func main() {
	// Parse command line arguments
	imagePath := flag.String("image", "", "CT volume in HU")
	maskPath := flag.String("mask", "", "Label volume marking air, cortical bone and skeletal muscle")
	outputDir := flag.String("output", "", "Output directory (default: directory of the image)")
	id := flag.String("id", "", "Output name prefix (default: image file name)")
	configPath := flag.String("config", "intcal.yaml", "Configuration file")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration file and exit")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: from config)")
	method := flag.String("interpolation", "", "Table interpolation: linear, fritsch-butland or akima (default: from config)")
	codec := flag.String("codec", "", "Volume compression: none, zstd, s2 or lz4 (default: from config)")
	previews := flag.Bool("previews", false, "Save JPEG previews of the calibrated volumes")
	quiet := flag.Bool("quiet", false, "Only print errors")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *imagePath == "" || *maskPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override the configuration file
	if *workers > 0 {
		cfg.Processing.NumWorkers = *workers
	}
	if *method != "" {
		cfg.Processing.Interpolation = *method
	}
	if *codec != "" {
		cfg.Output.Codec = *codec
	}
	if *previews {
		cfg.Output.SavePreviews = true
	}
	if *quiet {
		cfg.Output.Verbose = false
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	dir := *outputDir
	if dir == "" {
		dir = filepath.Dir(*imagePath)
	}

	if cfg.Output.Verbose {
		fmt.Println("================================")
		fmt.Println("CT INTERNAL DENSITY CALIBRATION")
		fmt.Println("Reference tissues: air, cortical bone, skeletal muscle")
		fmt.Println("================================")
	}

	runner := pipeline.NewRunner(&pipeline.Params{
		ImagePath: *imagePath,
		MaskPath:  *maskPath,
		OutputDir: dir,
		ID:        *id,
		Version:   version,
		Config:    cfg,
	})

	startTime := time.Now()
	if err := runner.Process(); err != nil {
		log.Fatalf("Calibration failed: %v", err)
	}
	processingTime := time.Since(startTime)

	if !cfg.Output.Verbose {
		return
	}

	res := runner.Result()
	p := res.Parameters
	fmt.Printf("\nCalibration completed successfully in %.2f seconds!\n\n", processingTime.Seconds())

	fmt.Printf("Calibration Parameters:\n")
	fmt.Printf("=======================\n")
	fmt.Printf("Effective Energy: %d keV\n", p.EffectiveEnergyKeV)
	fmt.Printf("Max R^2: %.6f\n", p.MaxRSquared)
	fmt.Printf("HU to u/p: %.6g * HU + %.6g\n", p.HUToAttenuation.Slope, p.HUToAttenuation.Intercept)
	fmt.Printf("HU to material density: %.6g * HU + %.6g\n", p.HUToDensity.Slope, p.HUToDensity.Intercept)
	for i, t := range attenuation.ReferenceTissues() {
		fmt.Printf("%s density: %.4f g/cm^3\n", t, p.Densities[i])
	}

	fmt.Println("\nOutputs:")
	fmt.Printf("- Report: %s\n", res.ReportPath)
	for _, s := range transform.Scales() {
		fmt.Printf("- %s [%s]: %s\n", s, s.Unit(), res.VolumePaths[s])
	}
	for _, s := range transform.Scales() {
		if d, ok := res.PreviewDirs[s]; ok {
			fmt.Printf("- %s previews: %s\n", s, d)
		}
	}

	fmt.Println("\nPlease cite Michalski et al. 2020 Med Eng Phys when using this analysis.")
	fmt.Println("https://doi.org/10.1016/j.medengphy.2020.01.009")
}
