// Package visualization renders QC previews of calibrated volumes.
package visualization

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"intcal/internal/models"
)

// ErrEmptyWindow is returned for a window whose bounds are not increasing.
var ErrEmptyWindow = errors.New("display window is empty")

// Window maps voxel values onto the gray scale: Low renders black, High
// renders white and values outside are clipped. NaN renders black.
type Window struct {
	Low  float64
	High float64
}

// AutoWindow spans the finite values of a grid. A constant grid gets a unit
// window centred on its value.
func AutoWindow(grid *models.VolumeGrid) Window {
	w := Window{Low: math.Inf(1), High: math.Inf(-1)}
	for _, v := range grid.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		w.Low = math.Min(w.Low, v)
		w.High = math.Max(w.High, v)
	}
	if w.Low > w.High {
		return Window{Low: 0, High: 1}
	}
	if w.Low == w.High {
		return Window{Low: w.Low - 0.5, High: w.High + 0.5}
	}
	return w
}

func (w Window) gray(v float64) color.Gray16 {
	if math.IsNaN(v) {
		return color.Gray16{}
	}
	t := (v - w.Low) / (w.High - w.Low)
	return color.Gray16{Y: uint16(math.Round(math.Max(0, math.Min(1, t)) * 65535))}
}

// Viewer extracts and saves 2D slices of a volume
type Viewer struct {
	grid   *models.VolumeGrid
	window Window
}

// NewViewer creates a viewer over grid rendered through window
func NewViewer(grid *models.VolumeGrid, window Window) (*Viewer, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if !(window.High > window.Low) {
		return nil, fmt.Errorf("%w: [%g, %g]", ErrEmptyWindow, window.Low, window.High)
	}
	return &Viewer{grid: grid, window: window}, nil
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	g := v.grid
	var img *image.Gray16

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= g.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, g.Width)
		}
		img = image.NewGray16(image.Rect(0, 0, g.Depth, g.Height))
		for y := 0; y < g.Height; y++ {
			for z := 0; z < g.Depth; z++ {
				img.SetGray16(z, y, v.window.gray(g.At(position, y, z)))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= g.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, g.Height)
		}
		img = image.NewGray16(image.Rect(0, 0, g.Width, g.Depth))
		for z := 0; z < g.Depth; z++ {
			for x := 0; x < g.Width; x++ {
				img.SetGray16(x, z, v.window.gray(g.At(x, position, z)))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= g.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, g.Depth)
		}
		img = image.NewGray16(image.Rect(0, 0, g.Width, g.Height))
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				img.SetGray16(x, y, v.window.gray(g.At(x, y, position)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence saves every step-th slice along the specified axis and
// returns the number of files written
func (v *Viewer) SaveSliceSequence(axis string, outputDir string, step int) (int, error) {
	if step <= 0 {
		return 0, fmt.Errorf("step must be positive, got %d", step)
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.grid.Width
	case "y", "Y":
		maxPos = v.grid.Height
	case "z", "Z":
		maxPos = v.grid.Depth
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	saved := 0
	for pos := 0; pos < maxPos; pos += step {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return saved, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return saved, err
		}
		saved++
	}

	return saved, nil
}
