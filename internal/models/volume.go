package models

import (
	"errors"
	"fmt"
)

// ErrInvalidGeometry is returned when a grid's dimensions or data do not agree.
var ErrInvalidGeometry = errors.New("invalid volume geometry")

// Vec3 is a physical 3-vector in mm.
type Vec3 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Geometry describes the voxel lattice of a volume in physical space.
// Two grids with equal Geometry can be compared voxel by voxel.
type Geometry struct {
	// Width, Height, Depth are the dimensions of the volume in voxels
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Depth  int `yaml:"depth"`

	// VoxelSize is the physical size of each voxel in mm
	VoxelSize Vec3 `yaml:"voxelSize"`

	// Origin is the physical position of the first voxel in mm
	Origin Vec3 `yaml:"origin"`

	// Direction is the row-major 3x3 orientation matrix
	Direction [9]float64 `yaml:"direction,flow"`
}

// IdentityDirection is the axis-aligned orientation.
var IdentityDirection = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// NewGeometry returns an axis-aligned geometry at the origin.
func NewGeometry(width, height, depth int, voxelSize Vec3) Geometry {
	return Geometry{
		Width:     width,
		Height:    height,
		Depth:     depth,
		VoxelSize: voxelSize,
		Direction: IdentityDirection,
	}
}

// Len is the number of voxels described by the geometry.
func (g Geometry) Len() int {
	return g.Width * g.Height * g.Depth
}

// IsZero reports whether no geometry was recorded.
func (g Geometry) IsZero() bool {
	return g == Geometry{}
}

// Validate checks that the dimensions and voxel sizes are positive.
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 || g.Depth <= 0 {
		return fmt.Errorf("%w: dimensions %dx%dx%d", ErrInvalidGeometry, g.Width, g.Height, g.Depth)
	}
	if g.VoxelSize.X <= 0 || g.VoxelSize.Y <= 0 || g.VoxelSize.Z <= 0 {
		return fmt.Errorf("%w: voxel size %+v", ErrInvalidGeometry, g.VoxelSize)
	}
	return nil
}

// String formats the geometry for messages.
func (g Geometry) String() string {
	return fmt.Sprintf("%dx%dx%d @ %gx%gx%g mm", g.Width, g.Height, g.Depth,
		g.VoxelSize.X, g.VoxelSize.Y, g.VoxelSize.Z)
}

// VolumeGrid is a 3D intensity volume with its spatial metadata.
type VolumeGrid struct {
	Geometry

	// Data is the 3D volume data as a 1D array in row-major order
	// (x fastest, then y, then z)
	Data []float64
}

// NewVolumeGrid allocates a zero-filled grid for the given geometry.
func NewVolumeGrid(g Geometry) *VolumeGrid {
	return &VolumeGrid{
		Geometry: g,
		Data:     make([]float64, g.Len()),
	}
}

// Index returns the offset of voxel (x, y, z) in Data.
func (v *VolumeGrid) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the value of voxel (x, y, z).
func (v *VolumeGrid) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Validate checks the geometry and that Data holds exactly one value per voxel.
func (v *VolumeGrid) Validate() error {
	if err := v.Geometry.Validate(); err != nil {
		return err
	}
	if len(v.Data) != v.Len() {
		return fmt.Errorf("%w: %d values for %d voxels", ErrInvalidGeometry, len(v.Data), v.Len())
	}
	return nil
}
