// Package volume stores VolumeGrids on disk as a YAML header followed by a
// compressed little-endian float64 payload:
//
//	format: intcal-volume/1
//	geometry: {...}
//	codec: zstd
//	voxels: 1048576
//	checksum: 9c4f0e2d51a7b3e8
//	---
//	<payload>
//
// The checksum is the xxHash64 of the geometry and the uncompressed payload.
// It is a working format for the calibration pipeline, not an interchange
// format for scanners or viewers.
package volume

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"intcal/internal/models"
)

// Format identifies the header layout.
const Format = "intcal-volume/1"

// Ext is the conventional file extension.
const Ext = ".vol"

var separator = []byte("\n---\n")

var (
	// ErrFormat is returned for files that are not volumes of this format.
	ErrFormat = errors.New("malformed volume file")

	// ErrChecksum is returned when the payload does not match the header.
	ErrChecksum = errors.New("volume checksum mismatch")
)

type header struct {
	Format   string          `yaml:"format"`
	Geometry models.Geometry `yaml:"geometry"`
	Codec    Codec           `yaml:"codec"`
	Voxels   int             `yaml:"voxels"`
	Checksum string          `yaml:"checksum"`
}

// Checksum returns the xxHash64 of a grid's geometry and voxel values.
func Checksum(grid *models.VolumeGrid) uint64 {
	return checksum(grid.Geometry, encode(grid.Data))
}

func checksum(g models.Geometry, raw []byte) uint64 {
	d := xxhash.New()
	fmt.Fprintf(d, "%+v\n", g)
	d.Write(raw)
	return d.Sum64()
}

func encode(data []float64) []byte {
	raw := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
	}
	return raw
}

func decode(raw []byte) []float64 {
	data := make([]float64, len(raw)/8)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return data
}

// Marshal serialises a grid with the given codec.
func Marshal(grid *models.VolumeGrid, codec Codec) ([]byte, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	raw := encode(grid.Data)
	payload, err := codec.compress(raw)
	if err != nil {
		return nil, err
	}

	head, err := yaml.Marshal(header{
		Format:   Format,
		Geometry: grid.Geometry,
		Codec:    codec,
		Voxels:   len(grid.Data),
		Checksum: fmt.Sprintf("%016x", checksum(grid.Geometry, raw)),
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling volume header: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(head) + len(separator) + len(payload))
	buf.Write(bytes.TrimSuffix(head, []byte("\n")))
	buf.Write(separator)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Unmarshal parses a grid produced by Marshal.
func Unmarshal(data []byte) (*models.VolumeGrid, error) {
	i := bytes.Index(data, separator)
	if i < 0 {
		return nil, fmt.Errorf("%w: missing header separator", ErrFormat)
	}

	var h header
	if err := yaml.Unmarshal(data[:i], &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if h.Format != Format {
		return nil, fmt.Errorf("%w: format %q", ErrFormat, h.Format)
	}
	if err := h.Geometry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if h.Voxels != h.Geometry.Len() {
		return nil, fmt.Errorf("%w: %d voxels for geometry %s", ErrFormat, h.Voxels, h.Geometry)
	}

	raw, err := h.Codec.decompress(data[i+len(separator):], 8*h.Voxels)
	if err != nil {
		return nil, err
	}
	if got := fmt.Sprintf("%016x", checksum(h.Geometry, raw)); got != h.Checksum {
		return nil, fmt.Errorf("%w: header %s, payload %s", ErrChecksum, h.Checksum, got)
	}

	return &models.VolumeGrid{Geometry: h.Geometry, Data: decode(raw)}, nil
}

// Write stores a grid at path. The file is written under a temporary name in
// the same directory and renamed into place, so a failed write never leaves a
// truncated volume at path.
func Write(path string, grid *models.VolumeGrid, codec Codec) error {
	data, err := Marshal(grid, codec)
	if err != nil {
		return err
	}

	file, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("error creating volume file: %w", err)
	}
	tmp := file.Name()
	defer os.Remove(tmp)

	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("error writing volume file: %w", err)
	}
	if err := file.Chmod(0644); err != nil {
		file.Close()
		return fmt.Errorf("error writing volume file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("error writing volume file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("error writing volume file: %w", err)
	}
	return nil
}

// Read loads a grid from path.
func Read(path string) (*models.VolumeGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading volume file: %w", err)
	}
	grid, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return grid, nil
}
