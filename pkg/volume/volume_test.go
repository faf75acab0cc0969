package volume

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intcal/internal/models"
)

func testGrid() *models.VolumeGrid {
	g := models.NewGeometry(16, 12, 5, models.Vec3{X: 0.7, Y: 0.7, Z: 1.25})
	g.Origin = models.Vec3{X: -120.5, Y: 33.1, Z: 1024}
	g.Direction = [9]float64{1, 0, 0, 0, 0, -1, 0, 1, 0}

	grid := models.NewVolumeGrid(g)
	for i := range grid.Data {
		grid.Data[i] = float64(i%97)*13.5 - 1024
	}
	grid.Data[3] = math.Inf(1)
	grid.Data[4] = -0.1
	return grid
}

func TestRoundTripEveryCodec(t *testing.T) {
	grid := testGrid()
	dir := t.TempDir()

	for _, codec := range Codecs() {
		t.Run(string(codec), func(t *testing.T) {
			path := filepath.Join(dir, "scan_"+string(codec)+Ext)
			require.NoError(t, Write(path, grid, codec))

			got, err := Read(path)
			require.NoError(t, err)
			assert.Equal(t, grid.Geometry, got.Geometry)
			assert.Equal(t, grid.Data, got.Data)
		})
	}
}

func TestRoundTripPreservesNaN(t *testing.T) {
	grid := testGrid()
	grid.Data[0] = math.NaN()

	data, err := Marshal(grid, LZ4)
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got.Data[0]))
	assert.Equal(t, grid.Data[1:], got.Data[1:])
}

func TestCompressionShrinksPayload(t *testing.T) {
	grid := models.NewVolumeGrid(models.NewGeometry(64, 64, 8, models.Vec3{X: 1, Y: 1, Z: 1}))

	plain, err := Marshal(grid, None)
	require.NoError(t, err)
	for _, codec := range []Codec{Zstd, S2, LZ4} {
		packed, err := Marshal(grid, codec)
		require.NoError(t, err)
		assert.Less(t, len(packed), len(plain)/4, codec)
	}
}

func TestHeaderIsReadable(t *testing.T) {
	data, err := Marshal(testGrid(), Zstd)
	require.NoError(t, err)

	head := string(data[:bytes.Index(data, separator)])
	assert.Contains(t, head, "format: "+Format)
	assert.Contains(t, head, "codec: zstd")
	assert.Contains(t, head, "voxels: 960")
	assert.Contains(t, head, "width: 16")
}

func TestChecksumMismatch(t *testing.T) {
	grid := testGrid()
	data, err := Marshal(grid, None)
	require.NoError(t, err)

	data[len(data)-1] ^= 0xff
	_, err = Unmarshal(data)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestChecksumCoversGeometry(t *testing.T) {
	grid := testGrid()
	data, err := Marshal(grid, None)
	require.NoError(t, err)

	edited := bytes.Replace(data, []byte("z: 1.25"), []byte("z: 2.5"), 1)
	require.NotEqual(t, data, edited)
	_, err = Unmarshal(edited)
	assert.ErrorIs(t, err, ErrChecksum)

	moved := *grid
	moved.Origin.X++
	assert.NotEqual(t, Checksum(grid), Checksum(&moved))
}

func TestUnmarshalRejectsMalformed(t *testing.T) {
	grid := testGrid()
	data, err := Marshal(grid, Zstd)
	require.NoError(t, err)
	i := bytes.Index(data, separator)

	cases := map[string][]byte{
		"no separator":   data[:i],
		"bad format":     bytes.Replace(data, []byte(Format), []byte("other/2"), 1),
		"voxel count":    bytes.Replace(data, []byte("voxels: 960"), []byte("voxels: 961"), 1),
		"truncated":      data[:len(data)-10],
		"unknown codec":  bytes.Replace(data, []byte("codec: zstd"), []byte("codec: gzip"), 1),
		"not yaml":       append([]byte("::: [\n"), data[i:]...),
		"zero dimension": bytes.Replace(data, []byte("width: 16"), []byte("width: 0"), 1),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal(input)
			assert.Error(t, err)
		})
	}
}

func TestMarshalRejectsInvalidGrid(t *testing.T) {
	grid := testGrid()
	grid.Data = grid.Data[:10]
	_, err := Marshal(grid, None)
	assert.ErrorIs(t, err, models.ErrInvalidGeometry)

	_, err = Marshal(testGrid(), Codec("brotli"))
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestParseCodec(t *testing.T) {
	c, err := ParseCodec("")
	require.NoError(t, err)
	assert.Equal(t, Zstd, c)

	c, err = ParseCodec("lz4")
	require.NoError(t, err)
	assert.Equal(t, LZ4, c)

	_, err = ParseCodec("gzip")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing"+Ext))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan"+Ext)
	require.NoError(t, os.Mkdir(path, 0755))

	assert.Error(t, Write(path, testGrid(), Zstd))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDir())
}

func TestWriteReplacesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan"+Ext)
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))

	grid := testGrid()
	require.NoError(t, Write(path, grid, S2))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, grid.Data, got.Data)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}
