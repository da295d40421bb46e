package pmtiles

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileID(t *testing.T) {
	assert.Equal(t, uint64(0), TileID(0, 0, 0))
	// z1 follows the Hilbert curve: (0,0) (0,1) (1,1) (1,0)
	assert.Equal(t, uint64(1), TileID(1, 0, 0))
	assert.Equal(t, uint64(2), TileID(1, 0, 1))
	assert.Equal(t, uint64(3), TileID(1, 1, 1))
	assert.Equal(t, uint64(4), TileID(1, 1, 0))
	assert.Equal(t, uint64(5), TileID(2, 0, 0))
	assert.Equal(t, uint64(20), TileID(2, 3, 0))
}

func TestTileIDsAreUniquePerZoom(t *testing.T) {
	seen := map[uint64]bool{}
	for z := uint8(0); z <= 4; z++ {
		n := uint32(1) << z
		for x := uint32(0); x < n; x++ {
			for y := uint32(0); y < n; y++ {
				id := TileID(z, x, y)
				assert.False(t, seen[id], "z%d/%d/%d", z, x, y)
				seen[id] = true
			}
		}
	}
	assert.Len(t, seen, 1+4+16+64+256)
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		SpecVersion: 3, RootOffset: 127, RootLength: 10, TileDataLength: 99,
		Clustered: true, InternalCompression: Gzip, TileCompression: Gzip, TileType: Mvt,
		MinZoom: 14, MaxZoom: 18, MinLonE7: -40390000, MaxLatE7: 367700000,
		CenterZoom: 17, CenterLonE7: -40385000,
	}
	b, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, HeaderLen)

	got, err := ReadHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, got)

	_, err = ReadHeader(b[:20])
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestWriteArchive(t *testing.T) {
	tiles := []Tile{
		{Z: 1, X: 1, Y: 0, Data: []byte("east")},
		{Z: 0, X: 0, Y: 0, Data: []byte("world")},
		{Z: 1, X: 0, Y: 0, Data: []byte("east")},
	}
	var buf bytes.Buffer
	h, err := Write(&buf, Archive{
		Name:    "units",
		MinZoom: 0,
		MaxZoom: 1,
		Bounds:  [4]float64{-4.04, 36.76, -4.03, 36.78},
		Center:  [2]float64{-4.0385, 36.7696},
		Extra:   map[string]any{"buildings": []string{"a"}},
	}, tiles)
	require.NoError(t, err)

	b := buf.Bytes()
	read, err := ReadHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, read)
	assert.Equal(t, uint64(3), h.TileEntriesCount)
	assert.Equal(t, uint64(2), h.TileContentsCount, "duplicate payload stored once")
	assert.Equal(t, uint64(len("world")+len("east")), h.TileDataLength)
	assert.Equal(t, int32(-40385000), h.CenterLonE7)

	entries, err := ReadDirectory(b[h.RootOffset : h.RootOffset+h.RootLength])
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []uint64{0, 1, 4}, []uint64{entries[0].TileID, entries[1].TileID, entries[2].TileID})

	data := b[h.TileDataOffset:]
	tile := func(e Entry) string { return string(data[e.Offset : e.Offset+uint64(e.Length)]) }
	assert.Equal(t, "world", tile(entries[0]))
	assert.Equal(t, "east", tile(entries[1]))
	assert.Equal(t, "east", tile(entries[2]))

	zr, err := gzip.NewReader(bytes.NewReader(b[h.MetadataOffset : h.MetadataOffset+h.MetadataLength]))
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "units", meta["name"])
	assert.Equal(t, "pbf", meta["format"])
	assert.Equal(t, []any{"a"}, meta["buildings"])
}

func TestWriteRejectsEmptyAndDuplicates(t *testing.T) {
	_, err := Write(io.Discard, Archive{}, nil)
	assert.ErrorIs(t, err, ErrNoTiles)

	_, err = Write(io.Discard, Archive{}, []Tile{{Data: []byte("a")}, {Data: []byte("b")}})
	assert.Error(t, err)
}
