package gotiler_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-estate/internal/pmtiles"
	"github.com/joeblew999/plat-estate/internal/scene"
	"github.com/joeblew999/plat-estate/internal/tiler/gotiler"
	"github.com/joeblew999/plat-estate/internal/tiler"
)

func estate(t *testing.T) *geojson.FeatureCollection {
	t.Helper()
	w, err := scene.NewWorld(scene.DefaultSites(), scene.DefaultLayout())
	require.NoError(t, err)
	fc, err := w.AllFeatures()
	require.NoError(t, err)
	return fc
}

func TestTileEstate(t *testing.T) {
	var (
		buf  bytes.Buffer
		last int
	)
	stats, err := gotiler.New().Tile(context.Background(), estate(t), &buf, tiler.DefaultConfig(), func(p int, _ string) {
		assert.GreaterOrEqual(t, p, last)
		last = p
	})
	require.NoError(t, err)
	assert.Equal(t, 100, last)
	assert.Equal(t, 48, stats.Features)
	assert.GreaterOrEqual(t, stats.Tiles, 5, "at least one tile per zoom")
	assert.Equal(t, buf.Len(), stats.Bytes)

	b := buf.Bytes()
	h, err := pmtiles.ReadHeader(b)
	require.NoError(t, err)
	assert.Equal(t, uint8(14), h.MinZoom)
	assert.Equal(t, uint8(18), h.MaxZoom)
	assert.Equal(t, pmtiles.Mvt, h.TileType)
	assert.InDelta(t, -4.0385, float64(h.CenterLonE7)/1e7, 0.001)

	entries, err := pmtiles.ReadDirectory(b[h.RootOffset : h.RootOffset+h.RootLength])
	require.NoError(t, err)
	require.Len(t, entries, stats.Tiles)

	z14 := entries[0]
	data := b[h.TileDataOffset+z14.Offset : h.TileDataOffset+z14.Offset+uint64(z14.Length)]
	layers, err := mvt.UnmarshalGzipped(data)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, "units", layers[0].Name)
	require.NotEmpty(t, layers[0].Features)
	assert.NotEmpty(t, layers[0].Features[0].Properties.MustString("id", ""))
}

func TestTileDoesNotMutateInput(t *testing.T) {
	fc := estate(t)
	before, err := fc.MarshalJSON()
	require.NoError(t, err)

	_, err = gotiler.New().Tile(context.Background(), fc, &bytes.Buffer{}, tiler.DefaultConfig(), nil)
	require.NoError(t, err)

	after, err := fc.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestTileErrors(t *testing.T) {
	g := gotiler.New()
	_, err := g.Tile(context.Background(), geojson.NewFeatureCollection(), &bytes.Buffer{}, tiler.DefaultConfig(), nil)
	assert.ErrorIs(t, err, pmtiles.ErrNoTiles)

	_, err = g.Tile(context.Background(), estate(t), &bytes.Buffer{}, tiler.Config{Layer: "units", MinZoom: 18, MaxZoom: 14}, nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Tile(ctx, estate(t), &bytes.Buffer{}, tiler.DefaultConfig(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
