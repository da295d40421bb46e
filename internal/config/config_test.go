package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/logging"
)

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	assert.Len(t, s.Buildings, 2)
	assert.True(t, s.Buildings[0].WithParking)

	w, err := s.World(nil)
	require.NoError(t, err)
	assert.Equal(t, 48, w.Catalog.Len())
}

func TestDecodeOverridesDefaults(t *testing.T) {
	src := `
buildings:
  - kind: a
    floors: 3
    unitsPerFloor: 2
    offsetX: 0
    center: {lon: 2.35, lat: 48.85}
layout:
  params:
    baseArea: 50
    columnAreaStep: 2.5
    floorAreaStep: 0.9
    areaPrecision: 1
    roomBonusCycle: [0]
    statusModulus: 6
    soldSlots: 1
    reservedSlots: 1
  camera:
    positionFactor: 0.5
    targetFactor: 0.5
    targetDistance: 10
    distanceFactor: 0.2
    distanceTolerance: 0.1
`
	s, err := Decode(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, s.Buildings, 1)
	assert.Equal(t, 50.0, s.Layout.Params.BaseArea)
	assert.Equal(t, 0.5, s.Layout.Camera.PositionFactor)
	assert.Len(t, s.Layout.Hotspots, 5, "untouched sections keep defaults")
	assert.Equal(t, 0.7, s.Layout.Volumetric.FloorSpacing)

	w, err := s.World(nil)
	require.NoError(t, err)
	u, ok := w.Catalog.Lookup("A-1-1")
	require.True(t, ok)
	assert.Equal(t, 1, u.Rooms)
	assert.InDelta(t, 53.4, u.Area, 1e-9)
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]string{
		"no buildings":    "buildings: []\n",
		"zero floors":     "buildings:\n  - {kind: a, floors: 0, unitsPerFloor: 2, center: {lon: 0, lat: 0}}\n",
		"no position":     "buildings:\n  - {kind: a, floors: 2, unitsPerFloor: 2}\n",
		"upper kind":      "buildings:\n  - {kind: A, floors: 2, unitsPerFloor: 2, center: {lon: 0, lat: 0}}\n",
		"duplicate kind":  "buildings:\n  - {kind: a, floors: 2, unitsPerFloor: 2, center: {lon: 0, lat: 0}}\n  - {kind: a, floors: 2, unitsPerFloor: 2, center: {lon: 0, lat: 0}}\n",
		"bad camera":      "layout:\n  camera: {positionFactor: 2, targetFactor: 0.1, targetDistance: 8, distanceFactor: 0.2}\n",
		"bad zoom range":  "tiles: {layer: units, minZoom: 18, maxZoom: 14}\n",
		"three corners":   "buildings:\n  - {kind: a, floors: 2, unitsPerFloor: 2, footprint: [{lon: 0, lat: 0}, {lon: 1, lat: 0}, {lon: 1, lat: 1}]}\n",
		"flat area steps": "layout:\n  params: {baseArea: 36, columnAreaStep: 0, floorAreaStep: 0.9, areaPrecision: 1, roomBonusCycle: [1], statusModulus: 6, soldSlots: 1, reservedSlots: 1}\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(src))
			assert.ErrorIs(t, err, catalog.ErrInvalidParameters)
		})
	}

	_, err := Decode(strings.NewReader("unknown: 1\n"))
	assert.Error(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Default().Encode(&buf))

	s, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, Default().Buildings, s.Buildings)
	assert.Equal(t, Default().Layout.Volumetric, s.Layout.Volumetric)
}

func TestLoad(t *testing.T) {
	s, err := Load("", logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, Default().Buildings, s.Buildings)

	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tiles: {layer: estate, minZoom: 15, maxZoom: 17}\n"), 0644))
	s, err = Load(path, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, "estate", s.Tiles.Layer)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), logging.Discard())
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ESTATE_TEST_VALUE=42\n"), 0644))
	t.Setenv("ESTATE_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("ESTATE_TEST_VALUE"))

	LoadEnv(logging.Discard(), path)
	assert.Equal(t, "42", os.Getenv("ESTATE_TEST_VALUE"))

	LoadEnv(logging.Discard(), filepath.Join(t.TempDir(), "none.env"))
}
