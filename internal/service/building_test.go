package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/logging"
)

func seed() []BuildingConfig {
	return []BuildingConfig{
		{Kind: "a", Floors: 6, UnitsPerFloor: 4, OffsetX: -3.6, Center: &LonLat{Lon: -4.0387, Lat: 36.7696}, WithParking: true},
		{Kind: "b", Floors: 6, UnitsPerFloor: 4, OffsetX: 3.6, Center: &LonLat{Lon: -4.0383, Lat: 36.7696}},
	}
}

func TestBuildingServiceSeedsAndPersists(t *testing.T) {
	dir := t.TempDir()
	s := NewBuildingService(dir, seed(), logging.Discard())
	require.Len(t, s.List(), 2)

	c, err := s.Create(BuildingConfig{Kind: "C", Floors: 3, UnitsPerFloor: 2, Center: &LonLat{Lon: -4.0379, Lat: 36.7696}})
	require.NoError(t, err)
	assert.Equal(t, catalog.Kind("c"), c.Kind)
	assert.Equal(t, "Building C", c.Name)
	assert.FileExists(t, filepath.Join(dir, "buildings.json"))

	// a second service over the same dir ignores the seed
	again := NewBuildingService(dir, nil, logging.Discard())
	list := again.List()
	require.Len(t, list, 3)
	assert.Equal(t, []catalog.Kind{"a", "b", "c"}, []catalog.Kind{list[0].Kind, list[1].Kind, list[2].Kind})
	a, ok := again.Get("a")
	require.True(t, ok)
	assert.True(t, a.WithParking)
}

func TestBuildingServiceErrors(t *testing.T) {
	s := NewBuildingService("", seed(), logging.Discard())

	_, err := s.Create(seed()[0])
	assert.ErrorIs(t, err, ErrBuildingExists)

	_, err = s.Create(BuildingConfig{Kind: "d", Floors: 0, UnitsPerFloor: 4, Center: &LonLat{}})
	assert.ErrorIs(t, err, catalog.ErrInvalidParameters)

	_, err = s.Create(BuildingConfig{Kind: "d", Floors: 2, UnitsPerFloor: 4})
	assert.ErrorIs(t, err, catalog.ErrInvalidParameters, "needs a footprint or centre")

	_, err = s.Create(BuildingConfig{Kind: "all", Floors: 2, UnitsPerFloor: 4, Center: &LonLat{}})
	assert.ErrorIs(t, err, catalog.ErrInvalidParameters)

	_, err = s.Update("z", seed()[0])
	assert.ErrorIs(t, err, ErrBuildingNotFound)
	assert.ErrorIs(t, s.Delete("z"), ErrBuildingNotFound)

	require.NoError(t, s.Delete("b"))
	assert.ErrorIs(t, s.Delete("a"), ErrLastBuilding)
}

func TestBuildingServiceUpdate(t *testing.T) {
	s := NewBuildingService("", seed(), nil)
	b := seed()[1]
	b.Kind = "ignored"
	b.Floors = 9

	got, err := s.Update("b", b)
	require.NoError(t, err)
	assert.Equal(t, catalog.Kind("b"), got.Kind)

	sites, err := s.Sites()
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, 9, sites[1].Floors)
}

func TestBuildingServiceIgnoresCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "buildings.json"), []byte("{"), 0644))
	s := NewBuildingService(dir, seed(), logging.Discard())
	assert.Len(t, s.List(), 2)
}

func TestSiteConversion(t *testing.T) {
	c := BuildingConfig{
		Kind: "a", Floors: 2, UnitsPerFloor: 2,
		Footprint: []LonLat{{0, 1}, {1, 1}, {1, 0}, {0, 0}},
	}
	s, err := c.Site()
	require.NoError(t, err)
	require.NotNil(t, s.Footprint)
	assert.Equal(t, 1.0, s.Footprint[1].Lon())

	back := ConfigFromSite(s)
	assert.Equal(t, c.Footprint, back.Footprint)
	assert.Nil(t, back.Center)

	c.Footprint = c.Footprint[:3]
	_, err = c.Site()
	assert.ErrorIs(t, err, catalog.ErrInvalidParameters)
}
