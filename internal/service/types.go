// Package service holds the estate's editable state and file-backed
// artefacts: building configurations, GeoJSON exports and tile archives.
package service

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/geometry"
)

// LonLat is a WGS84 position.
type LonLat struct {
	Lon float64 `json:"lon" yaml:"lon" minimum:"-180" maximum:"180" validate:"gte=-180,lte=180" doc:"Longitude" example:"-4.0387"`
	Lat float64 `json:"lat" yaml:"lat" minimum:"-90" maximum:"90" validate:"gte=-90,lte=90" doc:"Latitude" example:"36.7696"`
}

func (p LonLat) point() orb.Point { return orb.Point{p.Lon, p.Lat} }

// BuildingConfig is one editable building of the estate.
// Huma reads the tags for OpenAPI and request validation; the site file
// loader validates the same fields with validator.
type BuildingConfig struct {
	Kind          catalog.Kind `json:"kind" yaml:"kind" required:"true" pattern:"^[a-z0-9]+$" validate:"required,alphanum,lowercase" doc:"Building identifier" example:"a"`
	Name          string       `json:"name,omitempty" yaml:"name,omitempty" maxLength:"100" validate:"max=100" doc:"Display name" example:"Building A"`
	Floors        int          `json:"floors" yaml:"floors" required:"true" minimum:"1" maximum:"80" validate:"min=1,max=80" doc:"Number of floors" example:"6"`
	UnitsPerFloor int          `json:"unitsPerFloor" yaml:"unitsPerFloor" required:"true" minimum:"1" maximum:"32" validate:"min=1,max=32" doc:"Units on each floor" example:"4"`
	OffsetX       float64      `json:"offsetX" yaml:"offsetX" required:"false" doc:"X offset of the building in the 3D scene" example:"-3.6"`
	Center        *LonLat      `json:"center,omitempty" yaml:"center,omitempty" validate:"required_without=Footprint" doc:"Footprint centre; used when no footprint is given"`
	Footprint     []LonLat     `json:"footprint,omitempty" yaml:"footprint,omitempty" minItems:"4" maxItems:"4" validate:"omitempty,len=4,dive" doc:"Corners A, B, C, D clockwise from top-left"`
	WithParking   bool         `json:"withParking" yaml:"withParking" required:"false" doc:"Whether the building has an underground car park"`
}

// Site converts c into the geometry placed on the map and in the scene.
func (c BuildingConfig) Site() (geometry.Site, error) {
	s := geometry.Site{
		Building: catalog.Building{
			Kind:          c.Kind,
			Floors:        c.Floors,
			UnitsPerFloor: c.UnitsPerFloor,
		},
		OffsetX:     c.OffsetX,
		WithParking: c.WithParking,
	}
	switch {
	case len(c.Footprint) == 4:
		q := geometry.Quad{}
		for i, p := range c.Footprint {
			q[i] = p.point()
		}
		s.Footprint = &q
	case len(c.Footprint) != 0:
		return s, fmt.Errorf("%w: footprint of %q needs 4 corners, got %d",
			catalog.ErrInvalidParameters, c.Kind, len(c.Footprint))
	case c.Center != nil:
		p := c.Center.point()
		s.Center = &p
	}
	if _, err := s.Quad(); err != nil {
		return s, err
	}
	return s, nil
}

// ConfigFromSite is the inverse of BuildingConfig.Site.
func ConfigFromSite(s geometry.Site) BuildingConfig {
	c := BuildingConfig{
		Kind:          s.Kind,
		Name:          "Building " + s.Kind.Label(),
		Floors:        s.Floors,
		UnitsPerFloor: s.UnitsPerFloor,
		OffsetX:       s.OffsetX,
		WithParking:   s.WithParking,
	}
	if s.Footprint != nil {
		for _, p := range s.Footprint {
			c.Footprint = append(c.Footprint, LonLat{Lon: p.Lon(), Lat: p.Lat()})
		}
	}
	if s.Center != nil {
		c.Center = &LonLat{Lon: s.Center.Lon(), Lat: s.Center.Lat()}
	}
	return c
}

// ExportFile is a GeoJSON layer written to the exports directory.
type ExportFile struct {
	Name     string `json:"name" doc:"File name" example:"a.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"12.3 KB"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON"`
}

// TileFile is a PMTiles archive in the tiles directory.
type TileFile struct {
	Name    string      `json:"name" doc:"PMTiles file name" example:"units.pmtiles"`
	Size    string      `json:"size" doc:"Human-readable file size" example:"5.4 KB"`
	MinZoom int         `json:"minZoom,omitempty" doc:"Lowest zoom in the archive"`
	MaxZoom int         `json:"maxZoom,omitempty" doc:"Highest zoom in the archive"`
	Tiles   uint64      `json:"tiles,omitempty" doc:"Number of addressed tiles"`
	Bounds  *[4]float64 `json:"bounds,omitempty" doc:"West, south, east, north in degrees"`
}
