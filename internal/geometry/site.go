// Package geometry places units in space: as boxes in the 3D scene and as
// extruded lon/lat polygons on the map.
package geometry

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-estate/internal/catalog"
)

// Quad is a building footprint: four lon/lat corners ordered clockwise from
// the top-left (A, B, C, D).
type Quad [4]orb.Point

// Ring returns the closed ring A, B, C, D, A.
func (q Quad) Ring() orb.Ring {
	return orb.Ring{q[0], q[1], q[2], q[3], q[0]}
}

// Polygon returns the footprint as a polygon.
func (q Quad) Polygon() orb.Polygon {
	return orb.Polygon{q.Ring()}
}

// Footprint size derived from a building centre, in degrees.
const (
	footprintHalfWidth  = 0.00009
	footprintHalfHeight = 0.00006
	footprintBaseNarrow = 0.95
)

// FootprintFromCenter builds the default ~20m x 12m footprint around a
// lon/lat centre. The longitudinal half-width is scaled by cos(lat) and the
// bottom edge is narrowed slightly.
func FootprintFromCenter(center orb.Point) Quad {
	lng, lat := center.Lon(), center.Lat()
	dx := footprintHalfWidth * math.Cos(lat*math.Pi/180)
	dy := footprintHalfHeight
	return Quad{
		{lng - dx, lat + dy},
		{lng + dx, lat + dy},
		{lng + dx*footprintBaseNarrow, lat - dy},
		{lng - dx*footprintBaseNarrow, lat - dy},
	}
}

// Site is a building together with where it sits in both scenes.
type Site struct {
	catalog.Building `yaml:",inline"`

	// OffsetX shifts the building along X in the 3D scene.
	OffsetX float64 `json:"offsetX" yaml:"offsetX"`

	// Footprint wins over Center when both are set.
	Footprint *Quad      `json:"footprint,omitempty" yaml:"footprint,omitempty"`
	Center    *orb.Point `json:"center,omitempty" yaml:"center,omitempty"`

	WithParking bool `json:"withParking" yaml:"withParking"`
}

// Quad returns the site footprint, deriving it from Center when needed.
func (s Site) Quad() (Quad, error) {
	switch {
	case s.Footprint != nil:
		return *s.Footprint, nil
	case s.Center != nil:
		return FootprintFromCenter(*s.Center), nil
	}
	return Quad{}, fmt.Errorf("%w: building %q has neither footprint nor center",
		catalog.ErrInvalidParameters, s.Kind)
}

// CheckPosition reports whether u lies inside the building grid.
func (s Site) CheckPosition(u catalog.Unit) error {
	if u.Floor < 1 || u.Floor > s.Floors || u.Column < 1 || u.Column > s.UnitsPerFloor {
		return fmt.Errorf("%w: unit %s outside %dx%d grid of building %q",
			catalog.ErrInvalidParameters, u.ID, s.Floors, s.UnitsPerFloor, s.Kind)
	}
	return nil
}

// Midpoint returns the mean OffsetX of sites, the camera goal for "all".
func Midpoint(sites []Site) float64 {
	if len(sites) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sites {
		sum += s.OffsetX
	}
	return sum / float64(len(sites))
}
