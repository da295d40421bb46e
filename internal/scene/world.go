// Package scene runs browsing sessions: one ViewState per rendering
// surface, fed by pointer events and advanced once per animation tick.
package scene

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-estate/internal/camera"
	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/filter"
	"github.com/joeblew999/plat-estate/internal/geometry"
)

// ErrUnknownBuilding is returned when a kind names no site of the world.
var ErrUnknownBuilding = errors.New("unknown building")

// Layout groups everything except the sites that shapes a World.
type Layout struct {
	Params     catalog.Params      `json:"params" yaml:"params"`
	Volumetric geometry.Volumetric `json:"volumetric" yaml:"volumetric"`
	Geographic geometry.Geographic `json:"geographic" yaml:"geographic"`
	Camera     camera.Params       `json:"camera" yaml:"camera"`
	Hotspots   []Hotspot           `json:"hotspots" yaml:"hotspots"`
}

// DefaultLayout returns the showcase layout.
func DefaultLayout() Layout {
	return Layout{
		Params:     catalog.DefaultParams(),
		Volumetric: geometry.DefaultVolumetric(),
		Geographic: geometry.DefaultGeographic(),
		Camera:     camera.DefaultParams(),
		Hotspots:   DefaultHotspots(),
	}
}

// DefaultSites returns the two showcase buildings.
func DefaultSites() []geometry.Site {
	center := orb.Point{-4.0387, 36.7696}
	east := orb.Point{-4.0383, 36.7696}
	return []geometry.Site{
		{
			Building:    catalog.Building{Kind: catalog.KindA, Floors: 6, UnitsPerFloor: 4},
			OffsetX:     -3.6,
			Center:      &center,
			WithParking: true,
		},
		{
			Building: catalog.Building{Kind: catalog.KindB, Floors: 6, UnitsPerFloor: 4},
			OffsetX:  3.6,
			Center:   &east,
		},
	}
}

// World is an immutable snapshot of the estate: sites, their catalog and
// the layout used to place units. Sessions share one.
type World struct {
	Catalog *catalog.Catalog
	Sites   []geometry.Site
	Layout  Layout
}

// NewWorld generates the catalog of sites.
func NewWorld(sites []geometry.Site, l Layout) (*World, error) {
	if len(sites) == 0 {
		return nil, fmt.Errorf("%w: no buildings", catalog.ErrInvalidParameters)
	}
	buildings := make([]catalog.Building, len(sites))
	for i, s := range sites {
		buildings[i] = s.Building
	}
	c, err := catalog.New(buildings, l.Params)
	if err != nil {
		return nil, err
	}
	return &World{
		Catalog: c,
		Sites:   append([]geometry.Site(nil), sites...),
		Layout:  l,
	}, nil
}

// Site returns the site of kind k.
func (w *World) Site(k catalog.Kind) (geometry.Site, bool) {
	for _, s := range w.Sites {
		if s.Kind == k {
			return s, true
		}
	}
	return geometry.Site{}, false
}

// CheckBuilding accepts "all" and the kinds of w.
func (w *World) CheckBuilding(k catalog.Kind) error {
	if k == filter.AllBuildings {
		return nil
	}
	if _, ok := w.Site(k); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBuilding, k)
	}
	return nil
}

// Boxes returns the 3D boxes of building k.
func (w *World) Boxes(k catalog.Kind) ([]geometry.Box, error) {
	s, ok := w.Site(k)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBuilding, k)
	}
	return w.Layout.Volumetric.Boxes(w.Catalog.Building(k), s)
}

// Features returns the GeoJSON layer of building k.
func (w *World) Features(k catalog.Kind) (*geojson.FeatureCollection, error) {
	s, ok := w.Site(k)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBuilding, k)
	}
	return w.Layout.Geographic.FeatureCollection(w.Catalog.Building(k), s)
}

// AllFeatures returns the unit polygons of every site in one layer.
func (w *World) AllFeatures() (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for _, s := range w.Sites {
		units, err := w.Layout.Geographic.FeatureCollection(w.Catalog.Building(s.Kind), s)
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, units.Features...)
	}
	return fc, nil
}

// Anchor returns where the tooltip of unit id points on surface: the box
// centre in the 3D scene, or (lon, lat, roof height) on the map.
func (w *World) Anchor(surface Surface, id string) (*r3.Vector, error) {
	u, ok := w.Catalog.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("unit %q not in catalog", id)
	}
	s, ok := w.Site(u.Building)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBuilding, u.Building)
	}
	if surface == SurfaceMap {
		ext, err := w.Layout.Geographic.Project(u, s)
		if err != nil {
			return nil, err
		}
		c := ext.Polygon.Bound().Center()
		return &r3.Vector{X: c.Lon(), Y: c.Lat(), Z: ext.MaxHeight}, nil
	}
	box, err := w.Layout.Volumetric.Project(u, s)
	if err != nil {
		return nil, err
	}
	a := box.Anchor
	return &a, nil
}

// MapCenter returns the footprint centre of k, or of every site for "all".
func (w *World) MapCenter(k catalog.Kind) (orb.Point, error) {
	var b orb.Bound
	first := true
	for _, s := range w.Sites {
		if k != filter.AllBuildings && s.Kind != k {
			continue
		}
		q, err := s.Quad()
		if err != nil {
			return orb.Point{}, err
		}
		if first {
			b = q.Polygon().Bound()
			first = false
		} else {
			b = b.Union(q.Polygon().Bound())
		}
	}
	if first {
		return orb.Point{}, fmt.Errorf("%w: %q", ErrUnknownBuilding, k)
	}
	return b.Center(), nil
}
