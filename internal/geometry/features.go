package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/joeblew999/plat-estate/internal/catalog"
)

// FeatureCollection builds the GeoJSON layer of the units of site s. Each
// feature carries id, building, floor, status, area, rooms, min_height and
// height, the properties the map renderer styles and filters on.
func (g Geographic) FeatureCollection(units []catalog.Unit, s Site) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for _, u := range units {
		if u.Building != s.Kind {
			continue
		}
		ext, err := g.Project(u, s)
		if err != nil {
			return nil, err
		}
		f := geojson.NewFeature(ext.Polygon)
		f.ID = u.ID
		f.Properties["id"] = u.ID
		f.Properties["building"] = string(u.Building)
		f.Properties["floor"] = u.Floor
		f.Properties["status"] = u.Status.String()
		f.Properties["area"] = u.Area
		f.Properties["rooms"] = u.Rooms
		f.Properties["min_height"] = ext.MinHeight
		f.Properties["height"] = ext.MaxHeight
		fc.Append(f)
	}
	return fc, nil
}

// FootprintFeature returns the whole-building extrusion drawn under the units.
func (g Geographic) FootprintFeature(s Site) (*geojson.Feature, error) {
	q, err := s.Quad()
	if err != nil {
		return nil, err
	}
	ring := q.Ring()
	if ring.Orientation() == orb.CW {
		ring.Reverse()
	}
	f := geojson.NewFeature(orb.Polygon{ring})
	f.Properties["building"] = string(s.Kind)
	f.Properties["floors"] = s.Floors
	f.Properties["height"] = float64(s.Floors) * g.FloorHeight
	return f, nil
}

// HitTest returns the ID of the topmost unit polygon of fc containing p.
// A floor > 0 limits the search to that floor. ok is false on a miss.
func HitTest(fc *geojson.FeatureCollection, p orb.Point, floor int) (id string, ok bool) {
	best := -1.0
	for _, f := range fc.Features {
		poly, isPoly := f.Geometry.(orb.Polygon)
		if !isPoly {
			continue
		}
		if floor > 0 && propInt(f.Properties["floor"]) != floor {
			continue
		}
		if !poly.Bound().Contains(p) || !planar.PolygonContains(poly, p) {
			continue
		}
		h := f.Properties.MustFloat64("height", 0)
		if h > best {
			best = h
			id = f.Properties.MustString("id", "")
			ok = true
		}
	}
	return id, ok
}

// propInt reads an integer property that may have been decoded as float64.
func propInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
