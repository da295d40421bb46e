package screen

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// mercatorTileUnits is the web-mercator extent covered by one 512px tile at
// zoom 0, in projected metres per pixel.
const mercatorTileUnits = 2 * math.Pi * 6378137 / 512

// MapView is the map surface camera: centre, zoom, bearing and pitch, the
// same parameters the map renderer takes. World space is web-mercator
// metres relative to Center, with Z up in metres.
type MapView struct {
	Center  orb.Point `json:"center"`
	Zoom    float64   `json:"zoom"`
	Bearing float64   `json:"bearing"` // degrees clockwise from north
	Pitch   float64   `json:"pitch"`   // degrees from straight down
}

// DefaultMapView frames center the way the showcase map does.
func DefaultMapView(center orb.Point) MapView {
	return MapView{Center: center, Zoom: 17.6, Bearing: -20, Pitch: 60}
}

// Anchor converts a lon/lat point at height metres into MapView world space.
func (m MapView) Anchor(p orb.Point, height float64) r3.Vector {
	c := project.WGS84.ToMercator(m.Center)
	q := project.WGS84.ToMercator(p)
	// mercator stretches lengths by 1/cos(lat); heights follow.
	scale := 1 / math.Cos(m.Center.Lat()*math.Pi/180)
	return r3.Vector{X: q[0] - c[0], Y: q[1] - c[1], Z: height * scale}
}

// UnitsPerPixel returns projected metres per screen pixel at m.Zoom.
func (m MapView) UnitsPerPixel() float64 {
	return mercatorTileUnits / math.Exp2(m.Zoom)
}

// ViewProjection implements Camera with an axonometric projection: the
// world is turned by Bearing, tilted by Pitch and scaled to pixels.
func (m MapView) ViewProjection(width, height float64) mgl64.Mat4 {
	upp := m.UnitsPerPixel()
	hw, hh := width/2*upp, height/2*upp
	depth := 1e3 * (hw + hh)
	proj := mgl64.Ortho(-hw, hw, -hh, hh, -depth, depth)
	view := mgl64.HomogRotate3DX(-mgl64.DegToRad(m.Pitch)).
		Mul4(mgl64.HomogRotate3DZ(mgl64.DegToRad(m.Bearing)))
	return proj.Mul4(view)
}

// ProjectLonLat projects a lon/lat point at height metres into pixels.
func (m MapView) ProjectLonLat(p orb.Point, height float64, vp Viewport) *Point {
	a := m.Anchor(p, height)
	return Project(&a, m, vp)
}

var _ Camera = MapView{}
