package geometry

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/logging"
)

// ErrInvalidUV is returned in strict mode when a UV coordinate leaves [0,1].
var ErrInvalidUV = errors.New("uv outside unit square")

// UV is a normalised position on a footprint.
type UV struct {
	U, V float64
}

func (uv UV) valid() bool {
	return uv.U >= 0 && uv.U <= 1 && uv.V >= 0 && uv.V <= 1
}

func (uv UV) clamped() UV {
	return UV{U: clamp01(uv.U), V: clamp01(uv.V)}
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

// lerp is written as a*(1-t) + b*t so both ends are hit exactly.
func lerp(a, b orb.Point, t float64) orb.Point {
	return orb.Point{
		a[0]*(1-t) + b[0]*t,
		a[1]*(1-t) + b[1]*t,
	}
}

// Bilinear maps uv onto q: E = lerp(A,D,v), F = lerp(B,C,v), P = lerp(E,F,u).
// It works for any convex quad, so rotated or skewed footprints are fine.
func Bilinear(q Quad, uv UV) orb.Point {
	e := lerp(q[0], q[3], uv.V)
	f := lerp(q[1], q[2], uv.V)
	return lerp(e, f, uv.U)
}

// Extrusion is a unit polygon with its vertical extent in metres.
type Extrusion struct {
	UnitID    string      `json:"unitId"`
	Polygon   orb.Polygon `json:"polygon"`
	MinHeight float64     `json:"minHeight"`
	MaxHeight float64     `json:"maxHeight"`
}

// Geographic places units on a footprint by UV subdivision.
type Geographic struct {
	FloorHeight float64 `json:"floorHeight" yaml:"floorHeight"`
	UnitHeight  float64 `json:"unitHeight" yaml:"unitHeight"`
	Inset       float64 `json:"inset" yaml:"inset"`
	VMin        float64 `json:"vMin" yaml:"vMin"`
	VMax        float64 `json:"vMax" yaml:"vMax"`

	// Strict turns out-of-range UVs into ErrInvalidUV. Otherwise they are
	// clamped and logged.
	Strict bool `json:"strict" yaml:"strict"`

	Log logrus.FieldLogger `json:"-" yaml:"-"`
}

// DefaultGeographic returns the showcase map layout in lenient mode.
func DefaultGeographic() Geographic {
	return Geographic{
		FloorHeight: 3.1,
		UnitHeight:  0.25,
		Inset:       0.02,
		VMin:        0.1,
		VMax:        0.9,
	}
}

// Rect returns the UV rectangle of u: corners in A, B, C, D order.
func (g Geographic) Rect(u catalog.Unit, s Site) [4]UV {
	frac := 1 / float64(s.UnitsPerFloor)
	c := float64(u.Column - 1)
	u0 := c*frac + g.Inset
	u1 := (c+1)*frac - g.Inset
	return [4]UV{
		{U: u0, V: g.VMin},
		{U: u1, V: g.VMin},
		{U: u1, V: g.VMax},
		{U: u0, V: g.VMax},
	}
}

// Point maps a single uv onto q, enforcing the UV policy.
func (g Geographic) Point(q Quad, uv UV) (orb.Point, error) {
	if !uv.valid() {
		if g.Strict {
			return orb.Point{}, fmt.Errorf("%w: (%g, %g)", ErrInvalidUV, uv.U, uv.V)
		}
		logging.Or(g.Log).WithFields(logrus.Fields{
			"u": uv.U,
			"v": uv.V,
		}).Warn("clamping uv")
		uv = uv.clamped()
	}
	return Bilinear(q, uv), nil
}

// Project returns the extruded polygon of u on site s.
func (g Geographic) Project(u catalog.Unit, s Site) (Extrusion, error) {
	if err := s.CheckPosition(u); err != nil {
		return Extrusion{}, err
	}
	q, err := s.Quad()
	if err != nil {
		return Extrusion{}, err
	}

	rect := g.Rect(u, s)
	ring := make(orb.Ring, 0, 5)
	for _, uv := range rect {
		p, err := g.Point(q, uv)
		if err != nil {
			return Extrusion{}, fmt.Errorf("unit %s: %w", u.ID, err)
		}
		ring = append(ring, p)
	}
	ring = append(ring, ring[0])

	// GeoJSON wants counter-clockwise exterior rings.
	if ring.Orientation() == orb.CW {
		ring.Reverse()
	}

	base := float64(u.Floor) * g.FloorHeight
	return Extrusion{
		UnitID:    u.ID,
		Polygon:   orb.Polygon{ring},
		MinHeight: base,
		MaxHeight: base + g.UnitHeight,
	}, nil
}
