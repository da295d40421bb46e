// Package screen turns world or geo anchors into overlay pixel positions.
package screen

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// Point is a position in viewport pixels, origin top-left.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the size of the rendering surface in pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether the viewport can be projected onto.
func (v Viewport) Valid() bool {
	return v.Width > 0 && v.Height > 0 && !math.IsInf(v.Width, 0) && !math.IsInf(v.Height, 0)
}

// Contains reports whether p lies inside v.
func (v Viewport) Contains(p Point) bool {
	return p.X >= 0 && p.X <= v.Width && p.Y >= 0 && p.Y <= v.Height
}

// Camera is anything that can produce a combined view-projection matrix.
type Camera interface {
	ViewProjection(width, height float64) mgl64.Mat4
}

// Project maps anchor through cam into pixels:
// x = (ndc.x+1)/2*w, y = (1-ndc.y)/2*h.
// It returns nil when there is no anchor, no camera, the viewport is
// degenerate or the anchor is behind the camera.
func Project(anchor *r3.Vector, cam Camera, vp Viewport) *Point {
	if anchor == nil || cam == nil || !vp.Valid() {
		return nil
	}
	m := cam.ViewProjection(vp.Width, vp.Height)
	clip := m.Mul4x1(mgl64.Vec4{anchor.X, anchor.Y, anchor.Z, 1})
	w := clip.W()
	if w <= 0 || math.IsNaN(w) {
		return nil
	}
	nx, ny := clip.X()/w, clip.Y()/w
	if math.IsNaN(nx) || math.IsNaN(ny) || math.IsInf(nx, 0) || math.IsInf(ny, 0) {
		return nil
	}
	return &Point{
		X: (nx + 1) / 2 * vp.Width,
		Y: (1 - ny) / 2 * vp.Height,
	}
}
