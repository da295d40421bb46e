// Package camera keeps the 3D view following the active building.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Rig is the camera/controls handle of a rendering surface. The controller
// reads and writes it on every tick; it never holds one itself.
type Rig interface {
	Position() mgl64.Vec3
	SetPosition(mgl64.Vec3)
	Target() mgl64.Vec3
	SetTarget(mgl64.Vec3)
}

// Orbit is a perspective camera orbiting a target point. It is the rig the
// bridge keeps for each 3D session.
type Orbit struct {
	Eye    mgl64.Vec3 `json:"eye"`
	Center mgl64.Vec3 `json:"center"`
	Up     mgl64.Vec3 `json:"up"`
	FovY   float64    `json:"fovY"` // degrees
	Near   float64    `json:"near"`
	Far    float64    `json:"far"`
}

// NewOrbit returns an orbit looking at (x, 0, 0) from the given distance,
// raised by the given elevation angle in degrees.
func NewOrbit(x, distance, elevation float64) *Orbit {
	a := mgl64.DegToRad(elevation)
	return &Orbit{
		Eye:    mgl64.Vec3{x, distance * math.Sin(a), distance * math.Cos(a)},
		Center: mgl64.Vec3{x, 0, 0},
		Up:     mgl64.Vec3{0, 1, 0},
		FovY:   36,
		Near:   0.1,
		Far:    100,
	}
}

func (o *Orbit) Position() mgl64.Vec3     { return o.Eye }
func (o *Orbit) SetPosition(p mgl64.Vec3) { o.Eye = p }
func (o *Orbit) Target() mgl64.Vec3       { return o.Center }
func (o *Orbit) SetTarget(t mgl64.Vec3)   { o.Center = t }

// Distance returns the eye-to-target distance.
func (o *Orbit) Distance() float64 {
	return o.Eye.Sub(o.Center).Len()
}

// ViewProjection returns projection * view for a viewport of width x height.
func (o *Orbit) ViewProjection(width, height float64) mgl64.Mat4 {
	proj := mgl64.Perspective(mgl64.DegToRad(o.FovY), width/height, o.Near, o.Far)
	view := mgl64.LookAtV(o.Eye, o.Center, o.Up)
	return proj.Mul4(view)
}

// Rotate orbits the eye around the target by yaw degrees about the up axis,
// the way the user's drag does on the surface.
func (o *Orbit) Rotate(yaw float64) {
	r := mgl64.HomogRotate3DY(mgl64.DegToRad(yaw))
	rel := o.Eye.Sub(o.Center)
	o.Eye = o.Center.Add(r.Mul4x1(rel.Vec4(0)).Vec3())
}

// Dolly moves the eye along the view ray by delta.
func (o *Orbit) Dolly(delta float64) {
	rel := o.Eye.Sub(o.Center)
	l := rel.Len()
	if l == 0 {
		return
	}
	o.Eye = o.Center.Add(rel.Mul((l + delta) / l))
}

var _ Rig = (*Orbit)(nil)
