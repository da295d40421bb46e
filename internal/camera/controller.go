package camera

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/filter"
	"github.com/joeblew999/plat-estate/internal/geometry"
)

var (
	// ErrNoRig is returned by Tick when the surface has no camera yet.
	ErrNoRig = errors.New("camera rig not attached")
	// ErrDegenerateRig is returned when a coordinate is not finite.
	ErrDegenerateRig = errors.New("camera rig is degenerate")
)

// restElevation is the pitch in degrees used when the eye has to be
// re-seated behind the target.
const restElevation = 30

// Params are the per-tick smoothing constants, tuned for 60 Hz.
type Params struct {
	PositionFactor    float64 `json:"positionFactor" yaml:"positionFactor" validate:"gt=0,lte=1"`
	TargetFactor      float64 `json:"targetFactor" yaml:"targetFactor" validate:"gt=0,lte=1"`
	TargetDistance    float64 `json:"targetDistance" yaml:"targetDistance" validate:"gt=0"`
	DistanceFactor    float64 `json:"distanceFactor" yaml:"distanceFactor" validate:"gt=0,lte=1"`
	DistanceTolerance float64 `json:"distanceTolerance" yaml:"distanceTolerance" validate:"gte=0"`
}

// DefaultParams returns the showcase constants.
func DefaultParams() Params {
	return Params{
		PositionFactor:    0.08,
		TargetFactor:      0.1,
		TargetDistance:    8,
		DistanceFactor:    0.2,
		DistanceTolerance: 0.1,
	}
}

// Controller moves a Rig toward the goal X of the active building.
type Controller struct {
	p     Params
	goals map[catalog.Kind]float64
	all   float64
	goal  float64
}

// NewController derives goals from the site offsets: each building's own
// OffsetX, and their midpoint for "all".
func NewController(p Params, sites []geometry.Site) *Controller {
	c := &Controller{
		p:     p,
		goals: make(map[catalog.Kind]float64, len(sites)),
		all:   geometry.Midpoint(sites),
	}
	for _, s := range sites {
		c.goals[s.Kind] = s.OffsetX
	}
	c.goal = c.all
	return c
}

// Params returns the smoothing constants.
func (c *Controller) Params() Params { return c.p }

// Goal returns the current goal X.
func (c *Controller) Goal() float64 { return c.goal }

// GoalFor returns the goal X for k, falling back to the midpoint for "all"
// and for unknown kinds.
func (c *Controller) GoalFor(k catalog.Kind) (float64, bool) {
	if k == filter.AllBuildings || k == "" {
		return c.all, true
	}
	g, ok := c.goals[k]
	if !ok {
		return c.all, false
	}
	return g, true
}

// SetActiveBuilding switches the goal. Unknown kinds aim at the midpoint
// and report false.
func (c *Controller) SetActiveBuilding(k catalog.Kind) bool {
	g, ok := c.GoalFor(k)
	c.goal = g
	return ok
}

// Tick advances r by one frame: eye X and target X approach the goal, then
// the eye is pulled back to TargetDistance if something moved it away.
func (c *Controller) Tick(r Rig) error {
	if r == nil {
		return ErrNoRig
	}
	pos, tgt := r.Position(), r.Target()
	if !finite(pos) || !finite(tgt) {
		return fmt.Errorf("%w: non-finite coordinates", ErrDegenerateRig)
	}

	pos[0] = Approach(pos[0], c.goal, c.p.PositionFactor)
	tgt[0] = Approach(tgt[0], c.goal, c.p.TargetFactor)

	rel := pos.Sub(tgt)
	d := rel.Len()
	if d == 0 {
		// Eye collapsed onto the target: no direction left to pull back
		// along, so re-seat it on the resting orbit.
		a := mgl64.DegToRad(restElevation)
		rel = mgl64.Vec3{0, math.Sin(a), math.Cos(a)}.Mul(c.p.TargetDistance)
		pos = tgt.Add(rel)
		d = c.p.TargetDistance
	}
	if math.Abs(d-c.p.TargetDistance) > c.p.DistanceTolerance {
		corrected := tgt.Add(rel.Mul(c.p.TargetDistance / d))
		pos = lerp(pos, corrected, c.p.DistanceFactor)
	}

	r.SetPosition(pos)
	r.SetTarget(tgt)
	return nil
}

// Approach moves current toward goal by factor.
func Approach(current, goal, factor float64) float64 {
	return current + (goal-current)*factor
}

// TicksToConverge returns how many Approach steps bring a gap of start
// below eps, or -1 when factor is outside (0, 1] or start is not finite.
func TicksToConverge(factor, start, eps float64) int {
	if factor <= 0 || factor > 1 || eps <= 0 || math.IsNaN(start) || math.IsInf(start, 0) {
		return -1
	}
	gap := math.Abs(start)
	n := 0
	for gap >= eps {
		gap *= 1 - factor
		n++
	}
	return n
}

func lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

func finite(v mgl64.Vec3) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
