package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-estate/internal/camera"
	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/filter"
	"github.com/joeblew999/plat-estate/internal/geometry"
	"github.com/joeblew999/plat-estate/internal/logging"
	"github.com/joeblew999/plat-estate/internal/picking"
	"github.com/joeblew999/plat-estate/internal/screen"
	"github.com/joeblew999/plat-estate/internal/service"
)

// ErrTickPanic wraps a panic recovered inside a tick.
var ErrTickPanic = errors.New("tick panicked")

// Surface is the kind of renderer a session drives.
type Surface string

const (
	SurfaceScene Surface = "scene" // 3D boxes, orbit camera
	SurfaceMap   Surface = "map"   // extruded polygons, map camera
)

// ParseSurface accepts "scene" and "map"; empty means scene.
func ParseSurface(s string) (Surface, error) {
	switch Surface(s) {
	case "", SurfaceScene:
		return SurfaceScene, nil
	case SurfaceMap:
		return SurfaceMap, nil
	}
	return "", fmt.Errorf("unknown surface %q", s)
}

// Orbiter is a rig the user can drag and zoom. *camera.Orbit is one.
type Orbiter interface {
	Rotate(yaw float64)
	Dolly(delta float64)
}

// Options configure a new session.
type Options struct {
	Surface  Surface
	Viewport screen.Viewport
	Filter   *filter.Spec
	// Rig overrides the default orbit camera of a 3D session.
	Rig camera.Rig
	Bus *service.EventBus
	Log logrus.FieldLogger
}

// TickInput is what the surface reports once per frame.
type TickInput struct {
	Viewport *screen.Viewport `json:"viewport,omitempty"`
	// Yaw and Dolly are the user's own orbit drag and zoom since the last
	// frame; the controller then pulls the camera back.
	Yaw   float64 `json:"yaw,omitempty"`
	Dolly float64 `json:"dolly,omitempty"`
	// Zoom and Bearing replace the map camera's values when set.
	Zoom    *float64 `json:"zoom,omitempty"`
	Bearing *float64 `json:"bearing,omitempty"`
}

// ViewState is the per-surface state handed back to the UI.
type ViewState struct {
	SessionID      string               `json:"sessionId"`
	Surface        Surface              `json:"surface"`
	Filter         filter.Spec          `json:"filter"`
	HoveredUnitID  string               `json:"hoveredUnitId,omitempty"`
	PickedUnitID   string               `json:"pickedUnitId,omitempty"`
	Hovered        *catalog.UnitSummary `json:"hovered,omitempty"`
	Picked         *catalog.UnitSummary `json:"picked,omitempty"`
	CameraGoal     float64              `json:"cameraGoal"`
	CameraTarget   mgl64.Vec3           `json:"cameraTarget"`
	CameraDistance float64              `json:"cameraDistance"`
	MapView        *screen.MapView      `json:"mapView,omitempty"`
	ScreenPosition *screen.Point        `json:"screenPosition,omitempty"`
	Viewport       screen.Viewport      `json:"viewport"`
	Visible        int                  `json:"visible"`
	Ticks          uint64               `json:"ticks"`
	Degraded       uint64               `json:"degraded"`
}

// Session owns the ViewState of one surface. Methods are safe for
// concurrent use; the HTTP bridge calls them from separate goroutines.
type Session struct {
	id      string
	surface Surface

	mu        sync.Mutex
	world     *World
	spec      filter.Spec
	picking   *picking.Service
	ctrl      *camera.Controller
	rig       camera.Rig
	mapView   screen.MapView
	mapGoal   orb.Point
	viewport  screen.Viewport
	screenPos *screen.Point
	ticks     uint64
	degraded  uint64

	bus *service.EventBus
	log logrus.FieldLogger
}

// NewSession opens a session on w.
func NewSession(id string, w *World, opts Options) (*Session, error) {
	surface, err := ParseSurface(string(opts.Surface))
	if err != nil {
		return nil, err
	}
	spec := filter.Default()
	if opts.Filter != nil {
		spec = opts.Filter.Clone()
	}
	if err := w.CheckBuilding(spec.ActiveBuilding); err != nil {
		return nil, err
	}

	s := &Session{
		id:       id,
		surface:  surface,
		world:    w,
		spec:     spec,
		viewport: opts.Viewport,
		bus:      opts.Bus,
		log:      logging.Or(opts.Log).WithFields(logrus.Fields{"session": id, "surface": surface}),
	}
	s.picking = picking.New(w.Catalog, spec, picking.Callbacks{
		OnHover: s.onHover,
		OnPick:  s.onPick,
	})
	s.ctrl = camera.NewController(w.Layout.Camera, w.Sites)
	s.ctrl.SetActiveBuilding(spec.ActiveBuilding)

	s.rig = opts.Rig
	if s.rig == nil {
		d := w.Layout.Camera.TargetDistance
		s.rig = camera.NewOrbit(s.ctrl.Goal(), d, 30)
	}

	center, err := w.MapCenter(spec.ActiveBuilding)
	if err != nil && surface == SurfaceMap {
		return nil, err
	}
	s.mapGoal = center
	s.mapView = screen.DefaultMapView(center)
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Surface returns the surface kind.
func (s *Session) Surface() Surface { return s.surface }

// View returns the current state.
func (s *Session) View() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Filter returns a copy of the current filter.
func (s *Session) Filter() filter.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec.Clone()
}

// SetFilter merges p into the filter. A hover or pick the new filter dims
// is dropped before this returns.
func (s *Session) SetFilter(p filter.Patch) (ViewState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.spec.Apply(p)
	if err := s.world.CheckBuilding(next.ActiveBuilding); err != nil {
		return s.viewLocked(), err
	}
	s.applyFilterLocked(next)
	return s.viewLocked(), nil
}

// SetActiveBuilding selects a building, or "all", and retargets the camera.
func (s *Session) SetActiveBuilding(k catalog.Kind) (ViewState, error) {
	return s.SetFilter(filter.Patch{ActiveBuilding: &k})
}

func (s *Session) applyFilterLocked(next filter.Spec) {
	prev := s.spec.ActiveBuilding
	s.spec = next.Clone()
	s.picking.SetFilter(s.spec)

	if next.ActiveBuilding != prev {
		s.ctrl.SetActiveBuilding(next.ActiveBuilding)
		if c, err := s.world.MapCenter(next.ActiveBuilding); err == nil {
			s.mapGoal = c
		}
	}
	s.publish(service.ResourceFilter, "updated", string(next.ActiveBuilding), s.spec.Clone())
}

// ApplyHotspot highlights the floor of hotspot id.
func (s *Session) ApplyHotspot(id string) (ViewState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := findHotspot(s.world.Layout.Hotspots, id)
	if err != nil {
		return s.viewLocked(), err
	}
	floor := h.Floor
	s.applyFilterLocked(s.spec.Apply(filter.Patch{HoverFloor: &floor}))
	return s.viewLocked(), nil
}

// Hotspots returns the hotspots for the active building.
func (s *Session) Hotspots() []Hotspot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return HotspotsFor(s.world.Layout.Hotspots, s.spec.ActiveBuilding)
}

// anchorFor falls back to the world geometry when the surface did not
// send an anchor with the event.
func (s *Session) anchorFor(id string, anchor *r3.Vector) *r3.Vector {
	if anchor != nil {
		return anchor
	}
	a, err := s.world.Anchor(s.surface, id)
	if err != nil {
		return nil
	}
	return a
}

// PointerEnter reports the pointer entering unit id. Unknown or dimmed
// units are ignored.
func (s *Session) PointerEnter(id string, anchor *r3.Vector) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.picking.PointerEnter(id, s.anchorFor(id, anchor))
}

// PointerLeave reports the pointer leaving unit id.
func (s *Session) PointerLeave(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.picking.PointerLeave(id)
}

// Click reports a click on unit id.
func (s *Session) Click(id string, anchor *r3.Vector) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.picking.Click(id, s.anchorFor(id, anchor))
}

// Miss reports a click on empty space.
func (s *Session) Miss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.picking.Miss()
}

// ClickLonLat resolves a raw map click to the topmost visible unit on the
// highlighted floor, if any, and clicks it. A miss clears the hover.
func (s *Session) ClickLonLat(p orb.Point) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fc, err := s.world.AllFeatures()
	if err != nil {
		s.log.WithError(err).Warn("building hit-test layer")
		s.picking.Miss()
		return "", false
	}
	visible := fc.Features[:0]
	for _, f := range fc.Features {
		u, ok := s.world.Catalog.Lookup(f.Properties.MustString("id", ""))
		if ok && filter.IsVisible(u, s.spec) {
			visible = append(visible, f)
		}
	}
	fc.Features = visible

	id, ok := geometry.HitTest(fc, p, 0)
	if !ok {
		s.picking.Miss()
		return "", false
	}
	return id, s.picking.Click(id, s.anchorFor(id, nil))
}

// ClearPick drops the picked unit.
func (s *Session) ClearPick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.picking.ClearPick() {
		return false
	}
	s.publish(service.ResourcePick, "cleared", "", nil)
	return true
}

// Replace moves the session onto a regenerated world. Stale hover and pick
// IDs are dropped, and an active building that no longer exists falls back
// to "all".
func (s *Session) Replace(w *World) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.world = w
	s.ctrl = camera.NewController(w.Layout.Camera, w.Sites)
	if w.CheckBuilding(s.spec.ActiveBuilding) != nil {
		s.spec.ActiveBuilding = filter.AllBuildings
	}
	s.ctrl.SetActiveBuilding(s.spec.ActiveBuilding)
	if c, err := w.MapCenter(s.spec.ActiveBuilding); err == nil {
		s.mapGoal = c
	}
	s.picking.SetFilter(s.spec)
	s.picking.Replace(w.Catalog)
	s.log.WithField("units", w.Catalog.Len()).Info("session moved to regenerated catalog")
}

// Tick advances the session by one frame: the camera moves first, then the
// anchor is projected from the moved camera. A failure only skips this
// frame's camera and screen update.
func (s *Session) Tick(in TickInput) ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticks++
	if in.Viewport != nil {
		s.viewport = *in.Viewport
	}
	before := s.screenPos
	if err := s.advance(in); err != nil {
		s.degraded++
		s.log.WithError(err).WithField("tick", s.ticks).Warn("tick degraded")
	}
	view := s.viewLocked()
	if !samePoint(before, s.screenPos) {
		s.publish(service.ResourceView, "updated", "", view)
	}
	return view
}

func (s *Session) advance(in TickInput) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTickPanic, r)
		}
	}()

	switch s.surface {
	case SurfaceMap:
		s.stepMap(in)
	default:
		if o, ok := s.rig.(Orbiter); ok {
			if in.Yaw != 0 {
				o.Rotate(in.Yaw)
			}
			if in.Dolly != 0 {
				o.Dolly(in.Dolly)
			}
		}
		if err := s.ctrl.Tick(s.rig); err != nil {
			return err
		}
	}
	s.screenPos = s.project()
	return nil
}

func (s *Session) stepMap(in TickInput) {
	if in.Zoom != nil {
		s.mapView.Zoom = *in.Zoom
	}
	if in.Bearing != nil {
		s.mapView.Bearing = *in.Bearing
	}
	f := s.ctrl.Params().TargetFactor
	s.mapView.Center = orb.Point{
		camera.Approach(s.mapView.Center[0], s.mapGoal[0], f),
		camera.Approach(s.mapView.Center[1], s.mapGoal[1], f),
	}
}

func (s *Session) project() *screen.Point {
	a := s.picking.Anchor()
	if a == nil {
		return nil
	}
	if s.surface == SurfaceMap {
		return s.mapView.ProjectLonLat(orb.Point{a.X, a.Y}, a.Z, s.viewport)
	}
	cam, ok := s.rig.(screen.Camera)
	if !ok {
		return nil
	}
	return screen.Project(a, cam, s.viewport)
}

func (s *Session) viewLocked() ViewState {
	st := s.picking.State()
	v := ViewState{
		SessionID:     s.id,
		Surface:       s.surface,
		Filter:        s.spec.Clone(),
		HoveredUnitID: st.HoveredID,
		PickedUnitID:  st.PickedID,
		CameraGoal:    s.ctrl.Goal(),
		Viewport:      s.viewport,
		Visible:       len(filter.Visible(s.world.Catalog.Units(), s.spec)),
		Ticks:         s.ticks,
		Degraded:      s.degraded,
	}
	if u, ok := s.picking.Hovered(); ok {
		sum := u.Summary()
		v.Hovered = &sum
	}
	if u, ok := s.picking.Picked(); ok {
		sum := u.Summary()
		v.Picked = &sum
	}
	if s.surface == SurfaceMap {
		mv := s.mapView
		v.MapView = &mv
	} else if s.rig != nil {
		v.CameraTarget = s.rig.Target()
		v.CameraDistance = s.rig.Position().Sub(s.rig.Target()).Len()
	}
	// Nothing to anchor to: drop the last projection even if this frame
	// never got to project.
	if s.picking.Anchor() == nil {
		s.screenPos = nil
	}
	if s.screenPos != nil {
		p := *s.screenPos
		v.ScreenPosition = &p
	}
	return v
}

func (s *Session) onHover(u *catalog.UnitSummary, _ *r3.Vector) {
	if u == nil {
		s.publish(service.ResourceHover, "cleared", "", nil)
		return
	}
	s.publish(service.ResourceHover, "updated", u.ID, *u)
}

func (s *Session) onPick(u catalog.UnitSummary, _ *r3.Vector) {
	s.log.WithField("unit", u.ID).Debug("unit picked")
	s.publish(service.ResourcePick, "updated", u.ID, u)
}

func (s *Session) publish(resource, action, id string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(service.Event{
		Resource: resource,
		Action:   action,
		ID:       id,
		Session:  s.id,
		Data:     data,
	})
}

func samePoint(a, b *screen.Point) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
