package scene

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-estate/internal/camera"
	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/filter"
	"github.com/joeblew999/plat-estate/internal/logging"
	"github.com/joeblew999/plat-estate/internal/screen"
	"github.com/joeblew999/plat-estate/internal/service"
)

var vp = screen.Viewport{Width: 800, Height: 600}

func world(t *testing.T) *World {
	t.Helper()
	w, err := NewWorld(DefaultSites(), DefaultLayout())
	require.NoError(t, err)
	return w
}

func open(t *testing.T, w *World, opts Options) *Session {
	t.Helper()
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	if opts.Viewport == (screen.Viewport{}) {
		opts.Viewport = vp
	}
	s, err := NewSession("s1", w, opts)
	require.NoError(t, err)
	return s
}

// brokenRig loses its camera whenever the controller moves it.
type brokenRig struct{ camera.Orbit }

func (b *brokenRig) SetPosition(mgl64.Vec3) { panic("renderer lost its context") }

// flakyRig loses its camera once broken is set.
type flakyRig struct {
	camera.Orbit
	broken bool
}

func (f *flakyRig) SetPosition(p mgl64.Vec3) {
	if f.broken {
		panic("renderer lost its context")
	}
	f.Orbit.SetPosition(p)
}

func TestWorldCatalog(t *testing.T) {
	w := world(t)
	assert.Equal(t, 48, w.Catalog.Len())

	boxes, err := w.Boxes(catalog.KindB)
	require.NoError(t, err)
	assert.Len(t, boxes, 24)

	fc, err := w.Features(catalog.KindA)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 24)

	_, err = w.Boxes("z")
	assert.ErrorIs(t, err, ErrUnknownBuilding)
}

func TestNewWorldRejectsBadSites(t *testing.T) {
	_, err := NewWorld(nil, DefaultLayout())
	assert.ErrorIs(t, err, catalog.ErrInvalidParameters)

	sites := DefaultSites()
	sites[0].Floors = 0
	_, err = NewWorld(sites, DefaultLayout())
	assert.ErrorIs(t, err, catalog.ErrInvalidParameters)
}

func TestTickProjectsFromMovedCamera(t *testing.T) {
	w := world(t)
	rig := camera.NewOrbit(0, 8, 30)
	s := open(t, w, Options{Rig: rig})

	_, err := s.SetActiveBuilding(catalog.KindA)
	require.NoError(t, err)
	require.True(t, s.PointerEnter("A-2-1", nil))

	view := s.Tick(TickInput{})
	require.NotNil(t, view.ScreenPosition)

	anchor, err := w.Anchor(SurfaceScene, "A-2-1")
	require.NoError(t, err)
	want := screen.Project(anchor, rig, vp)
	require.NotNil(t, want)
	assert.Equal(t, *want, *view.ScreenPosition)
	assert.InDelta(t, -3.6, view.CameraGoal, 1e-12)
	assert.Less(t, view.CameraTarget[0], 0.0, "target started moving toward A")
}

func TestScreenPositionFollowsAnimatingCamera(t *testing.T) {
	s := open(t, world(t), Options{})
	require.True(t, s.Click("B-2-1", nil))
	_, err := s.SetActiveBuilding(catalog.KindB)
	require.NoError(t, err)

	first := s.Tick(TickInput{})
	require.NotNil(t, first.ScreenPosition)
	var last ViewState
	for i := 0; i < 30; i++ {
		last = s.Tick(TickInput{})
	}
	require.NotNil(t, last.ScreenPosition)
	assert.Less(t, last.ScreenPosition.X, first.ScreenPosition.X, "camera pans right, anchor drifts left")
}

func TestNoAnchorNoScreenPosition(t *testing.T) {
	s := open(t, world(t), Options{})
	view := s.Tick(TickInput{})
	assert.Nil(t, view.ScreenPosition)

	require.True(t, s.PointerEnter("A-2-1", nil))
	bad := screen.Viewport{}
	view = s.Tick(TickInput{Viewport: &bad})
	assert.Nil(t, view.ScreenPosition)
}

func TestScreenPositionClearsWithAnchor(t *testing.T) {
	s := open(t, world(t), Options{})
	require.True(t, s.PointerEnter("A-2-1", nil))
	require.NotNil(t, s.Tick(TickInput{}).ScreenPosition)

	require.True(t, s.PointerLeave("A-2-1"))
	assert.Nil(t, s.View().ScreenPosition)
	assert.Nil(t, s.Tick(TickInput{}).ScreenPosition)
}

func TestScreenPositionClearsOnDegradedTick(t *testing.T) {
	rig := &flakyRig{Orbit: *camera.NewOrbit(0, 8, 30)}
	s := open(t, world(t), Options{Rig: rig})
	require.True(t, s.PointerEnter("A-2-1", nil))
	require.NotNil(t, s.Tick(TickInput{}).ScreenPosition)

	require.True(t, s.PointerLeave("A-2-1"))
	rig.broken = true
	view := s.Tick(TickInput{})
	assert.Equal(t, uint64(1), view.Degraded)
	assert.Nil(t, view.ScreenPosition)
}

func TestEyeCollapsedOntoTargetRecovers(t *testing.T) {
	rig := camera.NewOrbit(0, 8, 30)
	s := open(t, world(t), Options{Rig: rig})

	view := s.Tick(TickInput{Dolly: -rig.Distance()})
	assert.Zero(t, view.Degraded)
	for i := 0; i < 60; i++ {
		view = s.Tick(TickInput{})
	}
	assert.Zero(t, view.Degraded)
	assert.InDelta(t, 8, view.CameraDistance, camera.DefaultParams().DistanceTolerance+1e-9)
}

func TestFailedTickDegrades(t *testing.T) {
	rig := &brokenRig{Orbit: *camera.NewOrbit(0, 8, 30)}
	s := open(t, world(t), Options{Rig: rig})
	require.True(t, s.PointerEnter("A-2-1", nil))

	var view ViewState
	require.NotPanics(t, func() { view = s.Tick(TickInput{}) })
	assert.Equal(t, uint64(1), view.Ticks)
	assert.Equal(t, uint64(1), view.Degraded)
	assert.Nil(t, view.ScreenPosition, "screen update skipped")
	assert.Equal(t, "A-2-1", view.HoveredUnitID)
}

func TestFilterChangeRevalidatesImmediately(t *testing.T) {
	s := open(t, world(t), Options{})
	require.True(t, s.PointerEnter("A-1-1", nil)) // reserved
	require.True(t, s.Click("A-1-1", nil))

	yes := true
	view, err := s.SetFilter(filter.Patch{OnlyAvailable: &yes})
	require.NoError(t, err)
	assert.Empty(t, view.HoveredUnitID)
	assert.Empty(t, view.PickedUnitID)
	assert.Nil(t, view.Hovered)
	assert.Less(t, view.Visible, 48)
}

func TestUnknownBuildingIsRejected(t *testing.T) {
	s := open(t, world(t), Options{})
	_, err := s.SetActiveBuilding("z")
	assert.ErrorIs(t, err, ErrUnknownBuilding)
	assert.Equal(t, filter.AllBuildings, s.Filter().ActiveBuilding)

	bad := filter.Spec{ActiveBuilding: "z"}
	_, err = NewSession("s2", world(t), Options{Filter: &bad})
	assert.ErrorIs(t, err, ErrUnknownBuilding)
}

func TestEventsArePublished(t *testing.T) {
	bus := service.NewEventBus()
	ch := bus.SubscribeSession("s1")
	defer bus.Unsubscribe(ch)

	s := open(t, world(t), Options{Bus: bus})
	require.True(t, s.PointerEnter("A-2-1", nil))

	ev := next(t, ch)
	assert.Equal(t, service.ResourceHover, ev.Resource)
	assert.Equal(t, "A-2-1", ev.ID)
	assert.Equal(t, "s1", ev.Session)
	sum, ok := ev.Data.(catalog.UnitSummary)
	require.True(t, ok)
	assert.Equal(t, 2, sum.Floor)

	require.True(t, s.Click("A-2-1", nil))
	ev = next(t, ch)
	assert.Equal(t, service.ResourcePick, ev.Resource)

	s.Miss()
	ev = next(t, ch)
	assert.Equal(t, service.ResourceHover, ev.Resource)
	assert.Equal(t, "cleared", ev.Action)
}

func TestHotspots(t *testing.T) {
	s := open(t, world(t), Options{})
	assert.Len(t, s.Hotspots(), 5)

	_, err := s.SetActiveBuilding(catalog.KindB)
	require.NoError(t, err)
	hs := s.Hotspots()
	require.Len(t, hs, 2)
	assert.Equal(t, "b-1", hs[0].ID)

	view, err := s.ApplyHotspot("b-2")
	require.NoError(t, err)
	require.NotNil(t, view.Filter.HoverFloor)
	assert.Equal(t, 3, *view.Filter.HoverFloor)

	_, err = s.ApplyHotspot("nope")
	assert.Error(t, err)
}

func TestMapSession(t *testing.T) {
	w := world(t)
	s := open(t, w, Options{Surface: SurfaceMap})
	require.True(t, s.PointerEnter("A-3-2", nil))

	view := s.Tick(TickInput{})
	require.NotNil(t, view.MapView)
	require.NotNil(t, view.ScreenPosition)

	_, err := s.SetActiveBuilding(catalog.KindA)
	require.NoError(t, err)
	goal, err := w.MapCenter(catalog.KindA)
	require.NoError(t, err)

	before := distance(view.MapView.Center, goal)
	for i := 0; i < 60; i++ {
		view = s.Tick(TickInput{})
	}
	after := distance(view.MapView.Center, goal)
	assert.Less(t, after, before)
	assert.Less(t, after, 1e-6)
}

func TestClickLonLat(t *testing.T) {
	w := world(t)
	s := open(t, w, Options{Surface: SurfaceMap})

	site, ok := w.Site(catalog.KindA)
	require.True(t, ok)
	u, ok := w.Catalog.Lookup("A-1-2")
	require.True(t, ok)
	ext, err := w.Layout.Geographic.Project(u, site)
	require.NoError(t, err)
	p := ext.Polygon.Bound().Center()

	id, picked := s.ClickLonLat(p)
	require.True(t, picked)
	assert.Equal(t, "A-6-2", id)

	yes := true
	_, err = s.SetFilter(filter.Patch{OnlyAvailable: &yes})
	require.NoError(t, err)
	id, picked = s.ClickLonLat(p)
	require.True(t, picked)
	assert.Equal(t, "A-5-2", id)
	assert.Equal(t, "A-5-2", s.View().PickedUnitID)

	_, picked = s.ClickLonLat(orb.Point{0, 0})
	assert.False(t, picked)
}

func TestRegistry(t *testing.T) {
	bus := service.NewEventBus()
	r := NewRegistry(world(t), bus, logging.Discard())

	a, err := r.Open(Options{Viewport: vp})
	require.NoError(t, err)
	b, err := r.Open(Options{Surface: SurfaceMap, Viewport: vp})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, r.Len())

	// sessions do not share state
	require.True(t, a.PointerEnter("B-2-1", nil))
	assert.Empty(t, b.View().HoveredUnitID)

	got, err := r.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)

	require.NoError(t, r.Close(a.ID()))
	_, err = r.Get(a.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, r.Close(a.ID()), ErrSessionNotFound)
}

func TestSetWorldDropsStaleSelection(t *testing.T) {
	r := NewRegistry(world(t), nil, logging.Discard())
	s, err := r.Open(Options{Viewport: vp})
	require.NoError(t, err)
	_, err = s.SetActiveBuilding(catalog.KindB)
	require.NoError(t, err)
	require.True(t, s.Click("B-6-4", nil))

	sites := DefaultSites()[:1]
	w, err := NewWorld(sites, DefaultLayout())
	require.NoError(t, err)
	r.SetWorld(w)

	view := s.View()
	assert.Empty(t, view.PickedUnitID)
	assert.Equal(t, filter.AllBuildings, view.Filter.ActiveBuilding)
	assert.Equal(t, 24, view.Visible)
	assert.False(t, s.PointerEnter("B-1-1", nil))
}

func TestTooltip(t *testing.T) {
	u := catalog.Unit{ID: "A-1-1", Floor: 1, Area: 39.4, Rooms: 2, Status: catalog.Reserved}
	assert.Equal(t, "Unit A-1-1 • floor 1 • reserved • 39.4 m² • 2r", Tooltip(u.Summary()))
}

func TestParseSurface(t *testing.T) {
	s, err := ParseSurface("")
	require.NoError(t, err)
	assert.Equal(t, SurfaceScene, s)
	_, err = ParseSurface("vr")
	assert.Error(t, err)
}

func distance(a, b orb.Point) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return dx*dx + dy*dy
}

func next(t *testing.T, ch chan service.Event) service.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
		return service.Event{}
	}
}
