package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/estate"
	"github.com/joeblew999/plat-estate/internal/filter"
	"github.com/joeblew999/plat-estate/internal/humastar"
	"github.com/joeblew999/plat-estate/internal/scene"
	"github.com/joeblew999/plat-estate/internal/screen"
)

// SessionHandler serves the per-surface browsing sessions: filter edits,
// pointer events and frame ticks.
type SessionHandler struct {
	humastar.Handler
	estate *estate.Estate
}

func NewSessionHandler(e *estate.Estate, base humastar.Handler) *SessionHandler {
	return &SessionHandler{Handler: base, estate: e}
}

func (h *SessionHandler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("sessions")
	huma.Get(api, "/api/v1/sessions", h.ListSessions, tags)
	huma.Register(api, huma.Operation{
		OperationID:   "create-session",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Open session",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusCreated,
	}, h.CreateSession)
	huma.Get(api, "/api/v1/sessions/{id}", h.GetSession, tags)
	huma.Register(api, huma.Operation{
		OperationID:   "delete-session",
		Method:        http.MethodDelete,
		Path:          "/api/v1/sessions/{id}",
		Summary:       "Close session",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusNoContent,
	}, h.DeleteSession)

	huma.Patch(api, "/api/v1/sessions/{id}/filter", h.PatchFilter, tags)
	huma.Put(api, "/api/v1/sessions/{id}/building", h.PutBuilding, tags)
	huma.Get(api, "/api/v1/sessions/{id}/hotspots", h.GetHotspots, tags)
	huma.Post(api, "/api/v1/sessions/{id}/pointer", h.Pointer, tags)
	huma.Post(api, "/api/v1/sessions/{id}/tick", h.Tick, tags)
	huma.Delete(api, "/api/v1/sessions/{id}/pick", h.ClearPick, tags)
	huma.Post(api, "/api/v1/sessions/{id}/signals", h.Signals, huma.OperationTags("sessions", tagStream))
}

// Types

type SessionIDInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type UnitSummaryBody struct {
	ID      string  `json:"id" doc:"Unit ID"`
	Floor   int     `json:"floor" doc:"Floor"`
	Area    float64 `json:"area" doc:"Area in square metres"`
	Rooms   int     `json:"rooms" doc:"Number of rooms"`
	Status  string  `json:"status" enum:"available,reserved,sold" doc:"Sales status"`
	Tooltip string  `json:"tooltip" doc:"One-line description"`
}

func summaryBody(u *catalog.UnitSummary) *UnitSummaryBody {
	if u == nil {
		return nil
	}
	return &UnitSummaryBody{
		ID:      u.ID,
		Floor:   u.Floor,
		Area:    u.Area,
		Rooms:   u.Rooms,
		Status:  u.Status.String(),
		Tooltip: scene.Tooltip(*u),
	}
}

// ViewBody is the state of one session as seen by its surface.
type ViewBody struct {
	SessionID      string           `json:"sessionId" doc:"Session ID"`
	Surface        string           `json:"surface" enum:"scene,map" doc:"Rendering surface"`
	Filter         filter.Spec      `json:"filter" doc:"Current filter"`
	HoveredUnitID  string           `json:"hoveredUnitId,omitempty" doc:"Unit under the pointer"`
	PickedUnitID   string           `json:"pickedUnitId,omitempty" doc:"Selected unit"`
	Hovered        *UnitSummaryBody `json:"hovered,omitempty"`
	Picked         *UnitSummaryBody `json:"picked,omitempty"`
	CameraGoal     float64          `json:"cameraGoal" doc:"X the scene camera is heading for"`
	CameraTarget   [3]float64       `json:"cameraTarget" doc:"Point the scene camera looks at"`
	CameraDistance float64          `json:"cameraDistance" doc:"Camera to target distance"`
	MapView        *screen.MapView  `json:"mapView,omitempty" doc:"Map camera, map sessions only"`
	ScreenPosition *screen.Point    `json:"screenPosition,omitempty" doc:"Tooltip anchor in viewport pixels"`
	Viewport       screen.Viewport  `json:"viewport" doc:"Surface size in pixels"`
	Visible        int              `json:"visible" doc:"Units passing the filter"`
	Ticks          uint64           `json:"ticks" doc:"Frames processed"`
	Degraded       uint64           `json:"degraded" doc:"Frames whose camera update failed"`
}

func viewBody(v scene.ViewState) ViewBody {
	return ViewBody{
		SessionID:      v.SessionID,
		Surface:        string(v.Surface),
		Filter:         v.Filter,
		HoveredUnitID:  v.HoveredUnitID,
		PickedUnitID:   v.PickedUnitID,
		Hovered:        summaryBody(v.Hovered),
		Picked:         summaryBody(v.Picked),
		CameraGoal:     v.CameraGoal,
		CameraTarget:   [3]float64(v.CameraTarget),
		CameraDistance: v.CameraDistance,
		MapView:        v.MapView,
		ScreenPosition: v.ScreenPosition,
		Viewport:       v.Viewport,
		Visible:        v.Visible,
		Ticks:          v.Ticks,
		Degraded:       v.Degraded,
	}
}

var sessionActions = []humastar.ActionDef{
	{Rel: "events", Pattern: "/api/v1/sessions/%s/events", Method: http.MethodGet, Title: "Stream hover, pick and view updates"},
	{Rel: "tick", Pattern: "/api/v1/sessions/%s/tick", Method: http.MethodPost, Title: "Advance one frame"},
	{Rel: "pointer", Pattern: "/api/v1/sessions/%s/pointer", Method: http.MethodPost, Title: "Report a pointer event"},
	{Rel: "filter", Pattern: "/api/v1/sessions/%s/filter", Method: http.MethodPatch, Title: "Change the filter"},
}

// Actions implements humastar.Actor.
func (v ViewBody) Actions() []humastar.Action {
	defs := sessionActions
	if v.PickedUnitID != "" {
		defs = append(defs[:len(defs):len(defs)], humastar.ActionDef{
			Rel: "clear-pick", Pattern: "/api/v1/sessions/%s/pick", Method: http.MethodDelete, Title: "Clear the picked unit",
		})
	}
	return humastar.ActionsFor(v.SessionID, defs...)
}

type ViewOutput struct {
	Body ViewBody
}

type CreateSessionBody struct {
	Surface  string           `json:"surface,omitempty" enum:"scene,map" doc:"Rendering surface, scene by default"`
	Viewport *screen.Viewport `json:"viewport,omitempty" doc:"Surface size in pixels"`
	Filter   *FilterPatchBody `json:"filter,omitempty" doc:"Changes to the default filter"`
}

type FilterPatchBody struct {
	ActiveBuilding  *string `json:"activeBuilding,omitempty" doc:"Building kind or \"all\""`
	Rooms           *int    `json:"rooms,omitempty" minimum:"1" doc:"Room count to show"`
	ClearRooms      bool    `json:"clearRooms,omitempty" doc:"Show every room count"`
	OnlyAvailable   *bool   `json:"onlyAvailable,omitempty" doc:"Hide reserved and sold units"`
	HoverFloor      *int    `json:"hoverFloor,omitempty" minimum:"1" doc:"Floor to highlight"`
	ClearHoverFloor bool    `json:"clearHoverFloor,omitempty" doc:"Stop highlighting a floor"`
}

func (b FilterPatchBody) patch() filter.Patch {
	p := filter.Patch{
		Rooms:           b.Rooms,
		ClearRooms:      b.ClearRooms,
		OnlyAvailable:   b.OnlyAvailable,
		HoverFloor:      b.HoverFloor,
		ClearHoverFloor: b.ClearHoverFloor,
	}
	if b.ActiveBuilding != nil {
		k := catalog.Kind(strings.ToLower(*b.ActiveBuilding))
		p.ActiveBuilding = &k
	}
	return p
}

type BuildingSelectBody struct {
	Building string `json:"building" doc:"Building kind or \"all\"" example:"b"`
}

type PointerBody struct {
	Type    string      `json:"type" enum:"enter,leave,click,miss,lonlat,hotspot" doc:"Pointer event"`
	UnitID  string      `json:"unitId,omitempty" doc:"Unit under the pointer, for enter, leave and click"`
	Anchor  *[3]float64 `json:"anchor,omitempty" doc:"Hit point reported by the surface; defaults to the unit's anchor"`
	Lon     float64     `json:"lon,omitempty" doc:"Longitude of a lonlat click"`
	Lat     float64     `json:"lat,omitempty" doc:"Latitude of a lonlat click"`
	Hotspot string      `json:"hotspot,omitempty" doc:"Hotspot ID"`
}

type PointerResultBody struct {
	Handled bool     `json:"handled" doc:"Whether the event changed the selection"`
	UnitID  string   `json:"unitId,omitempty" doc:"Unit resolved by a lonlat click"`
	View    ViewBody `json:"view"`
}

// Handlers

func (h *SessionHandler) session(id string) (*scene.Session, error) {
	s, err := h.estate.Registry.Get(id)
	if err != nil {
		return nil, httpError(err)
	}
	return s, nil
}

func (h *SessionHandler) ListSessions(ctx context.Context, input *struct{}) (*struct{ Body []string }, error) {
	return &struct{ Body []string }{Body: h.estate.Registry.IDs()}, nil
}

func (h *SessionHandler) CreateSession(ctx context.Context, input *struct{ Body CreateSessionBody }) (*ViewOutput, error) {
	opts := scene.Options{Surface: scene.Surface(input.Body.Surface)}
	if input.Body.Viewport != nil {
		opts.Viewport = *input.Body.Viewport
	}
	if input.Body.Filter != nil {
		spec := filter.Default().Apply(input.Body.Filter.patch())
		opts.Filter = &spec
	}
	s, err := h.estate.Registry.Open(opts)
	if err != nil {
		return nil, httpError(err)
	}
	return &ViewOutput{Body: viewBody(s.View())}, nil
}

func (h *SessionHandler) GetSession(ctx context.Context, input *SessionIDInput) (*ViewOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return &ViewOutput{Body: viewBody(s.View())}, nil
}

func (h *SessionHandler) DeleteSession(ctx context.Context, input *SessionIDInput) (*struct{}, error) {
	if err := h.estate.Registry.Close(input.ID); err != nil {
		return nil, httpError(err)
	}
	return &struct{}{}, nil
}

func (h *SessionHandler) PatchFilter(ctx context.Context, input *struct {
	SessionIDInput
	Body FilterPatchBody
}) (*ViewOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	v, err := s.SetFilter(input.Body.patch())
	if err != nil {
		return nil, httpError(err)
	}
	return &ViewOutput{Body: viewBody(v)}, nil
}

func (h *SessionHandler) PutBuilding(ctx context.Context, input *struct {
	SessionIDInput
	Body BuildingSelectBody
}) (*ViewOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	v, err := s.SetActiveBuilding(catalog.Kind(strings.ToLower(input.Body.Building)))
	if err != nil {
		return nil, httpError(err)
	}
	return &ViewOutput{Body: viewBody(v)}, nil
}

func (h *SessionHandler) GetHotspots(ctx context.Context, input *SessionIDInput) (*struct{ Body []scene.Hotspot }, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return &struct{ Body []scene.Hotspot }{Body: s.Hotspots()}, nil
}

func (h *SessionHandler) Pointer(ctx context.Context, input *struct {
	SessionIDInput
	Body PointerBody
}) (*struct{ Body PointerResultBody }, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}

	b := input.Body
	var anchor *r3.Vector
	if b.Anchor != nil {
		anchor = &r3.Vector{X: b.Anchor[0], Y: b.Anchor[1], Z: b.Anchor[2]}
	}
	needsUnit := b.Type == "enter" || b.Type == "leave" || b.Type == "click"
	if needsUnit && b.UnitID == "" {
		return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("%s needs a unitId", b.Type))
	}

	res := PointerResultBody{}
	switch b.Type {
	case "enter":
		res.Handled = s.PointerEnter(b.UnitID, anchor)
	case "leave":
		res.Handled = s.PointerLeave(b.UnitID)
	case "click":
		res.Handled = s.Click(b.UnitID, anchor)
	case "miss":
		s.Miss()
		res.Handled = true
	case "lonlat":
		res.UnitID, res.Handled = s.ClickLonLat(orb.Point{b.Lon, b.Lat})
	case "hotspot":
		if _, err := s.ApplyHotspot(b.Hotspot); err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		res.Handled = true
	}
	res.View = viewBody(s.View())
	return &struct{ Body PointerResultBody }{Body: res}, nil
}

func (h *SessionHandler) Tick(ctx context.Context, input *struct {
	SessionIDInput
	Body scene.TickInput
}) (*ViewOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return &ViewOutput{Body: viewBody(s.Tick(input.Body))}, nil
}

func (h *SessionHandler) ClearPick(ctx context.Context, input *SessionIDInput) (*ViewOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	s.ClearPick()
	return &ViewOutput{Body: viewBody(s.View())}, nil
}

// SessionSignalsInput carries Datastar signals for one session.
type SessionSignalsInput struct {
	ID      string `path:"id" doc:"Session ID"`
	RawBody []byte
}

// Signals applies the filter signals bound in the page (building, rooms,
// onlyavailable, hoverfloor; 0 clears a number) and answers over SSE.
func (h *SessionHandler) Signals(ctx context.Context, input *SessionSignalsInput) (*huma.StreamResponse, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := (&humastar.SignalsInput{RawBody: input.RawBody}).Parse()
	if err != nil {
		return nil, err
	}

	var p filter.Patch
	if signals.Has("building") {
		k := catalog.Kind(strings.ToLower(signals.String("building")))
		p.ActiveBuilding = &k
	}
	if signals.Has("rooms") {
		if n := signals.Int("rooms"); n > 0 {
			p.Rooms = &n
		} else {
			p.ClearRooms = true
		}
	}
	// data-bind lower-cases signal names
	if signals.Has("onlyavailable") {
		v := signals.Bool("onlyavailable")
		p.OnlyAvailable = &v
	}
	if signals.Has("hoverfloor") {
		if n := signals.Int("hoverfloor"); n > 0 {
			p.HoverFloor = &n
		} else {
			p.ClearHoverFloor = true
		}
	}

	return h.Stream(func(sse humastar.SSE) {
		v, err := s.SetFilter(p)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Patch(h.renderHotspots(s.Hotspots()), "#hotspots")
		sse.Signals(map[string]any{"visible": v.Visible, "error": ""})
	}), nil
}

func (h *SessionHandler) renderHotspots(hs []scene.Hotspot) string {
	items := make([]any, len(hs))
	for i, hot := range hs {
		items[i] = hot
	}
	return h.RenderList("hotspot", items, "hotspots-empty", "No shortcuts for this building")
}
