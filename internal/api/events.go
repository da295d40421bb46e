package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/estate"
	"github.com/joeblew999/plat-estate/internal/humastar"
	"github.com/joeblew999/plat-estate/internal/scene"
	"github.com/joeblew999/plat-estate/internal/service"
)

// EventHandler streams one session's changes to its page via Datastar SSE.
type EventHandler struct {
	humastar.Handler
	estate *estate.Estate
}

func NewEventHandler(e *estate.Estate, base humastar.Handler) *EventHandler {
	return &EventHandler{Handler: base, estate: e}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/sessions/{id}/events", h.Events,
		huma.OperationTags("sessions", tagStream),
	)
}

type tooltipData struct {
	ID   string
	Text string
}

type unitCardData struct {
	ID     string
	Floor  int
	Area   float64
	Rooms  int
	Status string
}

// Events sends the current state, then one patch per bus event until the
// client goes away or the session is closed.
func (h *EventHandler) Events(ctx context.Context, input *SessionIDInput) (*huma.StreamResponse, error) {
	s, err := h.estate.Registry.Get(input.ID)
	if err != nil {
		return nil, httpError(err)
	}
	sessions := &SessionHandler{Handler: h.Handler, estate: h.estate}

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			ch := h.estate.Bus.SubscribeSession(s.ID())
			defer h.estate.Bus.Unsubscribe(ch)

			v := s.View()
			h.patchTooltip(sse, v.Hovered)
			h.patchUnitCard(sse, v.Picked)
			sse.Patch(sessions.renderHotspots(s.Hotspots()), "#hotspots")
			sse.Signals(viewSignals(v))

			done := humaCtx.Context().Done()
			for {
				select {
				case <-done:
					return
				case ev, ok := <-ch:
					if !ok {
						return
					}
					switch ev.Resource {
					case service.ResourceHover:
						u, _ := ev.Data.(catalog.UnitSummary)
						if ev.Action == "cleared" {
							h.patchTooltip(sse, nil)
						} else {
							h.patchTooltip(sse, &u)
						}
					case service.ResourcePick:
						u, _ := ev.Data.(catalog.UnitSummary)
						if ev.Action == "cleared" {
							h.patchUnitCard(sse, nil)
						} else {
							h.patchUnitCard(sse, &u)
						}
					case service.ResourceView:
						if v, ok := ev.Data.(scene.ViewState); ok {
							sse.Signals(viewSignals(v))
						}
					case service.ResourceFilter, service.ResourceBuildings:
						sse.Patch(sessions.renderHotspots(s.Hotspots()), "#hotspots")
						sse.Signals(viewSignals(s.View()))
					case service.ResourceSessions:
						if ev.Action == "deleted" && ev.Session == s.ID() {
							sse.Event("session-closed", map[string]any{"id": s.ID()})
							return
						}
					}
					sse.Event("estate-changed", map[string]any{
						"resource": ev.Resource,
						"action":   ev.Action,
						"id":       ev.ID,
					})
				}
			}
		},
	}, nil
}

func (h *EventHandler) patchTooltip(sse humastar.SSE, u *catalog.UnitSummary) {
	data := tooltipData{}
	if u != nil {
		data = tooltipData{ID: u.ID, Text: scene.Tooltip(*u)}
	}
	sse.Replace(h.Render("tooltip", data), "#tooltip")
}

func (h *EventHandler) patchUnitCard(sse humastar.SSE, u *catalog.UnitSummary) {
	if u == nil {
		sse.Replace(h.Render("empty-state", map[string]string{"ID": "unit-card", "Message": "Pick a unit"}), "#unit-card")
		return
	}
	sse.Replace(h.Render("unit-card", unitCardData{
		ID: u.ID, Floor: u.Floor, Area: u.Area, Rooms: u.Rooms, Status: u.Status.String(),
	}), "#unit-card")
}

// viewSignals are the overlay signals bound in the page. A missing screen
// position hides the tooltip.
func viewSignals(v scene.ViewState) map[string]any {
	sig := map[string]any{
		"visible":     v.Visible,
		"building":    string(v.Filter.ActiveBuilding),
		"hovered":     v.HoveredUnitID,
		"picked":      v.PickedUnitID,
		"tooltipShow": v.ScreenPosition != nil,
	}
	if v.ScreenPosition != nil {
		sig["tooltipX"] = v.ScreenPosition.X
		sig["tooltipY"] = v.ScreenPosition.Y
	}
	return sig
}
