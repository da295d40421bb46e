package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang/geo/r3"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/estate"
	"github.com/joeblew999/plat-estate/internal/filter"
	"github.com/joeblew999/plat-estate/internal/humastar"
	"github.com/joeblew999/plat-estate/internal/scene"
	"github.com/joeblew999/plat-estate/internal/service"
)

// BuildingHandler serves building CRUD and the per-building catalog and
// geometry.
type BuildingHandler struct {
	estate *estate.Estate
}

func NewBuildingHandler(e *estate.Estate) *BuildingHandler {
	return &BuildingHandler{estate: e}
}

func (h *BuildingHandler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("buildings")
	huma.Get(api, "/api/v1/buildings", h.ListBuildings, tags)
	huma.Register(api, huma.Operation{
		OperationID:   "create-building",
		Method:        http.MethodPost,
		Path:          "/api/v1/buildings",
		Summary:       "Create building",
		Tags:          []string{"buildings"},
		DefaultStatus: http.StatusCreated,
	}, h.CreateBuilding)
	huma.Get(api, "/api/v1/buildings/{kind}", h.GetBuilding, tags)
	huma.Put(api, "/api/v1/buildings/{kind}", h.PutBuilding, tags)
	huma.Delete(api, "/api/v1/buildings/{kind}", h.DeleteBuilding, tags)

	huma.Get(api, "/api/v1/buildings/{kind}/units", h.ListUnits, huma.OperationTags("units"))
	huma.Get(api, "/api/v1/buildings/{kind}/features", h.GetFeatures, huma.OperationTags("geometry"))
	huma.Get(api, "/api/v1/buildings/{kind}/boxes", h.GetBoxes, huma.OperationTags("geometry"))
	huma.Get(api, "/api/v1/units/{id}", h.GetUnit, huma.OperationTags("units"))
}

// Types

type KindInput struct {
	Kind string `path:"kind" doc:"Building kind" example:"a"`
}

type BuildingOutput struct {
	Body service.BuildingConfig
}

type BuildingsOutput struct {
	Body []service.BuildingConfig
}

type UnitBody struct {
	ID       string  `json:"id" doc:"Unit ID" example:"A-1-1"`
	Building string  `json:"building" doc:"Building kind" example:"a"`
	Floor    int     `json:"floor" doc:"Floor, 1 is the ground floor"`
	Column   int     `json:"column" doc:"Position on the floor, 1 is leftmost"`
	Area     float64 `json:"area" doc:"Area in square metres" example:"39.4"`
	Rooms    int     `json:"rooms" doc:"Number of rooms"`
	Status   string  `json:"status" enum:"available,reserved,sold" doc:"Sales status"`
	Tooltip  string  `json:"tooltip" doc:"One-line description"`
}

func unitBody(u catalog.Unit) UnitBody {
	return UnitBody{
		ID:       u.ID,
		Building: string(u.Building),
		Floor:    u.Floor,
		Column:   u.Column,
		Area:     u.Area,
		Rooms:    u.Rooms,
		Status:   u.Status.String(),
		Tooltip:  scene.Tooltip(u.Summary()),
	}
}

type UnitsInput struct {
	KindInput
	Rooms         int  `query:"rooms" minimum:"0" doc:"Only units with this many rooms; 0 for any"`
	OnlyAvailable bool `query:"onlyAvailable" doc:"Hide reserved and sold units"`
	HoverFloor    int  `query:"hoverFloor" minimum:"0" doc:"Only units on this floor; 0 for every floor"`
	Offset        int  `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit         int  `query:"limit" minimum:"1" maximum:"1000" default:"50" doc:"Page size"`
}

type UnitsOutput struct {
	Body humastar.PageBody[UnitBody]
}

type UnitIDInput struct {
	ID string `path:"id" doc:"Unit ID" example:"A-1-1"`
}

type UnitOutput struct {
	Body UnitBody
}

type FeaturesInput struct {
	KindInput
	Footprints bool `query:"footprints" doc:"Include the building outlines before the units"`
}

type FeaturesOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type BoxBody struct {
	UnitID   string     `json:"unitId" doc:"Unit ID"`
	Position [3]float64 `json:"position" doc:"Centre, building-local"`
	Size     [3]float64 `json:"size" doc:"Width, height, depth"`
	Anchor   [3]float64 `json:"anchor" doc:"Centre in scene coordinates"`
}

type BoxesOutput struct {
	Body []BoxBody
}

func vec(v r3.Vector) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// Handlers

func (h *BuildingHandler) ListBuildings(ctx context.Context, input *struct{}) (*BuildingsOutput, error) {
	return &BuildingsOutput{Body: h.estate.Buildings.List()}, nil
}

func (h *BuildingHandler) CreateBuilding(ctx context.Context, input *struct{ Body service.BuildingConfig }) (*BuildingOutput, error) {
	created, err := h.estate.CreateBuilding(ctx, input.Body)
	if err != nil {
		return nil, httpError(err)
	}
	return &BuildingOutput{Body: created}, nil
}

func (h *BuildingHandler) GetBuilding(ctx context.Context, input *KindInput) (*BuildingOutput, error) {
	b, ok := h.estate.Buildings.Get(catalog.Kind(strings.ToLower(input.Kind)))
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("building %q not found", input.Kind))
	}
	return &BuildingOutput{Body: b}, nil
}

func (h *BuildingHandler) PutBuilding(ctx context.Context, input *struct {
	KindInput
	Body service.BuildingConfig
}) (*BuildingOutput, error) {
	updated, err := h.estate.UpdateBuilding(ctx, catalog.Kind(strings.ToLower(input.Kind)), input.Body)
	if err != nil {
		return nil, httpError(err)
	}
	return &BuildingOutput{Body: updated}, nil
}

func (h *BuildingHandler) DeleteBuilding(ctx context.Context, input *KindInput) (*MessageOutput, error) {
	if err := h.estate.DeleteBuilding(ctx, catalog.Kind(strings.ToLower(input.Kind))); err != nil {
		return nil, httpError(err)
	}
	return &MessageOutput{Body: MessageBody{Message: "Building deleted"}}, nil
}

// scope resolves a {kind} path parameter that may also be "all".
func (h *BuildingHandler) scope(kind string) (*scene.World, catalog.Kind, error) {
	w := h.estate.World()
	k := catalog.Kind(strings.ToLower(kind))
	if err := w.CheckBuilding(k); err != nil {
		return nil, "", huma.Error404NotFound(err.Error())
	}
	return w, k, nil
}

func (h *BuildingHandler) ListUnits(ctx context.Context, input *UnitsInput) (*UnitsOutput, error) {
	w, k, err := h.scope(input.Kind)
	if err != nil {
		return nil, err
	}
	spec := filter.Spec{ActiveBuilding: k, OnlyAvailable: input.OnlyAvailable}
	if input.Rooms > 0 {
		spec.Rooms = filter.Int(input.Rooms)
	}
	if input.HoverFloor > 0 {
		spec.HoverFloor = filter.Int(input.HoverFloor)
	}

	visible := filter.Visible(catalog.FloorsDescending(w.Catalog.Units()), spec)
	bodies := make([]UnitBody, len(visible))
	for i, u := range visible {
		bodies[i] = unitBody(u)
	}
	return &UnitsOutput{Body: humastar.Page(bodies, input.Offset, input.Limit)}, nil
}

func (h *BuildingHandler) GetUnit(ctx context.Context, input *UnitIDInput) (*UnitOutput, error) {
	u, ok := h.estate.World().Catalog.Lookup(strings.ToUpper(input.ID))
	if !ok {
		return nil, httpError(fmt.Errorf("%w: %s", ErrUnitNotFound, input.ID))
	}
	return &UnitOutput{Body: unitBody(u)}, nil
}

func (h *BuildingHandler) GetFeatures(ctx context.Context, input *FeaturesInput) (*FeaturesOutput, error) {
	_, k, err := h.scope(input.Kind)
	if err != nil {
		return nil, err
	}
	fc, err := h.estate.Features(k, input.Footprints)
	if err != nil {
		return nil, httpError(err)
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		return nil, httpError(err)
	}
	return &FeaturesOutput{ContentType: "application/geo+json", Body: b}, nil
}

func (h *BuildingHandler) GetBoxes(ctx context.Context, input *KindInput) (*BoxesOutput, error) {
	w, k, err := h.scope(input.Kind)
	if err != nil {
		return nil, err
	}
	kinds := []catalog.Kind{k}
	if k == filter.AllBuildings {
		kinds = kinds[:0]
		for _, s := range w.Sites {
			kinds = append(kinds, s.Kind)
		}
	}

	out := []BoxBody{}
	for _, k := range kinds {
		boxes, err := w.Boxes(k)
		if err != nil {
			return nil, httpError(err)
		}
		for _, b := range boxes {
			out = append(out, BoxBody{UnitID: b.UnitID, Position: vec(b.Position), Size: vec(b.Size), Anchor: vec(b.Anchor)})
		}
	}
	return &BoxesOutput{Body: out}, nil
}
