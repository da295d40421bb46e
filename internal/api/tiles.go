package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-estate/internal/estate"
	"github.com/joeblew999/plat-estate/internal/humastar"
	"github.com/joeblew999/plat-estate/internal/service"
	"github.com/joeblew999/plat-estate/internal/tiler"
)

// TileHandler serves the PMTiles archives and GeoJSON exports of the
// estate and generates new ones.
type TileHandler struct {
	humastar.Handler
	estate *estate.Estate
}

func NewTileHandler(e *estate.Estate, base humastar.Handler) *TileHandler {
	return &TileHandler{Handler: base, estate: e}
}

func (h *TileHandler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("tiles")
	huma.Get(api, "/api/v1/tiles", h.ListTiles, tags)
	huma.Register(api, huma.Operation{
		OperationID:   "create-tiles",
		Method:        http.MethodPost,
		Path:          "/api/v1/tiles",
		Summary:       "Generate tiles",
		Tags:          []string{"tiles"},
		DefaultStatus: http.StatusCreated,
	}, h.CreateTiles)
	huma.Post(api, "/api/v1/tiles/generate", h.Generate, huma.OperationTags("tiles", tagStream))

	huma.Get(api, "/api/v1/exports", h.ListExports, huma.OperationTags("exports"))
	huma.Post(api, "/api/v1/exports", h.CreateExports, huma.OperationTags("exports"))
}

type TileResultBody struct {
	File  service.TileFile `json:"file"`
	Stats tiler.Stats      `json:"stats"`
}

func (h *TileHandler) ListTiles(ctx context.Context, input *struct{}) (*struct{ Body []service.TileFile }, error) {
	tiles, err := h.estate.Tiles.List()
	if err != nil {
		return &struct{ Body []service.TileFile }{Body: []service.TileFile{}}, nil
	}
	return &struct{ Body []service.TileFile }{Body: tiles}, nil
}

func (h *TileHandler) CreateTiles(ctx context.Context, input *struct{ Body service.TileGenerateOptions }) (*struct{ Body TileResultBody }, error) {
	if h.estate.Tiler == nil {
		return nil, huma.Error503ServiceUnavailable("Tiler not configured")
	}
	if input.Body.MinZoom > input.Body.MaxZoom {
		return nil, huma.Error422UnprocessableEntity("minZoom must not exceed maxZoom")
	}
	f, stats, err := h.estate.GenerateTiles(ctx, input.Body, nil)
	if err != nil {
		return nil, huma.Error500InternalServerError("Tile generation failed", err)
	}
	return &struct{ Body TileResultBody }{Body: TileResultBody{File: f, Stats: stats}}, nil
}

// Generate tiles the estate from Datastar signals and streams progress.
func (h *TileHandler) Generate(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.Parse()
	if err != nil {
		return nil, err
	}
	// data-bind lower-cases signal names
	opts := service.TileGenerateOptions{
		OutputName: signals.String("outputname"),
		LayerName:  signals.String("layername"),
		MinZoom:    signals.Int("minzoom"),
		MaxZoom:    signals.Int("maxzoom"),
	}
	if opts.OutputName == "" {
		return nil, huma.Error400BadRequest("Output name is required")
	}

	return h.Stream(func(sse humastar.SSE) {
		if h.estate.Tiler == nil {
			sse.Error("Tiler not configured")
			return
		}
		f, _, err := h.estate.GenerateTiles(ctx, opts, func(progress int, status string) {
			sse.Signals(map[string]any{
				"tileStatus":   status,
				"tileProgress": progress,
			})
		})
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Signals(map[string]any{
			"tileStatus":   "Complete!",
			"tileProgress": 100,
			"success":      "Tiles generated: " + f.Name,
		})
		if tiles, err := h.estate.Tiles.List(); err == nil {
			sse.Patch(h.renderTileList(tiles), "#tile-list")
		}
	}), nil
}

func (h *TileHandler) renderTileList(tiles []service.TileFile) string {
	if len(tiles) == 0 {
		return h.Render("empty-state", map[string]string{"ID": "tile-list-empty", "Message": "No PMTiles yet"})
	}
	var buf bytes.Buffer
	for _, t := range tiles {
		buf.WriteString(h.Render("tile-card", t))
	}
	return buf.String()
}

func (h *TileHandler) ListExports(ctx context.Context, input *struct{}) (*struct{ Body []service.ExportFile }, error) {
	files, err := h.estate.Exports.List()
	if err != nil {
		return &struct{ Body []service.ExportFile }{Body: []service.ExportFile{}}, nil
	}
	return &struct{ Body []service.ExportFile }{Body: files}, nil
}

// CreateExports writes one GeoJSON file per building.
func (h *TileHandler) CreateExports(ctx context.Context, input *struct{}) (*struct{ Body []service.ExportFile }, error) {
	files, err := h.estate.Export()
	if err != nil {
		return nil, huma.Error500InternalServerError("Export failed", err)
	}
	return &struct{ Body []service.ExportFile }{Body: files}, nil
}
