package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-estate/internal/estate"
)

// InfoHandler serves the health and info endpoints.
type InfoHandler struct {
	estate  *estate.Estate
	dataDir string
}

func NewInfoHandler(svc Services) *InfoHandler {
	return &InfoHandler{estate: svc.Estate, dataDir: svc.DataDir}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

type InfoBody struct {
	Name      string   `json:"name" doc:"Service name"`
	Version   string   `json:"version" doc:"Service version"`
	DataDir   string   `json:"data_dir" doc:"Data directory path"`
	DB        bool     `json:"db" doc:"Whether the DuckDB snapshot is available"`
	Buildings int      `json:"buildings" doc:"Number of buildings"`
	Units     int      `json:"units" doc:"Number of units in the catalog"`
	Sessions  int      `json:"sessions" doc:"Open browsing sessions"`
	Engine    string   `json:"engine,omitempty" doc:"Tiling engine"`
	Features  []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	w := h.estate.World()
	body := InfoBody{
		Name:      "plat-estate",
		Version:   Version,
		DataDir:   h.dataDir,
		DB:        h.estate.DB != nil,
		Buildings: len(w.Sites),
		Units:     w.Catalog.Len(),
		Sessions:  h.estate.Registry.Len(),
		Features:  []string{"catalog", "sessions", "geojson", "sse"},
	}
	if body.DB {
		body.Features = append(body.Features, "duckdb")
	}
	if h.estate.Tiler != nil {
		body.Engine = h.estate.Tiler.Engine()
		body.Features = append(body.Features, "pmtiles")
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
