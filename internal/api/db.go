package api

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-estate/internal/db"
	"github.com/joeblew999/plat-estate/internal/estate"
)

// DBHandler serves the DuckDB snapshot of the catalog.
type DBHandler struct {
	estate *estate.Estate
}

// NewDBHandler creates a new database handler.
func NewDBHandler(e *estate.Estate) *DBHandler {
	return &DBHandler{estate: e}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("db")
	huma.Get(api, "/api/v1/tables", h.ListTables, tags)
	huma.Post(api, "/api/v1/query", h.Query, tags)
	huma.Get(api, "/api/v1/summary", h.Summary, tags)
}

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"List of table names"`
	}
}

// QueryInput is the input for SQL queries.
type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" minLength:"1" doc:"SQL query to execute" example:"SELECT * FROM units WHERE rooms = 3"`
	}
}

// QueryOutput is the response for SQL queries.
type QueryOutput struct {
	Body db.Result
}

type SummaryInput struct {
	Building string `query:"building" doc:"Limit the room mix to one building"`
}

type EstateSummaryBody struct {
	Buildings []db.BuildingSummary `json:"buildings" doc:"Sales figures per building"`
	Rooms     []db.RoomMix         `json:"rooms" doc:"Units per room count"`
}

func (h *DBHandler) conn() error {
	if h.estate.DB == nil {
		return huma.Error503ServiceUnavailable("Database not available")
	}
	return nil
}

// ListTables returns all DuckDB tables.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if err := h.conn(); err != nil {
		return nil, err
	}
	tables, err := db.Tables(ctx, h.estate.DB)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	out := &TablesOutput{}
	out.Body.Tables = tables
	return out, nil
}

// Query executes a SQL query against DuckDB.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*QueryOutput, error) {
	if err := h.conn(); err != nil {
		return nil, err
	}
	res, err := db.Query(ctx, h.estate.DB, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	return &QueryOutput{Body: res}, nil
}

// Summary aggregates the catalog per building and per room count.
func (h *DBHandler) Summary(ctx context.Context, input *SummaryInput) (*struct{ Body EstateSummaryBody }, error) {
	if err := h.conn(); err != nil {
		return nil, err
	}
	buildings, err := db.Summary(ctx, h.estate.DB)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to summarise catalog", err)
	}
	rooms, err := db.Rooms(ctx, h.estate.DB, strings.ToLower(input.Building))
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to summarise rooms", err)
	}
	return &struct{ Body EstateSummaryBody }{Body: EstateSummaryBody{Buildings: buildings, Rooms: rooms}}, nil
}
