// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/estate"
	"github.com/joeblew999/plat-estate/internal/humastar"
	"github.com/joeblew999/plat-estate/internal/logging"
	"github.com/joeblew999/plat-estate/internal/scene"
	"github.com/joeblew999/plat-estate/internal/service"
	"github.com/joeblew999/plat-estate/internal/templates"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// ErrUnitNotFound is returned for an ID missing from the catalog.
var ErrUnitNotFound = errors.New("unit not found")

// Services holds the dependencies of the API handlers.
type Services struct {
	Estate   *estate.Estate
	Renderer *templates.Renderer
	DataDir  string
	Log      logrus.FieldLogger
}

// Register adds every route to api and returns the derived Link headers,
// for use with humastar.LinkTransformer.
func Register(api huma.API, svc Services) humastar.Links {
	svc.Log = logging.Or(svc.Log)
	if svc.Renderer == nil {
		svc.Renderer = templates.Must()
	}
	base := humastar.Handler{Renderer: svc.Renderer}

	NewInfoHandler(svc).RegisterRoutes(api)
	NewBuildingHandler(svc.Estate).RegisterRoutes(api)
	NewSessionHandler(svc.Estate, base).RegisterRoutes(api)
	NewEventHandler(svc.Estate, base).RegisterRoutes(api)
	NewDBHandler(svc.Estate).RegisterRoutes(api)
	NewTileHandler(svc.Estate, base).RegisterRoutes(api)

	links := humastar.AutoLinks(api, "/health", tagStream)
	links.Add("/api/v1/tables", "/api/v1/query", "search")
	links.Add("/api/v1/summary", "/api/v1/tables", "tables")
	links.Add("/api/v1/tiles", "/tiles/", "files")
	return links
}

// tagStream marks SSE operations, which carry no Link headers.
const tagStream = "stream"

// MessageBody is a plain result message.
type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

// MessageOutput wraps MessageBody.
type MessageOutput struct {
	Body MessageBody
}

// httpError maps domain errors onto Huma status errors.
func httpError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return huma.Error503ServiceUnavailable("request cancelled", err)
	case errors.Is(err, service.ErrBuildingNotFound),
		errors.Is(err, scene.ErrSessionNotFound),
		errors.Is(err, ErrUnitNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrBuildingExists),
		errors.Is(err, service.ErrLastBuilding):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, catalog.ErrInvalidParameters),
		errors.Is(err, scene.ErrUnknownBuilding):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}
