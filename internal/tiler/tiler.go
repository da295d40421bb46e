// Package tiler turns unit polygons into vector-tile archives for the map
// surface.
package tiler

import (
	"context"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"
)

// Config controls one tiling run.
type Config struct {
	Layer   string `json:"layer" yaml:"layer" validate:"required"`
	MinZoom int    `json:"minZoom" yaml:"minZoom" validate:"gte=0,lte=22"`
	MaxZoom int    `json:"maxZoom" yaml:"maxZoom" validate:"gte=0,lte=22,gtefield=MinZoom"`
}

// DefaultConfig covers street to single-building zooms.
func DefaultConfig() Config {
	return Config{Layer: "units", MinZoom: 14, MaxZoom: 18}
}

// Validate checks the zoom range.
func (c Config) Validate() error {
	if c.Layer == "" {
		return fmt.Errorf("tiler: empty layer name")
	}
	if c.MinZoom < 0 || c.MaxZoom > 22 || c.MinZoom > c.MaxZoom {
		return fmt.Errorf("tiler: bad zoom range %d-%d", c.MinZoom, c.MaxZoom)
	}
	return nil
}

// Stats summarises a finished run.
type Stats struct {
	Tiles    int `json:"tiles"`
	Features int `json:"features"`
	Bytes    int `json:"bytes"`
}

// ProgressFunc receives a percentage and a status line.
type ProgressFunc func(percent int, status string)

// Tiler is a tile generation engine.
type Tiler interface {
	Name() string
	Tile(ctx context.Context, fc *geojson.FeatureCollection, w io.Writer, cfg Config, progress ProgressFunc) (Stats, error)
}
