package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-estate/internal/tiler"
)

// TilerService writes unit layers to PMTiles archives in the tiles
// directory.
type TilerService struct {
	tilesDir string
	engine   tiler.Tiler
}

// NewTilerService creates a tiler service backed by engine.
func NewTilerService(dataDir string, engine tiler.Tiler) *TilerService {
	return &TilerService{
		tilesDir: filepath.Join(dataDir, "tiles"),
		engine:   engine,
	}
}

// TileGenerateOptions contains options for tile generation.
type TileGenerateOptions struct {
	OutputName string `json:"outputName" required:"true" doc:"Output PMTiles name" example:"units"`
	LayerName  string `json:"layerName,omitempty" doc:"Layer name in tiles" default:"units"`
	MinZoom    int    `json:"minZoom,omitempty" minimum:"0" maximum:"22" doc:"Minimum zoom level" default:"14"`
	MaxZoom    int    `json:"maxZoom,omitempty" minimum:"0" maximum:"22" doc:"Maximum zoom level" default:"18"`
}

// ProgressFunc is called with progress updates during tile generation.
type ProgressFunc = tiler.ProgressFunc

// Generate tiles fc into OutputName.pmtiles. The archive is written to a
// temporary file and renamed, so /tiles/ never serves a partial file.
func (s *TilerService) Generate(ctx context.Context, opts TileGenerateOptions, fc *geojson.FeatureCollection, onProgress ProgressFunc) (TileFile, tiler.Stats, error) {
	cfg := tiler.DefaultConfig()
	if opts.LayerName != "" {
		cfg.Layer = opts.LayerName
	}
	if opts.MinZoom != 0 || opts.MaxZoom != 0 {
		cfg.MinZoom, cfg.MaxZoom = opts.MinZoom, opts.MaxZoom
	}
	if !strings.HasSuffix(opts.OutputName, ".pmtiles") {
		opts.OutputName += ".pmtiles"
	}
	if err := validateFileName(opts.OutputName); err != nil {
		return TileFile{}, tiler.Stats{}, err
	}
	if err := os.MkdirAll(s.tilesDir, 0755); err != nil {
		return TileFile{}, tiler.Stats{}, fmt.Errorf("failed to create tiles directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.tilesDir, ".tiling-*")
	if err != nil {
		return TileFile{}, tiler.Stats{}, err
	}
	defer os.Remove(tmp.Name())

	stats, err := s.engine.Tile(ctx, fc, tmp, cfg, onProgress)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return TileFile{}, tiler.Stats{}, fmt.Errorf("tile generation failed: %w", err)
	}
	out := filepath.Join(s.tilesDir, opts.OutputName)
	if err := os.Rename(tmp.Name(), out); err != nil {
		return TileFile{}, tiler.Stats{}, err
	}
	return TileFile{Name: opts.OutputName, Size: formatSize(int64(stats.Bytes))}, stats, nil
}

// Engine returns the name of the tiling engine.
func (s *TilerService) Engine() string {
	return s.engine.Name()
}

// TilesDir returns the tiles directory path.
func (s *TilerService) TilesDir() string {
	return s.tilesDir
}
