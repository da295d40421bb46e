// Package estate wires the building store, the browsing sessions and the
// derived artefacts (DuckDB snapshot, GeoJSON exports, vector tiles) into
// one unit that is rebuilt whenever a building changes.
package estate

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/config"
	"github.com/joeblew999/plat-estate/internal/db"
	"github.com/joeblew999/plat-estate/internal/filter"
	"github.com/joeblew999/plat-estate/internal/logging"
	"github.com/joeblew999/plat-estate/internal/scene"
	"github.com/joeblew999/plat-estate/internal/service"
	"github.com/joeblew999/plat-estate/internal/tiler"
)

// Config holds what New needs.
type Config struct {
	DataDir string
	Site    config.Site
	// DB is optional; without it the summary and query endpoints are off.
	DB    *sql.DB
	Tiler tiler.Tiler
	Bus   *service.EventBus
	Log   logrus.FieldLogger
}

// Estate is the running estate.
type Estate struct {
	mu     sync.Mutex // serialises rebuilds
	layout scene.Layout
	tiles  tiler.Config

	Buildings *service.BuildingService
	Registry  *scene.Registry
	Tiles     *service.TileService
	Tiler     *service.TilerService
	Exports   *service.ExportService
	DB        *sql.DB
	Bus       *service.EventBus

	log logrus.FieldLogger
}

// New loads the buildings, generates the catalog and takes the first
// DuckDB snapshot.
func New(ctx context.Context, cfg Config) (*Estate, error) {
	log := logging.Or(cfg.Log)
	bus := cfg.Bus
	if bus == nil {
		bus = service.NewEventBus()
	}
	layout := cfg.Site.Layout
	if layout.Geographic.Log == nil {
		layout.Geographic.Log = log
	}

	e := &Estate{
		layout:    layout,
		tiles:     cfg.Site.Tiles,
		Buildings: service.NewBuildingService(cfg.DataDir, cfg.Site.Buildings, log),
		Tiles:     service.NewTileService(cfg.DataDir),
		Exports:   service.NewExportService(cfg.DataDir),
		DB:        cfg.DB,
		Bus:       bus,
		log:       log,
	}
	if cfg.Tiler != nil {
		e.Tiler = service.NewTilerService(cfg.DataDir, cfg.Tiler)
	}

	w, err := e.build()
	if err != nil {
		return nil, err
	}
	e.Registry = scene.NewRegistry(w, bus, log)
	if err := e.snapshot(ctx, w); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"buildings": len(w.Sites),
		"units":     w.Catalog.Len(),
	}).Info("estate ready")
	return e, nil
}

// World returns the current world.
func (e *Estate) World() *scene.World {
	return e.Registry.World()
}

// Layout returns the layout every world is built with.
func (e *Estate) Layout() scene.Layout {
	return e.layout
}

// TileConfig returns the configured tiling defaults.
func (e *Estate) TileConfig() tiler.Config {
	return e.tiles
}

// Rebuild regenerates the world from the current buildings and moves every
// session onto it.
func (e *Estate) Rebuild(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, err := e.build()
	if err != nil {
		return err
	}
	if err := e.snapshot(ctx, w); err != nil {
		return err
	}
	e.Registry.SetWorld(w)
	e.Bus.Publish(service.Event{Resource: service.ResourceBuildings, Action: "regenerated", Data: w.Catalog.Len()})
	return nil
}

func (e *Estate) build() (*scene.World, error) {
	sites, err := e.Buildings.Sites()
	if err != nil {
		return nil, err
	}
	return scene.NewWorld(sites, e.layout)
}

func (e *Estate) snapshot(ctx context.Context, w *scene.World) error {
	if e.DB == nil {
		return nil
	}
	if err := db.Snapshot(ctx, e.DB, w.Catalog); err != nil {
		return fmt.Errorf("catalog snapshot: %w", err)
	}
	return nil
}

// Features returns the unit polygons of k, or of every building for "all".
// With footprints the building outlines come first.
func (e *Estate) Features(k catalog.Kind, footprints bool) (*geojson.FeatureCollection, error) {
	w := e.World()
	if err := w.CheckBuilding(k); err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	for _, s := range w.Sites {
		if k != filter.AllBuildings && s.Kind != k {
			continue
		}
		if footprints {
			fp, err := w.Layout.Geographic.FootprintFeature(s)
			if err != nil {
				return nil, err
			}
			fc.Append(fp)
		}
	}
	units, err := w.AllFeatures()
	if k != filter.AllBuildings {
		units, err = w.Features(k)
	}
	if err != nil {
		return nil, err
	}
	fc.Features = append(fc.Features, units.Features...)
	return fc, nil
}

// Export writes one GeoJSON file per building.
func (e *Estate) Export() ([]service.ExportFile, error) {
	w := e.World()
	files := make([]service.ExportFile, 0, len(w.Sites))
	for _, s := range w.Sites {
		fc, err := w.Features(s.Kind)
		if err != nil {
			return nil, err
		}
		f, err := e.Exports.Write(string(s.Kind), fc)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	e.log.WithField("files", len(files)).Info("geojson exported")
	return files, nil
}

// GenerateTiles writes the unit polygons of every building to a PMTiles
// archive. Zero fields of opts fall back to the site file's tile config.
func (e *Estate) GenerateTiles(ctx context.Context, opts service.TileGenerateOptions, progress tiler.ProgressFunc) (service.TileFile, tiler.Stats, error) {
	if e.Tiler == nil {
		return service.TileFile{}, tiler.Stats{}, fmt.Errorf("no tiling engine configured")
	}
	if opts.LayerName == "" {
		opts.LayerName = e.tiles.Layer
	}
	if opts.MinZoom == 0 && opts.MaxZoom == 0 {
		opts.MinZoom, opts.MaxZoom = e.tiles.MinZoom, e.tiles.MaxZoom
	}
	fc, err := e.World().AllFeatures()
	if err != nil {
		return service.TileFile{}, tiler.Stats{}, err
	}
	f, stats, err := e.Tiler.Generate(ctx, opts, fc, progress)
	if err != nil {
		return service.TileFile{}, tiler.Stats{}, err
	}
	e.log.WithFields(logrus.Fields{"file": f.Name, "tiles": stats.Tiles, "engine": e.Tiler.Engine()}).Info("tiles generated")
	e.Bus.Publish(service.Event{Resource: service.ResourceTiles, Action: "created", ID: f.Name, Data: stats})
	return f, stats, nil
}

// CreateBuilding adds a building and rebuilds. The building is removed
// again when the estate cannot be rebuilt with it.
func (e *Estate) CreateBuilding(ctx context.Context, b service.BuildingConfig) (service.BuildingConfig, error) {
	created, err := e.Buildings.Create(b)
	if err != nil {
		return service.BuildingConfig{}, err
	}
	if err := e.Rebuild(ctx); err != nil {
		if derr := e.Buildings.Delete(created.Kind); derr != nil {
			e.log.WithError(derr).Warn("rollback failed")
		}
		return service.BuildingConfig{}, err
	}
	return created, nil
}

// UpdateBuilding replaces a building and rebuilds, restoring the previous
// version on failure.
func (e *Estate) UpdateBuilding(ctx context.Context, kind catalog.Kind, b service.BuildingConfig) (service.BuildingConfig, error) {
	prev, ok := e.Buildings.Get(kind)
	if !ok {
		return service.BuildingConfig{}, fmt.Errorf("%w: %q", service.ErrBuildingNotFound, kind)
	}
	updated, err := e.Buildings.Update(kind, b)
	if err != nil {
		return service.BuildingConfig{}, err
	}
	if err := e.Rebuild(ctx); err != nil {
		if _, rerr := e.Buildings.Update(kind, prev); rerr != nil {
			e.log.WithError(rerr).Warn("rollback failed")
		}
		return service.BuildingConfig{}, err
	}
	return updated, nil
}

// DeleteBuilding removes a building and rebuilds. Sessions that had it
// selected fall back to all buildings.
func (e *Estate) DeleteBuilding(ctx context.Context, kind catalog.Kind) error {
	prev, ok := e.Buildings.Get(kind)
	if !ok {
		return fmt.Errorf("%w: %q", service.ErrBuildingNotFound, kind)
	}
	if err := e.Buildings.Delete(kind); err != nil {
		return err
	}
	if err := e.Rebuild(ctx); err != nil {
		if _, cerr := e.Buildings.Create(prev); cerr != nil {
			e.log.WithError(cerr).Warn("rollback failed")
		}
		return err
	}
	return nil
}
