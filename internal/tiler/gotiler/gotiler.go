// Package gotiler generates PMTiles archives in pure Go with
// paulmach/orb's MVT encoder.
package gotiler

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/joeblew999/plat-estate/internal/pmtiles"
	"github.com/joeblew999/plat-estate/internal/tiler"
)

// GoTiler implements tiler.Tiler.
type GoTiler struct{}

// New creates a new GoTiler.
func New() *GoTiler {
	return &GoTiler{}
}

// Name returns the engine name.
func (g *GoTiler) Name() string {
	return "go"
}

// Tile encodes every polygon feature of fc into w.
func (g *GoTiler) Tile(ctx context.Context, fc *geojson.FeatureCollection, w io.Writer, cfg tiler.Config, progress tiler.ProgressFunc) (tiler.Stats, error) {
	if err := cfg.Validate(); err != nil {
		return tiler.Stats{}, err
	}
	if progress == nil {
		progress = func(int, string) {}
	}

	var (
		features []*geojson.Feature
		bound    orb.Bound
	)
	for _, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}
		if len(features) == 0 {
			bound = f.Geometry.Bound()
		} else {
			bound = bound.Union(f.Geometry.Bound())
		}
		features = append(features, f)
	}
	if len(features) == 0 {
		return tiler.Stats{}, fmt.Errorf("%w: no polygon features", pmtiles.ErrNoTiles)
	}

	progress(5, fmt.Sprintf("Tiling %d features", len(features)))
	var tiles []pmtiles.Tile
	levels := cfg.MaxZoom - cfg.MinZoom + 1
	for z := cfg.MinZoom; z <= cfg.MaxZoom; z++ {
		if err := ctx.Err(); err != nil {
			return tiler.Stats{}, err
		}
		level, err := zoomLevel(features, maptile.Zoom(z), cfg.Layer)
		if err != nil {
			return tiler.Stats{}, err
		}
		tiles = append(tiles, level...)
		done := z - cfg.MinZoom + 1
		progress(5+85*done/levels, fmt.Sprintf("Zoom %d: %d tiles", z, len(level)))
	}

	cw := &countingWriter{w: w}
	center := bound.Center()
	_, err := pmtiles.Write(cw, pmtiles.Archive{
		Name:       cfg.Layer,
		MinZoom:    uint8(cfg.MinZoom),
		MaxZoom:    uint8(cfg.MaxZoom),
		Bounds:     [4]float64{bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat()},
		Center:     [2]float64{center.Lon(), center.Lat()},
		CenterZoom: uint8(clamp(17, cfg.MinZoom, cfg.MaxZoom)),
		Extra: map[string]any{
			"vector_layers": []map[string]any{{
				"id":      cfg.Layer,
				"minzoom": cfg.MinZoom,
				"maxzoom": cfg.MaxZoom,
				"fields": map[string]string{
					"id": "String", "building": "String", "floor": "Number",
					"status": "String", "area": "Number", "rooms": "Number",
					"min_height": "Number", "height": "Number",
				},
			}},
		},
	}, tiles)
	if err != nil {
		return tiler.Stats{}, err
	}
	progress(100, "Tiles generated")
	return tiler.Stats{Tiles: len(tiles), Features: len(features), Bytes: cw.n}, nil
}

// zoomLevel groups features by the tiles their bounds touch and encodes
// each non-empty tile.
func zoomLevel(features []*geojson.Feature, z maptile.Zoom, layer string) ([]pmtiles.Tile, error) {
	byTile := make(map[maptile.Tile][]*geojson.Feature)
	for _, f := range features {
		for _, t := range tilesInBounds(f.Geometry.Bound(), z) {
			byTile[t] = append(byTile[t], f)
		}
	}

	keys := make([]maptile.Tile, 0, len(byTile))
	for t := range byTile {
		keys = append(keys, t)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Y < keys[j].Y
	})

	var out []pmtiles.Tile
	for _, t := range keys {
		data, err := encodeTile(t, byTile[t], layer)
		if err != nil {
			return nil, fmt.Errorf("tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
		}
		if data == nil {
			continue
		}
		out = append(out, pmtiles.Tile{Z: uint8(t.Z), X: t.X, Y: t.Y, Data: data})
	}
	return out, nil
}

// encodeTile returns the gzipped MVT for t, or nil when nothing survives
// clipping.
func encodeTile(t maptile.Tile, features []*geojson.Feature, layer string) ([]byte, error) {
	tb := t.Bound()
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		if !intersects(f.Geometry, tb) {
			continue
		}
		// Clip and ProjectToTile rewrite coordinates in place.
		c := geojson.NewFeature(orb.Clone(f.Geometry))
		for k, v := range f.Properties {
			c.Properties[k] = v
		}
		fc.Append(c)
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	l := mvt.NewLayer(layer, fc)
	if eps := simplifyEpsilon(t.Z); eps > 0 {
		l.Simplify(simplify.DouglasPeucker(eps))
	}
	l.Clip(tb)
	l.ProjectToTile(t)
	l.RemoveEmpty(0.5, 0.5)
	if len(l.Features) == 0 {
		return nil, nil
	}
	return mvt.MarshalGzipped(mvt.Layers{l})
}

// intersects refines the bounding box test for polygons: a vertex inside
// the tile, or the tile centre inside the polygon.
func intersects(g orb.Geometry, tb orb.Bound) bool {
	if !g.Bound().Intersects(tb) {
		return false
	}
	switch p := g.(type) {
	case orb.Polygon:
		for _, ring := range p {
			for _, pt := range ring {
				if tb.Contains(pt) {
					return true
				}
			}
		}
		return planar.PolygonContains(p, tb.Center())
	case orb.MultiPolygon:
		for _, poly := range p {
			if intersects(poly, tb) {
				return true
			}
		}
		return false
	}
	return true
}

// tilesInBounds returns every tile at z overlapping b.
func tilesInBounds(b orb.Bound, z maptile.Zoom) []maptile.Tile {
	lo := maptile.At(b.Min, z)
	hi := maptile.At(b.Max, z)
	minX, maxX := lo.X, hi.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := lo.Y, hi.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	var out []maptile.Tile
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			out = append(out, maptile.New(x, y, z))
		}
	}
	return out
}

// simplifyEpsilon is zero at building zooms; units are a few metres wide.
func simplifyEpsilon(z maptile.Zoom) float64 {
	switch {
	case z >= 15:
		return 0
	case z >= 12:
		return 0.000001
	default:
		return 0.00001
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

var _ tiler.Tiler = (*GoTiler)(nil)
