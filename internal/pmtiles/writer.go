package pmtiles

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
)

// ErrNoTiles is returned when an archive would be empty.
var ErrNoTiles = errors.New("no tiles to write")

// Tile is one gzipped MVT tile.
type Tile struct {
	Z    uint8
	X, Y uint32
	Data []byte
}

// Archive describes the whole file.
type Archive struct {
	Name       string
	MinZoom    uint8
	MaxZoom    uint8
	Bounds     [4]float64 // minLon, minLat, maxLon, maxLat
	Center     [2]float64 // lon, lat
	CenterZoom uint8
	// Extra is merged into the JSON metadata.
	Extra map[string]any
}

// Write lays out header, root directory, metadata and tile data in that
// order. Tiles are clustered by ID; identical payloads are stored once.
func Write(w io.Writer, a Archive, tiles []Tile) (Header, error) {
	if len(tiles) == 0 {
		return Header{}, ErrNoTiles
	}

	type keyed struct {
		id   uint64
		data []byte
	}
	sorted := make([]keyed, len(tiles))
	for i, t := range tiles {
		sorted[i] = keyed{TileID(t.Z, t.X, t.Y), t.Data}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].id < sorted[j].id })

	var (
		entries []Entry
		data    bytes.Buffer
		seen    = make(map[string]Entry)
	)
	for i, t := range sorted {
		if i > 0 && t.id == sorted[i-1].id {
			return Header{}, fmt.Errorf("duplicate tile id %d", t.id)
		}
		if prev, ok := seen[string(t.data)]; ok {
			entries = append(entries, Entry{TileID: t.id, Offset: prev.Offset, Length: prev.Length, RunLength: 1})
			continue
		}
		e := Entry{TileID: t.id, Offset: uint64(data.Len()), Length: uint32(len(t.data)), RunLength: 1}
		seen[string(t.data)] = e
		entries = append(entries, e)
		data.Write(t.data)
	}

	dir, err := encodeDirectory(entries)
	if err != nil {
		return Header{}, fmt.Errorf("encoding directory: %w", err)
	}
	meta := map[string]any{
		"name":        a.Name,
		"format":      "pbf",
		"compression": "gzip",
		"minzoom":     a.MinZoom,
		"maxzoom":     a.MaxZoom,
	}
	for k, v := range a.Extra {
		meta[k] = v
	}
	metaBytes, err := encodeMetadata(meta)
	if err != nil {
		return Header{}, fmt.Errorf("encoding metadata: %w", err)
	}

	h := Header{
		SpecVersion:         3,
		RootOffset:          HeaderLen,
		RootLength:          uint64(len(dir)),
		MetadataOffset:      HeaderLen + uint64(len(dir)),
		MetadataLength:      uint64(len(metaBytes)),
		TileDataOffset:      HeaderLen + uint64(len(dir)) + uint64(len(metaBytes)),
		TileDataLength:      uint64(data.Len()),
		AddressedTilesCount: uint64(len(entries)),
		TileEntriesCount:    uint64(len(entries)),
		TileContentsCount:   uint64(len(seen)),
		Clustered:           true,
		InternalCompression: Gzip,
		TileCompression:     Gzip,
		TileType:            Mvt,
		MinZoom:             a.MinZoom,
		MaxZoom:             a.MaxZoom,
		MinLonE7:            e7(a.Bounds[0]),
		MinLatE7:            e7(a.Bounds[1]),
		MaxLonE7:            e7(a.Bounds[2]),
		MaxLatE7:            e7(a.Bounds[3]),
		CenterZoom:          a.CenterZoom,
		CenterLonE7:         e7(a.Center[0]),
		CenterLatE7:         e7(a.Center[1]),
	}
	hb, err := h.MarshalBinary()
	if err != nil {
		return Header{}, err
	}
	for _, part := range [][]byte{hb, dir, metaBytes, data.Bytes()} {
		if _, err := w.Write(part); err != nil {
			return Header{}, err
		}
	}
	return h, nil
}

func e7(deg float64) int32 {
	return int32(math.Round(deg * 1e7))
}

// ReadDirectory decodes a gzipped directory section.
func ReadDirectory(b []byte) ([]Entry, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(raw)
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, n)
	var last uint64
	for i := range entries {
		d, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		last += d
		entries[i].TileID = last
	}
	for i := range entries {
		v, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		entries[i].RunLength = uint32(v)
	}
	for i := range entries {
		v, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		entries[i].Length = uint32(v)
	}
	for i := range entries {
		v, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		if v == 0 && i > 0 {
			entries[i].Offset = entries[i-1].Offset + uint64(entries[i-1].Length)
		} else {
			entries[i].Offset = v - 1
		}
	}
	return entries, nil
}
