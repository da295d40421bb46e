// Package pmtiles writes single-directory PMTiles v3 archives of gzipped
// vector tiles, small enough for one estate.
//
// Format: https://github.com/protomaps/PMTiles/blob/main/spec/v3/spec.md
package pmtiles

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// Compression of the directory, metadata or tiles.
type Compression uint8

const (
	UnknownCompression Compression = 0
	NoCompression      Compression = 1
	Gzip               Compression = 2
)

// TileType of the archive contents.
type TileType uint8

const (
	UnknownTileType TileType = 0
	Mvt             TileType = 1
)

// HeaderLen is the size of the fixed binary header.
const HeaderLen = 127

var magic = []byte("PMTiles")

// ErrBadHeader is returned when a buffer does not start with a v3 header.
var ErrBadHeader = errors.New("not a pmtiles v3 header")

// Header is the fixed v3 header.
type Header struct {
	SpecVersion         uint8
	RootOffset          uint64
	RootLength          uint64
	MetadataOffset      uint64
	MetadataLength      uint64
	LeafDirectoryOffset uint64
	LeafDirectoryLength uint64
	TileDataOffset      uint64
	TileDataLength      uint64
	AddressedTilesCount uint64
	TileEntriesCount    uint64
	TileContentsCount   uint64
	Clustered           bool
	InternalCompression Compression
	TileCompression     Compression
	TileType            TileType
	MinZoom             uint8
	MaxZoom             uint8
	MinLonE7            int32
	MinLatE7            int32
	MaxLonE7            int32
	MaxLatE7            int32
	CenterZoom          uint8
	CenterLonE7         int32
	CenterLatE7         int32
}

// Entry points at one run of tiles in the data section.
type Entry struct {
	TileID    uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

// TileID returns the Hilbert-curve ID of tile (z, x, y).
func TileID(z uint8, x, y uint32) uint64 {
	id := (uint64(1)<<(2*uint64(z)) - 1) / 3
	for s := uint32(1) << z >> 1; s > 0; s >>= 1 {
		var rx, ry uint32
		if x&s != 0 {
			rx = 1
		}
		if y&s != 0 {
			ry = 1
		}
		id += uint64(s) * uint64(s) * uint64((3*rx)^ry)
		if ry == 0 {
			if rx == 1 {
				x = s - 1 - x&(s-1)
				y = s - 1 - y&(s-1)
			}
			x, y = y, x
		}
	}
	return id
}

// encoder writes little-endian fields at a moving offset.
type encoder struct {
	b   []byte
	off int
}

func (e *encoder) u8(v uint8)   { e.b[e.off] = v; e.off++ }
func (e *encoder) u32(v uint32) { binary.LittleEndian.PutUint32(e.b[e.off:], v); e.off += 4 }
func (e *encoder) u64(v uint64) { binary.LittleEndian.PutUint64(e.b[e.off:], v); e.off += 8 }

type decoder struct {
	b   []byte
	off int
}

func (d *decoder) u8() uint8   { v := d.b[d.off]; d.off++; return v }
func (d *decoder) u32() uint32 { v := binary.LittleEndian.Uint32(d.b[d.off:]); d.off += 4; return v }
func (d *decoder) u64() uint64 { v := binary.LittleEndian.Uint64(d.b[d.off:]); d.off += 8; return v }

// MarshalBinary encodes h.
func (h Header) MarshalBinary() ([]byte, error) {
	e := &encoder{b: make([]byte, HeaderLen)}
	e.off = copy(e.b, magic)
	e.u8(3)
	for _, v := range []uint64{
		h.RootOffset, h.RootLength,
		h.MetadataOffset, h.MetadataLength,
		h.LeafDirectoryOffset, h.LeafDirectoryLength,
		h.TileDataOffset, h.TileDataLength,
		h.AddressedTilesCount, h.TileEntriesCount, h.TileContentsCount,
	} {
		e.u64(v)
	}
	var clustered uint8
	if h.Clustered {
		clustered = 1
	}
	e.u8(clustered)
	e.u8(uint8(h.InternalCompression))
	e.u8(uint8(h.TileCompression))
	e.u8(uint8(h.TileType))
	e.u8(h.MinZoom)
	e.u8(h.MaxZoom)
	e.u32(uint32(h.MinLonE7))
	e.u32(uint32(h.MinLatE7))
	e.u32(uint32(h.MaxLonE7))
	e.u32(uint32(h.MaxLatE7))
	e.u8(h.CenterZoom)
	e.u32(uint32(h.CenterLonE7))
	e.u32(uint32(h.CenterLatE7))
	return e.b, nil
}

// ReadHeader decodes the header at the start of b.
func ReadHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderLen || !bytes.Equal(b[:len(magic)], magic) {
		return h, ErrBadHeader
	}
	d := &decoder{b: b, off: len(magic)}
	h.SpecVersion = d.u8()
	if h.SpecVersion != 3 {
		return h, fmt.Errorf("%w: version %d", ErrBadHeader, h.SpecVersion)
	}
	for _, p := range []*uint64{
		&h.RootOffset, &h.RootLength,
		&h.MetadataOffset, &h.MetadataLength,
		&h.LeafDirectoryOffset, &h.LeafDirectoryLength,
		&h.TileDataOffset, &h.TileDataLength,
		&h.AddressedTilesCount, &h.TileEntriesCount, &h.TileContentsCount,
	} {
		*p = d.u64()
	}
	h.Clustered = d.u8() == 1
	h.InternalCompression = Compression(d.u8())
	h.TileCompression = Compression(d.u8())
	h.TileType = TileType(d.u8())
	h.MinZoom = d.u8()
	h.MaxZoom = d.u8()
	h.MinLonE7 = int32(d.u32())
	h.MinLatE7 = int32(d.u32())
	h.MaxLonE7 = int32(d.u32())
	h.MaxLatE7 = int32(d.u32())
	h.CenterZoom = d.u8()
	h.CenterLonE7 = int32(d.u32())
	h.CenterLatE7 = int32(d.u32())
	return h, nil
}

// gzipBytes compresses b at the best level.
func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeMetadata returns the gzipped JSON metadata section.
func encodeMetadata(meta map[string]any) ([]byte, error) {
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return gzipBytes(b)
}

// encodeDirectory returns the gzipped directory: count, then the delta
// tile IDs, run lengths, lengths and offsets as uvarint columns. An offset
// of 0 means "right after the previous entry".
func encodeDirectory(entries []Entry) ([]byte, error) {
	var raw []byte
	raw = binary.AppendUvarint(raw, uint64(len(entries)))
	var last uint64
	for _, e := range entries {
		raw = binary.AppendUvarint(raw, e.TileID-last)
		last = e.TileID
	}
	for _, e := range entries {
		raw = binary.AppendUvarint(raw, uint64(e.RunLength))
	}
	for _, e := range entries {
		raw = binary.AppendUvarint(raw, uint64(e.Length))
	}
	for i, e := range entries {
		if i > 0 && e.Offset == entries[i-1].Offset+uint64(entries[i-1].Length) {
			raw = binary.AppendUvarint(raw, 0)
			continue
		}
		raw = binary.AppendUvarint(raw, e.Offset+1)
	}
	return gzipBytes(raw)
}
