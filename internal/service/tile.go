package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joeblew999/plat-estate/internal/pmtiles"
)

// TileService lists the PMTiles archives served under /tiles/, with the
// zoom range and bounds a map client needs to load them.
type TileService struct {
	tilesDir string
}

// NewTileService creates a new tile service.
func NewTileService(dataDir string) *TileService {
	return &TileService{
		tilesDir: filepath.Join(dataDir, "tiles"),
	}
}

// List returns every archive in the tiles directory. Files whose header
// cannot be read are listed without metadata.
func (s *TileService) List() ([]TileFile, error) {
	entries, err := os.ReadDir(s.tilesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []TileFile{}, nil
		}
		return nil, err
	}

	files := []TileFile{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".pmtiles" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		f := TileFile{Name: entry.Name(), Size: formatSize(info.Size())}
		if h, err := s.Header(entry.Name()); err == nil {
			f.describe(h)
		}
		files = append(files, f)
	}
	return files, nil
}

// Header reads the fixed header of archive name.
func (s *TileService) Header(name string) (pmtiles.Header, error) {
	if err := validateFileName(name); err != nil {
		return pmtiles.Header{}, err
	}
	f, err := os.Open(filepath.Join(s.tilesDir, name))
	if err != nil {
		return pmtiles.Header{}, err
	}
	defer f.Close()

	buf := make([]byte, pmtiles.HeaderLen)
	if _, err := io.ReadFull(f, buf); err != nil {
		return pmtiles.Header{}, fmt.Errorf("%s: %w", name, pmtiles.ErrBadHeader)
	}
	return pmtiles.ReadHeader(buf)
}

// TilesDir returns the path to the tiles directory.
func (s *TileService) TilesDir() string {
	return s.tilesDir
}

func (f *TileFile) describe(h pmtiles.Header) {
	f.MinZoom = int(h.MinZoom)
	f.MaxZoom = int(h.MaxZoom)
	f.Tiles = h.AddressedTilesCount
	f.Bounds = &[4]float64{
		float64(h.MinLonE7) / 1e7, float64(h.MinLatE7) / 1e7,
		float64(h.MaxLonE7) / 1e7, float64(h.MaxLatE7) / 1e7,
	}
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
