package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// ExportService writes and lists GeoJSON layers for external GIS tools.
type ExportService struct {
	exportsDir string
}

// NewExportService creates a new export service.
func NewExportService(dataDir string) *ExportService {
	return &ExportService{
		exportsDir: filepath.Join(dataDir, "exports"),
	}
}

// Write stores fc as name.geojson.
func (s *ExportService) Write(name string, fc *geojson.FeatureCollection) (ExportFile, error) {
	if !strings.HasSuffix(name, ".geojson") {
		name += ".geojson"
	}
	if err := validateFileName(name); err != nil {
		return ExportFile{}, err
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return ExportFile{}, fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := os.MkdirAll(s.exportsDir, 0755); err != nil {
		return ExportFile{}, err
	}
	if err := os.WriteFile(filepath.Join(s.exportsDir, name), data, 0644); err != nil {
		return ExportFile{}, err
	}
	return ExportFile{Name: name, Size: formatSize(int64(len(data))), FileType: "GeoJSON"}, nil
}

// List returns all exported files.
func (s *ExportService) List() ([]ExportFile, error) {
	entries, err := os.ReadDir(s.exportsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ExportFile{}, nil
		}
		return nil, err
	}

	extToType := map[string]string{
		".geojson": "GeoJSON",
		".json":    "GeoJSON",
	}

	files := []ExportFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileType, ok := extToType[strings.ToLower(filepath.Ext(entry.Name()))]
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, ExportFile{
			Name:     entry.Name(),
			Size:     formatSize(info.Size()),
			FileType: fileType,
		})
	}
	return files, nil
}

// ExportsDir returns the path to the exports directory.
func (s *ExportService) ExportsDir() string {
	return s.exportsDir
}

// validateFileName rejects anything that is not a plain file name.
func validateFileName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid filename %q", name)
	}
	return nil
}
