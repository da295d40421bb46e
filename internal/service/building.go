package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/geometry"
	"github.com/joeblew999/plat-estate/internal/logging"
)

var (
	// ErrBuildingNotFound is returned for an unknown kind.
	ErrBuildingNotFound = errors.New("building not found")
	// ErrBuildingExists is returned when creating a kind twice.
	ErrBuildingExists = errors.New("building already exists")
	// ErrLastBuilding is returned when deleting would leave the estate empty.
	ErrLastBuilding = errors.New("cannot delete the last building")
)

// BuildingService manages building configurations.
type BuildingService struct {
	dataDir   string
	buildings map[catalog.Kind]BuildingConfig
	mu        sync.RWMutex
	log       logrus.FieldLogger
}

// NewBuildingService loads buildings.json from dataDir, or starts from
// seed when there is none. An empty dataDir keeps everything in memory.
func NewBuildingService(dataDir string, seed []BuildingConfig, log logrus.FieldLogger) *BuildingService {
	s := &BuildingService{
		dataDir:   dataDir,
		buildings: make(map[catalog.Kind]BuildingConfig),
		log:       logging.Or(log),
	}
	if !s.loadFromDisk() {
		for _, b := range seed {
			s.buildings[b.Kind] = b
		}
	}
	return s
}

// List returns all buildings ordered by kind.
func (s *BuildingService) List() []BuildingConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]BuildingConfig, 0, len(s.buildings))
	for _, b := range s.buildings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Get returns a building by kind.
func (s *BuildingService) Get(kind catalog.Kind) (BuildingConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.buildings[kind]
	return b, ok
}

// Create adds a building.
func (s *BuildingService) Create(b BuildingConfig) (BuildingConfig, error) {
	b, err := normalise(b)
	if err != nil {
		return BuildingConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.buildings[b.Kind]; exists {
		return BuildingConfig{}, fmt.Errorf("%w: %q", ErrBuildingExists, b.Kind)
	}
	s.buildings[b.Kind] = b
	if err := s.saveToDisk(); err != nil {
		delete(s.buildings, b.Kind)
		return BuildingConfig{}, err
	}
	return b, nil
}

// Update replaces the building of the given kind.
func (s *BuildingService) Update(kind catalog.Kind, b BuildingConfig) (BuildingConfig, error) {
	b.Kind = kind
	b, err := normalise(b)
	if err != nil {
		return BuildingConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.buildings[kind]
	if !exists {
		return BuildingConfig{}, fmt.Errorf("%w: %q", ErrBuildingNotFound, kind)
	}
	s.buildings[kind] = b
	if err := s.saveToDisk(); err != nil {
		s.buildings[kind] = prev
		return BuildingConfig{}, err
	}
	return b, nil
}

// Delete removes a building.
func (s *BuildingService) Delete(kind catalog.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.buildings[kind]
	if !exists {
		return fmt.Errorf("%w: %q", ErrBuildingNotFound, kind)
	}
	if len(s.buildings) == 1 {
		return ErrLastBuilding
	}
	delete(s.buildings, kind)
	if err := s.saveToDisk(); err != nil {
		s.buildings[kind] = prev
		return err
	}
	return nil
}

// Sites converts every building, ordered by kind.
func (s *BuildingService) Sites() ([]geometry.Site, error) {
	list := s.List()
	sites := make([]geometry.Site, 0, len(list))
	for _, b := range list {
		site, err := b.Site()
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, nil
}

func normalise(b BuildingConfig) (BuildingConfig, error) {
	k, err := catalog.ParseKind(string(b.Kind))
	if err != nil {
		return BuildingConfig{}, fmt.Errorf("%w: %v", catalog.ErrInvalidParameters, err)
	}
	b.Kind = k
	if b.Name == "" {
		b.Name = "Building " + k.Label()
	}
	if _, err := b.Site(); err != nil {
		return BuildingConfig{}, err
	}
	if _, err := catalog.Generate(catalog.Building{Kind: k, Floors: b.Floors, UnitsPerFloor: b.UnitsPerFloor}, catalog.DefaultParams()); err != nil {
		return BuildingConfig{}, err
	}
	return b, nil
}

// configFile returns the path to the buildings file.
func (s *BuildingService) configFile() string {
	return filepath.Join(s.dataDir, "buildings.json")
}

// loadFromDisk reports whether a usable buildings file was found.
func (s *BuildingService) loadFromDisk() bool {
	if s.dataDir == "" {
		return false
	}
	data, err := os.ReadFile(s.configFile())
	if err != nil {
		return false // not written yet
	}

	var buildings map[catalog.Kind]BuildingConfig
	if err := json.Unmarshal(data, &buildings); err != nil || len(buildings) == 0 {
		s.log.WithError(err).WithField("file", s.configFile()).Warn("ignoring unreadable buildings file")
		return false
	}
	s.buildings = buildings
	return true
}

// saveToDisk persists the buildings.
func (s *BuildingService) saveToDisk() error {
	if s.dataDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.buildings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.configFile(), data, 0644)
}
