// Package config loads the site description: buildings, generator
// constants, layout and camera smoothing.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/geometry"
	"github.com/joeblew999/plat-estate/internal/logging"
	"github.com/joeblew999/plat-estate/internal/scene"
	"github.com/joeblew999/plat-estate/internal/service"
	"github.com/joeblew999/plat-estate/internal/tiler"
)

var validate = validator.New()

// Site is the YAML site file.
type Site struct {
	Buildings []service.BuildingConfig `yaml:"buildings" validate:"required,min=1,dive"`
	Layout    scene.Layout              `yaml:"layout"`
	Tiles     tiler.Config              `yaml:"tiles"`
}

// Default returns the showcase estate.
func Default() Site {
	sites := scene.DefaultSites()
	buildings := make([]service.BuildingConfig, len(sites))
	for i, s := range sites {
		buildings[i] = service.ConfigFromSite(s)
	}
	return Site{
		Buildings: buildings,
		Layout:    scene.DefaultLayout(),
		Tiles:     tiler.DefaultConfig(),
	}
}

// Validate checks field ranges, unique kinds and the generator constants.
func (s Site) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", catalog.ErrInvalidParameters, err)
	}
	seen := make(map[catalog.Kind]bool, len(s.Buildings))
	for _, b := range s.Buildings {
		if seen[b.Kind] {
			return fmt.Errorf("%w: building %q listed twice", catalog.ErrInvalidParameters, b.Kind)
		}
		seen[b.Kind] = true
		if _, err := b.Site(); err != nil {
			return err
		}
	}
	if err := s.Layout.Params.Validate(); err != nil {
		return err
	}
	return s.Tiles.Validate()
}

// Decode reads a site file from r. Missing sections keep their defaults.
func Decode(r io.Reader) (Site, error) {
	s := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Site{}, fmt.Errorf("parsing site file: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Site{}, err
	}
	return s, nil
}

// Load reads the site file at path, or returns Default when path is empty.
func Load(path string, log logrus.FieldLogger) (Site, error) {
	log = logging.Or(log)
	if path == "" {
		log.Debug("no site file, using the showcase estate")
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Site{}, fmt.Errorf("reading site file: %w", err)
	}
	s, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Site{}, err
	}
	log.WithFields(logrus.Fields{"file": path, "buildings": len(s.Buildings)}).Info("site loaded")
	return s, nil
}

// Encode writes s as YAML.
func (s Site) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

// World builds the estate from buildings, which override the file's own
// list when non-nil.
func (s Site) World(buildings []service.BuildingConfig) (*scene.World, error) {
	if buildings == nil {
		buildings = s.Buildings
	}
	sites := make([]geometry.Site, 0, len(buildings))
	for _, b := range buildings {
		site, err := b.Site()
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return scene.NewWorld(sites, s.Layout)
}

// LoadEnv loads .env files into the environment. Missing files are not an
// error.
func LoadEnv(log logrus.FieldLogger, files ...string) {
	if err := godotenv.Load(files...); err != nil {
		logging.Or(log).Debug("no .env file found, using environment variables")
	}
}
