package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-estate/internal/api"
	"github.com/joeblew999/plat-estate/internal/db"
	"github.com/joeblew999/plat-estate/internal/estate"
	"github.com/joeblew999/plat-estate/internal/humastar"
	"github.com/joeblew999/plat-estate/internal/logging"
	"github.com/joeblew999/plat-estate/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	// FragmentsDir overrides the built-in HTML fragments.
	FragmentsDir string
	Estate       *estate.Estate
	Log          logrus.FieldLogger
}

// Server is the estate HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	estate   *estate.Estate
	renderer *templates.Renderer
	links    humastar.Links
	log      logrus.FieldLogger
}

// New creates a new estate server.
func New(cfg Config) (*Server, error) {
	log := logging.Or(cfg.Log)
	mux := http.NewServeMux()

	renderer, err := templates.New(cfg.FragmentsDir)
	if err != nil {
		return nil, fmt.Errorf("fragments: %w", err)
	}
	if cfg.FragmentsDir != "" {
		log.WithField("dir", cfg.FragmentsDir).Info("loaded fragment templates")
	}

	links := humastar.Links{}
	humaConfig := huma.DefaultConfig("plat-estate API", api.Version)
	humaConfig.Info.Description = "Residential estate browser: unit catalog, filters, picking and camera state for 3D and map surfaces."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, humastar.LinkTransformer(links))

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humago.New(mux, humaConfig),
		estate:   cfg.Estate,
		renderer: renderer,
		links:    links,
		log:      log,
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Close closes server resources.
func (s *Server) Close() error {
	return db.Close()
}

func (s *Server) routes() {
	derived := api.Register(s.humaAPI, api.Services{
		Estate:   s.estate,
		Renderer: s.renderer,
		DataDir:  s.config.DataDir,
		Log:      s.log,
	})
	// The transformer holds s.links, so fill it in place.
	for path, l := range derived {
		s.links[path] = l
	}

	s.mux.Handle("/tiles/", http.StripPrefix("/tiles/", s.handleFiles(s.estate.Tiles.TilesDir())))
	s.mux.Handle("/exports/", http.StripPrefix("/exports/", s.handleFiles(s.estate.Exports.ExportsDir())))
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links["/health"] {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-estate",
		"status":  "running",
	})
}

// handleFiles serves a data directory to map renderers on other origins.
// PMTiles clients read archives with range requests.
func (s *Server) handleFiles(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if _, err := os.Stat(filepath.Join(dir, filepath.Clean("/"+r.URL.Path))); err != nil {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
