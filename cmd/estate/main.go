package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/config"
	"github.com/joeblew999/plat-estate/internal/db"
	"github.com/joeblew999/plat-estate/internal/estate"
	"github.com/joeblew999/plat-estate/internal/logging"
	"github.com/joeblew999/plat-estate/internal/server"
	"github.com/joeblew999/plat-estate/internal/service"
	"github.com/joeblew999/plat-estate/internal/tiler/gotiler"
)

// Options defines all CLI flags and env vars for the estate server.
// Flags: --host, --port, --data-dir, --site, --fragments, --strict-uv
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_SITE, ...
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir   string `doc:"Directory for buildings, exports, tiles and the DuckDB file" default:".data"`
	Site      string `doc:"Site YAML file; the showcase estate when empty"`
	Fragments string `doc:"Directory overriding the built-in HTML fragments"`
	StrictUV  bool   `doc:"Reject unit polygons whose UVs leave the footprint"`
}

// open loads the site and builds the estate. withDB opens the DuckDB
// snapshot; one-shot subcommands skip it.
func open(ctx context.Context, opts *Options, withDB bool) (*estate.Estate, error) {
	log := logging.Logger
	site, err := config.Load(opts.Site, log)
	if err != nil {
		return nil, err
	}
	if opts.StrictUV {
		site.Layout.Geographic.Strict = true
	}

	cfg := estate.Config{
		DataDir: opts.DataDir,
		Site:    site,
		Tiler:   gotiler.New(),
		Log:     log,
	}
	if withDB {
		conn, err := db.Get(db.Config{DataDir: opts.DataDir, DBName: "estate", Log: log})
		if err != nil {
			log.WithError(err).Warn("duckdb unavailable, SQL endpoints disabled")
		} else {
			cfg.DB = conn
		}
	}
	return estate.New(ctx, cfg)
}

func newServer(opts *Options, withDB bool) (*server.Server, error) {
	e, err := open(context.Background(), opts, withDB)
	if err != nil {
		return nil, err
	}
	return server.New(server.Config{
		Host:         opts.Host,
		Port:         fmt.Sprintf("%d", opts.Port),
		DataDir:      opts.DataDir,
		FragmentsDir: opts.Fragments,
		Estate:       e,
		Log:          logging.Logger,
	})
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printOut(v any, useYAML bool) {
	var output []byte
	var err error
	if useYAML {
		output, err = yaml.Marshal(v)
	} else {
		output, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		fail("Error marshaling output: %v", err)
	}
	fmt.Println(string(output))
}

func main() {
	config.LoadEnv(nil)
	logging.Init("estate")

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var srv *server.Server

		hooks.OnStart(func() {
			var err error
			srv, err = newServer(opts, true)
			if err != nil {
				logging.Logger.WithError(err).Fatal("Failed to start")
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-estate API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Units:   %s/api/v1/buildings/all/units\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				logging.Logger.WithError(err).Fatal("Server error")
			}
		})
		hooks.OnStop(func() {
			if srv != nil {
				srv.Close()
			}
		})
	})

	cli.Root().Use = "estate"
	cli.Root().Short = "Residential estate browser: unit catalog, filters and picking"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts, false)
			if err != nil {
				fail("Error: %v", err)
			}
			useYAML, _ := cmd.Flags().GetBool("yaml")
			printOut(srv.OpenAPI(), useYAML)
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// catalog subcommand: print the generated units
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the unit catalog of the site",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			e, err := open(cmd.Context(), opts, false)
			if err != nil {
				fail("Error: %v", err)
			}
			w := e.World()
			building, _ := cmd.Flags().GetString("building")
			k := catalog.Kind(strings.ToLower(building))
			if err := w.CheckBuilding(k); err != nil {
				fail("Error: %v", err)
			}
			units := w.Catalog.Units()
			if k != "all" {
				units = w.Catalog.Building(k)
			}
			useYAML, _ := cmd.Flags().GetBool("yaml")
			printOut(units, useYAML)
		}),
	}
	catalogCmd.Flags().StringP("building", "b", "all", "Building kind, or all")
	catalogCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(catalogCmd)

	// tiles subcommand: write GeoJSON exports and one PMTiles archive
	tilesCmd := &cobra.Command{
		Use:   "tiles",
		Short: "Export GeoJSON per building and tile the estate to PMTiles",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			e, err := open(cmd.Context(), opts, false)
			if err != nil {
				fail("Error: %v", err)
			}
			files, err := e.Export()
			if err != nil {
				fail("Error exporting GeoJSON: %v", err)
			}
			for _, f := range files {
				fmt.Printf("  %s (%s)\n", f.Name, f.Size)
			}

			name, _ := cmd.Flags().GetString("output")
			f, stats, err := e.GenerateTiles(cmd.Context(), service.TileGenerateOptions{OutputName: name},
				func(percent int, status string) {
					logging.Logger.WithField("progress", percent).Debug(status)
				})
			if err != nil {
				fail("Error generating tiles: %v", err)
			}
			fmt.Printf("  %s (%s, %d tiles, %d features)\n", f.Name, f.Size, stats.Tiles, stats.Features)
		}),
	}
	tilesCmd.Flags().StringP("output", "o", "estate", "PMTiles archive name")
	cli.Root().AddCommand(tilesCmd)

	cli.Run()
}
