package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/config"
	"github.com/joeblew999/plat-estate/internal/db"
	"github.com/joeblew999/plat-estate/internal/estate"
	"github.com/joeblew999/plat-estate/internal/logging"
	"github.com/joeblew999/plat-estate/internal/scene"
	"github.com/joeblew999/plat-estate/internal/tiler/gotiler"
)

func newServer(t *testing.T) (*httptest.Server, *estate.Estate) {
	t.Helper()
	conn, err := db.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	dir := t.TempDir()
	e, err := estate.New(context.Background(), estate.Config{
		DataDir: dir,
		Site:    config.Default(),
		DB:      conn,
		Tiler:   gotiler.New(),
		Log:     logging.Discard(),
	})
	require.NoError(t, err)

	s, err := New(Config{Host: "localhost", Port: "0", DataDir: dir, Estate: e, Log: logging.Discard()})
	require.NoError(t, err)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return ts, e
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// readUntil scans SSE lines until one contains every needle.
func readUntil(t *testing.T, r *bufio.Reader, needles ...string) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err, "stream ended before %v", needles)
		found := true
		for _, n := range needles {
			if !strings.Contains(line, n) {
				found = false
				break
			}
		}
		if found {
			return line
		}
	}
}

func TestRoot(t *testing.T) {
	ts, _ := newServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Values("Link"), `</api/v1/sessions>; rel="sessions"`)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "running", body["status"])

	resp, err = http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOpenAPI(t *testing.T) {
	ts, _ := newServer(t)

	resp, err := http.Get(ts.URL + "/openapi.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Contains(t, doc.Paths, "/api/v1/sessions/{id}/events")
	assert.Contains(t, doc.Paths, "/api/v1/buildings/{kind}/units")
}

func TestTileFiles(t *testing.T) {
	ts, e := newServer(t)
	require.NoError(t, os.MkdirAll(e.Tiles.TilesDir(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(e.Tiles.TilesDir(), "units.pmtiles"), []byte("PMTiles"), 0644))

	resp, err := http.Get(ts.URL + "/tiles/units.pmtiles")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "PMTiles", string(body))

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/tiles/units.pmtiles", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Range")

	resp, err = http.Get(ts.URL + "/tiles/missing.pmtiles")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportFiles(t *testing.T) {
	ts, _ := newServer(t)

	resp := post(t, ts.URL+"/api/v1/exports", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Get(ts.URL + "/exports/b.geojson")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), "B-1-1")
}

func TestSessionEvents(t *testing.T) {
	ts, _ := newServer(t)

	resp := post(t, ts.URL+"/api/v1/sessions", map[string]any{"surface": "scene"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var view struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	base := ts.URL + "/api/v1/sessions/" + view.SessionID

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, base+"/events", nil)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, http.StatusOK, stream.StatusCode)
	assert.Contains(t, stream.Header.Get("Content-Type"), "text/event-stream")

	r := bufio.NewReader(stream.Body)
	readUntil(t, r, "event: datastar-patch-elements")
	readUntil(t, r, "data: elements", `data-hotspot="a-1"`)
	readUntil(t, r, "event: datastar-patch-signals")
	readUntil(t, r, "data: signals", `"visible":48`)

	resp = post(t, base+"/pointer", map[string]any{"type": "click", "unitId": "B-1-2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	readUntil(t, r, `id="unit-card"`, "status-available")
	readUntil(t, r, "Unit B-1-2")

	req, _ = http.NewRequest(http.MethodDelete, base, nil)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	require.Equal(t, http.StatusNoContent, del.StatusCode)

	readUntil(t, r, "session-closed")
	_, err = io.ReadAll(r)
	assert.NoError(t, err)
}

func TestSessionSignals(t *testing.T) {
	ts, e := newServer(t)
	s, err := e.Registry.Open(scene.Options{Surface: scene.SurfaceScene})
	require.NoError(t, err)

	resp := post(t, ts.URL+"/api/v1/sessions/"+s.ID()+"/signals", map[string]any{
		"building":      "B",
		"onlyavailable": true,
		"hoverfloor":    3,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), "datastar-patch-signals")

	f := s.Filter()
	assert.Equal(t, catalog.KindB, f.ActiveBuilding)
	assert.True(t, f.OnlyAvailable)
	require.NotNil(t, f.HoverFloor)
	assert.Equal(t, 3, *f.HoverFloor)

	resp = post(t, ts.URL+"/api/v1/sessions/"+s.ID()+"/signals", map[string]any{"hoverfloor": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Nil(t, s.Filter().HoverFloor)
	assert.True(t, s.Filter().OnlyAvailable)
}

func TestSessionEventsUnknown(t *testing.T) {
	ts, _ := newServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/sessions/missing/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGenerateTilesStream(t *testing.T) {
	ts, e := newServer(t)

	resp := post(t, ts.URL+"/api/v1/tiles/generate", map[string]any{
		"outputname": "stream",
		"minzoom":    14,
		"maxzoom":    15,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Tiles generated: stream.pmtiles")
	assert.Contains(t, string(b), `id="tile-stream.pmtiles"`)

	tiles, err := e.Tiles.List()
	require.NoError(t, err)
	require.Len(t, tiles, 1)
	assert.Equal(t, "stream.pmtiles", tiles[0].Name)

	resp = post(t, ts.URL+"/api/v1/tiles/generate", map[string]any{"minzoom": 14})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
