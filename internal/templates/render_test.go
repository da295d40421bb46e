package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTooltip(t *testing.T) {
	r := Must()
	html, err := r.Render("tooltip", map[string]any{"ID": "A-1-1", "Text": "Unit A-1-1 <b>"})
	require.NoError(t, err)
	assert.Contains(t, html, `id="tooltip"`)
	assert.Contains(t, html, `data-unit="A-1-1"`)
	assert.Contains(t, html, "Unit A-1-1 &lt;b&gt;")
}

func TestRenderUnitCard(t *testing.T) {
	html, err := Must().Render("unit-card", map[string]any{
		"ID": "B-2-3", "Floor": 2, "Area": 45.3, "Rooms": 3, "Status": "sold",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "status-sold")
	assert.Contains(t, html, "45.3 m²")
}

func TestRenderHotspot(t *testing.T) {
	html, err := Must().Render("hotspot", map[string]any{
		"ID": "a-1", "Label": "Building A", "Hint": "Hover over a unit", "X": 32, "Y": 65,
	})
	require.NoError(t, err)
	assert.Contains(t, html, `data-hotspot="a-1"`)
	assert.Contains(t, html, ">Building A</button>")
}

func TestRenderTileCard(t *testing.T) {
	html, err := Must().Render("tile-card", map[string]any{"Name": "units.pmtiles", "Size": "5.4 KB"})
	require.NoError(t, err)
	assert.Contains(t, html, `href="/tiles/units.pmtiles"`)
	assert.NotContains(t, html, "z0")

	html, err = Must().Render("tile-card", map[string]any{"Name": "units.pmtiles", "Size": "5.4 KB", "MinZoom": 14, "MaxZoom": 18})
	require.NoError(t, err)
	assert.Contains(t, html, "z14-18")
}

func TestRenderUnknown(t *testing.T) {
	_, err := Must().Render("nope", nil)
	assert.Error(t, err)
}

func TestReloadFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.html"), []byte(`{{define "tooltip"}}custom {{.}}{{end}}`), 0644))

	r := Must()
	require.NoError(t, r.Reload(dir))
	html, err := r.Render("tooltip", "hi")
	require.NoError(t, err)
	assert.Equal(t, "custom hi", html)

	assert.Error(t, r.Reload(filepath.Join(dir, "missing")))
}
