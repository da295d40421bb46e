package scene

import (
	"fmt"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/filter"
)

// Hotspot is a fixed floor shortcut drawn over the 3D scene. Clicking one
// highlights its floor.
type Hotspot struct {
	ID       string       `json:"id" yaml:"id"`
	Building catalog.Kind `json:"building" yaml:"building"`
	Floor    int          `json:"floor" yaml:"floor"`
	Label    string       `json:"label" yaml:"label"`
	Hint     string       `json:"hint,omitempty" yaml:"hint,omitempty"`
	// X and Y place the marker in percent of the viewport.
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// DefaultHotspots returns the showcase shortcuts.
func DefaultHotspots() []Hotspot {
	return []Hotspot{
		{ID: "a-1", Building: catalog.KindA, Floor: 1, Label: "Building A", Hint: "Hover over a unit", X: 32, Y: 65},
		{ID: "a-2", Building: catalog.KindA, Floor: 2, Label: "Floor 2", Hint: "2-3 room units", X: 35, Y: 55},
		{ID: "a-3", Building: catalog.KindA, Floor: 4, Label: "Floor 4", Hint: "Park view", X: 38, Y: 45},
		{ID: "b-1", Building: catalog.KindB, Floor: 1, Label: "Building B", Hint: "Pick a unit", X: 68, Y: 65},
		{ID: "b-2", Building: catalog.KindB, Floor: 3, Label: "Floor 3", Hint: "Panoramic windows", X: 65, Y: 55},
	}
}

// HotspotsFor returns the hotspots shown while active is selected.
func HotspotsFor(hs []Hotspot, active catalog.Kind) []Hotspot {
	out := make([]Hotspot, 0, len(hs))
	for _, h := range hs {
		if active == filter.AllBuildings || active == "" || active == h.Building {
			out = append(out, h)
		}
	}
	return out
}

func findHotspot(hs []Hotspot, id string) (Hotspot, error) {
	for _, h := range hs {
		if h.ID == id {
			return h, nil
		}
	}
	return Hotspot{}, fmt.Errorf("hotspot %q not found", id)
}

// Tooltip returns the one-line description shown next to a hovered unit.
func Tooltip(u catalog.UnitSummary) string {
	return fmt.Sprintf("Unit %s • floor %d • %s • %g m² • %dr", u.ID, u.Floor, u.Status, u.Area, u.Rooms)
}
