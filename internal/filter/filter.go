// Package filter decides which units are visible (not dimmed) under the
// current UI filter.
package filter

import (
	"github.com/joeblew999/plat-estate/internal/catalog"
)

// AllBuildings selects every building.
const AllBuildings catalog.Kind = "all"

// Spec is the filter owned by the interaction layer. It is passed by value
// into every evaluation.
type Spec struct {
	ActiveBuilding catalog.Kind `json:"activeBuilding"`
	Rooms          *int         `json:"rooms,omitempty"`
	OnlyAvailable  bool         `json:"onlyAvailable"`
	HoverFloor     *int         `json:"hoverFloor,omitempty"`
}

// Default returns the initial filter of a browsing session.
func Default() Spec {
	return Spec{ActiveBuilding: AllBuildings}
}

// Patch is a partial update of a Spec. Nil fields are left untouched;
// ClearRooms and ClearHoverFloor reset the nullable clauses.
type Patch struct {
	ActiveBuilding  *catalog.Kind `json:"activeBuilding,omitempty"`
	Rooms           *int          `json:"rooms,omitempty"`
	ClearRooms      bool          `json:"clearRooms,omitempty"`
	OnlyAvailable   *bool         `json:"onlyAvailable,omitempty"`
	HoverFloor      *int          `json:"hoverFloor,omitempty"`
	ClearHoverFloor bool          `json:"clearHoverFloor,omitempty"`
}

// Apply merges p into s and returns the result.
func (s Spec) Apply(p Patch) Spec {
	if p.ActiveBuilding != nil {
		s.ActiveBuilding = *p.ActiveBuilding
	}
	if p.ClearRooms {
		s.Rooms = nil
	} else if p.Rooms != nil {
		s.Rooms = intPtr(*p.Rooms)
	}
	if p.OnlyAvailable != nil {
		s.OnlyAvailable = *p.OnlyAvailable
	}
	if p.ClearHoverFloor {
		s.HoverFloor = nil
	} else if p.HoverFloor != nil {
		s.HoverFloor = intPtr(*p.HoverFloor)
	}
	return s
}

// Clone returns a copy of s that shares no pointers with it.
func (s Spec) Clone() Spec {
	if s.Rooms != nil {
		s.Rooms = intPtr(*s.Rooms)
	}
	if s.HoverFloor != nil {
		s.HoverFloor = intPtr(*s.HoverFloor)
	}
	return s
}

// MatchesActiveBuilding is true for "all" or when the unit's building is
// the active one. An empty selection behaves like "all".
func MatchesActiveBuilding(u catalog.Unit, s Spec) bool {
	return s.ActiveBuilding == "" || s.ActiveBuilding == AllBuildings || s.ActiveBuilding == u.Building
}

// MatchesRooms is true when no room count is selected or it equals the unit's.
func MatchesRooms(u catalog.Unit, s Spec) bool {
	return s.Rooms == nil || *s.Rooms == u.Rooms
}

// MatchesAvailability is true unless only available units are requested and
// the unit is reserved or sold.
func MatchesAvailability(u catalog.Unit, s Spec) bool {
	return !s.OnlyAvailable || u.Status == catalog.Available
}

// MatchesFloor is true when no floor is highlighted or it is the unit's floor.
func MatchesFloor(u catalog.Unit, s Spec) bool {
	return s.HoverFloor == nil || *s.HoverFloor == u.Floor
}

// IsVisible reports whether every clause of s matches u.
func IsVisible(u catalog.Unit, s Spec) bool {
	return MatchesActiveBuilding(u, s) &&
		MatchesRooms(u, s) &&
		MatchesAvailability(u, s) &&
		MatchesFloor(u, s)
}

// Visible returns the units that pass s, preserving order. An empty result
// is a valid state.
func Visible(units []catalog.Unit, s Spec) []catalog.Unit {
	out := make([]catalog.Unit, 0, len(units))
	for _, u := range units {
		if IsVisible(u, s) {
			out = append(out, u)
		}
	}
	return out
}

// Dimmed returns the set of unit IDs that fail s.
func Dimmed(units []catalog.Unit, s Spec) map[string]bool {
	out := make(map[string]bool)
	for _, u := range units {
		if !IsVisible(u, s) {
			out[u.ID] = true
		}
	}
	return out
}

// Int returns a pointer to v, for building specs in literals.
func Int(v int) *int {
	return intPtr(v)
}

func intPtr(v int) *int {
	return &v
}
