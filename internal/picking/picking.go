// Package picking tracks which unit is hovered and which one was picked,
// from the pointer events of a rendering surface.
package picking

import (
	"github.com/golang/geo/r3"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/joeblew999/plat-estate/internal/filter"
)

// Lookup resolves unit IDs. *catalog.Catalog satisfies it.
type Lookup interface {
	Lookup(id string) (catalog.Unit, bool)
}

// HoverFunc is called when the hovered unit changes; nil means none.
type HoverFunc func(u *catalog.UnitSummary, anchor *r3.Vector)

// PickFunc is called when a visible unit is clicked.
type PickFunc func(u catalog.UnitSummary, anchor *r3.Vector)

// Callbacks are optional notifications.
type Callbacks struct {
	OnHover HoverFunc
	OnPick  PickFunc
}

// State is a snapshot of the service.
type State struct {
	HoveredID string     `json:"hoveredId,omitempty"`
	HoveredAt *r3.Vector `json:"hoveredAt,omitempty"`
	PickedID  string     `json:"pickedId,omitempty"`
	PickedAt  *r3.Vector `json:"pickedAt,omitempty"`
}

// Service is the idle / hovering state machine plus the persistent pick.
// It is not safe for concurrent use; a session owns one.
type Service struct {
	units Lookup
	spec  filter.Spec
	cb    Callbacks
	state State
}

// New returns an idle service over units.
func New(units Lookup, spec filter.Spec, cb Callbacks) *Service {
	return &Service{units: units, spec: spec.Clone(), cb: cb}
}

// State returns the current hover and pick.
func (s *Service) State() State {
	st := s.state
	st.HoveredAt = copyVec(st.HoveredAt)
	st.PickedAt = copyVec(st.PickedAt)
	return st
}

// Hovered returns the hovered unit, if any.
func (s *Service) Hovered() (catalog.Unit, bool) {
	return s.resolve(s.state.HoveredID)
}

// Picked returns the picked unit, if any.
func (s *Service) Picked() (catalog.Unit, bool) {
	return s.resolve(s.state.PickedID)
}

// Anchor returns where the tooltip should point: the hovered unit, else the
// picked one.
func (s *Service) Anchor() *r3.Vector {
	if s.state.HoveredID != "" {
		return copyVec(s.state.HoveredAt)
	}
	if s.state.PickedID != "" {
		return copyVec(s.state.PickedAt)
	}
	return nil
}

// eligible resolves id and checks it against the current filter.
func (s *Service) eligible(id string) (catalog.Unit, bool) {
	u, ok := s.resolve(id)
	if !ok || !filter.IsVisible(u, s.spec) {
		return catalog.Unit{}, false
	}
	return u, true
}

func (s *Service) resolve(id string) (catalog.Unit, bool) {
	if id == "" || s.units == nil {
		return catalog.Unit{}, false
	}
	return s.units.Lookup(id)
}

// PointerEnter hovers id when it exists and is visible. Entering a dimmed
// unit that is somehow still hovered clears the hover.
func (s *Service) PointerEnter(id string, anchor *r3.Vector) bool {
	u, ok := s.eligible(id)
	if !ok {
		if s.state.HoveredID == id && id != "" {
			s.clearHover()
		}
		return false
	}
	s.state.HoveredID = id
	s.state.HoveredAt = copyVec(anchor)
	if s.cb.OnHover != nil {
		sum := u.Summary()
		s.cb.OnHover(&sum, copyVec(anchor))
	}
	return true
}

// PointerLeave clears the hover when it is on id.
func (s *Service) PointerLeave(id string) bool {
	if id == "" || s.state.HoveredID != id {
		return false
	}
	s.clearHover()
	return true
}

// Click picks id when it exists and is visible.
func (s *Service) Click(id string, anchor *r3.Vector) bool {
	u, ok := s.eligible(id)
	if !ok {
		return false
	}
	s.state.PickedID = id
	s.state.PickedAt = copyVec(anchor)
	if s.cb.OnPick != nil {
		s.cb.OnPick(u.Summary(), copyVec(anchor))
	}
	return true
}

// Miss is a click on empty space: the hover goes, the pick stays.
func (s *Service) Miss() {
	if s.state.HoveredID != "" {
		s.clearHover()
	}
}

// ClearPick drops the picked unit.
func (s *Service) ClearPick() bool {
	if s.state.PickedID == "" {
		return false
	}
	s.state.PickedID = ""
	s.state.PickedAt = nil
	return true
}

// SetFilter installs spec and drops any hover or pick it dims.
func (s *Service) SetFilter(spec filter.Spec) {
	s.spec = spec.Clone()
	s.Revalidate()
}

// Revalidate drops a hover or pick that is no longer eligible, for example
// after a filter change or a catalog swap.
func (s *Service) Revalidate() {
	if id := s.state.HoveredID; id != "" {
		if _, ok := s.eligible(id); !ok {
			s.clearHover()
		}
	}
	if id := s.state.PickedID; id != "" {
		if _, ok := s.eligible(id); !ok {
			s.ClearPick()
		}
	}
}

// Replace swaps the unit lookup after a catalog regeneration.
func (s *Service) Replace(units Lookup) {
	s.units = units
	s.Revalidate()
}

func (s *Service) clearHover() {
	s.state.HoveredID = ""
	s.state.HoveredAt = nil
	if s.cb.OnHover != nil {
		s.cb.OnHover(nil, nil)
	}
}

func copyVec(v *r3.Vector) *r3.Vector {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
