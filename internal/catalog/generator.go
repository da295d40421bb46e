package catalog

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidParameters is returned when a building or parameter set cannot
// produce a catalog.
var ErrInvalidParameters = errors.New("invalid catalog parameters")

// Params holds the formula constants of the generator.
//
// The values are demo data, not business rules, so every one of them is
// configurable from the site file.
type Params struct {
	BaseArea       float64 `json:"baseArea" yaml:"baseArea"`
	ColumnAreaStep float64 `json:"columnAreaStep" yaml:"columnAreaStep"`
	FloorAreaStep  float64 `json:"floorAreaStep" yaml:"floorAreaStep"`
	AreaPrecision  int     `json:"areaPrecision" yaml:"areaPrecision"`

	// RoomBonusCycle is indexed by (column-1) mod len; rooms = 1 + bonus.
	RoomBonusCycle []int `json:"roomBonusCycle" yaml:"roomBonusCycle"`

	// Status is picked from r = (floor*column) mod StatusModulus:
	// r < SoldSlots is sold, r < SoldSlots+ReservedSlots is reserved,
	// anything else is available.
	StatusModulus int `json:"statusModulus" yaml:"statusModulus"`
	SoldSlots     int `json:"soldSlots" yaml:"soldSlots"`
	ReservedSlots int `json:"reservedSlots" yaml:"reservedSlots"`
}

// DefaultParams returns the constants used by the showcase estate.
func DefaultParams() Params {
	return Params{
		BaseArea:       36,
		ColumnAreaStep: 2.5,
		FloorAreaStep:  0.9,
		AreaPrecision:  1,
		RoomBonusCycle: []int{1, 0, 2, 0, 1, 2},
		StatusModulus:  6,
		SoldSlots:      1,
		ReservedSlots:  1,
	}
}

// Validate checks that p yields a strictly monotonic, well defined catalog.
func (p Params) Validate() error {
	switch {
	case p.ColumnAreaStep <= 0 || p.FloorAreaStep <= 0:
		return fmt.Errorf("%w: area steps must be positive", ErrInvalidParameters)
	case p.AreaPrecision < 0 || p.AreaPrecision > 6:
		return fmt.Errorf("%w: area precision %d out of range", ErrInvalidParameters, p.AreaPrecision)
	case len(p.RoomBonusCycle) == 0:
		return fmt.Errorf("%w: empty room bonus cycle", ErrInvalidParameters)
	case p.StatusModulus <= 0:
		return fmt.Errorf("%w: status modulus must be positive", ErrInvalidParameters)
	case p.SoldSlots < 0 || p.ReservedSlots < 0 || p.SoldSlots+p.ReservedSlots > p.StatusModulus:
		return fmt.Errorf("%w: status slots exceed modulus", ErrInvalidParameters)
	}
	for _, b := range p.RoomBonusCycle {
		if b < 0 {
			return fmt.Errorf("%w: negative room bonus", ErrInvalidParameters)
		}
	}
	// Rounding must not collapse two neighbouring areas into the same value.
	step := math.Pow(10, -float64(p.AreaPrecision))
	if p.ColumnAreaStep < step || p.FloorAreaStep < step {
		return fmt.Errorf("%w: area steps smaller than precision", ErrInvalidParameters)
	}
	return nil
}

// Area returns the area of the unit at (floor, column).
func (p Params) Area(floor, column int) float64 {
	a := p.BaseArea + float64(column)*p.ColumnAreaStep + float64(floor)*p.FloorAreaStep
	scale := math.Pow(10, float64(p.AreaPrecision))
	return math.Round(a*scale) / scale
}

// Rooms returns the room count of a unit in the given column.
func (p Params) Rooms(column int) int {
	return 1 + p.RoomBonusCycle[(column-1)%len(p.RoomBonusCycle)]
}

// Status returns the sales status of the unit at (floor, column).
func (p Params) Status(floor, column int) Status {
	r := (floor * column) % p.StatusModulus
	switch {
	case r < p.SoldSlots:
		return Sold
	case r < p.SoldSlots+p.ReservedSlots:
		return Reserved
	default:
		return Available
	}
}

// Generate produces every unit of b, ordered by floor then column ascending.
func Generate(b Building, p Params) ([]Unit, error) {
	if b.Floors <= 0 || b.UnitsPerFloor <= 0 {
		return nil, fmt.Errorf("%w: building %q has %d floors and %d units per floor",
			ErrInvalidParameters, b.Kind, b.Floors, b.UnitsPerFloor)
	}
	if b.Kind == "" {
		return nil, fmt.Errorf("%w: building kind is empty", ErrInvalidParameters)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	units := make([]Unit, 0, b.Floors*b.UnitsPerFloor)
	for f := 1; f <= b.Floors; f++ {
		for c := 1; c <= b.UnitsPerFloor; c++ {
			units = append(units, Unit{
				ID:       UnitID(b.Kind, f, c),
				Building: b.Kind,
				Floor:    f,
				Column:   c,
				Area:     p.Area(f, c),
				Rooms:    p.Rooms(c),
				Status:   p.Status(f, c),
			})
		}
	}
	return units, nil
}

// FloorsDescending returns a copy of units ordered top floor first, the
// order used by facade listings.
func FloorsDescending(units []Unit) []Unit {
	out := make([]Unit, len(units))
	copy(out, units)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Floor != out[j].Floor {
			return out[i].Floor > out[j].Floor
		}
		return out[i].Column < out[j].Column
	})
	return out
}
