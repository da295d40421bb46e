package catalog

import "fmt"

// Catalog is an immutable, indexed snapshot of the units of one or more
// buildings.
type Catalog struct {
	buildings []Building
	units     []Unit
	byID      map[string]int
}

// New generates the catalog of every building with the same params.
func New(buildings []Building, p Params) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int)}
	for _, b := range buildings {
		units, err := Generate(b, p)
		if err != nil {
			return nil, err
		}
		for _, u := range units {
			if _, dup := c.byID[u.ID]; dup {
				return nil, fmt.Errorf("%w: duplicate unit id %s", ErrInvalidParameters, u.ID)
			}
			c.byID[u.ID] = len(c.units)
			c.units = append(c.units, u)
		}
		c.buildings = append(c.buildings, b)
	}
	return c, nil
}

// Units returns a copy of all units in generation order.
func (c *Catalog) Units() []Unit {
	out := make([]Unit, len(c.units))
	copy(out, c.units)
	return out
}

// Building returns the units of building k.
func (c *Catalog) Building(k Kind) []Unit {
	var out []Unit
	for _, u := range c.units {
		if u.Building == k {
			out = append(out, u)
		}
	}
	return out
}

// Buildings returns the building parameters the catalog was generated from.
func (c *Catalog) Buildings() []Building {
	out := make([]Building, len(c.buildings))
	copy(out, c.buildings)
	return out
}

// Lookup returns the unit with the given ID.
func (c *Catalog) Lookup(id string) (Unit, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Unit{}, false
	}
	return c.units[i], true
}

// Len returns the number of units.
func (c *Catalog) Len() int {
	return len(c.units)
}
