package filter

import (
	"testing"

	"github.com/joeblew999/plat-estate/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func units(t *testing.T) []catalog.Unit {
	t.Helper()
	c, err := catalog.New([]catalog.Building{
		{Kind: catalog.KindA, Floors: 6, UnitsPerFloor: 4},
		{Kind: catalog.KindB, Floors: 5, UnitsPerFloor: 3},
	}, catalog.DefaultParams())
	require.NoError(t, err)
	return c.Units()
}

func ids(us []catalog.Unit) []string {
	out := make([]string, 0, len(us))
	for _, u := range us {
		out = append(out, u.ID)
	}
	return out
}

func TestDefaultShowsEverything(t *testing.T) {
	all := units(t)
	assert.Len(t, Visible(all, Default()), len(all))
	assert.Empty(t, Dimmed(all, Default()))
}

func TestOnlyAvailableAndRoomsIntersect(t *testing.T) {
	all := units(t)
	s := Default()
	s.ActiveBuilding = catalog.KindA

	s = s.Apply(Patch{OnlyAvailable: boolPtr(true)})
	s = s.Apply(Patch{Rooms: Int(2)})

	assert.Equal(t, []string{"A-2-1", "A-3-1", "A-4-1", "A-5-1"}, ids(Visible(all, s)))
}

func TestSubPredicates(t *testing.T) {
	u := catalog.Unit{ID: "B-2-3", Building: catalog.KindB, Floor: 2, Column: 3, Rooms: 3, Status: catalog.Sold}

	assert.True(t, MatchesActiveBuilding(u, Spec{ActiveBuilding: AllBuildings}))
	assert.True(t, MatchesActiveBuilding(u, Spec{ActiveBuilding: catalog.KindB}))
	assert.False(t, MatchesActiveBuilding(u, Spec{ActiveBuilding: catalog.KindA}))

	assert.True(t, MatchesRooms(u, Spec{}))
	assert.True(t, MatchesRooms(u, Spec{Rooms: Int(3)}))
	assert.False(t, MatchesRooms(u, Spec{Rooms: Int(1)}))

	assert.True(t, MatchesAvailability(u, Spec{}))
	assert.False(t, MatchesAvailability(u, Spec{OnlyAvailable: true}))

	assert.True(t, MatchesFloor(u, Spec{}))
	assert.True(t, MatchesFloor(u, Spec{HoverFloor: Int(2)}))
	assert.False(t, MatchesFloor(u, Spec{HoverFloor: Int(5)}))
}

func TestRelaxingAClauseNeverShrinksTheVisibleSet(t *testing.T) {
	all := units(t)
	strict := Spec{
		ActiveBuilding: catalog.KindA,
		Rooms:          Int(2),
		OnlyAvailable:  true,
		HoverFloor:     Int(3),
	}
	relaxations := map[string]Patch{
		"building": {ActiveBuilding: kindPtr(AllBuildings)},
		"rooms":    {ClearRooms: true},
		"status":   {OnlyAvailable: boolPtr(false)},
		"floor":    {ClearHoverFloor: true},
	}
	base := len(Visible(all, strict))
	for name, p := range relaxations {
		t.Run(name, func(t *testing.T) {
			relaxed := strict.Apply(p)
			assert.GreaterOrEqual(t, len(Visible(all, relaxed)), base)
			for _, u := range Visible(all, strict) {
				assert.True(t, IsVisible(u, relaxed), "%s lost after relaxing", u.ID)
			}
		})
	}
}

func TestEmptyResultIsValid(t *testing.T) {
	s := Spec{ActiveBuilding: catalog.KindA, HoverFloor: Int(99)}
	v := Visible(units(t), s)
	assert.NotNil(t, v)
	assert.Empty(t, v)
}

func TestApplyDoesNotAliasPatch(t *testing.T) {
	rooms := 2
	s := Default().Apply(Patch{Rooms: &rooms})
	rooms = 4
	require.NotNil(t, s.Rooms)
	assert.Equal(t, 2, *s.Rooms)

	c := s.Clone()
	*c.Rooms = 3
	assert.Equal(t, 2, *s.Rooms)
}

func boolPtr(v bool) *bool { return &v }

func kindPtr(k catalog.Kind) *catalog.Kind { return &k }
