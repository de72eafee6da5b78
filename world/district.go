package world

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/precinct/components"
	"github.com/pthm-cable/precinct/config"
)

// District is one of the fixed jurisdictions of the city.
type District uint8

const (
	Centrum District = iota
	NieuwWest
	Noord
	Oost
	West
	Zuid
	Zuidoost
	Undefined

	// NumDistricts counts every district including Undefined.
	NumDistricts = int(Undefined) + 1
)

// ErrUnknownDistrict is returned for district names outside the fixed set.
var ErrUnknownDistrict = errors.New("unknown district")

var districtNames = [NumDistricts]string{
	Centrum:   "Centrum",
	NieuwWest: "Nieuw-West",
	Noord:     "Noord",
	Oost:      "Oost",
	West:      "West",
	Zuid:      "Zuid",
	Zuidoost:  "Zuidoost",
	Undefined: "Undefined",
}

// String returns the district's display name.
func (d District) String() string {
	if int(d) < NumDistricts {
		return districtNames[d]
	}
	return fmt.Sprintf("District(%d)", uint8(d))
}

// Defined reports whether d is a named district.
func (d District) Defined() bool {
	return d < Undefined
}

// ParseDistrict maps a display name back to its district.
func ParseDistrict(name string) (District, error) {
	for i, n := range districtNames {
		if n == name {
			return District(i), nil
		}
	}
	return Undefined, fmt.Errorf("%w: %q", ErrUnknownDistrict, name)
}

// Districts lists every district in enum order, Undefined last.
func Districts() []District {
	out := make([]District, NumDistricts)
	for i := range out {
		out[i] = District(i)
	}
	return out
}

// DistrictTable holds the static per-district parameters.
type DistrictTable struct {
	byCeiling    map[float64]District
	Surveillance [NumDistricts]int
	Centers      [NumDistricts]components.Position
	HasCenter    [NumDistricts]bool
}

// NewDistrictTable builds the table from the configured districts.
// Districts missing from the config never classify a cell.
func NewDistrictTable(districts map[string]config.DistrictConfig) (*DistrictTable, error) {
	t := &DistrictTable{byCeiling: make(map[float64]District, len(districts))}

	for name, dc := range districts {
		d, err := ParseDistrict(name)
		if err != nil {
			return nil, err
		}
		if d == Undefined {
			return nil, fmt.Errorf("%w: Undefined cannot be configured", ErrUnknownDistrict)
		}
		if other, dup := t.byCeiling[dc.Ceiling]; dup {
			return nil, fmt.Errorf("districts %s and %s share ceiling %v", other, d, dc.Ceiling)
		}
		t.byCeiling[dc.Ceiling] = d
		t.Surveillance[d] = dc.Surveillance
		if len(dc.Center) == 2 {
			t.Centers[d] = components.Position{X: dc.Center[0], Y: dc.Center[1]}
			t.HasCenter[d] = true
		}
	}

	return t, nil
}

// Classify maps a resource ceiling to its district.
func (t *DistrictTable) Classify(ceiling float64) District {
	if d, ok := t.byCeiling[ceiling]; ok {
		return d
	}
	return Undefined
}

// Ceiling returns the configured ceiling of d and whether d has one.
func (t *DistrictTable) Ceiling(d District) (float64, bool) {
	for c, dd := range t.byCeiling {
		if dd == d {
			return c, true
		}
	}
	return 0, false
}

// DistrictMap is the read-only classification of every cell.
type DistrictMap struct {
	width, height int
	cells         []District
	defined       int
}

// NewDistrictMap classifies every cell of the resource map once.
func NewDistrictMap(m *ResourceMap, t *DistrictTable) *DistrictMap {
	dm := &DistrictMap{
		width:  m.Width,
		height: m.Height,
		cells:  make([]District, m.Width*m.Height),
	}
	for x := 0; x < m.Width; x++ {
		for y := 0; y < m.Height; y++ {
			d := t.Classify(m.At(x, y))
			dm.cells[x*m.Height+y] = d
			if d.Defined() {
				dm.defined++
			}
		}
	}
	return dm
}

// At returns the district of a position; positions off the grid are Undefined.
func (dm *DistrictMap) At(p components.Position) District {
	if p.X < 0 || p.Y < 0 || p.X >= dm.width || p.Y >= dm.height {
		return Undefined
	}
	return dm.cells[p.X*dm.height+p.Y]
}

// Defined returns the number of cells in a named district.
func (dm *DistrictMap) Defined() int {
	return dm.defined
}

// Counts returns the number of cells per district.
func (dm *DistrictMap) Counts() [NumDistricts]int {
	var out [NumDistricts]int
	for _, d := range dm.cells {
		out[d]++
	}
	return out
}
