// Package world holds the spatial layer: the cell grid, resource cells and districts.
package world

import (
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/precinct/components"
)

// ResourceCell is the renewable resource stored in every grid cell.
type ResourceCell struct {
	Amount    int
	MaxAmount int
}

// Step applies constant growback.
func (r *ResourceCell) Step() {
	r.Amount = r.MaxAmount
}

// Deplete empties the cell and returns what was taken.
func (r *ResourceCell) Deplete() int {
	taken := r.Amount
	r.Amount = 0
	return taken
}

// Occupant is a handle to a mobile agent standing in a cell.
type Occupant struct {
	E    ecs.Entity
	Kind components.Kind
}

type cell struct {
	resource  ResourceCell
	occupants []Occupant
}

// Grid is a bounded (non-toroidal) grid of cells.
// Every cell holds exactly one resource cell and any number of occupants.
type Grid struct {
	Width, Height int
	cells         []cell
}

// NewGrid creates a grid whose resource ceilings come from the map.
// Ceilings are rounded to whole units.
func NewGrid(m *ResourceMap) *Grid {
	g := &Grid{
		Width:  m.Width,
		Height: m.Height,
		cells:  make([]cell, m.Width*m.Height),
	}
	for x := 0; x < m.Width; x++ {
		for y := 0; y < m.Height; y++ {
			ceiling := int(math.Round(m.At(x, y)))
			if ceiling < 0 {
				ceiling = 0
			}
			g.cells[x*m.Height+y].resource = ResourceCell{Amount: ceiling, MaxAmount: ceiling}
		}
	}
	return g
}

// InBounds reports whether p lies on the grid.
func (g *Grid) InBounds(p components.Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.Width && p.Y < g.Height
}

// Clamp moves p onto the nearest cell of the grid.
func (g *Grid) Clamp(p components.Position) components.Position {
	p.X = clampInt(p.X, 0, g.Width-1)
	p.Y = clampInt(p.Y, 0, g.Height-1)
	return p
}

func (g *Grid) index(p components.Position) int {
	if !g.InBounds(p) {
		panic(fmt.Sprintf("world: cell (%d,%d) outside %dx%d grid", p.X, p.Y, g.Width, g.Height))
	}
	return p.X*g.Height + p.Y
}

// Resource returns the resource cell at p.
func (g *Grid) Resource(p components.Position) *ResourceCell {
	return &g.cells[g.index(p)].resource
}

// Occupants returns the agents standing at p. The slice is owned by the grid.
func (g *Grid) Occupants(p components.Position) []Occupant {
	return g.cells[g.index(p)].occupants
}

// HasKind reports whether an agent of kind k other than exclude stands at p.
func (g *Grid) HasKind(p components.Position, k components.Kind, exclude ecs.Entity) bool {
	for _, o := range g.Occupants(p) {
		if o.Kind == k && o.E != exclude {
			return true
		}
	}
	return false
}

// Place inserts an occupant at p (clamped) and returns the cell it landed on.
func (g *Grid) Place(o Occupant, p components.Position) components.Position {
	p = g.Clamp(p)
	c := &g.cells[g.index(p)]
	c.occupants = append(c.occupants, o)
	return p
}

// Remove deletes an occupant from the cell at p, keeping the order of the others.
func (g *Grid) Remove(o Occupant, p components.Position) {
	c := &g.cells[g.index(p)]
	for i, other := range c.occupants {
		if other.E == o.E {
			c.occupants = append(c.occupants[:i], c.occupants[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("world: occupant %v missing from cell (%d,%d)", o.E, p.X, p.Y))
}

// Move relocates an occupant from one cell to another. The destination is
// clamped to the grid; the resulting position is returned.
func (g *Grid) Move(o Occupant, from, to components.Position) components.Position {
	to = g.Clamp(to)
	if to == from {
		return to
	}
	g.Remove(o, from)
	return g.Place(o, to)
}

// Neighborhood returns the Moore neighborhood of p: every cell within
// Chebyshev distance radius, intersected with the grid bounds.
func (g *Grid) Neighborhood(p components.Position, radius int, includeCenter bool) []components.Position {
	return g.NeighborhoodInto(nil, p, radius, includeCenter)
}

// NeighborhoodInto appends the Moore neighborhood of p to dst.
// Order is x-major, then y, both ascending.
func (g *Grid) NeighborhoodInto(dst []components.Position, p components.Position, radius int, includeCenter bool) []components.Position {
	x0 := clampInt(p.X-radius, 0, g.Width-1)
	x1 := clampInt(p.X+radius, 0, g.Width-1)
	y0 := clampInt(p.Y-radius, 0, g.Height-1)
	y1 := clampInt(p.Y+radius, 0, g.Height-1)

	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			if !includeCenter && x == p.X && y == p.Y {
				continue
			}
			dst = append(dst, components.Position{X: x, Y: y})
		}
	}
	return dst
}

// Regrow steps every resource cell.
func (g *Grid) Regrow() {
	for i := range g.cells {
		g.cells[i].resource.Step()
	}
}

// ForEachResource visits every cell in x-major order.
func (g *Grid) ForEachResource(fn func(p components.Position, r *ResourceCell)) {
	for x := 0; x < g.Width; x++ {
		for y := 0; y < g.Height; y++ {
			fn(components.Position{X: x, Y: y}, &g.cells[x*g.Height+y].resource)
		}
	}
}

// CountKind returns how many occupants of kind k stand on the grid.
func (g *Grid) CountKind(k components.Kind) int {
	n := 0
	for i := range g.cells {
		for _, o := range g.cells[i].occupants {
			if o.Kind == k {
				n++
			}
		}
	}
	return n
}

// Distance returns the euclidean distance between two cells.
func Distance(a, b components.Position) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// StepToward moves one cell per axis from p toward target.
func StepToward(p, target components.Position) components.Position {
	return components.Position{X: p.X + sign(target.X-p.X), Y: p.Y + sign(target.Y-p.Y)}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
