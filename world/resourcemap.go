package world

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrMapShape is returned when a resource map does not match the grid.
var ErrMapShape = errors.New("resource map shape mismatch")

// ResourceMap is the static per-cell resource ceiling input.
// Row i of the text form holds the cells with x == i.
type ResourceMap struct {
	Width, Height int
	Values        []float64 // x-major: Values[x*Height+y]
}

// NewResourceMap creates a map filled with a single ceiling.
func NewResourceMap(width, height int, ceiling float64) *ResourceMap {
	m := &ResourceMap{Width: width, Height: height, Values: make([]float64, width*height)}
	for i := range m.Values {
		m.Values[i] = ceiling
	}
	return m
}

// At returns the ceiling at (x, y).
func (m *ResourceMap) At(x, y int) float64 {
	return m.Values[x*m.Height+y]
}

// Set stores the ceiling at (x, y).
func (m *ResourceMap) Set(x, y int, v float64) {
	m.Values[x*m.Height+y] = v
}

// ParseResourceMap reads a whitespace separated matrix.
// Blank lines and lines starting with '#' are skipped.
func ParseResourceMap(r io.Reader) (*ResourceMap, error) {
	var rows [][]float64

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: line %d column %d is %v", ErrMapShape, line, i+1, v)
			}
			row[i] = v
		}
		if len(rows) > 0 && len(row) != len(rows[0]) {
			return nil, fmt.Errorf("%w: line %d has %d values, expected %d", ErrMapShape, line, len(row), len(rows[0]))
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading resource map: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty map", ErrMapShape)
	}

	m := &ResourceMap{Width: len(rows), Height: len(rows[0]), Values: make([]float64, 0, len(rows)*len(rows[0]))}
	for _, row := range rows {
		m.Values = append(m.Values, row...)
	}
	return m, nil
}

// LoadResourceMap reads a map file and checks it against the grid size.
func LoadResourceMap(path string, width, height int) (*ResourceMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open resource map: %w", err)
	}
	defer f.Close()

	m, err := ParseResourceMap(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if m.Width != width || m.Height != height {
		return nil, fmt.Errorf("%w: %s is %dx%d, grid is %dx%d", ErrMapShape, path, m.Width, m.Height, width, height)
	}
	return m, nil
}

// WriteTo writes the map in the text form accepted by ParseResourceMap.
func (m *ResourceMap) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for x := 0; x < m.Width; x++ {
		for y := 0; y < m.Height; y++ {
			sep := " "
			if y == m.Height-1 {
				sep = "\n"
			}
			k, err := bw.WriteString(strconv.FormatFloat(m.At(x, y), 'f', 1, 64) + sep)
			n += int64(k)
			if err != nil {
				return n, err
			}
		}
	}
	return n, bw.Flush()
}
