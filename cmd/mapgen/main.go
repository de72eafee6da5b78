// Resource map generator: writes a synthetic district map in the text form
// read by the simulation's --map flag.
//
// Usage: go run ./cmd/mapgen -out map.txt -seed 7
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/pthm-cable/precinct/components"
	"github.com/pthm-cable/precinct/config"
	"github.com/pthm-cable/precinct/world"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	out := flag.String("out", "", "Output file (empty = stdout)")
	seed := flag.Int64("seed", 1, "Noise seed")
	preview := flag.Bool("preview", false, "Print an ASCII district preview to stderr")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := run(*configPath, *out, *seed, *preview); err != nil {
		slog.Error("mapgen failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, out string, seed int64, preview bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	table, err := world.NewDistrictTable(cfg.Districts)
	if err != nil {
		return fmt.Errorf("district table: %w", err)
	}

	m := world.GenerateResourceMap(cfg.Grid.Width, cfg.Grid.Height, table, cfg.MapGen, seed)
	dm := world.NewDistrictMap(m, table)

	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if _, err := m.WriteTo(w); err != nil {
		return fmt.Errorf("write map: %w", err)
	}

	if preview {
		fmt.Fprint(os.Stderr, render(m, dm))
	}

	counts := dm.Counts()
	attrs := []any{"width", m.Width, "height", m.Height, "seed", seed, "defined", dm.Defined()}
	for _, d := range world.Districts() {
		attrs = append(attrs, d.String(), counts[d])
	}
	slog.Info("map generated", attrs...)
	return nil
}

// render draws one letter per cell, rows are x. Undefined cells are dots.
func render(m *world.ResourceMap, dm *world.DistrictMap) string {
	letters := legend()
	var b strings.Builder
	for x := 0; x < m.Width; x++ {
		for y := 0; y < m.Height; y++ {
			b.WriteByte(letters[dm.At(components.Position{X: x, Y: y})])
		}
		b.WriteByte('\n')
	}
	b.WriteString("legend:")
	names := make([]string, 0, len(letters))
	for _, d := range world.Districts() {
		if d.Defined() {
			names = append(names, fmt.Sprintf(" %c=%s", letters[d], d))
		}
	}
	sort.Strings(names)
	b.WriteString(strings.Join(names, ""))
	b.WriteByte('\n')
	return b.String()
}

func legend() map[world.District]byte {
	out := make(map[world.District]byte)
	next := byte('A')
	for _, d := range world.Districts() {
		if !d.Defined() {
			out[d] = '.'
			continue
		}
		out[d] = next
		next++
	}
	return out
}
