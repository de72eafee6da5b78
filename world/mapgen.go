package world

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/precinct/components"
	"github.com/pthm-cable/precinct/config"
)

// GenerateResourceMap builds a synthetic city map when no map file is given.
// Each cell joins the district whose center is nearest after a noise offset,
// so borders are irregular; cells far from the grid center stay undefined.
func GenerateResourceMap(width, height int, t *DistrictTable, cfg config.MapGenConfig, seed int64) *ResourceMap {
	m := NewResourceMap(width, height, 0)

	type site struct {
		center  components.Position
		ceiling float64
		noise   opensimplex.Noise
	}
	var sites []site
	for i, d := range Districts() {
		if !d.Defined() || !t.HasCenter[d] {
			continue
		}
		ceiling, ok := t.Ceiling(d)
		if !ok {
			continue
		}
		sites = append(sites, site{
			center:  t.Centers[d],
			ceiling: ceiling,
			noise:   opensimplex.NewNormalized(seed + int64(i) + 1),
		})
	}
	if len(sites) == 0 {
		return m
	}

	coastNoise := opensimplex.NewNormalized(seed)
	mid := components.Position{X: width / 2, Y: height / 2}
	halfDiag := math.Hypot(float64(width)/2, float64(height)/2)
	if halfDiag == 0 {
		halfDiag = 1
	}

	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			p := components.Position{X: x, Y: y}
			fx, fy := float64(x), float64(y)

			// Outskirts: radial falloff perturbed by noise
			r := Distance(p, mid)/halfDiag + 0.2*(octaveNoise(coastNoise, fx, fy, cfg.Octaves, cfg.Scale, 0.5)-0.5)
			if r > 1-cfg.Coast {
				continue
			}

			best := -1
			bestDist := math.Inf(1)
			for i, s := range sites {
				d := Distance(p, s.center) + cfg.Jitter*2*(octaveNoise(s.noise, fx, fy, cfg.Octaves, cfg.Scale, 0.5)-0.5)
				if d < bestDist {
					bestDist = d
					best = i
				}
			}
			m.Set(x, y, sites[best].ceiling)
		}
	}
	return m
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	if octaves < 1 {
		octaves = 1
	}
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
