package systems

import (
	"math/rand"
	"testing"

	"github.com/pthm-cable/precinct/world"
)

func TestApportion(t *testing.T) {
	tests := []struct {
		name      string
		incidents [world.NumDistricts]int
		total     int
		want      [world.NumDistricts]int
	}{
		{
			name:      "exact quotas",
			incidents: [world.NumDistricts]int{world.Centrum: 50, world.NieuwWest: 30, world.Noord: 20},
			total:     10,
			want:      [world.NumDistricts]int{world.Centrum: 5, world.NieuwWest: 3, world.Noord: 2},
		},
		{
			name:      "remainder ties go to earlier districts",
			incidents: [world.NumDistricts]int{world.Oost: 1, world.West: 1, world.Zuid: 1},
			total:     7,
			want:      [world.NumDistricts]int{world.Oost: 3, world.West: 2, world.Zuid: 2},
		},
		{
			name:      "largest remainder wins",
			incidents: [world.NumDistricts]int{world.Centrum: 1, world.Zuidoost: 2},
			total:     2,
			want:      [world.NumDistricts]int{world.Centrum: 1, world.Zuidoost: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var current [world.NumDistricts]int
			current[world.Centrum] = tt.total

			p := Apportion(tt.incidents, current, tt.total)
			if !p.Valid {
				t.Fatal("plan should be valid")
			}
			if p.Target != tt.want {
				t.Errorf("Target = %v, want %v", p.Target, tt.want)
			}
			for d := range p.Delta {
				if p.Delta[d] != p.Target[d]-current[d] {
					t.Errorf("Delta[%s] = %d, want %d", world.District(d), p.Delta[d], p.Target[d]-current[d])
				}
			}
		})
	}
}

func TestApportion_NoIncidents(t *testing.T) {
	var zero [world.NumDistricts]int
	if p := Apportion(zero, zero, 10); p.Valid {
		t.Errorf("expected invalid plan, got %+v", p)
	}
}

func TestApportion_SumProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		var incidents [world.NumDistricts]int
		for d := range incidents {
			incidents[d] = rng.Intn(40)
		}
		incidents[rng.Intn(world.NumDistricts)]++
		total := rng.Intn(100)

		p := Apportion(incidents, [world.NumDistricts]int{}, total)
		sum := 0
		for d, n := range p.Target {
			if n < 0 {
				t.Fatalf("negative target %d for %s", n, world.District(d))
			}
			if incidents[d] == 0 && n != 0 {
				t.Fatalf("district %s without incidents got %d", world.District(d), n)
			}
			sum += n
		}
		if sum != total {
			t.Fatalf("sum = %d, want %d (incidents %v)", sum, total, incidents)
		}
	}
}
