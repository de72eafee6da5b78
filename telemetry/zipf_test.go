package telemetry

import (
	"math"
	"testing"
)

func TestZipfReference(t *testing.T) {
	ref := ZipfReference(6, 1000)
	if len(ref) != 1000 {
		t.Fatalf("len = %d, want 1000", len(ref))
	}
	if math.Abs(ref[0]-6.0/7) > 1e-12 || math.Abs(ref[999]-6) > 1e-12 {
		t.Errorf("endpoints = %v, %v", ref[0], ref[999])
	}
	for i := 1; i < len(ref); i++ {
		if ref[i] < ref[i-1] {
			t.Fatalf("reference not ascending at %d", i)
		}
	}
}

func TestKSTwoSample(t *testing.T) {
	tests := []struct {
		name  string
		a, b  []float64
		wantD float64
		maxP  float64
		minP  float64
	}{
		{"identical", []float64{1, 2, 3, 4}, []float64{4, 3, 2, 1}, 0, 1, 0.99},
		{"disjoint", []float64{1, 2, 3}, []float64{10, 11, 12}, 1, 0.05, 0},
		{"empty", nil, []float64{1}, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KSTwoSample(tt.a, tt.b)
			if math.Abs(got.Statistic-tt.wantD) > 1e-12 {
				t.Errorf("statistic = %v, want %v", got.Statistic, tt.wantD)
			}
			if got.PValue > tt.maxP || got.PValue < tt.minP {
				t.Errorf("p-value = %v, want in [%v, %v]", got.PValue, tt.minP, tt.maxP)
			}
		})
	}
}

func TestZipfTest(t *testing.T) {
	res := ZipfTest([]float64{1.8, 2.4, 2.5, 3, 3.8, 4.5, 6.1})
	if res.Statistic <= 0 || res.Statistic >= 1 {
		t.Errorf("statistic = %v, want in (0, 1)", res.Statistic)
	}
	if res.PValue <= 0 || res.PValue > 1 {
		t.Errorf("p-value = %v, want in (0, 1]", res.PValue)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if s.Mean != 5 || s.Min != 2 || s.Max != 9 {
		t.Errorf("summary = %+v", s)
	}
	if math.Abs(s.StdDev-math.Sqrt(32.0/7)) > 1e-9 {
		t.Errorf("StdDev = %v, want %v", s.StdDev, math.Sqrt(32.0/7))
	}
	if (Summarize(nil) != Summary{}) {
		t.Error("empty input should give zero summary")
	}
}
