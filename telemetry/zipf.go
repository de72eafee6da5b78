package telemetry

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ZipfReference samples the curve height/x over x in [1, 7] at n points,
// in ascending order of value.
func ZipfReference(height float64, n int) []float64 {
	if n < 2 {
		n = 2
	}
	out := make([]float64, n)
	for i := range out {
		x := 1 + 6*float64(i)/float64(n-1)
		out[n-1-i] = height / x
	}
	return out
}

// KSResult is the outcome of a two-sample Kolmogorov-Smirnov test.
type KSResult struct {
	Statistic float64
	PValue    float64
}

// KSTwoSample compares two samples. A low p-value rejects the hypothesis
// that both come from the same distribution.
func KSTwoSample(a, b []float64) KSResult {
	if len(a) == 0 || len(b) == 0 {
		return KSResult{PValue: 1}
	}
	x := sortedCopy(a)
	y := sortedCopy(b)

	d := stat.KolmogorovSmirnov(x, nil, y, nil)

	n, m := float64(len(x)), float64(len(y))
	en := math.Sqrt(n * m / (n + m))
	return KSResult{Statistic: d, PValue: kolmogorovQ((en + 0.12 + 0.11/en) * d)}
}

// ZipfTest compares per-district averages against a Zipf curve scaled to
// their maximum.
func ZipfTest(averages []float64) KSResult {
	if len(averages) == 0 {
		return KSResult{PValue: 1}
	}
	height := 0.0
	for _, v := range averages {
		height = math.Max(height, v)
	}
	return KSTwoSample(averages, ZipfReference(height, 1000))
}

// kolmogorovQ is the survival function of the Kolmogorov distribution.
func kolmogorovQ(lambda float64) float64 {
	if lambda < 1e-3 {
		return 1
	}
	sum := 0.0
	sign := 1.0
	for k := 1; k <= 100; k++ {
		term := sign * math.Exp(-2*float64(k*k)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-12 {
			break
		}
		sign = -sign
	}
	q := 2 * sum
	return math.Min(1, math.Max(0, q))
}

// Summary describes a sample of per-district averages.
type Summary struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summarize returns mean, sample standard deviation and range of values.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	s := sortedCopy(values)
	return Summary{Mean: mean, StdDev: std, Min: s[0], Max: s[len(s)-1]}
}

func sortedCopy(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	sort.Float64s(out)
	return out
}
