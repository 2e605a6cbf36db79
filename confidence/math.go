package confidence

import (
	"math"
	"sort"
)

func gaussian(v, center, sigma float64) float64 {
	z := (v - center) / sigma
	return math.Exp(-0.5 * z * z)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// ratio is v/max clamped into [0,1].
func ratio(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return clamp01(v / max)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func weighted(components, weights map[string]float64) float64 {
	total := 0.0
	for k, w := range weights {
		total += w * components[k]
	}
	return clamp01(total)
}

// Stat holds the summary of one feature across samples.
type Stat struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Max  float64 `json:"max"`
}

// summarize skips NaN values; no usable values yields a zero Stat.
func summarize(vals []float64) Stat {
	n := 0
	sum, max := 0.0, math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		n++
		sum += v
		max = math.Max(max, v)
	}
	if n == 0 {
		return Stat{}
	}
	mean := sum / float64(n)
	ss := 0.0
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		ss += (v - mean) * (v - mean)
	}
	return Stat{Mean: mean, Std: math.Sqrt(ss / float64(n)), Max: max}
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	m := len(s) / 2
	if len(s)%2 == 1 {
		return s[m]
	}
	return (s[m-1] + s[m]) / 2
}
