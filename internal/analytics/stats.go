package analytics

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// amounts collects the transaction amounts of the given rows.
func (e *Engine) amounts(idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = e.records[j].Amount
	}
	return out
}

func sum(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		total += x
	}
	return total
}

// mean returns 0 for an empty slice.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return sum(xs) / float64(len(xs))
}

// sampleStdDev is the n-1 standard deviation. It is undefined (ok=false) below two values.
func sampleStdDev(xs []float64) (float64, bool) {
	n := len(xs)
	if n < 2 {
		return 0, false
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1)), true
}

// modalCategory returns the most frequent category among rows.
// Ties go to the lexicographically smallest category; no rows yields fallback.
func (e *Engine) modalCategory(idx []int, fallback string) string {
	if len(idx) == 0 {
		return fallback
	}

	counts := make(map[string]int)
	for _, j := range idx {
		counts[e.records[j].Category]++
	}

	cats := make([]string, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	best := cats[0]
	for _, c := range cats[1:] {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// round rounds half away from zero to the given decimal places, working on
// the shortest decimal form of v. 2.675 becomes 2.68 here, where rounding the
// binary value half to even (as Python's round does) gives 2.67.
func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func round2(v float64) float64 { return round(v, 2) }

func round1(v float64) float64 { return round(v, 1) }
