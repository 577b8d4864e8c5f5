package simulator

import (
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"pvyield_simulator/internal/model"
)

// calendar holds the local year and month of every step of a run.
type calendar struct {
	years  []int
	months []int // 1..12
}

func newCalendar(times []time.Time, loc *time.Location) calendar {
	c := calendar{years: make([]int, len(times)), months: make([]int, len(times))}
	for i, t := range times {
		lt := t.In(loc)
		c.years[i] = lt.Year()
		c.months[i] = int(lt.Month())
	}
	return c
}

// FilterYears returns the indices of steps whose local year lies in [start, end].
func FilterYears(times []time.Time, loc *time.Location, start, end int) []int {
	var idx []int
	for i, t := range times {
		if y := t.In(loc).Year(); y >= start && y <= end {
			idx = append(idx, i)
		}
	}
	return idx
}

// pick returns v restricted to idx.
func pick(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}

// Years lists the distinct years in ascending order.
func (c calendar) Years() []int {
	ys := slices.Clone(c.years)
	slices.Sort(ys)
	return slices.Compact(ys)
}

// YearlySums sums v per local year.
func (c calendar) YearlySums(v []float64) map[int]float64 {
	out := make(map[int]float64)
	for i, x := range v {
		out[c.years[i]] += x
	}
	return out
}

// AnnualMean is the mean over years of the per-year sums.
func (c calendar) AnnualMean(v []float64) float64 {
	sums := c.YearlySums(v)
	if len(sums) == 0 {
		return 0
	}
	vals := make([]float64, 0, len(sums))
	for _, y := range c.Years() {
		vals = append(vals, sums[y])
	}
	return stat.Mean(vals, nil)
}

// MonthlyMean sums v per (year, month) and averages each calendar month over
// the years in which it occurs. Months without data are zero.
func (c calendar) MonthlyMean(v []float64) model.Monthly {
	type ym struct{ y, m int }
	sums := make(map[ym]float64)
	for i, x := range v {
		sums[ym{c.years[i], c.months[i]}] += x
	}
	var total model.Monthly
	var count [12]int
	for k, s := range sums {
		total[k.m-1] += s
		count[k.m-1]++
	}
	for m := range total {
		if count[m] > 0 {
			total[m] /= float64(count[m])
		}
	}
	return total
}

// Present reports which calendar months occur in the run.
func (c calendar) Present() MonthSet {
	var s MonthSet
	for _, m := range c.months {
		s[m] = true
	}
	return s
}

// surplus is production minus use per month, never negative.
func surplus(prod, use model.Monthly) model.Monthly {
	var out model.Monthly
	for m := range out {
		out[m] = max(prod[m]-use[m], 0)
	}
	return out
}

func addSeries(a, b []float64) []float64 {
	out := make([]float64, len(a))
	floats.AddTo(out, a, b)
	return out
}

// pct returns 100·num/den, or zero when den is not positive.
func pct(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return 100 * num / den
}
