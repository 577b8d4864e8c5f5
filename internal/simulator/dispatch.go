package simulator

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// MonthSet marks calendar months 1..12. Index 0 is unused.
type MonthSet [13]bool

// NewMonthSet returns a set containing the given months.
func NewMonthSet(months ...int) MonthSet {
	var s MonthSet
	for _, m := range months {
		if m >= 1 && m <= 12 {
			s[m] = true
		}
	}
	return s
}

// Has reports whether month m is in the set.
func (s MonthSet) Has(m int) bool { return m >= 1 && m <= 12 && s[m] }

// Months lists the members in ascending order.
func (s MonthSet) Months() []int {
	var out []int
	for m := 1; m <= 12; m++ {
		if s[m] {
			out = append(out, m)
		}
	}
	return out
}

// DispatchResult holds per-step energy flows in kWh.
type DispatchResult struct {
	DirectUse []float64
	Delivered []float64 // battery output reaching the load
	Discharge []float64 // energy removed from the battery
	Charge    []float64
	Standby   []float64

	InitialSoCKWh float64
	FinalSoCKWh   float64
	FinalSoCPct   float64 // of nominal capacity
	MinSoCKWh     float64
	MaxSoCKWh     float64
	Cycles        float64
}

// Dispatcher runs the battery against a production and load series of equal length.
type Dispatcher struct {
	cal     calendar
	pv      []float64
	load    []float64
	dtH     float64
	battery *BatteryConfig
}

// NewDispatcher prepares a dispatch over pvKWh and loadKWh at the given
// timestamps. Months are taken in loc. battery may be nil.
func NewDispatcher(times []time.Time, loc *time.Location, pvKWh, loadKWh []float64, dtH float64, battery *BatteryConfig) *Dispatcher {
	return &Dispatcher{cal: newCalendar(times, loc), pv: pvKWh, load: loadKWh, dtH: dtH, battery: battery}
}

// HasBattery reports whether a storage system takes part in the dispatch.
func (d *Dispatcher) HasBattery() bool {
	return d.battery != nil && d.battery.CapacityKWh > 0
}

// Simulate runs one pass. The battery is idle during disabled months. The
// dispatcher is not modified, so Simulate may be called repeatedly.
func (d *Dispatcher) Simulate(disabled MonthSet) DispatchResult {
	n := len(d.pv)
	r := DispatchResult{
		DirectUse: make([]float64, n),
		Delivered: make([]float64, n),
		Discharge: make([]float64, n),
		Charge:    make([]float64, n),
		Standby:   make([]float64, n),
	}

	var b *Battery
	if d.HasBattery() {
		b = NewBattery(*d.battery)
		r.InitialSoCKWh = b.SoCKWh
		r.MinSoCKWh, r.MaxSoCKWh = b.SoCKWh, b.SoCKWh
	}

	for i := range n {
		direct := math.Max(math.Min(d.pv[i], d.load[i]), 0)
		r.DirectUse[i] = direct
		if b == nil || disabled.Has(d.cal.months[i]) {
			continue
		}
		st := b.Step(d.pv[i]-direct, d.load[i]-direct, d.dtH)
		r.Standby[i] = st.Standby
		r.Charge[i] = st.Charge
		r.Discharge[i] = st.Discharge
		r.Delivered[i] = st.Delivered
		r.MinSoCKWh = math.Min(r.MinSoCKWh, b.SoCKWh)
		r.MaxSoCKWh = math.Max(r.MaxSoCKWh, b.SoCKWh)
	}
	if b != nil {
		r.FinalSoCKWh = b.SoCKWh
		r.FinalSoCPct = b.SoCPercent()
		r.Cycles = b.Cycles()
	}
	return r
}

// NetBenefit returns the mean monthly battery benefit: delivered energy minus
// standby drain minus round-trip losses on charged energy.
func (d *Dispatcher) NetBenefit(r DispatchResult) [12]float64 {
	var out [12]float64
	if !d.HasBattery() {
		return out
	}
	loss := make([]float64, len(r.Charge))
	floats.ScaleTo(loss, 1-d.battery.RoundTrip(), r.Charge)

	use := d.cal.MonthlyMean(r.Delivered)
	idle := d.cal.MonthlyMean(r.Standby)
	eta := d.cal.MonthlyMean(loss)
	for m := range out {
		out[m] = use[m] - idle[m] - eta[m]
	}
	return out
}

// Optimize runs a first pass with every month enabled. When optimize is set and
// a battery is present, months whose net benefit is not positive are disabled
// and a second pass is run. It returns the final pass and the disabled months.
func (d *Dispatcher) Optimize(optimize bool) (DispatchResult, []int) {
	r := d.Simulate(MonthSet{})
	if !optimize || !d.HasBattery() {
		return r, nil
	}

	present := d.cal.Present()
	var disabled MonthSet
	for m, v := range d.NetBenefit(r) {
		if present.Has(m+1) && v <= 0 {
			disabled[m+1] = true
		}
	}
	months := disabled.Months()
	if len(months) == 0 {
		return r, nil
	}
	return d.Simulate(disabled), months
}
