package inverter

import (
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/interp"

	"pvyield_simulator/internal/model"
)

// Curve is a measured efficiency curve: DC input power breakpoints in W and
// conversion efficiency in percent at each breakpoint.
type Curve struct {
	PowerW        []float64 `json:"power_w"`
	EfficiencyPct []float64 `json:"efficiency_pct"`
}

// Empty reports whether the curve carries no usable breakpoints.
func (c Curve) Empty() bool {
	return len(c.PowerW) == 0 || len(c.PowerW) != len(c.EfficiencyPct)
}

// extended returns the curve padded with (0 W, 0 %) on the left and with the
// last efficiency held flat up to maxW on the right.
func (c Curve) extended(maxW float64) (xs, ys []float64) {
	xs = append(xs, c.PowerW...)
	ys = append(ys, c.EfficiencyPct...)
	if xs[0] > 0 {
		xs = append([]float64{0}, xs...)
		ys = append([]float64{0}, ys...)
	}
	if last := xs[len(xs)-1]; last < maxW {
		xs = append(xs, maxW)
		ys = append(ys, ys[len(ys)-1])
	}
	return xs, ys
}

// predictor fits the extended curve. ok is false when the curve cannot be
// interpolated (empty, unsorted or duplicate breakpoints).
func (c Curve) predictor(maxW float64) (func(float64) float64, bool) {
	if c.Empty() {
		return nil, false
	}
	xs, ys := c.extended(maxW)
	if len(xs) == 1 {
		v := ys[0]
		return func(float64) float64 { return v }, true
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, false
	}
	return pl.Predict, true
}

// Model converts DC power to AC power.
type Model struct {
	Curve    Curve
	FixedPct float64 // used when the curve is empty or invalid
	MaxACW   float64 // rated AC output; zero or +Inf means unlimited
}

// Output is the result of applying a Model to a power series.
type Output struct {
	AC           []float64 // W
	Eta          []float64 // 0..1
	ClippedSteps int
}

// FromHardware builds the conversion model for a system. Integrated devices use
// the system record; otherwise the external inverter record supplies the curve
// and the AC limit. The fixed efficiency falls back from system to inverter to 100 %.
func FromHardware(sys model.PVSystem, inv *model.Inverter) Model {
	m := Model{FixedPct: 100, MaxACW: math.Inf(1)}
	switch {
	case sys.ACEfficiencyPct > 0:
		m.FixedPct = sys.ACEfficiencyPct
	case inv != nil && inv.ACEfficiencyPct > 0:
		m.FixedPct = inv.ACEfficiencyPct
	}

	if sys.InverterIntegrated {
		m.Curve = Curve{PowerW: sys.EfficiencyCurveW, EfficiencyPct: sys.EfficiencyCurvePct}
		if sys.MaxACPowerW > 0 {
			m.MaxACW = sys.MaxACPowerW
		}
		return m
	}
	if inv != nil {
		m.Curve = Curve{PowerW: inv.EfficiencyCurveW, EfficiencyPct: inv.EfficiencyCurvePct}
		if inv.MaxOutputPowerW > 0 {
			m.MaxACW = inv.MaxOutputPowerW
		}
	}
	return m
}

func (m Model) limit() float64 {
	if m.MaxACW <= 0 {
		return math.Inf(1)
	}
	return m.MaxACW
}

// Efficiency returns the conversion efficiency (0..1) for every DC power value.
func (m Model) Efficiency(dcW []float64) []float64 {
	eta := make([]float64, len(dcW))
	var maxW float64
	for _, p := range dcW {
		maxW = math.Max(maxW, p)
	}

	predict, ok := m.Curve.predictor(maxW)
	for i, p := range dcW {
		pct := m.FixedPct
		if ok {
			pct = predict(p)
		}
		eta[i] = math.Min(math.Max(pct/100, 0), 1)
	}
	return eta
}

// Apply converts a DC power series to AC. AC is clamped to [0, MaxACW]; steps
// where the limit cuts output are counted as clipped.
func (m Model) Apply(dcW []float64) Output {
	out := Output{AC: make([]float64, len(dcW)), Eta: m.Efficiency(dcW)}
	limit := m.limit()
	for i, p := range dcW {
		ac := p * out.Eta[i]
		if ac > limit {
			ac = limit
			out.ClippedSteps++
		}
		out.AC[i] = math.Max(ac, 0)
	}
	return out
}

// nominalSamples is the integration grid for NominalEfficiency.
const nominalSamples = 201

// NominalEfficiency returns the mean efficiency in percent over [0, pdcNomW],
// the area under the curve divided by the nominal power.
func (m Model) NominalEfficiency(pdcNomW float64) float64 {
	if pdcNomW <= 0 {
		return math.Min(m.FixedPct, 100)
	}
	xs := make([]float64, nominalSamples)
	for i := range xs {
		xs[i] = pdcNomW * float64(i) / float64(nominalSamples-1)
	}
	eta := m.Efficiency(xs)
	return integrate.Trapezoidal(xs, eta) / pdcNomW * 100
}
