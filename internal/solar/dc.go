package solar

import (
	"time"

	"pvyield_simulator/internal/model"
	"pvyield_simulator/internal/weather"
)

// Horizontal holds global, direct normal and diffuse horizontal irradiance per step.
type Horizontal struct {
	GHI []float64
	DNI []float64
	DHI []float64
}

// PrepareHorizontal returns horizontal components for s. Series that only carry
// plane-of-array components are converted back using the sun position and the
// orientation they were fetched for. Direct irradiance is zeroed when the sun is
// too low or the value is negative.
func PrepareHorizontal(s *weather.Series, pos []Position, p Params) (Horizontal, error) {
	n := s.Len()
	h := Horizontal{
		GHI: make([]float64, n),
		DNI: make([]float64, n),
		DHI: make([]float64, n),
	}

	switch {
	case s.HasHorizontal():
		copy(h.GHI, s.GHI)
		copy(h.DNI, s.DNI)
		copy(h.DHI, s.DHI)
	case s.HasPOA():
		for i := range n {
			cosAOI := CosAOI(s.TiltDeg, s.AzimuthDeg, pos[i])
			if cosAOI >= p.MinCosZenith {
				h.DNI[i] = s.POADirect[i] / cosAOI
			}
			h.DHI[i] = s.POASkyDiffuse[i] + s.POAGroundDiffuse[i]
			h.GHI[i] = h.DNI[i]*max(pos[i].CosZenith(), 0) + h.DHI[i]
		}
	default:
		return Horizontal{}, &model.DataError{Reason: "neither horizontal (ghi/dni/dhi) nor plane-of-array irradiance present"}
	}

	for i := range n {
		if pos[i].CosZenith() < p.MinCosZenith || h.DNI[i] < 0 {
			h.DNI[i] = 0
		}
	}
	return h, nil
}

// SubArrayDC is the per sub-array outcome of the DC chain.
type SubArrayDC struct {
	Index      int
	MPPTInput  int
	PeakWp     float64
	Real       []float64
	MeanPOA    float64
	IAMLossPct float64
}

// DC holds total DC power in W per step, summed over sub-arrays and clamped at zero.
type DC struct {
	Real     []float64 // shaded, real cell temperature
	STC      []float64 // shaded effective irradiance, 25 °C, no temperature coefficient
	Ideal    []float64 // unshaded POA without incidence losses, 25 °C
	At25     []float64 // shaded effective irradiance, 25 °C with temperature coefficient
	Unshaded []float64 // unshaded effective irradiance, real cell temperature

	// MeanEffIrradiance is the mean shaded effective irradiance over sub-arrays.
	MeanEffIrradiance []float64

	POAGlobalSum    float64
	POAEffectiveSum float64

	SubArrays []SubArrayDC
}

// Model converts a weather series into DC power for a set of sub-arrays.
type Model struct {
	Params    Params
	Latitude  float64
	Longitude float64
	Location  *time.Location
}

// NewModel returns a model with DefaultParams.
func NewModel(lat, lon float64, loc *time.Location) Model {
	if loc == nil {
		loc = time.UTC
	}
	return Model{Params: DefaultParams, Latitude: lat, Longitude: lon, Location: loc}
}

// Compute runs the irradiance and DC chain for every sub-array.
func (m Model) Compute(s *weather.Series, arrays []model.SubArray) (*DC, error) {
	n := s.Len()
	pos := SunPositions(s.Times, m.Latitude, m.Longitude)
	hz, err := PrepareHorizontal(s, pos, m.Params)
	if err != nil {
		return nil, err
	}

	months := make([]int, n)
	for i, t := range s.Times {
		months[i] = int(t.In(m.Location).Month())
	}

	out := &DC{
		Real:              make([]float64, n),
		STC:               make([]float64, n),
		Ideal:             make([]float64, n),
		At25:              make([]float64, n),
		Unshaded:          make([]float64, n),
		MeanEffIrradiance: make([]float64, n),
	}

	for idx, sa := range arrays {
		dni, err := m.shadedDNI(sa, hz.DNI, pos, months)
		if err != nil {
			return nil, err
		}
		pdc0 := sa.PeakWp()
		sub := SubArrayDC{Index: idx, MPPTInput: sa.MPPTInput, PeakWp: pdc0, Real: make([]float64, n)}

		var poaSum, effSum float64
		for i := range n {
			cosAOI := CosAOI(sa.TiltDeg, sa.AzimuthDeg, pos[i])
			iam := IAMASHRAE(cosAOI, m.Params.IAMCoefficient)
			tAir, wind := m.ambient(s, i)

			ref := Isotropic(sa.TiltDeg, cosAOI, hz.DNI[i], hz.GHI[i], hz.DHI[i], m.Params.Albedo).Global()
			refEff := ref * iam
			refCell := FaimanCellTemp(ref, tAir, wind, m.Params.U0, m.Params.U1)

			poa := Isotropic(sa.TiltDeg, cosAOI, dni[i], hz.GHI[i], hz.DHI[i], m.Params.Albedo).Global()
			eff := poa * iam
			cell := FaimanCellTemp(poa, tAir, wind, m.Params.U0, m.Params.U1)

			pReal := PVWattsDC(eff, cell, pdc0, m.Params.GammaPdc)
			sub.Real[i] = pReal
			out.Real[i] += pReal
			out.STC[i] += PVWattsDC(eff, 25, pdc0, 0)
			out.Ideal[i] += PVWattsDC(ref, 25, pdc0, m.Params.GammaPdc)
			out.At25[i] += PVWattsDC(eff, 25, pdc0, m.Params.GammaPdc)
			out.Unshaded[i] += PVWattsDC(refEff, refCell, pdc0, m.Params.GammaPdc)
			out.MeanEffIrradiance[i] += eff / float64(len(arrays))

			poaSum += poa
			effSum += eff
		}

		if n > 0 {
			sub.MeanPOA = poaSum / float64(n)
		}
		if poaSum > 0 {
			sub.IAMLossPct = 100 * (1 - effSum/poaSum)
		}
		out.POAGlobalSum += poaSum
		out.POAEffectiveSum += effSum
		out.SubArrays = append(out.SubArrays, sub)
	}

	for _, col := range [][]float64{out.Real, out.STC, out.Ideal, out.At25, out.Unshaded} {
		for i, v := range col {
			if v < 0 {
				col[i] = 0
			}
		}
	}
	return out, nil
}

func (m Model) ambient(s *weather.Series, i int) (tAir, wind float64) {
	tAir, wind = m.Params.DefaultTempAir, m.Params.DefaultWind
	if s.TempAir != nil {
		tAir = s.TempAir[i]
	}
	if s.WindSpeed != nil {
		wind = s.WindSpeed[i]
	}
	return tAir, wind
}

// shadedDNI applies the sub-array's shading to direct irradiance only.
func (m Model) shadedDNI(sa model.SubArray, dni []float64, pos []Position, months []int) ([]float64, error) {
	out := make([]float64, len(dni))
	copy(out, dni)

	switch sa.Shading.Mode {
	case "", model.ShadingSimple:
		level := sa.Shading.Level
		if level == "" {
			level = model.ShadingNone
		}
		thr, ok := model.ShadingThresholdDeg[level]
		if !ok {
			return nil, model.NewConfigError("shading", "unknown level %q", level)
		}
		if thr <= 0 {
			return out, nil
		}
		for i := range out {
			if pos[i].ElevationDeg < thr && FrontHemisphere(pos[i].AzimuthDeg, sa.AzimuthDeg) {
				out[i] = 0
			}
		}
	case model.ShadingMonthly:
		for i := range out {
			out[i] *= 1 - sa.Shading.MonthlyPct[months[i]]/100
		}
	default:
		return nil, model.NewConfigError("shading", "unknown mode %q", sa.Shading.Mode)
	}
	return out, nil
}

// Combine sums DC results computed separately, for instance one per sub-array
// when each orientation has its own weather series. Sub-array indices are
// renumbered in order.
func Combine(parts []*DC) (*DC, error) {
	if len(parts) == 0 {
		return &DC{}, nil
	}
	n := len(parts[0].Real)
	out := &DC{
		Real:              make([]float64, n),
		STC:               make([]float64, n),
		Ideal:             make([]float64, n),
		At25:              make([]float64, n),
		Unshaded:          make([]float64, n),
		MeanEffIrradiance: make([]float64, n),
	}

	var arrays int
	for _, p := range parts {
		if len(p.Real) != n {
			return nil, &model.DataError{Reason: "weather series of sub-arrays differ in length"}
		}
		w := float64(len(p.SubArrays))
		for i := range n {
			out.Real[i] += p.Real[i]
			out.STC[i] += p.STC[i]
			out.Ideal[i] += p.Ideal[i]
			out.At25[i] += p.At25[i]
			out.Unshaded[i] += p.Unshaded[i]
			out.MeanEffIrradiance[i] += p.MeanEffIrradiance[i] * w
		}
		out.POAGlobalSum += p.POAGlobalSum
		out.POAEffectiveSum += p.POAEffectiveSum
		for _, sa := range p.SubArrays {
			sa.Index = len(out.SubArrays)
			out.SubArrays = append(out.SubArrays, sa)
		}
		arrays += len(p.SubArrays)
	}
	if arrays > 0 {
		for i := range out.MeanEffIrradiance {
			out.MeanEffIrradiance[i] /= float64(arrays)
		}
	}
	return out, nil
}
