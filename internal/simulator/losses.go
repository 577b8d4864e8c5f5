package simulator

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"pvyield_simulator/internal/model"
	"pvyield_simulator/internal/solar"
)

// lowIrradianceMaxPct is the loss charged when every step is below the low-light threshold.
const lowIrradianceMaxPct = 3.0

// OtherLoss collects user losses outside the named causes.
const OtherLoss = "other"

var namedLosses = map[string]bool{
	model.LossCable:     true,
	model.LossSoiling:   true,
	model.LossMismatch:  true,
	model.LossLID:       true,
	model.LossNameplate: true,
	model.LossAging:     true,
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// dcTotals are sums of DC power over the simulated steps.
type dcTotals struct {
	real     float64
	at25     float64
	unshaded float64
	lowFrac  float64 // share of steps below the low-irradiance threshold
	poa      float64
	poaEff   float64
}

func summarizeDC(dc *solar.DC, idx []int, lowThreshold float64) dcTotals {
	t := dcTotals{poa: dc.POAGlobalSum, poaEff: dc.POAEffectiveSum}
	var low int
	for _, i := range idx {
		t.real += dc.Real[i]
		t.at25 += dc.At25[i]
		t.unshaded += dc.Unshaded[i]
		if dc.MeanEffIrradiance[i] < lowThreshold {
			low++
		}
	}
	if len(idx) > 0 {
		t.lowFrac = float64(low) / float64(len(idx))
	}
	return t
}

// lossesByCause splits the configured losses into named causes and "other".
func lossesByCause(losses map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(namedLosses)+1)
	for name, v := range losses {
		if namedLosses[name] {
			out[name] += v
		} else {
			out[OtherLoss] += v
		}
	}
	return out
}

// computeLosses derives the loss breakdown relative to DC energy.
func computeLosses(cfg model.Configuration, t dcTotals, st StageOutput) model.Losses {
	l := model.Losses{
		LowIrradiancePct: round2(t.lowFrac * lowIrradianceMaxPct),
		SystemPct:        cfg.TotalLossPct(),
		SystemByCause:    lossesByCause(cfg.LossesPct),
		ClippedSteps:     st.ClippedSteps,
	}
	if st.InverterInKWh > 0 {
		l.InverterPct = 100 - math.Min(pct(st.InverterOutKWh, st.InverterInKWh), 100)
	}
	if t.unshaded > 0 {
		l.ShadingPct = math.Max(0, round2((1-t.real/t.unshaded)*100))
	}
	if t.at25 > 0 {
		l.TemperaturePct = (1 - t.real/t.at25) * 100
	}
	if t.poa > 0 {
		l.OpticalPct = (1 - t.poaEff/t.poa) * 100
	}
	l.TotalPct = round2(l.InverterPct + l.LowIrradiancePct + l.SystemPct + l.ShadingPct)
	return l
}

// computeEfficiency returns inverter and system efficiency over PV and battery
// energy, the nominal curve efficiency at the installed peak power and the
// storage efficiency of the dispatch.
func computeEfficiency(st StageOutput, nominalPct float64) model.Efficiency {
	e := model.Efficiency{NominalPct: nominalPct}
	if st.InverterInKWh > 0 {
		e.InverterPct = math.Min(pct(st.InverterOutKWh, st.InverterInKWh), 100)
	}
	e.SystemPct = pct(st.PVNetKWh+st.BatteryACKWh, st.PVDCKWh+st.BatteryDCKWh)
	e.StoragePct = storageEfficiency(st.Dispatch)
	return e
}

// storageEfficiency is the battery output reaching the load over the energy
// charged plus standby drain. Energy still stored at the end counts as lost.
func storageEfficiency(d DispatchResult) float64 {
	if len(d.Charge) == 0 {
		return 0
	}
	in := floats.Sum(d.Charge) + floats.Sum(d.Standby)
	return math.Min(pct(floats.Sum(d.Delivered), in), 100)
}
