package simulator

import (
	"time"

	"gonum.org/v1/gonum/floats"

	"pvyield_simulator/internal/inverter"
	"pvyield_simulator/internal/model"
)

// StageInput is the DC side of a run after the year filter.
type StageInput struct {
	Times    []time.Time
	Location *time.Location
	DCW      []float64 // PV DC power per step
	LoadKWh  []float64
	DtH      float64
	Derate   float64 // 1 - user losses
	Inverter inverter.Model
	Battery  *BatteryConfig
	Optimize bool
}

// StageOutput is the AC side of a run. Series are kWh per step; totals are
// kWh over the whole run.
type StageOutput struct {
	ProductionKWh  []float64
	DirectUseKWh   []float64
	BatteryUseKWh  []float64
	Dispatch       DispatchResult
	DisabledMonths []int
	ClippedSteps   int

	PVDCKWh        float64 // PV energy at the module terminals
	PVACKWh        float64 // PV share of inverter output before user losses
	PVNetKWh       float64 // PV production after user losses
	BatteryDCKWh   float64 // battery energy delivered on the DC side
	BatteryACKWh   float64 // AC equivalent of the battery output
	InverterInKWh  float64
	InverterOutKWh float64
}

// Stage converts DC power to AC production and runs the battery dispatch.
type Stage interface {
	Name() string
	Convert(in StageInput) StageOutput
}

// StageFor selects the conversion path for a device type.
func StageFor(t model.SystemType) Stage {
	if t == model.SystemChargerOnly {
		return DCBusStage{}
	}
	return ACStage{}
}

func toKWh(w []float64, dtH float64) []float64 {
	out := make([]float64, len(w))
	floats.ScaleTo(out, dtH/1000, w)
	return out
}

func toW(kwh []float64, dtH float64) []float64 {
	out := make([]float64, len(kwh))
	if dtH > 0 {
		floats.ScaleTo(out, 1000/dtH, kwh)
	}
	return out
}

// ACStage runs the inverter on PV DC and couples the battery on the AC side.
type ACStage struct{}

func (ACStage) Name() string { return "ac" }

func (ACStage) Convert(in StageInput) StageOutput {
	conv := in.Inverter.Apply(in.DCW)
	acKWh := toKWh(conv.AC, in.DtH)

	prod := make([]float64, len(acKWh))
	floats.ScaleTo(prod, in.Derate, acKWh)

	d := NewDispatcher(in.Times, in.Location, prod, in.LoadKWh, in.DtH, in.Battery)
	r, disabled := d.Optimize(in.Optimize)

	// The battery output is valued at the inverter efficiency of its own power level.
	battEta := in.Inverter.Efficiency(toW(r.Delivered, in.DtH))
	battAC := make([]float64, len(r.Delivered))
	floats.MulTo(battAC, r.Delivered, battEta)

	out := StageOutput{
		ProductionKWh:  prod,
		DirectUseKWh:   r.DirectUse,
		BatteryUseKWh:  r.Delivered,
		Dispatch:       r,
		DisabledMonths: disabled,
		ClippedSteps:   conv.ClippedSteps,
		PVDCKWh:        floats.Sum(toKWh(in.DCW, in.DtH)),
		PVACKWh:        floats.Sum(acKWh),
		PVNetKWh:       floats.Sum(prod),
		BatteryDCKWh:   floats.Sum(r.Delivered),
		BatteryACKWh:   floats.Sum(battAC),
	}
	out.InverterInKWh = out.PVDCKWh + out.BatteryDCKWh
	out.InverterOutKWh = out.PVACKWh + out.BatteryACKWh
	return out
}

// DCBusStage charges the battery on the DC bus and feeds the net bus power
// (PV minus charge plus discharge) through the inverter. Production, direct
// use and battery output are scaled by the bus conversion ratio of each step.
type DCBusStage struct{}

func (DCBusStage) Name() string { return "dc_bus" }

func (DCBusStage) Convert(in StageInput) StageOutput {
	rawKWh := toKWh(in.DCW, in.DtH)
	pv := make([]float64, len(rawKWh))
	floats.ScaleTo(pv, in.Derate, rawKWh)

	d := NewDispatcher(in.Times, in.Location, pv, in.LoadKWh, in.DtH, in.Battery)
	r, disabled := d.Optimize(in.Optimize)

	n := len(pv)
	bus := make([]float64, n)
	for i := range n {
		bus[i] = max(pv[i]-r.Charge[i]+r.Delivered[i], 0)
	}
	busW := toW(bus, in.DtH)
	conv := in.Inverter.Apply(busW)

	out := StageOutput{
		ProductionKWh:  make([]float64, n),
		DirectUseKWh:   make([]float64, n),
		BatteryUseKWh:  make([]float64, n),
		Dispatch:       r,
		DisabledMonths: disabled,
		ClippedSteps:   conv.ClippedSteps,
		PVDCKWh:        floats.Sum(rawKWh),
		BatteryDCKWh:   floats.Sum(r.Delivered),
		InverterInKWh:  floats.Sum(bus),
		InverterOutKWh: floats.Sum(toKWh(conv.AC, in.DtH)),
	}
	// Steps where the whole PV output goes into the battery have no bus
	// power; their production is valued at the PV power level instead.
	pvEta := in.Inverter.Efficiency(toW(pv, in.DtH))
	for i := range n {
		scale := pvEta[i]
		if busW[i] > 0 {
			scale = conv.AC[i] / busW[i]
		}
		out.ProductionKWh[i] = pv[i] * scale
		out.DirectUseKWh[i] = r.DirectUse[i] * scale
		out.BatteryUseKWh[i] = r.Delivered[i] * scale
		out.PVACKWh += rawKWh[i] * scale
	}
	out.PVNetKWh = floats.Sum(out.ProductionKWh)
	out.BatteryACKWh = floats.Sum(out.BatteryUseKWh)
	return out
}
