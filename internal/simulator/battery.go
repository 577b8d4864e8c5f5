package simulator

import (
	"math"

	"pvyield_simulator/internal/model"
)

// BatteryConfig holds the storage parameters of one run, already scaled by
// the number of units.
type BatteryConfig struct {
	CapacityKWh    float64 `json:"capacity_kwh"`
	SoCMinPct      float64 `json:"soc_min_pct"`
	SoCMaxPct      float64 `json:"soc_max_pct"`
	RoundTripPct   float64 `json:"round_trip_pct"`
	MaxChargeKW    float64 `json:"max_charge_kw"`
	MaxDischargeKW float64 `json:"max_discharge_kw"`
	StandbyKW      float64 `json:"standby_kw"`
}

// NewBatteryConfig scales a catalog record by units. Missing power limits use
// the per-unit defaults. It returns nil when there is no storage.
func NewBatteryConfig(b *model.Battery, units int, socMinPct, socMaxPct float64) *BatteryConfig {
	if b == nil || units <= 0 || b.CapacityWh <= 0 {
		return nil
	}
	n := float64(units)
	orDefault := func(v, def float64) float64 {
		if v > 0 {
			return v
		}
		return def
	}
	return &BatteryConfig{
		CapacityKWh:    b.CapacityWh * n / 1000,
		SoCMinPct:      socMinPct,
		SoCMaxPct:      socMaxPct,
		RoundTripPct:   orDefault(b.RoundTripEfficiencyPct, model.DefaultRoundTripPct),
		MaxChargeKW:    orDefault(b.MaxChargePowerW, model.DefaultMaxChargePowerW) * n / 1000,
		MaxDischargeKW: orDefault(b.MaxDischargePowerW, model.DefaultMaxDischargePowerW) * n / 1000,
		StandbyKW:      b.StandbyPowerW * n / 1000,
	}
}

// RoundTrip returns the round-trip efficiency as a fraction.
func (c BatteryConfig) RoundTrip() float64 { return c.RoundTripPct / 100 }

// OneWay returns the charge (and discharge) efficiency, the square root of round trip.
func (c BatteryConfig) OneWay() float64 { return math.Sqrt(c.RoundTrip()) }

// FloorKWh is the lowest allowed state of charge.
func (c BatteryConfig) FloorKWh() float64 { return c.CapacityKWh * c.SoCMinPct / 100 }

// CeilKWh is the highest allowed state of charge.
func (c BatteryConfig) CeilKWh() float64 { return c.CapacityKWh * c.SoCMaxPct / 100 }

// Capacity returns nominal, SoC-window and round-trip adjusted capacity.
func (c *BatteryConfig) Capacity() model.Capacity {
	if c == nil {
		return model.Capacity{}
	}
	usable := c.CapacityKWh * (c.SoCMaxPct - c.SoCMinPct) / 100
	return model.Capacity{
		NominalKWh:   c.CapacityKWh,
		UsableKWh:    usable,
		EffectiveKWh: usable * c.RoundTrip(),
	}
}

// StepResult is the energy flow of one timestep, all in kWh.
type StepResult struct {
	Standby   float64 // drained by self-consumption of the battery
	Charge    float64 // taken from the surplus
	Discharge float64 // removed from the state of charge
	Delivered float64 // reaching the load after discharge losses
}

// Battery tracks the state of charge of one storage system.
type Battery struct {
	config BatteryConfig

	SoCKWh             float64
	TotalThroughputKWh float64
}

// NewBattery creates a battery starting at the discharge floor SoC.
func NewBattery(cfg BatteryConfig) *Battery {
	return &Battery{config: cfg, SoCKWh: cfg.FloorKWh()}
}

// Step runs one timestep: standby drain, then charging from surplus, then
// discharging into the deficit. dtH is the step length in hours.
func (b *Battery) Step(surplusKWh, deficitKWh, dtH float64) StepResult {
	var r StepResult
	floor, ceil := b.config.FloorKWh(), b.config.CeilKWh()
	eta := b.config.OneWay()

	if b.SoCKWh > floor {
		r.Standby = math.Min(b.SoCKWh-floor, b.config.StandbyKW*dtH)
		b.SoCKWh -= r.Standby
	}

	if surplusKWh > 0 && b.SoCKWh < ceil {
		r.Charge = math.Min(surplusKWh, math.Min(b.config.MaxChargeKW*dtH, ceil-b.SoCKWh))
		b.SoCKWh += r.Charge * eta
	}

	if deficitKWh > 0 {
		avail := math.Max(b.SoCKWh-floor, 0)
		r.Discharge = math.Min(deficitKWh, math.Min(b.config.MaxDischargeKW*dtH, avail))
		r.Delivered = r.Discharge * eta
		b.SoCKWh -= r.Discharge
	}

	b.TotalThroughputKWh += r.Charge + r.Discharge
	return r
}

// SoCPercent returns the state of charge relative to nominal capacity.
func (b *Battery) SoCPercent() float64 {
	if b.config.CapacityKWh <= 0 {
		return 0
	}
	return b.SoCKWh / b.config.CapacityKWh * 100
}

// Cycles returns the equivalent full cycle count.
func (b *Battery) Cycles() float64 {
	if b.config.CapacityKWh <= 0 {
		return 0
	}
	return b.TotalThroughputKWh / 2 / b.config.CapacityKWh
}
