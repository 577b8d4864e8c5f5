package model

import "slices"

// SystemType selects how PV, battery and inverter are coupled.
type SystemType string

const (
	// SystemInverter is a plain micro-inverter without storage.
	SystemInverter SystemType = "inverter"
	// SystemHybrid couples the battery on the AC side of the inverter.
	SystemHybrid SystemType = "hybrid"
	// SystemChargerOnly charges the battery on the DC bus and feeds the bus through the inverter.
	SystemChargerOnly SystemType = "charger_only"
)

// PVSystem is a catalog record for a complete plug-in system or storage controller.
type PVSystem struct {
	ID                     string     `json:"id" yaml:"id"`
	Name                   string     `json:"name" yaml:"name"`
	Manufacturer           string     `json:"manufacturer" yaml:"manufacturer"`
	Type                   SystemType `json:"type" yaml:"type"`
	InverterIntegrated     bool       `json:"inverter_integrated" yaml:"inverter_integrated"`
	SupportedInverterTypes []string   `json:"supported_inverter_types,omitempty" yaml:"supported_inverter_types,omitempty"`
	StorageSupported       bool       `json:"storage_supported" yaml:"storage_supported"`
	SupportedStorageTypes  []string   `json:"supported_storage_types,omitempty" yaml:"supported_storage_types,omitempty"`
	ACEfficiencyPct        float64    `json:"ac_efficiency_percent,omitempty" yaml:"ac_efficiency_percent,omitempty"`
	EfficiencyCurveW       []float64  `json:"efficiency_curve_w,omitempty" yaml:"efficiency_curve_w,omitempty"`
	EfficiencyCurvePct     []float64  `json:"efficiency_curve_pct,omitempty" yaml:"efficiency_curve_pct,omitempty"`
	MaxACPowerW            float64    `json:"max_ac_output_power_w,omitempty" yaml:"max_ac_output_power_w,omitempty"`
	MPPTInputs             int        `json:"mppt_inputs,omitempty" yaml:"mppt_inputs,omitempty"`
	DCDCEfficiencyPct      float64    `json:"dc_dc_efficiency_percent,omitempty" yaml:"dc_dc_efficiency_percent,omitempty"`
}

// EffectiveType defaults an empty type to hybrid.
func (s PVSystem) EffectiveType() SystemType {
	if s.Type == "" {
		return SystemHybrid
	}
	return s.Type
}

// ChargerLossPct is the DC-DC conversion loss of a charger_only controller.
// Other types and records without a rating report 0.
func (s PVSystem) ChargerLossPct() float64 {
	if s.EffectiveType() != SystemChargerOnly || s.DCDCEfficiencyPct <= 0 || s.DCDCEfficiencyPct > 100 {
		return 0
	}
	return 100 - s.DCDCEfficiencyPct
}

// SupportsInverter reports whether an external inverter id may be paired with the system.
// An empty list accepts any inverter.
func (s PVSystem) SupportsInverter(id string) bool {
	return len(s.SupportedInverterTypes) == 0 || slices.Contains(s.SupportedInverterTypes, id)
}

// SupportsBattery reports whether a battery id may be paired with the system.
func (s PVSystem) SupportsBattery(id string) bool {
	if !s.StorageSupported {
		return false
	}
	return len(s.SupportedStorageTypes) == 0 || slices.Contains(s.SupportedStorageTypes, id)
}

// Inverter is a catalog record for a stand-alone inverter.
type Inverter struct {
	ID                 string    `json:"id" yaml:"id"`
	Model              string    `json:"model" yaml:"model"`
	Manufacturer       string    `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	ACEfficiencyPct    float64   `json:"ac_efficiency_percent,omitempty" yaml:"ac_efficiency_percent,omitempty"`
	EfficiencyCurveW   []float64 `json:"efficiency_curve_w,omitempty" yaml:"efficiency_curve_w,omitempty"`
	EfficiencyCurvePct []float64 `json:"efficiency_curve_pct,omitempty" yaml:"efficiency_curve_pct,omitempty"`
	MaxOutputPowerW    float64   `json:"max_output_power_w,omitempty" yaml:"max_output_power_w,omitempty"`
	MPPTInputs         int       `json:"mppt_inputs,omitempty" yaml:"mppt_inputs,omitempty"`
}

// Battery is a catalog record for one storage unit.
type Battery struct {
	ID                     string  `json:"id" yaml:"id"`
	Model                  string  `json:"model" yaml:"model"`
	Manufacturer           string  `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	CapacityWh             float64 `json:"capacity_wh" yaml:"capacity_wh"`
	RoundTripEfficiencyPct float64 `json:"roundtrip_efficiency_percent,omitempty" yaml:"roundtrip_efficiency_percent,omitempty"`
	MaxChargePowerW        float64 `json:"max_charge_power_w,omitempty" yaml:"max_charge_power_w,omitempty"`
	MaxDischargePowerW     float64 `json:"max_discharge_power_w,omitempty" yaml:"max_discharge_power_w,omitempty"`
	StandbyPowerW          float64 `json:"standby_power_w,omitempty" yaml:"standby_power_w,omitempty"`
}

// Per-unit fallbacks applied when a battery record leaves a field empty.
const (
	DefaultMaxChargePowerW    = 800.0
	DefaultMaxDischargePowerW = 1200.0
	DefaultRoundTripPct       = 100.0
)
