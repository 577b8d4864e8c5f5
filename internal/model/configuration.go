package model

import (
	"maps"
	"slices"
	"time"
)

type Wiring string

const (
	WiringParallel Wiring = "parallel"
	WiringSeries   Wiring = "series"
)

type ShadingMode string

const (
	ShadingSimple  ShadingMode = "simple"
	ShadingMonthly ShadingMode = "monthly"
)

type ShadingLevel string

const (
	ShadingNone   ShadingLevel = "none"
	ShadingLight  ShadingLevel = "light"
	ShadingMedium ShadingLevel = "medium"
	ShadingHeavy  ShadingLevel = "heavy"
)

// ShadingThresholdDeg maps a qualitative shading level to the sun elevation
// below which direct irradiance is blocked for sun positions in front of the array.
var ShadingThresholdDeg = map[ShadingLevel]float64{
	ShadingNone:   0,
	ShadingLight:  15,
	ShadingMedium: 25,
	ShadingHeavy:  35,
}

type LoadProfile string

const (
	ProfileRetiree LoadProfile = "retiree"
	ProfileWorker  LoadProfile = "worker"
)

// Shading describes obstruction of direct irradiance for one sub-array.
type Shading struct {
	Mode       ShadingMode     `json:"mode" yaml:"mode"`
	Level      ShadingLevel    `json:"level,omitempty" yaml:"level,omitempty"`
	MonthlyPct map[int]float64 `json:"monthly_pct,omitempty" yaml:"monthly_pct,omitempty"`
}

// SubArray is one group of identical modules on a single MPPT input.
type SubArray struct {
	MPPTInput  int     `json:"mppt_input" yaml:"mppt_input"`
	Modules    int     `json:"modules" yaml:"modules"`
	Wiring     Wiring  `json:"wiring" yaml:"wiring"`
	ModuleWp   float64 `json:"module_wp" yaml:"module_wp"`
	TiltDeg    float64 `json:"tilt_deg" yaml:"tilt_deg"`
	AzimuthDeg float64 `json:"azimuth_deg" yaml:"azimuth_deg"` // clockwise from north, 180 = south
	Shading    Shading `json:"shading" yaml:"shading"`
}

// EffectiveWiring defaults an empty wiring to parallel.
func (s SubArray) EffectiveWiring() Wiring {
	if s.Wiring == "" {
		return WiringParallel
	}
	return s.Wiring
}

// Strings is the number of module strings the sub-array feeds into its input:
// one for series wiring, one per module for parallel.
func (s SubArray) Strings() int {
	if s.EffectiveWiring() == WiringSeries {
		return min(s.Modules, 1)
	}
	return s.Modules
}

// PeakWp returns the nameplate DC power of the sub-array.
func (s SubArray) PeakWp() float64 {
	return float64(s.Modules) * s.ModuleWp
}

// Configuration is the full input of one simulation run.
type Configuration struct {
	Latitude        float64 `json:"latitude" yaml:"latitude"`
	Longitude       float64 `json:"longitude" yaml:"longitude"`
	YearStart       int     `json:"year_start" yaml:"year_start"`
	YearEnd         int     `json:"year_end" yaml:"year_end"`
	TimestepMinutes int     `json:"timestep_minutes" yaml:"timestep_minutes"`
	TimeZone        string  `json:"time_zone" yaml:"time_zone"`

	Manufacturer  string `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	SystemName    string `json:"system_name" yaml:"system_name"`
	InverterModel string `json:"inverter_model,omitempty" yaml:"inverter_model,omitempty"`
	BatteryModel  string `json:"battery_model,omitempty" yaml:"battery_model,omitempty"`
	BatteryUnits  int    `json:"battery_units" yaml:"battery_units"`

	SoCMinPct float64 `json:"soc_min_pct" yaml:"soc_min_pct"`
	SoCMaxPct float64 `json:"soc_max_pct" yaml:"soc_max_pct"`

	SubArrays []SubArray         `json:"sub_arrays" yaml:"sub_arrays"`
	LossesPct map[string]float64 `json:"losses_pct" yaml:"losses_pct"`

	AnnualLoadKWh float64     `json:"annual_load_kwh" yaml:"annual_load_kwh"`
	LoadProfile   LoadProfile `json:"load_profile" yaml:"load_profile"`

	CostModuleEUR      float64 `json:"cost_module_eur" yaml:"cost_module_eur"`
	CostInverterEUR    float64 `json:"cost_inverter_eur" yaml:"cost_inverter_eur"`
	CostInstallEUR     float64 `json:"cost_install_eur" yaml:"cost_install_eur"`
	CostBatteryEUR     float64 `json:"cost_battery_eur" yaml:"cost_battery_eur"`
	SubsidyEUR         float64 `json:"subsidy_eur" yaml:"subsidy_eur"`
	PriceEURPerKWh     float64 `json:"price_eur_per_kwh" yaml:"price_eur_per_kwh"`
	PriceEscalationPct float64 `json:"price_escalation_pct" yaml:"price_escalation_pct"`
	OperatingYears     int     `json:"operating_years" yaml:"operating_years"`
	CO2FactorKgPerKWh  float64 `json:"co2_factor_kg_per_kwh" yaml:"co2_factor_kg_per_kwh"`

	OptimizeStorage bool `json:"optimize_storage" yaml:"optimize_storage"`
}

// Loss names used by the default configuration.
const (
	LossCable     = "cable"
	LossSoiling   = "soiling"
	LossMismatch  = "mismatch"
	LossLID       = "lid"
	LossNameplate = "nameplate"
	LossAging     = "aging"
)

// DefaultConfiguration returns a configuration with the stock defaults and no sub-arrays.
func DefaultConfiguration() Configuration {
	return Configuration{
		YearStart:       2020,
		YearEnd:         2023,
		TimestepMinutes: 15,
		TimeZone:        "Europe/Berlin",
		SoCMinPct:       10,
		SoCMaxPct:       100,
		LossesPct: map[string]float64{
			LossCable:     2,
			LossSoiling:   2,
			LossMismatch:  2,
			LossLID:       1,
			LossNameplate: 3,
			LossAging:     2,
		},
		AnnualLoadKWh:      3000,
		LoadProfile:        ProfileRetiree,
		CostModuleEUR:      70,
		CostInverterEUR:    249,
		CostInstallEUR:     80,
		CostBatteryEUR:     599,
		SubsidyEUR:         300,
		PriceEURPerKWh:     0.32,
		PriceEscalationPct: 1.5,
		OperatingYears:     15,
		CO2FactorKgPerKWh:  0.281,
	}
}

// Clone returns a deep copy.
func (c Configuration) Clone() Configuration {
	out := c
	out.SubArrays = make([]SubArray, len(c.SubArrays))
	for i, sa := range c.SubArrays {
		sa.Shading.MonthlyPct = maps.Clone(sa.Shading.MonthlyPct)
		out.SubArrays[i] = sa
	}
	out.LossesPct = maps.Clone(c.LossesPct)
	return out
}

// WithBatteryUnits returns a copy with a different battery unit count.
func (c Configuration) WithBatteryUnits(n int) Configuration {
	out := c.Clone()
	out.BatteryUnits = n
	return out
}

// Years returns the number of simulated calendar years.
func (c Configuration) Years() int {
	return c.YearEnd - c.YearStart + 1
}

// Location resolves TimeZone, defaulting to UTC when empty.
func (c Configuration) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, NewConfigError("time_zone", "unknown zone %q", c.TimeZone)
	}
	return loc, nil
}

// TotalLossPct sums all user-entered system losses.
func (c Configuration) TotalLossPct() float64 {
	var sum float64
	for _, k := range slices.Sorted(maps.Keys(c.LossesPct)) {
		sum += c.LossesPct[k]
	}
	return sum
}

// PeakWp returns the nameplate DC power over all sub-arrays.
func (c Configuration) PeakWp() float64 {
	var sum float64
	for _, sa := range c.SubArrays {
		sum += sa.PeakWp()
	}
	return sum
}

// TotalModules counts modules over all sub-arrays.
func (c Configuration) TotalModules() int {
	n := 0
	for _, sa := range c.SubArrays {
		n += sa.Modules
	}
	return n
}

// Validate checks bounds that do not need the hardware catalogs.
func (c Configuration) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return NewConfigError("latitude", "must be within [-90, 90], got %g", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return NewConfigError("longitude", "must be within [-180, 180], got %g", c.Longitude)
	}
	if c.YearEnd < c.YearStart {
		return NewConfigError("year_end", "must not be before year_start")
	}
	if c.TimestepMinutes <= 0 || c.TimestepMinutes > 60 || 60%c.TimestepMinutes != 0 {
		return NewConfigError("timestep_minutes", "must divide 60, got %d", c.TimestepMinutes)
	}
	if c.SoCMinPct < 0 || c.SoCMaxPct > 100 || c.SoCMinPct >= c.SoCMaxPct {
		return NewConfigError("soc", "need 0 <= min < max <= 100, got %g..%g", c.SoCMinPct, c.SoCMaxPct)
	}
	if c.BatteryUnits < 0 {
		return NewConfigError("battery_units", "must not be negative")
	}
	if c.LoadProfile != ProfileRetiree && c.LoadProfile != ProfileWorker {
		return NewConfigError("load_profile", "unknown profile %q", c.LoadProfile)
	}
	if c.AnnualLoadKWh < 0 {
		return NewConfigError("annual_load_kwh", "must not be negative")
	}
	if c.OperatingYears < 0 {
		return NewConfigError("operating_years", "must not be negative")
	}
	if len(c.SubArrays) == 0 {
		return NewConfigError("sub_arrays", "at least one sub-array is required")
	}
	for i, sa := range c.SubArrays {
		if sa.Modules <= 0 || sa.ModuleWp <= 0 {
			return NewConfigError("sub_arrays", "entry %d needs modules and module_wp > 0", i)
		}
		if sa.TiltDeg < 0 || sa.TiltDeg > 90 {
			return NewConfigError("sub_arrays", "entry %d tilt must be within [0, 90]", i)
		}
		if sa.MPPTInput < 1 {
			return NewConfigError("sub_arrays", "entry %d mppt_input must be >= 1", i)
		}
		if w := sa.EffectiveWiring(); w != WiringParallel && w != WiringSeries {
			return NewConfigError("sub_arrays", "entry %d unknown wiring %q", i, sa.Wiring)
		}
		switch sa.Shading.Mode {
		case "", ShadingSimple:
			if _, ok := ShadingThresholdDeg[sa.Shading.Level]; !ok && sa.Shading.Level != "" {
				return NewConfigError("sub_arrays", "entry %d unknown shading level %q", i, sa.Shading.Level)
			}
		case ShadingMonthly:
			for m, pct := range sa.Shading.MonthlyPct {
				if m < 1 || m > 12 || pct < 0 || pct > 100 {
					return NewConfigError("sub_arrays", "entry %d invalid monthly shading %d=%g", i, m, pct)
				}
			}
		default:
			return NewConfigError("sub_arrays", "entry %d unknown shading mode %q", i, sa.Shading.Mode)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
