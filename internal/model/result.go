package model

// RowGroup names one result table.
type RowGroup string

const (
	GroupGain        RowGroup = "gain"
	GroupEconomics   RowGroup = "economics"
	GroupEnvironment RowGroup = "environment"
	GroupLosses      RowGroup = "losses"
	GroupEfficiency  RowGroup = "efficiency"
	GroupBattery     RowGroup = "battery"
)

// RowGroups lists the result tables in display order.
var RowGroups = []RowGroup{GroupGain, GroupEconomics, GroupEnvironment, GroupLosses, GroupEfficiency, GroupBattery}

// Row is one labelled metric, reported without and with the battery.
type Row struct {
	Label          string  `json:"label"`
	Unit           string  `json:"unit,omitempty"`
	WithoutBattery float64 `json:"without_battery"`
	WithBattery    float64 `json:"with_battery"`
}

// Monthly holds one value per calendar month, January first.
type Monthly [12]float64

// Sum adds all twelve months.
func (m Monthly) Sum() float64 {
	var s float64
	for _, v := range m {
		s += v
	}
	return s
}

// Economics summarizes cost recovery over the operating horizon.
type Economics struct {
	HardwareCostEUR   float64 `json:"hardware_cost_eur"`
	InstallCostEUR    float64 `json:"install_cost_eur"`
	SubsidyEUR        float64 `json:"subsidy_eur"`
	TotalCostEUR      float64 `json:"total_cost_eur"`
	SavingsEUR        float64 `json:"savings_eur"`
	BalanceEUR        float64 `json:"balance_eur"`
	LCOECentPerKWh    float64 `json:"lcoe_ct_per_kwh"`
	PaybackYears      float64 `json:"payback_years"`
	CO2AvoidedKg      float64 `json:"co2_avoided_kg"`
	CarKmEquivalent   float64 `json:"car_km_equivalent"`
	AnnualSavingsEUR  float64 `json:"annual_savings_eur"`
	OperatingYears    int     `json:"operating_years"`
	SelfConsumedKWhPA float64 `json:"self_consumed_kwh_pa"`
}

// Losses are percentages relative to DC energy.
type Losses struct {
	InverterPct      float64            `json:"inverter_pct"`
	LowIrradiancePct float64            `json:"low_irradiance_pct"`
	SystemPct        float64            `json:"system_pct"`
	SystemByCause    map[string]float64 `json:"system_by_cause,omitempty"`
	ShadingPct       float64            `json:"shading_pct"`
	TotalPct         float64            `json:"total_pct"`
	TemperaturePct   float64            `json:"temperature_pct"`
	OpticalPct       float64            `json:"optical_pct"`
	ClippedSteps     int                `json:"clipped_steps"`
}

// Efficiency holds the authoritative conversion ratios in percent.
type Efficiency struct {
	InverterPct float64 `json:"inverter_pct"`
	SystemPct   float64 `json:"system_pct"`
	NominalPct  float64 `json:"nominal_pct"`
	StoragePct  float64 `json:"storage_pct"`
}

// Capacity describes the battery energy window in kWh.
type Capacity struct {
	NominalKWh   float64 `json:"nominal_kwh"`
	UsableKWh    float64 `json:"usable_kwh"`
	EffectiveKWh float64 `json:"effective_kwh"`
}

// Energy holds annual means in kWh.
type Energy struct {
	DCKWh             float64 `json:"dc_kwh"`
	DCBatteryKWh      float64 `json:"dc_battery_kwh"`
	ACKWh             float64 `json:"ac_kwh"`
	ACBatteryKWh      float64 `json:"ac_battery_kwh"`
	ProductionKWh     float64 `json:"production_kwh"`
	DirectUseKWh      float64 `json:"direct_use_kwh"`
	BatteryUseKWh     float64 `json:"battery_use_kwh"`
	TotalUseKWh       float64 `json:"total_use_kwh"`
	SurplusKWh        float64 `json:"surplus_kwh"`
	SurplusBatteryKWh float64 `json:"surplus_battery_kwh"`
	LoadKWh           float64 `json:"load_kwh"`
}

// SubArrayDiagnostics reports per sub-array optics and yield.
type SubArrayDiagnostics struct {
	Index            int     `json:"index"`
	MPPTInput        int     `json:"mppt_input"`
	PeakWp           float64 `json:"peak_wp"`
	MeanPOAWm2       float64 `json:"mean_poa_w_m2"`
	IAMLossPct       float64 `json:"iam_loss_pct"`
	DCKWhPerYear     float64 `json:"dc_kwh_per_year"`
	SpecificYieldKWh float64 `json:"specific_yield_kwh_per_kwp"`
}

// MPPTDiagnostics sums the sub-arrays wired to one inverter input.
type MPPTDiagnostics struct {
	Input            int     `json:"input"`
	Wiring           Wiring  `json:"wiring"`
	MixedWiring      bool    `json:"mixed_wiring,omitempty"`
	SubArrays        int     `json:"sub_arrays"`
	Modules          int     `json:"modules"`
	Strings          int     `json:"strings"`
	PeakWp           float64 `json:"peak_wp"`
	DCKWhPerYear     float64 `json:"dc_kwh_per_year"`
	SpecificYieldKWh float64 `json:"specific_yield_kwh_per_kwp"`
}

// Result is the output of one run.
type Result struct {
	RunID      string     `json:"run_id"`
	Units      int        `json:"units"`
	HasStorage bool       `json:"has_storage"`
	SystemType SystemType `json:"system_type"`
	Years      int        `json:"years"`

	MonthlyProductionKWh     Monthly `json:"monthly_production_kwh"`
	MonthlyDirectUseKWh      Monthly `json:"monthly_direct_use_kwh"`
	MonthlyBatteryUseKWh     Monthly `json:"monthly_battery_use_kwh"`
	MonthlySurplusKWh        Monthly `json:"monthly_surplus_kwh"`
	MonthlySurplusBatteryKWh Monthly `json:"monthly_surplus_battery_kwh"`
	MonthlyLoadKWh           Monthly `json:"monthly_load_kwh"`

	YearlyProductionKWh map[int]float64 `json:"yearly_production_kwh"`

	Energy Energy `json:"energy"`

	SelfConsumptionPct        float64 `json:"self_consumption_pct"`
	SelfConsumptionBatteryPct float64 `json:"self_consumption_battery_pct"`
	AutarkyPct                float64 `json:"autarky_pct"`
	AutarkyBatteryPct         float64 `json:"autarky_battery_pct"`

	EconomicsNoBattery Economics  `json:"economics_no_battery"`
	EconomicsBattery   Economics  `json:"economics_battery"`
	Losses             Losses     `json:"losses"`
	Efficiency         Efficiency `json:"efficiency"`
	Capacity           Capacity   `json:"capacity"`

	DisabledMonths []int                 `json:"disabled_months,omitempty"`
	SubArrays      []SubArrayDiagnostics `json:"sub_arrays"`
	MPPTInputs     []MPPTDiagnostics     `json:"mppt_inputs"`

	Rows map[RowGroup][]Row `json:"rows"`
}
