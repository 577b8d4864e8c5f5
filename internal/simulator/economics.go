package simulator

import (
	"math"

	"pvyield_simulator/internal/model"
)

// CarKgCO2PerKm is the average passenger car emission used for the distance equivalent.
const CarKgCO2PerKm = 0.173

// EscalatedCashflow is the total value of kwh per year over years at price,
// with the price rising by escPct per year. Without escalation it reduces to
// kwh·price·years.
func EscalatedCashflow(kwh, price, escPct float64, years int) float64 {
	e := escPct / 100
	n := float64(years)
	if e == 0 {
		return kwh * price * n
	}
	return kwh * price * (math.Pow(1+e, n) - 1) / e
}

// Economics evaluates cost recovery for selfConsumedKWh per year with the
// given number of battery units installed.
func Economics(cfg model.Configuration, selfConsumedKWh float64, units int) model.Economics {
	hardware := float64(cfg.TotalModules())*cfg.CostModuleEUR + cfg.CostInverterEUR +
		cfg.CostBatteryEUR*float64(units)
	total := hardware + cfg.CostInstallEUR - cfg.SubsidyEUR
	years := float64(cfg.OperatingYears)

	e := model.Economics{
		HardwareCostEUR:   hardware,
		InstallCostEUR:    cfg.CostInstallEUR,
		SubsidyEUR:        cfg.SubsidyEUR,
		TotalCostEUR:      total,
		SavingsEUR:        EscalatedCashflow(selfConsumedKWh, cfg.PriceEURPerKWh, cfg.PriceEscalationPct, cfg.OperatingYears),
		AnnualSavingsEUR:  selfConsumedKWh * cfg.PriceEURPerKWh,
		OperatingYears:    cfg.OperatingYears,
		SelfConsumedKWhPA: selfConsumedKWh,
		CO2AvoidedKg:      selfConsumedKWh * years * cfg.CO2FactorKgPerKWh,
	}
	e.BalanceEUR = e.SavingsEUR - total
	e.CarKmEquivalent = e.CO2AvoidedKg / CarKgCO2PerKm
	if lifetime := selfConsumedKWh * years; lifetime > 0 {
		e.LCOECentPerKWh = total / lifetime * 100
	}
	if annual := selfConsumedKWh * cfg.PriceEURPerKWh; annual > 0 {
		e.PaybackYears = total / annual
	}
	return e
}
