package simulator

import "pvyield_simulator/internal/model"

func row(label, unit string, without, with float64) model.Row {
	return model.Row{Label: label, Unit: unit, WithoutBattery: without, WithBattery: with}
}

func same(label, unit string, v float64) model.Row {
	return row(label, unit, v, v)
}

// buildRows lays out the result tables shown for a run.
func buildRows(r *model.Result) map[model.RowGroup][]model.Row {
	e := r.Energy
	nb, wb := r.EconomicsNoBattery, r.EconomicsBattery
	grossKWh := e.DCKWh + e.DCBatteryKWh

	return map[model.RowGroup][]model.Row{
		model.GroupGain: {
			same("Annual production", "kWh", e.ProductionKWh),
			row("Surplus (feed-in)", "kWh", e.SurplusKWh, e.SurplusBatteryKWh),
			row("Avoided grid purchase per year", "kWh", e.DirectUseKWh, e.TotalUseKWh),
			row("Self-consumption", "%", r.SelfConsumptionPct, r.SelfConsumptionBatteryPct),
			row("Autarky", "%", r.AutarkyPct, r.AutarkyBatteryPct),
		},
		model.GroupEconomics: {
			row("Annual savings", "EUR", nb.AnnualSavingsEUR, wb.AnnualSavingsEUR),
			row("Total savings", "EUR", nb.SavingsEUR, wb.SavingsEUR),
			row("Investment", "EUR", nb.TotalCostEUR, wb.TotalCostEUR),
			row("Balance", "EUR", nb.BalanceEUR, wb.BalanceEUR),
			row("Cost of energy", "ct/kWh", nb.LCOECentPerKWh, wb.LCOECentPerKWh),
			row("Payback", "years", nb.PaybackYears, wb.PaybackYears),
		},
		model.GroupEnvironment: {
			row("CO2 avoided", "kg", nb.CO2AvoidedKg, wb.CO2AvoidedKg),
			row("Car distance equivalent", "km", nb.CarKmEquivalent, wb.CarKmEquivalent),
		},
		model.GroupLosses: {
			same("Inverter loss", "%", r.Losses.InverterPct),
			same("Low irradiance loss", "%", r.Losses.LowIrradiancePct),
			same("System losses (user)", "%", r.Losses.SystemPct),
			same("Shading", "%", r.Losses.ShadingPct),
			same("Total loss", "%", r.Losses.TotalPct),
		},
		model.GroupEfficiency: {
			same("System efficiency", "%", r.Efficiency.SystemPct),
			same("Inverter efficiency", "%", r.Efficiency.InverterPct),
			same("Nominal inverter efficiency", "%", r.Efficiency.NominalPct),
			same("Storage efficiency", "%", r.Efficiency.StoragePct),
			same("Gross yield", "kWh", grossKWh),
			same("Net yield", "kWh", e.ProductionKWh),
			same("Net yield share", "%", pct(e.ProductionKWh, grossKWh)),
		},
		model.GroupBattery: {
			same("Nominal capacity", "kWh", r.Capacity.NominalKWh),
			same("Usable capacity", "kWh", r.Capacity.UsableKWh),
			same("Effective usable capacity", "kWh", r.Capacity.EffectiveKWh),
		},
	}
}
