package catalog

import "pvyield_simulator/internal/model"

// Hardware is the set of catalog records one run operates on.
type Hardware struct {
	System   model.PVSystem
	Inverter *model.Inverter // nil when the system converts itself
	Battery  *model.Battery  // nil when no storage takes part in the run
}

// MPPTInputs returns the input count of the converting device, 0 when unknown.
func (h Hardware) MPPTInputs() int {
	if h.Inverter != nil && h.Inverter.MPPTInputs > 0 {
		return h.Inverter.MPPTInputs
	}
	return h.System.MPPTInputs
}

// Resolve looks up every record referenced by cfg and checks that they fit together.
func (c *Catalog) Resolve(cfg model.Configuration) (Hardware, error) {
	sys, err := c.System(cfg.SystemName, cfg.Manufacturer)
	if err != nil {
		return Hardware{}, err
	}
	switch sys.EffectiveType() {
	case model.SystemInverter, model.SystemHybrid, model.SystemChargerOnly:
	default:
		return Hardware{}, model.NewConfigError("system_name", "system %q has unknown type %q", sys.Name, sys.Type)
	}
	hw := Hardware{System: sys}

	if cfg.InverterModel != "" && !sys.InverterIntegrated {
		inv, err := c.Inverter(cfg.InverterModel)
		if err != nil {
			return Hardware{}, err
		}
		if !sys.SupportsInverter(inv.ID) {
			return Hardware{}, model.NewConfigError("inverter_model", "inverter %q is not supported by %q", inv.Model, sys.Name)
		}
		hw.Inverter = &inv
	}

	if cfg.BatteryUnits > 0 {
		if cfg.BatteryModel == "" {
			return Hardware{}, model.NewConfigError("battery_model", "required when battery_units > 0")
		}
		bat, err := c.Battery(cfg.BatteryModel)
		if err != nil {
			return Hardware{}, err
		}
		if !sys.SupportsBattery(bat.ID) {
			return Hardware{}, model.NewConfigError("battery_model", "battery %q is not supported by %q", bat.Model, sys.Name)
		}
		if bat.CapacityWh <= 0 {
			return Hardware{}, model.NewConfigError("battery_model", "battery %q has no capacity", bat.Model)
		}
		hw.Battery = &bat
	}

	if n := hw.MPPTInputs(); n > 0 {
		for i, sa := range cfg.SubArrays {
			if sa.MPPTInput > n {
				return Hardware{}, model.NewConfigError("sub_arrays",
					"entry %d uses mppt input %d but the device has %d", i, sa.MPPTInput, n)
			}
		}
	}
	return hw, nil
}
