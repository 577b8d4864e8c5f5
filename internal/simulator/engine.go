package simulator

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"pvyield_simulator/internal/catalog"
	"pvyield_simulator/internal/inverter"
	"pvyield_simulator/internal/model"
	"pvyield_simulator/internal/solar"
	"pvyield_simulator/internal/weather"
)

// Progress milestones reported by Run.
const (
	ProgressStarted    = 5
	ProgressWeather    = 20
	ProgressDC         = 35
	ProgressConversion = 50
	ProgressBattery    = 70
	ProgressAggregated = 80
	ProgressEconomics  = 90
	ProgressDone       = 100
)

// ProgressFunc receives the completed percentage of a run.
type ProgressFunc func(pct int)

// WeatherFetcher returns a weather series for a request at the given step.
// *weather.Cache satisfies it.
type WeatherFetcher interface {
	Fetch(ctx context.Context, req weather.Request, step time.Duration) (*weather.Series, error)
}

// HardwareResolver looks up and checks the devices named in a configuration.
// *catalog.Catalog satisfies it.
type HardwareResolver interface {
	Resolve(cfg model.Configuration) (catalog.Hardware, error)
}

// Engine runs yield simulations. It holds no per-run state and may be shared
// between goroutines.
type Engine struct {
	hardware HardwareResolver
	weather  WeatherFetcher
	logger   *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger attaches a logger; the default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func New(hw HardwareResolver, wx WeatherFetcher, opts ...Option) *Engine {
	e := &Engine{hardware: hw, weather: wx, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// progress forwards monotonically increasing percentages to fn.
type progress struct {
	fn   ProgressFunc
	last int
}

func (p *progress) report(pct int) {
	if p.fn == nil || pct < p.last {
		return
	}
	p.last = pct
	p.fn(pct)
}

// Run simulates one configuration end to end. Any failure aborts the run and
// no partial result is returned.
func (e *Engine) Run(ctx context.Context, cfg model.Configuration, fn ProgressFunc) (*model.Result, error) {
	runID := uuid.NewString()
	log := e.logger.With(zap.Int("scenario", cfg.BatteryUnits), zap.String("run_id", runID))
	p := &progress{fn: fn}
	start := time.Now()
	p.report(ProgressStarted)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	hw, err := e.hardware.Resolve(cfg)
	if err != nil {
		return nil, err
	}
	sysType := hw.System.EffectiveType()
	log.Debug("system",
		zap.String("system", hw.System.Name),
		zap.String("type", string(sysType)),
		zap.Int("sub_arrays", len(cfg.SubArrays)),
		zap.Float64("peak_wp", cfg.PeakWp()),
	)

	step := time.Duration(cfg.TimestepMinutes) * time.Minute
	series := make([]*weather.Series, len(cfg.SubArrays))
	for i, sa := range cfg.SubArrays {
		req := weather.Request{
			Latitude:   cfg.Latitude,
			Longitude:  cfg.Longitude,
			YearStart:  cfg.YearStart,
			YearEnd:    cfg.YearEnd,
			TiltDeg:    sa.TiltDeg,
			AzimuthDeg: sa.AzimuthDeg,
		}
		s, err := e.weather.Fetch(ctx, req, step)
		if err != nil {
			return nil, fmt.Errorf("fetching weather for sub-array %d: %w", i+1, err)
		}
		series[i] = s
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Debug("weather", zap.Int("steps", series[0].Len()), zap.Duration("step", series[0].Step))
	p.report(ProgressWeather)

	dcModel := solar.NewModel(cfg.Latitude, cfg.Longitude, loc)
	parts := make([]*solar.DC, len(cfg.SubArrays))
	for i, sa := range cfg.SubArrays {
		parts[i], err = dcModel.Compute(series[i], []model.SubArray{sa})
		if err != nil {
			return nil, fmt.Errorf("sub-array %d: %w", i+1, err)
		}
	}
	dc, err := solar.Combine(parts)
	if err != nil {
		return nil, err
	}

	idx := FilterYears(series[0].Times, loc, cfg.YearStart, cfg.YearEnd)
	if len(idx) == 0 {
		return nil, &model.DataError{Reason: fmt.Sprintf("no weather data within %d-%d", cfg.YearStart, cfg.YearEnd)}
	}
	times := make([]time.Time, len(idx))
	for i, j := range idx {
		times[i] = series[0].Times[j]
	}
	dtH := series[0].Step.Hours()
	cal := newCalendar(times, loc)
	years := len(cal.Years())
	dcW := pick(dc.Real, idx)
	log.Debug("dc",
		zap.Int("years", years),
		zap.Int("steps", len(idx)),
		zap.Float64("dc_kwh_per_year", floats.Sum(dcW)*dtH/1000/float64(years)),
	)
	p.report(ProgressDC)

	load, err := LoadSeries(times, loc, cfg.LoadProfile, cfg.AnnualLoadKWh, years, int(series[0].Step.Minutes()))
	if err != nil {
		return nil, err
	}

	inv := inverter.FromHardware(hw.System, hw.Inverter)
	batt := NewBatteryConfig(hw.Battery, cfg.BatteryUnits, cfg.SoCMinPct, cfg.SoCMaxPct)
	stage := StageFor(sysType)
	log.Debug("inverter",
		zap.String("stage", stage.Name()),
		zap.Float64("max_ac_w", inv.MaxACW),
		zap.Int("curve_points", len(inv.Curve.PowerW)),
		zap.Float64("fixed_pct", inv.FixedPct),
		zap.Float64("charger_loss_pct", hw.System.ChargerLossPct()),
	)

	st := stage.Convert(StageInput{
		Times:    times,
		Location: loc,
		DCW:      dcW,
		LoadKWh:  load,
		DtH:      dtH,
		Derate:   1 - cfg.TotalLossPct()/100,
		Inverter: inv,
		Battery:  batt,
		Optimize: cfg.OptimizeStorage,
	})
	p.report(ProgressConversion)

	if batt != nil {
		log.Debug("battery",
			zap.Float64("capacity_kwh", batt.CapacityKWh),
			zap.Float64("max_charge_kw", batt.MaxChargeKW),
			zap.Float64("max_discharge_kw", batt.MaxDischargeKW),
			zap.Float64("round_trip_pct", batt.RoundTripPct),
			zap.Float64("cycles", st.Dispatch.Cycles),
			zap.Float64("final_soc_pct", st.Dispatch.FinalSoCPct),
			zap.Ints("disabled_months", st.DisabledMonths),
		)
	}
	p.report(ProgressBattery)

	res := &model.Result{
		RunID:               runID,
		Units:               cfg.BatteryUnits,
		HasStorage:          batt != nil,
		SystemType:          sysType,
		Years:               years,
		YearlyProductionKWh: cal.YearlySums(st.ProductionKWh),
		DisabledMonths:      st.DisabledMonths,
		Capacity:            batt.Capacity(),
	}
	aggregate(res, cal, st, load, cfg.AnnualLoadKWh)
	yearsF := float64(years)
	res.Energy.DCKWh = st.PVDCKWh / yearsF
	res.Energy.DCBatteryKWh = st.BatteryDCKWh / yearsF
	res.Energy.ACKWh = st.PVACKWh / yearsF
	res.Energy.ACBatteryKWh = st.BatteryACKWh / yearsF
	p.report(ProgressAggregated)

	res.EconomicsNoBattery = Economics(cfg, res.Energy.DirectUseKWh, 0)
	res.EconomicsBattery = Economics(cfg, res.Energy.TotalUseKWh, cfg.BatteryUnits)
	p.report(ProgressEconomics)

	res.Losses = computeLosses(cfg, summarizeDC(dc, idx, dcModel.Params.LowIrradianceWm2), st)
	res.Efficiency = computeEfficiency(st, inv.NominalEfficiency(cfg.PeakWp()))
	res.SubArrays = subArrayDiagnostics(dc, idx, dtH, yearsF)
	res.MPPTInputs = mpptDiagnostics(cfg.SubArrays, res.SubArrays)
	res.Rows = buildRows(res)

	log.Debug("result",
		zap.Float64("production_kwh", res.Energy.ProductionKWh),
		zap.Float64("direct_use_kwh", res.Energy.DirectUseKWh),
		zap.Float64("battery_use_kwh", res.Energy.BatteryUseKWh),
		zap.Float64("self_consumption_pct", res.SelfConsumptionBatteryPct),
	)
	log.Debug("losses",
		zap.Float64("inverter_pct", res.Losses.InverterPct),
		zap.Float64("shading_pct", res.Losses.ShadingPct),
		zap.Float64("low_irradiance_pct", res.Losses.LowIrradiancePct),
		zap.Float64("system_pct", res.Losses.SystemPct),
		zap.Float64("total_pct", res.Losses.TotalPct),
		zap.Int("clipped_steps", res.Losses.ClippedSteps),
	)
	log.Info("run complete", zap.Duration("elapsed", time.Since(start)))
	p.report(ProgressDone)
	return res, nil
}

// aggregate fills the monthly series, annual energy and coverage ratios.
func aggregate(res *model.Result, cal calendar, st StageOutput, load []float64, annualLoadKWh float64) {
	use := addSeries(st.DirectUseKWh, st.BatteryUseKWh)

	res.MonthlyProductionKWh = cal.MonthlyMean(st.ProductionKWh)
	res.MonthlyDirectUseKWh = cal.MonthlyMean(st.DirectUseKWh)
	res.MonthlyBatteryUseKWh = cal.MonthlyMean(st.BatteryUseKWh)
	res.MonthlyLoadKWh = cal.MonthlyMean(load)
	res.MonthlySurplusKWh = surplus(res.MonthlyProductionKWh, res.MonthlyDirectUseKWh)
	res.MonthlySurplusBatteryKWh = surplus(res.MonthlyProductionKWh, cal.MonthlyMean(use))

	e := &res.Energy
	e.ProductionKWh = cal.AnnualMean(st.ProductionKWh)
	e.DirectUseKWh = cal.AnnualMean(st.DirectUseKWh)
	e.BatteryUseKWh = cal.AnnualMean(st.BatteryUseKWh)
	e.TotalUseKWh = e.DirectUseKWh + e.BatteryUseKWh
	e.SurplusKWh = res.MonthlySurplusKWh.Sum()
	e.SurplusBatteryKWh = res.MonthlySurplusBatteryKWh.Sum()
	e.LoadKWh = cal.AnnualMean(load)

	res.SelfConsumptionPct = pct(e.DirectUseKWh, e.ProductionKWh)
	res.SelfConsumptionBatteryPct = pct(e.TotalUseKWh, e.ProductionKWh)
	res.AutarkyPct = pct(e.DirectUseKWh, annualLoadKWh)
	res.AutarkyBatteryPct = pct(e.TotalUseKWh, annualLoadKWh)
}

func subArrayDiagnostics(dc *solar.DC, idx []int, dtH, years float64) []model.SubArrayDiagnostics {
	out := make([]model.SubArrayDiagnostics, len(dc.SubArrays))
	for i, sa := range dc.SubArrays {
		kwh := floats.Sum(pick(sa.Real, idx)) * dtH / 1000 / years
		d := model.SubArrayDiagnostics{
			Index:        sa.Index,
			MPPTInput:    sa.MPPTInput,
			PeakWp:       sa.PeakWp,
			MeanPOAWm2:   sa.MeanPOA,
			IAMLossPct:   sa.IAMLossPct,
			DCKWhPerYear: kwh,
		}
		if sa.PeakWp > 0 {
			d.SpecificYieldKWh = kwh / (sa.PeakWp / 1000)
		}
		out[i] = d
	}
	return out
}

// mpptDiagnostics groups sub-arrays by inverter input. Wiring only changes how
// modules form strings on an input; energy adds up either way.
func mpptDiagnostics(arrays []model.SubArray, subs []model.SubArrayDiagnostics) []model.MPPTDiagnostics {
	byInput := make(map[int]*model.MPPTDiagnostics)
	var inputs []int
	for _, sa := range arrays {
		m, ok := byInput[sa.MPPTInput]
		if !ok {
			m = &model.MPPTDiagnostics{Input: sa.MPPTInput, Wiring: sa.EffectiveWiring()}
			byInput[sa.MPPTInput] = m
			inputs = append(inputs, sa.MPPTInput)
		}
		if sa.EffectiveWiring() != m.Wiring {
			m.MixedWiring = true
		}
		m.SubArrays++
		m.Modules += sa.Modules
		m.Strings += sa.Strings()
	}
	for _, d := range subs {
		if m, ok := byInput[d.MPPTInput]; ok {
			m.PeakWp += d.PeakWp
			m.DCKWhPerYear += d.DCKWhPerYear
		}
	}

	slices.Sort(inputs)
	out := make([]model.MPPTDiagnostics, 0, len(inputs))
	for _, in := range inputs {
		m := byInput[in]
		if m.PeakWp > 0 {
			m.SpecificYieldKWh = m.DCKWhPerYear / (m.PeakWp / 1000)
		}
		out = append(out, *m)
	}
	return out
}
