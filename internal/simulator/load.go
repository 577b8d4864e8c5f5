package simulator

import (
	"time"

	"gonum.org/v1/gonum/floats"

	"pvyield_simulator/internal/model"
)

// Hourly shares of daily household consumption, normalized on use.
var (
	dailyRetiree = [24]float64{
		0.04, 0.04, 0.04, 0.04, 0.05, 0.06, 0.07, 0.08, 0.10, 0.10, 0.10, 0.10,
		0.10, 0.08, 0.07, 0.06, 0.05, 0.05, 0.04, 0.04, 0.04, 0.04, 0.04, 0.04,
	}
	dailyWorker = [24]float64{
		0.04, 0.04, 0.04, 0.04, 0.06, 0.08, 0.10, 0.10, 0.08, 0.06, 0.04, 0.04,
		0.04, 0.04, 0.04, 0.04, 0.06, 0.08, 0.10, 0.10, 0.08, 0.06, 0.04, 0.04,
	}
	// January first.
	monthlyShare = [12]float64{
		0.106, 0.096, 0.087, 0.076, 0.063, 0.053, 0.054, 0.062, 0.072, 0.091, 0.100, 0.114,
	}
)

func normalized(w []float64) []float64 {
	out := make([]float64, len(w))
	copy(out, w)
	if s := floats.Sum(out); s > 0 {
		floats.Scale(1/s, out)
	}
	return out
}

// hourlyProfile returns the normalized 24 hour shares of a profile.
func hourlyProfile(p model.LoadProfile) ([]float64, error) {
	switch p {
	case model.ProfileRetiree:
		return normalized(dailyRetiree[:]), nil
	case model.ProfileWorker:
		return normalized(dailyWorker[:]), nil
	default:
		return nil, model.NewConfigError("load_profile", "unknown profile %q", p)
	}
}

// LoadSeries distributes annualKWh × years over the local timestamps of a run
// with monthly and hourly weights, spread evenly within each hour. The result
// is kWh per step and sums to annualKWh × years.
func LoadSeries(times []time.Time, loc *time.Location, profile model.LoadProfile, annualKWh float64, years, stepMinutes int) ([]float64, error) {
	hourly, err := hourlyProfile(profile)
	if err != nil {
		return nil, err
	}
	if stepMinutes <= 0 {
		return nil, model.NewConfigError("timestep_minutes", "must be positive")
	}
	monthly := normalized(monthlyShare[:])
	perHour := 60 / float64(stepMinutes)

	w := make([]float64, len(times))
	for i, t := range times {
		lt := t.In(loc)
		w[i] = monthly[lt.Month()-1] * hourly[lt.Hour()] / perHour
	}
	total := floats.Sum(w)
	if total <= 0 {
		return w, nil
	}
	floats.Scale(annualKWh*float64(years)/total, w)
	return w, nil
}
