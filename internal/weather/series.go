package weather

import (
	"fmt"
	"slices"
	"time"

	"gonum.org/v1/gonum/interp"
)

// Series is a time-indexed weather table. Irradiance columns are W/m², temperature °C,
// wind m/s. Optional columns are nil when the source does not provide them.
type Series struct {
	Times []time.Time
	Step  time.Duration

	GHI []float64
	DNI []float64
	DHI []float64

	// Plane-of-array components for the orientation the series was requested with.
	POADirect        []float64
	POASkyDiffuse    []float64
	POAGroundDiffuse []float64
	TiltDeg          float64
	AzimuthDeg       float64

	TempAir   []float64
	WindSpeed []float64
}

// Len returns the number of timesteps.
func (s *Series) Len() int { return len(s.Times) }

// HasHorizontal reports whether global, direct and diffuse horizontal irradiance are present.
func (s *Series) HasHorizontal() bool {
	return s.GHI != nil && s.DNI != nil && s.DHI != nil
}

// HasPOA reports whether all three plane-of-array components are present.
func (s *Series) HasPOA() bool {
	return s.POADirect != nil && s.POASkyDiffuse != nil && s.POAGroundDiffuse != nil
}

// Clone returns a deep copy; nil columns stay nil.
func (s *Series) Clone() *Series {
	out := *s
	out.Times = slices.Clone(s.Times)
	for _, col := range out.columns() {
		*col = slices.Clone(*col)
	}
	return &out
}

func (s *Series) columns() []*[]float64 {
	return []*[]float64{
		&s.GHI, &s.DNI, &s.DHI,
		&s.POADirect, &s.POASkyDiffuse, &s.POAGroundDiffuse,
		&s.TempAir, &s.WindSpeed,
	}
}

// Validate checks column lengths and that the index is strictly increasing at Step.
func (s *Series) Validate() error {
	n := len(s.Times)
	for _, col := range s.columns() {
		if *col != nil && len(*col) != n {
			return fmt.Errorf("column length %d does not match %d timestamps", len(*col), n)
		}
	}
	if n > 1 && s.Step <= 0 {
		return fmt.Errorf("step must be positive, got %s", s.Step)
	}
	for i := 1; i < n; i++ {
		if d := s.Times[i].Sub(s.Times[i-1]); d != s.Step {
			return fmt.Errorf("gap at %s: %s between samples, want %s",
				s.Times[i].Format(time.RFC3339), d, s.Step)
		}
	}
	return nil
}

// Interpolate resamples s onto a finer step over its full span, linearly in time.
// A step that is not finer than s.Step returns an unchanged copy.
func Interpolate(s *Series, step time.Duration) (*Series, error) {
	if step <= 0 || step >= s.Step || s.Len() < 2 {
		return s.Clone(), nil
	}

	start, end := s.Times[0], s.Times[s.Len()-1]
	n := int(end.Sub(start)/step) + 1
	xs := make([]float64, s.Len())
	for i, t := range s.Times {
		xs[i] = t.Sub(start).Seconds()
	}

	out := &Series{
		Times:      make([]time.Time, n),
		Step:       step,
		TiltDeg:    s.TiltDeg,
		AzimuthDeg: s.AzimuthDeg,
	}
	for i := range n {
		out.Times[i] = start.Add(time.Duration(i) * step)
	}

	src, dst := s.columns(), out.columns()
	for c := range src {
		if *src[c] == nil {
			continue
		}
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, *src[c]); err != nil {
			return nil, fmt.Errorf("interpolating weather: %w", err)
		}
		col := make([]float64, n)
		for i, t := range out.Times {
			col[i] = pl.Predict(t.Sub(start).Seconds())
		}
		*dst[c] = col
	}
	return out, nil
}
