package scenario

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pvyield_simulator/internal/model"
	"pvyield_simulator/internal/simulator"
)

type fakeSim struct {
	failAt  int
	running atomic.Int32
	peak    atomic.Int32
}

func (f *fakeSim) Run(ctx context.Context, cfg model.Configuration, fn simulator.ProgressFunc) (*model.Result, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	fn(simulator.ProgressStarted)
	if cfg.BatteryUnits == f.failAt {
		return nil, &model.DataSourceError{Source: "fake", Err: errors.New("offline")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fn(simulator.ProgressDone)
	return &model.Result{Units: cfg.BatteryUnits, HasStorage: cfg.BatteryUnits > 0}, nil
}

type recorder struct {
	mu       sync.Mutex
	progress map[int][]int
	results  map[int]*model.Result
}

func newRecorder() *recorder {
	return &recorder{progress: map[int][]int{}, results: map[int]*model.Result{}}
}

func (r *recorder) OnProgress(units, pct int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[units] = append(r.progress[units], pct)
}

func (r *recorder) OnResult(units int, res *model.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[units] = res
}

func config(units int) model.Configuration {
	cfg := model.DefaultConfiguration()
	cfg.BatteryUnits = units
	return cfg
}

func TestRunAll_OneScenarioPerUnitCount(t *testing.T) {
	sim := &fakeSim{failAt: -1}
	rec := newRecorder()
	r := New(sim, WithLimit(2), WithLogger(zaptest.NewLogger(t)))

	batch, err := r.RunAll(context.Background(), config(3), rec)
	require.NoError(t, err)

	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, []int{0, 1, 2, 3}, batch.Units())
	require.Len(t, batch.Results, 4)
	for units, res := range batch.Results {
		assert.Equal(t, units, res.Units)
		assert.Equal(t, units > 0, res.HasStorage)
		assert.Equal(t, []int{simulator.ProgressStarted, simulator.ProgressDone}, rec.progress[units])
		assert.Same(t, res, rec.results[units])
	}
	assert.Equal(t, 3, batch.Config.BatteryUnits)
	assert.LessOrEqual(t, sim.peak.Load(), int32(2))
}

func TestRunAll_NoBattery(t *testing.T) {
	batch, err := New(&fakeSim{failAt: -1}).RunAll(context.Background(), config(0), nil)
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)
	assert.False(t, batch.Results[0].HasStorage)
}

func TestRunAll_FirstErrorAborts(t *testing.T) {
	rec := newRecorder()
	batch, err := New(&fakeSim{failAt: 1}).RunAll(context.Background(), config(3), rec)
	assert.Nil(t, batch)

	var dse *model.DataSourceError
	require.True(t, errors.As(err, &dse))
	assert.Contains(t, err.Error(), "scenario 1")
	assert.NotContains(t, rec.results, 1)
}

func TestRunAll_NegativeUnits(t *testing.T) {
	_, err := New(&fakeSim{failAt: -1}).RunAll(context.Background(), config(-1), nil)
	var cerr *model.ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}

func TestObserverFuncs(t *testing.T) {
	var got []int
	o := ObserverFuncs{Progress: func(units, pct int) { got = append(got, units, pct) }}
	o.OnProgress(2, 50)
	o.OnResult(2, &model.Result{})
	assert.Equal(t, []int{2, 50}, got)
}
