package scenario

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pvyield_simulator/internal/model"
	"pvyield_simulator/internal/simulator"
)

// Simulator runs one configuration. *simulator.Engine satisfies it.
type Simulator interface {
	Run(ctx context.Context, cfg model.Configuration, fn simulator.ProgressFunc) (*model.Result, error)
}

// Observer receives scenario events. Scenarios may run in parallel, so
// implementations must be safe for concurrent use.
type Observer interface {
	OnProgress(units, pct int)
	OnResult(units int, res *model.Result)
}

// Batch is the outcome of running one configuration for every unit count
// from 0 to its BatteryUnits.
type Batch struct {
	ID      string              `json:"id"`
	Config  model.Configuration `json:"config"`
	Results []*model.Result     `json:"results"` // indexed by unit count
	Started time.Time           `json:"started"`
	Elapsed time.Duration       `json:"elapsed"`
}

// Units returns the scenario unit counts in ascending order.
func (b *Batch) Units() []int {
	out := make([]int, len(b.Results))
	for i := range out {
		out[i] = i
	}
	return out
}

// Runner fans a configuration out into battery unit scenarios.
type Runner struct {
	sim    Simulator
	limit  int
	logger *zap.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLimit bounds the number of scenarios simulated at once.
func WithLimit(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.limit = n
		}
	}
}

// WithLogger attaches a logger; the default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func New(sim Simulator, opts ...Option) *Runner {
	r := &Runner{sim: sim, limit: 1, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunAll simulates cfg.WithBatteryUnits(n) for n = 0..cfg.BatteryUnits
// under a fresh batch ID.
func (r *Runner) RunAll(ctx context.Context, cfg model.Configuration, obs Observer) (*Batch, error) {
	return r.Run(ctx, uuid.NewString(), cfg, obs)
}

// Run is RunAll with a caller-chosen batch ID. The first failing scenario
// cancels the rest and its error is returned.
func (r *Runner) Run(ctx context.Context, id string, cfg model.Configuration, obs Observer) (*Batch, error) {
	if cfg.BatteryUnits < 0 {
		return nil, model.NewConfigError("battery_units", "must not be negative")
	}
	if obs == nil {
		obs = nopObserver{}
	}

	batch := &Batch{
		ID:      id,
		Config:  cfg.Clone(),
		Results: make([]*model.Result, cfg.BatteryUnits+1),
		Started: time.Now(),
	}
	log := r.logger.With(zap.String("batch_id", batch.ID))
	log.Info("batch started",
		zap.Int("scenarios", len(batch.Results)),
		zap.Int("parallel", r.limit))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	var mu sync.Mutex
	for units := range batch.Results {
		g.Go(func() error {
			start := time.Now()
			res, err := r.sim.Run(gctx, cfg.WithBatteryUnits(units), func(pct int) {
				obs.OnProgress(units, pct)
			})
			if err != nil {
				log.Warn("scenario failed", zap.Int("scenario", units), zap.Error(err))
				return fmt.Errorf("scenario %d: %w", units, err)
			}
			log.Info("scenario done",
				zap.Int("scenario", units),
				zap.Duration("elapsed", time.Since(start)))

			mu.Lock()
			batch.Results[units] = res
			mu.Unlock()
			obs.OnResult(units, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch.Elapsed = time.Since(batch.Started)
	log.Info("batch complete", zap.Duration("elapsed", batch.Elapsed))
	return batch, nil
}

type nopObserver struct{}

func (nopObserver) OnProgress(int, int)         {}
func (nopObserver) OnResult(int, *model.Result) {}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Progress func(units, pct int)
	Result   func(units int, res *model.Result)
}

func (o ObserverFuncs) OnProgress(units, pct int) {
	if o.Progress != nil {
		o.Progress(units, pct)
	}
}

func (o ObserverFuncs) OnResult(units int, res *model.Result) {
	if o.Result != nil {
		o.Result(units, res)
	}
}
