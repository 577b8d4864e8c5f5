package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"pvyield_simulator/internal/model"
)

// Request identifies one hourly weather series.
type Request struct {
	Latitude   float64
	Longitude  float64
	YearStart  int
	YearEnd    int
	TiltDeg    float64
	AzimuthDeg float64 // clockwise from north
}

// Source retrieves hourly weather for a request.
type Source interface {
	Name() string
	Fetch(ctx context.Context, req Request) (*Series, error)
}

// Precision is the number of decimals request coordinates and angles are rounded to
// before they form a cache key. Requests that agree after rounding share one entry.
type Precision struct {
	LatLonDecimals int
	AngleDecimals  int
}

// DefaultPrecision keys by ~11 m of location and 0.1° of orientation.
var DefaultPrecision = Precision{LatLonDecimals: 4, AngleDecimals: 1}

// Round applies the precision to a request.
func (p Precision) Round(r Request) Request {
	return Request{
		Latitude:   roundTo(r.Latitude, p.LatLonDecimals),
		Longitude:  roundTo(r.Longitude, p.LatLonDecimals),
		YearStart:  r.YearStart,
		YearEnd:    r.YearEnd,
		TiltDeg:    roundTo(r.TiltDeg, p.AngleDecimals),
		AzimuthDeg: roundTo(r.AzimuthDeg, p.AngleDecimals),
	}
}

func roundTo(v float64, decimals int) float64 {
	f := math.Pow(10, float64(decimals))
	return math.Round(v*f) / f
}

func (r Request) key() string {
	return fmt.Sprintf("%g|%g|%d|%d|%g|%g", r.Latitude, r.Longitude, r.YearStart, r.YearEnd, r.TiltDeg, r.AzimuthDeg)
}

// Cache holds fetched series for the process lifetime. Callers always receive
// an independent copy; concurrent misses for one key trigger a single fetch.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Series
	group   singleflight.Group

	source    Source
	precision Precision
	logger    *zap.Logger

	hits, misses int
}

// Option customizes a Cache.
type Option func(*Cache)

// WithPrecision overrides DefaultPrecision.
func WithPrecision(p Precision) Option {
	return func(c *Cache) { c.precision = p }
}

// WithLogger attaches a logger; the default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

func NewCache(source Source, opts ...Option) *Cache {
	c := &Cache{
		entries:   make(map[string]*Series),
		source:    source,
		precision: DefaultPrecision,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the series for req, resampled to step when step is finer than hourly.
func (c *Cache) Fetch(ctx context.Context, req Request, step time.Duration) (*Series, error) {
	rounded := c.precision.Round(req)
	key := rounded.key()

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		c.count(true)
		c.logger.Debug("weather cache hit", zap.String("key", key))
	} else {
		c.count(false)
		// The flight outlives any single caller; sources bound it with their own timeout.
		flight := c.group.DoChan(key, func() (any, error) {
			return c.load(context.WithoutCancel(ctx), key, rounded)
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-flight:
			if res.Err != nil {
				return nil, res.Err
			}
			cached = res.Val.(*Series)
			c.logger.Debug("weather cache miss", zap.String("key", key), zap.Bool("shared", res.Shared))
		}
	}

	out, err := Interpolate(cached, step)
	if err != nil {
		return nil, &model.DataError{Reason: err.Error()}
	}
	return out, nil
}

func (c *Cache) load(ctx context.Context, key string, req Request) (*Series, error) {
	c.mu.RLock()
	if s, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return s, nil
	}
	c.mu.RUnlock()

	start := time.Now()
	s, err := c.source.Fetch(ctx, req)
	if err != nil {
		var dse *model.DataSourceError
		var de *model.DataError
		if errors.As(err, &dse) || errors.As(err, &de) {
			return nil, err
		}
		return nil, &model.DataSourceError{Source: c.source.Name(), Err: err}
	}
	if err := s.Validate(); err != nil {
		return nil, &model.DataSourceError{Source: c.source.Name(), Err: err}
	}

	c.mu.Lock()
	c.entries[key] = s
	c.mu.Unlock()

	c.logger.Info("weather fetched",
		zap.String("source", c.source.Name()),
		zap.String("key", key),
		zap.Int("samples", s.Len()),
		zap.Duration("took", time.Since(start)))
	return s, nil
}

func (c *Cache) count(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts since creation or the last Clear.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Series)
	c.hits, c.misses = 0, 0
}
