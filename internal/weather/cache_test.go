package weather

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pvyield_simulator/internal/model"
)

var t0 = time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)

func hourlySeries(n int) *Series {
	s := &Series{
		Times:   make([]time.Time, n),
		Step:    time.Hour,
		GHI:     make([]float64, n),
		DNI:     make([]float64, n),
		DHI:     make([]float64, n),
		TempAir: make([]float64, n),
	}
	for i := range n {
		s.Times[i] = t0.Add(time.Duration(i) * time.Hour)
		s.GHI[i] = float64(i * 100)
		s.DNI[i] = float64(i * 50)
		s.DHI[i] = float64(i * 10)
		s.TempAir[i] = 20
	}
	return s
}

type fakeSource struct {
	calls   atomic.Int32
	err     error
	release chan struct{}
	last    Request
	mu      sync.Mutex
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context, req Request) (*Series, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return hourlySeries(4), nil
}

var req = Request{Latitude: 52.520008, Longitude: 13.404954, YearStart: 2020, YearEnd: 2021, TiltDeg: 30.04, AzimuthDeg: 180}

func TestCache_HitReturnsIndependentCopies(t *testing.T) {
	src := &fakeSource{}
	c := NewCache(src, WithLogger(zaptest.NewLogger(t)))

	a, err := c.Fetch(context.Background(), req, time.Hour)
	require.NoError(t, err)
	b, err := c.Fetch(context.Background(), req, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, a, b)
	assert.NotSame(t, a, b)

	a.GHI[1] = -1
	c2, err := c.Fetch(context.Background(), req, time.Hour)
	require.NoError(t, err)
	assert.InDelta(t, 100, c2.GHI[1], 1e-9)
	assert.InDelta(t, 100, b.GHI[1], 1e-9)

	hits, misses := c.Stats()
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, misses)
}

func TestCache_RoundingCollapsesKeys(t *testing.T) {
	src := &fakeSource{}
	c := NewCache(src)

	near := req
	near.Latitude += 0.00002
	near.TiltDeg = 29.96

	_, err := c.Fetch(context.Background(), req, time.Hour)
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), near, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, 1, c.Len())
	assert.InDelta(t, 52.52, src.last.Latitude, 1e-12)
	assert.InDelta(t, 30.0, src.last.TiltDeg, 1e-12)

	far := req
	far.AzimuthDeg = 180.2
	_, err = c.Fetch(context.Background(), far, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestCache_CustomPrecision(t *testing.T) {
	src := &fakeSource{}
	c := NewCache(src, WithPrecision(Precision{LatLonDecimals: 1, AngleDecimals: 0}))

	other := req
	other.Latitude = 52.54
	other.TiltDeg = 30.4
	_, err := c.Fetch(context.Background(), req, time.Hour)
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), other, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCache_ConcurrentMissFetchesOnce(t *testing.T) {
	src := &fakeSource{release: make(chan struct{})}
	c := NewCache(src)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*Series, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.Fetch(context.Background(), req, time.Hour)
			assert.NoError(t, err)
			results[i] = s
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for i := 1; i < n; i++ {
		assert.NotSame(t, results[0], results[i])
		assert.Equal(t, results[0].GHI, results[i].GHI)
	}
}

func TestCache_CanceledCallerDoesNotFailSharedFetch(t *testing.T) {
	src := &fakeSource{release: make(chan struct{})}
	c := NewCache(src)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctxA, req, time.Hour)
		errA <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		s   *Series
		err error
	}
	resB := make(chan result, 1)
	go func() {
		s, err := c.Fetch(context.Background(), req, time.Hour)
		resB <- result{s, err}
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(src.release)
	got := <-resB
	require.NoError(t, got.err)
	assert.Equal(t, 4, got.s.Len())
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCache_SourceErrorIsDataSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	c := NewCache(src)

	_, err := c.Fetch(context.Background(), req, time.Hour)
	var dse *model.DataSourceError
	require.True(t, errors.As(err, &dse))
	assert.Equal(t, "fake", dse.Source)
	assert.Equal(t, 0, c.Len())
}

func TestCache_Interpolates(t *testing.T) {
	c := NewCache(&fakeSource{})

	s, err := c.Fetch(context.Background(), req, 15*time.Minute)
	require.NoError(t, err)

	// 4 hourly samples span 3h => 13 quarter-hour samples
	require.Equal(t, 13, s.Len())
	assert.Equal(t, 15*time.Minute, s.Step)
	assert.InDelta(t, 25, s.GHI[1], 1e-9)
	assert.InDelta(t, 150, s.GHI[6], 1e-9)
	assert.InDelta(t, 300, s.GHI[12], 1e-9)
	assert.Nil(t, s.WindSpeed)
	require.NoError(t, s.Validate())

	hourly, err := c.Fetch(context.Background(), req, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 4, hourly.Len())
}

func TestCache_Clear(t *testing.T) {
	src := &fakeSource{}
	c := NewCache(src)
	_, err := c.Fetch(context.Background(), req, time.Hour)
	require.NoError(t, err)
	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, err = c.Fetch(context.Background(), req, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestSeries_Validate(t *testing.T) {
	s := hourlySeries(3)
	require.NoError(t, s.Validate())

	gap := hourlySeries(3)
	gap.Times[2] = gap.Times[2].Add(time.Hour)
	assert.Error(t, gap.Validate())

	short := hourlySeries(3)
	short.DNI = short.DNI[:2]
	assert.Error(t, short.Validate())
}
