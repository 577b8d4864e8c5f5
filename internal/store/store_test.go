package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvyield_simulator/internal/model"
	"pvyield_simulator/internal/scenario"
)

var startTime = time.Date(2024, 11, 21, 12, 0, 0, 0, time.UTC)

func makeBatch(id string, offset time.Duration, units int) *scenario.Batch {
	cfg := model.DefaultConfiguration()
	cfg.SystemName = "mini"
	cfg.BatteryUnits = units
	results := make([]*model.Result, units+1)
	for i := range results {
		results[i] = &model.Result{Units: i}
	}
	return &scenario.Batch{ID: id, Config: cfg, Results: results, Started: startTime.Add(offset)}
}

func TestStore_AddAndGet(t *testing.T) {
	s := New(0)
	s.Add(makeBatch("a", 0, 2))

	b, ok := s.Get("a")
	require.True(t, ok)
	assert.Len(t, b.Results, 3)
	assert.Equal(t, "mini", b.Config.SystemName)

	_, ok = s.Get("nonexistent")
	assert.False(t, ok)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New(0)
	s.Add(makeBatch("a", 0, 1))

	b, _ := s.Get("a")
	b.Results[0] = nil
	b.Config.LossesPct["cable"] = 99

	again, _ := s.Get("a")
	assert.NotNil(t, again.Results[0])
	assert.InDelta(t, 2, again.Config.LossesPct["cable"], 1e-9)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := New(0)
	s.Add(makeBatch("b", time.Hour, 0))
	s.Add(makeBatch("a", 0, 3))
	s.Add(makeBatch("c", 2*time.Hour, 1))

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, "a", list[2].ID)
	assert.Equal(t, 4, list[2].Scenarios)
}

func TestStore_ReplaceSameID(t *testing.T) {
	s := New(0)
	s.Add(makeBatch("a", 0, 1))
	s.Add(makeBatch("a", time.Hour, 2))

	assert.Equal(t, 1, s.Len())
	b, _ := s.Get("a")
	assert.Len(t, b.Results, 3)
}

func TestStore_EvictsOldest(t *testing.T) {
	s := New(2)
	s.Add(makeBatch("a", 0, 0))
	s.Add(makeBatch("b", time.Hour, 0))
	s.Add(makeBatch("c", 2*time.Hour, 0))

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("a")
	assert.False(t, ok)
	_, ok = s.Get("c")
	assert.True(t, ok)
}

func TestStore_StartedBetween(t *testing.T) {
	s := New(0)
	for i, id := range []string{"a", "b", "c", "d"} {
		s.Add(makeBatch(id, time.Duration(i)*time.Hour, 0))
	}

	got := s.StartedBetween(startTime.Add(time.Hour), startTime.Add(3*time.Hour))
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	assert.Nil(t, s.StartedBetween(startTime.Add(10*time.Hour), startTime.Add(11*time.Hour)))
}

func TestStore_AddNil(t *testing.T) {
	s := New(0)
	s.Add(nil)
	assert.Zero(t, s.Len())
}
