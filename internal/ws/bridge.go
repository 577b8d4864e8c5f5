package ws

import (
	"sync"

	"go.uber.org/zap"

	"pvyield_simulator/internal/model"
	"pvyield_simulator/internal/simulator"
)

// Bridge implements scenario.Observer for one batch and broadcasts its
// events to the WebSocket hub.
type Bridge struct {
	hub    *Hub
	runID  string
	logger *zap.Logger

	mu      sync.Mutex
	percent []int // latest progress per unit count
	overall int
}

func NewBridge(hub *Hub, runID string, scenarios int) *Bridge {
	return &Bridge{
		hub:     hub,
		runID:   runID,
		logger:  hub.logger.With(zap.String("run_id", runID)),
		percent: make([]int, scenarios),
	}
}

func (b *Bridge) OnProgress(units, pct int) {
	b.mu.Lock()
	if units >= 0 && units < len(b.percent) {
		b.percent[units] = pct
	}
	b.overall = max(b.overall, b.mean())
	overall := b.overall
	b.mu.Unlock()

	b.broadcast(TypeRunProgress, RunProgressPayload{
		RunID:   b.runID,
		Units:   units,
		Percent: pct,
		Overall: overall,
	})
}

func (b *Bridge) OnResult(units int, res *model.Result) {
	b.broadcast(TypeRunResult, RunResultPayload{RunID: b.runID, Units: units, Result: res})
}

// Overall returns the progress over all scenarios, never decreasing.
func (b *Bridge) Overall() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overall
}

func (b *Bridge) mean() int {
	if len(b.percent) == 0 {
		return simulator.ProgressDone
	}
	sum := 0
	for _, p := range b.percent {
		sum += p
	}
	return sum / len(b.percent)
}

func (b *Bridge) broadcast(msgType string, payload any) {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		b.logger.Error("marshaling message", zap.String("type", msgType), zap.Error(err))
		return
	}
	b.hub.Broadcast(msg)
}
