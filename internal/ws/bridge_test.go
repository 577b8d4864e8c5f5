package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvyield_simulator/internal/model"
	"pvyield_simulator/internal/simulator"
)

func newTestBridge(scenarios int) (*Bridge, *Client) {
	hub := NewHub(nil)
	client := &Client{hub: hub, send: make(chan []byte, 256)}
	hub.Register(client)
	bridge := NewBridge(hub, "run-1", scenarios)
	return bridge, client
}

func receiveEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	msg := <-c.send
	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	return env
}

func TestBridge_OnProgress(t *testing.T) {
	bridge, client := newTestBridge(2)

	bridge.OnProgress(0, simulator.ProgressDone)

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeRunProgress, env.Type)

	var p RunProgressPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "run-1", p.RunID)
	assert.Equal(t, 0, p.Units)
	assert.Equal(t, 100, p.Percent)
	assert.Equal(t, 50, p.Overall)
}

func TestBridge_OverallNeverDecreases(t *testing.T) {
	bridge, client := newTestBridge(2)

	bridge.OnProgress(0, 80)
	bridge.OnProgress(1, 20)
	assert.Equal(t, 50, bridge.Overall())

	// A late, lower report from one scenario must not move overall back.
	bridge.OnProgress(0, 40)
	assert.Equal(t, 50, bridge.Overall())

	bridge.OnProgress(0, 100)
	bridge.OnProgress(1, 100)
	assert.Equal(t, 100, bridge.Overall())

	prev := 0
	for range 5 {
		var p RunProgressPayload
		require.NoError(t, json.Unmarshal(receiveEnvelope(t, client).Payload, &p))
		assert.GreaterOrEqual(t, p.Overall, prev)
		prev = p.Overall
	}
}

func TestBridge_OnResult(t *testing.T) {
	bridge, client := newTestBridge(3)

	bridge.OnResult(2, &model.Result{Units: 2, HasStorage: true, Energy: model.Energy{ProductionKWh: 812.5}})

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeRunResult, env.Type)

	var p RunResultPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "run-1", p.RunID)
	assert.Equal(t, 2, p.Units)
	require.NotNil(t, p.Result)
	assert.True(t, p.Result.HasStorage)
	assert.InDelta(t, 812.5, p.Result.Energy.ProductionKWh, 0.001)
}
