package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pvyield_simulator/internal/config"
	"pvyield_simulator/internal/model"
	"pvyield_simulator/internal/report"
	"pvyield_simulator/internal/scenario"
	"pvyield_simulator/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// BatchRunner runs all battery scenarios of a configuration.
// *scenario.Runner satisfies it.
type BatchRunner interface {
	Run(ctx context.Context, id string, cfg model.Configuration, obs scenario.Observer) (*scenario.Batch, error)
}

// Handler manages WebSocket connections and starts scenario batches on request.
// Progress, results and errors of every batch are broadcast to all clients.
type Handler struct {
	hub    *Hub
	runner BatchRunner
	store  *store.Store
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

func NewHandler(hub *Hub, runner BatchRunner, st *store.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:    hub,
		runner: runner,
		store:  st,
		logger: logger,
		active: make(map[string]context.CancelFunc),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}

	client := newClient(h.hub, conn)
	h.hub.Register(client)
	go client.writePump()

	h.sendReady(client)

	// Runs started by this client are canceled when it disconnects.
	h.readPump(r.Context(), client)
}

func (h *Handler) readPump(ctx context.Context, c *Client) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read", zap.Error(err))
			}
			return
		}

		h.handleMessage(ctx, c, msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *Client, msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		h.reply(c, TypeRunError, RunErrorPayload{Kind: ErrKindRequest, Error: "invalid message: " + err.Error()})
		return
	}

	switch env.Type {
	case TypeRunStart:
		var p RunStartPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || len(p.Config) == 0 {
			h.reply(c, TypeRunError, RunErrorPayload{Kind: ErrKindRequest, Error: "run:start needs a config"})
			return
		}
		cfg, err := config.Unmarshal(p.Config, config.FormatJSON)
		if err != nil {
			h.reply(c, TypeRunError, RunErrorPayload{Kind: ErrKindRequest, Error: err.Error()})
			return
		}
		h.Start(ctx, cfg)

	case TypeRunCancel:
		var p RunCancelPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.reply(c, TypeRunError, RunErrorPayload{Kind: ErrKindRequest, Error: err.Error()})
			return
		}
		if !h.Cancel(p.RunID) {
			h.reply(c, TypeRunError, RunErrorPayload{RunID: p.RunID, Kind: ErrKindRequest, Error: "no such run"})
		}

	default:
		h.reply(c, TypeRunError, RunErrorPayload{Kind: ErrKindRequest, Error: "unknown message type " + env.Type})
	}
}

// Start runs a batch in the background and returns its ID.
func (h *Handler) Start(ctx context.Context, cfg model.Configuration) string {
	id := uuid.NewString()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		// Failures are broadcast as run:error.
		_, _ = h.Execute(ctx, id, cfg)
	}()
	return id
}

// Execute runs a batch synchronously, broadcasting its lifecycle and storing
// the finished batch.
func (h *Handler) Execute(ctx context.Context, id string, cfg model.Configuration) (*scenario.Batch, error) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.active[id] = cancel
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.active, id)
		h.mu.Unlock()
		cancel()
	}()

	scenarios := max(cfg.BatteryUnits, 0) + 1
	h.broadcast(TypeRunAccepted, RunAcceptedPayload{RunID: id, Scenarios: scenarios})

	batch, err := h.runner.Run(ctx, id, cfg, NewBridge(h.hub, id, scenarios))
	if err != nil {
		h.logger.Warn("run failed", zap.String("run_id", id), zap.Error(err))
		h.broadcast(TypeRunError, ErrorPayload(id, err))
		return nil, err
	}
	if h.store != nil {
		h.store.Add(batch)
	}

	disabled := report.DisabledMonths(batch.Results)
	h.broadcast(TypeRunComplete, RunCompletePayload{
		RunID:          id,
		ElapsedMs:      batch.Elapsed.Milliseconds(),
		Units:          batch.Units(),
		Sections:       report.MergeRows(batch.Results),
		DisabledMonths: disabled,
		DisabledLabel:  report.DisabledLabel(disabled),
	})
	return batch, nil
}

// Cancel stops a running batch. It reports false for unknown or finished runs.
func (h *Handler) Cancel(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	cancel, ok := h.active[id]
	if ok {
		cancel()
	}
	return ok
}

// Active returns the number of batches in flight.
func (h *Handler) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.active)
}

// Clients reports connected websocket clients and messages dropped on full buffers.
func (h *Handler) Clients() (connected int, dropped int64) {
	return h.hub.ClientCount(), h.hub.Dropped()
}

// Wait blocks until every batch started with Start has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) sendReady(c *Client) {
	var runs []store.Summary
	if h.store != nil {
		runs = h.store.List()
	}
	h.reply(c, TypeReady, ReadyPayload{Runs: runs})
}

func (h *Handler) reply(c *Client, msgType string, payload any) {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		h.logger.Error("marshaling message", zap.String("type", msgType), zap.Error(err))
		return
	}
	c.Send(msg)
}

func (h *Handler) broadcast(msgType string, payload any) {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		h.logger.Error("marshaling message", zap.String("type", msgType), zap.Error(err))
		return
	}
	h.hub.Broadcast(msg)
}
