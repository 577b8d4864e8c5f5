package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvyield_simulator/internal/catalog"
	"pvyield_simulator/internal/config"
	"pvyield_simulator/internal/model"
	"pvyield_simulator/internal/scenario"
	"pvyield_simulator/internal/store"
	"pvyield_simulator/internal/ws"
)

type fakeRunner struct {
	err error
}

func (f fakeRunner) Run(_ context.Context, id string, cfg model.Configuration, obs scenario.Observer) (*scenario.Batch, error) {
	if f.err != nil {
		return nil, f.err
	}
	b := &scenario.Batch{ID: id, Config: cfg, Started: time.Now()}
	for units := 0; units <= cfg.BatteryUnits; units++ {
		res := &model.Result{
			Units: units,
			Rows: map[model.RowGroup][]model.Row{
				model.GroupGain: {{Label: "Annual production", WithoutBattery: 700, WithBattery: 700}},
			},
		}
		obs.OnResult(units, res)
		b.Results = append(b.Results, res)
	}
	return b, nil
}

type fakeCache struct{}

func (fakeCache) Len() int                  { return 3 }
func (fakeCache) Stats() (hits, misses int) { return 5, 3 }

func newTestServer(runErr error) (*Server, *store.Store) {
	st := store.New(0)
	cat := catalog.New(
		[]model.PVSystem{{ID: "mini", Name: "Mini", Manufacturer: "Acme"}},
		[]model.Inverter{{ID: "inv", Model: "Micro"}},
		[]model.Battery{{ID: "b1", Model: "Cube", CapacityWh: 1600}},
	)
	hub := ws.NewHub(nil)
	s := New(config.Settings{Port: 8080}, Deps{
		Catalog: cat,
		Runs:    ws.NewHandler(hub, fakeRunner{err: runErr}, st, nil),
		Store:   st,
		Cache:   fakeCache{},
		Version: "v1.2.3",
	})
	return s, st
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(nil)
	rec := do(t, s.RegisterRoutes(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, "v1.2.3", got.Version)
	assert.Equal(t, 3, got.CacheEntries)
	assert.Equal(t, 5, got.CacheHits)
	assert.Zero(t, got.WSClients)
	assert.Zero(t, got.WSDropped)
}

func TestCatalog(t *testing.T) {
	s, _ := newTestServer(nil)
	rec := do(t, s.RegisterRoutes(), http.MethodGet, "/api/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got catalogResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"Acme"}, got.Manufacturers)
	assert.Len(t, got.Systems, 1)
	assert.Len(t, got.Inverters, 1)
	assert.Len(t, got.Batteries, 1)
}

func TestDefaults(t *testing.T) {
	s, _ := newTestServer(nil)
	rec := do(t, s.RegisterRoutes(), http.MethodGet, "/api/defaults", "")
	require.Equal(t, http.StatusOK, rec.Code)

	cfg, err := config.Unmarshal(rec.Body.Bytes(), config.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfiguration().TimestepMinutes, cfg.TimestepMinutes)
}

func TestRun_StoresBatch(t *testing.T) {
	s, st := newTestServer(nil)
	h := s.RegisterRoutes()

	rec := do(t, h, http.MethodPost, "/api/run", `{"system_name":"mini","battery_units":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Batch)
	assert.Len(t, got.Batch.Results, 2)
	assert.Equal(t, "not needed", got.DisabledLabel)
	require.NotEmpty(t, got.Sections)
	assert.Equal(t, []float64{700, 700}, got.Sections[0].Rows[0].Values)
	assert.Equal(t, 1, st.Len())

	rec = do(t, h, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []store.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, got.Batch.ID, list[0].ID)

	rec = do(t, h, http.MethodGet, "/api/runs/"+got.Batch.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		runErr error
		body   string
		status int
		kind   string
	}{
		{"malformed", nil, `{"latitude":`, http.StatusBadRequest, ws.ErrKindRequest},
		{"unknown field", nil, `{"colour":"red"}`, http.StatusBadRequest, ws.ErrKindRequest},
		{"configuration", model.NewConfigError("system_name", "unknown"), `{}`, http.StatusUnprocessableEntity, ws.ErrKindConfiguration},
		{"weather", fmt.Errorf("scenario 0: %w", &model.DataSourceError{Source: "pvgis", Err: errors.New("503")}), `{}`, http.StatusBadGateway, ws.ErrKindDataSource},
		{"data", &model.DataError{Reason: "empty"}, `{}`, http.StatusUnprocessableEntity, ws.ErrKindData},
		{"internal", errors.New("boom"), `{}`, http.StatusInternalServerError, ws.ErrKindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, st := newTestServer(tt.runErr)
			rec := do(t, s.RegisterRoutes(), http.MethodPost, "/api/run", tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var got ws.RunErrorPayload
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.kind, got.Kind)
			assert.Zero(t, st.Len())
		})
	}
}

func TestHTTPServer(t *testing.T) {
	s, _ := newTestServer(nil)
	srv := s.HTTPServer()
	assert.Equal(t, ":8080", srv.Addr)
	assert.NotNil(t, srv.Handler)
	assert.Greater(t, srv.WriteTimeout, time.Minute)
}
