package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"pvyield_simulator/internal/config"
	"pvyield_simulator/internal/model"
	"pvyield_simulator/internal/report"
	"pvyield_simulator/internal/scenario"
	"pvyield_simulator/internal/ws"
)

// maxConfigBytes bounds a configuration record posted to /api/run.
const maxConfigBytes = 1 << 20

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/health", s.HealthCheckHandler)
	e.GET("/api/catalog", s.CatalogHandler)
	e.GET("/api/defaults", s.DefaultsHandler)
	e.POST("/api/run", s.RunHandler)
	e.GET("/api/runs", s.ListRunsHandler)
	e.GET("/api/runs/:id", s.GetRunHandler)
	if s.deps.Runs != nil {
		e.GET("/ws", echo.WrapHandler(s.deps.Runs))
	}
	if s.frontendDir != "" {
		e.Static("/", s.frontendDir)
	}

	return e
}

type healthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version,omitempty"`
	ActiveRuns   int    `json:"active_runs"`
	StoredRuns   int    `json:"stored_runs"`
	CacheEntries int    `json:"weather_cache_entries"`
	CacheHits    int    `json:"weather_cache_hits"`
	CacheMisses  int    `json:"weather_cache_misses"`
	WSClients    int    `json:"ws_clients"`
	WSDropped    int64  `json:"ws_dropped_messages"`
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res := healthResponse{Status: "ok", Version: s.deps.Version}
	if s.deps.Runs != nil {
		res.ActiveRuns = s.deps.Runs.Active()
		res.WSClients, res.WSDropped = s.deps.Runs.Clients()
	}
	if s.deps.Store != nil {
		res.StoredRuns = s.deps.Store.Len()
	}
	if s.deps.Cache != nil {
		res.CacheEntries = s.deps.Cache.Len()
		res.CacheHits, res.CacheMisses = s.deps.Cache.Stats()
	}
	return c.JSON(http.StatusOK, res)
}

type catalogResponse struct {
	Manufacturers []string         `json:"manufacturers"`
	Systems       []model.PVSystem `json:"systems"`
	Inverters     []model.Inverter `json:"inverters"`
	Batteries     []model.Battery  `json:"batteries"`
}

func (s *Server) CatalogHandler(c echo.Context) error {
	if s.deps.Catalog == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "catalog not loaded")
	}
	cat := s.deps.Catalog
	return c.JSON(http.StatusOK, catalogResponse{
		Manufacturers: cat.Manufacturers(),
		Systems:       cat.Systems(),
		Inverters:     cat.Inverters(),
		Batteries:     cat.Batteries(),
	})
}

func (s *Server) DefaultsHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, model.DefaultConfiguration())
}

type runResponse struct {
	Batch         *scenario.Batch  `json:"batch"`
	Sections      []report.Section `json:"sections"`
	DisabledLabel string           `json:"disabled_label"`
}

// RunHandler simulates the posted configuration for every battery unit count
// and answers once all scenarios are done. Progress is broadcast on /ws.
func (s *Server) RunHandler(c echo.Context) error {
	if s.deps.Runs == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "runner not configured")
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxConfigBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cfg, err := config.Unmarshal(raw, config.FormatJSON)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ws.RunErrorPayload{Kind: ws.ErrKindRequest, Error: err.Error()})
	}

	id := uuid.NewString()
	batch, err := s.deps.Runs.Execute(c.Request().Context(), id, cfg)
	if err != nil {
		s.logger.Info("run rejected", zap.String("run_id", id), zap.Error(err))
		return c.JSON(statusFor(err), ws.ErrorPayload(id, err))
	}
	disabled := report.DisabledMonths(batch.Results)
	return c.JSON(http.StatusOK, runResponse{
		Batch:         batch,
		Sections:      report.MergeRows(batch.Results),
		DisabledLabel: report.DisabledLabel(disabled),
	})
}

func (s *Server) ListRunsHandler(c echo.Context) error {
	if s.deps.Store == nil {
		return c.JSON(http.StatusOK, []any{})
	}
	return c.JSON(http.StatusOK, s.deps.Store.List())
}

func (s *Server) GetRunHandler(c echo.Context) error {
	if s.deps.Store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no such run")
	}
	b, ok := s.deps.Store.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no such run")
	}
	return c.JSON(http.StatusOK, runResponse{
		Batch:         b,
		Sections:      report.MergeRows(b.Results),
		DisabledLabel: report.DisabledLabel(report.DisabledMonths(b.Results)),
	})
}

func statusFor(err error) int {
	var cerr *model.ConfigurationError
	var dse *model.DataSourceError
	var derr *model.DataError
	switch {
	case errors.As(err, &cerr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &dse):
		return http.StatusBadGateway
	case errors.As(err, &derr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
