package server

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pvyield_simulator/internal/catalog"
	"pvyield_simulator/internal/config"
	"pvyield_simulator/internal/store"
	"pvyield_simulator/internal/ws"
)

// CacheStats reports weather cache usage. *weather.Cache satisfies it.
type CacheStats interface {
	Len() int
	Stats() (hits, misses int)
}

// Deps are the collaborators the HTTP surface exposes.
type Deps struct {
	Catalog *catalog.Catalog
	Runs    *ws.Handler
	Store   *store.Store
	Cache   CacheStats // optional
	Logger  *zap.Logger
	Version string
}

type Server struct {
	port        uint
	httpLog     bool
	frontendDir string
	deps        Deps
	logger      *zap.Logger
}

func New(s config.Settings, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		port:        s.Port,
		httpLog:     s.HTTPLog,
		frontendDir: s.FrontendDir,
		deps:        deps,
		logger:      logger,
	}
}

// HTTPServer wraps the routes in an http.Server. The write timeout leaves room
// for synchronous multi-scenario runs; websocket connections clear it on upgrade.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.RegisterRoutes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute,
	}
}
