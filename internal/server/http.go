// Package server exposes the diagnostics HTTP surface: health, cache
// status and Prometheus metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"oddsfeed/internal/core"
)

// StatusSource is the part of the cache manager the status endpoint
// reads from.
type StatusSource interface {
	RegisteredCacheNames() []string
	Cache(name string) core.RegisteredCache
	SaveStats() (max, total time.Duration, count int64)
}

// Server wraps the Echo server
type Server struct {
	echo   *echo.Echo
	source StatusSource
}

// New creates the diagnostics HTTP server.
func New(source StatusSource) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{echo: e, source: source}

	e.GET("/health", s.health)
	e.GET("/status", s.status)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse is the /status payload: per-cache item counts plus
// the manager's save timing stats.
type statusResponse struct {
	Caches    map[string]map[string]int `json:"caches"`
	SaveStats saveStats                 `json:"save_stats"`
}

type saveStats struct {
	MaxSaveTime   string `json:"max_save_time"`
	TotalSaveTime string `json:"total_save_time"`
	SaveCount     int64  `json:"save_count"`
}

func (s *Server) status(c echo.Context) error {
	caches := make(map[string]map[string]int)
	for _, name := range s.source.RegisteredCacheNames() {
		if cached := s.source.Cache(name); cached != nil {
			caches[name] = cached.CacheStatus()
		}
	}
	max, total, count := s.source.SaveStats()
	return c.JSON(http.StatusOK, statusResponse{
		Caches: caches,
		SaveStats: saveStats{
			MaxSaveTime:   max.String(),
			TotalSaveTime: total.String(),
			SaveCount:     count,
		},
	})
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
