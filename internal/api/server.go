// Package api exposes a read-only status surface over HTTP. It observes the
// engine; it can never place or close orders, and a failure to serve never
// affects trading.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"contrarian-trading-bot/internal/bot"
	"contrarian-trading-bot/internal/events"
	"contrarian-trading-bot/internal/position"
)

// Config holds the server settings.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins string
}

// Server serves engine status, trade history and the session summary.
type Server struct {
	router  *gin.Engine
	http    *http.Server
	engine  *bot.Engine
	tracker *position.Tracker
	logger  zerolog.Logger

	recentMu     sync.Mutex
	recentEvents []events.Event
}

// NewServer builds the router and subscribes to the event bus for the
// recent-events feed.
func NewServer(cfg Config, engine *bot.Engine, tracker *position.Tracker, bus *events.Bus, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	if cfg.AllowedOrigins == "*" {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:  router,
		engine:  engine,
		tracker: tracker,
		logger:  logger,
	}

	bus.SubscribeAll(s.recordEvent)

	router.GET("/health", s.handleHealth)
	router.GET("/api/status", s.handleStatus)
	router.GET("/api/trades", s.handleTrades)
	router.GET("/api/summary", s.handleSummary)
	router.GET("/api/events", s.handleEvents)

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("status API listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("status API failed")
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

const maxRecentEvents = 100

func (s *Server) recordEvent(ev events.Event) {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()
	s.recentEvents = append(s.recentEvents, ev)
	if len(s.recentEvents) > maxRecentEvents {
		s.recentEvents = s.recentEvents[len(s.recentEvents)-maxRecentEvents:]
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now()})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handleTrades(c *gin.Context) {
	c.JSON(http.StatusOK, s.tracker.Trades())
}

func (s *Server) handleSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.tracker.Summarize())
}

func (s *Server) handleEvents(c *gin.Context) {
	s.recentMu.Lock()
	out := make([]events.Event, len(s.recentEvents))
	copy(out, s.recentEvents)
	s.recentMu.Unlock()
	c.JSON(http.StatusOK, out)
}
