package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/codebreaker-project/codebreaker/internal/config"
	"github.com/codebreaker-project/codebreaker/internal/db"
	"github.com/codebreaker-project/codebreaker/internal/metrics"
	"github.com/codebreaker-project/codebreaker/internal/network"
	"github.com/codebreaker-project/codebreaker/internal/registry"
	"github.com/codebreaker-project/codebreaker/internal/util"
)

// Server is the HTTP status API.
type Server struct {
	cfg        *config.Config
	registry   *registry.Registry
	metrics    *metrics.Metrics
	instanceID string
	startedAt  time.Time
	logger     zerolog.Logger

	// Optional, set before Start.
	archive *db.Archive
	pool    *network.Pool

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	router     *gin.Engine
}

// NewServer creates an API server over reg. m may be nil, in which case
// /metrics is not served.
func NewServer(cfg *config.Config, reg *registry.Registry, m *metrics.Metrics, instanceID string) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:        cfg,
		registry:   reg,
		metrics:    m,
		instanceID: instanceID,
		startedAt:  time.Now(),
		logger:     util.ComponentLogger("api"),
	}
}

// SetDependencies injects the components that may be disabled by config.
func (s *Server) SetDependencies(archive *db.Archive, pool *network.Pool) {
	s.archive = archive
	s.pool = pool
}

// Handler builds the router. Start calls it; tests use it with httptest.
func (s *Server) Handler() http.Handler {
	if s.router == nil {
		s.router = s.buildRouter()
	}
	return s.router
}

// Listen binds the API address.
func (s *Server) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	lc := network.ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", s.cfg.APIAddr())
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	srv, ln := s.httpServer, s.listener
	s.mu.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("status API starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	origins := s.cfg.API.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	if s.cfg.API.RateLimitRPS > 0 {
		limiter := network.NewIPLimiter(float64(s.cfg.API.RateLimitRPS), s.cfg.API.RateLimitBurst)
		router.Use(RateLimit(limiter))
	}

	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
		public.GET("/server_info", s.handleServerInfo)
		public.GET("/scoreboard", s.handleScoreboard)
		public.GET("/sessions/:plid", s.handleSession)
		public.GET("/history", s.handleHistory)
		public.GET("/players/:plid/stats", s.handlePlayerStats)
	}

	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "codebreaker status API is running"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
