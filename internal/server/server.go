package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/RafaelZelak/agentchat/internal/agent"
	"github.com/RafaelZelak/agentchat/internal/history"
	"github.com/RafaelZelak/agentchat/internal/logger"
	"github.com/RafaelZelak/agentchat/internal/tools"
)

// Sessions é o roteador de sessões usado pelos handlers
type Sessions interface {
	Open(ctx context.Context, id string) (bool, error)
	Ask(ctx context.Context, id, text string, hs ...agent.Handler) (string, error)
	History(ctx context.Context, id string) ([]history.Message, error)
	ToolInfos() []tools.Info
	ToolNames() []string
}

type Config struct {
	Addr            string
	Debug           bool
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:            ":8000",
		ReadTimeout:     30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

type Server struct {
	sessions Sessions
	cfg      Config
	engine   *gin.Engine
	upgrader websocket.Upgrader
}

func New(sessions Sessions, cfg Config) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())
	engine.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		AllowCredentials: true,
		AllowWebSockets:  true,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		sessions: sessions,
		cfg:      cfg,
		engine:   engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.POST("/run", s.handleRun)
	s.engine.GET("/ws", s.handleWebSocket)
	s.engine.GET("/tools", s.handleTools)
	s.engine.GET("/sessions/:id/history", s.handleHistory)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run atende até o contexto ser cancelado e então faz shutdown gracioso
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
