// Package rest serves a controller's OPC-UA-style address space over
// HTTP: browse, read and write of nodes, a controller status endpoint and
// a websocket stream of value updates.
package rest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/plcforge/plcsim/internal/api/websocket"
	"github.com/plcforge/plcsim/internal/bridge/opcua"
	"github.com/plcforge/plcsim/internal/interfaces"
)

type Server struct {
	router *gin.Engine
	space  *opcua.Space
	status interfaces.StatusProvider
	logger *zap.Logger
	server *http.Server
	wsHub  *websocket.Hub
}

func NewServer(addr string, space *opcua.Space, wsHub *websocket.Hub, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		space:  space,
		logger: logger,
		wsHub:  wsHub,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(logger))
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SetStatusProvider attaches the controller snapshot source. Called after
// the controller is assembled, since the controller owns this server's
// bridge as a module.
func (s *Server) SetStatusProvider(p interfaces.StatusProvider) {
	s.status = p
}

// Start binds the listener synchronously so startup failures surface to
// the caller, then serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}

	s.logger.Info("Node API server started", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Node API server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down node API server", zap.String("address", s.server.Addr))
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.getControllerStatus)

		nodes := v1.Group("/nodes")
		{
			nodes.GET("", s.browseRoot)
			nodes.GET("/:id", s.getNode)
			nodes.PUT("/:id/value", s.writeNodeValue)
		}

		v1.GET("/ws/live", s.wsLiveConnection)
		v1.GET("/ws/status", s.wsStatus)
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// LoggerMiddleware logs each request with latency and status.
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
