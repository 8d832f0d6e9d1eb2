package httpserver

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adscope/internal/config"
	"adscope/internal/domain/creative"
	"adscope/internal/interfaces/httpserver/middlewares"
	"adscope/internal/interfaces/httpserver/routes/mcp"
)

type HTTPServer struct {
	router   *gin.Engine
	config   *config.Config
	mcpRoute *mcp.MCPRoute
	creative *creative.Service
}

func NewHTTPServer(
	cfg *config.Config,
	mcpRoute *mcp.MCPRoute,
	creativeService *creative.Service,
) *HTTPServer {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewares.RequestLogger())
	router.Use(middlewares.CORS())

	return &HTTPServer{
		router:   router,
		config:   cfg,
		mcpRoute: mcpRoute,
		creative: creativeService,
	}
}

func (s *HTTPServer) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "adscope"})
	})

	// Ready only when the cache backing store is usable.
	s.router.GET("/readyz", func(c *gin.Context) {
		if err := s.creative.Health(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ready", "service": "adscope"})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	s.mcpRoute.RegisterRouter(v1)
}

func (s *HTTPServer) Run() error {
	s.setupRoutes()
	addr := fmt.Sprintf(":%s", s.config.HTTPPort)
	return s.router.Run(addr)
}
