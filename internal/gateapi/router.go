// Package gateapi is the Gatekeeper's HTTP surface (spec §4.H / §6): a
// gin.Engine exposing the signed proposal/heartbeat endpoints, a JWT-
// guarded admin group, and a tiny server-rendered status dashboard.
// Grounded on the teacher's api.Server (a struct holding dependencies,
// one handler method per route, gin.H JSON responses) from
// SynapseStrike/api/tactics.go, generalized from its user-JWT session
// auth into the Gate's single-shared-secret admin auth.
package gateapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zerotype19/gekko3/internal/gate"
	"github.com/zerotype19/gekko3/internal/gateapi/adminauth"
	"github.com/zerotype19/gekko3/internal/logging"
	"github.com/zerotype19/gekko3/internal/metrics"
)

var log = logging.For("gate.api")

// Server wires the Gate actor into an HTTP router, following the
// teacher's Server-struct-holds-dependencies shape.
type Server struct {
	gate *gate.Gate
}

func NewServer(g *gate.Gate) *Server {
	return &Server{gate: g}
}

// Router builds the gin.Engine: request logging, the public
// proposal/heartbeat/status endpoints, the JWT-guarded admin group,
// the dashboard, and a Prometheus scrape endpoint.
func (s *Server) Router(adminJWTSecret string) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(), gin.Recovery())

	r.GET("/", s.handleDashboard)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metricsHandler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/proposal", s.handleProposal)
		v1.POST("/heartbeat", s.handleHeartbeat)
		v1.GET("/status", s.handleStatus)

		admin := v1.Group("/admin")
		admin.Use(adminauth.Middleware(adminJWTSecret))
		{
			admin.POST("/lock", s.handleLock)
			admin.POST("/unlock", s.handleUnlock)
			admin.POST("/liquidate", s.handleLiquidate)
			admin.POST("/calendar", s.handleCalendar)
		}
	}

	return r
}

func metricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
