package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkin/internal/httpmiddleware"
)

// RouterConfig holds the pieces of the HTTP surface that are not handlers.
type RouterConfig struct {
	Limiter  *httpmiddleware.TokenBucket // nil disables rate limiting
	Gatherer prometheus.Gatherer         // nil hides /metrics
	WebDir   string                      // optional static dashboard
}

// NewRouter wires h into a gin engine.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          24 * time.Hour,
	}))
	r.Use(securityHeaders())

	r.GET("/healthz", h.Healthz)
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		submit := []gin.HandlerFunc{h.Submit}
		if cfg.Limiter != nil {
			submit = append([]gin.HandlerFunc{cfg.Limiter.GinMiddleware()}, submit...)
		}
		api.POST("/attendance/append", submit...)
		api.GET("/attendance", h.ListAttendance)
		api.GET("/attendance/counts", h.Counts)
		api.GET("/sessions", h.Sessions)
	}

	if cfg.WebDir != "" {
		r.StaticFile("/", cfg.WebDir+"/index.html")
		r.Static("/static", cfg.WebDir+"/static")
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
