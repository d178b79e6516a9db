package httpapi

import (
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"mcwatch/pkg/logx"
)

// NewEngine builds the gin engine with every route configured.
func NewEngine(h *Handler, cfg Config, log logx.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if log.IsZero() {
		log = logx.Nop()
	}

	r := gin.New()
	r.Use(requestLog(log))
	r.Use(gin.Recovery())

	r.GET("/healthz", h.Healthz)

	api := r.Group("/")
	if tok := strings.TrimSpace(cfg.Token); tok != "" {
		api.Use(bearerAuth(tok))
	}
	api.GET("/status", h.Status)
	api.GET("/latest", h.Latest)
	api.GET("/history", h.History)
	if h.metrics != nil {
		api.GET("/metrics", gin.WrapH(h.metrics))
	}

	if cfg.Pprof {
		pp := api.Group("/debug/pprof")
		pp.GET("/", gin.WrapF(hpprof.Index))
		pp.GET("/cmdline", gin.WrapF(hpprof.Cmdline))
		pp.GET("/profile", gin.WrapF(hpprof.Profile))
		pp.GET("/symbol", gin.WrapF(hpprof.Symbol))
		pp.POST("/symbol", gin.WrapF(hpprof.Symbol))
		pp.GET("/trace", gin.WrapF(hpprof.Trace))
		pp.GET("/:name", gin.WrapF(hpprof.Index))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

func requestLog(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []logx.Field{
			logx.String("method", c.Request.Method),
			logx.String("path", c.Request.URL.Path),
			logx.Int("status", status),
			logx.Duration("dur", time.Since(start)),
			logx.String("client", c.ClientIP()),
		}
		if status >= http.StatusInternalServerError {
			log.Warn("http request failed", fields...)
			return
		}
		log.Debug("http request", fields...)
	}
}

// bearerAuth accepts "Authorization: Bearer <token>" or "?token=<token>".
func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.Query("token")
		if got == "" {
			if ah := c.GetHeader("Authorization"); strings.HasPrefix(ah, "Bearer ") {
				got = strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))
			}
		}
		if got != token {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
