package http

import (
	"net/http"
	"time"

	"saa-quiz-service/internal/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Handler  *Handler
	WS       *WSHandler
	Metrics  *metrics.Recorder
	Gatherer prometheus.Gatherer
}

// NewRouter mounts the REST API, the websocket endpoint, health and metrics.
func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", AdminPasswordHeader},
		MaxAge:          12 * time.Hour,
	}))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	if d.WS != nil {
		r.GET("/ws", gin.WrapF(d.WS.ServeWS))
	}
	d.Handler.Routes(r)
	return r
}
