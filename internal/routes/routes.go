package routes

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"radhiant_ops/internal/controllers"
	"radhiant_ops/internal/logger"
	"radhiant_ops/internal/middleware"
)

type Options struct {
	AllowedOrigins []string
	// AccessLog receives one line per request. Nil disables access logging.
	AccessLog io.Writer
	// Metrics is served on /metrics. Nil serves the default registry.
	Metrics prometheus.Gatherer
}

func SetupRouter(h *controllers.Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if opts.AccessLog != nil {
		r.Use(logger.RequestLogger(opts.AccessLog))
	}
	r.Use(middleware.CORS(opts.AllowedOrigins))

	gatherer := opts.Metrics
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	AuthRoutes(r, h)
	TruckRoutes(r, h)
	BookingRoutes(r, h)
	AdminRoutes(r, h)
	WebSocketRoutes(r, h)

	return r
}
