package obs

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP共通メトリクス + 貸出ドメインのカウンタ
var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	LoansCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loans_created_total",
		Help: "Number of loans successfully created.",
	})

	LoansReturnedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loans_returned_total",
		Help: "Number of loans successfully returned.",
	})
)

func Init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, LoansCreatedTotal, LoansReturnedTotal)
}

// Handler: GET /metrics 用
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// Instrument: ルートテンプレート単位で RPS / latency を記録する
func Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
