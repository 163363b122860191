package metrics

import (
	"strconv"
	"time"

	"saa-quiz-service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes play and HTTP counters on one registerer.
type Recorder struct {
	answers         *prometheus.CounterVec
	finished        *prometheus.CounterVec
	persistence     *prometheus.CounterVec
	requestDuration *prometheus.SummaryVec
	requests        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		answers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_answers_total",
				Help: "Answers submitted, by mode and result",
			},
			[]string{"mode", "result"},
		),
		finished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_attempts_finished_total",
				Help: "Challenge attempts that reached a terminal state",
			},
			[]string{"outcome"},
		),
		persistence: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_persistence_failures_total",
				Help: "Result writes that failed after a verdict was produced",
			},
			[]string{"operation"},
		),
		requestDuration: factory.NewSummaryVec(
			prometheus.SummaryOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request duration in seconds",
				Objectives: map[float64]float64{
					0.5:  0.05,
					0.9:  0.01,
					0.99: 0.001,
				},
			},
			[]string{"method", "path", "status_code"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
	}
}

func (r *Recorder) Answer(mode domain.Mode, correct bool) {
	result := "wrong"
	if correct {
		result = "correct"
	}
	r.answers.WithLabelValues(string(mode), result).Inc()
}

func (r *Recorder) AttemptFinished(succeeded bool) {
	outcome := "failed"
	if succeeded {
		outcome = "succeeded"
	}
	r.finished.WithLabelValues(outcome).Inc()
}

func (r *Recorder) PersistenceFailure(operation string) {
	r.persistence.WithLabelValues(operation).Inc()
}

// Middleware records request counts and latency per route.
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = ctx.Request.URL.Path
		}
		status := strconv.Itoa(ctx.Writer.Status())
		r.requestDuration.WithLabelValues(ctx.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.requests.WithLabelValues(ctx.Request.Method, path, status).Inc()
	}
}
