package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics tracks consumer-side task processing per media type.
type WorkerMetrics struct {
	registry *prometheus.Registry

	taskTotal    *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	taskInFlight prometheus.Gauge
	queueDepth   *prometheus.GaugeVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	taskTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediatext",
			Subsystem: "worker",
			Name:      "task_total",
			Help:      "Total processed tasks by media type and status.",
		},
		[]string{"media_type", "status"},
	)
	taskDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mediatext",
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Task processing duration in seconds by media type and status.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"media_type", "status"},
	)
	taskInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mediatext",
			Subsystem: "worker",
			Name:      "task_in_flight",
			Help:      "Number of in-flight task executions.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueDepth := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mediatext",
			Subsystem: "worker",
			Name:      "queue_depth",
			Help:      "Last observed ready-message count per queue.",
		},
		[]string{"queue"},
	)

	registry.MustRegister(taskTotal, taskDuration, taskInFlight, queueDepth)

	return &WorkerMetrics{
		registry:     registry,
		taskTotal:    taskTotal,
		taskDuration: taskDuration,
		taskInFlight: taskInFlight,
		queueDepth:   queueDepth,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartTask() {
	m.taskInFlight.Inc()
}

func (m *WorkerMetrics) FinishTask(mediaType string, duration time.Duration, err error) {
	m.taskInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.taskTotal.WithLabelValues(mediaType, status).Inc()
	m.taskDuration.WithLabelValues(mediaType, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) SetQueueDepth(queue string, messages int) {
	if messages < 0 {
		return
	}
	m.queueDepth.WithLabelValues(queue).Set(float64(messages))
}
