package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	AuditRowsCaptured     *prometheus.CounterVec
	NotificationsIssued   prometheus.Counter
	NotificationFailures  prometheus.Counter
	RealtimeDeliveries    prometheus.Counter
	RealtimePublishErrors prometheus.Counter
	RequestLatency        *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AuditRowsCaptured: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gesserv_auditoria_registros_total",
			Help: "Audit rows captured, labelled by watched table",
		}, []string{"tabla"}),
		NotificationsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gesserv_notificaciones_emitidas_total",
			Help: "Notifications persisted to the notification store",
		}),
		NotificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gesserv_notificaciones_fallidas_total",
			Help: "Best-effort notification writes that failed and were swallowed",
		}),
		RealtimeDeliveries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gesserv_realtime_entregas_total",
			Help: "Events delivered to live websocket connections",
		}),
		RealtimePublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gesserv_realtime_publicaciones_fallidas_total",
			Help: "Broker publish failures swallowed at the dispatch boundary",
		}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gesserv_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
