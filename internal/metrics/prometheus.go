// Package metrics регистрирует метрики Prometheus сервиса и middleware для HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vpn"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	renewalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "renewals_total",
			Help:      "Subscription periods granted, by kind",
		},
		[]string{"kind"},
	)

	expiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "expired_total",
			Help:      "Active periods flipped to expired by the sweep",
		},
	)

	deviceRegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "registrations_total",
			Help:      "Device registration attempts, by result",
		},
		[]string{"result"},
	)

	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "webhook_events_total",
			Help:      "Payment webhook deliveries, by target status and result",
		},
		[]string{"status", "result"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "sent_total",
			Help:      "Notifications handled, by queue and result",
		},
		[]string{"queue", "result"},
	)
)

// Middleware собирает количество и длительность HTTP-запросов по шаблону маршрута chi.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern).Observe(time.Since(start).Seconds())
	})
}

// Handler отдаёт метрики в формате Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRenewal учитывает выданный период.
func RecordRenewal(kind string) {
	renewalsTotal.WithLabelValues(kind).Inc()
}

// RecordExpired учитывает периоды, закрытые фоновой очисткой.
func RecordExpired(n int) {
	expiredTotal.Add(float64(n))
}

// RecordDeviceRegistration учитывает попытку привязки устройства.
// result: added, known, limit, taken, error.
func RecordDeviceRegistration(result string) {
	deviceRegistrationsTotal.WithLabelValues(result).Inc()
}

// RecordWebhook учитывает доставку уведомления от платёжного шлюза.
// result: applied, duplicate, conflict, ignored, error.
func RecordWebhook(status, result string) {
	webhookEventsTotal.WithLabelValues(status, result).Inc()
}

// RecordNotification учитывает обработанное сообщение очереди.
func RecordNotification(queue, result string) {
	notificationsTotal.WithLabelValues(queue, result).Inc()
}
