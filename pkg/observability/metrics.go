package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec
	StorageErrorsTotal       *prometheus.CounterVec

	// Auth metrics
	LoginsTotal             *prometheus.CounterVec
	RegistrationsTotal      *prometheus.CounterVec
	TokenVerificationsTotal *prometheus.CounterVec

	// Push notification metrics
	NotificationsSentTotal *prometheus.CounterVec
	StaleFCMTokensRemoved  prometheus.Counter

	// Upload metrics
	UploadsTotal *prometheus.CounterVec
	UploadBytes  *prometheus.HistogramVec

	// Database metrics
	DBConnectionsActive    prometheus.Gauge
	DBConnectionsIdle      prometheus.Gauge
	DBConnectionsWaitCount prometheus.Gauge

	// Redis metrics
	RateLimitRejectionsTotal *prometheus.CounterVec

	// Business metrics
	UsersTotal       prometheus.Gauge
	ActiveUsersTotal prometheus.Gauge
	ProductsTotal    prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cuatri_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cuatri_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cuatri_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),

		// Storage metrics
		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cuatri_storage_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "store", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cuatri_storage_operation_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "store"},
		),
		StorageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cuatri_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"operation", "store", "error_type"},
		),

		// Auth metrics
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cuatri_logins_total",
				Help: "Total number of login attempts",
			},
			[]string{"provider", "status"},
		),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cuatri_registrations_total",
				Help: "Total number of registration attempts",
			},
			[]string{"status"},
		),
		TokenVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cuatri_token_verifications_total",
				Help: "Total number of session token verifications",
			},
			[]string{"status"},
		),

		// Push notification metrics
		NotificationsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cuatri_notifications_sent_total",
				Help: "Total number of push notification deliveries",
			},
			[]string{"status"},
		),
		StaleFCMTokensRemoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cuatri_stale_fcm_tokens_removed_total",
				Help: "Total number of unregistered FCM tokens pruned",
			},
		),

		// Upload metrics
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cuatri_uploads_total",
				Help: "Total number of file uploads",
			},
			[]string{"backend", "status"},
		),
		UploadBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cuatri_upload_bytes",
				Help:    "Uploaded file size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
			[]string{"backend"},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cuatri_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cuatri_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cuatri_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),

		// Redis metrics
		RateLimitRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cuatri_rate_limit_rejections_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"scope"},
		),

		// Business metrics
		UsersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cuatri_users_total",
				Help: "Total number of registered users",
			},
		),
		ActiveUsersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cuatri_active_users_total",
				Help: "Total number of active users",
			},
		),
		ProductsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cuatri_products_total",
				Help: "Total number of products",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.StorageErrorsTotal,
		m.LoginsTotal,
		m.RegistrationsTotal,
		m.TokenVerificationsTotal,
		m.NotificationsSentTotal,
		m.StaleFCMTokensRemoved,
		m.UploadsTotal,
		m.UploadBytes,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.RateLimitRejectionsTotal,
		m.UsersTotal,
		m.ActiveUsersTotal,
		m.ProductsTotal,
	)

	return m
}

// UpdateDBStats refreshes connection pool gauges from sql.DBStats.
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
