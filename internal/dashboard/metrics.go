package dashboard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xela07ax/speedview/internal/domain"
)

type Metrics struct {
	// Latency: длительность вызовов бэкенда по операциям
	RequestDuration *prometheus.HistogramVec

	// Замеры по исходу: ok, transport_error, decode_error, app_error
	TestsTotal *prometheus.CounterVec

	// Обновления графика по исходу; dropped значит отброшено политикой single-flight
	RefreshTotal *prometheus.CounterVec

	// 1, пока идет замер (кнопка заблокирована)
	TestInProgress prometheus.Gauge

	// Последние агрегаты, которые вернул бэкенд
	BackendStats *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		// Замер длится десятки секунд, отсюда длинный хвост бакетов
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "speedview_backend_request_duration_seconds",
			Help:    "Histogram of backend call latencies.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"op", "outcome"}),

		TestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "speedview_tests_total",
			Help: "Total number of triggered speed tests by outcome.",
		}, []string{"outcome"}),

		RefreshTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "speedview_refresh_total",
			Help: "Total number of visualization refreshes by outcome.",
		}, []string{"outcome"}),

		TestInProgress: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "speedview_test_in_progress",
			Help: "1 while a speed test is running.",
		}),

		BackendStats: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "speedview_backend_stats",
			Help: "Latest aggregate statistics reported by the backend.",
		}, []string{"stat"}), // avg_download_mbps, avg_upload_mbps, avg_ping_ms, total_tests
	}
}

// ObserveRequest реализует backend.RequestObserver.
func (m *Metrics) ObserveRequest(op, outcome string, elapsed time.Duration) {
	m.RequestDuration.WithLabelValues(op, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) setStats(s domain.Stats) {
	m.BackendStats.WithLabelValues("avg_download_mbps").Set(s.AvgDownload)
	m.BackendStats.WithLabelValues("avg_upload_mbps").Set(s.AvgUpload)
	m.BackendStats.WithLabelValues("avg_ping_ms").Set(s.AvgPing)
	m.BackendStats.WithLabelValues("total_tests").Set(float64(s.TotalTests))
}
