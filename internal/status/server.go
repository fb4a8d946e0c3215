package status

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/speedview/internal/chart"
	"github.com/xela07ax/speedview/internal/dashboard"
	"github.com/xela07ax/speedview/internal/infra"
	"github.com/xela07ax/speedview/internal/view"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Trigger запускает замер по запросу извне.
type Trigger interface {
	RunTest(ctx context.Context) error
	Running() bool
}

// Server — служебный HTTP-сервер клиента: метрики, снапшот экрана,
// последний график в PNG и удаленный запуск замера.
type Server struct {
	router   *chi.Mux
	logger   *zap.Logger
	state    *view.State
	trigger  Trigger
	renderer chart.Renderer
	gatherer prometheus.Gatherer
	limiter  *rate.Limiter
}

// NewServer собирает роутер. При gatherer == nil /metrics отдает пустой реестр.
func NewServer(
	cfg infra.StatusConfig,
	logger *zap.Logger,
	state *view.State,
	trigger Trigger,
	renderer chart.Renderer,
	gatherer prometheus.Gatherer,
) *Server {
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}
	burst := cfg.TriggerBurst
	if burst < 1 {
		burst = 1
	}

	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger.Named("status-api"),
		state:    state,
		trigger:  trigger,
		renderer: renderer,
		gatherer: gatherer,
		// Замер грузит канал на минуту: удаленный запуск ограничиваем жестко
		limiter: rate.NewLimiter(rate.Limit(cfg.TriggerRPS), burst),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// --- 2. Наблюдаемость ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// --- 3. Состояние экрана ---
	r.Get("/api/state", s.getState)
	r.Get("/chart.png", s.getChart)

	// --- 4. Управление ---
	r.Post("/api/run-test", s.runTest)
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Snapshot())
}

func (s *Server) getChart(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()
	if snap.Display.Kind != view.KindChart || snap.Display.Plot == nil {
		http.Error(w, "no chart available", http.StatusNotFound)
		return
	}

	// Рендерим в буфер: при ошибке заголовки еще не отправлены
	var buf bytes.Buffer
	if err := s.renderer.Render(*snap.Display.Plot, &buf); err != nil {
		if errors.Is(err, chart.ErrNoData) {
			http.Error(w, "chart has no data points", http.StatusNotFound)
			return
		}
		s.logger.Error("chart render failed", zap.Error(err))
		http.Error(w, "chart render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Last-Modified", snap.ChartAt.UTC().Format(http.TimeFormat))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) runTest(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}
	if s.trigger.Running() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": dashboard.ErrBusy.Error()})
		return
	}

	// Обрыв HTTP-соединения не должен прерывать уже запущенный замер
	ctx := context.WithoutCancel(r.Context())
	start := time.Now()
	err := s.trigger.RunTest(ctx)

	resp := map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
		"state":       s.state.Snapshot(),
	}
	switch {
	case errors.Is(err, dashboard.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		resp["error"] = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = jsonAPI.NewEncoder(w).Encode(v)
}

// requestLogger пишет запросы в zap: stdout/stderr в режиме TUI занят экраном
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request served",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
}
