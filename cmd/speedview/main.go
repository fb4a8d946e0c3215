package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/xela07ax/speedview/internal/backend"
	"github.com/xela07ax/speedview/internal/chart"
	"github.com/xela07ax/speedview/internal/dashboard"
	"github.com/xela07ax/speedview/internal/infra"
	"github.com/xela07ax/speedview/internal/status"
	"github.com/xela07ax/speedview/internal/tui"
	"github.com/xela07ax/speedview/internal/view"
)

const (
	defaultTUILogFile = "speedview.log"
	demoLatency       = 3 * time.Second
	sparklineWidth    = 48
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: config.yaml in . or ./configs)")
	headless := flag.Bool("headless", false, "run a single speed test without the terminal UI and exit")
	demo := flag.Bool("demo", false, "serve a simulated backend in-process")
	flag.Parse()

	if err := run(*configPath, *headless, *demo); err != nil {
		fmt.Fprintf(os.Stderr, "speedview: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, headless, demo bool) error {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	// Экран занят TUI: логи уходят в файл
	if !headless && cfg.Logger.File == "" {
		cfg.Logger.File = defaultTUILogFile
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Контекст жизни приложения: SIGINT/SIGTERM отменяют все фоновые запросы
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Демо-бэкенд
	if demo {
		url, shutdown, err := startDemoBackend(logger)
		if err != nil {
			return err
		}
		defer shutdown()
		cfg.Backend.URL = url
	}

	// 3. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := dashboard.NewMetrics(reg)

	// 4. Клиент бэкенда
	client := backend.NewClient(cfg.Backend.URL, logger,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithObserver(metrics),
	)
	logger.Info("speedview starting",
		zap.String("backend", cfg.Backend.URL),
		zap.Bool("headless", headless),
		zap.Bool("demo", demo))

	// 5. Представления: экран (или лог), снапшот для служебного сервера, экспорт PNG
	state := view.NewState()
	png := chart.NewPNG(cfg.Chart.Width, cfg.Chart.Height)
	views := view.Multi{state}
	if cfg.Chart.ExportPath != "" {
		views = append(views, chart.NewExporter(cfg.Chart.ExportPath, png, logger))
	}

	if headless {
		views = append(views, view.NewLog(logger))
		d := dashboard.New(client, views, metrics, logger)
		return runHeadless(appCtx, d, logger)
	}

	var d *dashboard.Dashboard
	screen := tui.New(chart.NewText(sparklineWidth), func() {
		if err := d.RunTest(appCtx); err != nil && !errors.Is(err, dashboard.ErrBusy) {
			logger.Debug("speed test from ui ended with error", zap.Error(err))
		}
	})
	views = append(views, screen)
	d = dashboard.New(client, views, metrics, logger)

	// 6. Служебный сервер
	if cfg.Status.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Status.Addr,
			Handler:           status.NewServer(cfg.Status, logger, state, d, png, reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("status server started", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
		defer func() {
			// Даем 5 секунд на завершение запросов
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("status server shutdown failed", zap.Error(err))
			}
		}()
	}

	// 7. Таймер обновления графика: первый запрос сразу, дальше по интервалу
	refresher := dashboard.NewRefresher(d, cfg.Refresh.Interval, logger)
	refresher.Start(appCtx)

	// 8. Graceful Shutdown: сигнал закрывает экран, экран отпускает main
	go func() {
		<-appCtx.Done()
		screen.Stop()
	}()

	err = screen.Run()
	stop()
	refresher.Stop()
	logger.Info("speedview exited")
	return err
}

// runHeadless делает один замер. Ошибка уже залогирована через view.Log,
// наружу уходит только для кода возврата.
func runHeadless(ctx context.Context, d *dashboard.Dashboard, logger *zap.Logger) error {
	if err := d.RunTest(ctx); err != nil {
		return err
	}
	logger.Info("headless run finished")
	return nil
}

// startDemoBackend поднимает backend.Stub на свободном локальном порту.
func startDemoBackend(logger *zap.Logger) (string, func(), error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("demo backend: listen: %w", err)
	}
	srv := &http.Server{Handler: backend.NewStub(demoLatency), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("demo backend failed", zap.Error(err))
		}
	}()

	url := "http://" + lis.Addr().String()
	logger.Info("demo backend started", zap.String("url", url))
	return url, func() { _ = srv.Close() }, nil
}
