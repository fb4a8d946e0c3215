package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xela07ax/speedview/internal/backend"
	"github.com/xela07ax/speedview/internal/domain"
	"github.com/xela07ax/speedview/internal/view"
)

// ErrBusy: замер уже идет, повторный запуск игнорируется.
var ErrBusy = errors.New("dashboard: speed test already running")

// Backend — всё, что дашборду нужно от сервиса замеров.
type Backend interface {
	RunTest(ctx context.Context) (*domain.TestResult, error)
	Visualize(ctx context.Context) (*domain.Visualization, error)
}

// Dashboard связывает запуск замера и загрузку графика с представлением.
// Ни одна ошибка бэкенда не "роняет" приложение: она превращается в текст на экране.
type Dashboard struct {
	backend Backend
	view    view.View
	metrics *Metrics
	logger  *zap.Logger

	running atomic.Bool
	// Single-flight для обновлений графика: не больше одного запроса /api/visualize одновременно
	refreshSem *semaphore.Weighted
}

func New(b Backend, v view.View, metrics *Metrics, logger *zap.Logger) *Dashboard {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Dashboard{
		backend:    b,
		view:       v,
		metrics:    metrics,
		logger:     logger.Named("dashboard"),
		refreshSem: semaphore.NewWeighted(1),
	}
}

// Running сообщает, идет ли сейчас замер.
func (d *Dashboard) Running() bool {
	return d.running.Load()
}

// RunTest блокирует кнопку, запускает замер, выводит результат или ошибку,
// после успеха обновляет график и ждет его. Кнопка разблокируется в любом исходе.
// Возвращаемая ошибка нужна только для логов и метрик: на экран она уже выведена.
func (d *Dashboard) RunTest(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer d.running.Store(false)

	d.metrics.TestInProgress.Set(1)
	d.view.SetBusy(true)
	defer func() {
		d.view.SetBusy(false)
		d.metrics.TestInProgress.Set(0)
	}()

	d.logger.Info("starting speed test")
	res, err := d.backend.RunTest(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// Приложение закрывается, показывать ошибку уже некому
			return ctx.Err()
		}
		d.metrics.TestsTotal.WithLabelValues(backend.Outcome(err)).Inc()
		d.logger.Warn("speed test failed", zap.String("outcome", backend.Outcome(err)), zap.Error(err))
		d.view.SetError(FormatTestError(err))
		return fmt.Errorf("run test: %w", err)
	}

	d.metrics.TestsTotal.WithLabelValues("ok").Inc()
	d.logger.Info("speed test completed",
		zap.Float64("download_mbps", res.DownloadSpeed),
		zap.Float64("upload_mbps", res.UploadSpeed),
		zap.Float64("ping_ms", res.Ping))
	d.view.SetResult(FormatResult(*res))

	// Свежий замер должен попасть на график: встаем в очередь за текущим обновлением
	if err := d.Refresh(ctx); err != nil {
		d.logger.Debug("post-test refresh failed", zap.Error(err))
	}
	return nil
}

// Refresh загружает график и статистику. Если обновление уже идет, ждет его окончания.
func (d *Dashboard) Refresh(ctx context.Context) error {
	if err := d.refreshSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer d.refreshSem.Release(1)
	return d.load(ctx)
}

// TryRefresh делает то же, но если обновление уже идет, вызов отбрасывается (false).
// Так работает таймер: тики не копятся за зависшим бэкендом.
func (d *Dashboard) TryRefresh(ctx context.Context) (bool, error) {
	if !d.refreshSem.TryAcquire(1) {
		d.metrics.RefreshTotal.WithLabelValues("dropped").Inc()
		d.logger.Debug("refresh dropped: another refresh in flight")
		return false, nil
	}
	defer d.refreshSem.Release(1)
	return true, d.load(ctx)
}

func (d *Dashboard) load(ctx context.Context) error {
	vis, err := d.backend.Visualize(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.metrics.RefreshTotal.WithLabelValues(backend.Outcome(err)).Inc()
		d.logger.Warn("visualization refresh failed", zap.String("outcome", backend.Outcome(err)), zap.Error(err))
		// Области статистики не трогаем: там остаются прошлые значения
		d.view.SetError(FormatVisualizationError(err))
		return fmt.Errorf("refresh: %w", err)
	}

	// Ответ уже провалидирован целиком, поэтому график и статистика пишутся вместе
	d.view.SetChart(vis.Plot)
	d.view.SetStats(FormatStats(vis.Stats))
	d.metrics.setStats(vis.Stats)
	d.metrics.RefreshTotal.WithLabelValues("ok").Inc()
	d.logger.Debug("visualization updated", zap.Int("total_tests", vis.Stats.TotalTests))
	return nil
}
