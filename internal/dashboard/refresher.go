package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Refreshable — то, что Refresher дергает по таймеру.
type Refreshable interface {
	TryRefresh(ctx context.Context) (bool, error)
}

// Refresher владеет единственным таймером обновления графика.
// Первое обновление идет сразу при Start, дальше каждые interval,
// независимо от прошлых ошибок. Stop отменяет контекст и ждет горутины.
type Refresher struct {
	target   Refreshable
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
}

func NewRefresher(target Refreshable, interval time.Duration, logger *zap.Logger) *Refresher {
	return &Refresher{
		target:   target,
		interval: interval,
		logger:   logger.Named("refresher"),
	}
}

// Start запускает цикл. Повторный вызов ничего не делает.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.loop(ctx)
	r.logger.Info("refresher started", zap.Duration("interval", r.interval))
}

// Stop идемпотентен и безопасен до Start.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	r.logger.Info("refresher stopped")
}

func (r *Refresher) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.fire(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.fire(ctx)
		}
	}
}

// fire не блокирует цикл: зависший запрос не должен сдвигать расписание,
// а лишние тики отсекает single-flight внутри TryRefresh
func (r *Refresher) fire(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if _, err := r.target.TryRefresh(ctx); err != nil {
			r.logger.Debug("scheduled refresh failed", zap.Error(err))
		}
	}()
}
