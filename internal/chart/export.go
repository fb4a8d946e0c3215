package chart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/xela07ax/speedview/internal/domain"
	"github.com/xela07ax/speedview/internal/view"
)

// Exporter — представление, которое сохраняет каждый новый график в файл.
// Остальные области ему не интересны. Запись атомарная: tmp-файл + rename.
type Exporter struct {
	path     string
	renderer Renderer
	logger   *zap.Logger
}

var _ view.View = (*Exporter)(nil)

func NewExporter(path string, renderer Renderer, logger *zap.Logger) *Exporter {
	return &Exporter{
		path:     path,
		renderer: renderer,
		logger:   logger.Named("chart-export"),
	}
}

func (e *Exporter) SetBusy(bool) {}
func (e *Exporter) SetResult(string) {}
func (e *Exporter) SetError(string) {}
func (e *Exporter) SetStats(view.StatsText) {}

func (e *Exporter) SetChart(plot domain.Plot) {
	if err := e.Export(plot); err != nil {
		if errors.Is(err, ErrNoData) {
			e.logger.Debug("chart export skipped: no data")
			return
		}
		e.logger.Warn("chart export failed", zap.String("path", e.path), zap.Error(err))
		return
	}
	e.logger.Debug("chart exported", zap.String("path", e.path))
}

// Export рендерит график и заменяет файл целиком.
func (e *Exporter) Export(plot domain.Plot) error {
	tmp, err := os.CreateTemp(filepath.Dir(e.path), ".chart-*.tmp")
	if err != nil {
		return fmt.Errorf("chart: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // после успешного rename — no-op

	if err := e.renderer.Render(plot, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("chart: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), e.path); err != nil {
		return fmt.Errorf("chart: replace %s: %w", e.path, err)
	}
	return nil
}
