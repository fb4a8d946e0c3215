package view

import (
	"go.uber.org/zap"

	"github.com/xela07ax/speedview/internal/domain"
)

// Log — представление для headless-режима: все обновления уходят в zap.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger.Named("view")}
}

func (l *Log) SetBusy(busy bool) {
	if busy {
		l.logger.Info("speed test running")
	}
}

func (l *Log) SetResult(msg string) {
	l.logger.Info("speed test result", zap.String("message", msg))
}

func (l *Log) SetError(msg string) {
	l.logger.Error("dashboard error", zap.String("message", msg))
}

func (l *Log) SetStats(stats StatsText) {
	l.logger.Info("statistics updated",
		zap.String("avg_download", stats.AvgDownload),
		zap.String("avg_upload", stats.AvgUpload),
		zap.String("avg_ping", stats.AvgPing),
		zap.String("total_tests", stats.TotalTests))
}

func (l *Log) SetChart(plot domain.Plot) {
	l.logger.Debug("chart updated", zap.Int("data_bytes", len(plot.Data)), zap.Int("layout_bytes", len(plot.Layout)))
}
