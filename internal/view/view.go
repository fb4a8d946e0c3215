// Package view отделяет логику загрузки данных от отображения.
// Dashboard знает только про этот интерфейс; терминальный UI, headless-лог
// и снапшот для служебного сервера просто разные реализации.
package view

import (
	"github.com/xela07ax/speedview/internal/domain"
)

// Тексты управляющего элемента и индикатора занятости
const (
	TriggerLabel     = "Run Speed Test"
	TriggerBusyLabel = "Running Test..."
	BusyMessage      = "Running speed test...\nThis may take a minute."
)

// StatsText содержит уже отформатированные значения четырех областей статистики.
type StatsText struct {
	AvgDownload string `json:"avg_download"`
	AvgUpload   string `json:"avg_upload"`
	AvgPing     string `json:"avg_ping"`
	TotalTests  string `json:"total_tests"`
}

// View описывает именованные операции обновления экрана.
// Каждый вызов заменяет содержимое своей области целиком одной записью.
// Реализации обязаны быть безопасными для вызова из разных горутин.
type View interface {
	// SetBusy блокирует (true) или разблокирует (false) кнопку запуска.
	// При true область вывода показывает BusyMessage.
	SetBusy(busy bool)
	// SetResult выводит сообщение об успешном замере в область вывода.
	SetResult(msg string)
	// SetError выводит сообщение об ошибке в область вывода (она же область графика).
	SetError(msg string)
	// SetStats обновляет четыре области статистики.
	SetStats(stats StatsText)
	// SetChart заменяет область графика новым графиком.
	SetChart(plot domain.Plot)
}
