package view

import "github.com/xela07ax/speedview/internal/domain"

// Multi рассылает каждое обновление во все вложенные представления по порядку.
type Multi []View

func (m Multi) SetBusy(busy bool) {
	for _, v := range m {
		v.SetBusy(busy)
	}
}

func (m Multi) SetResult(msg string) {
	for _, v := range m {
		v.SetResult(msg)
	}
}

func (m Multi) SetError(msg string) {
	for _, v := range m {
		v.SetError(msg)
	}
}

func (m Multi) SetStats(stats StatsText) {
	for _, v := range m {
		v.SetStats(stats)
	}
}

func (m Multi) SetChart(plot domain.Plot) {
	for _, v := range m {
		v.SetChart(plot)
	}
}
