package view

import (
	"sync"
	"time"

	"github.com/xela07ax/speedview/internal/domain"
)

// Kind показывает, что сейчас занимает область вывода.
type Kind string

const (
	KindEmpty  Kind = "empty"
	KindBusy   Kind = "busy"
	KindResult Kind = "result"
	KindError  Kind = "error"
	KindChart  Kind = "chart"
)

// Display — содержимое области вывода/графика.
type Display struct {
	Kind    Kind         `json:"kind"`
	Message string       `json:"message,omitempty"`
	Plot    *domain.Plot `json:"plot,omitempty"`
}

// Snapshot — согласованная копия всех областей экрана.
type Snapshot struct {
	Busy         bool      `json:"busy"`
	TriggerLabel string    `json:"trigger_label"`
	Display      Display   `json:"display"`
	Stats        StatsText `json:"stats"`
	Version      uint64    `json:"version"`
	UpdatedAt    time.Time `json:"updated_at"`
	// Время последней успешной отрисовки графика
	ChartAt time.Time `json:"chart_at,omitempty"`
}

// State хранит модель экрана в памяти, потокобезопасно.
// Используется в headless-режиме, служебным сервером и в тестах.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

func NewState() *State {
	return &State{
		snap: Snapshot{
			TriggerLabel: TriggerLabel,
			Display:      Display{Kind: KindEmpty},
		},
		now: time.Now,
	}
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *State) SetBusy(busy bool) {
	s.update(func(snap *Snapshot) {
		snap.Busy = busy
		if busy {
			snap.TriggerLabel = TriggerBusyLabel
			snap.Display = Display{Kind: KindBusy, Message: BusyMessage}
		} else {
			snap.TriggerLabel = TriggerLabel
		}
	})
}

func (s *State) SetResult(msg string) {
	s.update(func(snap *Snapshot) {
		snap.Display = Display{Kind: KindResult, Message: msg}
	})
}

func (s *State) SetError(msg string) {
	s.update(func(snap *Snapshot) {
		snap.Display = Display{Kind: KindError, Message: msg}
	})
}

func (s *State) SetStats(stats StatsText) {
	s.update(func(snap *Snapshot) {
		snap.Stats = stats
	})
}

func (s *State) SetChart(plot domain.Plot) {
	p := plot
	s.update(func(snap *Snapshot) {
		snap.Display = Display{Kind: KindChart, Plot: &p}
		snap.ChartAt = snap.UpdatedAt
	})
}

func (s *State) update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Version++
	s.snap.UpdatedAt = s.now()
	fn(&s.snap)
}
