package view

import (
	"encoding/json"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/xela07ax/speedview/internal/domain"
)

func TestStateBusyCycle(t *testing.T) {
	s := NewState()
	if snap := s.Snapshot(); snap.Busy || snap.TriggerLabel != TriggerLabel || snap.Display.Kind != KindEmpty {
		t.Fatalf("unexpected initial state %+v", snap)
	}

	s.SetBusy(true)
	snap := s.Snapshot()
	if !snap.Busy || snap.TriggerLabel != TriggerBusyLabel {
		t.Fatalf("busy state not applied: %+v", snap)
	}
	if snap.Display.Kind != KindBusy || snap.Display.Message != BusyMessage {
		t.Fatalf("busy indicator missing: %+v", snap.Display)
	}

	s.SetResult("done")
	s.SetBusy(false)
	snap = s.Snapshot()
	if snap.Busy || snap.TriggerLabel != TriggerLabel {
		t.Fatalf("control not re-enabled: %+v", snap)
	}
	// Снятие занятости не должно стирать результат
	if snap.Display.Kind != KindResult || snap.Display.Message != "done" {
		t.Fatalf("result lost: %+v", snap.Display)
	}
}

func TestStateErrorKeepsStats(t *testing.T) {
	s := NewState()
	stats := StatsText{AvgDownload: "1.00 Mbps", AvgUpload: "2.00 Mbps", AvgPing: "3 ms", TotalTests: "4"}
	s.SetStats(stats)
	s.SetError("boom")

	snap := s.Snapshot()
	if snap.Stats != stats {
		t.Fatalf("stats changed by error: %+v", snap.Stats)
	}
	if snap.Display.Kind != KindError || snap.Display.Message != "boom" {
		t.Fatalf("display = %+v", snap.Display)
	}
}

func TestStateChartReplacesRegion(t *testing.T) {
	s := NewState()
	s.SetError("old")
	plot := domain.Plot{Data: json.RawMessage(`[1]`), Layout: json.RawMessage(`{}`)}
	s.SetChart(plot)

	snap := s.Snapshot()
	if snap.Display.Kind != KindChart || snap.Display.Message != "" {
		t.Fatalf("chart region not replaced: %+v", snap.Display)
	}
	if string(snap.Display.Plot.Data) != "[1]" {
		t.Fatalf("plot = %s", snap.Display.Plot.Data)
	}
	if snap.ChartAt.IsZero() {
		t.Fatalf("chart time not recorded")
	}
}

func TestStateConcurrentWritesAreAtomic(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetError("a")
		}()
		go func() {
			defer wg.Done()
			s.SetChart(domain.Plot{Data: json.RawMessage(`[]`), Layout: json.RawMessage(`{}`)})
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	switch snap.Display.Kind {
	case KindError:
		if snap.Display.Plot != nil || snap.Display.Message != "a" {
			t.Fatalf("mixed region: %+v", snap.Display)
		}
	case KindChart:
		if snap.Display.Message != "" || snap.Display.Plot == nil {
			t.Fatalf("mixed region: %+v", snap.Display)
		}
	default:
		t.Fatalf("unexpected kind %s", snap.Display.Kind)
	}
	if snap.Version != 100 {
		t.Fatalf("version = %d, want 100", snap.Version)
	}
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewState(), NewState()
	m := Multi{a, b, NewLog(zap.NewNop())}

	m.SetBusy(true)
	m.SetResult("ok")
	m.SetStats(StatsText{TotalTests: "1"})
	m.SetChart(domain.Plot{Data: json.RawMessage(`[]`), Layout: json.RawMessage(`{}`)})
	m.SetError("x")
	m.SetBusy(false)

	for i, s := range []*State{a, b} {
		snap := s.Snapshot()
		if snap.Busy || snap.Display.Message != "x" || snap.Stats.TotalTests != "1" {
			t.Fatalf("view %d missed updates: %+v", i, snap)
		}
	}
}
