package backend

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/xela07ax/speedview/internal/domain"
)

// Stub — встроенная имитация сервиса замеров с тем же HTTP-контрактом.
// Нужна для демо-режима (-demo) и тестов: настоящих замеров не делает.
type Stub struct {
	mu      sync.Mutex
	history []domain.TestResult

	// Имитация длительности замера, 0 отвечает сразу
	Latency time.Duration
	// Если FailNext не пуст, следующий /api/run-test вернет success=false с этим текстом
	FailNext string

	now func() time.Time
}

func NewStub(latency time.Duration) *Stub {
	return &Stub{Latency: latency, now: time.Now}
}

func (s *Stub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == PathRunTest && r.Method == http.MethodPost:
		s.handleRunTest(w, r)
	case r.URL.Path == PathVisualize && r.Method == http.MethodGet:
		s.handleVisualize(w)
	case r.URL.Path == PathRunTest || r.URL.Path == PathVisualize:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

func (s *Stub) handleRunTest(w http.ResponseWriter, r *http.Request) {
	if err := sleepCtx(r.Context(), s.Latency); err != nil {
		return // клиент ушел
	}

	s.mu.Lock()
	if reason := s.FailNext; reason != "" {
		s.FailNext = ""
		s.mu.Unlock()
		writeJSON(w, map[string]interface{}{"success": false, "error": reason})
		return
	}

	// Разброс как у домашнего канала: 50-150 вниз, 10-40 вверх, 5-60 мс
	res := domain.TestResult{
		Timestamp:     s.now().UTC(),
		DownloadSpeed: 50 + rand.Float64()*100,
		UploadSpeed:   10 + rand.Float64()*30,
		Ping:          5 + rand.Float64()*55,
		Server:        "Demo Stub",
	}
	s.history = append(s.history, res)
	s.mu.Unlock()

	writeJSON(w, map[string]interface{}{"success": true, "result": res})
}

func (s *Stub) handleVisualize(w http.ResponseWriter) {
	s.mu.Lock()
	history := append([]domain.TestResult(nil), s.history...)
	s.mu.Unlock()

	xs := make([]string, 0, len(history))
	down := make([]float64, 0, len(history))
	up := make([]float64, 0, len(history))
	var stats domain.Stats
	for _, r := range history {
		xs = append(xs, r.Timestamp.Format(time.RFC3339))
		down = append(down, r.DownloadSpeed)
		up = append(up, r.UploadSpeed)
		stats.AvgDownload += r.DownloadSpeed
		stats.AvgUpload += r.UploadSpeed
		stats.AvgPing += r.Ping
	}
	if n := len(history); n > 0 {
		stats.TotalTests = n
		stats.AvgDownload /= float64(n)
		stats.AvgUpload /= float64(n)
		stats.AvgPing /= float64(n)
	}

	plot := map[string]interface{}{
		"data": []map[string]interface{}{
			{"type": "scatter", "mode": "lines+markers", "name": "Download Speed", "x": xs, "y": down},
			{"type": "scatter", "mode": "lines+markers", "name": "Upload Speed", "x": xs, "y": up},
		},
		"layout": map[string]interface{}{
			"title":  map[string]string{"text": "Network Speed Over Time"},
			"xaxis":  map[string]interface{}{"title": map[string]string{"text": "Time"}},
			"yaxis":  map[string]interface{}{"title": map[string]string{"text": "Speed (Mbps)"}},
			"height": 500,
		},
	}
	writeJSON(w, map[string]interface{}{"success": true, "plot": plot, "stats": stats})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = jsonAPI.NewEncoder(w).Encode(v)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
