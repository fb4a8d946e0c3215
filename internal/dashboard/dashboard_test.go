package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/xela07ax/speedview/internal/backend"
	"github.com/xela07ax/speedview/internal/domain"
	"github.com/xela07ax/speedview/internal/view"
)

// recordingView пишет последовательность вызовов поверх обычного State.
type recordingView struct {
	*view.State
	mu    sync.Mutex
	calls []string
}

func newRecordingView() *recordingView {
	return &recordingView{State: view.NewState()}
}

func (v *recordingView) record(call string) {
	v.mu.Lock()
	v.calls = append(v.calls, call)
	v.mu.Unlock()
}

func (v *recordingView) SetBusy(busy bool) {
	if busy {
		v.record("busy")
	} else {
		v.record("idle")
	}
	v.State.SetBusy(busy)
}

func (v *recordingView) SetResult(msg string) {
	v.record("result")
	v.State.SetResult(msg)
}

func (v *recordingView) SetError(msg string) {
	v.record("error")
	v.State.SetError(msg)
}

func (v *recordingView) SetStats(s view.StatsText) {
	v.record("stats")
	v.State.SetStats(s)
}

func (v *recordingView) SetChart(p domain.Plot) {
	v.record("chart")
	v.State.SetChart(p)
}

func (v *recordingView) Calls() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return strings.Join(v.calls, ",")
}

type fakeBackend struct {
	runTest   func(ctx context.Context) (*domain.TestResult, error)
	visualize func(ctx context.Context) (*domain.Visualization, error)
}

func (f *fakeBackend) RunTest(ctx context.Context) (*domain.TestResult, error) {
	return f.runTest(ctx)
}

func (f *fakeBackend) Visualize(ctx context.Context) (*domain.Visualization, error) {
	return f.visualize(ctx)
}

func okVisualization() *domain.Visualization {
	return &domain.Visualization{
		Plot:  domain.Plot{Data: json.RawMessage(`[]`), Layout: json.RawMessage(`{}`)},
		Stats: domain.Stats{AvgDownload: 50.555, AvgUpload: 10.1, AvgPing: 12.5, TotalTests: 7},
	}
}

func TestRunTestEndToEnd(t *testing.T) {
	var visualizeCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case backend.PathRunTest:
			_, _ = w.Write([]byte(`{"success":true,"result":{"download_speed":12.345,"upload_speed":3.21,"ping":27.8}}`))
		case backend.PathVisualize:
			visualizeCalls.Add(1)
			_, _ = w.Write([]byte(`{"success":true,"plot":{"data":[],"layout":{}},"stats":{"avg_download":12.345,"avg_upload":3.21,"avg_ping":27.8,"total_tests":1}}`))
		}
	}))
	defer srv.Close()

	v := newRecordingView()
	var resultMsg string
	// Перехватываем сообщение о результате до того, как его сменит график
	probe := &probeView{onResult: func(msg string) { resultMsg = msg }}
	d := New(backend.NewClient(srv.URL, zap.NewNop()), view.Multi{v, probe}, nil, zap.NewNop())

	if err := d.RunTest(context.Background()); err != nil {
		t.Fatalf("RunTest: %v", err)
	}

	for _, want := range []string{"Download: 12.35 Mbps", "Upload: 3.21 Mbps", "Ping: 28 ms"} {
		if !strings.Contains(resultMsg, want) {
			t.Fatalf("result message %q missing %q", resultMsg, want)
		}
	}
	if got := visualizeCalls.Load(); got != 1 {
		t.Fatalf("visualize calls = %d, want 1", got)
	}
	if got, want := v.Calls(), "busy,result,chart,stats,idle"; got != want {
		t.Fatalf("call order = %s, want %s", got, want)
	}
	snap := v.Snapshot()
	if snap.Busy || snap.Display.Kind != view.KindChart || snap.Stats.AvgPing != "28 ms" || snap.Stats.TotalTests != "1" {
		t.Fatalf("final state = %+v", snap)
	}
}

type probeView struct {
	onResult func(string)
}

func (p *probeView) SetBusy(bool)            {}
func (p *probeView) SetResult(msg string)    { p.onResult(msg) }
func (p *probeView) SetError(string)         {}
func (p *probeView) SetStats(view.StatsText) {}
func (p *probeView) SetChart(domain.Plot)    {}

func TestRunTestFailureShowsErrorAndReenables(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"backend reason", &backend.AppError{Op: backend.OpRunTest, Reason: "X"}, "Error running speed test: X"},
		{"default reason", &backend.AppError{Op: backend.OpRunTest, Reason: backend.DefaultTestFailure}, "Speed test failed"},
		{"transport", &backend.TransportError{Op: backend.OpRunTest, Cause: errors.New("connection refused")}, "connection refused"},
		{"decode", &backend.DecodeError{Op: backend.OpRunTest, StatusCode: 200, Cause: errors.New("bad json")}, "bad json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var visualized bool
			fb := &fakeBackend{
				runTest: func(context.Context) (*domain.TestResult, error) { return nil, tc.err },
				visualize: func(context.Context) (*domain.Visualization, error) {
					visualized = true
					return okVisualization(), nil
				},
			}
			v := newRecordingView()
			d := New(fb, v, nil, zap.NewNop())

			if err := d.RunTest(context.Background()); !errors.Is(err, tc.err) {
				t.Fatalf("err = %v, want wrapping %v", err, tc.err)
			}
			snap := v.Snapshot()
			if snap.Busy || snap.TriggerLabel != view.TriggerLabel {
				t.Fatalf("control left disabled: %+v", snap)
			}
			if snap.Display.Kind != view.KindError || !strings.Contains(snap.Display.Message, tc.want) {
				t.Fatalf("display = %+v, want message containing %q", snap.Display, tc.want)
			}
			if !strings.Contains(snap.Display.Message, "Please make sure the backend server is running.") {
				t.Fatalf("hint missing: %q", snap.Display.Message)
			}
			if visualized {
				t.Fatalf("failed test must not trigger a refresh")
			}
		})
	}
}

func TestRunTestReenablesOnPanic(t *testing.T) {
	fb := &fakeBackend{
		runTest: func(context.Context) (*domain.TestResult, error) { panic("backend client bug") },
	}
	v := newRecordingView()
	d := New(fb, v, nil, zap.NewNop())

	func() {
		defer func() { _ = recover() }()
		_ = d.RunTest(context.Background())
	}()

	if v.Snapshot().Busy || d.Running() {
		t.Fatalf("control must be re-enabled even after a panic")
	}
}

func TestRunTestRejectsConcurrentTrigger(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	fb := &fakeBackend{
		runTest: func(context.Context) (*domain.TestResult, error) {
			close(started)
			<-release
			return &domain.TestResult{DownloadSpeed: 1, UploadSpeed: 1, Ping: 1}, nil
		},
		visualize: func(context.Context) (*domain.Visualization, error) { return okVisualization(), nil },
	}
	d := New(fb, view.NewState(), nil, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- d.RunTest(context.Background()) }()
	<-started

	if err := d.RunTest(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("second trigger err = %v, want ErrBusy", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if d.Running() {
		t.Fatalf("still running after completion")
	}
}

func TestRefreshMissingStatsIsFailure(t *testing.T) {
	// Настоящий клиент: бэкенд прислал валидный график без stats
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"plot":{"data":[{"x":[1],"y":[2]}],"layout":{}}}`))
	}))
	defer srv.Close()

	v := newRecordingView()
	stale := view.StatsText{AvgDownload: "1.00 Mbps", AvgUpload: "2.00 Mbps", AvgPing: "3 ms", TotalTests: "4"}
	v.State.SetStats(stale)
	d := New(backend.NewClient(srv.URL, zap.NewNop()), v, nil, zap.NewNop())

	if err := d.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	snap := v.Snapshot()
	if snap.Display.Kind != view.KindError {
		t.Fatalf("display = %+v", snap.Display)
	}
	want := "Error loading visualization: " + backend.ReasonInvalidStats
	if !strings.Contains(snap.Display.Message, want) {
		t.Fatalf("message = %q, want %q", snap.Display.Message, want)
	}
	if snap.Stats != stale {
		t.Fatalf("stats must stay stale, got %+v", snap.Stats)
	}
	if v.Calls() != "error" {
		t.Fatalf("no partial rendering allowed, calls = %s", v.Calls())
	}
}

func TestRefreshSuccessFormatsStats(t *testing.T) {
	fb := &fakeBackend{visualize: func(context.Context) (*domain.Visualization, error) { return okVisualization(), nil }}
	v := view.NewState()
	m := NewMetrics(nil)
	d := New(fb, v, m, zap.NewNop())

	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	want := view.StatsText{AvgDownload: "50.55 Mbps", AvgUpload: "10.10 Mbps", AvgPing: "13 ms", TotalTests: "7"}
	if got := v.Snapshot().Stats; got != want {
		t.Fatalf("stats = %+v, want %+v", got, want)
	}
	if got := testutil.ToFloat64(m.BackendStats.WithLabelValues("total_tests")); got != 7 {
		t.Fatalf("total_tests gauge = %v", got)
	}
	if got := testutil.ToFloat64(m.RefreshTotal.WithLabelValues("ok")); got != 1 {
		t.Fatalf("refresh ok counter = %v", got)
	}
}

func TestTryRefreshDropsWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 4)
	var calls atomic.Int32
	fb := &fakeBackend{visualize: func(context.Context) (*domain.Visualization, error) {
		calls.Add(1)
		entered <- struct{}{}
		<-release
		return okVisualization(), nil
	}}
	m := NewMetrics(nil)
	d := New(fb, view.NewState(), m, zap.NewNop())

	done := make(chan struct{})
	go func() {
		_, _ = d.TryRefresh(context.Background())
		close(done)
	}()
	<-entered

	ran, err := d.TryRefresh(context.Background())
	if ran || err != nil {
		t.Fatalf("TryRefresh while in flight = (%v, %v), want dropped", ran, err)
	}
	if got := testutil.ToFloat64(m.RefreshTotal.WithLabelValues("dropped")); got != 1 {
		t.Fatalf("dropped counter = %v", got)
	}

	// Refresh встает в очередь и выполняется после текущего
	queued := make(chan error, 1)
	go func() { queued <- d.Refresh(context.Background()) }()

	close(release)
	<-done
	if err := <-queued; err != nil {
		t.Fatalf("queued Refresh: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("visualize calls = %d, want 2", got)
	}
}

func TestCanceledContextSkipsErrorDisplay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fb := &fakeBackend{visualize: func(ctx context.Context) (*domain.Visualization, error) {
		cancel()
		return nil, &backend.TransportError{Op: backend.OpVisualize, Cause: ctx.Err()}
	}}
	v := newRecordingView()
	d := New(fb, v, nil, zap.NewNop())

	if err := d.Refresh(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if v.Calls() != "" {
		t.Fatalf("nothing should be rendered on shutdown, got %s", v.Calls())
	}
}

func TestRunTestWaitsForQueuedRefresh(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 4)
	var calls atomic.Int32
	fb := &fakeBackend{
		runTest: func(context.Context) (*domain.TestResult, error) {
			return &domain.TestResult{DownloadSpeed: 1, UploadSpeed: 1, Ping: 1}, nil
		},
		visualize: func(context.Context) (*domain.Visualization, error) {
			if calls.Add(1) == 1 {
				entered <- struct{}{}
				<-release
			}
			return okVisualization(), nil
		},
	}
	d := New(fb, view.NewState(), nil, zap.NewNop())

	// Обновление по таймеру висит в полете
	go func() { _, _ = d.TryRefresh(context.Background()) }()
	<-entered

	done := make(chan error, 1)
	go func() { done <- d.RunTest(context.Background()) }()

	select {
	case <-done:
		t.Fatalf("RunTest must wait for its own refresh")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("RunTest: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("post-test refresh must not be dropped, calls = %d", got)
	}
}
