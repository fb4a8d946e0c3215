// Package tui рисует терминальный экран дашборда на tview.
package tui

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/xela07ax/speedview/internal/chart"
	"github.com/xela07ax/speedview/internal/domain"
	"github.com/xela07ax/speedview/internal/view"
)

const (
	appTitle   = "Speed Test Dashboard"
	chartTitle = "Network Speed"
	footerKeys = "[yellow]r[-] Run Speed Test  [yellow]q[-] Quit"
)

var (
	uiBorderColor = tcell.ColorDarkCyan
	uiTitleColor  = tcell.ColorWhite
)

// View реализует view.View поверх tview. Все изменения виджетов идут
// через очередь приложения, поэтому Set* можно звать из любых горутин.
type View struct {
	app      *tview.Application
	button   *tview.Button
	output   *tview.TextView
	footer   *tview.TextView
	download *tview.TextView
	upload   *tview.TextView
	ping     *tview.TextView
	total    *tview.TextView

	renderer  chart.Renderer
	onTrigger func()
	// queue подменяется в тестах на синхронный вызов
	queue func(func())

	busy   atomic.Bool
	closed atomic.Bool

	mu     sync.Mutex
	testAt time.Time
	plotAt time.Time
}

// New собирает экран. onTrigger вызывается в отдельной горутине
// по кнопке или клавише r, если замер сейчас не идет.
func New(renderer chart.Renderer, onTrigger func()) *View {
	v := &View{
		app:       tview.NewApplication(),
		renderer:  renderer,
		onTrigger: onTrigger,
	}
	v.queue = func(fn func()) { v.app.QueueUpdateDraw(fn) }
	v.build()
	return v
}

func (v *View) build() {
	header := tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignCenter).
		SetText("[::b]" + appTitle)

	v.button = tview.NewButton(view.TriggerLabel).SetSelectedFunc(v.trigger)
	v.button.SetBorder(true).SetBorderColor(uiBorderColor)

	v.output = newBoxedTextView(chartTitle)
	v.output.SetWrap(true)

	v.download = newBoxedTextView("Avg Download")
	v.upload = newBoxedTextView("Avg Upload")
	v.ping = newBoxedTextView("Avg Ping")
	v.total = newBoxedTextView("Total Tests")
	for _, tv := range []*tview.TextView{v.download, v.upload, v.ping, v.total} {
		tv.SetText("-")
	}

	stats := tview.NewFlex().
		AddItem(v.download, 0, 1, false).
		AddItem(v.upload, 0, 1, false).
		AddItem(v.ping, 0, 1, false).
		AddItem(v.total, 0, 1, false)

	controls := tview.NewFlex().
		AddItem(v.button, 24, 0, true).
		AddItem(tview.NewBox(), 0, 1, false)

	v.footer = tview.NewTextView().SetDynamicColors(true)
	v.footer.SetText(footerKeys)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, 1, 0, false).
		AddItem(controls, 3, 0, true).
		AddItem(v.output, 0, 1, false).
		AddItem(stats, 3, 0, false).
		AddItem(v.footer, 1, 0, false)

	v.app.SetRoot(root, true).SetFocus(v.button)
	v.app.SetInputCapture(v.handleKey)
}

func (v *View) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch {
	case event.Key() == tcell.KeyRune && event.Rune() == 'r':
		v.trigger()
		return nil
	case event.Key() == tcell.KeyRune && event.Rune() == 'q', event.Key() == tcell.KeyCtrlC:
		v.Stop()
		return nil
	}
	return event
}

// Run блокирует до выхода из приложения (q, Ctrl-C или Stop).
func (v *View) Run() error {
	done := make(chan struct{})
	defer close(done)

	// Подпись "N ago" стареет сама по себе: перерисовываем раз в секунду
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				v.post(v.refreshFooter)
			}
		}
	}()

	err := v.app.Run()
	v.closed.Store(true)
	return err
}

// Stop закрывает приложение. Флаг ставится до app.Stop: после него
// очередь tview никто не разбирает, и Set* не должны в нее писать.
func (v *View) Stop() {
	if v.closed.Swap(true) {
		return
	}
	v.app.Stop()
}

func (v *View) trigger() {
	if v.busy.Load() || v.onTrigger == nil {
		return
	}
	go v.onTrigger()
}

func (v *View) post(fn func()) {
	if v.closed.Load() {
		return
	}
	v.queue(fn)
}

func (v *View) SetBusy(busy bool) {
	v.busy.Store(busy)
	v.post(func() {
		if busy {
			v.button.SetLabel(view.TriggerBusyLabel)
			v.output.SetText(tview.Escape(view.BusyMessage))
		} else {
			v.button.SetLabel(view.TriggerLabel)
		}
		v.button.SetDisabled(busy)
	})
}

func (v *View) SetResult(msg string) {
	v.mu.Lock()
	v.testAt = time.Now()
	v.mu.Unlock()
	v.post(func() {
		v.output.SetText("[green]" + tview.Escape(msg))
		v.refreshFooter()
	})
}

func (v *View) SetError(msg string) {
	v.post(func() {
		v.output.SetText("[red]" + tview.Escape(msg))
	})
}

func (v *View) SetStats(stats view.StatsText) {
	v.post(func() {
		v.download.SetText(tview.Escape(stats.AvgDownload))
		v.upload.SetText(tview.Escape(stats.AvgUpload))
		v.ping.SetText(tview.Escape(stats.AvgPing))
		v.total.SetText(tview.Escape(stats.TotalTests))
	})
}

func (v *View) SetChart(plot domain.Plot) {
	text := renderText(v.renderer, plot)
	v.mu.Lock()
	v.plotAt = time.Now()
	v.mu.Unlock()
	v.post(func() {
		v.output.SetText(tview.Escape(text))
		v.refreshFooter()
	})
}

func (v *View) refreshFooter() {
	v.footer.SetText(footerText(v.lastTimes()))
}

func (v *View) lastTimes() (testAt, plotAt time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.testAt, v.plotAt
}

func footerText(testAt, plotAt time.Time) string {
	s := footerKeys
	if !testAt.IsZero() {
		s += "  |  last test " + humanize.Time(testAt)
	}
	if !plotAt.IsZero() {
		s += "  |  chart updated " + humanize.Time(plotAt)
	}
	return s
}

// renderText превращает график в текст; ошибка разбора показывается на месте графика.
func renderText(r chart.Renderer, plot domain.Plot) string {
	var buf bytes.Buffer
	if err := r.Render(plot, &buf); err != nil {
		return "Unable to draw chart: " + err.Error()
	}
	return buf.String()
}

func newBoxedTextView(title string) *tview.TextView {
	tv := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	tv.SetBorder(true)
	if title != "" {
		tv.SetTitle(" " + title + " ").SetTitleAlign(tview.AlignLeft)
	}
	tv.SetBorderColor(uiBorderColor)
	tv.SetTitleColor(uiTitleColor)
	return tv
}
