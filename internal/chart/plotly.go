// Package chart рисует графики из непрозрачного ответа бэкенда.
// Dashboard передает сюда непрозрачную пару data/layout, а уже здесь
// разбираются Plotly-совместимые scatter-трассы.
package chart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xela07ax/speedview/internal/domain"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoData — в графике нет ни одной точки, рисовать нечего.
var ErrNoData = errors.New("chart: no data points")

// Renderer рисует график в writer в своем формате (PNG, текст).
type Renderer interface {
	Render(plot domain.Plot, w io.Writer) error
}

// Figure — то, что удалось понять из Plotly-описания.
type Figure struct {
	Title  string
	XTitle string
	YTitle string
	Traces []Trace
}

// Trace — одна линия графика. Если ось X временная, заполнен Times, иначе X.
type Trace struct {
	Name  string
	Color string
	Times []time.Time
	X     []float64
	Y     []float64
}

// Points возвращает число точек в трассе.
func (t Trace) Points() int { return len(t.Y) }

// TimeAxis сообщает, что все трассы с временной осью X.
func (f *Figure) TimeAxis() bool {
	for _, t := range f.Traces {
		if t.Times == nil {
			return false
		}
	}
	return len(f.Traces) > 0
}

// Points возвращает суммарное число точек во всех трассах.
func (f *Figure) Points() int {
	n := 0
	for _, t := range f.Traces {
		n += t.Points()
	}
	return n
}

type traceWire struct {
	Type   string        `json:"type"`
	Name   string        `json:"name"`
	X      []interface{} `json:"x"`
	Y      []*float64    `json:"y"`
	Line   *colorWire    `json:"line"`
	Marker *colorWire    `json:"marker"`
}

type colorWire struct {
	Color string `json:"color"`
}

type layoutWire struct {
	Title json.RawMessage `json:"title"`
	XAxis *axisWire       `json:"xaxis"`
	YAxis *axisWire       `json:"yaxis"`
}

type axisWire struct {
	Title json.RawMessage `json:"title"`
}

// Parse разбирает data/layout. Поддерживаются scatter-трассы (тип по умолчанию в Plotly);
// остальные типы пропускаются.
func Parse(plot domain.Plot) (*Figure, error) {
	var traces []traceWire
	if err := jsonAPI.Unmarshal(plot.Data, &traces); err != nil {
		return nil, fmt.Errorf("chart: decode data: %w", err)
	}

	fig := &Figure{}
	if len(bytes.TrimSpace(plot.Layout)) > 0 {
		var layout layoutWire
		if err := jsonAPI.Unmarshal(plot.Layout, &layout); err != nil {
			return nil, fmt.Errorf("chart: decode layout: %w", err)
		}
		fig.Title = parseTitle(layout.Title)
		if layout.XAxis != nil {
			fig.XTitle = parseTitle(layout.XAxis.Title)
		}
		if layout.YAxis != nil {
			fig.YTitle = parseTitle(layout.YAxis.Title)
		}
	}

	for i, tw := range traces {
		if tw.Type != "" && tw.Type != "scatter" && tw.Type != "scattergl" {
			continue
		}
		tr := Trace{Name: tw.Name}
		if tr.Name == "" {
			tr.Name = "trace " + strconv.Itoa(i)
		}
		switch {
		case tw.Line != nil && tw.Line.Color != "":
			tr.Color = tw.Line.Color
		case tw.Marker != nil && tw.Marker.Color != "":
			tr.Color = tw.Marker.Color
		}
		fillXY(&tr, tw.X, tw.Y)
		fig.Traces = append(fig.Traces, tr)
	}
	return fig, nil
}

// fillXY раскладывает точки по типу оси X; пропуски (null в y) выбрасываются.
func fillXY(tr *Trace, xs []interface{}, ys []*float64) {
	n := len(ys)
	if len(xs) > 0 && len(xs) < n {
		n = len(xs)
	}

	times := make([]time.Time, 0, n)
	nums := make([]float64, 0, n)
	timeAxis := len(xs) > 0
	for i := 0; i < n; i++ {
		if ys[i] == nil {
			continue
		}
		var x interface{}
		if i < len(xs) {
			x = xs[i]
		}
		switch v := x.(type) {
		case string:
			if ts, err := parseTime(v); err == nil {
				times = append(times, ts)
			} else {
				timeAxis = false
			}
			nums = append(nums, float64(i))
		case float64:
			timeAxis = false
			nums = append(nums, v)
		default:
			timeAxis = false
			nums = append(nums, float64(i))
		}
		tr.Y = append(tr.Y, *ys[i])
	}

	if timeAxis && len(times) == len(tr.Y) {
		tr.Times = times
		return
	}
	tr.X = nums
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("chart: not a timestamp: %q", s)
}

// parseTitle понимает обе формы Plotly: "title": "..." и "title": {"text": "..."}.
func parseTitle(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := jsonAPI.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := jsonAPI.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Text)
	}
	return ""
}
