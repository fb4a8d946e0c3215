package chart

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/xela07ax/speedview/internal/domain"
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Text рисует график строками-спарклайнами для терминала.
// Width — сколько последних точек помещается в строку.
type Text struct {
	Width int
}

func NewText(width int) *Text {
	if width <= 0 {
		width = 40
	}
	return &Text{Width: width}
}

func (t *Text) Render(plot domain.Plot, w io.Writer) error {
	fig, err := Parse(plot)
	if err != nil {
		return err
	}

	var b strings.Builder
	if fig.Title != "" {
		b.WriteString(fig.Title)
		b.WriteByte('\n')
	}
	if fig.Points() == 0 {
		b.WriteString("No speed tests recorded yet.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	// Общая шкала для всех трасс, чтобы линии были сравнимы между собой
	lo, hi := math.Inf(1), math.Inf(-1)
	nameWidth := 0
	for _, tr := range fig.Traces {
		for _, y := range tr.Y {
			lo = math.Min(lo, y)
			hi = math.Max(hi, y)
		}
		if len(tr.Name) > nameWidth {
			nameWidth = len(tr.Name)
		}
	}

	for _, tr := range fig.Traces {
		if tr.Points() == 0 {
			continue
		}
		ys := tr.Y
		if len(ys) > t.Width {
			ys = ys[len(ys)-t.Width:]
		}
		fmt.Fprintf(&b, "%-*s %s  last %.2f  min %.2f  max %.2f  (n=%d)\n",
			nameWidth, tr.Name, Sparkline(ys, lo, hi), tr.Y[len(tr.Y)-1], minOf(tr.Y), maxOf(tr.Y), tr.Points())
	}
	if fig.YTitle != "" {
		fmt.Fprintf(&b, "scale: %.2f .. %.2f %s\n", lo, hi, fig.YTitle)
	}

	_, err = io.WriteString(w, b.String())
	return err
}

// Sparkline переводит значения в блоки ▁..█ в диапазоне [lo, hi].
func Sparkline(ys []float64, lo, hi float64) string {
	out := make([]rune, len(ys))
	span := hi - lo
	top := len(sparkLevels) - 1
	for i, y := range ys {
		idx := top / 2
		if span > 0 {
			idx = int(math.Round((y - lo) / span * float64(top)))
		}
		if idx < 0 {
			idx = 0
		}
		if idx > top {
			idx = top
		}
		out[i] = sparkLevels[idx]
	}
	return string(out)
}

func minOf(ys []float64) float64 {
	m := math.Inf(1)
	for _, y := range ys {
		m = math.Min(m, y)
	}
	return m
}

func maxOf(ys []float64) float64 {
	m := math.Inf(-1)
	for _, y := range ys {
		m = math.Max(m, y)
	}
	return m
}
