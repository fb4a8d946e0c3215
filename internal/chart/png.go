package chart

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/xela07ax/speedview/internal/domain"
)

// PNG рисует график через go-chart в растровую картинку фиксированного размера.
type PNG struct {
	Width  int
	Height int
}

func NewPNG(width, height int) *PNG {
	return &PNG{Width: width, Height: height}
}

func (p *PNG) Render(plot domain.Plot, w io.Writer) error {
	fig, err := Parse(plot)
	if err != nil {
		return err
	}
	if fig.Points() == 0 {
		return ErrNoData
	}

	ch := gochart.Chart{
		Title:      fig.Title,
		Width:      p.Width,
		Height:     p.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      gochart.XAxis{Name: fig.XTitle},
		YAxis:      gochart.YAxis{Name: fig.YTitle},
	}
	if fig.TimeAxis() {
		ch.XAxis.ValueFormatter = gochart.TimeValueFormatterWithFormat("01-02 15:04")
	}

	for i, tr := range fig.Traces {
		if tr.Points() == 0 {
			continue
		}
		ch.Series = append(ch.Series, toSeries(tr, seriesStyle(tr.Color, i)))
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}

	if err := ch.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("chart: render png: %w", err)
	}
	return nil
}

// toSeries превращает трассу в серию go-chart.
// go-chart не рисует нулевой диапазон, поэтому одну точку растягиваем на отрезок.
func toSeries(tr Trace, st gochart.Style) gochart.Series {
	ys := tr.Y
	if tr.Times != nil {
		xs := tr.Times
		if len(xs) == 1 {
			xs = []time.Time{xs[0], xs[0].Add(time.Minute)}
			ys = []float64{ys[0], ys[0]}
		}
		return gochart.TimeSeries{Name: tr.Name, XValues: xs, YValues: ys, Style: st}
	}
	xs := tr.X
	if len(xs) == 1 {
		xs = []float64{xs[0], xs[0] + 1}
		ys = []float64{ys[0], ys[0]}
	}
	return gochart.ContinuousSeries{Name: tr.Name, XValues: xs, YValues: ys, Style: st}
}

func seriesStyle(color string, i int) gochart.Style {
	c, ok := parseColor(color)
	if !ok {
		c = gochart.GetDefaultColor(i)
	}
	return gochart.Style{
		StrokeColor: c,
		StrokeWidth: 2,
		DotColor:    c,
		DotWidth:    3,
	}
}

var rgbRe = regexp.MustCompile(`^rgba?\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)`)

// parseColor понимает "rgb(31, 119, 180)" и "#1f77b4".
func parseColor(s string) (drawing.Color, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") && (len(s) == 7 || len(s) == 4) {
		return drawing.ColorFromHex(strings.TrimPrefix(s, "#")), true
	}
	m := rgbRe.FindStringSubmatch(s)
	if m == nil {
		return drawing.Color{}, false
	}
	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(m[i+1])
		if err != nil || v > 255 {
			return drawing.Color{}, false
		}
		rgb[i] = uint8(v)
	}
	return drawing.Color{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}, true
}
