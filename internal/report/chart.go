// Package report renders leaderboards and trends into downloadable files.
package report

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/okian/arena/internal/domain/model"
)

// Palette colours a chart.
type Palette struct {
	Background drawing.Color
	Line       drawing.Color
	Dot        drawing.Color
	Text       drawing.Color
}

// DefaultPalette is a light theme.
var DefaultPalette = Palette{
	Background: drawing.ColorWhite,
	Line:       drawing.ColorFromHex("2563eb"),
	Dot:        drawing.ColorFromHex("f59e0b"),
	Text:       drawing.ColorFromHex("1f2937"),
}

const (
	chartWidth  = 800
	chartHeight = 400
	noDataMsg   = "No scored submissions in this period"
)

// TrendPNG draws the trend's points as a time series line chart. A trend
// without points renders a placeholder image.
func TrendPNG(tr model.ScoreTrend, palette Palette) ([]byte, error) {
	if len(tr.Points) == 0 {
		return placeholderPNG(palette)
	}

	xs := make([]time.Time, len(tr.Points))
	ys := make([]float64, len(tr.Points))
	for i, p := range tr.Points {
		xs[i] = p.Timestamp
		ys[i] = p.Score
	}

	series := chart.TimeSeries{
		Name:    fmt.Sprintf("%s (%s)", tr.TeamID, tr.Direction),
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeColor: palette.Line,
			StrokeWidth: 2,
			DotWidth:    4,
			DotColor:    palette.Dot,
		},
	}

	xmin, xmax := timeBounds(xs)
	ymin, ymax := padded(tr.Metadata.MinScore, tr.Metadata.MaxScore)
	graph := chart.Chart{
		Title:      fmt.Sprintf("Score trend %+.1f%%", tr.PercentChange),
		Width:      chartWidth,
		Height:     chartHeight,
		Background: chart.Style{FillColor: palette.Background},
		Canvas:     chart.Style{FillColor: palette.Background},
		TitleStyle: chart.Style{FontColor: palette.Text},
		XAxis: chart.XAxis{
			Name:           "Submitted",
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
			Style:          chart.Style{FontColor: palette.Text},
			Range:          &chart.ContinuousRange{Min: chart.TimeToFloat64(xmin), Max: chart.TimeToFloat64(xmax)},
		},
		YAxis: chart.YAxis{
			Name:  "Average score",
			Style: chart.Style{FontColor: palette.Text},
			Range: &chart.ContinuousRange{Min: ymin, Max: ymax},
		},
		Series: []chart.Series{series},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render trend chart: %w", err)
	}
	return buf.Bytes(), nil
}

func placeholderPNG(palette Palette) ([]byte, error) {
	graph := chart.Chart{
		Width:      400,
		Height:     200,
		Background: chart.Style{FillColor: palette.Background},
		Canvas:     chart.Style{FillColor: palette.Background},
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, _ chart.Style) {
				r.SetFontColor(palette.Text)
				r.SetFontSize(12.0)
				tb := r.MeasureText(noDataMsg)
				r.Text(noDataMsg, (cb.Width()-tb.Width())/2, (cb.Height()+tb.Height())/2)
			},
		},
	}
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render placeholder chart: %w", err)
	}
	return buf.Bytes(), nil
}

// timeBounds widens a single instant to a day so the axis has a non-zero span.
func timeBounds(xs []time.Time) (time.Time, time.Time) {
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x.Before(lo) {
			lo = x
		}
		if x.After(hi) {
			hi = x
		}
	}
	if !hi.After(lo) {
		return lo.Add(-12 * time.Hour), hi.Add(12 * time.Hour)
	}
	return lo, hi
}

// padded adds a margin around [lo, hi], at least one point wide.
func padded(lo, hi float64) (float64, float64) {
	pad := math.Max((hi-lo)*0.1, 1)
	return lo - pad, hi + pad
}
