package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/pulse.report/internal/rppg/session"
)

// gap is rendered by echarts as a missing point.
const gap = "-"

func lineValue(v float64, ok bool) opts.LineData {
	if !ok {
		return opts.LineData{Value: gap}
	}
	return opts.LineData{Value: v}
}

// WriteSessionChart renders an HTML page with the heart-rate and breathing
// charts for a finalised session.
func WriteSessionChart(w io.Writer, exp session.Export) error {
	if len(exp.Samples) == 0 {
		return ErrNoSamples
	}

	n := len(exp.Samples)
	x := make([]string, 0, n)
	published := make([]opts.LineData, 0, n)
	held := make([]opts.LineData, 0, n)
	smoothed := make([]opts.LineData, 0, n)
	resp := make([]opts.LineData, 0, n)
	for _, s := range exp.Samples {
		x = append(x, fmt.Sprintf("%.1f", (s.TimestampMs-exp.Session.StartMs)/1000))
		published = append(published, lineValue(s.BPM, s.Published && s.BPM > 0))
		held = append(held, lineValue(s.BPM, s.Held && s.BPM > 0))
		smoothed = append(smoothed, lineValue(s.SmoothedBPM, s.SmoothedBPM > 0))
		resp = append(resp, lineValue(s.RespRateBPM, s.RespRateBPM > 0))
	}

	title := "Heart rate"
	if r := exp.RangeBPM.Published; r.Min != nil && r.Max != nil {
		title = fmt.Sprintf("Heart rate (published %.0f-%.0f bpm)", *r.Min, *r.Max)
	}

	hr := charts.NewLine()
	hr.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "pulse session", Width: "1200px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%d ticks", exp.Session.SampleCount)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "s"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "bpm"}),
	)
	hr.SetXAxis(x).
		AddSeries("published", published).
		AddSeries("held", held).
		AddSeries("smoothed", smoothed)

	br := charts.NewLine()
	br.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "300px"}),
		charts.WithTitleOpts(opts.Title{Title: "Breathing rate"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "s"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "breaths/min"}),
	)
	br.SetXAxis(x).AddSeries("respiration", resp)

	page := components.NewPage()
	page.AddCharts(hr, br)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
