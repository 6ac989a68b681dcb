package report

import (
	"errors"
	"fmt"
	"image/color"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/pulse.report/internal/rppg/session"
)

// ErrNoSamples is returned when a session has nothing to draw.
var ErrNoSamples = errors.New("session has no samples")

var (
	publishedColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	heldColor      = color.RGBA{R: 255, G: 152, B: 150, A: 255}
	smoothedColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	respColor      = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// traces splits the samples into the plotted series, with time in seconds
// from the session start.
type traces struct {
	published, held, smoothed, resp plotter.XYs
}

func collect(exp session.Export) traces {
	var tr traces
	for _, s := range exp.Samples {
		x := (s.TimestampMs - exp.Session.StartMs) / 1000
		switch {
		case s.Published && s.BPM > 0:
			tr.published = append(tr.published, plotter.XY{X: x, Y: s.BPM})
		case s.Held && s.BPM > 0:
			tr.held = append(tr.held, plotter.XY{X: x, Y: s.BPM})
		}
		if s.SmoothedBPM > 0 {
			tr.smoothed = append(tr.smoothed, plotter.XY{X: x, Y: s.SmoothedBPM})
		}
		if s.RespRateBPM > 0 {
			tr.resp = append(tr.resp, plotter.XY{X: x, Y: s.RespRateBPM})
		}
	}
	return tr
}

// PlotSession writes a PNG with the heart-rate traces on top and the
// breathing rate below.
func PlotSession(exp session.Export, path string) error {
	if len(exp.Samples) == 0 {
		return ErrNoSamples
	}
	tr := collect(exp)

	hr := plot.New()
	hr.Title.Text = fmt.Sprintf("Heart rate (%d ticks)", exp.Session.SampleCount)
	hr.X.Label.Text = "Time (s)"
	hr.Y.Label.Text = "BPM"
	if r := exp.RangeBPM.Published; r.Min != nil && r.Max != nil {
		hr.Title.Text += fmt.Sprintf(" published %.0f-%.0f bpm", *r.Min, *r.Max)
	}

	if len(tr.smoothed) > 0 {
		line, err := plotter.NewLine(tr.smoothed)
		if err != nil {
			return fmt.Errorf("smoothed line: %w", err)
		}
		line.Color = smoothedColor
		line.Width = vg.Points(1)
		hr.Add(line)
		hr.Legend.Add("smoothed", line)
	}
	for _, s := range []struct {
		name string
		pts  plotter.XYs
		c    color.Color
	}{
		{"published", tr.published, publishedColor},
		{"held", tr.held, heldColor},
	} {
		if len(s.pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(s.pts)
		if err != nil {
			return fmt.Errorf("%s points: %w", s.name, err)
		}
		sc.GlyphStyle.Color = s.c
		sc.GlyphStyle.Radius = vg.Points(2)
		hr.Add(sc)
		hr.Legend.Add(s.name, sc)
	}
	hr.Legend.Top = true
	hr.Legend.Left = false
	hr.Legend.XOffs = -10
	hr.Legend.YOffs = -10

	br := plot.New()
	br.Title.Text = "Breathing rate"
	br.X.Label.Text = "Time (s)"
	br.Y.Label.Text = "Breaths/min"
	if len(tr.resp) > 0 {
		line, err := plotter.NewLine(tr.resp)
		if err != nil {
			return fmt.Errorf("respiration line: %w", err)
		}
		line.Color = respColor
		line.Width = vg.Points(1)
		br.Add(line)
	}

	const width, rowHeight = 10 * vg.Inch, 3 * vg.Inch
	img := vgimg.New(width, 2*rowHeight)
	rows := [][]*plot.Plot{{hr}, {br}}
	canvases := plot.Align(rows, draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Points(8)}, draw.New(img))
	for i := range rows {
		rows[i][0].Draw(canvases[i][0])
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write plot: %w", err)
	}
	return f.Close()
}
