package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pulse.report/internal/rppg/session"
)

func fixture() session.Export {
	agg := session.New(session.DefaultConfig())
	for i := 0; i < 40; i++ {
		s := session.Sample{
			TimestampMs: float64(1000 + i*500),
			BPM:         72 + float64(i%3),
			SmoothedBPM: 73,
			RespRateBPM: 15,
		}
		switch {
		case i < 5:
			s.BPM, s.SmoothedBPM, s.RespRateBPM = 0, 0, 0
			s.Reason = "no_bpm"
		case i%7 == 0:
			s.Held = true
		default:
			s.Published = true
		}
		agg.Push(s)
	}
	return agg.Finalize()
}

func TestPlotSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.png")
	require.NoError(t, PlotSession(fixture(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.ErrorIs(t, PlotSession(session.Export{}, path), ErrNoSamples)
}

func TestWriteSessionChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSessionChart(&buf, fixture()))

	html := buf.String()
	for _, name := range []string{"published", "held", "smoothed", "respiration", "Breathing rate"} {
		assert.Contains(t, html, name)
	}

	assert.ErrorIs(t, WriteSessionChart(&buf, session.Export{}), ErrNoSamples)
}

func TestWriteBundle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	paths, err := WriteBundle(dir, "../session 1", fixture())
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for _, ext := range []string{".json", ".png", ".html"} {
		_, err := os.Stat(filepath.Join(dir, "session_1"+ext))
		assert.NoError(t, err, ext)
	}

	paths, err = WriteBundle(dir, "empty", session.Export{})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "empty.json")}, paths)
}
