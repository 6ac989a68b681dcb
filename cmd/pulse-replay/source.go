package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/pulse.report/internal/rppg"
	"github.com/banshee-data/pulse.report/internal/rppg/roi"
	"github.com/banshee-data/pulse.report/internal/rppg/synth"
	"github.com/banshee-data/pulse.report/internal/units"
)

// maxLineBytes bounds one JSONL record; a 1080p RGB frame in base64 is
// about 8 MB.
const maxLineBytes = 16 << 20

// frameSource yields frames in capture order. next returns io.EOF when
// the source is exhausted.
type frameSource interface {
	next() (rppg.Frame, error)
}

// captureRecord is one line of a JSONL capture. Pixels are base64 RGB.
type captureRecord struct {
	TimestampMs float64        `json:"t_ms"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Pixels      []byte         `json:"pixels"`
	Landmarks   []roi.Landmark `json:"landmarks,omitempty"`
}

type jsonlSource struct {
	sc   *bufio.Scanner
	line int
}

func newJSONLSource(r io.Reader) *jsonlSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), maxLineBytes)
	return &jsonlSource{sc: sc}
}

func (s *jsonlSource) next() (rppg.Frame, error) {
	for s.sc.Scan() {
		s.line++
		b := s.sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var rec captureRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return rppg.Frame{}, fmt.Errorf("line %d: %w", s.line, err)
		}
		if want := rec.Width * rec.Height * 3; len(rec.Landmarks) > 0 && len(rec.Pixels) < want {
			return rppg.Frame{}, fmt.Errorf("line %d: pixel buffer has %d bytes, want %d", s.line, len(rec.Pixels), want)
		}
		return rppg.Frame{
			TimestampMs: rec.TimestampMs,
			Width:       rec.Width,
			Height:      rec.Height,
			Pixels:      rec.Pixels,
			Landmarks:   rec.Landmarks,
		}, nil
	}
	if err := s.sc.Err(); err != nil {
		return rppg.Frame{}, fmt.Errorf("line %d: %w", s.line+1, err)
	}
	return rppg.Frame{}, io.EOF
}

type synthSource struct {
	gen   *synth.Generator
	endMs float64
}

// newSynthSource renders seconds of the default scene with the pulse at
// bpm and breathing at breaths per minute.
func newSynthSource(seconds, bpm, breaths float64) (*synthSource, error) {
	if seconds <= 0 {
		return nil, errors.New("synthetic duration must be positive")
	}
	if bpm <= 0 || breaths <= 0 {
		return nil, errors.New("synthetic rates must be positive")
	}
	scene := synth.DefaultScene()
	scene.PulseHz = units.BPMToHz(bpm)
	scene.RespHz = units.BPMToHz(breaths)
	return &synthSource{gen: synth.NewGenerator(scene), endMs: seconds * 1000}, nil
}

func (s *synthSource) next() (rppg.Frame, error) {
	f := s.gen.Next()
	if f.TimestampMs > s.endMs {
		return rppg.Frame{}, io.EOF
	}
	return rppg.Frame{
		TimestampMs: f.TimestampMs,
		Width:       f.Width,
		Height:      f.Height,
		Pixels:      f.Pixels,
		Landmarks:   f.Landmarks,
	}, nil
}
