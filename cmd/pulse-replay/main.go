// Command pulse-replay feeds a recorded JSONL capture, or a synthetic
// session, through the heart-rate engine and writes the session export.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/report"
	"github.com/banshee-data/pulse.report/internal/rppg"
	"github.com/banshee-data/pulse.report/internal/rppg/session"
	"github.com/banshee-data/pulse.report/internal/storage/sqlite"
	"github.com/banshee-data/pulse.report/internal/timeutil"
	"github.com/banshee-data/pulse.report/internal/version"
)

func main() {
	var framesPath string
	var syntheticSec float64
	var bpm float64
	var breaths float64
	var tuningPath string
	var outPath string
	var dbPath string
	var plotPath string
	var chartPath string
	var quiet bool
	var realtime bool
	var showVersion bool

	flag.StringVar(&framesPath, "frames", "", "JSONL capture to replay (one frame per line)")
	flag.Float64Var(&syntheticSec, "synthetic", 0, "render a synthetic session of this many seconds instead of -frames")
	flag.Float64Var(&bpm, "bpm", 72, "synthetic heart rate")
	flag.Float64Var(&breaths, "breaths", 15, "synthetic breathing rate (breaths/min)")
	flag.StringVar(&tuningPath, "tuning", "", "tuning config JSON")
	flag.StringVar(&outPath, "out", "", "write the session export JSON here (- for stdout)")
	flag.StringVar(&dbPath, "db", "", "store the session in this sqlite db")
	flag.StringVar(&plotPath, "plot", "", "write a PNG of the session")
	flag.StringVar(&chartPath, "chart", "", "write an HTML chart of the session")
	flag.BoolVar(&quiet, "quiet", false, "suppress per-tick output and engine logs")
	flag.BoolVar(&realtime, "realtime", false, "pace frames at their capture rate")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.String("pulse-replay"))
		return
	}
	if (framesPath == "") == (syntheticSec <= 0) {
		log.Fatalf("exactly one of -frames or -synthetic must be provided")
	}
	if quiet {
		monitoring.SetLogger(nil)
	}

	tuning := config.EmptyTuningConfig()
	if tuningPath != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(tuningPath); err != nil {
			log.Fatalf("load tuning: %v", err)
		}
	}
	cfg, err := rppg.ConfigFromTuning(tuning)
	if err != nil {
		log.Fatalf("tuning: %v", err)
	}
	engine, err := rppg.NewEngine(cfg)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	var src frameSource
	if framesPath != "" {
		f, err := os.Open(framesPath)
		if err != nil {
			log.Fatalf("open frames: %v", err)
		}
		defer f.Close()
		src = newJSONLSource(f)
	} else {
		if src, err = newSynthSource(syntheticSec, bpm, breaths); err != nil {
			log.Fatalf("synthetic: %v", err)
		}
	}

	var pacer *timeutil.Pacer
	if realtime {
		pacer = timeutil.NewPacer(timeutil.RealClock{})
	}

	frames, ticks, err := replay(engine, src, pacer, func(r rppg.UpdateResult) {
		if !quiet {
			printTick(os.Stdout, r)
		}
	})
	if err != nil {
		log.Fatalf("replay: %v", err)
	}
	exp := engine.Finalize()
	fmt.Fprintf(os.Stderr, "replayed %d frames, %d ticks\n", frames, ticks)
	printRange(os.Stderr, exp)

	if outPath != "" {
		if err := writeExport(outPath, exp); err != nil {
			log.Fatalf("write export: %v", err)
		}
	}
	if dbPath != "" {
		store, err := sqlite.OpenSessionStore(dbPath, timeutil.RealClock{})
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer store.Close()
		tuningJSON, err := json.Marshal(tuning)
		if err != nil {
			log.Fatalf("encode tuning: %v", err)
		}
		id, err := store.Insert(exp, tuningJSON)
		if err != nil {
			log.Fatalf("store session: %v", err)
		}
		fmt.Fprintf(os.Stderr, "stored session %s\n", id)
	}
	if plotPath != "" {
		if err := report.PlotSession(exp, plotPath); err != nil {
			log.Fatalf("plot: %v", err)
		}
	}
	if chartPath != "" {
		f, err := os.Create(chartPath)
		if err != nil {
			log.Fatalf("create chart: %v", err)
		}
		if err := report.WriteSessionChart(f, exp); err != nil {
			f.Close()
			log.Fatalf("chart: %v", err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("close chart: %v", err)
		}
	}
}

// replay drains src through the engine and reports each tick to onTick.
func replay(engine *rppg.Engine, src frameSource, pacer *timeutil.Pacer, onTick func(rppg.UpdateResult)) (frames, ticks int, err error) {
	for {
		f, err := src.next()
		if errors.Is(err, io.EOF) {
			return frames, ticks, nil
		}
		if err != nil {
			return frames, ticks, err
		}
		if pacer != nil {
			pacer.Wait(f.TimestampMs)
		}
		frames++
		r, ok := engine.Update(f)
		if !ok {
			continue
		}
		ticks++
		if onTick != nil {
			onTick(r)
		}
	}
}

func printTick(w io.Writer, r rppg.UpdateResult) {
	bpm := "   -"
	if r.BPM > 0 {
		bpm = fmt.Sprintf("%5.1f", r.BPM)
	}
	fmt.Fprintf(w, "%9.0f ms  %-10s %-22s bpm %s  conf %.2f  resp %.1f\n",
		r.TimestampMs, r.State, r.Reason, bpm, r.Confidence, r.Respiration.RateBPM)
}

func printRange(w io.Writer, exp session.Export) {
	for _, s := range []struct {
		name string
		r    session.Range
	}{
		{"published", exp.RangeBPM.Published},
		{"hold", exp.RangeBPM.Hold},
	} {
		if s.r.Min == nil || s.r.Max == nil {
			fmt.Fprintf(w, "%s range: none\n", s.name)
			continue
		}
		fmt.Fprintf(w, "%s range: %.1f-%.1f bpm (%d kept, %d excluded)\n",
			s.name, *s.r.Min, *s.r.Max, s.r.Count, s.r.Excluded)
	}
}

func writeExport(path string, exp session.Export) error {
	b, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
