package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/pulse.report/internal/report"
	"github.com/banshee-data/pulse.report/internal/storage/sqlite"
	"github.com/banshee-data/pulse.report/internal/timeutil"
)

var errUsage = errors.New("invalid usage")

func printHelp(w io.Writer) {
	fmt.Fprint(w, `commands:
  list [-limit n]          most recent sessions first
  show <id>                summary and published range of one session
  export [-dir d] <id>     write <id>.json, .png and .html into d
  delete <id>              remove a session and its samples
  migrate up|down|status   manage the schema
`)
}

// run dispatches one command against the store at dbPath.
func run(dbPath string, args []string, out io.Writer) error {
	if len(args) == 0 {
		printHelp(out)
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	if cmd == "help" {
		printHelp(out)
		return nil
	}

	store, err := sqlite.OpenSessionStore(dbPath, timeutil.RealClock{})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	switch cmd {
	case "list":
		return runList(store, rest, out)
	case "show":
		return withID(rest, func(id string) error { return runShow(store, id, out) })
	case "export":
		return runExport(store, rest, out)
	case "delete":
		return withID(rest, func(id string) error {
			if err := store.Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(out, "deleted %s\n", id)
			return nil
		})
	case "migrate":
		return runMigrate(store, rest, out)
	default:
		printHelp(out)
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func withID(args []string, fn func(id string) error) error {
	if len(args) != 1 {
		return fmt.Errorf("expected one session id: %w", errUsage)
	}
	return fn(args[0])
}

func runList(store *sqlite.SessionStore, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(out)
	limit := fs.Int("limit", 20, "maximum sessions to show (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	records, err := store.List(*limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "no sessions")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(out, "%s  %s  %6.1fs  %4d ticks  %s\n",
			r.SessionID, formatCreated(r.CreatedAt), (r.EndMs-r.StartMs)/1000,
			r.SampleCount, formatRange(r.RangeBPM.Published.Min, r.RangeBPM.Published.Max))
	}
	return nil
}

func runShow(store *sqlite.SessionStore, id string, out io.Writer) error {
	r, err := store.Get(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "session:   %s\n", r.SessionID)
	fmt.Fprintf(out, "created:   %s\n", formatCreated(r.CreatedAt))
	fmt.Fprintf(out, "span:      %.0f-%.0f ms (%d ticks)\n", r.StartMs, r.EndMs, r.SampleCount)
	fmt.Fprintf(out, "published: %s (%d kept, %d excluded)\n",
		formatRange(r.RangeBPM.Published.Min, r.RangeBPM.Published.Max),
		r.RangeBPM.Published.Count, r.RangeBPM.Published.Excluded)
	fmt.Fprintf(out, "hold:      %s (%d kept, %d excluded)\n",
		formatRange(r.RangeBPM.Hold.Min, r.RangeBPM.Hold.Max),
		r.RangeBPM.Hold.Count, r.RangeBPM.Hold.Excluded)
	if len(r.TuningJSON) > 0 {
		fmt.Fprintf(out, "tuning:    %s\n", r.TuningJSON)
	}
	return nil
}

func runExport(store *sqlite.SessionStore, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(out)
	dir := fs.String("dir", ".", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withID(fs.Args(), func(id string) error {
		exp, err := store.Export(id)
		if err != nil {
			return err
		}
		paths, err := report.WriteBundle(*dir, id, exp)
		for _, p := range paths {
			fmt.Fprintf(out, "wrote %s\n", p)
		}
		return err
	})
}

func runMigrate(store *sqlite.SessionStore, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("expected up, down or status: %w", errUsage)
	}
	switch args[0] {
	case "up":
		if err := sqlite.MigrateUp(store.DB()); err != nil {
			return err
		}
	case "down":
		if err := sqlite.MigrateDown(store.DB()); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("unknown migrate action %q: %w", args[0], errUsage)
	}
	v, dirty, err := sqlite.MigrateVersion(store.DB())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "version %d (dirty: %v)\n", v, dirty)
	return nil
}

// formatCreated renders a stored unix-nanosecond timestamp.
func formatCreated(ns int64) string {
	return time.Unix(0, ns).UTC().Format(time.RFC3339)
}

func formatRange(lo, hi *float64) string {
	if lo == nil || hi == nil {
		return "no range"
	}
	return fmt.Sprintf("%.0f-%.0f bpm", *lo, *hi)
}
