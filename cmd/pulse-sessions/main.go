// Command pulse-sessions inspects and manages sessions stored by
// pulse-replay -db.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/pulse.report/internal/version"
)

func main() {
	var dbPath string
	var showVersion bool

	flag.StringVar(&dbPath, "db", "pulse_sessions.db", "path to sqlite db")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: pulse-sessions [-db path] <command> [args]\n\n")
		printHelp(flag.CommandLine.Output())
		fmt.Fprintln(flag.CommandLine.Output())
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Println(version.String("pulse-sessions"))
		return
	}
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(dbPath, flag.Args(), os.Stdout); err != nil {
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}
