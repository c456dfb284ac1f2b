// Command observe-log is a tool for viewing and analyzing change capture
// files.
//
// Capture files are created by observe-shell with the -capture flag, or by
// any observation configured with a log.FileLogger.
//
// Usage:
//
//	observe-log <command> [flags] <file.olog>
//
// Commands:
//
//	view     View capture file in human-readable format
//	export   Export capture file to JSONL or CSV format
//	filter   Filter capture file and write to new file
//	stats    Show statistics about the capture file
//
// Examples:
//
//	# View all events
//	observe-log view session.olog
//
//	# View only changes reported by mutation sources
//	observe-log view --source external session.olog
//
//	# Export to JSONL
//	observe-log export --format jsonl session.olog
//
//	# Keep writes below one path
//	observe-log filter --path-prefix settings -o settings.olog session.olog
//
//	# Show statistics
//	observe-log stats session.olog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gyptix/observable-go/cmd/observe-log/commands"
)

const usage = `observe-log - Change Capture Analyzer

Usage:
  observe-log <command> [flags] <file.olog>

Commands:
  view     View capture file in human-readable format
  export   Export capture file to JSONL or CSV format
  filter   Filter capture file and write to new file
  stats    Show statistics about the capture file

Use "observe-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// requirePath returns the single positional argument or exits.
func requirePath(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `observe-log view - View capture file in human-readable format

Usage:
  observe-log view [flags] <file.olog>

Flags:
`)
		fs.PrintDefaults()
	}

	source := fs.String("source", "", "Filter by source (direct, external)")
	phase := fs.String("phase", "", "Filter by phase (changing, changed)")
	category := fs.String("category", "", "Filter by category (change, batch, error)")
	key := fs.String("key", "", "Filter by changed key")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	filter := commands.ViewFilter{Key: *key}

	if *source != "" {
		s, err := commands.ParseSourceFlag(*source)
		if err != nil {
			fail(err)
		}
		filter.Source = &s
	}

	if *phase != "" {
		p, err := commands.ParsePhaseFlag(*phase)
		if err != nil {
			fail(err)
		}
		filter.Phase = &p
	}

	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `observe-log export - Export capture file to JSONL or CSV format

Usage:
  observe-log export [flags] <file.olog>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `observe-log filter - Filter capture file and write to new file

Usage:
  observe-log filter [flags] <file.olog>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	obsID := fs.String("obs-id", "", "Filter by observation ID")
	key := fs.String("key", "", "Filter by changed key")
	pathPrefix := fs.String("path-prefix", "", "Filter by owner path prefix")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	source := fs.String("source", "", "Filter by source (direct, external)")
	phase := fs.String("phase", "", "Filter by phase (changing, changed)")
	category := fs.String("category", "", "Filter by category (change, batch, error)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	opts := commands.FilterOptions{
		Output:        *output,
		ObservationID: *obsID,
		Key:           *key,
		PathPrefix:    *pathPrefix,
		TimeStart:     *timeStart,
		TimeEnd:       *timeEnd,
		Source:        *source,
		Phase:         *phase,
		Category:      *category,
	}

	n, err := commands.RunFilter(path, opts)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, opts.Output)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `observe-log stats - Show statistics about the capture file

Usage:
  observe-log stats <file.olog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
