// Command devstate-log views and analyzes coordinator event logs.
//
// Event logs are written by devstate-device when it runs with -event-log.
//
// Usage:
//
//	devstate-log <command> [flags] <file.dslog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View only request events
//	devstate-log view -category request device.dslog
//
//	# Follow a single override request
//	devstate-log view -token 5f2c0a device.dslog
//
//	# Export to CSV
//	devstate-log export -format csv -o events.csv device.dslog
//
//	# Keep one client's events
//	devstate-log filter -client ws-1234 -o client.dslog device.dslog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/foldsense/devstate-go/cmd/devstate-log/commands"
)

const usage = `devstate-log - Device State Event Log Analyzer

Usage:
  devstate-log <command> [flags] <file.dslog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON or CSV format
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "devstate-log <command> -help" for more information about a command.
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

// parsePath parses args and returns the single log file argument.
func parsePath(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func usageFor(fs *flag.FlagSet, title, synopsis string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "devstate-log %s\n\nUsage:\n  devstate-log %s\n\nFlags:\n", title, synopsis)
		fs.PrintDefaults()
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = usageFor(fs, "view - View log file in human-readable format", "view [flags] <file.dslog>")

	source := fs.String("source", "", "Filter by source (provider, client, policy, coordinator)")
	category := fs.String("category", "", "Filter by category (state, request, policy, error)")
	token := fs.String("token", "", "Filter by request token")

	path := parsePath(fs, args)

	filter := commands.ViewFilter{Token: *token}
	if *source != "" {
		s, err := commands.ParseSourceFlag(*source)
		if err != nil {
			fail(err)
		}
		filter.Source = &s
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
	fs.Usage = usageFor(fs, "export - Export log file to JSON or CSV format", "export [flags] <file.dslog>")

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	path := parsePath(fs, args)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = usageFor(fs, "filter - Filter log file and write to new file", "filter [flags] <file.dslog>")

	output := fs.String("o", "", "Output file (required)")
	sessionID := fs.String("session", "", "Filter by session ID")
	clientID := fs.String("client", "", "Filter by client ID")
	token := fs.String("token", "", "Filter by request token")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	source := fs.String("source", "", "Filter by source (provider, client, policy, coordinator)")
	category := fs.String("category", "", "Filter by category (state, request, policy, error)")

	path := parsePath(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	opts := commands.FilterOptions{
		Output:    *output,
		SessionID: *sessionID,
		ClientID:  *clientID,
		Token:     *token,
		TimeStart: *timeStart,
		TimeEnd:   *timeEnd,
		Source:    *source,
		Category:  *category,
	}

	if err := commands.RunFilter(path, opts, os.Stdout); err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = usageFor(fs, "stats - Show statistics about the log file", "stats <file.dslog>")

	path := parsePath(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
