// Package commands implements the devstate-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/foldsense/devstate-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Source   *log.Source
	Category *log.Category
	Token    string
}

// match reports whether event passes the filter.
func (f ViewFilter) match(event log.Event) bool {
	filter := log.Filter{Source: f.Source, Category: f.Category, Token: f.Token}
	return filter.Match(event)
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session:id] SOURCE CATEGORY label
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")

	var label string
	switch {
	case event.StateChange != nil:
		label = event.StateChange.Entity.String()
	case event.Request != nil:
		label = event.Request.Action.String()
	case event.Policy != nil:
		label = event.Policy.Phase.String()
	case event.Error != nil:
		label = event.Error.Operation
	default:
		label = "Unknown"
	}

	fmt.Fprintf(w, "%s [session:%s] %-11s %-7s %s\n",
		ts, shortenID(event.SessionID), event.Source, event.Category, label)

	if event.ClientID != "" {
		fmt.Fprintf(w, "  Client: %s\n", event.ClientID)
	}

	switch {
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Request != nil:
		formatRequestDetails(w, event.Request)
	case event.Policy != nil:
		formatPolicyDetails(w, event.Policy)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenID returns the first 8 characters of an identifier.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// stateLabel renders a state identifier with its name, "-" when absent.
func stateLabel(id int, name string) string {
	if id < 0 {
		return "-"
	}
	if name == "" {
		return fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%s(%d)", name, id)
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.Entity == log.StateEntitySupported {
		ids := make([]string, len(sc.Supported))
		for i, id := range sc.Supported {
			ids[i] = fmt.Sprintf("%d", id)
		}
		fmt.Fprintf(w, "  Supported: [%s]\n", strings.Join(ids, ", "))
	} else {
		fmt.Fprintf(w, "  %s -> %s\n", stateLabel(sc.Old, sc.OldName), stateLabel(sc.New, sc.NewName))
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatRequestDetails(w io.Writer, r *log.RequestEvent) {
	fmt.Fprintf(w, "  Token: %s\n", r.Token)
	fmt.Fprintf(w, "  State: %d", r.State)
	if r.Flags != 0 {
		fmt.Fprintf(w, "  Flags: 0x%x", r.Flags)
	}
	fmt.Fprintln(w)
	if r.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", r.Reason)
	}
}

func formatPolicyDetails(w io.Writer, p *log.PolicyEvent) {
	fmt.Fprintf(w, "  State: %d  Sequence: %d\n", p.State, p.Sequence)
	if p.Elapsed != nil {
		fmt.Fprintf(w, "  Elapsed: %s\n", formatDuration(*p.Elapsed))
	}
}

func formatErrorDetails(w io.Writer, e *log.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", e.Message)
	if e.State != nil {
		fmt.Fprintf(w, "  State: %d\n", *e.State)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseSourceFlag parses a source name (case-insensitive).
func ParseSourceFlag(s string) (log.Source, error) {
	switch strings.ToLower(s) {
	case "provider":
		return log.SourceProvider, nil
	case "client":
		return log.SourceClient, nil
	case "policy":
		return log.SourcePolicy, nil
	case "coordinator":
		return log.SourceCoordinator, nil
	default:
		return 0, fmt.Errorf("invalid source: %s (must be provider, client, policy, or coordinator)", s)
	}
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "state":
		return log.CategoryState, nil
	case "request":
		return log.CategoryRequest, nil
	case "policy":
		return log.CategoryPolicy, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be state, request, policy, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if !filter.match(event) {
			continue
		}
		formatEvent(output, event)
	}

	return nil
}
