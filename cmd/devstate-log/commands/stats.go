package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/foldsense/devstate-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsBySource   map[log.Source]int
	EventsByCategory map[log.Category]int
	RequestActions   map[log.RequestAction]int
	Sessions         map[string]*SessionStats
	Errors           int
	Stalls           int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}

	// Committed counts commits per state identifier.
	Committed map[int]int

	// ConfigureTotal and ConfigureCount give the mean policy latency.
	ConfigureTotal time.Duration
	ConfigureCount int
	ConfigureMax   time.Duration
}

// SessionStats holds statistics for one coordinator session.
type SessionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Clients   map[string]bool
}

// collectStats reads every event from reader.
func collectStats(reader *log.Reader) (*Stats, error) {
	stats := &Stats{
		EventsBySource:   make(map[log.Source]int),
		EventsByCategory: make(map[log.Category]int),
		RequestActions:   make(map[log.RequestAction]int),
		Sessions:         make(map[string]*SessionStats),
		Committed:        make(map[int]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsBySource[event.Source]++
		stats.EventsByCategory[event.Category]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		sess, ok := stats.Sessions[event.SessionID]
		if !ok {
			sess = &SessionStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
				Clients:   make(map[string]bool),
			}
			stats.Sessions[event.SessionID] = sess
		}
		sess.Events++
		if event.Timestamp.After(sess.LastSeen) {
			sess.LastSeen = event.Timestamp
		}
		if event.ClientID != "" {
			sess.Clients[event.ClientID] = true
		}

		switch {
		case event.StateChange != nil:
			if sc := event.StateChange; sc.Entity == log.StateEntityCommitted && sc.New >= 0 {
				stats.Committed[sc.New]++
			}
		case event.Request != nil:
			stats.RequestActions[event.Request.Action]++
		case event.Policy != nil:
			p := event.Policy
			switch {
			case p.Phase == log.PolicyStalled:
				stats.Stalls++
			case p.Phase == log.PolicyCompleted && p.Elapsed != nil:
				stats.ConfigureTotal += *p.Elapsed
				stats.ConfigureCount++
				if *p.Elapsed > stats.ConfigureMax {
					stats.ConfigureMax = *p.Elapsed
				}
			}
		case event.Error != nil:
			stats.Errors++
		}
	}
	return stats, nil
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats, err := collectStats(reader)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Device State Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Source:")
	for _, src := range []log.Source{log.SourceProvider, log.SourceClient, log.SourcePolicy, log.SourceCoordinator} {
		if count := stats.EventsBySource[src]; count > 0 {
			fmt.Fprintf(w, "  %-13s %d\n", src.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryState, log.CategoryRequest, log.CategoryPolicy, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-13s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.RequestActions) > 0 {
		fmt.Fprintln(w, "Request Actions:")
		for _, a := range []log.RequestAction{log.RequestIssued, log.RequestActivated, log.RequestSuspended, log.RequestCanceled, log.RequestRejected} {
			if count := stats.RequestActions[a]; count > 0 {
				fmt.Fprintf(w, "  %-13s %d\n", a.String()+":", count)
			}
		}
		fmt.Fprintln(w)
	}

	if len(stats.Committed) > 0 {
		ids := make([]int, 0, len(stats.Committed))
		for id := range stats.Committed {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		fmt.Fprintln(w, "Commits by State:")
		for _, id := range ids {
			fmt.Fprintf(w, "  %-13d %d\n", id, stats.Committed[id])
		}
		fmt.Fprintln(w)
	}

	if stats.ConfigureCount > 0 {
		mean := stats.ConfigureTotal / time.Duration(stats.ConfigureCount)
		fmt.Fprintf(w, "Configurations: %d (mean %s, max %s)\n",
			stats.ConfigureCount, formatDuration(mean), formatDuration(stats.ConfigureMax))
	}
	if stats.Stalls > 0 {
		fmt.Fprintf(w, "Stalls: %d\n", stats.Stalls)
	}

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessionInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessionInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessionInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, %d clients, duration %s\n",
				shortenID(s.id), s.stats.Events, len(s.stats.Clients), duration)
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
