package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/foldsense/devstate-go/pkg/log"
)

// RunExport exports the log file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "session_id", "source", "category", "client_id", "type", "state", "token", "detail"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		var eventType, state, token, detail string
		switch {
		case event.StateChange != nil:
			sc := event.StateChange
			eventType = "state." + sc.Entity.String()
			state = strconv.Itoa(sc.New)
			detail = sc.Reason
		case event.Request != nil:
			r := event.Request
			eventType = "request." + r.Action.String()
			state = strconv.Itoa(r.State)
			token = r.Token
			detail = r.Reason
		case event.Policy != nil:
			p := event.Policy
			eventType = "policy." + p.Phase.String()
			state = strconv.Itoa(p.State)
			if p.Elapsed != nil {
				detail = p.Elapsed.String()
			}
		case event.Error != nil:
			eventType = "error"
			if event.Error.State != nil {
				state = strconv.Itoa(*event.Error.State)
			}
			detail = event.Error.Operation + ": " + event.Error.Message
		}

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.SessionID,
			event.Source.String(),
			event.Category.String(),
			event.ClientID,
			eventType,
			state,
			token,
			detail,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}
