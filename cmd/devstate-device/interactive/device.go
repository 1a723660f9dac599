// Package interactive provides the interactive command-line interface
// for devstate-device.
package interactive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/foldsense/devstate-go/pkg/callback"
	"github.com/foldsense/devstate-go/pkg/coordinator"
	"github.com/foldsense/devstate-go/pkg/devicestate"
	"github.com/foldsense/devstate-go/pkg/history"
	"github.com/foldsense/devstate-go/pkg/log"
	"github.com/foldsense/devstate-go/pkg/request"
)

// ClientID is the callback session used by the shell.
const ClientID request.ClientID = "shell"

// Coordinator is the coordinator surface used by the shell.
type Coordinator interface {
	RegisterCallback(ctx context.Context, client request.ClientID, l callback.Listener) error
	UnregisterCallback(ctx context.Context, client request.ClientID) error
	RequestState(ctx context.Context, client request.ClientID, token request.Token, identifier int, flags request.Flags) error
	CancelRequest(ctx context.Context, client request.ClientID, token request.Token) error
	Info(ctx context.Context) (coordinator.Info, error)
}

// Provider is the simulated device the shell drives.
type Provider interface {
	SetState(identifier int) error
	SetSupportedStates(states []devicestate.DeviceState) error
	State() int
}

// Shell executes commands and writes results to out.
type Shell struct {
	coord Coordinator
	prov  Provider
	table []devicestate.DeviceState
	hist  *history.Store
	out   io.Writer
}

// NewShell creates a shell. table lists every state the device knows,
// including ones not currently supported. hist may be nil.
func NewShell(coord Coordinator, prov Provider, table []devicestate.DeviceState, hist *history.Store, out io.Writer) *Shell {
	return &Shell{coord: coord, prov: prov, table: table, hist: hist, out: out}
}

// Listener prints notifications addressed to the shell.
func (s *Shell) Listener() callback.Listener {
	return callback.Func(func(n callback.Notification) {
		switch n.Kind {
		case callback.KindStateChanged:
			fmt.Fprintf(s.out, "[EVENT] committed state: %s\n", n.State)
		default:
			fmt.Fprintf(s.out, "[EVENT] request %s: %s\n", n.Token.Short(), n.Kind)
		}
	})
}

// Execute runs one command line. It returns true when the shell should
// exit.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "info", "i":
		s.cmdInfo(ctx)
	case "state", "s":
		s.cmdState(args)
	case "supported":
		s.cmdSupported(args)
	case "request", "r":
		s.cmdRequest(ctx, args)
	case "cancel", "c":
		s.cmdCancel(ctx, args)
	case "history", "h":
		s.cmdHistory(args)
	case "residency":
		s.cmdResidency()
	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Device State Commands:
  Provider (simulated hardware):
    state <id|name>           - Report a new base state
    supported <id|name>...    - Report a new supported state set

  Override requests (client "shell"):
    request <id|name> [-b]    - Request a state (-b: cancel when base changes)
    cancel <token>            - Cancel a request (full token or 8-char prefix)

  Inspection:
    info                      - Show coordinator snapshot
    history [n]               - Show the last n committed transitions
    residency                 - Show time spent in each committed state

  Other:
    help                      - Show this help
    quit                      - Exit`)
}

// resolve maps a name or identifier to a known state.
func (s *Shell) resolve(arg string) (devicestate.DeviceState, error) {
	if id, err := strconv.Atoi(arg); err == nil {
		for _, st := range s.table {
			if st.Identifier == id {
				return st, nil
			}
		}
		return devicestate.New(id, ""), nil
	}
	for _, st := range s.table {
		if strings.EqualFold(st.Name, arg) {
			return st, nil
		}
	}
	return devicestate.Invalid, fmt.Errorf("unknown state %q", arg)
}

func (s *Shell) cmdInfo(ctx context.Context) {
	info, err := s.coord.Info(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}

	names := make([]string, len(info.Supported))
	for i, st := range info.Supported {
		names[i] = st.String()
	}
	fmt.Fprintf(s.out, "Supported:   %s\n", strings.Join(names, ", "))
	fmt.Fprintf(s.out, "Base:        %s\n", describe(info.Base))
	fmt.Fprintf(s.out, "Override:    %s\n", describe(info.Override))
	fmt.Fprintf(s.out, "Committed:   %s\n", describe(info.Committed))
	fmt.Fprintf(s.out, "Pending:     %s\n", describe(info.Pending))
	fmt.Fprintf(s.out, "Configuring: %v (sequence %d)\n", info.Configuring, info.Sequence)

	if len(info.Requests) == 0 {
		fmt.Fprintln(s.out, "Requests:    none")
		return
	}
	fmt.Fprintln(s.out, "Requests:")
	for _, r := range info.Requests {
		fmt.Fprintf(s.out, "  %s  %-9s %-10s %s flags=%s\n",
			r.Token.Short(), r.Status, r.Client, r.State, r.Flags)
	}
}

func describe(st devicestate.DeviceState) string {
	if !st.IsValid() {
		return "-"
	}
	return st.String()
}

func (s *Shell) cmdState(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: state <id|name>")
		return
	}
	st, err := s.resolve(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if err := s.prov.SetState(st.Identifier); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Base state reported: %s\n", st)
}

func (s *Shell) cmdSupported(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: supported <id|name>...")
		return
	}
	states := make([]devicestate.DeviceState, 0, len(args))
	for _, arg := range args {
		st, err := s.resolve(arg)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return
		}
		states = append(states, st)
	}
	if err := s.prov.SetSupportedStates(states); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Supported states reported: %d\n", len(states))
}

func (s *Shell) cmdRequest(ctx context.Context, args []string) {
	if len(args) == 0 || len(args) > 2 {
		fmt.Fprintln(s.out, "Usage: request <id|name> [-b]")
		return
	}
	st, err := s.resolve(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	var flags request.Flags
	if len(args) == 2 {
		if args[1] != "-b" {
			fmt.Fprintf(s.out, "Unknown option: %s\n", args[1])
			return
		}
		flags |= request.FlagCancelWhenBaseChanges
	}

	token := request.NewToken()
	if err := s.coord.RequestState(ctx, ClientID, token, st.Identifier, flags); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Requested %s (token %s)\n", st, token)
}

func (s *Shell) cmdCancel(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: cancel <token>")
		return
	}
	token, err := s.findToken(ctx, args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if err := s.coord.CancelRequest(ctx, ClientID, token); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Canceled %s\n", token.Short())
}

// findToken accepts a full token or a unique prefix of a live shell token.
func (s *Shell) findToken(ctx context.Context, arg string) (request.Token, error) {
	if token, err := request.ParseToken(arg); err == nil {
		return token, nil
	}
	info, err := s.coord.Info(ctx)
	if err != nil {
		return request.NilToken, err
	}
	var matches []request.Token
	for _, r := range info.Requests {
		if r.Client == ClientID && strings.HasPrefix(r.Token.String(), arg) {
			matches = append(matches, r.Token)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return request.NilToken, fmt.Errorf("no live request matches %q", arg)
	default:
		return request.NilToken, fmt.Errorf("%q is ambiguous", arg)
	}
}

func (s *Shell) cmdHistory(args []string) {
	if s.hist == nil {
		fmt.Fprintln(s.out, "History is disabled (set logging.history_db)")
		return
	}
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fmt.Fprintln(s.out, "Usage: history [n]")
			return
		}
		limit = n
	}
	transitions, err := s.hist.StateChanges(log.StateEntityCommitted, limit)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if len(transitions) == 0 {
		fmt.Fprintln(s.out, "No transitions recorded")
		return
	}
	for _, t := range transitions {
		fmt.Fprintf(s.out, "  %s  %3d -> %3d %-16s %s\n",
			t.At.Format("15:04:05.000"), t.From, t.To, t.ToName, t.Reason)
	}
}

func (s *Shell) cmdResidency() {
	if s.hist == nil {
		fmt.Fprintln(s.out, "History is disabled (set logging.history_db)")
		return
	}
	res, err := s.hist.Residency(time.Now())
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	ids := make([]int, 0, len(res))
	for id := range res {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		name := ""
		if st, err := s.resolve(strconv.Itoa(id)); err == nil {
			name = st.Name
		}
		fmt.Fprintf(s.out, "  %3d %-16s %s\n", id, name, res[id].Round(time.Millisecond))
	}
}

// Device runs the shell on a readline terminal.
type Device struct {
	shell *Shell
	coord Coordinator
	rl    *readline.Instance
}

// New creates a terminal shell and registers it with the coordinator.
func New(ctx context.Context, coord Coordinator, prov Provider, table []devicestate.DeviceState, hist *history.Store) (*Device, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "devstate> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	shell := NewShell(coord, prov, table, hist, rl.Stdout())
	if err := coord.RegisterCallback(ctx, ClientID, shell.Listener()); err != nil {
		rl.Close()
		return nil, err
	}
	return &Device{shell: shell, coord: coord, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
// Use this for log output.
func (d *Device) Stdout() io.Writer {
	return d.rl.Stdout()
}

// Run starts the interactive command loop.
func (d *Device) Run(ctx context.Context, cancel context.CancelFunc) {
	defer d.rl.Close()
	defer func() {
		_ = d.coord.UnregisterCallback(context.Background(), ClientID)
	}()

	d.shell.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := d.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(d.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		if d.shell.Execute(ctx, strings.TrimSpace(line)) {
			cancel()
			return
		}
	}
}
