// Command devstate-device runs a simulated device with a device state
// coordinator.
//
// The daemon wires a simulated state provider, a policy configurer and
// the coordinator together, then exposes the client surface over a
// WebSocket bridge and optionally advertises it over mDNS.
//
// Usage:
//
//	devstate-device [flags]
//
// Flags:
//
//	-config string       Configuration file path (YAML)
//	-addr string         Bridge listen address (overrides bridge.addr)
//	-log-level string    Log level: debug, info, warn, error
//	-event-log string    CBOR event log path
//	-history string      SQLite history database path
//	-state-file string   Snapshot file for restoring the last state
//	-script string       Provider script path
//	-mdns                Advertise the bridge over mDNS
//	-interactive         Start the interactive shell
//	-discover            Browse for devstate daemons and exit
//
// Examples:
//
//	# Two-state device with the shell
//	devstate-device -interactive
//
//	# Configured device, advertised on the LAN, with full history
//	devstate-device -config /etc/devstate/foldable.yaml -mdns -history /var/lib/devstate/history.db
//
//	# List daemons on the local network
//	devstate-device -discover
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/foldsense/devstate-go/cmd/devstate-device/interactive"
	"github.com/foldsense/devstate-go/pkg/config"
)

// Flags holds the command-line overrides.
type Flags struct {
	ConfigFile  string
	Addr        string
	LogLevel    string
	EventLog    string
	History     string
	StateFile   string
	Script      string
	MDNS        bool
	Interactive bool
	Discover    bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&flags.Addr, "addr", "", "Bridge listen address (overrides bridge.addr)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.EventLog, "event-log", "", "CBOR event log path")
	flag.StringVar(&flags.History, "history", "", "SQLite history database path")
	flag.StringVar(&flags.StateFile, "state-file", "", "Snapshot file for restoring the last state")
	flag.StringVar(&flags.Script, "script", "", "Provider script path")
	flag.BoolVar(&flags.MDNS, "mdns", false, "Advertise the bridge over mDNS")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Start the interactive shell")
	flag.BoolVar(&flags.Discover, "discover", false, "Browse for devstate daemons and exit")
}

func main() {
	flag.Parse()

	if flags.Discover {
		if err := runDiscover(context.Background(), os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The shell owns the terminal; logs go through its writer.
	var logOut io.Writer = os.Stderr
	var shellOut *switchWriter
	if flags.Interactive {
		shellOut = &switchWriter{w: os.Stderr}
		logOut = shellOut
	}
	logger := newLogger(logOut, cfg.Logging.Level)

	d, err := newDaemon(cfg, logger)
	if err != nil {
		logger.Error("failed to create daemon", "error", err)
		os.Exit(1)
	}
	if err := d.Start(ctx); err != nil {
		logger.Error("failed to start daemon", "error", err)
		d.Stop()
		os.Exit(1)
	}

	if flags.Interactive {
		shell, err := interactive.New(ctx, d.coord, d.sim, cfg.States(), d.hist)
		if err != nil {
			logger.Error("failed to start shell", "error", err)
		} else {
			shellOut.Set(shell.Stdout())
			go shell.Run(ctx, cancel)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	cancel()
	d.Stop()
}

// loadConfig loads the configuration file, if any, and applies flag
// overrides.
func loadConfig(f Flags) (*config.Config, error) {
	cfg := config.Default()
	if f.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(f.ConfigFile); err != nil {
			return nil, err
		}
	}

	if f.Addr != "" {
		cfg.Bridge.Addr = f.Addr
	}
	if f.LogLevel != "" {
		cfg.Logging.Level = f.LogLevel
	}
	if f.EventLog != "" {
		cfg.Logging.EventLog = f.EventLog
	}
	if f.History != "" {
		cfg.Logging.HistoryDB = f.History
	}
	if f.StateFile != "" {
		cfg.Device.StateFile = f.StateFile
	}
	if f.Script != "" {
		cfg.Simulation.Script = f.Script
	}
	if f.MDNS {
		cfg.Discovery.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
