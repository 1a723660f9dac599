package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/foldsense/devstate-go/pkg/bridge"
	"github.com/foldsense/devstate-go/pkg/config"
	"github.com/foldsense/devstate-go/pkg/coordinator"
	"github.com/foldsense/devstate-go/pkg/discovery"
	"github.com/foldsense/devstate-go/pkg/history"
	"github.com/foldsense/devstate-go/pkg/log"
	"github.com/foldsense/devstate-go/pkg/persistence"
	"github.com/foldsense/devstate-go/pkg/policy"
	"github.com/foldsense/devstate-go/pkg/provider"
	"github.com/foldsense/devstate-go/pkg/request"
)

// Callback sessions registered by the daemon itself.
const (
	persistenceClient request.ClientID = "persistence"
	discoveryClient   request.ClientID = "discovery"
)

// daemon holds every running component.
type daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	coord     *coordinator.Coordinator
	sim       *provider.Simulated
	hist      *history.Store
	fileLog   *log.FileLogger
	store     *persistence.StateStore
	bridge    *bridge.Server
	publisher *discovery.Publisher
	script    *provider.Script

	wg sync.WaitGroup
}

// newDaemon builds the components described by cfg without starting
// anything.
func newDaemon(cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	d := &daemon{cfg: cfg, logger: logger}

	var eventLoggers []log.Logger
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		eventLoggers = append(eventLoggers, log.NewSlogAdapter(logger))
	}
	if path := cfg.Logging.EventLog; path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, fmt.Errorf("event log: %w", err)
		}
		d.fileLog = fl
		eventLoggers = append(eventLoggers, fl)
	}
	if path := cfg.Logging.HistoryDB; path != "" {
		hist, err := history.NewStore(path, logger)
		if err != nil {
			d.closeLogs()
			return nil, fmt.Errorf("history: %w", err)
		}
		d.hist = hist
		eventLoggers = append(eventLoggers, hist)
	}

	if path := cfg.Simulation.Script; path != "" {
		script, err := provider.LoadScript(path)
		if err != nil {
			d.closeLogs()
			return nil, err
		}
		d.script = script
	}

	states := cfg.States()
	initial := cfg.Device.InitialState
	if path := cfg.Device.StateFile; path != "" {
		d.store = persistence.NewStateStore(path)
		snap, err := d.store.Load()
		if err != nil {
			logger.Warn("ignoring saved state", "path", path, "error", err)
		}
		initial = snap.Resume(states, initial)
	}

	sim, err := provider.NewSimulated(states, initial)
	if err != nil {
		d.closeLogs()
		return nil, err
	}
	d.sim = sim

	d.coord = coordinator.New(coordinator.Config{
		Logger:             logger,
		EventLogger:        log.NewMultiLogger(eventLoggers...),
		ConfigureWarnAfter: cfg.Policy.WarnAfter,
	}, newPolicy(cfg.Policy, logger))

	if cfg.Bridge.Addr != "" {
		d.bridge = bridge.New(bridge.Config{
			Addr:         cfg.Bridge.Addr,
			TokenHash:    cfg.Bridge.TokenHash,
			RequestRate:  cfg.Bridge.RequestRate,
			RequestBurst: cfg.Bridge.RequestBurst,
			Logger:       logger.With("component", "bridge"),
		}, d.coord)
	}

	return d, nil
}

func newPolicy(cfg config.PolicyConfig, logger *slog.Logger) policy.Configurer {
	if cfg.DefaultDelay <= 0 && len(cfg.Delays) == 0 {
		return policy.Immediate{}
	}
	p := policy.NewDelayed(cfg.DefaultDelay, cfg.Delays)
	p.OnIssue(func(state int, delay time.Duration) {
		logger.Debug("policy configuring", "state", state, "delay", delay)
	})
	return p
}

// Start starts the coordinator, connects the provider and starts the
// outer surfaces.
func (d *daemon) Start(ctx context.Context) error {
	if err := d.coord.Start(); err != nil {
		return err
	}
	d.logger.Info("coordinator started", "session", d.coord.SessionID())

	if d.store != nil {
		rec := persistence.NewRecorder(d.store, d.coord, d.logger)
		if err := d.coord.RegisterCallback(ctx, persistenceClient, rec); err != nil {
			return err
		}
	}

	if err := d.sim.SetListener(d.coord); err != nil {
		return fmt.Errorf("provider: %w", err)
	}

	if d.bridge != nil {
		if err := d.bridge.Start(); err != nil {
			return err
		}
	}

	if d.cfg.Discovery.Enabled && d.bridge != nil {
		if err := d.startDiscovery(ctx); err != nil {
			d.logger.Warn("mDNS advertising unavailable", "error", err)
		}
	}

	if d.script != nil {
		runner := provider.NewRunner(d.script, d.sim, d.cfg.States(), d.logger.With("component", "script"))
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
				d.logger.Warn("script stopped", "error", err)
			}
		}()
	}

	return nil
}

func (d *daemon) startDiscovery(ctx context.Context) error {
	adv := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
		Interface: d.cfg.Discovery.Interface,
		TTL:       d.cfg.Discovery.TTL,
	})
	info := discovery.ServiceInfo{
		InstanceName: d.cfg.Device.Name,
		Port:         bridgePort(d.bridge.Addr()),
	}
	pub := discovery.NewPublisher(adv, info, d.coord.SupportedStates, d.logger.With("component", "discovery"))
	if err := pub.Start(ctx); err != nil {
		return err
	}
	d.publisher = pub

	// Registration pushes the current committed state into the TXT record.
	return d.coord.RegisterCallback(ctx, discoveryClient, pub)
}

func bridgePort(addr net.Addr) uint16 {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return uint16(tcp.Port)
	}
	if addr != nil {
		if _, port, err := net.SplitHostPort(addr.String()); err == nil {
			if n, err := strconv.Atoi(port); err == nil {
				return uint16(n)
			}
		}
	}
	return discovery.DefaultPort
}

// Stop tears everything down in reverse order.
func (d *daemon) Stop() {
	if d.bridge != nil {
		if err := d.bridge.Stop(); err != nil {
			d.logger.Warn("bridge stop failed", "error", err)
		}
	}
	d.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := d.coord.Flush(ctx); err != nil {
		d.logger.Debug("flush before stop failed", "error", err)
	}
	cancel()

	if d.publisher != nil {
		if err := d.publisher.Stop(); err != nil {
			d.logger.Warn("mDNS stop failed", "error", err)
		}
	}

	if err := d.coord.Stop(); err != nil {
		d.logger.Debug("coordinator stop failed", "error", err)
	}
	d.closeLogs()
}

func (d *daemon) closeLogs() {
	if d.fileLog != nil {
		if n := d.fileLog.Dropped(); n > 0 {
			d.logger.Warn("event log dropped events", "count", n)
		}
		_ = d.fileLog.Close()
	}
	if d.hist != nil {
		if n := d.hist.Failed(); n > 0 {
			d.logger.Warn("history writes failed", "count", n)
		}
		_ = d.hist.Close()
	}
}

// switchWriter forwards writes to a replaceable writer.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Set replaces the destination.
func (s *switchWriter) Set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}
