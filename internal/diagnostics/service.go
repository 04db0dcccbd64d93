// Package diagnostics implements the node's periodic diagnostics framework:
// a registry of plugins driven by one scheduler goroutine, rendering
// structured sections to a rolling-file, stdout, or logger sink.
//
// Diagnostics is best-effort by design. A failing plugin is logged and
// retried on its next tick; a failing sink drops output; nothing here may
// crash or stall the hosting node.
package diagnostics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gridwatch/gridwatch/internal/config"
	"github.com/gridwatch/gridwatch/internal/logging"
)

// schedulerTick is the resolution at which plugin due-times are checked.
// Plugin periods are whole seconds, so a coarser tick would only add skew.
const schedulerTick = 500 * time.Millisecond

type scheduledPlugin struct {
	plugin  Plugin
	nextDue time.Time
	started bool
	runOnce bool
	done    bool
}

// Service owns the registered plugins and the scheduler goroutine.
type Service struct {
	cfg    config.DiagnosticsConfig
	props  Properties
	logger *logging.Logger
	writer *logWriter
	sink   sink

	mu      sync.Mutex
	plugins []*scheduledPlugin

	started  atomic.Bool
	shutdown atomic.Bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewService builds a diagnostics service from configuration. The sink is
// chosen by output type; files are not touched until the first section is
// rendered.
func NewService(cfg config.DiagnosticsConfig, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithComponent("diagnostics")

	var s sink
	switch cfg.OutputType {
	case config.OutputTypeStdout:
		s = newStdoutSink(logger)
	case config.OutputTypeLogger:
		s = newLoggerSink(logger)
	default:
		s = newRollingFileSink(cfg.LogDirectory, cfg.FileNamePrefix,
			cfg.MaxRolledFileSizeMB, cfg.MaxRolledFileCount, logger)
	}

	return &Service{
		cfg:    cfg,
		props:  NewProperties(cfg.PluginProperties),
		logger: logger,
		writer: newLogWriter(s, cfg.IncludeEpochTime, logger),
		sink:   s,
		stopCh: make(chan struct{}),
	}
}

// Properties returns the plugin-property snapshot plugins are built from.
func (s *Service) Properties() Properties {
	return s.props
}

// Register adds a plugin. A plugin with period zero stays registered but
// is never scheduled. Registration after Start is picked up on the next
// scheduler tick.
func (s *Service) Register(p Plugin) {
	sp := &scheduledPlugin{
		plugin:  p,
		runOnce: p.Period() == PeriodRunOnce,
	}

	s.mu.Lock()
	s.plugins = append(s.plugins, sp)
	s.mu.Unlock()

	if p.Period() == 0 {
		s.logger.Debug("plugin registered but disabled", "plugin", p.Name())
		return
	}
	s.logger.Debug("plugin registered", "plugin", p.Name(), "period", p.Period())
}

// Start launches the scheduler goroutine. No-op when already started or
// when diagnostics is disabled in config.
func (s *Service) Start() {
	if !s.cfg.Enabled {
		s.logger.Debug("diagnostics disabled")
		return
	}
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	s.logger.Info("diagnostics started",
		"output", string(s.cfg.OutputType),
		"directory", s.cfg.LogDirectory)

	s.wg.Add(1)
	go s.schedulerLoop()
}

// Shutdown stops the scheduler and shuts every registered plugin down in
// registration order. A failure in one plugin's shutdown is logged and
// does not block the others. Safe to call more than once.
func (s *Service) Shutdown() {
	if !s.shutdown.CompareAndSwap(false, true) {
		return
	}
	close(s.stopCh)
	s.wg.Wait()

	s.mu.Lock()
	plugins := make([]*scheduledPlugin, len(s.plugins))
	copy(plugins, s.plugins)
	s.mu.Unlock()

	for _, sp := range plugins {
		s.shutdownPlugin(sp.plugin)
	}

	s.writer.reset()
	s.sink.close()
	s.logger.Info("diagnostics stopped")
}

func (s *Service) shutdownPlugin(p Plugin) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("plugin shutdown failed", "plugin", p.Name(), "panic", rec)
		}
	}()
	p.OnShutdown()
}

func (s *Service) schedulerLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(schedulerTick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.runDuePlugins(now)
		}
	}
}

func (s *Service) runDuePlugins(now time.Time) {
	s.mu.Lock()
	plugins := make([]*scheduledPlugin, len(s.plugins))
	copy(plugins, s.plugins)
	s.mu.Unlock()

	for _, sp := range plugins {
		select {
		case <-s.stopCh:
			return
		default:
		}

		period := sp.plugin.Period()
		if period == 0 || sp.done {
			continue
		}

		if !sp.started {
			sp.started = true
			s.startPlugin(sp.plugin)
			if sp.runOnce {
				s.runPlugin(sp.plugin)
				sp.done = true
				continue
			}
			// First run happens one period after start.
			sp.nextDue = now.Add(period)
			continue
		}

		if now.Before(sp.nextDue) {
			continue
		}

		s.runPlugin(sp.plugin)

		// Fixed-period rescheduling from the last scheduled time so load
		// spikes do not accumulate drift. If a run overran whole periods,
		// skip ahead rather than firing a burst of catch-up runs.
		sp.nextDue = sp.nextDue.Add(period)
		if !sp.nextDue.After(now) {
			sp.nextDue = now.Add(period)
		}
	}
}

func (s *Service) startPlugin(p Plugin) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("plugin start failed", "plugin", p.Name(), "panic", rec)
		}
	}()
	p.OnStart()
}

// runPlugin invokes one plugin run, isolating the scheduler from plugin
// failures. The plugin stays registered and is retried on its next tick.
func (s *Service) runPlugin(p Plugin) {
	defer func() {
		if rec := recover(); rec != nil {
			s.writer.reset()
			s.logger.Error("plugin run failed", "plugin", p.Name(), "panic", rec)
		}
	}()
	p.Run(s.writer)
}
