package diagnostics

import (
	"sync/atomic"
	"time"

	"github.com/gridwatch/gridwatch/internal/logging"
)

// PeriodRunOnce marks a plugin that renders exactly once, at service start.
const PeriodRunOnce = time.Duration(-1)

// Plugin is a self-contained periodic diagnostic task. Implementations pull
// live data from collaborator subsystems and render it; they never mutate
// what they observe.
//
// A Period of zero disables the plugin: it stays registered but Run is
// never scheduled. PeriodRunOnce schedules a single Run at start.
type Plugin interface {
	Name() string
	Period() time.Duration
	OnStart()
	OnShutdown()
	Run(w LogWriter)
}

// basePlugin carries the active flag and logger shared by all plugins.
// OnStart and OnShutdown of concrete plugins call through to it.
type basePlugin struct {
	logger *logging.Logger
	active atomic.Bool
}

func newBasePlugin(logger *logging.Logger, pluginName string) basePlugin {
	if logger == nil {
		logger = logging.NewNop()
	}
	return basePlugin{logger: logger.WithPlugin(pluginName)}
}

func (p *basePlugin) OnStart() {
	p.active.Store(true)
}

func (p *basePlugin) OnShutdown() {
	p.active.Store(false)
}

// IsActive reports whether the plugin is between OnStart and OnShutdown.
func (p *basePlugin) IsActive() bool {
	return p.active.Load()
}
