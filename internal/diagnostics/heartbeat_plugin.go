package diagnostics

import (
	"time"

	"github.com/gridwatch/gridwatch/internal/logging"
)

// Heartbeat plugin properties.
const (
	// PropHeartbeatPeriodSeconds is how often the plugin runs. Cheap; on
	// by default. 0 disables.
	PropHeartbeatPeriodSeconds = "heartbeat.period.seconds"
	// PropHeartbeatMaxDeviationPercentage is the tolerated deviation from
	// the expected heartbeat interval before a member is reported.
	PropHeartbeatMaxDeviationPercentage = "heartbeat.max-deviation-percentage"

	defaultHeartbeatPeriod       = 10 * time.Second
	defaultMaxDeviationPct       = 33
	heartbeatMainSection         = "OperationHeartbeat"
	heartbeatMemberSectionPrefix = "member"
)

// HeartbeatPlugin reports members whose operation-heartbeat interval
// deviates too far from the expected broadcast period. Large deviations
// point at network trouble (or a struggling peer) before a member is
// actually declared dead.
//
// The plugin holds no state beyond configuration; it reads the monitor's
// heartbeat table and renders output only when at least one member is out
// of tolerance, so a healthy cluster produces no output at all.
// HeartbeatSource exposes the per-member last-heartbeat table the plugin
// reads. *invocation.Monitor implements it.
type HeartbeatSource interface {
	LastHeartbeats() map[string]int64
	HeartbeatBroadcastPeriod() time.Duration
}

type HeartbeatPlugin struct {
	basePlugin
	source           HeartbeatSource
	period           time.Duration
	maxDeviationPct  int
	expectedInterval time.Duration

	// Scheduler-goroutine only.
	mainSectionStarted bool
}

// NewHeartbeatPlugin constructs the plugin from a property snapshot.
func NewHeartbeatPlugin(props Properties, source HeartbeatSource, logger *logging.Logger) *HeartbeatPlugin {
	return &HeartbeatPlugin{
		basePlugin:       newBasePlugin(logger, "heartbeat"),
		source:           source,
		period:           props.Seconds(PropHeartbeatPeriodSeconds, defaultHeartbeatPeriod),
		maxDeviationPct:  props.Int(PropHeartbeatMaxDeviationPercentage, defaultMaxDeviationPct),
		expectedInterval: source.HeartbeatBroadcastPeriod(),
	}
}

func (p *HeartbeatPlugin) Name() string { return "heartbeat" }

func (p *HeartbeatPlugin) Period() time.Duration { return p.period }

func (p *HeartbeatPlugin) OnStart() {
	p.basePlugin.OnStart()
	p.logger.Info("plugin active",
		"period", p.period,
		"max_deviation_pct", p.maxDeviationPct)
}

func (p *HeartbeatPlugin) OnShutdown() {
	p.basePlugin.OnShutdown()
	p.logger.Info("plugin inactive")
}

func (p *HeartbeatPlugin) Run(w LogWriter) {
	if !p.IsActive() {
		return
	}

	nowMillis := time.Now().UnixMilli()
	expectedMillis := p.expectedInterval.Milliseconds()

	for member, lastHeartbeatMillis := range p.source.LastHeartbeats() {
		noHeartbeatMillis := nowMillis - lastHeartbeatMillis
		deviation := 100 * float64(noHeartbeatMillis-expectedMillis) / float64(expectedMillis)
		if deviation >= float64(p.maxDeviationPct) {
			p.startLazyMainSection(w)

			w.StartSection(heartbeatMemberSectionPrefix + member)
			w.WriteKeyValue("deviation(%)", deviation)
			w.WriteKeyValue("noHeartbeat(ms)", noHeartbeatMillis)
			w.WriteKeyValue("lastHeartbeat(ms)", lastHeartbeatMillis)
			w.WriteKeyValueAsDateTime("lastHeartbeat(date-time)", lastHeartbeatMillis)
			w.WriteKeyValue("now(ms)", nowMillis)
			w.WriteKeyValueAsDateTime("now(date-time)", nowMillis)
			w.EndSection()
		}
		if !p.IsActive() {
			// Stopped mid-iteration; still close an opened main section.
			break
		}
	}

	p.endLazyMainSection(w)
}

// MaxDeviationPercentage exposes the configured threshold for testing.
func (p *HeartbeatPlugin) MaxDeviationPercentage() int {
	return p.maxDeviationPct
}

// The main section opens lazily so healthy ticks emit nothing instead of
// an empty section per run.
func (p *HeartbeatPlugin) startLazyMainSection(w LogWriter) {
	if !p.mainSectionStarted {
		p.mainSectionStarted = true
		w.StartSection(heartbeatMainSection)
	}
}

func (p *HeartbeatPlugin) endLazyMainSection(w LogWriter) {
	if p.mainSectionStarted {
		p.mainSectionStarted = false
		w.EndSection()
	}
}
