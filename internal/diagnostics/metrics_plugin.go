package diagnostics

import (
	"fmt"
	"time"

	"github.com/gridwatch/gridwatch/internal/logging"
	"github.com/gridwatch/gridwatch/internal/metrics"
)

// Metrics plugin properties.
const (
	// PropMetricsPeriodSeconds is how often the registry content is
	// dumped. Cheap. 0 disables.
	PropMetricsPeriodSeconds = "metrics.period.seconds"

	defaultMetricsPeriod = 60 * time.Second
	metricSectionName    = "Metric"
)

// MetricsPlugin dumps every diagnostics-tagged metric from the registry.
// All entries of one run share a single timestamp captured at the start of
// the run, so a tick's output is internally time-consistent.
type MetricsPlugin struct {
	basePlugin
	registry  *metrics.Registry
	collector *metricsCollector
	period    time.Duration
}

// NewMetricsPlugin constructs the plugin from a property snapshot.
func NewMetricsPlugin(props Properties, registry *metrics.Registry, logger *logging.Logger) *MetricsPlugin {
	return &MetricsPlugin{
		basePlugin: newBasePlugin(logger, "metrics"),
		registry:   registry,
		collector:  &metricsCollector{},
		period:     props.Seconds(PropMetricsPeriodSeconds, defaultMetricsPeriod),
	}
}

func (p *MetricsPlugin) Name() string { return "metrics" }

func (p *MetricsPlugin) Period() time.Duration { return p.period }

func (p *MetricsPlugin) OnStart() {
	p.basePlugin.OnStart()
	p.logger.Info("plugin active", "period", p.period)
}

func (p *MetricsPlugin) OnShutdown() {
	p.basePlugin.OnShutdown()
	p.logger.Info("plugin inactive")
}

func (p *MetricsPlugin) Run(w LogWriter) {
	if !p.IsActive() {
		return
	}
	p.collector.writer = w
	p.collector.timeMillis = time.Now().UnixMilli()
	p.registry.Collect(p.collector, metrics.TargetDiagnostics)
	p.collector.writer = nil
}

// metricsCollector bridges the registry callback to the log writer. The
// writer is cleared after each run; a probe firing during shutdown after
// the plugin closed finds a nil writer and drops the entry.
type metricsCollector struct {
	writer     LogWriter
	timeMillis int64
}

func (c *metricsCollector) CollectLong(name string, value int64) {
	if c.writer != nil {
		c.writer.WriteSectionKeyValue(metricSectionName, c.timeMillis, name, value)
	}
}

func (c *metricsCollector) CollectDouble(name string, value float64) {
	if c.writer != nil {
		c.writer.WriteSectionKeyValue(metricSectionName, c.timeMillis, name, value)
	}
}

func (c *metricsCollector) CollectException(name string, err error) {
	if c.writer != nil {
		c.writer.WriteSectionKeyValue(metricSectionName, c.timeMillis, name,
			fmt.Sprintf("%T:%v", err, err))
	}
}

func (c *metricsCollector) CollectNoValue(name string) {
	if c.writer != nil {
		c.writer.WriteSectionKeyValue(metricSectionName, c.timeMillis, name, "NA")
	}
}
