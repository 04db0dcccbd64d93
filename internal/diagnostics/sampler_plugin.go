package diagnostics

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/gridwatch/gridwatch/internal/logging"
	"github.com/gridwatch/gridwatch/internal/operation"
)

// Thread sampler plugin properties.
const (
	// PropSamplerPeriodSeconds is how often accumulated samples are
	// rendered. It is not the sampling frequency. 0 disables the plugin.
	PropSamplerPeriodSeconds = "sampler.period.seconds"
	// PropSamplerSamplerPeriodMillis is the interval between samples. The
	// lower the period, the higher the overhead and the precision.
	PropSamplerSamplerPeriodMillis = "sampler.sampler-period-millis"
	// PropSamplerIncludeName appends the task-supplied logical name to
	// sampled labels. Off by default: named labels never age out, so the
	// counter tables grow for the life of the plugin.
	PropSamplerIncludeName = "sampler.include-name"

	defaultSamplerPeriod       = 0 // disabled by default
	defaultSamplerSamplePeriod = 100 * time.Millisecond
)

// ThreadSamplerPlugin samples which task every runner is executing. The
// slow-operation detector catches individual slow calls; the sampler shows
// where runner time actually goes under high volumes of fast operations.
//
// Two independent cadences: a background goroutine samples every
// sampler-period; the scheduler renders the accumulated counters every
// plugin period. Counters accumulate for the plugin's lifetime, so rendered
// percentages are cumulative-since-start.
type ThreadSamplerPlugin struct {
	basePlugin
	executor *operation.Executor

	partitionSamples *ItemCounter
	genericSamples   *ItemCounter

	period              time.Duration
	samplerPeriodMillis time.Duration
	includeName         bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewThreadSamplerPlugin constructs the plugin from a property snapshot.
func NewThreadSamplerPlugin(props Properties, executor *operation.Executor, logger *logging.Logger) *ThreadSamplerPlugin {
	samplerPeriod := props.Millis(PropSamplerSamplerPeriodMillis, defaultSamplerSamplePeriod)
	if samplerPeriod <= 0 {
		// A non-positive cadence would spin the sample loop instead of
		// parking it. Validation rejects this upstream; guard anyway.
		samplerPeriod = defaultSamplerSamplePeriod
	}
	return &ThreadSamplerPlugin{
		basePlugin:          newBasePlugin(logger, "thread-sampler"),
		executor:            executor,
		partitionSamples:    NewItemCounter(),
		genericSamples:      NewItemCounter(),
		period:              props.Seconds(PropSamplerPeriodSeconds, defaultSamplerPeriod),
		samplerPeriodMillis: samplerPeriod,
		includeName:         props.Bool(PropSamplerIncludeName, false),
	}
}

func (p *ThreadSamplerPlugin) Name() string { return "thread-sampler" }

func (p *ThreadSamplerPlugin) Period() time.Duration { return p.period }

func (p *ThreadSamplerPlugin) OnStart() {
	p.basePlugin.OnStart()
	p.logger.Info("plugin active",
		"period", p.period,
		"sampler_period", p.samplerPeriodMillis,
		"include_name", p.includeName)

	p.stopCh = make(chan struct{})
	p.wg.Add(1)
	go p.sampleLoop()
}

func (p *ThreadSamplerPlugin) OnShutdown() {
	p.basePlugin.OnShutdown()
	if p.stopCh != nil {
		close(p.stopCh)
		p.wg.Wait()
		p.stopCh = nil
	}
	p.logger.Info("plugin inactive")
}

func (p *ThreadSamplerPlugin) Run(w LogWriter) {
	w.StartSection("OperationThreadSamples")
	p.write(w, "Partition", p.partitionSamples)
	p.write(w, "Generic", p.genericSamples)
	w.EndSection()
}

func (p *ThreadSamplerPlugin) write(w LogWriter, name string, samples *ItemCounter) {
	w.StartSection(name)
	total := samples.Total()
	keys := samples.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		count := samples.Get(key)
		if total == 0 {
			w.WriteKeyValue(key, count)
		} else {
			w.WriteKeyValue(key, fmt.Sprintf("%d %.1f%%", count, 100*float64(count)/float64(total)))
		}
	}
	w.EndSection()
}

// sampleLoop runs on its own goroutine at the fast cadence, parked between
// ticks. It only writes to the plugin's counter tables, never to the sink.
func (p *ThreadSamplerPlugin) sampleLoop() {
	defer p.wg.Done()

	nextRun := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		nextRun = nextRun.Add(p.samplerPeriodMillis)
		wait := time.Until(nextRun)
		if wait < 0 {
			// Fell behind; resync to now instead of firing a burst.
			nextRun = time.Now().Add(p.samplerPeriodMillis)
			wait = p.samplerPeriodMillis
		}
		timer.Reset(wait)

		select {
		case <-p.stopCh:
			return
		case <-timer.C:
			p.sample(p.executor.PartitionRunners(), p.partitionSamples)
			p.sample(p.executor.GenericRunners(), p.genericSamples)
		}
	}
}

func (p *ThreadSamplerPlugin) sample(runners []*operation.Runner, samples *ItemCounter) {
	for _, runner := range runners {
		if task := runner.CurrentTask(); task != nil {
			samples.Inc(p.taskLabel(task))
		}
	}
}

func (p *ThreadSamplerPlugin) taskLabel(task operation.Task) string {
	name := reflect.TypeOf(task).String()
	if p.includeName {
		if named, ok := task.(operation.NamedTask); ok {
			return name + "#" + named.TaskName()
		}
	}
	return name
}

// IncludeName exposes the configured flag for testing.
func (p *ThreadSamplerPlugin) IncludeName() bool {
	return p.includeName
}

// SamplerPeriod exposes the sampling cadence for testing.
func (p *ThreadSamplerPlugin) SamplerPeriod() time.Duration {
	return p.samplerPeriodMillis
}
