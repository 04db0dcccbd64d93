package diagnostics

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/gridwatch/gridwatch/internal/logging"
)

// System plugin properties.
const (
	// PropSystemPeriodSeconds is how often host and runtime stats are
	// rendered. 0 disables.
	PropSystemPeriodSeconds = "system.period.seconds"

	defaultSystemPeriod = 60 * time.Second
)

// SystemPlugin renders host-level resource usage (CPU, memory, disk, load
// average) and Go runtime stats. Individual gopsutil calls can fail on
// exotic platforms; a failed reading is skipped, never fatal.
type SystemPlugin struct {
	basePlugin
	period  time.Duration
	diskDir string
}

// NewSystemPlugin constructs the plugin from a property snapshot. diskDir
// is the path whose filesystem usage is reported, typically the
// diagnostics log directory.
func NewSystemPlugin(props Properties, diskDir string, logger *logging.Logger) *SystemPlugin {
	if diskDir == "" {
		diskDir = "."
	}
	return &SystemPlugin{
		basePlugin: newBasePlugin(logger, "system"),
		period:     props.Seconds(PropSystemPeriodSeconds, defaultSystemPeriod),
		diskDir:    diskDir,
	}
}

func (p *SystemPlugin) Name() string { return "system" }

func (p *SystemPlugin) Period() time.Duration { return p.period }

func (p *SystemPlugin) OnStart() {
	p.basePlugin.OnStart()
	p.logger.Info("plugin active", "period", p.period)
}

func (p *SystemPlugin) OnShutdown() {
	p.basePlugin.OnShutdown()
	p.logger.Info("plugin inactive")
}

func (p *SystemPlugin) Run(w LogWriter) {
	if !p.IsActive() {
		return
	}

	w.StartSection("System")
	p.writeCPU(w)
	p.writeMemory(w)
	p.writeDisk(w)
	p.writeLoad(w)
	p.writeRuntime(w)
	w.EndSection()
}

func (p *SystemPlugin) writeCPU(w LogWriter) {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return
	}
	w.WriteKeyValue("cpuPercent", percents[0])
}

func (p *SystemPlugin) writeMemory(w LogWriter) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return
	}
	w.WriteKeyValue("memTotalMB", float64(vm.Total)/bytesPerMB)
	w.WriteKeyValue("memUsedMB", float64(vm.Used)/bytesPerMB)
	w.WriteKeyValue("memPercent", vm.UsedPercent)
}

func (p *SystemPlugin) writeDisk(w LogWriter) {
	usage, err := disk.Usage(p.diskDir)
	if err != nil {
		return
	}
	w.WriteKeyValue("diskTotalGB", float64(usage.Total)/(bytesPerMB*1024))
	w.WriteKeyValue("diskUsedGB", float64(usage.Used)/(bytesPerMB*1024))
	w.WriteKeyValue("diskPercent", usage.UsedPercent)
}

func (p *SystemPlugin) writeLoad(w LogWriter) {
	avg, err := load.Avg()
	if err != nil {
		return
	}
	w.WriteKeyValue("loadAvg1", avg.Load1)
	w.WriteKeyValue("loadAvg5", avg.Load5)
	w.WriteKeyValue("loadAvg15", avg.Load15)
}

func (p *SystemPlugin) writeRuntime(w LogWriter) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	w.WriteKeyValue("goroutines", runtime.NumGoroutine())
	w.WriteKeyValue("heapAllocMB", float64(ms.HeapAlloc)/bytesPerMB)
	w.WriteKeyValue("heapInUseMB", float64(ms.HeapInuse)/bytesPerMB)
	w.WriteKeyValue("stackInUseMB", float64(ms.StackInuse)/bytesPerMB)
	w.WriteKeyValue("numGC", ms.NumGC)
	w.WriteKeyValue("gcPauseNs", ms.PauseNs[(ms.NumGC+255)%256])
}
