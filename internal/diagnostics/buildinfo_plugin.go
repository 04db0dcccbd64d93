package diagnostics

import (
	"os"
	"runtime"
	"time"

	"github.com/gridwatch/gridwatch/internal/logging"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// BuildInfoPlugin renders one static section at service start: build and
// runtime identity of the node. Knowing exactly which binary produced a
// diagnostics file is the first question when reading one.
type BuildInfoPlugin struct {
	basePlugin
	info   BuildInfo
	member string
}

// NewBuildInfoPlugin constructs the run-once plugin.
func NewBuildInfoPlugin(info BuildInfo, member string, logger *logging.Logger) *BuildInfoPlugin {
	return &BuildInfoPlugin{
		basePlugin: newBasePlugin(logger, "build-info"),
		info:       info,
		member:     member,
	}
}

func (p *BuildInfoPlugin) Name() string { return "build-info" }

func (p *BuildInfoPlugin) Period() time.Duration { return PeriodRunOnce }

func (p *BuildInfoPlugin) OnStart() {
	p.basePlugin.OnStart()
}

func (p *BuildInfoPlugin) OnShutdown() {
	p.basePlugin.OnShutdown()
}

func (p *BuildInfoPlugin) Run(w LogWriter) {
	w.StartSection("BuildInfo")
	w.WriteKeyValue("version", p.info.Version)
	w.WriteKeyValue("commit", p.info.Commit)
	w.WriteKeyValue("date", p.info.Date)
	w.WriteKeyValue("goVersion", runtime.Version())
	w.WriteKeyValue("os", runtime.GOOS)
	w.WriteKeyValue("arch", runtime.GOARCH)
	w.WriteKeyValue("pid", os.Getpid())
	if p.member != "" {
		w.WriteKeyValue("member", p.member)
	}
	w.EndSection()
}
