package diagnostics

import (
	"testing"
	"time"

	"github.com/gridwatch/gridwatch/internal/logging"
)

type fakeHeartbeatSource struct {
	heartbeats map[string]int64
	period     time.Duration
}

func (f *fakeHeartbeatSource) LastHeartbeats() map[string]int64 {
	return f.heartbeats
}

func (f *fakeHeartbeatSource) HeartbeatBroadcastPeriod() time.Duration {
	return f.period
}

func newHeartbeatPlugin(source *fakeHeartbeatSource, props map[string]string) *HeartbeatPlugin {
	p := NewHeartbeatPlugin(NewProperties(props), source, logging.NewNop())
	p.OnStart()
	return p
}

// With expected-interval 15s and max-deviation 33%: a member silent for
// 20s deviates 33.3% and is reported; one silent for 19s deviates 26.7%
// and is not.
func TestHeartbeatPlugin_DeviationBoundary(t *testing.T) {
	now := time.Now().UnixMilli()
	source := &fakeHeartbeatSource{
		period: 15 * time.Second,
		heartbeats: map[string]int64{
			"10.0.0.1:5701": now - 20_000,
			"10.0.0.2:5701": now - 19_000,
		},
	}
	p := newHeartbeatPlugin(source, nil)

	w := &fakeWriter{}
	p.Run(w)

	if !w.Contains("start:OperationHeartbeat") {
		t.Fatal("expected main section for out-of-tolerance member")
	}
	if !w.Contains("start:member10.0.0.1:5701") {
		t.Error("member at 33.3% deviation must be reported")
	}
	if w.Contains("start:member10.0.0.2:5701") {
		t.Error("member at 26.7% deviation must not be reported")
	}
	if w.Depth() != 0 {
		t.Errorf("unbalanced sections, depth %d", w.Depth())
	}
}

func TestHeartbeatPlugin_HealthyClusterEmitsNothing(t *testing.T) {
	now := time.Now().UnixMilli()
	source := &fakeHeartbeatSource{
		period: 15 * time.Second,
		heartbeats: map[string]int64{
			"10.0.0.1:5701": now - 14_000,
			"10.0.0.2:5701": now - 15_000,
		},
	}
	p := newHeartbeatPlugin(source, nil)

	w := &fakeWriter{}
	p.Run(w)

	if len(w.Lines()) != 0 {
		t.Errorf("healthy tick must produce no output, got %v", w.Lines())
	}
}

func TestHeartbeatPlugin_MemberSectionContent(t *testing.T) {
	now := time.Now().UnixMilli()
	last := now - 30_000
	source := &fakeHeartbeatSource{
		period:     15 * time.Second,
		heartbeats: map[string]int64{"10.0.0.9:5701": last},
	}
	p := newHeartbeatPlugin(source, nil)

	w := &fakeWriter{}
	p.Run(w)

	for _, want := range []string{
		"kv:deviation(%)=",
		"kv:noHeartbeat(ms)=",
		"kv:lastHeartbeat(ms)=",
		"kvdt:lastHeartbeat(date-time)=",
		"kv:now(ms)=",
		"kvdt:now(date-time)=",
	} {
		if !w.Contains(want) {
			t.Errorf("missing entry %q in %v", want, w.Lines())
		}
	}
}

func TestHeartbeatPlugin_CustomThreshold(t *testing.T) {
	now := time.Now().UnixMilli()
	source := &fakeHeartbeatSource{
		period:     15 * time.Second,
		heartbeats: map[string]int64{"10.0.0.1:5701": now - 20_000},
	}
	p := newHeartbeatPlugin(source, map[string]string{
		PropHeartbeatMaxDeviationPercentage: "50",
	})

	if p.MaxDeviationPercentage() != 50 {
		t.Fatalf("threshold not applied: %d", p.MaxDeviationPercentage())
	}

	w := &fakeWriter{}
	p.Run(w)
	if len(w.Lines()) != 0 {
		t.Errorf("33%% deviation under a 50%% threshold must emit nothing, got %v", w.Lines())
	}
}

func TestHeartbeatPlugin_InactiveRunsNothing(t *testing.T) {
	now := time.Now().UnixMilli()
	source := &fakeHeartbeatSource{
		period:     15 * time.Second,
		heartbeats: map[string]int64{"10.0.0.1:5701": now - 60_000},
	}
	p := NewHeartbeatPlugin(NewProperties(nil), source, logging.NewNop())
	// OnStart never called.

	w := &fakeWriter{}
	p.Run(w)
	if len(w.Lines()) != 0 {
		t.Errorf("inactive plugin must emit nothing, got %v", w.Lines())
	}
}

// A stop signal mid-iteration must still close an already-opened main
// section: no dangling open sections.
func TestHeartbeatPlugin_StopMidIterationClosesSection(t *testing.T) {
	now := time.Now().UnixMilli()
	source := &fakeHeartbeatSource{
		period: 15 * time.Second,
		heartbeats: map[string]int64{
			"10.0.0.1:5701": now - 60_000,
			"10.0.0.2:5701": now - 60_000,
			"10.0.0.3:5701": now - 60_000,
		},
	}
	p := newHeartbeatPlugin(source, nil)

	w := &fakeWriter{}
	deactivated := false
	// Deactivate after the first member section renders.
	wrapped := &hookWriter{LogWriter: w, onEndSection: func() {
		if !deactivated {
			deactivated = true
			p.OnShutdown()
		}
	}}
	p.Run(wrapped)

	if w.Depth() != 0 {
		t.Errorf("dangling open section after mid-iteration stop, depth %d", w.Depth())
	}
}

// hookWriter forwards to an inner writer and fires a callback after every
// EndSection.
type hookWriter struct {
	LogWriter
	onEndSection func()
}

func (h *hookWriter) EndSection() {
	h.LogWriter.EndSection()
	if h.onEndSection != nil {
		h.onEndSection()
	}
}

func TestHeartbeatPlugin_DefaultPeriod(t *testing.T) {
	source := &fakeHeartbeatSource{period: 15 * time.Second}
	p := NewHeartbeatPlugin(NewProperties(nil), source, logging.NewNop())

	if p.Period() != 10*time.Second {
		t.Errorf("default period = %v, want 10s", p.Period())
	}

	p = NewHeartbeatPlugin(NewProperties(map[string]string{
		PropHeartbeatPeriodSeconds: "0",
	}), source, logging.NewNop())
	if p.Period() != 0 {
		t.Errorf("zero period must disable, got %v", p.Period())
	}
}
