package diagnostics

import (
	"testing"
	"time"

	"github.com/gridwatch/gridwatch/internal/logging"
)

func TestSystemPlugin_DefaultPeriod(t *testing.T) {
	p := NewSystemPlugin(NewProperties(nil), t.TempDir(), logging.NewNop())
	if p.Period() != 60*time.Second {
		t.Errorf("default period = %v, want 60s", p.Period())
	}

	p = NewSystemPlugin(NewProperties(map[string]string{
		PropSystemPeriodSeconds: "0",
	}), t.TempDir(), logging.NewNop())
	if p.Period() != 0 {
		t.Errorf("zero period must disable, got %v", p.Period())
	}
}

func TestSystemPlugin_RendersRuntimeStats(t *testing.T) {
	p := NewSystemPlugin(NewProperties(nil), t.TempDir(), logging.NewNop())
	p.OnStart()
	defer p.OnShutdown()

	w := &fakeWriter{}
	p.Run(w)

	if !w.Contains("start:System") {
		t.Fatalf("missing section, got %v", w.Lines())
	}
	// Host probes can fail in constrained environments; runtime stats
	// always render.
	for _, want := range []string{"kv:goroutines=", "kv:heapAllocMB=", "kv:numGC="} {
		if !w.Contains(want) {
			t.Errorf("missing entry %q in %v", want, w.Lines())
		}
	}
	if w.Depth() != 0 {
		t.Errorf("unbalanced sections, depth %d", w.Depth())
	}
}

func TestSystemPlugin_InactiveRunsNothing(t *testing.T) {
	p := NewSystemPlugin(NewProperties(nil), t.TempDir(), logging.NewNop())

	w := &fakeWriter{}
	p.Run(w)
	if len(w.Lines()) != 0 {
		t.Errorf("inactive plugin must emit nothing, got %v", w.Lines())
	}
}
