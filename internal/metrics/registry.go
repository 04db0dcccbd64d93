// Package metrics provides a lightweight probe registry. Probes are pull
// based: nothing is computed until a collector asks for a snapshot, so an
// idle registry costs nothing.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Target is a bitmask of consumers a probe is published to.
type Target uint8

const (
	// TargetDiagnostics marks a probe for inclusion in diagnostics output.
	TargetDiagnostics Target = 1 << iota
	// TargetExport marks a probe for external exposition.
	TargetExport
)

// Includes reports whether all bits of other are set.
func (t Target) Includes(other Target) bool {
	return t&other == other
}

// Collector receives one callback per collected probe. Exactly one of the
// four shapes is used for each probe: a long value, a double value, an
// exception when the probe failed, or no value at all.
type Collector interface {
	CollectLong(name string, value int64)
	CollectDouble(name string, value float64)
	CollectException(name string, err error)
	CollectNoValue(name string)
}

// Source is an external metric producer that can be attached to a registry.
// A source pushes its metrics through the same Collector callback as
// registered probes.
type Source interface {
	CollectInto(c Collector)
}

// LongProbe produces an int64 sample. Returning an error yields the
// exception shape; returning ErrNoValue yields the no-value shape.
type LongProbe func() (int64, error)

// DoubleProbe produces a float64 sample.
type DoubleProbe func() (float64, error)

// ErrNoValue is returned by probes that currently have nothing to report.
var ErrNoValue = noValueError{}

type noValueError struct{}

func (noValueError) Error() string { return "no value" }

type probe struct {
	name    string
	targets Target
	long    LongProbe
	double  DoubleProbe
}

// Registry holds registered probes and attached sources.
type Registry struct {
	mu      sync.RWMutex
	probes  map[string]*probe
	sources []Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		probes: make(map[string]*probe),
	}
}

// RegisterLong registers an int64-valued probe. Re-registering a name
// replaces the previous probe.
func (r *Registry) RegisterLong(name string, targets Target, fn LongProbe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes[name] = &probe{name: name, targets: targets, long: fn}
}

// RegisterDouble registers a float64-valued probe.
func (r *Registry) RegisterDouble(name string, targets Target, fn DoubleProbe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes[name] = &probe{name: name, targets: targets, double: fn}
}

// Deregister removes a probe by name.
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.probes, name)
}

// AddSource attaches an external metric source. Sources are collected after
// registered probes and are responsible for their own target filtering.
func (r *Registry) AddSource(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, s)
}

// Collect pushes every probe published to the given target through the
// collector, in deterministic (sorted) name order, followed by all attached
// sources. The target filter is evaluated here, not by the collector.
func (r *Registry) Collect(c Collector, target Target) {
	r.mu.RLock()
	names := make([]string, 0, len(r.probes))
	for name, p := range r.probes {
		if p.targets.Includes(target) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	probes := make([]*probe, len(names))
	for i, name := range names {
		probes[i] = r.probes[name]
	}
	sources := make([]Source, len(r.sources))
	copy(sources, r.sources)
	r.mu.RUnlock()

	for _, p := range probes {
		p.collect(c)
	}
	for _, s := range sources {
		s.CollectInto(c)
	}
}

func (p *probe) collect(c Collector) {
	switch {
	case p.long != nil:
		v, err := p.long()
		switch err {
		case nil:
			c.CollectLong(p.name, v)
		case ErrNoValue:
			c.CollectNoValue(p.name)
		default:
			c.CollectException(p.name, err)
		}
	case p.double != nil:
		v, err := p.double()
		switch err {
		case nil:
			c.CollectDouble(p.name, v)
		case ErrNoValue:
			c.CollectNoValue(p.name)
		default:
			c.CollectException(p.name, err)
		}
	default:
		c.CollectNoValue(p.name)
	}
}

// LongGauge is a settable int64 metric backed by an atomic.
type LongGauge struct {
	v atomic.Int64
}

// NewLongGauge registers a gauge-backed long probe and returns the gauge.
func (r *Registry) NewLongGauge(name string, targets Target) *LongGauge {
	g := &LongGauge{}
	r.RegisterLong(name, targets, func() (int64, error) {
		return g.v.Load(), nil
	})
	return g
}

// Set stores the gauge value.
func (g *LongGauge) Set(v int64) { g.v.Store(v) }

// Inc adds delta to the gauge value.
func (g *LongGauge) Inc(delta int64) { g.v.Add(delta) }

// Get returns the gauge value.
func (g *LongGauge) Get() int64 { return g.v.Load() }
