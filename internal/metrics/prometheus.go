package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// PrometheusSource adapts a prometheus.Gatherer to the registry's Source
// interface so Prometheus-instrumented subsystems show up in diagnostics
// output without double bookkeeping.
type PrometheusSource struct {
	gatherer prometheus.Gatherer
}

// NewPrometheusSource wraps a gatherer. Pass prometheus.DefaultGatherer to
// expose the process-default registry.
func NewPrometheusSource(g prometheus.Gatherer) *PrometheusSource {
	return &PrometheusSource{gatherer: g}
}

// CollectInto gathers all metric families and flattens every sample into a
// collector callback. Gather failures surface as a single exception-shaped
// metric rather than aborting collection.
func (s *PrometheusSource) CollectInto(c Collector) {
	families, err := s.gatherer.Gather()
	if err != nil {
		c.CollectException("prometheus.gather", err)
	}

	for _, family := range families {
		for _, m := range family.GetMetric() {
			name := flattenName(family.GetName(), m.GetLabel())
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				c.CollectDouble(name, m.GetCounter().GetValue())
			case dto.MetricType_GAUGE:
				c.CollectDouble(name, m.GetGauge().GetValue())
			case dto.MetricType_UNTYPED:
				c.CollectDouble(name, m.GetUntyped().GetValue())
			case dto.MetricType_SUMMARY:
				sum := m.GetSummary()
				c.CollectLong(name+".count", int64(sum.GetSampleCount()))
				c.CollectDouble(name+".sum", sum.GetSampleSum())
			case dto.MetricType_HISTOGRAM:
				hist := m.GetHistogram()
				c.CollectLong(name+".count", int64(hist.GetSampleCount()))
				c.CollectDouble(name+".sum", hist.GetSampleSum())
			default:
				c.CollectNoValue(name)
			}
		}
	}
}

func flattenName(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	pairs := make([]string, 0, len(labels))
	for _, lp := range labels {
		pairs = append(pairs, fmt.Sprintf("%s=%s", lp.GetName(), lp.GetValue()))
	}
	sort.Strings(pairs)
	return name + "[" + strings.Join(pairs, ",") + "]"
}
