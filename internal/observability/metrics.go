package observability

import (
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "xwire"

// CodecMetrics counts encode and decode calls per definition. A nil
// *CodecMetrics records nothing.
type CodecMetrics struct {
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	plans    prometheus.Gauge
}

// NewCodecMetrics builds the codec collectors and registers them on reg.
func NewCodecMetrics(reg prometheus.Registerer) (*CodecMetrics, error) {
	m := &CodecMetrics{
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "codec",
				Name:      "messages_total",
				Help:      "Messages encoded or decoded.",
			},
			[]string{"op", "definition", "result"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "codec",
				Name:      "bytes_total",
				Help:      "Bytes produced by encoding or consumed by decoding.",
			},
			[]string{"op", "definition"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "codec",
				Name:      "duration_seconds",
				Help:      "Encode and decode duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10),
			},
			[]string{"op"},
		),
		plans: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "schema",
				Name:      "plans",
				Help:      "Compiled layout plans in the active catalog.",
			},
		),
	}
	for _, c := range []prometheus.Collector{m.messages, m.bytes, m.duration, m.plans} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *CodecMetrics) Observe(op, definition string, n int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.messages.WithLabelValues(op, definition, result).Inc()
	if err == nil && n > 0 {
		m.bytes.WithLabelValues(op, definition).Add(float64(n))
	}
	m.duration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *CodecMetrics) SetPlans(n int) {
	if m == nil {
		return
	}
	m.plans.Set(float64(n))
}

// Sample is one counter or gauge value flattened out of a registry.
type Sample struct {
	Name   string
	Labels string
	Value  float64
}

// Gather flattens the counters and gauges of g, sorted by name and labels.
// Histograms are skipped.
func Gather(g prometheus.Gatherer) ([]Sample, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	var out []Sample
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			pairs := make([]string, 0, len(metric.GetLabel()))
			for _, lp := range metric.GetLabel() {
				pairs = append(pairs, lp.GetName()+"="+lp.GetValue())
			}
			s := Sample{Name: mf.GetName(), Labels: strings.Join(pairs, ",")}
			switch {
			case metric.GetCounter() != nil:
				s.Value = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				s.Value = metric.GetGauge().GetValue()
			default:
				continue
			}
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Labels < out[j].Labels
	})
	return out, nil
}
