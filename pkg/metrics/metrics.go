// Package metrics exposes the counters of the detection loop to
// Prometheus.
package metrics

import (
	"github.com/activecm/flowsentry/pkg/detector"
	"github.com/activecm/flowsentry/pkg/report"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowsentry"

// Metrics owns a registry holding every flowsentry collector
type Metrics struct {
	Registry *prometheus.Registry

	flowsRead prometheus.Counter
	flows     *prometheus.CounterVec
	reports   *prometheus.CounterVec
	tracked   *prometheus.GaugeVec
	reloads   *prometheus.CounterVec
}

// New creates the collectors and registers them
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		flowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_read_total",
			Help:      "Flow records read from the input.",
		}),
		flows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_total",
			Help:      "Flow records handled by each detector, by outcome.",
		}, []string{"detector", "outcome"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Reports emitted, by detector and class.",
		}, []string{"detector", "class"}),
		tracked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_hosts",
			Help:      "Hosts currently tracked by each detector.",
		}, []string{"detector"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Reloads of configuration and lists, by result.",
		}, []string{"resource", "result"}),
	}
	m.Registry.MustRegister(m.flowsRead, m.flows, m.reports, m.tracked, m.reloads)
	return m
}

// FlowRead counts one record read from the input
func (m *Metrics) FlowRead() {
	m.flowsRead.Inc()
}

// ObserveFlow counts what a detector did with one flow
func (m *Metrics) ObserveFlow(name string, o detector.Outcome) {
	m.flows.WithLabelValues(name, o.String()).Inc()
}

// SetTracked records the number of hosts a detector tracks
func (m *Metrics) SetTracked(name string, n int) {
	m.tracked.WithLabelValues(name).Set(float64(n))
}

// Reloaded counts one reload attempt of resource
func (m *Metrics) Reloaded(resource string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reloads.WithLabelValues(resource, result).Inc()
}

// Sender wraps next so that every report passing through is counted
func (m *Metrics) Sender(next report.Sender) report.Sender {
	return &countingSender{next: next, reports: m.reports}
}

type countingSender struct {
	next    report.Sender
	reports *prometheus.CounterVec
}

func (s *countingSender) Send(r *report.Report) error {
	s.reports.WithLabelValues(r.Detector, r.Class).Inc()
	return s.next.Send(r)
}
