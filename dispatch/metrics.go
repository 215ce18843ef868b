//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package dispatch

import (
	"time"

	"github.com/markkurossi/conclave/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Job status labels.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Metrics hold the dispatcher metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Jobs           *prometheus.CounterVec
	RendezvousWait *prometheus.HistogramVec
	HandoffWait    *prometheus.HistogramVec
}

// NewMetrics creates the dispatcher metrics and registers them to
// reg. The metrics are not registered if reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "conclave",
				Subsystem: "dispatch",
				Name:      "jobs_total",
				Help:      "number of dispatched jobs by status",
			}, []string{"party", "status"}),
		RendezvousWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "conclave",
				Subsystem: "dispatch",
				Name:      "rendezvous_wait_seconds",
				Help:      "time spent waiting for rendezvous peers",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			}, []string{"party"}),
		HandoffWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "conclave",
				Subsystem: "dispatch",
				Name:      "handoff_wait_seconds",
				Help:      "time spent waiting for other parties' job outputs",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			}, []string{"party"}),
	}
	if reg != nil {
		reg.MustRegister(m.Jobs, m.RendezvousWait, m.HandoffWait)
	}
	return m
}

func (m *Metrics) job(party types.PartyID, status string) {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(party.String(), status).Inc()
}

func (m *Metrics) rendezvous(party types.PartyID, d time.Duration) {
	if m == nil {
		return
	}
	m.RendezvousWait.WithLabelValues(party.String()).Observe(d.Seconds())
}

func (m *Metrics) handoff(party types.PartyID, d time.Duration) {
	if m == nil {
		return
	}
	m.HandoffWait.WithLabelValues(party.String()).Observe(d.Seconds())
}
