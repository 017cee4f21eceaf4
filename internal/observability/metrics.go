// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mdip/authd/internal/auth"
)

// Metrics counts authentication outcomes. It implements auth.Observer.
type Metrics struct {
	RegisterTotal *prometheus.CounterVec
	LoginTotal    *prometheus.CounterVec
	LockoutsTotal prometheus.Counter
}

var _ auth.Observer = (*Metrics)(nil)

// NewMetrics creates and registers the authd metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RegisterTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authd_register_total",
				Help: "Total number of registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		LoginTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authd_login_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		LockoutsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authd_lockouts_total",
				Help: "Total number of accounts locked after repeated failures",
			},
		),
	}

	reg.MustRegister(m.RegisterTotal, m.LoginTotal, m.LockoutsTotal)
	return m
}

// ObserveRegister implements auth.Observer.
func (m *Metrics) ObserveRegister(outcome string) {
	m.RegisterTotal.WithLabelValues(outcome).Inc()
}

// ObserveLogin implements auth.Observer.
func (m *Metrics) ObserveLogin(outcome string) {
	m.LoginTotal.WithLabelValues(outcome).Inc()
}

// ObserveLockout implements auth.Observer.
func (m *Metrics) ObserveLockout() {
	m.LockoutsTotal.Inc()
}
