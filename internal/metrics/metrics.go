// Package metrics exposes credential flow outcomes as Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/redmonkez12/credentials-api/internal/auth"
)

// Metrics implements auth.Recorder
type Metrics struct {
	registrations *prometheus.CounterVec
	logins        *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

var _ auth.Recorder = (*Metrics)(nil)

// New creates the counters and registers them with reg.
// Panics if registration fails (following prometheus convention).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credentials_registrations_total",
				Help: "Total number of registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credentials_logins_total",
				Help: "Total number of authentication attempts by role and outcome",
			},
			[]string{"role", "outcome"},
		),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credentials_resolutions_total",
				Help: "Total number of identity resolutions by role and outcome",
			},
			[]string{"role", "outcome"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credentials_notifications_total",
				Help: "Total number of welcome emails by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(m.registrations, m.logins, m.resolutions, m.notifications)
	return m
}

func (m *Metrics) Registration(outcome string) {
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Login(role auth.Role, outcome string) {
	m.logins.WithLabelValues(string(role), outcome).Inc()
}

func (m *Metrics) Resolution(role auth.Role, outcome string) {
	m.resolutions.WithLabelValues(string(role), outcome).Inc()
}

func (m *Metrics) Notification(outcome string) {
	m.notifications.WithLabelValues(outcome).Inc()
}
