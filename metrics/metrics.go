/*
 * Copyright 2017 Kopano and its licensors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License, version 3,
 * as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package metrics exposes the provider's Prometheus instrumentation (A3):
// enumeration cycle outcomes, the sticky online/offline gauge, and auth
// outcome counters, so an operator can alert on the same conditions
// logged by the enum and auth packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ssspd"

// Collectors holds every metric this provider registers. Components receive
// a *Collectors value through their optional Metrics fields.
type Collectors struct {
	EnumCyclesTotal    *prometheus.CounterVec
	EnumWatermark      *prometheus.GaugeVec
	OnlineState        prometheus.Gauge
	AuthRequestsTotal  *prometheus.CounterVec
	ConnectAttempts    *prometheus.CounterVec
}

// Default is the collector set most recently created by NewCollectors.
// Provider components do not read it; they use their Metrics fields.
var Default *Collectors

// NewCollectors registers every metric in reg and returns the collector
// set. Pass prometheus.DefaultRegisterer for the global registry.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)

	c := &Collectors{
		EnumCyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enum",
			Name:      "cycles_total",
			Help:      "Enumeration cycles by entity kind and outcome.",
		}, []string{"entity", "outcome"}),

		EnumWatermark: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "enum",
			Name:      "watermark_unixtime",
			Help:      "Most recent modstamp watermark observed per entity kind, as unix seconds.",
		}, []string{"entity"}),

		OnlineState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online",
			Help:      "1 if the provider context is online, 0 if it is within its sticky offline window.",
		}),

		AuthRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "requests_total",
			Help:      "PAM requests handled by command and resulting status.",
		}, []string{"command", "status"}),

		ConnectAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "connect_attempts_total",
			Help:      "Directory connect attempts by outcome.",
		}, []string{"outcome"}),
	}

	Default = c
	return c
}

// SetOnline records the current online/offline state, 9's alerting on a
// stuck offline gauge being the intended consumer.
func (c *Collectors) SetOnline(online bool) {
	if online {
		c.OnlineState.Set(1)
	} else {
		c.OnlineState.Set(0)
	}
}

// ObserveEnumCycle records the outcome of one enumeration cycle for entity
// ("users" or "groups").
func (c *Collectors) ObserveEnumCycle(entity, outcome string) {
	c.EnumCyclesTotal.WithLabelValues(entity, outcome).Inc()
}

// ObserveAuthRequest records the outcome of one PAM request.
func (c *Collectors) ObserveAuthRequest(command, status string) {
	c.AuthRequestsTotal.WithLabelValues(command, status).Inc()
}

// ObserveConnectAttempt records the outcome of one directory connect
// attempt ("ok", "throttled", "dial_failed", "tls_failed", "bind_failed").
func (c *Collectors) ObserveConnectAttempt(outcome string) {
	c.ConnectAttempts.WithLabelValues(outcome).Inc()
}
