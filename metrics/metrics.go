/***********************************************************************************************************************
 *
 *   MIT License
 *
 *   Copyright (c) 2025 Nicolas JUHEL
 *
 *   Permission is hereby granted, free of charge, to any person obtaining a copy
 *   of this software and associated documentation files (the "Software"), to deal
 *   in the Software without restriction, including without limitation the rights
 *   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *   copies of the Software, and to permit persons to whom the Software is
 *   furnished to do so, subject to the following conditions:
 *
 *   The above copyright notice and this permission notice shall be included in all
 *   copies or substantial portions of the Software.
 *
 *   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *   SOFTWARE.
 *
 *
 **********************************************************************************************************************/

// Package metrics provides read-only Prometheus instrumentation for
// the control engine and runtime manager: job counters by Kind, the
// current BootstrapPct, and listener up/down gauges. None of it is
// load-bearing for correctness (spec §4.5).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nabbar/torctl/runtime/state"
	"github.com/nabbar/torctl/torerr"
)

// Collector bundles the metrics this module publishes and registers
// them on construction.
type Collector struct {
	JobsDispatched *prometheus.CounterVec
	JobsFailed     *prometheus.CounterVec
	Bootstrap      prometheus.Gauge
	ListenerUp     *prometheus.GaugeVec
}

// New creates and registers a Collector on reg. Passing a fresh
// prometheus.NewRegistry() keeps this module's series isolated from
// the default global registry.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		JobsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "torctl",
			Name:      "jobs_dispatched_total",
			Help:      "Jobs dispatched, by verb.",
		}, []string{"verb"}),
		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "torctl",
			Name:      "jobs_failed_total",
			Help:      "Jobs failed, by error kind.",
		}, []string{"kind"}),
		Bootstrap: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "torctl",
			Name:      "bootstrap_percent",
			Help:      "Current tor bootstrap percentage, 0 when Off.",
		}),
		ListenerUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "torctl",
			Name:      "listener_up",
			Help:      "1 if the listener type currently has an address, else 0.",
		}, []string{"type"}),
	}

	reg.MustRegister(c.JobsDispatched, c.JobsFailed, c.Bootstrap, c.ListenerUp)
	return c
}

// ObserveJobDispatched increments the dispatched counter for verb.
func (c *Collector) ObserveJobDispatched(verb string) {
	c.JobsDispatched.WithLabelValues(verb).Inc()
}

// ObserveJobFailed increments the failed counter for err's Kind.
func (c *Collector) ObserveJobFailed(err error) {
	kind, ok := torerr.KindOf(err)
	if !ok {
		kind = torerr.Internal
	}
	c.JobsFailed.WithLabelValues(kind.String()).Inc()
}

// ObserveState updates Bootstrap and every ListenerUp series from snap.
func (c *Collector) ObserveState(snap state.Snapshot) {
	c.Bootstrap.Set(float64(snap.Bootstrap))

	for _, typ := range []state.ListenerType{
		state.ListenerSocks, state.ListenerControl, state.ListenerDNS,
		state.ListenerHTTPTunnel, state.ListenerTransparent,
	} {
		up := 0.0
		if _, ok := snap.Addresses[typ]; ok {
			up = 1.0
		}
		c.ListenerUp.WithLabelValues(string(typ)).Set(up)
	}
}
