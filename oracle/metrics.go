// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package oracle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const oracleMetricNamePrefix = "oracle_"

type coordinatorMetrics struct {
	requestsTotal         prometheus.Counter
	fulfillmentsTotal     prometheus.Counter
	deliveryFailuresTotal prometheus.Counter
	pendingRequests       prometheus.Gauge
}

func (c *Coordinator) initMetrics() {
	promautoFactory := promauto.With(c.promRegistry)
	c.metrics.requestsTotal = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: oracleMetricNamePrefix + "requests_total",
			Help: "total randomness requests accepted",
		},
	)
	c.metrics.fulfillmentsTotal = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: oracleMetricNamePrefix + "fulfillments_total",
			Help: "total randomness requests delivered and charged",
		},
	)
	c.metrics.deliveryFailuresTotal = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: oracleMetricNamePrefix + "delivery_failures_total",
			Help: "total deliveries rejected by the consumer",
		},
	)
	c.metrics.pendingRequests = promautoFactory.NewGauge(
		prometheus.GaugeOpts{
			Name: oracleMetricNamePrefix + "pending_requests",
			Help: "current number of outstanding randomness requests",
		},
	)
}
