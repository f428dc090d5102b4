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

package raffle

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const raffleMetricNamePrefix = "raffle_"

type raffleMetrics struct {
	entriesTotal        prometheus.Counter
	upkeepsTotal        prometheus.Counter
	drawsTotal          prometheus.Counter
	payoutFailuresTotal prometheus.Counter
	rejectionsTotal     *prometheus.CounterVec
	entrants            prometheus.Gauge
	balance             prometheus.Gauge
	phase               prometheus.Gauge
	round               prometheus.Gauge
}

func (r *Raffle) initMetrics() {
	promautoFactory := promauto.With(r.promRegistry)
	r.metrics.entriesTotal = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: raffleMetricNamePrefix + "entries_total",
			Help: "total raffle entries accepted",
		},
	)
	r.metrics.upkeepsTotal = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: raffleMetricNamePrefix + "upkeeps_total",
			Help: "total upkeeps performed",
		},
	)
	r.metrics.drawsTotal = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: raffleMetricNamePrefix + "draws_total",
			Help: "total winners picked and paid",
		},
	)
	r.metrics.payoutFailuresTotal = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: raffleMetricNamePrefix + "payout_failures_total",
			Help: "total failed prize transfers",
		},
	)
	r.metrics.rejectionsTotal = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: raffleMetricNamePrefix + "rejections_total",
			Help: "total rejected raffle operations by kind",
		},
		[]string{"op", "kind"},
	)
	r.metrics.entrants = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: raffleMetricNamePrefix + "entrants",
		Help: "current number of entrants",
	})
	r.metrics.balance = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: raffleMetricNamePrefix + "balance",
		Help: "current prize pool in the smallest currency unit",
	})
	r.metrics.phase = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: raffleMetricNamePrefix + "phase",
		Help: "current phase (0 = open, 1 = calculating)",
	})
	r.metrics.round = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: raffleMetricNamePrefix + "round",
		Help: "current round number",
	})
}

// updateGauges must be called with the state lock held
func (r *Raffle) updateGauges() {
	r.metrics.entrants.Set(float64(len(r.state.Entrants)))
	balance, _ := new(big.Float).SetInt(r.state.Balance).Float64()
	r.metrics.balance.Set(balance)
	r.metrics.phase.Set(float64(r.state.Phase()))
	r.metrics.round.Set(float64(r.state.Round))
}
