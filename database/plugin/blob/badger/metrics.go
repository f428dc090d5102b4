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

package badger

import (
	badger "github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const badgerMetricNamePrefix = "database_blob_"

const (
	opGet    = "get"
	opSet    = "set"
	opDelete = "delete"
)

type blobMetrics struct {
	opsTotal   *prometheus.CounterVec
	bytesTotal *prometheus.CounterVec
}

// newBlobMetrics registers the blob store metrics. A nil registry leaves the
// collectors unregistered but still usable
func newBlobMetrics(registry prometheus.Registerer, db *badger.DB) *blobMetrics {
	factory := promauto.With(registry)
	m := &blobMetrics{
		opsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: badgerMetricNamePrefix + "ops_total",
				Help: "Total number of badger blob operations",
			},
			[]string{"op"},
		),
		bytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: badgerMetricNamePrefix + "bytes_total",
				Help: "Total bytes read/written for badger blob operations",
			},
			[]string{"op"},
		),
	}
	if registry != nil && db != nil {
		factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: badgerMetricNamePrefix + "lsm_size_bytes",
				Help: "Size of the badger LSM tree",
			},
			func() float64 {
				lsm, _ := db.Size()
				return float64(lsm)
			},
		)
		factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: badgerMetricNamePrefix + "vlog_size_bytes",
				Help: "Size of the badger value log",
			},
			func() float64 {
				_, vlog := db.Size()
				return float64(vlog)
			},
		)
	}
	return m
}

func (m *blobMetrics) observe(op string, size int) {
	if m == nil {
		return
	}
	m.opsTotal.WithLabelValues(op).Inc()
	if size > 0 {
		m.bytesTotal.WithLabelValues(op).Add(float64(size))
	}
}
