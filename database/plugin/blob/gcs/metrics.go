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

package gcs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const gcsMetricNamePrefix = "database_blob_"

const (
	opGet    = "get"
	opSet    = "set"
	opDelete = "delete"
)

type blobMetrics struct {
	opsTotal   *prometheus.CounterVec
	bytesTotal *prometheus.CounterVec
}

func newBlobMetrics(registry prometheus.Registerer) *blobMetrics {
	factory := promauto.With(registry)
	return &blobMetrics{
		opsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: gcsMetricNamePrefix + "ops_total",
				Help: "Total number of GCS blob operations",
			},
			[]string{"op"},
		),
		bytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: gcsMetricNamePrefix + "bytes_total",
				Help: "Total bytes read/written for GCS blob operations",
			},
			[]string{"op"},
		),
	}
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
