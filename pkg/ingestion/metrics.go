// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsUpload holds Prometheus metrics for the upload pipeline.
type metricsUpload struct {
	once sync.Once

	// Uploads by entity and terminal status
	uploads *prometheus.CounterVec

	// Rows by entity and outcome
	outcomes *prometheus.CounterVec

	// Batches
	batches prometheus.Counter

	// Store calls
	writeChunks     prometheus.Counter
	writeChunkErrs  prometheus.Counter
	opFailures      prometheus.Counter
	lookupFailures  prometheus.Counter
	reporterDropped prometheus.Counter

	// Durations
	lookupDuration prometheus.Histogram
	writeDuration  prometheus.Histogram
	batchDuration  prometheus.Histogram
	totalDuration  prometheus.Histogram
}

var upMetrics metricsUpload

func (m *metricsUpload) init() {
	m.once.Do(func() {
		m.uploads = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bulkload_uploads_total", Help: "Uploads finished, by entity and terminal status"}, []string{"entity", "status"})
		m.outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bulkload_records_total", Help: "Rows processed, by entity and outcome"}, []string{"entity", "outcome"})

		m.batches = prometheus.NewCounter(prometheus.CounterOpts{Name: "bulkload_batches_total", Help: "Batches completed"})

		m.writeChunks = prometheus.NewCounter(prometheus.CounterOpts{Name: "bulkload_write_chunks_total", Help: "Bulk write calls issued to the store"})
		m.writeChunkErrs = prometheus.NewCounter(prometheus.CounterOpts{Name: "bulkload_write_chunk_errors_total", Help: "Bulk write calls that failed as a whole"})
		m.opFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "bulkload_write_op_failures_total", Help: "Write ops that did not commit"})
		m.lookupFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "bulkload_lookup_failures_total", Help: "Existence lookups that failed"})
		m.reporterDropped = prometheus.NewCounter(prometheus.CounterOpts{Name: "bulkload_reporter_dropped_total", Help: "Uploads whose progress consumer went away"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
		m.lookupDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "bulkload_lookup_seconds", Help: "Duration of batch existence lookups", Buckets: buckets})
		m.writeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "bulkload_write_seconds", Help: "Duration of bulk write calls", Buckets: buckets})
		m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "bulkload_batch_seconds", Help: "Duration of a batch's lookup and writes", Buckets: buckets})
		m.totalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "bulkload_upload_seconds", Help: "Duration of an upload", Buckets: buckets})

		prometheus.MustRegister(
			m.uploads, m.outcomes,
			m.batches,
			m.writeChunks, m.writeChunkErrs, m.opFailures, m.lookupFailures, m.reporterDropped,
			m.lookupDuration, m.writeDuration, m.batchDuration, m.totalDuration,
		)
	})
}

// record helpers - used by the pipeline for metrics tracking
func recordWriteChunk(d time.Duration, err error) {
	upMetrics.init()
	upMetrics.writeChunks.Inc()
	upMetrics.writeDuration.Observe(d.Seconds())
	if err != nil {
		upMetrics.writeChunkErrs.Inc()
	}
}

func recordOpFailures(n int) { upMetrics.init(); upMetrics.opFailures.Add(float64(n)) }

func recordLookup(d time.Duration, err error) {
	upMetrics.init()
	upMetrics.lookupDuration.Observe(d.Seconds())
	if err != nil {
		upMetrics.lookupFailures.Inc()
	}
}

func recordBatch(d time.Duration) {
	upMetrics.init()
	upMetrics.batches.Inc()
	upMetrics.batchDuration.Observe(d.Seconds())
}

func recordReporterDropped() { upMetrics.init(); upMetrics.reporterDropped.Inc() }

func recordUpload(entity string, status Status, s Summary, d time.Duration) {
	upMetrics.init()
	upMetrics.uploads.WithLabelValues(entity, string(status)).Inc()
	upMetrics.outcomes.WithLabelValues(entity, string(OutcomeCreated)).Add(float64(s.Created))
	upMetrics.outcomes.WithLabelValues(entity, string(OutcomeUpdated)).Add(float64(s.Updated))
	upMetrics.outcomes.WithLabelValues(entity, string(OutcomeFailed)).Add(float64(s.Failed))
	upMetrics.outcomes.WithLabelValues(entity, string(OutcomeSkipped)).Add(float64(s.SkippedTotal))
	upMetrics.totalDuration.Observe(d.Seconds())
}
