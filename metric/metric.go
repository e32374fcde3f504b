/*
 * Copyright 2018 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metric exports ledger node metrics to prometheus.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ledgercore"

// Command outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
)

// LedgerMetrics counts block processing outcomes.
type LedgerMetrics struct {
	BlocksApplied prometheus.Counter
	BlocksFailed  prometheus.Counter
	Commands      *prometheus.CounterVec
}

// NewLedgerMetrics creates the ledger counters and registers them with reg when reg is
// not nil.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	m := &LedgerMetrics{
		BlocksApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "blocks_applied_total",
			Help:      "Blocks stored and committed to the world state.",
		}),
		BlocksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "blocks_failed_total",
			Help:      "Blocks rolled back before commit.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "commands_total",
			Help:      "Commands processed, by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.BlocksApplied, m.BlocksFailed, m.Commands)
	}
	return m
}

// storeMetrics provide description, value, and value type for block store metrics.
type storeMetrics []struct {
	desc    *prometheus.Desc
	eval    func() float64
	valType prometheus.ValueType
}

// StoreCollector reports the state of a block store on every scrape.
type StoreCollector struct {
	metrics storeMetrics
}

// NewStoreCollector returns a collector publishing lastID as the store height.
func NewStoreCollector(kind string, lastID func() uint64) prometheus.Collector {
	return &StoreCollector{
		metrics: storeMetrics{
			{
				desc: prometheus.NewDesc(
					prometheus.BuildFQName(namespace, "blockstore", "last_id"),
					"Id of the last stored block.",
					nil,
					prometheus.Labels{"kind": kind},
				),
				eval:    func() float64 { return float64(lastID()) },
				valType: prometheus.GaugeValue,
			},
		},
	}
}

// Describe returns all descriptions of the collector.
func (sc *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, i := range sc.metrics {
		ch <- i.desc
	}
}

// Collect returns the current state of all metrics of the collector.
func (sc *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	for _, i := range sc.metrics {
		ch <- prometheus.MustNewConstMetric(i.desc, i.valType, i.eval())
	}
}
