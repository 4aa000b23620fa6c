// Package metrics exposes the service's Prometheus collectors.
//
// Everything is registered on the default registry via promauto and served
// by the api package at /metrics. Labels stay low-cardinality: outcomes
// and sources, never user ids.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Spends counts SpendOne outcomes by funding source and result.
	// source: balance | free_allotment | none (denied)
	// outcome: allowed | daily_cap | monthly_cap
	Spends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ink",
		Name:      "spends_total",
		Help:      "One-unit spend attempts by funding source and outcome.",
	}, []string{"source", "outcome"})

	// Transfers counts transfer outcomes (ok | insufficient_balance).
	Transfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ink",
		Name:      "transfers_total",
		Help:      "User-to-user transfer attempts by outcome.",
	}, []string{"outcome"})

	// Boosts counts boost purchases by outcome (ok | insufficient_balance).
	Boosts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ink",
		Name:      "boosts_total",
		Help:      "Boost purchase attempts by outcome.",
	}, []string{"outcome"})

	// Credits counts external money-in events by kind.
	Credits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ink",
		Name:      "credits_total",
		Help:      "External credit events by kind.",
	}, []string{"kind"})

	// StorageFaults counts operations that failed at the storage layer.
	StorageFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ink",
		Name:      "storage_faults_total",
		Help:      "Ledger operations aborted by a storage fault.",
	}, []string{"op"})

	// RequestDuration observes HTTP handler latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ink",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status class.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)
