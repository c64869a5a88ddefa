package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerEntriesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "ledger_entries_total",
			Help:      "Total committed ledger entries.",
		},
		[]string{"entry_type"},
	)

	paymentIntentsCreatedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "payment_intents_created_total",
			Help:      "Total payment intents created.",
		},
		[]string{"gateway", "status"}, // status: "created", "gateway_error", "db_error"
	)

	paymentSettlementsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "payment_settlements_total",
			Help:      "Settlement attempts by trigger and outcome.",
		},
		[]string{"source", "outcome"}, // source: "client_verify", "webhook"; outcome: "applied", "already_processed", "error"
	)

	webhookEventsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "webhook_events_total",
			Help:      "Gateway webhook deliveries by event and result.",
		},
		[]string{"event", "result"},
	)

	gatewayRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wallet",
			Name:      "gateway_request_duration_seconds",
			Help:      "Duration of payment gateway API calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"gateway", "operation"},
	)
)
