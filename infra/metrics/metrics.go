package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matchbook",
		Name:      "commands_processed_total",
		Help:      "Commands consumed by the engine, by kind.",
	}, []string{"kind"})

	CommandsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matchbook",
		Name:      "commands_rejected_total",
		Help:      "Commands dropped by the engine, by reason.",
	}, []string{"reason"})

	Trades = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matchbook",
		Name:      "trades_total",
		Help:      "Executed trades per symbol.",
	}, []string{"symbol"})

	TradedQuantity = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matchbook",
		Name:      "traded_quantity_total",
		Help:      "Executed quantity per symbol.",
	}, []string{"symbol"})

	RestingOrders = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "matchbook",
		Name:      "resting_orders",
		Help:      "Orders currently resting in the book.",
	}, []string{"symbol"})

	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "matchbook",
		Name:      "match_latency_seconds",
		Help:      "Time spent processing one new-order command.",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
	})

	InboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matchbook",
		Name:      "inbound_messages_total",
		Help:      "Raw inbound messages by outcome.",
	}, []string{"outcome"})

	EventsAudited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matchbook",
		Name:      "events_audited_total",
		Help:      "Events written by the auditor, by kind.",
	}, []string{"kind"})

	SnapshotsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "matchbook",
		Name:      "market_data_snapshots_total",
		Help:      "Book snapshots rendered by the market-data gateway.",
	})

	OutboxRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matchbook",
		Name:      "outbox_relayed_total",
		Help:      "Outbox records handed to Kafka, by result.",
	}, []string{"result"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "matchbook",
		Name:      "queue_depth",
		Help:      "Items waiting in a pipeline queue.",
	}, []string{"queue"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matchbook",
		Name:      "events_dropped_total",
		Help:      "Events the bus could not route, by reason.",
	}, []string{"reason"})
)
