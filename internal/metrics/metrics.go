// Package metrics provides Prometheus metrics for the signaling relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pit_signaling"

// ─── Sessions ───────────────────────────────────────────────────────────────

// PeersConnected tracks registered peers.
var PeersConnected = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "peers_connected",
	Help:      "Number of currently connected peers.",
})

// PitsActive tracks pits in the store, including ones nobody has joined yet.
var PitsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "pits_active",
	Help:      "Number of existing pits.",
})

// PitMembers tracks peers that are currently in a pit.
var PitMembers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "pit_members",
	Help:      "Number of peers currently in a pit.",
})

// RequestErrors counts rejected requests by operation and error code.
var RequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "request_errors_total",
	Help:      "Rejected session and relay requests.",
}, []string{"op", "code"})

// ─── Relay ──────────────────────────────────────────────────────────────────

// SignalsRelayed counts forwarded offers, answers and ICE candidates.
var SignalsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "signals_relayed_total",
	Help:      "Signaling messages forwarded between peers.",
}, []string{"kind"})

// ─── Transport ──────────────────────────────────────────────────────────────

// WebsocketConnections counts accepted websocket upgrades.
var WebsocketConnections = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "websocket_connections_total",
	Help:      "Accepted signaling websocket connections.",
})

// MessagesDropped counts outbound messages that could not be queued.
var MessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "messages_dropped_total",
	Help:      "Outbound messages dropped before reaching a peer.",
}, []string{"reason"})

// ─── Directory ──────────────────────────────────────────────────────────────

// DirectoryOps counts redis directory writes by result.
var DirectoryOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "directory_ops_total",
	Help:      "Pit directory mirror operations by result.",
}, []string{"result"})
