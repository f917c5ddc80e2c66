// Package metrics defines and registers all custom Prometheus metrics for the
// SkillSwap client. It is the single source of truth for metric names, labels,
// and help strings. Metrics register with the default registry at init time
// via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "skillswap"

// RequestsTotal counts API calls issued through the gateway.
// Labels:
//   - method: HTTP method
//   - status: resulting HTTP status code, or "error" when no response arrived
var RequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Total number of API requests issued, by method and status.",
	},
	[]string{"method", "status"},
)

// RequestDuration measures gateway request latency end-to-end, including the
// single refresh-and-retry when it happens.
var RequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Duration of API requests from dispatch to final response.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method"},
)

// RefreshTotal counts credential refresh attempts that actually hit the
// network. Single-flight waiters sharing an in-flight attempt are not counted.
// Label:
//   - result: "success" or "failure"
var RefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credential_refresh_total",
		Help:      "Total number of credential refresh network calls, by result.",
	},
	[]string{"result"},
)

// TransitionsTotal counts committed deal status transitions.
// Labels:
//   - from: prior status ("" for deal creation)
//   - to: new status
var TransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deal_transitions_total",
		Help:      "Total number of committed deal status transitions.",
	},
	[]string{"from", "to"},
)

// TransitionsRejectedTotal counts transitions refused before any network
// call.
// Label:
//   - reason: "illegal_transition", "forbidden", or "conflict"
var TransitionsRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deal_transitions_rejected_total",
		Help:      "Total number of deal transitions rejected locally.",
	},
	[]string{"reason"},
)
