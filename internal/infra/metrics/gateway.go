package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		gatewayCallsTotal,
		rateLimitRejectedTotal,
		breakerState,
	)
}

var gatewayCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "courier_gateway_calls_total",
		Help: "Guarded gateway call attempts by outcome.",
	},
	[]string{"gateway", "outcome"}, // outcome: 'ok', 'error', 'breaker_open'
)

var rateLimitRejectedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "courier_rate_limit_rejected_total",
		Help: "Admissions rejected by the gateway token bucket.",
	},
	[]string{"gateway"},
)

var breakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "courier_breaker_state",
		Help: "Circuit breaker state per gateway (0=closed, 1=half_open, 2=open).",
	},
	[]string{"gateway"},
)

func IncGatewayCall(gateway, outcome string) {
	gatewayCallsTotal.WithLabelValues(norm(gateway), norm(outcome)).Inc()
}

func IncRateLimitRejected(gateway string) {
	rateLimitRejectedTotal.WithLabelValues(norm(gateway)).Inc()
}

func SetBreakerState(gateway, state string) {
	var v float64
	switch norm(state) {
	case "half_open":
		v = 1
	case "open":
		v = 2
	}
	breakerState.WithLabelValues(norm(gateway)).Set(v)
}
