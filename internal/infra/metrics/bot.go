package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(botCommandsTotal)
}

var botCommandsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "courier_bot_commands_total",
		Help: "Bot commands by handling outcome.",
	},
	[]string{"command", "outcome"}, // outcome: 'ok'|'error'|'rate_limited'|'unauthorized'
)

func IncBotCommand(command, outcome string) {
	botCommandsTotal.WithLabelValues(norm(command), norm(outcome)).Inc()
}
