package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(sessionValidationsTotal, sessionsExpiredTotal)
}

var sessionValidationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "courier_session_validations_total",
		Help: "Credential validation attempts by result.",
	},
	[]string{"result"}, // 'active', 'rejected', 'error'
)

var sessionsExpiredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "courier_sessions_expired_total",
		Help: "Sessions transitioned to expired by the expiry worker.",
	},
)

func IncSessionValidation(result string) {
	sessionValidationsTotal.WithLabelValues(norm(result)).Inc()
}

func IncSessionsExpired(n int) {
	sessionsExpiredTotal.Add(float64(n))
}
