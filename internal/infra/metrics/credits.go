package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(creditMovementsTotal, creditMovedMicros) }

var creditMovementsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credit_movements_total",
		Help: "Count of credit balance mutations, labeled by kind.",
	},
	[]string{"kind"}, // 'debit', 'refund', 'admin_adjust'
)

var creditMovedMicros = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credit_moved_micros",
		Help: "Sum of absolute micro-credits moved per kind.",
	},
	[]string{"kind"},
)

func IncCreditMovement(kind string, micros int64) {
	if micros < 0 {
		micros = -micros
	}
	creditMovementsTotal.WithLabelValues(norm(kind)).Inc()
	creditMovedMicros.WithLabelValues(norm(kind)).Add(float64(micros))
}
