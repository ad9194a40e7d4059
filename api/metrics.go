package api

import "github.com/prometheus/client_golang/prometheus"

var (
	rentalsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rentals_started_total",
		Help: "Total number of rentals started",
	})

	rentalsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rentals_completed_total",
		Help: "Total number of rentals completed",
	})

	paymentsRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Total number of payments recorded, by mode",
	}, []string{"mode"})

	damageReportsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "damage_reports_total",
		Help: "Total number of damage reports filed",
	})
)

func registerKioskMetrics(reg *prometheus.Registry) {
	reg.MustRegister(rentalsStartedTotal, rentalsCompletedTotal, paymentsRecordedTotal, damageReportsTotal)
}
