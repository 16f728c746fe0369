package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	relayOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_outcomes_total",
		Help: "Relay requests by outcome status.",
	}, []string{"status"})

	relayConfirmSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_confirm_seconds",
		Help:    "Time from submission to a known confirmation result.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
	})

	escrowTopUps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_topups_total",
		Help: "Escrow top-ups by result.",
	}, []string{"result"})

	priceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "price_fetch_total",
		Help: "Price source requests by result.",
	}, []string{"result"})
)

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
