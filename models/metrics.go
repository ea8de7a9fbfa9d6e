package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	kenazSessionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "session_active",
		Help: "Whether the exclusive test session is held.",
	})

	kenazSessionCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_count_total",
		Help: "The total number of acquired test sessions.",
	})

	kenazSessionExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_expired_total",
		Help: "The total number of test sessions lost to a missed heartbeat.",
	})

	kenazUserCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "user_count_total",
		Help: "The total number of registered users.",
	})
)

func instrumentSessionGauge(v float64) {
	kenazSessionActive.Set(v)
}

func instrumentSessionAcquired() {
	kenazSessionCountTotal.Inc()
}

func instrumentSessionExpired() {
	kenazSessionExpiredTotal.Inc()
}

func instrumentUserRegistered() {
	kenazUserCountTotal.Inc()
}
