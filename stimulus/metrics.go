package stimulus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	placementCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "placement_count_total",
		Help: "The total number of completed triangle layouts.",
	})

	placementExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "placement_exhausted_total",
		Help: "The total number of layouts that ran out of attempts.",
	})

	placementShapesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "placement_shapes_total",
		Help: "The total number of placed shapes.",
	})

	placementRetries = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "placement_retries",
		Help:    "The number of retry attempts consumed per layout.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500},
	})
)

func instrumentPlacement(shapes, attempts int) {
	placementCountTotal.Inc()
	placementShapesTotal.Add(float64(shapes))
	placementRetries.Observe(float64(attempts))
}

func instrumentPlacementExhausted() {
	placementExhaustedTotal.Inc()
}
