package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/livekit/protocol/livekit"
)

var (
	qualityRating *prometheus.HistogramVec
	qualityDrop   prometheus.Counter
)

func initQualityStats(identity string) {
	qualityRating = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   livekitNamespace,
		Subsystem:   subsystemPrefix + "quality",
		Name:        "rating",
		ConstLabels: prometheus.Labels{"identity": identity},
		Buckets:     []float64{0, 1, 2},
	}, []string{"participant"})
	qualityDrop = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   livekitNamespace,
		Subsystem:   subsystemPrefix + "quality",
		Name:        "drop",
		ConstLabels: prometheus.Labels{"identity": identity},
	})

	prometheus.MustRegister(qualityRating)
	prometheus.MustRegister(qualityDrop)
}

// RecordQuality observes a participant's connection quality, counting a drop
// when it got worse than prev.
func RecordQuality(participant livekit.ParticipantIdentity, prev, rating livekit.ConnectionQuality) {
	if !enabled() {
		return
	}
	qualityRating.WithLabelValues(string(participant)).Observe(float64(rating))
	if rating < prev {
		qualityDrop.Inc()
	}
}
