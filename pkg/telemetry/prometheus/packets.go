package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

var (
	bytesIn    atomic.Uint64
	bytesOut   atomic.Uint64
	packetsIn  atomic.Uint64
	packetsOut atomic.Uint64

	promPacketLabels = []string{"direction", "kind"}

	promPacketTotal *prometheus.CounterVec
	promPacketBytes *prometheus.CounterVec
)

func initPacketStats(identity string) {
	promPacketTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   livekitNamespace,
		Subsystem:   subsystemPrefix + "packet",
		Name:        "total",
		ConstLabels: prometheus.Labels{"identity": identity},
	}, promPacketLabels)
	promPacketBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   livekitNamespace,
		Subsystem:   subsystemPrefix + "packet",
		Name:        "bytes",
		ConstLabels: prometheus.Labels{"identity": identity},
	}, promPacketLabels)

	prometheus.MustRegister(promPacketTotal)
	prometheus.MustRegister(promPacketBytes)
}

// IncrementPackets records count packets totalling size bytes for a track kind.
func IncrementPackets(direction Direction, kind string, count uint64, size uint64) {
	if direction == Incoming {
		packetsIn.Add(count)
		bytesIn.Add(size)
	} else {
		packetsOut.Add(count)
		bytesOut.Add(size)
	}
	if enabled() {
		promPacketTotal.WithLabelValues(string(direction), kind).Add(float64(count))
		promPacketBytes.WithLabelValues(string(direction), kind).Add(float64(size))
	}
}
