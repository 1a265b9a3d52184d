// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

var (
	connectAttempts    atomic.Uint64
	connectFailures    atomic.Uint64
	roomConnected      atomic.Bool
	participantCurrent atomic.Int32
	audioTrackCurrent  atomic.Int32
	visibleTileCurrent atomic.Int32

	promConnectCounter     *prometheus.CounterVec
	promConnectTime        prometheus.Histogram
	promRoomConnected      prometheus.Gauge
	promRoomDuration       prometheus.Histogram
	promParticipantCurrent prometheus.Gauge
	promAudioTrackCurrent  prometheus.Gauge
	promVisibleTileCurrent prometheus.Gauge
)

func initRoomStats(identity string) {
	labels := prometheus.Labels{"identity": identity}

	promConnectCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   livekitNamespace,
		Subsystem:   subsystemPrefix + "connect",
		Name:        "counter",
		ConstLabels: labels,
	}, []string{"state"})
	promConnectTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   livekitNamespace,
		Subsystem:   subsystemPrefix + "connect",
		Name:        "time_ms",
		ConstLabels: labels,
		Buckets:     prometheus.ExponentialBucketsRange(50, 30000, 12),
	})
	promRoomConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   livekitNamespace,
		Subsystem:   subsystemPrefix + "room",
		Name:        "connected",
		ConstLabels: labels,
	})
	promRoomDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   livekitNamespace,
		Subsystem:   subsystemPrefix + "room",
		Name:        "duration_seconds",
		ConstLabels: labels,
		Buckets: []float64{
			5, 10, 60, 5 * 60, 10 * 60, 30 * 60, 60 * 60, 2 * 60 * 60, 5 * 60 * 60,
		},
	})
	promParticipantCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   livekitNamespace,
		Subsystem:   subsystemPrefix + "participant",
		Name:        "total",
		ConstLabels: labels,
	})
	promAudioTrackCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   livekitNamespace,
		Subsystem:   subsystemPrefix + "audio_track",
		Name:        "total",
		ConstLabels: labels,
	})
	promVisibleTileCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   livekitNamespace,
		Subsystem:   subsystemPrefix + "grid",
		Name:        "visible_tiles",
		ConstLabels: labels,
	})

	prometheus.MustRegister(promConnectCounter)
	prometheus.MustRegister(promConnectTime)
	prometheus.MustRegister(promRoomConnected)
	prometheus.MustRegister(promRoomDuration)
	prometheus.MustRegister(promParticipantCurrent)
	prometheus.MustRegister(promAudioTrackCurrent)
	prometheus.MustRegister(promVisibleTileCurrent)
}

func RecordConnectAttempt() {
	connectAttempts.Inc()
	if enabled() {
		promConnectCounter.WithLabelValues("attempt").Inc()
	}
}

func RecordConnectSuccess(d time.Duration) {
	if enabled() {
		promConnectCounter.WithLabelValues("success").Inc()
		promConnectTime.Observe(float64(d.Milliseconds()))
	}
}

func RecordConnectFailure() {
	connectFailures.Inc()
	if enabled() {
		promConnectCounter.WithLabelValues("failure").Inc()
	}
}

func RoomConnected() {
	roomConnected.Store(true)
	if enabled() {
		promRoomConnected.Set(1)
	}
}

func RoomDisconnected(connectedAt time.Time) {
	if !roomConnected.Swap(false) {
		return
	}
	if enabled() {
		promRoomConnected.Set(0)
		if !connectedAt.IsZero() {
			promRoomDuration.Observe(float64(time.Since(connectedAt)) / float64(time.Second))
		}
	}
}

func SetParticipants(n int) {
	participantCurrent.Store(int32(n))
	if enabled() {
		promParticipantCurrent.Set(float64(n))
	}
}

func SetAudioTracks(n int) {
	audioTrackCurrent.Store(int32(n))
	if enabled() {
		promAudioTrackCurrent.Set(float64(n))
	}
}

func SetVisibleTiles(n int) {
	visibleTileCurrent.Store(int32(n))
	if enabled() {
		promVisibleTileCurrent.Set(float64(n))
	}
}
