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
	"sync"

	"go.uber.org/atomic"
)

const (
	livekitNamespace string = "livekit"
	subsystemPrefix  string = "roomview_"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
)

// Init creates and registers collectors labelled with the viewer identity.
// Recording functions only update in-process counters until Init is called.
func Init(identity string) {
	initOnce.Do(func() {
		initRoomStats(identity)
		initPacketStats(identity)
		initQualityStats(identity)
		initialized.Store(true)
	})
}

func enabled() bool {
	return initialized.Load()
}

// Stats is a point-in-time copy of the in-process counters.
type Stats struct {
	ConnectAttempts uint64
	ConnectFailures uint64
	Connected       bool
	Participants    int32
	AudioTracks     int32
	VisibleTiles    int32
	PacketsIn       uint64
	BytesIn         uint64
	PacketsOut      uint64
	BytesOut        uint64
}

func GetStats() Stats {
	return Stats{
		ConnectAttempts: connectAttempts.Load(),
		ConnectFailures: connectFailures.Load(),
		Connected:       roomConnected.Load(),
		Participants:    participantCurrent.Load(),
		AudioTracks:     audioTrackCurrent.Load(),
		VisibleTiles:    visibleTileCurrent.Load(),
		PacketsIn:       packetsIn.Load(),
		BytesIn:         bytesIn.Load(),
		PacketsOut:      packetsOut.Load(),
		BytesOut:        bytesOut.Load(),
	}
}
