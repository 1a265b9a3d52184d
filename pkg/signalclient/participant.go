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

package signalclient

import (
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/events"
	"github.com/livekit/livekit-roomview/pkg/types"
)

// participant mirrors a ParticipantInfo. Publications are kept in the order
// they were first seen.
type participant struct {
	local bool

	lock        sync.RWMutex
	info        *livekit.ParticipantInfo
	speaking    bool
	level       float32
	lastSpokeAt time.Time
	quality     livekit.ConnectionQuality
	pubs        *orderedmap.OrderedMap[livekit.TrackID, *publication]

	emitter *events.Emitter[types.ParticipantEvent, types.ParticipantEventData]
}

func newParticipant(info *livekit.ParticipantInfo, local bool, l logger.Logger) *participant {
	return &participant{
		local:   local,
		info:    info,
		quality: livekit.ConnectionQuality_GOOD,
		pubs:    orderedmap.NewOrderedMap[livekit.TrackID, *publication](),
		emitter: events.NewEmitter[types.ParticipantEvent, types.ParticipantEventData](l),
	}
}

func (p *participant) SID() livekit.ParticipantID {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return livekit.ParticipantID(p.info.Sid)
}

func (p *participant) Identity() livekit.ParticipantIdentity {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return livekit.ParticipantIdentity(p.info.Identity)
}

func (p *participant) Name() livekit.ParticipantName {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return livekit.ParticipantName(p.info.Name)
}

func (p *participant) Metadata() string {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.info.Metadata
}

func (p *participant) IsLocal() bool {
	return p.local
}

func (p *participant) IsSpeaking() bool {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.speaking
}

func (p *participant) AudioLevel() float32 {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.level
}

func (p *participant) LastSpokeAt() time.Time {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.lastSpokeAt
}

func (p *participant) JoinedAt() time.Time {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return time.Unix(p.info.JoinedAt, 0)
}

func (p *participant) ConnectionQuality() livekit.ConnectionQuality {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.quality
}

func (p *participant) Publications() []types.TrackPublication {
	p.lock.RLock()
	defer p.lock.RUnlock()

	pubs := make([]types.TrackPublication, 0, p.pubs.Len())
	for el := p.pubs.Front(); el != nil; el = el.Next() {
		pubs = append(pubs, el.Value)
	}
	return pubs
}

func (p *participant) Publication(source livekit.TrackSource) types.TrackPublication {
	if pub := p.publicationBySource(source); pub != nil {
		return pub
	}
	return nil
}

func (p *participant) publicationBySource(source livekit.TrackSource) *publication {
	p.lock.RLock()
	defer p.lock.RUnlock()

	for el := p.pubs.Front(); el != nil; el = el.Next() {
		if el.Value.Source() == source {
			return el.Value
		}
	}
	return nil
}

func (p *participant) getPublication(sid livekit.TrackID) *publication {
	p.lock.RLock()
	defer p.lock.RUnlock()
	pub, _ := p.pubs.Get(sid)
	return pub
}

func (p *participant) addPublication(pub *publication) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.pubs.Set(pub.SID(), pub)
}

func (p *participant) removePublication(sid livekit.TrackID) *publication {
	p.lock.Lock()
	defer p.lock.Unlock()
	pub, ok := p.pubs.Get(sid)
	if !ok {
		return nil
	}
	p.pubs.Delete(sid)
	return pub
}

func (p *participant) On(event types.ParticipantEvent, handler func(types.ParticipantEventData)) events.Subscription {
	return p.emitter.On(event, handler)
}

func (p *participant) emit(event types.ParticipantEvent, data types.ParticipantEventData) {
	p.emitter.Emit(event, data)
}

func (p *participant) setSpeaking(speaking bool, level float32, at time.Time) bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.level = level
	if speaking {
		p.lastSpokeAt = at
	}
	if p.speaking == speaking {
		return false
	}
	p.speaking = speaking
	return true
}

func (p *participant) setQuality(quality livekit.ConnectionQuality) bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.quality == quality {
		return false
	}
	p.quality = quality
	return true
}

type unpublished struct {
	pub   *publication
	track types.Track
}

// infoDiff lists what changed when a participant update was applied.
type infoDiff struct {
	published       []*publication
	unpublished     []unpublished
	muted           []*publication
	unmuted         []*publication
	metadataChanged bool
}

// applyInfo replaces the participant info. Track publications are only
// reconciled when withTracks is set, local tracks are owned by the client.
func (p *participant) applyInfo(info *livekit.ParticipantInfo, withTracks bool) infoDiff {
	p.lock.Lock()
	defer p.lock.Unlock()

	var diff infoDiff
	diff.metadataChanged = p.info.Metadata != info.Metadata
	p.info = info
	if !withTracks {
		return diff
	}

	seen := make(map[livekit.TrackID]struct{}, len(info.Tracks))
	for _, ti := range info.Tracks {
		sid := livekit.TrackID(ti.Sid)
		seen[sid] = struct{}{}

		pub, ok := p.pubs.Get(sid)
		if !ok {
			pub = newPublication(ti)
			p.pubs.Set(sid, pub)
			diff.published = append(diff.published, pub)
			continue
		}
		if pub.update(ti) {
			if ti.Muted {
				diff.muted = append(diff.muted, pub)
			} else {
				diff.unmuted = append(diff.unmuted, pub)
			}
		}
	}

	for _, sid := range p.pubs.Keys() {
		if _, ok := seen[sid]; ok {
			continue
		}
		pub, _ := p.pubs.Get(sid)
		p.pubs.Delete(sid)
		diff.unpublished = append(diff.unpublished, unpublished{pub: pub, track: pub.Track()})
	}
	return diff
}

var _ types.Participant = (*participant)(nil)
