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

package ordering

import (
	"sort"

	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-roomview/pkg/types"
)

// Func orders participants for display. Implementations must be deterministic
// and must not mutate all.
type Func func(all []types.Participant, local types.Participant) []types.Participant

// Default puts the local participant first, followed by remote participants in
// the order they joined. Participants that joined at the same time are ordered
// by sid.
func Default(all []types.Participant, local types.Participant) []types.Participant {
	remotes := remotesOf(all, local)
	sort.SliceStable(remotes, func(i, j int) bool {
		return joinedBefore(remotes[i], remotes[j])
	})
	return withLocal(remotes, local)
}

// BySpeakerActivity puts the local participant first, then
// - active speakers, loudest first
// - participants who spoke most recently
// - participants with an unmuted camera
// - everyone else in join order
func BySpeakerActivity(all []types.Participant, local types.Participant) []types.Participant {
	remotes := remotesOf(all, local)
	sort.SliceStable(remotes, func(i, j int) bool {
		a, b := remotes[i], remotes[j]

		if a.IsSpeaking() != b.IsSpeaking() {
			return a.IsSpeaking()
		}
		if a.IsSpeaking() && a.AudioLevel() != b.AudioLevel() {
			return a.AudioLevel() > b.AudioLevel()
		}

		aSpoke, bSpoke := a.LastSpokeAt(), b.LastSpokeAt()
		if !aSpoke.Equal(bSpoke) {
			return aSpoke.After(bSpoke)
		}

		aVideo, bVideo := hasVideo(a), hasVideo(b)
		if aVideo != bVideo {
			return aVideo
		}

		return joinedBefore(a, b)
	})
	return withLocal(remotes, local)
}

func remotesOf(all []types.Participant, local types.Participant) []types.Participant {
	var localSID livekit.ParticipantID
	if local != nil {
		localSID = local.SID()
	}

	seen := make(map[livekit.ParticipantID]struct{}, len(all))
	remotes := make([]types.Participant, 0, len(all))
	for _, p := range all {
		if p == nil || p.SID() == localSID {
			continue
		}
		if _, ok := seen[p.SID()]; ok {
			continue
		}
		seen[p.SID()] = struct{}{}
		remotes = append(remotes, p)
	}
	return remotes
}

func withLocal(remotes []types.Participant, local types.Participant) []types.Participant {
	if local == nil {
		return remotes
	}
	return append([]types.Participant{local}, remotes...)
}

func joinedBefore(a, b types.Participant) bool {
	aj, bj := a.JoinedAt(), b.JoinedAt()
	if !aj.Equal(bj) {
		return aj.Before(bj)
	}
	return a.SID() < b.SID()
}

func hasVideo(p types.Participant) bool {
	pub := p.Publication(livekit.TrackSource_CAMERA)
	return pub != nil && !pub.IsMuted()
}
