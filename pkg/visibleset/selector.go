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

package visibleset

import (
	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-roomview/pkg/types"
)

type Window struct {
	Participants []types.Participant
	Capacity     int
	Columns      int
	Rows         int
}

func (w Window) Len() int {
	return len(w.Participants)
}

func (w Window) Contains(sid livekit.ParticipantID) bool {
	for _, p := range w.Participants {
		if p.SID() == sid {
			return true
		}
	}
	return false
}

// Selector keeps the set of participants a grid renders. It starts from the
// previous window on every update so tiles only move when they have to.
// A Selector belongs to one stage and is not safe for concurrent use.
type Selector struct {
	// MaxCapacity bounds the capacity table when > 0.
	MaxCapacity int

	visible []types.Participant
}

// Update recomputes the window: keep members still present, bring in active
// speakers (replacing the first visible non-speaker when full), backfill in
// order, then trim to capacity. Trimming walks from the tail but skips active
// speakers while non-speakers remain, so a capacity drop hides non-speakers first.
func (s *Selector) Update(participants []types.Participant, activeSpeakers []types.Participant) Window {
	capacity := Capacity(len(participants))
	if s.MaxCapacity > 0 && capacity > s.MaxCapacity {
		capacity = s.MaxCapacity
	}

	present := make(map[livekit.ParticipantID]types.Participant, len(participants))
	for _, p := range participants {
		present[p.SID()] = p
	}
	speaking := make(map[livekit.ParticipantID]bool, len(activeSpeakers))
	for _, p := range activeSpeakers {
		if _, ok := present[p.SID()]; ok {
			speaking[p.SID()] = true
		}
	}

	next := make([]types.Participant, 0, capacity)
	visible := make(map[livekit.ParticipantID]bool, capacity)
	for _, p := range s.visible {
		if current, ok := present[p.SID()]; ok && !visible[p.SID()] {
			next = append(next, current)
			visible[p.SID()] = true
		}
	}

	for _, sp := range activeSpeakers {
		sid := sp.SID()
		if !speaking[sid] || visible[sid] {
			continue
		}
		if len(next) < capacity {
			next = append(next, present[sid])
			visible[sid] = true
			continue
		}
		// replace the first visible member that is not speaking
		for i, p := range next {
			if speaking[p.SID()] {
				continue
			}
			delete(visible, p.SID())
			next[i] = present[sid]
			visible[sid] = true
			break
		}
	}

	for _, p := range participants {
		if len(next) >= capacity {
			break
		}
		if !visible[p.SID()] {
			next = append(next, p)
			visible[p.SID()] = true
		}
	}

	next = truncate(next, capacity, speaking)

	s.visible = next
	columns, rows := Grid(capacity)
	return Window{
		Participants: append([]types.Participant(nil), next...),
		Capacity:     capacity,
		Columns:      columns,
		Rows:         rows,
	}
}

// Visible returns the current window without recomputing it.
func (s *Selector) Visible() []types.Participant {
	return append([]types.Participant(nil), s.visible...)
}

// Reset drops the window, as when the stage showing it goes away.
func (s *Selector) Reset() {
	s.visible = nil
}

// truncate removes entries from the tail until window fits capacity.
// Non-speakers at the tail go before speakers.
func truncate(window []types.Participant, capacity int, speaking map[livekit.ParticipantID]bool) []types.Participant {
	excess := len(window) - capacity
	if excess <= 0 {
		return window
	}
	drop := make(map[int]bool, excess)
	for i := len(window) - 1; i >= 0 && len(drop) < excess; i-- {
		if !speaking[window[i].SID()] {
			drop[i] = true
		}
	}
	for i := len(window) - 1; i >= 0 && len(drop) < excess; i-- {
		drop[i] = true
	}

	kept := window[:0]
	for i, p := range window {
		if !drop[i] {
			kept = append(kept, p)
		}
	}
	return kept
}
