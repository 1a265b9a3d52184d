package viewer

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/events"
	"github.com/livekit/livekit-roomview/pkg/participantstate"
	"github.com/livekit/livekit-roomview/pkg/types"
)

type tile struct {
	projection *participantstate.Projection
	sub        events.Subscription
}

func (t *tile) close() {
	t.sub.Close()
	t.projection.Close()
}

// Tiles caches one projection per rendered participant. Projections are
// closed when they fall out of the cache or their participant leaves.
type Tiles struct {
	cache    *lru.Cache[livekit.ParticipantID, *tile]
	opts     participantstate.Options
	onChange func()
}

func NewTiles(size int, opts participantstate.Options, onChange func()) (*Tiles, error) {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	cache, err := lru.NewWithEvict[livekit.ParticipantID, *tile](size, func(_ livekit.ParticipantID, t *tile) {
		t.close()
	})
	if err != nil {
		return nil, err
	}
	return &Tiles{
		cache:    cache,
		opts:     opts,
		onChange: onChange,
	}, nil
}

// Get returns the current state for p, creating its projection when needed.
func (t *Tiles) Get(p types.Participant) participantstate.State {
	if cached, ok := t.cache.Get(p.SID()); ok {
		if cached.projection.Participant() == p {
			return cached.projection.State()
		}
		// same sid, new participant object
		t.cache.Remove(p.SID())
	}

	proj := participantstate.New(p, t.opts)
	entry := &tile{projection: proj}
	entry.sub = proj.Subscribe(func(participantstate.State) {
		if t.onChange != nil {
			t.onChange()
		}
	})
	t.cache.Add(p.SID(), entry)
	return proj.State()
}

// Retain drops the projections of participants not in present.
func (t *Tiles) Retain(present []types.Participant) {
	keep := make(map[livekit.ParticipantID]struct{}, len(present))
	for _, p := range present {
		keep[p.SID()] = struct{}{}
	}
	for _, sid := range t.cache.Keys() {
		if _, ok := keep[sid]; !ok {
			t.cache.Remove(sid)
		}
	}
}

func (t *Tiles) Len() int {
	return t.cache.Len()
}

func (t *Tiles) Purge() {
	t.cache.Purge()
}
