package signalclient

import (
	"sync"

	"google.golang.org/protobuf/proto"

	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-roomview/pkg/types"
)

// sourceOf falls back to the track type for publishers that do not report a source.
func sourceOf(info *livekit.TrackInfo) livekit.TrackSource {
	if info.Source != livekit.TrackSource_UNKNOWN {
		return info.Source
	}
	if info.Type == livekit.TrackType_VIDEO {
		return livekit.TrackSource_CAMERA
	}
	return livekit.TrackSource_MICROPHONE
}

type publication struct {
	lock  sync.RWMutex
	info  *livekit.TrackInfo
	track types.Track
}

func newPublication(info *livekit.TrackInfo) *publication {
	return &publication{info: info}
}

func (p *publication) SID() livekit.TrackID {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return livekit.TrackID(p.info.Sid)
}

func (p *publication) Name() string {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.info.Name
}

func (p *publication) Kind() livekit.TrackType {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.info.Type
}

func (p *publication) Source() livekit.TrackSource {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return sourceOf(p.info)
}

func (p *publication) IsMuted() bool {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.info.Muted
}

func (p *publication) IsSubscribed() bool {
	return p.Track() != nil
}

func (p *publication) Track() types.Track {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.track
}

func (p *publication) Dimensions() (uint32, uint32) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.info.Width, p.info.Height
}

// update replaces the track info and reports whether the muted state changed.
func (p *publication) update(info *livekit.TrackInfo) (muteChanged bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	muteChanged = p.info.Muted != info.Muted
	p.info = info
	return
}

func (p *publication) setMuted(muted bool) bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.info.Muted == muted {
		return false
	}
	info := proto.Clone(p.info).(*livekit.TrackInfo)
	info.Muted = muted
	p.info = info
	return true
}

func (p *publication) setTrack(track types.Track) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.track = track
}

// clearTrack detaches track if it is still the bound one.
func (p *publication) clearTrack(track types.Track) bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.track != track {
		return false
	}
	p.track = nil
	return true
}

var _ types.TrackPublication = (*publication)(nil)
