package signalclient

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/attach"
	"github.com/livekit/livekit-roomview/pkg/telemetry/prometheus"
	"github.com/livekit/livekit-roomview/pkg/types"
)

const bitrateWindow = 500 * time.Millisecond

// bitrateMeter converts a running byte count into bits per second. The rate
// is recomputed at most once per window.
type bitrateMeter struct {
	bytes atomic.Uint64

	lock      sync.Mutex
	lastAt    time.Time
	lastBytes uint64
	rate      uint64
}

func (m *bitrateMeter) add(n int) {
	m.bytes.Add(uint64(n))
}

func (m *bitrateMeter) current() uint64 {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := time.Now()
	total := m.bytes.Load()
	if m.lastAt.IsZero() {
		m.lastAt, m.lastBytes = now, total
		return 0
	}
	elapsed := now.Sub(m.lastAt)
	if elapsed < bitrateWindow {
		return m.rate
	}
	m.rate = uint64(float64(total-m.lastBytes) * 8 / elapsed.Seconds())
	m.lastAt, m.lastBytes = now, total
	return m.rate
}

// remoteTrack fans received RTP out to attached sinks.
type remoteTrack struct {
	sid    livekit.TrackID
	kind   livekit.TrackType
	track  *webrtc.TrackRemote
	logger logger.Logger

	sinks *attach.SinkSet
	meter bitrateMeter

	// audio is only forwarded while playback is allowed
	canPlayback     func() bool
	requestKeyFrame func(ssrc webrtc.SSRC)
}

func newRemoteTrack(sid livekit.TrackID, track *webrtc.TrackRemote, l logger.Logger) *remoteTrack {
	return &remoteTrack{
		sid:    sid,
		kind:   toTrackKind(track.Kind()),
		track:  track,
		logger: l,
		sinks:  attach.NewSinkSet(l),
	}
}

func (t *remoteTrack) SID() livekit.TrackID        { return t.sid }
func (t *remoteTrack) Kind() livekit.TrackType     { return t.kind }
func (t *remoteTrack) CurrentBitrate() uint64      { return t.meter.current() }
func (t *remoteTrack) Detach(sink types.MediaSink) { t.sinks.Detach(sink) }

func (t *remoteTrack) Attach(sink types.MediaSink) {
	if t.sinks.Attach(sink) && t.kind == livekit.TrackType_VIDEO && t.requestKeyFrame != nil {
		// new sink needs a key frame to start decoding
		t.requestKeyFrame(t.track.SSRC())
	}
}

func (t *remoteTrack) write(pkt *rtp.Packet) {
	size := pkt.MarshalSize()
	t.meter.add(size)
	prometheus.IncrementPackets(prometheus.Incoming, t.kind.String(), 1, uint64(size))

	if t.kind == livekit.TrackType_AUDIO && t.canPlayback != nil && !t.canPlayback() {
		return
	}
	t.sinks.WriteRTP(pkt)
}

// readLoop forwards packets until the track ends.
func (t *remoteTrack) readLoop() {
	defer t.sinks.DetachAll()

	for {
		pkt, _, err := t.track.ReadRTP()
		if isEOF(err) {
			return
		}
		if err != nil {
			t.logger.Debugw("error reading RTP", "error", err)
			return
		}
		t.write(pkt)
	}
}

func pliRequester(pc *webrtc.PeerConnection, l logger.Logger) func(webrtc.SSRC) {
	return func(ssrc webrtc.SSRC) {
		err := pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(ssrc)}})
		if err != nil {
			l.Debugw("could not request key frame", "error", err)
		}
	}
}

// localTrack is a published track fed by a TrackWriter. Local media is not
// looped back, so attached sinks receive nothing.
type localTrack struct {
	sid   livekit.TrackID
	kind  livekit.TrackType
	track *webrtc.TrackLocalStaticSample

	sinks *attach.SinkSet
	meter bitrateMeter
}

func newLocalTrack(sid livekit.TrackID, track *webrtc.TrackLocalStaticSample, l logger.Logger) *localTrack {
	return &localTrack{
		sid:   sid,
		kind:  toTrackKind(track.Kind()),
		track: track,
		sinks: attach.NewSinkSet(l),
	}
}

func (t *localTrack) SID() livekit.TrackID        { return t.sid }
func (t *localTrack) Kind() livekit.TrackType     { return t.kind }
func (t *localTrack) CurrentBitrate() uint64      { return t.meter.current() }
func (t *localTrack) Attach(sink types.MediaSink) { t.sinks.Attach(sink) }
func (t *localTrack) Detach(sink types.MediaSink) { t.sinks.Detach(sink) }

func (t *localTrack) onSample(size int) {
	t.meter.add(size)
	prometheus.IncrementPackets(prometheus.Outgoing, t.kind.String(), 1, uint64(size))
}

var (
	_ types.Track = (*remoteTrack)(nil)
	_ types.Track = (*localTrack)(nil)
)
