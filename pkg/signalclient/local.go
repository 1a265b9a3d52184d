package signalclient

import (
	"context"
	"strings"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"

	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/logger"
	"github.com/livekit/protocol/utils"

	"github.com/livekit/livekit-roomview/pkg/types"
)

type localPublication struct {
	pub    *publication
	track  *localTrack
	sender *webrtc.RTPSender
	path   string
	writer *TrackWriter
}

type localParticipant struct {
	*participant
	session *Session
	logger  logger.Logger

	// serializes publish, mute and device changes
	opLock    sync.Mutex
	published map[livekit.TrackSource]*localPublication
}

func newLocalParticipant(info *livekit.ParticipantInfo, session *Session, l logger.Logger) *localParticipant {
	return &localParticipant{
		participant: newParticipant(info, true, l),
		session:     session,
		logger:      l.WithValues("participant", info.Identity),
		published:   make(map[livekit.TrackSource]*localPublication),
	}
}

func (p *localParticipant) SetMicrophoneEnabled(ctx context.Context, enabled bool) error {
	return p.setSourceEnabled(ctx, livekit.TrackSource_MICROPHONE, enabled)
}

func (p *localParticipant) SetCameraEnabled(ctx context.Context, enabled bool) error {
	return p.setSourceEnabled(ctx, livekit.TrackSource_CAMERA, enabled)
}

// SetScreenShareEnabled only supports turning screen share off, there is no
// screen to capture.
func (p *localParticipant) SetScreenShareEnabled(_ context.Context, enabled bool) error {
	if enabled {
		return types.ErrNotSupported
	}
	return nil
}

func (p *localParticipant) setSourceEnabled(ctx context.Context, source livekit.TrackSource, enabled bool) error {
	p.opLock.Lock()
	defer p.opLock.Unlock()

	if p.session.closed.IsBroken() {
		return types.ErrNotConnected
	}
	if lp, ok := p.published[source]; ok {
		return p.setMuted(lp, !enabled)
	}
	if !enabled {
		return nil
	}
	return p.publish(ctx, source)
}

func (p *localParticipant) setMuted(lp *localPublication, muted bool) error {
	if lp.pub.IsMuted() == muted {
		return nil
	}
	if err := p.session.sendRequest(&livekit.SignalRequest{
		Message: &livekit.SignalRequest_Mute{
			Mute: &livekit.MuteTrackRequest{
				Sid:   string(lp.pub.SID()),
				Muted: muted,
			},
		},
	}); err != nil {
		return errors.Wrap(err, "could not send mute request")
	}
	p.applyMute(lp, muted)
	return nil
}

func (p *localParticipant) applyMute(lp *localPublication, muted bool) {
	if !lp.pub.setMuted(muted) {
		return
	}

	event := types.ParticipantEventTrackUnmuted
	if muted {
		event = types.ParticipantEventTrackMuted
		p.stopWriter(lp)
	} else if err := p.startWriter(lp); err != nil {
		p.logger.Warnw("could not resume track writer", err, "trackID", lp.pub.SID())
	}
	p.session.queue.Enqueue(func() {
		p.emit(event, types.ParticipantEventData{Publication: lp.pub, Track: lp.track})
	})
}

func (p *localParticipant) publish(ctx context.Context, source livekit.TrackSource) error {
	kind, trackType, mime := types.DeviceKindAudioInput, livekit.TrackType_AUDIO, webrtc.MimeTypeOpus
	if source == livekit.TrackSource_CAMERA {
		kind, trackType, mime = types.DeviceKindVideoInput, livekit.TrackType_VIDEO, webrtc.MimeTypeVP8
	}

	path, err := p.session.devicePath(ctx, kind)
	if err != nil {
		return err
	}
	if path != "" {
		if mime, err = mimeForFile(path); err != nil {
			return err
		}
	}

	cid := utils.NewGuid("TR_")
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, cid, string(p.SID()))
	if err != nil {
		return errors.Wrap(err, "could not create local track")
	}

	info, err := p.session.addTrack(ctx, &livekit.AddTrackRequest{
		Cid:    cid,
		Name:   strings.ToLower(source.String()),
		Type:   trackType,
		Source: source,
	})
	if err != nil {
		return err
	}

	sender, err := p.session.publisher.AddTrack(track)
	if err != nil {
		return errors.Wrap(err, "could not add track to publisher")
	}
	go drainRTCP(sender)

	lt := newLocalTrack(livekit.TrackID(info.Sid), track, p.logger)
	pub := newPublication(info)
	pub.setTrack(lt)
	lp := &localPublication{
		pub:    pub,
		track:  lt,
		sender: sender,
		path:   path,
	}
	p.addPublication(pub)
	p.published[source] = lp
	p.session.negotiate()

	if err = p.startWriter(lp); err != nil {
		p.logger.Warnw("could not start track writer", err, "trackID", info.Sid)
	}
	p.logger.Infow("published track", "trackID", info.Sid, "source", source, "file", path)

	p.session.queue.Enqueue(func() {
		p.emit(types.ParticipantEventLocalTrackPublished, types.ParticipantEventData{Publication: pub, Track: lt})
		p.session.emitter.Emit(types.RoomEventLocalTrackPublished, types.RoomEventData{Participant: p, Publication: pub, Track: lt})
	})
	return nil
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (p *localParticipant) startWriter(lp *localPublication) error {
	p.stopWriter(lp)
	w := NewTrackWriter(p.session.ctx, lp.track.track, lp.path, p.logger)
	w.onSample = lp.track.onSample
	if err := w.Start(); err != nil {
		return err
	}
	lp.writer = w
	return nil
}

func (p *localParticipant) stopWriter(lp *localPublication) {
	if lp.writer != nil {
		lp.writer.Stop()
		lp.writer = nil
	}
}

func (p *localParticipant) stopWriters() {
	p.opLock.Lock()
	defer p.opLock.Unlock()

	for _, lp := range p.published {
		p.stopWriter(lp)
	}
}

// switchDevice moves a live track of kind onto another file. The new file
// must carry the codec the track was published with.
func (p *localParticipant) switchDevice(kind types.DeviceKind, path string) error {
	p.opLock.Lock()
	defer p.opLock.Unlock()

	lp, ok := p.published[kind.TrackSource()]
	if !ok {
		return nil
	}
	if path != "" {
		mime, err := mimeForFile(path)
		if err != nil {
			return err
		}
		if !strings.EqualFold(mime, lp.track.track.Codec().MimeType) {
			return errors.Errorf("cannot switch %s track to %s", lp.track.track.Codec().MimeType, mime)
		}
	}

	lp.path = path
	if lp.writer == nil {
		return nil
	}
	return p.startWriter(lp)
}

// onServerMute applies a mute requested by the server.
func (p *localParticipant) onServerMute(sid livekit.TrackID, muted bool) {
	p.opLock.Lock()
	defer p.opLock.Unlock()

	for _, lp := range p.published {
		if lp.pub.SID() == sid {
			p.applyMute(lp, muted)
			return
		}
	}
}

func (p *localParticipant) onUnpublished(sid livekit.TrackID) {
	p.opLock.Lock()
	var (
		source livekit.TrackSource
		lp     *localPublication
	)
	for s, candidate := range p.published {
		if candidate.pub.SID() == sid {
			source, lp = s, candidate
			break
		}
	}
	if lp == nil {
		p.opLock.Unlock()
		return
	}
	delete(p.published, source)
	p.stopWriter(lp)
	p.removePublication(sid)
	p.opLock.Unlock()

	if err := p.session.publisher.RemoveTrack(lp.sender); err != nil {
		p.logger.Warnw("could not remove track", err, "trackID", sid)
	} else {
		p.session.negotiate()
	}

	p.session.queue.Enqueue(func() {
		p.emit(types.ParticipantEventLocalTrackUnpublished, types.ParticipantEventData{Publication: lp.pub, Track: lp.track})
		p.session.emitter.Emit(types.RoomEventLocalTrackUnpublished, types.RoomEventData{Participant: p, Publication: lp.pub, Track: lp.track})
	})
}

var _ types.LocalParticipant = (*localParticipant)(nil)
