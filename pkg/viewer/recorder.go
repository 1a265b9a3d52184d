package viewer

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/types"
)

const (
	opusSampleRate = 48000
	opusChannels   = 2
)

var errSinkClosed = errors.New("sink closed")

// oggSink writes the opus packets of one track to an ogg file.
type oggSink struct {
	lock    sync.Mutex
	writer  *oggwriter.OggWriter
	closed  bool
	packets atomic.Uint64
}

func newOggSink(path string) (*oggSink, error) {
	w, err := oggwriter.New(path, opusSampleRate, opusChannels)
	if err != nil {
		return nil, err
	}
	return &oggSink{writer: w}, nil
}

func (s *oggSink) WriteRTP(pkt *rtp.Packet) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return errSinkClosed
	}
	s.packets.Inc()
	return s.writer.WriteRTP(pkt)
}

func (s *oggSink) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}

type recording struct {
	track types.Track
	sink  *oggSink
}

// Recorder keeps one ogg sink attached to every remote audio track of the room
// and detaches sinks of tracks that went away.
type Recorder struct {
	dir    string
	logger logger.Logger

	lock       sync.Mutex
	recordings map[livekit.TrackID]*recording
}

func NewRecorder(dir string, l logger.Logger) (*Recorder, error) {
	if l == nil {
		l = logger.GetLogger()
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "could not create recording directory")
		}
	}
	return &Recorder{
		dir:        dir,
		logger:     l,
		recordings: make(map[livekit.TrackID]*recording),
	}, nil
}

func (r *Recorder) Enabled() bool {
	return r.dir != ""
}

// Sync attaches sinks to new tracks and detaches them from removed ones.
func (r *Recorder) Sync(tracks []types.Track) {
	if !r.Enabled() {
		return
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	present := make(map[livekit.TrackID]types.Track, len(tracks))
	for _, t := range tracks {
		present[t.SID()] = t
	}

	for sid, rec := range r.recordings {
		if t, ok := present[sid]; ok && t == rec.track {
			continue
		}
		r.stop(sid, rec)
	}

	for sid, t := range present {
		if _, ok := r.recordings[sid]; ok {
			continue
		}
		path := filepath.Join(r.dir, string(sid)+".ogg")
		sink, err := newOggSink(path)
		if err != nil {
			r.logger.Warnw("could not start recording", err, "trackID", sid)
			continue
		}
		t.Attach(sink)
		r.recordings[sid] = &recording{track: t, sink: sink}
		r.logger.Infow("recording audio track", "trackID", sid, "path", path)
	}
}

func (r *Recorder) stop(sid livekit.TrackID, rec *recording) {
	rec.track.Detach(rec.sink)
	if err := rec.sink.Close(); err != nil {
		r.logger.Warnw("could not close recording", err, "trackID", sid)
	}
	delete(r.recordings, sid)
	r.logger.Debugw("stopped recording audio track", "trackID", sid, "packets", rec.sink.packets.Load())
}

func (r *Recorder) Recording() []livekit.TrackID {
	r.lock.Lock()
	defer r.lock.Unlock()

	sids := make([]livekit.TrackID, 0, len(r.recordings))
	for sid := range r.recordings {
		sids = append(sids, sid)
	}
	return sids
}

// Close detaches and closes every sink.
func (r *Recorder) Close() {
	r.lock.Lock()
	defer r.lock.Unlock()

	for sid, rec := range r.recordings {
		r.stop(sid, rec)
	}
}
