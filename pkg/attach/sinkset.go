package attach

import (
	"sync"

	"github.com/pion/rtp"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/types"
)

// SinkSet tracks the sinks a single track is attached to. The same sink may
// be attached several times, it stays attached until detached as many times.
type SinkSet struct {
	lock   sync.RWMutex
	refs   map[types.MediaSink]int
	order  []types.MediaSink
	logger logger.Logger
}

func NewSinkSet(l logger.Logger) *SinkSet {
	if l == nil {
		l = logger.GetLogger()
	}
	return &SinkSet{
		refs:   make(map[types.MediaSink]int),
		logger: l,
	}
}

// Attach returns true when sink was not attached before.
func (s *SinkSet) Attach(sink types.MediaSink) bool {
	if sink == nil {
		return false
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.refs[sink]++
	if s.refs[sink] == 1 {
		s.order = append(s.order, sink)
		return true
	}
	return false
}

// Detach returns true when the last reference to sink was released.
func (s *SinkSet) Detach(sink types.MediaSink) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	count, ok := s.refs[sink]
	if !ok {
		return false
	}
	if count > 1 {
		s.refs[sink] = count - 1
		return false
	}

	delete(s.refs, sink)
	for i, o := range s.order {
		if o == sink {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *SinkSet) DetachAll() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.refs = make(map[types.MediaSink]int)
	s.order = nil
}

func (s *SinkSet) Sinks() []types.MediaSink {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return append([]types.MediaSink(nil), s.order...)
}

func (s *SinkSet) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.order)
}

func (s *SinkSet) IsAttached(sink types.MediaSink) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	_, ok := s.refs[sink]
	return ok
}

// WriteRTP forwards pkt to every attached sink. A failing sink does not stop the others.
func (s *SinkSet) WriteRTP(pkt *rtp.Packet) {
	for _, sink := range s.Sinks() {
		if err := sink.WriteRTP(pkt); err != nil {
			s.logger.Debugw("could not write to sink", "error", err)
		}
	}
}
