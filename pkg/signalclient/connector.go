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
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/protocol/logger/pionlogger"

	"github.com/livekit/livekit-roomview/pkg/types"
)

const (
	protocolVersion    = 7
	defaultJoinTimeout = 15 * time.Second
)

type ConnectorParams struct {
	// Devices resolves the default device when none is selected
	Devices types.DeviceLister
	// StartAudioMuted holds remote audio until StartAudio is called
	StartAudioMuted bool
	// ICEServers are used in addition to the ones sent on join
	ICEServers  []webrtc.ICEServer
	JoinTimeout time.Duration
}

// Connector joins rooms over LiveKit websocket signalling.
type Connector struct {
	params ConnectorParams
	logger logger.Logger
}

func NewConnector(params ConnectorParams, l logger.Logger) *Connector {
	if l == nil {
		l = logger.GetLogger()
	}
	if params.JoinTimeout == 0 {
		params.JoinTimeout = defaultJoinTimeout
	}
	return &Connector{
		params: params,
		logger: l,
	}
}

func (c *Connector) Connect(ctx context.Context, serverURL string, token string, opts types.ConnectOptions) (types.Session, error) {
	signalURL, err := ToSignalURL(serverURL, opts.AutoSubscribe)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.params.JoinTimeout)
	defer cancel()

	header := make(http.Header)
	SetAuthorizationToken(header, token)
	conn, res, err := websocket.DefaultDialer.DialContext(ctx, signalURL, header)
	if err != nil {
		if res != nil && res.StatusCode >= http.StatusBadRequest {
			return nil, errors.Wrapf(err, "signal connection rejected: %s", res.Status)
		}
		return nil, errors.Wrap(err, "could not dial signal connection")
	}

	s := newSession(conn, c.params, opts, c.logger.WithValues("url", serverURL))
	go s.readLoop()

	select {
	case <-s.joined.Watch():
	case <-s.closed.Watch():
		if s.closeErr != nil {
			return nil, s.closeErr
		}
		return nil, ErrClosedBeforeJoin
	case <-ctx.Done():
		s.close(ctx.Err(), false)
		return nil, errors.Wrap(ctx.Err(), "timed out waiting for join")
	}

	if opts.PublishAudio || opts.PublishVideo {
		go c.publishInitial(s, opts)
	}
	return s, nil
}

func (c *Connector) publishInitial(s *Session, opts types.ConnectOptions) {
	local := s.localParticipant()
	if opts.PublishAudio {
		if err := local.SetMicrophoneEnabled(s.ctx, true); err != nil {
			c.logger.Warnw("could not publish microphone", err)
		}
	}
	if opts.PublishVideo {
		if err := local.SetCameraEnabled(s.ctx, true); err != nil {
			c.logger.Warnw("could not publish camera", err)
		}
	}
}

// ToSignalURL maps a server URL onto its websocket signalling endpoint.
func ToSignalURL(serverURL string, autoSubscribe bool) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", errors.Wrapf(err, "invalid url %q", serverURL)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.Errorf("unsupported url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/rtc"

	q := u.Query()
	q.Set("protocol", strconv.Itoa(protocolVersion))
	q.Set("auto_subscribe", strconv.FormatBool(autoSubscribe))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func SetAuthorizationToken(header http.Header, token string) {
	header.Set("Authorization", "Bearer "+token)
}

func newPeerConnection(iceServers []webrtc.ICEServer, l logger.Logger) (*webrtc.PeerConnection, error) {
	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, ir); err != nil {
		return nil, err
	}

	se := webrtc.SettingEngine{
		LoggerFactory: pionlogger.NewLoggerFactory(l),
	}
	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	)
	return api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
}

var _ types.Connector = (*Connector)(nil)
