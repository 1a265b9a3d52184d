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

package controls

import (
	"context"

	"github.com/pkg/errors"

	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/types"
)

// Controls acts on the local participant of a session.
type Controls struct {
	session types.Session
	logger  logger.Logger
}

func New(session types.Session, l logger.Logger) *Controls {
	if l == nil {
		l = logger.GetLogger()
	}
	return &Controls{
		session: session,
		logger:  l.WithValues("room", session.Name()),
	}
}

func (c *Controls) local() (types.LocalParticipant, error) {
	lp := c.session.LocalParticipant()
	if lp == nil {
		return nil, types.ErrNotConnected
	}
	return lp, nil
}

func (c *Controls) isEnabled(source livekit.TrackSource) bool {
	lp := c.session.LocalParticipant()
	if lp == nil {
		return false
	}
	pub := lp.Publication(source)
	return pub != nil && !pub.IsMuted()
}

func (c *Controls) IsMicrophoneEnabled() bool {
	return c.isEnabled(livekit.TrackSource_MICROPHONE)
}

func (c *Controls) IsCameraEnabled() bool {
	return c.isEnabled(livekit.TrackSource_CAMERA)
}

func (c *Controls) IsScreenShareEnabled() bool {
	return c.isEnabled(livekit.TrackSource_SCREEN_SHARE)
}

func (c *Controls) ToggleMicrophone(ctx context.Context) error {
	lp, err := c.local()
	if err != nil {
		return err
	}
	enabled := !c.IsMicrophoneEnabled()
	c.logger.Debugw("setting microphone", "enabled", enabled)
	return errors.Wrap(lp.SetMicrophoneEnabled(ctx, enabled), "could not toggle microphone")
}

func (c *Controls) ToggleCamera(ctx context.Context) error {
	lp, err := c.local()
	if err != nil {
		return err
	}
	enabled := !c.IsCameraEnabled()
	c.logger.Debugw("setting camera", "enabled", enabled)
	return errors.Wrap(lp.SetCameraEnabled(ctx, enabled), "could not toggle camera")
}

func (c *Controls) ToggleScreenShare(ctx context.Context) error {
	lp, err := c.local()
	if err != nil {
		return err
	}
	enabled := !c.IsScreenShareEnabled()
	c.logger.Debugw("setting screen share", "enabled", enabled)
	return errors.Wrap(lp.SetScreenShareEnabled(ctx, enabled), "could not toggle screen share")
}

// StartAudio resumes playback after it was blocked.
func (c *Controls) StartAudio(ctx context.Context) error {
	if c.session.CanPlaybackAudio() {
		return nil
	}
	return errors.Wrap(c.session.StartAudio(ctx), "could not start audio")
}

// Leave disconnects the session, then calls onLeave when it is set.
func (c *Controls) Leave(onLeave func(types.Session)) {
	c.logger.Infow("leaving room")
	c.session.Disconnect()
	if onLeave != nil {
		onLeave(c.session)
	}
}
