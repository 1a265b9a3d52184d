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

package viewer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/frostbyte73/core"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/config"
	"github.com/livekit/livekit-roomview/pkg/controls"
	"github.com/livekit/livekit-roomview/pkg/devices"
	"github.com/livekit/livekit-roomview/pkg/participantstate"
	"github.com/livekit/livekit-roomview/pkg/roomstate"
	"github.com/livekit/livekit-roomview/pkg/stage"
	"github.com/livekit/livekit-roomview/pkg/telemetry/prometheus"
	"github.com/livekit/livekit-roomview/pkg/types"
)

var ErrUnknownCommand = errors.New("unknown command")

const helpText = `commands:
  m                     toggle microphone
  c                     toggle camera
  s                     toggle screen share
  a                     start audio playback
  l [grid|speaker]      switch layout preference
  d audio|video <name>  select an input device
  q                     leave the room
`

// Viewer joins a room and keeps a terminal rendering of its stage current.
type Viewer struct {
	conf     *config.Config
	store    *roomstate.Store
	stage    *stage.Stage
	renderer *Renderer
	recorder *Recorder
	lister   types.DeviceLister
	logger   logger.Logger

	tiles      *Tiles
	debounced  func(f func())
	renderLock sync.Mutex
	pref       atomic.String

	controls atomic.Pointer[controls.Controls]
	watchers map[types.DeviceKind]*devices.Watcher

	ended    core.Fuse
	endedErr atomic.Error
}

func NewViewer(
	conf *config.Config,
	store *roomstate.Store,
	st *stage.Stage,
	renderer *Renderer,
	recorder *Recorder,
	lister types.DeviceLister,
	l logger.Logger,
) (*Viewer, error) {
	v := &Viewer{
		conf:     conf,
		store:    store,
		stage:    st,
		renderer: renderer,
		recorder: recorder,
		lister:   lister,
		logger:   l,
		watchers: make(map[types.DeviceKind]*devices.Watcher),
	}
	v.pref.Store(string(conf.Stage.Preference()))
	if conf.Stage.RefreshInterval > 0 {
		v.debounced = debounce.New(conf.Stage.RefreshInterval)
	}

	tiles, err := NewTiles(conf.Stage.ProjectionCacheSize, participantstate.Options{
		BitrateInterval: conf.Stage.BitrateInterval,
		Logger:          l,
	}, v.scheduleRedraw)
	if err != nil {
		return nil, errors.Wrap(err, "could not create tile cache")
	}
	v.tiles = tiles
	return v, nil
}

// Run connects and renders until the room is left, the session ends or ctx is
// done. Commands are read line by line from in when it is not nil.
func (v *Viewer) Run(ctx context.Context, in io.Reader) error {
	prometheus.Init(v.conf.Room.Identity)

	token, err := v.conf.AccessToken()
	if err != nil {
		return err
	}

	sub := v.store.Subscribe(v.onState)
	defer sub.Close()
	defer v.tiles.Purge()

	group, ctx := errgroup.WithContext(ctx)
	if v.conf.PrometheusPort > 0 {
		group.Go(func() error {
			return v.serveMetrics(ctx)
		})
	}

	v.logger.Infow("connecting to room", "url", v.conf.URL, "room", v.conf.Room.Name)
	session, err := v.store.Connect(ctx, v.conf.URL, token, v.conf.ConnectOptions())
	if err != nil {
		return err
	}
	if session == nil {
		return v.store.State().Error
	}

	v.controls.Store(controls.New(session, v.logger))
	if v.store.Session() != session {
		// ended before controls were in place
		v.ended.Break()
	}
	v.resetStage()
	v.startWatchers(ctx)
	defer v.stopWatchers()
	v.scheduleRedraw()

	if in != nil {
		// reads cannot be interrupted, so this goroutine is not waited on
		go v.readCommands(ctx, in)
	}

	group.Go(func() error {
		select {
		case <-ctx.Done():
			v.logger.Infow("shutting down")
			v.store.Close()
			return nil
		case <-v.ended.Watch():
			return v.endedErr.Load()
		}
	})
	err = group.Wait()
	v.store.Close()
	v.recorder.Close()
	return err
}

// Leave disconnects the live session, if any.
func (v *Viewer) Leave() {
	if c := v.controls.Load(); c != nil {
		c.Leave(func(s types.Session) {
			v.logger.Infow("left room", "room", s.Name())
		})
	}
}

func (v *Viewer) onState(state roomstate.RoomState) {
	v.recorder.Sync(state.AudioTracks)
	v.tiles.Retain(state.Participants)
	if state.Room == nil && !state.IsConnecting {
		v.resetStage()
		if v.controls.Load() != nil {
			v.endedErr.Store(state.Error)
			v.ended.Break()
		}
	}
	v.scheduleRedraw()
}

func (v *Viewer) scheduleRedraw() {
	if v.debounced == nil {
		v.draw()
		return
	}
	v.debounced(v.draw)
}

func (v *Viewer) resetStage() {
	v.renderLock.Lock()
	defer v.renderLock.Unlock()
	v.stage.Reset()
}

func (v *Viewer) draw() {
	v.renderLock.Lock()
	defer v.renderLock.Unlock()

	state := v.store.State()
	view := v.stage.Compute(state, v.conf.Stage.Viewport(), stage.Preference(v.pref.Load()))
	v.renderer.Render(state, view, v.tiles.Get)
}

func (v *Viewer) startWatchers(ctx context.Context) {
	if v.lister == nil {
		return
	}
	for _, kind := range []types.DeviceKind{types.DeviceKindAudioInput, types.DeviceKindVideoInput} {
		w := devices.NewWatcher(ctx, v.lister, kind, v.logger)
		kind := kind
		w.Subscribe(func(list []types.DeviceDescriptor) {
			v.logger.Infow("devices changed", "kind", kind, "count", len(list))
		})
		v.watchers[kind] = w
	}
}

func (v *Viewer) stopWatchers() {
	for _, w := range v.watchers {
		w.Close()
	}
}

func (v *Viewer) readCommands(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil || v.ended.IsBroken() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := v.HandleCommand(ctx, line); err != nil {
			v.logger.Warnw("could not handle command", err, "command", line)
		}
	}
}

// HandleCommand runs one control command against the live session.
func (v *Viewer) HandleCommand(ctx context.Context, line string) error {
	c := v.controls.Load()
	if c == nil {
		return types.ErrNotConnected
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch fields[0] {
	case "m":
		return c.ToggleMicrophone(ctx)
	case "c":
		return c.ToggleCamera(ctx)
	case "s":
		return c.ToggleScreenShare(ctx)
	case "a":
		return c.StartAudio(ctx)
	case "l":
		return v.setLayout(fields[1:])
	case "d":
		return v.selectDevice(fields[1:])
	case "q":
		v.Leave()
		return nil
	case "?", "h", "help":
		v.renderLock.Lock()
		_, _ = fmt.Fprint(v.renderer.out, helpText)
		v.renderLock.Unlock()
		return nil
	default:
		return errors.Wrap(ErrUnknownCommand, fields[0])
	}
}

func (v *Viewer) setLayout(args []string) error {
	next := stage.PreferGrid
	if len(args) > 0 {
		pref, err := stage.ParsePreference(args[0])
		if err != nil {
			return err
		}
		next = pref
	} else if stage.Preference(v.pref.Load()) == stage.PreferGrid {
		next = stage.PreferSpeaker
	}
	v.pref.Store(string(next))
	v.logger.Debugw("layout preference changed", "preference", next)
	v.scheduleRedraw()
	return nil
}

func (v *Viewer) selectDevice(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: d audio|video <name>")
	}
	kind := types.DeviceKindAudioInput
	switch args[0] {
	case "audio":
	case "video":
		kind = types.DeviceKindVideoInput
	default:
		return fmt.Errorf("unknown device kind %q", args[0])
	}
	w, ok := v.watchers[kind]
	if !ok {
		return types.ErrDeviceNotFound
	}
	session := v.store.Session()
	if session == nil {
		return types.ErrNotConnected
	}
	return w.Select(session, strings.Join(args[1:], " "))
}

func (v *Viewer) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", v.conf.PrometheusPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	v.logger.Infow("serving metrics", "port", v.conf.PrometheusPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server failed")
	}
	return nil
}
