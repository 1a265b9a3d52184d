package viewer

import (
	"io"
	"os"

	"github.com/google/wire"
	"github.com/pkg/errors"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/config"
	"github.com/livekit/livekit-roomview/pkg/roomstate"
	"github.com/livekit/livekit-roomview/pkg/signalclient"
	"github.com/livekit/livekit-roomview/pkg/stage"
	"github.com/livekit/livekit-roomview/pkg/types"
)

var ViewerSet = wire.NewSet(
	newLogger,
	newFileDevices,
	wire.Bind(new(types.DeviceLister), new(*signalclient.FileDevices)),
	newConnector,
	wire.Bind(new(types.Connector), new(*signalclient.Connector)),
	newStore,
	newStage,
	newRenderer,
	newRecorder,
	NewViewer,
)

func newLogger() logger.Logger {
	return logger.GetLogger()
}

func newFileDevices(conf *config.Config, l logger.Logger) (*signalclient.FileDevices, func(), error) {
	if err := os.MkdirAll(conf.Devices.Dir, 0o755); err != nil {
		return nil, nil, errors.Wrap(err, "could not create media directory")
	}
	d, err := signalclient.NewFileDevices(conf.Devices.Dir, l)
	if err != nil {
		return nil, nil, err
	}
	return d, func() {
		_ = d.Close()
	}, nil
}

func newConnector(conf *config.Config, lister types.DeviceLister, l logger.Logger) *signalclient.Connector {
	return signalclient.NewConnector(signalclient.ConnectorParams{
		Devices:         lister,
		StartAudioMuted: conf.Room.StartAudioMuted,
		ICEServers:      conf.RTC.ToICEServers(),
		JoinTimeout:     conf.Room.JoinTimeout,
	}, l)
}

func newStore(connector types.Connector, l logger.Logger) (*roomstate.Store, func()) {
	store := roomstate.NewStore(connector, roomstate.Options{Logger: l})
	return store, store.Close
}

func newStage(conf *config.Config) *stage.Stage {
	return stage.New(stage.Options{MaxGridCapacity: conf.Stage.MaxGridCapacity})
}

func newRenderer(out io.Writer) *Renderer {
	_, isTerminal := out.(*os.File)
	return NewRenderer(out, isTerminal)
}

func newRecorder(conf *config.Config, l logger.Logger) (*Recorder, func(), error) {
	r, err := NewRecorder(conf.Recording.Dir, l)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}
