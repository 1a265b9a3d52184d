package devices

import (
	"context"

	"github.com/frostbyte73/core"
	"github.com/pkg/errors"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/events"
	"github.com/livekit/livekit-roomview/pkg/observable"
	"github.com/livekit/livekit-roomview/pkg/types"
)

// Watcher keeps the device list of one kind current, re-polling the lister
// every time it reports a change.
type Watcher struct {
	lister types.DeviceLister
	kind   types.DeviceKind
	logger logger.Logger

	devices *observable.Value[[]types.DeviceDescriptor]
	stop    core.Fuse
	done    chan struct{}
}

func NewWatcher(ctx context.Context, lister types.DeviceLister, kind types.DeviceKind, l logger.Logger) *Watcher {
	if l == nil {
		l = logger.GetLogger()
	}
	w := &Watcher{
		lister: lister,
		kind:   kind,
		logger: l.WithValues("kind", kind),
		done:   make(chan struct{}),
	}
	w.devices = observable.NewValue[[]types.DeviceDescriptor](nil, w.logger)
	w.refresh(ctx)

	go w.watch(ctx)
	return w
}

func (w *Watcher) Kind() types.DeviceKind {
	return w.kind
}

func (w *Watcher) Devices() []types.DeviceDescriptor {
	return w.devices.Get()
}

func (w *Watcher) Subscribe(fn func([]types.DeviceDescriptor)) events.Subscription {
	return w.devices.Subscribe(fn)
}

// Find returns the device with the given label.
func (w *Watcher) Find(label string) (types.DeviceDescriptor, bool) {
	for _, d := range w.Devices() {
		if d.Label == label {
			return d, true
		}
	}
	return types.DeviceDescriptor{}, false
}

// Select switches the session to the device with the given label.
func (w *Watcher) Select(session types.Session, label string) error {
	device, ok := w.Find(label)
	if !ok {
		return errors.Wrapf(types.ErrDeviceNotFound, "%s %q", w.kind, label)
	}
	if err := session.SwitchActiveDevice(w.kind, device.ID); err != nil {
		return errors.Wrap(err, "could not switch device")
	}
	w.logger.Infow("switched active device", "device", device.Label, "deviceID", device.ID)
	return nil
}

func (w *Watcher) Close() {
	w.stop.Break()
	<-w.done
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.done)

	changes := w.lister.Changes()
	for {
		select {
		case <-w.stop.Watch():
			return
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			w.refresh(ctx)
		}
	}
}

func (w *Watcher) refresh(ctx context.Context) {
	devices, err := w.lister.ListDevices(ctx, w.kind)
	if err != nil {
		// keep the last known list
		w.logger.Warnw("could not list devices", err)
		return
	}
	w.devices.Set(devices)
}
