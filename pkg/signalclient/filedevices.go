package signalclient

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/types"
)

var deviceExtensions = map[types.DeviceKind][]string{
	types.DeviceKindAudioInput: {".ogg"},
	types.DeviceKindVideoInput: {".ivf", ".h264"},
}

// FileDevices exposes the media files in a directory as input devices.
// The device ID is the file path and the label is the file name.
type FileDevices struct {
	dir     string
	watcher *fsnotify.Watcher
	changes chan struct{}
	logger  logger.Logger
}

func NewFileDevices(dir string, l logger.Logger) (*FileDevices, error) {
	if l == nil {
		l = logger.GetLogger()
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "could not create device watcher")
	}
	if err = watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, errors.Wrapf(err, "could not watch %s", dir)
	}

	d := &FileDevices{
		dir:     dir,
		watcher: watcher,
		changes: make(chan struct{}, 1),
		logger:  l.WithValues("dir", dir),
	}
	go d.watch()
	return d, nil
}

func (d *FileDevices) ListDevices(_ context.Context, kind types.DeviceKind) ([]types.DeviceDescriptor, error) {
	exts, ok := deviceExtensions[kind]
	if !ok {
		return nil, nil
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", d.dir)
	}

	var devices []types.DeviceDescriptor
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, e := range exts {
			if ext == e {
				devices = append(devices, types.DeviceDescriptor{
					ID:    filepath.Join(d.dir, entry.Name()),
					Label: entry.Name(),
					Kind:  kind,
				})
				break
			}
		}
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Label < devices[j].Label })
	return devices, nil
}

func (d *FileDevices) Changes() <-chan struct{} {
	return d.changes
}

// Close stops watching. Changes is closed once the watcher has exited.
func (d *FileDevices) Close() error {
	return d.watcher.Close()
}

func (d *FileDevices) watch() {
	defer close(d.changes)

	for {
		select {
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			d.logger.Debugw("device directory changed", "file", event.Name, "op", event.Op.String())
			select {
			case d.changes <- struct{}{}:
			default:
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warnw("device watcher error", err)
		}
	}
}

var _ types.DeviceLister = (*FileDevices)(nil)
