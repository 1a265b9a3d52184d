package signalclient

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/livekit-roomview/pkg/types"
)

var testNow = time.Unix(1700000000, 0)

func TestFileDevices(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.ogg", "a.ogg", "cam.ivf", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	devices, err := NewFileDevices(dir, nil)
	require.NoError(t, err)
	defer devices.Close()

	audio, err := devices.ListDevices(context.Background(), types.DeviceKindAudioInput)
	require.NoError(t, err)
	require.Len(t, audio, 2)
	require.Equal(t, "a.ogg", audio[0].Label)
	require.Equal(t, filepath.Join(dir, "a.ogg"), audio[0].ID)
	require.Equal(t, types.DeviceKindAudioInput, audio[0].Kind)

	video, err := devices.ListDevices(context.Background(), types.DeviceKindVideoInput)
	require.NoError(t, err)
	require.Len(t, video, 1)

	output, err := devices.ListDevices(context.Background(), types.DeviceKindAudioOutput)
	require.NoError(t, err)
	require.Empty(t, output)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.h264"), nil, 0644))
	select {
	case <-devices.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("device change not reported")
	}
	video, err = devices.ListDevices(context.Background(), types.DeviceKindVideoInput)
	require.NoError(t, err)
	require.Len(t, video, 2)
}

func TestMimeForFile(t *testing.T) {
	mime, err := mimeForFile("/tmp/voice.OGG")
	require.NoError(t, err)
	require.Equal(t, "audio/opus", mime)

	_, err = mimeForFile("/tmp/voice.wav")
	require.Error(t, err)
}
