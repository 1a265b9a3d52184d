package types

import (
	"context"

	"github.com/livekit/protocol/livekit"
)

type DeviceKind string

const (
	DeviceKindAudioInput  DeviceKind = "audioinput"
	DeviceKindVideoInput  DeviceKind = "videoinput"
	DeviceKindAudioOutput DeviceKind = "audiooutput"
)

func (k DeviceKind) TrackSource() livekit.TrackSource {
	switch k {
	case DeviceKindAudioInput:
		return livekit.TrackSource_MICROPHONE
	case DeviceKindVideoInput:
		return livekit.TrackSource_CAMERA
	default:
		return livekit.TrackSource_UNKNOWN
	}
}

type DeviceDescriptor struct {
	ID    string     `json:"id"`
	Label string     `json:"label"`
	Kind  DeviceKind `json:"kind"`
}

//counterfeiter:generate . DeviceLister
type DeviceLister interface {
	ListDevices(ctx context.Context, kind DeviceKind) ([]DeviceDescriptor, error)
	// Changes fires when the set of available devices may have changed
	Changes() <-chan struct{}
}
