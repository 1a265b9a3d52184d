//go:build wireinject
// +build wireinject

package viewer

import (
	"io"

	"github.com/google/wire"

	"github.com/livekit/livekit-roomview/pkg/config"
)

func InitializeViewer(conf *config.Config, out io.Writer) (*Viewer, func(), error) {
	wire.Build(
		ViewerSet,
	)
	return nil, nil, nil
}
