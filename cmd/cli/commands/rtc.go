package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/viewer"
)

var (
	RTCCommands = []*cli.Command{
		{
			Name:   "join",
			Usage:  "join a room and render its stage in the terminal",
			Action: joinRoom,
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "publish-audio",
					Usage: "publish the selected audio input once connected",
				},
				&cli.BoolFlag{
					Name:  "publish-video",
					Usage: "publish the selected video input once connected",
				},
				&cli.BoolFlag{
					Name:  "no-input",
					Usage: "do not read control commands from stdin",
				},
			},
		},
	}
)

func joinRoom(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("publish-audio") {
		conf.Room.PublishAudio = c.Bool("publish-audio")
	}
	if c.IsSet("publish-video") {
		conf.Room.PublishVideo = c.Bool("publish-video")
	}

	v, cleanup, err := viewer.InitializeViewer(conf, os.Stdout)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	handleSignals(cancel)

	if c.Bool("no-input") {
		return v.Run(ctx, nil)
	}
	return v.Run(ctx, os.Stdin)
}

func handleSignals(stop func()) {
	// signal to stop client
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		sig := <-sigChan
		logger.Infow("exit requested, shutting down", "signal", sig)
		stop()
	}()
}
