package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/livekit/livekit-roomview/cmd/cli/commands"
	"github.com/livekit/livekit-roomview/pkg/config"
	"github.com/livekit/livekit-roomview/version"
)

func main() {
	generatedFlags, err := config.GenerateCLIFlags(commands.BaseFlags, true)
	if err != nil {
		fmt.Println(err)
	}

	app := &cli.App{
		Name:  "roomview",
		Usage: "join a LiveKit room and view its participants from the terminal",
		Flags: append(commands.BaseFlags, generatedFlags...),
		Commands: []*cli.Command{
			{
				Name:   "help-verbose",
				Usage:  "prints app help, including all generated configuration flags",
				Action: helpVerbose,
			},
		},
		Version: version.Version,
	}

	app.Commands = append(app.Commands, commands.RTCCommands...)
	app.Commands = append(app.Commands, commands.TokenCommands...)
	app.Commands = append(app.Commands, commands.DeviceCommands...)

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func helpVerbose(c *cli.Context) error {
	generatedFlags, err := config.GenerateCLIFlags(commands.BaseFlags, false)
	if err != nil {
		return err
	}

	c.App.Flags = append(commands.BaseFlags, generatedFlags...)
	return cli.ShowAppHelp(c)
}
