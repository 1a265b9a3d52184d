package commands

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/livekit/livekit-roomview/pkg/config"
)

var BaseFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Usage: "path to roomview config file",
	},
	&cli.StringFlag{
		Name:    "config-body",
		Usage:   "roomview config in YAML, typically passed in as an environment var",
		EnvVars: []string{"ROOMVIEW_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "url",
		Usage:   "url of the LiveKit server",
		EnvVars: []string{"LIVEKIT_URL"},
	},
	&cli.StringFlag{
		Name:    "api-key",
		Usage:   "api key used to create join tokens",
		EnvVars: []string{"LIVEKIT_API_KEY"},
	},
	&cli.StringFlag{
		Name:    "api-secret",
		Usage:   "api secret used to create join tokens",
		EnvVars: []string{"LIVEKIT_API_SECRET"},
	},
	&cli.StringFlag{
		Name:    "room",
		Aliases: []string{"r"},
		Usage:   "name of the room",
	},
	&cli.StringFlag{
		Name:    "identity",
		Aliases: []string{"i"},
		Usage:   "identity of the participant",
	},
	&cli.StringFlag{
		Name:  "token",
		Usage: "access token, if passed in ignores --api-key, --api-secret and --identity",
	},
	&cli.StringFlag{
		Name:  "layout",
		Usage: "preferred stage layout, grid or speaker",
	},
	&cli.StringFlag{
		Name:  "media-dir",
		Usage: "directory of .ogg, .ivf and .h264 files used as input devices",
	},
	&cli.StringFlag{
		Name:  "record-dir",
		Usage: "directory remote audio is recorded to",
	},
	&cli.BoolFlag{
		Name:  "dev",
		Usage: "uses devkey/secret when no keys are given and sets log-level to debug",
	},
	&cli.BoolFlag{
		Name:   "disable-strict-config",
		Usage:  "disables strict config parsing",
		Hidden: true,
	},
}

func getConfig(c *cli.Context) (*config.Config, error) {
	confString, err := getConfigString(c.String("config"), c.String("config-body"))
	if err != nil {
		return nil, err
	}

	strictMode := true
	if c.Bool("disable-strict-config") {
		strictMode = false
	}

	conf, err := config.NewConfig(confString, strictMode, c, BaseFlags)
	if err != nil {
		return nil, err
	}
	config.InitLoggerFromConfig(&conf.Logging)
	return conf, nil
}

func getConfigString(configFile string, inConfigBody string) (string, error) {
	if inConfigBody != "" || configFile == "" {
		return inConfigBody, nil
	}

	outConfigBody, err := os.ReadFile(configFile)
	if err != nil {
		return "", err
	}

	return string(outConfigBody), nil
}
