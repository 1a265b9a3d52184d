package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/livekit/livekit-roomview/pkg/config"
)

var (
	TokenCommands = []*cli.Command{
		{
			Name:   "create-token",
			Usage:  "create a token to join a room",
			Action: createToken,
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:  "valid-for",
					Usage: "how long the token is valid for, defaults to room.token_ttl",
				},
			},
		},
	}
)

func createToken(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	if conf.APIKey == "" || conf.APISecret == "" {
		return fmt.Errorf("api-key and api-secret are required")
	}
	if conf.Room.Name == "" {
		return fmt.Errorf("--room is required")
	}
	if conf.Room.Identity == "" {
		return fmt.Errorf("--identity is required")
	}

	ttl := conf.Room.TokenTTL
	if c.IsSet("valid-for") {
		ttl = c.Duration("valid-for")
	}
	token, err := config.CreateToken(conf.APIKey, conf.APISecret, conf.Room.Name, conf.Room.Identity, ttl)
	if err != nil {
		return err
	}

	fmt.Println("access token: ", token)
	return nil
}
