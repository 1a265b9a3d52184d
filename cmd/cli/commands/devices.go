package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/config"
	"github.com/livekit/livekit-roomview/pkg/signalclient"
	"github.com/livekit/livekit-roomview/pkg/types"
)

var (
	DeviceCommands = []*cli.Command{
		{
			Name:   "devices",
			Usage:  "list media files usable as input devices",
			Action: listDevices,
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "json",
					Usage: "print devices as JSON",
				},
			},
		},
		{
			Name:   "check",
			Usage:  "print local addresses and the address seen by the configured STUN servers",
			Action: checkNetwork,
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:  "timeout",
					Value: 10 * time.Second,
				},
			},
		},
	}
)

func listDevices(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	if _, err := os.Stat(conf.Devices.Dir); os.IsNotExist(err) {
		fmt.Printf("media directory %s does not exist\n", conf.Devices.Dir)
		return nil
	}
	d, err := signalclient.NewFileDevices(conf.Devices.Dir, logger.GetLogger())
	if err != nil {
		return err
	}
	defer d.Close()

	var all []types.DeviceDescriptor
	for _, kind := range []types.DeviceKind{types.DeviceKindAudioInput, types.DeviceKindVideoInput} {
		devices, err := d.ListDevices(c.Context, kind)
		if err != nil {
			return err
		}
		all = append(all, devices...)
	}

	if c.Bool("json") {
		PrintJSON(os.Stdout, all)
		return nil
	}
	if len(all) == 0 {
		fmt.Printf("no devices found in %s\n", conf.Devices.Dir)
		return nil
	}
	printDevices(os.Stdout, all)
	return nil
}

func checkNetwork(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	local, err := config.GetLocalIPAddresses(false)
	if err != nil {
		return err
	}
	for _, ip := range local {
		fmt.Println("local address:", ip)
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()
	res, err := config.ProbeSTUN(ctx, conf.RTC.STUNServers)
	if err != nil {
		return err
	}
	fmt.Printf("mapped address: %s (via %s in %v)\n", res.MappedAddr, res.Server, res.RTT)
	return nil
}
