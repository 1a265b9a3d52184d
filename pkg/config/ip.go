package config

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pion/stun"
	"github.com/pkg/errors"
)

const stunTimeout = 5 * time.Second

type STUNResult struct {
	Server     string
	MappedAddr string
	RTT        time.Duration
}

// ProbeSTUN sends a binding request to each server in turn and returns the
// first mapped address. It is used to check that media can leave the host.
func ProbeSTUN(ctx context.Context, stunServers []string) (*STUNResult, error) {
	if len(stunServers) == 0 {
		return nil, errors.New("STUN servers are required but not defined")
	}

	var lastErr error
	for _, server := range stunServers {
		res, err := probeSTUNServer(ctx, server)
		if err == nil {
			return res, nil
		}
		lastErr = errors.Wrapf(err, "stun server %s", server)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func probeSTUNServer(ctx context.Context, server string) (*STUNResult, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "udp4", server)
	if err != nil {
		return nil, err
	}
	c, err := stun.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	defer c.Close()

	message, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	if err != nil {
		return nil, err
	}

	// sufficiently large buffer to not block it
	resChan := make(chan stun.Event, 4)
	start := time.Now()
	if err = c.Start(message, func(res stun.Event) {
		resChan <- res
	}); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, stunTimeout)
	defer cancel()
	select {
	case res := <-resChan:
		if res.Error != nil {
			return nil, res.Error
		}
		var xorAddr stun.XORMappedAddress
		if err := xorAddr.GetFrom(res.Message); err != nil {
			return nil, err
		}
		return &STUNResult{
			Server:     server,
			MappedAddr: xorAddr.String(),
			RTT:        time.Since(start),
		}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no response: %w", ctx.Err())
	}
}

func GetLocalIPAddresses(includeLoopback bool) ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	loopBacks := make([]string, 0)
	addresses := make([]string, 0)
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch typedAddr := addr.(type) {
			case *net.IPNet:
				ip = typedAddr.IP.To4()
			case *net.IPAddr:
				ip = typedAddr.IP.To4()
			default:
				continue
			}
			if ip == nil {
				continue
			}
			if ip.IsLoopback() {
				loopBacks = append(loopBacks, ip.String())
			} else {
				addresses = append(addresses, ip.String())
			}
		}
	}

	if includeLoopback {
		addresses = append(addresses, loopBacks...)
	}

	if len(addresses) > 0 {
		return addresses, nil
	}
	if len(loopBacks) > 0 {
		return loopBacks, nil
	}
	return nil, fmt.Errorf("could not find local IP address")
}
