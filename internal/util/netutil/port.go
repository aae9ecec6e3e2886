// Package netutil waits for TCP services on freshly booted hosts.
package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	// PollInterval is the pause between connection attempts.
	PollInterval = time.Second
	dialTimeout  = 2 * time.Second
)

// PortWaiter blocks until a TCP port accepts connections or the timeout expires.
type PortWaiter func(ctx context.Context, host string, port int, timeout time.Duration) error

// WaitForPort dials host:port until a connection succeeds. A cancelled ctx
// returns ctx.Err(); an expired timeout returns an error naming the address.
func WaitForPort(ctx context.Context, host string, port int, timeout time.Duration) error {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	for {
		if reachable(waitCtx, &d, address) {
			return nil
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%s not reachable after %v", address, timeout)
			}
			return waitCtx.Err()
		case <-time.After(PollInterval):
		}
	}
}

func reachable(ctx context.Context, d *net.Dialer, address string) bool {
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, err := d.DialContext(dctx, "tcp", address)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
