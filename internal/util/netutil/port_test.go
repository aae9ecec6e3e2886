package netutil

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestWaitForPort_Open(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	assert.NoError(t, WaitForPort(context.Background(), "127.0.0.1", port, 2*time.Second))
}

func TestWaitForPort_Timeout(t *testing.T) {
	t.Parallel()
	port := freePort(t)
	timeout := 200 * time.Millisecond

	start := time.Now()
	err := WaitForPort(context.Background(), "127.0.0.1", port, timeout)
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), timeout)
	assert.Contains(t, err.Error(), net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
}

func TestWaitForPort_ListenerAppearsLater(t *testing.T) {
	t.Parallel()
	port := freePort(t)
	address := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))

	go func() {
		time.Sleep(300 * time.Millisecond)
		ln, err := net.Listen("tcp", address)
		if err != nil {
			return
		}
		time.Sleep(2 * time.Second)
		_ = ln.Close()
	}()

	assert.NoError(t, WaitForPort(context.Background(), "127.0.0.1", port, 4*time.Second))
}

func TestWaitForPort_Cancelled(t *testing.T) {
	t.Parallel()
	port := freePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	err := WaitForPort(ctx, "127.0.0.1", port, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
