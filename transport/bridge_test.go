package transport

import (
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/fornellas/slogxt/log"
	"github.com/stretchr/testify/require"
)

func TestBridge(t *testing.T) {
	ctx := log.WithLogger(t.Context(), slog.New(slog.DiscardHandler))

	client, conn := net.Pipe()
	port, device := net.Pipe()
	defer device.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- Bridge(ctx, conn, NewTCPPort(port))
	}()

	go func() {
		_, _ = client.Write([]byte("$$\n"))
	}()
	buf := make([]byte, 3)
	_, err := io.ReadFull(device, buf)
	require.NoError(t, err)
	require.Equal(t, "$$\n", string(buf))

	go func() {
		_, _ = device.Write([]byte("ok\r\n"))
	}()
	buf = make([]byte, 4)
	_, err = io.ReadFull(client, buf)
	require.NoError(t, err)
	require.Equal(t, "ok\r\n", string(buf))

	require.NoError(t, client.Close())
	require.NoError(t, <-errCh)
}
